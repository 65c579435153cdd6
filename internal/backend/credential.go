package backend

import (
	"fmt"
	"strings"
)

// Scheme is the Authorization header scheme.
type Scheme string

const (
	SchemeToken  Scheme = "Token"
	SchemeBearer Scheme = "Bearer"
)

// ParseScheme converts the auth_scheme setting into a Scheme.
func ParseScheme(s string) (Scheme, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "token":
		return SchemeToken, nil
	case "bearer":
		return SchemeBearer, nil
	default:
		return "", fmt.Errorf("unknown auth scheme %q", s)
	}
}

// Credential renders the Authorization header for every backend call.
type Credential struct {
	Scheme Scheme
	Token  string
}

// Header returns the Authorization header value.
func (c Credential) Header() string {
	scheme := c.Scheme
	if scheme == "" {
		scheme = SchemeToken
	}
	return string(scheme) + " " + c.Token
}

// Empty reports whether there is no token.
func (c Credential) Empty() bool { return strings.TrimSpace(c.Token) == "" }
