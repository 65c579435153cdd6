package serviceworker

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/cristianoliveira/pharmacy-notify/internal/platform"
)

// Window matcher names accepted by worker_window_match.
const (
	MatchExactRoot  = "exact-root"
	MatchSameOrigin = "same-origin"
)

// Matcher decides whether an open window should be reused for a click.
type Matcher func(client platform.WindowClient) bool

// ExactRoot accepts only a client whose URL is exactly "/". Real clients
// carry absolute URLs, so this almost never matches and clicks open a new
// window. It is the default until the intended rule is settled.
func ExactRoot() Matcher {
	return func(client platform.WindowClient) bool {
		return client.URL() == "/"
	}
}

// SameOrigin accepts any client on origin.
func SameOrigin(origin string) Matcher {
	want := normalizeOrigin(origin)
	return func(client platform.WindowClient) bool {
		return want != "" && normalizeOrigin(client.URL()) == want
	}
}

// ParseMatcher returns the matcher named by name.
func ParseMatcher(name, origin string) (Matcher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MatchExactRoot:
		return ExactRoot(), nil
	case MatchSameOrigin:
		return SameOrigin(origin), nil
	default:
		return nil, fmt.Errorf("unknown window matcher %q", name)
	}
}

func normalizeOrigin(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}
