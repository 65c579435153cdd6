// Package dedup builds cross-channel deduplication keys and the sets that
// remember which keys were already shown.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
)

// Criteria defines how notification duplicates are detected.
type Criteria string

const (
	// CriteriaID keys by backend id, then tag, then content.
	CriteriaID Criteria = "id"
	// CriteriaContent keys by title, body and type only.
	CriteriaContent Criteria = "content"

	partSeparator = "\x00"
)

// ParseCriteria converts user-provided strings into a Criteria value.
func ParseCriteria(value string) Criteria {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(CriteriaContent):
		return CriteriaContent
	default:
		return CriteriaID
	}
}

// String returns the string value for Criteria.
func (c Criteria) String() string {
	return string(c)
}

// Key returns the dedup key of p. A backend id found in the payload or in
// a backend tag wins, so a push and a poll for the same record share a key.
// Immediate tags are unique per call and therefore never dedup.
func Key(p notification.Payload, criteria Criteria) string {
	if criteria == CriteriaContent {
		return contentKey(p)
	}
	if p.Data.NotificationID > 0 {
		return "id:" + strconv.Itoa(p.Data.NotificationID)
	}
	if id, ok := notification.IDFromTag(p.Data.Tag); ok {
		return "id:" + strconv.Itoa(id)
	}
	if p.Data.Tag != "" {
		return "tag:" + p.Data.Tag
	}
	return contentKey(p)
}

// BuildKeys returns a key for each payload, in order.
func BuildKeys(payloads []notification.Payload, criteria Criteria) []string {
	keys := make([]string, len(payloads))
	for i := range payloads {
		keys[i] = Key(payloads[i], criteria)
	}
	return keys
}

func contentKey(p notification.Payload) string {
	sum := sha256.Sum256([]byte(strings.Join([]string{p.Title, p.Body, p.Data.Type}, partSeparator)))
	return "content:" + hex.EncodeToString(sum[:12])
}
