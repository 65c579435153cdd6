// Package notification holds the data model shared by every delivery
// channel: permission state, push payloads, server records and the
// per-type presentation table.
package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DefaultURL is where a notification click lands when the payload carries no url.
const DefaultURL = "/notifications"

const (
	backendTagPrefix   = "notification-"
	immediateTagPrefix = "immediate-"
)

// Permission is the OS-level notification permission. Only the platform
// changes it, in response to a user answering the prompt.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)

// ParsePermission converts a stored or user supplied value into a Permission.
func ParsePermission(s string) (Permission, error) {
	switch p := Permission(strings.ToLower(strings.TrimSpace(s))); p {
	case PermissionDefault, PermissionGranted, PermissionDenied:
		return p, nil
	case "":
		return PermissionDefault, nil
	default:
		return "", fmt.Errorf("invalid permission: %q", s)
	}
}

func (p Permission) String() string { return string(p) }

// Granted reports whether notifications may be displayed.
func (p Permission) Granted() bool { return p == PermissionGranted }

// Data is the routing metadata carried next to the visible payload.
type Data struct {
	URL            string `json:"url,omitempty"`
	Tag            string `json:"tag,omitempty"`
	Type           string `json:"type,omitempty"`
	NotificationID int    `json:"notificationId,omitempty"`
}

// UnmarshalJSON accepts notificationId as a number or a numeric string;
// push transports deliver data maps with string values only.
func (d *Data) UnmarshalJSON(b []byte) error {
	var raw struct {
		URL            string          `json:"url"`
		Tag            string          `json:"tag"`
		Type           string          `json:"type"`
		NotificationID json.RawMessage `json:"notificationId"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	d.URL, d.Tag, d.Type, d.NotificationID = raw.URL, raw.Tag, raw.Type, 0

	id := bytes.Trim(bytes.TrimSpace(raw.NotificationID), `"`)
	if len(id) == 0 || string(id) == "null" {
		return nil
	}
	n, err := strconv.Atoi(string(id))
	if err != nil {
		return fmt.Errorf("invalid notificationId %s: %w", raw.NotificationID, err)
	}
	d.NotificationID = n
	return nil
}

// Payload is a displayable notification as received from push or built
// from a polled record.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon,omitempty"`
	Image string `json:"image,omitempty"`
	Data  Data   `json:"data"`
}

// ClickURL returns the in-app URL a click should open.
func (p Payload) ClickURL() string {
	if p.Data.URL != "" {
		return p.Data.URL
	}
	return DefaultURL
}

// Channel names the path a payload arrived through.
type Channel string

const (
	ChannelBackground Channel = "background"
	ChannelForeground Channel = "foreground"
	ChannelPoll       Channel = "poll"
	ChannelImmediate  Channel = "immediate"
)

// Delivery is a payload surfaced to the user through one channel.
type Delivery struct {
	Payload
	Channel Channel
	ShownAt time.Time
}

// Extra carries backend metadata attached to a record.
type Extra struct {
	Type string `json:"type,omitempty"`
}

// Record is a server-owned notification. This layer only reads it and
// issues mark-read and delete calls against it.
type Record struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	IsRead    bool   `json:"is_read"`
	CreatedAt string `json:"created_at"`
	Extra     Extra  `json:"extra"`
}

// Created parses CreatedAt, returning the zero time when it is malformed.
func (r Record) Created() time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Stats is the response of the stats endpoint.
type Stats struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
	Read   int `json:"read"`
}

// BackendTag is the tag of a notification raised for backend record id.
func BackendTag(id int) string {
	return backendTagPrefix + strconv.Itoa(id)
}

// ImmediateTag returns a fresh tag for a locally synthesized notification.
// Immediate tags never collide with backend tags, so tags alone cannot
// dedup across channels.
func ImmediateTag() string {
	return immediateTagPrefix + uuid.NewString()
}

// IDFromTag extracts the backend id from a tag built by BackendTag.
func IDFromTag(tag string) (int, bool) {
	if !strings.HasPrefix(tag, backendTagPrefix) {
		return 0, false
	}
	id, err := strconv.Atoi(strings.TrimPrefix(tag, backendTagPrefix))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// FromRecord builds the local notification raised for a polled record.
func FromRecord(r Record) Payload {
	info := Lookup(r.Extra.Type)
	return Payload{
		Title: r.Title,
		Body:  r.Message,
		Icon:  info.Icon,
		Data: Data{
			URL:            DefaultURL,
			Tag:            BackendTag(r.ID),
			Type:           r.Extra.Type,
			NotificationID: r.ID,
		},
	}
}

// Immediate builds a local notification that never touched the network.
func Immediate(title, message, typ string) Payload {
	info := Lookup(typ)
	return Payload{
		Title: info.Emoji + " " + title,
		Body:  message,
		Icon:  info.Icon,
		Data: Data{
			URL:  DefaultURL,
			Tag:  ImmediateTag(),
			Type: typ,
		},
	}
}
