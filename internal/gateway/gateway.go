// Package gateway wraps the permission prompt, service worker registration
// and push token lifecycle, and hands fresh tokens to the backend.
//
// Failures never propagate as panics: GetToken answers "" and
// SendTokenToBackend answers false, and both log the cause.
package gateway

import (
	"context"
	"fmt"

	"github.com/cristianoliveira/pharmacy-notify/internal/backend"
	pnerrors "github.com/cristianoliveira/pharmacy-notify/internal/errors"
	"github.com/cristianoliveira/pharmacy-notify/internal/logging"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/platform"
	"github.com/cristianoliveira/pharmacy-notify/internal/push"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
)

// DefaultDeviceType is sent when the caller does not name one.
const DefaultDeviceType = "web"

// TokenSource issues push tokens.
type TokenSource interface {
	GetToken(ctx context.Context, opts push.TokenOptions) (string, error)
}

// TokenSaver registers a token with the backend.
type TokenSaver interface {
	SaveFCMToken(ctx context.Context, cred backend.Credential, reg backend.TokenRegistration) error
}

// Options configure a Gateway.
type Options struct {
	Permissions platform.Permissions
	Workers     platform.WorkerContainer
	Tokens      TokenSource
	Backend     TokenSaver
	// Prefs stores fcm_token and provides pharmacy_user. May be nil.
	Prefs    storage.KV
	VAPIDKey string
	Scheme   backend.Scheme
	Logger   logging.Logger
}

// Gateway is the token/permission gateway.
type Gateway struct {
	opts Options
	log  logging.Logger
}

// New returns a gateway.
func New(opts Options) *Gateway {
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	if opts.Scheme == "" {
		opts.Scheme = backend.SchemeToken
	}
	return &Gateway{opts: opts, log: opts.Logger.With("component", "gateway")}
}

// Supported reports whether both notifications and workers are available.
func (g *Gateway) Supported() bool {
	return g.opts.Permissions != nil && g.opts.Permissions.Supported() &&
		g.opts.Workers != nil && g.opts.Workers.Supported()
}

// Permission returns the current permission without prompting.
func (g *Gateway) Permission() notification.Permission {
	if g.opts.Permissions == nil || !g.opts.Permissions.Supported() {
		return notification.PermissionDefault
	}
	return g.opts.Permissions.Permission()
}

// RequestPermission shows the permission prompt once per call. A dismissed
// prompt answers default.
func (g *Gateway) RequestPermission(ctx context.Context) (notification.Permission, error) {
	if g.opts.Permissions == nil || !g.opts.Permissions.Supported() {
		g.log.Warn("notifications unsupported")
		return notification.PermissionDefault, pnerrors.ErrUnsupportedPlatform
	}
	p, err := g.opts.Permissions.Request(ctx)
	if err != nil {
		g.log.Error("permission request failed", "error", err)
		return notification.PermissionDefault, fmt.Errorf("request permission: %w", err)
	}
	g.log.Info("permission answered", "permission", p.String())
	return p, nil
}

// RegisterServiceWorker installs the worker at path, root scoped.
func (g *Gateway) RegisterServiceWorker(ctx context.Context, path string) (platform.Registration, error) {
	if g.opts.Workers == nil || !g.opts.Workers.Supported() {
		return nil, pnerrors.ErrUnsupportedPlatform
	}
	reg, err := g.opts.Workers.Register(ctx, path)
	if err != nil {
		g.log.Error("service worker registration failed", "path", path, "error", err)
		return nil, fmt.Errorf("register %s: %w", path, err)
	}
	return reg, nil
}

// GetToken returns the push token for reg, or "" when permission is not
// granted, no VAPID key is configured or the token source fails.
func (g *Gateway) GetToken(ctx context.Context, reg platform.Registration) string {
	if p := g.Permission(); !p.Granted() {
		g.log.Warn("token requested without permission", "permission", p.String())
		return ""
	}
	if g.opts.VAPIDKey == "" {
		g.log.Error("token unavailable", "error", push.ErrMissingVAPIDKey)
		return ""
	}
	if g.opts.Tokens == nil || reg == nil {
		g.log.Error("token unavailable", "error", pnerrors.ErrTokenUnavailable)
		return ""
	}
	token, err := g.opts.Tokens.GetToken(ctx, push.TokenOptions{VAPIDKey: g.opts.VAPIDKey, Registration: reg})
	if err != nil {
		g.log.Error("token unavailable", "error", err)
		return ""
	}
	if g.opts.Prefs != nil {
		if err := g.opts.Prefs.Set(ctx, storage.KeyFCMToken, token); err != nil {
			g.log.Warn("failed to cache token", "error", err)
		}
	}
	return token
}

// SendTokenToBackend registers token for the user behind authToken and
// reports success. deviceType defaults to web.
func (g *Gateway) SendTokenToBackend(ctx context.Context, token, authToken, deviceType string) bool {
	if token == "" {
		g.log.Warn("refusing to send empty token")
		return false
	}
	if g.opts.Backend == nil {
		return false
	}
	if deviceType == "" {
		deviceType = DefaultDeviceType
	}
	reg := backend.TokenRegistration{FCMToken: token, DeviceType: deviceType}
	if g.opts.Prefs != nil {
		reg.UserID = storage.GetOr(ctx, g.opts.Prefs, storage.KeyUser, "")
	}
	cred := backend.Credential{Scheme: g.opts.Scheme, Token: authToken}
	if err := g.opts.Backend.SaveFCMToken(ctx, cred, reg); err != nil {
		g.log.Error("failed to send token to backend", "error", err)
		return false
	}
	g.log.Info("token registered with backend", "device_type", deviceType)
	return true
}
