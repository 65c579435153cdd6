package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/cristianoliveira/pharmacy-notify/internal/backend"
	pnerrors "github.com/cristianoliveira/pharmacy-notify/internal/errors"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/platform"
	"github.com/cristianoliveira/pharmacy-notify/internal/push"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testBase = "https://api.pharmacy.test/api"

type mockTokens struct {
	mock.Mock
}

func (m *mockTokens) GetToken(ctx context.Context, opts push.TokenOptions) (string, error) {
	args := m.Called(ctx, opts)
	return args.String(0), args.Error(1)
}

func mockedBackend(t *testing.T) *backend.Client {
	t.Helper()
	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	t.Cleanup(httpmock.DeactivateAndReset)
	return backend.New(backend.Config{BaseURL: testBase, HTTPClient: hc})
}

func TestPermissionToBackendScenario(t *testing.T) {
	ctx := context.Background()
	api := mockedBackend(t)

	var sent []backend.TokenRegistration
	httpmock.RegisterResponder(http.MethodPost, testBase+backend.PathSaveFCMToken,
		func(req *http.Request) (*http.Response, error) {
			var reg backend.TokenRegistration
			body, _ := io.ReadAll(req.Body)
			require.NoError(t, json.Unmarshal(body, &reg))
			sent = append(sent, reg)
			return httpmock.NewStringResponse(http.StatusCreated, `{}`), nil
		})

	perms := new(platform.MockPermissions)
	perms.On("Supported").Return(true)
	perms.On("Request", mock.Anything).Return(notification.PermissionGranted, nil).Once()
	perms.On("Permission").Return(notification.PermissionGranted)

	reg := new(platform.MockRegistration)
	workers := new(platform.MockWorkerContainer)
	workers.On("Supported").Return(true)
	workers.On("Register", mock.Anything, "/firebase-messaging-sw.js").Return(reg, nil)

	tokens := new(mockTokens)
	tokens.On("GetToken", mock.Anything, push.TokenOptions{VAPIDKey: "BKey", Registration: reg}).Return("fcm-123", nil).Once()

	prefs := storage.NewMemory()
	require.NoError(t, prefs.Set(ctx, storage.KeyUser, "42"))

	g := New(Options{
		Permissions: perms,
		Workers:     workers,
		Tokens:      tokens,
		Backend:     api,
		Prefs:       prefs,
		VAPIDKey:    "BKey",
	})

	p, err := g.RequestPermission(ctx)
	require.NoError(t, err)
	require.Equal(t, notification.PermissionGranted, p)

	registration, err := g.RegisterServiceWorker(ctx, "/firebase-messaging-sw.js")
	require.NoError(t, err)

	token := g.GetToken(ctx, registration)
	require.Equal(t, "fcm-123", token)
	assert.True(t, g.SendTokenToBackend(ctx, token, "auth-abc", ""))

	require.Len(t, sent, 1)
	assert.Equal(t, backend.TokenRegistration{FCMToken: "fcm-123", UserID: "42", DeviceType: "web"}, sent[0])
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	cached, err := prefs.Get(ctx, storage.KeyFCMToken)
	require.NoError(t, err)
	assert.Equal(t, "fcm-123", cached)

	perms.AssertExpectations(t)
	tokens.AssertExpectations(t)
}

func TestRequestPermissionUnsupported(t *testing.T) {
	perms := new(platform.MockPermissions)
	perms.On("Supported").Return(false)

	g := New(Options{Permissions: perms})
	p, err := g.RequestPermission(context.Background())
	assert.ErrorIs(t, err, pnerrors.ErrUnsupportedPlatform)
	assert.Equal(t, notification.PermissionDefault, p)
	perms.AssertNotCalled(t, "Request", mock.Anything)

	_, err = g.RegisterServiceWorker(context.Background(), "/sw.js")
	assert.ErrorIs(t, err, pnerrors.ErrUnsupportedPlatform)
}

func TestGetTokenFailuresReturnEmpty(t *testing.T) {
	ctx := context.Background()
	reg := new(platform.MockRegistration)

	denied := new(platform.MockPermissions)
	denied.On("Supported").Return(true)
	denied.On("Permission").Return(notification.PermissionDenied)

	granted := new(platform.MockPermissions)
	granted.On("Supported").Return(true)
	granted.On("Permission").Return(notification.PermissionGranted)

	failing := new(mockTokens)
	failing.On("GetToken", mock.Anything, mock.Anything).Return("", errors.New("network down"))

	tests := []struct {
		name string
		opts Options
	}{
		{"permission denied", Options{Permissions: denied, Tokens: failing, VAPIDKey: "k"}},
		{"missing vapid key", Options{Permissions: granted, Tokens: failing}},
		{"token source error", Options{Permissions: granted, Tokens: failing, VAPIDKey: "k"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, "", New(tt.opts).GetToken(ctx, reg))
		})
	}
	failing.AssertNumberOfCalls(t, "GetToken", 1)
}

func TestSendTokenToBackendFailures(t *testing.T) {
	ctx := context.Background()
	api := mockedBackend(t)
	httpmock.RegisterResponder(http.MethodPost, testBase+backend.PathSaveFCMToken,
		httpmock.NewStringResponder(http.StatusInternalServerError, `{"detail":"boom"}`))

	g := New(Options{Backend: api, Scheme: backend.SchemeBearer})
	assert.False(t, g.SendTokenToBackend(ctx, "fcm", "auth", "web"))
	assert.False(t, g.SendTokenToBackend(ctx, "", "auth", "web"))
	// Missing auth token never reaches the network
	assert.False(t, g.SendTokenToBackend(ctx, "fcm", "", "web"))

	// Never retried
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}
