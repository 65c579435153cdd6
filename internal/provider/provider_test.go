package provider

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/cristianoliveira/pharmacy-notify/internal/backend"
	"github.com/cristianoliveira/pharmacy-notify/internal/gateway"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/platform"
	"github.com/cristianoliveira/pharmacy-notify/internal/push"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Supported() bool { return m.Called().Bool(0) }

func (m *mockGateway) RequestPermission(ctx context.Context) (notification.Permission, error) {
	args := m.Called(ctx)
	return args.Get(0).(notification.Permission), args.Error(1)
}

func (m *mockGateway) RegisterServiceWorker(ctx context.Context, path string) (platform.Registration, error) {
	args := m.Called(ctx, path)
	reg, _ := args.Get(0).(platform.Registration)
	return reg, args.Error(1)
}

func (m *mockGateway) GetToken(ctx context.Context, reg platform.Registration) string {
	return m.Called(ctx, reg).String(0)
}

func (m *mockGateway) SendTokenToBackend(ctx context.Context, token, authToken, deviceType string) bool {
	return m.Called(ctx, token, authToken, deviceType).Bool(0)
}

func grantedGateway(sendOK bool) *mockGateway {
	reg := new(platform.MockRegistration)
	g := new(mockGateway)
	g.On("Supported").Return(true)
	g.On("RequestPermission", mock.Anything).Return(notification.PermissionGranted, nil)
	g.On("RegisterServiceWorker", mock.Anything, "/firebase-messaging-sw.js").Return(reg, nil)
	g.On("GetToken", mock.Anything, reg).Return("fcm-1")
	g.On("SendTokenToBackend", mock.Anything, "fcm-1", mock.Anything, "web").Return(sendOK)
	return g
}

func TestSetupRoundTrip(t *testing.T) {
	ctx := context.Background()

	t.Run("token and post succeed", func(t *testing.T) {
		p := New(Options{Gateway: grantedGateway(true), DeviceType: "web"})
		p.Mount(ctx, "auth")
		require.NoError(t, p.Setup(ctx))

		s := p.Snapshot()
		assert.Equal(t, StateGranted, s.State)
		assert.Equal(t, notification.PermissionGranted, s.Permission)
		assert.False(t, s.Loading)
		assert.Empty(t, s.Error)
		assert.Equal(t, "fcm-1", s.Token)
	})

	t.Run("token ok but post fails", func(t *testing.T) {
		p := New(Options{Gateway: grantedGateway(false), DeviceType: "web"})
		require.Error(t, p.Setup(ctx))

		s := p.Snapshot()
		assert.Equal(t, StateError, s.State)
		assert.Equal(t, notification.PermissionGranted, s.Permission)
		assert.NotEmpty(t, s.Error)
		assert.Equal(t, "fcm-1", s.Token, "token retained for a manual retry")
	})
}

func TestSetupFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("denied", func(t *testing.T) {
		g := new(mockGateway)
		g.On("Supported").Return(true)
		g.On("RequestPermission", mock.Anything).Return(notification.PermissionDenied, nil)

		p := New(Options{Gateway: g})
		require.Error(t, p.Setup(ctx))
		assert.Equal(t, StateDenied, p.Snapshot().State)
		g.AssertNotCalled(t, "RegisterServiceWorker", mock.Anything, mock.Anything)
	})

	t.Run("dismissed counts as denied", func(t *testing.T) {
		g := new(mockGateway)
		g.On("Supported").Return(true)
		g.On("RequestPermission", mock.Anything).Return(notification.PermissionDefault, nil)

		p := New(Options{Gateway: g})
		require.Error(t, p.Setup(ctx))
		assert.Equal(t, StateDenied, p.Snapshot().State)
	})

	t.Run("no token", func(t *testing.T) {
		reg := new(platform.MockRegistration)
		g := new(mockGateway)
		g.On("Supported").Return(true)
		g.On("RequestPermission", mock.Anything).Return(notification.PermissionGranted, nil)
		g.On("RegisterServiceWorker", mock.Anything, mock.Anything).Return(reg, nil)
		g.On("GetToken", mock.Anything, reg).Return("")

		p := New(Options{Gateway: g})
		require.Error(t, p.Setup(ctx))
		assert.Equal(t, StateError, p.Snapshot().State)
		g.AssertNotCalled(t, "SendTokenToBackend", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unsupported", func(t *testing.T) {
		g := new(mockGateway)
		g.On("Supported").Return(false)

		p := New(Options{Gateway: g})
		require.Error(t, p.Setup(ctx))
		assert.Equal(t, StateError, p.Snapshot().State)
	})
}

func TestSetupDefaultsDeviceType(t *testing.T) {
	g := grantedGateway(true)
	p := New(Options{Gateway: g})
	require.NoError(t, p.Setup(context.Background()))
	assert.Equal(t, StateGranted, p.Snapshot().State)
	g.AssertCalled(t, "SendTokenToBackend", mock.Anything, "fcm-1", mock.Anything, gateway.DefaultDeviceType)
}

func TestMountSchedulesSetupOnce(t *testing.T) {
	ctx := context.Background()
	g := grantedGateway(true)
	fire := make(chan time.Time, 1)
	var delays []time.Duration
	p := New(Options{
		Gateway:   g,
		AutoSetup: true,
		After: func(d time.Duration) <-chan time.Time {
			delays = append(delays, d)
			return fire
		},
	})

	p.Mount(ctx, "auth")
	p.Mount(ctx, "auth")
	assert.Equal(t, []time.Duration{DefaultDelay}, delays)
	assert.Equal(t, StateUninitialized, p.Snapshot().State)

	fire <- time.Now()
	require.Eventually(t, func() bool { return p.Snapshot().State == StateGranted }, time.Second, 5*time.Millisecond)
	p.Unmount()
	g.AssertNumberOfCalls(t, "RequestPermission", 1)
}

func TestUnmountCancelsPendingSetup(t *testing.T) {
	g := grantedGateway(true)
	p := New(Options{
		Gateway:   g,
		AutoSetup: true,
		After:     func(time.Duration) <-chan time.Time { return make(chan time.Time) },
	})
	p.Mount(context.Background(), "auth")
	p.Unmount()

	assert.Equal(t, StateUninitialized, p.Snapshot().State)
	g.AssertNotCalled(t, "RequestPermission", mock.Anything)
}

func TestMountSkipsWithoutAuthOrAutoSetup(t *testing.T) {
	g := grantedGateway(true)
	scheduled := 0
	after := func(time.Duration) <-chan time.Time {
		scheduled++
		return make(chan time.Time)
	}

	New(Options{Gateway: g, AutoSetup: true, After: after}).Mount(context.Background(), "")
	New(Options{Gateway: g, AutoSetup: false, After: after}).Mount(context.Background(), "auth")
	assert.Equal(t, 0, scheduled)
}

func TestAuthTokenChangeResendsToken(t *testing.T) {
	ctx := context.Background()
	g := grantedGateway(true)
	p := New(Options{Gateway: g, DeviceType: "web"})
	p.Mount(ctx, "first")
	require.NoError(t, p.Setup(ctx))

	require.NoError(t, p.SetAuthToken(ctx, "first"))
	require.NoError(t, p.SetAuthToken(ctx, "second"))
	require.NoError(t, p.SetAuthToken(ctx, "third"))

	g.AssertCalled(t, "SendTokenToBackend", mock.Anything, "fcm-1", "second", "web")
	g.AssertCalled(t, "SendTokenToBackend", mock.Anything, "fcm-1", "third", "web")
	g.AssertNumberOfCalls(t, "SendTokenToBackend", 3)
}

func TestSetupWithAuthTokenRunsOnce(t *testing.T) {
	ctx := context.Background()
	g := grantedGateway(true)
	p := New(Options{Gateway: g})

	// Not granted yet: the token change alone does nothing, Setup runs once.
	require.NoError(t, p.SetupWithAuthToken(ctx, "first"))
	g.AssertNumberOfCalls(t, "SendTokenToBackend", 1)

	// Granted and changed: the change re-runs Setup, no second run follows.
	require.NoError(t, p.SetupWithAuthToken(ctx, "second"))
	g.AssertNumberOfCalls(t, "SendTokenToBackend", 2)
	g.AssertCalled(t, "SendTokenToBackend", mock.Anything, "fcm-1", "second", "web")

	// Unchanged token: an explicit setup still runs.
	require.NoError(t, p.SetupWithAuthToken(ctx, "second"))
	g.AssertNumberOfCalls(t, "SendTokenToBackend", 3)
	assert.Equal(t, StateGranted, p.Snapshot().State)
}

func TestAuthTokenChangeBeforeGrantDoesNothing(t *testing.T) {
	g := grantedGateway(true)
	p := New(Options{Gateway: g})
	require.NoError(t, p.SetAuthToken(context.Background(), "new"))
	g.AssertNotCalled(t, "RequestPermission", mock.Anything)
	assert.Equal(t, "new", p.AuthToken())
}

func TestSubscribeStreamsStates(t *testing.T) {
	p := New(Options{Gateway: grantedGateway(true)})
	updates, unsubscribe := p.Subscribe()
	require.NoError(t, p.Setup(context.Background()))
	unsubscribe()
	unsubscribe()

	var states []State
	for s := range updates {
		states = append(states, s.State)
	}
	require.NotEmpty(t, states)
	assert.Equal(t, StateRequesting, states[0])
	assert.Equal(t, StateGranted, states[len(states)-1])
}

func TestSetupWithBrowserAndRelay(t *testing.T) {
	ctx := context.Background()
	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	t.Cleanup(httpmock.DeactivateAndReset)
	const base = "https://api.pharmacy.test/api"
	httpmock.RegisterResponder(http.MethodPost, base+backend.PathSaveFCMToken, httpmock.NewStringResponder(http.StatusCreated, `{}`))

	prefs := storage.NewMemory()
	browser := platform.NewBrowser(ctx, platform.Options{Prompter: platform.Fixed(notification.PermissionGranted), Prefs: prefs})
	relay := push.NewRelay(prefs, nil, nil)
	g := gateway.New(gateway.Options{
		Permissions: browser,
		Workers:     browser,
		Tokens:      relay,
		Backend:     backend.New(backend.Config{BaseURL: base, HTTPClient: hc}),
		Prefs:       prefs,
		VAPIDKey:    "BKey",
	})

	p := New(Options{Gateway: g})
	p.Mount(ctx, "auth")
	require.NoError(t, p.Setup(ctx))
	assert.Equal(t, StateGranted, p.Snapshot().State)
	assert.Equal(t, 1, browser.Prompts())
	assert.Equal(t, 1, httpmock.GetTotalCallCount())

	// A second setup reuses the answer and the registration
	require.NoError(t, p.Setup(ctx))
	assert.Equal(t, 1, browser.Prompts())
	assert.Equal(t, 1, browser.Registrations())
}
