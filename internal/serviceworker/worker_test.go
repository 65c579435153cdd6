package serviceworker

import (
	"context"
	"fmt"
	"testing"

	"github.com/cristianoliveira/pharmacy-notify/internal/dedup"
	"github.com/cristianoliveira/pharmacy-notify/internal/display"
	pnerrors "github.com/cristianoliveira/pharmacy-notify/internal/errors"
	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/cristianoliveira/pharmacy-notify/internal/platform"
	"github.com/cristianoliveira/pharmacy-notify/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type brokenSpeaker struct {
	calls int
}

func (b *brokenSpeaker) Play(context.Context, string) error {
	b.calls++
	return fmt.Errorf("%w: autoplay blocked", pnerrors.ErrAudioPlayback)
}

func newBrowserWorker(t *testing.T, opts Options) (*Worker, *platform.Browser, *platform.RecordingOpener) {
	t.Helper()
	ctx := context.Background()
	opener := &platform.RecordingOpener{}
	b := platform.NewBrowser(ctx, platform.Options{
		Origin:   "http://localhost:3000",
		Prompter: platform.Fixed(notification.PermissionGranted),
		Opener:   opener,
	})
	_, err := b.Request(ctx)
	require.NoError(t, err)
	reg, err := b.Register(ctx, "/firebase-messaging-sw.js")
	require.NoError(t, err)

	opts.Registration = reg
	opts.Clients = b
	w := New(opts)
	w.Bind(b)
	return w, b, opener
}

func TestInstallAndActivate(t *testing.T) {
	ctx := context.Background()
	w, b, _ := newBrowserWorker(t, Options{})
	existing := b.AddWindow("http://localhost:3000/dashboard", false)

	require.NoError(t, w.Install(ctx))
	require.NoError(t, w.Activate(ctx))
	assert.True(t, w.opts.Registration.Active())

	clients, err := b.MatchAll(ctx, platform.MatchOptions{})
	require.NoError(t, err)
	require.Len(t, clients, 1)
	assert.Equal(t, existing.URL(), clients[0].URL())
}

func TestBackgroundMessageSurvivesSoundFailure(t *testing.T) {
	ctx := context.Background()
	speaker := &brokenSpeaker{}
	w, b, _ := newBrowserWorker(t, Options{Sound: speaker})

	p := notification.Payload{Title: "Payment received", Body: "EGP 1,200", Data: notification.Data{Type: "payment", NotificationID: 9}}
	require.NoError(t, w.HandleBackgroundMessage(ctx, p))

	shown := b.Shown()
	require.Len(t, shown, 1)
	assert.Equal(t, notification.ChannelBackground, shown[0].Channel)
	assert.Equal(t, "Payment received", shown[0].Payload.Title)
	assert.Equal(t, notification.Lookup("payment").Icon, shown[0].Payload.Icon)
	assert.Equal(t, 1, speaker.calls)
}

func TestBackgroundMessageWithoutPermission(t *testing.T) {
	ctx := context.Background()
	b := platform.NewBrowser(ctx, platform.Options{Prompter: platform.Fixed(notification.PermissionDenied)})
	reg, err := b.Register(ctx, "/firebase-messaging-sw.js")
	require.NoError(t, err)
	speaker := &brokenSpeaker{}
	w := New(Options{Registration: reg, Clients: b, Sound: speaker})

	err = w.HandleBackgroundMessage(ctx, notification.Payload{Title: "x"})
	assert.ErrorIs(t, err, platform.ErrNoPermission)
	assert.Empty(t, b.Shown())
	assert.Equal(t, 0, speaker.calls)
}

func TestBackgroundMessageSuppressesDuplicates(t *testing.T) {
	ctx := context.Background()
	filter := dedup.NewFilter(dedup.NewStore(storage.NewMemory(), 10, 0), dedup.CriteriaID, nil)
	w, b, _ := newBrowserWorker(t, Options{Dedup: filter})

	p := notification.Payload{Title: "Offer", Data: notification.Data{NotificationID: 3}}
	require.NoError(t, w.HandleBackgroundMessage(ctx, p))
	require.NoError(t, w.HandleBackgroundMessage(ctx, p))
	assert.Len(t, b.Shown(), 1)
}

func TestBackgroundMessageRetriedAfterPermissionGranted(t *testing.T) {
	ctx := context.Background()
	b := platform.NewBrowser(ctx, platform.Options{Prompter: platform.Fixed(notification.PermissionGranted)})
	reg, err := b.Register(ctx, "/firebase-messaging-sw.js")
	require.NoError(t, err)
	filter := dedup.NewFilter(dedup.NewStore(storage.NewMemory(), 10, 0), dedup.CriteriaID, nil)
	w := New(Options{Registration: reg, Clients: b, Dedup: filter})

	p := notification.Payload{Title: "Order ready", Data: notification.Data{NotificationID: 4}}
	require.ErrorIs(t, w.HandleBackgroundMessage(ctx, p), platform.ErrNoPermission)
	require.Empty(t, b.Shown())

	_, err = b.Request(ctx)
	require.NoError(t, err)
	require.NoError(t, w.HandleBackgroundMessage(ctx, p))
	require.NoError(t, w.HandleBackgroundMessage(ctx, p))
	assert.Len(t, b.Shown(), 1)
}

func TestBackgroundMessageThrottledIsNotMarkedShown(t *testing.T) {
	ctx := context.Background()
	sink := &countingSink{}
	b := platform.NewBrowser(ctx, platform.Options{
		Prompter: platform.Fixed(notification.PermissionGranted),
		Sink:     display.NewThrottle(sink, 1, nil),
	})
	_, err := b.Request(ctx)
	require.NoError(t, err)
	reg, err := b.Register(ctx, "/firebase-messaging-sw.js")
	require.NoError(t, err)
	set := dedup.NewStore(storage.NewMemory(), 10, 0)
	speaker := &countingSpeaker{}
	w := New(Options{Registration: reg, Clients: b, Sound: speaker, Dedup: dedup.NewFilter(set, dedup.CriteriaID, nil)})

	first := notification.Payload{Title: "One", Data: notification.Data{NotificationID: 1}}
	second := notification.Payload{Title: "Two", Data: notification.Data{NotificationID: 2}}
	require.NoError(t, w.HandleBackgroundMessage(ctx, first))
	require.NoError(t, w.HandleBackgroundMessage(ctx, second))

	assert.Equal(t, 1, sink.n)
	assert.Len(t, b.Shown(), 1)
	assert.Equal(t, 1, speaker.calls)
	fresh, err := set.MarkIfNew(ctx, "id:2")
	require.NoError(t, err)
	assert.True(t, fresh)
}

type countingSink struct {
	n int
}

func (c *countingSink) Show(context.Context, notification.Delivery) error {
	c.n++
	return nil
}

type countingSpeaker struct {
	calls int
}

func (c *countingSpeaker) Play(context.Context, string) error {
	c.calls++
	return nil
}

func TestClickOpensWindowWhenNoRootClient(t *testing.T) {
	ctx := context.Background()

	existing := new(platform.MockWindowClient)
	existing.On("URL").Return("http://localhost:3000/dashboard")

	clients := new(platform.MockClients)
	clients.On("MatchAll", mock.Anything, platform.MatchOptions{IncludeUncontrolled: true}).
		Return([]platform.WindowClient{existing}, nil)
	clients.On("OpenWindow", mock.Anything, "/notifications").Return(nil, nil).Once()

	w := New(Options{Clients: clients})
	n := &platform.Shown{ID: "n1", Payload: notification.Payload{Data: notification.Data{URL: "/notifications"}}}
	require.NoError(t, w.HandleNotificationClick(ctx, n))

	assert.True(t, n.Closed())
	clients.AssertExpectations(t)
	existing.AssertNotCalled(t, "Focus", mock.Anything)
}

func TestClickReusesRootClient(t *testing.T) {
	ctx := context.Background()

	root := new(platform.MockWindowClient)
	root.On("URL").Return("/")
	root.On("Focus", mock.Anything).Return(nil).Once()
	root.On("Navigate", mock.Anything, "/orders/12").Return(nil).Once()

	clients := new(platform.MockClients)
	clients.On("MatchAll", mock.Anything, mock.Anything).Return([]platform.WindowClient{root}, nil)

	w := New(Options{Clients: clients})
	n := &platform.Shown{Payload: notification.Payload{Data: notification.Data{URL: "/orders/12"}}}
	require.NoError(t, w.HandleNotificationClick(ctx, n))

	root.AssertExpectations(t)
	clients.AssertNotCalled(t, "OpenWindow", mock.Anything, mock.Anything)
}

func TestClickThroughBrowser(t *testing.T) {
	ctx := context.Background()

	t.Run("exact-root opens a new window", func(t *testing.T) {
		w, b, opener := newBrowserWorker(t, Options{})
		b.AddWindow("http://localhost:3000/", true)
		require.NoError(t, w.HandleBackgroundMessage(ctx, notification.Payload{Title: "Invoice"}))

		require.NoError(t, b.Click(ctx, b.Shown()[0].ID))
		assert.Equal(t, []string{"http://localhost:3000/notifications"}, opener.URLs())
		assert.Len(t, b.Windows(), 2)
	})

	t.Run("same-origin focuses the open tab", func(t *testing.T) {
		w, b, opener := newBrowserWorker(t, Options{Matcher: SameOrigin("http://localhost:3000")})
		tab := b.AddWindow("http://localhost:3000/dashboard", true)
		require.NoError(t, w.HandleBackgroundMessage(ctx, notification.Payload{Title: "Invoice"}))

		require.NoError(t, b.Click(ctx, b.Shown()[0].ID))
		assert.True(t, tab.Focused())
		assert.Equal(t, []string{"http://localhost:3000/notifications"}, tab.Navigations())
		assert.Len(t, b.Windows(), 1)
		assert.Equal(t, []string{"http://localhost:3000/notifications"}, opener.URLs())
	})
}

func TestParseMatcher(t *testing.T) {
	client := new(platform.MockWindowClient)
	client.On("URL").Return("HTTP://LOCALHOST:3000/x")

	m, err := ParseMatcher("same-origin", "http://localhost:3000")
	require.NoError(t, err)
	assert.True(t, m(client))

	m, err = ParseMatcher("", "")
	require.NoError(t, err)
	assert.False(t, m(client))

	_, err = ParseMatcher("any", "")
	assert.Error(t, err)
}
