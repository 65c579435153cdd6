package platform

import (
	"context"

	"github.com/cristianoliveira/pharmacy-notify/internal/notification"
	"github.com/stretchr/testify/mock"
)

// MockPermissions is a testify mock of Permissions.
//
// Example usage:
//
//	perms := new(MockPermissions)
//	perms.On("Supported").Return(true)
//	perms.On("Request", mock.Anything).Return(notification.PermissionGranted, nil)
type MockPermissions struct {
	mock.Mock
}

func (m *MockPermissions) Supported() bool {
	return m.Called().Bool(0)
}

func (m *MockPermissions) Permission() notification.Permission {
	return m.Called().Get(0).(notification.Permission)
}

func (m *MockPermissions) Request(ctx context.Context) (notification.Permission, error) {
	args := m.Called(ctx)
	return args.Get(0).(notification.Permission), args.Error(1)
}

// MockWorkerContainer is a testify mock of WorkerContainer.
type MockWorkerContainer struct {
	mock.Mock
}

func (m *MockWorkerContainer) Supported() bool {
	return m.Called().Bool(0)
}

func (m *MockWorkerContainer) Register(ctx context.Context, scriptURL string) (Registration, error) {
	args := m.Called(ctx, scriptURL)
	reg, _ := args.Get(0).(Registration)
	return reg, args.Error(1)
}

// MockRegistration is a testify mock of Registration.
type MockRegistration struct {
	mock.Mock
}

func (m *MockRegistration) Scope() string     { return m.Called().String(0) }
func (m *MockRegistration) ScriptURL() string { return m.Called().String(0) }
func (m *MockRegistration) Active() bool      { return m.Called().Bool(0) }

func (m *MockRegistration) ShowNotification(ctx context.Context, p notification.Payload) (*Shown, error) {
	args := m.Called(ctx, p)
	shown, _ := args.Get(0).(*Shown)
	return shown, args.Error(1)
}

func (m *MockRegistration) SkipWaiting(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockClients is a testify mock of Clients.
type MockClients struct {
	mock.Mock
}

func (m *MockClients) MatchAll(ctx context.Context, opts MatchOptions) ([]WindowClient, error) {
	args := m.Called(ctx, opts)
	clients, _ := args.Get(0).([]WindowClient)
	return clients, args.Error(1)
}

func (m *MockClients) OpenWindow(ctx context.Context, url string) (WindowClient, error) {
	args := m.Called(ctx, url)
	client, _ := args.Get(0).(WindowClient)
	return client, args.Error(1)
}

func (m *MockClients) Claim(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockWindowClient is a testify mock of WindowClient.
type MockWindowClient struct {
	mock.Mock
}

func (m *MockWindowClient) URL() string { return m.Called().String(0) }

func (m *MockWindowClient) Focus(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockWindowClient) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}
