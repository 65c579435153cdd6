package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("XDG_STATE_HOME", filepath.Join(tmp, "state"))
	t.Setenv(EnvPrefix+"DOTENV_PATH", filepath.Join(tmp, "missing.env"))
	return tmp
}

func TestLoadAndGet(t *testing.T) {
	isolate(t)
	Load()

	require.Equal(t, "default", Get("missing", "default"))
	require.Equal(t, "http://localhost:8000/api", Get("backend_url", ""))
	require.Equal(t, 30*time.Second, GetDuration("polling_interval", 0))
	require.Equal(t, 2*time.Second, GetDuration("auto_setup_delay", 0))
	require.True(t, GetBool("auto_setup", false))
	require.Equal(t, 500, GetInt("dedup_capacity", 0))
}

func TestLoadCreatesSampleConfig(t *testing.T) {
	tmp := isolate(t)
	Load()

	data, err := os.ReadFile(filepath.Join(tmp, "config", "pharmacy-notify", "config.toml"))
	require.NoError(t, err)
	require.Contains(t, string(data), "# pharmacy-notify configuration")
	require.Contains(t, string(data), "backend_url")
}

func TestConfigLoadingPrecedence(t *testing.T) {
	tmp := isolate(t)

	configFile := filepath.Join(tmp, "custom.toml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
polling_interval = "45s"
auth_scheme = "bearer"
shoutrrr_urls = ["ntfy://ntfy.sh/pharmacy", "generic://example.com/hook"]
`), 0644))

	t.Setenv(EnvPrefix+"CONFIG_PATH", configFile)
	t.Setenv(EnvPrefix+"POLLING_INTERVAL", "10000")
	Load()

	// Environment wins over the file; bare integers are milliseconds
	require.Equal(t, 10*time.Second, GetDuration("polling_interval", 0))
	require.Equal(t, "bearer", Get("auth_scheme", ""))
	require.Equal(t, []string{"ntfy://ntfy.sh/pharmacy", "generic://example.com/hook"}, GetList("shoutrrr_urls"))
}

func TestDotEnvProvidesVAPIDKey(t *testing.T) {
	tmp := isolate(t)
	envFile := filepath.Join(tmp, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("PHARMACY_NOTIFY_VAPID_KEY=BExampleKey\n"), 0644))
	t.Setenv(EnvPrefix+"DOTENV_PATH", envFile)
	t.Cleanup(func() { os.Unsetenv(EnvPrefix + "VAPID_KEY") })

	Load()
	require.Equal(t, "BExampleKey", Get("vapid_key", ""))
}

func TestInvalidValuesFallBackToDefaults(t *testing.T) {
	isolate(t)
	t.Setenv(EnvPrefix+"AUTH_SCHEME", "basic")
	t.Setenv(EnvPrefix+"DEDUP_CAPACITY", "-4")
	t.Setenv(EnvPrefix+"BACKEND_URL", "not a url")
	t.Setenv(EnvPrefix+"AUTO_SETUP", "maybe")
	Load()

	require.Equal(t, "token", Get("auth_scheme", ""))
	require.Equal(t, 500, GetInt("dedup_capacity", 0))
	require.Equal(t, "http://localhost:8000/api", Get("backend_url", ""))
	require.True(t, GetBool("auto_setup", false))
}

func TestURLValidatorTrimsTrailingSlash(t *testing.T) {
	got, err := URLValidator()("backend_url", "https://api.pharmacy.test/api/", "x")
	require.NoError(t, err)
	require.Equal(t, "https://api.pharmacy.test/api", got)
}

func TestRegisterValidatorPanicsOnDuplicate(t *testing.T) {
	require.Panics(t, func() {
		RegisterValidator("auth_scheme", BoolValidator())
	})
}
