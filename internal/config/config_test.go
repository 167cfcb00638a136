package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/tartampluch/go-contacts/internal/config"
)

// TestConstants_Integrity ensures critical constants are not empty or malformed.
func TestConstants_Integrity(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"AppName", config.AppName},
		{"AppID", config.AppID},
		{"Version", config.Version},
		{"UserAgent", config.UserAgent},
		{"StorageKeySession", config.StorageKeySession},
		{"StorageKeyTheme", config.StorageKeyTheme},
		{"TempIDPrefix", config.TempIDPrefix},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEmpty(t, tt.value, "Critical constant %s should not be empty", tt.name)
		})
	}

	assert.NotEqual(t, config.StorageKeySession, config.StorageKeyTheme, "Session and theme must not share a storage key")
}

// TestDefaults_Sanity checks that default values make sense logically.
func TestDefaults_Sanity(t *testing.T) {
	assert.Equal(t, 3, config.MinQueryLength)
	assert.Equal(t, 8, config.PostalCodeLength)
	assert.Equal(t, 1_000_000, config.CoordScale)

	// Debounce windows stay within the interactive range.
	for _, d := range []time.Duration{config.DefaultSearchDelay, config.DefaultSuggestDelay} {
		assert.GreaterOrEqual(t, d, 300*time.Millisecond)
		assert.LessOrEqual(t, d, 500*time.Millisecond)
	}
}

// TestUserAgent_Format ensures the UA string follows the standard format.
func TestUserAgent_Format(t *testing.T) {
	assert.True(t, strings.HasPrefix(config.UserAgent, "Go-Contacts/"), "UserAgent must start with AppName/")
}

// TestTimeoutsAndLimits ensures that operational constraints are reasonable.
func TestTimeoutsAndLimits(t *testing.T) {
	t.Parallel()

	assert.Greater(t, config.HTTPTimeout, 0*time.Second, "HTTPTimeout must be positive")
	assert.LessOrEqual(t, config.HTTPTimeout, 2*time.Minute, "HTTPTimeout should not be excessively long")
	assert.Greater(t, config.ShutdownTimeout, 0*time.Second, "ShutdownTimeout must be positive")
	assert.Greater(t, config.MaxHTTPResponseSize, 0, "MaxHTTPResponseSize must be positive")
}

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		config.EnvAPIURL, config.EnvSessionBackend, config.EnvRedisURL,
		config.EnvFeedPort, config.EnvLanguage, config.EnvSearchDelayMS,
	} {
		t.Setenv(key, "")
	}

	s := config.Load()

	assert.Equal(t, config.DefaultAPIURL, s.APIURL)
	assert.Equal(t, config.DefaultSessionBackend, s.SessionBackend)
	assert.Equal(t, config.DefaultRedisURL, s.RedisURL)
	assert.Equal(t, config.DefaultFeedPort, s.FeedPort)
	assert.Equal(t, config.DefaultLanguage, s.Language)
	assert.Equal(t, config.DefaultSearchDelay, s.SearchDelay)
	assert.Equal(t, config.DefaultSuggestDelay, s.SuggestDelay)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv(config.EnvAPIURL, "https://api.example.com")
	t.Setenv(config.EnvSessionBackend, config.SessionBackendRedis)
	t.Setenv(config.EnvSearchDelayMS, "250")
	t.Setenv(config.EnvSuggestDelayMS, "not-a-number")
	t.Setenv(config.EnvLanguage, "pt-BR")

	s := config.Load()

	assert.Equal(t, "https://api.example.com", s.APIURL)
	assert.Equal(t, config.SessionBackendRedis, s.SessionBackend)
	assert.Equal(t, 250*time.Millisecond, s.SearchDelay)
	assert.Equal(t, config.DefaultSuggestDelay, s.SuggestDelay, "Invalid values fall back to defaults")
	assert.Equal(t, "pt-BR", s.Language)
}
