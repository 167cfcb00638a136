package config

import (
	"os"
	"strconv"
	"time"
)

// Settings holds the runtime configuration resolved from the environment.
type Settings struct {
	APIURL         string
	SessionBackend string
	RedisURL       string
	FeedPort       string
	Language       string
	SearchDelay    time.Duration
	SuggestDelay   time.Duration
}

// Load reads Settings from environment variables, falling back to defaults.
func Load() Settings {
	return Settings{
		APIURL:         getenv(EnvAPIURL, DefaultAPIURL),
		SessionBackend: getenv(EnvSessionBackend, DefaultSessionBackend),
		RedisURL:       getenv(EnvRedisURL, DefaultRedisURL),
		FeedPort:       getenv(EnvFeedPort, DefaultFeedPort),
		Language:       getenv(EnvLanguage, DefaultLanguage),
		SearchDelay:    getenvMillis(EnvSearchDelayMS, DefaultSearchDelay),
		SuggestDelay:   getenvMillis(EnvSuggestDelayMS, DefaultSuggestDelay),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

// getenvMillis parses a non-negative integer of milliseconds.
func getenvMillis(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return time.Duration(parsed) * time.Millisecond
}
