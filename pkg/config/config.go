package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	ServerURL         string
	Environment       string
	SessionFile       string
	JWTSecret         string
	ReconnectAttempts int
	ReconnectDelay    time.Duration
	AckTimeout        time.Duration
	TypingDebounce    time.Duration
	TypingRemoteTTL   time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	config := &Config{
		ServerURL:         getEnv("SERVER_URL", "ws://localhost:4600/ws"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		SessionFile:       getEnv("SESSION_FILE", ".chatsync-session.json"),
		JWTSecret:         getEnv("JWT_SECRET", "your-secret-key"),
		ReconnectAttempts: getEnvAsInt("RECONNECT_ATTEMPTS", 5),
		ReconnectDelay:    getEnvAsDuration("RECONNECT_DELAY", time.Second),
		AckTimeout:        getEnvAsDuration("ACK_TIMEOUT", 10*time.Second),
		TypingDebounce:    getEnvAsDuration("TYPING_DEBOUNCE", time.Second),
		// 0 disables receiver-side expiry of remote typing entries; the
		// protocol only clears them on an explicit stopTyping.
		TypingRemoteTTL: getEnvAsDuration("TYPING_REMOTE_TTL", 0),
	}

	return config, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		intValue, err := strconv.Atoi(value)
		if err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		durValue, err := time.ParseDuration(value)
		if err == nil {
			return durValue
		}
	}
	return defaultValue
}
