package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

type Config struct {
	Addr         string
	DataDir      string
	CORSOrigin   string
	MaxCycles    int
	MaxBodyBytes int64
	LogLevel     logrus.Level
	// Meilisearch - search falls back to scanning the store when unset
	MeiliURL       string
	MeiliMasterKey string
	// Redis - change notifications are disabled when unset
	RedisURL string
}

func Load() Config {
	return Config{
		Addr:           getenv("API_ADDR", ":8788"),
		DataDir:        getenv("DIALOGUE_DATA_DIR", "./data/dialogues"),
		CORSOrigin:     getenv("DIALOGUE_CORS_ORIGIN", "*"),
		MaxCycles:      getenvInt("DIALOGUE_MAX_CYCLES", 256),
		MaxBodyBytes:   int64(getenvInt("DIALOGUE_MAX_BODY_BYTES", 8<<20)),
		LogLevel:       getenvLevel("LOG_LEVEL", logrus.InfoLevel),
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
		RedisURL:       getenv("REDIS_URL", ""),
	}
}

func getenv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getenvLevel(key string, fallback logrus.Level) logrus.Level {
	level, err := logrus.ParseLevel(getenv(key, fallback.String()))
	if err != nil {
		return fallback
	}
	return level
}
