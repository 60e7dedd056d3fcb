package config

import (
	"os"
	"strconv"
)

// applyRedisEnv overlays REDIS_* variables. Setting REDIS_ADDR turns the
// stream sink on.
func applyRedisEnv(r *Redis) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		r.Addr = addr
		r.Enabled = true
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		r.Password = password
	}
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if parsed, err := strconv.Atoi(dbStr); err == nil {
			r.DB = parsed
		}
	}
	r.Stream = getEnv("REDIS_STREAM", r.Stream)
	r.Group = getEnv("REDIS_GROUP", r.Group)
	r.Consumer = getEnv("REDIS_CONSUMER", r.Consumer)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
