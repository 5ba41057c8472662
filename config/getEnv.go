package config

import "os"

// GetEnv reads an environment variable. Loading of the .env file happens
// once in main via godotenv.
func GetEnv(key string) string {
	return os.Getenv(key)
}

// GetEnvDefault reads an environment variable with a fallback.
func GetEnvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
