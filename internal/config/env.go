package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// parseEnv overlays values from environment variables onto the config. A
// .env file in the working directory is loaded first when present; real
// environment variables take precedence over it.
func parseEnv(config *Config) {
	_ = godotenv.Load()

	setString := func(key string, target *string) {
		if v, ok := os.LookupEnv(key); ok {
			*target = v
		}
	}

	setString("LISTEN_ADDR", &config.ListenAddr)
	setString("BACKEND", &config.Backend)
	setString("DATABASE_DSN", &config.DatabaseDSN)
	setString("SECRET_KEY", &config.SecretKey)
	setString("S3_ROOT_USER", &config.S3RootUser)
	setString("S3_ROOT_PASSWORD", &config.S3RootPassword)
	setString("S3_BUCKET", &config.S3Bucket)
	setString("S3_REGION", &config.S3Region)
	setString("S3_BASE_ENDPOINT", &config.S3BaseEndpoint)

	if v, ok := os.LookupEnv("TOKEN_VALIDITY"); ok {
		if d, err := time.ParseDuration(v); err == nil {
			config.TokenValidityDuration = d
		}
	}
	if v, ok := os.LookupEnv("SEED_DEMO_DATA"); ok {
		config.SeedDemoData = v == "1" || v == "true"
	}
}
