package utils

import (
	"os"
	"strconv"
	"time"
)

// APIConfig holds the remote activity API credentials. Env names follow the
// deployment's .env contract; credential checks happen when the client is
// constructed so tools that never call the API still start without them.
type APIConfig struct {
	Host       string
	PublicKey  string
	PrivateKey string
	DatabaseID string
}

func LoadAPIConfig() APIConfig {
	return APIConfig{
		Host:       getenv("SCHOLARSYNC_API_HOST", "https://faculty180.interfolio.com/api.php"),
		PublicKey:  os.Getenv("API_PUBLIC_KEY"),
		PrivateKey: os.Getenv("API_PRIVATE_KEY"),
		DatabaseID: os.Getenv("TENANT_1_DATABASE_ID"),
	}
}

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

func LoadAuthConfig() AuthConfig {
	ttl := 24
	if v := os.Getenv("SCHOLARSYNC_JWT_TTL_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			ttl = n
		}
	}

	return AuthConfig{
		// dev default (change for production)
		JWTSecret:   getenv("SCHOLARSYNC_JWT_SECRET", "dev-secret-change-me"),
		JWTIssuer:   getenv("SCHOLARSYNC_JWT_ISSUER", "scholarsync"),
		JWTDuration: time.Duration(ttl) * time.Hour,
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
