package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every env var config.Load reads so each test starts from a
// blank slate regardless of ordering or the outer process environment. It
// restores the prior value (or absence) once the test completes; a present
// but empty env var would itself override viper's defaults, so this must
// unset rather than set-to-empty.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"API_PORT", "API_THREADS", "MAX_FILE_SIZE_MB", "DB_DSN",
		"REDIS_ADDR", "REDIS_PASSWORD",
		"OBJECT_STORE_ENDPOINT", "OBJECT_STORE_ACCESS_KEY", "OBJECT_STORE_SECRET_KEY",
		"OBJECT_STORE_PUBLIC_URL", "OBJECT_STORE_BUCKET", "OBJECT_STORE_PRESIGN_TTL_SECONDS",
		"KAFKA_BROKERS", "JWT_SECRET", "JWT_ACCESS_TTL_SECONDS", "JWT_REFRESH_TTL_SECONDS",
	} {
		prev, had := os.LookupEnv(key)
		os.Unsetenv(key)
		t.Cleanup(func(key, prev string, had bool) func() {
			return func() {
				if had {
					os.Setenv(key, prev)
				} else {
					os.Unsetenv(key)
				}
			}
		}(key, prev, had))
	}
}

func TestLoad_MissingJWTSecretFails(t *testing.T) {
	clearEnv(t)
	_, err := Load()
	assert.Error(t, err, "expected an error when JWT_SECRET is unset")
}

func TestLoad_AppliesDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "a-secret-value")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.APIPort)
	assert.Equal(t, 25, cfg.MaxFileSizeMB)
	assert.Equal(t, "chat-media", cfg.ObjectStoreBucket)
	assert.Equal(t, 900*time.Second, cfg.ObjectStorePresignTTL)
	assert.Equal(t, 900*time.Second, cfg.JWTAccessTTL)
	assert.Equal(t, 1209600*time.Second, cfg.JWTRefreshTTL)
	assert.Empty(t, cfg.KafkaBrokers, "want empty when KAFKA_BROKERS unset")
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "a-secret-value")
	t.Setenv("API_PORT", "9090")
	t.Setenv("KAFKA_BROKERS", "broker-a:9092,broker-b:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.APIPort)
	assert.Equal(t, []string{"broker-a:9092", "broker-b:9092"}, cfg.KafkaBrokers)
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a", []string{"a"}},
		{"a,b,c", []string{"a", "b", "c"}},
		{"", []string{""}},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, splitCSV(tc.in), "splitCSV(%q)", tc.in)
	}
}
