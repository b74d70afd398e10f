package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", "secret")
		t.Setenv("AUTH_STATE_KEY", "c3RhdGU=")

		cfg, err := Load(missing)
		require.NoError(t, err)
		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, []string{"localhost:27017"}, cfg.Database.Hosts)
		assert.Equal(t, "crm_console", cfg.Database.Database)
		assert.Equal(t, uint64(20), cfg.Database.MaxPoolSize)
		assert.Equal(t, 10*time.Second, cfg.Database.Timeout)
		assert.False(t, cfg.Kafka.Enabled)
		assert.Equal(t, "crm.messages.inserted", cfg.Kafka.Topic)
		assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
		assert.Equal(t, 15*time.Second, cfg.Console.RequestTimeout)
		assert.Equal(t, []string{"openid", "email", "profile"}, cfg.OAuth.Scopes)
		assert.Equal(t, time.UTC, cfg.Console.Location())
	})

	t.Run("required secret", func(t *testing.T) {
		t.Setenv("AUTH_STATE_KEY", "c3RhdGU=")
		os.Unsetenv("AUTH_JWT_SECRET")

		_, err := Load(missing)
		assert.Error(t, err)
	})

	t.Run("invalid timezone", func(t *testing.T) {
		t.Setenv("AUTH_JWT_SECRET", "secret")
		t.Setenv("AUTH_STATE_KEY", "c3RhdGU=")
		t.Setenv("CONSOLE_TIMEZONE", "Mars/Olympus")

		_, err := Load(missing)
		assert.ErrorContains(t, err, "CONSOLE_TIMEZONE")
	})

	t.Run("dotenv file", func(t *testing.T) {
		t.Setenv("AUTH_STATE_KEY", "c3RhdGU=")
		os.Unsetenv("AUTH_JWT_SECRET")
		os.Unsetenv("KAFKA_BROKERS")
		t.Cleanup(func() {
			os.Unsetenv("AUTH_JWT_SECRET")
			os.Unsetenv("KAFKA_BROKERS")
		})

		file := filepath.Join(t.TempDir(), ".env")
		content := "AUTH_JWT_SECRET=from-file\nKAFKA_BROKERS=k1:9092,k2:9092\n"
		require.NoError(t, os.WriteFile(file, []byte(content), 0o600))

		cfg, err := Load(file)
		require.NoError(t, err)
		assert.Equal(t, "from-file", cfg.Auth.JWTSecret)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	})
}
