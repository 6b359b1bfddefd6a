package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "urna.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, `
serviceName: urna-test
httpPort: "9090"
databaseDriver: SQLite
sqlitePath: /tmp/urna-test.sqlite
lockTimeout: 750ms
kafkaBrokers: ["broker-1:9092", " ", "broker-2:9092"]
outboxPollInterval: 5s
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "urna-test", cfg.ServiceName)
	require.Equal(t, "9090", cfg.HTTPPort)
	require.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	require.Equal(t, 750*time.Millisecond, cfg.LockTimeout)
	require.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.KafkaBrokers)
	require.Equal(t, 5*time.Second, cfg.OutboxPollInterval)
	require.Equal(t, 100, cfg.OutboxBatchSize)
	require.True(t, cfg.EnableAuditConsumer)
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
databaseDriver: sqlite
sqlitePath: from-file.sqlite
httpPort: "9090"
`)
	t.Setenv("URNA_HTTP_PORT", "7070")
	t.Setenv("SQLITE_PATH", "from-env.sqlite")
	t.Setenv("URNA_CORS_ALLOWED_ORIGINS", "https://mesa.example.uy,https://corte.example.uy")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "7070", cfg.HTTPPort)
	require.Equal(t, "from-env.sqlite", cfg.SQLitePath)
	require.Equal(t, []string{"https://mesa.example.uy", "https://corte.example.uy"}, cfg.CORSAllowedOrigins)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	for name, body := range map[string]string{
		"postgres without dsn": "databaseDriver: postgres\n",
		"unknown driver":       "databaseDriver: oracle\n",
		"zero batch":           "databaseDriver: sqlite\noutboxBatchSize: 0\n",
		"negative lock":        "databaseDriver: sqlite\nlockTimeout: -1s\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "error reading config file")
}
