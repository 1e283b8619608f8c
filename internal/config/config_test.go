package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-smp/internal/tracing"
)

func TestLoad(t *testing.T) {
	t.Setenv("SMP_TEST_MONGO", "mongodb://db.example.org:27017")
	path := filepath.Join(t.TempDir(), "smp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
smp:
  id: SMP-TEST
storage:
  type: mongodb
  mongodb:
    uri: ${SMP_TEST_MONGO}
sml:
  enabled: true
  url: https://sml.example.org
  timeout: 5s
  dns:
    zone: sml.example.org
import:
  workers: 4
  defaultOwner: admin
users:
  - id: alice
    name: Alice
observability:
  tracing:
    enabled: true
    exporter: stdout
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "SMP-TEST", cfg.SMP.ID)
	assert.Equal(t, "mongodb://db.example.org:27017", cfg.Storage.MongoDB.URI)
	assert.Equal(t, "smp", cfg.Storage.MongoDB.Database)
	assert.Equal(t, 5*time.Second, cfg.SML.Timeout)
	assert.Equal(t, "sml.example.org", cfg.SML.DNS.Zone)
	assert.Equal(t, 4, cfg.Import.Workers)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/metrics", cfg.Observability.Metrics.Path)
	assert.Equal(t, tracing.ExporterStdout, cfg.Observability.Tracing.Exporter)

	dir := cfg.UserDirectory()
	assert.Equal(t, []string{"admin", "alice"}, dir.IDs())
	u, ok := dir.Resolve(context.Background(), "alice")
	require.True(t, ok)
	assert.Equal(t, "Alice", u.Name)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, StorageMemory, cfg.Storage.Type)
	assert.Equal(t, 8, cfg.Import.Workers)
	assert.Equal(t, tracing.ExporterNone, cfg.Observability.Tracing.Exporter)

	f := cfg.IdentifierFactory()
	p, err := f.ParseParticipant("iso6523-actorid-upis::9915:ABC")
	require.NoError(t, err)
	assert.Equal(t, "9915:abc", p.Value)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown storage", "storage:\n  type: redis\n", "storage.type"},
		{"mongodb without uri", "storage:\n  type: mongodb\n", "storage.mongodb.uri"},
		{"sml without url", "sml:\n  enabled: true\n", "sml.url"},
		{"sml half tls", "sml:\n  enabled: true\n  url: https://sml\n  certFile: a.crt\n", "sml.certFile"},
		{"directory without url", "directory:\n  enabled: true\n", "directory.url"},
		{"negative workers", "import:\n  workers: -1\n", "import.workers"},
		{"bad yaml", "smp: [", "parsing config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "reading config file")
}
