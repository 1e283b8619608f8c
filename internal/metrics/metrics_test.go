package metrics

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sirosfoundation/go-smp/internal/bulk"
	"github.com/sirosfoundation/go-smp/internal/registry"
	"github.com/sirosfoundation/go-smp/internal/sml"
	"github.com/sirosfoundation/go-smp/internal/storage"
	"github.com/sirosfoundation/go-smp/pkg/identifier"
)

func newManagers(m *Metrics) *registry.Managers {
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	return registry.New(registry.Options{
		Store:     storage.NewMemoryRegistry(quiet),
		Hook:      sml.NewMemoryHook(quiet),
		Observers: []registry.Observer{m},
		Logger:    quiet,
	})
}

func TestMetrics_RegistryEvents(t *testing.T) {
	m := New()
	managers := newManagers(m)
	m.WatchRegistry(managers)

	ctx := context.Background()
	pid := identifier.MustParseParticipant("iso6523-actorid-upis::9915:a")
	_, err := managers.ServiceGroups.Create(ctx, "alice", pid, "", true)
	require.NoError(t, err)
	_, err = managers.ServiceGroups.Update(ctx, pid, "bob", "")
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegistryEvents.WithLabelValues(string(registry.EventServiceGroupCreated))))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RegistryEvents.WithLabelValues(string(registry.EventServiceGroupUpdated))))

	body := scrape(t, m)
	assert.Contains(t, body, "smp_service_groups 1")
	assert.Contains(t, body, "smp_redirects 0")
	assert.Contains(t, body, "go_goroutines")
}

func TestMetrics_Import(t *testing.T) {
	m := New()
	managers := newManagers(m)
	im := bulk.NewImporter(bulk.Config{Managers: managers, Recorder: m, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	doc := `<smp-data version="1.0">
  <servicegroup participantidentifier="iso6523-actorid-upis::9915:a" owner="alice"/>
  <servicegroup participantidentifier="iso6523-actorid-upis::9915:b" owner="alice"/>
</smp-data>`
	res, err := im.ImportReader(context.Background(), strings.NewReader(doc), bulk.Options{})
	require.NoError(t, err)
	m.ObserveImport(res)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ImportActions.WithLabelValues(bulk.ActionCreateServiceGroup, "success")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ImportActions.WithLabelValues(bulk.ActionCreateServiceGroup, "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Imports.WithLabelValues(string(bulk.StatusCompleted))))
	assert.Equal(t, 1, testutil.CollectAndCount(m.ImportDuration))
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}
