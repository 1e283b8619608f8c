package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestImportCommand(t *testing.T) {
	file := writeFile(t, "data.xml", `<smp-data version="1.0">
  <servicegroup participantidentifier="iso6523-actorid-upis::9915:a" owner="nobody">
    <serviceinformation documenttypeidentifier="busdox-docid-qns::D1">
      <process processidentifier="cenbii-procid-ubl::P1">
        <endpoint transportprofile="busdox-transport-as2" endpointreference="https://ap.example.org/as2"/>
      </process>
    </serviceinformation>
  </servicegroup>
</smp-data>`)

	out, err := run(t, "import", "--default-owner", "admin", file)
	require.NoError(t, err)
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "create-service-group")
	assert.Contains(t, out, "[iso6523-actorid-upis::9915:a]")

	out, err = run(t, "import", file)
	assert.Error(t, err)
	assert.Contains(t, out, "aborted")
}

func TestImportCommand_MissingFile(t *testing.T) {
	_, err := run(t, "import", filepath.Join(t.TempDir(), "missing.xml"))
	assert.Error(t, err)
}

func TestServiceGroupCommands(t *testing.T) {
	cfg := writeFile(t, "smp.yaml", "users:\n  - id: alice\n")

	out, err := run(t, "-c", cfg, "servicegroup", "create", "--owner", "alice", "iso6523-actorid-upis::9915:A")
	require.NoError(t, err)
	assert.Equal(t, "created iso6523-actorid-upis::9915:a\n", out)

	_, err = run(t, "-c", cfg, "sg", "create", "--owner", "mallory", "iso6523-actorid-upis::9915:b")
	assert.ErrorContains(t, err, "unknown owner")

	// each invocation starts from an empty in-memory registry
	_, err = run(t, "-c", cfg, "servicegroup", "delete", "iso6523-actorid-upis::9915:a")
	assert.ErrorContains(t, err, "not found")
}

func TestExportCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xml")
	_, err := run(t, "export", "-o", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `<smp-data version="1.0"`)
}

func TestSMLVerifyRequiresZone(t *testing.T) {
	_, err := run(t, "sml", "verify", "iso6523-actorid-upis::9915:a")
	assert.ErrorContains(t, err, "sml.dns.zone")
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger(&bytes.Buffer{}, "debug", "json")
	assert.NoError(t, err)
	_, err = newLogger(&bytes.Buffer{}, "loud", "text")
	assert.Error(t, err)
	_, err = newLogger(&bytes.Buffer{}, "info", "xml")
	assert.Error(t, err)
}
