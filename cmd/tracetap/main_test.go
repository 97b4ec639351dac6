package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracetap/internal/domain"
	"tracetap/internal/infra/providers"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--quiet"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestMonitorRejectsDuplicateFlags(t *testing.T) {
	_, err := execute(t, "monitor", "-p", "1", "-p", "2", "-s", "checkout")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate argument: -p")

	_, err = execute(t, "monitor", "-f", "a", "-s", "x", "--system", "y")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate argument: -s")
}

func TestMonitorArgumentRules(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"pid and pipe", []string{"-p", "1", "-f", "events", "-s", "x"}, "only one of -p or -f"},
		{"no target", []string{"-s", "x"}, "one of -p or -f is required"},
		{"zero interval", []string{"-f", "events", "-s", "x", "-i", "0"}, "interval must be > 0"},
		{"no system", []string{"-f", "events"}, "-s is required"},
		{"bad interval", []string{"-f", "events", "-s", "x", "-i", "soon"}, "not an integer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, append([]string{"monitor"}, tt.args...)...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMonitorPipeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	stream := `{"provider":"System.Runtime","name":"EventCounters","timestamp":"2024-05-01T10:00:00Z","payload":{"Payload":{"Name":"working-set","DisplayName":"Working Set","DisplayUnits":"MB","IntervalSec":2,"CounterType":"Mean","Mean":48}}}` + "\n"
	require.NoError(t, os.WriteFile(path, []byte(stream), 0o600))

	out, err := execute(t, "monitor", "-f", path, "-s", "checkout", "-i", "2", "--provider", "runtime")
	require.NoError(t, err)
	assert.Equal(t, "Working Set: 48 MB\n", out)
}

func TestMonitorPidRequiresDecoder(t *testing.T) {
	_, err := execute(t, "monitor", "-p", "4242", "-s", "checkout")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Contains(t, err.Error(), "decoder.command")
}

func TestProvidersJSON(t *testing.T) {
	out, err := execute(t, "providers", "-i", "5", "-o", "json")
	require.NoError(t, err)

	var specs []domain.ProviderSpec
	require.NoError(t, json.Unmarshal([]byte(out), &specs))
	assert.Equal(t, providers.Default(5), specs)
}

func TestProvidersIntervalOverridesConfigAliases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracetap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
intervalSeconds: 1
providers:
  - name: runtime
  - name: aspnet
`), 0o600))

	out, err := execute(t, "providers", "--config", path, "-i", "5", "-o", "json")
	require.NoError(t, err)

	var specs []domain.ProviderSpec
	require.NoError(t, json.Unmarshal([]byte(out), &specs))
	require.Len(t, specs, 2)
	for _, spec := range specs {
		value, ok := spec.Argument(providers.IntervalArgument)
		require.True(t, ok, spec.Name)
		assert.Equal(t, "5", value, spec.Name)
	}
}

func TestProvidersYAML(t *testing.T) {
	out, err := execute(t, "providers")
	require.NoError(t, err)
	assert.Contains(t, out, "name: System.Runtime")
	assert.Contains(t, out, "level: Informational")
	assert.Contains(t, out, "value: \"1\"")
}

func TestProvidersUnknownFormat(t *testing.T) {
	_, err := execute(t, "providers", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestValidateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracetap.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
target:
  pipeFile: /tmp/checkout.events
  system: checkout
intervalSeconds: 2
providers:
  - name: runtime
  - name: My.Source
    level: Informational
`), 0o600))

	out, err := execute(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Equal(t, path+": ok\n", out)

	_, err = execute(t, "validate")
	require.Error(t, err)
}
