package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/leapstack-labs/scfdata/internal/cli/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()

	want := []string{"build", "splits", "show", "verify", "score", "runs", "attempts", "frames", "datasets", "version", "completion"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	for _, flag := range []string{"config", "data-dir", "resources-dir", "state", "verbose", "output"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestRoot_LoadsConfigAndFlags(t *testing.T) {
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	t.Cleanup(func() { cfgFile = "" })

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "scfdata.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output: markdown\n"), 0o600))

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"--config", cfgPath, "-o", "json", "datasets"})
	require.NoError(t, root.ExecuteContext(context.Background()))

	var views []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &views), out.String())
	assert.Len(t, views, 3)

	cfg := config.GetCurrentConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "json", cfg.OutputFormat, "flag overrides file")
	assert.Equal(t, filepath.Join(dir, config.DefaultDataDir), cfg.DataDir)
}

func TestRoot_InvalidConfig(t *testing.T) {
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)
	t.Cleanup(func() { cfgFile = "" })

	cfgPath := filepath.Join(t.TempDir(), "scfdata.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("datasets:\n  nope: {}\n"), 0o600))

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"--config", cfgPath, "datasets"})
	err := root.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown dataset")
}

func TestVersionTemplate(t *testing.T) {
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"--version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "scfdata "+Version+"\n", out.String())
}

func TestGetConfig_Default(t *testing.T) {
	cfg := GetConfig(context.Background())
	assert.Equal(t, config.DefaultDataDir, cfg.DataDir)
	assert.Equal(t, config.DefaultStateFile, cfg.StatePath)
	assert.NotNil(t, GetRenderer(context.Background()))
}
