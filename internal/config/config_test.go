package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sizecheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func Test_Load_Defaults(t *testing.T) {
	t.Setenv("SIZECHECK_CONFIG", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, EngineDagger, cfg.Engine)
	assert.Equal(t, "node:20-alpine", cfg.Image)
	assert.Equal(t, "npm", cfg.Installer)
	assert.Equal(t, []string{"install"}, cfg.InstallArgs)
	assert.Equal(t, "du", cfg.DiskUsageTool)
	assert.Equal(t, []string{"-sh"}, cfg.DiskUsageArgs)
	assert.Equal(t, 5*time.Minute, cfg.CommandTimeout)
	assert.False(t, cfg.FailOnNonZeroExit)
}

func Test_Load_File(t *testing.T) {
	path := writeConfigFile(t, `
engine: docker
image: node:22-slim
command_timeout: 90s
max_output_bytes: 2048
fail_on_nonzero_exit: true
install_args: ["install", "--no-audit"]
log_format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, EngineDocker, cfg.Engine)
	assert.Equal(t, "node:22-slim", cfg.Image)
	assert.Equal(t, 90*time.Second, cfg.CommandTimeout)
	assert.Equal(t, int64(2048), cfg.MaxOutputBytes)
	assert.True(t, cfg.FailOnNonZeroExit)
	assert.Equal(t, []string{"install", "--no-audit"}, cfg.InstallArgs)
	assert.Equal(t, "/app", cfg.WorkDir)
}

func Test_Load_EnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "image: node:22-slim\n")
	t.Setenv("SIZECHECK_IMAGE", "node:18")
	t.Setenv("SIZECHECK_COMMAND_TIMEOUT", "250ms")
	t.Setenv("SIZECHECK_INSTALL_ARGS", "install --omit=dev")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "node:18", cfg.Image)
	assert.Equal(t, 250*time.Millisecond, cfg.CommandTimeout)
	assert.Equal(t, []string{"install", "--omit=dev"}, cfg.InstallArgs)
}

func Test_Load_ConfigFromEnv(t *testing.T) {
	t.Setenv("SIZECHECK_CONFIG", writeConfigFile(t, "addr: \":9090\"\n"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
}

func Test_Load_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "bad duration", env: map[string]string{"SIZECHECK_COMMAND_TIMEOUT": "soon"}},
		{name: "bad bool", env: map[string]string{"SIZECHECK_FAIL_ON_NONZERO_EXIT": "maybe"}},
		{name: "bad int", env: map[string]string{"SIZECHECK_MAX_OUTPUT_BYTES": "lots"}},
		{name: "bad engine", env: map[string]string{"SIZECHECK_ENGINE": "webcontainer"}},
		{name: "bad log level", env: map[string]string{"SIZECHECK_LOG_LEVEL": "loud"}},
		{name: "bad log format", env: map[string]string{"SIZECHECK_LOG_FORMAT": "xml"}},
		{name: "bad yaml", file: "engine: [dagger"},
		{name: "negative cap", file: "max_output_bytes: -1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SIZECHECK_CONFIG", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfigFile(t, tt.file)
			}

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func Test_Load_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func Test_NewLogger(t *testing.T) {
	cfg := Default()
	cfg.LogFormat = "json"
	cfg.LogLevel = "warn"

	var buf bytes.Buffer
	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "package", "react")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"package":"react"`)
}

func Test_ComponentConfigs(t *testing.T) {
	cfg := Default()
	cfg.FailOnNonZeroExit = true

	env := cfg.Environment()
	assert.Equal(t, cfg.Image, env.Image)
	assert.Equal(t, cfg.WorkDir, env.WorkDir)
	assert.Equal(t, cfg.BootTimeout, env.BootTimeout)

	checker := cfg.Checker()
	assert.Equal(t, cfg.Installer, checker.Installer)
	assert.True(t, checker.FailOnNonZeroExit)

	checker.InstallArgs[0] = "ci"
	assert.Equal(t, "install", cfg.InstallArgs[0])
}
