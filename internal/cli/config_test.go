package cli

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearServeEnv(t *testing.T) {
	for _, key := range []string{"GISDOC_ADDR", "GISDOC_DB", "REDIS_ADDR", "NATS_URL"} {
		t.Setenv(key, "")
	}
}

func TestLoadServeConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "relay.yaml", `
addr: ":9000"
database: /var/lib/gisdoc.db
redis:
  addr: localhost:6379
allowed_origins: [maps.example.org]
`)

	cfg := DefaultServeConfig()
	require.NoError(t, LoadServeConfig(path, &cfg))
	assert.Equal(t, ":9000", cfg.Addr)
	assert.Equal(t, "/var/lib/gisdoc.db", cfg.Database)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, []string{"maps.example.org"}, cfg.AllowedOrigins)
	require.NoError(t, cfg.Validate())

	typo := writeFile(t, dir, "typo.yaml", "adress: \":9000\"\n")
	err := LoadServeConfig(typo, &cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field adress not found")

	assert.Error(t, LoadServeConfig(filepath.Join(dir, "missing.yaml"), &cfg))
}

func TestServeConfigValidate(t *testing.T) {
	cfg := DefaultServeConfig()
	require.NoError(t, cfg.Validate())

	both := cfg
	both.Redis.Addr = "localhost:6379"
	both.NATS.URL = "nats://localhost:4222"
	assert.ErrorContains(t, both.Validate(), "mutually exclusive")

	noAddr := cfg
	noAddr.Addr = ""
	assert.ErrorContains(t, noAddr.Validate(), "addr is required")
}

func TestServeConfigPrecedence(t *testing.T) {
	clearServeEnv(t)
	path := writeFile(t, t.TempDir(), "relay.yaml", "addr: \":9000\"\ndatabase: file.db\n")

	t.Setenv("GISDOC_DB", "env.db")
	t.Setenv("NATS_URL", "nats://env:4222")

	cmd := NewServeCommand(testRootOptions("text"))
	require.NoError(t, cmd.ParseFlags([]string{"--config", path, "--addr", ":7000"}))

	// The command keeps its own options; read them back through the flags.
	serveOpts := &ServeOptions{
		ConfigFile: cmd.Flags().Lookup("config").Value.String(),
		Addr:       cmd.Flags().Lookup("addr").Value.String(),
	}
	cfg, err := serveOpts.resolve(cmd)
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Addr, "flag beats file")
	assert.Equal(t, "env.db", cfg.Database, "env beats file")
	assert.Equal(t, "nats://env:4222", cfg.NATS.URL)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestServeRejectsConflictingBrokers(t *testing.T) {
	clearServeEnv(t)
	_, err := execute(t, NewServeCommand(testRootOptions("text")),
		"--db", filepath.Join(t.TempDir(), "x.db"), "--redis", "localhost:6379", "--nats", "nats://localhost:4222")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "mutually exclusive")
}

func TestOriginChecker(t *testing.T) {
	anyOrigin := originChecker(nil)
	req := httptest.NewRequest("GET", "/ws/doc", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	assert.True(t, anyOrigin(req))

	check := originChecker([]string{"maps.example.org", "http://localhost:3000"})

	cases := map[string]bool{
		"":                              true,
		"https://maps.example.org":      true,
		"http://localhost:3000":         true,
		"http://localhost:3001":         false,
		"https://evil.example.com":      false,
		"https://maps.example.org.evil": false,
	}
	for origin, want := range cases {
		req := httptest.NewRequest("GET", "/ws/doc", nil)
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		assert.Equal(t, want, check(req), origin)
	}
}
