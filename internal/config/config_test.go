package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeTOML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "nevi.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load([]string{"-session-key", "k"})
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "sid", cfg.Session.Cookie)
	require.Equal(t, "remember_me", cfg.Session.RememberCookie)
	require.Equal(t, 24*time.Hour, cfg.Session.TTL)
	require.Equal(t, 10*365*24*time.Hour, cfg.Session.RememberTTL)
	require.Zero(t, cfg.Limiter.MaxFails)
	require.Zero(t, cfg.Limiter.RequestsPerSecond)
	require.Empty(t, cfg.Redis.Addr)
	require.Empty(t, cfg.TrustedProxies)
}

func TestLoad_FileThenFlags(t *testing.T) {
	path := writeTOML(t, `
http_addr = ":9000"
dsn = "postgres://file"
trusted_proxies = ["10.0.0.0/8"]

[session]
key = "from-file"
ttl = "2h"

[redis]
addr = "localhost:6379"

[limiter]
max_fails = 5
requests_per_second = 2.5
`)
	cfg, err := Load([]string{"-config", path, "-addr", ":9100"})
	require.NoError(t, err)
	require.Equal(t, ":9100", cfg.HTTPAddr, "flag wins over file")
	require.Equal(t, "postgres://file", cfg.DSN)
	require.Equal(t, "from-file", cfg.Session.Key)
	require.Equal(t, 2*time.Hour, cfg.Session.TTL)
	require.Equal(t, "localhost:6379", cfg.Redis.Addr)
	require.Equal(t, 5, cfg.Limiter.MaxFails)
	require.Equal(t, 2.5, cfg.Limiter.RequestsPerSecond)
	require.Equal(t, 15*time.Minute, cfg.Limiter.Window, "unset keys keep defaults")
	require.Equal(t, []string{"10.0.0.0/8"}, cfg.TrustedProxies)
}

func TestLoad_TrustedProxiesFlag(t *testing.T) {
	cfg, err := Load([]string{"-session-key", "k", "-trusted-proxies", " 10.0.0.1, 192.168.0.0/16 ,"})
	require.NoError(t, err)
	require.Equal(t, []string{"10.0.0.1", "192.168.0.0/16"}, cfg.TrustedProxies)

	_, err = Load([]string{"-session-key", "k", "-trusted-proxies", "proxy.local"})
	require.ErrorContains(t, err, "trusted proxy")
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(nil)
	require.ErrorContains(t, err, "session key")

	_, err = Load([]string{"-session-key", "k", "-login-max-fails", "3", "-login-window", "0s"})
	require.Error(t, err)

	_, err = Load([]string{"-config", writeTOML(t, "http_addr = [")})
	require.Error(t, err)

	_, err = Load([]string{"-no-such-flag"})
	require.Error(t, err)
}
