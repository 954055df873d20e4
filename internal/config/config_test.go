package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func withTmpConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	for _, k := range []string{"RAKSHAK_API_URL", "RAKSHAK_WS_URL", "RAKSHAK_TIMEOUT", "RAKSHAK_LOG_LEVEL", "RAKSHAK_STORAGE_PATH"} {
		t.Setenv(k, "")
	}
	return filepath.Join(dir, "rakshak")
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	base := withTmpConfig(t)

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c != Default() {
		t.Fatalf("want defaults, got %+v", c)
	}
	if c.StoragePath != filepath.Join(base, "storage.json") {
		t.Fatalf("storage path %q", c.StoragePath)
	}
	if err := c.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	base := withTmpConfig(t)
	if err := os.MkdirAll(base, 0o700); err != nil {
		t.Fatal(err)
	}
	yml := "api_url: https://rescue.example/api\ntimeout: 45s\nlog_level: info\n"
	if err := os.WriteFile(DefaultPath(), []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("RAKSHAK_TIMEOUT", "5s")

	c, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.APIURL != "https://rescue.example/api" || c.LogLevel != "info" {
		t.Fatalf("file values not applied: %+v", c)
	}
	if c.Timeout != 5*time.Second {
		t.Fatalf("env must win over file, timeout=%v", c.Timeout)
	}
}

func TestLoad_Errors(t *testing.T) {
	_ = withTmpConfig(t)

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("explicit missing file must fail")
	}

	p := filepath.Join(t.TempDir(), "bad.yaml")
	_ = os.WriteFile(p, []byte("api_urll: typo\n"), 0o600)
	if _, err := Load(p); err == nil {
		t.Fatalf("unknown keys must fail")
	}

	t.Setenv("RAKSHAK_TIMEOUT", "soon")
	if _, err := Load(""); err == nil || !strings.Contains(err.Error(), "RAKSHAK_TIMEOUT") {
		t.Fatalf("bad duration: %v", err)
	}
}

func TestOverlay_OnlyChangedFlags(t *testing.T) {
	t.Parallel()

	var flags Config
	fs := pflag.NewFlagSet("rk", pflag.ContinueOnError)
	flags.Flags(fs)
	if err := fs.Parse([]string{"--api", "http://10.0.0.2:8080/api", "--timeout", "3s"}); err != nil {
		t.Fatalf("parse: %v", err)
	}

	dst := Config{APIURL: "https://from.file/api", WSURL: "wss://from.file/ws", Timeout: time.Minute}
	Overlay(fs, flags, &dst)
	if dst.APIURL != "http://10.0.0.2:8080/api" || dst.Timeout != 3*time.Second {
		t.Fatalf("flags not applied: %+v", dst)
	}
	if dst.WSURL != "wss://from.file/ws" {
		t.Fatalf("unset flag overwrote value: %q", dst.WSURL)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	c := Default()
	c.StoragePath = "/tmp/x.json"
	c.APIURL = "localhost:8080"
	c.WSURL = "http://localhost:8080/ws"
	c.Timeout = 0
	c.LogLevel = "loud"
	err := c.Validate()
	if err == nil {
		t.Fatalf("want errors")
	}
	for _, want := range []string{"api_url", "ws_url", "timeout", "log_level"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("missing %s in %v", want, err)
		}
	}
}
