package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func TestRenderProgress(t *testing.T) {
	line, err := renderProgress("1500", "1000")
	if err != nil {
		t.Fatalf("renderProgress: %v", err)
	}
	if !strings.HasSuffix(line, "100%") {
		t.Fatalf("progress should clamp to 100%%, got %q", line)
	}
	if _, err := renderProgress("x", "1000"); err == nil {
		t.Fatalf("expected error for bad balance")
	}
}

func setBotEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TELEGRAM_API_TOKEN", "123:abc")
	t.Setenv("TELEGRAM_CHAT_ID", "-100")
	t.Setenv("BOT_OWNER_ID", "1")
	t.Setenv("PAYPAL_CLIENT_ID", "client")
	t.Setenv("PAYPAL_SECRET_KEY", "secret")
}

func TestLedgerMarkThenHas(t *testing.T) {
	setBotEnv(t)
	t.Setenv("LEDGER_BACKEND", "file")
	t.Setenv("LEDGER_FILE_PATH", filepath.Join(t.TempDir(), "announced.log"))

	run := func(args ...string) string {
		cmd := ledgerCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetArgs(args)
		if err := cmd.Execute(); err != nil {
			t.Fatalf("ledger %v: %v", args, err)
		}
		return out.String()
	}

	if out := run("mark", "TX1"); !strings.Contains(out, "TX1\tmarked") {
		t.Fatalf("unexpected mark output %q", out)
	}
	if out := run("mark", "TX1"); !strings.Contains(out, "already present") {
		t.Fatalf("unexpected second mark output %q", out)
	}
	if out := run("has", "TX1", "TX2"); !strings.Contains(out, "TX1\ttrue") || !strings.Contains(out, "TX2\tfalse") {
		t.Fatalf("unexpected has output %q", out)
	}
}

func TestLedgerRefusesMemoryBackend(t *testing.T) {
	setBotEnv(t)
	t.Setenv("LEDGER_BACKEND", "memory")
	cmd := ledgerCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"has", "TX1"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected an error for the in-process memory ledger")
	}
}
