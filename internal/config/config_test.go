package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: \"9090\"\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Chat.MessageCap != 10 || cfg.Upload.PathPrefix != "pet_images" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Chat.SendLockSeconds <= cfg.LLM.TimeoutSeconds {
		t.Fatalf("send lock %ds must outlive llm timeout %ds", cfg.Chat.SendLockSeconds, cfg.LLM.TimeoutSeconds)
	}
}

func TestLoadRaisesShortSendLock(t *testing.T) {
	cfg, err := Load(writeConfig(t, "llm:\n  timeout_seconds: 120\nchat:\n  send_lock_seconds: 30\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Chat.SendLockSeconds != 120+sendLockMarginSeconds {
		t.Fatalf("expected %d, got %d", 120+sendLockMarginSeconds, cfg.Chat.SendLockSeconds)
	}

	cfg, err = Load(writeConfig(t, "llm:\n  timeout_seconds: 10\nchat:\n  send_lock_seconds: 90\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Chat.SendLockSeconds != 90 {
		t.Fatalf("longer lock must be kept, got %d", cfg.Chat.SendLockSeconds)
	}
}
