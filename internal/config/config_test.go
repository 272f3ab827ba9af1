package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFromYAML(t *testing.T) {
	cfg, err := FromYAML([]byte(`
marketplace:
  name: testmarket
  admin: admin-1
token:
  mint: GIG
escrow:
  deposit: 25
webhooks:
  - url: https://hooks.example/x
    secret: s3cret
    events: ["task.approved"]
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Marketplace.Name != "testmarket" || cfg.Token.Mint != "GIG" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.Escrow.Deposit != 25 {
		t.Fatalf("deposit = %d, want 25", cfg.Escrow.Deposit)
	}
	if len(cfg.Webhooks) != 1 || cfg.Webhooks[0].URL != "https://hooks.example/x" {
		t.Fatalf("webhooks = %+v", cfg.Webhooks)
	}
}

func TestValidate(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}

	bad := Default()
	bad.Marketplace.Name = ""
	if err := bad.Validate(); err == nil {
		t.Fatal("missing name should fail")
	}

	bad = Default()
	bad.Escrow.Deposit = -1
	if err := bad.Validate(); err == nil {
		t.Fatal("negative deposit should fail")
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil {
		t.Fatalf("missing file should yield defaults: %v", err)
	}
	if cfg.Token.Mint == "" {
		t.Fatal("defaults missing mint")
	}

	if err := os.WriteFile(filepath.Join(dir, "gigledger.yml"), []byte(GenerateDefault()), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err = LoadOptional(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("generated default should validate: %v", err)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "gigledger.yml"), []byte("marketplace:\n  name: \"\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	_, err := Load(dir)
	if err == nil || !strings.Contains(err.Error(), "marketplace.name") {
		t.Fatalf("got %v, want marketplace.name error", err)
	}
}
