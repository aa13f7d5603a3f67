package main

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/weaveai/weave/internal/config"
	"github.com/weaveai/weave/internal/generation"
	"github.com/weaveai/weave/internal/models"
)

func TestReorderArgs(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{"flags after question are moved first", []string{"what", "is", "covered", "--output", "json"}, []string{"--output", "json", "what", "is", "covered"}},
		{"flags first returns unchanged", []string{"--safe=false", "warranty"}, []string{"--safe=false", "warranty"}},
		{"positionals only", []string{"warranty"}, []string{"warranty"}},
		{"empty", []string{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := reorderArgs(tt.args); !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("reorderArgs() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		args     []string
		expected string
	}{
		{[]string{"warranty"}, "warranty"},
		{[]string{"what", "is", "covered?"}, "what is covered?"},
		{[]string{"  ", " "}, ""},
		{nil, ""},
	}
	for _, tt := range tests {
		if got := buildQuery(tt.args); got != tt.expected {
			t.Errorf("buildQuery(%v) = %q, want %q", tt.args, got, tt.expected)
		}
	}
}

func TestBuildEnquiryData(t *testing.T) {
	var extra fieldFlags
	if err := extra.Set("region=emea"); err != nil {
		t.Fatal(err)
	}
	if err := extra.Set("novalue"); err == nil {
		t.Error("expected error for field without '='")
	}
	data := buildEnquiryData("solar", "15000", "immediate", "", extra)
	if !data.Budget.Equal(models.NumberValue(15000)) || data.ProductInterest != "solar" || !data.Extra["region"].Equal(models.StringValue("emea")) {
		t.Errorf("data = %+v", data)
	}

	data = buildEnquiryData("", "", "", "", nil)
	if _, ok := data.Lookup("budget"); ok || data.Extra != nil {
		t.Errorf("empty flags should leave fields absent: %+v", data)
	}

	data = buildEnquiryData("", "lots", "", "", fieldFlags{"seats": "50"})
	if !data.Budget.Equal(models.StringValue("lots")) || !data.Extra["seats"].Equal(models.NumberValue(50)) {
		t.Errorf("lenient parse: %+v", data)
	}
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := &config.Config{
		Storage: config.StorageConfig{
			DatabasePath:   filepath.Join(dir, "content.db"),
			BleveIndexPath: filepath.Join(dir, "bleve"),
		},
		Audit: config.AuditConfig{DatabasePath: filepath.Join(dir, "audit.db")},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestInitializeComponents_localDefaults(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	c, err := initializeComponents(ctx, cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if _, ok := c.Generator.(generation.RefusingGenerator); !ok {
		t.Errorf("without an API key the generator should refuse, got %T", c.Generator)
	}
	if len(c.Rules.Rules()) != 4 {
		t.Errorf("expected the built-in rules, got %d", len(c.Rules.Rules()))
	}

	if _, err := c.Ingester.IngestText(ctx, "faq.md", "Installation takes two days.", "alice"); err != nil {
		t.Fatal(err)
	}
	a := c.Synthesizer.GenerateSafeAnswer(ctx, "installation")
	if !a.Refused || a.Answer != cfg.Answer.RefusalMessage {
		t.Errorf("refusing generator should yield the refusal, got %+v", a)
	}

	p, err := initializeEnquiryPipeline(ctx, cfg, c, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	p.Close()
}

func TestInitializeComponents_unknownBlobBackend(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.BlobBackend = "ftp"
	if _, err := initializeComponents(context.Background(), cfg, zap.NewNop()); err == nil || !strings.Contains(err.Error(), "ftp") {
		t.Errorf("expected unknown backend error, got %v", err)
	}
}

func TestNewAuditSink(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	sink, reader, err := newAuditSink(ctx, config.AuditConfig{Backend: "sqlite", DatabasePath: filepath.Join(dir, "audit.db")})
	if err != nil {
		t.Fatal(err)
	}
	if reader == nil {
		t.Error("sqlite sink should be readable")
	}
	_ = sink.Close()

	sink, reader, err = newAuditSink(ctx, config.AuditConfig{Backend: "http", ServiceURL: "http://audit.local"})
	if err != nil || sink == nil || reader != nil {
		t.Errorf("http sink: sink=%v reader=%v err=%v", sink, reader, err)
	}

	for _, cfg := range []config.AuditConfig{{Backend: "http"}, {Backend: "kafka"}, {Backend: "postgres"}} {
		if _, _, err := newAuditSink(ctx, cfg); err == nil {
			t.Errorf("backend %q: expected error", cfg.Backend)
		}
	}
}

func TestLoadConfig_explicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weave.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0600); err != nil {
		t.Fatal(err)
	}
	cfg, resolved, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if resolved != path || cfg.Server.Port != 9090 {
		t.Errorf("resolved=%s port=%d", resolved, cfg.Server.Port)
	}
}
