package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/core/decoder"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
hdrview:
  log:
    level: "debug"
    format: "json"
  decode:
    entry: "ethertype"
    ether_type: 0x86dd
    tunnel:
      vxlan: true
      geneve: false
      gre: false
      ipip: true
      vxlan_port: 8472
      max_depth: 3
    lax: true
  output:
    format: "yaml"
    show_payload: true
    verify_checksums: true
  pipeline:
    buffer_size: 64
    stats_interval: "2s"
  metrics:
    enabled: true
    listen: "127.0.0.1:9100"
    path: "stats"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Log.Level)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Expected log format json, got %s", cfg.Log.Format)
	}
	if cfg.Output.Format != "yaml" || !cfg.Output.ShowPayload || !cfg.Output.VerifyChecksums {
		t.Errorf("Unexpected output config %+v", cfg.Output)
	}
	if cfg.Pipeline.BufferSize != 64 {
		t.Errorf("Expected buffer size 64, got %d", cfg.Pipeline.BufferSize)
	}
	if cfg.Pipeline.StatsInterval != 2*time.Second {
		t.Errorf("Expected stats interval 2s, got %v", cfg.Pipeline.StatsInterval)
	}
	if cfg.Metrics.Path != "/stats" {
		t.Errorf("Expected metrics path /stats, got %s", cfg.Metrics.Path)
	}

	want := decoder.Config{
		Entry:     decoder.EntryEtherType,
		EtherType: core.EtherTypeIPv6,
		Tunnel: decoder.TunnelConfig{
			VXLAN:      true,
			IPIP:       true,
			VXLANPort:  8472,
			GenevePort: decoder.DefaultGenevePort,
			MaxDepth:   3,
		},
		Lax: true,
	}
	if diff := cmp.Diff(want, cfg.Decode.DecoderConfig()); diff != "" {
		t.Errorf("DecoderConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load defaults: %v", err)
	}

	want := GlobalConfig{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			Outputs: LogOutputsConfig{File: FileOutputConfig{
				Path: "hdrview.log",
				Rotation: RotationConfig{
					MaxSizeMB:  100,
					MaxAgeDays: 30,
					MaxBackups: 5,
					Compress:   true,
				},
			}},
		},
		Decode: DecodeConfig{
			Entry: decoder.EntryAuto,
			Tunnel: TunnelConfig{
				VXLAN:      true,
				Geneve:     true,
				GRE:        true,
				IPIP:       true,
				VXLANPort:  decoder.DefaultVXLANPort,
				GenevePort: decoder.DefaultGenevePort,
				MaxDepth:   2,
			},
		},
		Output:   OutputConfig{Format: "text"},
		Pipeline: PipelineConfig{BufferSize: 1024, StatsInterval: 10 * time.Second},
		Metrics:  MetricsConfig{Listen: ":9091", Path: "/metrics"},
	}
	if diff := cmp.Diff(want, *cfg); diff != "" {
		t.Errorf("Load(\"\") mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, `
hdrview:
  log:
    level: "info"
`)

	t.Setenv("HDRVIEW_LOG_LEVEL", "debug")
	t.Setenv("HDRVIEW_DECODE_ENTRY", "ip")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("Expected log level debug from env var, got %s", cfg.Log.Level)
	}
	if cfg.Decode.Entry != decoder.EntryIP {
		t.Errorf("Expected decode entry ip from env var, got %s", cfg.Decode.Entry)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"log level", "hdrview:\n  log:\n    level: \"loud\"\n"},
		{"log format", "hdrview:\n  log:\n    format: \"xml\"\n"},
		{"log file without path", "hdrview:\n  log:\n    outputs:\n      file:\n        enabled: true\n        path: \"\"\n"},
		{"ethertype without value", "hdrview:\n  decode:\n    entry: \"ethertype\"\n"},
		{"tunnel depth", "hdrview:\n  decode:\n    tunnel:\n      max_depth: 99\n"},
		{"output format", "hdrview:\n  output:\n    format: \"csv\"\n"},
		{"metrics listen", "hdrview:\n  metrics:\n    enabled: true\n    listen: \"\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.Is(err, core.ErrConfigInvalid) {
				t.Errorf("Expected ErrConfigInvalid, got %v", err)
			}
		})
	}
}

func TestLoadFilterPrograms(t *testing.T) {
	cfg, err := Load(writeConfig(t, "hdrview:\n  filter:\n    bpf: \"1,6 0 0 0\"\n    bpf_file: \"ip.bpf\"\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Filter.BPF != "1,6 0 0 0" {
		t.Errorf("Expected inline bpf program, got %q", cfg.Filter.BPF)
	}
	if cfg.Filter.BPFFile != "ip.bpf" {
		t.Errorf("Expected bpf_file ip.bpf, got %q", cfg.Filter.BPFFile)
	}
}

func TestLoadUnknownEntry(t *testing.T) {
	_, err := Load(writeConfig(t, "hdrview:\n  decode:\n    entry: \"token-ring\"\n"))
	if err == nil {
		t.Error("Expected error for unknown decode entry, got nil")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	if err == nil {
		t.Error("Expected error for missing config file, got nil")
	}
}

func TestValidateAppliesBufferDefault(t *testing.T) {
	cfg := GlobalConfig{
		Log:    LogConfig{Level: "INFO", Format: "text"},
		Output: OutputConfig{Format: "json"},
	}
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		t.Fatalf("ValidateAndApplyDefaults failed: %v", err)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected lowercased level, got %s", cfg.Log.Level)
	}
	if cfg.Pipeline.BufferSize != 1024 {
		t.Errorf("Expected default buffer size 1024, got %d", cfg.Pipeline.BufferSize)
	}
}
