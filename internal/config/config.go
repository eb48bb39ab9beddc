// Package config handles global configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/core/decoder"
)

// GlobalConfig represents the top-level configuration.
// Maps to the `hdrview:` root key in YAML.
type GlobalConfig struct {
	Log      LogConfig      `mapstructure:"log"`
	Decode   DecodeConfig   `mapstructure:"decode"`
	Filter   FilterConfig   `mapstructure:"filter"`
	Output   OutputConfig   `mapstructure:"output"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// ─── Decode ───

// DecodeConfig selects where decoding starts and which tunnels are opened.
type DecodeConfig struct {
	Entry decoder.Entry `mapstructure:"entry"` // auto / ethernet / ethertype / ip
	// EtherType is the first header for entry=ethertype, e.g. 0x86dd.
	EtherType uint16       `mapstructure:"ether_type"`
	Tunnel    TunnelConfig `mapstructure:"tunnel"`
	// Lax reports truncated packets up to the layer that is cut instead
	// of failing them.
	Lax bool `mapstructure:"lax"`
}

// TunnelConfig controls tunnel decapsulation.
type TunnelConfig struct {
	VXLAN      bool   `mapstructure:"vxlan"`
	Geneve     bool   `mapstructure:"geneve"`
	GRE        bool   `mapstructure:"gre"`
	IPIP       bool   `mapstructure:"ipip"`
	VXLANPort  uint16 `mapstructure:"vxlan_port"`
	GenevePort uint16 `mapstructure:"geneve_port"`
	MaxDepth   int    `mapstructure:"max_depth"`
}

// DecoderConfig converts the section into a decoder configuration.
func (c DecodeConfig) DecoderConfig() decoder.Config {
	return decoder.Config{
		Entry:     c.Entry,
		EtherType: core.EtherType(c.EtherType),
		Tunnel: decoder.TunnelConfig{
			VXLAN:      c.Tunnel.VXLAN,
			Geneve:     c.Tunnel.Geneve,
			GRE:        c.Tunnel.GRE,
			IPIP:       c.Tunnel.IPIP,
			VXLANPort:  c.Tunnel.VXLANPort,
			GenevePort: c.Tunnel.GenevePort,
			MaxDepth:   c.Tunnel.MaxDepth,
		},
		Lax: c.Lax,
	}
}

// ─── Filter ───

// FilterConfig selects the packets that are decoded at all. Programs are
// classic BPF in the decimal listing printed by `tcpdump -ddd`. When both
// are set a packet must match both.
type FilterConfig struct {
	BPF     string `mapstructure:"bpf"`
	BPFFile string `mapstructure:"bpf_file"`
}

// ─── Output ───

// OutputConfig controls how decoded packets are reported.
type OutputConfig struct {
	Format          string `mapstructure:"format"` // text / json / yaml
	ShowPayload     bool   `mapstructure:"show_payload"`
	VerifyChecksums bool   `mapstructure:"verify_checksums"`
}

// ─── Pipeline ───

// PipelineConfig sizes the scan pipeline.
type PipelineConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
	// StatsInterval is how often running totals are logged, 0 disables.
	StatsInterval time.Duration `mapstructure:"stats_interval"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string           `mapstructure:"level"`  // trace / debug / info / warn / error
	Format  string           `mapstructure:"format"` // json / text
	Outputs LogOutputsConfig `mapstructure:"outputs"`
}

// LogOutputsConfig contains log output destinations besides stderr.
type LogOutputsConfig struct {
	File FileOutputConfig `mapstructure:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Path     string         `mapstructure:"path"`
	Rotation RotationConfig `mapstructure:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb"`  // MB
	MaxAgeDays int  `mapstructure:"max_age_days"` // Days
	MaxBackups int  `mapstructure:"max_backups"`
	Compress   bool `mapstructure:"compress"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `hdrview: ...`.
type configRoot struct {
	HDRView GlobalConfig `mapstructure:"hdrview"`
}

// Load loads configuration from file. An empty path yields the defaults,
// still subject to environment overrides.
// The YAML file uses `hdrview:` as root key; env vars use the HDRVIEW_ prefix
// (e.g., HDRVIEW_LOG_LEVEL).
func Load(path string) (*GlobalConfig, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `hdrview.` key prefix maps to `HDRVIEW_` in env vars via the key
	// replacer (key "hdrview.log.level" → env "HDRVIEW_LOG_LEVEL").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root, viper.DecodeHook(decodeHook())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.HDRView

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// decodeHook turns configuration strings into decoder entries and durations.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
	)
}

// setDefaults sets default values for configuration.
// All keys use the "hdrview." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("hdrview.log.level", "info")
	v.SetDefault("hdrview.log.format", "text")
	v.SetDefault("hdrview.log.outputs.file.enabled", false)
	v.SetDefault("hdrview.log.outputs.file.path", "hdrview.log")
	v.SetDefault("hdrview.log.outputs.file.rotation.max_size_mb", 100)
	v.SetDefault("hdrview.log.outputs.file.rotation.max_age_days", 30)
	v.SetDefault("hdrview.log.outputs.file.rotation.max_backups", 5)
	v.SetDefault("hdrview.log.outputs.file.rotation.compress", true)

	// Decode defaults
	v.SetDefault("hdrview.decode.entry", "auto")
	v.SetDefault("hdrview.decode.ether_type", 0)
	v.SetDefault("hdrview.decode.tunnel.vxlan", true)
	v.SetDefault("hdrview.decode.tunnel.geneve", true)
	v.SetDefault("hdrview.decode.tunnel.gre", true)
	v.SetDefault("hdrview.decode.tunnel.ipip", true)
	v.SetDefault("hdrview.decode.tunnel.vxlan_port", decoder.DefaultVXLANPort)
	v.SetDefault("hdrview.decode.tunnel.geneve_port", decoder.DefaultGenevePort)
	v.SetDefault("hdrview.decode.tunnel.max_depth", 2)
	v.SetDefault("hdrview.decode.lax", false)

	// Filter defaults
	v.SetDefault("hdrview.filter.bpf", "")
	v.SetDefault("hdrview.filter.bpf_file", "")

	// Output defaults
	v.SetDefault("hdrview.output.format", "text")
	v.SetDefault("hdrview.output.show_payload", false)
	v.SetDefault("hdrview.output.verify_checksums", false)

	// Pipeline defaults
	v.SetDefault("hdrview.pipeline.buffer_size", 1024)
	v.SetDefault("hdrview.pipeline.stats_interval", "10s")

	// Metrics defaults
	v.SetDefault("hdrview.metrics.enabled", false)
	v.SetDefault("hdrview.metrics.listen", ":9091")
	v.SetDefault("hdrview.metrics.path", "/metrics")
}

// maxTunnelDepth is the largest accepted decode.tunnel.max_depth.
const maxTunnelDepth = 8

// ValidateAndApplyDefaults validates configuration and applies runtime defaults.
func (cfg *GlobalConfig) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be trace/debug/info/warn/error)", core.ErrConfigInvalid, cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: invalid log format: %s (must be json/text)", core.ErrConfigInvalid, cfg.Log.Format)
	}
	if cfg.Log.Outputs.File.Enabled && cfg.Log.Outputs.File.Path == "" {
		return fmt.Errorf("%w: log.outputs.file.path is required when file output is enabled", core.ErrConfigInvalid)
	}

	// ── Decode validation ──
	if cfg.Decode.Entry == decoder.EntryEtherType && cfg.Decode.EtherType == 0 {
		return fmt.Errorf("%w: decode.ether_type is required when decode.entry=ethertype", core.ErrConfigInvalid)
	}
	if d := cfg.Decode.Tunnel.MaxDepth; d < 0 || d > maxTunnelDepth {
		return fmt.Errorf("%w: decode.tunnel.max_depth %d out of range [0, %d]", core.ErrConfigInvalid, d, maxTunnelDepth)
	}

	// ── Output validation ──
	switch cfg.Output.Format {
	case "text", "json", "yaml":
	default:
		return fmt.Errorf("%w: invalid output format: %s (must be text/json/yaml)", core.ErrConfigInvalid, cfg.Output.Format)
	}

	// ── Pipeline defaults ──
	if cfg.Pipeline.BufferSize <= 0 {
		cfg.Pipeline.BufferSize = 1024
	}
	if cfg.Pipeline.StatsInterval < 0 {
		cfg.Pipeline.StatsInterval = 0
	}

	// ── Metrics validation ──
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", core.ErrConfigInvalid)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			cfg.Metrics.Path = "/" + cfg.Metrics.Path
		}
	}

	return nil
}
