// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"firestige.xyz/hdrview/internal/config"
	"firestige.xyz/hdrview/internal/core/decoder"
	"firestige.xyz/hdrview/internal/log"
)

var (
	// Global flags
	configFile string

	// globalConfig is loaded before every command except validate.
	globalConfig *config.GlobalConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "hdrview",
	Short: "hdrview - zero-copy packet header decoder",
	Long: `hdrview decodes raw packets into their link, VLAN, IP, extension
and transport headers without copying them.

Features:
  - Ethernet II, 802.1Q/802.1ad, IPv4, IPv6 with extension headers,
    IPsec AH, UDP, TCP and ICMP
  - VXLAN, Geneve, GRE and IP-in-IP decapsulation
  - pcap and pcapng input, text, JSON and YAML output
  - Checksum verification and Prometheus counters`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults only when empty)")

	// Add subcommands
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(validateCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	globalConfig = cfg
	return nil
}

// outputFlags override the decode and output sections of the config.
type outputFlags struct {
	entry       string
	etherType   string
	noTunnels   bool
	lax         bool
	format      string
	showPayload bool
	verify      bool
}

func (o *outputFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.entry, "entry", "", "first layer: auto, ethernet, ethertype or ip")
	f.StringVar(&o.etherType, "ethertype", "", "EtherType of the first header for --entry=ethertype (e.g. 0x86dd)")
	f.BoolVar(&o.noTunnels, "no-tunnels", false, "do not decapsulate tunnels")
	f.BoolVar(&o.lax, "lax", false, "report truncated packets up to the layer that is cut")
	f.StringVarP(&o.format, "format", "o", "", "output format: text, json or yaml")
	f.BoolVar(&o.showPayload, "payload", false, "include payload bytes as hex")
	f.BoolVar(&o.verify, "verify", false, "verify IPv4 and transport checksums")
}

// apply copies the flags that were set onto cfg and revalidates it.
func (o *outputFlags) apply(cmd *cobra.Command, cfg *config.GlobalConfig) error {
	f := cmd.Flags()
	if f.Changed("entry") {
		if err := cfg.Decode.Entry.UnmarshalText([]byte(o.entry)); err != nil {
			return err
		}
	}
	if f.Changed("ethertype") {
		v, err := strconv.ParseUint(o.etherType, 0, 16)
		if err != nil {
			return fmt.Errorf("invalid --ethertype %q: %w", o.etherType, err)
		}
		cfg.Decode.EtherType = uint16(v)
		if !f.Changed("entry") {
			cfg.Decode.Entry = decoder.EntryEtherType
		}
	}
	if o.noTunnels {
		cfg.Decode.Tunnel = config.TunnelConfig{}
	}
	if f.Changed("lax") {
		cfg.Decode.Lax = o.lax
	}
	if f.Changed("format") {
		cfg.Output.Format = o.format
	}
	if f.Changed("payload") {
		cfg.Output.ShowPayload = o.showPayload
	}
	if f.Changed("verify") {
		cfg.Output.VerifyChecksums = o.verify
	}
	return cfg.ValidateAndApplyDefaults()
}
