package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/hdrview/internal/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a configuration file",
	Long: `Load and validate a configuration file without decoding anything.
Environment overrides (HDRVIEW_*) are applied as for any other command.

Examples:
  hdrview validate -c hdrview.yml`,
	// The config is what is being checked; do not fail before RunE.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		return runValidate(configFile, cmd.OutOrStdout())
	},
}

func runValidate(path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("INVALID: %w", err)
	}

	var tunnels []string
	t := cfg.Decode.Tunnel
	for _, e := range []struct {
		on   bool
		name string
	}{{t.VXLAN, "vxlan"}, {t.Geneve, "geneve"}, {t.GRE, "gre"}, {t.IPIP, "ipip"}} {
		if e.on {
			tunnels = append(tunnels, e.name)
		}
	}
	if len(tunnels) == 0 {
		tunnels = []string{"none"}
	}

	fmt.Fprintf(out, "VALID: entry=%s tunnels=%s max_depth=%d output=%s metrics=%t\n",
		cfg.Decode.Entry,
		strings.Join(tunnels, ","),
		t.MaxDepth,
		cfg.Output.Format,
		cfg.Metrics.Enabled,
	)
	return nil
}
