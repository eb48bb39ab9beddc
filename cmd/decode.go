package cmd

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/hdrview/internal/config"
	"firestige.xyz/hdrview/internal/core"
	"firestige.xyz/hdrview/internal/core/decoder"
	"firestige.xyz/hdrview/internal/report"
)

var decodeFlags outputFlags

var decodeCmd = &cobra.Command{
	Use:   "decode [hex...]",
	Short: "Decode packets given as hex",
	Long: `Decode one packet per argument, or one per line of stdin when no
argument is given. Whitespace, ':' and '-' separators and a leading 0x
are ignored.

Examples:
  hdrview decode 00112233445566778899aabb0800450000...
  hdrview decode --entry ip -o json 4500001c...
  xxd -p frame.bin | tr -d '\n' | hdrview decode`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *globalConfig
		if err := decodeFlags.apply(cmd, &cfg); err != nil {
			return err
		}
		return runDecode(&cfg, args, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	decodeFlags.register(decodeCmd)
}

// runDecode decodes each input as one Ethernet (or entry-selected) packet.
// Decode errors are part of the output, not a command failure.
func runDecode(cfg *config.GlobalConfig, args []string, in io.Reader, out io.Writer) error {
	w, err := report.NewWriter(cfg.Output.Format, out)
	if err != nil {
		return err
	}
	dec := decoder.New(cfg.Decode.DecoderConfig())
	opts := report.Options{ShowPayload: cfg.Output.ShowPayload, VerifyChecksums: cfg.Output.VerifyChecksums}

	var index uint64
	decodeOne := func(s string) error {
		data, err := parseHex(s)
		if err != nil {
			return err
		}
		index++
		raw := core.RawPacket{Data: data, CaptureLen: uint32(len(data)), OrigLen: uint32(len(data)), Index: index}
		res, derr := dec.Decode(raw)
		rec := report.Build(raw, res, derr, opts)
		return w.Write(&rec)
	}

	if len(args) > 0 {
		for _, a := range args {
			if err := decodeOne(a); err != nil {
				return err
			}
		}
		return w.Flush()
	}

	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := decodeOne(line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}
	if index == 0 {
		return errors.New("no packet given")
	}
	return w.Flush()
}

var hexSeparators = strings.NewReplacer(" ", "", "\t", "", ":", "", "-", "")

// parseHex parses "00:11:22", "0x001122" or "00 11 22".
func parseHex(s string) ([]byte, error) {
	s = hexSeparators.Replace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex packet: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty packet")
	}
	return data, nil
}
