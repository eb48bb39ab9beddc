package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/hdrview/internal/config"
	"firestige.xyz/hdrview/internal/core/decoder"
	"firestige.xyz/hdrview/internal/filter"
	"firestige.xyz/hdrview/internal/log"
	"firestige.xyz/hdrview/internal/metrics"
	"firestige.xyz/hdrview/internal/pipeline"
	"firestige.xyz/hdrview/internal/report"
	"firestige.xyz/hdrview/internal/source/file"
)

var (
	scanFlags   outputFlags
	scanFile    string
	scanBPF     string
	scanBPFFile string
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Decode every packet of a capture file",
	Long: `Decode every packet of a pcap or pcapng file and print one record
per packet. The decoder entry follows the capture link type unless
--entry is given.

Examples:
  hdrview scan -f trace.pcap
  hdrview scan -f trace.pcapng -o json --verify
  hdrview scan -c hdrview.yml -f trace.pcap     # with metrics enabled in config
  tcpdump -ddd 'udp port 4789' > vxlan.bpf && hdrview scan -f trace.pcap --bpf-file vxlan.bpf
  hdrview scan -f trace.pcap --bpf "$(tcpdump -ddd ip | paste -sd,)"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *globalConfig
		if err := scanFlags.apply(cmd, &cfg); err != nil {
			return err
		}
		if cmd.Flags().Changed("bpf") {
			cfg.Filter.BPF = scanBPF
		}
		if cmd.Flags().Changed("bpf-file") {
			cfg.Filter.BPFFile = scanBPFFile
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return runScan(ctx, &cfg, scanFile, cmd.OutOrStdout())
	},
}

func init() {
	scanFlags.register(scanCmd)
	scanCmd.Flags().StringVarP(&scanFile, "file", "f", "", "capture file to scan (required)")
	scanCmd.Flags().StringVar(&scanBPF, "bpf", "", "only decode packets matching this inline BPF program (tcpdump -ddd output, comma separated)")
	scanCmd.Flags().StringVar(&scanBPFFile, "bpf-file", "", "only decode packets matching this BPF program file (tcpdump -ddd output)")
	scanCmd.MarkFlagRequired("file")
}

// buildFilter chains the configured programs. A packet is decoded only when
// every program accepts it; with none configured the chain accepts all.
func buildFilter(cfg config.FilterConfig) (*filter.Chain, error) {
	var inline, file filter.Filter
	if cfg.BPF != "" {
		f, err := filter.CompileBPF(cfg.BPF)
		if err != nil {
			return nil, err
		}
		inline = f
	}
	if cfg.BPFFile != "" {
		f, err := filter.LoadBPF(cfg.BPFFile)
		if err != nil {
			return nil, err
		}
		file = f
	}
	return filter.NewChain(inline, file), nil
}

func runScan(ctx context.Context, cfg *config.GlobalConfig, path string, out io.Writer) error {
	chain, err := buildFilter(cfg.Filter)
	if err != nil {
		return err
	}
	pf := filter.NewCounterFilter(chain)

	src, err := file.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	sink, err := report.NewWriter(cfg.Output.Format, out)
	if err != nil {
		return err
	}

	if cfg.Metrics.Enabled {
		srv := metrics.NewServer(cfg.Metrics.Listen, cfg.Metrics.Path)
		if err := srv.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(stopCtx)
		}()
	}

	p := pipeline.NewBuilder().
		WithSource(src).
		WithFilter(pf).
		WithDecoder(decoder.New(cfg.Decode.DecoderConfig())).
		WithSink(sink).
		WithReportOptions(report.Options{
			ShowPayload:     cfg.Output.ShowPayload,
			VerifyChecksums: cfg.Output.VerifyChecksums,
		}).
		WithBufferSize(cfg.Pipeline.BufferSize).
		WithStatsInterval(cfg.Pipeline.StatsInterval).
		Build()

	err = p.Run(ctx)
	if errors.Is(err, context.Canceled) {
		// Interrupted: what was read so far has been reported.
		err = nil
	}

	fs := src.Stats()
	log.GetLogger().WithFields(map[string]interface{}{
		"file":     path,
		"format":   src.Format(),
		"packets":  fs.Packets,
		"bytes":    fs.Bytes,
		"errors":   fs.Errors,
		"programs": chain.Len(),
		"accepted": pf.Accepted(),
		"filtered": pf.Rejected(),
	}).Info("scan finished")

	return err
}
