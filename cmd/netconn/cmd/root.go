package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/robert-at-pretension-io/netconn/internal/config"
	"github.com/robert-at-pretension-io/netconn/internal/indexer"
	"github.com/robert-at-pretension-io/netconn/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	jsonOutput bool
	cells      []string
	timingPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "netconn",
	Short: "Hierarchical netlist connectivity for schematic designs",
	Long: `netconn computes which ports and nets of a hierarchical schematic design
are electrically connected, publishes each cell's interface, and checks
the result against connectivity rules.

Design files are JSON or YAML libraries of cells. Configuration is read from
netconn.json, .netconn.json or netconn.yaml in the working directory or the
project root, then ~/.config/netconn/.

Examples:
  netconn init                       # Write a default netconn.yaml
  netconn check ./design             # Report rule violations
  netconn nets ./design --cell top{sch}
  netconn tables ./design --delta-from prev.json`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging on stderr")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: search netconn.json/netconn.yaml)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print JSON instead of text")
	rootCmd.PersistentFlags().StringSliceVar(&cells, "cell", nil, "restrict output to these cell keys, e.g. top{sch}")
	rootCmd.PersistentFlags().StringVar(&timingPath, "timing", "", "append per-cell timing events to this JSONL file")
}

// loadConfig reads --config when given, else searches from path.
func loadConfig(path string) (*config.Config, error) {
	if configPath != "" {
		cfg, err := config.LoadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", configPath, err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newIndexer builds an indexer from the global flags.
func newIndexer(path string, reg *prometheus.Registry) (*indexer.Indexer, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	idx := indexer.NewWithConfig(cfg)
	idx.Logger = logger
	idx.Registry = reg
	idx.TimingPath = timingPath
	idx.Cells = cells
	return idx, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
