package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/netconn/internal/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Create a default configuration file",
	Long: `Write a default netconn.yaml (or netconn.json with --json) into dir,
the current directory by default.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	name := "netconn.yaml"
	if jsonOutput {
		name = "netconn.json"
	}
	path := filepath.Join(dir, name)

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	cfg := config.DefaultConfig()
	if err := cfg.Save(path); err != nil {
		return fmt.Errorf("creating config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s\n", path)
	fmt.Fprintln(out, "\nEdit this file to configure:")
	fmt.Fprintln(out, "  - Design file patterns")
	fmt.Fprintln(out, "  - Extra primitives and arc prototypes")
	fmt.Fprintln(out, "  - Rule severities and ignored cells")
	fmt.Fprintln(out, "  - Parallelism and the interface cache")
	return nil
}
