package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/netconn/internal/hierarchy"
	"github.com/robert-at-pretension-io/netconn/internal/indexer"
)

var levelsCmd = &cobra.Command{
	Use:   "levels <path>",
	Short: "Print the cells in dependency order",
	Long: `Print the library's cells grouped by hierarchy level. Cells of a level
depend only on earlier levels and are computed in parallel. Cells on or
under an instantiation cycle are listed as blocked.`,
	Args: cobra.ExactArgs(1),
	RunE: runLevels,
}

var impactCmd = &cobra.Command{
	Use:   "impact <path> <cell>",
	Short: "Show which cells must be recomputed when a cell changes",
	Args:  cobra.ExactArgs(2),
	RunE:  runImpact,
}

func init() {
	rootCmd.AddCommand(levelsCmd)
	rootCmd.AddCommand(impactCmd)
}

// openService loads the design under path without computing anything.
func openService(path string) (*hierarchy.Service, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	idx := indexer.NewWithConfig(cfg)
	idx.Logger = logger
	_, lib, err := idx.Load(path)
	if err != nil {
		return nil, err
	}
	tk, err := cfg.Tech()
	if err != nil {
		return nil, err
	}
	return hierarchy.New(lib, hierarchy.Options{Tech: tk, Logger: logger})
}

func runLevels(cmd *cobra.Command, args []string) error {
	svc, err := openService(args[0])
	if err != nil {
		return err
	}
	defer svc.Close()

	levels := svc.Levels()
	placed := make(map[string]bool)
	for _, l := range levels {
		for _, c := range l {
			placed[c] = true
		}
	}
	var blocked []string
	for _, key := range svc.Library().Keys() {
		if !placed[key] {
			blocked = append(blocked, key)
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, struct {
			Levels  [][]string `json:"levels"`
			Blocked []string   `json:"blocked"`
		}{levels, nonEmpty(blocked)})
	}
	for i, l := range levels {
		fmt.Fprintf(out, "level %d (%d): %s\n", i, len(l), strings.Join(l, ", "))
	}
	if len(blocked) > 0 {
		fmt.Fprintf(out, "blocked (%d): %s\n", len(blocked), strings.Join(blocked, ", "))
	}
	return nil
}

func runImpact(cmd *cobra.Command, args []string) error {
	svc, err := openService(args[0])
	if err != nil {
		return err
	}
	defer svc.Close()

	key := args[1]
	if _, ok := svc.Library().Cell(key); !ok {
		return fmt.Errorf("unknown cell %s", key)
	}
	report := svc.Impact(key)

	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, report)
	}
	if len(report.Levels) == 0 {
		fmt.Fprintf(out, "%s: no dependent cells\n", key)
		return nil
	}
	fmt.Fprint(out, hierarchy.FormatImpactReport(report))
	return nil
}

func nonEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
