package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/netconn/internal/indexer"
)

var showMetrics bool

var checkCmd = &cobra.Command{
	Use:   "check <path>",
	Short: "Check connectivity rules",
	Long: `Compute every cell under path and report rule violations.

path is a project directory or a single design file. The command fails when
any violation has error severity.`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	rootCmd.AddCommand(checkCmd)
	checkCmd.Flags().BoolVar(&showMetrics, "metrics", false, "print engine counters after the summary")
}

func runCheck(cmd *cobra.Command, args []string) error {
	reg := prometheus.NewRegistry()
	idx, err := newIndexer(args[0], reg)
	if err != nil {
		return err
	}
	res, err := idx.Run(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		if err := writeJSON(out, res); err != nil {
			return fmt.Errorf("failed to encode JSON output: %w", err)
		}
	} else {
		printCheck(out, res)
		if showMetrics {
			if err := printMetrics(out, reg); err != nil {
				return err
			}
		}
	}

	if res.HasErrors() {
		return fmt.Errorf("%d error(s) found", res.Summary.Errors)
	}
	return nil
}

func printCheck(out io.Writer, res *indexer.Result) {
	if len(res.Violations) > 0 {
		fmt.Fprintf(out, "\n=== Rule Violations ===\n")
		for _, v := range res.Violations {
			icon := "ℹ"
			if v.Severity == "error" {
				icon = "✗"
			} else if v.Severity == "warning" {
				icon = "⚠"
			}
			loc := v.Cell
			if v.Node >= 0 {
				loc = fmt.Sprintf("%s:node %d", v.Cell, v.Node)
			}
			fmt.Fprintf(out, "%s [%s] %s - %s\n", icon, v.Rule, loc, v.Message)
		}
	}

	fmt.Fprintf(out, "\n=== Rule Summary ===\n")
	fmt.Fprintf(out, "  Errors:   %d\n", res.Summary.Errors)
	fmt.Fprintf(out, "  Warnings: %d\n", res.Summary.Warnings)
	fmt.Fprintf(out, "  Info:     %d\n", res.Summary.Info)

	fmt.Fprintf(out, "\n=== Analysis Summary ===\n")
	fmt.Fprintf(out, "  Library:  %s\n", res.Library)
	fmt.Fprintf(out, "  Files:    %d\n", len(res.Files))
	fmt.Fprintf(out, "  Cells:    %d (%d failed)\n", res.Summary.Cells, res.Summary.FailedCells)
	fmt.Fprintf(out, "  Levels:   %d\n", len(res.Levels))
	fmt.Fprintf(out, "  Computed: %d (memo %d, disk %d)\n", res.Stats.Computed, res.Stats.MemoHits, res.Stats.DiskHits)
	if res.PolicyCached {
		fmt.Fprintf(out, "  Rules:    cached\n")
	}
	fmt.Fprintf(out, "  Time:     %s\n", formatDuration(res.Duration))

	if res.Previous != nil {
		delta := res.Delta()
		if !delta.Empty() {
			fmt.Fprintf(out, "\n=== Changes Since Last Run ===\n")
			fmt.Fprintf(out, "  Previous: %s\n", res.PreviousSession)
			fmt.Fprintf(out, "  +%d / -%d rows\n", delta.Added.Len(), delta.Removed.Len())
		}
	}
}

// printMetrics prints the counters and histogram counts of reg.
func printMetrics(out io.Writer, reg *prometheus.Registry) error {
	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			var labels []string
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			name := mf.GetName()
			if len(labels) > 0 {
				name += "{" + strings.Join(labels, ",") + "}"
			}
			switch {
			case m.GetCounter() != nil:
				lines = append(lines, fmt.Sprintf("  %s %g", name, m.GetCounter().GetValue()))
			case m.GetHistogram() != nil:
				lines = append(lines, fmt.Sprintf("  %s count=%d sum=%.3fs", name, m.GetHistogram().GetSampleCount(), m.GetHistogram().GetSampleSum()))
			}
		}
	}
	sort.Strings(lines)
	fmt.Fprintf(out, "\n=== Metrics ===\n")
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
	return nil
}

func formatDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}
