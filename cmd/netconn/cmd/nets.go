package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/netconn/internal/equiv"
	"github.com/robert-at-pretension-io/netconn/internal/indexer"
	"github.com/robert-at-pretension-io/netconn/internal/netcell"
)

var netsRelation string

var netsCmd = &cobra.Command{
	Use:   "nets <path>",
	Short: "Print the nets of each cell",
	Long: `Compute every cell under path and print its interface and nets.

--relation selects the equivalence: N (strict), P (through resistors) or
A (through all resistor kinds). Use --cell to print selected cells only.`,
	Args: cobra.ExactArgs(1),
	RunE: runNets,
}

func init() {
	rootCmd.AddCommand(netsCmd)
	netsCmd.Flags().StringVar(&netsRelation, "relation", "N", "equivalence relation: N, P or A")
}

// cellNets is the JSON shape of one cell in the nets output.
type cellNets struct {
	Cell       string             `json:"cell"`
	Revision   string             `json:"revision,omitempty"`
	Relation   string             `json:"relation"`
	Error      string             `json:"error,omitempty"`
	Exports    []netcell.PortInfo `json:"exports,omitempty"`
	Nets       []netcell.Net      `json:"nets,omitempty"`
	Attachment []int              `json:"attachments,omitempty"`
}

func runNets(cmd *cobra.Command, args []string) error {
	kind, err := equiv.ParseKind(netsRelation)
	if err != nil {
		return err
	}
	idx, err := newIndexer(args[0], nil)
	if err != nil {
		return err
	}
	res, err := idx.Run(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	list := collectNets(res, kind)
	out := cmd.OutOrStdout()
	if jsonOutput {
		return writeJSON(out, list)
	}
	printNets(out, list)
	return nil
}

// collectNets follows the reported cell rows, so ignored and unselected
// cells are left out.
func collectNets(res *indexer.Result, kind equiv.Kind) []cellNets {
	list := make([]cellNets, 0, len(res.Tables.Cells))
	for _, row := range res.Tables.Cells {
		entry := cellNets{Cell: row.Cell, Revision: row.Revision, Relation: kind.String(), Error: row.Error}
		r, ok := res.Report.Result(row.Cell)
		if ok && r.Err == nil && r.Cell != nil {
			nl := r.Cell.Netlist(kind)
			entry.Exports = r.Cell.Interface.Exports
			entry.Nets = nl.Nets
			entry.Attachment = nl.Attachments()
		}
		list = append(list, entry)
	}
	return list
}

func printNets(out io.Writer, list []cellNets) {
	for i, c := range list {
		if i > 0 {
			fmt.Fprintln(out)
		}
		rev := c.Revision
		if len(rev) > 12 {
			rev = rev[:12]
		}
		fmt.Fprintf(out, "%s [%s] rev %s\n", c.Cell, c.Relation, rev)
		if c.Error != "" {
			fmt.Fprintf(out, "  error: %s\n", c.Error)
			continue
		}
		for _, p := range c.Exports {
			fmt.Fprintf(out, "  export %s @%d width %d", p.Name, p.Offset, p.Width)
			if p.Characteristic != "" {
				fmt.Fprintf(out, " (%s)", p.Characteristic)
			}
			fmt.Fprintln(out)
		}
		for _, n := range c.Nets {
			var parts []string
			if len(n.Names) > 0 {
				parts = append(parts, "names="+strings.Join(n.Names, ","))
			}
			if len(n.Globals) > 0 {
				parts = append(parts, "globals="+strings.Join(n.Globals, ","))
			}
			if n.Exported {
				parts = append(parts, "exported")
			}
			if n.ID < len(c.Attachment) {
				parts = append(parts, fmt.Sprintf("attachments=%d", c.Attachment[n.ID]))
			}
			fmt.Fprintf(out, "  net %d: %s\n", n.ID, strings.Join(parts, " "))
		}
	}
}
