package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/netconn/internal/facts"
	"github.com/robert-at-pretension-io/netconn/internal/validator"
)

var (
	tablesOutput string
	deltaFrom    string
	deltaOut     string
)

var tablesCmd = &cobra.Command{
	Use:   "tables <path>",
	Short: "Write the published connectivity tables as JSON",
	Long: `Compute every cell under path and write the relational tables
(cells, globals, exports, equivs, nets, unconnected, diagnostics).

With --delta-from the rows added and removed since a previous tables file
are written to --delta-out, or to stdout after the tables when --output
is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
	tablesCmd.Flags().StringVarP(&tablesOutput, "output", "o", "", "write tables JSON to file (default: stdout)")
	tablesCmd.Flags().StringVar(&deltaFrom, "delta-from", "", "previous tables JSON to compute a delta from")
	tablesCmd.Flags().StringVar(&deltaOut, "delta-out", "", "write delta JSON to file (default: stdout)")
}

func runTables(cmd *cobra.Command, args []string) error {
	if deltaOut != "" && deltaFrom == "" {
		return fmt.Errorf("--delta-out requires --delta-from")
	}
	if deltaFrom != "" && deltaOut == "" && tablesOutput == "" {
		return fmt.Errorf("--delta-from needs --output or --delta-out so tables and delta are not mixed on stdout")
	}

	idx, err := newIndexer(args[0], nil)
	if err != nil {
		return err
	}
	res, err := idx.Run(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if tablesOutput != "" {
		if err := writeJSONFile(tablesOutput, res.Tables); err != nil {
			return fmt.Errorf("writing tables: %w", err)
		}
	} else if err := writeJSON(out, res.Tables); err != nil {
		return fmt.Errorf("encoding tables: %w", err)
	}

	if deltaFrom == "" {
		return nil
	}
	prev, err := readTables(deltaFrom)
	if err != nil {
		return fmt.Errorf("reading delta-from: %w", err)
	}
	delta := facts.ComputeDelta(prev, res.Tables)

	v, err := validator.New()
	if err != nil {
		return err
	}
	if err := v.Validate(validator.DefDelta, delta); err != nil {
		return err
	}

	if deltaOut != "" {
		if err := writeJSONFile(deltaOut, delta); err != nil {
			return fmt.Errorf("writing delta: %w", err)
		}
		return nil
	}
	return writeJSON(out, delta)
}

func readTables(path string) (facts.Tables, error) {
	f, err := os.Open(path)
	if err != nil {
		return facts.Tables{}, err
	}
	defer func() { _ = f.Close() }()

	var tables facts.Tables
	if err := json.NewDecoder(f).Decode(&tables); err != nil {
		return facts.Tables{}, err
	}
	return tables, nil
}

func writeJSONFile(path string, data any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := writeJSON(f, data); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
