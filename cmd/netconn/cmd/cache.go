package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/netconn/internal/indexer"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the interface and rule caches",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear <path>",
	Short: "Remove cached interfaces, tables and rule results",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(args[0])
		if err != nil {
			return err
		}
		dir, err := indexer.ClearCache(args[0], cfg)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cleared %s\n", dir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
