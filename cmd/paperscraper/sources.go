package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

func newSourcesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the configured archive sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(cfg.Sources))
			for name := range cfg.Sources {
				names = append(names, name)
			}
			sort.Strings(names)

			out := cmd.OutOrStdout()
			for _, name := range names {
				src := cfg.Sources[name]
				marker := " "
				if name == cfg.Source {
					marker = "*"
				}
				fmt.Fprintf(out, "%s %-14s rules=%-6s %s\n", marker, name, src.Rules, strings.Join(cfg.ListingURLs(name), " "))
			}
			return nil
		},
	}
}
