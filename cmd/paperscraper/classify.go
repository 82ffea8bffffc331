package main

import (
	"fmt"

	"github.com/Lllllllleong/paperscraper/internal/services"
	"github.com/spf13/cobra"
)

func newClassifyCmd() *cobra.Command {
	var rules string

	cmd := &cobra.Command{
		Use:   "classify <filename>...",
		Short: "Show how file names map to paper variants",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			classifier, err := services.NewClassifier(rules)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range args {
				m, ok := classifier.Classify(name)
				if !ok {
					fmt.Fprintf(out, "%-40s -\n", name)
					continue
				}
				fmt.Fprintf(out, "%-40s variant=%s kind=%s\n", name, m.Variant, m.Kind)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rules, "rules", "simple", "rule set: simple or caie")
	return cmd
}
