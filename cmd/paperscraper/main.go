package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	logFormat  string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
	cancel()
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "paperscraper",
		Short: "Publish exam past papers from an archive site to Google Drive",
		Long: `paperscraper scrapes the question papers, mark schemes and supplementary files
of one subject session from a past-paper archive, uploads them to a Google Drive
folder tree with public links and writes a JSON manifest of those links.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format (json, text)")

	cmd.AddCommand(
		newRunCmd(opts),
		newClassifyCmd(),
		newAuthCmd(opts),
		newSourcesCmd(opts),
	)
	return cmd
}
