package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

type rootOptions struct {
	verbose bool
	asYAML  bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "fusectl",
		Short: "Fuse heterogeneous sources into insights",
		Long: `fusectl clusters similar sources, synthesizes one insight per cluster plus
cross-category insights, and filters out low-quality results.

Input files are YAML or JSON, either {sources: [...], external_data: [...]}
or a bare list of sources.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log engine progress to stderr")
	cmd.PersistentFlags().BoolVar(&opts.asYAML, "yaml", false, "print YAML instead of JSON")

	cmd.AddCommand(
		newFuseCmd(opts),
		newSimilarityCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("fusectl version %s\n", version)
		},
	}
}

func (o *rootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func (o *rootOptions) print(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	if o.asYAML {
		data, err = yaml.JSONToYAML(data)
		if err != nil {
			return fmt.Errorf("failed to convert output to YAML: %w", err)
		}
		cmd.Print(string(data))
		return nil
	}
	cmd.Println(string(data))
	return nil
}
