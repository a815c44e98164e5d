package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/searchforge/fusion_engine/fuse"
	"github.com/searchforge/fusion_engine/sources"
)

type fuseOptions struct {
	file          string
	workers       int
	minPrimary    float64
	minSecondary  float64
	minConfidence float64
	sequentialIDs bool
	report        bool
}

type fuseReport struct {
	Insights        []fuse.FusedInsight `json:"insights"`
	Groups          [][]string          `json:"groups"`
	PreFilter       int                 `json:"pre_filter"`
	Dropped         int                 `json:"dropped"`
	ScoringFailures int64               `json:"scoring_failures"`
	ExternalRecords int                 `json:"external_records"`
}

func newFuseCmd(root *rootOptions) *cobra.Command {
	opts := &fuseOptions{}
	floors := fuse.DefaultFilterConfig()

	cmd := &cobra.Command{
		Use:   "fuse",
		Short: "Fuse the sources in a file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFuse(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "YAML or JSON source file")
	cmd.Flags().IntVar(&opts.workers, "workers", 1, "parallel cross-category workers")
	cmd.Flags().Float64Var(&opts.minPrimary, "min-primary", floors.MinPrimaryScore, "minimum primary score")
	cmd.Flags().Float64Var(&opts.minSecondary, "min-secondary", floors.MinSecondaryScore, "minimum secondary score")
	cmd.Flags().Float64Var(&opts.minConfidence, "min-confidence", floors.MinConfidence, "minimum confidence")
	cmd.Flags().BoolVar(&opts.sequentialIDs, "sequential-ids", false, "number insights sequentially instead of using UUIDs")
	cmd.Flags().BoolVar(&opts.report, "report", false, "include grouping and filter counts")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runFuse(cmd *cobra.Command, root *rootOptions, opts *fuseOptions) error {
	doc, err := sources.Load(opts.file)
	if err != nil {
		return err
	}

	engineOpts := fuse.DefaultOptions()
	engineOpts.Workers = opts.workers
	engineOpts.Logger = root.logger(cmd.ErrOrStderr())
	if opts.sequentialIDs {
		engineOpts.IDs = fuse.NewSequentialIDs()
	}
	engine := fuse.NewEngine(engineOpts).WithFilter(fuse.FilterConfig{
		MinPrimaryScore:   opts.minPrimary,
		MinSecondaryScore: opts.minSecondary,
		MinConfidence:     opts.minConfidence,
	})

	report, err := engine.FuseWithReport(cmd.Context(), doc.Sources, doc.ExternalData)
	if err != nil {
		return fmt.Errorf("fuse %s: %w", opts.file, err)
	}

	if !opts.report {
		return root.print(cmd, report.Insights)
	}
	return root.print(cmd, fuseReport{
		Insights:        report.Insights,
		Groups:          report.Groups,
		PreFilter:       report.PreFilter,
		Dropped:         report.Dropped,
		ScoringFailures: report.ScoringFailures,
		ExternalRecords: report.ExternalRecords,
	})
}
