package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/searchforge/fusion_engine/fuse"
	"github.com/searchforge/fusion_engine/sources"
)

type similarityResult struct {
	A         string         `json:"a"`
	B         string         `json:"b"`
	Breakdown fuse.Breakdown `json:"breakdown"`
	Clusters  bool           `json:"clusters"`
}

func newSimilarityCmd(root *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "similarity <idA> <idB>",
		Short: "Score two sources of a file against each other",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := sources.Load(file)
			if err != nil {
				return err
			}
			a, ok := doc.Find(args[0])
			if !ok {
				return fmt.Errorf("source %q not found in %s", args[0], file)
			}
			b, ok := doc.Find(args[1])
			if !ok {
				return fmt.Errorf("source %q not found in %s", args[1], file)
			}

			breakdown := fuse.NewScorer(root.logger(cmd.ErrOrStderr())).Explain(a, b)
			return root.print(cmd, similarityResult{
				A:         a.ID,
				B:         b.ID,
				Breakdown: breakdown,
				Clusters:  breakdown.Total > fuse.ClusterThreshold,
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML or JSON source file")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}
