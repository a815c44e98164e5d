package fuse

import "context"

// ClusterThreshold is the similarity a source must strictly exceed to join a
// group seeded by another source.
const ClusterThreshold = 0.7

// Cluster partitions sources into groups with the default scorer. See
// (*Engine).Cluster.
func Cluster(sources []DataSource) [][]DataSource {
	groups, _ := clusterSources(context.Background(), NewScorer(nil), sources)
	return groups
}

// clusterSources runs a greedy single pass over sources. Each unvisited
// source seeds a group, and every later unvisited source whose similarity to
// the seed exceeds ClusterThreshold joins it. Members are compared to the
// seed only, so two members of one group need not be similar to each other.
func clusterSources(ctx context.Context, scorer *Scorer, sources []DataSource) ([][]DataSource, error) {
	visited := make([]bool, len(sources))
	groups := make([][]DataSource, 0, len(sources))

	for i := range sources {
		if visited[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		seed := sources[i]
		visited[i] = true
		group := []DataSource{seed}

		for j := i + 1; j < len(sources); j++ {
			if visited[j] {
				continue
			}
			if scorer.Similarity(seed, sources[j]) > ClusterThreshold {
				group = append(group, sources[j])
				visited[j] = true
			}
		}
		groups = append(groups, group)
	}
	return groups, nil
}
