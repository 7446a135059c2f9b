package reconcile

import "github.com/calmcompass/places-cli/internal/model"

// Cluster groups normalized records into connected components of pairwise
// matches: an edge connects two records the matcher judges to be the same
// venue, and every connected component becomes one cluster.
//
// SameVenue is not strictly transitive, so a component may contain a pair
// the matcher would reject in isolation. That is an accepted approximation:
// requiring full pairwise agreement would under-merge legitimate
// near-duplicates bridged by an intermediate listing.
//
// Records keep their input order within each cluster, and clusters are
// ordered by the position of their first member, so the output is
// deterministic for a given input order.
func Cluster(m *Matcher, records []model.NormalizedPlace) [][]model.NormalizedPlace {
	n := len(records)
	if n == 0 {
		return nil
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	join := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			// Anchor on the lower index to keep ordering stable.
			if ra < rb {
				parent[rb] = ra
			} else {
				parent[ra] = rb
			}
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if m.SameVenue(records[i], records[j]) {
				join(i, j)
			}
		}
	}

	byRoot := map[int]int{}
	var clusters [][]model.NormalizedPlace
	for i := 0; i < n; i++ {
		root := find(i)
		idx, ok := byRoot[root]
		if !ok {
			idx = len(clusters)
			byRoot[root] = idx
			clusters = append(clusters, nil)
		}
		clusters[idx] = append(clusters[idx], records[i])
	}
	return clusters
}
