package reconcile

import (
	"context"
	"runtime"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/calmcompass/places-cli/internal/model"
)

// Action describes what the orchestrator should do with a reconcile result.
type Action string

const (
	// ActionCreated means no existing canonical record matched; insert.
	ActionCreated Action = "created"
	// ActionUpdated means an existing canonical record was merged into; upsert.
	ActionUpdated Action = "updated"
	// ActionRejected means the raw record failed normalization; report, don't store.
	ActionRejected Action = "rejected"
)

// Result pairs a canonical place with the action that produced it. Rejected
// results carry the offending raw record and its *ValidationError instead of
// a place.
type Result struct {
	Place  *model.Place
	Action Action
	Raw    *model.RawPlace
	Err    error
}

// LookupFunc returns the stored canonical places for a city. The engine never
// touches storage itself; the orchestrator supplies this.
type LookupFunc func(ctx context.Context, citySlug string) ([]model.Place, error)

// Engine orchestrates normalization, clustering, and merging over a batch of
// raw records. Each invocation is a pure function of its arguments; there is
// no shared state between runs, and re-running a batch against the already
// updated store reproduces identical records.
type Engine struct {
	matcher *Matcher
}

// NewEngine creates an engine with the given match thresholds.
func NewEngine(cfg MatchConfig) *Engine {
	return &Engine{matcher: NewMatcher(cfg)}
}

// Reconcile processes a raw batch into canonical places. Records are
// partitioned by city first — matching is only meaningful within one city —
// and partitions run in parallel. Records that fail normalization come back
// as Rejected results; they never abort the batch.
func (e *Engine) Reconcile(ctx context.Context, batch []model.RawPlace, lookup LookupFunc) ([]Result, error) {
	var cityOrder []string
	partitions := map[string][]model.RawPlace{}
	for _, raw := range batch {
		if _, seen := partitions[raw.CitySlug]; !seen {
			cityOrder = append(cityOrder, raw.CitySlug)
		}
		partitions[raw.CitySlug] = append(partitions[raw.CitySlug], raw)
	}

	perCity := make([][]Result, len(cityOrder))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, slug := range cityOrder {
		i, slug := i, slug
		g.Go(func() error {
			results, err := e.reconcileCity(gctx, slug, partitions[slug], lookup)
			if err != nil {
				return err
			}
			perCity[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Result
	for _, results := range perCity {
		out = append(out, results...)
	}
	return out, nil
}

func (e *Engine) reconcileCity(ctx context.Context, citySlug string, batch []model.RawPlace, lookup LookupFunc) ([]Result, error) {
	var results []Result

	var normalized []model.NormalizedPlace
	for i := range batch {
		n, err := Normalize(batch[i])
		if err != nil {
			results = append(results, Result{Action: ActionRejected, Raw: &batch[i], Err: err})
			continue
		}
		normalized = append(normalized, n)
	}

	clusters := Cluster(e.matcher, normalized)

	var existing []model.Place
	if lookup != nil {
		var err error
		existing, err = lookup(ctx, citySlug)
		if err != nil {
			return nil, err
		}
	}

	// Attach each cluster to the existing canonical record it denotes, if
	// any. Clusters landing on the same existing record are folded together
	// so the run emits at most one result per canonical place.
	type group struct {
		members []model.NormalizedPlace
		primary *model.Place
	}
	var groups []group
	byPrimary := map[string]int{}
	for _, cluster := range clusters {
		primary := e.findExisting(cluster, existing)
		if primary == nil {
			groups = append(groups, group{members: cluster})
			continue
		}
		if idx, ok := byPrimary[primary.Key]; ok {
			groups[idx].members = append(groups[idx].members, cluster...)
			continue
		}
		byPrimary[primary.Key] = len(groups)
		groups = append(groups, group{members: cluster, primary: primary})
	}

	for _, grp := range groups {
		merged := Merge(grp.members, grp.primary)
		action := ActionCreated
		if grp.primary != nil {
			action = ActionUpdated
		}
		results = append(results, Result{Place: merged, Action: action})
	}

	zap.L().Debug("reconciled city partition",
		zap.String("city", citySlug),
		zap.Int("raw", len(batch)),
		zap.Int("rejected", len(batch)-len(normalized)),
		zap.Int("clusters", len(clusters)),
		zap.Int("places", len(groups)),
	)

	return results, nil
}

// findExisting picks the stored canonical record a cluster belongs to: one
// whose identity key equals a member's key, or one the matcher judges to be
// the same venue as a member. When several qualify the earliest created wins,
// keeping the choice stable across runs.
func (e *Engine) findExisting(cluster []model.NormalizedPlace, existing []model.Place) *model.Place {
	var candidates []*model.Place
	for i := range existing {
		ex := &existing[i]
		view := existingView(ex)
		matched := false
		for _, member := range cluster {
			if ex.Key == PlaceKey(member.CitySlug, member.Name, member.Coords) {
				matched = true
				break
			}
			if e.matcher.SameVenue(view, member) {
				matched = true
				break
			}
		}
		if matched {
			candidates = append(candidates, ex)
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	sort.Slice(candidates, func(i, j int) bool {
		if !candidates[i].CreatedAt.Equal(candidates[j].CreatedAt) {
			return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
		}
		return candidates[i].Key < candidates[j].Key
	})
	return candidates[0]
}

// existingView projects a stored canonical record into the normalized shape
// so the matcher can compare it against incoming records.
func existingView(p *model.Place) model.NormalizedPlace {
	return model.NormalizedPlace{
		Name:     p.Name,
		CitySlug: p.CitySlug,
		Coords:   p.Coords,
		Category: p.Category,
	}
}
