package refhints

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/lexcodex/refhints/framework/editor"
)

// FetchOptions tunes CountReferences.
type FetchOptions struct {
	// Limit bounds in-flight queries. Values <= 1 query one at a time in
	// anchor order.
	Limit int
	// Valid reports whether the surrounding refresh is still current. It is
	// checked before each query is issued and after each one returns.
	Valid func() bool
	// OnError observes failed queries. Failures still count as zero.
	OnError func(Anchor, error)
	// OnQuery is called once per issued query.
	OnQuery func()
}

func (o FetchOptions) valid() bool {
	return o.Valid == nil || o.Valid()
}

// CountReferences asks svc for the references at every anchor and returns
// the counts indexed like anchors. ok is false when Valid turned false
// during the pass, in which case the counts must be discarded.
func CountReferences(ctx context.Context, svc ReferenceService, snap editor.Snapshot, anchors []Anchor, opts FetchOptions) ([]int, bool) {
	counts := make([]int, len(anchors))
	if opts.Limit <= 1 {
		for i, anchor := range anchors {
			if !opts.valid() {
				return nil, false
			}
			counts[i] = countOne(ctx, svc, snap, anchor, opts)
		}
		return counts, opts.valid()
	}

	var (
		g     errgroup.Group
		stale atomic.Bool
	)
	g.SetLimit(opts.Limit)
	for i, anchor := range anchors {
		if stale.Load() || !opts.valid() {
			stale.Store(true)
			break
		}
		g.Go(func() error {
			if stale.Load() || !opts.valid() {
				stale.Store(true)
				return nil
			}
			counts[i] = countOne(ctx, svc, snap, anchor, opts)
			if !opts.valid() {
				stale.Store(true)
			}
			return nil
		})
	}
	_ = g.Wait()
	if stale.Load() || !opts.valid() {
		return nil, false
	}
	return counts, true
}

func countOne(ctx context.Context, svc ReferenceService, snap editor.Snapshot, anchor Anchor, opts FetchOptions) int {
	if svc == nil {
		return 0
	}
	if opts.OnQuery != nil {
		opts.OnQuery()
	}
	locs, ok, err := svc.References(ctx, snap, anchor.Offset)
	if err != nil {
		if opts.OnError != nil {
			opts.OnError(anchor, err)
		}
		return 0
	}
	if !ok {
		return 0
	}
	return len(locs)
}
