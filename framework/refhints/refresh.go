package refhints

import "github.com/lexcodex/refhints/framework/editor"

// run is one refresh cycle for rev. It gives up silently at the first
// checkpoint where rev is no longer live.
func (c *Controller) run(rev uint64) {
	c.mu.Lock()
	if !c.currentLocked(rev) {
		c.mu.Unlock()
		c.discard(rev, "debounce")
		return
	}
	surface := c.surface
	cfg := c.config.Configuration()
	snap, ok := surface.ActiveSnapshot()
	if !ok {
		c.setState(StateIdle)
		drop := c.dropHookLocked(rev, "no active snapshot")
		c.mu.Unlock()
		drop()
		return
	}
	c.setState(StateResolvingSymbols)
	c.mu.Unlock()
	c.started.Add(1)

	entries, symbols := c.acquire(snap)
	if !c.advance(rev, StateQueryingReferences) {
		c.discard(rev, "symbols")
		return
	}

	anchors := ResolveAnchors(entries, Flatten(symbols))
	counts, ok := CountReferences(c.ctx, c.references, snap, anchors, FetchOptions{
		Limit: cfg.ReferenceConcurrency,
		Valid: func() bool { return c.current(rev) },
		OnError: func(a Anchor, err error) {
			c.logger.Printf("refhints: references at %s:%d: %v", snap.Path(), a.Offset, err)
		},
		OnQuery: func() { c.queries.Add(1) },
	})
	if !ok {
		c.discard(rev, "references")
		return
	}

	annotations, truncated := BuildAnnotations(anchors, counts, c.ids.WithCapacity(cfg.Capacity))
	if truncated {
		c.logger.Printf("refhints: %s has %d outline entries, publishing the first %d", snap.Path(), len(anchors), len(annotations))
	}
	c.publish(rev, annotations)
}

// acquire reads the outline and the symbol tree of snap. A failed symbol
// query leaves the tree empty so every entry anchors at its own start.
func (c *Controller) acquire(snap editor.Snapshot) ([]OutlineEntry, []DocumentSymbol) {
	var entries []OutlineEntry
	if c.outline != nil {
		entries = c.outline.Outline(snap)
	}
	if c.symbols == nil {
		return entries, nil
	}
	symbols, err := c.symbols.DocumentSymbols(c.ctx, snap)
	if err != nil {
		c.logger.Printf("refhints: document symbols for %s: %v", snap.Path(), err)
		return entries, nil
	}
	if len(symbols) == 0 {
		c.tracef("no document symbols for %s", snap.Path())
	}
	return entries, symbols
}

// publish applies annotations only if rev is still live. The check and the
// splice happen under one lock acquisition so a newer activation's clear
// can never be overwritten by this result. Sink subscribers may read
// State, Revision and Enabled during the splice; those never take mu.
func (c *Controller) publish(rev uint64, annotations []Annotation) {
	c.mu.Lock()
	if !c.currentLocked(rev) {
		c.mu.Unlock()
		c.discard(rev, "publish")
		return
	}
	c.setState(StatePublishing)
	Publish(c.sink, c.ids, annotations)
	c.setState(StateIdle)
	hook := c.onPublish
	c.mu.Unlock()
	c.published.Add(1)
	if hook != nil {
		hook(annotations)
	}
}
