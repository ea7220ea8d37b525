package projection

import "maestro-console/internal/domain"

// Batch coalesces the deltas produced within one flush window. Scalar fields
// are last-write-wins; log entries keep arrival order. A Batch is owned by a
// single session loop and is not safe for concurrent use.
type Batch struct {
	pending domain.Delta
	events  int
}

// Add merges d into the pending window.
func (b *Batch) Add(d domain.Delta) {
	b.events++
	if d.Phase != nil {
		b.pending.Phase = d.Phase
	}
	if d.ClearReasoning {
		b.pending.ClearReasoning = true
		b.pending.Reasoning = nil
	}
	if d.Reasoning != nil {
		b.pending.Reasoning = d.Reasoning
	}
	if d.Target != nil {
		b.pending.Target = d.Target
	}
	if d.Engine != nil {
		b.pending.Engine = d.Engine
	}
	b.pending.Entries = append(b.pending.Entries, d.Entries...)
}

// Events returns how many deltas were added since the last Take.
func (b *Batch) Events() int { return b.events }

// Empty reports whether the window holds nothing to commit.
func (b *Batch) Empty() bool { return b.pending.Empty() }

// Take returns the merged delta and resets the window.
func (b *Batch) Take() domain.Delta {
	d := b.pending
	b.pending = domain.Delta{}
	b.events = 0
	return d
}
