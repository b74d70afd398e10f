package console

import (
	"time"

	"github.com/google/uuid"
)

type MutationKind string

const (
	MutationSendMessage MutationKind = "send_message"
	MutationTakeOver    MutationKind = "take_over"
	MutationCreateChat  MutationKind = "create_chat"
)

type MutationStatus string

const (
	MutationPending   MutationStatus = "pending"
	MutationConfirmed MutationStatus = "confirmed"
	MutationFailed    MutationStatus = "failed"
)

// Mutation is the tracked outcome of one optimistic change.
type Mutation struct {
	ID         string         `json:"id"`
	Kind       MutationKind   `json:"kind"`
	TargetID   string         `json:"target_id"`
	Status     MutationStatus `json:"status"`
	Error      string         `json:"error,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
}

// maxResolved bounds how many settled mutations are kept for display.
const maxResolved = 50

type pendingTracker struct {
	items []*Mutation
}

func newPendingTracker() *pendingTracker {
	return &pendingTracker{}
}

func (p *pendingTracker) begin(kind MutationKind, target string, now time.Time) *Mutation {
	m := &Mutation{
		ID:        uuid.NewString(),
		Kind:      kind,
		TargetID:  target,
		Status:    MutationPending,
		CreatedAt: now,
	}
	p.items = append(p.items, m)
	return m
}

// confirm settles a mutation; a non-empty target replaces the tracked one
// (e.g. the store id of a message or chat).
func (p *pendingTracker) confirm(id, target string, now time.Time) {
	if m := p.find(id); m != nil {
		m.Status = MutationConfirmed
		if target != "" {
			m.TargetID = target
		}
		m.ResolvedAt = &now
	}
	p.trim()
}

func (p *pendingTracker) fail(id string, err error, now time.Time) {
	if m := p.find(id); m != nil {
		m.Status = MutationFailed
		m.Error = err.Error()
		m.ResolvedAt = &now
	}
	p.trim()
}

// inFlight reports whether a mutation of kind is still pending for target.
func (p *pendingTracker) inFlight(kind MutationKind, target string) bool {
	for _, m := range p.items {
		if m.Kind == kind && m.TargetID == target && m.Status == MutationPending {
			return true
		}
	}
	return false
}

func (p *pendingTracker) find(id string) *Mutation {
	for _, m := range p.items {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (p *pendingTracker) trim() {
	resolved := 0
	for _, m := range p.items {
		if m.Status != MutationPending {
			resolved++
		}
	}
	if resolved <= maxResolved {
		return
	}
	drop := resolved - maxResolved
	kept := p.items[:0]
	for _, m := range p.items {
		if drop > 0 && m.Status != MutationPending {
			drop--
			continue
		}
		kept = append(kept, m)
	}
	p.items = kept
}

func (p *pendingTracker) list() []Mutation {
	out := make([]Mutation, len(p.items))
	for i, m := range p.items {
		out[i] = *m
	}
	return out
}

func (p *pendingTracker) reset() {
	p.items = nil
}

// Pending lists tracked optimistic mutations, oldest first.
func (c *Console) Pending() []Mutation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending.list()
}
