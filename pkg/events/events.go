// Package events carries governance state transitions to external consumers.
// The event names and payload shapes are the only coupling surface other
// subsystems (audit trail, dashboards, settlement) may depend on; they form a
// durable contract and must not be renamed or reshaped.
package events

import (
	"sync"
	"time"
)

// Event names, one per state transition.
const (
	SignerRegistered  = "signer.registered"  // payload: *signer.Signer
	SignerDeactivated = "signer.deactivated" // payload: signer.DeactivatedPayload

	ApprovalRequested = "approval.requested" // payload: *approval.Request
	ApprovalApproved  = "approval.approved"  // payload: approval.ResolutionPayload
	ApprovalRejected  = "approval.rejected"  // payload: approval.ResolutionPayload
	ApprovalExpired   = "approval.expired"   // payload: approval.ResolutionPayload

	RotationProposed = "rotation.proposed" // payload: *rotation.Rotation
	RotationApproved = "rotation.approved" // payload: rotation.StagePayload
	RotationExecuted = "rotation.executed" // payload: rotation.StagePayload

	DistributionExecuted = "waterfall.distribution.executed" // payload: *waterfall.Distribution
)

// Event is delivered to every subscribed observer on each state transition.
type Event struct {
	Name    string    `json:"name"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// Observer receives events synchronously, in subscription order. Observers
// must not call back into the component that emitted the event.
type Observer func(Event)

// Publisher fans events out to subscribed observers. Components emit after
// releasing their own state lock, so observers never run under a lock they
// could contend on.
type Publisher struct {
	mu        sync.RWMutex
	observers []Observer
}

func NewPublisher() *Publisher {
	return &Publisher{}
}

// Subscribe registers an observer. There is no unsubscribe; observer sets are
// fixed at wiring time.
func (p *Publisher) Subscribe(obs Observer) {
	if obs == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, obs)
}

// Emit delivers e to every observer in subscription order.
func (p *Publisher) Emit(e Event) {
	p.mu.RLock()
	observers := p.observers
	p.mu.RUnlock()

	for _, obs := range observers {
		obs(e)
	}
}
