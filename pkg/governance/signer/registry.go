// Package signer maintains the authoritative set of governance parties and the
// static authority matrix gating which role may initiate which action. The
// registry is the single source of truth for every authority check made by the
// approval and rotation workflows.
package signer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/crestlinelabs/waterline/pkg/canonical"
	"github.com/crestlinelabs/waterline/pkg/events"
)

// Config configures a Registry.
type Config struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	Publisher *events.Publisher
	NewID     canonical.IDFunc

	// MinimumSigners is the floor of active signers that deactivation may
	// never cross.
	MinimumSigners int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.MinimumSigners < 1 {
		return errors.New("minimum signers must be at least 1")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NewPublisher()
	}
	if cfg.NewID == nil {
		cfg.NewID = canonical.NewID
	}
	return nil
}

// Registry holds every signer ever registered. Mutations are linearized with
// respect to reads, so a just-deactivated signer can never pass an authority
// check or have a vote counted.
type Registry struct {
	log    *slog.Logger
	cfg    Config
	matrix Matrix

	mu      sync.RWMutex
	signers map[string]*Signer
}

func NewRegistry(cfg Config, matrix Matrix) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if matrix == nil {
		matrix = DefaultMatrix()
	}
	return &Registry{
		log:     cfg.Logger,
		cfg:     cfg,
		matrix:  matrix,
		signers: make(map[string]*Signer),
	}, nil
}

// Register adds an active signer and returns its record.
func (r *Registry) Register(role Role, addresses []string, weight int, addedBy string) (*Signer, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	if weight < 1 {
		return nil, errors.New("signer weight must be at least 1")
	}

	s := &Signer{
		ID:        r.cfg.NewID(),
		Role:      role,
		Addresses: append([]string(nil), addresses...),
		Weight:    weight,
		Active:    true,
		AddedAt:   r.cfg.Clock.Now().UTC(),
		AddedBy:   addedBy,
	}

	r.mu.Lock()
	r.signers[s.ID] = s
	snapshot := s.clone()
	r.mu.Unlock()

	r.log.Info("signer registered", "signer_id", s.ID, "role", role, "added_by", addedBy)
	r.cfg.Publisher.Emit(events.Event{
		Name:    events.SignerRegistered,
		At:      s.AddedAt,
		Payload: snapshot,
	})
	return snapshot, nil
}

// Deactivate soft-removes a signer. The record is kept for audit; only the
// active flag and removal metadata change. Fails when the resulting active
// count would fall below the configured minimum.
func (r *Registry) Deactivate(signerID, removedBy string) error {
	r.mu.Lock()
	s, ok := r.signers[signerID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, signerID)
	}
	if !s.Active {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrInactiveSigner, signerID)
	}
	active := r.activeCountLocked()
	if active-1 < r.cfg.MinimumSigners {
		r.mu.Unlock()
		return &InsufficientSignersError{ActiveCount: active, MinimumSigners: r.cfg.MinimumSigners}
	}

	now := r.cfg.Clock.Now().UTC()
	s.Active = false
	s.RemovedAt = &now
	s.RemovedBy = removedBy
	remaining := r.activeCountLocked()
	r.mu.Unlock()

	r.log.Info("signer deactivated", "signer_id", signerID, "removed_by", removedBy, "active_count", remaining)
	r.cfg.Publisher.Emit(events.Event{
		Name: events.SignerDeactivated,
		At:   now,
		Payload: DeactivatedPayload{
			SignerID:    signerID,
			RemovedBy:   removedBy,
			ActiveCount: remaining,
		},
	})
	return nil
}

// Get returns a copy of the signer record.
func (r *Registry) Get(signerID string) (*Signer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.signers[signerID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, signerID)
	}
	return s.clone(), nil
}

// ActiveCount returns the number of currently active signers.
func (r *Registry) ActiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeCountLocked()
}

func (r *Registry) activeCountLocked() int {
	n := 0
	for _, s := range r.signers {
		if s.Active {
			n++
		}
	}
	return n
}

// HasAuthority reports whether role may initiate action. Pure lookup.
func (r *Registry) HasAuthority(role Role, action Action) bool {
	return r.matrix.HasAuthority(role, action)
}

// EnforceAuthority resolves the signer and verifies it is active and that its
// role may initiate the action. Side-effect free.
func (r *Registry) EnforceAuthority(signerID string, action Action) error {
	r.mu.RLock()
	s, ok := r.signers[signerID]
	if !ok {
		r.mu.RUnlock()
		return fmt.Errorf("%w: %s", ErrNotFound, signerID)
	}
	role, active := s.Role, s.Active
	r.mu.RUnlock()

	if !active {
		return fmt.Errorf("%w: %s", ErrInactiveSigner, signerID)
	}
	if !r.matrix.HasAuthority(role, action) {
		return fmt.Errorf("%w: role %q, action %q", ErrUnauthorized, role, action)
	}
	return nil
}

// Snapshot returns copies of every signer record, active and inactive.
func (r *Registry) Snapshot() []*Signer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Signer, 0, len(r.signers))
	for _, s := range r.signers {
		out = append(out, s.clone())
	}
	return out
}
