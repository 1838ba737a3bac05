// Package rotation manages signer membership changes behind a mandatory
// notice period. A rotation is proposed by an active signer, endorsed until it
// reaches its required approval count, and only executable once both approved
// and past its effective date.
package rotation

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/crestlinelabs/waterline/pkg/canonical"
	"github.com/crestlinelabs/waterline/pkg/events"
	"github.com/crestlinelabs/waterline/pkg/governance/signer"
)

// Config configures a Workflow.
type Config struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	Publisher *events.Publisher
	NewID     canonical.IDFunc
	Registry  *signer.Registry

	// NoticePeriodDays is the mandatory delay between proposal and execution.
	NoticePeriodDays int

	// RequiredApprovals is the endorsement count that moves a rotation from
	// proposed to approved.
	RequiredApprovals int
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Registry == nil {
		return errors.New("signer registry is required")
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
	if cfg.NoticePeriodDays == 0 {
		cfg.NoticePeriodDays = 30
	}
	if cfg.NoticePeriodDays < 0 {
		return errors.New("notice period must not be negative")
	}
	if cfg.RequiredApprovals == 0 {
		cfg.RequiredApprovals = 2
	}
	if cfg.RequiredApprovals < 1 {
		return errors.New("required approvals must be at least 1")
	}
	return nil
}

// Workflow proposes, approves and executes signer rotations.
type Workflow struct {
	log *slog.Logger
	cfg Config

	mu        sync.Mutex
	rotations map[string]*Rotation
	executing map[string]bool
}

func NewWorkflow(cfg Config) (*Workflow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Workflow{
		log:       cfg.Logger,
		cfg:       cfg,
		rotations: make(map[string]*Rotation),
		executing: make(map[string]bool),
	}, nil
}

// ProposeParams are the inputs to Propose.
type ProposeParams struct {
	Type           Type
	ProposedSigner *ProposedSigner
	RemoveSignerID string
	ProposedBy     string
}

// Propose opens a rotation. The proposer must be an active signer; remove and
// replace need an existing target, add and replace a proposed-signer spec.
func (w *Workflow) Propose(p ProposeParams) (*Rotation, error) {
	proposer, err := w.cfg.Registry.Get(p.ProposedBy)
	if err != nil {
		return nil, err
	}
	if !proposer.Active {
		return nil, fmt.Errorf("%w: %s", signer.ErrInactiveSigner, p.ProposedBy)
	}

	switch p.Type {
	case TypeAdd, TypeRemove, TypeReplace:
	default:
		return nil, fmt.Errorf("unknown rotation type %q", p.Type)
	}
	if p.Type == TypeRemove || p.Type == TypeReplace {
		if _, err := w.cfg.Registry.Get(p.RemoveSignerID); err != nil {
			return nil, fmt.Errorf("rotation target: %w", err)
		}
	}
	if p.Type == TypeAdd || p.Type == TypeReplace {
		if p.ProposedSigner == nil {
			return nil, fmt.Errorf("rotation type %q requires a proposed signer", p.Type)
		}
		if !p.ProposedSigner.Role.Valid() {
			return nil, fmt.Errorf("%w: %q", signer.ErrUnknownRole, p.ProposedSigner.Role)
		}
	}

	now := w.cfg.Clock.Now().UTC()
	rot := &Rotation{
		ID:                w.cfg.NewID(),
		Type:              p.Type,
		ProposedSigner:    p.ProposedSigner,
		RemoveSignerID:    p.RemoveSignerID,
		NoticePeriodDays:  w.cfg.NoticePeriodDays,
		ProposedBy:        p.ProposedBy,
		ProposedAt:        now,
		EffectiveDate:     now.Add(time.Duration(w.cfg.NoticePeriodDays) * 24 * time.Hour),
		Status:            StatusProposed,
		Approvals:         []Approval{},
		RequiredApprovals: w.cfg.RequiredApprovals,
	}

	w.mu.Lock()
	w.rotations[rot.ID] = rot
	snapshot := rot.clone()
	w.mu.Unlock()

	w.log.Info("rotation proposed",
		"rotation_id", rot.ID, "type", p.Type, "proposed_by", p.ProposedBy,
		"effective_date", rot.EffectiveDate)
	w.cfg.Publisher.Emit(events.Event{
		Name:    events.RotationProposed,
		At:      now,
		Payload: snapshot,
	})
	return snapshot, nil
}

// Approve records one active signer's endorsement, the proposer's included.
// The rotation moves to approved once the required count is reached.
func (w *Workflow) Approve(rotationID, signerID, reason string) (*Rotation, error) {
	s, err := w.cfg.Registry.Get(signerID)
	if err != nil {
		return nil, err
	}
	if !s.Active {
		return nil, fmt.Errorf("%w: %s", signer.ErrInactiveSigner, signerID)
	}
	now := w.cfg.Clock.Now().UTC()

	w.mu.Lock()
	rot, ok := w.rotations[rotationID]
	if !ok {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rotationID)
	}
	if rot.Status != StatusProposed {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s", ErrInvalidState, rotationID, rot.Status)
	}
	for _, a := range rot.Approvals {
		if a.SignerID == signerID {
			w.mu.Unlock()
			return nil, fmt.Errorf("%w: %s on %s", ErrDuplicateApproval, signerID, rotationID)
		}
	}

	rot.Approvals = append(rot.Approvals, Approval{SignerID: signerID, Reason: reason, At: now})
	approved := len(rot.Approvals) >= rot.RequiredApprovals
	if approved {
		rot.Status = StatusApproved
	}
	payload := stage(rot)
	snapshot := rot.clone()
	w.mu.Unlock()

	w.log.Info("rotation approval recorded",
		"rotation_id", rotationID, "signer_id", signerID,
		"approvals", len(snapshot.Approvals), "required", snapshot.RequiredApprovals)
	if approved {
		w.cfg.Publisher.Emit(events.Event{
			Name:    events.RotationApproved,
			At:      now,
			Payload: payload,
		})
	}
	return snapshot, nil
}

// Execute applies an approved rotation once its notice period has elapsed:
// register for add, deactivate for remove, both for replace. For replace the
// new signer is registered before the old one is deactivated so the active
// count never dips through the registry floor. A failure to apply the
// membership change leaves the signer set exactly as it was; the rotation
// stays approved and may be retried once the cause is resolved.
func (w *Workflow) Execute(rotationID string) (*Rotation, error) {
	now := w.cfg.Clock.Now().UTC()

	w.mu.Lock()
	rot, ok := w.rotations[rotationID]
	if !ok {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rotationID)
	}
	if rot.Status != StatusApproved {
		status := rot.Status
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s, want %s", ErrInvalidState, rotationID, status, StatusApproved)
	}
	if w.executing[rotationID] {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s execution already in progress", ErrInvalidState, rotationID)
	}
	if now.Before(rot.EffectiveDate) {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: effective %s, now %s",
			ErrNoticePeriodNotElapsed, rot.EffectiveDate.Format(time.RFC3339), now.Format(time.RFC3339))
	}
	// Hold an in-flight marker instead of the lock while the registry applies
	// the membership change, so registry events fire without w.mu held and a
	// concurrent Execute on the same rotation still cannot apply it twice.
	w.executing[rotationID] = true
	rotType := rot.Type
	spec := rot.ProposedSigner
	removeID := rot.RemoveSignerID
	w.mu.Unlock()

	applyErr := w.applyMembershipChange(rotationID, rotType, spec, removeID)

	w.mu.Lock()
	delete(w.executing, rotationID)
	if applyErr != nil {
		w.mu.Unlock()
		return nil, applyErr
	}
	rot.Status = StatusExecuted
	payload := stage(rot)
	snapshot := rot.clone()
	w.mu.Unlock()

	w.log.Info("rotation executed", "rotation_id", rotationID, "type", rotType)
	w.cfg.Publisher.Emit(events.Event{
		Name:    events.RotationExecuted,
		At:      now,
		Payload: payload,
	})
	return snapshot, nil
}

// applyMembershipChange drives the registry through a rotation's membership
// change without holding w.mu. The target is checked to be deactivatable
// before anything is registered, and a replace whose deactivation still fails
// rolls the fresh registration back, so a failed execution never leaves a
// partially applied signer set behind.
func (w *Workflow) applyMembershipChange(rotationID string, rotType Type, spec *ProposedSigner, removeID string) error {
	executedBy := "rotation:" + rotationID

	if rotType == TypeRemove || rotType == TypeReplace {
		target, err := w.cfg.Registry.Get(removeID)
		if err != nil {
			return fmt.Errorf("failed to deactivate rotated signer: %w", err)
		}
		if !target.Active {
			return fmt.Errorf("failed to deactivate rotated signer: %w: %s", signer.ErrInactiveSigner, removeID)
		}
	}

	var registeredID string
	if rotType == TypeAdd || rotType == TypeReplace {
		registered, err := w.cfg.Registry.Register(spec.Role, spec.Addresses, spec.Weight, executedBy)
		if err != nil {
			return fmt.Errorf("failed to register rotated signer: %w", err)
		}
		registeredID = registered.ID
	}

	if rotType == TypeRemove || rotType == TypeReplace {
		if err := w.cfg.Registry.Deactivate(removeID, executedBy); err != nil {
			if registeredID != "" {
				if rbErr := w.cfg.Registry.Deactivate(registeredID, executedBy); rbErr != nil {
					w.log.Error("failed to roll back rotated signer registration",
						"rotation_id", rotationID, "signer_id", registeredID, "error", rbErr)
				}
			}
			return fmt.Errorf("failed to deactivate rotated signer: %w", err)
		}
	}
	return nil
}

// Get returns a copy of the rotation.
func (w *Workflow) Get(rotationID string) (*Rotation, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	rot, ok := w.rotations[rotationID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, rotationID)
	}
	return rot.clone(), nil
}

// Snapshot returns copies of every rotation.
func (w *Workflow) Snapshot() []*Rotation {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Rotation, 0, len(w.rotations))
	for _, rot := range w.rotations {
		out = append(out, rot.clone())
	}
	return out
}

func stage(rot *Rotation) StagePayload {
	return StagePayload{
		RotationID:    rot.ID,
		Type:          rot.Type,
		Status:        rot.Status,
		EffectiveDate: rot.EffectiveDate,
	}
}
