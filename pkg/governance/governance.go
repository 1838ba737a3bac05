// Package governance wires the signer registry, approval workflow and
// rotation workflow onto a shared clock, publisher and ID generator, giving
// embedding applications a single composition root. It holds no state of its
// own beyond the components it constructs.
package governance

import (
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/crestlinelabs/waterline/pkg/canonical"
	"github.com/crestlinelabs/waterline/pkg/events"
	"github.com/crestlinelabs/waterline/pkg/governance/approval"
	"github.com/crestlinelabs/waterline/pkg/governance/rotation"
	"github.com/crestlinelabs/waterline/pkg/governance/signer"
)

// Config configures a Core. Zero values for the numeric fields select the
// platform defaults applied by the component Validate methods.
type Config struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	Publisher *events.Publisher
	NewID     canonical.IDFunc

	// Matrix overrides the default role-to-action authority table.
	Matrix signer.Matrix

	MinimumSigners            int
	DefaultThreshold          int
	ConfigChangeThreshold     int
	ApprovalExpiry            time.Duration
	NoticePeriodDays          int
	RequiredRotationApprovals int
}

// Core is the governance composition root.
type Core struct {
	Signers   *signer.Registry
	Approvals *approval.Workflow
	Rotations *rotation.Workflow

	publisher *events.Publisher
	clock     clockwork.Clock
}

func New(cfg Config) (*Core, error) {
	if cfg.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Publisher == nil {
		cfg.Publisher = events.NewPublisher()
	}
	if cfg.MinimumSigners == 0 {
		cfg.MinimumSigners = 2
	}

	registry, err := signer.NewRegistry(signer.Config{
		Logger:         cfg.Logger,
		Clock:          cfg.Clock,
		Publisher:      cfg.Publisher,
		NewID:          cfg.NewID,
		MinimumSigners: cfg.MinimumSigners,
	}, cfg.Matrix)
	if err != nil {
		return nil, err
	}

	approvals, err := approval.NewWorkflow(approval.Config{
		Logger:                cfg.Logger,
		Clock:                 cfg.Clock,
		Publisher:             cfg.Publisher,
		NewID:                 cfg.NewID,
		Registry:              registry,
		DefaultThreshold:      cfg.DefaultThreshold,
		ConfigChangeThreshold: cfg.ConfigChangeThreshold,
		Expiry:                cfg.ApprovalExpiry,
	})
	if err != nil {
		return nil, err
	}

	rotations, err := rotation.NewWorkflow(rotation.Config{
		Logger:            cfg.Logger,
		Clock:             cfg.Clock,
		Publisher:         cfg.Publisher,
		NewID:             cfg.NewID,
		Registry:          registry,
		NoticePeriodDays:  cfg.NoticePeriodDays,
		RequiredApprovals: cfg.RequiredRotationApprovals,
	})
	if err != nil {
		return nil, err
	}

	return &Core{
		Signers:   registry,
		Approvals: approvals,
		Rotations: rotations,
		publisher: cfg.Publisher,
		clock:     cfg.Clock,
	}, nil
}

// Subscribe registers an observer for every governance event.
func (c *Core) Subscribe(obs events.Observer) {
	c.publisher.Subscribe(obs)
}

// Snapshot is the full serializable governance state, suitable for the
// embedding application's persistence layer.
type Snapshot struct {
	TakenAt   time.Time            `json:"taken_at"`
	Signers   []*signer.Signer     `json:"signers"`
	Requests  []*approval.Request  `json:"requests"`
	Rotations []*rotation.Rotation `json:"rotations"`
}

// Snapshot captures the current state of all three components.
func (c *Core) Snapshot() *Snapshot {
	return &Snapshot{
		TakenAt:   c.clock.Now().UTC(),
		Signers:   c.Signers.Snapshot(),
		Requests:  c.Approvals.Snapshot(),
		Rotations: c.Rotations.Snapshot(),
	}
}
