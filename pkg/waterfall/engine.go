// Package waterfall implements the priority-ordered fund cascade. A
// distribution is a single greedy pass over the accounts in strictly
// ascending order with no rebalancing: lower-priority accounts absorb all
// funding shortfalls, deliberately. The embedding application is expected to
// authorize each distribution through the approval workflow before invoking
// the engine.
package waterfall

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"

	"github.com/crestlinelabs/waterline/pkg/canonical"
	"github.com/crestlinelabs/waterline/pkg/events"
)

// Config configures an Engine.
type Config struct {
	Logger    *slog.Logger
	Clock     clockwork.Clock
	Publisher *events.Publisher
	NewID     canonical.IDFunc
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
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

// Engine owns the waterfalls and runs distributions over them. Runs on the
// same waterfall are serialized by the engine lock.
type Engine struct {
	log *slog.Logger
	cfg Config

	mu         sync.Mutex
	waterfalls map[string]*Waterfall
}

func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		log:        cfg.Logger,
		cfg:        cfg,
		waterfalls: make(map[string]*Waterfall),
	}, nil
}

// CreateWaterfall registers a named cascade. Orders must be unique and
// positive; targets, caps and initial balances must not be negative. Accounts
// are stored sorted by ascending order.
func (e *Engine) CreateWaterfall(name string, specs []AccountSpec) (*Waterfall, error) {
	if len(specs) == 0 {
		return nil, errors.New("waterfall needs at least one account")
	}

	seen := make(map[int]bool, len(specs))
	accounts := make([]*Account, 0, len(specs))
	for _, spec := range specs {
		if !spec.Type.Valid() {
			return nil, fmt.Errorf("unknown account type %q", spec.Type)
		}
		if spec.Order < 1 {
			return nil, fmt.Errorf("account %q: order must be positive", spec.Name)
		}
		if seen[spec.Order] {
			return nil, fmt.Errorf("account %q: duplicate order %d", spec.Name, spec.Order)
		}
		seen[spec.Order] = true
		if spec.TargetBalance.IsNegative() || spec.Cap.IsNegative() || spec.InitialBalance.IsNegative() {
			return nil, fmt.Errorf("account %q: amounts must not be negative", spec.Name)
		}
		accounts = append(accounts, &Account{
			ID:             e.cfg.NewID(),
			Name:           spec.Name,
			Type:           spec.Type,
			Order:          spec.Order,
			TargetBalance:  spec.TargetBalance,
			CurrentBalance: spec.InitialBalance,
			Cap:            spec.Cap,
		})
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Order < accounts[j].Order })

	wf := &Waterfall{
		ID:       e.cfg.NewID(),
		Name:     name,
		Accounts: accounts,
		History:  []*Distribution{},
	}

	e.mu.Lock()
	e.waterfalls[wf.ID] = wf
	snapshot := wf.clone()
	e.mu.Unlock()

	e.log.Info("waterfall created", "waterfall_id", wf.ID, "name", name, "accounts", len(accounts))
	return snapshot, nil
}

// distributionContent is the hashed subset of a distribution.
type distributionContent struct {
	WaterfallID    string          `json:"waterfall_id"`
	TotalAvailable decimal.Decimal `json:"total_available"`
	Allocations    []Allocation    `json:"allocations"`
}

// ExecuteDistribution runs one cascade pass. For each account in ascending
// order: residual accounts request everything remaining, accounts with a
// positive target request the top-up to target, every other type requests
// 100% of the remainder; the request is clamped by the account's cap, the
// allocation by the funds left. The pass stops as soon as nothing remains.
// Status is executed when the funds were fully consumed, partial otherwise.
func (e *Engine) ExecuteDistribution(waterfallID string, available decimal.Decimal) (*Distribution, error) {
	if available.IsNegative() {
		return nil, ErrNegativeFunds
	}
	now := e.cfg.Clock.Now().UTC()

	e.mu.Lock()
	wf, ok := e.waterfalls[waterfallID]
	if !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, waterfallID)
	}

	remaining := available
	allocations := make([]Allocation, 0, len(wf.Accounts))
	for _, account := range wf.Accounts {
		if !remaining.IsPositive() {
			break
		}

		var requested decimal.Decimal
		switch {
		case account.Type == AccountTypeResidual:
			requested = remaining
		case account.TargetBalance.IsPositive():
			requested = decimal.Max(decimal.Zero, account.TargetBalance.Sub(account.CurrentBalance))
		default:
			requested = remaining
		}
		if account.Cap.IsPositive() && requested.GreaterThan(account.Cap) {
			requested = account.Cap
		}

		allocated := decimal.Min(requested, remaining)
		account.CurrentBalance = account.CurrentBalance.Add(allocated)
		remaining = remaining.Sub(allocated)

		allocations = append(allocations, Allocation{
			AccountID: account.ID,
			Order:     account.Order,
			Requested: requested,
			Allocated: allocated,
			Shortfall: decimal.Max(decimal.Zero, requested.Sub(allocated)),
		})
	}

	status := StatusPartial
	if remaining.IsZero() {
		status = StatusExecuted
	}
	dist := &Distribution{
		ID:             e.cfg.NewID(),
		WaterfallID:    waterfallID,
		TriggeredAt:    now,
		TotalAvailable: available,
		Allocations:    allocations,
		Status:         status,
		Hash: canonical.MustSum(distributionContent{
			WaterfallID:    waterfallID,
			TotalAvailable: available,
			Allocations:    allocations,
		}),
	}
	wf.History = append(wf.History, dist)
	snapshot := dist.clone()
	e.mu.Unlock()

	e.log.Info("distribution executed",
		"waterfall_id", waterfallID, "distribution_id", dist.ID,
		"available", available, "status", status, "allocations", len(allocations))
	e.cfg.Publisher.Emit(events.Event{
		Name:    events.DistributionExecuted,
		At:      now,
		Payload: snapshot.clone(),
	})
	return snapshot, nil
}

// Get returns a copy of the waterfall with its full history.
func (e *Engine) Get(waterfallID string) (*Waterfall, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	wf, ok := e.waterfalls[waterfallID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, waterfallID)
	}
	return wf.clone(), nil
}

// Snapshot returns copies of every waterfall.
func (e *Engine) Snapshot() []*Waterfall {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Waterfall, 0, len(e.waterfalls))
	for _, wf := range e.waterfalls {
		out = append(out, wf.clone())
	}
	return out
}
