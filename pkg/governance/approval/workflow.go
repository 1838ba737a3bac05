// Package approval implements the multi-party approval workflow gating every
// state-changing platform action. A request starts pending and resolves to
// approved, rejected or expired; all three are terminal. Expiry is evaluated
// lazily, on access: there is no background timer, and a request nobody
// touches after its deadline stays pending in storage until next accessed.
package approval

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

	// DefaultThreshold is the approve-vote quorum applied when a request
	// carries no override and its action is not config_change.
	DefaultThreshold int

	// ConfigChangeThreshold is the elevated quorum for config_change requests.
	ConfigChangeThreshold int

	// Expiry is how long a request stays votable after creation.
	Expiry time.Duration
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
	if cfg.DefaultThreshold == 0 {
		cfg.DefaultThreshold = 2
	}
	if cfg.DefaultThreshold < 1 {
		return errors.New("default threshold must be at least 1")
	}
	if cfg.ConfigChangeThreshold == 0 {
		cfg.ConfigChangeThreshold = cfg.DefaultThreshold + 1
	}
	if cfg.ConfigChangeThreshold < cfg.DefaultThreshold {
		return errors.New("config change threshold must not be below the default threshold")
	}
	if cfg.Expiry == 0 {
		cfg.Expiry = 72 * time.Hour
	}
	if cfg.Expiry < 0 {
		return errors.New("expiry must be positive")
	}
	return nil
}

// Workflow creates, votes on and resolves approval requests. Mutations on the
// request store are linearized by a single lock, so two near-simultaneous
// votes can never both read a stale tally.
type Workflow struct {
	log *slog.Logger
	cfg Config

	mu       sync.Mutex
	requests map[string]*Request
}

func NewWorkflow(cfg Config) (*Workflow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Workflow{
		log:      cfg.Logger,
		cfg:      cfg,
		requests: make(map[string]*Request),
	}, nil
}

// CreateParams are the inputs to CreateRequest.
type CreateParams struct {
	Action      signer.Action
	Payload     map[string]any
	RequestedBy string

	// Threshold overrides the workflow's per-action quorum when positive.
	Threshold int
}

// CreateRequest opens a pending approval request for one privileged action
// attempt. The requester's role must be authorized to initiate the action,
// and the resolved threshold must be reachable with the currently active
// signer set.
func (w *Workflow) CreateRequest(p CreateParams) (*Request, error) {
	if err := w.cfg.Registry.EnforceAuthority(p.RequestedBy, p.Action); err != nil {
		return nil, err
	}

	threshold := p.Threshold
	if threshold <= 0 {
		if p.Action == signer.ActionConfigChange {
			threshold = w.cfg.ConfigChangeThreshold
		} else {
			threshold = w.cfg.DefaultThreshold
		}
	}
	if active := w.cfg.Registry.ActiveCount(); threshold > active {
		return nil, fmt.Errorf("%w: threshold %d, active signers %d",
			ErrThresholdUnreachable, threshold, active)
	}

	now := w.cfg.Clock.Now().UTC()
	req := &Request{
		ID:        w.cfg.NewID(),
		Action:    p.Action,
		Threshold: threshold,
		Votes:     []Vote{},
		Status:    StatusPending,
		Payload:   p.Payload,
		CreatedBy: p.RequestedBy,
		CreatedAt: now,
		ExpiresAt: now.Add(w.cfg.Expiry),
	}
	// The payload is caller-supplied, so hashing it can fail.
	hash, err := canonical.Sum(req)
	if err != nil {
		return nil, fmt.Errorf("failed to hash approval request: %w", err)
	}
	req.Hash = hash

	w.mu.Lock()
	w.requests[req.ID] = req
	snapshot := req.clone()
	w.mu.Unlock()

	w.log.Info("approval request created",
		"request_id", req.ID, "action", p.Action, "threshold", threshold, "requested_by", p.RequestedBy)
	w.cfg.Publisher.Emit(events.Event{
		Name:    events.ApprovalRequested,
		At:      now,
		Payload: snapshot,
	})
	return snapshot, nil
}

// Vote records one signer's vote and resolves the request when the tally
// crosses a decision boundary: approved once approveCount reaches the
// threshold, rejected as soon as approval has become mathematically
// impossible (rejectCount > activeSigners - threshold).
func (w *Workflow) Vote(requestID, signerID string, choice Choice, reason string) (*Request, error) {
	if choice != ChoiceApprove && choice != ChoiceReject {
		return nil, fmt.Errorf("invalid vote choice %q", choice)
	}

	s, err := w.cfg.Registry.Get(signerID)
	if err != nil {
		return nil, err
	}
	if !s.Active {
		return nil, fmt.Errorf("%w: %s", signer.ErrInactiveSigner, signerID)
	}
	activeCount := w.cfg.Registry.ActiveCount()
	now := w.cfg.Clock.Now().UTC()

	w.mu.Lock()
	req, ok := w.requests[requestID]
	if !ok {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requestID)
	}
	if req.Status != StatusPending {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s is %s", ErrNotPending, requestID, req.Status)
	}
	if now.After(req.ExpiresAt) {
		req.Status = StatusExpired
		payload := resolution(req)
		w.mu.Unlock()
		w.emitResolution(events.ApprovalExpired, now, payload)
		return nil, fmt.Errorf("%w: %s", ErrExpired, requestID)
	}
	for _, v := range req.Votes {
		if v.SignerID == signerID {
			w.mu.Unlock()
			return nil, fmt.Errorf("%w: %s on %s", ErrDuplicateVote, signerID, requestID)
		}
	}

	vote := Vote{
		SignerID: signerID,
		Role:     s.Role,
		Choice:   choice,
		Reason:   reason,
		At:       now,
	}
	vote.Hash = canonical.MustSum(vote)
	req.Votes = append(req.Votes, vote)

	var resolved string
	if req.ApproveCount() >= req.Threshold {
		req.Status = StatusApproved
		resolved = events.ApprovalApproved
	} else if req.RejectCount() > activeCount-req.Threshold {
		req.Status = StatusRejected
		resolved = events.ApprovalRejected
	}
	payload := resolution(req)
	snapshot := req.clone()
	w.mu.Unlock()

	w.log.Info("vote recorded",
		"request_id", requestID, "signer_id", signerID, "choice", choice, "status", snapshot.Status)
	if resolved != "" {
		w.emitResolution(resolved, now, payload)
	}
	return snapshot, nil
}

// IsApproved reports whether the request has resolved approved. A pending
// request past its deadline is transitioned to expired by this access.
func (w *Workflow) IsApproved(requestID string) (bool, error) {
	req, err := w.accessRequest(requestID)
	if err != nil {
		return false, err
	}
	return req.Status == StatusApproved, nil
}

// EnforceApproval fails with a *BlockedError unless the request has resolved
// approved. The description names the gated operation in the error message.
func (w *Workflow) EnforceApproval(requestID, description string) error {
	req, err := w.accessRequest(requestID)
	if err != nil {
		return err
	}
	if req.Status == StatusApproved {
		return nil
	}
	return &BlockedError{
		RequestID:    requestID,
		Description:  description,
		Status:       req.Status,
		ApproveCount: req.ApproveCount(),
		RejectCount:  req.RejectCount(),
		Threshold:    req.Threshold,
	}
}

// Get returns a copy of the request without evaluating expiry.
func (w *Workflow) Get(requestID string) (*Request, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	req, ok := w.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requestID)
	}
	return req.clone(), nil
}

// ExpireStale transitions every pending request past its deadline to expired
// and returns their IDs. Calling it is optional; the default behavior of the
// workflow is lazy expiry on access.
func (w *Workflow) ExpireStale() []string {
	now := w.cfg.Clock.Now().UTC()

	w.mu.Lock()
	var expired []ResolutionPayload
	for _, req := range w.requests {
		if req.Status == StatusPending && now.After(req.ExpiresAt) {
			req.Status = StatusExpired
			expired = append(expired, resolution(req))
		}
	}
	w.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, payload := range expired {
		ids = append(ids, payload.RequestID)
		w.emitResolution(events.ApprovalExpired, now, payload)
	}
	return ids
}

// Snapshot returns copies of every request.
func (w *Workflow) Snapshot() []*Request {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Request, 0, len(w.requests))
	for _, req := range w.requests {
		out = append(out, req.clone())
	}
	return out
}

// accessRequest applies lazy expiry and returns a copy of the request.
func (w *Workflow) accessRequest(requestID string) (*Request, error) {
	now := w.cfg.Clock.Now().UTC()

	w.mu.Lock()
	req, ok := w.requests[requestID]
	if !ok {
		w.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, requestID)
	}
	var expired *ResolutionPayload
	if req.Status == StatusPending && now.After(req.ExpiresAt) {
		req.Status = StatusExpired
		payload := resolution(req)
		expired = &payload
	}
	snapshot := req.clone()
	w.mu.Unlock()

	if expired != nil {
		w.emitResolution(events.ApprovalExpired, now, *expired)
	}
	return snapshot, nil
}

func (w *Workflow) emitResolution(name string, at time.Time, payload ResolutionPayload) {
	w.log.Info("approval request resolved",
		"request_id", payload.RequestID, "status", payload.Status,
		"approve_count", payload.ApproveCount, "reject_count", payload.RejectCount,
		"threshold", payload.Threshold)
	w.cfg.Publisher.Emit(events.Event{
		Name:    name,
		At:      at,
		Payload: payload,
	})
}

func resolution(req *Request) ResolutionPayload {
	return ResolutionPayload{
		RequestID:    req.ID,
		Action:       req.Action,
		Status:       req.Status,
		ApproveCount: req.ApproveCount(),
		RejectCount:  req.RejectCount(),
		Threshold:    req.Threshold,
	}
}
