package approval

import (
	"time"

	"github.com/crestlinelabs/waterline/pkg/governance/signer"
)

// Status is the approval request lifecycle state. All states other than
// pending are terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// Choice is a signer's vote on a request.
type Choice string

const (
	ChoiceApprove Choice = "approve"
	ChoiceReject  Choice = "reject"
)

// Vote is an append-only record of a single signer's vote. Role is snapshotted
// at vote time so later rotations cannot rewrite history.
type Vote struct {
	SignerID string      `json:"signer_id"`
	Role     signer.Role `json:"role"`
	Choice   Choice      `json:"choice"`
	Reason   string      `json:"reason,omitempty"`
	At       time.Time   `json:"at"`
	Hash     string      `json:"hash"`
}

// Request is a threshold-gated approval for one privileged action attempt.
// Immutable once resolved. Hash is the canonical content digest computed at
// creation with the Hash field itself blanked.
type Request struct {
	ID        string         `json:"id"`
	Action    signer.Action  `json:"action"`
	Threshold int            `json:"threshold"`
	Votes     []Vote         `json:"votes"`
	Status    Status         `json:"status"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	Hash      string         `json:"hash"`
}

// ApproveCount returns the number of approve votes.
func (r *Request) ApproveCount() int {
	return r.countVotes(ChoiceApprove)
}

// RejectCount returns the number of reject votes.
func (r *Request) RejectCount() int {
	return r.countVotes(ChoiceReject)
}

func (r *Request) countVotes(c Choice) int {
	n := 0
	for _, v := range r.Votes {
		if v.Choice == c {
			n++
		}
	}
	return n
}

func (r *Request) clone() *Request {
	out := *r
	out.Votes = append([]Vote(nil), r.Votes...)
	if r.Payload != nil {
		payload := make(map[string]any, len(r.Payload))
		for k, v := range r.Payload {
			payload[k] = v
		}
		out.Payload = payload
	}
	return &out
}

// ResolutionPayload is the fixed payload shape for approval.approved,
// approval.rejected and approval.expired events.
type ResolutionPayload struct {
	RequestID    string        `json:"request_id"`
	Action       signer.Action `json:"action"`
	Status       Status        `json:"status"`
	ApproveCount int           `json:"approve_count"`
	RejectCount  int           `json:"reject_count"`
	Threshold    int           `json:"threshold"`
}
