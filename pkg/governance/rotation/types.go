package rotation

import (
	"time"

	"github.com/crestlinelabs/waterline/pkg/governance/signer"
)

// Type is the kind of membership change a rotation performs.
type Type string

const (
	TypeAdd     Type = "add"
	TypeRemove  Type = "remove"
	TypeReplace Type = "replace"
)

// Status is the rotation lifecycle state: proposed, then approved, then
// executed. There is no modeled rejection path; an unpopular proposal simply
// stays proposed.
type Status string

const (
	StatusProposed Status = "proposed"
	StatusApproved Status = "approved"
	StatusExecuted Status = "executed"
)

// ProposedSigner is the spec for the signer an add or replace rotation
// registers on execution.
type ProposedSigner struct {
	Role      signer.Role `json:"role"`
	Addresses []string    `json:"addresses"`
	Weight    int         `json:"weight"`
}

// Approval records one signer's endorsement of a rotation.
type Approval struct {
	SignerID string    `json:"signer_id"`
	Reason   string    `json:"reason,omitempty"`
	At       time.Time `json:"at"`
}

// Rotation is a proposed signer membership change. The notice period between
// approval and execution is a compliance control: a window for stakeholders to
// react to an impending key-holder change.
type Rotation struct {
	ID                string          `json:"id"`
	Type              Type            `json:"type"`
	ProposedSigner    *ProposedSigner `json:"proposed_signer,omitempty"`
	RemoveSignerID    string          `json:"remove_signer_id,omitempty"`
	NoticePeriodDays  int             `json:"notice_period_days"`
	ProposedBy        string          `json:"proposed_by"`
	ProposedAt        time.Time       `json:"proposed_at"`
	EffectiveDate     time.Time       `json:"effective_date"`
	Status            Status          `json:"status"`
	Approvals         []Approval      `json:"approvals"`
	RequiredApprovals int             `json:"required_approvals"`
}

func (r *Rotation) clone() *Rotation {
	out := *r
	out.Approvals = append([]Approval(nil), r.Approvals...)
	if r.ProposedSigner != nil {
		ps := *r.ProposedSigner
		ps.Addresses = append([]string(nil), r.ProposedSigner.Addresses...)
		out.ProposedSigner = &ps
	}
	return &out
}

// StagePayload is the fixed payload shape for rotation.approved and
// rotation.executed events.
type StagePayload struct {
	RotationID    string    `json:"rotation_id"`
	Type          Type      `json:"type"`
	Status        Status    `json:"status"`
	EffectiveDate time.Time `json:"effective_date"`
}
