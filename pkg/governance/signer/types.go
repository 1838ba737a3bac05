package signer

import "time"

// Role classifies a signer's institutional function. The role set is fixed;
// the authority matrix maps each role to the actions it may initiate.
type Role string

const (
	RoleTreasury   Role = "treasury"
	RoleCompliance Role = "compliance"
	RoleTrustee    Role = "trustee"
)

// Valid reports whether r is one of the recognized roles.
func (r Role) Valid() bool {
	switch r {
	case RoleTreasury, RoleCompliance, RoleTrustee:
		return true
	}
	return false
}

// Action identifies a privileged platform operation gated by governance.
type Action string

const (
	ActionIssueBond       Action = "issue_bond"
	ActionRedeemBond      Action = "redeem_bond"
	ActionDistributeFunds Action = "distribute_funds"
	ActionFreezeAccount   Action = "freeze_account"
	ActionRotateSigner    Action = "rotate_signer"

	// ActionConfigChange is reserved; approval requests for it default to the
	// elevated config-change quorum rather than the platform default.
	ActionConfigChange Action = "config_change"
)

// Signer is a named governance party. Records are never deleted; deactivation
// is a soft, irreversible-per-instance state change that preserves the full
// membership history for audit.
type Signer struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Addresses []string   `json:"addresses"`
	Weight    int        `json:"weight"`
	Active    bool       `json:"active"`
	AddedAt   time.Time  `json:"added_at"`
	AddedBy   string     `json:"added_by"`
	RemovedAt *time.Time `json:"removed_at,omitempty"`
	RemovedBy string     `json:"removed_by,omitempty"`
}

func (s *Signer) clone() *Signer {
	out := *s
	out.Addresses = append([]string(nil), s.Addresses...)
	if s.RemovedAt != nil {
		at := *s.RemovedAt
		out.RemovedAt = &at
	}
	return &out
}

// DeactivatedPayload is the fixed payload shape for signer.deactivated events.
type DeactivatedPayload struct {
	SignerID    string `json:"signer_id"`
	RemovedBy   string `json:"removed_by"`
	ActiveCount int    `json:"active_count"`
}
