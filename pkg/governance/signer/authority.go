package signer

// Matrix is the static role to permitted-actions table. Authority checks are
// pure lookups; the matrix never changes at runtime.
type Matrix map[Role]map[Action]bool

// DefaultMatrix returns the platform's standard authority table.
func DefaultMatrix() Matrix {
	return Matrix{
		RoleTreasury: {
			ActionIssueBond:       true,
			ActionRedeemBond:      true,
			ActionDistributeFunds: true,
		},
		RoleCompliance: {
			ActionFreezeAccount: true,
			ActionRotateSigner:  true,
			ActionConfigChange:  true,
		},
		RoleTrustee: {
			ActionDistributeFunds: true,
			ActionRotateSigner:    true,
			ActionConfigChange:    true,
		},
	}
}

// HasAuthority reports whether role may initiate action.
func (m Matrix) HasAuthority(role Role, action Action) bool {
	return m[role][action]
}
