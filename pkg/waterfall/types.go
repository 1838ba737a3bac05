package waterfall

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType determines how much an account requests from a cascade run.
// Residual accounts request everything remaining; accounts with a positive
// target balance top up to the target; every other type passes through 100%
// of whatever remains. Pass-through accounts starve everything behind them
// unless they carry an explicit per-distribution cap.
type AccountType string

const (
	AccountTypeFee        AccountType = "fee"
	AccountTypeSeniorDebt AccountType = "senior_debt"
	AccountTypeReserve    AccountType = "reserve"
	AccountTypeOperating  AccountType = "operating"
	AccountTypeInsurance  AccountType = "insurance"
	AccountTypeResidual   AccountType = "residual"
)

// Valid reports whether t is one of the recognized account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeFee, AccountTypeSeniorDebt, AccountTypeReserve,
		AccountTypeOperating, AccountTypeInsurance, AccountTypeResidual:
		return true
	}
	return false
}

// Account is one priority slot of a waterfall. Lower Order is paid first.
// A zero TargetBalance means the account is not reserve-style; a zero Cap
// means uncapped.
type Account struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Type           AccountType     `json:"type"`
	Order          int             `json:"order"`
	TargetBalance  decimal.Decimal `json:"target_balance"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	Cap            decimal.Decimal `json:"cap"`
}

func (a *Account) clone() *Account {
	out := *a
	return &out
}

// AccountSpec is the input for one account when creating a waterfall.
type AccountSpec struct {
	Name           string
	Type           AccountType
	Order          int
	TargetBalance  decimal.Decimal
	InitialBalance decimal.Decimal
	Cap            decimal.Decimal
}

// Status records whether a cascade run consumed all available funds.
type Status string

const (
	StatusExecuted Status = "executed"
	StatusPartial  Status = "partial"
)

// Allocation is the outcome for one account in one cascade run. Requested is
// the post-cap demand; Shortfall is the demand the remaining funds could not
// cover.
type Allocation struct {
	AccountID string          `json:"account_id"`
	Order     int             `json:"order"`
	Requested decimal.Decimal `json:"requested"`
	Allocated decimal.Decimal `json:"allocated"`
	Shortfall decimal.Decimal `json:"shortfall"`
}

// Distribution is one immutable cascade run, appended to the parent
// waterfall's history. Hash covers (waterfall_id, total_available,
// allocations) with the Hash field blanked.
type Distribution struct {
	ID             string          `json:"id"`
	WaterfallID    string          `json:"waterfall_id"`
	TriggeredAt    time.Time       `json:"triggered_at"`
	TotalAvailable decimal.Decimal `json:"total_available"`
	Allocations    []Allocation    `json:"allocations"`
	Status         Status          `json:"status"`
	Hash           string          `json:"hash"`
}

func (d *Distribution) clone() *Distribution {
	out := *d
	out.Allocations = append([]Allocation(nil), d.Allocations...)
	return &out
}

// Waterfall is a named, priority-ordered account cascade and its distribution
// history.
type Waterfall struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Accounts []*Account      `json:"accounts"`
	History  []*Distribution `json:"history"`
}

func (w *Waterfall) clone() *Waterfall {
	out := &Waterfall{ID: w.ID, Name: w.Name}
	out.Accounts = make([]*Account, len(w.Accounts))
	for i, a := range w.Accounts {
		out.Accounts[i] = a.clone()
	}
	out.History = make([]*Distribution, len(w.History))
	for i, d := range w.History {
		out.History[i] = d.clone()
	}
	return out
}
