package domain

import "time"

// AccountStatus describes whether the funds on a bank account can be used.
type AccountStatus string

const (
	AccountStatusAvailable  AccountStatus = "AVAILABLE"
	AccountStatusBlocked    AccountStatus = "BLOCKED"
	AccountStatusRestricted AccountStatus = "RESTRICTED"
	AccountStatusSecured    AccountStatus = "SECURED"
	AccountStatusDisputed   AccountStatus = "DISPUTED"
)

// Valid reports whether s is a known status.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusAvailable, AccountStatusBlocked, AccountStatusRestricted,
		AccountStatusSecured, AccountStatusDisputed:
		return true
	}
	return false
}

// BankAccount is a bank account held by the debtor.
type BankAccount struct {
	ID                  string
	CaseID              string
	Name                string
	BankName            string
	IBAN                string
	OpeningBalanceCents int64
	LocationID          string
	Status              AccountStatus
	DisplayOrder        int
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsAvailable reports whether the balance counts as available funds.
func (a *BankAccount) IsAvailable() bool {
	return a.Status == AccountStatusAvailable
}
