package types

import "math/big"

// Account holds the on-ledger funds for a participant address. Balances are
// denominated in the smallest currency unit and expressed as big integers so
// no precision is lost on large principals.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// EnsureDefaults replaces nil balance pointers with zero values so callers can
// operate on the account without nil checks.
func (a *Account) EnsureDefaults() {
	if a == nil {
		return
	}
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Nonce: a.Nonce, Balance: big.NewInt(0)}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return clone
}
