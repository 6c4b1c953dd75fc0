package loan

import (
	"math/big"

	"edulend/core/types"
)

// Vault is the escrow account for pledged value. Collateral accumulates per
// loan at the vault address and is released at most once: back to the
// borrower on repayment, or to the lender on liquidation. Principal never
// rests in the vault; funding forwards it lender to borrower once the ledger
// fields are committed.
type Vault struct {
	state   engineState
	address [20]byte
}

// NewVault binds the escrow vault to the state backend. All pledged value is
// held at the given address.
func NewVault(state engineState, address [20]byte) *Vault {
	return &Vault{state: state, address: address}
}

// Address returns the custody address holding all pledged value.
func (v *Vault) Address() [20]byte { return v.address }

// Balance reports the cumulative collateral locked for a loan.
func (v *Vault) Balance(id [32]byte) (*big.Int, error) {
	if v == nil || v.state == nil {
		return nil, errNilState
	}
	return v.state.CollateralBalance(id)
}

// DepositCollateral moves value from the borrower into the vault and
// accumulates it into the loan's collateral balance. Multiple partial
// deposits are summed.
func (v *Vault) DepositCollateral(id [32]byte, from [20]byte, value *big.Int) (*big.Int, error) {
	if v == nil || v.state == nil {
		return nil, errNilState
	}
	if value == nil || value.Sign() <= 0 {
		return nil, ErrZeroAmount
	}
	if err := v.transfer(from, v.address, value); err != nil {
		return nil, err
	}
	if err := v.state.CollateralCredit(id, value); err != nil {
		return nil, err
	}
	return v.state.CollateralBalance(id)
}

// ReleaseCollateral transfers the full collateral balance to the recipient
// and zeroes it. A second release on the same loan fails with
// ErrAlreadyReleased.
func (v *Vault) ReleaseCollateral(id [32]byte, to [20]byte) (*big.Int, error) {
	if v == nil || v.state == nil {
		return nil, errNilState
	}
	balance, err := v.state.CollateralBalance(id)
	if err != nil {
		return nil, err
	}
	if balance == nil || balance.Sign() == 0 {
		return nil, ErrAlreadyReleased
	}
	if err := v.state.CollateralDebit(id, balance); err != nil {
		return nil, err
	}
	if err := v.transfer(v.address, to, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// ReleasePrincipalToLender pays the defaulted loan's collateral out to the
// lender. Liquidation draws on the collateral pool; there is no separate
// principal pool to tap.
func (v *Vault) ReleasePrincipalToLender(id [32]byte, lender [20]byte) (*big.Int, error) {
	return v.ReleaseCollateral(id, lender)
}

// FundPrincipal moves the principal from the lender to the borrower. Invoked
// only after the funding fields are committed.
func (v *Vault) FundPrincipal(lender, borrower [20]byte, amount *big.Int) error {
	if v == nil || v.state == nil {
		return errNilState
	}
	return v.transfer(lender, borrower, amount)
}

// ForwardRepayment moves a repayment instalment from the borrower to the
// lender. Invoked only after the balance reduction is committed.
func (v *Vault) ForwardRepayment(borrower, lender [20]byte, value *big.Int) error {
	if v == nil || v.state == nil {
		return errNilState
	}
	return v.transfer(borrower, lender, value)
}

// CanCover reports whether the payer account holds at least the given value.
// The engine uses it to validate before mutating anything.
func (v *Vault) CanCover(payer [20]byte, value *big.Int) (bool, error) {
	if v == nil || v.state == nil {
		return false, errNilState
	}
	acc, err := v.loadAccount(payer)
	if err != nil {
		return false, err
	}
	return acc.Balance.Cmp(value) >= 0, nil
}

func (v *Vault) transfer(from, to [20]byte, amount *big.Int) error {
	amt := cloneBigInt(amount)
	if amt.Sign() == 0 {
		return nil
	}
	fromAcc, err := v.loadAccount(from)
	if err != nil {
		return err
	}
	toAcc, err := v.loadAccount(to)
	if err != nil {
		return err
	}
	if fromAcc.Balance.Cmp(amt) < 0 {
		return errInsufficientBalance
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := v.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return v.state.PutAccount(to, toAcc)
}

func (v *Vault) loadAccount(addr [20]byte) (*types.Account, error) {
	acc, err := v.state.GetAccount(addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		acc = &types.Account{}
	}
	acc.EnsureDefaults()
	return acc, nil
}
