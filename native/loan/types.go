package loan

import (
	"encoding/binary"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// Loan captures a single peer-to-peer student loan tracked by the ledger.
// Records are append-only: terminal outcomes flip the status flags in place
// and nothing is ever deleted. Field order mirrors the public record layout.
type Loan struct {
	ID            [32]byte
	Lender        [20]byte
	Borrower      [20]byte
	Amount        *big.Int
	InterestRate  *big.Int
	Balance       *big.Int
	LoanTerm      uint64
	CreatedAt     uint64
	IsRepaid      bool
	IsDefaulted   bool
	Confirmations uint8
	Funded        bool
}

// rateScale is the fixed-point denominator for InterestRate. A rate of
// 5e16 therefore reads as 5%.
var rateScale = big.NewInt(1_000_000_000_000_000_000)

// NewLoanID derives the deterministic identifier for the n-th loan requested
// by a borrower. Deriving from the counter keeps ids unique without storing
// the nonce on the record.
func NewLoanID(borrower [20]byte, counter uint64) [32]byte {
	var nonce [8]byte
	binary.BigEndian.PutUint64(nonce[:], counter)
	return ethcrypto.Keccak256Hash(borrower[:], nonce[:])
}

// Clone returns a deep copy of the loan so callers can safely mutate the copy
// without affecting the stored instance.
func (l *Loan) Clone() *Loan {
	if l == nil {
		return nil
	}
	clone := *l
	clone.Amount = cloneBigInt(l.Amount)
	clone.InterestRate = cloneBigInt(l.InterestRate)
	clone.Balance = cloneBigInt(l.Balance)
	return &clone
}

// EnsureDefaults replaces nil monetary pointers with zero values.
func (l *Loan) EnsureDefaults() {
	if l == nil {
		return
	}
	if l.Amount == nil {
		l.Amount = big.NewInt(0)
	}
	if l.InterestRate == nil {
		l.InterestRate = big.NewInt(0)
	}
	if l.Balance == nil {
		l.Balance = big.NewInt(0)
	}
}

// Obligation computes the full amount owed once the loan is funded:
// principal plus a flat one-time interest charge accrued at funding.
func (l *Loan) Obligation() *big.Int {
	if l == nil || l.Amount == nil {
		return big.NewInt(0)
	}
	interest := new(big.Int)
	if l.InterestRate != nil {
		interest.Mul(l.Amount, l.InterestRate)
		interest.Quo(interest, rateScale)
	}
	return new(big.Int).Add(l.Amount, interest)
}

// Phase is the conceptual lifecycle stage layered over the record's boolean
// and counter fields. It is derived, never stored.
type Phase uint8

const (
	PhaseRequested Phase = iota
	PhaseCollateralLocked
	PhaseConfirmed
	PhaseFunded
	PhaseRepaid
	PhaseDefaulted
)

// String returns the lowercase phase label used in events and RPC payloads.
func (p Phase) String() string {
	switch p {
	case PhaseRequested:
		return "requested"
	case PhaseCollateralLocked:
		return "collateral_locked"
	case PhaseConfirmed:
		return "confirmed"
	case PhaseFunded:
		return "funded"
	case PhaseRepaid:
		return "repaid"
	case PhaseDefaulted:
		return "defaulted"
	default:
		return "unknown"
	}
}

// PhaseOf derives the lifecycle stage from the record plus the locked
// collateral balance and the committee threshold.
func PhaseOf(l *Loan, collateral *big.Int, threshold uint8) Phase {
	if l == nil {
		return PhaseRequested
	}
	switch {
	case l.IsDefaulted:
		return PhaseDefaulted
	case l.IsRepaid:
		return PhaseRepaid
	case l.Funded:
		return PhaseFunded
	case threshold > 0 && l.Confirmations >= threshold:
		return PhaseConfirmed
	case collateral != nil && collateral.Sign() > 0:
		return PhaseCollateralLocked
	default:
		return PhaseRequested
	}
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func isZeroAddress(addr [20]byte) bool {
	return addr == [20]byte{}
}
