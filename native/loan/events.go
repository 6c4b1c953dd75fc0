package loan

import (
	"encoding/hex"
	"math/big"
	"strconv"

	"edulend/core/types"
)

const (
	EventTypeLoanRequested           = "loan.requested"
	EventTypeLoanCollateralDeposited = "loan.collateral_deposited"
	EventTypeLoanConfirmed           = "loan.confirmed"
	EventTypeLoanFunded              = "loan.funded"
	EventTypeLoanRepayment           = "loan.repayment"
	EventTypeLoanRepaid              = "loan.repaid"
	EventTypeLoanDefaulted           = "loan.defaulted"
	EventTypeLoanLiquidated          = "loan.liquidated"
)

// NewRequestedEvent returns the canonical payload for a freshly created loan.
func NewRequestedEvent(l *Loan) *types.Event { return newLoanEvent(EventTypeLoanRequested, l) }

// NewCollateralDepositedEvent carries the incremental and cumulative pledge.
func NewCollateralDepositedEvent(l *Loan, value, total *big.Int) *types.Event {
	evt := newLoanEvent(EventTypeLoanCollateralDeposited, l)
	evt.Attributes["value"] = bigString(value)
	evt.Attributes["collateral"] = bigString(total)
	return evt
}

// NewConfirmedEvent records a single validator confirmation.
func NewConfirmedEvent(l *Loan, validator [20]byte) *types.Event {
	evt := newLoanEvent(EventTypeLoanConfirmed, l)
	evt.Attributes["validator"] = hex.EncodeToString(validator[:])
	return evt
}

// NewFundedEvent is emitted once the lender supplies the principal.
func NewFundedEvent(l *Loan) *types.Event { return newLoanEvent(EventTypeLoanFunded, l) }

// NewRepaymentEvent records a partial repayment and the remaining balance.
func NewRepaymentEvent(l *Loan, value *big.Int) *types.Event {
	evt := newLoanEvent(EventTypeLoanRepayment, l)
	evt.Attributes["value"] = bigString(value)
	return evt
}

// NewRepaidEvent is emitted when the balance reaches zero and the collateral
// returns to the borrower.
func NewRepaidEvent(l *Loan, reward *big.Int) *types.Event {
	evt := newLoanEvent(EventTypeLoanRepaid, l)
	evt.Attributes["reward"] = bigString(reward)
	return evt
}

// NewDefaultedEvent is emitted when an expired loan is marked defaulted.
func NewDefaultedEvent(l *Loan) *types.Event { return newLoanEvent(EventTypeLoanDefaulted, l) }

// NewLiquidatedEvent records the collateral payout to the lender.
func NewLiquidatedEvent(l *Loan, seized *big.Int) *types.Event {
	evt := newLoanEvent(EventTypeLoanLiquidated, l)
	evt.Attributes["seized"] = bigString(seized)
	return evt
}

func newLoanEvent(eventType string, l *Loan) *types.Event {
	attrs := make(map[string]string)
	if l == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["id"] = hex.EncodeToString(l.ID[:])
	attrs["borrower"] = hex.EncodeToString(l.Borrower[:])
	if !isZeroAddress(l.Lender) {
		attrs["lender"] = hex.EncodeToString(l.Lender[:])
	}
	attrs["amount"] = bigString(l.Amount)
	attrs["balance"] = bigString(l.Balance)
	attrs["confirmations"] = strconv.FormatUint(uint64(l.Confirmations), 10)
	return &types.Event{Type: eventType, Attributes: attrs}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
