package loan

import "math/big"

// Rewards is the per-address incentive ledger. Balances only ever grow; the
// accrual is informational and there is no withdrawal path.
type Rewards struct {
	state engineState
}

// NewRewards binds the reward ledger to the state backend.
func NewRewards(state engineState) *Rewards { return &Rewards{state: state} }

// Credit accrues the reward for an address.
func (r *Rewards) Credit(addr [20]byte, amount *big.Int) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil
	}
	return r.state.RewardAdd(addr, amount)
}

// Balance reports the accrued reward for an address.
func (r *Rewards) Balance(addr [20]byte) (*big.Int, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	return r.state.RewardBalance(addr)
}
