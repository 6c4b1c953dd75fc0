package loan

import (
	"math/big"

	"edulend/core/types"
)

type mockEngineState struct {
	loans      map[[32]byte]*Loan
	order      [][32]byte
	counter    uint64
	borrower   map[[20]byte][][32]byte
	lender     map[[20]byte][][32]byte
	collateral map[[32]byte]*big.Int
	confirmed  map[[32]byte]map[[20]byte]bool
	liquidated map[[32]byte]bool
	rewards    map[[20]byte]*big.Int
	accounts   map[[20]byte]*types.Account
}

func newMockEngineState() *mockEngineState {
	return &mockEngineState{
		loans:      make(map[[32]byte]*Loan),
		borrower:   make(map[[20]byte][][32]byte),
		lender:     make(map[[20]byte][][32]byte),
		collateral: make(map[[32]byte]*big.Int),
		confirmed:  make(map[[32]byte]map[[20]byte]bool),
		liquidated: make(map[[32]byte]bool),
		rewards:    make(map[[20]byte]*big.Int),
		accounts:   make(map[[20]byte]*types.Account),
	}
}

func (m *mockEngineState) LoanPut(l *Loan) error {
	if _, ok := m.loans[l.ID]; !ok {
		m.order = append(m.order, l.ID)
	}
	m.loans[l.ID] = l.Clone()
	return nil
}

func (m *mockEngineState) LoanGet(id [32]byte) (*Loan, bool) {
	l, ok := m.loans[id]
	if !ok {
		return nil, false
	}
	return l.Clone(), true
}

func (m *mockEngineState) LoanList() ([][32]byte, error) {
	return append([][32]byte(nil), m.order...), nil
}

func (m *mockEngineState) LoanCounter() (uint64, error) { return m.counter, nil }

func (m *mockEngineState) SetLoanCounter(counter uint64) error {
	m.counter = counter
	return nil
}

func (m *mockEngineState) BorrowerLoanAppend(addr [20]byte, id [32]byte) error {
	m.borrower[addr] = append(m.borrower[addr], id)
	return nil
}

func (m *mockEngineState) BorrowerLoans(addr [20]byte) ([][32]byte, error) {
	return append([][32]byte(nil), m.borrower[addr]...), nil
}

func (m *mockEngineState) LenderLoanAppend(addr [20]byte, id [32]byte) error {
	m.lender[addr] = append(m.lender[addr], id)
	return nil
}

func (m *mockEngineState) LenderLoans(addr [20]byte) ([][32]byte, error) {
	return append([][32]byte(nil), m.lender[addr]...), nil
}

func (m *mockEngineState) CollateralBalance(id [32]byte) (*big.Int, error) {
	if bal, ok := m.collateral[id]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (m *mockEngineState) CollateralCredit(id [32]byte, amount *big.Int) error {
	bal, _ := m.CollateralBalance(id)
	m.collateral[id] = bal.Add(bal, amount)
	return nil
}

func (m *mockEngineState) CollateralDebit(id [32]byte, amount *big.Int) error {
	bal, _ := m.CollateralBalance(id)
	m.collateral[id] = bal.Sub(bal, amount)
	return nil
}

func (m *mockEngineState) HasConfirmed(id [32]byte, validator [20]byte) (bool, error) {
	return m.confirmed[id][validator], nil
}

func (m *mockEngineState) MarkConfirmed(id [32]byte, validator [20]byte) error {
	if m.confirmed[id] == nil {
		m.confirmed[id] = make(map[[20]byte]bool)
	}
	m.confirmed[id][validator] = true
	return nil
}

func (m *mockEngineState) LoanLiquidated(id [32]byte) (bool, error) {
	return m.liquidated[id], nil
}

func (m *mockEngineState) SetLoanLiquidated(id [32]byte) error {
	m.liquidated[id] = true
	return nil
}

func (m *mockEngineState) RewardBalance(addr [20]byte) (*big.Int, error) {
	if bal, ok := m.rewards[addr]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (m *mockEngineState) RewardAdd(addr [20]byte, amount *big.Int) error {
	bal, _ := m.RewardBalance(addr)
	m.rewards[addr] = bal.Add(bal, amount)
	return nil
}

func (m *mockEngineState) GetAccount(addr [20]byte) (*types.Account, error) {
	if acc, ok := m.accounts[addr]; ok {
		return acc.Clone(), nil
	}
	return &types.Account{Balance: big.NewInt(0)}, nil
}

func (m *mockEngineState) PutAccount(addr [20]byte, account *types.Account) error {
	m.accounts[addr] = account.Clone()
	return nil
}

func (m *mockEngineState) balanceOf(addr [20]byte) *big.Int {
	acc, ok := m.accounts[addr]
	if !ok || acc.Balance == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(acc.Balance)
}

func makeAddress(b byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = b
	}
	return addr
}
