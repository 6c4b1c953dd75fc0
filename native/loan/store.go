package loan

import "math/big"

// Store is the authoritative map of loan records. It assigns identifiers,
// maintains the borrower and lender secondary indices and the monotonic
// counter. Business-rule validation lives in the Engine; the store only
// guarantees identifier uniqueness and insertion order.
type Store struct {
	state engineState
}

// NewStore binds a loan store to the state backend.
func NewStore(state engineState) *Store { return &Store{state: state} }

// Create assigns a fresh identifier, persists the record and appends it to
// the borrower index. The returned loan is the stored instance.
func (s *Store) Create(borrower [20]byte, amount, interestRate *big.Int, loanTerm uint64) (*Loan, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	counter, err := s.state.LoanCounter()
	if err != nil {
		return nil, err
	}
	l := &Loan{
		ID:           NewLoanID(borrower, counter),
		Borrower:     borrower,
		Amount:       cloneBigInt(amount),
		InterestRate: cloneBigInt(interestRate),
		Balance:      big.NewInt(0),
		LoanTerm:     loanTerm,
	}
	if err := s.state.LoanPut(l); err != nil {
		return nil, err
	}
	if err := s.state.SetLoanCounter(counter + 1); err != nil {
		return nil, err
	}
	if err := s.state.BorrowerLoanAppend(borrower, l.ID); err != nil {
		return nil, err
	}
	return l, nil
}

// Get returns the loan for the identifier or ErrNotFound.
func (s *Store) Get(id [32]byte) (*Loan, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	l, ok := s.state.LoanGet(id)
	if !ok || l == nil {
		return nil, ErrNotFound
	}
	l.EnsureDefaults()
	return l, nil
}

// Put persists a mutated record.
func (s *Store) Put(l *Loan) error {
	if s == nil || s.state == nil {
		return errNilState
	}
	return s.state.LoanPut(l)
}

// All returns a snapshot of every loan in insertion order.
func (s *Store) All() ([]*Loan, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	ids, err := s.state.LoanList()
	if err != nil {
		return nil, err
	}
	out := make([]*Loan, 0, len(ids))
	for _, id := range ids {
		l, ok := s.state.LoanGet(id)
		if !ok || l == nil {
			return nil, ErrNotFound
		}
		l.EnsureDefaults()
		out = append(out, l)
	}
	return out, nil
}

// ByBorrower returns the identifiers of loans requested by the address, in
// creation order.
func (s *Store) ByBorrower(addr [20]byte) ([][32]byte, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	return s.state.BorrowerLoans(addr)
}

// ByLender returns the identifiers of loans funded by the address, in funding
// order.
func (s *Store) ByLender(addr [20]byte) ([][32]byte, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	return s.state.LenderLoans(addr)
}

// Count reports the number of loans created so far.
func (s *Store) Count() (uint64, error) {
	if s == nil || s.state == nil {
		return 0, errNilState
	}
	return s.state.LoanCounter()
}
