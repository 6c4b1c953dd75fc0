package loan

import (
	"math/big"
	"time"

	"edulend/core/events"
	"edulend/core/types"
	nativecommon "edulend/native/common"
)

const moduleName = "loan"

// engineState is the persistence surface the lifecycle engine requires. It is
// satisfied by state.Manager and by in-memory mocks in tests.
type engineState interface {
	LoanPut(*Loan) error
	LoanGet(id [32]byte) (*Loan, bool)
	LoanList() ([][32]byte, error)
	LoanCounter() (uint64, error)
	SetLoanCounter(uint64) error
	BorrowerLoanAppend(addr [20]byte, id [32]byte) error
	BorrowerLoans(addr [20]byte) ([][32]byte, error)
	LenderLoanAppend(addr [20]byte, id [32]byte) error
	LenderLoans(addr [20]byte) ([][32]byte, error)
	CollateralBalance(id [32]byte) (*big.Int, error)
	CollateralCredit(id [32]byte, amount *big.Int) error
	CollateralDebit(id [32]byte, amount *big.Int) error
	HasConfirmed(id [32]byte, validator [20]byte) (bool, error)
	MarkConfirmed(id [32]byte, validator [20]byte) error
	LoanLiquidated(id [32]byte) (bool, error)
	SetLoanLiquidated(id [32]byte) error
	RewardBalance(addr [20]byte) (*big.Int, error)
	RewardAdd(addr [20]byte, amount *big.Int) error
	GetAccount(addr [20]byte) (*types.Account, error)
	PutAccount(addr [20]byte, account *types.Account) error
}

type loanEvent struct {
	evt *types.Event
}

func (e loanEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e loanEvent) Event() *types.Event { return e.evt }

// Engine drives the loan lifecycle: it validates preconditions, authorizes
// callers by role, mutates the store and triggers vault and reward transfers.
// Mutating operations run one at a time to completion; every value transfer
// is issued only after the ledger fields are committed so a reentrant call
// observes post-transition state.
type Engine struct {
	state        engineState
	store        *Store
	vault        *Vault
	rewards      *Rewards
	validators   map[[20]byte]struct{}
	threshold    uint8
	rewardAmount *big.Int
	emitter      events.Emitter
	pauses       nativecommon.PauseView
	nowFn        func() int64
	inProgress   map[[32]byte]bool
}

// NewEngine constructs a lifecycle engine with the escrow vault address, the
// validator committee and the confirmation threshold.
func NewEngine(vaultAddr [20]byte, validators [][20]byte, threshold uint8) *Engine {
	set := make(map[[20]byte]struct{}, len(validators))
	for _, v := range validators {
		set[v] = struct{}{}
	}
	return &Engine{
		validators:   set,
		threshold:    threshold,
		rewardAmount: big.NewInt(0),
		emitter:      events.NoopEmitter{},
		nowFn:        func() int64 { return time.Now().Unix() },
		inProgress:   make(map[[32]byte]bool),
		vault:        &Vault{address: vaultAddr},
	}
}

// SetState wires the engine and its components to the persistence layer.
func (e *Engine) SetState(state engineState) {
	if e == nil {
		return
	}
	e.state = state
	e.store = NewStore(state)
	e.vault = NewVault(state, e.vault.address)
	e.rewards = NewRewards(state)
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetPauses wires the administrative pause switch.
func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetNowFunc overrides the clock, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetRewardAmount configures the incentive credited to a borrower on full
// repayment.
func (e *Engine) SetRewardAmount(amount *big.Int) {
	if e == nil {
		return
	}
	e.rewardAmount = cloneBigInt(amount)
}

// VaultAddress returns the escrow custody address.
func (e *Engine) VaultAddress() [20]byte {
	return e.vault.Address()
}

// IsValidator reports committee membership.
func (e *Engine) IsValidator(addr [20]byte) bool {
	if e == nil {
		return false
	}
	_, ok := e.validators[addr]
	return ok
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(loanEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// begin places the advisory in-progress marker that rejects nested reentry
// into the same loan's mutating path.
func (e *Engine) begin(id [32]byte) error {
	if e.inProgress[id] {
		return errReentrantCall
	}
	e.inProgress[id] = true
	return nil
}

func (e *Engine) end(id [32]byte) {
	delete(e.inProgress, id)
}

// RequestLoan creates a new loan with the caller as borrower and returns its
// identifier. Zero-principal requests are rejected.
func (e *Engine) RequestLoan(caller [20]byte, amount, interestRate *big.Int, loanTerm uint64) ([32]byte, error) {
	if e == nil || e.state == nil {
		return [32]byte{}, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return [32]byte{}, err
	}
	if amount == nil || amount.Sign() <= 0 {
		return [32]byte{}, ErrZeroAmount
	}
	rate := cloneBigInt(interestRate)
	if rate.Sign() < 0 {
		return [32]byte{}, ErrZeroAmount
	}
	l, err := e.store.Create(caller, amount, rate, loanTerm)
	if err != nil {
		return [32]byte{}, err
	}
	e.emit(NewRequestedEvent(l))
	return l.ID, nil
}

// DepositCollateral locks value pledged by the borrower. Deposits may be
// split across multiple calls and accumulate until the loan is funded.
func (e *Engine) DepositCollateral(id [32]byte, caller [20]byte, value *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.begin(id); err != nil {
		return err
	}
	defer e.end(id)

	l, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if l.Borrower != caller {
		return ErrUnauthorized
	}
	if l.Funded || l.IsRepaid || l.IsDefaulted {
		return ErrInvalidState
	}
	if value == nil || value.Sign() <= 0 {
		return ErrZeroAmount
	}
	if ok, err := e.vault.CanCover(caller, value); err != nil {
		return err
	} else if !ok {
		return errInsufficientBalance
	}
	total, err := e.vault.DepositCollateral(id, caller, value)
	if err != nil {
		return err
	}
	e.emit(NewCollateralDepositedEvent(l, value, total))
	return nil
}

// ConfirmLoan records one validator's approval. Each committee member may
// confirm a loan at most once and confirmations stop once the threshold is
// met.
func (e *Engine) ConfirmLoan(id [32]byte, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.begin(id); err != nil {
		return err
	}
	defer e.end(id)

	if !e.IsValidator(caller) {
		return ErrUnauthorized
	}
	l, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if l.Funded || l.IsRepaid || l.IsDefaulted {
		return ErrInvalidState
	}
	confirmed, err := e.state.HasConfirmed(id, caller)
	if err != nil {
		return err
	}
	if confirmed {
		return ErrDuplicateConfirmation
	}
	if e.threshold > 0 && l.Confirmations >= e.threshold {
		return ErrInvalidState
	}
	if err := e.state.MarkConfirmed(id, caller); err != nil {
		return err
	}
	l.Confirmations++
	if err := e.store.Put(l); err != nil {
		return err
	}
	e.emit(NewConfirmedEvent(l, caller))
	return nil
}

// ApproveLoan funds a confirmed loan. The caller becomes the lender, the full
// obligation is set and the clock starts; only then is the principal
// forwarded to the borrower.
func (e *Engine) ApproveLoan(id [32]byte, caller [20]byte, value *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.begin(id); err != nil {
		return err
	}
	defer e.end(id)

	l, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if l.Funded || l.IsRepaid || l.IsDefaulted {
		return ErrInvalidState
	}
	if caller == l.Borrower {
		return ErrUnauthorized
	}
	if e.threshold > 0 && l.Confirmations < e.threshold {
		return ErrInvalidState
	}
	collateral, err := e.vault.Balance(id)
	if err != nil {
		return err
	}
	if collateral == nil || collateral.Sign() == 0 {
		return ErrInvalidState
	}
	if value == nil || value.Cmp(l.Amount) != 0 {
		return ErrInsufficientValue
	}
	if ok, err := e.vault.CanCover(caller, value); err != nil {
		return err
	} else if !ok {
		return errInsufficientBalance
	}

	// Effects: commit every ledger field before the principal moves.
	l.Lender = caller
	l.Funded = true
	l.Balance = l.Obligation()
	l.CreatedAt = uint64(e.now())
	if err := e.store.Put(l); err != nil {
		return err
	}
	if err := e.state.LenderLoanAppend(caller, id); err != nil {
		return err
	}

	// Interaction: forward the principal to the borrower.
	if err := e.vault.FundPrincipal(caller, l.Borrower, l.Amount); err != nil {
		return err
	}
	e.emit(NewFundedEvent(l))
	return nil
}

// RepayLoan reduces the outstanding balance. Payments exceeding the balance
// are rejected rather than capped, so the attached value always equals the
// reduction. Reaching zero settles the loan: the collateral returns to the
// borrower and the repayment incentive accrues.
func (e *Engine) RepayLoan(id [32]byte, caller [20]byte, value *big.Int) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.begin(id); err != nil {
		return err
	}
	defer e.end(id)

	l, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if l.Borrower != caller {
		return ErrUnauthorized
	}
	if !l.Funded || l.IsRepaid || l.IsDefaulted {
		return ErrInvalidState
	}
	if value == nil || value.Sign() <= 0 {
		return ErrZeroAmount
	}
	if value.Cmp(l.Balance) > 0 {
		return ErrInsufficientValue
	}
	if ok, err := e.vault.CanCover(caller, value); err != nil {
		return err
	} else if !ok {
		return errInsufficientBalance
	}

	// Effects first.
	l.Balance = new(big.Int).Sub(l.Balance, value)
	settled := l.Balance.Sign() == 0
	if settled {
		l.IsRepaid = true
	}
	if err := e.store.Put(l); err != nil {
		return err
	}

	// Interactions after commit.
	if err := e.vault.ForwardRepayment(caller, l.Lender, value); err != nil {
		return err
	}
	if !settled {
		e.emit(NewRepaymentEvent(l, value))
		return nil
	}
	if _, err := e.vault.ReleaseCollateral(id, l.Borrower); err != nil {
		return err
	}
	if err := e.rewards.Credit(l.Borrower, e.rewardAmount); err != nil {
		return err
	}
	e.emit(NewRepaidEvent(l, e.rewardAmount))
	return nil
}

// MarkAsDefaulted flags a funded loan whose term elapsed with an outstanding
// balance. Only the lender or a committee validator may trigger it; the clock
// is evaluated at call time, there is no autonomous timer.
func (e *Engine) MarkAsDefaulted(id [32]byte, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.begin(id); err != nil {
		return err
	}
	defer e.end(id)

	l, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if caller != l.Lender && !e.IsValidator(caller) {
		return ErrUnauthorized
	}
	if !l.Funded || l.IsRepaid || l.IsDefaulted {
		return ErrInvalidState
	}
	if l.Balance.Sign() == 0 {
		return ErrInvalidState
	}
	if uint64(e.now()) < l.CreatedAt+l.LoanTerm {
		return ErrDeadlineNotReached
	}
	l.IsDefaulted = true
	if err := e.store.Put(l); err != nil {
		return err
	}
	e.emit(NewDefaultedEvent(l))
	return nil
}

// LiquidateLoan pays the defaulted loan's collateral out to the lender. The
// liquidation marker is internal to state; a repeat call fails with
// ErrAlreadyReleased.
func (e *Engine) LiquidateLoan(id [32]byte, caller [20]byte) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if err := e.begin(id); err != nil {
		return err
	}
	defer e.end(id)

	l, err := e.store.Get(id)
	if err != nil {
		return err
	}
	if caller != l.Lender {
		return ErrUnauthorized
	}
	if !l.IsDefaulted {
		return ErrInvalidState
	}
	liquidated, err := e.state.LoanLiquidated(id)
	if err != nil {
		return err
	}
	if liquidated {
		return ErrAlreadyReleased
	}

	// Effects: mark before paying out.
	if err := e.state.SetLoanLiquidated(id); err != nil {
		return err
	}
	seized, err := e.vault.ReleasePrincipalToLender(id, l.Lender)
	if err != nil {
		return err
	}
	e.emit(NewLiquidatedEvent(l, seized))
	return nil
}

// GetLoanDetails returns a copy of the loan record.
func (e *Engine) GetLoanDetails(id [32]byte) (*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	l, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	return l.Clone(), nil
}

// Loans is the raw record accessor; it is identical to GetLoanDetails and
// exists because the public surface exposes both.
func (e *Engine) Loans(id [32]byte) (*Loan, error) {
	return e.GetLoanDetails(id)
}

// GetAllLoans returns a snapshot of every loan in insertion order.
func (e *Engine) GetAllLoans() ([]*Loan, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	loans, err := e.store.All()
	if err != nil {
		return nil, err
	}
	out := make([]*Loan, 0, len(loans))
	for _, l := range loans {
		out = append(out, l.Clone())
	}
	return out, nil
}

// RewardBalance reports the accrued repayment incentive for an address.
func (e *Engine) RewardBalance(addr [20]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.rewards.Balance(addr)
}

// GetBorrowerLoans lists the loan ids requested by an address.
func (e *Engine) GetBorrowerLoans(addr [20]byte) ([][32]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.store.ByBorrower(addr)
}

// GetLenderLoans lists the loan ids funded by an address.
func (e *Engine) GetLenderLoans(addr [20]byte) ([][32]byte, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.store.ByLender(addr)
}

// LoanCounter reports how many loans have been created.
func (e *Engine) LoanCounter() (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	return e.store.Count()
}

// CollateralBalance reports the locked collateral for a loan. The phase
// derivation and the RPC read surface use it alongside the record.
func (e *Engine) CollateralBalance(id [32]byte) (*big.Int, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	if _, err := e.store.Get(id); err != nil {
		return nil, err
	}
	return e.vault.Balance(id)
}

// Threshold returns the configured confirmation threshold.
func (e *Engine) Threshold() uint8 { return e.threshold }
