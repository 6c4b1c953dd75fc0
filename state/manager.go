package state

import (
	"errors"
	"fmt"
	"math/big"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"edulend/core/types"
	"edulend/native/loan"
	"edulend/storage"
)

// Manager persists the loan ledger over a flat key-value store. Keys are
// keccak hashes of namespaced preimages; values are RLP encoded. It satisfies
// the loan engine's state interface.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

var (
	loanPrefix       = []byte("loan/record/")
	borrowerPrefix   = []byte("loan/borrower/")
	lenderPrefix     = []byte("loan/lender/")
	collateralPrefix = []byte("loan/collateral/")
	confirmedPrefix  = []byte("loan/confirmed/")
	liquidatedPrefix = []byte("loan/liquidated/")
	rewardPrefix     = []byte("loan/reward/")
	accountPrefix    = []byte("account/")

	loanListKey    = ethcrypto.Keccak256([]byte("loan/list"))
	loanCounterKey = ethcrypto.Keccak256([]byte("loan/counter"))
)

var errNegativeAmount = errors.New("state: amount must be non-negative")

func prefixedKey(prefix, suffix []byte) []byte {
	buf := make([]byte, 0, len(prefix)+len(suffix))
	buf = append(buf, prefix...)
	buf = append(buf, suffix...)
	return ethcrypto.Keccak256(buf)
}

func (m *Manager) getRLP(key []byte, out interface{}) (bool, error) {
	data, err := m.db.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) putRLP(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.db.Put(key, encoded)
}

// --- Loan records ---

// LoanPut persists the record and registers first-time ids in the ordered
// list backing getAllLoans.
func (m *Manager) LoanPut(l *loan.Loan) error {
	if l == nil {
		return fmt.Errorf("state: nil loan")
	}
	stored := l.Clone()
	stored.EnsureDefaults()
	key := prefixedKey(loanPrefix, stored.ID[:])
	known, err := m.db.Has(key)
	if err != nil {
		return err
	}
	if err := m.putRLP(key, stored); err != nil {
		return err
	}
	if known {
		return nil
	}
	ids, err := m.LoanList()
	if err != nil {
		return err
	}
	ids = append(ids, stored.ID)
	return m.putRLP(loanListKey, ids)
}

// LoanGet returns a copy of the stored record.
func (m *Manager) LoanGet(id [32]byte) (*loan.Loan, bool) {
	stored := new(loan.Loan)
	ok, err := m.getRLP(prefixedKey(loanPrefix, id[:]), stored)
	if err != nil || !ok {
		return nil, false
	}
	stored.EnsureDefaults()
	return stored, true
}

// LoanList returns every loan id in insertion order.
func (m *Manager) LoanList() ([][32]byte, error) {
	var ids [][32]byte
	if _, err := m.getRLP(loanListKey, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// LoanCounter reports the number of loans created so far.
func (m *Manager) LoanCounter() (uint64, error) {
	var counter uint64
	if _, err := m.getRLP(loanCounterKey, &counter); err != nil {
		return 0, err
	}
	return counter, nil
}

// SetLoanCounter persists the monotonic id counter.
func (m *Manager) SetLoanCounter(counter uint64) error {
	return m.putRLP(loanCounterKey, counter)
}

// --- Secondary indices ---

func (m *Manager) appendID(key []byte, id [32]byte) error {
	var ids [][32]byte
	if _, err := m.getRLP(key, &ids); err != nil {
		return err
	}
	ids = append(ids, id)
	return m.putRLP(key, ids)
}

func (m *Manager) listIDs(key []byte) ([][32]byte, error) {
	var ids [][32]byte
	if _, err := m.getRLP(key, &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// BorrowerLoanAppend records a loan under the borrower index.
func (m *Manager) BorrowerLoanAppend(addr [20]byte, id [32]byte) error {
	return m.appendID(prefixedKey(borrowerPrefix, addr[:]), id)
}

// BorrowerLoans lists a borrower's loan ids in creation order.
func (m *Manager) BorrowerLoans(addr [20]byte) ([][32]byte, error) {
	return m.listIDs(prefixedKey(borrowerPrefix, addr[:]))
}

// LenderLoanAppend records a loan under the lender index.
func (m *Manager) LenderLoanAppend(addr [20]byte, id [32]byte) error {
	return m.appendID(prefixedKey(lenderPrefix, addr[:]), id)
}

// LenderLoans lists a lender's loan ids in funding order.
func (m *Manager) LenderLoans(addr [20]byte) ([][32]byte, error) {
	return m.listIDs(prefixedKey(lenderPrefix, addr[:]))
}

// --- Collateral bookkeeping ---

func (m *Manager) bigIntAt(key []byte) (*big.Int, error) {
	value := new(big.Int)
	ok, err := m.getRLP(key, value)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return value, nil
}

// CollateralBalance reports the cumulative locked collateral for a loan.
func (m *Manager) CollateralBalance(id [32]byte) (*big.Int, error) {
	return m.bigIntAt(prefixedKey(collateralPrefix, id[:]))
}

// CollateralCredit accumulates pledged value for a loan.
func (m *Manager) CollateralCredit(id [32]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	key := prefixedKey(collateralPrefix, id[:])
	balance, err := m.bigIntAt(key)
	if err != nil {
		return err
	}
	return m.putRLP(key, new(big.Int).Add(balance, amount))
}

// CollateralDebit removes released value; debits beyond the balance fail.
func (m *Manager) CollateralDebit(id [32]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	key := prefixedKey(collateralPrefix, id[:])
	balance, err := m.bigIntAt(key)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("state: collateral debit exceeds balance")
	}
	return m.putRLP(key, new(big.Int).Sub(balance, amount))
}

// --- Validator confirmations ---

// HasConfirmed reports whether the validator already confirmed the loan.
func (m *Manager) HasConfirmed(id [32]byte, validator [20]byte) (bool, error) {
	var confirmed [][20]byte
	if _, err := m.getRLP(prefixedKey(confirmedPrefix, id[:]), &confirmed); err != nil {
		return false, err
	}
	for _, addr := range confirmed {
		if addr == validator {
			return true, nil
		}
	}
	return false, nil
}

// MarkConfirmed records the validator in the loan's confirmation set.
func (m *Manager) MarkConfirmed(id [32]byte, validator [20]byte) error {
	key := prefixedKey(confirmedPrefix, id[:])
	var confirmed [][20]byte
	if _, err := m.getRLP(key, &confirmed); err != nil {
		return err
	}
	for _, addr := range confirmed {
		if addr == validator {
			return nil
		}
	}
	confirmed = append(confirmed, validator)
	return m.putRLP(key, confirmed)
}

// --- Liquidation marker ---

// LoanLiquidated reports whether the defaulted loan's payout already ran. The
// marker is internal: the public record carries no such field.
func (m *Manager) LoanLiquidated(id [32]byte) (bool, error) {
	var liquidated bool
	if _, err := m.getRLP(prefixedKey(liquidatedPrefix, id[:]), &liquidated); err != nil {
		return false, err
	}
	return liquidated, nil
}

// SetLoanLiquidated places the internal liquidation marker.
func (m *Manager) SetLoanLiquidated(id [32]byte) error {
	return m.putRLP(prefixedKey(liquidatedPrefix, id[:]), true)
}

// --- Reward ledger ---

// RewardBalance reports the accrued incentive for an address.
func (m *Manager) RewardBalance(addr [20]byte) (*big.Int, error) {
	return m.bigIntAt(prefixedKey(rewardPrefix, addr[:]))
}

// RewardAdd accrues an incentive credit for an address.
func (m *Manager) RewardAdd(addr [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return errNegativeAmount
	}
	key := prefixedKey(rewardPrefix, addr[:])
	balance, err := m.bigIntAt(key)
	if err != nil {
		return err
	}
	return m.putRLP(key, new(big.Int).Add(balance, amount))
}

// --- Accounts ---

// GetAccount loads a participant account, returning an empty account for
// unknown addresses.
func (m *Manager) GetAccount(addr [20]byte) (*types.Account, error) {
	account := new(types.Account)
	ok, err := m.getRLP(prefixedKey(accountPrefix, addr[:]), account)
	if err != nil {
		return nil, err
	}
	if !ok {
		account = &types.Account{}
	}
	account.EnsureDefaults()
	return account, nil
}

// PutAccount persists a participant account.
func (m *Manager) PutAccount(addr [20]byte, account *types.Account) error {
	if account == nil {
		return fmt.Errorf("state: nil account")
	}
	stored := account.Clone()
	stored.EnsureDefaults()
	return m.putRLP(prefixedKey(accountPrefix, addr[:]), stored)
}
