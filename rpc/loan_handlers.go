package rpc

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"edulend/native/loan"
)

var errInvalidParams = errors.New("rpc: invalid params")

type callerParams struct {
	Caller string `json:"caller"`
}

type requestLoanParams struct {
	Caller       string `json:"caller"`
	Amount       string `json:"amount"`
	InterestRate string `json:"interestRate"`
	LoanTerm     uint64 `json:"loanTerm"`
}

type loanCallParams struct {
	LoanID string `json:"loanId"`
	Caller string `json:"caller"`
}

type loanValueParams struct {
	LoanID string `json:"loanId"`
	Caller string `json:"caller"`
	Value  string `json:"value"`
}

type loanIDParams struct {
	LoanID string `json:"loanId"`
}

type addressParams struct {
	Address string `json:"address"`
}

type loanResult struct {
	LoanID        string `json:"loanId"`
	Lender        string `json:"lender"`
	Borrower      string `json:"borrower"`
	Amount        string `json:"amount"`
	InterestRate  string `json:"interestRate"`
	Balance       string `json:"balance"`
	LoanTerm      uint64 `json:"loanTerm"`
	CreatedAt     uint64 `json:"createdAt"`
	IsRepaid      bool   `json:"isRepaid"`
	IsDefaulted   bool   `json:"isDefaulted"`
	Confirmations uint8  `json:"confirmations"`
	Funded        bool   `json:"funded"`
	Phase         string `json:"phase"`
}

type idListResult struct {
	LoanIDs []string `json:"loanIds"`
}

func decodeParams(params []json.RawMessage, out interface{}) error {
	if len(params) != 1 {
		return fmt.Errorf("%w: expected one params object", errInvalidParams)
	}
	if err := json.Unmarshal(params[0], out); err != nil {
		return fmt.Errorf("%w: %v", errInvalidParams, err)
	}
	return nil
}

func parseAddress(s string) ([20]byte, error) {
	var addr [20]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return addr, fmt.Errorf("%w: invalid address", errInvalidParams)
	}
	if len(raw) != 20 {
		return addr, fmt.Errorf("%w: address must be 20 bytes", errInvalidParams)
	}
	copy(addr[:], raw)
	return addr, nil
}

func parseLoanID(s string) ([32]byte, error) {
	var id [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return id, fmt.Errorf("%w: invalid loan id", errInvalidParams)
	}
	if len(raw) != 32 {
		return id, fmt.Errorf("%w: loan id must be 32 bytes", errInvalidParams)
	}
	copy(id[:], raw)
	return id, nil
}

func parseAmount(s string) (*big.Int, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: amount required", errInvalidParams)
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("%w: amount must be a decimal integer", errInvalidParams)
	}
	if value.Sign() < 0 {
		return nil, fmt.Errorf("%w: amount must be non-negative", errInvalidParams)
	}
	return value, nil
}

func (s *Server) loanToResult(l *loan.Loan) *loanResult {
	collateral, err := s.engine.CollateralBalance(l.ID)
	if err != nil {
		collateral = big.NewInt(0)
	}
	return &loanResult{
		LoanID:        "0x" + hex.EncodeToString(l.ID[:]),
		Lender:        "0x" + hex.EncodeToString(l.Lender[:]),
		Borrower:      "0x" + hex.EncodeToString(l.Borrower[:]),
		Amount:        l.Amount.String(),
		InterestRate:  l.InterestRate.String(),
		Balance:       l.Balance.String(),
		LoanTerm:      l.LoanTerm,
		CreatedAt:     l.CreatedAt,
		IsRepaid:      l.IsRepaid,
		IsDefaulted:   l.IsDefaulted,
		Confirmations: l.Confirmations,
		Funded:        l.Funded,
		Phase:         loan.PhaseOf(l, collateral, s.engine.Threshold()).String(),
	}
}

func idsToResult(ids [][32]byte) idListResult {
	out := idListResult{LoanIDs: make([]string, 0, len(ids))}
	for _, id := range ids {
		out.LoanIDs = append(out.LoanIDs, "0x"+hex.EncodeToString(id[:]))
	}
	return out
}

func (s *Server) handleRequestLoan(params []json.RawMessage) (interface{}, error) {
	var p requestLoanParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return nil, err
	}
	amount, err := parseAmount(p.Amount)
	if err != nil {
		return nil, err
	}
	rate, err := parseAmount(p.InterestRate)
	if err != nil {
		return nil, err
	}
	id, err := s.engine.RequestLoan(caller, amount, rate, p.LoanTerm)
	if err != nil {
		return nil, err
	}
	return map[string]string{"loanId": "0x" + hex.EncodeToString(id[:])}, nil
}

func (s *Server) handleDepositCollateral(params []json.RawMessage) (interface{}, error) {
	id, caller, value, err := s.valueCall(params)
	if err != nil {
		return nil, err
	}
	if err := s.engine.DepositCollateral(id, caller, value); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleConfirmLoan(params []json.RawMessage) (interface{}, error) {
	id, caller, err := s.loanCall(params)
	if err != nil {
		return nil, err
	}
	if err := s.engine.ConfirmLoan(id, caller); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleApproveLoan(params []json.RawMessage) (interface{}, error) {
	id, caller, value, err := s.valueCall(params)
	if err != nil {
		return nil, err
	}
	if err := s.engine.ApproveLoan(id, caller, value); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleRepayLoan(params []json.RawMessage) (interface{}, error) {
	id, caller, value, err := s.valueCall(params)
	if err != nil {
		return nil, err
	}
	if err := s.engine.RepayLoan(id, caller, value); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleMarkAsDefaulted(params []json.RawMessage) (interface{}, error) {
	id, caller, err := s.loanCall(params)
	if err != nil {
		return nil, err
	}
	if err := s.engine.MarkAsDefaulted(id, caller); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleLiquidateLoan(params []json.RawMessage) (interface{}, error) {
	id, caller, err := s.loanCall(params)
	if err != nil {
		return nil, err
	}
	if err := s.engine.LiquidateLoan(id, caller); err != nil {
		return nil, err
	}
	return map[string]bool{"ok": true}, nil
}

func (s *Server) handleGetAllLoans(params []json.RawMessage) (interface{}, error) {
	if len(params) > 0 {
		return nil, fmt.Errorf("%w: no params expected", errInvalidParams)
	}
	loans, err := s.engine.GetAllLoans()
	if err != nil {
		return nil, err
	}
	out := make([]*loanResult, 0, len(loans))
	for _, l := range loans {
		out = append(out, s.loanToResult(l))
	}
	return out, nil
}

func (s *Server) handleGetLoanDetails(params []json.RawMessage) (interface{}, error) {
	var p loanIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	id, err := parseLoanID(p.LoanID)
	if err != nil {
		return nil, err
	}
	l, err := s.engine.GetLoanDetails(id)
	if err != nil {
		return nil, err
	}
	return s.loanToResult(l), nil
}

func (s *Server) handleLoans(params []json.RawMessage) (interface{}, error) {
	var p loanIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	id, err := parseLoanID(p.LoanID)
	if err != nil {
		return nil, err
	}
	l, err := s.engine.Loans(id)
	if err != nil {
		return nil, err
	}
	return s.loanToResult(l), nil
}

func (s *Server) handleRewardBalance(params []json.RawMessage) (interface{}, error) {
	var p addressParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	addr, err := parseAddress(p.Address)
	if err != nil {
		return nil, err
	}
	balance, err := s.engine.RewardBalance(addr)
	if err != nil {
		return nil, err
	}
	return map[string]string{"balance": balance.String()}, nil
}

func (s *Server) handleGetBorrowerLoans(params []json.RawMessage) (interface{}, error) {
	var p addressParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	addr, err := parseAddress(p.Address)
	if err != nil {
		return nil, err
	}
	ids, err := s.engine.GetBorrowerLoans(addr)
	if err != nil {
		return nil, err
	}
	return idsToResult(ids), nil
}

func (s *Server) handleGetLenderLoans(params []json.RawMessage) (interface{}, error) {
	var p addressParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	addr, err := parseAddress(p.Address)
	if err != nil {
		return nil, err
	}
	ids, err := s.engine.GetLenderLoans(addr)
	if err != nil {
		return nil, err
	}
	return idsToResult(ids), nil
}

func (s *Server) handleLoanCounter(params []json.RawMessage) (interface{}, error) {
	if len(params) > 0 {
		return nil, fmt.Errorf("%w: no params expected", errInvalidParams)
	}
	counter, err := s.engine.LoanCounter()
	if err != nil {
		return nil, err
	}
	return map[string]uint64{"counter": counter}, nil
}

func (s *Server) loanCall(params []json.RawMessage) ([32]byte, [20]byte, error) {
	var p loanCallParams
	if err := decodeParams(params, &p); err != nil {
		return [32]byte{}, [20]byte{}, err
	}
	id, err := parseLoanID(p.LoanID)
	if err != nil {
		return [32]byte{}, [20]byte{}, err
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return [32]byte{}, [20]byte{}, err
	}
	return id, caller, nil
}

func (s *Server) valueCall(params []json.RawMessage) ([32]byte, [20]byte, *big.Int, error) {
	var p loanValueParams
	if err := decodeParams(params, &p); err != nil {
		return [32]byte{}, [20]byte{}, nil, err
	}
	id, err := parseLoanID(p.LoanID)
	if err != nil {
		return [32]byte{}, [20]byte{}, nil, err
	}
	caller, err := parseAddress(p.Caller)
	if err != nil {
		return [32]byte{}, [20]byte{}, nil, err
	}
	value, err := parseAmount(p.Value)
	if err != nil {
		return [32]byte{}, [20]byte{}, nil, err
	}
	return id, caller, value, nil
}
