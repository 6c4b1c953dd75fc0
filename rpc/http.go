package rpc

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	nativecommon "edulend/native/common"
	"edulend/native/loan"
)

const (
	jsonRPCVersion  = "2.0"
	maxRequestBytes = 1 << 20 // 1 MiB
)

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeInvalidParams  = -32602
	codeServerError    = -32000

	codeUnauthorized          = -32001
	codeInvalidState          = -32002
	codeNotFound              = -32003
	codeInsufficientValue     = -32004
	codeDuplicateConfirmation = -32005
	codeAlreadyReleased       = -32006
	codeDeadlineNotReached    = -32007
	codeZeroAmount            = -32008
	codeModulePaused          = -32009
)

// Server exposes the loan lifecycle over JSON-RPC 2.0. Mutating methods are
// dispatched under a single lock: the ledger is a single-writer resource and
// operations run serially to completion.
type Server struct {
	engine *loan.Engine
	logger *slog.Logger

	mu sync.Mutex
}

// NewServer wires the RPC surface to the lifecycle engine.
func NewServer(engine *loan.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, logger: logger}
}

// Start serves the RPC endpoint until the listener fails.
func (s *Server) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handle)
	s.logger.Info("starting JSON-RPC server", "addr", addr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return srv.ListenAndServe()
}

type RPCRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      interface{}       `json:"id"`
}

type RPCResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *RPCError   `json:"error,omitempty"`
}

type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func writeError(w http.ResponseWriter, status int, id interface{}, code int, message string) {
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Error: &RPCError{Code: code, Message: message}}
	_ = json.NewEncoder(w).Encode(resp)
}

func writeResult(w http.ResponseWriter, id interface{}, result interface{}) {
	resp := RPCResponse{JSONRPC: jsonRPCVersion, ID: id, Result: result}
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, nil, codeInvalidRequest, "POST required")
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "unable to read request body")
		return
	}
	var req RPCRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, nil, codeParseError, "invalid JSON payload")
		return
	}
	if req.JSONRPC != "" && req.JSONRPC != jsonRPCVersion {
		writeError(w, http.StatusBadRequest, req.ID, codeInvalidRequest, "unsupported jsonrpc version")
		return
	}

	handler, ok := s.methods()[req.Method]
	if !ok {
		writeError(w, http.StatusNotFound, req.ID, codeMethodNotFound, "method not found")
		return
	}

	s.mu.Lock()
	result, err := handler(req.Params)
	s.mu.Unlock()
	if err != nil {
		status, code := errorCode(err)
		s.logger.Warn("rpc call failed", "method", req.Method, "err", err)
		writeError(w, status, req.ID, code, err.Error())
		return
	}
	writeResult(w, req.ID, result)
}

type handlerFunc func(params []json.RawMessage) (interface{}, error)

func (s *Server) methods() map[string]handlerFunc {
	return map[string]handlerFunc{
		"loan_requestLoan":       s.handleRequestLoan,
		"loan_depositCollateral": s.handleDepositCollateral,
		"loan_confirmLoan":       s.handleConfirmLoan,
		"loan_approveLoan":       s.handleApproveLoan,
		"loan_repayLoan":         s.handleRepayLoan,
		"loan_markAsDefaulted":   s.handleMarkAsDefaulted,
		"loan_liquidateLoan":     s.handleLiquidateLoan,
		"loan_getAllLoans":       s.handleGetAllLoans,
		"loan_getLoanDetails":    s.handleGetLoanDetails,
		"loan_loans":             s.handleLoans,
		"loan_rewardBalance":     s.handleRewardBalance,
		"loan_getBorrowerLoans":  s.handleGetBorrowerLoans,
		"loan_getLenderLoans":    s.handleGetLenderLoans,
		"loan_loanCounter":       s.handleLoanCounter,
	}
}

func errorCode(err error) (int, int) {
	switch {
	case errors.Is(err, errInvalidParams):
		return http.StatusBadRequest, codeInvalidParams
	case errors.Is(err, loan.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, loan.ErrUnauthorized):
		return http.StatusForbidden, codeUnauthorized
	case errors.Is(err, loan.ErrDuplicateConfirmation):
		return http.StatusConflict, codeDuplicateConfirmation
	case errors.Is(err, loan.ErrAlreadyReleased):
		return http.StatusConflict, codeAlreadyReleased
	case errors.Is(err, loan.ErrDeadlineNotReached):
		return http.StatusConflict, codeDeadlineNotReached
	case errors.Is(err, loan.ErrInsufficientValue):
		return http.StatusBadRequest, codeInsufficientValue
	case errors.Is(err, loan.ErrZeroAmount):
		return http.StatusBadRequest, codeZeroAmount
	case errors.Is(err, loan.ErrInvalidState):
		return http.StatusConflict, codeInvalidState
	case errors.Is(err, nativecommon.ErrModulePaused):
		return http.StatusServiceUnavailable, codeModulePaused
	default:
		return http.StatusInternalServerError, codeServerError
	}
}
