package main

import (
	"flag"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"

	"edulend/config"
	"edulend/core/events"
	coretypes "edulend/core/types"
	"edulend/native/loan"
	"edulend/observability/logging"
	"edulend/rpc"
	"edulend/state"
	"edulend/storage"
)

type logEmitter struct {
	logger *slog.Logger
}

func (e logEmitter) Emit(evt events.Event) {
	carrier, ok := evt.(interface {
		Event() *coretypes.Event
	})
	if !ok || carrier.Event() == nil {
		return
	}
	payload := carrier.Event()
	args := make([]any, 0, len(payload.Attributes)*2)
	for k, v := range payload.Attributes {
		args = append(args, k, v)
	}
	e.logger.Info(payload.Type, args...)
}

func main() {
	configPath := flag.String("config", "./config.toml", "path to the TOML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	logger := logging.Setup("edulendd", cfg.Environment, cfg.LogFile)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		logger.Error("failed to create data dir", "err", err)
		os.Exit(1)
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	if err != nil {
		logger.Error("failed to open ledger database", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)

	vaultAddr, err := config.DecodeAddress(cfg.VaultAddress)
	if err != nil {
		logger.Error("invalid vault address", "err", err)
		os.Exit(1)
	}
	validators, err := cfg.ValidatorAddresses()
	if err != nil {
		logger.Error("invalid validator committee", "err", err)
		os.Exit(1)
	}
	rewardAmount, ok := new(big.Int).SetString(cfg.RewardAmount, 10)
	if !ok || rewardAmount.Sign() < 0 {
		logger.Error("invalid reward amount", "value", cfg.RewardAmount)
		os.Exit(1)
	}

	engine := loan.NewEngine(vaultAddr, validators, cfg.ConfirmationThreshold)
	engine.SetState(manager)
	engine.SetRewardAmount(rewardAmount)
	engine.SetEmitter(logEmitter{logger: logger.With("component", "loan")})

	if err := seedGenesis(manager, cfg, logger); err != nil {
		logger.Error("failed to seed genesis accounts", "err", err)
		os.Exit(1)
	}

	server := rpc.NewServer(engine, logger.With("component", "rpc"))
	logger.Info("edulend ledger ready",
		"validators", len(validators),
		"threshold", cfg.ConfirmationThreshold,
		"rpc", cfg.RPCAddress)
	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", "err", err)
		os.Exit(1)
	}
}

// seedGenesis funds the configured accounts once, so attached-value
// operations work on a fresh data directory. Accounts that already carry a
// balance are left untouched.
func seedGenesis(manager *state.Manager, cfg *config.Config, logger *slog.Logger) error {
	for _, g := range cfg.Genesis {
		addr, err := config.DecodeAddress(g.Address)
		if err != nil {
			return err
		}
		balance, ok := new(big.Int).SetString(g.Balance, 10)
		if !ok || balance.Sign() < 0 {
			continue
		}
		account, err := manager.GetAccount(addr)
		if err != nil {
			return err
		}
		if account.Nonce != 0 || account.Balance.Sign() != 0 {
			continue
		}
		account.Balance = balance
		if err := manager.PutAccount(addr, account); err != nil {
			return err
		}
		logger.Info("seeded genesis account", "address", g.Address, "balance", g.Balance)
	}
	return nil
}
