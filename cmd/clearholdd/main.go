package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"clearhold/config"
	"clearhold/core/events"
	"clearhold/core/ledger"
	"clearhold/gateway"
	"clearhold/native/dispute"
	"clearhold/native/escrow"
	"clearhold/native/payments"
	"clearhold/native/reputation"
	"clearhold/native/token"
	"clearhold/observability"
	"clearhold/observability/logging"
	"clearhold/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("CLEARHOLD_ENV"))
	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	var logger = logging.Setup("clearholdd", env)
	if strings.TrimSpace(cfg.LogFile) != "" {
		logger = logging.SetupWithRotation("clearholdd", env, cfg.LogFile)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("daemon exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	admin, err := config.ParseAddress(cfg.AdminAddress)
	if err != nil {
		return fmt.Errorf("admin address: %w", err)
	}
	moduleAddr, err := config.ParseAddress(cfg.ModuleAddress)
	if err != nil {
		return fmt.Errorf("module address: %w", err)
	}
	vault, err := config.ParseAddress(cfg.VaultAddress)
	if err != nil {
		return fmt.Errorf("vault address: %w", err)
	}
	treasury, err := config.ParseAddress(cfg.TreasuryAddress)
	if err != nil {
		return fmt.Errorf("treasury address: %w", err)
	}

	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return fmt.Errorf("open state db: %w", err)
	}
	defer db.Close()

	audit := events.NewRecorder()
	emitter := events.Fanout{audit, observability.NewEmitter()}
	substrate := ledger.New()

	tokens := token.NewRegistry(admin)
	tokens.SetEmitter(emitter)

	processor := payments.NewProcessor()
	processor.SetManager(moduleAddr)
	processor.SetLedger(substrate)
	if err := processor.SetFeeBps(cfg.ProtocolFeeBps, cfg.ReferrerFeeBps); err != nil {
		return err
	}
	if err := processor.SetPlatformFeeBps(cfg.PlatformFeeBps); err != nil {
		return err
	}

	reputations := reputation.NewRegistry(admin)
	reputations.SetManager(moduleAddr)
	reputations.SetEmitter(emitter)

	disputes := dispute.NewEngine(vault, cfg.MinStake())
	disputes.SetManager(moduleAddr)
	disputes.SetLedger(substrate)
	disputes.SetEmitter(emitter)

	manager := escrow.NewManager(admin, moduleAddr, vault, treasury)
	manager.SetState(storage.NewState(db))
	manager.SetLedger(substrate)
	manager.SetEmitter(emitter)
	manager.SetExpiryWindow(time.Duration(cfg.ExpiryWindowDays) * 24 * time.Hour)
	if err := manager.SetContracts(admin, processor, reputations, disputes, tokens); err != nil {
		return err
	}

	server := gateway.NewServer(manager, disputes, reputations, tokens, audit)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("gateway listening", "addr", cfg.ListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(ctx)
}
