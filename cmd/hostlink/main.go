/*
Hostlink

2026 © Postgres.ai

Queue-driven automation of 3270 mainframe sessions.
*/

package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"gitlab.com/postgres-ai/database-lab/v2/pkg/log"

	"gitlab.com/postgres-ai/hostlink/pkg/api"
	"gitlab.com/postgres-ai/hostlink/pkg/config"
	"gitlab.com/postgres-ai/hostlink/pkg/crypt"
	"gitlab.com/postgres-ai/hostlink/pkg/emulator/s3270"
	"gitlab.com/postgres-ai/hostlink/pkg/instruction"
	"gitlab.com/postgres-ai/hostlink/pkg/interpreter"
	"gitlab.com/postgres-ai/hostlink/pkg/navigation"
	"gitlab.com/postgres-ai/hostlink/pkg/observability"
	"gitlab.com/postgres-ai/hostlink/pkg/screen"
	"gitlab.com/postgres-ai/hostlink/pkg/services/credentials"
	"gitlab.com/postgres-ai/hostlink/pkg/services/orchestrator"
	"gitlab.com/postgres-ai/hostlink/pkg/services/queue"
	"gitlab.com/postgres-ai/hostlink/pkg/services/sessionmgr"
	"gitlab.com/postgres-ai/hostlink/pkg/storage"
	"gitlab.com/postgres-ai/hostlink/pkg/storage/memstore"
	"gitlab.com/postgres-ai/hostlink/pkg/storage/pgstore"
)

const configFilePath = "config/config.yml"

// ldflag variables.
var buildTime, version string

func main() {
	version := formatVersion()

	cfg, err := config.Load(config.ResolvePath(configFilePath))
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	log.SetDebug(cfg.App.Debug)

	log.Dbg("version: ", version)

	cfg.App.Version = version

	ctx, cancel := context.WithCancel(context.Background())
	shutdownCh := setShutdownListener()

	store, q, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}

	defer closeStore()

	metrics, err := observability.NewDefault()
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to register metrics"))
	}

	sealer, err := loadSealer(cfg.Credentials)
	if err != nil {
		log.Fatal(err)
	}

	creds, err := credentials.NewPool(store, sealer, cfg.Credentials)
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to create the credential pool"))
	}

	provider := instruction.NewFileProvider(config.ResolvePath(cfg.Instructions.Dir))
	interp := interpreter.New(
		screen.NewEngine(cfg.Emulator.PollInterval, metrics),
		navigation.NewExecutor(cfg.Emulator.KeyTimeout, metrics),
	)

	sessions := sessionmgr.NewManager(cfg.Sessions, store, creds, provider, interp, s3270.NewDialer(cfg.Emulator), metrics)
	snapshotPath := config.ResolvePath(cfg.Sessions.SnapshotPath)

	if err := sessions.RestoreSessions(ctx, snapshotPath); err != nil {
		log.Err("failed to restore sessions: ", err)
	}

	consumer := queue.NewConsumer(cfg.Queue, q, orchestrator.New(cfg.App, store, sessions, provider, metrics))
	server := api.NewServer(cfg, q, store, sessions)

	go setSighupListener(ctx, sessions, provider, snapshotPath)
	go runIdleCheck(ctx, sessions, cfg.Sessions.IdleCheckInterval)

	consumerDone := make(chan error, 1)

	go func() {
		consumerDone <- consumer.Run(ctx)
	}()

	go func() {
		if err := server.Run(); err != nil && err != http.ErrServerClosed {
			log.Fatal(err)
		}
	}()

	<-shutdownCh
	log.Dbg("shutdown request received")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Msg(err)
	}

	select {
	case err := <-consumerDone:
		if err != nil {
			log.Err("queue consumer: ", err)
		}
	case <-shutdownCtx.Done():
		log.Err("queue consumer did not stop in time")
	}

	if err := sessions.SaveSnapshot(snapshotPath); err != nil {
		log.Err("failed to save sessions: ", err)
	}

	sessions.Close(shutdownCtx)
}

// openStore opens the configured store and the queue kept next to it.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, queue.Queue, func(), error) {
	if cfg.Store.Driver == config.DriverMemory {
		log.Msg("Using the in-memory store, state is lost on exit")

		return memstore.New(), queue.NewMemory(cfg.Queue.VisibilityTimeout), func() {}, nil
	}

	store, err := pgstore.Open(ctx, cfg.Store.DSN)
	if err != nil {
		return nil, nil, nil, err
	}

	return store, queue.NewPostgres(store.Pool(), cfg.Queue.VisibilityTimeout), store.Close, nil
}

// loadSealer returns nil when no key is configured and credentials are kept in plain text.
func loadSealer(cfg config.Credentials) (crypt.Sealer, error) {
	switch {
	case cfg.Key != "":
		return crypt.NewAgeSealer(cfg.Key)

	case cfg.KeyFile != "":
		return crypt.LoadAgeSealer(config.ResolvePath(cfg.KeyFile))

	default:
		log.Msg("Credential key is not configured, passwords are stored unsealed")
		return nil, nil
	}
}

func formatVersion() string {
	return version + "-" + buildTime
}

func setShutdownListener() chan os.Signal {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	return c
}

// setSighupListener dumps live sessions and drops cached instruction sets.
func setSighupListener(ctx context.Context, sessions *sessionmgr.Manager, provider *instruction.FileProvider, path string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGHUP)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c:
			if err := sessions.SaveSnapshot(path); err != nil {
				log.Err("failed to save sessions: ", err)
			}

			provider.Reset()
			log.Msg("Instruction sets will be reloaded")
		}
	}
}

func runIdleCheck(ctx context.Context, sessions *sessionmgr.Manager, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sessions.CheckIdleSessions(ctx)
		}
	}
}
