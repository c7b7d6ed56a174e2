package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ardanlabs/conf/v3"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ledgerlab/minichain/app/services/node/handlers"
	"github.com/ledgerlab/minichain/foundation/blockchain/peer"
	"github.com/ledgerlab/minichain/foundation/blockchain/state"
	"github.com/ledgerlab/minichain/foundation/blockchain/worker"
	"github.com/ledgerlab/minichain/foundation/events"
	"github.com/ledgerlab/minichain/foundation/logger"
	"github.com/ledgerlab/minichain/foundation/nameservice"
	"go.uber.org/zap"
)

// build is the git version of this program. It is set using build flags in the makefile.
var build = "develop"

func main() {

	// Construct the application logger.
	log, err := logger.New("NODE")
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	defer log.Sync()

	// Perform the startup and shutdown sequence.
	if err := run(log); err != nil {
		log.Errorw("startup", "ERROR", err)
		log.Sync()
		os.Exit(1)
	}
}

func run(log *zap.SugaredLogger) error {

	// =========================================================================
	// Configuration

	cfg := struct {
		conf.Version
		Web struct {
			ReadTimeout     time.Duration `conf:"default:5s"`
			WriteTimeout    time.Duration `conf:"default:60s"`
			IdleTimeout     time.Duration `conf:"default:120s"`
			ShutdownTimeout time.Duration `conf:"default:20s"`
			DebugHost       string        `conf:"default:0.0.0.0:7080"`
			PublicHost      string        `conf:"default:0.0.0.0:3001"`
			P2PHost         string        `conf:"default:0.0.0.0:6001"`
		}
		State struct {
			MinerName      string        `conf:"default:miner1"`
			SyncInterval   time.Duration `conf:"default:1m"`
			PeerQueue      int           `conf:"default:64"`
			MaxMessageSize int64         `conf:"default:33554432"`
			KnownPeers     []string
		}
		NameService struct {
			Folder string `conf:"default:zblock/accounts/"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "proof of work blockchain node",
		},
	}

	const prefix = "NODE"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// =========================================================================
	// App Starting

	log.Infow("starting service", "version", build)
	defer log.Infow("shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Infow("startup", "config", out)

	// =========================================================================
	// Name Service Support

	// The names come from the key files in the name service folder.
	ns, err := nameservice.New(cfg.NameService.Folder)
	if err != nil {
		return fmt.Errorf("unable to load name service: %w", err)
	}

	for address, name := range ns.Copy() {
		log.Infow("startup", "status", "nameservice", "name", name, "address", address)
	}

	// =========================================================================
	// Blockchain Support

	// The miner's key file decides who gets paid the coinbase. Without a
	// miner name blocks are mined with the submitted transactions only.
	var beneficiary string
	if cfg.State.MinerName != "" {
		path := filepath.Join(cfg.NameService.Folder, cfg.State.MinerName+".ecdsa")
		privateKey, err := crypto.LoadECDSA(path)
		if err != nil {
			return fmt.Errorf("unable to load private key for miner %q: %w", cfg.State.MinerName, err)
		}
		beneficiary = nameservice.Address(privateKey)
	}

	peerQueue := cfg.State.PeerQueue
	if peerQueue <= 0 {
		peerQueue = peer.DefaultQueueSize
	}

	// The blockchain packages accept a function of this signature to allow the
	// application to log. These raw messages are also sent to any websocket
	// client that is connected into the system through the events package.
	evts := events.New()
	ev := func(v string, args ...any) {
		s := fmt.Sprintf(v, args...)
		log.Infow(s, "traceid", "00000000-0000-0000-0000-000000000000")
		evts.Send(s)
	}

	// The state value represents the blockchain node and manages the blockchain
	// database and provides an API for application support.
	state, err := state.New(state.Config{
		Beneficiary:    beneficiary,
		PeerQueue:      peerQueue,
		MaxMessageSize: cfg.State.MaxMessageSize,
		EvHandler:      ev,
	})
	if err != nil {
		return err
	}
	defer state.Shutdown()

	// The worker package implements mining and peer synchronization. The
	// worker will register itself with the state.
	worker.Run(state, worker.Config{
		KnownPeers:   cfg.State.KnownPeers,
		SyncInterval: cfg.State.SyncInterval,
		EvHandler:    ev,
	})

	// =========================================================================
	// Start Debug Service

	log.Infow("startup", "status", "debug v1 router started", "host", cfg.Web.DebugHost)

	debugMux := handlers.DebugMux(build, log, state)

	// Start the service listening for debug requests.
	// Not concerned with shutting this down with load shedding.
	go func() {
		if err := http.ListenAndServe(cfg.Web.DebugHost, debugMux); err != nil {
			log.Errorw("shutdown", "status", "debug v1 router closed", "host", cfg.Web.DebugHost, "ERROR", err)
		}
	}()

	// =========================================================================
	// Service Start/Stop Support

	// Make a channel to listen for an interrupt or terminate signal from the OS.
	// Use a buffered channel because the signal package requires it.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	// Make a channel to listen for errors coming from the listener. Use a
	// buffered channel so the goroutine can exit if we don't collect this error.
	serverErrors := make(chan error, 1)

	// =========================================================================
	// Start Public Service

	log.Infow("startup", "status", "initializing V1 public API support")

	publicMux := handlers.PublicMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    state,
		NS:       ns,
		Evts:     evts,
	})

	public := http.Server{
		Addr:         cfg.Web.PublicHost,
		Handler:      publicMux,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		ErrorLog:     zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "public api router started", "host", public.Addr)
		serverErrors <- public.ListenAndServe()
	}()

	// =========================================================================
	// Start P2P Service

	log.Infow("startup", "status", "initializing P2P support")

	p2pMux := handlers.P2PMux(handlers.MuxConfig{
		Shutdown: shutdown,
		Log:      log,
		State:    state,
	})

	// Peer connections are long lived websockets so there is no write
	// timeout on this server.
	p2p := http.Server{
		Addr:        cfg.Web.P2PHost,
		Handler:     p2pMux,
		ReadTimeout: cfg.Web.ReadTimeout,
		IdleTimeout: cfg.Web.IdleTimeout,
		ErrorLog:    zap.NewStdLog(log.Desugar()),
	}

	go func() {
		log.Infow("startup", "status", "p2p router started", "host", p2p.Addr)
		serverErrors <- p2p.ListenAndServe()
	}()

	// =========================================================================
	// Shutdown

	// Blocking main and waiting for shutdown.
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Infow("shutdown", "status", "shutdown started", "signal", sig)
		defer log.Infow("shutdown", "status", "shutdown complete", "signal", sig)

		// Release any web sockets that are currently active.
		log.Infow("shutdown", "status", "shutdown web socket channels")
		evts.Shutdown()

		// Give outstanding requests a deadline for completion.
		ctx, cancelP2P := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelP2P()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown p2p started")
		if err := p2p.Shutdown(ctx); err != nil {
			p2p.Close()
			return fmt.Errorf("could not stop p2p service gracefully: %w", err)
		}

		// Give outstanding requests a deadline for completion.
		ctx, cancelPub := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
		defer cancelPub()

		// Asking listener to shut down and shed load.
		log.Infow("shutdown", "status", "shutdown public API started")
		if err := public.Shutdown(ctx); err != nil {
			public.Close()
			return fmt.Errorf("could not stop public service gracefully: %w", err)
		}
	}

	return nil
}
