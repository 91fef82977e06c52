package main

import (
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/ruteri/trust-rotation-backend/anchor"
	"github.com/ruteri/trust-rotation-backend/audit"
	"github.com/ruteri/trust-rotation-backend/common"
	"github.com/ruteri/trust-rotation-backend/httpserver"
	"github.com/ruteri/trust-rotation-backend/interfaces"
	"github.com/ruteri/trust-rotation-backend/storage"
	"github.com/ruteri/trust-rotation-backend/transport"
	"github.com/ruteri/trust-rotation-backend/trust"
)

var flags []cli.Flag = []cli.Flag{
	&cli.StringFlag{
		Name:  "config",
		Value: "",
		Usage: "path to TOML configuration file",
	},
	&cli.StringFlag{
		Name:  "listen-addr",
		Value: "",
		Usage: "address to listen on for API (overrides config)",
	},
	&cli.StringFlag{
		Name:  "storage-uri",
		Value: "",
		Usage: "trust state storage backend URI (overrides config)",
	},
	&cli.BoolFlag{
		Name:  "log-json",
		Value: false,
		Usage: "log in JSON format",
	},
	&cli.BoolFlag{
		Name:  "log-debug",
		Value: false,
		Usage: "log debug messages",
	},
	&cli.BoolFlag{
		Name:  "log-uid",
		Value: false,
		Usage: "generate a uuid and add to all log messages",
	},
	&cli.BoolFlag{
		Name:  "pprof",
		Value: false,
		Usage: "enable pprof debug endpoint",
	},
	&cli.Int64Flag{
		Name:  "drain-seconds",
		Value: 45,
		Usage: "seconds to wait in drain HTTP request",
	},
}

func main() {
	app := &cli.App{
		Name:   "trustd",
		Usage:  "Serve the trust manifest rotation API",
		Flags:  flags,
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(cCtx *cli.Context) error {
	cfg, err := loadConfig(cCtx.String("config"))
	if err != nil {
		return err
	}
	if addr := cCtx.String("listen-addr"); addr != "" {
		cfg.ListenAddr = addr
	}
	if uri := cCtx.String("storage-uri"); uri != "" {
		cfg.StorageURI = uri
	}

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   cCtx.Bool("log-debug"),
		JSON:    cCtx.Bool("log-json"),
		Service: "trustd",
		Version: common.Version,
	})
	if cCtx.Bool("log-uid") {
		logger = logger.With("uid", uuid.Must(uuid.NewRandom()).String())
	}

	store, err := storage.StoreFromURI(cfg.StorageURI, logger)
	if err != nil {
		logger.Error("Failed to create storage backend", "err", err)
		return err
	}

	auditSink, closeAudit, err := setupAudit(cfg, logger)
	if err != nil {
		logger.Error("Failed to set up audit trail", "err", err)
		return err
	}
	defer closeAudit()

	var manifestAnchor interfaces.ManifestAnchor
	if cfg.Anchor.RPCAddr != "" {
		evmAnchor, err := anchor.NewEVMAnchor(cfg.Anchor.RPCAddr, cfg.Anchor.PrivateKey, logger)
		if err != nil {
			logger.Error("Failed to set up manifest anchor", "err", err)
			return err
		}
		manifestAnchor = evmAnchor
		logger.Info("Manifest anchoring enabled", "rpcAddr", cfg.Anchor.RPCAddr)
	}

	opTransport := setupTransport(cfg, logger)

	factory := func(namespace string) (*trust.Engine, error) {
		return trust.NewEngine(trust.Config{
			Namespace: namespace,
			Store:     store,
			Audit:     auditSink,
			Transport: opTransport,
			Anchor:    manifestAnchor,
			Log:       logger,
		})
	}

	srv, err := httpserver.New(&httpserver.HTTPServerConfig{
		ListenAddr:               cfg.ListenAddr,
		EnablePprof:              cCtx.Bool("pprof"),
		Log:                      logger,
		DrainDuration:            time.Duration(cCtx.Int64("drain-seconds")) * time.Second,
		GracefulShutdownDuration: 30 * time.Second,
		ReadTimeout:              60 * time.Second,
		WriteTimeout:             30 * time.Second,
	}, httpserver.NewHandler(factory, logger))
	if err != nil {
		logger.Error("Failed to create HTTP server", "err", err)
		return err
	}

	srv.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit

	logger.Info("Shutting down")
	srv.Shutdown()
	return nil
}

func setupAudit(cfg Config, logger *slog.Logger) (interfaces.AuditSink, func(), error) {
	slogSink := audit.NewSlogSink(logger)
	if cfg.AuditLog == "" {
		return slogSink, func() {}, nil
	}

	fileSink, err := audit.NewJSONLSink(cfg.AuditLog)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		if err := fileSink.Close(); err != nil {
			logger.Error("Failed to close audit log", "err", err)
		}
	}
	return audit.NewMultiSink(slogSink, fileSink), closer, nil
}

func setupTransport(cfg Config, logger *slog.Logger) interfaces.OperationTransport {
	var sources transport.MultiSource
	if len(cfg.Transport.Endpoints) > 0 {
		sources = append(sources, transport.StaticEndpoints(cfg.Transport.Endpoints))
	}
	if cfg.Transport.SRVDomain != "" {
		sources = append(sources, &transport.SRVEndpoints{
			Domain:    cfg.Transport.SRVDomain,
			DNSServer: cfg.Transport.DNSServer,
			Path:      cfg.Transport.NotifyPath,
		})
	}
	if len(sources) == 0 {
		return nil
	}
	return transport.NewHTTPPublisher(sources, nil, logger)
}
