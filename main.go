package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"contract-flow/pkg/config"
	"contract-flow/pkg/database"
	"contract-flow/pkg/esign"
	"contract-flow/pkg/llm"
	"contract-flow/pkg/logging"
	"contract-flow/pkg/mailer"
	"contract-flow/pkg/pdfdoc"
	"contract-flow/pkg/seed"
	"contract-flow/pkg/server"
	"contract-flow/pkg/services/analysis"
	"contract-flow/pkg/services/contracts"
	"contract-flow/pkg/services/extract"
	"contract-flow/pkg/services/ocr"
	"contract-flow/pkg/services/policy"
	"contract-flow/pkg/signing"
)

var (
	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "contract-flow",
	Short:         "Contract review, collaboration and e-signature backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		var err error
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve(cmd.Context())
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update database tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, closeDB, err := database.Open(cmd.Context(), cfg.Database, logger)
		if err != nil {
			return err
		}
		defer closeDB()
		if err := database.Migrate(db); err != nil {
			return err
		}
		logger.Info("migrations applied")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the starter contract templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		db, closeDB, err := database.Open(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer closeDB()
		if err := database.Migrate(db); err != nil {
			return err
		}
		templates, err := seed.Builtin()
		if err != nil {
			return err
		}
		svc := contracts.NewService(db, mailer.NewSMTP(cfg.Mail, logger), cfg.Server.AppURL, logger)
		_, err = seed.Templates(ctx, svc, templates, logger)
		return err
	},
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func serve(ctx context.Context) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, closeDB, err := database.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeDB()
	if err := database.Migrate(db); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           newServer(db).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newServer(db *gorm.DB) *server.Server {
	if cfg.Log.Format != "console" {
		gin.SetMode(gin.ReleaseMode)
	}

	llms := llm.NewRegistry(llm.NewLimiter(cfg.LLM.RatePerMinute), logger)
	pdf := pdfdoc.NewExtractor()

	var reader extract.OCR
	if cfg.OCREnabled() {
		reader = ocr.NewService(cfg.OCR.Endpoint, cfg.OCR.APIKey, logger)
	} else {
		logger.Info("azure ocr not configured; image uploads are disabled")
	}

	checker, err := policy.Load(cfg.Server.PolicyFile)
	if err != nil {
		logger.Warn("falling back to built-in policy rules", zap.Error(err))
		checker = policy.New(policy.Default())
	}

	return server.New(server.Deps{
		Config:    cfg,
		DB:        db,
		Extract:   extract.NewService(pdf, reader, logger),
		Analysis:  analysis.NewService(llms, logger),
		Policy:    checker,
		Signing:   signing.NewService(signing.RendererFunc(pdfdoc.Render), pdf, esign.New(logger), llms, cfg.Signing, logger),
		Contracts: contracts.NewService(db, mailer.NewSMTP(cfg.Mail, logger), cfg.Server.AppURL, logger),
		Logger:    logger,
	})
}
