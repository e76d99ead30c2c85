package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.io/infrasutra/emlconvert/internal/api"
	"github.io/infrasutra/emlconvert/internal/auth"
	"github.io/infrasutra/emlconvert/internal/config"
	"github.io/infrasutra/emlconvert/internal/convert"
	"github.io/infrasutra/emlconvert/internal/smtpserver"
	"github.io/infrasutra/emlconvert/internal/sse"
	"github.io/infrasutra/emlconvert/internal/store"
)

const sessionMaxAge = 30 * 24 * time.Hour

func newServeCmd(cfg *config.Config, logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload API and the SMTP intake",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(*cfg, logger)
		},
	}
	cmd.Flags().IntVar(&cfg.HTTPPort, "http-port", cfg.HTTPPort, "HTTP listen port")
	cmd.Flags().IntVar(&cfg.SMTPPort, "smtp-port", cfg.SMTPPort, "SMTP intake listen port")
	cmd.Flags().BoolVar(&cfg.SMTPEnabled, "smtp", cfg.SMTPEnabled, "run the SMTP intake")
	cmd.Flags().StringVar(&cfg.DBPath, "db", cfg.DBPath, "sqlite database path (empty keeps history in memory)")
	return cmd
}

func serve(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := store.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if cfg.DBPath == "" {
		logger.Warn("DB_PATH not set; conversion history is kept in memory")
	}

	authManager, err := auth.New(cfg.AuthSecret, sessionMaxAge)
	if err != nil {
		return fmt.Errorf("init auth: %w", err)
	}
	if cfg.AuthSecret == "" {
		logger.Warn("AUTH_SECRET not set; sessions reset on restart")
	}

	hub := sse.NewHub()
	converter, err := newConverter(cfg, db, hub, logger)
	if err != nil {
		return err
	}
	apiServer := api.NewServer(cfg, db, authManager, hub, converter, logger)

	httpAddr := fmt.Sprintf(":%d", cfg.HTTPPort)
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           apiServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var smtpSrv *smtpserver.Server
	if cfg.SMTPEnabled {
		smtpAuthCfg := smtpserver.AuthConfig{
			Enabled:  cfg.SMTPAuthEnabled,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
		}
		if smtpAuthCfg.Enabled {
			logger.Info("smtp auth enabled", "username", smtpAuthCfg.Username)
		} else {
			logger.Warn("smtp auth disabled; intake accepts unauthenticated connections")
		}
		smtpSrv = smtpserver.New(converter, logger, fmt.Sprintf(":%d", cfg.SMTPPort), cfg.MaxUploadBytes, smtpAuthCfg)
		go func() {
			if err := smtpSrv.ListenAndServe(); err != nil {
				logger.Error("smtp server stopped", "error", err)
			}
		}()
	}

	go func() {
		logger.Info("http server listening", "addr", httpAddr, "max_upload", humanize.IBytes(uint64(cfg.MaxUploadBytes)), "formats", cfg.ExportFormats)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown http", "error", err)
	}
	if smtpSrv != nil {
		if err := smtpSrv.Close(); err != nil {
			logger.Error("shutdown smtp", "error", err)
		}
	}
	return nil
}

// newConverter builds the conversion service from configuration. db and hub may be nil.
func newConverter(cfg config.Config, db *store.Store, hub *sse.Hub, logger *slog.Logger) (*convert.Service, error) {
	formats, err := convert.ParseFormatList(cfg.ExportFormats)
	if err != nil {
		return nil, fmt.Errorf("EXPORT_FORMATS: %w", err)
	}
	opts := convert.Options{DefaultFormats: formats}
	opts.Document.Title = cfg.DocTitle
	opts.Document.Brand = cfg.DocBrand
	return convert.NewService(db, hub, logger, opts), nil
}
