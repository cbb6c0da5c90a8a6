package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/farellandr/eventhub/config"
	"github.com/farellandr/eventhub/internal/async"
	"github.com/farellandr/eventhub/internal/handlers"
	"github.com/farellandr/eventhub/internal/helpers"
	"github.com/farellandr/eventhub/internal/jobs"
	"github.com/farellandr/eventhub/internal/mailer"
	"github.com/farellandr/eventhub/internal/observability"
	"github.com/farellandr/eventhub/internal/services"
	"github.com/farellandr/eventhub/internal/tickets"
)

const (
	mailTimeout     = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

func Start() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	log := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)

	db, err := config.InitDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to access database handle: %v", err)
	}
	defer sqlDB.Close()

	if err := config.SeedSuperAdmin(db, cfg.SuperAdmin, log); err != nil {
		return fmt.Errorf("failed to seed super admin: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	dispatcher := async.NewDispatcher(context.Background(), cfg.Mail.Workers, mailTimeout, log.WithField("component", "async"))

	var mail mailer.Mailer = mailer.NewLogMailer(log.WithField("component", "mailer"))
	if cfg.Mail.Enabled() {
		mail = mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     cfg.Mail.SMTPPort,
			Username: cfg.Mail.SMTPUser,
			Password: cfg.Mail.SMTPPass,
			From:     cfg.Mail.From,
		})
	} else {
		log.Warn("SMTP_HOST not set, outgoing mail is only logged")
	}

	auth := services.NewAuthService(db, services.AuthConfig{
		JWTSecret:        cfg.Auth.JWTSecret,
		TokenTTL:         cfg.Auth.TokenTTL,
		RememberTokenTTL: cfg.Auth.RememberTokenTTL,
		ResetTokenTTL:    cfg.Auth.ResetTokenTTL,
		FrontendURL:      cfg.FrontendURL,
	}, mail, dispatcher, metrics, log)
	registrations := services.NewRegistrationService(db, tickets.NewSigner(cfg.Auth.TicketSecret), mail, dispatcher, metrics, log)

	deps := &handlers.Deps{
		Auth:          auth,
		Staff:         services.NewStaffService(db),
		Events:        services.NewEventService(db),
		Registrations: registrations,
		Reports:       services.NewReportService(db, registrations),
		Uploads:       helpers.BannerUploadConfig(cfg.UploadDir),
		Log:           log,
	}

	scheduler := jobs.NewScheduler(log.WithField("component", "jobs"))
	if err := scheduler.AddResetPurge(cfg.ResetPurgeSchedule, auth); err != nil {
		return err
	}
	scheduler.Start()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(deps, metrics, Options{CORSOrigins: cfg.CORSOrigins, UploadDir: cfg.UploadDir}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("EventHub API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %v", err)
		}
	}

	return shutdown(srv, scheduler, dispatcher, log)
}

func shutdown(srv *http.Server, scheduler *jobs.Scheduler, dispatcher *async.Dispatcher, log *logrus.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("http server did not shut down cleanly")
	}
	scheduler.Stop(ctx)
	if err := dispatcher.Shutdown(shutdownTimeout); err != nil {
		log.WithError(err).Error("pending background tasks were dropped")
	}

	log.Info("stopped")
	return nil
}
