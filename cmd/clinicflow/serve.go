package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
	v1 "github.com/dmehra2102/prod-golang-projects/clinicflow/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/repository/mongodb"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/repository/postgres"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/service"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/docstore"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/tracer"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServer(ctx)
		},
	}
}

// loadRuntime reads configuration and builds the process logger shared by
// every subcommand.
func loadRuntime() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	base, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger.WithService(base, cfg.App), nil
}

func runServer(ctx context.Context) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	tp, err := tracer.Init(ctx, cfg.Tracing, cfg.App)
	if err != nil {
		return fmt.Errorf("initialising tracing: %w", err)
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	m := metrics.NewCollector(cfg.App.Name, prometheus.DefaultRegisterer)

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying sql.DB: %w", err)
	}
	defer sqlDB.Close()

	mongoClient, err := docstore.Connect(ctx, cfg.Mongo)
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Warn("mongodb disconnect", zap.Error(err))
		}
	}()
	docs := mongoClient.Database(cfg.Mongo.Database)

	userRepo := postgres.NewUserRepository(db)
	auditRepo := postgres.NewAuditRepository(db)
	patientRepo := mongodb.NewPatientRepository(docs, m)
	appointmentRepo := mongodb.NewAppointmentRepository(docs, m)
	treatmentRepo := mongodb.NewTreatmentRepository(docs, m)
	prescriptionRepo := mongodb.NewPrescriptionRepository(docs, m)
	recordRepo := mongodb.NewMedicalRecordRepository(docs, m)

	jwtManager := auth.NewJWTManager(cfg.JWT)

	auditSvc := service.NewAuditService(auditRepo, m, log.Named("audit"))
	// Runs after the HTTP server has drained so in-flight requests can still audit.
	defer auditSvc.Shutdown()

	authSvc := service.NewAuthService(userRepo, jwtManager, auditSvc, log.Named("auth"))
	userSvc := service.NewUserService(userRepo, auditSvc, log.Named("users"))
	patientSvc := service.NewPatientService(patientRepo, auditSvc, m, log.Named("patients"))
	appointmentSvc := service.NewAppointmentService(appointmentRepo, patientRepo, userRepo, auditSvc, m, log.Named("appointments"))
	treatmentSvc := service.NewTreatmentService(treatmentRepo, patientRepo, auditSvc, m, log.Named("treatments"))
	prescriptionSvc := service.NewPrescriptionService(prescriptionRepo, patientRepo, auditSvc, m, log.Named("prescriptions"))
	recordSvc := service.NewMedicalRecordService(recordRepo, patientRepo, auditSvc, log.Named("medical_records"))

	router := v1.NewRouter(v1.RouterDeps{
		Config:   cfg,
		Log:      log,
		JWT:      jwtManager,
		Metrics:  m,
		Gatherer: prometheus.DefaultGatherer,
		Checks: map[string]v1.ReadinessCheck{
			"postgres": sqlDB.PingContext,
			"mongodb": func(ctx context.Context) error {
				return mongoClient.Ping(ctx, readpref.Primary())
			},
		},
		Auth:           v1.NewAuthHandler(authSvc),
		Users:          v1.NewUserHandler(userSvc),
		Patients:       v1.NewPatientHandler(patientSvc),
		Appointments:   v1.NewAppointmentHandler(appointmentSvc),
		Treatments:     v1.NewTreatmentHandler(treatmentSvc),
		Prescriptions:  v1.NewPrescriptionHandler(prescriptionSvc),
		MedicalRecords: v1.NewMedicalRecordHandler(recordSvc),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
