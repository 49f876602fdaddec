package v1

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
)

// ReadinessCheck reports whether a backing store is reachable.
type ReadinessCheck func(ctx context.Context) error

type RouterDeps struct {
	Config   *config.Config
	Log      *zap.Logger
	JWT      *auth.JWTManager
	Metrics  *metrics.Collector
	Gatherer prometheus.Gatherer
	Checks   map[string]ReadinessCheck

	Auth           *AuthHandler
	Users          *UserHandler
	Patients       *PatientHandler
	Appointments   *AppointmentHandler
	Treatments     *TreatmentHandler
	Prescriptions  *PrescriptionHandler
	MedicalRecords *MedicalRecordHandler
}

var (
	clinicalStaff = []domain.Role{domain.RoleAdmin, domain.RoleDoctor, domain.RoleNurse}
	frontDesk     = []domain.Role{domain.RoleAdmin, domain.RoleDoctor, domain.RoleNurse, domain.RoleReceptionist}
	prescribers   = []domain.Role{domain.RoleAdmin, domain.RoleDoctor}
)

func NewRouter(d RouterDeps) *gin.Engine {
	if d.Config.App.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(middleware.Recovery(d.Log), middleware.RequestID(), middleware.Tracing())
	if d.Metrics != nil {
		r.Use(middleware.Metrics(d.Metrics))
	}
	r.Use(middleware.AccessLog(d.Log))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     d.Config.CORS.AllowedOrigins,
		AllowMethods:     d.Config.CORS.AllowedMethods,
		AllowHeaders:     d.Config.CORS.AllowedHeaders,
		ExposeHeaders:    []string{middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: !slices.Contains(d.Config.CORS.AllowedOrigins, "*"),
		MaxAge:           d.Config.CORS.MaxAge,
	}))
	r.Use(middleware.RateLimit(d.Config.RateLimit.RequestsPerSecond, d.Config.RateLimit.BurstSize))

	r.GET("/health", health(d.Checks))
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(d.Gatherer)))
	}

	api := r.Group("/api/v1")

	authLimit := middleware.AuthRateLimit(d.Config.RateLimit.AuthRequestsPerMinute)
	public := api.Group("/auth")
	public.POST("/login", authLimit, d.Auth.Login)
	public.POST("/refresh", authLimit, d.Auth.Refresh)

	protected := api.Group("")
	protected.Use(middleware.Authenticate(d.JWT))

	protected.POST("/auth/password", d.Auth.ChangePassword)

	users := protected.Group("/users")
	users.GET("/me", d.Users.Me)
	users.GET("/:id", d.Users.Get)
	users.PATCH("/:id", d.Users.UpdatePersonalInfo)
	users.PATCH("/:id/professional", d.Users.UpdateProfessionalInfo)
	admin := users.Group("", middleware.RequireRoles(domain.RoleAdmin))
	admin.POST("", d.Users.Register)
	admin.GET("", d.Users.List)
	admin.PATCH("/:id/role", d.Users.ChangeRole)
	admin.PATCH("/:id/status", d.Users.SetActive)

	patients := protected.Group("/patients")
	patients.POST("", middleware.RequireRoles(frontDesk...), d.Patients.Create)
	patients.GET("", middleware.RequireRoles(frontDesk...), d.Patients.List)
	patients.GET("/:id", d.Patients.Get)
	patients.PUT("/:id", middleware.RequireRoles(frontDesk...), d.Patients.Update)
	patients.PATCH("/:id/contact", d.Patients.UpdateContactInfo)
	patients.PATCH("/:id/allergies", middleware.RequireRoles(clinicalStaff...), d.Patients.UpdateAllergies)
	patients.POST("/:id/deactivate", middleware.RequireRoles(domain.RoleAdmin), d.Patients.Deactivate)
	patients.POST("/:id/activate", middleware.RequireRoles(domain.RoleAdmin), d.Patients.Activate)
	patients.GET("/:id/treatments/active", d.Treatments.ActiveForPatient)

	appts := protected.Group("/appointments")
	appts.POST("", d.Appointments.Schedule)
	appts.GET("", d.Appointments.List)
	appts.GET("/availability", d.Appointments.Availability)
	appts.GET("/:id", d.Appointments.Get)
	appts.PUT("/:id", d.Appointments.Update)
	appts.POST("/:id/confirm", middleware.RequireRoles(frontDesk...), d.Appointments.Confirm)
	appts.POST("/:id/start", middleware.RequireRoles(clinicalStaff...), d.Appointments.Start)
	appts.POST("/:id/complete", middleware.RequireRoles(clinicalStaff...), d.Appointments.Complete)
	appts.POST("/:id/cancel", d.Appointments.Cancel)
	appts.POST("/:id/missed", middleware.RequireRoles(frontDesk...), d.Appointments.MarkMissed)

	treatments := protected.Group("/treatments")
	treatments.POST("", middleware.RequireRoles(prescribers...), d.Treatments.Create)
	treatments.GET("", d.Treatments.List)
	treatments.GET("/:id", d.Treatments.Get)
	treatments.PUT("/:id", middleware.RequireRoles(prescribers...), d.Treatments.Update)
	treatments.POST("/:id/complete", middleware.RequireRoles(prescribers...), d.Treatments.Complete)
	treatments.POST("/:id/cancel", middleware.RequireRoles(prescribers...), d.Treatments.Cancel)
	treatments.POST("/:id/reactivate", middleware.RequireRoles(prescribers...), d.Treatments.Reactivate)

	rx := protected.Group("/prescriptions")
	rx.POST("", middleware.RequireRoles(prescribers...), d.Prescriptions.Create)
	rx.GET("", d.Prescriptions.List)
	rx.GET("/:id", d.Prescriptions.Get)
	rx.POST("/:id/medications", middleware.RequireRoles(prescribers...), d.Prescriptions.AddMedication)
	rx.DELETE("/:id/medications/:medication_id", middleware.RequireRoles(prescribers...), d.Prescriptions.RemoveMedication)
	rx.POST("/:id/fulfill", middleware.RequireRoles(clinicalStaff...), d.Prescriptions.Fulfill)
	rx.POST("/:id/cancel", middleware.RequireRoles(prescribers...), d.Prescriptions.Cancel)
	rx.POST("/:id/renew", middleware.RequireRoles(prescribers...), d.Prescriptions.Renew)

	records := protected.Group("/medical-records")
	records.POST("", middleware.RequireRoles(prescribers...), d.MedicalRecords.Open)
	records.GET("/patient/:patient_id", d.MedicalRecords.GetByPatient)
	records.GET("/:id", d.MedicalRecords.Get)
	records.POST("/:id/entries", middleware.RequireRoles(clinicalStaff...), d.MedicalRecords.AddEntry)
	records.GET("/:id/entries", d.MedicalRecords.ListEntries)
	records.GET("/:id/entries/latest", d.MedicalRecords.LatestEntry)

	r.NoRoute(func(c *gin.Context) {
		respondError(c, http.StatusNotFound, "route not found")
	})

	return r
}

func health(checks map[string]ReadinessCheck) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				results[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		c.JSON(status, gin.H{"status": state, "checks": results})
	}
}
