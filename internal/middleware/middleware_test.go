package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/clinicflow/pkg/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testJWT() *auth.JWTManager {
	return auth.NewJWTManager(config.JWTConfig{
		Secret:          "a-very-long-test-secret-with-32-plus-chars",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "clinicflow-test",
	})
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, RequestIDFrom(c)) })

	t.Run("generates one", func(t *testing.T) {
		rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
		got := rec.Header().Get(RequestIDHeader)
		if _, err := uuid.Parse(got); err != nil {
			t.Fatalf("X-Request-ID = %q, want a uuid", got)
		}
		if rec.Body.String() != got {
			t.Errorf("context id = %q, header = %q", rec.Body.String(), got)
		}
	})

	t.Run("propagates inbound", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "abc-123")
		if got := serve(r, req).Header().Get(RequestIDHeader); got != "abc-123" {
			t.Errorf("X-Request-ID = %q, want abc-123", got)
		}
	})

	t.Run("replaces oversized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, strings.Repeat("x", 200))
		if got := serve(r, req).Header().Get(RequestIDHeader); len(got) > maxRequestIDLength {
			t.Errorf("X-Request-ID length = %d, want replaced", len(got))
		}
	})
}

func TestAuthenticate(t *testing.T) {
	jwt := testJWT()
	patientID := uuid.New()
	claims := &domain.Claims{UserID: uuid.New(), Email: "p@clinic.test", Role: domain.RolePatient, PatientID: &patientID}
	pair, err := jwt.GenerateTokenPair(claims)
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}

	r := gin.New()
	r.Use(RequestID(), Authenticate(jwt))
	r.GET("/me", func(c *gin.Context) {
		caller, ok := CallerFrom(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": caller.UserID, "role": caller.Role, "rid": caller.RequestID != ""})
	})
	r.GET("/staff", RequireRoles(domain.RoleAdmin, domain.RoleDoctor), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"missing header", "/me", "", http.StatusUnauthorized},
		{"wrong scheme", "/me", "Basic " + pair.AccessToken, http.StatusUnauthorized},
		{"refresh token rejected", "/me", "Bearer " + pair.RefreshToken, http.StatusUnauthorized},
		{"garbage token", "/me", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"valid token", "/me", "Bearer " + pair.AccessToken, http.StatusOK},
		{"lowercase scheme", "/me", "bearer " + pair.AccessToken, http.StatusOK},
		{"role gate", "/staff", "Bearer " + pair.AccessToken, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := serve(r, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
			if tt.want == http.StatusOK && !strings.Contains(rec.Body.String(), claims.UserID.String()) {
				t.Errorf("body = %s, want caller id", rec.Body)
			}
		})
	}
}

func TestRequireRolesWithoutAuthenticate(t *testing.T) {
	r := gin.New()
	r.GET("/", RequireRoles(domain.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	if rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil)); rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimit(1, 2))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		if rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil)); rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want 200", i+1, rec.Code)
		}
	}
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.RemoteAddr = "203.0.113.9:4000"
	if rec := serve(r, other); rec.Code != http.StatusOK {
		t.Errorf("other client: status = %d, want 200", rec.Code)
	}
}

func TestAuthRateLimit(t *testing.T) {
	r := gin.New()
	r.POST("/login", AuthRateLimit(3), func(c *gin.Context) { c.Status(http.StatusOK) })

	var last int
	for i := 0; i < 4; i++ {
		last = serve(r, httptest.NewRequest(http.MethodPost, "/login", nil)).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("fourth login: status = %d, want 429", last)
	}
}

func TestLimiterStoreSweepsIdleClients(t *testing.T) {
	s := newLimiterStore(1, 1)
	start := time.Now()
	s.get("198.51.100.1", start)
	s.get("198.51.100.2", start.Add(limiterIdleTTL+time.Second))
	s.get("198.51.100.2", start.Add(2*limiterIdleTTL+2*time.Second))

	if _, ok := s.visitors["198.51.100.1"]; ok {
		t.Error("idle visitor was not swept")
	}
	if len(s.visitors) != 1 {
		t.Errorf("visitors = %d, want 1", len(s.visitors))
	}
}

func TestMetrics(t *testing.T) {
	m := metrics.NewCollector("test", prometheus.NewRegistry())
	r := gin.New()
	r.Use(Metrics(m))
	r.GET("/patients/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(r, httptest.NewRequest(http.MethodGet, "/patients/"+uuid.NewString(), nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/patients/"+uuid.NewString(), nil))
	serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))

	if v := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/patients/:id", "200")); v != 2 {
		t.Errorf("route counter = %v, want 2", v)
	}
	if v := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "unmatched", "404")); v != 1 {
		t.Errorf("unmatched counter = %v, want 1", v)
	}
	if v := testutil.ToFloat64(m.InFlightGauge); v != 0 {
		t.Errorf("in flight = %v, want 0", v)
	}
}

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := gin.New()
	r.Use(RequestID(), Tracing())
	r.GET("/boom/:id", func(c *gin.Context) { c.Status(http.StatusServiceUnavailable) })

	serve(r, httptest.NewRequest(http.MethodGet, "/boom/1", nil))

	spans := sr.Ended()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if got := spans[0].Name(); got != "GET /boom/:id" {
		t.Errorf("span name = %q, want route template", got)
	}
	if spans[0].Status().Code.String() != "Error" {
		t.Errorf("status = %v, want Error for 503", spans[0].Status())
	}
}

func TestAccessLogAndRecovery(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	log := zap.New(core)

	r := gin.New()
	r.Use(RequestID(), AccessLog(log), Recovery(log))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/panic", func(c *gin.Context) { panic("kaboom") })

	serve(r, httptest.NewRequest(http.MethodGet, "/ok", nil))
	rec := serve(r, httptest.NewRequest(http.MethodGet, "/panic", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("panic status = %d, want 500", rec.Code)
	}

	if n := logs.FilterMessage("panic recovered").Len(); n != 1 {
		t.Errorf("panic logs = %d, want 1", n)
	}
	requests := logs.FilterMessage("request").All()
	if len(requests) != 2 {
		t.Fatalf("access logs = %d, want 2", len(requests))
	}
	if requests[1].Level != zap.ErrorLevel {
		t.Errorf("500 logged at %v, want error", requests[1].Level)
	}
	if requests[0].ContextMap()["path"] != "/ok" {
		t.Errorf("fields = %v, want path /ok", requests[0].ContextMap())
	}
}
