package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	gateDenials     *prometheus.CounterVec
	injectionHits   *prometheus.CounterVec
	limiterDegraded *prometheus.GaugeVec
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sekolah_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "sekolah_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	denials := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sekolah_security_gate_denials_total",
		Help: "Jumlah penolakan per gerbang keamanan.",
	}, []string{"gate", "code"})
	injections := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sekolah_sql_injection_matches_total",
		Help: "Jumlah kecocokan pola injeksi SQL per sumber; pantau untuk false positive.",
	}, []string{"source"})
	degraded := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sekolah_rate_limit_degraded",
		Help: "Bernilai 1 saat rate limiter jatuh ke penghitung lokal.",
	}, []string{"policy"})
	registry.MustRegister(requests, duration, denials, injections, degraded)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		gateDenials:     denials,
		injectionHits:   injections,
		limiterDegraded: degraded,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// CountGateDenial mencatat penolakan dari salah satu gerbang keamanan.
func (m *Metrics) CountGateDenial(gate, code string) {
	if m == nil {
		return
	}
	m.gateDenials.WithLabelValues(gate, code).Inc()
}

// GateForStatus memetakan status penolakan ke nama gerbang yang menolak.
func GateForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return "authn"
	case http.StatusForbidden:
		return "authz"
	case http.StatusTooManyRequests:
		return "ratelimit"
	case http.StatusBadRequest:
		return "input"
	default:
		return "other"
	}
}

// CountInjectionMatch mencatat kecocokan pola injeksi SQL.
func (m *Metrics) CountInjectionMatch(source string) {
	if m == nil {
		return
	}
	m.injectionHits.WithLabelValues(source).Inc()
}

// SetLimiterDegraded mencatat mode degradasi rate limiter.
func (m *Metrics) SetLimiterDegraded(policy string, active bool) {
	if m == nil {
		return
	}
	value := 0.0
	if active {
		value = 1.0
	}
	m.limiterDegraded.WithLabelValues(policy).Set(value)
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
