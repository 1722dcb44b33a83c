package observability

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/yungbote/commercecrafted-backend/internal/platform/envutil"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	upstreamRequests *CounterVec
	upstreamLatency  *HistogramVec
	upstreamRetries  *CounterVec

	nicheRuns        *CounterVec
	nicheRunDuration *HistogramVec
	nicheASINFailure *CounterVec
	nicheStatus      *GaugeVec

	reportPolls   *CounterVec
	reportStatus  *GaugeVec
	warehouseRows *CounterVec

	costTotal *CounterVec

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Enabled() bool {
	return envutil.Bool("METRICS_ENABLED", false)
}

// Current returns the process-wide metrics, or nil before Init. All methods are nil-safe.
func Current() *Metrics {
	return instance
}

func scrapeInterval() time.Duration {
	return envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", 10)
}

func Init(log *logger.Logger) *Metrics {
	initOnce.Do(func() {
		instance = newMetrics()
		if log != nil {
			log.Info("metrics initialized")
		}
	})
	return instance
}

func newMetrics() *Metrics {
	latency := []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}
	return &Metrics{
		apiRequests: NewCounterVec("cc_api_requests_total", "HTTP API requests", []string{"method", "route", "status"}),
		apiLatency:  NewHistogramVec("cc_api_request_duration_seconds", "HTTP API latency", []string{"method", "route"}, nil),
		apiInflight: NewGauge("cc_api_inflight_requests", "HTTP API requests in flight"),

		upstreamRequests: NewCounterVec("cc_upstream_requests_total", "Calls to upstream marketplace services", []string{"service", "status"}),
		upstreamLatency:  NewHistogramVec("cc_upstream_request_duration_seconds", "Upstream call latency", []string{"service"}, latency),
		upstreamRetries:  NewCounterVec("cc_upstream_retries_total", "Upstream call retries", []string{"service"}),

		nicheRuns:        NewCounterVec("cc_niche_runs_total", "Niche processing runs by outcome", []string{"outcome"}),
		nicheRunDuration: NewHistogramVec("cc_niche_run_duration_seconds", "Niche processing run duration", []string{"outcome"}, []float64{5, 15, 30, 60, 120, 300, 600, 1800}),
		nicheASINFailure: NewCounterVec("cc_niche_asin_failures_total", "Per-ASIN failures during niche runs", []string{"reason"}),
		nicheStatus:      NewGaugeVec("cc_niches", "Niches by status", []string{"status"}),

		reportPolls:   NewCounterVec("cc_report_polls_total", "Report poll results by upstream status", []string{"status"}),
		reportStatus:  NewGaugeVec("cc_reports", "Reports by status", []string{"status"}),
		warehouseRows: NewCounterVec("cc_warehouse_rows_total", "Rows loaded into the analytics warehouse", []string{"table"}),

		costTotal: NewCounterVec("cc_cost_usd_total", "Estimated upstream spend in USD", []string{"category", "source"}),

		pgStats:   NewGaugeVec("cc_postgres_pool", "Postgres pool stats", []string{"stat"}),
		redisUp:   NewGauge("cc_redis_up", "Redis reachable"),
		redisPing: NewGauge("cc_redis_ping_seconds", "Redis ping latency"),
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	all := []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.upstreamRequests, m.upstreamLatency, m.upstreamRetries,
		m.nicheRuns, m.nicheRunDuration, m.nicheASINFailure, m.nicheStatus,
		m.reportPolls, m.reportStatus, m.warehouseRows,
		m.costTotal,
		m.pgStats, m.redisUp, m.redisPing,
	}
	for _, pw := range all {
		if err := pw.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

// ObserveUpstream records one upstream call. statusCode 0 means a transport error.
func (m *Metrics) ObserveUpstream(service string, statusCode int, dur time.Duration) {
	if m == nil {
		return
	}
	status := "error"
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	m.upstreamRequests.Inc(service, status)
	m.upstreamLatency.Observe(dur.Seconds(), service)
}

func (m *Metrics) IncUpstreamRetry(service string) {
	if m == nil {
		return
	}
	m.upstreamRetries.Inc(service)
}

func (m *Metrics) ObserveNicheRun(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.nicheRuns.Inc(outcome)
	m.nicheRunDuration.Observe(dur.Seconds(), outcome)
}

func (m *Metrics) IncNicheASINFailure(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.nicheASINFailure.Inc(reason)
}

func (m *Metrics) IncReportPoll(status string) {
	if m == nil {
		return
	}
	m.reportPolls.Inc(status)
}

func (m *Metrics) AddWarehouseRows(table string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.warehouseRows.Add(float64(n), table)
}

func (m *Metrics) AddCost(category, source string, amount float64) {
	if m == nil || amount <= 0 {
		return
	}
	m.costTotal.Add(amount, category, source)
}
