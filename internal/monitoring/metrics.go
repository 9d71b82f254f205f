package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestSize     *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// 注册指标
	RegistrationsStarted   prometheus.Counter
	RegistrationsCompleted prometheus.Counter
	RegistrationsFailed    *prometheus.CounterVec

	// 群组指标
	GroupsCreated prometheus.Counter
	GroupsDeleted prometheus.Counter

	// 联系人指标
	ContactsImported   prometheus.Counter
	ContactImportSize  prometheus.Histogram
	ContactImportsTotal *prometheus.CounterVec

	// 会话指标
	SessionsCreated  prometheus.Counter
	SessionCacheHits *prometheus.CounterVec

	// 系统指标
	SystemUptime        prometheus.Gauge
	DatabaseConnections prometheus.Gauge
	MemoryUsage         prometheus.Gauge
	WebSocketClients    prometheus.Gauge

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter

	// 限流指标
	RateLimitBlocks *prometheus.CounterVec
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivehub_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "drivehub_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		HTTPRequestSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "drivehub_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		HTTPResponseSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "drivehub_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),

		RegistrationsStarted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "drivehub_registrations_started_total",
				Help: "Total number of registrations started",
			},
		),

		RegistrationsCompleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "drivehub_registrations_completed_total",
				Help: "Total number of registrations completed",
			},
		),

		RegistrationsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivehub_registrations_failed_total",
				Help: "Total number of failed registration attempts",
			},
			[]string{"reason"},
		),

		GroupsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "drivehub_groups_created_total",
				Help: "Total number of groups created",
			},
		),

		GroupsDeleted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "drivehub_groups_deleted_total",
				Help: "Total number of groups deleted",
			},
		),

		ContactsImported: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "drivehub_contacts_imported_total",
				Help: "Total number of contacts imported",
			},
		),

		ContactImportSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "drivehub_contact_import_size_bytes",
				Help:    "Size of contact import payloads in bytes",
				Buckets: prometheus.ExponentialBuckets(256, 4, 8),
			},
		),

		ContactImportsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivehub_contact_imports_total",
				Help: "Total number of contact import requests",
			},
			[]string{"status"},
		),

		SessionsCreated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "drivehub_sessions_created_total",
				Help: "Total number of sessions created",
			},
		),

		SessionCacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivehub_session_cache_lookups_total",
				Help: "Session cache lookups by outcome",
			},
			[]string{"outcome"},
		),

		SystemUptime: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "drivehub_system_uptime_seconds",
				Help: "System uptime in seconds",
			},
		),

		DatabaseConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "drivehub_database_connections",
				Help: "Number of open database connections",
			},
		),

		MemoryUsage: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "drivehub_memory_usage_bytes",
				Help: "Current memory usage in bytes",
			},
		),

		WebSocketClients: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "drivehub_websocket_clients",
				Help: "Number of connected WebSocket clients",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivehub_errors_total",
				Help: "Total number of errors",
			},
			[]string{"type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "drivehub_panics_total",
				Help: "Total number of recovered panics",
			},
		),

		RateLimitBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "drivehub_rate_limit_blocks_total",
				Help: "Total number of rate limited requests",
			},
			[]string{"type", "key"},
		),
	}
}

// RecordHTTPRequest 记录一次 HTTP 请求
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration, requestSize, responseSize int64) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	m.HTTPRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.HTTPResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordRegistrationStarted 记录发起注册
func (m *Metrics) RecordRegistrationStarted() {
	m.RegistrationsStarted.Inc()
}

// RecordRegistrationCompleted 记录完成注册
func (m *Metrics) RecordRegistrationCompleted() {
	m.RegistrationsCompleted.Inc()
}

// RecordRegistrationFailed 记录注册失败
func (m *Metrics) RecordRegistrationFailed(reason string) {
	m.RegistrationsFailed.WithLabelValues(reason).Inc()
}

// RecordGroupCreated 记录群组创建
func (m *Metrics) RecordGroupCreated() {
	m.GroupsCreated.Inc()
}

// RecordGroupDeleted 记录群组删除
func (m *Metrics) RecordGroupDeleted() {
	m.GroupsDeleted.Inc()
}

// RecordContactsImported 记录一次联系人导入
func (m *Metrics) RecordContactsImported(count int, payloadSize int64) {
	m.ContactsImported.Add(float64(count))
	m.ContactImportSize.Observe(float64(payloadSize))
	m.ContactImportsTotal.WithLabelValues("success").Inc()
}

// RecordContactImportRejected 记录被拒绝的导入请求
func (m *Metrics) RecordContactImportRejected() {
	m.ContactImportsTotal.WithLabelValues("rejected").Inc()
}

// RecordSessionCreated 记录会话创建
func (m *Metrics) RecordSessionCreated() {
	m.SessionsCreated.Inc()
}

// RecordSessionCacheLookup 记录会话缓存查询结果
func (m *Metrics) RecordSessionCacheLookup(outcome string) {
	m.SessionCacheHits.WithLabelValues(outcome).Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// RecordRateLimitBlock 记录限流阻止
func (m *Metrics) RecordRateLimitBlock(limitType, key string) {
	m.RateLimitBlocks.WithLabelValues(limitType, key).Inc()
}

// UpdateSystemUptime 更新运行时间
func (m *Metrics) UpdateSystemUptime(uptime time.Duration) {
	m.SystemUptime.Set(uptime.Seconds())
}

// UpdateDatabaseConnections 更新数据库连接数
func (m *Metrics) UpdateDatabaseConnections(count int) {
	m.DatabaseConnections.Set(float64(count))
}

// UpdateMemoryUsage 更新内存占用
func (m *Metrics) UpdateMemoryUsage(bytes int64) {
	m.MemoryUsage.Set(float64(bytes))
}

// UpdateWebSocketClients 更新 WebSocket 连接数
func (m *Metrics) UpdateWebSocketClients(count int) {
	m.WebSocketClients.Set(float64(count))
}

// HTTPHandler 返回 Prometheus 指标暴露端点
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
