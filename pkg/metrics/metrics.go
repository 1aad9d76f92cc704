package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// 通知发送结果计数
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of notification attempts by kind and status",
		},
		[]string{"kind", "status"}, // status: sent, failed
	)

	// 跳过的通知（去重命中、锁被占用、偏好关闭）
	NotificationsSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_skipped_total",
			Help: "Notifications skipped before delivery",
		},
		[]string{"kind", "reason"},
	)

	// 投递失败原因
	DeliveryFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_delivery_failures_total",
			Help: "Delivery failures by classified error type",
		},
		[]string{"template", "error_type"},
	)

	// 投递延迟（毫秒）
	DeliveryLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_delivery_latency_ms",
			Help:    "Delivery channel call latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 12), // 10ms to ~20s
		},
		[]string{"template", "status"},
	)

	// 一次 pass 的耗时（秒）
	PassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_pass_duration_seconds",
			Help:    "Duration of a full notification pass over all users",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~80s
		},
		[]string{"pass"},
	)

	// 单用户处理失败
	PassUserErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notification_pass_user_errors_total",
			Help: "Per-user processing failures inside a pass",
		},
		[]string{"pass"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation"},
	)

	// 慢查询计数
	DBSlowQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "db_slow_queries_total",
			Help: "Queries slower than the configured threshold",
		},
		[]string{"operation"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)
)

// RecordNotification 记录一次通知结果
func RecordNotification(kind, status string) {
	NotificationsTotal.WithLabelValues(kind, status).Inc()
}

// RecordSkipped 记录一次跳过
func RecordSkipped(kind, reason string) {
	NotificationsSkipped.WithLabelValues(kind, reason).Inc()
}

// RecordDeliveryFailure 记录投递失败类型
func RecordDeliveryFailure(template, errorType string) {
	DeliveryFailures.WithLabelValues(template, errorType).Inc()
}

// RecordDeliveryLatency 记录投递延迟
func RecordDeliveryLatency(template, status string, duration time.Duration) {
	DeliveryLatency.WithLabelValues(template, status).Observe(float64(duration.Milliseconds()))
}

// RecordPassDuration 记录 pass 耗时
func RecordPassDuration(pass string, duration time.Duration) {
	PassDuration.WithLabelValues(pass).Observe(duration.Seconds())
}

// IncrementPassUserError 记录单用户处理失败
func IncrementPassUserError(pass string) {
	PassUserErrors.WithLabelValues(pass).Inc()
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncrementSlowQuery 记录慢查询
func IncrementSlowQuery(operation string) {
	DBSlowQueries.WithLabelValues(operation).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}
