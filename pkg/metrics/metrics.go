package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// MQ 消费延迟（毫秒）
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "habitflow_mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10), // 10ms to ~10s
		},
		[]string{"routing_key", "queue"},
	)

	// 数据库查询延迟（秒）
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "habitflow_db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"operation", "table"},
	)

	// 慢查询计数
	SlowQueryCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habitflow_db_slow_query_total",
			Help: "Number of queries slower than the configured threshold",
		},
		[]string{"operation", "table"},
	)

	// HTTP 请求延迟（秒）
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "habitflow_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)

	// 事件创建结果计数
	EventOutcomeCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habitflow_event_outcomes_total",
			Help: "Event creation requests by terminal outcome",
		},
		[]string{"status"}, // NEEDS_INFO, CONFLICT, CREATED, FAILED
	)

	// 可用性计算耗时（秒）
	AvailabilityComputeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "habitflow_availability_compute_seconds",
			Help:    "Time spent computing day and insights reports",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"query"}, // day, insights
	)

	// Insights 缓存命中
	InsightsCacheCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habitflow_insights_cache_total",
			Help: "Insights cache lookups by result",
		},
		[]string{"result"}, // hit, miss, error
	)

	// 提醒派发计数
	ReminderDispatchCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habitflow_reminders_total",
			Help: "Reminder dispatch attempts by result",
		},
		[]string{"result"}, // dispatched, duplicate, failed
	)

	// 定时任务执行
	JobRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "habitflow_job_run_seconds",
			Help:    "Scheduled job run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"job", "result"}, // ok, error
	)

	// Outbox 发布计数
	OutboxPublishCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "habitflow_outbox_publish_total",
			Help: "Outbox events published to MQ by result",
		},
		[]string{"routing_key", "result"},
	)
)

// RecordMQConsumeLatency 记录 MQ 消费延迟
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordDBQueryDuration 记录数据库查询延迟
func RecordDBQueryDuration(operation, table string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// IncrementSlowQuery 增加慢查询计数
func IncrementSlowQuery(operation, table string) {
	SlowQueryCount.WithLabelValues(operation, table).Inc()
}

// RecordHTTPRequestDuration 记录 HTTP 请求延迟
func RecordHTTPRequestDuration(method, path, status string, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// IncrementEventOutcome 增加事件创建结果计数
func IncrementEventOutcome(status string) {
	EventOutcomeCount.WithLabelValues(status).Inc()
}

// ObserveAvailability 记录可用性计算耗时
func ObserveAvailability(query string, start time.Time) {
	AvailabilityComputeDuration.WithLabelValues(query).Observe(time.Since(start).Seconds())
}

// IncrementInsightsCache 记录缓存查询结果
func IncrementInsightsCache(result string) {
	InsightsCacheCount.WithLabelValues(result).Inc()
}

// IncrementReminder 记录提醒派发结果
func IncrementReminder(result string) {
	ReminderDispatchCount.WithLabelValues(result).Inc()
}

// IncrementOutboxPublish 记录 outbox 发布结果
func IncrementOutboxPublish(routingKey, result string) {
	OutboxPublishCount.WithLabelValues(routingKey, result).Inc()
}

// RecordJobRun 记录定时任务耗时与结果
func RecordJobRun(job string, err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	JobRunDuration.WithLabelValues(job, result).Observe(duration.Seconds())
}
