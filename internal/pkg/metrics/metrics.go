package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 参加登録の結果ラベル
const (
	RegistrationSuccess           = "success"
	RegistrationConflict          = "conflict"
	RegistrationLockFailed        = "lock_failed"
	RegistrationUnavailable       = "unavailable"
	RegistrationAlreadyRegistered = "already_registered"
	RegistrationNotPublished      = "not_published"
	RegistrationError             = "error"
)

// Metrics はアプリケーションのメトリクスを管理する。
// nil レシーバのメソッド呼び出しは何もしない
type Metrics struct {
	// HTTPリクエストの総数（method, path, status_code）
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPリクエストのレイテンシ（method, path）
	HTTPRequestDuration *prometheus.HistogramVec

	// 参加登録の総数（status）
	RegistrationsTotal *prometheus.CounterVec

	// 楽観的ロック競合による再試行回数
	RegistrationRetriesTotal prometheus.Counter

	// 分散ロックの操作時間（operation: acquire/release, status: success/failed）
	DistributedLockDuration *prometheus.HistogramVec

	// 通知の送信数（channel: inbox/email, status: success/failed）
	NotificationsTotal *prometheus.CounterVec

	// 終了処理ワーカーが終了状態にしたイベント数
	EventsCompletedTotal prometheus.Counter
}

// New は新しいMetricsインスタンスを作成し、デフォルトレジストリに登録する
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry は指定したレジストリにメトリクスを登録する
func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_registrations_total",
				Help: "Total number of event registration attempts by outcome",
			},
			[]string{"status"},
		),
		RegistrationRetriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "event_registration_retries_total",
				Help: "Registration attempts retried after an optimistic concurrency conflict",
			},
		),
		DistributedLockDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "distributed_lock_duration_seconds",
				Help:    "Time spent on distributed lock operations",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"operation", "status"},
		),
		NotificationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notifications_total",
				Help: "Notifications emitted by channel and outcome",
			},
			[]string{"channel", "status"},
		),
		EventsCompletedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "events_completed_total",
				Help: "Events transitioned to COMPLETED by the completion worker",
			},
		),
	}

	// レジストリに登録
	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RegistrationsTotal,
		m.RegistrationRetriesTotal,
		m.DistributedLockDuration,
		m.NotificationsTotal,
		m.EventsCompletedTotal,
	)

	return m
}

// ObserveRegistration は参加登録の結果を記録する
func (m *Metrics) ObserveRegistration(status string) {
	if m == nil {
		return
	}
	m.RegistrationsTotal.WithLabelValues(status).Inc()
}

// ObserveRetry は楽観的ロック競合による再試行を記録する
func (m *Metrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.RegistrationRetriesTotal.Inc()
}

// ObserveLock は分散ロック操作の所要時間を記録する
func (m *Metrics) ObserveLock(operation string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.DistributedLockDuration.WithLabelValues(operation, status).Observe(time.Since(start).Seconds())
}

// ObserveNotification は通知の送信結果を記録する
func (m *Metrics) ObserveNotification(channel string, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.NotificationsTotal.WithLabelValues(channel, status).Inc()
}

// ObserveCompleted は終了処理したイベント数を記録する
func (m *Metrics) ObserveCompleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.EventsCompletedTotal.Add(float64(n))
}

// デフォルトのメトリクスインスタンス
var defaultMetrics *Metrics

// Init はデフォルトのメトリクスインスタンスを初期化する
func Init() *Metrics {
	defaultMetrics = New()
	return defaultMetrics
}

// Get はデフォルトのメトリクスインスタンスを返す
func Get() *Metrics {
	return defaultMetrics
}
