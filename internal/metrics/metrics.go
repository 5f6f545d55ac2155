// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 保存・公開の結果ラベル。
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// 記事書き込みの操作ラベル。
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層やHTTPミドルウェアから利用する。
type MetricsCollector interface {
	RecordAutosave(result string)
	RecordPublish(result string)
	RecordArticleWritten(op string)
	RecordHTTPStatus(statusCode int)
	RecordSaveLatency(duration time.Duration)
	SetActiveSessions(n int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	autosave       *prometheus.CounterVec
	publish        *prometheus.CounterVec
	articleWrites  *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
	saveLatency    prometheus.Histogram
	activeSessions prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		autosave: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gemblog_autosave_total",
			Help: "下書きの保存回数（結果別）",
		}, []string{"result"}),
		publish: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gemblog_publish_total",
			Help: "記事の公開回数（結果別）",
		}, []string{"result"}),
		articleWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gemblog_articles_written_total",
			Help: "記事の書き込み回数（操作別）",
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gemblog_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		saveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "gemblog_save_latency_seconds",
			Help:    "下書き保存のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gemblog_editor_sessions_active",
			Help: "開いているエディタセッション数",
		}),
	}

	reg.MustRegister(
		c.autosave,
		c.publish,
		c.articleWrites,
		c.httpStatus,
		c.saveLatency,
		c.activeSessions,
	)

	return c
}

// RecordAutosave は下書き保存の結果を記録する。
func (c *Collector) RecordAutosave(result string) {
	c.autosave.WithLabelValues(result).Inc()
}

// RecordPublish は公開の結果を記録する。
func (c *Collector) RecordPublish(result string) {
	c.publish.WithLabelValues(result).Inc()
}

// RecordArticleWritten は記事の書き込みを記録する。
func (c *Collector) RecordArticleWritten(op string) {
	c.articleWrites.WithLabelValues(op).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordSaveLatency は保存のレイテンシを記録する。
func (c *Collector) RecordSaveLatency(duration time.Duration) {
	c.saveLatency.Observe(duration.Seconds())
}

// SetActiveSessions は開いているエディタセッション数を設定する。
func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Set(float64(n))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
