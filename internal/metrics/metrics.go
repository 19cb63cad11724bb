// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 各パッケージは必要なメソッドだけを持つインターフェースで受け取る。
type MetricsCollector interface {
	RecordCouponIssued(result string)
	RecordBind(result string)
	RecordTokenRefresh(success bool)
	RecordUpstreamLatency(endpoint string, duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	couponIssued    *prometheus.CounterVec
	bind            *prometheus.CounterVec
	tokenRefresh    *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	httpStatus      *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		couponIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wecom_coupon_issued_total",
			Help: "兑换码発行リクエストの結果別件数",
		}, []string{"result"}),
		bind: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wecom_coupon_bind_total",
			Help: "アカウント紐付けの結果別件数",
		}, []string{"result"}),
		tokenRefresh: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wecom_coupon_token_refresh_total",
			Help: "微伴access_token再取得の結果別件数",
		}, []string{"result"}),
		upstreamLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wecom_coupon_upstream_latency_seconds",
			Help:    "微伴API呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wecom_coupon_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.couponIssued,
		c.bind,
		c.tokenRefresh,
		c.upstreamLatency,
		c.httpStatus,
	)

	return c
}

// RecordCouponIssued は発行結果（created, existing, race_recovered）を記録する。
func (c *Collector) RecordCouponIssued(result string) {
	c.couponIssued.WithLabelValues(result).Inc()
}

// RecordBind は紐付け結果（bound, unchanged, conflict, not_found）を記録する。
func (c *Collector) RecordBind(result string) {
	c.bind.WithLabelValues(result).Inc()
}

// RecordTokenRefresh はaccess_token再取得の成否を記録する。
func (c *Collector) RecordTokenRefresh(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.tokenRefresh.WithLabelValues(result).Inc()
}

// RecordUpstreamLatency は微伴APIのエンドポイント別レイテンシを記録する。
func (c *Collector) RecordUpstreamLatency(endpoint string, duration time.Duration) {
	c.upstreamLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordCouponIssued(string)                   {}
func (Nop) RecordBind(string)                           {}
func (Nop) RecordTokenRefresh(bool)                     {}
func (Nop) RecordUpstreamLatency(string, time.Duration) {}
func (Nop) RecordHTTPStatus(int)                        {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// NewServer は/metricsだけを公開するHTTPサーバーを返す。
// APIとは別のアドレスで待ち受け、内部ネットワークからのスクレイプに使う。
func NewServer(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", Handler(gatherer))
	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
