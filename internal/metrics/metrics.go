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
// サービス層とメタデータ更新ワーカーから利用する。
type MetricsCollector interface {
	RecordRecommendationComputed(intersectionSize int)
	RecordReorderFlush(userID string)
	RecordMetadataFetchSuccess(movieID string)
	RecordMetadataFetchFailure(movieID string, reason string)
	RecordMetadataFetchLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	recommendations      prometheus.Counter
	intersectionSize     prometheus.Histogram
	reorderFlushes       prometheus.Counter
	metadataFetchSuccess prometheus.Counter
	metadataFetchFail    prometheus.Counter
	metadataFetchLatency prometheus.Histogram
	httpStatus           *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		recommendations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "movienight_recommendations_computed_total",
			Help: "推薦リスト計算の合計数",
		}),
		intersectionSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "movienight_intersection_size",
			Help:    "未視聴リスト積集合のサイズ分布",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		reorderFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "movienight_reorder_flushes_total",
			Help: "並べ替えのデバウンスフラッシュ合計数",
		}),
		metadataFetchSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "movienight_metadata_fetch_success_total",
			Help: "映画メタデータ取得成功の合計数",
		}),
		metadataFetchFail: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "movienight_metadata_fetch_fail_total",
			Help: "映画メタデータ取得失敗の合計数",
		}),
		metadataFetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "movienight_metadata_fetch_latency_seconds",
			Help:    "映画メタデータ取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "movienight_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.recommendations,
		c.intersectionSize,
		c.reorderFlushes,
		c.metadataFetchSuccess,
		c.metadataFetchFail,
		c.metadataFetchLatency,
		c.httpStatus,
	)

	return c
}

// RecordRecommendationComputed は推薦リスト計算と積集合のサイズを記録する。
func (c *Collector) RecordRecommendationComputed(intersectionSize int) {
	c.recommendations.Inc()
	c.intersectionSize.Observe(float64(intersectionSize))
}

// RecordReorderFlush はデバウンスされた並べ替えのフラッシュを記録する。
func (c *Collector) RecordReorderFlush(userID string) {
	c.reorderFlushes.Inc()
}

// RecordMetadataFetchSuccess はメタデータ取得成功を記録する。
func (c *Collector) RecordMetadataFetchSuccess(movieID string) {
	c.metadataFetchSuccess.Inc()
}

// RecordMetadataFetchFailure はメタデータ取得失敗を記録する。
func (c *Collector) RecordMetadataFetchFailure(movieID string, reason string) {
	c.metadataFetchFail.Inc()
}

// RecordMetadataFetchLatency はメタデータ取得のレイテンシを記録する。
func (c *Collector) RecordMetadataFetchLatency(duration time.Duration) {
	c.metadataFetchLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
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
