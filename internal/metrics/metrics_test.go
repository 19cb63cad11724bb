package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// counterValues はメトリクス名に対応するラベル値ごとのカウンタ値を返す。
func counterValues(t *testing.T, reg *prometheus.Registry, name string) map[string]float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	values := make(map[string]float64)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			values[labelValue(m)] = m.GetCounter().GetValue()
		}
	}
	return values
}

func labelValue(m *dto.Metric) string {
	if len(m.GetLabel()) == 0 {
		return ""
	}
	return m.GetLabel()[0].GetValue()
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

func TestRecordCouponIssued_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCouponIssued("created")
	c.RecordCouponIssued("existing")
	c.RecordCouponIssued("existing")
	c.RecordCouponIssued("race_recovered")

	got := counterValues(t, reg, "wecom_coupon_issued_total")
	want := map[string]float64{"created": 1, "existing": 2, "race_recovered": 1}
	for label, v := range want {
		if got[label] != v {
			t.Errorf("issued_total{result=%s} = %v, want %v", label, got[label], v)
		}
	}
}

func TestRecordBind_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordBind("bound")
	c.RecordBind("conflict")
	c.RecordBind("conflict")

	got := counterValues(t, reg, "wecom_coupon_bind_total")
	if got["bound"] != 1 || got["conflict"] != 2 {
		t.Errorf("bind_total = %v, want bound=1 conflict=2", got)
	}
}

func TestRecordTokenRefresh_SuccessAndFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordTokenRefresh(true)
	c.RecordTokenRefresh(false)
	c.RecordTokenRefresh(true)

	got := counterValues(t, reg, "wecom_coupon_token_refresh_total")
	if got["success"] != 2 || got["failure"] != 1 {
		t.Errorf("token_refresh_total = %v, want success=2 failure=1", got)
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(429)

	got := counterValues(t, reg, "wecom_coupon_http_status_total")
	if len(got) != 2 {
		t.Fatalf("expected 2 label combinations, got %d", len(got))
	}
	if got["200"] != 2 {
		t.Errorf("http_status_total{status_code=200} = %v, want 2", got["200"])
	}
	if got["429"] != 1 {
		t.Errorf("http_status_total{status_code=429} = %v, want 1", got["429"])
	}
}

// TestRecordUpstreamLatency_ObservesHistogram はエンドポイント別ヒストグラムに値が記録されることを検証する。
func TestRecordUpstreamLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordUpstreamLatency("access_token", 100*time.Millisecond)
	c.RecordUpstreamLatency("access_token", 2*time.Second)
	c.RecordUpstreamLatency("auth_info", 50*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range families {
		if mf.GetName() != "wecom_coupon_upstream_latency_seconds" {
			continue
		}
		found = true
		for _, m := range mf.GetMetric() {
			if labelValue(m) != "access_token" {
				continue
			}
			h := m.GetHistogram()
			if h.GetSampleCount() != 2 {
				t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
			}
			// 合計は0.1 + 2.0 = 2.1秒
			if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
				t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
			}
		}
	}
	if !found {
		t.Error("wecom_coupon_upstream_latency_seconds metric not found")
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat はHandlerがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCouponIssued("created")
	c.RecordBind("bound")
	c.RecordTokenRefresh(true)
	c.RecordUpstreamLatency("auth_info", 500*time.Millisecond)
	c.RecordHTTPStatus(200)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	for _, metric := range []string{
		"wecom_coupon_issued_total",
		"wecom_coupon_bind_total",
		"wecom_coupon_token_refresh_total",
		"wecom_coupon_upstream_latency_seconds",
		"wecom_coupon_http_status_total",
	} {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestCollector_ImplementsMetricsCollectorInterface はCollectorとNopがMetricsCollectorを実装することを検証する。
func TestCollector_ImplementsMetricsCollectorInterface(t *testing.T) {
	reg := prometheus.NewRegistry()
	var _ MetricsCollector = NewCollector(reg)
	var _ MetricsCollector = Nop{}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordCouponIssued("created")
	c2.RecordCouponIssued("created")
	c2.RecordCouponIssued("created")

	if v := counterValues(t, reg1, "wecom_coupon_issued_total")["created"]; v != 1 {
		t.Errorf("reg1 issued_total = %v, want 1", v)
	}
	if v := counterValues(t, reg2, "wecom_coupon_issued_total")["created"]; v != 2 {
		t.Errorf("reg2 issued_total = %v, want 2", v)
	}
}

func TestNewServer_ServesOnlyMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordHTTPStatus(http.StatusOK)

	srv := NewServer("127.0.0.1:0", reg)
	if srv.Addr != "127.0.0.1:0" {
		t.Errorf("Addr = %q, want %q", srv.Addr, "127.0.0.1:0")
	}

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), `wecom_coupon_http_status_total{status_code="200"} 1`) {
		t.Errorf("metrics output missing status counter:\n%s", w.Body.String())
	}

	w = httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/create-coupon", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("API path on metrics server status = %d, want 404", w.Code)
	}
}
