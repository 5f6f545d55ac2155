package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric はレジストリから指定名・ラベルのメトリクスを探す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if matchLabels(m, labels) {
				return m
			}
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func matchLabels(m *dto.Metric, labels map[string]string) bool {
	for _, lp := range m.GetLabel() {
		if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordAutosave_CountsByResult は保存結果ごとにカウンタが増加することを検証する。
func TestRecordAutosave_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAutosave(ResultSuccess)
	c.RecordAutosave(ResultSuccess)
	c.RecordAutosave(ResultFailure)

	if got := findMetric(t, reg, "gemblog_autosave_total", map[string]string{"result": "success"}).GetCounter().GetValue(); got != 2 {
		t.Errorf("autosave success = %v, want 2", got)
	}
	if got := findMetric(t, reg, "gemblog_autosave_total", map[string]string{"result": "failure"}).GetCounter().GetValue(); got != 1 {
		t.Errorf("autosave failure = %v, want 1", got)
	}
}

// TestRecordPublish_IncrementsCounter は公開カウンタが増加することを検証する。
func TestRecordPublish_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordPublish(ResultSuccess)

	if got := findMetric(t, reg, "gemblog_publish_total", map[string]string{"result": "success"}).GetCounter().GetValue(); got != 1 {
		t.Errorf("publish success = %v, want 1", got)
	}
}

// TestRecordArticleWritten_CountsByOp は操作ごとに書き込みが記録されることを検証する。
func TestRecordArticleWritten_CountsByOp(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordArticleWritten(OpCreate)
	c.RecordArticleWritten(OpUpdate)
	c.RecordArticleWritten(OpUpdate)

	if got := findMetric(t, reg, "gemblog_articles_written_total", map[string]string{"op": "update"}).GetCounter().GetValue(); got != 2 {
		t.Errorf("articles written update = %v, want 2", got)
	}
}

// TestRecordHTTPStatus_LabelsStatusCode はステータスコードがラベルとして記録されることを検証する。
func TestRecordHTTPStatus_LabelsStatusCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)
	c.RecordHTTPStatus(404)

	if got := findMetric(t, reg, "gemblog_http_status_total", map[string]string{"status_code": "404"}).GetCounter().GetValue(); got != 2 {
		t.Errorf("http_status_total{404} = %v, want 2", got)
	}
}

// TestRecordSaveLatency_ObservesHistogram はレイテンシがヒストグラムに記録されることを検証する。
func TestRecordSaveLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSaveLatency(150 * time.Millisecond)

	h := findMetric(t, reg, "gemblog_save_latency_seconds", nil).GetHistogram()
	if h.GetSampleCount() != 1 {
		t.Errorf("sample count = %d, want 1", h.GetSampleCount())
	}
	if h.GetSampleSum() < 0.149 || h.GetSampleSum() > 0.151 {
		t.Errorf("sample sum = %v, want 0.15", h.GetSampleSum())
	}
}

// TestSetActiveSessions_SetsGauge はセッション数ゲージが設定されることを検証する。
func TestSetActiveSessions_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetActiveSessions(3)
	c.SetActiveSessions(2)

	if got := findMetric(t, reg, "gemblog_editor_sessions_active", nil).GetGauge().GetValue(); got != 2 {
		t.Errorf("sessions active = %v, want 2", got)
	}
}
