package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCounter_RenderWithHelpAndType(t *testing.T) {
	r := New()
	c := r.Counter("requests_total", "Total requests.")
	c.Inc()
	c.Add(2)

	out := r.Render()
	for _, want := range []string{
		"# HELP requests_total Total requests.",
		"# TYPE requests_total counter",
		"requests_total 3",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestCounter_SameNameReturnsSameInstance(t *testing.T) {
	r := New()
	a := r.Counter("hits_total", "")
	b := r.Counter("hits_total", "")
	if a != b {
		t.Fatal("same name produced distinct counters")
	}
	a.Inc()
	if b.Value() != 1 {
		t.Errorf("value = %d", b.Value())
	}
}

func TestGauge_UpAndDown(t *testing.T) {
	r := New()
	g := r.Gauge("active_sessions", "")
	g.Set(5)
	g.Inc()
	g.Dec()
	g.Dec()

	if g.Value() != 4 {
		t.Errorf("value = %d", g.Value())
	}
	if out := r.Render(); !strings.Contains(out, "active_sessions 4") {
		t.Errorf("render:\n%s", out)
	}
}

func TestWithLabels_SeparateSeriesSharedHeader(t *testing.T) {
	r := New()
	r.Counter(WithLabels("requests_total", "route", "/api/chat"), "Total requests.").Add(2)
	r.Counter(WithLabels("requests_total", "route", "/api/search"), "").Inc()

	out := r.Render()
	if strings.Count(out, "# TYPE requests_total counter") != 1 {
		t.Errorf("TYPE header repeated:\n%s", out)
	}
	if !strings.Contains(out, `requests_total{route="/api/chat"} 2`) {
		t.Errorf("chat series missing:\n%s", out)
	}
	if !strings.Contains(out, `requests_total{route="/api/search"} 1`) {
		t.Errorf("search series missing:\n%s", out)
	}
}

func TestWithLabels_OddPairsReturnBareName(t *testing.T) {
	if got := WithLabels("foo", "k"); got != "foo" {
		t.Errorf("got %q", got)
	}
	if got := WithLabels("foo"); got != "foo" {
		t.Errorf("got %q", got)
	}
}

func TestHistogram_CumulativeBuckets(t *testing.T) {
	r := New()
	h := r.Histogram("latency_seconds", "Request latency.", []float64{0.1, 0.5, 1})
	h.Observe(0.05)
	h.Observe(0.3)
	h.Observe(0.4)
	h.Observe(2) // beyond the largest bucket, only counted in +Inf

	out := r.Render()
	for _, want := range []string{
		`latency_seconds_bucket{le="0.1"} 1`,
		`latency_seconds_bucket{le="0.5"} 3`,
		`latency_seconds_bucket{le="1"} 3`,
		`latency_seconds_bucket{le="+Inf"} 4`,
		`latency_seconds_sum 2.75`,
		`latency_seconds_count 4`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("render missing %q:\n%s", want, out)
		}
	}
}

func TestHistogram_LabeledSeries(t *testing.T) {
	r := New()
	h := r.Histogram(WithLabels("latency_seconds", "route", "/api/chat"), "", []float64{1})
	h.Observe(0.5)

	out := r.Render()
	if !strings.Contains(out, `latency_seconds_bucket{le="1",route="/api/chat"} 1`) {
		t.Errorf("labeled bucket missing:\n%s", out)
	}
	if !strings.Contains(out, `latency_seconds_sum{route="/api/chat"} 0.5`) {
		t.Errorf("labeled sum missing:\n%s", out)
	}
	if !strings.Contains(out, `latency_seconds_count{route="/api/chat"} 1`) {
		t.Errorf("labeled count missing:\n%s", out)
	}
}

func TestHandler_ServesTextFormat(t *testing.T) {
	r := New()
	r.Counter("up_total", "").Inc()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "up_total 1") {
		t.Errorf("body:\n%s", rec.Body.String())
	}
}
