package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestCounter(t *testing.T) {
	t.Run("without labels", func(t *testing.T) {
		r := NewRegistry()
		c := r.NewCounter("test_counter", "A test counter")

		_ = c.Inc()
		_ = c.Add(3)

		samples := c.Collect()
		if len(samples) != 1 {
			t.Fatalf("expected 1 sample, got %d", len(samples))
		}
		if samples[0].Value != 4 {
			t.Errorf("expected value 4, got %f", samples[0].Value)
		}
	})

	t.Run("with labels", func(t *testing.T) {
		r := NewRegistry()
		c := r.NewCounter("http_requests", "Total HTTP requests", "method", "status")

		for range 2 {
			vec, err := c.WithLabels("GET", "200")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			_ = vec.Inc()
		}
		vec, _ := c.WithLabels("POST", "201")
		_ = vec.Add(5)

		found := make(map[string]float64)
		for _, s := range c.Collect() {
			found[s.Labels["method"]+"_"+s.Labels["status"]] = s.Value
		}
		if found["GET_200"] != 2 || found["POST_201"] != 5 {
			t.Errorf("unexpected samples: %v", found)
		}
	})

	t.Run("wrong label count", func(t *testing.T) {
		c := NewRegistry().NewCounter("test", "test", "a", "b")
		if _, err := c.WithLabels("only_one"); !errors.Is(err, ErrLabelCountMismatch) {
			t.Errorf("expected ErrLabelCountMismatch, got %v", err)
		}
	})

	t.Run("negative add", func(t *testing.T) {
		c := NewRegistry().NewCounter("test", "test")
		if err := c.Add(-1); !errors.Is(err, ErrNegativeCounterValue) {
			t.Errorf("expected ErrNegativeCounterValue, got %v", err)
		}
	})
}

func TestGauge(t *testing.T) {
	g := NewRegistry().NewGauge("temp", "temperature", "room")
	vec, err := g.WithLabels("kitchen")
	if err != nil {
		t.Fatal(err)
	}
	vec.Set(20)
	vec.Inc()
	vec.Dec()
	vec.Add(-5)

	samples := g.Collect()
	if len(samples) != 1 || samples[0].Value != 15 {
		t.Fatalf("expected 15, got %+v", samples)
	}
}

func TestHistogram(t *testing.T) {
	h := NewRegistry().NewHistogram("latency", "latency", []float64{0.5, 0.1})
	for _, v := range []float64{0.05, 0.1, 0.3, 2} {
		_ = h.Observe(v)
	}

	got := map[string]float64{}
	for _, s := range h.Collect() {
		got[s.Name+"|"+s.Labels["le"]] = s.Value
	}
	want := map[string]float64{
		"latency_bucket|0.1":  2,
		"latency_bucket|0.5":  3,
		"latency_bucket|+Inf": 4,
		"latency_count|":      4,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s: expected %v, got %v", k, v, got[k])
		}
	}
	if sum := got["latency_sum|"]; sum < 2.44 || sum > 2.46 {
		t.Errorf("unexpected sum %v", sum)
	}
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	r := NewRegistry()
	r.NewCounter("dup", "first")
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate metric")
		}
	}()
	r.NewGauge("dup", "second")
}

func TestHandlerOutput(t *testing.T) {
	r := NewRegistry()
	c := r.NewCounter("req_total", "Requests\nserved", "path")
	vec, _ := c.WithLabels(`/a"b`)
	_ = vec.Inc()
	r.NewGauge("empty_gauge", "never set")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	out := string(body)
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
	for _, want := range []string{
		`# HELP req_total Requests\nserved`,
		"# TYPE req_total counter",
		`req_total{path="/a\"b"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "empty_gauge") {
		t.Error("metrics without samples should be omitted")
	}
}

func TestConcurrentIncrements(t *testing.T) {
	c := NewRegistry().NewCounter("concurrent", "c", "k")
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				vec, _ := c.WithLabels("x")
				_ = vec.Inc()
			}
		}()
	}
	wg.Wait()
	if v := c.Collect()[0].Value; v != 5000 {
		t.Errorf("expected 5000, got %v", v)
	}
}

func TestSetHelpers(t *testing.T) {
	r := NewRegistry()
	s := NewSet(r)
	s.ObserveAdminRequest("GET", "/api/specs", 200, 5*time.Millisecond)
	s.ObserveMockCall("env-1", "POST", 201, time.Millisecond)
	s.SetEnvironmentsRunning(2)
	s.SetWebSocketClients(1)
	s.ObserveAIRequest("openai", "ok")
	s.Runtime.Collect()

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	out := rec.Body.String()
	for _, want := range []string{
		`sandboxd_admin_requests_total{method="GET",route="/api/specs",status="200"} 1`,
		`sandboxd_mock_calls_total{environment="env-1",method="POST",status="201"} 1`,
		`sandboxd_environments_running 2`,
		`sandboxd_ai_requests_total{outcome="ok",provider="openai"} 1`,
		`go_goroutines`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestNilSetIsNoop(t *testing.T) {
	var s *Set
	s.ObserveAdminRequest("GET", "/", 200, 0)
	s.ObserveMockCall("e", "GET", 200, 0)
	s.SetEnvironmentsRunning(1)
	s.SetSpecs(1)
	s.SetWebSocketClients(1)
	s.ObserveAIRequest("p", "ok")
}
