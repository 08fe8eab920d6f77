package mockoon

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/sandbox/pkg/analytics"
)

type callSink struct {
	mu    sync.Mutex
	calls []*analytics.Call
}

func (s *callSink) Record(c *analytics.Call) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, c)
}

func (s *callSink) all() []*analytics.Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*analytics.Call(nil), s.calls...)
}

func startBuiltin(t *testing.T, env *Environment, rec CallRecorder) (*BuiltinInstance, string) {
	t.Helper()
	runner := &BuiltinRunner{Host: "127.0.0.1", Recorder: rec}
	inst, err := runner.Start(context.Background(), "env_test", env, 0)
	require.NoError(t, err)
	bi := inst.(*BuiltinInstance)
	t.Cleanup(func() { _ = bi.Stop(context.Background()) })
	return bi, "http://" + bi.Addr()
}

func get(t *testing.T, url string, header ...string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestBuiltinRunnerServesEnvironment(t *testing.T) {
	env := Build(loadPetstore(t), BuildOptions{})
	sink := &callSink{}
	_, base := startBuiltin(t, env, sink)

	resp, body := get(t, base+"/v1/pets/p-1")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Contains(t, body, "Rex")

	resp, _ = get(t, base+"/v1/pets")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = get(t, base+"/pets")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	var e map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &e))
	assert.Equal(t, "not_found", e["error"])

	require.Eventually(t, func() bool { return len(sink.all()) == 3 }, time.Second, 10*time.Millisecond)
	byPath := map[string]*analytics.Call{}
	for _, c := range sink.all() {
		byPath[c.Path] = c
	}
	got := byPath["/v1/pets/p-1"]
	require.NotNil(t, got)
	assert.Equal(t, "env_test", got.EnvironmentID)
	assert.Equal(t, "/v1/pets/:petId", got.Route)
	assert.Equal(t, http.StatusOK, got.Status)
	assert.Positive(t, got.ResponseSize)

	missed := byPath["/pets"]
	require.NotNil(t, missed)
	assert.Equal(t, "", missed.Route)
	assert.Equal(t, http.StatusNotFound, missed.Status)
}

func TestBuiltinRunnerRulesAndTemplates(t *testing.T) {
	env := &Environment{
		Name: "rules",
		Cors: true,
		Routes: []Route{{
			Method:   "get",
			Endpoint: "users/:id",
			Responses: []Response{
				{StatusCode: 200, Default: true, Body: `{"id":"{{urlParam 'id'}}"}`},
				{StatusCode: 401, Body: `{"error":"unauthorized"}`, Rules: []Rule{
					{Target: TargetHeader, Modifier: "Authorization", Operator: OperatorNull},
				}},
			},
		}, {
			Method:   "all",
			Endpoint: "raw",
			Responses: []Response{
				{StatusCode: 202, Body: `{{urlParam 'x'}}`, DisableTemplating: true},
			},
		}},
	}
	env.normalize()
	_, base := startBuiltin(t, env, nil)

	resp, body := get(t, base+"/users/7")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, body, "unauthorized")

	resp, body = get(t, base+"/users/7", "Authorization", "Bearer t", "Origin", "http://ui.local")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"id":"7"}`, body)
	assert.Equal(t, "http://ui.local", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err := http.NewRequest(http.MethodDelete, base+"/raw", strings.NewReader("x"))
	require.NoError(t, err)
	r, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw, _ := io.ReadAll(r.Body)
	r.Body.Close()
	assert.Equal(t, http.StatusAccepted, r.StatusCode)
	assert.Equal(t, `{{urlParam 'x'}}`, string(raw))

	req, err = http.NewRequest(http.MethodOptions, base+"/users/7", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://ui.local")
	req.Header.Set("Access-Control-Request-Method", "GET")
	r, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	r.Body.Close()
	assert.Equal(t, http.StatusNoContent, r.StatusCode)
}

func TestBuiltinRunnerLatency(t *testing.T) {
	env := &Environment{
		Latency: 30,
		Routes:  []Route{{Method: "get", Endpoint: "slow", Responses: []Response{{StatusCode: 200, Latency: 20}}}},
	}
	env.normalize()
	_, base := startBuiltin(t, env, nil)

	start := time.Now()
	resp, _ := get(t, base+"/slow")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestBuiltinInstanceStop(t *testing.T) {
	env := &Environment{Name: "stop"}
	env.normalize()
	runner := &BuiltinRunner{Host: "127.0.0.1"}
	inst, err := runner.Start(context.Background(), "env_stop", env, 0)
	require.NoError(t, err)
	assert.Nil(t, inst.Err())

	require.NoError(t, inst.Stop(context.Background()))
	select {
	case <-inst.Done():
	case <-time.After(time.Second):
		t.Fatal("instance did not finish")
	}
	assert.ErrorIs(t, inst.Err(), ErrStopped)
	logs := inst.Logs()
	require.NotEmpty(t, logs)
	assert.Contains(t, logs[len(logs)-1], "environment stopped")
}

func TestBuiltinRunnerPortInUse(t *testing.T) {
	env := &Environment{}
	env.normalize()
	first, _ := startBuiltin(t, env, nil)
	_, portStr, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	runner := &BuiltinRunner{Host: "127.0.0.1"}
	_, err = runner.Start(context.Background(), "env_dup", env, port)
	assert.Error(t, err)
}

func TestMatchSegments(t *testing.T) {
	params, ok := matchSegments([]string{"a", ":id", "b"}, []string{"a", "1", "b"})
	assert.True(t, ok)
	assert.Equal(t, map[string]string{"id": "1"}, params)

	_, ok = matchSegments([]string{"a", ":id"}, []string{"a"})
	assert.False(t, ok)

	_, ok = matchSegments([]string{"files", "*"}, []string{"files", "x", "y"})
	assert.True(t, ok)

	_, ok = matchSegments(nil, nil)
	assert.True(t, ok)
}
