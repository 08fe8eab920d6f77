package mockoon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/getmockd/sandbox/pkg/analytics"
	"github.com/getmockd/sandbox/pkg/fakers"
	"github.com/getmockd/sandbox/pkg/httputil"
	"github.com/getmockd/sandbox/pkg/logging"
)

// maxMockBodyBytes bounds request bodies read by mock servers.
const maxMockBodyBytes = 10 << 20

// BuiltinRunner serves environments in-process. The zero value listens on
// all interfaces and discards calls.
type BuiltinRunner struct {
	Host     string
	Recorder CallRecorder
	Fakers   *fakers.Registry
	Logger   *slog.Logger
	LogLines int
}

// Name implements Runner.
func (b *BuiltinRunner) Name() string { return RunnerBuiltin }

// Start implements Runner. Port 0 picks a free port; see BuiltinInstance.Addr.
func (b *BuiltinRunner) Start(_ context.Context, environmentID string, env *Environment, port int) (Instance, error) {
	if env == nil {
		return nil, errors.New("environment is required")
	}
	ln, err := net.Listen("tcp", net.JoinHostPort(b.Host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("listen on port %d: %w", port, err)
	}

	log := b.Logger
	if log == nil {
		log = logging.Nop()
	}
	reg := b.Fakers
	if reg == nil {
		reg = fakers.Default
	}
	inst := &BuiltinInstance{
		exitState: newExitState(),
		logs:      newLineBuffer(b.LogLines),
		addr:      ln.Addr().String(),
	}
	h := newEnvHandler(environmentID, env.Clone(), b.Recorder, &renderer{fakers: reg, now: time.Now}, inst.logs)
	inst.srv = &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		err := inst.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			inst.finish(ErrStopped)
			return
		}
		log.Error("mock server exited", "environment", environmentID, "error", err)
		inst.logs.Add("server error: " + err.Error())
		inst.finish(err)
	}()

	inst.logs.Add(fmt.Sprintf("environment %q listening on %s (%d routes)", env.Name, inst.addr, len(env.Routes)))
	log.Info("mock server started", "environment", environmentID, "addr", inst.addr)
	return inst, nil
}

// BuiltinInstance is an environment served by BuiltinRunner.
type BuiltinInstance struct {
	*exitState
	srv  *http.Server
	logs *lineBuffer
	addr string
}

// Addr returns the listen address.
func (i *BuiltinInstance) Addr() string { return i.addr }

// Logs implements Instance.
func (i *BuiltinInstance) Logs() []string { return i.logs.Lines() }

// Stop shuts the server down, closing it hard if ctx expires first.
func (i *BuiltinInstance) Stop(ctx context.Context) error {
	err := i.srv.Shutdown(ctx)
	if err != nil {
		_ = i.srv.Close()
	}
	<-i.Done()
	i.logs.Add("environment stopped")
	return err
}

// envHandler routes requests to environment routes.
type envHandler struct {
	envID    string
	env      *Environment
	prefix   string
	routes   []compiledRoute
	recorder CallRecorder
	tmpl     *renderer
	logs     *lineBuffer
}

type compiledRoute struct {
	route    *Route
	segments []string
	counter  *atomic.Int64
}

func newEnvHandler(envID string, env *Environment, rec CallRecorder, tmpl *renderer, logs *lineBuffer) *envHandler {
	h := &envHandler{
		envID:    envID,
		env:      env,
		prefix:   strings.Trim(env.EndpointPrefix, "/"),
		recorder: rec,
		tmpl:     tmpl,
		logs:     logs,
	}
	for i := range env.Routes {
		h.routes = append(h.routes, compiledRoute{
			route:    &env.Routes[i],
			segments: splitPath(env.Routes[i].Endpoint),
			counter:  new(atomic.Int64),
		})
	}
	return h
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

// match returns the route for method and path with its params.
func (h *envHandler) match(method, path string) (*compiledRoute, map[string]string) {
	rel := strings.Trim(path, "/")
	if h.prefix != "" {
		switch {
		case rel == h.prefix:
			rel = ""
		case strings.HasPrefix(rel, h.prefix+"/"):
			rel = rel[len(h.prefix)+1:]
		default:
			return nil, nil
		}
	}
	segs := splitPath(rel)
	for i := range h.routes {
		cr := &h.routes[i]
		m := strings.ToUpper(cr.route.Method)
		if m != "ALL" && m != method {
			continue
		}
		if params, ok := matchSegments(cr.segments, segs); ok {
			return cr, params
		}
	}
	return nil, nil
}

func matchSegments(pattern, segs []string) (map[string]string, bool) {
	params := map[string]string{}
	for i, p := range pattern {
		if p == "*" && i == len(pattern)-1 {
			return params, true
		}
		if i >= len(segs) {
			return nil, false
		}
		switch {
		case strings.HasPrefix(p, ":"):
			params[p[1:]] = segs[i]
		case p != segs[i]:
			return nil, false
		}
	}
	return params, len(pattern) == len(segs)
}

func (h *envHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rw := &countingWriter{ResponseWriter: w, status: http.StatusOK}
	body, _ := io.ReadAll(io.LimitReader(r.Body, maxMockBodyBytes))

	routeName := ""
	defer func() {
		d := time.Since(start)
		h.logs.Add(fmt.Sprintf("%s %s %d %s", r.Method, r.URL.RequestURI(), rw.status, d.Round(time.Microsecond)))
		if h.recorder != nil {
			h.recorder.Record(&analytics.Call{
				EnvironmentID: h.envID,
				Method:        r.Method,
				Path:          r.URL.Path,
				Route:         routeName,
				Status:        rw.status,
				DurationMs:    float64(d.Microseconds()) / 1000,
				RequestSize:   int64(len(body)),
				ResponseSize:  rw.written,
				RemoteAddr:    r.RemoteAddr,
				UserAgent:     r.UserAgent(),
			})
		}
	}()

	if h.env.Cors {
		setCORS(rw.Header(), r)
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			rw.WriteHeader(http.StatusNoContent)
			return
		}
	}

	cr, params := h.match(r.Method, r.URL.Path)
	if cr == nil {
		httputil.WriteError(rw, http.StatusNotFound, "not_found",
			fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
		return
	}
	routeName = "/" + strings.Trim(h.prefix+"/"+cr.route.Endpoint, "/")

	q := &request{r: r, params: params, body: body, number: cr.counter.Add(1)}
	resp := selectResponse(cr.route, q)
	if resp == nil {
		httputil.WriteError(rw, http.StatusNotFound, "not_found", "route has no responses")
		return
	}

	if delay := time.Duration(h.env.Latency+resp.Latency) * time.Millisecond; delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-t.C:
		case <-r.Context().Done():
			t.Stop()
			return
		}
	}

	for _, hd := range h.env.Headers {
		if hd.Key != "" {
			rw.Header().Set(hd.Key, hd.Value)
		}
	}
	for _, hd := range resp.Headers {
		if hd.Key != "" {
			rw.Header().Set(hd.Key, hd.Value)
		}
	}
	out := resp.Body
	if !resp.DisableTemplating {
		out = h.tmpl.render(out, q)
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	rw.WriteHeader(status)
	_, _ = io.WriteString(rw, out)
}

func setCORS(h http.Header, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		origin = "*"
	}
	h.Set("Access-Control-Allow-Origin", origin)
	h.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,HEAD,OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Origin, Accept, Authorization, Content-Length, X-Requested-With")
}

// countingWriter records the status and body size of a response.
type countingWriter struct {
	http.ResponseWriter
	status      int
	written     int64
	wroteHeader bool
}

func (w *countingWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *countingWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}
