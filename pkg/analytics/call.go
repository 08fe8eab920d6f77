// Package analytics records calls served by mock environments and
// aggregates them.
package analytics

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrInvalidFilter is returned for malformed filter values.
var ErrInvalidFilter = errors.New("invalid filter")

// Call is one request served by an environment.
type Call struct {
	ID            string `json:"id"`
	EnvironmentID string `json:"environmentId"`
	Method        string `json:"method"`
	Path          string `json:"path"`
	// Route is the matched route pattern, empty when no route matched.
	Route        string    `json:"route,omitempty"`
	Status       int       `json:"status"`
	DurationMs   float64   `json:"durationMs"`
	RequestSize  int64     `json:"requestSize"`
	ResponseSize int64     `json:"responseSize"`
	RemoteAddr   string    `json:"remoteAddr,omitempty"`
	UserAgent    string    `json:"userAgent,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// IsError reports whether the call returned a 4xx or 5xx status.
func (c *Call) IsError() bool { return c.Status >= 400 }

// StatusClass returns "2xx", "4xx", ... for the call status.
func (c *Call) StatusClass() string { return statusClass(c.Status) }

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "other"
	}
	return strconv.Itoa(status/100) + "xx"
}

// Filter selects calls. Zero values match everything.
type Filter struct {
	EnvironmentID string
	Method        string
	// Path is a doublestar glob matched against the request path,
	// e.g. "/pets/**".
	Path string
	// Status matches an exact status code.
	Status int
	// StatusClass matches "2xx", "4xx", ...
	StatusClass string
	Since       time.Time
	Until       time.Time
	Limit       int
	Offset      int
}

// Validate checks the glob and status class.
func (f *Filter) Validate() error {
	if f.Path != "" && !doublestar.ValidatePattern(f.Path) {
		return fmt.Errorf("%w: bad path pattern %q", ErrInvalidFilter, f.Path)
	}
	if f.StatusClass != "" {
		c := strings.ToLower(f.StatusClass)
		if len(c) != 3 || c[0] < '1' || c[0] > '5' || c[1:] != "xx" {
			return fmt.Errorf("%w: bad status class %q", ErrInvalidFilter, f.StatusClass)
		}
	}
	if f.Limit < 0 || f.Offset < 0 {
		return fmt.Errorf("%w: limit and offset must not be negative", ErrInvalidFilter)
	}
	return nil
}

func (f *Filter) matches(c *Call) bool {
	if f.EnvironmentID != "" && c.EnvironmentID != f.EnvironmentID {
		return false
	}
	if f.Method != "" && !strings.EqualFold(c.Method, f.Method) {
		return false
	}
	if f.Status != 0 && c.Status != f.Status {
		return false
	}
	if f.StatusClass != "" && !strings.EqualFold(c.StatusClass(), f.StatusClass) {
		return false
	}
	if !f.Since.IsZero() && c.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && c.Timestamp.After(f.Until) {
		return false
	}
	if f.Path != "" {
		ok, err := doublestar.Match(f.Path, c.Path)
		if err != nil || !ok {
			return false
		}
	}
	return true
}

// ParseFilter reads a Filter from query parameters: environmentId, method,
// path, status, statusClass, since, until (RFC 3339), limit and offset.
func ParseFilter(q url.Values) (Filter, error) {
	f := Filter{
		EnvironmentID: q.Get("environmentId"),
		Method:        q.Get("method"),
		Path:          q.Get("path"),
		StatusClass:   q.Get("statusClass"),
	}
	var err error
	num := func(key string, dst *int) {
		if v := q.Get(key); v != "" && err == nil {
			n, convErr := strconv.Atoi(v)
			if convErr != nil {
				err = fmt.Errorf("%w: %s must be an integer", ErrInvalidFilter, key)
				return
			}
			*dst = n
		}
	}
	ts := func(key string, dst *time.Time) {
		if v := q.Get(key); v != "" && err == nil {
			t, parseErr := time.Parse(time.RFC3339, v)
			if parseErr != nil {
				err = fmt.Errorf("%w: %s must be an RFC 3339 timestamp", ErrInvalidFilter, key)
				return
			}
			*dst = t
		}
	}
	num("status", &f.Status)
	num("limit", &f.Limit)
	num("offset", &f.Offset)
	ts("since", &f.Since)
	ts("until", &f.Until)
	if err != nil {
		return Filter{}, err
	}
	return f, f.Validate()
}

// Summary aggregates a set of calls.
type Summary struct {
	Total         int            `json:"total"`
	Errors        int            `json:"errors"`
	ErrorRate     float64        `json:"errorRate"`
	AvgMs         float64        `json:"avgMs"`
	P50Ms         float64        `json:"p50Ms"`
	P95Ms         float64        `json:"p95Ms"`
	MaxMs         float64        `json:"maxMs"`
	ByStatusClass map[string]int `json:"byStatusClass"`
	ByEnvironment map[string]int `json:"byEnvironment"`
	ByMethod      map[string]int `json:"byMethod"`
	TopEndpoints  []EndpointStat `json:"topEndpoints"`
	Timeline      []Bucket       `json:"timeline"`
}

// EndpointStat aggregates calls to one method and route.
type EndpointStat struct {
	Method string  `json:"method"`
	Route  string  `json:"route"`
	Count  int     `json:"count"`
	Errors int     `json:"errors"`
	AvgMs  float64 `json:"avgMs"`
}

// Bucket is one interval of the timeline.
type Bucket struct {
	Start  time.Time `json:"start"`
	Count  int       `json:"count"`
	Errors int       `json:"errors"`
	AvgMs  float64   `json:"avgMs"`
}
