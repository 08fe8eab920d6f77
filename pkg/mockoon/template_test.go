package mockoon

import (
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/sandbox/pkg/fakers"
)

func TestRender(t *testing.T) {
	reg := fakers.NewRegistry()
	_ = reg.Register("planet", func() any { return "Mars" })
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	tmpl := &renderer{fakers: reg, now: func() time.Time { return fixed }}

	q := newRequest(http.MethodPost, "/pets/9?q=cat", `{"owner":{"name":"ann"}}`)
	q.params["petId"] = "9"
	q.r.Header.Set("X-Trace", "t-1")

	tests := []struct {
		in, want string
	}{
		{`{"id":"{{urlParam 'petId'}}"}`, `{"id":"9"}`},
		{`{{queryParam 'q'}} {{queryParam "missing" 'dflt'}}`, `cat dflt`},
		{`{{header 'X-Trace'}}`, `t-1`},
		{`{{body 'owner.name'}}`, `ann`},
		{`{{body '$.owner.name'}}`, `ann`},
		{`{{body 'owner.age' '0'}}`, `0`},
		{`{{method}} {{urlPath}}`, `POST /pets/9`},
		{`{{now}}`, `2026-01-02T03:04:05Z`},
		{`{{faker 'planet'}}`, `Mars`},
		{`{{#each items}}x{{/each}}`, `{{#each items}}x{{/each}}`},
		{`{{unknownHelper 'a'}}`, `{{unknownHelper 'a'}}`},
		{`no tags`, `no tags`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tmpl.render(tt.in, q), tt.in)
	}

	_, err := uuid.Parse(tmpl.render(`{{uuid}}`, q))
	assert.NoError(t, err)
	assert.Contains(t, tmpl.render(`{{faker 'internet.email'}}`, q), "@")
	assert.NotEmpty(t, tmpl.render(`{{faker 'unknown.method'}}`, q))
}

func TestRenderIntRanges(t *testing.T) {
	tmpl := &renderer{fakers: fakers.NewRegistry(), now: time.Now}
	q := newRequest(http.MethodGet, "/", "")

	assert.Equal(t, "7", tmpl.render(`{{int 7 7}}`, q))
	for range 50 {
		n, err := strconv.ParseInt(tmpl.render(`{{int 10 -10}}`, q), 10, 64)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, int64(-10))
		assert.LessOrEqual(t, n, int64(10))
	}

	wide := `{{int -9223372036854775808 9223372036854775807}}`
	assert.NotPanics(t, func() {
		_, err := strconv.ParseInt(tmpl.render(wide, q), 10, 64)
		assert.NoError(t, err)
	})
}
