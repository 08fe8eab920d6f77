package mockoon

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newRequest(method, target, body string) *request {
	r := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		r.Header.Set("Content-Type", "application/json")
	}
	return &request{r: r, params: map[string]string{}, body: []byte(body), number: 1}
}

func TestMatchRule(t *testing.T) {
	q := newRequest(http.MethodPost, "/users?role=admin&tag=a&tag=b", `{"user":{"name":"ann","tags":[]},"items":[{"id":7}],"ids":["x","y"]}`)
	q.r.Header.Set("X-Tenant", "acme")
	q.r.AddCookie(&http.Cookie{Name: "session", Value: "s1"})
	q.params["id"] = "42"

	tests := []struct {
		name string
		rule Rule
		want bool
	}{
		{"query equals", Rule{Target: TargetQuery, Modifier: "role", Operator: OperatorEquals, Value: "admin"}, true},
		{"query repeated", Rule{Target: TargetQuery, Modifier: "tag", Operator: OperatorEquals, Value: "b"}, true},
		{"query missing null", Rule{Target: TargetQuery, Modifier: "page", Operator: OperatorNull}, true},
		{"header regex", Rule{Target: TargetHeader, Modifier: "X-Tenant", Operator: OperatorRegex, Value: "^ac"}, true},
		{"header regex_i", Rule{Target: TargetHeader, Modifier: "X-Tenant", Operator: OperatorRegexInsensitive, Value: "^ACME$"}, true},
		{"cookie", Rule{Target: TargetCookie, Modifier: "session", Operator: OperatorEquals, Value: "s1"}, true},
		{"params", Rule{Target: TargetParams, Modifier: "id", Operator: OperatorEquals, Value: "42"}, true},
		{"params inverted", Rule{Target: TargetParams, Modifier: "id", Operator: OperatorEquals, Value: "42", Invert: true}, false},
		{"body dotted", Rule{Target: TargetBody, Modifier: "user.name", Operator: OperatorEquals, Value: "ann"}, true},
		{"body index", Rule{Target: TargetBody, Modifier: "items.0.id", Operator: OperatorEquals, Value: "7"}, true},
		{"body jsonpath", Rule{Target: TargetBody, Modifier: "$.items[0].id", Operator: OperatorEquals, Value: "7"}, true},
		{"body empty array", Rule{Target: TargetBody, Modifier: "user.tags", Operator: OperatorEmptyArray}, true},
		{"body array includes", Rule{Target: TargetBody, Modifier: "ids", Operator: OperatorArrayIncludes, Value: "y"}, true},
		{"body array excludes", Rule{Target: TargetBody, Modifier: "ids", Operator: OperatorArrayIncludes, Value: "z"}, false},
		{"body missing null", Rule{Target: TargetBody, Modifier: "user.age", Operator: OperatorNull}, true},
		{"body raw regex", Rule{Target: TargetBody, Operator: OperatorRegex, Value: `"ann"`}, true},
		{"request number", Rule{Target: TargetRequestNumber, Operator: OperatorEquals, Value: "1"}, true},
		{"request number regex", Rule{Target: TargetRequestNumber, Operator: OperatorRegex, Value: "^[2-9]$"}, false},
		{"bad regex", Rule{Target: TargetHeader, Modifier: "X-Tenant", Operator: OperatorRegex, Value: "("}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, q.matchRule(&tt.rule))
		})
	}
}

func TestFormBodyRule(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader("user=bob&scope=a&scope=b"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	q := &request{r: r, body: []byte("user=bob&scope=a&scope=b")}

	assert.True(t, q.matchRule(&Rule{Target: TargetBody, Modifier: "user", Operator: OperatorEquals, Value: "bob"}))
	assert.True(t, q.matchRule(&Rule{Target: TargetBody, Modifier: "scope", Operator: OperatorArrayIncludes, Value: "b"}))
}

func TestSelectResponse(t *testing.T) {
	route := &Route{
		Responses: []Response{
			{StatusCode: 200, Default: true},
			{StatusCode: 401, Rules: []Rule{{Target: TargetHeader, Modifier: "Authorization", Operator: OperatorNull}}},
			{StatusCode: 403, RulesOperator: RulesAND, Rules: []Rule{
				{Target: TargetQuery, Modifier: "role", Operator: OperatorEquals, Value: "guest"},
				{Target: TargetHeader, Modifier: "Authorization", Operator: OperatorNull, Invert: true},
			}},
		},
	}

	q := newRequest(http.MethodGet, "/", "")
	assert.Equal(t, 401, selectResponse(route, q).StatusCode)

	q = newRequest(http.MethodGet, "/?role=guest", "")
	q.r.Header.Set("Authorization", "Bearer x")
	assert.Equal(t, 403, selectResponse(route, q).StatusCode)

	q = newRequest(http.MethodGet, "/?role=admin", "")
	q.r.Header.Set("Authorization", "Bearer x")
	assert.Equal(t, 200, selectResponse(route, q).StatusCode)

	t.Run("disable rules", func(t *testing.T) {
		mode := ModeDisableRules
		r := *route
		r.ResponseMode = &mode
		assert.Equal(t, 200, selectResponse(&r, newRequest(http.MethodGet, "/", "")).StatusCode)
	})

	t.Run("sequential", func(t *testing.T) {
		mode := ModeSequential
		r := *route
		r.ResponseMode = &mode
		var got []int
		for n := int64(1); n <= 4; n++ {
			q := newRequest(http.MethodGet, "/", "")
			q.number = n
			got = append(got, selectResponse(&r, q).StatusCode)
		}
		assert.Equal(t, []int{200, 401, 403, 200}, got)
	})

	t.Run("no responses", func(t *testing.T) {
		assert.Nil(t, selectResponse(&Route{}, newRequest(http.MethodGet, "/", "")))
	})
}
