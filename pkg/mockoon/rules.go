package mockoon

import (
	"fmt"
	"math/rand/v2"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"
)

// Route response modes.
const (
	ModeRandom       = "RANDOM"
	ModeSequential   = "SEQUENTIAL"
	ModeDisableRules = "DISABLE_RULES"
)

// OperatorRegexInsensitive is the case-insensitive regex operator.
const OperatorRegexInsensitive = "regex_i"

// request is the data rules and templates read from.
type request struct {
	r       *http.Request
	params  map[string]string
	body    []byte
	number  int64
	parsed  bool
	bodyVal any
}

// bodyValue decodes the body once: JSON bodies with oj, form bodies into a
// map of strings or string slices.
func (q *request) bodyValue() any {
	if q.parsed {
		return q.bodyVal
	}
	q.parsed = true
	if len(q.body) == 0 {
		return nil
	}
	ct := strings.ToLower(q.r.Header.Get("Content-Type"))
	if strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		if vals, err := url.ParseQuery(string(q.body)); err == nil {
			m := make(map[string]any, len(vals))
			for k, v := range vals {
				if len(v) == 1 {
					m[k] = v[0]
				} else {
					m[k] = toAnySlice(v)
				}
			}
			q.bodyVal = m
		}
		return q.bodyVal
	}
	if v, err := oj.Parse(q.body); err == nil {
		q.bodyVal = v
	}
	return q.bodyVal
}

// bodyPath returns the values at path. A path starting with "$" is JSONPath;
// otherwise it is dotted ("items.0.id").
func (q *request) bodyPath(path string) ([]any, error) {
	x, err := compilePath(path)
	if err != nil {
		return nil, err
	}
	data := q.bodyValue()
	if data == nil {
		return nil, nil
	}
	return x.Get(data), nil
}

var pathCache sync.Map

func compilePath(path string) (jp.Expr, error) {
	if cached, ok := pathCache.Load(path); ok {
		return cached.(jp.Expr), nil
	}
	var x jp.Expr
	if strings.HasPrefix(path, "$") {
		parsed, err := jp.ParseString(path)
		if err != nil {
			return nil, fmt.Errorf("invalid JSONPath %q: %w", path, err)
		}
		x = parsed
	} else {
		x = jp.R()
		for _, seg := range strings.Split(path, ".") {
			if n, err := strconv.Atoi(seg); err == nil {
				x = x.N(n)
			} else {
				x = x.C(seg)
			}
		}
	}
	pathCache.Store(path, x)
	return x, nil
}

// target resolves a rule target to its value: nil when absent, a []any for
// repeated values, else a scalar.
func (q *request) target(rule *Rule) any {
	switch rule.Target {
	case TargetBody:
		if rule.Modifier == "" {
			if len(q.body) == 0 {
				return nil
			}
			return string(q.body)
		}
		vals, err := q.bodyPath(rule.Modifier)
		if err != nil || len(vals) == 0 {
			return nil
		}
		if len(vals) == 1 {
			return vals[0]
		}
		return vals
	case TargetQuery:
		vals, ok := q.r.URL.Query()[rule.Modifier]
		if !ok {
			return nil
		}
		if len(vals) == 1 {
			return vals[0]
		}
		return toAnySlice(vals)
	case TargetHeader:
		vals := q.r.Header.Values(rule.Modifier)
		if len(vals) == 0 {
			return nil
		}
		return vals[0]
	case TargetCookie:
		c, err := q.r.Cookie(rule.Modifier)
		if err != nil {
			return nil
		}
		return c.Value
	case TargetParams:
		v, ok := q.params[rule.Modifier]
		if !ok {
			return nil
		}
		return v
	case TargetRequestNumber:
		return strconv.FormatInt(q.number, 10)
	}
	return nil
}

// matchRule evaluates one rule, honoring Invert.
func (q *request) matchRule(rule *Rule) bool {
	v := q.target(rule)
	var ok bool
	switch rule.Operator {
	case OperatorNull:
		ok = v == nil
	case OperatorEmptyArray:
		arr, isArr := v.([]any)
		ok = isArr && len(arr) == 0
	case OperatorArrayIncludes:
		arr, isArr := v.([]any)
		ok = isArr && anyMatch(arr, func(s string) bool { return s == rule.Value })
	case OperatorRegex, OperatorRegexInsensitive:
		re, err := compileRegex(rule.Value, rule.Operator == OperatorRegexInsensitive)
		ok = err == nil && v != nil && anyMatch(asSlice(v), re.MatchString)
	default:
		if rule.Target == TargetRequestNumber {
			ok = matchRequestNumber(rule.Value, q.number)
		} else {
			ok = v != nil && anyMatch(asSlice(v), func(s string) bool { return s == rule.Value })
		}
	}
	if rule.Invert {
		return !ok
	}
	return ok
}

// matchRequestNumber accepts a number or a regex over the request count.
func matchRequestNumber(value string, n int64) bool {
	if want, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
		return want == n
	}
	re, err := compileRegex(value, false)
	return err == nil && re.MatchString(strconv.FormatInt(n, 10))
}

// matchResponse reports whether resp has rules and they hold.
func (q *request) matchResponse(resp *Response) bool {
	if len(resp.Rules) == 0 {
		return false
	}
	and := strings.EqualFold(resp.RulesOperator, RulesAND)
	for i := range resp.Rules {
		m := q.matchRule(&resp.Rules[i])
		if and && !m {
			return false
		}
		if !and && m {
			return true
		}
	}
	return and
}

// selectResponse picks the response for a request: the first response whose
// rules match, else the default one. Random and sequential modes ignore
// rules.
func selectResponse(route *Route, q *request) *Response {
	if len(route.Responses) == 0 {
		return nil
	}
	mode := ""
	if route.ResponseMode != nil {
		mode = *route.ResponseMode
	}
	switch mode {
	case ModeRandom:
		return &route.Responses[rand.IntN(len(route.Responses))]
	case ModeSequential:
		return &route.Responses[int((q.number-1)%int64(len(route.Responses)))]
	case ModeDisableRules:
		return route.DefaultResponse()
	}
	for i := range route.Responses {
		if q.matchResponse(&route.Responses[i]) {
			return &route.Responses[i]
		}
	}
	return route.DefaultResponse()
}

var regexCache sync.Map

func compileRegex(pattern string, insensitive bool) (*regexp.Regexp, error) {
	key := pattern
	if insensitive {
		key = "(?i)" + pattern
	}
	if cached, ok := regexCache.Load(key); ok {
		return cached.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(key)
	if err != nil {
		return nil, err
	}
	regexCache.Store(key, re)
	return re, nil
}

func asSlice(v any) []any {
	if arr, ok := v.([]any); ok {
		return arr
	}
	return []any{v}
}

func anyMatch(values []any, fn func(string) bool) bool {
	for _, v := range values {
		if fn(stringify(v)) {
			return true
		}
	}
	return false
}

// stringify renders a rule or template value as text.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any, map[string]any:
		return oj.JSON(t)
	}
	return fmt.Sprint(v)
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
