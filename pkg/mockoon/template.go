package mockoon

import (
	"math/rand/v2"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/getmockd/sandbox/internal/id"
	"github.com/getmockd/sandbox/pkg/fakers"
)

// templatePattern matches a single-expression Handlebars tag. Block helpers
// ({{#each}}) are left as they are.
var (
	templatePattern = regexp.MustCompile(`\{\{\s*([A-Za-z][\w.]*)((?:\s+(?:'[^']*'|"[^"]*"|[^\s'"}]+))*)\s*\}\}`)
	argPattern      = regexp.MustCompile(`'[^']*'|"[^"]*"|[^\s'"]+`)
)

// fakerAliases maps Mockoon faker methods to registry names.
var fakerAliases = map[string]string{
	"person.firstName":       "firstName",
	"person.lastName":        "lastName",
	"person.fullName":        "name",
	"person.jobTitle":        "jobTitle",
	"internet.email":         "email",
	"internet.url":           "url",
	"internet.ip":            "ipv4",
	"internet.ipv4":          "ipv4",
	"phone.number":           "phone",
	"location.streetAddress": "address",
	"location.city":          "address",
	"company.name":           "company",
	"lorem.sentence":         "sentence",
	"lorem.paragraph":        "sentence",
	"lorem.word":             "word",
	"date.past":              "dateTime",
	"date.recent":            "dateTime",
	"date.future":            "dateTime",
	"string.uuid":            "uuid",
	"datatype.boolean":       "boolean",
	"finance.amount":         "price",
	"commerce.price":         "price",
	"color.human":            "color",
	"internet.color":         "color",
}

// renderer evaluates Mockoon helpers in response bodies.
type renderer struct {
	fakers *fakers.Registry
	now    func() time.Time
}

// render replaces known helpers; unknown helpers are kept verbatim.
func (t *renderer) render(body string, q *request) string {
	if !strings.Contains(body, "{{") {
		return body
	}
	return templatePattern.ReplaceAllStringFunc(body, func(match string) string {
		m := templatePattern.FindStringSubmatch(match)
		args := argPattern.FindAllString(m[2], -1)
		for i, a := range args {
			args[i] = unquote(a)
		}
		if out, ok := t.helper(m[1], args, q); ok {
			return out
		}
		return match
	})
}

func (t *renderer) helper(name string, args []string, q *request) (string, bool) {
	arg := func(i int) string {
		if i < len(args) {
			return args[i]
		}
		return ""
	}
	switch name {
	case "urlParam":
		return q.params[arg(0)], true
	case "queryParam":
		if v := q.r.URL.Query().Get(arg(0)); v != "" {
			return v, true
		}
		return arg(1), true
	case "header":
		if v := q.r.Header.Get(arg(0)); v != "" {
			return v, true
		}
		return arg(1), true
	case "cookie":
		if c, err := q.r.Cookie(arg(0)); err == nil {
			return c.Value, true
		}
		return arg(1), true
	case "body":
		if arg(0) == "" {
			return string(q.body), true
		}
		vals, err := q.bodyPath(arg(0))
		if err != nil || len(vals) == 0 {
			return arg(1), true
		}
		return stringify(vals[0]), true
	case "bodyRaw":
		return string(q.body), true
	case "method":
		return q.r.Method, true
	case "urlPath":
		return q.r.URL.Path, true
	case "uuid":
		return id.UUID(), true
	case "now":
		return t.now().UTC().Format(time.RFC3339), true
	case "int":
		lo, hi := parseIntOr(arg(0), 0), parseIntOr(arg(1), 100)
		return strconv.FormatInt(fakers.IntBetween(lo, hi), 10), true
	case "boolean":
		return strconv.FormatBool(rand.IntN(2) == 1), true
	case "faker":
		return t.fake(arg(0)), true
	}
	return "", false
}

// fake resolves a Mockoon faker method or a registry name.
func (t *renderer) fake(method string) string {
	candidates := []string{method}
	if alias, ok := fakerAliases[method]; ok {
		candidates = append([]string{alias}, candidates...)
	}
	if i := strings.LastIndexByte(method, '.'); i >= 0 {
		candidates = append(candidates, method[i+1:])
	}
	for _, name := range candidates {
		if v, err := t.fakers.Generate(name); err == nil {
			return stringify(v)
		}
	}
	v, _ := t.fakers.Generate("word")
	return stringify(v)
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func parseIntOr(s string, def int64) int64 {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	return def
}
