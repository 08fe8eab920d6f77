package mockoon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/getmockd/sandbox/internal/id"
	"github.com/getmockd/sandbox/pkg/fakers"
	"github.com/getmockd/sandbox/pkg/specs"
)

// BuildOptions configures Build.
type BuildOptions struct {
	Name     string
	Port     int
	Hostname string
	// Generator produces bodies for responses without an example. Nil uses
	// a generator over fakers.Default.
	Generator *fakers.Generator
}

var openAPIParamPattern = regexp.MustCompile(`\{([^}/]+)\}`)

// EndpointFromPath converts an OpenAPI path ("/pets/{petId}") to a Mockoon
// endpoint ("pets/:petId").
func EndpointFromPath(path string) string {
	return strings.TrimPrefix(openAPIParamPattern.ReplaceAllString(path, ":$1"), "/")
}

// Build converts doc into a Mockoon environment with one route per
// operation.
func Build(doc *openapi3.T, opts BuildOptions) *Environment {
	gen := opts.Generator
	if gen == nil {
		gen = fakers.NewGenerator(nil)
	}
	name := opts.Name
	if name == "" && doc != nil && doc.Info != nil {
		name = doc.Info.Title
	}

	env := &Environment{
		UUID:           id.UUID(),
		LastMigration:  LastMigration,
		Name:           name,
		EndpointPrefix: strings.Trim(specs.BasePath(doc), "/"),
		Port:           opts.Port,
		Hostname:       opts.Hostname,
		Cors:           true,
		Headers:        []Header{{Key: "Content-Type", Value: "application/json"}},
	}

	for _, ep := range specs.Endpoints(doc) {
		item := doc.Paths.Find(ep.Path)
		if item == nil {
			continue
		}
		op := item.GetOperation(ep.Method)
		if op == nil {
			continue
		}
		route := Route{
			UUID:          id.UUID(),
			Type:          RouteTypeHTTP,
			Documentation: firstNonEmpty(op.Summary, op.Description, op.OperationID),
			Method:        strings.ToLower(ep.Method),
			Endpoint:      EndpointFromPath(ep.Path),
			Responses:     buildResponses(op, gen),
		}
		env.Routes = append(env.Routes, route)
		env.RootChildren = append(env.RootChildren, RootChild{Type: "route", UUID: route.UUID})
	}

	env.normalize()
	return env
}

type statusResponse struct {
	code int
	ref  *openapi3.ResponseRef
}

// buildResponses returns one response per declared status. The lowest 2xx
// status is first and marked default; without any 2xx the lowest status is.
func buildResponses(op *openapi3.Operation, gen *fakers.Generator) []Response {
	var declared []statusResponse
	var fallback *openapi3.ResponseRef
	if op.Responses != nil {
		for key, ref := range op.Responses.Map() {
			if key == "default" {
				fallback = ref
				continue
			}
			if code, ok := parseStatus(key); ok {
				declared = append(declared, statusResponse{code: code, ref: ref})
			}
		}
	}
	if len(declared) == 0 {
		declared = append(declared, statusResponse{code: http.StatusOK, ref: fallback})
	}
	sort.Slice(declared, func(i, j int) bool {
		iOK, jOK := is2xx(declared[i].code), is2xx(declared[j].code)
		if iOK != jOK {
			return iOK
		}
		return declared[i].code < declared[j].code
	})

	out := make([]Response, 0, len(declared))
	for i, d := range declared {
		resp := Response{
			UUID:       id.UUID(),
			StatusCode: d.code,
			Label:      http.StatusText(d.code),
			Default:    i == 0,
			CrudKey:    "id",
		}
		if d.ref != nil && d.ref.Value != nil {
			if desc := d.ref.Value.Description; desc != nil && *desc != "" {
				resp.Label = *desc
			}
			if ct, mt := pickMediaType(d.ref.Value.Content); mt != nil {
				resp.Headers = []Header{{Key: "Content-Type", Value: ct}}
				resp.Body = sampleBody(ct, mt, gen)
			}
		}
		out = append(out, resp)
	}
	return out
}

// parseStatus accepts "201" and range keys like "2XX".
func parseStatus(key string) (int, bool) {
	if n, err := strconv.Atoi(key); err == nil && n >= 100 && n <= 599 {
		return n, true
	}
	if len(key) == 3 && strings.EqualFold(key[1:], "xx") && key[0] >= '1' && key[0] <= '5' {
		return int(key[0]-'0') * 100, true
	}
	return 0, false
}

func is2xx(code int) bool { return code >= 200 && code < 300 }

// pickMediaType prefers a JSON media type, then the first by name.
func pickMediaType(content openapi3.Content) (string, *openapi3.MediaType) {
	if len(content) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(content))
	for k := range content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if isJSON(k) {
			return k, content[k]
		}
	}
	return keys[0], content[keys[0]]
}

func isJSON(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "json")
}

func sampleBody(contentType string, mt *openapi3.MediaType, gen *fakers.Generator) string {
	if mt == nil {
		return ""
	}
	value, ok := mediaExample(mt)
	if !ok && mt.Schema != nil && mt.Schema.Value != nil {
		value, ok = gen.Sample(mt.Schema.Value, ""), true
	}
	if !ok {
		return ""
	}
	if !isJSON(contentType) {
		if s, isString := value.(string); isString {
			return s
		}
		return fmt.Sprint(value)
	}
	b, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return ""
	}
	return string(b)
}

func mediaExample(mt *openapi3.MediaType) (any, bool) {
	if mt.Example != nil {
		return mt.Example, true
	}
	if len(mt.Examples) == 0 {
		return nil, false
	}
	names := make([]string, 0, len(mt.Examples))
	for name := range mt.Examples {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if ex := mt.Examples[name]; ex != nil && ex.Value != nil && ex.Value.Value != nil {
			return ex.Value.Value, true
		}
	}
	return nil, false
}

// ResponseSchema finds the JSON schema doc declares for route's response
// with the given status. It returns nil when the operation or a JSON schema
// is missing.
func ResponseSchema(doc *openapi3.T, route *Route, status int) *openapi3.Schema {
	if doc == nil || doc.Paths == nil || route == nil {
		return nil
	}
	for path, item := range doc.Paths.Map() {
		if item == nil || EndpointFromPath(path) != route.Endpoint {
			continue
		}
		op := item.GetOperation(strings.ToUpper(route.Method))
		if op == nil || op.Responses == nil {
			return nil
		}
		ref := op.Responses.Status(status)
		if ref == nil {
			ref = op.Responses.Default()
		}
		if ref == nil || ref.Value == nil {
			return nil
		}
		ct, mt := pickMediaType(ref.Value.Content)
		if mt == nil || !isJSON(ct) || mt.Schema == nil {
			return nil
		}
		return mt.Schema.Value
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
