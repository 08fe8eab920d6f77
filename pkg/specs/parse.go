package specs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi2"
	"github.com/getkin/kin-openapi/openapi2conv"
	"github.com/getkin/kin-openapi/openapi3"
	"gopkg.in/yaml.v3"
)

// Parsed is the result of parsing a document.
type Parsed struct {
	Doc *openapi3.T
	// OpenAPIVersion is the version declared by the uploaded document, e.g.
	// "2.0" for Swagger documents converted to OpenAPI 3.
	OpenAPIVersion string
	Format         Format
}

type versionHeader struct {
	Swagger string `yaml:"swagger" json:"swagger"`
	OpenAPI string `yaml:"openapi" json:"openapi"`
}

func (p *versionHeader) decode(content []byte, format Format) error {
	if format == FormatJSON {
		return json.Unmarshal(content, p)
	}
	return yaml.Unmarshal(content, p)
}

// Parse decodes and validates an OpenAPI 3 or Swagger 2 document in JSON or
// YAML. Errors are *ParseError.
func Parse(ctx context.Context, content []byte) (*Parsed, error) {
	content = bytes.TrimSpace(content)
	if len(content) == 0 {
		return nil, &ParseError{Stage: "decode", Err: ErrEmpty}
	}

	format := FormatYAML
	if content[0] == '{' {
		format = FormatJSON
	}

	var hdr versionHeader
	if err := hdr.decode(content, format); err != nil {
		return nil, &ParseError{Stage: "decode", Err: err}
	}

	var (
		doc     *openapi3.T
		version string
		err     error
	)
	switch {
	case hdr.Swagger != "":
		version = hdr.Swagger
		doc, err = parseSwagger(content, format, version)
	case hdr.OpenAPI != "":
		version = hdr.OpenAPI
		if !strings.HasPrefix(version, "3.") {
			return nil, &ParseError{Stage: "decode", Err: fmt.Errorf("unsupported openapi version %q", version)}
		}
		loader := openapi3.NewLoader()
		loader.Context = ctx
		doc, err = loader.LoadFromData(content)
		if err != nil {
			err = &ParseError{Stage: "decode", Err: err}
		}
	default:
		return nil, &ParseError{Stage: "decode", Err: fmt.Errorf("document has neither an openapi nor a swagger version field")}
	}
	if err != nil {
		return nil, err
	}

	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, &ParseError{Stage: "validate", Err: err}
	}
	return &Parsed{Doc: doc, OpenAPIVersion: version, Format: format}, nil
}

func parseSwagger(content []byte, format Format, version string) (*openapi3.T, error) {
	data := content
	if format == FormatYAML {
		var raw map[string]any
		if err := yaml.Unmarshal(content, &raw); err != nil {
			return nil, &ParseError{Stage: "decode", Err: err}
		}
		// An unquoted "swagger: 2.0" decodes as a number.
		raw["swagger"] = version
		var err error
		if data, err = json.Marshal(normalizeYAML(raw)); err != nil {
			return nil, &ParseError{Stage: "decode", Err: err}
		}
	}

	var doc2 openapi2.T
	if err := json.Unmarshal(data, &doc2); err != nil {
		return nil, &ParseError{Stage: "decode", Err: err}
	}
	doc3, err := openapi2conv.ToV3(&doc2)
	if err != nil {
		return nil, &ParseError{Stage: "convert", Err: err}
	}
	// Resolve the converted document's references the same way the
	// OpenAPI 3 path does.
	if err := openapi3.NewLoader().ResolveRefsIn(doc3, nil); err != nil {
		return nil, &ParseError{Stage: "convert", Err: err}
	}
	return doc3, nil
}

// normalizeYAML turns map[any]any nodes (produced for integer keys such as
// response codes) into map[string]any so the tree can be encoded as JSON.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	}
	return v
}

var methodOrder = map[string]int{
	http.MethodGet: 0, http.MethodPost: 1, http.MethodPut: 2, http.MethodPatch: 3,
	http.MethodDelete: 4, http.MethodHead: 5, http.MethodOptions: 6, http.MethodTrace: 7,
}

// Endpoints lists the operations of doc sorted by path then method.
func Endpoints(doc *openapi3.T) []Endpoint {
	if doc == nil || doc.Paths == nil {
		return []Endpoint{}
	}
	out := []Endpoint{}
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			out = append(out, Endpoint{
				Method:      strings.ToUpper(method),
				Path:        path,
				OperationID: op.OperationID,
				Summary:     op.Summary,
				Tags:        op.Tags,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Path != out[j].Path {
			return out[i].Path < out[j].Path
		}
		return methodOrder[out[i].Method] < methodOrder[out[j].Method]
	})
	return out
}

// BasePath returns the path of the first server URL, without a trailing
// slash. Server variables are replaced by their defaults.
func BasePath(doc *openapi3.T) string {
	if doc == nil || len(doc.Servers) == 0 || doc.Servers[0] == nil {
		return ""
	}
	srv := doc.Servers[0]
	raw := srv.URL
	for name, v := range srv.Variables {
		if v != nil {
			raw = strings.ReplaceAll(raw, "{"+name+"}", v.Default)
		}
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimRight(u.Path, "/")
}
