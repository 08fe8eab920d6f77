package ai

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"golang.org/x/sync/errgroup"

	"github.com/getmockd/sandbox/pkg/mockoon"
)

// environmentConcurrency bounds parallel provider calls per environment.
const environmentConcurrency = 4

// EnvironmentResult counts the responses touched by EnhanceEnvironment.
type EnvironmentResult struct {
	Updated int      `json:"updated"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// EnhanceEnvironment replaces the body of every response whose operation in
// doc declares a JSON schema. env is modified in place; responses keep their
// body when the provider fails for them.
func (e *Enhancer) EnhanceEnvironment(ctx context.Context, doc *openapi3.T, env *mockoon.Environment, hint string) (*EnvironmentResult, error) {
	if !e.Enabled() {
		return nil, ErrDisabled
	}

	var (
		mu  sync.Mutex
		res = &EnvironmentResult{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(environmentConcurrency)

	for i := range env.Routes {
		route := &env.Routes[i]
		for j := range route.Responses {
			resp := &route.Responses[j]
			schema := mockoon.ResponseSchema(doc, route, resp.StatusCode)
			if schema == nil {
				res.Skipped++
				continue
			}
			raw, err := SchemaJSON(schema)
			if err != nil {
				res.Skipped++
				continue
			}

			req := EnhanceRequest{Schema: raw, Count: 1, Hint: responseHint(hint, route, resp)}
			g.Go(func() error {
				out, err := e.Enhance(gctx, req)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					res.Failed++
					res.Errors = append(res.Errors, strings.ToUpper(route.Method)+" /"+route.Endpoint+": "+err.Error())
					return nil
				}
				resp.Body = indentJSON(out.Data)
				res.Updated++
				return nil
			})
		}
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func responseHint(hint string, route *mockoon.Route, resp *mockoon.Response) string {
	parts := []string{}
	if hint != "" {
		parts = append(parts, hint)
	}
	parts = append(parts, "Response "+resp.Label+" for "+strings.ToUpper(route.Method)+" /"+route.Endpoint)
	if route.Documentation != "" {
		parts = append(parts, "Operation: "+route.Documentation)
	}
	return strings.Join(parts, ". ")
}

func indentJSON(raw json.RawMessage) string {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(b)
}
