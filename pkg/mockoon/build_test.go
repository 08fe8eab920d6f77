package mockoon

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/sandbox/pkg/specs"
)

func loadPetstore(t *testing.T) *openapi3.T {
	t.Helper()
	data, err := os.ReadFile("testdata/petstore.yaml")
	require.NoError(t, err)
	p, err := specs.Parse(context.Background(), data)
	require.NoError(t, err)
	return p.Doc
}

func TestEndpointFromPath(t *testing.T) {
	assert.Equal(t, "pets/:petId", EndpointFromPath("/pets/{petId}"))
	assert.Equal(t, "a/:x/b/:y", EndpointFromPath("/a/{x}/b/{y}"))
	assert.Equal(t, "", EndpointFromPath("/"))
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		key  string
		want int
		ok   bool
	}{
		{"200", 200, true},
		{"404", 404, true},
		{"2XX", 200, true},
		{"5xx", 500, true},
		{"default", 0, false},
		{"99", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseStatus(tt.key)
		assert.Equal(t, tt.ok, ok, tt.key)
		assert.Equal(t, tt.want, got, tt.key)
	}
}

func TestBuild(t *testing.T) {
	doc := loadPetstore(t)
	env := Build(doc, BuildOptions{Port: 3005})

	assert.Equal(t, "Petstore", env.Name)
	assert.Equal(t, 3005, env.Port)
	assert.Equal(t, "v1", env.EndpointPrefix)
	assert.Equal(t, LastMigration, env.LastMigration)
	require.Len(t, env.Routes, 4)
	assert.Len(t, env.RootChildren, 4)

	var got []string
	for _, r := range env.Routes {
		got = append(got, r.Method+" "+r.Endpoint)
	}
	assert.Equal(t, []string{"get pets", "post pets", "get pets/:petId", "delete pets/:petId"}, got)

	t.Run("schema sample body", func(t *testing.T) {
		list := env.Routes[0]
		require.Len(t, list.Responses, 1)
		assert.True(t, list.Responses[0].Default)
		var pets []map[string]any
		require.NoError(t, json.Unmarshal([]byte(list.Responses[0].Body), &pets))
		require.NotEmpty(t, pets)
		assert.Contains(t, pets[0], "id")
		assert.Contains(t, pets[0], "name")
	})

	t.Run("2xx default first", func(t *testing.T) {
		create := env.Routes[1]
		require.Len(t, create.Responses, 2)
		assert.Equal(t, 201, create.Responses[0].StatusCode)
		assert.True(t, create.Responses[0].Default)
		assert.Equal(t, 400, create.Responses[1].StatusCode)
		assert.False(t, create.Responses[1].Default)
		assert.Equal(t, []Header{{Key: "Content-Type", Value: "application/json"}}, create.Responses[0].Headers)
	})

	t.Run("example body", func(t *testing.T) {
		get := env.Routes[2]
		var pet map[string]any
		require.NoError(t, json.Unmarshal([]byte(get.Responses[0].Body), &pet))
		assert.Equal(t, "Rex", pet["name"])
		assert.Equal(t, "A pet", get.Responses[0].Label)
	})

	t.Run("no content", func(t *testing.T) {
		del := env.Routes[3]
		require.Len(t, del.Responses, 1)
		assert.Equal(t, 204, del.Responses[0].StatusCode)
		assert.Empty(t, del.Responses[0].Body)
		assert.NotNil(t, del.Responses[0].Rules)
	})
}

func TestBuildNameOverride(t *testing.T) {
	env := Build(loadPetstore(t), BuildOptions{Name: "Custom"})
	assert.Equal(t, "Custom", env.Name)
}

func TestResponseSchema(t *testing.T) {
	doc := loadPetstore(t)
	env := Build(doc, BuildOptions{})

	s := ResponseSchema(doc, &env.Routes[2], 200)
	require.NotNil(t, s)
	assert.Contains(t, s.Properties, "name")

	assert.Nil(t, ResponseSchema(doc, &env.Routes[3], 204))
	assert.Nil(t, ResponseSchema(doc, &Route{Method: "get", Endpoint: "missing"}, 200))
}

func TestEnvironmentExportShape(t *testing.T) {
	env := Build(loadPetstore(t), BuildOptions{Port: 3001})
	data, err := json.Marshal(env)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, key := range []string{"uuid", "lastMigration", "routes", "rootChildren", "folders", "proxyReqHeaders", "data", "tlsOptions"} {
		assert.Contains(t, raw, key)
	}
	assert.Equal(t, []any{}, raw["folders"])
}

func TestClone(t *testing.T) {
	env := Build(loadPetstore(t), BuildOptions{})
	c := env.Clone()
	c.Routes[0].Responses[0].Body = "changed"
	c.Routes[0].Responses[0].Headers[0].Value = "text/plain"
	assert.NotEqual(t, "changed", env.Routes[0].Responses[0].Body)
	assert.Equal(t, "application/json", env.Routes[0].Responses[0].Headers[0].Value)
}
