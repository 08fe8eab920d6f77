package fakers

import (
	"math"
	"net/mail"
	"testing"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryBuiltins(t *testing.T) {
	r := NewRegistry()
	names := r.Names()
	for _, want := range []string{"uuid", "email", "name", "firstName", "lastName", "phone",
		"address", "company", "url", "ipv4", "sentence", "word", "date", "dateTime",
		"price", "color", "jobTitle", "boolean"} {
		assert.Contains(t, names, want)
	}
	assert.IsNonDecreasing(t, names)

	for _, name := range names {
		v, err := r.Generate(name)
		require.NoError(t, err, name)
		assert.NotNil(t, v, name)
	}
}

func TestRegistryValues(t *testing.T) {
	r := NewRegistry()

	v, _ := r.Generate("uuid")
	_, err := uuid.Parse(v.(string))
	assert.NoError(t, err)

	v, _ = r.Generate("email")
	_, err = mail.ParseAddress(v.(string))
	assert.NoError(t, err)

	v, _ = r.Generate("date")
	_, err = time.Parse(time.DateOnly, v.(string))
	assert.NoError(t, err)

	v, _ = r.Generate("price")
	assert.IsType(t, float64(0), v)
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register("sku", func() any { return "SKU-1" }))

	fn, ok := r.Lookup("sku")
	require.True(t, ok)
	assert.Equal(t, "SKU-1", fn())

	_, err := r.Generate("missing")
	assert.ErrorIs(t, err, ErrUnknownFaker)

	assert.Error(t, r.Register("", func() any { return nil }))
	assert.Error(t, r.Register("x", nil))
}

func loadSchema(t *testing.T, doc string) *openapi3.Schema {
	t.Helper()
	var s openapi3.Schema
	require.NoError(t, s.UnmarshalJSON([]byte(doc)))
	return &s
}

func TestSamplePriority(t *testing.T) {
	g := NewGenerator(nil)

	tests := []struct {
		name   string
		schema string
		check  func(t *testing.T, v any)
	}{
		{"example wins", `{"type":"string","example":"fixed","enum":["a"]}`, func(t *testing.T, v any) {
			assert.Equal(t, "fixed", v)
		}},
		{"x-faker", `{"type":"string","x-faker":"uuid"}`, func(t *testing.T, v any) {
			_, err := uuid.Parse(v.(string))
			assert.NoError(t, err)
		}},
		{"enum", `{"type":"string","enum":["a","b"]}`, func(t *testing.T, v any) {
			assert.Contains(t, []any{"a", "b"}, v)
		}},
		{"default", `{"type":"integer","default":7}`, func(t *testing.T, v any) {
			assert.EqualValues(t, 7, v)
		}},
		{"integer bounds", `{"type":"integer","minimum":5,"maximum":6}`, func(t *testing.T, v any) {
			assert.Contains(t, []any{int64(5), int64(6)}, v)
		}},
		{"string length", `{"type":"string","minLength":20,"maxLength":25}`, func(t *testing.T, v any) {
			assert.GreaterOrEqual(t, len(v.(string)), 20)
			assert.LessOrEqual(t, len(v.(string)), 25)
		}},
		{"date-time format", `{"type":"string","format":"date-time"}`, func(t *testing.T, v any) {
			_, err := time.Parse(time.RFC3339, v.(string))
			assert.NoError(t, err)
		}},
		{"boolean", `{"type":"boolean"}`, func(t *testing.T, v any) {
			assert.IsType(t, true, v)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, g.Sample(loadSchema(t, tt.schema), ""))
		})
	}
}

func TestSampleNumericBounds(t *testing.T) {
	g := NewGenerator(nil)

	tests := []struct {
		name   string
		schema string
		lo, hi float64
	}{
		{"integer default range", `{"type":"integer"}`, 1, 100},
		{"integer maximum below default floor", `{"type":"integer","maximum":-10}`, -110, -10},
		{"integer maximum only", `{"type":"integer","maximum":3}`, 1, 3},
		{"integer minimum only", `{"type":"integer","minimum":1000}`, 1000, 1100},
		{"integer exclusive bounds", `{"type":"integer","minimum":1,"maximum":3,"exclusiveMinimum":true,"exclusiveMaximum":true}`, 2, 2},
		{"integer fractional bounds", `{"type":"integer","minimum":1.5,"maximum":2.5}`, 2, 2},
		{"integer wide range", `{"type":"integer","minimum":-5e18,"maximum":5e18}`, -5e18, 5e18},
		{"integer beyond int64", `{"type":"integer","minimum":-1e30,"maximum":1e30}`, -1e30, 1e30},
		{"integer huge minimum only", `{"type":"integer","minimum":1e30}`, math.MaxInt64, math.MaxInt64},
		{"number maximum below zero", `{"type":"number","maximum":-10}`, -110, -10},
		{"number maximum only", `{"type":"number","maximum":0.5}`, 0, 0.5},
		{"number wide range", `{"type":"number","minimum":-1e308,"maximum":1e308}`, -1e308, 1e308},
		{"number tight exclusive range", `{"type":"number","minimum":0.001,"maximum":0.002,"exclusiveMinimum":true,"exclusiveMaximum":true}`, 0.001, 0.002},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := loadSchema(t, tt.schema)
			for range 50 {
				var f float64
				switch v := g.Sample(s, "").(type) {
				case int64:
					f = float64(v)
				case float64:
					f = v
				default:
					t.Fatalf("unexpected sample type %T", v)
				}
				assert.GreaterOrEqual(t, f, tt.lo)
				assert.LessOrEqual(t, f, tt.hi)
				if s.ExclusiveMin {
					assert.Greater(t, f, *s.Min)
				}
				if s.ExclusiveMax {
					assert.Less(t, f, *s.Max)
				}
			}
		})
	}
}

func TestIntBetween(t *testing.T) {
	assert.Equal(t, int64(4), IntBetween(4, 4))
	for range 100 {
		v := IntBetween(10, -10)
		assert.GreaterOrEqual(t, v, int64(-10))
		assert.LessOrEqual(t, v, int64(10))
	}
	assert.NotPanics(t, func() { IntBetween(math.MinInt64, math.MaxInt64) })
	assert.NotPanics(t, func() { IntBetween(-5e18, 5e18) })
}

func TestSampleObjectUsesFieldNames(t *testing.T) {
	g := NewGenerator(nil)
	s := loadSchema(t, `{
		"type": "object",
		"properties": {
			"id": {"type": "string"},
			"email": {"type": "string"},
			"createdAt": {"type": "string"},
			"tags": {"type": "array", "items": {"type": "string"}, "maxItems": 1},
			"owner": {"allOf": [
				{"type": "object", "properties": {"name": {"type": "string"}}},
				{"type": "object", "properties": {"age": {"type": "integer"}}}
			]}
		}
	}`)

	obj, ok := g.Sample(s, "").(map[string]any)
	require.True(t, ok)

	_, err := uuid.Parse(obj["id"].(string))
	assert.NoError(t, err)
	assert.Contains(t, obj["email"], "@")
	_, err = time.Parse(time.RFC3339, obj["createdAt"].(string))
	assert.NoError(t, err)
	assert.Len(t, obj["tags"], 1)

	owner := obj["owner"].(map[string]any)
	assert.Contains(t, owner, "name")
	assert.Contains(t, owner, "age")
}

func TestSampleRecursionIsBounded(t *testing.T) {
	node := &openapi3.Schema{Type: &openapi3.Types{openapi3.TypeObject}}
	node.Properties = openapi3.Schemas{
		"child": &openapi3.SchemaRef{Value: node},
	}
	g := NewGenerator(nil)
	g.MaxDepth = 3

	v := g.Sample(node, "")
	depth := 0
	for m, ok := v.(map[string]any); ok; m, ok = m["child"].(map[string]any) {
		depth++
	}
	assert.LessOrEqual(t, depth, 4)
}

func TestSampleNil(t *testing.T) {
	assert.Nil(t, NewGenerator(nil).Sample(nil, "x"))
}
