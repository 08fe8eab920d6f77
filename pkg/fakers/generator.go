package fakers

import (
	"math"
	"math/rand/v2"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// ExtensionFaker is the schema extension naming a faker, e.g.
// `x-faker: email`.
const ExtensionFaker = "x-faker"

// defaultSpan is the width of generated numeric ranges that declare at
// most one bound.
const defaultSpan = 100

// DefaultMaxDepth bounds recursion through nested and self-referencing schemas.
const DefaultMaxDepth = 8

// Generator produces sample values for OpenAPI schemas.
type Generator struct {
	Registry *Registry
	MaxDepth int
	// ArrayItems is the number of items generated for arrays without
	// minItems; values above maxItems are clamped.
	ArrayItems int
}

// NewGenerator returns a generator backed by r, or Default when r is nil.
func NewGenerator(r *Registry) *Generator {
	if r == nil {
		r = Default
	}
	return &Generator{Registry: r, MaxDepth: DefaultMaxDepth, ArrayItems: 2}
}

// Sample builds a value for schema. fieldName, when set, drives name-based
// heuristics for strings.
//
// Priority: example, x-faker, enum, default, allOf/oneOf/anyOf, then the
// schema type.
func (g *Generator) Sample(schema *openapi3.Schema, fieldName string) any {
	return g.sample(schema, fieldName, 0)
}

func (g *Generator) sample(s *openapi3.Schema, field string, depth int) any {
	if s == nil || depth > g.MaxDepth {
		return nil
	}
	if s.Example != nil {
		return s.Example
	}
	if name, ok := s.Extensions[ExtensionFaker].(string); ok {
		if v, err := g.Registry.Generate(name); err == nil {
			return v
		}
	}
	if len(s.Enum) > 0 {
		return s.Enum[rand.IntN(len(s.Enum))]
	}
	if s.Default != nil {
		return s.Default
	}

	if len(s.AllOf) > 0 {
		return g.allOf(s, depth)
	}
	if len(s.OneOf) > 0 && s.OneOf[0] != nil {
		return g.sample(s.OneOf[0].Value, field, depth+1)
	}
	if len(s.AnyOf) > 0 && s.AnyOf[0] != nil {
		return g.sample(s.AnyOf[0].Value, field, depth+1)
	}

	switch {
	case s.Type.Is(openapi3.TypeObject):
		return g.object(s, depth)
	case s.Type.Is(openapi3.TypeArray):
		return g.array(s, field, depth)
	case s.Type.Is(openapi3.TypeString):
		return g.str(s, field)
	case s.Type.Is(openapi3.TypeInteger):
		return g.integer(s)
	case s.Type.Is(openapi3.TypeNumber):
		return g.number(s, field)
	case s.Type.Is(openapi3.TypeBoolean):
		return rand.IntN(2) == 0
	case len(s.Properties) > 0:
		return g.object(s, depth)
	case s.Items != nil:
		return g.array(s, field, depth)
	}
	return nil
}

func (g *Generator) object(s *openapi3.Schema, depth int) any {
	obj := make(map[string]any, len(s.Properties))
	for name, ref := range s.Properties {
		if ref == nil || ref.Value == nil {
			continue
		}
		if v := g.sample(ref.Value, name, depth+1); v != nil || ref.Value.Nullable {
			obj[name] = v
		}
	}
	return obj
}

func (g *Generator) allOf(s *openapi3.Schema, depth int) any {
	merged := make(map[string]any)
	var last any
	for _, ref := range s.AllOf {
		if ref == nil {
			continue
		}
		v := g.sample(ref.Value, "", depth+1)
		if m, ok := v.(map[string]any); ok {
			for k, val := range m {
				merged[k] = val
			}
			continue
		}
		last = v
	}
	for name, ref := range s.Properties {
		if ref != nil {
			merged[name] = g.sample(ref.Value, name, depth+1)
		}
	}
	if len(merged) == 0 {
		return last
	}
	return merged
}

func (g *Generator) array(s *openapi3.Schema, field string, depth int) any {
	n := g.ArrayItems
	if int(s.MinItems) > n {
		n = int(s.MinItems)
	}
	if s.MaxItems != nil && int(*s.MaxItems) < n {
		n = int(*s.MaxItems)
	}
	items := make([]any, 0, n)
	if s.Items == nil || s.Items.Value == nil {
		for range n {
			items = append(items, g.fake("word"))
		}
		return items
	}
	for range n {
		items = append(items, g.sample(s.Items.Value, singular(field), depth+1))
	}
	return items
}

func (g *Generator) str(s *openapi3.Schema, field string) any {
	var v string
	if name := formatFaker(s.Format); name != "" {
		v, _ = g.fake(name).(string)
	}
	if v == "" && field != "" {
		if name := fieldFaker(field); name != "" {
			if fv, ok := g.fake(name).(string); ok {
				v = fv
			}
		}
	}
	if v == "" {
		switch s.Format {
		case "byte":
			v = "c2FuZGJveA=="
		case "password":
			v = "P@ss" + g.fake("word").(string) + "42!"
		default:
			v = g.fake("word").(string)
		}
	}
	if minLen := int(s.MinLength); len(v) < minLen {
		v += strings.Repeat("x", minLen-len(v))
	}
	if s.MaxLength != nil && len(v) > int(*s.MaxLength) {
		v = v[:*s.MaxLength]
	}
	return v
}

func (g *Generator) integer(s *openapi3.Schema) any {
	lo, hi := intBounds(s)
	if lo >= hi {
		return lo
	}
	return IntBetween(lo, hi)
}

// intBounds returns the inclusive integer range allowed by s. A missing
// bound is placed defaultSpan away from the other one.
func intBounds(s *openapi3.Schema) (lo, hi int64) {
	if s.Min != nil {
		if s.ExclusiveMin {
			lo = saturatingAdd(clampInt64(math.Floor(*s.Min)), 1)
		} else {
			lo = clampInt64(math.Ceil(*s.Min))
		}
	}
	if s.Max != nil {
		if s.ExclusiveMax {
			hi = saturatingAdd(clampInt64(math.Ceil(*s.Max)), -1)
		} else {
			hi = clampInt64(math.Floor(*s.Max))
		}
	}
	switch {
	case s.Min == nil && s.Max == nil:
		return 1, defaultSpan
	case s.Max == nil:
		return lo, saturatingAdd(lo, defaultSpan)
	case s.Min == nil:
		if hi >= 1 {
			return 1, hi
		}
		return saturatingAdd(hi, -defaultSpan), hi
	}
	return lo, hi
}

func (g *Generator) number(s *openapi3.Schema, field string) any {
	if s.Min == nil && s.Max == nil {
		if fieldFaker(field) == "price" {
			return g.fake("price")
		}
	}
	lo, hi := 0.0, float64(defaultSpan)
	switch {
	case s.Min != nil && s.Max != nil:
		lo, hi = *s.Min, *s.Max
	case s.Min != nil:
		lo, hi = *s.Min, *s.Min+defaultSpan
	case s.Max != nil:
		lo, hi = *s.Max-defaultSpan, *s.Max
		if hi > 0 {
			lo = 0
		}
	}
	if lo >= hi {
		return lo
	}
	inside := func(v float64) bool {
		return (v > lo || (v == lo && !s.ExclusiveMin)) &&
			(v < hi || (v == hi && !s.ExclusiveMax))
	}
	r := rand.Float64()
	v := lo*(1-r) + hi*r
	if !inside(v) {
		v = lo/2 + hi/2
	}
	if rounded := math.Round(v*100) / 100; !math.IsInf(rounded, 0) && inside(rounded) {
		return rounded
	}
	return v
}

// IntBetween returns a uniformly chosen integer in [lo, hi]. The bounds may
// be given in either order and may span the whole int64 range.
func IntBetween(lo, hi int64) int64 {
	if hi < lo {
		lo, hi = hi, lo
	}
	span := uint64(hi) - uint64(lo)
	if span == math.MaxUint64 {
		return int64(rand.Uint64())
	}
	return lo + int64(rand.Uint64N(span+1))
}

func saturatingAdd(a, d int64) int64 {
	switch {
	case d > 0 && a > math.MaxInt64-d:
		return math.MaxInt64
	case d < 0 && a < math.MinInt64-d:
		return math.MinInt64
	}
	return a + d
}

func clampInt64(f float64) int64 {
	switch {
	case math.IsNaN(f):
		return 0
	case f >= math.MaxInt64:
		return math.MaxInt64
	case f <= math.MinInt64:
		return math.MinInt64
	}
	return int64(f)
}

func (g *Generator) fake(name string) any {
	v, err := g.Registry.Generate(name)
	if err != nil {
		return ""
	}
	return v
}

// formatFaker maps OpenAPI string formats to faker names.
func formatFaker(format string) string {
	switch format {
	case "uuid":
		return "uuid"
	case "email":
		return "email"
	case "uri", "url":
		return "url"
	case "ipv4":
		return "ipv4"
	case "date":
		return "date"
	case "date-time":
		return "dateTime"
	case "phone":
		return "phone"
	}
	return ""
}

// fieldFaker maps common property names to faker names.
func fieldFaker(field string) string {
	lower := strings.ToLower(strings.ReplaceAll(field, "-", "_"))
	switch {
	case lower == "":
		return ""
	case lower == "id" || lower == "uuid" || strings.HasSuffix(lower, "_id") || strings.HasSuffix(field, "Id"):
		return "uuid"
	case strings.Contains(lower, "email"):
		return "email"
	case strings.Contains(lower, "phone") || lower == "mobile" || lower == "tel":
		return "phone"
	case lower == "first_name" || lower == "firstname" || lower == "given_name":
		return "firstName"
	case lower == "last_name" || lower == "lastname" || lower == "surname" || lower == "family_name":
		return "lastName"
	case lower == "name" || lower == "full_name" || lower == "fullname" || lower == "username":
		return "name"
	case lower == "address" || lower == "street" || lower == "street_address":
		return "address"
	case lower == "company" || lower == "organization" || lower == "org":
		return "company"
	case lower == "url" || lower == "uri" || lower == "href" || lower == "link" || lower == "website":
		return "url"
	case lower == "ip" || lower == "ip_address" || lower == "ipaddress":
		return "ipv4"
	case lower == "price" || lower == "amount" || lower == "cost" || lower == "total":
		return "price"
	case lower == "color" || lower == "colour":
		return "color"
	case lower == "title" || lower == "job_title" || lower == "jobtitle":
		return "jobTitle"
	case lower == "description" || lower == "bio" || lower == "summary" || lower == "about":
		return "sentence"
	case strings.HasSuffix(lower, "_at") || strings.HasSuffix(field, "At") || lower == "timestamp":
		return "dateTime"
	case strings.HasSuffix(lower, "date") || lower == "birthday" || lower == "dob":
		return "date"
	}
	return ""
}

func singular(field string) string {
	if strings.HasSuffix(field, "ies") {
		return strings.TrimSuffix(field, "ies") + "y"
	}
	if strings.HasSuffix(field, "s") && !strings.HasSuffix(field, "ss") {
		return strings.TrimSuffix(field, "s")
	}
	return field
}
