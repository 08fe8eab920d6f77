// Package fakers provides the custom faker registry and a sample value
// generator for OpenAPI schemas.
//
// A faker is a named function returning a fake value ("email", "uuid",
// "price", ...). Schemas select one with the x-faker extension; otherwise
// the generator picks one from the schema format or the property name.
package fakers

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownFaker is returned by Generate for names that are not registered.
var ErrUnknownFaker = errors.New("unknown faker")

// Func produces one fake value.
type Func func() any

// Registry is a thread-safe lookup table of named fakers.
type Registry struct {
	mu     sync.RWMutex
	fakers map[string]Func
}

// NewRegistry returns a registry holding the built-in fakers.
func NewRegistry() *Registry {
	r := &Registry{fakers: make(map[string]Func, len(builtins))}
	for name, fn := range builtins {
		r.fakers[name] = fn
	}
	return r
}

// Default is the process-wide registry.
var Default = NewRegistry()

// Register adds or replaces a faker.
func (r *Registry) Register(name string, fn Func) error {
	if name == "" || fn == nil {
		return fmt.Errorf("faker %q: name and function are required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fakers[name] = fn
	return nil
}

// Lookup returns the faker registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fakers[name]
	return fn, ok
}

// Generate runs the faker registered under name.
func (r *Registry) Generate(name string) (any, error) {
	fn, ok := r.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFaker, name)
	}
	return fn(), nil
}

// Names returns the registered faker names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fakers))
	for name := range r.fakers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	firstNames = []string{"John", "Jane", "Alex", "Maria", "Sam", "Taylor", "Jordan", "Morgan"}
	lastNames  = []string{"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis"}
	streets    = []string{"Main St", "Oak Ave", "Park Blvd", "Cedar Ln", "Elm St"}
	cities     = []string{"New York", "Los Angeles", "Chicago", "Houston", "Phoenix", "Seattle", "Austin"}
	companies  = []string{"Acme", "Globex", "Initech", "Umbrella", "Stark", "Wayne", "Hooli"}
	suffixes   = []string{"Corp", "Inc", "LLC", "Ltd", "Group"}
	words      = []string{"alpha", "beta", "gamma", "delta", "epsilon", "zeta", "theta", "omega"}
	lorem      = []string{"the", "quick", "brown", "fox", "jumps", "over", "lazy", "dog",
		"a", "modern", "approach", "to", "building", "scalable", "applications"}
	colors    = []string{"red", "blue", "green", "yellow", "purple", "orange", "teal"}
	seniority = []string{"Senior", "Lead", "Junior", "Principal", "Staff"}
	roles     = []string{"Engineer", "Designer", "Manager", "Analyst", "Developer"}
	domains   = []string{"example.com", "test.io", "demo.org"}
)

func pick(list []string) string { return list[rand.IntN(len(list))] }

func digits(n int) string {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte('0' + rand.IntN(10))
	}
	return string(buf)
}

func sentence() string {
	n := 5 + rand.IntN(6)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = pick(lorem)
	}
	s := strings.Join(parts, " ")
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

func pastTime() time.Time {
	return time.Now().UTC().Add(-time.Duration(rand.IntN(365*24)) * time.Hour).Truncate(time.Second)
}

var builtins = map[string]Func{
	"uuid":      func() any { return uuid.NewString() },
	"email":     func() any { return strings.ToLower(pick(firstNames)+"."+pick(lastNames)) + "@" + pick(domains) },
	"name":      func() any { return pick(firstNames) + " " + pick(lastNames) },
	"firstName": func() any { return pick(firstNames) },
	"lastName":  func() any { return pick(lastNames) },
	"phone":     func() any { return "+1-555-" + digits(3) + "-" + digits(4) },
	"address":   func() any { return digits(4) + " " + pick(streets) + ", " + pick(cities) },
	"company":   func() any { return pick(companies) + " " + pick(suffixes) },
	"url":       func() any { return "https://" + pick(domains) + "/" + pick(words) + "-" + pick(words) },
	"ipv4": func() any {
		return strconv.Itoa(1+rand.IntN(254)) + "." + strconv.Itoa(rand.IntN(256)) + "." +
			strconv.Itoa(rand.IntN(256)) + "." + strconv.Itoa(1+rand.IntN(254))
	},
	"sentence": func() any { return sentence() },
	"word":     func() any { return pick(words) },
	"date":     func() any { return pastTime().Format(time.DateOnly) },
	"dateTime": func() any { return pastTime().Format(time.RFC3339) },
	"price":    func() any { return float64(100+rand.IntN(99900)) / 100 },
	"color":    func() any { return pick(colors) },
	"jobTitle": func() any { return pick(seniority) + " " + pick(roles) },
	"boolean":  func() any { return rand.IntN(2) == 0 },
}
