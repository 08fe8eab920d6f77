// Package specs stores uploaded OpenAPI documents.
//
// A Spec keeps the document exactly as uploaded together with metadata
// extracted when it is parsed: title, version and the list of operations.
// Swagger 2.0 documents are accepted and converted to OpenAPI 3 when parsed.
package specs

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors.
var (
	ErrNotFound    = errors.New("specification not found")
	ErrInvalidSpec = errors.New("invalid specification")
	ErrEmpty       = errors.New("specification content is empty")
)

// Format is the serialization of the uploaded document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// Spec is a stored OpenAPI document with metadata.
type Spec struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Description    string     `json:"description,omitempty"`
	APIVersion     string     `json:"apiVersion,omitempty"`
	OpenAPIVersion string     `json:"openapiVersion"`
	Format         Format     `json:"format"`
	Content        string     `json:"content,omitempty"`
	Endpoints      []Endpoint `json:"endpoints"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
}

// Summary returns a copy without Content, used for list responses.
func (s *Spec) Summary() *Spec {
	c := *s
	c.Content = ""
	return &c
}

// Endpoint is one operation declared by a document.
type Endpoint struct {
	Method      string   `json:"method"`
	Path        string   `json:"path"`
	OperationID string   `json:"operationId,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// ImportRequest creates a Spec. Name defaults to the document title.
type ImportRequest struct {
	Name        string `json:"name" validate:"omitempty,max=200"`
	Description string `json:"description" validate:"omitempty,max=2000"`
	Content     string `json:"content" validate:"required"`
}

// UpdateRequest changes a Spec. Nil fields are left as they are; new content
// is parsed again.
type UpdateRequest struct {
	Name        *string `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	Description *string `json:"description,omitempty" validate:"omitempty,max=2000"`
	Content     *string `json:"content,omitempty" validate:"omitempty,min=1"`
}

// ParseError describes why a document could not be used.
type ParseError struct {
	// Stage is "decode", "convert" or "validate".
	Stage string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrInvalidSpec) true for every ParseError.
func (e *ParseError) Is(target error) bool { return target == ErrInvalidSpec }
