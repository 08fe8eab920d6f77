package specs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/getmockd/sandbox/internal/id"
	"github.com/getmockd/sandbox/pkg/events"
	"github.com/getmockd/sandbox/pkg/logging"
	"github.com/getmockd/sandbox/pkg/metrics"
	"github.com/getmockd/sandbox/pkg/store"
)

// Collection is the store collection holding specifications.
const Collection = "specs"

// Service manages stored specifications.
type Service struct {
	specs   *store.Collection[Spec]
	pub     events.Publisher
	metrics *metrics.Set
	log     *slog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithPublisher sets where spec.* events are sent.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.pub = p
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithMetrics sets the metrics updated on every mutation.
func WithMetrics(m *metrics.Set) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService returns a Service persisting to kv.
func NewService(kv store.KV, opts ...Option) *Service {
	s := &Service{
		specs: store.NewCollection[Spec](kv, Collection),
		pub:   events.NopPublisher{},
		log:   logging.Nop(),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Import parses req.Content and stores it as a new Spec.
func (s *Service) Import(ctx context.Context, req ImportRequest) (*Spec, error) {
	parsed, err := Parse(ctx, []byte(req.Content))
	if err != nil {
		return nil, err
	}

	now := s.now()
	spec := &Spec{
		ID:        id.Prefixed(id.PrefixSpec),
		Content:   req.Content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	spec.apply(parsed)
	if name := strings.TrimSpace(req.Name); name != "" {
		spec.Name = name
	}
	if req.Description != "" {
		spec.Description = req.Description
	}

	if err := s.specs.Put(ctx, spec.ID, spec); err != nil {
		return nil, fmt.Errorf("store spec: %w", err)
	}
	s.log.Info("specification imported", "id", spec.ID, "name", spec.Name, "endpoints", len(spec.Endpoints))
	s.pub.Publish(events.TypeSpecCreated, spec.Summary())
	s.refreshGauge(ctx)
	return spec, nil
}

// apply copies metadata from a parsed document.
func (s *Spec) apply(p *Parsed) {
	s.OpenAPIVersion = p.OpenAPIVersion
	s.Format = p.Format
	s.Endpoints = Endpoints(p.Doc)
	s.Name, s.Description, s.APIVersion = "", "", ""
	if info := p.Doc.Info; info != nil {
		s.Name = strings.TrimSpace(info.Title)
		s.Description = info.Description
		s.APIVersion = info.Version
	}
	if s.Name == "" {
		s.Name = "Untitled API"
	}
}

// List returns every Spec, newest first.
func (s *Service) List(ctx context.Context) ([]*Spec, error) {
	all, err := s.specs.List(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})
	return all, nil
}

// Get returns the Spec with the given ID.
func (s *Service) Get(ctx context.Context, specID string) (*Spec, error) {
	spec, err := s.specs.Get(ctx, specID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	return spec, err
}

// Update applies req to the Spec. Explicit name and description win over
// values taken from new content.
func (s *Service) Update(ctx context.Context, specID string, req UpdateRequest) (*Spec, error) {
	spec, err := s.Get(ctx, specID)
	if err != nil {
		return nil, err
	}

	if req.Content != nil {
		parsed, err := Parse(ctx, []byte(*req.Content))
		if err != nil {
			return nil, err
		}
		name := spec.Name
		spec.apply(parsed)
		spec.Content = *req.Content
		if req.Name == nil && name != "" {
			spec.Name = name
		}
	}
	if req.Name != nil {
		spec.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		spec.Description = *req.Description
	}
	spec.UpdatedAt = s.now()

	if err := s.specs.Put(ctx, spec.ID, spec); err != nil {
		return nil, fmt.Errorf("store spec: %w", err)
	}
	s.log.Info("specification updated", "id", spec.ID)
	s.pub.Publish(events.TypeSpecUpdated, spec.Summary())
	return spec, nil
}

// Delete removes the Spec.
func (s *Service) Delete(ctx context.Context, specID string) error {
	err := s.specs.Delete(ctx, specID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	s.log.Info("specification deleted", "id", specID)
	s.pub.Publish(events.TypeSpecDeleted, map[string]string{"id": specID})
	s.refreshGauge(ctx)
	return nil
}

// Document parses the stored content of the Spec.
func (s *Service) Document(ctx context.Context, specID string) (*openapi3.T, error) {
	spec, err := s.Get(ctx, specID)
	if err != nil {
		return nil, err
	}
	parsed, err := Parse(ctx, []byte(spec.Content))
	if err != nil {
		return nil, err
	}
	return parsed.Doc, nil
}

// Count returns the number of stored specs.
func (s *Service) Count(ctx context.Context) (int, error) {
	all, err := s.specs.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

func (s *Service) refreshGauge(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	if n, err := s.Count(ctx); err == nil {
		s.metrics.SetSpecs(n)
	}
}
