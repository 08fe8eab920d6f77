package logging

import (
	"context"
	"errors"
	"log/slog"
)

// tee feeds each record to the primary output and to the in-memory ring.
type tee struct {
	out, ring slog.Handler
}

func (t tee) Enabled(ctx context.Context, l slog.Level) bool {
	return t.out.Enabled(ctx, l) || t.ring.Enabled(ctx, l)
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var outErr, ringErr error
	if t.out.Enabled(ctx, r.Level) {
		outErr = t.out.Handle(ctx, r.Clone())
	}
	if t.ring.Enabled(ctx, r.Level) {
		ringErr = t.ring.Handle(ctx, r)
	}
	return errors.Join(outErr, ringErr)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	return tee{t.out.WithAttrs(attrs), t.ring.WithAttrs(attrs)}
}

func (t tee) WithGroup(name string) slog.Handler {
	return tee{t.out.WithGroup(name), t.ring.WithGroup(name)}
}
