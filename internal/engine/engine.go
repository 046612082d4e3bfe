// Package engine decides, for a person, a date and the day's schedule,
// whether that person is expected and how their attendance is classified,
// and rolls those outcomes up into histories and monthly reports.
//
// Every query re-derives its result from the rows returned by a Source.
// Failed reads never abort a query: they narrow the result and mark it
// Degraded.
package engine

import (
	"time"

	"go.uber.org/zap"

	"schoolattend/internal/metrics"
)

// Options configures an Engine.
type Options struct {
	// Location is the school timezone used to bucket timestamps into days.
	Location *time.Location
	// SectionFetchLimit bounds concurrent roster lookups per query.
	SectionFetchLimit int
	Logger            *zap.Logger
}

// Engine answers attendance queries over a Source.
type Engine struct {
	src          Source
	loc          *time.Location
	sectionLimit int
	log          *zap.Logger
}

// New creates an engine reading from src.
func New(src Source, opts Options) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.SectionFetchLimit <= 0 {
		opts.SectionFetchLimit = 8
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Engine{
		src:          src,
		loc:          opts.Location,
		sectionLimit: opts.SectionFetchLimit,
		log:          opts.Logger,
	}
}

// Location returns the school timezone.
func (e *Engine) Location() *time.Location { return e.loc }

func (e *Engine) degraded(source string, err error, fields ...zap.Field) {
	metrics.DegradedReads.WithLabelValues(source).Inc()
	e.log.Warn("attendance source read failed, degrading to empty result",
		append(fields, zap.String("source", source), zap.Error(err))...)
}

type sourceError struct {
	source string
	err    error
}

func (e *sourceError) Error() string { return e.source + ": " + e.err.Error() }

func (e *sourceError) Unwrap() error { return e.err }

func wrapSource(source string, err error) error {
	if err == nil {
		return nil
	}
	return &sourceError{source: source, err: err}
}
