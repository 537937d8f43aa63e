package observability

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// StartSpan starts a new span from context
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, opts...)
}

// StartServiceSpan starts a span for service operations
func StartServiceSpan(ctx context.Context, service, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, fmt.Sprintf("%s.%s", service, operation),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("service.component", service),
			Operation(operation),
		),
		trace.WithAttributes(attrs...),
	)
}

// RecordError records an error on the span
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// SetSuccess marks the span as successful
func SetSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// AddEvent adds an event to the span
func AddEvent(span trace.Span, name string, attrs ...attribute.KeyValue) {
	span.AddEvent(name, trace.WithAttributes(attrs...))
}

// DatabaseMetrics holds database-related metrics
type DatabaseMetrics struct {
	queryDuration metric.Float64Histogram
	queryCount    metric.Int64Counter
	errorCount    metric.Int64Counter
}

// NewDatabaseMetrics creates database metrics instruments
func NewDatabaseMetrics() (*DatabaseMetrics, error) {
	meter := otel.Meter(instrumentationName)

	queryDuration, err := meter.Float64Histogram(
		"db.query.duration",
		metric.WithDescription("Database query duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	queryCount, err := meter.Int64Counter(
		"db.query.count",
		metric.WithDescription("Total number of database queries"),
		metric.WithUnit("{queries}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"db.error.count",
		metric.WithDescription("Total number of database errors"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, err
	}

	return &DatabaseMetrics{
		queryDuration: queryDuration,
		queryCount:    queryCount,
		errorCount:    errorCount,
	}, nil
}

// RecordQuery records a database query metrics
func (m *DatabaseMetrics) RecordQuery(ctx context.Context, system, operation string, duration time.Duration, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("db.system", system),
		attribute.String("db.operation", operation),
	}

	m.queryCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.queryDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))

	if err != nil {
		m.errorCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

// TraceDB wraps sql.DB with tracing
type TraceDB struct {
	db      *sql.DB
	system  string
	metrics *DatabaseMetrics
}

// NewTraceDB creates a traced database wrapper. system is the db.system attribute
// ("sqlite" or "postgresql").
func NewTraceDB(db *sql.DB, system string) (*TraceDB, error) {
	metrics, err := NewDatabaseMetrics()
	if err != nil {
		return nil, err
	}

	return &TraceDB{
		db:      db,
		system:  system,
		metrics: metrics,
	}, nil
}

func (t *TraceDB) startSpan(ctx context.Context, name, query string) (context.Context, trace.Span) {
	return StartSpan(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.system),
			attribute.String("db.statement", truncateQuery(query)),
		),
	)
}

// QueryContext executes a query with tracing
func (t *TraceDB) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	ctx, span := t.startSpan(ctx, "DB Query", query)
	defer span.End()

	start := time.Now()
	rows, err := t.db.QueryContext(ctx, query, args...)
	duration := time.Since(start)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
	}

	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))
	t.metrics.RecordQuery(ctx, t.system, "query", duration, err)

	return rows, err
}

// ExecContext executes a statement with tracing
func (t *TraceDB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, span := t.startSpan(ctx, "DB Exec", query)
	defer span.End()

	start := time.Now()
	result, err := t.db.ExecContext(ctx, query, args...)
	duration := time.Since(start)

	if err != nil {
		RecordError(span, err)
	} else {
		SetSuccess(span)
		if rowsAffected, raErr := result.RowsAffected(); raErr == nil {
			span.SetAttributes(attribute.Int64("db.rows_affected", rowsAffected))
		}
	}

	span.SetAttributes(attribute.Int64("db.query_duration_ms", duration.Milliseconds()))
	t.metrics.RecordQuery(ctx, t.system, "exec", duration, err)

	return result, err
}

// QueryRowContext executes a query that returns a single row with tracing
func (t *TraceDB) QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row {
	ctx, span := t.startSpan(ctx, "DB QueryRow", query)
	// The row is scanned after the span ends; sql.Row exposes no completion hook.
	row := t.db.QueryRowContext(ctx, query, args...)
	span.End()
	return row
}

// DB returns the underlying database connection
func (t *TraceDB) DB() *sql.DB {
	return t.db
}

func truncateQuery(query string) string {
	if len(query) > 500 {
		return query[:500] + "..."
	}
	return query
}

// EngineMetrics holds theme engine metrics.
// A nil *EngineMetrics is valid and records nothing.
type EngineMetrics struct {
	themeLoads      metric.Int64Counter
	compileDuration metric.Float64Histogram
	fragmentUpdates metric.Int64Counter
	resolutionGaps  metric.Int64Counter
	wsClients       metric.Int64UpDownCounter
}

// NewEngineMetrics creates engine metrics instruments
func NewEngineMetrics() (*EngineMetrics, error) {
	meter := otel.Meter(instrumentationName)

	themeLoads, err := meter.Int64Counter(
		"themeflow.theme.loads",
		metric.WithDescription("Total number of theme document loads"),
		metric.WithUnit("{loads}"),
	)
	if err != nil {
		return nil, err
	}

	compileDuration, err := meter.Float64Histogram(
		"themeflow.theme.compile.duration",
		metric.WithDescription("Theme CSS compilation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	fragmentUpdates, err := meter.Int64Counter(
		"themeflow.stylesheet.updates",
		metric.WithDescription("Total number of stylesheet fragment injections and removals"),
		metric.WithUnit("{updates}"),
	)
	if err != nil {
		return nil, err
	}

	resolutionGaps, err := meter.Int64Counter(
		"themeflow.resolution.gaps",
		metric.WithDescription("Total number of missing layouts, components and presets met while resolving"),
		metric.WithUnit("{gaps}"),
	)
	if err != nil {
		return nil, err
	}

	wsClients, err := meter.Int64UpDownCounter(
		"themeflow.websocket.clients",
		metric.WithDescription("Number of connected websocket clients"),
		metric.WithUnit("{clients}"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		themeLoads:      themeLoads,
		compileDuration: compileDuration,
		fragmentUpdates: fragmentUpdates,
		resolutionGaps:  resolutionGaps,
		wsClients:       wsClients,
	}, nil
}

// RecordThemeLoad records a theme load attempt
func (m *EngineMetrics) RecordThemeLoad(ctx context.Context, theme, source string, success bool) {
	if m == nil {
		return
	}
	m.themeLoads.Add(ctx, 1, metric.WithAttributes(
		attribute.String("theme", theme),
		attribute.String("source", source),
		attribute.Bool("success", success),
	))
}

// RecordCompile records the duration of one CSS compilation
func (m *EngineMetrics) RecordCompile(ctx context.Context, theme string, duration time.Duration) {
	if m == nil {
		return
	}
	m.compileDuration.Record(ctx, float64(duration.Microseconds())/1000, metric.WithAttributes(
		attribute.String("theme", theme),
	))
}

// RecordFragmentUpdate records a stylesheet injection or removal
func (m *EngineMetrics) RecordFragmentUpdate(ctx context.Context, op string) {
	if m == nil {
		return
	}
	m.fragmentUpdates.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

// RecordResolutionGap records a missing layout, component or preset
func (m *EngineMetrics) RecordResolutionGap(ctx context.Context, kind string) {
	if m == nil {
		return
	}
	m.resolutionGaps.Add(ctx, 1, metric.WithAttributes(attribute.String("gap", kind)))
}

// AddWebSocketClients adjusts the connected client gauge by delta
func (m *EngineMetrics) AddWebSocketClients(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.wsClients.Add(ctx, delta)
}
