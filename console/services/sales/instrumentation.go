package main

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const instrumentationName = "sales-console"

// StartReferenceLoadSpan cria o span da carga dos dados de referência
func StartReferenceLoadSpan(ctx context.Context) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	ctx, span := tracer.Start(ctx, "reference.load_all")

	span.SetAttributes(
		attribute.Int("reference.sources", 4),
		attribute.String("component", "reference-cache"),
	)

	return ctx, span
}

// StartSubmitSpan cria o span de um envio de venda
func StartSubmitSpan(ctx context.Context, d Draft) (context.Context, trace.Span) {
	tracer := otel.Tracer(instrumentationName)
	ctx, span := tracer.Start(ctx, "sale.submit")

	span.SetAttributes(
		attribute.String("sale.draft_id", d.ID.String()),
		attribute.Int64("sale.local_id", d.StoreID),
		attribute.Int64("sale.cliente_id", d.ClientID),
		attribute.Int("sale.lines", len(d.Lines)),
		attribute.String("component", "sale-composer"),
	)

	return ctx, span
}

// Instruments agrupa as métricas do console
type Instruments struct {
	submissions   metric.Int64Counter
	referenceLoad metric.Float64Histogram
}

// NewInstruments registra as métricas no meter global. Falhas só desabilitam a métrica.
func NewInstruments(logger *zap.Logger) *Instruments {
	meter := otel.Meter(instrumentationName)
	inst := &Instruments{}

	submissions, err := meter.Int64Counter("console.sale.submissions",
		metric.WithDescription("Sale submissions by outcome"),
	)
	if err != nil {
		logger.Warn("failed to create submissions counter", zap.Error(err))
	} else {
		inst.submissions = submissions
	}

	referenceLoad, err := meter.Float64Histogram("console.reference.load.duration",
		metric.WithDescription("Duration of the reference data load"),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Warn("failed to create reference load histogram", zap.Error(err))
	} else {
		inst.referenceLoad = referenceLoad
	}

	return inst
}

func (i *Instruments) RecordSubmission(ctx context.Context, outcome string) {
	if i == nil || i.submissions == nil {
		return
	}
	i.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (i *Instruments) RecordReferenceLoad(ctx context.Context, elapsed time.Duration, err error) {
	if i == nil || i.referenceLoad == nil {
		return
	}
	i.referenceLoad.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.Bool("success", err == nil)))
}
