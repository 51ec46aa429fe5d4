// Package telemetry bridges the statum Trace hook to OpenTelemetry. Trace
// turns each engine step into a span; Provider is a recording-free tracer
// provider for wiring the hook without an SDK.
package telemetry

import (
	"context"
	"fmt"

	statum "github.com/stateforward/go-statum"
	"github.com/stateforward/go-statum/embedded"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Trace adapts an OpenTelemetry tracer to the statum Trace hook. Each engine
// step (init, dispatch, transition, entry, exit) becomes a span carrying the
// involved states and events as attributes.
func Trace(tracer trace.Tracer) statum.Trace {
	return func(step string, elements ...any) func(...any) {
		attrs := make([]attribute.KeyValue, 0, len(elements))
		for i, element := range elements {
			switch v := element.(type) {
			case embedded.Event:
				attrs = append(attrs, attribute.String("event", v.Name()))
				if id := v.Id(); id != "" {
					attrs = append(attrs, attribute.String("event.id", id))
				}
			default:
				attrs = append(attrs, attribute.String(fmt.Sprintf("element.%d", i), statum.NameOf(element)))
			}
		}
		_, span := tracer.Start(context.Background(), step, trace.WithAttributes(attrs...))
		return func(...any) {
			span.SetStatus(codes.Ok, "")
			span.End()
		}
	}
}

var (
	provider    = &Provider{}
	tracer      = &Tracer{}
	span        = &Span{}
	spanContext = trace.SpanContext{}
)

type Provider struct {
	trace.TracerProvider
}

func NewProvider() *Provider {
	return provider
}

func (provider *Provider) Tracer(name string, options ...trace.TracerOption) trace.Tracer {
	return tracer
}

type Tracer struct {
	trace.Tracer
}

func (tracer *Tracer) Start(ctx context.Context, name string, options ...trace.SpanStartOption) (context.Context, trace.Span) {
	return ctx, span
}

type Span struct {
	trace.Span
}

func (span *Span) End(options ...trace.SpanEndOption)                  {}
func (span *Span) AddEvent(name string, options ...trace.EventOption)  {}
func (span *Span) AddLink(link trace.Link)                             {}
func (span *Span) IsRecording() bool                                   { return false }
func (span *Span) RecordError(err error, options ...trace.EventOption) {}
func (span *Span) SetAttributes(kv ...attribute.KeyValue)              {}
func (span *Span) SetName(name string)                                 {}
func (span *Span) SetStatus(code codes.Code, description string)       {}
func (span *Span) SpanContext() trace.SpanContext                      { return spanContext }
func (span *Span) TracerProvider() trace.TracerProvider                { return provider }
