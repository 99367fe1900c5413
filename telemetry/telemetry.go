// Package telemetry exports traces of governance and propagation activity over OTLP/HTTP.
package telemetry

import (
	"context"
	"fmt"

	"github.com/colorfulnotion/anchorbridge/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/colorfulnotion/anchorbridge"

// Span names, one per traced operation.
const (
	// Governance client
	Span_Build_Proposal   = "bridgeside.build_proposal"
	Span_Sign_Proposal    = "bridgeside.sign_proposal"
	Span_Execute_Proposal = "bridgeside.execute_proposal"
	Span_Connect_Anchor   = "bridgeside.connect_anchor"
	Span_Refresh_Governor = "bridgeside.refresh_governor"

	// Orchestrator
	Span_Propagate      = "bridge.propagate"
	Span_Propagate_Edge = "bridge.propagate_edge"
	Span_Deposit        = "bridge.deposit"
	Span_Withdraw       = "bridge.withdraw"
	Span_Connect_All    = "bridge.connect_all"
)

// Attribute keys shared by all spans.
const (
	AttrResourceID   = attribute.Key("bridge.resource_id")
	AttrTarget       = attribute.Key("bridge.target")
	AttrKind         = attribute.Key("bridge.proposal_kind")
	AttrNonce        = attribute.Key("bridge.nonce")
	AttrTypedChainID = attribute.Key("bridge.typed_chain_id")
	AttrTxHash       = attribute.Key("bridge.tx_hash")
)

// Shutdown flushes and stops the exporter.
type Shutdown func(context.Context) error

// Init installs a global tracer provider exporting to endpoint (an OTLP/HTTP URL).
// An empty endpoint leaves the no-op provider in place.
func Init(ctx context.Context, endpoint string, serviceName string) (Shutdown, error) {
	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(endpoint))
	if err != nil {
		return nil, fmt.Errorf("otlp exporter %s: %w", endpoint, err)
	}
	tp := NewProvider(sdktrace.WithBatcher(exporter), serviceName)
	otel.SetTracerProvider(tp)
	log.Info(log.BridgeMonitoring, "telemetry enabled", "endpoint", endpoint, "service", serviceName)
	return tp.Shutdown, nil
}

// NewProvider builds a tracer provider around one span processor option.
func NewProvider(processor sdktrace.TracerProviderOption, serviceName string) *sdktrace.TracerProvider {
	return sdktrace.NewTracerProvider(
		processor,
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", serviceName))),
	)
}

// Start opens a span on the global provider.
func Start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentation).Start(ctx, name, trace.WithAttributes(attrs...))
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
