package middleware_test

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/longbridgeapp/assert"

	"github.com/hyp3rd/dache/pkg/middleware"
)

func TestOTelTracingMiddleware_DelegatesToNext(t *testing.T) {
	stub := &stubAPI{}
	tracer := tracenoop.NewTracerProvider().Tracer("dache-test")

	mw := middleware.NewOTelTracingMiddleware[string](stub, tracer)

	_, _, err := mw.TryGet(context.Background(), "k")
	assert.Nil(t, err)
	assert.Equal(t, []string{"TryGet"}, stub.calls)
}

func TestOTelMetricsMiddleware_DelegatesToNext(t *testing.T) {
	stub := &stubAPI{}
	meter := noop.NewMeterProvider().Meter("dache-test")

	mw, err := middleware.NewOTelMetricsMiddleware[string](stub, meter)
	assert.Nil(t, err)

	err = mw.AddOrUpdate(context.Background(), "k", "v")
	assert.Nil(t, err)
	assert.Equal(t, []string{"AddOrUpdate"}, stub.calls)
}
