package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan_RecordsAttributesAndErrors(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	defer otel.SetTracerProvider(prev)

	_, span := StartSpan(context.Background(), "matching.MatchSubject", map[string]string{"subjectId": "s-1"})
	EndSpan(span, fmt.Errorf("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "matching.MatchSubject", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	require.Len(t, spans[0].Attributes(), 1)
	assert.Equal(t, "s-1", spans[0].Attributes()[0].Value.AsString())
}

func TestObservability_RecordsWithoutPanicking(t *testing.T) {
	obs, err := New("marketplace-engine-test")
	require.NoError(t, err)
	defer obs.Shutdown(context.Background())

	ctx := context.Background()
	assert.NotPanics(t, func() {
		obs.RecordJobProcessed(ctx, "match-listings", "completed")
		obs.RecordJobDuration(ctx, "match-listings", 120*time.Millisecond)
		obs.RecordTopScore(ctx, "global", 0.91)
	})

	var nilObs *Observability
	assert.NotPanics(t, func() { nilObs.RecordTopScore(ctx, "global", 1) })
}
