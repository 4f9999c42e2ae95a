package otel

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestInitRequiresServiceName(t *testing.T) {
	_, err := Init(context.Background(), Config{Traces: true})
	require.Error(t, err)
}

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "dextherd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, span := Tracer().Start(context.Background(), "noop")
	span.End()
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders(" api-key = secret ,broken, =x,tenant=dexther,")
	require.Equal(t, map[string]string{"api-key": "secret", "tenant": "dexther"}, headers)
	require.Empty(t, ParseHeaders(""))
}

func TestSamplerHonoursRatio(t *testing.T) {
	require.Equal(t, sdktrace.AlwaysSample().Description(), sampler(0).Description())
	require.Equal(t, sdktrace.AlwaysSample().Description(), sampler(1.5).Description())
	require.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased")
}

func TestShutdownAllJoinsErrors(t *testing.T) {
	var order []int
	boom := errors.New("boom")
	err := shutdownAll(context.Background(), []ShutdownFunc{
		func(context.Context) error {
			order = append(order, 1)
			return nil
		},
		func(context.Context) error {
			order = append(order, 2)
			return boom
		},
	})
	require.ErrorIs(t, err, boom)
	require.Equal(t, []int{2, 1}, order)
}
