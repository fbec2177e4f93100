package observability_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/libranexus/platform/pkg/observability"
)

func TestSetupBuildsProvidersAndShutsDown(t *testing.T) {
	ctx := context.Background()
	providers, err := observability.Setup(ctx, observability.Config{
		ServiceName: "libranexus-test",
		Endpoint:    "localhost:4318",
		Insecure:    true,
	})
	require.NoError(t, err)
	require.NotNil(t, providers.Tracer)
	require.NotNil(t, providers.Meter)

	metrics, err := observability.NewMetrics(providers.Meter.Meter("libranexus-test"))
	require.NoError(t, err)
	require.NotNil(t, metrics.AppendConflicts)
	require.NotNil(t, metrics.DeadLetteredEvents)
	require.NotNil(t, metrics.SagaTransitions)

	metrics.AppendConflicts.Add(ctx, 1)
	metrics.DeadLetteredEvents.Add(ctx, 1)
	metrics.SagaTransitions.Add(ctx, 1)

	require.NoError(t, providers.Shutdown(ctx))
}
