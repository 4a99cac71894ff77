package resilience_test

import (
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avydash/avydash/internal/provider/resilience"
)

func TestBreaker_OpensAfterFailures(t *testing.T) {
	var transitions []gobreaker.State
	cfg := resilience.DefaultCircuitBreakerConfig("avcan")
	cfg.OnStateChange = func(_ string, _ gobreaker.State, to gobreaker.State) {
		transitions = append(transitions, to)
	}
	breaker := resilience.NewBreaker(cfg)

	for i := 0; i < 5; i++ {
		done, err := breaker.Allow()
		require.NoError(t, err)
		done(false)
	}

	assert.Equal(t, gobreaker.StateOpen, breaker.State())
	assert.Equal(t, []gobreaker.State{gobreaker.StateOpen}, transitions)

	_, err := breaker.Allow()
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestBreaker_StaysClosedOnSuccess(t *testing.T) {
	breaker := resilience.NewBreaker(resilience.DefaultCircuitBreakerConfig("avcan"))

	for i := 0; i < 10; i++ {
		done, err := breaker.Allow()
		require.NoError(t, err)
		done(i%3 != 0)
	}

	assert.Equal(t, gobreaker.StateClosed, breaker.State())
	assert.Equal(t, uint32(10), breaker.Counts().Requests)
	assert.Equal(t, "avcan", breaker.Name())
}

func TestDefaultReadyToTrip(t *testing.T) {
	assert.False(t, resilience.DefaultReadyToTrip(gobreaker.Counts{Requests: 4, TotalFailures: 4}))
	assert.True(t, resilience.DefaultReadyToTrip(gobreaker.Counts{Requests: 6, TotalFailures: 3}))
	assert.False(t, resilience.DefaultReadyToTrip(gobreaker.Counts{Requests: 10, TotalFailures: 4}))
}
