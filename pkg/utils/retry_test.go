package utils_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velumlabs/fulfillment/pkg/utils"
)

func fastConfig() utils.RetryConfig {
	return utils.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		Multiplier:   2,
	}
}

func TestRetry(t *testing.T) {
	t.Run("succeeds first try", func(t *testing.T) {
		calls := 0
		err := utils.Retry(fastConfig(), func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("recovers after transient failures", func(t *testing.T) {
		calls := 0
		err := utils.Retry(fastConfig(), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		want := errors.New("permanent")
		err := utils.Retry(fastConfig(), func() error {
			calls++
			return want
		})
		assert.ErrorIs(t, err, want)
		assert.Equal(t, 3, calls)
	})

	t.Run("skip errors fail fast", func(t *testing.T) {
		notFound := errors.New("not found")
		calls := 0
		err := utils.Retry(fastConfig(), func() error {
			calls++
			return fmt.Errorf("lookup: %w", notFound)
		}, notFound)
		assert.ErrorIs(t, err, notFound)
		assert.Equal(t, 1, calls)
	})
}
