package lock

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// runKeepAlive starts keepAlive and returns a channel closed when it returns
func runKeepAlive(stop <-chan struct{}, renew func() error) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		keepAlive(stop, 5*time.Millisecond, renew, zap.NewNop())
	}()
	return done
}

func TestKeepAlive_RenewsUntilStopped(t *testing.T) {
	var calls atomic.Int32
	stop := make(chan struct{})
	done := runKeepAlive(stop, func() error {
		calls.Add(1)
		return nil
	})

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	close(stop)
	<-done

	after := calls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, calls.Load(), "no renewals after stop")
}

func TestKeepAlive_StopsWhenLeaseIsLost(t *testing.T) {
	var calls atomic.Int32
	stop := make(chan struct{})
	defer close(stop)

	done := runKeepAlive(stop, func() error {
		calls.Add(1)
		return fmt.Errorf("lock hall: %w", ErrLeaseLost)
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("keepAlive kept running after the lease was lost")
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestKeepAlive_RetriesTransientErrors(t *testing.T) {
	var calls atomic.Int32
	stop := make(chan struct{})
	done := runKeepAlive(stop, func() error {
		if calls.Add(1) == 1 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.Eventually(t, func() bool { return calls.Load() >= 3 }, time.Second, time.Millisecond)
	close(stop)
	<-done
}
