package amqp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaiterSetResolvesWait(t *testing.T) {
	w := NewWaiter[int]()
	w.Set(42)
	v, err := w.Wait()
	require.NoError(t, err)
	require.Equal(t, 42, v)
}

func TestWaiterFailResolvesWaitWithError(t *testing.T) {
	w := NewWaiter[int]()
	w.Fail(errBoom)
	_, err := w.Wait()
	require.ErrorIs(t, err, errBoom)
}

func TestWaiterFirstResolutionWins(t *testing.T) {
	w := NewWaiter[int]()
	w.Set(1)
	w.Set(2)
	w.Fail(errBoom)
	v, err := w.Wait()
	require.NoError(t, err)
	require.Equal(t, 1, v)
}

func TestWaiterBlocksUntilResolved(t *testing.T) {
	w := NewWaiter[string]()
	done := make(chan struct{})
	go func() {
		w.Set("ready")
		close(done)
	}()
	v, err := w.Wait()
	<-done
	require.NoError(t, err)
	require.Equal(t, "ready", v)
}

func TestWaiterDoneChannelClosesOnResolution(t *testing.T) {
	w := NewWaiter[struct{}]()
	select {
	case <-w.Done():
		t.Fatal("Done closed before resolution")
	case <-time.After(10 * time.Millisecond):
	}
	w.Set(struct{}{})
	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("Done did not close after Set")
	}
}

var errBoom = errTestSentinel("boom")

type errTestSentinel string

func (e errTestSentinel) Error() string { return string(e) }
