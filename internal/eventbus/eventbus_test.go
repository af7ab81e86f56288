package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishWakesMatchingWaiter(t *testing.T) {
	b := New[int]()
	done := make(chan struct{})
	go func() {
		b.Wait(42, Acked)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond) // let the waiter block
	b.Publish(42, Acked)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken")
	}
}

func TestWaitIgnoresMismatch(t *testing.T) {
	b := New[int]()
	done := make(chan struct{})
	go func() {
		b.Wait(1, ConnectionCompleted)
		close(done)
	}()

	time.Sleep(10 * time.Millisecond)
	b.Publish(2, ConnectionCompleted) // wrong socket
	b.Publish(1, Acked)               // wrong kind

	select {
	case <-done:
		t.Fatal("waiter woke on an unrelated event")
	case <-time.After(50 * time.Millisecond):
	}

	b.Publish(1, ConnectionCompleted)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("waiter did not wake for its own event")
	}
}

func TestKindString(t *testing.T) {
	require.Equal(t, "Acked", Acked.String())
	require.Equal(t, "ConnectionCompleted", ConnectionCompleted.String())
	require.Equal(t, "DataArrived", DataArrived.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
