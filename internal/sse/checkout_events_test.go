package sse

import (
	"context"
	"ms-checkout/internal/models"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func order(id, eventID string, status models.CheckoutStatus) *models.Checkout {
	return &models.Checkout{ID: id, Status: status, Metadata: models.CheckoutMetadata{EventID: eventID}}
}

func TestEmit_ReachesCheckoutAndEventSubscribers(t *testing.T) {
	e := NewCheckoutEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	byCheckout := e.SubscribeToCheckout(ctx, "chk-1")
	byEvent := e.SubscribeToEvent(ctx, "event-1")
	other := e.SubscribeToCheckout(ctx, "chk-2")

	e.Emit(order("chk-1", "event-1", models.CheckoutApproved))

	select {
	case evt := <-byCheckout:
		assert.Equal(t, models.CheckoutApproved, evt.Status)
	case <-time.After(time.Second):
		t.Fatal("checkout subscriber got nothing")
	}
	select {
	case evt := <-byEvent:
		assert.Equal(t, "chk-1", evt.CheckoutID)
	case <-time.After(time.Second):
		t.Fatal("event subscriber got nothing")
	}
	assert.Len(t, other, 0)
}

func TestEmit_DoesNotBlockOnSlowClient(t *testing.T) {
	e := NewCheckoutEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch := e.SubscribeToCheckout(ctx, "chk-1")

	done := make(chan struct{})
	go func() {
		for i := 0; i < clientBuffer*3; i++ {
			e.Emit(order("chk-1", "", models.CheckoutPending))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("emit blocked")
	}
	assert.Len(t, ch, clientBuffer)
}

func TestSubscriberRemovedOnCancel(t *testing.T) {
	e := NewCheckoutEventEmitter()
	ctx, cancel := context.WithCancel(context.Background())
	ch := e.SubscribeToCheckout(ctx, "chk-1")
	require.Equal(t, 1, e.Subscribers("chk-1"))

	cancel()
	require.Eventually(t, func() bool { return e.Subscribers("chk-1") == 0 }, time.Second, 5*time.Millisecond)

	_, open := <-ch
	assert.False(t, open)
	e.Emit(order("chk-1", "", models.CheckoutApproved))
}
