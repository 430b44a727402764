package sse

import (
	"context"
	"ms-checkout/internal/models"
	"sync"
	"time"
)

const clientBuffer = 10

// StatusEvent is what a stream subscriber receives when a checkout changes status.
type StatusEvent struct {
	CheckoutID    string                `json:"checkoutId"`
	EventID       string                `json:"eventId"`
	Status        models.CheckoutStatus `json:"status"`
	PaymentMethod string                `json:"paymentMethod,omitempty"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// CheckoutEventEmitter fans checkout status changes out to SSE clients
type CheckoutEventEmitter struct {
	mu             sync.RWMutex
	checkoutClient map[string][]chan StatusEvent
	eventClients   map[string][]chan StatusEvent
}

func NewCheckoutEventEmitter() *CheckoutEventEmitter {
	return &CheckoutEventEmitter{
		checkoutClient: make(map[string][]chan StatusEvent),
		eventClients:   make(map[string][]chan StatusEvent),
	}
}

// SubscribeToCheckout follows a single order. The channel closes when ctx is done.
func (e *CheckoutEventEmitter) SubscribeToCheckout(ctx context.Context, checkoutID string) <-chan StatusEvent {
	return e.subscribe(ctx, e.checkoutClient, checkoutID)
}

// SubscribeToEvent follows every order of an event.
func (e *CheckoutEventEmitter) SubscribeToEvent(ctx context.Context, eventID string) <-chan StatusEvent {
	return e.subscribe(ctx, e.eventClients, eventID)
}

func (e *CheckoutEventEmitter) subscribe(ctx context.Context, clients map[string][]chan StatusEvent, key string) <-chan StatusEvent {
	ch := make(chan StatusEvent, clientBuffer)

	e.mu.Lock()
	clients[key] = append(clients[key], ch)
	e.mu.Unlock()

	// Remove client when context is done
	go func() {
		<-ctx.Done()
		e.remove(clients, key, ch)
	}()
	return ch
}

// Emit satisfies the checkout service's status notifier.
func (e *CheckoutEventEmitter) Emit(c *models.Checkout) {
	evt := StatusEvent{
		CheckoutID: c.ID,
		EventID:    c.EventID(),
		Status:     c.Status,
		UpdatedAt:  c.UpdatedAt,
	}
	if c.PaymentMethod != nil {
		evt.PaymentMethod = *c.PaymentMethod
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	broadcast(e.checkoutClient[evt.CheckoutID], evt)
	if evt.EventID != "" {
		broadcast(e.eventClients[evt.EventID], evt)
	}
}

// Subscribers reports how many clients follow a checkout.
func (e *CheckoutEventEmitter) Subscribers(checkoutID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.checkoutClient[checkoutID])
}

func broadcast(clients []chan StatusEvent, evt StatusEvent) {
	for _, ch := range clients {
		// slow clients miss events instead of blocking the webhook
		select {
		case ch <- evt:
		default:
		}
	}
}

func (e *CheckoutEventEmitter) remove(clients map[string][]chan StatusEvent, key string, ch chan StatusEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := clients[key]
	for i, c := range list {
		if c == ch {
			clients[key] = append(list[:i], list[i+1:]...)
			close(ch)
			break
		}
	}
	if len(clients[key]) == 0 {
		delete(clients, key)
	}
}
