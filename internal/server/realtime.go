package server

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	RealtimeEventDrinkChanged = "drink-change"
	realtimeEventHeartbeat    = "heartbeat"
	realtimeSourceBackend     = "coffeeshop-backend"
)

// RealtimeAction names the write that produced a drink change event.
type RealtimeAction string

const (
	RealtimeActionCreated RealtimeAction = "created"
	RealtimeActionUpdated RealtimeAction = "updated"
	RealtimeActionDeleted RealtimeAction = "deleted"
)

type RealtimeMessage struct {
	EventType string
	Action    RealtimeAction
	DrinkIDs  []uint
	Timestamp time.Time
}

// RealtimeDispatcher fans menu change events out to every open stream.
type RealtimeDispatcher struct {
	mu          sync.RWMutex
	subscribers map[int64]*realtimeSubscriber
	nextID      int64
	bufferSize  int
	closed      bool
}

type realtimeSubscriber struct {
	id     int64
	stream chan RealtimeMessage
}

func NewRealtimeDispatcher() *RealtimeDispatcher {
	return &RealtimeDispatcher{
		subscribers: make(map[int64]*realtimeSubscriber),
		bufferSize:  16,
	}
}

// Subscribe returns a stream that is closed once the dispatcher shuts down.
func (d *RealtimeDispatcher) Subscribe(ctx context.Context) (<-chan RealtimeMessage, func()) {
	subscriber := &realtimeSubscriber{
		stream: make(chan RealtimeMessage, d.bufferSize),
	}
	if !d.registerSubscriber(subscriber) {
		close(subscriber.stream)
		return subscriber.stream, func() {}
	}
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			d.unregisterSubscriber(subscriber.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish never blocks: subscribers with a full buffer miss the message.
func (d *RealtimeDispatcher) Publish(message RealtimeMessage) {
	if message.EventType == "" {
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	for _, subscriber := range d.subscribers {
		select {
		case subscriber.stream <- message:
		default:
		}
	}
}

// Close ends every open stream and rejects new subscribers.
func (d *RealtimeDispatcher) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.closed = true
	for id, subscriber := range d.subscribers {
		close(subscriber.stream)
		delete(d.subscribers, id)
	}
}

// SubscriberCount reports the number of open streams.
func (d *RealtimeDispatcher) SubscriberCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.subscribers)
}

func (d *RealtimeDispatcher) registerSubscriber(subscriber *realtimeSubscriber) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false
	}
	d.nextID++
	subscriber.id = d.nextID
	d.subscribers[subscriber.id] = subscriber
	return true
}

func (d *RealtimeDispatcher) unregisterSubscriber(subscriberID int64) {
	d.mu.Lock()
	delete(d.subscribers, subscriberID)
	d.mu.Unlock()
}

type drinkChangeEventPayload struct {
	Action    RealtimeAction `json:"action"`
	DrinkIDs  []uint         `json:"drinkIds"`
	Timestamp string         `json:"timestamp"`
	Source    string         `json:"source"`
}

type heartbeatEventPayload struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

func (h *httpHandler) publishChange(action RealtimeAction, drinkID uint) {
	h.realtime.Publish(RealtimeMessage{
		EventType: RealtimeEventDrinkChanged,
		Action:    action,
		DrinkIDs:  []uint{drinkID},
		Timestamp: h.clock().UTC(),
	})
}

func (h *httpHandler) handleDrinkStream(c *gin.Context) {
	ctx := c.Request.Context()
	stream, cleanup := h.realtime.Subscribe(ctx)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.Flush()

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	h.logger.Debug("drink stream opened", zap.String("request_id", c.GetString(requestIDContextKey)))
	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case message, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(message.EventType, drinkChangeEventPayload{
				Action:    message.Action,
				DrinkIDs:  message.DrinkIDs,
				Timestamp: message.Timestamp.Format(time.RFC3339),
				Source:    realtimeSourceBackend,
			})
			return true
		case tick := <-ticker.C:
			c.SSEvent(realtimeEventHeartbeat, heartbeatEventPayload{
				Timestamp: tick.UTC().Format(time.RFC3339),
				Source:    realtimeSourceBackend,
			})
			return true
		}
	})
	h.logger.Debug("drink stream closed", zap.String("request_id", c.GetString(requestIDContextKey)))
}
