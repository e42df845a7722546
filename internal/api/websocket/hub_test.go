package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meltcore/leaderboard-backend/internal/models"
)

func receiveCount(t *testing.T, c *Client) int {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed while awaiting presence update")
		}
		var pm models.PresenceMessage
		if err := json.Unmarshal(msg, &pm); err != nil {
			t.Fatalf("unmarshal presence message: %v", err)
		}
		assert.Equal(t, models.PresenceMessageType, pm.Type)
		return pm.Count
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for presence update")
	}
	return 0
}

func assertNoUpdate(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected presence update: %s", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(context.Background())

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.NotNil(t, hub.register)
	assert.NotNil(t, hub.unregister)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubBroadcastsCountOnConnect(t *testing.T) {
	hub := NewHub(context.Background())
	go hub.Run()
	defer hub.Stop()

	first := &Client{send: make(chan []byte, 256)}
	hub.register <- first

	// The initiating connection hears about itself.
	assert.Equal(t, 1, receiveCount(t, first))

	second := &Client{send: make(chan []byte, 256)}
	hub.register <- second

	assert.Equal(t, 2, receiveCount(t, first))
	assert.Equal(t, 2, receiveCount(t, second))
	assert.Equal(t, 2, hub.ClientCount())
}

func TestHubBroadcastsCountOnDisconnect(t *testing.T) {
	hub := NewHub(context.Background())
	go hub.Run()
	defer hub.Stop()

	first := &Client{send: make(chan []byte, 256)}
	second := &Client{send: make(chan []byte, 256)}
	hub.register <- first
	hub.register <- second
	receiveCount(t, first) // 1
	receiveCount(t, first) // 2
	receiveCount(t, second)

	hub.unregister <- second

	assert.Equal(t, 1, receiveCount(t, first))
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHubUnregisterUnknownClientIsNoOp(t *testing.T) {
	hub := NewHub(context.Background())
	go hub.Run()
	defer hub.Stop()

	member := &Client{send: make(chan []byte, 256)}
	hub.register <- member
	receiveCount(t, member)

	stranger := &Client{send: make(chan []byte, 256)}
	hub.unregister <- stranger

	assertNoUpdate(t, member)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHubCountNeverGoesNegative(t *testing.T) {
	hub := NewHub(context.Background())
	go hub.Run()
	defer hub.Stop()

	client := &Client{send: make(chan []byte, 256)}
	hub.register <- client
	receiveCount(t, client)

	// Disconnecting more times than connected stays clamped at zero.
	hub.unregister <- client
	hub.unregister <- client
	hub.unregister <- client

	// Synchronize with the hub loop before asserting.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(context.Background())
	go hub.Run()
	defer hub.Stop()

	slow := &Client{send: make(chan []byte, 1)}
	hub.register <- slow
	// The single-slot buffer now holds the count=1 update and the client
	// never drains it.

	healthy := &Client{send: make(chan []byte, 256)}
	hub.register <- healthy

	assert.Equal(t, 2, receiveCount(t, healthy))

	// The slow client was dropped during the fan-out.
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, hub.ClientCount())
}

func TestHubStop(t *testing.T) {
	hub := NewHub(context.Background())
	go hub.Run()

	for i := 0; i < 3; i++ {
		client := &Client{send: make(chan []byte, 256)}
		hub.register <- client
	}

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 3, hub.ClientCount())

	hub.Stop()
	time.Sleep(10 * time.Millisecond)

	assert.Equal(t, 0, hub.ClientCount())
}
