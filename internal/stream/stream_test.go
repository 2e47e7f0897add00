package stream

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeEvent(t *testing.T, msg []byte) map[string]any {
	t.Helper()
	var ev map[string]any
	require.NoError(t, json.Unmarshal(msg, &ev))
	return ev
}

func TestHubPublishAndUnsubscribe(t *testing.T) {
	hub := NewHub()
	a, cancelA := hub.Subscribe(1)
	b, cancelB := hub.Subscribe(1)
	require.Equal(t, 2, hub.Subscribers())

	require.NoError(t, hub.Publish(context.Background(), NewEvent(EventAlert, map[string]int{"account_number": 7})))

	for _, ch := range []<-chan []byte{a, b} {
		ev := decodeEvent(t, <-ch)
		assert.Equal(t, EventAlert, ev["type"])
		assert.Equal(t, float64(7), ev["data"].(map[string]any)["account_number"])
	}

	cancelA()
	cancelA()
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, hub.Subscribers())

	hub.Close()
	_, open = <-b
	assert.False(t, open)
	cancelB()
	assert.Zero(t, hub.Subscribers())
}

func TestHubDropsForSlowSubscriber(t *testing.T) {
	hub := NewHub()
	_, cancel := hub.Subscribe(1)
	defer cancel()

	hub.Deliver([]byte(`{}`))
	hub.Deliver([]byte(`{}`))
	assert.Equal(t, uint64(1), hub.Dropped())
}

func TestStreamHandlerForwardsEvents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub()
	router := gin.New()
	router.GET("/api/stream", NewGinHandlers(hub, nil).StreamHandler())

	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), NewEvent(EventAccountUpdate, map[string]any{"account_number": 123})))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	ev := decodeEvent(t, msg)
	assert.Equal(t, EventAccountUpdate, ev["type"])

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamHandlerRejectsOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/api/stream", NewGinHandlers(NewHub(), []string{"https://dashboard.example"}).StreamHandler())

	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/stream"
	header := map[string][]string{"Origin": {"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 403, resp.StatusCode)
}

func TestRedisBroadcasterRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub := NewHub()
	events, cancel := hub.Subscribe(4)
	defer cancel()

	b := NewRedisBroadcaster(client, "mt4:test", hub)
	ctx, stop := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	require.Eventually(t, func() bool {
		return mr.PubSubNumSub("mt4:test")["mt4:test"] == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, b.Publish(context.Background(), NewEvent(EventAccountUpdate, map[string]int{"account_number": 9})))

	select {
	case msg := <-events:
		ev := decodeEvent(t, msg)
		assert.Equal(t, EventAccountUpdate, ev["type"])
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered through redis")
	}

	stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("broadcaster did not stop")
	}
}

func TestNewRedisClient(t *testing.T) {
	_, err := NewRedisClient("not a url")
	assert.Error(t, err)

	client, err := NewRedisClient("redis://localhost:6379/2")
	require.NoError(t, err)
	assert.Equal(t, 2, client.Options().DB)
	require.NoError(t, client.Close())
}
