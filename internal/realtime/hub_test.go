package realtime

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ridra/internal/trips"
)

type received struct {
	mu       sync.Mutex
	messages []string
}

func (r *received) handle(userID uint, role string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, strconv.Itoa(int(userID))+":"+role+":"+string(payload))
}

func (r *received) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}

func startHubServer(t *testing.T, hub *Hub, onMessage MessageHandler) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := strconv.Atoi(r.URL.Query().Get("user"))
		conn, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Serve(conn, uint(id), r.URL.Query().Get("role"), onMessage)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, hub *Hub, srv *httptest.Server, userID uint) *websocket.Conn {
	t.Helper()
	before := hub.Connections(userID)
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?role=passenger&user=" + strconv.Itoa(int(userID))
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.Connections(userID) == before+1 }, time.Second, 10*time.Millisecond)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var evt map[string]interface{}
	require.NoError(t, json.Unmarshal(payload, &evt))
	return evt
}

func assertNoEvent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "expected no event")
}

func TestHub_PublishToUserReachesOnlyThatUser(t *testing.T) {
	hub := NewHub()
	srv := startHubServer(t, hub, nil)
	passenger := dial(t, hub, srv, 5)
	bystander := dial(t, hub, srv, 6)

	hub.PublishToUser(5, Event{Name: EventInterestStatusUpdated, Data: map[string]string{"status": "confirmed"}})

	evt := readEvent(t, passenger)
	assert.Equal(t, EventInterestStatusUpdated, evt["event"])
	assert.Equal(t, "confirmed", evt["data"].(map[string]interface{})["status"])
	assertNoEvent(t, bystander)
}

func TestHub_BroadcastReachesEveryone(t *testing.T) {
	hub := NewHub()
	srv := startHubServer(t, hub, nil)
	a := dial(t, hub, srv, 1)
	b := dial(t, hub, srv, 2)

	hub.Broadcast(Event{Name: EventBusStatusUpdated, Data: map[string]int{"busId": 3}})

	assert.Equal(t, EventBusStatusUpdated, readEvent(t, a)["event"])
	assert.Equal(t, EventBusStatusUpdated, readEvent(t, b)["event"])
}

func TestHub_MultipleSocketsPerUser(t *testing.T) {
	hub := NewHub()
	srv := startHubServer(t, hub, nil)
	phone := dial(t, hub, srv, 9)
	tablet := dial(t, hub, srv, 9)
	assert.Equal(t, 2, hub.Connections(9))

	hub.PublishToUser(9, Event{Name: "ping", Data: nil})
	assert.Equal(t, "ping", readEvent(t, phone)["event"])
	assert.Equal(t, "ping", readEvent(t, tablet)["event"])
}

func TestHub_OfflineUserIsSkipped(t *testing.T) {
	hub := NewHub()
	assert.NotPanics(t, func() {
		hub.PublishToUser(42, Event{Name: EventInterestStatusUpdated})
		hub.Broadcast(Event{Name: EventBusStatusUpdated})
	})
	assert.Zero(t, hub.Connections(42))
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub := NewHub()
	srv := startHubServer(t, hub, nil)
	conn := dial(t, hub, srv, 11)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Connections(11) == 0 }, time.Second, 10*time.Millisecond)
	assert.NotPanics(t, func() { hub.PublishToUser(11, Event{Name: "late"}) })
}

func TestHub_ClientMessagesReachHandler(t *testing.T) {
	hub := NewHub()
	got := &received{}
	srv := startHubServer(t, hub, got.handle)
	conn := dial(t, hub, srv, 3)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"hello"}`)))
	assert.Eventually(t, func() bool {
		msgs := got.all()
		return len(msgs) == 1 && msgs[0] == `3:passenger:{"type":"hello"}`
	}, time.Second, 10*time.Millisecond)
}

type capturePublisher struct {
	userID uint
	toUser []Event
	all    []Event
}

func (c *capturePublisher) PublishToUser(userID uint, evt Event) {
	c.userID = userID
	c.toUser = append(c.toUser, evt)
}

func (c *capturePublisher) Broadcast(evt Event) {
	c.all = append(c.all, evt)
}

func TestTripNotifier(t *testing.T) {
	pub := &capturePublisher{}
	n := NewTripNotifier(pub)

	change := trips.InterestStatusChange{InterestID: 1, UserID: 5, Status: "confirmed", BusID: 2, ScheduleID: 3, PickupPointID: 4}
	n.InterestStatusChanged(change)
	require.Len(t, pub.toUser, 1)
	assert.Equal(t, uint(5), pub.userID)
	assert.Equal(t, EventInterestStatusUpdated, pub.toUser[0].Name)
	assert.Equal(t, change, pub.toUser[0].Data)

	n.TripStatusChanged(trips.TripStatusChange{ScheduleID: 3, BusID: 2, Status: "in-transit"})
	require.Len(t, pub.all, 1)
	assert.Equal(t, EventBusStatusUpdated, pub.all[0].Name)
}

func TestInterestStatusPayloadShape(t *testing.T) {
	payload, ok := encode(Event{Name: EventInterestStatusUpdated, Data: trips.InterestStatusChange{
		InterestID: 1, UserID: 2, Status: "cancelled", BusID: 3, ScheduleID: 4, PickupPointID: 5,
	}})
	require.True(t, ok)
	assert.JSONEq(t, `{"event":"interest_status_updated","data":{
		"interestId":1,"userId":2,"status":"cancelled","busId":3,"scheduleId":4,"pickupPointId":5}}`, string(payload))
}
