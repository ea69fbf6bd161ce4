package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emworks/ux-agent/internal/config"
	"github.com/emworks/ux-agent/internal/model"
)

func newTestApp(t *testing.T) *httptest.Server {
	t.Helper()
	cfg := &config.Config{
		StoreDriver:   config.DriverMemory,
		BridgeTimeout: time.Second,
		BanditEpsilon: 0.1,
		CORS: config.CORSConfig{
			AllowedOrigins: "*",
			AllowedMethods: "GET, POST, PUT, DELETE, OPTIONS, HEAD",
			AllowedHeaders: "Content-Type",
		},
		AI: config.AIConfig{Timeout: time.Second},
	}
	a, err := New(context.Background(), cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(a.Handler())
	t.Cleanup(func() {
		a.Close()
		srv.Close()
	})
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func createUser(t *testing.T, srv *httptest.Server, name string) model.User {
	t.Helper()
	var u model.User
	require.Equal(t, http.StatusCreated, doJSON(t, "POST", srv.URL+"/api/users", map[string]string{"name": name}, &u))
	return u
}

func TestREST_RoomLifecycle(t *testing.T) {
	srv := newTestApp(t)
	owner := createUser(t, srv, "Olga")
	alice := createUser(t, srv, "Alice")

	var room model.Room
	status := doJSON(t, "POST", srv.URL+"/api/rooms", map[string]any{"name": "Sprint 1", "ownerId": owner.ID, "researchMode": true}, &room)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, []string{owner.ID}, room.Participants)
	assert.Equal(t, model.DefaultReliance, room.Reliance)

	var joined model.Room
	require.Equal(t, http.StatusOK, doJSON(t, "PUT", srv.URL+"/api/rooms/"+room.ID+"/join", map[string]string{"userId": alice.ID}, &joined))
	assert.Equal(t, []string{owner.ID, alice.ID}, joined.Participants)

	var rooms []model.Room
	require.Equal(t, http.StatusOK, doJSON(t, "GET", srv.URL+"/api/rooms", nil, &rooms))
	assert.Len(t, rooms, 1)

	var errResp map[string]string
	assert.Equal(t, http.StatusBadRequest, doJSON(t, "PUT", srv.URL+"/api/rooms/"+room.ID+"/leave", map[string]string{"userId": owner.ID}, &errResp))
	assert.Equal(t, http.StatusForbidden, doJSON(t, "DELETE", srv.URL+"/api/rooms/"+room.ID+"?userId="+alice.ID, nil, &errResp))

	var msg map[string]string
	require.Equal(t, http.StatusOK, doJSON(t, "DELETE", srv.URL+"/api/rooms/"+room.ID+"?userId="+owner.ID, nil, &msg))
	assert.Equal(t, "Room deleted", msg["message"])
	assert.Equal(t, http.StatusNotFound, doJSON(t, "GET", srv.URL+"/api/rooms/"+room.ID, nil, &errResp))
}

func TestREST_Validation(t *testing.T) {
	srv := newTestApp(t)
	var errResp map[string]string

	assert.Equal(t, http.StatusBadRequest, doJSON(t, "POST", srv.URL+"/api/users", map[string]string{"name": "  "}, &errResp))
	assert.Equal(t, http.StatusBadRequest, doJSON(t, "POST", srv.URL+"/api/rooms", map[string]string{"name": "x"}, &errResp))
	assert.Equal(t, http.StatusNotFound, doJSON(t, "POST", srv.URL+"/api/rooms", map[string]string{"name": "x", "ownerId": "nobody"}, &errResp))
	assert.Equal(t, http.StatusNotFound, doJSON(t, "GET", srv.URL+"/api/rooms/missing/messages", nil, &errResp))

	req, err := http.NewRequest("OPTIONS", srv.URL+"/api/rooms", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = http.Get(srv.URL + "/api-docs/doc.json")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestWS_RoundFlowOverSocket(t *testing.T) {
	srv := newTestApp(t)
	owner := createUser(t, srv, "Olga")
	alice := createUser(t, srv, "Alice")

	var room model.Room
	require.Equal(t, http.StatusCreated, doJSON(t, "POST", srv.URL+"/api/rooms", map[string]any{"name": "Sprint 1", "ownerId": owner.ID}, &room))
	require.Equal(t, http.StatusOK, doJSON(t, "PUT", srv.URL+"/api/rooms/"+room.ID+"/join", map[string]string{"userId": alice.ID}, nil))

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rooms/" + room.ID + "?userId=" + owner.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() model.Event {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var ev model.Event
		require.NoError(t, conn.ReadJSON(&ev))
		return ev
	}
	send := func(action model.Action, payload any) {
		t.Helper()
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		require.NoError(t, conn.WriteJSON(model.Inbound{Action: action, Payload: raw}))
	}

	assert.Equal(t, model.EventRoomUpdate, read().Type)

	send(model.ActionStartRound, map[string]string{"userId": owner.ID, "task": "Checkout flow"})
	ev := read()
	require.Equal(t, model.EventRoundUpdate, ev.Type)
	assert.Equal(t, model.StatusCognitiveLoad, ev.Round.Status)

	send(model.ActionCognitiveLoad, map[string]any{"userId": alice.ID, "load": 6})
	ev = read()
	require.NotNil(t, ev.Round.AverageCognitiveLoad)
	assert.Equal(t, 6.0, *ev.Round.AverageCognitiveLoad)

	send(model.ActionNextPhase, map[string]string{"userId": owner.ID})
	ev = read()
	assert.True(t, ev.Round.LoadingRecommendation)
	assert.Equal(t, model.StatusCognitiveLoad, ev.Round.Status)
	ev = read()
	assert.False(t, ev.Round.LoadingRecommendation)
	assert.Equal(t, model.StatusVoting, ev.Round.Status)

	send(model.ActionSendMessage, map[string]string{"userId": alice.ID, "text": "looks like a 5"})
	ev = read()
	require.Equal(t, model.EventChatMessage, ev.Type)
	assert.Equal(t, "Alice", ev.Message.UserName)

	var history []model.Message
	require.Equal(t, http.StatusOK, doJSON(t, "GET", srv.URL+"/api/rooms/"+room.ID+"/messages", nil, &history))
	require.Len(t, history, 1)
	assert.Equal(t, "looks like a 5", history[0].Text)
}

func dialRoom(t *testing.T, srv *httptest.Server, roomID, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/rooms/" + roomID + "?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readRaw(t *testing.T, conn *websocket.Conn, timeout time.Duration) ([]byte, error) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := conn.ReadMessage()
	return data, err
}

func TestWS_OneVoteReachesEverySocketOnce(t *testing.T) {
	srv := newTestApp(t)
	owner := createUser(t, srv, "Olga")
	alice := createUser(t, srv, "Alice")
	bob := createUser(t, srv, "Bob")

	var room model.Room
	require.Equal(t, http.StatusCreated, doJSON(t, "POST", srv.URL+"/api/rooms", map[string]any{"name": "Sprint 2", "ownerId": owner.ID}, &room))
	for _, u := range []model.User{alice, bob} {
		require.Equal(t, http.StatusOK, doJSON(t, "PUT", srv.URL+"/api/rooms/"+room.ID+"/join", map[string]string{"userId": u.ID}, nil))
	}

	ownerConn := dialRoom(t, srv, room.ID, owner.ID)
	aliceConn := dialRoom(t, srv, room.ID, alice.ID)
	bobConn := dialRoom(t, srv, room.ID, bob.ID)
	conns := []*websocket.Conn{ownerConn, aliceConn, bobConn}

	// drain skips n events on every socket
	drain := func(n int) {
		t.Helper()
		for _, c := range conns {
			for i := 0; i < n; i++ {
				_, err := readRaw(t, c, 2*time.Second)
				require.NoError(t, err)
			}
		}
	}
	send := func(conn *websocket.Conn, action model.Action, payload any) {
		t.Helper()
		raw, err := json.Marshal(payload)
		require.NoError(t, err)
		require.NoError(t, conn.WriteJSON(model.Inbound{Action: action, Payload: raw}))
	}

	drain(1) // room_update on connect
	send(ownerConn, model.ActionStartRound, map[string]string{"userId": owner.ID, "task": "Checkout flow"})
	drain(1)
	send(ownerConn, model.ActionNextPhase, map[string]string{"userId": owner.ID})
	drain(2) // loading, then voting

	send(bobConn, model.ActionVote, map[string]any{"userId": bob.ID, "storyPoints": 5})

	ownerData, err := readRaw(t, ownerConn, 2*time.Second)
	require.NoError(t, err)
	aliceData, err := readRaw(t, aliceConn, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, ownerData, aliceData)

	var ev model.Event
	require.NoError(t, json.Unmarshal(ownerData, &ev))
	assert.Equal(t, model.EventRoundUpdate, ev.Type)
	assert.Equal(t, map[string]int{bob.ID: 5}, ev.Round.Votes)

	for _, c := range []*websocket.Conn{ownerConn, aliceConn} {
		_, err := readRaw(t, c, 200*time.Millisecond)
		assert.Error(t, err, "socket received a second event for one vote")
	}
}
