package integration

import (
	"bufio"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/kasuganosora/gridpath/game/grid"
	"github.com/kasuganosora/gridpath/game/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth(t *testing.T) {
	ts := NewTestServer(t, world.RoomConfig{})
	var resp map[string]any
	code := ts.Do(t, http.MethodGet, "/health", nil, &resp)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp["status"])
}

func TestPathFlow_RESTSubmitWSEvent(t *testing.T) {
	ts := NewTestServer(t, world.RoomConfig{})
	mapID := ts.CreateMap(t,
		".....",
		".TTT.",
		".T.T.",
		".T...",
		".....",
	)

	ws := ts.DialWS(t)
	ws.Send(t, "subscribe", map[string]string{"map_id": mapID})
	ws.Recv(t, "subscribed")

	reqID := ts.Submit(t, mapID, map[string]any{
		"profile": "warrior",
		"start":   grid.Point{X: 0, Y: 0},
		"goal":    grid.Point{X: 2, Y: 2},
	})

	var ev world.CompletionEvent
	require.NoError(t, json.Unmarshal(ws.Recv(t, "path_event"), &ev))
	assert.Equal(t, reqID, ev.RequestID)
	assert.True(t, ev.Found)
	require.NotEmpty(t, ev.Path)
	assert.Equal(t, grid.Point{X: 0, Y: 0}, ev.Path[0])
	assert.Equal(t, grid.Point{X: 2, Y: 2}, ev.Path[len(ev.Path)-1])

	st := ts.AwaitStatus(t, reqID, world.StatusFound)
	assert.Equal(t, ev.Steps, st.Steps)
	assert.InDelta(t, ev.Cost, st.Cost, 1e-9)
}

func TestPathFlow_WSSubmit(t *testing.T) {
	ts := NewTestServer(t, world.RoomConfig{})
	mapID := ts.CreateMap(t, "...", "...", "...")

	ws := ts.DialWS(t)
	ws.Send(t, "path_request", map[string]any{
		"ref":    "a",
		"map_id": mapID,
		"start":  grid.Point{X: 0, Y: 0},
		"goal":   grid.Point{X: 0, Y: 2},
	})
	var ack struct {
		RequestID string `json:"request_id"`
	}
	require.NoError(t, json.Unmarshal(ws.Recv(t, "path_queued"), &ack))

	var res struct {
		Ref       string `json:"ref"`
		RequestID string `json:"request_id"`
		Steps     int    `json:"steps"`
	}
	require.NoError(t, json.Unmarshal(ws.Recv(t, "path_result"), &res))
	assert.Equal(t, "a", res.Ref)
	assert.Equal(t, ack.RequestID, res.RequestID)
	assert.Equal(t, 2, res.Steps)
}

func TestPathFlow_RebindWithdrawsQueued(t *testing.T) {
	// The path loop never ticks, so submitted requests stay queued.
	ts := NewTestServer(t, world.RoomConfig{TickInterval: time.Hour})
	mapID := ts.CreateMap(t, "...", "...", "...")

	first := ts.Submit(t, mapID, map[string]any{"start": grid.Point{}, "goal": grid.Point{X: 2, Y: 2}})
	second := ts.Submit(t, mapID, map[string]any{"start": grid.Point{}, "goal": grid.Point{X: 1, Y: 2}})
	ts.AwaitStatus(t, first, world.StatusQueued)

	code := ts.Do(t, http.MethodPost, "/api/maps/"+mapID+"/rebind",
		map[string]any{"rows": []string{"....", "....", "....", "...."}}, nil)
	require.Equal(t, http.StatusOK, code)

	ts.AwaitStatus(t, first, world.StatusWithdrawn)
	ts.AwaitStatus(t, second, world.StatusWithdrawn)

	var status world.RoomStatus
	ts.Do(t, http.MethodGet, "/api/maps/"+mapID+"/status", nil, &status)
	assert.Equal(t, 4, status.Size)
	assert.Equal(t, 0, status.QueueDepth)
	assert.Equal(t, uint64(2), status.Stats.Withdrawn)
}

func TestPathFlow_SSE(t *testing.T) {
	ts := NewTestServer(t, world.RoomConfig{})
	mapID := ts.CreateMap(t, "...", "...", "...")

	resp, err := http.Get(ts.URL + "/sse?map_id=" + mapID)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			default:
			}
		}
	}()
	await := func(prefix string) string {
		t.Helper()
		timeout := time.After(3 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				require.True(t, ok, "stream closed waiting for %q", prefix)
				if strings.HasPrefix(line, prefix) {
					return strings.TrimPrefix(line, prefix)
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %q", prefix)
			}
		}
	}

	assert.Equal(t, "connected", await("event: "))
	reqID := ts.Submit(t, mapID, map[string]any{"start": grid.Point{}, "goal": grid.Point{X: 2, Y: 0}})
	assert.Equal(t, "path", await("event: "))

	var ev world.CompletionEvent
	require.NoError(t, json.Unmarshal([]byte(await("data: ")), &ev))
	assert.Equal(t, reqID, ev.RequestID)
}

func TestAdminAndMetrics(t *testing.T) {
	ts := NewTestServer(t, world.RoomConfig{})
	mapID := ts.CreateMap(t, "..", "..")
	reqID := ts.Submit(t, mapID, map[string]any{"start": grid.Point{}, "goal": grid.Point{X: 1, Y: 1}})
	ts.AwaitStatus(t, reqID, world.StatusFound)

	code := ts.Do(t, http.MethodPost, "/api/maps/"+mapID+"/paths",
		map[string]any{"start": grid.Point{}, "goal": grid.Point{X: 5, Y: 5}}, nil)
	require.Equal(t, http.StatusBadRequest, code)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	text := string(body)
	assert.Contains(t, text, `gridpath_searches_total{map_id="`+mapID+`",outcome="found"} 1`)
	assert.Contains(t, text, `gridpath_requests_rejected_total{reason="out_of_bounds"} 1`)
	assert.Contains(t, text, "gridpath_active_rooms 1")

	var admin struct {
		ActiveRooms int `json:"active_rooms"`
	}
	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodGet, "/api/admin/metrics", nil, &admin))
	assert.Equal(t, 1, admin.ActiveRooms)

	require.Equal(t, http.StatusOK, ts.Do(t, http.MethodPost, "/api/admin/rooms/"+mapID+"/stop", nil, nil))
	assert.Equal(t, 0, ts.WM.ActiveRoomCount())
}
