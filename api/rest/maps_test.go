package rest_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/kasuganosora/gridpath/game/world"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapResp struct {
	Map struct {
		ID      string             `json:"id"`
		Name    string             `json:"name"`
		Size    int                `json:"size"`
		Seed    uint64             `json:"seed"`
		Version int                `json:"version"`
		Rows    []string           `json:"rows"`
		Costs   map[string]float64 `json:"costs"`
	} `json:"map"`
}

func TestCreateMap_Literal(t *testing.T) {
	s := newServer(t)
	id := s.createMap(t, "..T", ".=.", "...")

	room := s.wm.Get(id)
	require.NotNil(t, room, "room starts on create")
	assert.Equal(t, 3, room.Grid().Size())

	w := s.do(http.MethodGet, "/api/maps/"+id, "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp mapResp
	decode(t, w, &resp)
	assert.Equal(t, []string{"..T", ".=.", "..."}, resp.Map.Rows)
	assert.Equal(t, 1, resp.Map.Version)
	assert.Equal(t, 0.25, resp.Map.Costs["road"])
}

func TestCreateMap_Generated(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodPost, "/api/maps", `{"name":"gen","size":32,"seed":5}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var first mapResp
	decode(t, w, &first)
	assert.Equal(t, 32, first.Map.Size)
	assert.Equal(t, uint64(5), first.Map.Seed)
	assert.Empty(t, first.Map.Rows)

	w = s.do(http.MethodPost, "/api/maps", `{"name":"gen2","size":32,"seed":5}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var second mapResp
	decode(t, w, &second)

	a, _, err := s.store.Load(context.Background(), first.Map.ID)
	require.NoError(t, err)
	b, _, err := s.store.Load(context.Background(), second.Map.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Rows(), b.Rows(), "same seed, same tiles")
}

func TestCreateMap_Invalid(t *testing.T) {
	s := newServer(t)
	cases := map[string]string{
		"missing name":  `{"rows":[".."]}`,
		"ragged rows":   `{"name":"x","rows":["..","."]}`,
		"unknown glyph": `{"name":"x","rows":["?"]}`,
		"too large":     `{"name":"x","size":65}`,
		"bad costs":     `{"name":"x","size":4,"costs":{"grass":0}}`,
		"bad terrain":   `{"name":"x","size":4,"costs":{"lava":1}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := s.do(http.MethodPost, "/api/maps", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
		})
	}
	assert.Equal(t, 0, s.wm.ActiveRoomCount())
}

func TestListMaps(t *testing.T) {
	s := newServer(t)
	s.createMap(t, "..", "..")
	s.createMap(t, "...", "...", "...")

	w := s.do(http.MethodGet, "/api/maps", "")
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Maps []struct {
			ID   string `json:"id"`
			Size int    `json:"size"`
		} `json:"maps"`
	}
	decode(t, w, &resp)
	assert.Len(t, resp.Maps, 2)
}

func TestMapDetail_NotFound(t *testing.T) {
	s := newServer(t)
	w := s.do(http.MethodGet, "/api/maps/nope", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRebind_Immediate(t *testing.T) {
	s := newServer(t)
	id := s.createMap(t, "..", "..")

	w := s.do(http.MethodPost, "/api/maps/"+id+"/rebind", `{"rows":["...","=T.","..."]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp mapResp
	decode(t, w, &resp)
	assert.Equal(t, 2, resp.Map.Version)
	assert.Equal(t, 3, resp.Map.Size)
	assert.Equal(t, 3, s.wm.Get(id).Grid().Size(), "live room rebinds")
}

func TestRebind_Delayed(t *testing.T) {
	s := newServer(t)
	id := s.createMap(t, "..", "..")

	w := s.do(http.MethodPost, "/api/maps/"+id+"/rebind", `{"size":8,"seed":1,"delay_ms":20}`)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Equal(t, 2, s.wm.Get(id).Grid().Size(), "nothing changes before the delay")

	require.Eventually(t, func() bool {
		return s.wm.Get(id).Grid().Size() == 8
	}, 2*time.Second, 5*time.Millisecond)
	_, rec, err := s.store.Load(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Version)
}

func TestRebind_Errors(t *testing.T) {
	s := newServer(t)
	id := s.createMap(t, "..", "..")

	w := s.do(http.MethodPost, "/api/maps/nope/rebind", `{"rows":[".."]}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/api/maps/"+id+"/rebind", `{"rows":["x"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/api/maps/"+id+"/rebind", `{"size":4,"delay_ms":-1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMapStatus(t *testing.T) {
	s := newServer(t)
	id := s.createMap(t, "...", "...", "...")

	w := s.do(http.MethodGet, "/api/maps/"+id+"/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	var st world.RoomStatus
	decode(t, w, &st)
	assert.True(t, st.Ready)
	assert.Equal(t, "idle", st.State)
	assert.Equal(t, 3, st.Size)

	s.wm.Destroy(id)
	w = s.do(http.MethodGet, "/api/maps/"+id+"/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &st)
	assert.False(t, st.Ready)
	assert.Equal(t, "stopped", st.State)
	assert.Equal(t, 3, st.Size)

	w = s.do(http.MethodGet, "/api/maps/nope/status", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
