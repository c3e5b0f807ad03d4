package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kinglands/rooms/internal/v1/config"
	"github.com/kinglands/rooms/internal/v1/directory"
	"github.com/kinglands/rooms/internal/v1/manager"
	"github.com/kinglands/rooms/internal/v1/room"
)

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := directory.NewStore(mr.Addr(), "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	codec, err := directory.NewKeyCodec(config.DefaultAlphabet)
	require.NoError(t, err)
	mgr := manager.New("replica-1", room.Settings{
		KingPower:   12,
		CastlePower: 12,
		ColorsCount: 6,
	},
		directory.NewRooms(store, codec, time.Hour),
		directory.NewReplicas(store, time.Hour),
		directory.NewLobby(store, time.Hour),
	)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(mgr).RegisterRoutes(router.Group("/api/v1"))
	return router
}

const validSeedJSON = `{
	"map": [
		[{"type":"field"},{"type":"field"},{"type":"field"},{"type":"spawn"}],
		[{"type":"field"},{"type":"field"},{"type":"field"},{"type":"field"}],
		[{"type":"field"},{"type":"field"},{"type":"field"},{"type":"field"}],
		[{"type":"spawn"},{"type":"field"},{"type":"field"},{"type":"field"}]
	],
	"meta": {
		"version": 1,
		"points_of_interest": {
			"spawn": [
				{"row":0,"col":3,"type":"Point"},
				{"row":3,"col":0,"type":"Point"}
			]
		}
	}
}`

func doRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateRoom(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/rooms/", validSeedJSON)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp struct {
		RoomKey string `json:"room_key"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RoomKey)
}

func TestCreateRoomInvalidSeed(t *testing.T) {
	router := newTestRouter(t)

	// Structurally valid JSON, but only one spawn point.
	var seed map[string]any
	require.NoError(t, json.Unmarshal([]byte(validSeedJSON), &seed))
	meta := seed["meta"].(map[string]any)
	meta["points_of_interest"] = map[string]any{
		"spawn": []any{map[string]any{"row": 0, "col": 3}},
	}
	body, err := json.Marshal(seed)
	require.NoError(t, err)

	w := doRequest(router, http.MethodPost, "/api/v1/rooms/", string(body))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestCreateRoomMalformedBody(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodPost, "/api/v1/rooms/", `{"map": "nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListRooms(t *testing.T) {
	router := newTestRouter(t)

	w := doRequest(router, http.MethodGet, "/api/v1/rooms/", "")
	require.Equal(t, http.StatusOK, w.Code)

	var rooms []directory.LobbyRoom
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rooms))
	assert.Empty(t, rooms)
}

func TestListRoomsLimitValidation(t *testing.T) {
	router := newTestRouter(t)

	for _, limit := range []string{"0", "-1", "51", "abc"} {
		w := doRequest(router, http.MethodGet, "/api/v1/rooms/?limit="+limit, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, "limit=%s", limit)
	}

	w := doRequest(router, http.MethodGet, "/api/v1/rooms/?limit=10", "")
	assert.Equal(t, http.StatusOK, w.Code)
}
