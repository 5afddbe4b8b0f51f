package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/events"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/storage"
)

type testServer struct {
	*httptest.Server
	manager *BattleManager
}

func newTestServer(t *testing.T, cfg ManagerConfig, hub *WebSocketHub) *testServer {
	t.Helper()
	cfg.Logger = zerolog.Nop()
	if hub != nil {
		cfg.Subscribers = append(cfg.Subscribers, hub)
	}
	m := NewBattleManager(cfg)
	router := NewRouter(RouterConfig{
		Manager:         m,
		Hub:             hub,
		RateLimitConfig: &RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		Registry:        prometheus.NewRegistry(),
		Logger:          zerolog.Nop(),
		DisableLogging:  true,
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return &testServer{Server: ts, manager: m}
}

func fileStore(t *testing.T) storage.Store {
	t.Helper()
	fs, err := storage.NewFileStore(t.TempDir(), zerolog.Nop())
	require.NoError(t, err)
	return fs
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func standardRequest() CreateRequest {
	return CreateRequest{
		Attacker:     PlayerSpec{ID: 1, Name: "red", Color: "red"},
		Defender:     PlayerSpec{ID: 2, Name: "blue", Color: "blue"},
		AttackerArmy: []ArmyEntry{{Type: "spearman", Count: 2}},
		DefenderArmy: []ArmyEntry{{Type: "spearman", Count: 1}},
	}
}

func (ts *testServer) create(t *testing.T, req CreateRequest) game.Snapshot {
	t.Helper()
	resp, body := ts.do(t, http.MethodPost, "/battles", req)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var snap game.Snapshot
	require.NoError(t, json.Unmarshal(body, &snap))
	return snap
}

func tileAt(s game.Snapshot, x, y int) game.TileView {
	return s.Tiles[y*s.Width+x]
}

func TestCreateBattle(t *testing.T) {
	ts := newTestServer(t, ManagerConfig{}, nil)
	snap := ts.create(t, standardRequest())

	assert.NotEmpty(t, snap.BattleID)
	assert.Equal(t, 8, snap.Width)
	assert.Equal(t, 8, snap.Height)
	assert.Equal(t, 1, snap.ActivePlayer)
	assert.Equal(t, 1, snap.Round)
	require.Len(t, snap.Tiles, 64)

	require.NotNil(t, tileAt(snap, 0, 0).Unit)
	require.NotNil(t, tileAt(snap, 1, 0).Unit)
	require.NotNil(t, tileAt(snap, 7, 7).Unit)
	assert.Equal(t, 1, tileAt(snap, 0, 0).Unit.Owner)
	assert.Equal(t, 2, tileAt(snap, 7, 7).Unit.Owner)
	assert.Nil(t, tileAt(snap, 2, 0).Unit)

	resp, body := ts.do(t, http.MethodGet, "/battles", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var list struct {
		Battles []string `json:"battles"`
		Count   int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, []string{snap.BattleID}, list.Battles)
	assert.Equal(t, 1, list.Count)
}

func TestCreateBattle_Invalid(t *testing.T) {
	ts := newTestServer(t, ManagerConfig{}, nil)

	sameName := standardRequest()
	sameName.Defender.Name = "red"

	unknownUnit := standardRequest()
	unknownUnit.DefenderArmy = []ArmyEntry{{Type: "dragon", Count: 1}}

	zeroCount := standardRequest()
	zeroCount.AttackerArmy = []ArmyEntry{{Type: "spearman", Count: 0}}

	tooMany := standardRequest()
	tooMany.Width, tooMany.Height = 1, 2
	tooMany.AttackerArmy = []ArmyEntry{{Type: "spearman", Count: 2}}

	tests := []struct {
		name string
		req  CreateRequest
	}{
		{"same player names", sameName},
		{"unknown unit", unknownUnit},
		{"zero count", zeroCount},
		{"army does not fit", tooMany},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, http.MethodPost, "/battles", tt.req)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode, string(body))
		})
	}

	resp, _ := ts.do(t, http.MethodPost, "/battles", map[string]interface{}{"surprise": true})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, 0, ts.manager.Count())
}

func TestCreateBattle_Limit(t *testing.T) {
	ts := newTestServer(t, ManagerConfig{MaxBattles: 1}, nil)
	ts.create(t, standardRequest())

	resp, _ := ts.do(t, http.MethodPost, "/battles", standardRequest())
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestGetAndDeleteBattle(t *testing.T) {
	ts := newTestServer(t, ManagerConfig{}, nil)
	snap := ts.create(t, standardRequest())

	resp, body := ts.do(t, http.MethodGet, "/battles/"+snap.BattleID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got game.Snapshot
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, snap.BattleID, got.BattleID)

	resp, _ = ts.do(t, http.MethodDelete, "/battles/"+snap.BattleID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = ts.do(t, http.MethodGet, "/battles/"+snap.BattleID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodDelete, "/battles/"+snap.BattleID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSelectClickEndTurn(t *testing.T) {
	ts := newTestServer(t, ManagerConfig{}, nil)
	id := ts.create(t, standardRequest()).BattleID
	base := "/battles/" + id

	resp, body := ts.do(t, http.MethodPost, base+"/select", PositionRequest{Player: 1, X: 0, Y: 0})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var action ActionResponse
	require.NoError(t, json.Unmarshal(body, &action))
	require.NotNil(t, action.State.Selected)
	assert.Equal(t, [2]int{0, 0}, *action.State.Selected)
	assert.True(t, tileAt(action.State, 0, 1).OverlayWalk)

	resp, body = ts.do(t, http.MethodPost, base+"/click", PositionRequest{Player: 1, X: 0, Y: 2})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	action = ActionResponse{}
	require.NoError(t, json.Unmarshal(body, &action))
	assert.Equal(t, "moved", action.Outcome)
	assert.Nil(t, tileAt(action.State, 0, 0).Unit)
	require.NotNil(t, tileAt(action.State, 0, 2).Unit)
	assert.Equal(t, 1, tileAt(action.State, 0, 2).Unit.MovesLeft)

	resp, _ = ts.do(t, http.MethodPost, base+"/end_turn", EndTurnRequest{Player: 2})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, body = ts.do(t, http.MethodPost, base+"/end_turn", EndTurnRequest{Player: 1})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	action = ActionResponse{}
	require.NoError(t, json.Unmarshal(body, &action))
	assert.Equal(t, 2, action.State.ActivePlayer)
}

func TestCommandErrors(t *testing.T) {
	ts := newTestServer(t, ManagerConfig{}, nil)
	id := ts.create(t, standardRequest()).BattleID
	base := "/battles/" + id

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
	}{
		{"wrong player", base + "/select", PositionRequest{Player: 2, X: 7, Y: 7}, http.StatusConflict},
		{"empty tile", base + "/select", PositionRequest{Player: 1, X: 4, Y: 4}, http.StatusUnprocessableEntity},
		{"click wrong player", base + "/click", PositionRequest{Player: 2, X: 4, Y: 4}, http.StatusConflict},
		{"missing battle", "/battles/nope/select", PositionRequest{Player: 1}, http.StatusNotFound},
		{"bad body", base + "/select", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))

			var e errorResponse
			require.NoError(t, json.Unmarshal(body, &e))
			assert.NotEmpty(t, e.Error)
		})
	}
}

func TestCommandBatch(t *testing.T) {
	ts := newTestServer(t, ManagerConfig{}, nil)
	id := ts.create(t, standardRequest()).BattleID
	path := "/battles/" + id + "/commands"

	resp, body := ts.do(t, http.MethodPost, path, CommandsRequest{Commands: []CommandRequest{
		{Type: "end_turn", Player: 2},
		{Type: "select", Player: 1, X: 1, Y: 0},
		{Type: "click", Player: 1, X: 1, Y: 1},
		{Type: "end_turn", Player: 1},
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var out CommandsResponse
	require.NoError(t, json.Unmarshal(body, &out))
	require.Len(t, out.Results, 4)
	assert.False(t, out.Results[0].Applied)
	assert.NotEmpty(t, out.Results[0].Error)
	for _, r := range out.Results[1:] {
		assert.True(t, r.Applied, "%s: %s", r.Type, r.Error)
	}
	assert.Equal(t, 2, out.State.ActivePlayer)
	assert.NotNil(t, tileAt(out.State, 1, 1).Unit)

	resp, _ = ts.do(t, http.MethodPost, path, CommandsRequest{Commands: []CommandRequest{{Type: "attack", Player: 2}}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReachable(t *testing.T) {
	ts := newTestServer(t, ManagerConfig{}, nil)
	id := ts.create(t, standardRequest()).BattleID

	resp, body := ts.do(t, http.MethodGet, "/battles/"+id+"/reachable?x=0&y=0", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var out ReachableResponse
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, [2]int{0, 0}, out.From)
	assert.Contains(t, out.Tiles, [2]int{0, 3})
	assert.NotContains(t, out.Tiles, [2]int{1, 0}, "occupied tiles are not reachable")
	assert.NotContains(t, out.Tiles, [2]int{0, 4})

	resp, _ = ts.do(t, http.MethodGet, "/battles/"+id+"/reachable?x=0", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp, _ = ts.do(t, http.MethodGet, "/battles/"+id+"/reachable?x=4&y=4", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSaveAndResume(t *testing.T) {
	ts := newTestServer(t, ManagerConfig{Store: fileStore(t)}, nil)
	req := standardRequest()
	req.DefenderArmy = []ArmyEntry{{Type: "archer.2", Count: 1}}
	id := ts.create(t, req).BattleID

	resp, body := ts.do(t, http.MethodPost, "/battles/"+id+"/save", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var saved BattleSummary
	require.NoError(t, json.Unmarshal(body, &saved))
	assert.Equal(t, id, saved.BattleID)
	assert.Equal(t, map[string]int{"spearman": 2, "archer": 1}, saved.Units)
	assert.Positive(t, saved.Bytes)

	resp, body = ts.do(t, http.MethodGet, "/battles/"+id+"/save", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var loaded BattleSummary
	require.NoError(t, json.Unmarshal(body, &loaded))
	assert.Equal(t, saved, loaded)

	resume := standardRequest()
	resume.ResumeFrom = id
	snap := ts.create(t, resume)
	assert.NotEqual(t, id, snap.BattleID)
	require.NotNil(t, tileAt(snap, 7, 7).Unit)
	assert.Equal(t, "archer", tileAt(snap, 7, 7).Unit.Type)
	assert.Equal(t, 2, tileAt(snap, 7, 7).Unit.Tier)

	resume.ResumeFrom = "missing"
	resp, _ = ts.do(t, http.MethodPost, "/battles", resume)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSave_NoStore(t *testing.T) {
	ts := newTestServer(t, ManagerConfig{}, nil)
	id := ts.create(t, standardRequest()).BattleID

	resp, _ := ts.do(t, http.MethodGet, "/battles/"+id+"/save", nil)
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, ManagerConfig{}, nil)
	ts.create(t, standardRequest())

	resp, body := ts.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"status":"ok"`)

	resp, body = ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text := string(body)
	assert.Contains(t, text, "tbc_battles_active 1")
	assert.Contains(t, text, `endpoint="/battles`)
}

func TestRateLimiter(t *testing.T) {
	rl := NewIPRateLimiter(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	rejected := 0
	rl.onReject = func() { rejected++ }

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"), "buckets are per ip")

	assert.Equal(t, map[string]uint64{"allowed": 3, "rejected": 1}, rl.GetStats())
	assert.Equal(t, 1, rejected)

	rl.cleanup(time.Now().Add(time.Hour))
	assert.True(t, rl.Allow("10.0.0.1"), "cleanup forgets stale buckets")

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Real-IP", "10.0.0.1")
	statuses := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, statuses)
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"forwarded chain", map[string]string{"X-Forwarded-For": "1.2.3.4, 10.0.0.1"}, "9.9.9.9:80", "1.2.3.4"},
		{"real ip", map[string]string{"X-Real-IP": " 5.6.7.8 "}, "9.9.9.9:80", "5.6.7.8"},
		{"remote addr", nil, "9.9.9.9:80", "9.9.9.9"},
		{"remote without port", nil, "9.9.9.9", "9.9.9.9"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, GetClientIP(req))
		})
	}
}

func TestCheckOrigin(t *testing.T) {
	hub := NewWebSocketHub([]string{"http://localhost:*", "https://game.example"}, zerolog.Nop())
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"https://game.example", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		assert.Equal(t, tt.want, hub.checkOrigin(req), tt.origin)
	}
}

func TestWebSocketFeed(t *testing.T) {
	hub := NewWebSocketHub(nil, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	ts := newTestServer(t, ManagerConfig{}, hub)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	snap := ts.create(t, standardRequest())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	seen := map[string]bool{}
	for !seen[events.TypeBattleStarted] {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg struct {
			Event    string `json:"event"`
			BattleID string `json:"battle_id"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, snap.BattleID, msg.BattleID)
		seen[msg.Event] = true
	}

	cancel()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestManager_SetRules(t *testing.T) {
	m := NewBattleManager(ManagerConfig{Logger: zerolog.Nop()})
	ctx := context.Background()

	m.SetRules(&core.TerrainTable{Costs: map[core.Terrain]int{core.TerrainPlains: 3}})

	snap, err := m.Create(ctx, standardRequest())
	require.NoError(t, err)
	tiles, err := m.Reachable(snap.BattleID, core.Coordinate{X: 0, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, []core.Coordinate{{X: 0, Y: 1}}, tiles)

	require.NoError(t, m.Delete(snap.BattleID))
	assert.ErrorIs(t, m.Delete(snap.BattleID), ErrBattleNotFound)
	assert.Empty(t, m.IDs())
}
