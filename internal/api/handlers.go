package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/core"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/game/processor"
	"github.com/mitchelldurbincs/TacticsBattleCore/internal/storage"
)

// maxBodyBytes caps request bodies; command batches are small.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

// PositionRequest is the body of select and click.
type PositionRequest struct {
	Player int `json:"player"`
	X      int `json:"x"`
	Y      int `json:"y"`
}

func (p PositionRequest) pos() core.Coordinate { return core.Coordinate{X: p.X, Y: p.Y} }

type EndTurnRequest struct {
	Player int `json:"player"`
}

// CommandsRequest is a batch applied in order.
type CommandsRequest struct {
	Commands []CommandRequest `json:"commands"`
}

type CommandRequest struct {
	Type   string `json:"type"`
	Player int    `json:"player"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
}

type CommandResult struct {
	Type    string `json:"type"`
	Player  int    `json:"player"`
	Applied bool   `json:"applied"`
	Error   string `json:"error,omitempty"`
}

type ActionResponse struct {
	Outcome string        `json:"outcome,omitempty"`
	State   game.Snapshot `json:"state"`
}

type CommandsResponse struct {
	Results []CommandResult `json:"results"`
	State   game.Snapshot   `json:"state"`
}

type ReachableResponse struct {
	From  [2]int   `json:"from"`
	Tiles [][2]int `json:"tiles"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrBattleNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrTooManyBattles):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrBadRequest), errors.Is(err, processor.ErrUnknownCommand),
		errors.Is(err, storage.ErrInvalidID), errors.Is(err, core.ErrOutOfBounds):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotYourTurn), errors.Is(err, core.ErrBattleOver):
		return http.StatusConflict
	case errors.Is(err, storage.ErrNotConfigured):
		return http.StatusNotImplemented
	case errors.Is(err, core.ErrInvalidAttack), errors.Is(err, core.ErrNoSelection),
		errors.Is(err, game.ErrClickRejected), errors.Is(err, core.ErrUnreachable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	return http.StatusInternalServerError
}

func (h *routerHandlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeError(w, err.Error(), status)
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func (h *routerHandlers) handleCreateBattle(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if !decode(w, r, &req) {
		return
	}
	snap, err := h.manager.Create(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (h *routerHandlers) handleListBattles(w http.ResponseWriter, r *http.Request) {
	ids := h.manager.IDs()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"battles": ids,
		"count":   len(ids),
	})
}

func (h *routerHandlers) handleGetBattle(w http.ResponseWriter, r *http.Request) {
	snap, err := h.manager.Snapshot(chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *routerHandlers) handleDeleteBattle(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondAction writes the outcome together with the post-command state.
func (h *routerHandlers) respondAction(w http.ResponseWriter, r *http.Request, id, outcome string, err error) {
	if err != nil {
		h.fail(w, r, err)
		return
	}
	snap, err := h.manager.Snapshot(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActionResponse{Outcome: outcome, State: snap})
}

func (h *routerHandlers) single(ctx context.Context, id string, cmd processor.Command) error {
	_, err := h.manager.Process(ctx, id, []processor.Command{cmd})
	return err
}

func (h *routerHandlers) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if !decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	err := h.single(r.Context(), id, processor.Command{
		Type:   processor.CommandSelect,
		Player: core.PlayerID(req.Player),
		Pos:    req.pos(),
	})
	h.respondAction(w, r, id, "selected", err)
}

func (h *routerHandlers) handleClick(w http.ResponseWriter, r *http.Request) {
	var req PositionRequest
	if !decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	outcome, err := h.manager.Click(id, core.PlayerID(req.Player), req.pos())
	h.respondAction(w, r, id, outcome.String(), err)
}

func (h *routerHandlers) handleEndTurn(w http.ResponseWriter, r *http.Request) {
	var req EndTurnRequest
	if !decode(w, r, &req) {
		return
	}
	id := chi.URLParam(r, "id")
	err := h.single(r.Context(), id, processor.Command{
		Type:   processor.CommandEndTurn,
		Player: core.PlayerID(req.Player),
	})
	h.respondAction(w, r, id, "turn_ended", err)
}

// handleCommands applies a batch. Refused commands are reported per result
// and do not fail the request.
func (h *routerHandlers) handleCommands(w http.ResponseWriter, r *http.Request) {
	var req CommandsRequest
	if !decode(w, r, &req) {
		return
	}
	cmds := make([]processor.Command, 0, len(req.Commands))
	for i, c := range req.Commands {
		ct, err := processor.ParseCommandType(c.Type)
		if err != nil {
			writeError(w, "command "+strconv.Itoa(i)+": "+err.Error(), http.StatusBadRequest)
			return
		}
		cmds = append(cmds, processor.Command{
			Type:   ct,
			Player: core.PlayerID(c.Player),
			Pos:    core.Coordinate{X: c.X, Y: c.Y},
		})
	}

	id := chi.URLParam(r, "id")
	results, err := h.manager.Process(r.Context(), id, cmds)
	if errors.Is(err, ErrBattleNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		h.fail(w, r, err)
		return
	}

	resp := CommandsResponse{Results: make([]CommandResult, len(results))}
	for i, res := range results {
		resp.Results[i] = CommandResult{
			Type:    string(res.Command.Type),
			Player:  int(res.Command.Player),
			Applied: res.Err == nil,
		}
		if res.Err != nil {
			resp.Results[i].Error = res.Err.Error()
		}
	}
	if resp.State, err = h.manager.Snapshot(id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *routerHandlers) handleReachable(w http.ResponseWriter, r *http.Request) {
	x, errX := strconv.Atoi(r.URL.Query().Get("x"))
	y, errY := strconv.Atoi(r.URL.Query().Get("y"))
	if errX != nil || errY != nil {
		writeError(w, "x and y query parameters are required", http.StatusBadRequest)
		return
	}
	tiles, err := h.manager.Reachable(chi.URLParam(r, "id"), core.Coordinate{X: x, Y: y})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	resp := ReachableResponse{From: [2]int{x, y}, Tiles: make([][2]int, len(tiles))}
	for i, c := range tiles {
		resp.Tiles[i] = [2]int{c.X, c.Y}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *routerHandlers) handleSave(w http.ResponseWriter, r *http.Request) {
	summary, err := h.manager.Save(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (h *routerHandlers) handleLoadSave(w http.ResponseWriter, r *http.Request) {
	summary, err := h.manager.LoadSaved(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
