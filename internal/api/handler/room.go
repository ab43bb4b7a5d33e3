package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/lmartell/cipherduel/internal/api/middleware"
	"github.com/lmartell/cipherduel/internal/api/request"
	"github.com/lmartell/cipherduel/internal/api/response"
	"github.com/lmartell/cipherduel/internal/model"
	"github.com/lmartell/cipherduel/internal/services/room"
)

// RoomHandler handles room-related endpoints
type RoomHandler struct {
	roomController room.ControllerInterface
}

// NewRoomHandler creates a new room handler
func NewRoomHandler(roomController room.ControllerInterface) *RoomHandler {
	return &RoomHandler{
		roomController: roomController,
	}
}

// Create handles POST /api/v1/rooms
func (h *RoomHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())

	var req request.CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		// An empty body means defaults; anything else malformed is the
		// caller's mistake
		if !errors.Is(err, io.EOF) {
			WriteError(w, NewInvalidRequestError("invalid request body"))
			return
		}
	}

	params := room.CreateParams{
		MaxPlayers: req.MaxPlayers,
		ExpiresIn:  time.Duration(req.ExpiresMinutes) * time.Minute,
	}

	created, membership, err := h.roomController.CreateRoom(r.Context(), user.ID, params)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, response.CreateRoomResponse{
		Room:       response.RoomFromModel(created),
		Membership: response.PlayerFromModel(membership),
	})
}

// GetByCode handles GET /api/v1/rooms/code/{code}
func (h *RoomHandler) GetByCode(w http.ResponseWriter, r *http.Request) {
	code := model.RoomCode(mux.Vars(r)["code"])

	found, err := h.roomController.GetRoomByCode(r.Context(), code)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoomResponse{Room: response.RoomFromModel(found)})
}

// Join handles POST /api/v1/rooms/code/{code}/join
func (h *RoomHandler) Join(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	code := model.RoomCode(mux.Vars(r)["code"])

	joined, err := h.roomController.JoinRoom(r.Context(), code, user.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoomResponse{Room: response.RoomFromModel(joined)})
}

// Leave handles POST /api/v1/rooms/{id}/leave
func (h *RoomHandler) Leave(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	roomID := model.RoomID(mux.Vars(r)["id"])

	if err := h.roomController.LeaveRoom(r.Context(), roomID, user.ID); err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.OKResponse{OK: true})
}

// Start handles POST /api/v1/rooms/{id}/start
func (h *RoomHandler) Start(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	roomID := model.RoomID(mux.Vars(r)["id"])

	started, err := h.roomController.StartGame(r.Context(), roomID, user.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoomResponse{Room: response.RoomFromModel(started)})
}

// Cancel handles DELETE /api/v1/rooms/{id}
func (h *RoomHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	roomID := model.RoomID(mux.Vars(r)["id"])

	if err := h.roomController.CancelRoom(r.Context(), roomID, user.ID); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// Finish handles POST /api/v1/rooms/{id}/finish
func (h *RoomHandler) Finish(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	roomID := model.RoomID(mux.Vars(r)["id"])

	finished, err := h.roomController.FinishGame(r.Context(), roomID, user.ID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.RoomResponse{Room: response.RoomFromModel(finished)})
}

// Players handles GET /api/v1/rooms/{id}/players
func (h *RoomHandler) Players(w http.ResponseWriter, r *http.Request) {
	roomID := model.RoomID(mux.Vars(r)["id"])

	members, err := h.roomController.ListPlayers(r.Context(), roomID)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayersFromModel(members))
}

// Heartbeat handles POST /api/v1/rooms/{id}/heartbeat
func (h *RoomHandler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	roomID := model.RoomID(mux.Vars(r)["id"])

	if err := h.roomController.Heartbeat(r.Context(), roomID, user.ID); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}

// UpdateGuesses handles PUT /api/v1/rooms/{id}/guesses
func (h *RoomHandler) UpdateGuesses(w http.ResponseWriter, r *http.Request) {
	user := middleware.MustGetUser(r.Context())
	roomID := model.RoomID(mux.Vars(r)["id"])

	var req request.UpdateGuessesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("invalid request body"))
		return
	}
	if len(req.Guesses) == 0 {
		WriteError(w, NewInvalidRequestError("guesses is required"))
		return
	}

	if err := h.roomController.SaveGuesses(r.Context(), roomID, user.ID, req.Guesses); err != nil {
		WriteError(w, err)
		return
	}

	response.NoContent(w)
}
