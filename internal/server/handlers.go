package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/gmllt/kboard/internal/remote"
)

type createListRequest struct {
	Title    string `json:"title"`
	Position *int   `json:"position,omitempty"`
}

type createCardRequest struct {
	ListID string `json:"list_id"`
	Title  string `json:"title"`
}

type updateCardRequest struct {
	Title string `json:"title"`
}

type moveCardRequest struct {
	ListID   string `json:"list_id"`
	Position int    `json:"position"`
}

func (s *Server) handleBoard(w http.ResponseWriter, r *http.Request) {
	b, err := s.adapter.LoadBoard(r.Context())
	if err != nil {
		s.fail(w, "Error loading board", err)
		return
	}
	s.logger.Debug("Board loaded", zap.Int("lists", len(b)), zap.Int("cards", b.CardCount()))
	writeJSON(w, http.StatusOK, b)
}

func (s *Server) handleLists(w http.ResponseWriter, r *http.Request) {
	lists, err := s.backend.Lists(r.Context())
	if err != nil {
		s.fail(w, "Error loading lists", err)
		return
	}
	remote.SortLists(lists)
	if lists == nil {
		lists = []remote.ListRecord{}
	}
	writeJSON(w, http.StatusOK, lists)
}

func (s *Server) handleCreateList(w http.ResponseWriter, r *http.Request) {
	var req createListRequest
	if !s.decode(w, r, &req) {
		return
	}
	position := 0
	if req.Position != nil {
		position = *req.Position
	} else {
		lists, err := s.backend.Lists(r.Context())
		if err != nil {
			s.fail(w, "Error loading lists", err)
			return
		}
		position = len(lists)
	}
	rec, err := s.backend.CreateList(r.Context(), req.Title, position)
	if err != nil {
		s.fail(w, "Error creating list", err)
		return
	}
	if rec == nil {
		http.Error(w, "list rejected", http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleCards(w http.ResponseWriter, r *http.Request) {
	cards, err := s.backend.Cards(r.Context())
	if err != nil {
		s.fail(w, "Error loading cards", err)
		return
	}
	remote.SortCards(cards)
	if cards == nil {
		cards = []remote.CardRecord{}
	}
	writeJSON(w, http.StatusOK, cards)
}

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var req createCardRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec, err := s.backend.CreateCard(r.Context(), req.ListID, req.Title)
	if err != nil {
		s.fail(w, "Error creating card", err)
		return
	}
	if rec == nil {
		s.logger.Info("Card rejected", zap.String("list", req.ListID))
		http.Error(w, "card rejected", http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req updateCardRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.backend.UpdateCard(r.Context(), id, req.Title); err != nil {
		s.fail(w, "Error updating card", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMoveCard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req moveCardRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.backend.MoveCard(r.Context(), id, req.ListID, req.Position); err != nil {
		s.fail(w, "Error moving card", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := s.backend.DeleteCard(r.Context(), id); err != nil {
		s.fail(w, "Error deleting card", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.logger.Info("Error decoding request", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// fail writes 404 for remote.ErrNotFound and 500 otherwise.
func (s *Server) fail(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, remote.ErrNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	s.logger.Error(msg, zap.Error(err))
	http.Error(w, msg, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
