package server

import (
	"net/http"
	"sort"

	"github.com/MrAlexPushkin/LetsGoDuel/internal/filter"
	"github.com/MrAlexPushkin/LetsGoDuel/pkg/duel"
)

// listDuelsHandler handles GET /api/duels?symbol=&active=&since=&until=.
// Duels are returned newest first.
func (s *Server) listDuelsHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	criteria, err := filter.FromQuery(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	duels := criteria.Apply(s.cfg.Duels.List())
	sort.SliceStable(duels, func(i, j int) bool {
		if duels[i].CreatedAt == duels[j].CreatedAt {
			return duels[i].ID < duels[j].ID
		}
		return duels[i].CreatedAt > duels[j].CreatedAt
	})

	writeJSON(w, http.StatusOK, duels)
}

// getDuelHandler handles GET /api/duels/{id}.
func (s *Server) getDuelHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	id := r.PathValue("id")
	state, ok := s.cfg.Duels.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "duel not found: %s", id)
		return
	}

	writeJSON(w, http.StatusOK, state)
}

// pendingHandler handles GET /api/pending.
func (s *Server) pendingHandler(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	pending := s.cfg.Posts.Pending()
	if pending == nil {
		pending = []duel.Challenge{}
	}
	writeJSON(w, http.StatusOK, pending)
}
