package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"odinbook/auth"
	"odinbook/domain"
	"odinbook/errs"
)

func (s *Server) registerNotificationRoutes(r *mux.Router) {
	r.HandleFunc("/users/{user_id:[0-9]+}/notifications", auth.RequireUser(s.handleListNotifications)).Methods("GET")
	r.HandleFunc("/users/{user_id:[0-9]+}/notifications", auth.RequireUser(s.handleViewNotifications)).Methods("PATCH")
}

// handleListNotifications handles the route "GET /api/users/{user_id}/notifications".
// Newest notifications come first.
func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if err := requireAllowed(authzFor(r, id), "read these notifications"); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	notes, err := s.ns.ByUser(r.Context(), id)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if notes == nil {
		notes = []domain.Notification{}
	}

	respond(w, r, http.StatusOK, notes)
}

// handleViewNotifications handles the route "PATCH /api/users/{user_id}/notifications".
func (s *Server) handleViewNotifications(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if err := requireAllowed(authzFor(r, id), "change these notifications"); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := s.ns.MarkViewed(r.Context(), id); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, message{"Notifications marked as viewed."})
}
