package http

import (
	"crypto/subtle"
	"net/http"

	"github.com/gorilla/mux"

	"odinbook/auth"
	"odinbook/domain"
	"odinbook/errs"
)

func (s *Server) registerUserRoutes(r *mux.Router) {
	// Get, edit or delete an account.
	r.HandleFunc("/users/{user_id:[0-9]+}", auth.RequireUser(s.handleGetUser)).Methods("GET")
	r.HandleFunc("/users/{user_id:[0-9]+}", auth.RequireUser(s.handleUpdateUser)).Methods("PATCH")
	r.HandleFunc("/users/{user_id:[0-9]+}", auth.RequireUser(s.handleDeleteUser)).Methods("DELETE")

	// Grant or revoke administrator rights with the admin password.
	r.HandleFunc("/users/{user_id:[0-9]+}/admin", auth.RequireUser(s.handleSetAdmin)).Methods("PUT")

	// What the user sees after logging in.
	r.HandleFunc("/users/{user_id:[0-9]+}/home", auth.RequireUser(s.handleHome)).Methods("GET")

	// Posts written by the user.
	r.HandleFunc("/users/{user_id:[0-9]+}/posts", auth.RequireUser(s.handleUserPosts)).Methods("GET")
}

type adminForm struct {
	Password string `json:"password" validate:"required"`
	IsAdmin  *bool  `json:"is_admin" validate:"required"`
}

// handleGetUser handles the route "GET /api/users/{user_id}".
// The user is returned with the viewer's friend state towards them.
func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	user, err := s.us.ByID(r.Context(), id)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	// Nobody has a friend state towards themselves.
	if v := viewer(r); v.ID != id {
		state, err := s.fs.State(r.Context(), v.ID, id)
		if err != nil {
			errs.ReturnError(w, r, err)
			return
		}
		user.FriendState = state
		user.Email = ""
	}

	respond(w, r, http.StatusOK, user)
}

// handleUpdateUser handles the route "PATCH /api/users/{user_id}".
func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	var upd domain.UserUpdate
	if err := s.decode(r, &upd); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	user, err := s.us.Update(r.Context(), authzFor(r, id), id, &upd)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, user)
}

// handleDeleteUser handles the route "DELETE /api/users/{user_id}".
// Deleting an account removes every trace of it from other accounts first.
// If any of that fails, the account stays and the client may retry.
func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := s.ad.DeleteAccount(r.Context(), authzFor(r, id), id); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, message{"Account deleted."})
}

// handleSetAdmin handles the route "PUT /api/users/{user_id}/admin".
// Knowing the admin password is what makes a user an administrator.
func (s *Server) handleSetAdmin(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if err := requireAllowed(authzFor(r, id), "change this account"); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	var form adminForm
	if err := s.decode(r, &form); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if s.adminPassword == "" || subtle.ConstantTimeCompare([]byte(form.Password), []byte(s.adminPassword)) != 1 {
		errs.ReturnError(w, r, errs.Reasonf(errs.EUNAUTHORIZED, errs.AuthorizationDenied, "Wrong admin password."))
		return
	}

	if err := s.us.SetAdmin(r.Context(), id, *form.IsAdmin); err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	user, err := s.us.ByID(r.Context(), id)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, user)
}

// handleHome handles the route "GET /api/users/{user_id}/home".
func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	home, err := s.us.Home(r.Context(), authzFor(r, id), id)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, home)
}

// handleUserPosts handles the route "GET /api/users/{user_id}/posts?skip=&limit=".
func (s *Server) handleUserPosts(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	offset, limit, err := page(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	posts, err := s.ps.ByAuthor(r.Context(), id, viewer(r).ID, offset, limit)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, posts)
}
