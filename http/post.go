package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"odinbook/auth"
	"odinbook/domain"
	"odinbook/errs"
)

func (s *Server) registerPostRoutes(r *mux.Router) {
	r.HandleFunc("/posts", auth.RequireUser(s.handleCreatePost)).Methods("POST")
	r.HandleFunc("/posts/{post_id:[0-9]+}", auth.RequireUser(s.handleGetPost)).Methods("GET")
	r.HandleFunc("/posts/{post_id:[0-9]+}", auth.RequireUser(s.handleUpdatePost)).Methods("PATCH")
	r.HandleFunc("/posts/{post_id:[0-9]+}", auth.RequireUser(s.handleDeletePost)).Methods("DELETE")

	// Likes of a post. The authenticated user likes or unlikes.
	r.HandleFunc("/posts/{post_id:[0-9]+}/likes", auth.RequireUser(s.handleListPostLikes)).Methods("GET")
	r.HandleFunc("/posts/{post_id:[0-9]+}/likes", auth.RequireUser(s.handleLikePost)).Methods("POST")
	r.HandleFunc("/posts/{post_id:[0-9]+}/likes", auth.RequireUser(s.handleUnlikePost)).Methods("DELETE")
}

type contentForm struct {
	Content string `json:"content" validate:"required"`
}

// handleCreatePost handles the route "POST /api/posts".
func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) {
	var form contentForm
	if err := s.decode(r, &form); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	post := &domain.Post{AuthorID: viewer(r).ID, Content: form.Content}
	if err := s.ps.Create(r.Context(), post); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, post)
}

// handleGetPost handles the route "GET /api/posts/{post_id}".
func (s *Server) handleGetPost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "post_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	post, err := s.ps.ByID(r.Context(), id, viewer(r).ID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, post)
}

// handleUpdatePost handles the route "PATCH /api/posts/{post_id}".
// Only the author or an administrator may edit a post.
func (s *Server) handleUpdatePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "post_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	var form contentForm
	if err := s.decode(r, &form); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	authz, err := s.postAuthz(r, id)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	post, err := s.ps.Update(r.Context(), authz, id, form.Content)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, post)
}

// handleDeletePost handles the route "DELETE /api/posts/{post_id}".
// The post's comments and likes go with it.
func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "post_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	authz, err := s.postAuthz(r, id)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if err := s.ps.Delete(r.Context(), authz, id); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, message{"Post deleted."})
}

// handleListPostLikes handles the route "GET /api/posts/{post_id}/likes".
func (s *Server) handleListPostLikes(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "post_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	likers, err := s.ps.Likers(r.Context(), id)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if likers == nil {
		likers = []domain.User{}
	}

	respond(w, r, http.StatusOK, likers)
}

// handleLikePost handles the route "POST /api/posts/{post_id}/likes".
func (s *Server) handleLikePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "post_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := s.ps.Like(r.Context(), viewer(r).ID, id); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, message{"Post liked."})
}

// handleUnlikePost handles the route "DELETE /api/posts/{post_id}/likes".
func (s *Server) handleUnlikePost(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "post_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := s.ps.Unlike(r.Context(), viewer(r).ID, id); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, message{"Post unliked."})
}

// postAuthz loads the post to find out whether the viewer wrote it.
func (s *Server) postAuthz(r *http.Request, postID int) (domain.Authorization, error) {
	post, err := s.ps.ByID(r.Context(), postID, 0)
	if err != nil {
		return domain.Authorization{}, err
	}
	return authzFor(r, post.AuthorID), nil
}
