package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"odinbook/auth"
	"odinbook/domain"
	"odinbook/errs"
)

func (s *Server) registerCommentRoutes(r *mux.Router) {
	r.HandleFunc("/posts/{post_id:[0-9]+}/comments", auth.RequireUser(s.handleListComments)).Methods("GET")
	r.HandleFunc("/posts/{post_id:[0-9]+}/comments", auth.RequireUser(s.handleCreateComment)).Methods("POST")
	r.HandleFunc("/posts/{post_id:[0-9]+}/comments/{comment_id:[0-9]+}", auth.RequireUser(s.handleUpdateComment)).Methods("PATCH")
	r.HandleFunc("/posts/{post_id:[0-9]+}/comments/{comment_id:[0-9]+}", auth.RequireUser(s.handleDeleteComment)).Methods("DELETE")

	r.HandleFunc("/posts/{post_id:[0-9]+}/comments/{comment_id:[0-9]+}/likes", auth.RequireUser(s.handleLikeComment)).Methods("POST")
	r.HandleFunc("/posts/{post_id:[0-9]+}/comments/{comment_id:[0-9]+}/likes", auth.RequireUser(s.handleUnlikeComment)).Methods("DELETE")
}

// commentIDs parses the post id and the comment id from the url.
func commentIDs(r *http.Request) (int, int, error) {
	postID, err := pathID(r, "post_id")
	if err != nil {
		return 0, 0, err
	}
	commentID, err := pathID(r, "comment_id")
	if err != nil {
		return 0, 0, err
	}
	return postID, commentID, nil
}

// handleListComments handles the route "GET /api/posts/{post_id}/comments?skip=&limit=".
// Oldest comments come first.
func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "post_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	offset, limit, err := page(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	comments, err := s.cs.ByPost(r.Context(), postID, viewer(r).ID, offset, limit)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if comments == nil {
		comments = []domain.Comment{}
	}

	respond(w, r, http.StatusOK, comments)
}

// handleCreateComment handles the route "POST /api/posts/{post_id}/comments".
func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) {
	postID, err := pathID(r, "post_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	var form contentForm
	if err := s.decode(r, &form); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	comment := &domain.Comment{PostID: postID, AuthorID: viewer(r).ID, Content: form.Content}
	if err := s.cs.Create(r.Context(), comment); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusCreated, comment)
}

// handleUpdateComment handles the route "PATCH /api/posts/{post_id}/comments/{comment_id}".
func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	postID, commentID, err := commentIDs(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	var form contentForm
	if err := s.decode(r, &form); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	authz, err := s.commentAuthz(r, postID, commentID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	comment, err := s.cs.Update(r.Context(), authz, commentID, form.Content)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, comment)
}

// handleDeleteComment handles the route "DELETE /api/posts/{post_id}/comments/{comment_id}".
func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	postID, commentID, err := commentIDs(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	authz, err := s.commentAuthz(r, postID, commentID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if err := s.cs.Delete(r.Context(), authz, commentID); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, message{"Comment deleted."})
}

// handleLikeComment handles the route "POST /api/posts/{post_id}/comments/{comment_id}/likes".
func (s *Server) handleLikeComment(w http.ResponseWriter, r *http.Request) {
	postID, commentID, err := commentIDs(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := s.cs.Like(r.Context(), viewer(r).ID, postID, commentID); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, message{"Comment liked."})
}

// handleUnlikeComment handles the route "DELETE /api/posts/{post_id}/comments/{comment_id}/likes".
func (s *Server) handleUnlikeComment(w http.ResponseWriter, r *http.Request) {
	postID, commentID, err := commentIDs(r)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := s.cs.Unlike(r.Context(), viewer(r).ID, postID, commentID); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, message{"Comment unliked."})
}

// commentAuthz loads the comment, makes sure it belongs to the post in the url,
// and finds out whether the viewer wrote it.
func (s *Server) commentAuthz(r *http.Request, postID, commentID int) (domain.Authorization, error) {
	comment, err := s.cs.ByID(r.Context(), commentID)
	if err != nil {
		return domain.Authorization{}, err
	}
	if comment.PostID != postID {
		return domain.Authorization{}, errs.Errorf(errs.ENOTFOUND, "The comment does not exist on this post.")
	}
	return authzFor(r, comment.AuthorID), nil
}
