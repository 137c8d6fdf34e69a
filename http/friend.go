package http

import (
	"net/http"

	"github.com/gorilla/mux"

	"odinbook/auth"
	"odinbook/domain"
	"odinbook/errs"
)

func (s *Server) registerFriendRoutes(r *mux.Router) {
	// Pending requests received by the user: list them, send one, mark them viewed, reject one.
	r.HandleFunc("/users/{user_id:[0-9]+}/friend_requests", auth.RequireUser(s.handleListFriendRequests)).Methods("GET")
	r.HandleFunc("/users/{user_id:[0-9]+}/friend_requests", auth.RequireUser(s.handleSendFriendRequest)).Methods("POST")
	r.HandleFunc("/users/{user_id:[0-9]+}/friend_requests", auth.RequireUser(s.handleViewFriendRequests)).Methods("PATCH")
	r.HandleFunc("/users/{user_id:[0-9]+}/friend_requests/{sender_id:[0-9]+}", auth.RequireUser(s.handleRejectFriendRequest)).Methods("DELETE")

	// Take back a request the user sent.
	r.HandleFunc("/users/{user_id:[0-9]+}/sent_friend_requests/{receiver_id:[0-9]+}", auth.RequireUser(s.handleCancelFriendRequest)).Methods("DELETE")

	// The user's friends: list them, accept a request, unfriend.
	r.HandleFunc("/users/{user_id:[0-9]+}/friends", auth.RequireUser(s.handleListFriends)).Methods("GET")
	r.HandleFunc("/users/{user_id:[0-9]+}/friends/{friend_id:[0-9]+}", auth.RequireUser(s.handleAcceptFriendRequest)).Methods("POST")
	r.HandleFunc("/users/{user_id:[0-9]+}/friends/{friend_id:[0-9]+}", auth.RequireUser(s.handleUnfriend)).Methods("DELETE")

	r.HandleFunc("/users/{user_id:[0-9]+}/friend_recommendation", auth.RequireUser(s.handleRecommendFriends)).Methods("GET")
	r.HandleFunc("/users/{user_id:[0-9]+}/friend_state/{friend_id:[0-9]+}", auth.RequireUser(s.handleFriendState)).Methods("GET")
}

// pairIDs parses the user id and a second user id from the url.
func pairIDs(r *http.Request, other string) (int, int, error) {
	userID, err := pathID(r, "user_id")
	if err != nil {
		return 0, 0, err
	}
	otherID, err := pathID(r, other)
	if err != nil {
		return 0, 0, err
	}
	return userID, otherID, nil
}

// handleListFriendRequests handles the route "GET /api/users/{user_id}/friend_requests".
// Unviewed requests come first.
func (s *Server) handleListFriendRequests(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	requests, err := s.fs.Requests(r.Context(), authzFor(r, id), id)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, requests)
}

// handleSendFriendRequest handles the route "POST /api/users/{user_id}/friend_requests".
// The authenticated user sends a friend request to the user in the url.
func (s *Server) handleSendFriendRequest(w http.ResponseWriter, r *http.Request) {
	receiverID, err := pathID(r, "user_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := s.fs.SendRequest(r.Context(), viewer(r).ID, receiverID); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, message{"Friend request sent."})
}

// handleViewFriendRequests handles the route "PATCH /api/users/{user_id}/friend_requests".
func (s *Server) handleViewFriendRequests(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := s.fs.MarkRequestsViewed(r.Context(), authzFor(r, id), id); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, message{"Friend requests marked as viewed."})
}

// handleRejectFriendRequest handles the route "DELETE /api/users/{user_id}/friend_requests/{sender_id}".
func (s *Server) handleRejectFriendRequest(w http.ResponseWriter, r *http.Request) {
	receiverID, senderID, err := pairIDs(r, "sender_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := s.fs.RejectRequest(r.Context(), authzFor(r, receiverID), receiverID, senderID); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, message{"Friend request rejected."})
}

// handleCancelFriendRequest handles the route "DELETE /api/users/{user_id}/sent_friend_requests/{receiver_id}".
func (s *Server) handleCancelFriendRequest(w http.ResponseWriter, r *http.Request) {
	senderID, receiverID, err := pairIDs(r, "receiver_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := s.fs.CancelRequest(r.Context(), authzFor(r, senderID), senderID, receiverID); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, message{"Friend request cancelled."})
}

// handleListFriends handles the route "GET /api/users/{user_id}/friends".
// Every friend carries the viewer's friend state towards them.
func (s *Server) handleListFriends(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "user_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	friends, err := s.fs.Friends(r.Context(), viewer(r).ID, id)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if friends == nil {
		friends = []domain.User{}
	}

	respond(w, r, http.StatusOK, friends)
}

// handleAcceptFriendRequest handles the route "POST /api/users/{user_id}/friends/{friend_id}".
// The user accepts the request friend_id sent them.
func (s *Server) handleAcceptFriendRequest(w http.ResponseWriter, r *http.Request) {
	receiverID, senderID, err := pairIDs(r, "friend_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := s.fs.AcceptRequest(r.Context(), authzFor(r, receiverID), receiverID, senderID); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, message{"Friend request accepted."})
}

// handleUnfriend handles the route "DELETE /api/users/{user_id}/friends/{friend_id}".
func (s *Server) handleUnfriend(w http.ResponseWriter, r *http.Request) {
	userID, friendID, err := pairIDs(r, "friend_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	if err := s.fs.Unfriend(r.Context(), authzFor(r, userID), userID, friendID); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, message{"Friend removed."})
}

// handleRecommendFriends handles the route "GET /api/users/{user_id}/friend_recommendation?skip=&limit=".
func (s *Server) handleRecommendFriends(w http.ResponseWriter, r *http.Request) {
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

	recs, err := s.rs.Recommend(r.Context(), authzFor(r, id), viewer(r).ID, id, offset, limit)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	if recs == nil {
		recs = []domain.Recommendation{}
	}

	respond(w, r, http.StatusOK, recs)
}

// handleFriendState handles the route "GET /api/users/{user_id}/friend_state/{friend_id}".
// It reports the relationship of user_id towards friend_id.
func (s *Server) handleFriendState(w http.ResponseWriter, r *http.Request) {
	userID, otherID, err := pairIDs(r, "friend_id")
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	state, err := s.fs.State(r.Context(), userID, otherID)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	respond(w, r, http.StatusOK, map[string]domain.FriendState{"friend_state": state})
}
