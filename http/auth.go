package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/oauth2"

	"odinbook/domain"
	"odinbook/errs"
)

func (s *Server) registerAuthRoutes(r *mux.Router) {
	r.HandleFunc("/auth/signup", s.handleSignup).Methods("POST")
	r.HandleFunc("/auth/login", s.handleLogin).Methods("POST")
	r.HandleFunc("/auth/facebook", s.handleFacebookURL).Methods("GET")
	r.HandleFunc("/auth/facebook", s.handleFacebookLogin).Methods("POST")
}

type signupForm struct {
	FirstName string `json:"first_name" validate:"required,max=50"`
	LastName  string `json:"last_name" validate:"required,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
}

type loginForm struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type facebookForm struct {
	AccessToken string `json:"access_token" validate:"required_without=Code"`
	Code        string `json:"code"`
}

// session is returned by every successful signup or login.
type session struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// handleSignup handles the route "POST /api/auth/signup".
// It creates a new account and logs it in right away.
func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var form signupForm
	if err := s.decode(r, &form); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	user := &domain.User{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		Password:  form.Password,
	}
	if err := s.us.Create(r.Context(), user); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	s.startSession(w, r, http.StatusCreated, user)
}

// handleLogin handles the route "POST /api/auth/login".
// It checks email and password and returns an access token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var form loginForm
	if err := s.decode(r, &form); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	user, err := s.us.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	s.startSession(w, r, http.StatusOK, user)
}

// handleFacebookURL handles the route "GET /api/auth/facebook".
// It returns the url of the Facebook login dialog.
func (s *Server) handleFacebookURL(w http.ResponseWriter, r *http.Request) {
	if s.facebook == nil {
		errs.ReturnError(w, r, errs.Errorf(errs.ENOTFOUND, "Facebook login is not configured."))
		return
	}
	state := uuid.NewString()
	respond(w, r, http.StatusOK, map[string]string{
		"url":   s.facebook.AuthCodeURL(state),
		"state": state,
	})
}

// handleFacebookLogin handles the route "POST /api/auth/facebook".
// It accepts either a Facebook access token or an authorization code, reads the
// Facebook profile, and logs in the account linked to it. A first login links
// or creates the account.
func (s *Server) handleFacebookLogin(w http.ResponseWriter, r *http.Request) {
	if s.facebook == nil {
		errs.ReturnError(w, r, errs.Errorf(errs.ENOTFOUND, "Facebook login is not configured."))
		return
	}
	var form facebookForm
	if err := s.decode(r, &form); err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	token := &oauth2.Token{AccessToken: form.AccessToken}
	if form.AccessToken == "" {
		var err error
		if token, err = s.facebook.Exchange(r.Context(), form.Code); err != nil {
			errs.ReturnError(w, r, err)
			return
		}
	}
	profile, err := s.facebook.Profile(r.Context(), token)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	user, err := s.oas.Login(r.Context(), domain.ProviderFacebook, profile)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}

	s.startSession(w, r, http.StatusOK, user)
}

// startSession issues an access token for the user and returns it.
func (s *Server) startSession(w http.ResponseWriter, r *http.Request, status int, user *domain.User) {
	token, err := s.tokens.Issue(user)
	if err != nil {
		errs.ReturnError(w, r, err)
		return
	}
	respond(w, r, status, session{Token: token, User: user})
}
