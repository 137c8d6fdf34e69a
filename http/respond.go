package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"odinbook/auth"
	"odinbook/domain"
	"odinbook/errs"
)

// message is the body of responses that carry nothing but a confirmation.
type message struct {
	Message string `json:"message"`
}

// respond writes v as json with the given status code.
func respond(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		errs.LogError(r, err)
	}
}

// decode reads the json body into v and validates it.
func (s *Server) decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.Errorf(errs.EINVALID, "Invalid json body.")
	}
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", strings.ToLower(fe.Field()), fe.Tag()))
			}
			return errs.Errorf(errs.EINVALID, "Invalid fields: %s.", strings.Join(fields, ", "))
		}
		return errs.Errorf(errs.EINVALID, "Invalid request.")
	}
	return nil
}

// pathID parses a positive integer route parameter.
func pathID(r *http.Request, name string) (int, error) {
	id, err := strconv.Atoi(mux.Vars(r)[name])
	if err != nil || id <= 0 {
		return 0, errs.Errorf(errs.EINVALID, "Invalid Id format.")
	}
	return id, nil
}

// page reads the skip and limit query parameters. Missing ones are zero, which
// the services replace with their defaults.
func page(r *http.Request) (offset, limit int, err error) {
	q := r.URL.Query()
	if v := q.Get("skip"); v != "" {
		if offset, err = strconv.Atoi(v); err != nil || offset < 0 {
			return 0, 0, errs.Errorf(errs.EINVALID, "Invalid skip parameter.")
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			return 0, 0, errs.Errorf(errs.EINVALID, "Invalid limit parameter.")
		}
	}
	return offset, limit, nil
}

// authzFor computes the caller's authorization on a resource owned by ownerID.
func authzFor(r *http.Request, ownerID int) domain.Authorization {
	user := auth.GetUser(r.Context())
	if user == nil {
		return domain.Authorization{}
	}
	return domain.Authorization{IsOwner: user.ID == ownerID, IsAdmin: user.IsAdmin}
}

// requireAllowed is the http side check for reads that the services do not guard.
func requireAllowed(authz domain.Authorization, action string) error {
	if !authz.Allowed() {
		return errs.Reasonf(errs.EUNAUTHORIZED, errs.AuthorizationDenied, "You are not allowed to %s.", action)
	}
	return nil
}

// viewer returns the authenticated user. Only call it behind auth.RequireUser.
func viewer(r *http.Request) *domain.User {
	return auth.GetUser(r.Context())
}
