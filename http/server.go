package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"odinbook/auth"
	"odinbook/crud"
	"odinbook/domain"
)

// Server provides the http functionality of this app, namely routing, request
// handling, and middleware. It authenticates every request and computes the
// authorization of privileged operations before handing things over to one of
// the crud services.
type Server struct {
	router *mux.Router

	us  domain.UserService
	oas domain.OAuthService
	fs  domain.FriendService
	rs  domain.RecommendationService
	ps  domain.PostService
	cs  domain.CommentService
	ns  domain.NotificationService
	ad  domain.AccountDeleter

	tokens        *auth.TokenIssuer
	facebook      *auth.Facebook
	adminPassword string
	validate      *validator.Validate
}

// NewServer returns a new instance of the server, registers all routes and
// gives their handlers access to the services passed in.
func NewServer(services *crud.Services, tokens *auth.TokenIssuer, facebook *auth.Facebook, adminPassword string) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		us:            services.User,
		oas:           services.OAuth,
		fs:            services.Friend,
		rs:            services.Recommendation,
		ps:            services.Post,
		cs:            services.Comment,
		ns:            services.Notification,
		ad:            services.Cascade,
		tokens:        tokens,
		facebook:      facebook,
		adminPassword: adminPassword,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}

	// Operational endpoints stay outside of the api middleware.
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	s.router.HandleFunc("/healthz", handleHealth).Methods("GET")

	api := s.router.PathPrefix("/api").Subrouter()
	userMw := &auth.UserMw{Tokens: tokens, Users: services.User}
	api.Use(requestID, accessLog, countRequests, setContentTypeJSON, userMw.Apply)

	s.registerAuthRoutes(api)
	s.registerUserRoutes(api)
	s.registerFriendRoutes(api)
	s.registerNotificationRoutes(api)
	s.registerPostRoutes(api)
	s.registerCommentRoutes(api)

	s.router.NotFoundHandler = http.HandlerFunc(handleNotFound)
	return s
}

// ServeHTTP makes the server usable as an http.Handler, e.g. in tests.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("http server listening", "addr", addr)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
