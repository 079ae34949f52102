package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/key2key/server/internal/middleware"
)

// NewRouter constructs and returns an HTTP handler that serves the vault API.
//
// Routes:
//
//	POST   /api/auth/sign-up                          → authHandler.SignUp
//	POST   /api/auth/sign-in                          → authHandler.SignIn
//	GET    /api/auth/salt/{email}                     → authHandler.VaultSalt
//	POST   /api/credentials                           → credentialHandler.Create
//	GET    /api/credentials                           → credentialHandler.List
//	GET    /api/credentials/{id}                      → credentialHandler.Get
//	PATCH  /api/credentials/{id}/favorite             → credentialHandler.ToggleFavorite
//	GET    /api/credentials/{id}/access-list          → shareHandler.AccessList
//	POST   /api/share/request                         → shareHandler.Request
//	POST   /api/share/confirm                         → shareHandler.Confirm
//	DELETE /api/share/{credentialId}/{targetUserId}   → shareHandler.Revoke
//
// Everything outside /api/auth requires a valid bearer token; the auth
// endpoints are public because a client must be able to fetch its vault salt
// and sign in before it has a token.
func NewRouter(
	authHandler *AuthHandler,
	credentialHandler *CredentialHandler,
	shareHandler *ShareHandler,
	jwtSecret []byte,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Only allow requests with Content-Type: application/json
	r.Use(chiMiddleware.AllowContentType("application/json"))

	// Log each request and its metadata
	r.Use(middleware.WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		// Public endpoints
		r.Route("/auth", func(r chi.Router) {
			r.Post("/sign-up", authHandler.SignUp)
			r.Post("/sign-in", authHandler.SignIn)
			r.Get("/salt/{email}", authHandler.VaultSalt)
		})

		// Protected group: requires a valid bearer token
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtSecret))

			r.Route("/credentials", func(r chi.Router) {
				r.Post("/", credentialHandler.Create)
				r.Get("/", credentialHandler.List)
				r.Get("/{id}", credentialHandler.Get)
				r.Patch("/{id}/favorite", credentialHandler.ToggleFavorite)
				r.Get("/{id}/access-list", shareHandler.AccessList)
			})

			r.Route("/share", func(r chi.Router) {
				r.Post("/request", shareHandler.Request)
				r.Post("/confirm", shareHandler.Confirm)
				r.Delete("/{credentialId}/{targetUserId}", shareHandler.Revoke)
			})
		})
	})

	return r
}
