package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/bankcards-api/internal/api"
	apiMiddleware "github.com/phrazzld/bankcards-api/internal/api/middleware"
	"github.com/phrazzld/bankcards-api/internal/domain"
)

// routerDeps are the handlers and settings the router is assembled from.
type routerDeps struct {
	logger         *slog.Logger
	corsOrigins    []string
	authMiddleware *apiMiddleware.AuthMiddleware
	authHandler    *api.AuthHandler
	userHandler    *api.UserHandler
	cardHandler    *api.CardHandler
}

// setupRouter builds the handlers from the application services and
// returns the configured router.
func (app *application) setupRouter() http.Handler {
	return newRouter(routerDeps{
		logger:         app.logger,
		corsOrigins:    app.config.Server.CORSAllowedOrigins,
		authMiddleware: apiMiddleware.NewAuthMiddleware(app.jwtService),
		authHandler:    api.NewAuthHandler(app.userService, app.jwtService, app.logger),
		userHandler:    api.NewUserHandler(app.userService, app.logger),
		cardHandler:    api.NewCardHandler(app.cardService, app.transferService, app.logger),
	})
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.TraceMiddleware(d.logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"X-Trace-ID"},
		MaxAge:         300,
	}))

	adminOnly := apiMiddleware.RequireRole(domain.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/login", d.authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(d.authMiddleware.Authenticate)

			r.Route("/cards", func(r chi.Router) {
				// Scoped to the caller's own cards
				r.Get("/my", d.cardHandler.ListMyCards)
				r.Get("/my/balance", d.cardHandler.GetMyTotalBalance)
				r.Get("/my/{id}/balance", d.cardHandler.GetMyCardBalance)
				r.Post("/transfer", d.cardHandler.Transfer)

				r.Group(func(r chi.Router) {
					r.Use(adminOnly)
					r.Post("/", d.cardHandler.CreateCard)
					r.Get("/", d.cardHandler.ListCards)
					r.Get("/user/{userId}", d.cardHandler.ListCardsByUser)
					r.Get("/{id}", d.cardHandler.GetCard)
					r.Put("/{id}/balance", d.cardHandler.AdjustBalance)
					r.Put("/{id}/status", d.cardHandler.UpdateStatus)
					r.Delete("/{id}", d.cardHandler.DeleteCard)
				})
			})

			r.Route("/users", func(r chi.Router) {
				// Admins or the user themselves
				r.Get("/{id}", d.userHandler.GetUser)

				// The caller's own account
				r.Put("/", d.userHandler.UpdateOwnUsername)
				r.Patch("/", d.userHandler.UpdatePassword)

				r.Group(func(r chi.Router) {
					r.Use(adminOnly)
					r.Post("/", d.userHandler.CreateUser)
					r.Get("/", d.userHandler.ListUsers)
					r.Put("/username/{id}", d.userHandler.UpdateUsernameByAdmin)
					r.Put("/role/{id}", d.userHandler.UpdateRole)
					r.Delete("/{id}", d.userHandler.DeleteUser)
				})
			})
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			d.logger.Error("failed to write health check response", "error", err)
		}
	})

	return r
}
