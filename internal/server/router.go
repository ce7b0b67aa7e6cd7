package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quayside/storefront/internal/cart"
	"github.com/quayside/storefront/internal/catalog"
	"github.com/quayside/storefront/internal/guard"
	"github.com/quayside/storefront/internal/identity"
	"github.com/quayside/storefront/internal/middleware"
	"github.com/quayside/storefront/internal/notify"
)

// RouterOptions controls the construction of the storefront HTTP router.
// The zero value is valid for tests that only need public routes; sensible
// defaults are applied where fields are not set.
type RouterOptions struct {
	CartService       *cart.Service
	Catalog           catalog.Lookup
	Verifier          *identity.Verifier
	Guard             *guard.Guard
	Publisher         notify.Publisher
	Metrics           *middleware.ServerMetrics
	SessionCookieName string
	CORSOptions       *cors.Options
	Middleware        []func(http.Handler) http.Handler
	HealthHandler     http.HandlerFunc
	ExtraRoutes       func(chi.Router)
}

// DefaultCORSOptions returns the shared development CORS policy.
func DefaultCORSOptions() cors.Options {
	return cors.Options{
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://127.0.0.1:5173",
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// NewRouter assembles a chi.Router with shared middleware and the storefront
// handlers mounted. Identity resolution runs on every request in a fixed
// order: token verification, guest id issuance, then the route guard.
func NewRouter(opts RouterOptions) (chi.Router, error) {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	corsCfg := DefaultCORSOptions()
	if opts.CORSOptions != nil {
		corsCfg = *opts.CORSOptions
	}
	r.Use(cors.Handler(corsCfg))

	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}

	cookieName := opts.SessionCookieName
	if cookieName == "" {
		cookieName = "storefront.session"
	}

	if opts.Verifier != nil {
		authn, err := middleware.NewAuthnMiddleware(opts.Verifier, cookieName)
		if err != nil {
			return nil, fmt.Errorf("build authn middleware: %w", err)
		}
		r.Use(authn)
	}

	r.Use(middleware.NewGuestIDMiddleware())

	if opts.Guard != nil {
		authz, err := middleware.NewAuthzMiddleware(opts.Guard)
		if err != nil {
			return nil, fmt.Errorf("build authz middleware: %w", err)
		}
		r.Use(authz)
	}

	for _, mw := range opts.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	health := opts.HealthHandler
	if health == nil {
		health = defaultHealthHandler
	}
	r.Get("/healthz", health)
	r.Get("/metrics", middleware.MetricsHandler().ServeHTTP)

	if opts.Catalog != nil {
		r.Get("/catalog/{productID}", HandleGetProduct(opts.Catalog))
	}

	if opts.CartService != nil {
		r.Get("/cart", HandleGetCart(opts.CartService))
		r.Post("/cart/lines", HandleUpsertLine(opts.CartService))
		r.Delete("/cart/lines/{productID}", HandleRemoveLine(opts.CartService))

		r.Get("/admin/carts/{key}", HandleInspectCart(opts.CartService))

		if opts.Verifier != nil {
			r.Post("/auth/signin", HandleSignIn(opts.Verifier, opts.CartService, opts.Publisher, cookieName))
		}
	}
	r.Post("/auth/signout", HandleSignOut(cookieName))

	if opts.ExtraRoutes != nil {
		opts.ExtraRoutes(r)
	}

	return r, nil
}
