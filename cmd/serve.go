package cmd

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/quayside/storefront/internal/cart"
	"github.com/quayside/storefront/internal/catalog"
	"github.com/quayside/storefront/internal/db/bunx"
	"github.com/quayside/storefront/internal/guard"
	"github.com/quayside/storefront/internal/identity"
	"github.com/quayside/storefront/internal/middleware"
	"github.com/quayside/storefront/internal/notify"
	"github.com/quayside/storefront/internal/repository"
	"github.com/quayside/storefront/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the storefront API server",
	Long:  `Starts the HTTP server with the cart and identity endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bunx.NewDB(cfg.DatabaseURL, cfg.MaxDBConnections)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		log.Printf("Connected to database")

		verifier, err := identity.NewVerifier([]byte(cfg.Session.Secret))
		if err != nil {
			return fmt.Errorf("configure token verifier: %w", err)
		}

		routeGuard, err := guard.New(cfg.RouteTablePath)
		if err != nil {
			return fmt.Errorf("configure route guard: %w", err)
		}

		products, err := buildCatalog()
		if err != nil {
			return err
		}

		repo := repository.NewBunCartRepository(db)
		cartService := cart.NewService(repo, products).
			WithGuestTTL(cfg.Retention.GuestCartTTL)

		var publisher notify.Publisher = notify.Noop{}
		if kafka := notify.NewKafkaPublisher(cfg.Notify.Brokers, cfg.Notify.Topic); kafka != nil {
			publisher = kafka
			log.Printf("Publishing identity events to %s", cfg.Notify.Topic)
		}
		defer publisher.Close()

		router, err := server.NewRouter(server.RouterOptions{
			CartService:       cartService,
			Catalog:           products,
			Verifier:          verifier,
			Guard:             routeGuard,
			Publisher:         publisher,
			Metrics:           middleware.NewServerMetrics(),
			SessionCookieName: cfg.Session.CookieName,
		})
		if err != nil {
			return fmt.Errorf("assemble router: %w", err)
		}

		// Background housekeeping for stale guest carts and old tombstones.
		purgeCtx, cancelPurge := context.WithCancel(cmd.Context())
		defer cancelPurge()
		purge := cart.NewPurgeJob(repo, cfg.Retention.PurgeInterval, cfg.Retention.TombstoneRetention)
		go purge.Run(purgeCtx)

		h2cHandler := h2c.NewHandler(router, &http2.Server{})

		srv := &http.Server{
			Addr:         cfg.ServerAddr,
			Handler:      h2cHandler,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.Printf("Starting server on %s", cfg.ServerAddr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			log.Printf("Received signal %v, shutting down gracefully", sig)

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				srv.Close()
				return fmt.Errorf("graceful shutdown failed: %w", err)
			}

			log.Printf("Server stopped")
			return nil
		}
	},
}

// buildCatalog picks the catalog implementation from configuration: a JSON
// product file when one is given, otherwise a permissive lookup for
// development. Both are fronted by the in-process cache.
func buildCatalog() (catalog.Lookup, error) {
	var inner catalog.Lookup
	if cfg.CatalogPath != "" {
		static, err := catalog.LoadStatic(cfg.CatalogPath)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		inner = static
	} else {
		log.Printf("CATALOG_PATH not set, accepting every product reference")
		inner = catalog.Permissive{}
	}
	return catalog.NewCached(inner, cfg.CatalogCacheSize)
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
