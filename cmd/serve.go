package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/calmcompass/places-cli/internal/model"
	"github.com/calmcompass/places-cli/internal/provider"
	"github.com/calmcompass/places-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the canonical place records over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("serve"); err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: newRouter(st),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

func newRouter(st store.Store) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/categories", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, provider.Categories())
	})

	r.Get("/cities", func(w http.ResponseWriter, r *http.Request) {
		cities, err := st.ListCities(r.Context())
		if err != nil {
			serverError(w, "list cities", err)
			return
		}
		if cities == nil {
			cities = []model.City{}
		}
		writeJSON(w, http.StatusOK, cities)
	})

	r.Get("/cities/{slug}/places", func(w http.ResponseWriter, r *http.Request) {
		slug := chi.URLParam(r, "slug")

		city, err := st.GetCity(r.Context(), slug)
		if err != nil {
			serverError(w, "get city", err)
			return
		}
		if city == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown city"})
			return
		}

		category := r.URL.Query().Get("category")
		var places []model.Place
		if category != "" {
			places, err = st.ListPlacesByCategory(r.Context(), slug, category)
		} else {
			places, err = st.ListPlaces(r.Context(), slug)
		}
		if err != nil {
			serverError(w, "list places", err)
			return
		}
		if places == nil {
			places = []model.Place{}
		}

		if r.URL.Query().Get("format") == "geojson" {
			writeJSON(w, http.StatusOK, model.FeatureCollection(places))
			return
		}
		writeJSON(w, http.StatusOK, places)
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func serverError(w http.ResponseWriter, action string, err error) {
	zap.L().Error(action+" failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
