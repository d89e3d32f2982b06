package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/site-audit/internal/classify"
	"github.com/sells-group/site-audit/internal/model"
	"github.com/sells-group/site-audit/internal/monitoring"
)

const (
	maxBodyBytes   = 10 << 20
	requestTimeout = 30 * time.Second
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the classification and scoring API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		env, err := initApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer env.Close()

		checker := monitoring.NewChecker(
			monitoring.NewCollector(env.Breaker, env.Store, cfg.Breaker.MinSamples),
			monitoring.NewAlerter(cfg.Monitoring),
			cfg.Monitoring,
		)
		go checker.Run(ctx)

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           buildRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("serve: shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("serve: listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

// buildRouter mounts the API routes over env.
func buildRouter(env *appEnv) http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))
	r.Use(instrument)

	r.Get("/health", handleHealth(env))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(requestTimeout))
		r.Post("/classify", handleClassify(env))
		r.Post("/score", handleScore(env))
	})

	return r
}

// requestID tags each request with an X-Request-ID, reusing the caller's
// when present.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

// instrument records request counts and latency by route pattern.
func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		monitoring.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		monitoring.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func handleHealth(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := env.Store.Ping(r.Context()); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "degraded",
				"store":  err.Error(),
			})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

type classifyRequest struct {
	URL         string `json:"url"`
	HTML        string `json:"html"`
	ContentType string `json:"content_type"`
	Force       bool   `json:"force"`
}

type classifyResponse struct {
	Classification *model.Classification `json:"classification"`
	CacheHit       bool                  `json:"cache_hit"`
}

func handleClassify(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req classifyRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.URL == "" {
			respondError(w, http.StatusBadRequest, "url is required")
			return
		}

		res, err := env.Classifier.Classify(r.Context(), classify.Input{
			URL:         req.URL,
			HTML:        []byte(req.HTML),
			ContentType: req.ContentType,
			Force:       req.Force,
		})
		if err != nil {
			zap.L().Warn("serve: classify failed",
				zap.String("url", req.URL),
				zap.String("request_id", w.Header().Get("X-Request-ID")),
				zap.Error(err),
			)
			respondError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}

		respondJSON(w, http.StatusOK, classifyResponse{
			Classification: res.Classification,
			CacheHit:       res.CacheHit,
		})
	}
}

func handleScore(env *appEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var facts factsFile
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&facts); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		report, err := buildReport(r.Context(), env.Scorer, facts)
		if err != nil {
			respondError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		respondJSON(w, http.StatusOK, report)
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
