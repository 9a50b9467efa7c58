// Package server exposes the image relay over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/img-relay/pkg/config"
	"github.com/Sriram-PR/img-relay/pkg/models"
	"github.com/Sriram-PR/img-relay/pkg/relay"
	"github.com/Sriram-PR/img-relay/pkg/utils"
)

const (
	imageCacheControl = "public, max-age=86400"
	shutdownTimeout   = 15 * time.Second
	multipartOverhead = 1 << 20 // Allowance for multipart framing around the file part
)

// Relay is the subset of relay.Service the HTTP handlers need.
type Relay interface {
	Resolve(ctx context.Context, reference string) models.Resolution
	ResolveAndFetch(ctx context.Context, reference string) (*models.Image, error)
	Compress(data []byte, variant models.Variant) (*models.EncodedImage, error)
}

// Server holds the router and its dependencies.
type Server struct {
	relay     Relay
	cfg       config.ServerConfig
	maxUpload int64
	limiter   *RateLimiter // nil when rate limiting is disabled
	router    chi.Router
	log       *logrus.Entry
}

// New builds the router. cfg must already be validated.
func New(r Relay, cfg *config.AppConfig, log *logrus.Entry) *Server {
	s := &Server{
		relay:     r,
		cfg:       cfg.Server,
		maxUpload: cfg.Compression.MaxUploadBytes,
		log:       log,
	}
	if cfg.Server.RateLimitRPS > 0 {
		s.limiter = NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(s.log))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}
		r.Get("/resolve", s.handleResolve)
		r.Get("/image", s.handleImage)
		r.Post("/compress", s.handleCompress)
	})
	return r
}

// Handler returns the root http.Handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}
	if s.limiter != nil {
		go s.limiter.Run(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infof("Listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.URL.Query().Get("url"))
	if ref == "" {
		writeError(w, http.StatusBadRequest, "url parameter is required")
		return
	}
	writeJSON(w, http.StatusOK, s.relay.Resolve(r.Context(), ref))
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.URL.Query().Get("url"))
	if ref == "" {
		writeError(w, http.StatusBadRequest, "url parameter is required")
		return
	}

	img, err := s.relay.ResolveAndFetch(r.Context(), ref)
	if err != nil {
		s.log.WithFields(logrus.Fields{
			"request_id": RequestIDFromContext(r.Context()),
			"url":        ref,
			"category":   utils.CategorizeError(err),
		}).Warnf("Image proxy failed: %v", err)
		if errors.Is(err, utils.ErrEmptyReference) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "failed to fetch image")
		return
	}

	cacheState := "MISS"
	if img.FromCache {
		cacheState = "HIT"
	}
	w.Header().Set("Content-Type", img.ContentType)
	w.Header().Set("Cache-Control", imageCacheControl)
	w.Header().Set("X-Cache", cacheState)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(img.Data)
}

// compressResponse is the JSON body returned by POST /compress
type compressResponse struct {
	Data         string `json:"data"`
	DataURL      string `json:"data_url"`
	Size         int    `json:"size"`
	Width        int    `json:"width"`
	Height       int    `json:"height"`
	Quality      int    `json:"quality"`
	Variant      string `json:"variant"`
	WithinBudget bool   `json:"within_budget"`
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	variant, err := relay.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := s.readUpload(w, r)
	if err != nil {
		if errors.Is(err, utils.ErrInputTooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty upload")
		return
	}

	enc, err := s.relay.Compress(data, variant)
	if err != nil {
		writeError(w, compressStatus(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, compressResponse{
		Data:         enc.Base64(),
		DataURL:      enc.DataURL(),
		Size:         enc.Size(),
		Width:        enc.Width,
		Height:       enc.Height,
		Quality:      enc.Quality,
		Variant:      enc.Variant.String(),
		WithinBudget: enc.WithinBudget(),
	})
}

// readUpload returns the raw body or the multipart "file" part. It reads one
// byte past the upload cap so oversize input is reported, not truncated.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := s.maxUpload
	var src io.Reader = r.Body

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if limit > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, fmt.Errorf("%w: upload exceeds %d bytes", utils.ErrInputTooLarge, limit)
			}
			return nil, fmt.Errorf("missing multipart file field: %w", err)
		}
		defer file.Close()
		src = file
	}

	if limit > 0 {
		src = io.LimitReader(src, limit+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", utils.ErrResponseBodyRead, err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: upload exceeds %d bytes", utils.ErrInputTooLarge, limit)
	}
	return data, nil
}

func compressStatus(err error) int {
	switch {
	case errors.Is(err, utils.ErrInputTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, utils.ErrDecodeFailure), errors.Is(err, utils.ErrEncodeFailure),
		errors.Is(err, utils.ErrCompressionOverBudget):
		return http.StatusUnprocessableEntity
	case errors.Is(err, utils.ErrUnknownVariant):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
