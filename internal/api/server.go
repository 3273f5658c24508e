// Package api exposes the tender collections and the ingestion trigger over
// HTTP.
package api

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/david/tender-radar/internal/config"
	"github.com/david/tender-radar/internal/ingest"
	"github.com/david/tender-radar/internal/store"
	"github.com/david/tender-radar/internal/ted"
	"github.com/david/tender-radar/internal/translate"
)

type Server struct {
	Echo      *echo.Echo
	Store     store.TenderStore
	Runs      store.RunLog
	Pipeline  *ingest.Pipeline
	Translate *translate.Service
	Tables    *config.Tables
}

var (
	adminSecretOnce    sync.Once
	adminSecretRuntime string
	adminSecretErr     error
)

func NewServer(st store.TenderStore, runs store.RunLog, pipeline *ingest.Pipeline, translator *translate.Service, tables *config.Tables) *Server {
	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	// CORS: allow frontend origins from env or default to localhost
	allowedOrigins := []string{"http://localhost:4200"}
	if extra := os.Getenv("CORS_ORIGINS"); extra != "" {
		for _, o := range strings.Split(extra, ",") {
			o = strings.TrimSpace(o)
			if o != "" {
				allowedOrigins = append(allowedOrigins, o)
			}
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: allowedOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		Echo:      e,
		Store:     st,
		Runs:      runs,
		Pipeline:  pipeline,
		Translate: translator,
		Tables:    tables,
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	api := s.Echo.Group("/api/v1")
	api.GET("/tenders", s.handleListTenders)
	api.GET("/tenders/:id", s.handleGetTender)
	api.GET("/categories", s.handleGetCategories)
	api.GET("/runs", s.handleGetRuns)

	admin := api.Group("")
	admin.Use(s.adminMiddleware)
	admin.POST("/ingest", s.handleTriggerIngest)
	admin.POST("/tenders/:id/translate", s.handleTranslateTender)
	admin.POST("/tenders/:id/move", s.handleMoveTender)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// collectionParam validates the collection query parameter, defaulting to the
// unresolved inbox.
func collectionParam(c echo.Context) (string, error) {
	raw := c.QueryParam("collection")
	if raw == "" {
		return store.Collections[0], nil
	}
	for _, known := range store.Collections {
		if raw == known {
			return raw, nil
		}
	}
	return "", fmt.Errorf("unknown collection %q", raw)
}

func (s *Server) handleListTenders(c echo.Context) error {
	collection, err := collectionParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	tenders, err := s.Store.List(c.Request().Context(), collection)
	if err != nil {
		c.Logger().Errorf("Failed to list %s: %v", collection, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Internal Server Error"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"collection": collection,
		"count":      len(tenders),
		"tenders":    tenders,
	})
}

func (s *Server) handleGetTender(c echo.Context) error {
	collection, err := collectionParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	doc, err := s.Store.Get(c.Request().Context(), collection, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, doc)
}

func (s *Server) handleGetCategories(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"monitored": s.Tables.Monitored,
	})
}

func (s *Server) handleGetRuns(c echo.Context) error {
	limit := 10
	if raw := c.QueryParam("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 100 {
			limit = parsed
		}
	}

	runs, err := s.Runs.RecentRuns(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if runs == nil {
		runs = []store.Run{}
	}
	return c.JSON(http.StatusOK, runs)
}

func (s *Server) handleTriggerIngest(c echo.Context) error {
	var cfg ted.SearchConfig
	if err := c.Bind(&cfg); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}

	report, err := s.Pipeline.Ingest(c.Request().Context(), cfg)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) handleTranslateTender(c echo.Context) error {
	collection, err := collectionParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	doc, err := s.Translate.EnsureEnglish(c.Request().Context(), collection, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, doc)
}

type moveRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (s *Server) handleMoveTender(c echo.Context) error {
	var req moveRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request"})
	}
	if !knownCollection(req.From) || !knownCollection(req.To) || req.From == req.To {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid source or destination collection"})
	}

	err := s.Store.Move(c.Request().Context(), c.Param("id"), req.From, req.To)
	if errors.Is(err, store.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Not found"})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "moved", "collection": req.To})
}

func knownCollection(collection string) bool {
	for _, known := range store.Collections {
		if collection == known {
			return true
		}
	}
	return false
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		secret, err := adminSecret()
		if err != nil {
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Server admin configuration error"})
		}

		// Check X-Admin-Secret header or Bearer token
		authHeader := c.Request().Header.Get("Authorization")
		adminHeader := c.Request().Header.Get("X-Admin-Secret")

		if adminHeader == secret {
			return next(c)
		}
		if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
			if authHeader[7:] == secret {
				return next(c)
			}
		}

		return c.JSON(http.StatusUnauthorized, map[string]string{"error": "Unauthorized admin access"})
	}
}

func adminSecret() (string, error) {
	adminSecretOnce.Do(func() {
		secret := strings.TrimSpace(os.Getenv("ADMIN_SECRET"))
		if secret != "" {
			adminSecretRuntime = secret
			return
		}

		buf := make([]byte, 48)
		if _, err := rand.Read(buf); err != nil {
			adminSecretErr = fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
			return
		}

		adminSecretRuntime = base64.RawURLEncoding.EncodeToString(buf)
		log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	})

	if adminSecretErr != nil {
		return "", adminSecretErr
	}
	if adminSecretRuntime == "" {
		return "", fmt.Errorf("admin secret unavailable")
	}

	return adminSecretRuntime, nil
}
