// Package server exposes the pipeline over HTTP: the fire-and-forget
// extraction beacon, memory reads for the chat path, and memory search.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/meganlabs/memokit/extraction"
	"github.com/meganlabs/memokit/logging"
	"github.com/meganlabs/memokit/memory"
	"github.com/meganlabs/memokit/prompt"
	"github.com/meganlabs/memokit/search"
)

// beaconTimeout bounds a beacon-triggered pipeline run after the
// HTTP response has already been sent.
const beaconTimeout = 2 * time.Minute

// Server wires the HTTP routes to the pipeline.
type Server struct {
	pipeline *extraction.Service
	repo     *memory.Repository
	index    *search.Index
	resolver *prompt.Resolver
	log      *logging.Logger
	engine   *gin.Engine
}

// New creates the server and registers its routes. index and resolver
// may be nil; the corresponding routes then respond 404 / omit fields.
func New(pipeline *extraction.Service, repo *memory.Repository, index *search.Index, resolver *prompt.Resolver, log *logging.Logger) *Server {
	if log == nil {
		log = logging.New()
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		pipeline: pipeline,
		repo:     repo,
		index:    index,
		resolver: resolver,
		log:      log.WithComponent("server"),
		engine:   engine,
	}

	engine.Use(s.requestID())

	engine.GET("/healthz", s.health)

	v1 := engine.Group("/v1")
	v1.POST("/memory/extract", s.extract)
	v1.GET("/users/:id/memory", s.getMemory)
	v1.GET("/users/:id/context", s.getContext)
	v1.GET("/users/:id/memory/search", s.searchMemory)

	return s
}

// Handler returns the http.Handler for serving or testing.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// requestID tags every request, echoing a caller-supplied ID when present.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// extractRequest is the beacon payload.
type extractRequest struct {
	UserID         string                     `json:"user_id" binding:"required"`
	ConversationID string                     `json:"conversation_id" binding:"required"`
	Nickname       string                     `json:"nickname"`
	Transcript     []memory.TranscriptMessage `json:"transcript"`
}

// extract accepts a beacon and runs the pipeline after responding.
// The 202 is the whole contract: the caller is a page-unload beacon
// that cannot wait for, or act on, the outcome.
func (s *Server) extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted"})

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), beaconTimeout)
		defer cancel()

		outcome := s.pipeline.ProcessConversation(ctx, extraction.Request{
			UserID:         req.UserID,
			ConversationID: req.ConversationID,
			Nickname:       req.Nickname,
			Transcript:     req.Transcript,
		})
		if outcome.Status == extraction.StatusFailed {
			s.log.Error("beacon extraction failed", map[string]interface{}{
				"conversation_id": req.ConversationID,
				"error":           outcome.Cause.Error(),
			})
		}
	}()
}

func (s *Server) getMemory(c *gin.Context) {
	mem := s.repo.GetAll(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, mem)
}

// getContext serves the chat path: the rendered memory block plus the
// persona system prompt when a resolver is wired.
func (s *Server) getContext(c *gin.Context) {
	userID := c.Param("id")
	nickname := c.DefaultQuery("nickname", userID)

	mem := s.repo.GetAll(c.Request.Context(), userID)

	resp := gin.H{"context": memory.Render(nickname, mem)}
	if s.resolver != nil {
		resp["system_prompt"] = s.resolver.Resolve(c.Request.Context())
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) searchMemory(c *gin.Context) {
	if s.index == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "search not enabled"})
		return
	}

	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing query parameter q"})
		return
	}

	results, err := s.index.Search(c.Param("id"), query, 0)
	if err != nil {
		s.log.Error("memory search failed", map[string]interface{}{
			"user_id": c.Param("id"),
			"error":   err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}
	if results == nil {
		results = []search.Result{}
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
