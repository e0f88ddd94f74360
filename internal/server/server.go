// Package server implements C10, the request surface: six HTTP endpoints,
// thin wrappers over C8 (indexing.Coordinator) and C9 (query.Engine).
//
// github.com/gin-gonic/gin is this corpus's idiomatic choice for the HTTP
// layer, replacing the MCP-over-stdio transport (internal/mcp/server.go)
// while keeping its lifecycle shape verbatim in spirit: Engine.Serve/Shutdown
// satisfy lifecycle.Server so lifecycle.Run drives this the same way it
// would drive any other transport.
package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/agent-brain/core/internal/apperr"
	"github.com/agent-brain/core/internal/indexing"
	"github.com/agent-brain/core/internal/model"
	"github.com/agent-brain/core/internal/query"
)

// HealthInfo is the static liveness payload GET /health returns.
type HealthInfo struct {
	Version    string
	Mode       model.RuntimeMode
	InstanceID string
}

// Engine wires the six endpoints onto a gin.Engine, implementing
// lifecycle.Server so the process-wide Run loop can drive it.
type Engine struct {
	router *gin.Engine
	http   *http.Server

	health      HealthInfo
	coordinator *indexing.Coordinator
	query       *query.Engine
}

// New builds the request surface. health is static per-process; coordinator
// and queryEngine are the already-constructed C8/C9 instances.
func New(health HealthInfo, coordinator *indexing.Coordinator, queryEngine *query.Engine) *Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	e := &Engine{
		router:      router,
		health:      health,
		coordinator: coordinator,
		query:       queryEngine,
	}
	e.registerRoutes()
	e.http = &http.Server{Handler: router}
	return e
}

func (e *Engine) registerRoutes() {
	e.router.GET("/health", e.handleHealth)
	e.router.GET("/health/status", e.handleHealthStatus)
	e.router.POST("/index", e.handleIndex)
	e.router.POST("/index/add", e.handleIndexAdd)
	e.router.DELETE("/index", e.handleIndexReset)
	e.router.POST("/query", e.handleQuery)
}

// Serve implements lifecycle.Server.
func (e *Engine) Serve(ln net.Listener) error {
	err := e.http.Serve(ln)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown implements lifecycle.Server.
func (e *Engine) Shutdown(ctx context.Context) error {
	return e.http.Shutdown(ctx)
}

func (e *Engine) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version":     e.health.Version,
		"mode":        e.health.Mode,
		"instance_id": e.health.InstanceID,
	})
}

// healthStatus classifies {healthy, indexing, degraded, unhealthy} from
// IndexingState + store readiness: indexing while a
// job is in flight, unhealthy after the most recent job failed, degraded
// while the vector store reports itself not initialized, healthy otherwise.
func (e *Engine) handleHealthStatus(c *gin.Context) {
	state := e.coordinator.GetStatus()
	status := "healthy"
	switch {
	case state.IsIndexing:
		status = "indexing"
	case state.Status == model.StatusFailed:
		status = "unhealthy"
	case !e.query.Vector.IsInitialized():
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":   status,
		"indexing": state,
	})
}

type indexRequestBody struct {
	FolderPath   string `json:"folder_path" binding:"required"`
	Recursive    bool   `json:"recursive"`
	IncludeCode  bool   `json:"include_code"`
	ChunkSize    int    `json:"chunk_size"`
	ChunkOverlap int    `json:"chunk_overlap"`
}

func (e *Engine) handleIndex(c *gin.Context) { e.startIndexing(c, true) }

func (e *Engine) handleIndexAdd(c *gin.Context) { e.startIndexing(c, false) }

func (e *Engine) startIndexing(c *gin.Context, reset bool) {
	var body indexRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, apperr.New(apperr.BadRequest, err.Error()))
		return
	}
	jobID, err := e.coordinator.StartIndexing(indexing.Request{
		FolderPath:   body.FolderPath,
		Recursive:    body.Recursive,
		IncludeCode:  body.IncludeCode,
		ChunkSize:    body.ChunkSize,
		ChunkOverlap: body.ChunkOverlap,
		Reset:        reset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": model.StatusIndexing})
}

func (e *Engine) handleIndexReset(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()
	if err := e.coordinator.Reset(ctx); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

type queryRequestBody struct {
	QueryText           string      `json:"query_text" binding:"required"`
	Mode                query.Mode  `json:"mode"`
	TopK                int         `json:"top_k"`
	SimilarityThreshold float64     `json:"similarity_threshold"`
	Alpha               float64     `json:"alpha"`
	SourceTypes         []string    `json:"source_types"`
	Languages           []string    `json:"languages"`
	FilePaths           []string    `json:"file_paths"`
}

func (e *Engine) handleQuery(c *gin.Context) {
	var body queryRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, apperr.New(apperr.BadRequest, err.Error()))
		return
	}
	resp, err := e.query.Query(c.Request.Context(), query.Request{
		QueryText:           body.QueryText,
		Mode:                body.Mode,
		TopK:                body.TopK,
		SimilarityThreshold: body.SimilarityThreshold,
		Alpha:               body.Alpha,
		SourceTypes:         body.SourceTypes,
		Languages:           body.Languages,
		FilePaths:           body.FilePaths,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// writeError renders {"error":{"code":...,"message":...}},
// status chosen from the error's apperr.Kind.
func writeError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := http.StatusInternalServerError
	if ae, ok := err.(*apperr.Error); ok {
		status = ae.HTTPStatus()
	}
	c.JSON(status, gin.H{"error": gin.H{"code": kind, "message": err.Error()}})
}
