package runs

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"scholarsync/internal/collector"
	"scholarsync/internal/events"
)

// Handler exposes run history and lets operators launch a pass over HTTP.
// Only one pass per process may be in flight at a time.
type Handler struct {
	Repo   *Repo
	Client *collector.Client
	Hub    *events.Hub

	running atomic.Bool
}

func NewHandler(repo *Repo, client *collector.Client, hub *events.Hub) *Handler {
	return &Handler{Repo: repo, Client: client, Hub: hub}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.list)
	rg.GET("/latest", h.latest)
	rg.GET("/:id", h.getOne)
	rg.POST("", h.start)
}

type startReq struct {
	Workers int `json:"workers"`
	Batch   int `json:"batch"`
}

func (h *Handler) start(c *gin.Context) {
	if h.Client == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "sync credentials are not configured"})
		return
	}

	var req startReq
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
	}
	if req.Workers < 0 || req.Batch < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "workers and batch must be >= 0"})
		return
	}

	if !h.running.CompareAndSwap(false, true) {
		c.JSON(http.StatusConflict, gin.H{"error": "a sync run is already in progress"})
		return
	}

	col := collector.New(h.Repo.DB, h.Client)
	col.Events = h.Hub
	col.RunID = uuid.NewString()
	if req.Workers > 0 {
		col.Workers = req.Workers
	}
	if req.Batch > 0 {
		col.Batch = req.Batch
	}

	// The pass outlives the request, so it gets its own context.
	go func() {
		defer h.running.Store(false)
		if _, err := col.Run(context.Background()); err != nil {
			log.Printf("[runs] background sync %s failed: %v", col.RunID, err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{
		"id":     col.RunID,
		"status": "started",
	})
}

func (h *Handler) list(c *gin.Context) {
	limit := parseInt(c.Query("limit"), 20)

	items, err := h.Repo.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"total": len(items),
		"items": items,
	})
}

func (h *Handler) getOne(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id required"})
		return
	}

	run, err := h.Repo.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func (h *Handler) latest(c *gin.Context) {
	run, err := h.Repo.Latest(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "get failed"})
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no runs recorded"})
		return
	}
	c.JSON(http.StatusOK, run)
}

func parseInt(s string, def int) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
