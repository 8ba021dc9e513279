// Package httpapi exposes the engine's operational surface: health,
// per-player states, the current device directory snapshot, and the
// manual controls operators need.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Nixie-Tech-LLC/stheno/internal/discovery"
	"github.com/Nixie-Tech-LLC/stheno/internal/engine"
)

type EngineController struct {
	engine    *engine.Engine
	directory *discovery.Directory
}

func NewEngineController(e *engine.Engine, d *discovery.Directory) *EngineController {
	return &EngineController{engine: e, directory: d}
}

func RegisterEngineRoutes(r gin.IRoutes, e *engine.Engine, d *discovery.Directory) {
	ctl := NewEngineController(e, d)
	r.GET("/health", ctl.health)
	r.GET("/players", ctl.listPlayerStates)
	r.GET("/devices", ctl.listDevices)
	r.POST("/tick", ctl.triggerTick)
	r.POST("/players/:id/stop", ctl.stopPlayer)
}

// GET /api/engine/health
func (e *EngineController) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().Format(time.RFC3339)})
}

// GET /api/engine/players
func (e *EngineController) listPlayerStates(c *gin.Context) {
	c.JSON(http.StatusOK, e.engine.PlayerStates())
}

// GET /api/engine/devices
func (e *EngineController) listDevices(c *gin.Context) {
	c.JSON(http.StatusOK, e.directory.Snapshot())
}

// POST /api/engine/tick
func (e *EngineController) triggerTick(c *gin.Context) {
	e.engine.RequestTick()
	c.JSON(http.StatusAccepted, gin.H{"status": "tick requested"})
}

// POST /api/engine/players/:id/stop
func (e *EngineController) stopPlayer(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid player id"})
		return
	}
	if err := e.engine.StopPlayer(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}
