// Package statusapi exposes a small read-only JSON endpoint reporting
// the miner's live session state, for operators and dashboards.
package statusapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/boomstarternetwork/nightminer/internal/stratum"
)

// Snapshotter is anything that can report its current Stats; satisfied
// by *stratum.Miner.
type Snapshotter interface {
	Snapshot() stratum.Stats
}

// NewEngine builds the gin engine serving GET /status.
func NewEngine(m Snapshotter) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, m.Snapshot())
	})

	return engine
}
