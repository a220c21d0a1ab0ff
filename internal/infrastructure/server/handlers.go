package server

import (
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/uniremote/backend/internal/shared/types"
	"github.com/GriffinCanCode/uniremote/backend/internal/worker"
)

// RemoteStatus is one entry of GET /remotes
type RemoteStatus struct {
	ID          types.RemoteID   `json:"id"`
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	Description string           `json:"description,omitempty"`
	Platforms   []types.Platform `json:"platforms,omitempty"`
	Script      bool             `json:"script"`
	Worker      *worker.Stats    `json:"worker,omitempty"`
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"remotes": len(s.catalog),
		"workers": len(s.registry.IDs()),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) listRemotes(c *gin.Context) {
	stats := make(map[types.RemoteID]worker.Stats)
	for _, st := range s.registry.Stats() {
		stats[st.Remote] = st
	}

	ids := make([]types.RemoteID, 0, len(s.catalog))
	for id := range s.catalog {
		ids = append(ids, id)
	}
	for id := range stats {
		if _, ok := s.catalog[id]; !ok {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)

	out := make([]RemoteStatus, 0, len(ids))
	for _, id := range ids {
		var ws *worker.Stats
		if st, ok := stats[id]; ok {
			ws = &st
		}
		out = append(out, s.status(id, ws))
	}
	c.JSON(http.StatusOK, gin.H{"remotes": out})
}

func (s *Server) getRemote(c *gin.Context) {
	id := types.RemoteID(strings.Trim(c.Param("id"), "/"))

	var ws *worker.Stats
	if w, ok := s.registry.Get(id); ok {
		st := w.Stats()
		ws = &st
	}
	if _, known := s.catalog[id]; !known && ws == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "remote not found", "id": id})
		return
	}
	c.JSON(http.StatusOK, s.status(id, ws))
}

func (s *Server) status(id types.RemoteID, ws *worker.Stats) RemoteStatus {
	r := s.catalog[id]
	return RemoteStatus{
		ID:          id,
		Name:        r.Meta.Name,
		Version:     r.Meta.Version,
		Description: r.Meta.Description,
		Platforms:   r.Meta.Platforms,
		Script:      r.Script != "",
		Worker:      ws,
	}
}
