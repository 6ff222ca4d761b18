package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is any dependency that can report its reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependency is the health of one backing service
type Dependency struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Health is the body of the health endpoint
type Health struct {
	Status string       `json:"status"`
	Deps   []Dependency `json:"deps"`
}

// HealthHandler reports liveness plus a ping of each dependency
type HealthHandler struct {
	deps    map[string]Pinger
	timeout time.Duration
}

// NewHealthHandler creates a health handler over the named dependencies
func NewHealthHandler(deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		deps:    deps,
		timeout: 2 * time.Second,
	}
}

// Check pings every dependency and answers 503 if any is unreachable
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result := Health{Status: "healthy", Deps: make([]Dependency, 0, len(h.deps))}
	status := http.StatusOK

	for name, dep := range h.deps {
		d := Dependency{Name: name, Status: "healthy", Message: "OK"}
		if err := dep.Ping(ctx); err != nil {
			d.Status = "unhealthy"
			d.Message = err.Error()
			result.Status = "unhealthy"
			status = http.StatusServiceUnavailable
		}
		result.Deps = append(result.Deps, d)
	}

	c.JSON(status, result)
}
