package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"

	"resume-ats/internal/shared/server/respond"
)

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// Service encapsulates health-related checks.
type Service struct {
	RulesVersion string
	Timeout      time.Duration

	checks map[string]CheckFunc
}

// Report is the health payload.
type Report struct {
	OK           bool              `json:"ok"`
	RulesVersion string            `json:"rulesVersion,omitempty"`
	Checks       map[string]string `json:"checks,omitempty"`
}

// NewService constructs a new health service.
func NewService(rulesVersion string) *Service {
	return &Service{RulesVersion: rulesVersion, Timeout: 2 * time.Second, checks: map[string]CheckFunc{}}
}

// Add registers a named dependency check.
func (s *Service) Add(name string, fn CheckFunc) {
	if fn != nil {
		s.checks[name] = fn
	}
}

// Status runs every check. A failed dependency marks the report not ok.
func (s *Service) Status(ctx context.Context) Report {
	r := Report{OK: true, RulesVersion: s.RulesVersion}
	if len(s.checks) == 0 {
		return r
	}
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	r.Checks = make(map[string]string, len(names))
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, s.Timeout)
		err := s.checks[name](cctx)
		cancel()
		if err != nil {
			r.OK = false
			r.Checks[name] = err.Error()
			continue
		}
		r.Checks[name] = "ok"
	}
	return r
}

// RegisterRoutes attaches GET /health.
func (s *Service) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", func(c *gin.Context) {
		r := s.Status(c.Request.Context())
		status := http.StatusOK
		if !r.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, r)
	})
}
