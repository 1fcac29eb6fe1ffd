package handlers

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	domain "github.com/nilecart/api/internal/domain"
	"github.com/nilecart/api/internal/services"
)

// HealthHandlers serves liveness and readiness probes. Healthz answers from
// build info alone; Readyz consults the system service so dependency outages
// take the instance out of rotation.
type HealthHandlers struct {
	build  services.BuildInfo
	system services.SystemService
	clock  func() time.Time
}

// HealthOption customises HealthHandlers.
type HealthOption func(*HealthHandlers)

// WithHealthBuildInfo sets the build metadata reported by the probes.
func WithHealthBuildInfo(build services.BuildInfo) HealthOption {
	return func(h *HealthHandlers) {
		h.build = build
	}
}

// WithHealthSystemService wires the dependency health report used by Readyz.
func WithHealthSystemService(system services.SystemService) HealthOption {
	return func(h *HealthHandlers) {
		h.system = system
	}
}

// WithHealthClock overrides the time source, primarily for tests.
func WithHealthClock(clock func() time.Time) HealthOption {
	return func(h *HealthHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// NewHealthHandlers constructs probe handlers.
func NewHealthHandlers(opts ...HealthOption) *HealthHandlers {
	h := &HealthHandlers{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

type healthzResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version,omitempty"`
	CommitSHA     string `json:"commitSha,omitempty"`
	Environment   string `json:"environment,omitempty"`
	UptimeSeconds int64  `json:"uptimeSeconds,omitempty"`
}

type readyzCheck struct {
	Status    string `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latencyMs,omitempty"`
	CheckedAt string `json:"checkedAt,omitempty"`
}

type readyzResponse struct {
	Status        string                 `json:"status"`
	Version       string                 `json:"version,omitempty"`
	CommitSHA     string                 `json:"commitSha,omitempty"`
	Environment   string                 `json:"environment,omitempty"`
	UptimeSeconds int64                  `json:"uptimeSeconds,omitempty"`
	GeneratedAt   string                 `json:"generatedAt,omitempty"`
	Checks        map[string]readyzCheck `json:"checks,omitempty"`
	Details       []string               `json:"details"`
}

// Healthz reports process liveness with build metadata.
func (h *HealthHandlers) Healthz(w http.ResponseWriter, r *http.Request) {
	resp := healthzResponse{
		Status:      domain.HealthStatusOK,
		Version:     strings.TrimSpace(h.build.Version),
		CommitSHA:   strings.TrimSpace(h.build.CommitSHA),
		Environment: strings.TrimSpace(h.build.Environment),
	}
	if !h.build.StartedAt.IsZero() && h.clock != nil {
		if uptime := h.clock().Sub(h.build.StartedAt); uptime > 0 {
			resp.UptimeSeconds = int64(uptime.Seconds())
		}
	}
	writeJSONResponse(w, http.StatusOK, resp)
}

// Readyz reports readiness based on the dependency health report. Anything
// other than an all-ok report answers 503.
func (h *HealthHandlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.system == nil {
		writeJSONResponse(w, http.StatusOK, readyzResponse{
			Status:  domain.HealthStatusOK,
			Details: []string{},
		})
		return
	}

	report, err := h.system.HealthReport(r.Context())
	if err != nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, readyzResponse{
			Status:  domain.HealthStatusError,
			Details: []string{err.Error()},
		})
		return
	}

	resp := readyzResponse{
		Status:        report.Status,
		Version:       strings.TrimSpace(report.Version),
		CommitSHA:     strings.TrimSpace(report.CommitSHA),
		Environment:   strings.TrimSpace(report.Environment),
		UptimeSeconds: int64(report.Uptime.Seconds()),
		GeneratedAt:   formatTime(report.GeneratedAt),
		Details:       []string{},
	}
	if len(report.Checks) > 0 {
		resp.Checks = make(map[string]readyzCheck, len(report.Checks))
		names := make([]string, 0, len(report.Checks))
		for name := range report.Checks {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			check := report.Checks[name]
			resp.Checks[name] = readyzCheck{
				Status:    check.Status,
				Detail:    strings.TrimSpace(check.Detail),
				Error:     strings.TrimSpace(check.Error),
				LatencyMS: check.Latency.Milliseconds(),
				CheckedAt: formatTime(check.CheckedAt),
			}
			if check.Status != domain.HealthStatusOK && strings.TrimSpace(check.Error) != "" {
				resp.Details = append(resp.Details, fmt.Sprintf("%s: %s", name, check.Error))
			}
		}
	}

	status := http.StatusOK
	if report.Status != domain.HealthStatusOK {
		status = http.StatusServiceUnavailable
	}
	writeJSONResponse(w, status, resp)
}
