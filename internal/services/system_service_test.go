package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/nilecart/api/internal/domain"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
}

func (s *stubHealthRepository) Collect(context.Context) (domain.SystemHealthReport, error) {
	return s.report, s.err
}

func TestSystemServiceHealthReportFillsDefaults(t *testing.T) {
	started := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
			},
		},
	}

	service, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            fixedClock(now),
		Build: BuildInfo{
			Version:     "1.2.3",
			CommitSHA:   "abc123",
			Environment: "prod",
			StartedAt:   started,
		},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := service.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected derived ok status, got %s", report.Status)
	}
	if report.Version != "1.2.3" || report.CommitSHA != "abc123" || report.Environment != "prod" {
		t.Fatalf("build metadata not filled: %+v", report)
	}
	if report.Uptime != time.Hour {
		t.Fatalf("expected one hour uptime, got %s", report.Uptime)
	}
	if !report.GeneratedAt.Equal(now) {
		t.Fatalf("expected generatedAt %s, got %s", now, report.GeneratedAt)
	}
}

func TestSystemServiceHealthReportDerivesWorstStatus(t *testing.T) {
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Checks: map[string]domain.SystemHealthCheck{
				"firestore": {Status: domain.HealthStatusOK},
				"pubsub":    {Status: domain.HealthStatusError, Error: "publish failed"},
			},
		},
	}
	service, err := NewSystemService(SystemServiceDeps{
		HealthRepository: repo,
		Clock:            fixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := service.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusError {
		t.Fatalf("expected error status to win, got %s", report.Status)
	}
}

func TestSystemServiceHealthReportPropagatesCollectError(t *testing.T) {
	wantErr := errors.New("probe exploded")
	service, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{err: wantErr},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	if _, err := service.HealthReport(context.Background()); !errors.Is(err, wantErr) {
		t.Fatalf("expected collect error passthrough, got %v", err)
	}
}
