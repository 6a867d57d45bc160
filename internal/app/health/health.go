// Package health aggregates the state of the stores the service depends on.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/Miraines/yuzedo/client-service/internal/domain/client/model"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"

	ServiceApp      = "app"
	ServiceDatabase = "postgresql"
	ServiceCache    = "redis"

	Version = "1.0.0"
)

type Probe interface {
	Ping(ctx context.Context) error
}

type StatsSource interface {
	Stats(ctx context.Context) (model.Stats, error)
}

type ServiceStatus struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type Statistics struct {
	TotalUsers      int64 `json:"total_users"`
	ActiveUsers     int64 `json:"active_users"`
	PendingUsers    int64 `json:"pending_users"`
	ActiveCompanies int64 `json:"active_companies"`
	Individuals     int64 `json:"individuals"`
	Organizations   int64 `json:"organizations"`
}

type StatisticsError struct {
	Error string `json:"error"`
}

// Report is the health document. Statistics holds either Statistics or
// StatisticsError.
type Report struct {
	Status      string                   `json:"status"`
	Timestamp   time.Time                `json:"timestamp"`
	Version     string                   `json:"version"`
	Environment string                   `json:"environment"`
	Services    map[string]ServiceStatus `json:"services"`
	Statistics  any                      `json:"statistics"`
}

func (r Report) Healthy() bool {
	return r.Status == StatusHealthy
}

type Checker struct {
	db          Probe
	cache       Probe
	stats       StatsSource
	environment string
	timeout     time.Duration
	log         *zap.Logger
	now         func() time.Time
}

func NewChecker(db, cache Probe, stats StatsSource, environment string, log *zap.Logger) *Checker {
	return &Checker{
		db:          db,
		cache:       cache,
		stats:       stats,
		environment: environment,
		timeout:     3 * time.Second,
		log:         log,
		now:         time.Now,
	}
}

// Check probes every dependency concurrently. It never fails: problems are
// reported inside the document.
func (c *Checker) Check(ctx context.Context) Report {
	report := Report{
		Status:      StatusHealthy,
		Timestamp:   c.now(),
		Version:     Version,
		Environment: c.environment,
		Services: map[string]ServiceStatus{
			ServiceApp: {Status: StatusHealthy, Message: "application is running"},
		},
	}

	var mu sync.Mutex
	set := func(name string, st ServiceStatus) {
		mu.Lock()
		defer mu.Unlock()
		report.Services[name] = st
		if st.Status != StatusHealthy {
			report.Status = StatusUnhealthy
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		set(ServiceDatabase, c.probe(gctx, ServiceDatabase, c.db, "PostgreSQL is available"))
		return nil
	})
	g.Go(func() error {
		set(ServiceCache, c.probe(gctx, ServiceCache, c.cache, "Redis is available"))
		return nil
	})
	g.Go(func() error {
		stats := c.statistics(gctx)
		mu.Lock()
		report.Statistics = stats
		mu.Unlock()
		return nil
	})
	_ = g.Wait()

	return report
}

func (c *Checker) probe(ctx context.Context, name string, p Probe, okMsg string) ServiceStatus {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		c.log.Warn("health probe failed", zap.String("service", name), zap.Error(err))
		return ServiceStatus{Status: StatusUnhealthy, Message: err.Error()}
	}
	return ServiceStatus{Status: StatusHealthy, Message: okMsg}
}

func (c *Checker) statistics(ctx context.Context) any {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	s, err := c.stats.Stats(ctx)
	if err != nil {
		return StatisticsError{Error: err.Error()}
	}
	return Statistics{
		TotalUsers:      s.TotalUsers,
		ActiveUsers:     s.ActiveUsers,
		PendingUsers:    s.PendingUsers,
		ActiveCompanies: s.ActiveCompanies,
		Individuals:     s.Individuals,
		Organizations:   s.Organizations,
	}
}
