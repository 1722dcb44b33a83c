package observability

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/commercecrafted-backend/internal/domain/niches"
	"github.com/yungbote/commercecrafted-backend/internal/domain/reports"
	"github.com/yungbote/commercecrafted-backend/internal/platform/logger"
)

func every(ctx context.Context, interval time.Duration, fn func()) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fn()
			}
		}
	}()
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	every(ctx, scrapeInterval(), func() {
		sqlDB, err := db.DB()
		if err != nil {
			if log != nil {
				log.Warn("metrics: postgres stats unavailable", "error", err)
			}
			return
		}
		stats := sqlDB.Stats()
		m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
		m.pgStats.Set(float64(stats.InUse), "in_use")
		m.pgStats.Set(float64(stats.Idle), "idle")
		m.pgStats.Set(float64(stats.WaitCount), "wait_count")
		m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
		m.pgStats.Set(float64(stats.MaxOpenConnections), "max_open_connections")
	})
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb redis.UniversalClient) {
	if m == nil || rdb == nil {
		return
	}
	every(ctx, scrapeInterval(), func() {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			m.redisUp.Set(0)
			if log != nil {
				log.Warn("metrics: redis ping failed", "error", err)
			}
			return
		}
		m.redisUp.Set(1)
		m.redisPing.Set(time.Since(start).Seconds())
	})
}

// StartStatusCollector publishes niche and report counts grouped by status.
func (m *Metrics) StartStatusCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	nicheStatuses := []string{niches.StatusPending, niches.StatusProcessing, niches.StatusCompleted, niches.StatusFailed}
	reportStatuses := []string{
		reports.StatusPending, reports.StatusProcessing, reports.StatusCompleted,
		reports.StatusFailed, reports.StatusExpired, reports.StatusTimeout,
	}
	every(ctx, scrapeInterval(), func() {
		if err := m.collectStatus(ctx, db, &niches.Niche{}, nicheStatuses, m.nicheStatus); err != nil && log != nil {
			log.Warn("metrics: niche status query failed", "error", err)
		}
		if err := m.collectStatus(ctx, db, &reports.AmazonReport{}, reportStatuses, m.reportStatus); err != nil && log != nil {
			log.Warn("metrics: report status query failed", "error", err)
		}
	})
}

func (m *Metrics) collectStatus(ctx context.Context, db *gorm.DB, model interface{}, known []string, gauge *GaugeVec) error {
	var rows []struct {
		Status string
		Count  int64
	}
	if err := db.WithContext(ctx).
		Model(model).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return err
	}
	for _, s := range known {
		gauge.Set(0, s)
	}
	for _, row := range rows {
		status := strings.TrimSpace(row.Status)
		if status == "" {
			status = "unknown"
		}
		gauge.Set(float64(row.Count), status)
	}
	return nil
}
