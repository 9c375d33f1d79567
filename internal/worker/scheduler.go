package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"tron-gateway/internal/config"
	"tron-gateway/internal/usecase"
	"tron-gateway/internal/webhook"
)

// pendingBacklogWarning is the stats threshold the health check flags.
const pendingBacklogWarning = 100

// Scheduler runs the gateway's periodic work: deposit scanning, pending
// transfer draining, old-record cleanup and a health probe. The four loops
// are independent; a tick that fails logs and waits for the next one.
type Scheduler struct {
	monitor   *usecase.MonitoringService
	transfers *usecase.TransferService
	fees      *usecase.FeeService
	notifier  *webhook.Notifier
	cfg       config.ScheduleConfig
	retention time.Duration
	logger    *zap.Logger

	wg sync.WaitGroup
}

func NewScheduler(
	monitor *usecase.MonitoringService,
	transfers *usecase.TransferService,
	fees *usecase.FeeService,
	notifier *webhook.Notifier,
	cfg config.ScheduleConfig,
	retention time.Duration,
	logger *zap.Logger,
) *Scheduler {
	return &Scheduler{
		monitor:   monitor,
		transfers: transfers,
		fees:      fees,
		notifier:  notifier,
		cfg:       cfg,
		retention: retention,
		logger:    logger,
	}
}

// Start launches the loops. They stop when ctx is cancelled; Wait blocks
// until they have all drained.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("scheduler starting",
		zap.Duration("monitor_interval", s.cfg.MonitorInterval),
		zap.Duration("drain_interval", s.cfg.DrainInterval),
		zap.Duration("cleanup_interval", s.cfg.CleanupInterval),
		zap.Duration("health_check_interval", s.cfg.HealthCheckInterval))

	s.run(ctx, "deposit_monitor", s.cfg.MonitorInterval, s.scanTick)
	s.run(ctx, "transfer_drain", s.cfg.DrainInterval, s.drainTick)
	s.run(ctx, "cleanup", s.cfg.CleanupInterval, s.cleanupTick)
	s.run(ctx, "health_check", s.cfg.HealthCheckInterval, s.healthTick)
}

// Wait blocks until every loop has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// run starts one ticker loop. The next tick is only consumed after the
// handler returns, so slow handlers delay rather than overlap themselves.
func (s *Scheduler) run(ctx context.Context, name string, interval time.Duration, tick func(ctx context.Context) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("loop stopping", zap.String("loop", name))
				return
			case <-ticker.C:
				if err := tick(ctx); err != nil && ctx.Err() == nil {
					s.logger.Error("tick failed",
						zap.String("loop", name),
						zap.Error(err))
				}
			}
		}
	}()
}

func (s *Scheduler) scanTick(ctx context.Context) error {
	_, err := s.monitor.ScanAll(ctx)
	return err
}

func (s *Scheduler) drainTick(ctx context.Context) error {
	_, err := s.transfers.ProcessPending(ctx)
	return err
}

func (s *Scheduler) cleanupTick(ctx context.Context) error {
	transfersDropped, err := s.transfers.CleanupOldRecords(ctx, s.retention)
	if err != nil {
		return err
	}
	depositsDropped, err := s.monitor.CleanupOldRecords(ctx, s.retention)
	if err != nil {
		return err
	}
	if transfersDropped > 0 || depositsDropped > 0 {
		s.logger.Info("old records cleaned up",
			zap.Int64("transfers", transfersDropped),
			zap.Int64("deposits", depositsDropped))
	}
	return nil
}

// healthTick probes the webhook endpoint, refreshes the fee engine's network
// state and inspects the deposit backlog.
func (s *Scheduler) healthTick(ctx context.Context) error {
	if err := s.notifier.HealthCheck(ctx); err != nil {
		s.logger.Warn("webhook endpoint unhealthy", zap.Error(err))
	}

	if err := s.fees.RefreshNetworkState(ctx); err != nil {
		s.logger.Warn("network state refresh failed", zap.Error(err))
	}

	stats, err := s.monitor.Stats(ctx)
	if err != nil {
		return err
	}
	if stats.Pending > pendingBacklogWarning {
		s.logger.Warn("deposit backlog growing",
			zap.Int64("pending", stats.Pending),
			zap.Int64("total", stats.Total))
	} else {
		s.logger.Debug("health check ok",
			zap.Int64("total_deposits", stats.Total),
			zap.Int64("pending", stats.Pending),
			zap.Int64("completed", stats.Completed))
	}
	return nil
}
