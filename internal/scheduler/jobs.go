package scheduler

import (
	"context"
	"time"

	"github.com/CryptoMichaael/Nexus/internal/config"
	"github.com/CryptoMichaael/Nexus/internal/service"
	"github.com/CryptoMichaael/Nexus/pkg/logger"

	"github.com/robfig/cron/v3"
)

// Scheduler 三条定时线：每日收益、每周段位池、小时级段位评估
// 收益与周池均为幂等作业，崩溃后补跑安全
type Scheduler struct {
	cron *cron.Cron
	roi  *service.RoiService
	pool *service.PoolService
	rank *service.RankService
	cfg  *config.Config
}

func NewScheduler(
	roi *service.RoiService,
	pool *service.PoolService,
	rank *service.RankService,
	cfg *config.Config,
) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC)),
		roi:  roi,
		pool: pool,
		rank: rank,
		cfg:  cfg,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Roi.Cron, s.accrueRoi); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.Pool.Cron, s.runWeeklyPool); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc(s.cfg.RankCheck.Cron, s.checkRanks); err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("定时任务调度已启动")
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("定时任务调度已停止")
}

func (s *Scheduler) accrueRoi() {
	ctx := context.Background()
	day := time.Now().UTC()

	summary, err := s.roi.AccrueDaily(ctx, day)
	if err != nil {
		logger.Error("每日收益计提失败:", err)
		return
	}

	logger.WithFields(map[string]interface{}{
		"date":      day.Format("2006-01-02"),
		"processed": summary.Processed,
		"capped":    summary.Capped,
	}).Info("每日收益计提完成")
}

func (s *Scheduler) runWeeklyPool() {
	ctx := context.Background()
	if err := s.pool.Run(ctx, time.Now().UTC()); err != nil {
		logger.Error("周段位池流程失败:", err)
	}
}

func (s *Scheduler) checkRanks() {
	ctx := context.Background()
	if _, err := s.rank.CheckAll(ctx); err != nil {
		logger.Error("段位评估轮询失败:", err)
	}
}
