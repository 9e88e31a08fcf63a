package queue

import (
	"context"
	"time"

	"github.com/CryptoMichaael/Nexus/internal/config"
	"github.com/CryptoMichaael/Nexus/internal/repository"
	"github.com/CryptoMichaael/Nexus/pkg/logger"
)

// Settler 结算单笔提现，由提现服务实现
type Settler interface {
	Settle(ctx context.Context, withdrawalID uint64) error
}

// Worker 轮询提现任务队列的单消费者
// 队列与账本同库，入队与余额预留天然在同一事务内；
// 任务行锁抢占保证多实例部署下同一任务只有一个执行者
type Worker struct {
	jobs    *repository.JobRepository
	settler Settler
	cfg     *config.Config
	stop    chan struct{}
	done    chan struct{}
}

func NewWorker(jobs *repository.JobRepository, settler Settler, cfg *config.Config) *Worker {
	return &Worker{
		jobs:    jobs,
		settler: settler,
		cfg:     cfg,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (w *Worker) Start(ctx context.Context) {
	go w.loop(ctx)
	logger.Info("提现结算队列已启动")
}

// Stop 等待当前任务做完再返回
func (w *Worker) Stop() {
	close(w.stop)
	<-w.done
	logger.Info("提现结算队列已停止")
}

func (w *Worker) loop(ctx context.Context) {
	defer close(w.done)

	interval := time.Duration(w.cfg.Queue.PollIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

// drain 一次吃空队列，失败任务按次数退避回队或进死信
func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		default:
		}

		job, err := w.jobs.ClaimNext(ctx)
		if err != nil {
			logger.Error("抢占提现任务失败:", err)
			return
		}
		if job == nil {
			return
		}

		if err := w.settler.Settle(ctx, job.WithdrawalID); err != nil {
			logger.WithFields(map[string]interface{}{
				"job_id":        job.ID,
				"withdrawal_id": job.WithdrawalID,
				"attempts":      job.Attempts,
			}).Error("提现结算失败:", err)

			if relErr := w.jobs.Release(ctx, job, err, w.cfg.Queue.MaxAttempts); relErr != nil {
				logger.Error("回收提现任务失败:", relErr)
			}
			// 本轮到此为止，失败任务等下个tick再试
			return
		}

		if err := w.jobs.MarkDone(ctx, job.ID); err != nil {
			logger.Error("标记任务完成失败:", err)
		}
	}
}
