package service

import (
	"context"
	"errors"
	"time"

	"testverse_backend/internal/model"
	"testverse_backend/internal/util"
	"testverse_backend/pkg/logger"
	"testverse_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const sweepLockKey = "testverse:exam:sweep:lock"

// SweepService 定时扫描过期的进行中答卷并自动交卷。
// 提交时间记为答卷的截止时间，而不是扫描执行时间。
type SweepService struct {
	attempts    AttemptStore
	extensions  ExtensionStore
	results     *ResultService
	eligibility *EligibilityService
	redis       *redis.Client
	interval    time.Duration
	clock       Clock
}

func NewSweepService(
	attempts AttemptStore,
	extensions ExtensionStore,
	results *ResultService,
	eligibility *EligibilityService,
	redisClient *redis.Client,
	interval time.Duration,
	clock Clock,
) *SweepService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if clock == nil {
		clock = SystemClock
	}
	return &SweepService{
		attempts:    attempts,
		extensions:  extensions,
		results:     results,
		eligibility: eligibility,
		redis:       redisClient,
		interval:    interval,
		clock:       clock,
	}
}

// Run 周期执行直到 ctx 取消。
func (s *SweepService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			count, err := s.RunOnce(ctx)
			if err != nil {
				logger.Log.Error("auto submit sweep failed", zap.Error(err))
				continue
			}
			if count > 0 {
				logger.Log.Info("auto submitted expired attempts", zap.Int("count", count))
			}
		}
	}
}

// RunOnce 单轮扫描，返回本轮自动交卷数。
// 单个答卷失败只记录日志，不中断本轮其余答卷。
func (s *SweepService) RunOnce(ctx context.Context) (int, error) {
	if s.redis != nil {
		acquired, err := s.redis.SetNX(ctx, sweepLockKey, "1", s.interval).Result()
		if err != nil {
			// Redis 不可用时降级为本地扫描
			logger.Log.Warn("sweep lock unavailable", zap.Error(err))
		} else if !acquired {
			return 0, nil
		}
	}

	attempts, err := s.attempts.ListInProgress()
	if err != nil {
		return 0, err
	}

	now := s.clock.Now()
	count := 0
	for i := range attempts {
		attempt := &attempts[i]
		if attempt.Exam == nil {
			continue
		}
		ext, err := s.extensions.FindByExamAndStudent(attempt.ExamID, attempt.StudentID)
		if err != nil {
			monitoring.SweepErrorsTotal.Inc()
			logger.Log.Error("sweep extension lookup failed",
				zap.String("attempt_id", attempt.ID), zap.Error(err))
			continue
		}
		deadline := s.eligibility.ResolveDeadline(attempt.Exam, ext)
		if !now.After(deadline) {
			continue
		}
		submitted, err := s.autoSubmit(attempt, deadline)
		if err != nil {
			monitoring.SweepErrorsTotal.Inc()
			logger.Log.Error("auto submit failed",
				zap.String("attempt_id", attempt.ID), zap.Error(err))
			continue
		}
		if submitted {
			count++
			monitoring.AutoSubmittedTotal.Inc()
		}
	}
	return count, nil
}

// autoSubmit CAS 落败说明学生或其他实例已交卷，按无事发生处理。
func (s *SweepService) autoSubmit(attempt *model.ExamAttempt, deadline time.Time) (bool, error) {
	err := s.attempts.TransitionStatus(attempt.ID, model.AttemptInProgress, model.AttemptAutoSubmitted, deadline)
	if errors.Is(err, util.ErrStorageConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	attempt.Status = model.AttemptAutoSubmitted
	submitTime := deadline
	attempt.SubmitTime = &submitTime
	if _, err := s.results.Recompute(attempt); err != nil {
		return true, err
	}
	return true, nil
}
