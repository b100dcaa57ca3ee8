package service

import (
	"errors"
	"fmt"
	"time"

	"testverse_backend/internal/model"
	"testverse_backend/internal/util"
)

// AttemptService 答卷状态机：无答卷 → in_progress → submitted/auto_submitted。
// 终态不可逆，截止时间统一由 EligibilityService 解析。
type AttemptService struct {
	exams       ExamStore
	attempts    AttemptStore
	extensions  ExtensionStore
	eligibility *EligibilityService
	results     *ResultService
	saveGrace   time.Duration
	clock       Clock
}

func NewAttemptService(
	exams ExamStore,
	attempts AttemptStore,
	extensions ExtensionStore,
	eligibility *EligibilityService,
	results *ResultService,
	saveGrace time.Duration,
	clock Clock,
) *AttemptService {
	if clock == nil {
		clock = SystemClock
	}
	return &AttemptService{
		exams:       exams,
		attempts:    attempts,
		extensions:  extensions,
		eligibility: eligibility,
		results:     results,
		saveGrace:   saveGrace,
		clock:       clock,
	}
}

// StartOutcome 开考/续考的返回数据。
type StartOutcome struct {
	Attempt          *model.ExamAttempt
	Questions        []model.Question
	Answers          []model.Answer
	Resumed          bool
	Deadline         time.Time
	RemainingSeconds int64
}

// SubmitOutcome 交卷结果。重复交卷返回首次的提交时间。
type SubmitOutcome struct {
	SubmittedAt      time.Time
	AlreadySubmitted bool
}

// Start 开始或恢复考试。
// 进行中的答卷已过期时先自动交卷再报 ErrDeadlineExpired；
// 未过期则恢复已保存答案；终态答卷报 ErrAlreadySubmitted。
func (s *AttemptService) Start(user *model.User, examID string) (*StartOutcome, error) {
	exam, err := s.exams.FindWithQuestions(examID)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, util.ErrExamNotFound
	}

	now := s.clock.Now()
	attempt, err := s.attempts.FindByExamAndStudent(examID, user.ID)
	if err != nil {
		return nil, err
	}
	ext, err := s.extensions.FindByExamAndStudent(examID, user.ID)
	if err != nil {
		return nil, err
	}
	deadline := s.eligibility.ResolveDeadline(exam, ext)

	if attempt != nil {
		if attempt.Status.IsTerminal() {
			return nil, util.ErrAlreadySubmitted
		}
		if now.After(deadline) {
			if err := s.autoFinalize(attempt, deadline); err != nil {
				return nil, err
			}
			return nil, util.ErrDeadlineExpired
		}
		answers, err := s.attempts.ListAnswers(attempt.ID)
		if err != nil {
			return nil, err
		}
		return &StartOutcome{
			Attempt:          attempt,
			Questions:        exam.Questions,
			Answers:          answers,
			Resumed:          true,
			Deadline:         deadline,
			RemainingSeconds: s.eligibility.RemainingSeconds(exam, ext, now),
		}, nil
	}

	if ok, reason := s.eligibility.CheckEligibility(user, exam, false, now); !ok {
		return nil, fmt.Errorf("%w: %s", util.ErrNotEligible, reason)
	}

	attempt = &model.ExamAttempt{
		ExamID:    exam.ID,
		StudentID: user.ID,
		Status:    model.AttemptInProgress,
		StartTime: now,
	}
	if err := s.attempts.CreateWithAnswers(attempt, exam.Questions); err != nil {
		return nil, err
	}
	return &StartOutcome{
		Attempt:          attempt,
		Questions:        exam.Questions,
		Resumed:          false,
		Deadline:         deadline,
		RemainingSeconds: s.eligibility.RemainingSeconds(exam, ext, now),
	}, nil
}

// SaveAnswers 考中保存。截止时间后有 saveGrace 宽限期，宽限期外拒绝。
func (s *AttemptService) SaveAnswers(studentID uint, examID string, items []model.AnswerPatch) (int, error) {
	attempt, err := s.attempts.FindByExamAndStudent(examID, studentID)
	if err != nil {
		return 0, err
	}
	if attempt == nil || attempt.Status != model.AttemptInProgress {
		return 0, util.ErrAttemptNotFound
	}

	exam, err := s.exams.FindByID(examID)
	if err != nil {
		return 0, err
	}
	if exam == nil {
		return 0, util.ErrExamNotFound
	}
	ext, err := s.extensions.FindByExamAndStudent(examID, studentID)
	if err != nil {
		return 0, err
	}
	deadline := s.eligibility.ResolveDeadline(exam, ext)
	if s.clock.Now().After(deadline.Add(s.saveGrace)) {
		return 0, util.ErrDeadlineExpired
	}

	return s.attempts.UpsertAnswers(attempt.ID, items)
}

// Submit 学生主动交卷。进行中的答卷一律接受，不校验截止时间，
// 过期扫描由 SweepService 负责。终态答卷幂等返回原提交时间。
func (s *AttemptService) Submit(studentID uint, examID string, items []model.AnswerPatch) (*SubmitOutcome, error) {
	attempt, err := s.attempts.FindByExamAndStudent(examID, studentID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, util.ErrAttemptNotFound
	}

	now := s.clock.Now()
	if attempt.Status.IsTerminal() {
		submittedAt := now
		if attempt.SubmitTime != nil {
			submittedAt = *attempt.SubmitTime
		}
		return &SubmitOutcome{SubmittedAt: submittedAt, AlreadySubmitted: true}, nil
	}

	// 先落最后一批答案，再置终态
	if len(items) > 0 {
		if _, err := s.attempts.UpsertAnswers(attempt.ID, items); err != nil && !errors.Is(err, util.ErrStorageConflict) {
			return nil, err
		}
	}

	err = s.attempts.TransitionStatus(attempt.ID, model.AttemptInProgress, model.AttemptSubmitted, now)
	if errors.Is(err, util.ErrStorageConflict) {
		current, ferr := s.attempts.FindByID(attempt.ID)
		if ferr != nil {
			return nil, ferr
		}
		if current != nil && current.Status.IsTerminal() {
			submittedAt := now
			if current.SubmitTime != nil {
				submittedAt = *current.SubmitTime
			}
			return &SubmitOutcome{SubmittedAt: submittedAt, AlreadySubmitted: true}, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	attempt.Status = model.AttemptSubmitted
	attempt.SubmitTime = &now
	if _, err := s.results.Recompute(attempt); err != nil {
		return nil, err
	}
	return &SubmitOutcome{SubmittedAt: now}, nil
}

// RemainingTime 进行中答卷的剩余秒数。
func (s *AttemptService) RemainingTime(studentID uint, examID string) (int64, error) {
	attempt, err := s.attempts.FindByExamAndStudent(examID, studentID)
	if err != nil {
		return 0, err
	}
	if attempt == nil {
		return 0, util.ErrAttemptNotFound
	}
	if attempt.Status.IsTerminal() {
		return 0, nil
	}
	exam, err := s.exams.FindByID(examID)
	if err != nil {
		return 0, err
	}
	if exam == nil {
		return 0, util.ErrExamNotFound
	}
	ext, err := s.extensions.FindByExamAndStudent(examID, studentID)
	if err != nil {
		return 0, err
	}
	return s.eligibility.RemainingSeconds(exam, ext, s.clock.Now()), nil
}

// autoFinalize 过期答卷就地自动交卷，提交时间记为截止时间。
// CAS 落败且已观察到终态时视为他处已完成，不报错。
func (s *AttemptService) autoFinalize(attempt *model.ExamAttempt, deadline time.Time) error {
	err := s.attempts.TransitionStatus(attempt.ID, model.AttemptInProgress, model.AttemptAutoSubmitted, deadline)
	if errors.Is(err, util.ErrStorageConflict) {
		current, ferr := s.attempts.FindByID(attempt.ID)
		if ferr == nil && current != nil && current.Status.IsTerminal() {
			return nil
		}
		return err
	}
	if err != nil {
		return err
	}
	attempt.Status = model.AttemptAutoSubmitted
	submitTime := deadline
	attempt.SubmitTime = &submitTime
	_, rerr := s.results.Recompute(attempt)
	return rerr
}
