package service

import (
	"testverse_backend/internal/model"
	"testverse_backend/internal/util"
)

// ResultService 成绩汇总。Recompute 可重复调用，结果按答卷幂等覆盖。
type ResultService struct {
	exams    ExamStore
	attempts AttemptStore
	results  ResultStore
	clock    Clock
}

func NewResultService(exams ExamStore, attempts AttemptStore, results ResultStore, clock Clock) *ResultService {
	if clock == nil {
		clock = SystemClock
	}
	return &ResultService{exams: exams, attempts: attempts, results: results, clock: clock}
}

// Recompute 重算答卷成绩：客观题重新判分、累计已判分数、
// 按批改进度决定 pass/fail 或 pending，并幂等写入 Result。
func (s *ResultService) Recompute(attempt *model.ExamAttempt) (*model.Result, error) {
	exam, err := s.exams.FindByID(attempt.ExamID)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, util.ErrExamNotFound
	}

	answers, err := s.attempts.ListAnswers(attempt.ID)
	if err != nil {
		return nil, err
	}

	rescored := map[string]float64{}
	for i := range answers {
		a := &answers[i]
		if a.Question == nil || !a.Question.Type.IsObjective() {
			continue
		}
		score := AutoEvaluate(a.Question, a.Answer)
		rescored[a.ID] = score
		a.Score = &score
	}
	if len(rescored) > 0 {
		if err := s.attempts.UpdateAnswerScores(rescored); err != nil {
			return nil, err
		}
	}

	obtained := 0.0
	for i := range answers {
		if answers[i].Score != nil {
			obtained += *answers[i].Score
		}
	}
	if err := s.attempts.UpdateScoreSummary(attempt.ID, exam.TotalMarks, obtained); err != nil {
		return nil, err
	}

	gradingStatus := ComputeGradingStatus(answers)

	percentage := 0.0
	if exam.TotalMarks > 0 {
		percentage = obtained / exam.TotalMarks * 100
	}

	// 只有全部批改完才判 pass/fail
	status := model.ResultPending
	if gradingStatus == model.GradingFullyGraded {
		if obtained >= exam.PassingMarks {
			status = model.ResultPass
		} else {
			status = model.ResultFail
		}
	}

	submittedAt := s.clock.Now()
	if attempt.SubmitTime != nil {
		submittedAt = *attempt.SubmitTime
	}

	result := &model.Result{
		ExamID:        exam.ID,
		StudentID:     attempt.StudentID,
		AttemptID:     attempt.ID,
		TotalMarks:    exam.TotalMarks,
		ObtainedMarks: obtained,
		Percentage:    percentage,
		Status:        status,
		GradingStatus: gradingStatus,
		SubmittedAt:   submittedAt,
	}
	if err := s.results.Upsert(result); err != nil {
		return nil, err
	}
	return result, nil
}
