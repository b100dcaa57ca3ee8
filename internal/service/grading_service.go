package service

import (
	"strings"

	"testverse_backend/internal/model"
	"testverse_backend/internal/util"
)

// GradingService 教师人工评分入口。
type GradingService struct {
	exams    ExamStore
	attempts AttemptStore
	results  ResultStore
	scoring  *ResultService
}

func NewGradingService(exams ExamStore, attempts AttemptStore, results ResultStore, scoring *ResultService) *GradingService {
	return &GradingService{exams: exams, attempts: attempts, results: results, scoring: scoring}
}

// EvaluateAnswer 给单题打分并写评语，随后重算整卷成绩。
// 分数必须落在 [0, question.points]，否则返回 ErrInvalidScore。
// 重新评分会触发 pass/fail 重新判定。
func (s *GradingService) EvaluateAnswer(graderID uint, attemptID, questionID string, score float64, feedback string) (*model.Result, error) {
	attempt, err := s.attempts.FindByID(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt == nil {
		return nil, util.ErrAttemptNotFound
	}

	answer, err := s.attempts.FindAnswer(attemptID, questionID)
	if err != nil {
		return nil, err
	}
	if answer == nil || answer.Question == nil {
		return nil, util.ErrAttemptNotFound
	}

	if score < 0 || score > answer.Question.Points {
		return nil, util.ErrInvalidScore
	}

	if err := s.attempts.GradeAnswer(answer.ID, score, feedback, graderID); err != nil {
		return nil, err
	}
	return s.scoring.Recompute(attempt)
}

// BulkFeedback 给多份成绩单批量写评语，只触达尚未评分的主观题答案。
// 不改分数也不触发重算，返回 (命中的成绩单数, 写入评语的答案数)。
func (s *GradingService) BulkFeedback(graderID uint, examID string, resultIDs []string, feedback string) (int, int, error) {
	exam, err := s.exams.FindByID(examID)
	if err != nil {
		return 0, 0, err
	}
	if exam == nil {
		return 0, 0, util.ErrExamNotFound
	}
	if strings.TrimSpace(feedback) == "" {
		return 0, 0, nil
	}

	resultsMatched := 0
	answersUpdated := 0
	for _, id := range resultIDs {
		result, err := s.results.FindByID(id)
		if err != nil {
			return resultsMatched, answersUpdated, err
		}
		if result == nil || result.ExamID != examID {
			continue
		}
		resultsMatched++

		answers, err := s.attempts.ListAnswers(result.AttemptID)
		if err != nil {
			return resultsMatched, answersUpdated, err
		}
		for i := range answers {
			a := &answers[i]
			if a.Question == nil || a.Question.Type.IsObjective() || a.Score != nil {
				continue
			}
			if err := s.attempts.SetAnswerFeedback(a.ID, feedback, graderID); err != nil {
				return resultsMatched, answersUpdated, err
			}
			answersUpdated++
		}
	}
	return resultsMatched, answersUpdated, nil
}

// SubmissionDetail 答卷详情，供批改界面使用。
func (s *GradingService) SubmissionDetail(attemptID string) (*model.ExamAttempt, []model.Answer, error) {
	attempt, err := s.attempts.FindByID(attemptID)
	if err != nil {
		return nil, nil, err
	}
	if attempt == nil {
		return nil, nil, util.ErrAttemptNotFound
	}
	answers, err := s.attempts.ListAnswers(attemptID)
	if err != nil {
		return nil, nil, err
	}
	return attempt, answers, nil
}
