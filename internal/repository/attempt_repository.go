package repository

import (
	"encoding/json"
	"errors"
	"time"

	"testverse_backend/internal/model"
	"testverse_backend/internal/util"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttemptRepository 答卷与答案存储。
// 状态迁移一律用条件 UPDATE 做 CAS，保存答案走行锁事务，
// 保证终态答卷不会被并发写穿。
type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) FindByExamAndStudent(examID string, studentID uint) (*model.ExamAttempt, error) {
	var attempt model.ExamAttempt
	err := r.DB.Where("exam_id = ? AND student_id = ?", examID, studentID).First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (r *AttemptRepository) FindByID(id string) (*model.ExamAttempt, error) {
	var attempt model.ExamAttempt
	err := r.DB.Where("id = ?", id).First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

// CreateWithAnswers 创建答卷并为每道题初始化空白答案，同一事务完成。
func (r *AttemptRepository) CreateWithAnswers(attempt *model.ExamAttempt, questions []model.Question) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(attempt).Error; err != nil {
			return err
		}
		for i := range questions {
			answer := model.Answer{
				AttemptID:  attempt.ID,
				QuestionID: questions[i].ID,
				Answer:     json.RawMessage(`{}`),
			}
			if err := tx.Create(&answer).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *AttemptRepository) ListAnswers(attemptID string) ([]model.Answer, error) {
	var answers []model.Answer
	err := r.DB.Preload("Question").
		Where("attempt_id = ?", attemptID).
		Order("created_at ASC").Find(&answers).Error
	return answers, err
}

// UpsertAnswers 行锁校验答卷状态后批量写入答案。
// 未知题目跳过；编程题只发 answer 字符串时同步复制到 code。
func (r *AttemptRepository) UpsertAnswers(attemptID string, items []model.AnswerPatch) (int, error) {
	saved := 0
	err := r.DB.Transaction(func(tx *gorm.DB) error {
		var attempt model.ExamAttempt
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", attemptID).First(&attempt).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return util.ErrAttemptNotFound
		}
		if err != nil {
			return err
		}
		if attempt.Status != model.AttemptInProgress {
			return util.ErrStorageConflict
		}

		for _, item := range items {
			var answer model.Answer
			err := tx.Preload("Question").
				Where("attempt_id = ? AND question_id = ?", attemptID, item.QuestionID).
				First(&answer).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			if err != nil {
				return err
			}

			updates := map[string]interface{}{}
			if item.HasAnswer {
				updates["answer"] = item.Answer
			}
			if item.HasCode {
				updates["code"] = item.Code
			} else if item.HasAnswer && item.AnswerIsString &&
				answer.Question != nil && answer.Question.Type == model.QuestionCoding {
				updates["code"] = item.AnswerString
			}
			if len(updates) == 0 {
				continue
			}
			if err := tx.Model(&model.Answer{}).Where("id = ?", answer.ID).Updates(updates).Error; err != nil {
				return err
			}
			saved++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return saved, nil
}

// TransitionStatus 条件更新做 CAS，当前状态已不是 from 时返回 ErrStorageConflict。
func (r *AttemptRepository) TransitionStatus(attemptID string, from, to model.AttemptStatus, submitTime time.Time) error {
	res := r.DB.Model(&model.ExamAttempt{}).
		Where("id = ? AND status = ?", attemptID, from).
		Updates(map[string]interface{}{
			"status":      to,
			"submit_time": submitTime,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return util.ErrStorageConflict
	}
	return nil
}

func (r *AttemptRepository) UpdateAnswerScores(scores map[string]float64) error {
	if len(scores) == 0 {
		return nil
	}
	return r.DB.Transaction(func(tx *gorm.DB) error {
		for answerID, score := range scores {
			if err := tx.Model(&model.Answer{}).Where("id = ?", answerID).Update("score", score).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *AttemptRepository) UpdateScoreSummary(attemptID string, total, obtained float64) error {
	return r.DB.Model(&model.ExamAttempt{}).
		Where("id = ?", attemptID).
		Updates(map[string]interface{}{
			"total_score":    total,
			"obtained_score": obtained,
		}).Error
}

func (r *AttemptRepository) ListInProgress() ([]model.ExamAttempt, error) {
	var attempts []model.ExamAttempt
	err := r.DB.Preload("Exam").
		Where("status = ?", model.AttemptInProgress).Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) FindAnswer(attemptID, questionID string) (*model.Answer, error) {
	var answer model.Answer
	err := r.DB.Preload("Question").
		Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		First(&answer).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &answer, nil
}

func (r *AttemptRepository) GradeAnswer(answerID string, score float64, feedback string, graderID uint) error {
	return r.DB.Model(&model.Answer{}).
		Where("id = ?", answerID).
		Updates(map[string]interface{}{
			"score":        score,
			"feedback":     feedback,
			"evaluated_by": graderID,
		}).Error
}

func (r *AttemptRepository) SetAnswerFeedback(answerID string, feedback string, graderID uint) error {
	return r.DB.Model(&model.Answer{}).
		Where("id = ?", answerID).
		Updates(map[string]interface{}{
			"feedback":     feedback,
			"evaluated_by": graderID,
		}).Error
}

func (r *AttemptRepository) ListByExam(examID string) ([]model.ExamAttempt, error) {
	var attempts []model.ExamAttempt
	err := r.DB.Preload("Student").
		Where("exam_id = ?", examID).
		Order("created_at ASC").Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListByStudent(studentID uint) ([]model.ExamAttempt, error) {
	var attempts []model.ExamAttempt
	err := r.DB.Preload("Exam").
		Where("student_id = ?", studentID).
		Order("created_at DESC").Find(&attempts).Error
	return attempts, err
}

// CountInProgressByExam 进行中的答卷数，用于结算前的拦截。
func (r *AttemptRepository) CountInProgressByExam(examID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.ExamAttempt{}).
		Where("exam_id = ? AND status = ?", examID, model.AttemptInProgress).
		Count(&count).Error
	return count, err
}

// CountAnsweredQuestions 已作答题数，空对象 {} 视为未作答。
func (r *AttemptRepository) CountAnsweredQuestions(attemptID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Answer{}).
		Where("attempt_id = ? AND JSON_LENGTH(answer) > 0", attemptID).
		Count(&count).Error
	return count, err
}
