package repository

import (
	"errors"

	"testverse_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResultRepository struct {
	DB *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{DB: db}
}

// Upsert 以 attempt_id 为冲突键幂等写入。
// is_published 不在更新列里，重算成绩不会撤销已发布状态。
func (r *ResultRepository) Upsert(result *model.Result) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "attempt_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_marks", "obtained_marks", "percentage",
			"status", "grading_status", "submitted_at", "updated_at",
		}),
	}).Create(result).Error
}

func (r *ResultRepository) FindByAttempt(attemptID string) (*model.Result, error) {
	var result model.Result
	err := r.DB.Where("attempt_id = ?", attemptID).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ResultRepository) FindByExamAndStudent(examID string, studentID uint) (*model.Result, error) {
	var result model.Result
	err := r.DB.Preload("Exam").
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ResultRepository) ListPublishedByStudent(studentID uint) ([]model.Result, error) {
	var results []model.Result
	err := r.DB.Preload("Exam").
		Where("student_id = ? AND is_published = ?", studentID, true).
		Order("submitted_at DESC").Find(&results).Error
	return results, err
}

func (r *ResultRepository) ListByExam(examID string) ([]model.Result, error) {
	var results []model.Result
	err := r.DB.Preload("Student").
		Where("exam_id = ?", examID).
		Order("obtained_marks DESC").Find(&results).Error
	return results, err
}

func (r *ResultRepository) FindByID(id string) (*model.Result, error) {
	var result model.Result
	err := r.DB.Preload("Student").Preload("Exam").Where("id = ?", id).First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *ResultRepository) SetPublished(id string, published bool) error {
	return r.DB.Model(&model.Result{}).Where("id = ?", id).Update("is_published", published).Error
}

func (r *ResultRepository) PublishAllByExam(examID string) (int64, error) {
	res := r.DB.Model(&model.Result{}).
		Where("exam_id = ? AND is_published = ?", examID, false).
		Update("is_published", true)
	return res.RowsAffected, res.Error
}

// CountNotFullyGraded 批量发布前的门槛检查。
func (r *ResultRepository) CountNotFullyGraded(examID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Result{}).
		Where("exam_id = ? AND grading_status <> ?", examID, model.GradingFullyGraded).
		Count(&count).Error
	return count, err
}
