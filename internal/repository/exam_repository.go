package repository

import (
	"errors"

	"testverse_backend/internal/model"

	"gorm.io/gorm"
)

type ExamRepository struct {
	DB *gorm.DB
}

func NewExamRepository(db *gorm.DB) *ExamRepository {
	return &ExamRepository{DB: db}
}

func (r *ExamRepository) FindByID(id string) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.Where("id = ?", id).First(&exam).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *ExamRepository) FindWithQuestions(id string) (*model.Exam, error) {
	var exam model.Exam
	err := r.DB.Preload("Questions", func(db *gorm.DB) *gorm.DB {
		return db.Order("question_order ASC, created_at ASC")
	}).Where("id = ?", id).First(&exam).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &exam, nil
}

func (r *ExamRepository) Create(exam *model.Exam) error {
	return r.DB.Create(exam).Error
}

func (r *ExamRepository) Save(exam *model.Exam) error {
	return r.DB.Save(exam).Error
}

func (r *ExamRepository) Delete(id string) error {
	return r.DB.Where("id = ?", id).Delete(&model.Exam{}).Error
}

func (r *ExamRepository) ListPublished() ([]model.Exam, error) {
	var exams []model.Exam
	err := r.DB.Where("is_published = ?", true).Order("start_time ASC").Find(&exams).Error
	return exams, err
}

func (r *ExamRepository) ListByCreator(creatorID uint) ([]model.Exam, error) {
	var exams []model.Exam
	err := r.DB.Where("creator_id = ?", creatorID).Order("created_at DESC").Find(&exams).Error
	return exams, err
}

func (r *ExamRepository) List(page, limit int) ([]model.Exam, int64, error) {
	var exams []model.Exam
	var total int64
	if err := r.DB.Model(&model.Exam{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := r.DB.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).Find(&exams).Error
	return exams, total, err
}

// SumQuestionPoints 考试下所有题目分值之和，用于发布校验。
func (r *ExamRepository) SumQuestionPoints(examID string) (float64, error) {
	var sum float64
	err := r.DB.Model(&model.Question{}).
		Where("exam_id = ?", examID).
		Select("COALESCE(SUM(points), 0)").Scan(&sum).Error
	return sum, err
}

func (r *ExamRepository) CreateQuestion(question *model.Question) error {
	return r.DB.Create(question).Error
}

func (r *ExamRepository) FindQuestion(id string) (*model.Question, error) {
	var question model.Question
	err := r.DB.Where("id = ?", id).First(&question).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &question, nil
}

func (r *ExamRepository) SaveQuestion(question *model.Question) error {
	return r.DB.Save(question).Error
}

func (r *ExamRepository) DeleteQuestion(id string) error {
	return r.DB.Where("id = ?", id).Delete(&model.Question{}).Error
}

func (r *ExamRepository) CountQuestions(examID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Question{}).Where("exam_id = ?", examID).Count(&count).Error
	return count, err
}
