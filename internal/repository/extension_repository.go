package repository

import (
	"errors"

	"testverse_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ExtensionRepository struct {
	DB *gorm.DB
}

func NewExtensionRepository(db *gorm.DB) *ExtensionRepository {
	return &ExtensionRepository{DB: db}
}

func (r *ExtensionRepository) FindByExamAndStudent(examID string, studentID uint) (*model.ExamTimeExtension, error) {
	var ext model.ExamTimeExtension
	err := r.DB.Where("exam_id = ? AND student_id = ?", examID, studentID).First(&ext).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ext, nil
}

// Upsert 同一学生重复授予延时时覆盖原记录。
func (r *ExtensionRepository) Upsert(ext *model.ExamTimeExtension) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "exam_id"}, {Name: "student_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"additional_minutes", "reason", "granted_by", "updated_at",
		}),
	}).Create(ext).Error
}

func (r *ExtensionRepository) ListByExam(examID string) ([]model.ExamTimeExtension, error) {
	var exts []model.ExamTimeExtension
	err := r.DB.Preload("Student").
		Where("exam_id = ?", examID).
		Order("created_at DESC").Find(&exts).Error
	return exts, err
}
