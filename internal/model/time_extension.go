package model

// ExamTimeExtension 单个学生的考试延时，叠加在考试结束时间之上。
// swagger:model ExamTimeExtension
type ExamTimeExtension struct {
	UUIDBase
	ExamID            string `gorm:"uniqueIndex:idx_extension_exam_student;not null" json:"examId"`
	StudentID         uint   `gorm:"uniqueIndex:idx_extension_exam_student;not null" json:"studentId"`
	AdditionalMinutes int    `gorm:"not null" json:"additionalMinutes"`
	Reason            string `gorm:"size:255" json:"reason,omitempty"`
	GrantedBy         uint   `gorm:"not null" json:"grantedBy"`
	Student           *User  `gorm:"foreignKey:StudentID" json:"student,omitempty"`
}

func (ExamTimeExtension) TableName() string {
	return "exam_time_extensions"
}
