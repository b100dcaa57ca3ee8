package model

import (
	"time"
)

type ResultStatus string

const (
	ResultPending ResultStatus = "pending"
	ResultPass    ResultStatus = "pass"
	ResultFail    ResultStatus = "fail"
)

type GradingStatus string

const (
	GradingPending         GradingStatus = "pending"
	GradingPartiallyGraded GradingStatus = "partially_graded"
	GradingFullyGraded     GradingStatus = "fully_graded"
)

// swagger:model Result
type Result struct {
	UUIDBase
	ExamID        string        `gorm:"uniqueIndex:idx_result_exam_student;not null" json:"examId"`
	StudentID     uint          `gorm:"uniqueIndex:idx_result_exam_student;not null" json:"studentId"`
	AttemptID     string        `gorm:"uniqueIndex;not null" json:"attemptId"`
	TotalMarks    float64       `gorm:"default:0" json:"totalMarks"`
	ObtainedMarks float64       `gorm:"default:0" json:"obtainedMarks"`
	Percentage    float64       `gorm:"default:0" json:"percentage"`
	Status        ResultStatus  `gorm:"type:enum('pending','pass','fail');default:'pending'" json:"status"`
	GradingStatus GradingStatus `gorm:"type:enum('pending','partially_graded','fully_graded');default:'pending'" json:"gradingStatus"`
	IsPublished   bool          `gorm:"default:false;index" json:"isPublished"`
	SubmittedAt   time.Time     `json:"submittedAt"`
	Exam          *Exam         `gorm:"foreignKey:ExamID" json:"exam,omitempty"`
	Student       *User         `gorm:"foreignKey:StudentID" json:"student,omitempty"`
}

func (Result) TableName() string {
	return "results"
}
