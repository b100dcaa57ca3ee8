package model

import (
	"encoding/json"
	"time"
)

// swagger:model Exam
type Exam struct {
	UUIDBase
	Title       string    `gorm:"size:255;not null" json:"title"`
	Description string    `gorm:"type:text" json:"description"`
	CreatorID   uint      `gorm:"index;not null" json:"creatorId"`
	Creator     *User     `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	StartTime   time.Time `gorm:"not null" json:"startTime"`
	EndTime     time.Time `gorm:"not null" json:"endTime"`
	// DurationMinutes 仅作展示用，截止时间始终以 EndTime 为准
	DurationMinutes int     `gorm:"default:0" json:"durationMinutes"`
	TotalMarks      float64 `gorm:"not null" json:"totalMarks"`
	PassingMarks    float64 `gorm:"default:0" json:"passingMarks"`
	IsPublished     bool    `gorm:"default:false;index" json:"isPublished"`
	// AllowedDepartments JSON 数组，空数组表示不限院系
	AllowedDepartments json.RawMessage `gorm:"type:json" json:"allowedDepartments"`
	Questions          []Question      `gorm:"foreignKey:ExamID" json:"questions,omitempty"`
}

func (Exam) TableName() string {
	return "exams"
}

// HasStarted 考试是否已开始。
func (e *Exam) HasStarted(now time.Time) bool {
	return !now.Before(e.StartTime)
}

// HasEnded 考试是否已结束（不含个人延时）。
func (e *Exam) HasEnded(now time.Time) bool {
	return now.After(e.EndTime)
}
