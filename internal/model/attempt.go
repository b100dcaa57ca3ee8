package model

import (
	"encoding/json"
	"time"
)

type AttemptStatus string

const (
	AttemptInProgress    AttemptStatus = "in_progress"
	AttemptSubmitted     AttemptStatus = "submitted"
	AttemptAutoSubmitted AttemptStatus = "auto_submitted"
)

// IsTerminal 已提交状态不可再变更。
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptSubmitted || s == AttemptAutoSubmitted
}

// swagger:model ExamAttempt
type ExamAttempt struct {
	UUIDBase
	ExamID        string        `gorm:"uniqueIndex:idx_attempt_exam_student;not null" json:"examId"`
	StudentID     uint          `gorm:"uniqueIndex:idx_attempt_exam_student;not null" json:"studentId"`
	Status        AttemptStatus `gorm:"type:enum('in_progress','submitted','auto_submitted');default:'in_progress';index" json:"status"`
	StartTime     time.Time     `gorm:"not null" json:"startTime"`
	SubmitTime    *time.Time    `json:"submitTime,omitempty"`
	TotalScore    float64       `gorm:"default:0" json:"totalScore"`
	ObtainedScore float64       `gorm:"default:0" json:"obtainedScore"`
	Exam          *Exam         `gorm:"foreignKey:ExamID" json:"exam,omitempty"`
	Student       *User         `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Answers       []Answer      `gorm:"foreignKey:AttemptID" json:"answers,omitempty"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

// AnswerPatch 一条待保存的答案增量，answer 为 null 时已归一化为 {}。
type AnswerPatch struct {
	QuestionID string
	HasAnswer  bool
	Answer     json.RawMessage
	HasCode    bool
	Code       string
	// 编程题前端可能把代码放在 answer 字段里，保留原始字符串以便复制到 code
	AnswerIsString bool
	AnswerString   string
}

// swagger:model Answer
type Answer struct {
	UUIDBase
	AttemptID  string `gorm:"uniqueIndex:idx_answer_attempt_question;not null" json:"attemptId"`
	QuestionID string `gorm:"uniqueIndex:idx_answer_attempt_question;not null" json:"questionId"`
	// Answer 学生作答 JSON，始终非空，未作答时为 {}
	Answer      json.RawMessage `gorm:"type:json;not null" json:"answer"`
	Code        string          `gorm:"type:text" json:"code,omitempty"`
	Score       *float64        `json:"score,omitempty"`
	Feedback    string          `gorm:"type:text" json:"feedback,omitempty"`
	EvaluatedBy *uint           `json:"evaluatedBy,omitempty"`
	Question    *Question       `gorm:"foreignKey:QuestionID" json:"question,omitempty"`
}

func (Answer) TableName() string {
	return "answers"
}
