package model

import (
	"encoding/json"
)

type QuestionType string

const (
	QuestionMCQ         QuestionType = "mcq"
	QuestionMultipleMCQ QuestionType = "multiple_mcq"
	QuestionDescriptive QuestionType = "descriptive"
	QuestionCoding      QuestionType = "coding"
)

// IsObjective mcq 与 multiple_mcq 自动判分，其余人工评分。
func (t QuestionType) IsObjective() bool {
	return t == QuestionMCQ || t == QuestionMultipleMCQ
}

// swagger:model Question
type Question struct {
	UUIDBase
	ExamID string       `gorm:"index;not null" json:"examId"`
	Type   QuestionType `gorm:"type:enum('mcq','multiple_mcq','descriptive','coding');not null" json:"type"`
	Text   string       `gorm:"type:text;not null" json:"text"`
	Points float64      `gorm:"not null" json:"points"`
	Order  int          `gorm:"column:question_order;default:0" json:"order"`
	// Options 选项 JSON 数组，元素可为标量或对象（id/value/text/isCorrect）
	Options json.RawMessage `gorm:"type:json" json:"options,omitempty"`
	// CorrectAnswers 多选题的标准答案集合，优先于选项标记
	CorrectAnswers json.RawMessage `gorm:"type:json" json:"-"`
	Attachment     string          `gorm:"size:255" json:"attachment,omitempty"`
	CodeLanguage   string          `gorm:"size:50" json:"codeLanguage,omitempty"`
	StarterCode    string          `gorm:"type:text" json:"starterCode,omitempty"`
}

func (Question) TableName() string {
	return "questions"
}
