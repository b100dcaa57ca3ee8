package service

import (
	"time"

	"testverse_backend/internal/model"
)

// ExamStore 考试读取接口。
type ExamStore interface {
	FindByID(id string) (*model.Exam, error)
	FindWithQuestions(id string) (*model.Exam, error)
}

// AttemptStore 答卷存储接口。未命中时返回 (nil, nil)。
type AttemptStore interface {
	FindByExamAndStudent(examID string, studentID uint) (*model.ExamAttempt, error)
	FindByID(id string) (*model.ExamAttempt, error)
	// CreateWithAnswers 在同一事务中创建答卷并为每道题初始化空白答案
	CreateWithAnswers(attempt *model.ExamAttempt, questions []model.Question) error
	// ListAnswers 返回该答卷全部答案，Question 已预加载
	ListAnswers(attemptID string) ([]model.Answer, error)
	// UpsertAnswers 行锁校验答卷仍为 in_progress 后批量写入，返回保存条数
	UpsertAnswers(attemptID string, items []model.AnswerPatch) (int, error)
	// TransitionStatus 条件更新，当前状态不等于 from 时返回 ErrStorageConflict
	TransitionStatus(attemptID string, from, to model.AttemptStatus, submitTime time.Time) error
	// UpdateAnswerScores 按答案 ID 批量回写客观题得分
	UpdateAnswerScores(scores map[string]float64) error
	UpdateScoreSummary(attemptID string, total, obtained float64) error
	// ListInProgress 返回所有进行中的答卷，Exam 已预加载
	ListInProgress() ([]model.ExamAttempt, error)
	FindAnswer(attemptID, questionID string) (*model.Answer, error)
	GradeAnswer(answerID string, score float64, feedback string, graderID uint) error
	// SetAnswerFeedback 只写评语与批改人，不动分数
	SetAnswerFeedback(answerID string, feedback string, graderID uint) error
}

// ResultStore 成绩存储接口。未命中时返回 (nil, nil)。
type ResultStore interface {
	// Upsert 以 attempt_id 为键幂等写入
	Upsert(result *model.Result) error
	FindByAttempt(attemptID string) (*model.Result, error)
	FindByID(id string) (*model.Result, error)
}

// ExtensionStore 考试延时读取接口。未命中时返回 (nil, nil)。
type ExtensionStore interface {
	FindByExamAndStudent(examID string, studentID uint) (*model.ExamTimeExtension, error)
}
