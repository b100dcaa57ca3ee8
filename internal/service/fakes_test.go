package service

import (
	"fmt"
	"time"

	"testverse_backend/internal/model"
	"testverse_backend/internal/util"
)

// 内存版存储实现，测试答卷状态机与成绩汇总时避免依赖 MySQL。

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

type fakeExamStore struct {
	exams map[string]*model.Exam
}

func newFakeExamStore(exams ...*model.Exam) *fakeExamStore {
	s := &fakeExamStore{exams: map[string]*model.Exam{}}
	for _, e := range exams {
		s.exams[e.ID] = e
	}
	return s
}

func (s *fakeExamStore) FindByID(id string) (*model.Exam, error) {
	return s.exams[id], nil
}

func (s *fakeExamStore) FindWithQuestions(id string) (*model.Exam, error) {
	return s.exams[id], nil
}

type fakeAttemptStore struct {
	attempts map[string]*model.ExamAttempt
	answers  map[string][]*model.Answer
	exams    map[string]*model.Exam
	seq      int

	conflictNextTransition bool
}

func newFakeAttemptStore(exams ...*model.Exam) *fakeAttemptStore {
	s := &fakeAttemptStore{
		attempts: map[string]*model.ExamAttempt{},
		answers:  map[string][]*model.Answer{},
		exams:    map[string]*model.Exam{},
	}
	for _, e := range exams {
		s.exams[e.ID] = e
	}
	return s
}

func (s *fakeAttemptStore) FindByExamAndStudent(examID string, studentID uint) (*model.ExamAttempt, error) {
	for _, a := range s.attempts {
		if a.ExamID == examID && a.StudentID == studentID {
			return a, nil
		}
	}
	return nil, nil
}

func (s *fakeAttemptStore) FindByID(id string) (*model.ExamAttempt, error) {
	return s.attempts[id], nil
}

func (s *fakeAttemptStore) CreateWithAnswers(attempt *model.ExamAttempt, questions []model.Question) error {
	s.seq++
	if attempt.ID == "" {
		attempt.ID = fmt.Sprintf("attempt-%d", s.seq)
	}
	s.attempts[attempt.ID] = attempt
	for i := range questions {
		q := &questions[i]
		s.answers[attempt.ID] = append(s.answers[attempt.ID], &model.Answer{
			UUIDBase:   model.UUIDBase{ID: fmt.Sprintf("%s-ans-%d", attempt.ID, i)},
			AttemptID:  attempt.ID,
			QuestionID: q.ID,
			Answer:     []byte(`{}`),
			Question:   q,
		})
	}
	return nil
}

func (s *fakeAttemptStore) ListAnswers(attemptID string) ([]model.Answer, error) {
	out := make([]model.Answer, 0, len(s.answers[attemptID]))
	for _, a := range s.answers[attemptID] {
		out = append(out, *a)
	}
	return out, nil
}

func (s *fakeAttemptStore) UpsertAnswers(attemptID string, items []model.AnswerPatch) (int, error) {
	attempt := s.attempts[attemptID]
	if attempt == nil || attempt.Status != model.AttemptInProgress {
		return 0, util.ErrStorageConflict
	}
	saved := 0
	for _, item := range items {
		var target *model.Answer
		for _, a := range s.answers[attemptID] {
			if a.QuestionID == item.QuestionID {
				target = a
				break
			}
		}
		if target == nil {
			continue
		}
		if item.HasAnswer {
			target.Answer = item.Answer
			if target.Question != nil && target.Question.Type == model.QuestionCoding &&
				item.AnswerIsString && !item.HasCode {
				target.Code = item.AnswerString
			}
		}
		if item.HasCode {
			target.Code = item.Code
		}
		saved++
	}
	return saved, nil
}

func (s *fakeAttemptStore) TransitionStatus(attemptID string, from, to model.AttemptStatus, submitTime time.Time) error {
	if s.conflictNextTransition {
		s.conflictNextTransition = false
		return util.ErrStorageConflict
	}
	attempt := s.attempts[attemptID]
	if attempt == nil || attempt.Status != from {
		return util.ErrStorageConflict
	}
	attempt.Status = to
	t := submitTime
	attempt.SubmitTime = &t
	return nil
}

func (s *fakeAttemptStore) UpdateAnswerScores(scores map[string]float64) error {
	for _, list := range s.answers {
		for _, a := range list {
			if v, ok := scores[a.ID]; ok {
				score := v
				a.Score = &score
			}
		}
	}
	return nil
}

func (s *fakeAttemptStore) UpdateScoreSummary(attemptID string, total, obtained float64) error {
	if attempt := s.attempts[attemptID]; attempt != nil {
		attempt.TotalScore = total
		attempt.ObtainedScore = obtained
	}
	return nil
}

func (s *fakeAttemptStore) ListInProgress() ([]model.ExamAttempt, error) {
	var out []model.ExamAttempt
	for _, a := range s.attempts {
		if a.Status == model.AttemptInProgress {
			copied := *a
			copied.Exam = s.exams[a.ExamID]
			out = append(out, copied)
		}
	}
	return out, nil
}

func (s *fakeAttemptStore) FindAnswer(attemptID, questionID string) (*model.Answer, error) {
	for _, a := range s.answers[attemptID] {
		if a.QuestionID == questionID {
			return a, nil
		}
	}
	return nil, nil
}

func (s *fakeAttemptStore) GradeAnswer(answerID string, score float64, feedback string, graderID uint) error {
	for _, list := range s.answers {
		for _, a := range list {
			if a.ID == answerID {
				v := score
				a.Score = &v
				a.Feedback = feedback
				g := graderID
				a.EvaluatedBy = &g
				return nil
			}
		}
	}
	return util.ErrAttemptNotFound
}

func (s *fakeAttemptStore) SetAnswerFeedback(answerID string, feedback string, graderID uint) error {
	for _, list := range s.answers {
		for _, a := range list {
			if a.ID == answerID {
				a.Feedback = feedback
				g := graderID
				a.EvaluatedBy = &g
				return nil
			}
		}
	}
	return util.ErrAttemptNotFound
}

type fakeResultStore struct {
	results map[string]*model.Result
	upserts int
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{results: map[string]*model.Result{}}
}

func (s *fakeResultStore) Upsert(result *model.Result) error {
	s.upserts++
	if existing, ok := s.results[result.AttemptID]; ok {
		// is_published 不随重算回滚
		result.IsPublished = existing.IsPublished
	}
	s.results[result.AttemptID] = result
	return nil
}

func (s *fakeResultStore) FindByAttempt(attemptID string) (*model.Result, error) {
	return s.results[attemptID], nil
}

func (s *fakeResultStore) FindByID(id string) (*model.Result, error) {
	for _, r := range s.results {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

type fakeExtensionStore struct {
	extensions map[string]*model.ExamTimeExtension
	failFor    map[string]error
}

func newFakeExtensionStore() *fakeExtensionStore {
	return &fakeExtensionStore{
		extensions: map[string]*model.ExamTimeExtension{},
		failFor:    map[string]error{},
	}
}

func extKey(examID string, studentID uint) string {
	return fmt.Sprintf("%s|%d", examID, studentID)
}

func (s *fakeExtensionStore) grant(examID string, studentID uint, minutes int) {
	s.extensions[extKey(examID, studentID)] = &model.ExamTimeExtension{
		ExamID:            examID,
		StudentID:         studentID,
		AdditionalMinutes: minutes,
	}
}

func (s *fakeExtensionStore) FindByExamAndStudent(examID string, studentID uint) (*model.ExamTimeExtension, error) {
	if err, ok := s.failFor[extKey(examID, studentID)]; ok {
		return nil, err
	}
	return s.extensions[extKey(examID, studentID)], nil
}
