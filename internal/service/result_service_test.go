package service

import (
	"encoding/json"
	"testing"
	"time"

	"testverse_backend/internal/model"
)

func mcqQuestion(id string, points float64) model.Question {
	return model.Question{
		UUIDBase: model.UUIDBase{ID: id},
		Type:     model.QuestionMCQ,
		Points:   points,
		Options:  json.RawMessage(`[{"id": 1, "text": "Paris", "isCorrect": true}, {"id": 2, "text": "London"}]`),
	}
}

func essayQuestion(id string, points float64) model.Question {
	return model.Question{
		UUIDBase: model.UUIDBase{ID: id},
		Type:     model.QuestionDescriptive,
		Points:   points,
	}
}

func seedAttempt(t *testing.T, attempts *fakeAttemptStore, exam *model.Exam, studentID uint) *model.ExamAttempt {
	t.Helper()
	attempt := &model.ExamAttempt{
		ExamID:    exam.ID,
		StudentID: studentID,
		Status:    model.AttemptInProgress,
		StartTime: exam.StartTime,
	}
	if err := attempts.CreateWithAnswers(attempt, exam.Questions); err != nil {
		t.Fatalf("seed attempt: %v", err)
	}
	return attempt
}

func answerQuestion(t *testing.T, attempts *fakeAttemptStore, attemptID, questionID, answer string) {
	t.Helper()
	saved, err := attempts.UpsertAnswers(attemptID, []model.AnswerPatch{
		{QuestionID: questionID, HasAnswer: true, Answer: json.RawMessage(answer)},
	})
	if err != nil || saved != 1 {
		t.Fatalf("save answer %s: saved=%d err=%v", questionID, saved, err)
	}
}

func TestRecomputeObjectiveExam(t *testing.T) {
	exam := &model.Exam{
		UUIDBase:     model.UUIDBase{ID: "exam-1"},
		TotalMarks:   10,
		PassingMarks: 5,
		Questions:    []model.Question{mcqQuestion("q1", 5), mcqQuestion("q2", 5)},
	}
	exams := newFakeExamStore(exam)
	attempts := newFakeAttemptStore(exam)
	results := newFakeResultStore()
	svc := NewResultService(exams, attempts, results, &fixedClock{now: time.Now()})

	attempt := seedAttempt(t, attempts, exam, 7)
	answerQuestion(t, attempts, attempt.ID, "q1", `"Paris"`)
	answerQuestion(t, attempts, attempt.ID, "q2", `"London"`)

	result, err := svc.Recompute(attempt)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if result.ObtainedMarks != 5 || result.TotalMarks != 10 {
		t.Errorf("marks: got %v/%v", result.ObtainedMarks, result.TotalMarks)
	}
	if result.Percentage != 50 {
		t.Errorf("percentage: got %v, want 50", result.Percentage)
	}
	if result.GradingStatus != model.GradingFullyGraded {
		t.Errorf("grading status: got %s", result.GradingStatus)
	}
	if result.Status != model.ResultPass {
		t.Errorf("status: got %s, want pass", result.Status)
	}
}

func TestRecomputePendingUntilManuallyGraded(t *testing.T) {
	exam := &model.Exam{
		UUIDBase:     model.UUIDBase{ID: "exam-1"},
		TotalMarks:   15,
		PassingMarks: 8,
		Questions:    []model.Question{mcqQuestion("q1", 5), essayQuestion("q2", 10)},
	}
	exams := newFakeExamStore(exam)
	attempts := newFakeAttemptStore(exam)
	results := newFakeResultStore()
	svc := NewResultService(exams, attempts, results, &fixedClock{now: time.Now()})

	attempt := seedAttempt(t, attempts, exam, 7)
	answerQuestion(t, attempts, attempt.ID, "q1", `"Paris"`)
	answerQuestion(t, attempts, attempt.ID, "q2", `"long essay"`)

	result, err := svc.Recompute(attempt)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if result.GradingStatus != model.GradingPending {
		t.Errorf("grading status: got %s, want pending", result.GradingStatus)
	}
	if result.Status != model.ResultPending {
		t.Errorf("status: got %s, want pending", result.Status)
	}
	if result.ObtainedMarks != 5 {
		t.Errorf("obtained: got %v, want 5 (objective only)", result.ObtainedMarks)
	}

	// 教师批改后重算，升级为 pass
	answer, _ := attempts.FindAnswer(attempt.ID, "q2")
	if err := attempts.GradeAnswer(answer.ID, 9, "good", 1); err != nil {
		t.Fatalf("grade: %v", err)
	}
	result, err = svc.Recompute(attempt)
	if err != nil {
		t.Fatalf("second Recompute: %v", err)
	}
	if result.GradingStatus != model.GradingFullyGraded {
		t.Errorf("grading status after grading: got %s", result.GradingStatus)
	}
	if result.ObtainedMarks != 14 || result.Status != model.ResultPass {
		t.Errorf("got %v marks status %s, want 14 pass", result.ObtainedMarks, result.Status)
	}
}

func TestRecomputeFailBelowPassingMarks(t *testing.T) {
	exam := &model.Exam{
		UUIDBase:     model.UUIDBase{ID: "exam-1"},
		TotalMarks:   10,
		PassingMarks: 8,
		Questions:    []model.Question{mcqQuestion("q1", 5), mcqQuestion("q2", 5)},
	}
	exams := newFakeExamStore(exam)
	attempts := newFakeAttemptStore(exam)
	results := newFakeResultStore()
	svc := NewResultService(exams, attempts, results, &fixedClock{now: time.Now()})

	attempt := seedAttempt(t, attempts, exam, 7)
	answerQuestion(t, attempts, attempt.ID, "q1", `"Paris"`)

	result, err := svc.Recompute(attempt)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if result.Status != model.ResultFail {
		t.Errorf("status: got %s, want fail", result.Status)
	}
}

func TestRecomputeZeroTotalMarks(t *testing.T) {
	exam := &model.Exam{
		UUIDBase:  model.UUIDBase{ID: "exam-1"},
		Questions: []model.Question{},
	}
	exams := newFakeExamStore(exam)
	attempts := newFakeAttemptStore(exam)
	results := newFakeResultStore()
	svc := NewResultService(exams, attempts, results, &fixedClock{now: time.Now()})

	attempt := seedAttempt(t, attempts, exam, 7)
	result, err := svc.Recompute(attempt)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if result.Percentage != 0 {
		t.Errorf("percentage with zero total: got %v, want 0", result.Percentage)
	}
}

func TestRecomputeUsesSubmitTime(t *testing.T) {
	exam := &model.Exam{
		UUIDBase:  model.UUIDBase{ID: "exam-1"},
		Questions: []model.Question{mcqQuestion("q1", 5)},
	}
	exams := newFakeExamStore(exam)
	attempts := newFakeAttemptStore(exam)
	results := newFakeResultStore()
	now := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	svc := NewResultService(exams, attempts, results, &fixedClock{now: now})

	attempt := seedAttempt(t, attempts, exam, 7)
	submitted := now.Add(-time.Hour)
	attempt.SubmitTime = &submitted

	result, err := svc.Recompute(attempt)
	if err != nil {
		t.Fatalf("Recompute: %v", err)
	}
	if !result.SubmittedAt.Equal(submitted) {
		t.Errorf("submitted at: got %v, want %v", result.SubmittedAt, submitted)
	}

	// 幂等：重复调用覆盖同一条记录
	if _, err := svc.Recompute(attempt); err != nil {
		t.Fatalf("second Recompute: %v", err)
	}
	if len(results.results) != 1 {
		t.Errorf("result rows: got %d, want 1", len(results.results))
	}
}
