package service

import (
	"errors"
	"testing"
	"time"

	"testverse_backend/internal/model"
	"testverse_backend/internal/util"
)

func TestEvaluateAnswer(t *testing.T) {
	exam := &model.Exam{
		UUIDBase:     model.UUIDBase{ID: "exam-1"},
		TotalMarks:   15,
		PassingMarks: 10,
		Questions:    []model.Question{mcqQuestion("q1", 5), essayQuestion("q2", 10)},
	}
	exams := newFakeExamStore(exam)
	attempts := newFakeAttemptStore(exam)
	results := newFakeResultStore()
	resultSvc := NewResultService(exams, attempts, results, &fixedClock{now: time.Now()})
	svc := NewGradingService(exams, attempts, results, resultSvc)

	attempt := seedAttempt(t, attempts, exam, 7)
	answerQuestion(t, attempts, attempt.ID, "q1", `"Paris"`)
	answerQuestion(t, attempts, attempt.ID, "q2", `"an essay"`)

	// 分数越界
	if _, err := svc.EvaluateAnswer(99, attempt.ID, "q2", 11, ""); !errors.Is(err, util.ErrInvalidScore) {
		t.Fatalf("over points: got %v, want ErrInvalidScore", err)
	}
	if _, err := svc.EvaluateAnswer(99, attempt.ID, "q2", -1, ""); !errors.Is(err, util.ErrInvalidScore) {
		t.Fatalf("negative: got %v, want ErrInvalidScore", err)
	}

	result, err := svc.EvaluateAnswer(99, attempt.ID, "q2", 8, "solid work")
	if err != nil {
		t.Fatalf("EvaluateAnswer: %v", err)
	}
	if result.GradingStatus != model.GradingFullyGraded {
		t.Errorf("grading status: got %s", result.GradingStatus)
	}
	if result.ObtainedMarks != 13 || result.Status != model.ResultPass {
		t.Errorf("got %v marks status %s, want 13 pass", result.ObtainedMarks, result.Status)
	}

	answer, _ := attempts.FindAnswer(attempt.ID, "q2")
	if answer.Feedback != "solid work" || answer.EvaluatedBy == nil || *answer.EvaluatedBy != 99 {
		t.Errorf("answer metadata: %+v", answer)
	}

	// 重新评分把 pass 改判 fail
	result, err = svc.EvaluateAnswer(99, attempt.ID, "q2", 2, "revised")
	if err != nil {
		t.Fatalf("re-evaluate: %v", err)
	}
	if result.ObtainedMarks != 7 || result.Status != model.ResultFail {
		t.Errorf("after revision: got %v marks status %s, want 7 fail", result.ObtainedMarks, result.Status)
	}
}

func TestEvaluateAnswerUnknownAttempt(t *testing.T) {
	attempts := newFakeAttemptStore()
	results := newFakeResultStore()
	exams := newFakeExamStore()
	resultSvc := NewResultService(exams, attempts, results, &fixedClock{now: time.Now()})
	svc := NewGradingService(exams, attempts, results, resultSvc)

	if _, err := svc.EvaluateAnswer(1, "ghost", "q1", 1, ""); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("got %v, want ErrAttemptNotFound", err)
	}
}

func TestBulkFeedback(t *testing.T) {
	exam := &model.Exam{
		UUIDBase:  model.UUIDBase{ID: "exam-1"},
		Questions: []model.Question{mcqQuestion("q1", 5), essayQuestion("q2", 10)},
	}
	exams := newFakeExamStore(exam)
	attempts := newFakeAttemptStore(exam)
	results := newFakeResultStore()
	resultSvc := NewResultService(exams, attempts, results, &fixedClock{now: time.Now()})
	svc := NewGradingService(exams, attempts, results, resultSvc)

	first := seedAttempt(t, attempts, exam, 1)
	answerQuestion(t, attempts, first.ID, "q2", `"essay one"`)
	second := seedAttempt(t, attempts, exam, 2)
	answerQuestion(t, attempts, second.ID, "q2", `"essay two"`)

	results.Upsert(&model.Result{UUIDBase: model.UUIDBase{ID: "res-1"}, ExamID: exam.ID, StudentID: 1, AttemptID: first.ID})
	results.Upsert(&model.Result{UUIDBase: model.UUIDBase{ID: "res-2"}, ExamID: exam.ID, StudentID: 2, AttemptID: second.ID})
	results.Upsert(&model.Result{UUIDBase: model.UUIDBase{ID: "res-other"}, ExamID: "exam-2", StudentID: 3, AttemptID: "ghost"})

	// 第二份的主观题已有分数，批量评语不再触达
	scored, _ := attempts.FindAnswer(second.ID, "q2")
	if err := attempts.GradeAnswer(scored.ID, 6, "already graded", 99); err != nil {
		t.Fatalf("GradeAnswer: %v", err)
	}

	resultsUpdated, answersUpdated, err := svc.BulkFeedback(50, exam.ID,
		[]string{"res-1", "res-2", "res-other", "res-missing"}, "please review the rubric")
	if err != nil {
		t.Fatalf("BulkFeedback: %v", err)
	}
	// res-other 属于别的考试，res-missing 不存在
	if resultsUpdated != 2 || answersUpdated != 1 {
		t.Errorf("got %d results %d answers, want 2 and 1", resultsUpdated, answersUpdated)
	}

	essay, _ := attempts.FindAnswer(first.ID, "q2")
	if essay.Feedback != "please review the rubric" || essay.EvaluatedBy == nil || *essay.EvaluatedBy != 50 {
		t.Errorf("essay feedback: %+v", essay)
	}
	if essay.Score != nil {
		t.Errorf("bulk feedback must not assign a score: %v", *essay.Score)
	}
	mcq, _ := attempts.FindAnswer(first.ID, "q1")
	if mcq.Feedback != "" {
		t.Errorf("objective answer got feedback: %q", mcq.Feedback)
	}
	scored, _ = attempts.FindAnswer(second.ID, "q2")
	if scored.Feedback != "already graded" || *scored.Score != 6 {
		t.Errorf("graded answer overwritten: %+v", scored)
	}

	// 空模板不写任何东西
	resultsUpdated, answersUpdated, err = svc.BulkFeedback(50, exam.ID, []string{"res-1"}, "   ")
	if err != nil || resultsUpdated != 0 || answersUpdated != 0 {
		t.Errorf("blank template: got (%d, %d, %v), want (0, 0, nil)", resultsUpdated, answersUpdated, err)
	}

	if _, _, err := svc.BulkFeedback(50, "ghost", []string{"res-1"}, "x"); !errors.Is(err, util.ErrExamNotFound) {
		t.Fatalf("got %v, want ErrExamNotFound", err)
	}
}

func TestSubmissionDetail(t *testing.T) {
	exam := &model.Exam{
		UUIDBase:  model.UUIDBase{ID: "exam-1"},
		Questions: []model.Question{mcqQuestion("q1", 5)},
	}
	attempts := newFakeAttemptStore(exam)
	exams := newFakeExamStore(exam)
	results := newFakeResultStore()
	resultSvc := NewResultService(exams, attempts, results, &fixedClock{now: time.Now()})
	svc := NewGradingService(exams, attempts, results, resultSvc)

	attempt := seedAttempt(t, attempts, exam, 7)
	answerQuestion(t, attempts, attempt.ID, "q1", `["A"]`)

	got, answers, err := svc.SubmissionDetail(attempt.ID)
	if err != nil {
		t.Fatalf("SubmissionDetail: %v", err)
	}
	if got.ID != attempt.ID || len(answers) != 1 {
		t.Errorf("got attempt %s with %d answers", got.ID, len(answers))
	}
	if string(answers[0].Answer) != `["A"]` {
		t.Errorf("answer body: %s", answers[0].Answer)
	}

	if _, _, err := svc.SubmissionDetail("ghost"); !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("got %v, want ErrAttemptNotFound", err)
	}
}
