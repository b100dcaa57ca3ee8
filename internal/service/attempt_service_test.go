package service

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"testverse_backend/internal/model"
	"testverse_backend/internal/util"
)

type attemptFixture struct {
	exam       *model.Exam
	attempts   *fakeAttemptStore
	extensions *fakeExtensionStore
	results    *fakeResultStore
	clock      *fixedClock
	svc        *AttemptService
	student    *model.User
}

func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	exam := &model.Exam{
		UUIDBase:     model.UUIDBase{ID: "exam-1"},
		StartTime:    start,
		EndTime:      start.Add(2 * time.Hour),
		TotalMarks:   10,
		PassingMarks: 5,
		IsPublished:  true,
		Questions: []model.Question{
			mcqQuestion("q1", 5),
			{
				UUIDBase:     model.UUIDBase{ID: "q2"},
				Type:         model.QuestionCoding,
				Points:       5,
				CodeLanguage: "python",
			},
		},
	}

	exams := newFakeExamStore(exam)
	attempts := newFakeAttemptStore(exam)
	extensions := newFakeExtensionStore()
	results := newFakeResultStore()
	clock := &fixedClock{now: start.Add(time.Hour)}
	eligibility := NewEligibilityService(testAliases())
	resultSvc := NewResultService(exams, attempts, results, clock)

	return &attemptFixture{
		exam:       exam,
		attempts:   attempts,
		extensions: extensions,
		results:    results,
		clock:      clock,
		svc: NewAttemptService(exams, attempts, extensions, eligibility,
			resultSvc, 30*time.Second, clock),
		student: &model.User{BaseModel: model.BaseModel{ID: 7}, Department: "CSE", Role: model.Student},
	}
}

func TestStartCreatesAttempt(t *testing.T) {
	f := newAttemptFixture(t)

	outcome, err := f.svc.Start(f.student, f.exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if outcome.Resumed {
		t.Error("fresh attempt marked as resumed")
	}
	if outcome.Attempt.Status != model.AttemptInProgress {
		t.Errorf("status: got %s", outcome.Attempt.Status)
	}
	if outcome.RemainingSeconds != 3600 {
		t.Errorf("remaining: got %d, want 3600", outcome.RemainingSeconds)
	}
	if len(outcome.Questions) != 2 {
		t.Errorf("questions: got %d, want 2", len(outcome.Questions))
	}

	// 每道题都有空白答案占位
	answers, _ := f.attempts.ListAnswers(outcome.Attempt.ID)
	if len(answers) != 2 {
		t.Fatalf("blank answers: got %d, want 2", len(answers))
	}
	for _, a := range answers {
		if string(a.Answer) != `{}` {
			t.Errorf("blank answer body: got %s", a.Answer)
		}
	}
}

func TestStartResumesInProgress(t *testing.T) {
	f := newAttemptFixture(t)

	first, err := f.svc.Start(f.student, f.exam.ID)
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	answerQuestion(t, f.attempts, first.Attempt.ID, "q1", `"Paris"`)

	second, err := f.svc.Start(f.student, f.exam.ID)
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if !second.Resumed {
		t.Error("second start must resume")
	}
	if second.Attempt.ID != first.Attempt.ID {
		t.Errorf("resumed different attempt: %s vs %s", second.Attempt.ID, first.Attempt.ID)
	}
	found := false
	for _, a := range second.Answers {
		if a.QuestionID == "q1" && string(a.Answer) == `"Paris"` {
			found = true
		}
	}
	if !found {
		t.Error("saved answer missing from resume payload")
	}
}

func TestStartExpiredAttemptAutoSubmits(t *testing.T) {
	f := newAttemptFixture(t)

	outcome, err := f.svc.Start(f.student, f.exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	f.clock.now = f.exam.EndTime.Add(time.Minute)
	_, err = f.svc.Start(f.student, f.exam.ID)
	if !errors.Is(err, util.ErrDeadlineExpired) {
		t.Fatalf("got %v, want ErrDeadlineExpired", err)
	}

	attempt, _ := f.attempts.FindByID(outcome.Attempt.ID)
	if attempt.Status != model.AttemptAutoSubmitted {
		t.Errorf("status: got %s, want auto_submitted", attempt.Status)
	}
	// 提交时间记为截止时间，不是扫描时间
	if attempt.SubmitTime == nil || !attempt.SubmitTime.Equal(f.exam.EndTime) {
		t.Errorf("submit time: got %v, want %v", attempt.SubmitTime, f.exam.EndTime)
	}
	if _, ok := f.results.results[attempt.ID]; !ok {
		t.Error("result not recomputed after auto submit")
	}
}

func TestStartTerminalAttempt(t *testing.T) {
	f := newAttemptFixture(t)

	outcome, err := f.svc.Start(f.student, f.exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.svc.Submit(f.student.ID, f.exam.ID, nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	_, err = f.svc.Start(f.student, f.exam.ID)
	if !errors.Is(err, util.ErrAlreadySubmitted) {
		t.Fatalf("got %v, want ErrAlreadySubmitted", err)
	}
	_ = outcome
}

func TestStartExtensionKeepsAttemptAlive(t *testing.T) {
	f := newAttemptFixture(t)

	if _, err := f.svc.Start(f.student, f.exam.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// end_time 已过但个人延时未用完，续考成功
	f.extensions.grant(f.exam.ID, f.student.ID, 30)
	f.clock.now = f.exam.EndTime.Add(10 * time.Minute)

	outcome, err := f.svc.Start(f.student, f.exam.ID)
	if err != nil {
		t.Fatalf("Start with extension: %v", err)
	}
	if !outcome.Resumed {
		t.Error("must resume")
	}
	if outcome.RemainingSeconds != 20*60 {
		t.Errorf("remaining: got %d, want %d", outcome.RemainingSeconds, 20*60)
	}
}

func TestStartIneligible(t *testing.T) {
	f := newAttemptFixture(t)
	f.exam.AllowedDepartments = json.RawMessage(`["Mechanical Engineering"]`)

	_, err := f.svc.Start(f.student, f.exam.ID)
	if !errors.Is(err, util.ErrNotEligible) {
		t.Fatalf("got %v, want ErrNotEligible", err)
	}
	// 错误串携带拒绝原因
	if want := "You are not allowed to attempt this exam"; !strings.Contains(err.Error(), want) {
		t.Errorf("error %q missing reason %q", err.Error(), want)
	}
}

func TestSubmitIsIdempotent(t *testing.T) {
	f := newAttemptFixture(t)

	if _, err := f.svc.Start(f.student, f.exam.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	first, err := f.svc.Submit(f.student.ID, f.exam.ID, nil)
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	if first.AlreadySubmitted {
		t.Error("first submit flagged as duplicate")
	}

	f.clock.now = f.clock.now.Add(5 * time.Minute)
	second, err := f.svc.Submit(f.student.ID, f.exam.ID, nil)
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if !second.AlreadySubmitted {
		t.Error("second submit not flagged as duplicate")
	}
	if !second.SubmittedAt.Equal(first.SubmittedAt) {
		t.Errorf("submit time changed: %v vs %v", second.SubmittedAt, first.SubmittedAt)
	}
}

func TestSubmitAcceptedAfterDeadline(t *testing.T) {
	f := newAttemptFixture(t)

	if _, err := f.svc.Start(f.student, f.exam.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// 进行中的答卷交卷一律接受，过期兜底交给扫描
	f.clock.now = f.exam.EndTime.Add(10 * time.Minute)
	outcome, err := f.svc.Submit(f.student.ID, f.exam.ID, nil)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if outcome.AlreadySubmitted {
		t.Error("flagged as duplicate")
	}
	attempt, _ := f.attempts.FindByExamAndStudent(f.exam.ID, f.student.ID)
	if attempt.Status != model.AttemptSubmitted {
		t.Errorf("status: got %s, want submitted", attempt.Status)
	}
}

func TestSubmitPersistsTrailingAnswers(t *testing.T) {
	f := newAttemptFixture(t)

	start, err := f.svc.Start(f.student, f.exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	items := []model.AnswerPatch{
		{QuestionID: "q1", HasAnswer: true, Answer: json.RawMessage(`"Paris"`)},
	}
	if _, err := f.svc.Submit(f.student.ID, f.exam.ID, items); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	answer, _ := f.attempts.FindAnswer(start.Attempt.ID, "q1")
	if string(answer.Answer) != `"Paris"` {
		t.Errorf("trailing answer lost: %s", answer.Answer)
	}
	result := f.results.results[start.Attempt.ID]
	if result == nil || result.ObtainedMarks != 5 {
		t.Errorf("result: %+v", result)
	}
}

func TestSubmitWithoutAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	_, err := f.svc.Submit(f.student.ID, f.exam.ID, nil)
	if !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("got %v, want ErrAttemptNotFound", err)
	}
}

func TestSaveAnswersWithinGrace(t *testing.T) {
	f := newAttemptFixture(t)

	start, err := f.svc.Start(f.student, f.exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// 截止后 10 秒仍在 30 秒宽限期内
	f.clock.now = f.exam.EndTime.Add(10 * time.Second)
	saved, err := f.svc.SaveAnswers(f.student.ID, f.exam.ID, []model.AnswerPatch{
		{QuestionID: "q1", HasAnswer: true, Answer: json.RawMessage(`"Paris"`)},
	})
	if err != nil || saved != 1 {
		t.Fatalf("grace save: saved=%d err=%v", saved, err)
	}

	// 宽限期外拒绝
	f.clock.now = f.exam.EndTime.Add(45 * time.Second)
	_, err = f.svc.SaveAnswers(f.student.ID, f.exam.ID, []model.AnswerPatch{
		{QuestionID: "q1", HasAnswer: true, Answer: json.RawMessage(`"London"`)},
	})
	if !errors.Is(err, util.ErrDeadlineExpired) {
		t.Fatalf("got %v, want ErrDeadlineExpired", err)
	}

	answer, _ := f.attempts.FindAnswer(start.Attempt.ID, "q1")
	if string(answer.Answer) != `"Paris"` {
		t.Errorf("late save leaked: %s", answer.Answer)
	}
}

func TestSaveAnswersSkipsUnknownQuestions(t *testing.T) {
	f := newAttemptFixture(t)

	if _, err := f.svc.Start(f.student, f.exam.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	saved, err := f.svc.SaveAnswers(f.student.ID, f.exam.ID, []model.AnswerPatch{
		{QuestionID: "q1", HasAnswer: true, Answer: json.RawMessage(`"Paris"`)},
		{QuestionID: "ghost", HasAnswer: true, Answer: json.RawMessage(`"x"`)},
	})
	if err != nil {
		t.Fatalf("SaveAnswers: %v", err)
	}
	if saved != 1 {
		t.Errorf("saved: got %d, want 1", saved)
	}
}

func TestSaveAnswersCopiesCodeForCodingQuestion(t *testing.T) {
	f := newAttemptFixture(t)

	start, err := f.svc.Start(f.student, f.exam.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	items := ParseAnswerItems(json.RawMessage(`[{"question_id": "q2", "answer": "print('hi')"}]`))
	if _, err := f.svc.SaveAnswers(f.student.ID, f.exam.ID, items); err != nil {
		t.Fatalf("SaveAnswers: %v", err)
	}

	answer, _ := f.attempts.FindAnswer(start.Attempt.ID, "q2")
	if answer.Code != "print('hi')" {
		t.Errorf("code not copied from string answer: %q", answer.Code)
	}
}

func TestSaveAnswersRequiresActiveAttempt(t *testing.T) {
	f := newAttemptFixture(t)

	if _, err := f.svc.Start(f.student, f.exam.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.svc.Submit(f.student.ID, f.exam.ID, nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	_, err := f.svc.SaveAnswers(f.student.ID, f.exam.ID, []model.AnswerPatch{
		{QuestionID: "q1", HasAnswer: true, Answer: json.RawMessage(`"Paris"`)},
	})
	if !errors.Is(err, util.ErrAttemptNotFound) {
		t.Fatalf("got %v, want ErrAttemptNotFound", err)
	}
}

func TestRemainingTime(t *testing.T) {
	f := newAttemptFixture(t)

	if _, err := f.svc.Start(f.student, f.exam.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	remaining, err := f.svc.RemainingTime(f.student.ID, f.exam.ID)
	if err != nil {
		t.Fatalf("RemainingTime: %v", err)
	}
	if remaining != 3600 {
		t.Errorf("remaining: got %d, want 3600", remaining)
	}

	if _, err := f.svc.Submit(f.student.ID, f.exam.ID, nil); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	remaining, err = f.svc.RemainingTime(f.student.ID, f.exam.ID)
	if err != nil || remaining != 0 {
		t.Errorf("terminal attempt: got (%d, %v), want (0, nil)", remaining, err)
	}
}
