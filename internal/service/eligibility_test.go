package service

import (
	"encoding/json"
	"testing"
	"time"

	"testverse_backend/internal/model"
)

func testAliases() map[string]string {
	return map[string]string{
		"cs":  "computer science",
		"cse": "computer science",
		"it":  "information technology",
	}
}

func TestResolveDeadline(t *testing.T) {
	end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exam := &model.Exam{EndTime: end}
	svc := NewEligibilityService(testAliases())

	if got := svc.ResolveDeadline(exam, nil); !got.Equal(end) {
		t.Errorf("no extension: got %v, want %v", got, end)
	}

	ext := &model.ExamTimeExtension{AdditionalMinutes: 30}
	if got := svc.ResolveDeadline(exam, ext); !got.Equal(end.Add(30 * time.Minute)) {
		t.Errorf("with extension: got %v, want %v", got, end.Add(30*time.Minute))
	}

	zero := &model.ExamTimeExtension{AdditionalMinutes: 0}
	if got := svc.ResolveDeadline(exam, zero); !got.Equal(end) {
		t.Errorf("zero extension: got %v, want %v", got, end)
	}
}

func TestRemainingSeconds(t *testing.T) {
	end := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	exam := &model.Exam{EndTime: end}
	svc := NewEligibilityService(nil)

	if got := svc.RemainingSeconds(exam, nil, end.Add(-90*time.Second)); got != 90 {
		t.Errorf("before deadline: got %d, want 90", got)
	}
	if got := svc.RemainingSeconds(exam, nil, end.Add(time.Hour)); got != 0 {
		t.Errorf("after deadline: got %d, want 0", got)
	}

	// 延时让已过 end_time 的学生仍有剩余时间
	ext := &model.ExamTimeExtension{AdditionalMinutes: 10}
	if got := svc.RemainingSeconds(exam, ext, end.Add(5*time.Minute)); got != 300 {
		t.Errorf("with extension: got %d, want 300", got)
	}
}

func TestCheckEligibility(t *testing.T) {
	start := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	end := start.Add(3 * time.Hour)
	base := model.Exam{
		StartTime:          start,
		EndTime:            end,
		IsPublished:        true,
		AllowedDepartments: json.RawMessage(`["Computer Science"]`),
	}
	student := &model.User{Department: "Computer Science"}
	svc := NewEligibilityService(testAliases())

	tests := []struct {
		name       string
		mutate     func(e *model.Exam)
		user       *model.User
		hasAttempt bool
		now        time.Time
		ok         bool
		reason     string
	}{
		{name: "unpublished", mutate: func(e *model.Exam) { e.IsPublished = false }, user: student, now: start.Add(time.Hour), reason: "Exam is not published yet"},
		{name: "not started", user: student, now: start.Add(-time.Minute), reason: "Exam has not started yet"},
		{name: "ended", user: student, now: end.Add(time.Minute), reason: "Exam has ended"},
		{name: "wrong department", user: &model.User{Department: "Physics"}, now: start.Add(time.Hour), reason: "You are not allowed to attempt this exam"},
		{name: "repeat attempt", user: student, hasAttempt: true, now: start.Add(time.Hour), reason: "You have already attempted this exam"},
		{name: "eligible", user: student, now: start.Add(time.Hour), ok: true, reason: "Eligible to attempt"},
		{name: "eligible at exact start", user: student, now: start, ok: true, reason: "Eligible to attempt"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			exam := base
			if tc.mutate != nil {
				tc.mutate(&exam)
			}
			ok, reason := svc.CheckEligibility(tc.user, &exam, tc.hasAttempt, tc.now)
			if ok != tc.ok || reason != tc.reason {
				t.Errorf("got (%v, %q), want (%v, %q)", ok, reason, tc.ok, tc.reason)
			}
		})
	}
}

func TestIsDepartmentAllowed(t *testing.T) {
	svc := NewEligibilityService(testAliases())

	tests := []struct {
		name    string
		user    string
		allowed string
		want    bool
	}{
		{name: "empty list open to all", user: "Physics", allowed: `[]`, want: true},
		{name: "missing field open to all", user: "Physics", allowed: ``, want: true},
		{name: "exact match", user: "Computer Science", allowed: `["Computer Science"]`, want: true},
		{name: "case and punctuation", user: "computer-science", allowed: `["Computer Science"]`, want: true},
		{name: "alias short to full", user: "CSE", allowed: `["Computer Science"]`, want: true},
		{name: "alias full to short", user: "Computer Science", allowed: `["cse"]`, want: true},
		{name: "wildcard star", user: "Physics", allowed: `["*"]`, want: true},
		{name: "wildcard all", user: "Physics", allowed: `["All"]`, want: true},
		{name: "wildcard everyone", user: "Physics", allowed: `["Everyone"]`, want: true},
		{name: "substring fallback", user: "Computer Science Engineering", allowed: `["Computer Science"]`, want: true},
		{name: "short alias not a raw substring", user: "Physics", allowed: `["Computer Science"]`, want: false},
		{name: "economics does not match cs", user: "Economics", allowed: `["CS"]`, want: false},
		{name: "mathematics does not match cs", user: "Mathematics", allowed: `["Computer Science"]`, want: false},
		{name: "comma separated string", user: "IT", allowed: `"Information Technology, Computer Science"`, want: true},
		{name: "mismatch", user: "Mechanical Engineering", allowed: `["Computer Science","IT"]`, want: false},
		{name: "empty user department", user: "", allowed: `["Computer Science"]`, want: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := svc.IsDepartmentAllowed(tc.user, json.RawMessage(tc.allowed))
			if got != tc.want {
				t.Errorf("IsDepartmentAllowed(%q, %s) = %v, want %v", tc.user, tc.allowed, got, tc.want)
			}
		})
	}
}

func TestParseAllowedDepartments(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{name: "json array", raw: `["CS","IT"]`, want: 2},
		{name: "json string", raw: `"CS, IT"`, want: 2},
		{name: "plain comma string", raw: `CS, IT, ECE`, want: 3},
		{name: "null", raw: `null`, want: 0},
		{name: "empty", raw: ``, want: 0},
		{name: "numbers kept as text", raw: `["CS", 42]`, want: 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := parseAllowedDepartments(json.RawMessage(tc.raw))
			if len(got) != tc.want {
				t.Errorf("got %v (len %d), want len %d", got, len(got), tc.want)
			}
		})
	}
}
