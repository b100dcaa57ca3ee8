package service

import (
	"encoding/json"
	"errors"
	"time"

	"testverse_backend/internal/model"
	"testverse_backend/internal/repository"
	"testverse_backend/internal/util"
)

// ExamService 考试与题目的教师侧管理，以及学生侧的考试列表。
type ExamService struct {
	ExamRepo      *repository.ExamRepository
	AttemptRepo   *repository.AttemptRepository
	ResultRepo    *repository.ResultRepository
	ExtensionRepo *repository.ExtensionRepository
	Results       *ResultService
	Eligibility   *EligibilityService
	clock         Clock
}

func NewExamService(
	examRepo *repository.ExamRepository,
	attemptRepo *repository.AttemptRepository,
	resultRepo *repository.ResultRepository,
	extensionRepo *repository.ExtensionRepository,
	results *ResultService,
	eligibility *EligibilityService,
	clock Clock,
) *ExamService {
	if clock == nil {
		clock = SystemClock
	}
	return &ExamService{
		ExamRepo:      examRepo,
		AttemptRepo:   attemptRepo,
		ResultRepo:    resultRepo,
		ExtensionRepo: extensionRepo,
		Results:       results,
		Eligibility:   eligibility,
		clock:         clock,
	}
}

// ListAvailable 学生可见的已发布考试，按院系过滤。
func (s *ExamService) ListAvailable(user *model.User) ([]model.Exam, error) {
	exams, err := s.ExamRepo.ListPublished()
	if err != nil {
		return nil, err
	}
	out := make([]model.Exam, 0, len(exams))
	for _, exam := range exams {
		if s.Eligibility.IsDepartmentAllowed(user.Department, exam.AllowedDepartments) {
			out = append(out, exam)
		}
	}
	return out, nil
}

// GetForStudent 学生视角的考试详情，题目不带答案标记。
func (s *ExamService) GetForStudent(examID string) (*model.Exam, error) {
	exam, err := s.ExamRepo.FindWithQuestions(examID)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, util.ErrExamNotFound
	}
	exam.Questions = SanitizeQuestions(exam.Questions)
	return exam, nil
}

// SanitizeQuestions 去掉选项上的正确标记与显式答案，返回副本。
func SanitizeQuestions(questions []model.Question) []model.Question {
	out := make([]model.Question, len(questions))
	for i, q := range questions {
		q.CorrectAnswers = nil
		if len(q.Options) > 0 {
			var opts []interface{}
			if err := json.Unmarshal(q.Options, &opts); err == nil {
				for j, opt := range opts {
					if m, ok := opt.(map[string]interface{}); ok {
						delete(m, "isCorrect")
						delete(m, "is_correct")
						opts[j] = m
					}
				}
				if cleaned, err := json.Marshal(opts); err == nil {
					q.Options = cleaned
				}
			}
		}
		out[i] = q
	}
	return out
}

func (s *ExamService) GetWithQuestions(examID string) (*model.Exam, error) {
	exam, err := s.ExamRepo.FindWithQuestions(examID)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, util.ErrExamNotFound
	}
	return exam, nil
}

func (s *ExamService) ListByCreator(creatorID uint) ([]model.Exam, error) {
	return s.ExamRepo.ListByCreator(creatorID)
}

func (s *ExamService) CreateExam(exam *model.Exam) error {
	if !exam.EndTime.After(exam.StartTime) {
		return errors.New("end time must be after start time")
	}
	if exam.TotalMarks <= 0 {
		return errors.New("total marks must be positive")
	}
	return s.ExamRepo.Create(exam)
}

// UpdateExam 已发布且已开考的考试不可修改。
func (s *ExamService) UpdateExam(exam *model.Exam) error {
	if exam.IsPublished && exam.HasStarted(s.clock.Now()) {
		return errors.New("exam already started")
	}
	if !exam.EndTime.After(exam.StartTime) {
		return errors.New("end time must be after start time")
	}
	return s.ExamRepo.Save(exam)
}

func (s *ExamService) DeleteExam(examID string) error {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		return err
	}
	if exam == nil {
		return util.ErrExamNotFound
	}
	if exam.IsPublished && exam.HasStarted(s.clock.Now()) {
		return errors.New("exam already started")
	}
	return s.ExamRepo.Delete(examID)
}

// PublishExam 发布前校验题目分值总和等于考试总分。
func (s *ExamService) PublishExam(examID string) error {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		return err
	}
	if exam == nil {
		return util.ErrExamNotFound
	}

	count, err := s.ExamRepo.CountQuestions(examID)
	if err != nil {
		return err
	}
	if count == 0 {
		return errors.New("cannot publish an exam without questions")
	}

	sum, err := s.ExamRepo.SumQuestionPoints(examID)
	if err != nil {
		return err
	}
	if sum != exam.TotalMarks {
		return errors.New("question points do not add up to total marks")
	}

	exam.IsPublished = true
	return s.ExamRepo.Save(exam)
}

func (s *ExamService) UnpublishExam(examID string) error {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		return err
	}
	if exam == nil {
		return util.ErrExamNotFound
	}
	if exam.HasStarted(s.clock.Now()) {
		return errors.New("exam already started")
	}
	exam.IsPublished = false
	return s.ExamRepo.Save(exam)
}

// AddQuestion 追加题目，分值不能超出考试总分的剩余额度。
func (s *ExamService) AddQuestion(question *model.Question) error {
	exam, err := s.ExamRepo.FindByID(question.ExamID)
	if err != nil {
		return err
	}
	if exam == nil {
		return util.ErrExamNotFound
	}
	if exam.IsPublished && exam.HasStarted(s.clock.Now()) {
		return errors.New("exam already started")
	}
	if question.Points <= 0 {
		return errors.New("question points must be positive")
	}

	sum, err := s.ExamRepo.SumQuestionPoints(question.ExamID)
	if err != nil {
		return err
	}
	if sum+question.Points > exam.TotalMarks {
		return errors.New("question points exceed total marks")
	}

	if question.Order == 0 {
		count, err := s.ExamRepo.CountQuestions(question.ExamID)
		if err != nil {
			return err
		}
		question.Order = int(count) + 1
	}
	return s.ExamRepo.CreateQuestion(question)
}

func (s *ExamService) UpdateQuestion(question *model.Question) error {
	exam, err := s.ExamRepo.FindByID(question.ExamID)
	if err != nil {
		return err
	}
	if exam == nil {
		return util.ErrExamNotFound
	}
	if exam.IsPublished && exam.HasStarted(s.clock.Now()) {
		return errors.New("exam already started")
	}
	return s.ExamRepo.SaveQuestion(question)
}

func (s *ExamService) DeleteQuestion(questionID string) error {
	question, err := s.ExamRepo.FindQuestion(questionID)
	if err != nil {
		return err
	}
	if question == nil {
		return util.ErrExamNotFound
	}
	exam, err := s.ExamRepo.FindByID(question.ExamID)
	if err != nil {
		return err
	}
	if exam != nil && exam.IsPublished && exam.HasStarted(s.clock.Now()) {
		return errors.New("exam already started")
	}
	return s.ExamRepo.DeleteQuestion(questionID)
}

// GrantExtension 授予或覆盖某学生的考试延时。
func (s *ExamService) GrantExtension(examID string, studentID uint, minutes int, reason string, grantedBy uint) (*model.ExamTimeExtension, error) {
	if minutes <= 0 {
		return nil, errors.New("additional minutes must be positive")
	}
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, util.ErrExamNotFound
	}
	ext := &model.ExamTimeExtension{
		ExamID:            examID,
		StudentID:         studentID,
		AdditionalMinutes: minutes,
		Reason:            reason,
		GrantedBy:         grantedBy,
	}
	if err := s.ExtensionRepo.Upsert(ext); err != nil {
		return nil, err
	}
	return s.ExtensionRepo.FindByExamAndStudent(examID, studentID)
}

func (s *ExamService) ListExtensions(examID string) ([]model.ExamTimeExtension, error) {
	return s.ExtensionRepo.ListByExam(examID)
}

// FinalizeResults 考后统一重算成绩。考试未结束且仍有学生作答时拒绝。
func (s *ExamService) FinalizeResults(examID string) (int, error) {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		return 0, err
	}
	if exam == nil {
		return 0, util.ErrExamNotFound
	}

	now := s.clock.Now()
	if now.Before(exam.EndTime) {
		active, err := s.AttemptRepo.CountInProgressByExam(examID)
		if err != nil {
			return 0, err
		}
		if active > 0 {
			return 0, errors.New("students are still taking this exam")
		}
	}

	attempts, err := s.AttemptRepo.ListByExam(examID)
	if err != nil {
		return 0, err
	}
	recomputed := 0
	for i := range attempts {
		if !attempts[i].Status.IsTerminal() {
			continue
		}
		if _, err := s.Results.Recompute(&attempts[i]); err != nil {
			return recomputed, err
		}
		recomputed++
	}
	return recomputed, nil
}

// ExamStatistics 成绩统计。
type ExamStatistics struct {
	ExamID         string  `json:"examId"`
	TotalAttempts  int     `json:"totalAttempts"`
	GradedResults  int     `json:"gradedResults"`
	AverageMarks   float64 `json:"averageMarks"`
	HighestMarks   float64 `json:"highestMarks"`
	LowestMarks    float64 `json:"lowestMarks"`
	PassCount      int     `json:"passCount"`
	FailCount      int     `json:"failCount"`
	PassPercentage float64 `json:"passPercentage"`
}

func (s *ExamService) Statistics(examID string) (*ExamStatistics, error) {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, util.ErrExamNotFound
	}

	results, err := s.ResultRepo.ListByExam(examID)
	if err != nil {
		return nil, err
	}

	stats := &ExamStatistics{ExamID: examID, TotalAttempts: len(results)}
	if len(results) == 0 {
		return stats, nil
	}

	var sum float64
	stats.LowestMarks = results[0].ObtainedMarks
	for _, res := range results {
		sum += res.ObtainedMarks
		if res.ObtainedMarks > stats.HighestMarks {
			stats.HighestMarks = res.ObtainedMarks
		}
		if res.ObtainedMarks < stats.LowestMarks {
			stats.LowestMarks = res.ObtainedMarks
		}
		switch res.Status {
		case model.ResultPass:
			stats.PassCount++
			stats.GradedResults++
		case model.ResultFail:
			stats.FailCount++
			stats.GradedResults++
		}
	}
	stats.AverageMarks = sum / float64(len(results))
	if graded := stats.PassCount + stats.FailCount; graded > 0 {
		stats.PassPercentage = float64(stats.PassCount) / float64(graded) * 100
	}
	return stats, nil
}

// LiveAttempt 监考视图里的一行。
type LiveAttempt struct {
	AttemptID        string    `json:"attemptId"`
	StudentID        uint      `json:"studentId"`
	StudentName      string    `json:"studentName"`
	StartTime        time.Time `json:"startTime"`
	AnsweredCount    int64     `json:"answeredCount"`
	RemainingSeconds int64     `json:"remainingSeconds"`
}

// LiveMonitor 进行中答卷的实时进度。
func (s *ExamService) LiveMonitor(examID string) ([]LiveAttempt, error) {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		return nil, err
	}
	if exam == nil {
		return nil, util.ErrExamNotFound
	}

	attempts, err := s.AttemptRepo.ListByExam(examID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	out := make([]LiveAttempt, 0, len(attempts))
	for i := range attempts {
		attempt := &attempts[i]
		if attempt.Status != model.AttemptInProgress {
			continue
		}
		answered, err := s.AttemptRepo.CountAnsweredQuestions(attempt.ID)
		if err != nil {
			return nil, err
		}
		ext, err := s.ExtensionRepo.FindByExamAndStudent(examID, attempt.StudentID)
		if err != nil {
			return nil, err
		}
		row := LiveAttempt{
			AttemptID:        attempt.ID,
			StudentID:        attempt.StudentID,
			StartTime:        attempt.StartTime,
			AnsweredCount:    answered,
			RemainingSeconds: s.Eligibility.RemainingSeconds(exam, ext, now),
		}
		if attempt.Student != nil {
			row.StudentName = attempt.Student.Name
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *ExamService) ListResults(examID string) ([]model.Result, error) {
	return s.ResultRepo.ListByExam(examID)
}

func (s *ExamService) PublishResult(resultID string) error {
	result, err := s.ResultRepo.FindByID(resultID)
	if err != nil {
		return err
	}
	if result == nil {
		return util.ErrResultNotFound
	}
	return s.ResultRepo.SetPublished(resultID, true)
}

// PublishAllResults 批量发布要求该考试所有成绩均已批改完。
func (s *ExamService) PublishAllResults(examID string) (int64, error) {
	pending, err := s.ResultRepo.CountNotFullyGraded(examID)
	if err != nil {
		return 0, err
	}
	if pending > 0 {
		return 0, errors.New("some submissions are not fully graded yet")
	}
	return s.ResultRepo.PublishAllByExam(examID)
}

func (s *ExamService) StudentResult(examID string, studentID uint) (*model.Result, error) {
	result, err := s.ResultRepo.FindByExamAndStudent(examID, studentID)
	if err != nil {
		return nil, err
	}
	if result == nil || !result.IsPublished {
		return nil, util.ErrResultNotFound
	}
	return result, nil
}

func (s *ExamService) StudentResults(studentID uint) ([]model.Result, error) {
	return s.ResultRepo.ListPublishedByStudent(studentID)
}

func (s *ExamService) StudentAttempts(studentID uint) ([]model.ExamAttempt, error) {
	return s.AttemptRepo.ListByStudent(studentID)
}

func (s *ExamService) ExamSubmissions(examID string) ([]model.ExamAttempt, error) {
	attempts, err := s.AttemptRepo.ListByExam(examID)
	if err != nil {
		return nil, err
	}
	out := make([]model.ExamAttempt, 0, len(attempts))
	for _, attempt := range attempts {
		if attempt.Status.IsTerminal() {
			out = append(out, attempt)
		}
	}
	return out, nil
}
