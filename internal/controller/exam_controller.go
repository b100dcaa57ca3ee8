package controller

import (
	"encoding/json"
	"errors"
	"testverse_backend/internal/service"
	"testverse_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// ExamController 学生考试入口。
type ExamController struct {
	AuthService    *service.AuthService
	ExamService    *service.ExamService
	AttemptService *service.AttemptService
}

func NewExamController(authService *service.AuthService, examService *service.ExamService, attemptService *service.AttemptService) *ExamController {
	return &ExamController{
		AuthService:    authService,
		ExamService:    examService,
		AttemptService: attemptService,
	}
}

// ListExams godoc
// @Summary 可参加的考试列表
// @Description 已发布且对当前学生院系开放的考试
// @Tags 考试
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Exam} "成功"
// @Router /api/student/exams [get]
func (c *ExamController) ListExams(ctx *gin.Context) {
	user := c.AuthService.GetCurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	exams, err := c.ExamService.ListAvailable(user)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, exams)
}

// GetExam godoc
// @Summary 考试详情
// @Description 学生视角的考试详情，题目不含答案标记
// @Tags 考试
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=model.Exam} "成功"
// @Failure 404 {object} util.Response "考试不存在"
// @Router /api/student/exams/{id} [get]
func (c *ExamController) GetExam(ctx *gin.Context) {
	exam, err := c.ExamService.GetForStudent(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrExamNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, exam)
}

// StartExam godoc
// @Summary 开始或恢复考试
// @Description 已有进行中答卷则恢复已保存答案；答卷已过期则自动交卷并报错
// @Tags 考试
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=object} "恢复成功"
// @Success 201 {object} util.Response{data=object} "开始成功"
// @Failure 400 {object} util.Response "不符合资格或已过期"
// @Failure 409 {object} util.Response "已交卷"
// @Router /api/student/exams/{id}/start [post]
func (c *ExamController) StartExam(ctx *gin.Context) {
	user := c.AuthService.GetCurrentUser(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	outcome, err := c.AttemptService.Start(user, ctx.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrExamNotFound):
			util.NotFound(ctx)
		case errors.Is(err, util.ErrAlreadySubmitted):
			util.Conflict(ctx, "You have already submitted this exam.")
		case errors.Is(err, util.ErrDeadlineExpired):
			util.BadRequest(ctx, "Exam time has expired. Your exam has been auto-submitted.")
		case errors.Is(err, util.ErrNotEligible):
			util.BadRequest(ctx, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	data := gin.H{
		"attemptId":              outcome.Attempt.ID,
		"startTime":              outcome.Attempt.StartTime,
		"endTime":                outcome.Deadline,
		"time_remaining_seconds": outcome.RemainingSeconds,
		"questions":              service.SanitizeQuestions(outcome.Questions),
		"resumed":                outcome.Resumed,
	}
	if outcome.Resumed {
		data["answers"] = outcome.Answers
		util.Success(ctx, data)
		return
	}
	util.Created(ctx, data)
}

// SaveAnswers godoc
// @Summary 保存答案
// @Description 考中批量或单条保存，截止后 30 秒宽限期内仍可保存
// @Tags 考试
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=object} "保存成功"
// @Failure 400 {object} util.Response "载荷无效或已过期"
// @Failure 404 {object} util.Response "没有进行中的答卷"
// @Router /api/student/exams/{id}/save [post]
func (c *ExamController) SaveAnswers(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	body, err := ctx.GetRawData()
	if err != nil {
		util.BadRequest(ctx, "Invalid answer payload")
		return
	}
	items := service.ParseAnswerItems(json.RawMessage(body))
	if len(items) == 0 {
		util.BadRequest(ctx, "Invalid answer payload")
		return
	}

	saved, err := c.AttemptService.SaveAnswers(user.UserID, ctx.Param("id"), items)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrAttemptNotFound):
			util.Error(ctx, 404, "Active attempt not found")
		case errors.Is(err, util.ErrDeadlineExpired):
			util.BadRequest(ctx, "Exam time has expired")
		case errors.Is(err, util.ErrStorageConflict):
			util.Conflict(ctx, "Attempt is no longer editable")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, gin.H{"saved_count": saved})
}

// SubmitExam godoc
// @Summary 交卷
// @Description 进行中的答卷一律接受交卷；重复交卷幂等返回原提交时间
// @Tags 考试
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=object} "交卷成功"
// @Failure 404 {object} util.Response "没有答卷"
// @Router /api/student/exams/{id}/submit [post]
func (c *ExamController) SubmitExam(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	body, _ := ctx.GetRawData()
	items := service.ParseAnswerItems(json.RawMessage(body))

	outcome, err := c.AttemptService.Submit(user.UserID, ctx.Param("id"), items)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrAttemptNotFound):
			util.Error(ctx, 404, "No exam attempt found")
		case errors.Is(err, util.ErrStorageConflict):
			util.Conflict(ctx, "Attempt was modified concurrently")
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	message := "Exam submitted successfully. Results will be published after teacher review."
	if outcome.AlreadySubmitted {
		message = "Exam was already submitted."
	}
	util.Success(ctx, gin.H{
		"message":     message,
		"submittedAt": outcome.SubmittedAt,
	})
}

// RemainingTime godoc
// @Summary 剩余时间
// @Description 进行中答卷的剩余秒数，含个人延时
// @Tags 考试
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 404 {object} util.Response "没有答卷"
// @Router /api/student/exams/{id}/time [get]
func (c *ExamController) RemainingTime(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	remaining, err := c.AttemptService.RemainingTime(user.UserID, ctx.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, util.ErrAttemptNotFound), errors.Is(err, util.ErrExamNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{"time_remaining_seconds": remaining})
}

// MyResult godoc
// @Summary 单场考试成绩
// @Description 仅返回已发布的成绩
// @Tags 成绩
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=model.Result} "成功"
// @Failure 404 {object} util.Response "成绩不存在或未发布"
// @Router /api/student/exams/{id}/result [get]
func (c *ExamController) MyResult(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	result, err := c.ExamService.StudentResult(ctx.Param("id"), user.UserID)
	if err != nil {
		if errors.Is(err, util.ErrResultNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, result)
}

// MyResults godoc
// @Summary 我的全部成绩
// @Tags 成绩
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Result} "成功"
// @Router /api/student/results [get]
func (c *ExamController) MyResults(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	results, err := c.ExamService.StudentResults(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, results)
}

// MyAttempts godoc
// @Summary 我的答卷列表
// @Tags 考试
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.ExamAttempt} "成功"
// @Router /api/student/attempts [get]
func (c *ExamController) MyAttempts(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	attempts, err := c.ExamService.StudentAttempts(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}
