package controller

import (
	"errors"

	"testverse_backend/internal/service"
	"testverse_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// GradeController 人工批改接口。
type GradeController struct {
	GradingService *service.GradingService
}

func NewGradeController(gradingService *service.GradingService) *GradeController {
	return &GradeController{GradingService: gradingService}
}

// SubmissionDetail godoc
// @Summary 答卷详情
// @Description 返回答卷及全部答案，供批改界面展示
// @Tags 批改
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "答卷ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 404 {object} util.Response "答卷不存在"
// @Router /api/teacher/submissions/{id} [get]
func (c *GradeController) SubmissionDetail(ctx *gin.Context) {
	attempt, answers, err := c.GradingService.SubmissionDetail(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrAttemptNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{
		"attempt": attempt,
		"answers": answers,
	})
}

// EvaluateRequest 评分请求
// swagger:model EvaluateRequest
type EvaluateRequest struct {
	QuestionID string  `json:"questionId" binding:"required"`
	Score      float64 `json:"score"`
	Feedback   string  `json:"feedback"`
}

// EvaluateAnswer godoc
// @Summary 单题评分
// @Description 分数区间为 [0, 题目分值]，评分后整卷成绩自动重算
// @Tags 批改
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "答卷ID"
// @Param   body body EvaluateRequest true "评分信息"
// @Success 200 {object} util.Response{data=model.Result} "成功"
// @Failure 400 {object} util.Response "分数超出范围"
// @Failure 404 {object} util.Response "答卷或答案不存在"
// @Router /api/teacher/submissions/{id}/evaluate [post]
func (c *GradeController) EvaluateAnswer(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req EvaluateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.GradingService.EvaluateAnswer(user.UserID, ctx.Param("id"), req.QuestionID, req.Score, req.Feedback)
	if err != nil {
		switch {
		case errors.Is(err, util.ErrInvalidScore):
			util.BadRequest(ctx, "score must be between 0 and the question points")
		case errors.Is(err, util.ErrAttemptNotFound):
			util.NotFound(ctx)
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, result)
}

// BulkFeedbackRequest 批量评语请求
// swagger:model BulkFeedbackRequest
type BulkFeedbackRequest struct {
	ResultIDs        []string `json:"resultIds" binding:"required,min=1"`
	FeedbackTemplate string   `json:"feedbackTemplate"`
}

// BulkFeedback godoc
// @Summary 批量评语
// @Description 给选中成绩单中尚未评分的主观题答案统一写评语，不改动分数
// @Tags 批改
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Param   body body BulkFeedbackRequest true "成绩单与评语模板"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 404 {object} util.Response "考试不存在"
// @Router /api/teacher/exams/{id}/bulk-feedback [post]
func (c *GradeController) BulkFeedback(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req BulkFeedbackRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	resultsUpdated, answersUpdated, err := c.GradingService.BulkFeedback(user.UserID, ctx.Param("id"), req.ResultIDs, req.FeedbackTemplate)
	if err != nil {
		if errors.Is(err, util.ErrExamNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{
		"resultsUpdated": resultsUpdated,
		"answersUpdated": answersUpdated,
	})
}
