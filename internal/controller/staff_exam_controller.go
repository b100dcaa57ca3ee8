package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"testverse_backend/internal/model"
	"testverse_backend/internal/service"
	"testverse_backend/internal/util"

	"github.com/gin-gonic/gin"
)

// StaffExamController 教师侧考试管理。
type StaffExamController struct {
	ExamService    *service.ExamService
	ReportService  *service.ReportService
	StorageService *service.StorageService
}

func NewStaffExamController(examService *service.ExamService, reportService *service.ReportService, storageService *service.StorageService) *StaffExamController {
	return &StaffExamController{
		ExamService:    examService,
		ReportService:  reportService,
		StorageService: storageService,
	}
}

// ExamRequest 创建/更新考试请求
// swagger:model ExamRequest
type ExamRequest struct {
	Title              string    `json:"title" binding:"required"`
	Description        string    `json:"description"`
	StartTime          time.Time `json:"startTime" binding:"required"`
	EndTime            time.Time `json:"endTime" binding:"required"`
	DurationMinutes    int       `json:"durationMinutes"`
	TotalMarks         float64   `json:"totalMarks" binding:"required"`
	PassingMarks       float64   `json:"passingMarks"`
	AllowedDepartments []string  `json:"allowedDepartments"`
}

// CreateExam godoc
// @Summary 创建考试
// @Tags 考试管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   body body ExamRequest true "考试信息"
// @Success 201 {object} util.Response{data=model.Exam} "创建成功"
// @Failure 400 {object} util.Response "参数错误"
// @Router /api/teacher/exams [post]
func (c *StaffExamController) CreateExam(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req ExamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	allowed, err := json.Marshal(req.AllowedDepartments)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam := &model.Exam{
		Title:              req.Title,
		Description:        req.Description,
		CreatorID:          user.UserID,
		StartTime:          req.StartTime,
		EndTime:            req.EndTime,
		DurationMinutes:    req.DurationMinutes,
		TotalMarks:         req.TotalMarks,
		PassingMarks:       req.PassingMarks,
		AllowedDepartments: allowed,
	}
	if err := c.ExamService.CreateExam(exam); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Created(ctx, exam)
}

// ListMyExams godoc
// @Summary 我创建的考试
// @Tags 考试管理
// @Produce  json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response{data=[]model.Exam} "成功"
// @Router /api/teacher/exams [get]
func (c *StaffExamController) ListMyExams(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}
	exams, err := c.ExamService.ListByCreator(user.UserID)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, exams)
}

// GetExam godoc
// @Summary 考试详情（含题目与答案标记）
// @Tags 考试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=model.Exam} "成功"
// @Failure 404 {object} util.Response "考试不存在"
// @Router /api/teacher/exams/{id} [get]
func (c *StaffExamController) GetExam(ctx *gin.Context) {
	exam, err := c.ExamService.GetWithQuestions(ctx.Param("id"))
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

// UpdateExam godoc
// @Summary 更新考试
// @Description 已发布且已开考的考试不可修改
// @Tags 考试管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Param   body body ExamRequest true "考试信息"
// @Success 200 {object} util.Response{data=model.Exam} "成功"
// @Failure 400 {object} util.Response "不可修改"
// @Router /api/teacher/exams/{id} [put]
func (c *StaffExamController) UpdateExam(ctx *gin.Context) {
	exam, err := c.ExamService.GetWithQuestions(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrExamNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	var req ExamRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	allowed, err := json.Marshal(req.AllowedDepartments)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	exam.Title = req.Title
	exam.Description = req.Description
	exam.StartTime = req.StartTime
	exam.EndTime = req.EndTime
	exam.DurationMinutes = req.DurationMinutes
	exam.TotalMarks = req.TotalMarks
	exam.PassingMarks = req.PassingMarks
	exam.AllowedDepartments = allowed

	if err := c.ExamService.UpdateExam(exam); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Success(ctx, exam)
}

// DeleteExam godoc
// @Summary 删除考试
// @Tags 考试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response "成功"
// @Failure 400 {object} util.Response "考试已开始"
// @Router /api/teacher/exams/{id} [delete]
func (c *StaffExamController) DeleteExam(ctx *gin.Context) {
	if err := c.ExamService.DeleteExam(ctx.Param("id")); err != nil {
		if errors.Is(err, util.ErrExamNotFound) {
			util.NotFound(ctx)
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, nil)
}

// PublishExam godoc
// @Summary 发布考试
// @Description 要求题目分值总和等于考试总分
// @Tags 考试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response "成功"
// @Failure 400 {object} util.Response "校验失败"
// @Router /api/teacher/exams/{id}/publish [post]
func (c *StaffExamController) PublishExam(ctx *gin.Context) {
	if err := c.ExamService.PublishExam(ctx.Param("id")); err != nil {
		if errors.Is(err, util.ErrExamNotFound) {
			util.NotFound(ctx)
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, gin.H{"published": true})
}

// UnpublishExam godoc
// @Summary 撤销发布
// @Tags 考试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response "成功"
// @Router /api/teacher/exams/{id}/unpublish [post]
func (c *StaffExamController) UnpublishExam(ctx *gin.Context) {
	if err := c.ExamService.UnpublishExam(ctx.Param("id")); err != nil {
		if errors.Is(err, util.ErrExamNotFound) {
			util.NotFound(ctx)
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, gin.H{"published": false})
}

// QuestionRequest 题目请求
// swagger:model QuestionRequest
type QuestionRequest struct {
	Type           string          `json:"type" binding:"required,oneof=mcq multiple_mcq descriptive coding"`
	Text           string          `json:"text" binding:"required"`
	Points         float64         `json:"points" binding:"required"`
	Order          int             `json:"order"`
	Options        json.RawMessage `json:"options"`
	CorrectAnswers json.RawMessage `json:"correctAnswers"`
	Attachment     string          `json:"attachment"`
	CodeLanguage   string          `json:"codeLanguage"`
	StarterCode    string          `json:"starterCode"`
}

// AddQuestion godoc
// @Summary 添加题目
// @Description 题目分值不能超过考试总分的剩余额度
// @Tags 考试管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Param   body body QuestionRequest true "题目信息"
// @Success 201 {object} util.Response{data=model.Question} "创建成功"
// @Failure 400 {object} util.Response "校验失败"
// @Router /api/teacher/exams/{id}/questions [post]
func (c *StaffExamController) AddQuestion(ctx *gin.Context) {
	var req QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question := &model.Question{
		ExamID:         ctx.Param("id"),
		Type:           model.QuestionType(req.Type),
		Text:           req.Text,
		Points:         req.Points,
		Order:          req.Order,
		Options:        req.Options,
		CorrectAnswers: req.CorrectAnswers,
		Attachment:     req.Attachment,
		CodeLanguage:   req.CodeLanguage,
		StarterCode:    req.StarterCode,
	}
	if err := c.ExamService.AddQuestion(question); err != nil {
		if errors.Is(err, util.ErrExamNotFound) {
			util.NotFound(ctx)
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Created(ctx, question)
}

// UpdateQuestion godoc
// @Summary 更新题目
// @Tags 考试管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "题目ID"
// @Param   body body QuestionRequest true "题目信息"
// @Success 200 {object} util.Response{data=model.Question} "成功"
// @Router /api/teacher/questions/{id} [put]
func (c *StaffExamController) UpdateQuestion(ctx *gin.Context) {
	question, err := c.ExamService.ExamRepo.FindQuestion(ctx.Param("id"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	if question == nil {
		util.NotFound(ctx)
		return
	}

	var req QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	question.Type = model.QuestionType(req.Type)
	question.Text = req.Text
	question.Points = req.Points
	if req.Order > 0 {
		question.Order = req.Order
	}
	question.Options = req.Options
	question.CorrectAnswers = req.CorrectAnswers
	question.Attachment = req.Attachment
	question.CodeLanguage = req.CodeLanguage
	question.StarterCode = req.StarterCode

	if err := c.ExamService.UpdateQuestion(question); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Success(ctx, question)
}

// DeleteQuestion godoc
// @Summary 删除题目
// @Tags 考试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "题目ID"
// @Success 200 {object} util.Response "成功"
// @Router /api/teacher/questions/{id} [delete]
func (c *StaffExamController) DeleteQuestion(ctx *gin.Context) {
	if err := c.ExamService.DeleteQuestion(ctx.Param("id")); err != nil {
		if errors.Is(err, util.ErrExamNotFound) {
			util.NotFound(ctx)
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, nil)
}

// ExtensionRequest 延时请求
// swagger:model ExtensionRequest
type ExtensionRequest struct {
	StudentID         uint   `json:"studentId" binding:"required"`
	AdditionalMinutes int    `json:"additionalMinutes" binding:"required"`
	Reason            string `json:"reason"`
}

// GrantExtension godoc
// @Summary 授予考试延时
// @Description 同一学生重复授予时覆盖原延时
// @Tags 考试管理
// @Accept  json
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Param   body body ExtensionRequest true "延时信息"
// @Success 200 {object} util.Response{data=model.ExamTimeExtension} "成功"
// @Router /api/teacher/exams/{id}/extensions [post]
func (c *StaffExamController) GrantExtension(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req ExtensionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	ext, err := c.ExamService.GrantExtension(ctx.Param("id"), req.StudentID, req.AdditionalMinutes, req.Reason, user.UserID)
	if err != nil {
		if errors.Is(err, util.ErrExamNotFound) {
			util.NotFound(ctx)
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, ext)
}

// ListExtensions godoc
// @Summary 考试延时列表
// @Tags 考试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=[]model.ExamTimeExtension} "成功"
// @Router /api/teacher/exams/{id}/extensions [get]
func (c *StaffExamController) ListExtensions(ctx *gin.Context) {
	exts, err := c.ExamService.ListExtensions(ctx.Param("id"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, exts)
}

// ListSubmissions godoc
// @Summary 已交卷答卷列表
// @Tags 批改
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=[]model.ExamAttempt} "成功"
// @Router /api/teacher/exams/{id}/submissions [get]
func (c *StaffExamController) ListSubmissions(ctx *gin.Context) {
	attempts, err := c.ExamService.ExamSubmissions(ctx.Param("id"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, attempts)
}

// FinalizeResults godoc
// @Summary 考后统一结算成绩
// @Description 考试未结束且仍有学生作答时拒绝
// @Tags 成绩管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "仍有学生作答"
// @Router /api/teacher/exams/{id}/finalize-results [post]
func (c *StaffExamController) FinalizeResults(ctx *gin.Context) {
	count, err := c.ExamService.FinalizeResults(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrExamNotFound) {
			util.NotFound(ctx)
		} else {
			util.BadRequest(ctx, err.Error())
		}
		return
	}
	util.Success(ctx, gin.H{"recomputed": count})
}

// Statistics godoc
// @Summary 考试统计
// @Tags 成绩管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=service.ExamStatistics} "成功"
// @Router /api/teacher/exams/{id}/statistics [get]
func (c *StaffExamController) Statistics(ctx *gin.Context) {
	stats, err := c.ExamService.Statistics(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrExamNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, stats)
}

// LiveMonitor godoc
// @Summary 实时监考
// @Description 进行中答卷的作答进度与剩余时间
// @Tags 考试管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=[]service.LiveAttempt} "成功"
// @Router /api/teacher/exams/{id}/monitor [get]
func (c *StaffExamController) LiveMonitor(ctx *gin.Context) {
	rows, err := c.ExamService.LiveMonitor(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrExamNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, rows)
}

// ListResults godoc
// @Summary 考试成绩列表
// @Tags 成绩管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=[]model.Result} "成功"
// @Router /api/teacher/exams/{id}/results [get]
func (c *StaffExamController) ListResults(ctx *gin.Context) {
	results, err := c.ExamService.ListResults(ctx.Param("id"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, results)
}

// PublishResult godoc
// @Summary 发布单条成绩
// @Tags 成绩管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "成绩ID"
// @Success 200 {object} util.Response "成功"
// @Router /api/teacher/results/{id}/publish [post]
func (c *StaffExamController) PublishResult(ctx *gin.Context) {
	if err := c.ExamService.PublishResult(ctx.Param("id")); err != nil {
		if errors.Is(err, util.ErrResultNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}
	util.Success(ctx, gin.H{"published": true})
}

// PublishAllResults godoc
// @Summary 批量发布成绩
// @Description 要求该考试所有成绩均已批改完
// @Tags 成绩管理
// @Produce  json
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {object} util.Response{data=object} "成功"
// @Failure 400 {object} util.Response "仍有未批改完的答卷"
// @Router /api/teacher/exams/{id}/results/publish-all [post]
func (c *StaffExamController) PublishAllResults(ctx *gin.Context) {
	count, err := c.ExamService.PublishAllResults(ctx.Param("id"))
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	util.Success(ctx, gin.H{"published_count": count})
}

// ExportResults godoc
// @Summary 导出成绩 Excel
// @Tags 成绩管理
// @Produce  application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security ApiKeyAuth
// @Param   id path string true "考试ID"
// @Success 200 {file} binary "xlsx 文件"
// @Router /api/teacher/exams/{id}/results/export [get]
func (c *StaffExamController) ExportResults(ctx *gin.Context) {
	f, filename, err := c.ReportService.ExportResultsExcel(ctx.Param("id"))
	if err != nil {
		if errors.Is(err, util.ErrExamNotFound) {
			util.NotFound(ctx)
		} else {
			util.LogInternalError(ctx, err)
		}
		return
	}

	ctx.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	ctx.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	if err := f.Write(ctx.Writer); err != nil {
		util.LogInternalError(ctx, err)
	}
}

// UploadAttachment godoc
// @Summary 上传题目附件
// @Tags 考试管理
// @Accept  multipart/form-data
// @Produce  json
// @Security ApiKeyAuth
// @Param   file formData file true "附件"
// @Success 200 {object} util.Response{data=object} "成功"
// @Router /api/teacher/upload [post]
func (c *StaffExamController) UploadAttachment(ctx *gin.Context) {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	src, err := fileHeader.Open()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	defer src.Close()

	filename := fmt.Sprintf("attachments/%d_%s", time.Now().UnixNano(), fileHeader.Filename)
	url, err := c.StorageService.Upload(ctx.Request.Context(), filename, src, fileHeader.Size, fileHeader.Header.Get("Content-Type"))
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"url": url})
}
