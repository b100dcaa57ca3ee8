package service

import (
	"fmt"

	"testverse_backend/internal/repository"
	"testverse_backend/internal/util"

	"github.com/xuri/excelize/v2"
)

// ReportService 成绩报表导出。
type ReportService struct {
	ExamRepo   *repository.ExamRepository
	ResultRepo *repository.ResultRepository
}

func NewReportService(examRepo *repository.ExamRepository, resultRepo *repository.ResultRepository) *ReportService {
	return &ReportService{ExamRepo: examRepo, ResultRepo: resultRepo}
}

// ExportResultsExcel 导出某场考试的全部成绩为 xlsx。
func (s *ReportService) ExportResultsExcel(examID string) (*excelize.File, string, error) {
	exam, err := s.ExamRepo.FindByID(examID)
	if err != nil {
		return nil, "", err
	}
	if exam == nil {
		return nil, "", util.ErrExamNotFound
	}

	results, err := s.ResultRepo.ListByExam(examID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	const sheet = "Results"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"学号", "姓名", "院系", "得分", "总分", "百分比", "结果", "批改状态", "提交时间"}
	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, "", err
		}
		f.SetCellValue(sheet, cell, h)
	}

	for row, res := range results {
		values := []interface{}{
			"", "", "",
			res.ObtainedMarks,
			res.TotalMarks,
			fmt.Sprintf("%.1f%%", res.Percentage),
			string(res.Status),
			string(res.GradingStatus),
			res.SubmittedAt.Format("2006-01-02 15:04:05"),
		}
		if res.Student != nil {
			values[0] = res.Student.EnrollmentID
			values[1] = res.Student.Name
			values[2] = res.Student.Department
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				return nil, "", err
			}
			f.SetCellValue(sheet, cell, v)
		}
	}

	filename := fmt.Sprintf("exam_results_%s.xlsx", exam.ID)
	return f, filename, nil
}
