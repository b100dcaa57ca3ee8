package service

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"testverse_backend/internal/model"
)

// EligibilityService 考试资格与截止时间判定。
// 截止时间对所有学生统一为 exam.end_time，个人延时在其上叠加，
// 与答卷开始时间无关。
type EligibilityService struct {
	aliases map[string]string
}

func NewEligibilityService(aliases map[string]string) *EligibilityService {
	return &EligibilityService{aliases: aliases}
}

// ResolveDeadline 答卷的硬截止时间。
func (s *EligibilityService) ResolveDeadline(exam *model.Exam, ext *model.ExamTimeExtension) time.Time {
	deadline := exam.EndTime
	if ext != nil && ext.AdditionalMinutes > 0 {
		deadline = deadline.Add(time.Duration(ext.AdditionalMinutes) * time.Minute)
	}
	return deadline
}

// RemainingSeconds 距截止的整秒数，过期后恒为 0。
func (s *EligibilityService) RemainingSeconds(exam *model.Exam, ext *model.ExamTimeExtension, now time.Time) int64 {
	deadline := s.ResolveDeadline(exam, ext)
	if now.After(deadline) {
		return 0
	}
	return int64(deadline.Sub(now) / time.Second)
}

// CheckEligibility 新答卷的资格校验。
func (s *EligibilityService) CheckEligibility(user *model.User, exam *model.Exam, hasAttempt bool, now time.Time) (bool, string) {
	if !exam.IsPublished {
		return false, "Exam is not published yet"
	}
	if now.Before(exam.StartTime) {
		return false, "Exam has not started yet"
	}
	if now.After(exam.EndTime) {
		return false, "Exam has ended"
	}
	if !s.IsDepartmentAllowed(user.Department, exam.AllowedDepartments) {
		return false, "You are not allowed to attempt this exam"
	}
	if hasAttempt {
		return false, "You have already attempted this exam"
	}
	return true, "Eligible to attempt"
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9]+`)

// normDepartment 小写、去标点、压缩空白。
func normDepartment(value string) string {
	text := nonAlnumRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(value)), " ")
	return strings.Join(strings.Fields(text), " ")
}

var wildcardDepartments = map[string]struct{}{
	"all":      {},
	"any":      {},
	"everyone": {},
	"*":        {},
}

// expandDepartmentTokens 归一化后的院系名及其别名集合。
func (s *EligibilityService) expandDepartmentTokens(value string) map[string]struct{} {
	norm := normDepartment(value)
	if norm == "" {
		return nil
	}
	tokens := map[string]struct{}{norm: {}}
	for short, full := range s.aliases {
		if norm == short {
			tokens[full] = struct{}{}
		}
		if norm == full {
			tokens[short] = struct{}{}
		}
	}
	return tokens
}

// IsDepartmentAllowed 院系限制匹配。空限制对所有人开放，支持别名
// （如 CSE 与 Computer Science）、通配标记与近似包含兜底。
func (s *EligibilityService) IsDepartmentAllowed(userDepartment string, allowedDepartments json.RawMessage) bool {
	allowedList := parseAllowedDepartments(allowedDepartments)
	if len(allowedList) == 0 {
		return true
	}

	allowedTokens := map[string]struct{}{}
	for _, dept := range allowedList {
		norm := normDepartment(dept)
		if norm == "" {
			if _, ok := wildcardDepartments[strings.TrimSpace(strings.ToLower(dept))]; ok {
				return true
			}
			continue
		}
		if _, ok := wildcardDepartments[norm]; ok {
			return true
		}
		for tok := range s.expandDepartmentTokens(norm) {
			allowedTokens[tok] = struct{}{}
		}
	}
	if len(allowedTokens) == 0 {
		return true
	}

	userTokens := s.expandDepartmentTokens(userDepartment)
	if len(userTokens) == 0 {
		return false
	}

	for tok := range userTokens {
		if _, ok := allowedTokens[tok]; ok {
			return true
		}
	}

	// 近似兜底，例如 "computer science engineering" 与 "computer science"
	for u := range userTokens {
		for a := range allowedTokens {
			if containsDepartment(a, u) || containsDepartment(u, a) {
				return true
			}
		}
	}

	return false
}

// containsDepartment 按词边界判断包含，短别名（如 "cs"）不会
// 误中 "physics" 这类恰好含同样字母的院系名。
func containsDepartment(haystack, needle string) bool {
	if haystack == needle {
		return true
	}
	return strings.Contains(" "+haystack+" ", " "+needle+" ")
}

// parseAllowedDepartments 兼容 JSON 数组、JSON 字符串与逗号分隔字符串。
func parseAllowedDepartments(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return splitDepartmentString(string(raw))
	}

	switch t := v.(type) {
	case nil:
		return nil
	case []interface{}:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else if item != nil {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	case string:
		return splitDepartmentString(t)
	default:
		return nil
	}
}

func splitDepartmentString(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		raw = raw[1 : len(raw)-1]
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"'`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
