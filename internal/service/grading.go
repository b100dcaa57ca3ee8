package service

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"testverse_backend/internal/model"
)

// 判分基于归一化 token 集合，兼容前端多种作答形态：
// 选项 id、选项值、选项文本、0/1 起下标、字母编号都视为同一选项。

func isTruthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t == 1
	case string:
		return strings.ToLower(t) == "true"
	default:
		return false
	}
}

func normToken(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.ToLower(strings.TrimSpace(t))
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		// JSON 数字解出来都是 float64，整数值须还原成整数串
		// 才能与选项 id 对上（1.0 与 1 同一 token）
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return strings.ToLower(strings.TrimSpace(fmt.Sprint(t)))
	}
}

func addToken(out map[string]struct{}, v interface{}) {
	if v == nil {
		return
	}
	tok := normToken(v)
	if tok != "" {
		out[tok] = struct{}{}
	}
}

// AnswerTokens 把学生作答 JSON 归一化为 token 集合。
// 列表逐项取 token，对象形态（{"1": true}）取真值键，否则取值集合，
// 标量作为单元素集合。列表里的对象取 id/value/text/answer 子字段。
func AnswerTokens(raw json.RawMessage) map[string]struct{} {
	out := map[string]struct{}{}
	if len(raw) == 0 {
		return out
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return out
	}

	var items []interface{}
	switch t := v.(type) {
	case nil:
		return out
	case []interface{}:
		items = t
	case map[string]interface{}:
		for key, val := range t {
			if isTruthy(val) {
				addToken(out, key)
			}
		}
		if len(out) > 0 {
			return out
		}
		for _, val := range t {
			items = append(items, val)
		}
	default:
		items = []interface{}{v}
	}

	for _, item := range items {
		if m, ok := item.(map[string]interface{}); ok {
			for _, key := range []string{"id", "value", "text", "answer"} {
				if sub, ok := m[key]; ok && sub != nil {
					addToken(out, sub)
				}
			}
			continue
		}
		addToken(out, item)
	}
	return out
}

// CorrectTokensFromOptions 从选项标记构建正确答案 token 集合。
// 同时兼容 isCorrect 与 is_correct，每个正确选项登记 id、value、text、
// 0 起下标、1 起下标和字母编号。
func CorrectTokensFromOptions(options json.RawMessage) map[string]struct{} {
	out := map[string]struct{}{}
	if len(options) == 0 {
		return out
	}
	var opts []interface{}
	if err := json.Unmarshal(options, &opts); err != nil {
		return out
	}

	for idx, opt := range opts {
		m, ok := opt.(map[string]interface{})
		if !ok {
			continue
		}
		if !isTruthy(m["isCorrect"]) && !isTruthy(m["is_correct"]) {
			continue
		}
		addToken(out, m["id"])
		addToken(out, m["value"])
		addToken(out, m["text"])
		out[strconv.Itoa(idx)] = struct{}{}
		out[strconv.Itoa(idx+1)] = struct{}{}
		if idx < 26 {
			out[strings.ToLower(string(rune('A'+idx)))] = struct{}{}
		}
	}
	return out
}

// explicitCorrectTokens 题目显式配置的标准答案集合。
func explicitCorrectTokens(raw json.RawMessage) map[string]struct{} {
	out := map[string]struct{}{}
	if len(raw) == 0 {
		return out
	}
	var items []interface{}
	if err := json.Unmarshal(raw, &items); err != nil {
		return out
	}
	for _, item := range items {
		addToken(out, item)
	}
	return out
}

func setsIntersect(a, b map[string]struct{}) bool {
	for tok := range a {
		if _, ok := b[tok]; ok {
			return true
		}
	}
	return false
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for tok := range a {
		if _, ok := b[tok]; !ok {
			return false
		}
	}
	return true
}

// AutoEvaluate 客观题自动判分。
// mcq：与正确集合有交集即得满分。multiple_mcq：优先使用显式标准答案，
// 其次选项标记，要求集合完全相等，不给部分分。
// 主观题（descriptive/coding）不自动判分。
func AutoEvaluate(question *model.Question, answer json.RawMessage) float64 {
	switch question.Type {
	case model.QuestionMCQ:
		correct := CorrectTokensFromOptions(question.Options)
		student := AnswerTokens(answer)
		if len(correct) > 0 && setsIntersect(correct, student) {
			return question.Points
		}
	case model.QuestionMultipleMCQ:
		correct := explicitCorrectTokens(question.CorrectAnswers)
		if len(correct) == 0 {
			correct = CorrectTokensFromOptions(question.Options)
		}
		student := AnswerTokens(answer)
		if len(correct) > 0 && setsEqual(correct, student) {
			return question.Points
		}
	}
	return 0
}

// ComputeGradingStatus 按主观题批改进度汇总。
// 无主观题视为 fully_graded，零批改为 pending，部分批改为 partially_graded。
func ComputeGradingStatus(answers []model.Answer) model.GradingStatus {
	manual := 0
	graded := 0
	for _, a := range answers {
		if a.Question == nil || a.Question.Type.IsObjective() {
			continue
		}
		manual++
		if a.Score != nil {
			graded++
		}
	}
	if manual == 0 {
		return model.GradingFullyGraded
	}
	if graded == 0 {
		return model.GradingPending
	}
	if graded < manual {
		return model.GradingPartiallyGraded
	}
	return model.GradingFullyGraded
}
