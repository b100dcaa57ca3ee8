package service

import (
	"encoding/json"
	"strconv"

	"testverse_backend/internal/model"
)

// ParseAnswerItems 把保存/提交请求体归一化为答案条目列表。
// 兼容三种形态：顶层数组、{"answers": [...]}、以及历史单条形态
// {question|questionId|question_id, answer, code}。
func ParseAnswerItems(raw json.RawMessage) []model.AnswerPatch {
	if len(raw) == 0 {
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}

	switch t := v.(type) {
	case []interface{}:
		return answerItemsFromList(t)
	case map[string]interface{}:
		if answers, ok := t["answers"].([]interface{}); ok {
			return answerItemsFromList(answers)
		}
		for _, key := range []string{"question", "questionId", "question_id", "answer", "code"} {
			if _, ok := t[key]; ok {
				return answerItemsFromList([]interface{}{t})
			}
		}
	}
	return nil
}

func answerItemsFromList(list []interface{}) []model.AnswerPatch {
	out := make([]model.AnswerPatch, 0, len(list))
	for _, raw := range list {
		m, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		item, ok := answerItemFromMap(m)
		if !ok {
			continue
		}
		out = append(out, item)
	}
	return out
}

func answerItemFromMap(m map[string]interface{}) (model.AnswerPatch, bool) {
	var item model.AnswerPatch
	for _, key := range []string{"question_id", "questionId", "question"} {
		if id := stringID(m[key]); id != "" {
			item.QuestionID = id
			break
		}
	}
	if item.QuestionID == "" {
		return item, false
	}

	if raw, ok := m["answer"]; ok {
		item.HasAnswer = true
		// JSON 字段不允许为 null
		if raw == nil {
			item.Answer = json.RawMessage(`{}`)
		} else {
			encoded, err := json.Marshal(raw)
			if err != nil {
				item.Answer = json.RawMessage(`{}`)
			} else {
				item.Answer = encoded
			}
			if s, ok := raw.(string); ok {
				item.AnswerIsString = true
				item.AnswerString = s
			}
		}
	}

	if raw, ok := m["code"]; ok {
		item.HasCode = true
		if s, ok := raw.(string); ok {
			item.Code = s
		}
	}
	return item, true
}

func stringID(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatInt(int64(t), 10)
	default:
		return ""
	}
}
