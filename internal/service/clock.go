package service

import "time"

// Clock 注入时钟，便于对截止时间逻辑做确定性测试。
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time {
	return time.Now()
}

var SystemClock Clock = systemClock{}
