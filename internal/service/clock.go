package service

import "time"

// Clock 时间源，停留时间校验依赖"现在"，测试里用假时钟控制流逝
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func RealClock() Clock { return realClock{} }
