package clock

import "time"

// Clock 可替换的时间源，测试中用 FakeClock 控制频率窗口
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
