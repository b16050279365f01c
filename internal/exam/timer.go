package exam

import (
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// TimerStatus answers the exam time query. RemainingSeconds is only
// meaningful when Active is true.
type TimerStatus struct {
	Active           bool
	RemainingSeconds int
}

// Timer computes the time left in whole seconds, floored at zero. A session
// whose timer never started is inactive, which is not the same as expired.
func Timer(s *model.ExamSession, now time.Time) TimerStatus {
	if s == nil || s.ExamStartTime == nil || s.ExamEndTime == nil {
		return TimerStatus{}
	}
	remaining := int(s.ExamEndTime.Sub(now) / time.Second)
	if remaining < 0 {
		remaining = 0
	}
	return TimerStatus{Active: true, RemainingSeconds: remaining}
}
