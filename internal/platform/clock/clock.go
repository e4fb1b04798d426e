package clock

import "time"

// Clock abstracts time so trickle, debounce, and polling logic stay
// deterministic in tests.
type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now().UTC()
}
