package rates

// Window is a fixed-window counter keyed on simulation ticks.
type Window struct {
	Start uint64
	Count int
}

// Allow counts one attempt at nowTick. A zero window or max disables the limit.
func (w *Window) Allow(nowTick uint64, window uint64, max int) bool {
	if window == 0 || max <= 0 {
		return true
	}
	if nowTick-w.Start >= window {
		w.Start = nowTick
		w.Count = 0
	}
	w.Count++
	return w.Count <= max
}
