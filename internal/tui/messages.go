package tui

import "time"

// tickMsg is sent on every refresh tick
type tickMsg time.Time

// taskDoneMsg is sent when the observed task returns
type taskDoneMsg struct {
	ok  bool
	err error
}
