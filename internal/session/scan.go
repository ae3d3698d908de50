package session

import "github.com/betbot/tradedash/internal/protocol"

// ScanToggle is the enabled/disabled state of the start-scan action.
type ScanToggle struct {
	disabled bool
}

// Enabled reports whether a scan may be started.
func (t *ScanToggle) Enabled() bool {
	return !t.disabled
}

// Begin disables the toggle. It returns false if it was already disabled.
func (t *ScanToggle) Begin() bool {
	if t.disabled {
		return false
	}
	t.disabled = true
	return true
}

// Refused re-enables the toggle after start_scan could not be sent.
func (t *ScanToggle) Refused() {
	t.disabled = false
}

// OnStatus re-enables the toggle for every state except in-progress. A
// missing state counts as not in progress.
func (t *ScanToggle) OnStatus(s protocol.ScanStatus) {
	if !s.State.InProgress() {
		t.disabled = false
	}
}

// OnDisconnect re-enables the toggle; no status will arrive for the lost
// scan.
func (t *ScanToggle) OnDisconnect() {
	t.disabled = false
}
