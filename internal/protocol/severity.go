package protocol

import "strings"

// Severity is the tone of a notification or action response.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// ParseSeverity maps anything outside success/error/info to info.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeveritySuccess:
		return SeveritySuccess
	case SeverityError:
		return SeverityError
	default:
		return SeverityInfo
	}
}

// ScanState is the explicit scan lifecycle reported by scan_status.
type ScanState string

const (
	ScanIdle       ScanState = "idle"
	ScanStarting   ScanState = "starting"
	ScanInProgress ScanState = "in-progress"
	ScanCompleted  ScanState = "completed"
	ScanFailed     ScanState = "failed"
)

// ParseScanState normalises spelling variants. Unknown values are kept
// lower-cased; an empty value stays empty.
func ParseScanState(s string) ScanState {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "in-progress", "in_progress", "inprogress", "running", "scanning":
		return ScanInProgress
	case "started", "start":
		return ScanStarting
	case "done", "complete", "finished":
		return ScanCompleted
	case "error", "failure":
		return ScanFailed
	}
	return ScanState(v)
}

// InProgress is the only state that keeps the scan toggle disabled.
func (s ScanState) InProgress() bool {
	return s == ScanInProgress
}

// Side of an open position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// ParseSide accepts long/short and the exchange's buy/sell.
func ParseSide(s string) Side {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "long", "buy":
		return SideLong
	case "short", "sell":
		return SideShort
	}
	return Side(v)
}

// Recommendation is the normalised action of a reanalysis verdict.
type Recommendation string

const (
	RecommendClose Recommendation = "close"
	RecommendHold  Recommendation = "hold"
)

// ParseRecommendation maps KAPAT/close to close and TUT/hold to hold. Other
// values are kept lower-cased and behave like hold.
func ParseRecommendation(s string) Recommendation {
	v := strings.ToLower(strings.TrimSpace(s))
	switch v {
	case "close", "kapat":
		return RecommendClose
	case "hold", "tut":
		return RecommendHold
	}
	return Recommendation(v)
}

// IsClose reports whether the verdict offers a close action.
func (r Recommendation) IsClose() bool {
	return r == RecommendClose
}
