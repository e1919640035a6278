package replay

import (
	"fmt"
)

type ReplayError struct {
	StepIndex int32          `json:"step_index"`
	Reason    string         `json:"reason"`
	Message   string         `json:"message"`
	Expected  *ExpectedState `json:"expected,omitempty"`
}

// ExpectedState tells the script author what the engine was waiting for.
type ExpectedState struct {
	Phase     string  `json:"phase,omitempty"`
	Day       int     `json:"day,omitempty"`
	Seats     []uint8 `json:"seats,omitempty"` // actionable seats at night, eligible voters by day
	Speaker   uint8   `json:"speaker,omitempty"`
	ErrorKind string  `json:"error_kind,omitempty"`
}

func (e *ReplayError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("replay error(step=%d reason=%s): %s", e.StepIndex, e.Reason, e.Message)
}
