package progc

import "fmt"

// Priority orders compile jobs. Smaller values take precedence: a queued job
// only starts when no job of a smaller priority value is waiting.
type Priority uint8

// Default priority levels.
const (
	PriorityHigh Priority = 0
	PriorityLow  Priority = 1
)

// MaxPriorityLevels is the largest value accepted by WithPriorityLevels.
const MaxPriorityLevels = 16

// String returns "high", "low" or "priority(N)".
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", uint8(p))
	}
}
