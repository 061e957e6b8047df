package engine

// ExecutionResult is the outcome of one decision's execution, returned to
// the caller for logging and notification.
type ExecutionResult struct {
	Success        bool
	OrderID        string
	ExecutedPrice  float64
	ExecutedAmount float64
	Error          string // guard rejection or gateway fault, human readable
}

func failure(reason string) *ExecutionResult {
	return &ExecutionResult{Error: reason}
}
