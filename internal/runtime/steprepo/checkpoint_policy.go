package steprepo

// CheckpointStrategy determines when StepRepository performs an
// intermediate flush, generalising spec §4.D's fixed auto_flush_size into
// a small policy type. Grounded on the checkpoint strategy enum of the
// system this runtime was distilled from.
type CheckpointStrategy string

const (
	// StrategyManual never auto-flushes; only an explicit Flush or the
	// scope guard's successful exit persists the buffer.
	StrategyManual CheckpointStrategy = "manual"
	// StrategyEveryN flushes once FlushContext.BufferSize reaches Threshold
	// (the default behaviour, matching spec §4.D's auto_flush_size).
	StrategyEveryN CheckpointStrategy = "every_step"
	// StrategyOnToolCall flushes immediately whenever the queued Step
	// belongs to a batch that included tool calls.
	StrategyOnToolCall CheckpointStrategy = "on_tool_call"
	// StrategyOnError flushes immediately whenever FlushContext.HasError.
	StrategyOnError CheckpointStrategy = "on_error"
	// StrategyCustom delegates the decision to a caller-supplied predicate.
	StrategyCustom CheckpointStrategy = "custom"
)

// FlushContext is the decision input passed to Policy.ShouldFlush after
// each Queue call.
type FlushContext struct {
	BufferSize   int
	HasToolCalls bool
	HasError     bool
}

// Policy decides, after each queued Step, whether StepRepository should
// flush immediately rather than waiting for the buffer threshold.
type Policy struct {
	Strategy  CheckpointStrategy
	Threshold int // used by StrategyEveryN; default applied by NewPolicy
	Predicate func(FlushContext) bool
}

// NewPolicy constructs the default policy: StrategyEveryN at threshold.
func NewPolicy(threshold int) Policy {
	if threshold <= 0 {
		threshold = 2
	}
	return Policy{Strategy: StrategyEveryN, Threshold: threshold}
}

// ShouldFlush evaluates the policy against the current flush context.
func (p Policy) ShouldFlush(fc FlushContext) bool {
	switch p.Strategy {
	case StrategyManual:
		return false
	case StrategyEveryN:
		return fc.BufferSize >= p.Threshold
	case StrategyOnToolCall:
		return fc.HasToolCalls
	case StrategyOnError:
		return fc.HasError
	case StrategyCustom:
		if p.Predicate != nil {
			return p.Predicate(fc)
		}
		return false
	default:
		return false
	}
}
