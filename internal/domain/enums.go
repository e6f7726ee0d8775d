// Package domain contains the core data model shared by the orchestration,
// provider, runtime and scheduling layers. Domain types are pure: they carry
// no infrastructure dependencies.
package domain

// ProviderID identifies a research provider backend.
type ProviderID string

const (
	ProviderOpenAI    ProviderID = "openai"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderGemini    ProviderID = "gemini"
	ProviderCustom    ProviderID = "custom"
)

// ExecutionMode is the channel a request is executed through.
type ExecutionMode string

const (
	// ModeBatch is the asynchronous submit/poll/download execution style.
	ModeBatch ExecutionMode = "batch"
	// ModeCLI is the synchronous local-process execution style.
	ModeCLI ExecutionMode = "cli"
	// ModeHybrid lets the provider pick whichever channel it supports.
	ModeHybrid ExecutionMode = "hybrid"
)

// RequestType is the high-level intent of a request.
type RequestType string

const (
	RequestResearch  RequestType = "research"
	RequestExecution RequestType = "execution"
	RequestDigest    RequestType = "digest"
)

// RequestPriority orders requests for scheduling.
type RequestPriority string

const (
	PriorityLow      RequestPriority = "low"
	PriorityNormal   RequestPriority = "normal"
	PriorityHigh     RequestPriority = "high"
	PriorityCritical RequestPriority = "critical"
)

// StrategyStatus is the lifecycle status of a strategy definition.
type StrategyStatus string

const (
	StrategyActive   StrategyStatus = "active"
	StrategyInactive StrategyStatus = "inactive"
	StrategyDraft    StrategyStatus = "draft"
)

// LifecycleState is the state machine shared by requests and execution tasks.
type LifecycleState string

const (
	StatePending         LifecycleState = "pending"
	StateScheduled       LifecycleState = "scheduled"
	StateRunning         LifecycleState = "running"
	StateAwaitingResults LifecycleState = "awaiting_results"
	StateSucceeded       LifecycleState = "succeeded"
	StateFailed          LifecycleState = "failed"
	StateCancelled       LifecycleState = "cancelled"
	StateTimedOut        LifecycleState = "timed_out"
)

// legalTransitions maps each state to the states it may move to.
// Terminal states have no outgoing edges. AwaitingResults is batch-only
// (a submitted job whose results have not been downloaded yet).
var legalTransitions = map[LifecycleState][]LifecycleState{
	StatePending:         {StateScheduled, StateRunning, StateCancelled},
	StateScheduled:       {StateRunning, StateCancelled},
	StateRunning:         {StateAwaitingResults, StateSucceeded, StateFailed, StateCancelled, StateTimedOut},
	StateAwaitingResults: {StateSucceeded, StateFailed, StateCancelled, StateTimedOut},
}

// IsTerminal reports whether no transitions leave this state.
func (s LifecycleState) IsTerminal() bool {
	switch s {
	case StateSucceeded, StateFailed, StateCancelled, StateTimedOut:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is a legal transition.
func (s LifecycleState) CanTransitionTo(next LifecycleState) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Valid reports whether the state is one of the known lifecycle states.
func (s LifecycleState) Valid() bool {
	switch s {
	case StatePending, StateScheduled, StateRunning, StateAwaitingResults,
		StateSucceeded, StateFailed, StateCancelled, StateTimedOut:
		return true
	}
	return false
}
