package queue

// Trigger records what asked for a finalization. Losing the durable claim is
// expected for every trigger but the first to arrive.
type Trigger string

const (
	TriggerTurn       Trigger = "turn"       // completion detected during a turn
	TriggerManual     Trigger = "manual"     // explicit finalize call
	TriggerInactivity Trigger = "inactivity" // sweep found a stale heartbeat
)

// FinalizeTask is the unit handed from the HTTP path to the worker. The
// stream is a handoff, not a ledger: a lost task is recovered by the
// inactivity sweep, and the claims table keeps duplicates harmless.
type FinalizeTask struct {
	ResponseID int64
	Trigger    Trigger
	TraceID    string
	Attempt    int
}
