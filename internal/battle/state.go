package battle

import (
	"fmt"

	"github.com/captbunzo/rotom-bot-sub001/internal/storage"
)

// Component and action names carried in battle card button tokens.
const (
	ComponentName       = "battle"
	ActionJoin          = "join"
	ActionLeave         = "leave"
	ActionStart         = "start"
	ActionWon           = "won"
	ActionFailed        = "failed"
	ActionNotReceived   = "notreceived"
	ActionCancel        = "cancel"
	ComponentBossSelect = "bossselect"
)

// validTransitions is the battle lifecycle: Planning -> Started ->
// {Completed, Failed, Cancelled}, plus Planning -> Cancelled. Terminal
// states allow nothing.
var validTransitions = map[storage.BattleStatus][]storage.BattleStatus{
	storage.BattleStatusPlanning: {storage.BattleStatusStarted, storage.BattleStatusCancelled},
	storage.BattleStatusStarted:  {storage.BattleStatusCompleted, storage.BattleStatusFailed, storage.BattleStatusCancelled},
}

// CanTransition reports whether the battle status machine permits from -> to.
func CanTransition(from, to storage.BattleStatus) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a battle status permits no further transitions.
func IsTerminal(status storage.BattleStatus) bool {
	return len(validTransitions[status]) == 0
}

// InvalidTransitionError rejects an action the state machine or the actor
// rules do not permit. Handlers turn it into a single private reply; it is a
// user-facing rejection, not a crash.
type InvalidTransitionError struct {
	Action string
	Status storage.BattleStatus
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("action %q is not permitted while the battle is %s", e.Action, e.Status)
}

// errAlreadyResolved is the uniform rejection for any action on a terminal
// battle.
func errAlreadyResolved(action string, status storage.BattleStatus) *InvalidTransitionError {
	return &InvalidTransitionError{
		Action: action,
		Status: status,
		Reason: "This battle is already resolved.",
	}
}
