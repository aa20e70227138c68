package automation

import (
	"context"

	"github.com/coachpo/riftpilot/internal/domain/schema"
)

// Tick advances queue progression one step for an account with auto-queue enabled: no lobby
// creates one, a lobby sets roles and starts the search. A successful search clears the flag.
func (e *Engine) Tick(ctx context.Context) {
	acc, ok := e.currentAccount()
	if !ok || !acc.AutoQueue {
		return
	}
	if !e.queueBusy.CompareAndSwap(false, true) {
		return
	}
	defer e.queueBusy.Store(false)

	phase, err := e.gw.GameflowPhase(ctx)
	if err != nil {
		e.metrics.recordRule(ctx, ruleQueue, "error")
		return
	}

	switch phase {
	case schema.PhaseNone:
		queueID := acc.QueueType.QueueID()
		res := e.gw.CreateLobby(ctx, queueID)
		e.record(ctx, ruleQueue, res)
		if res.OK() {
			e.logger.Printf("automation: created lobby for queue %d", queueID)
		}
	case schema.PhaseLobby:
		if acc.HasRoles() {
			e.record(ctx, ruleQueue, e.gw.SetPositionPreferences(ctx, acc.PrimaryRole, acc.SecondaryRole))
		}
		res := e.gw.StartSearch(ctx)
		e.record(ctx, ruleQueue, res)
		if !res.OK() {
			return
		}
		// The account may have been relaunched while the search call was in flight.
		if e.state.ClearAutoQueue(acc.Username) {
			e.logger.Printf("automation: search started for %s, auto-queue cleared", acc.Username)
		}
	}
}
