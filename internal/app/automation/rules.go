package automation

import (
	"context"
	"strings"

	"github.com/coachpo/riftpilot/internal/app/uibus"
	"github.com/coachpo/riftpilot/internal/domain/schema"
	"github.com/coachpo/riftpilot/internal/infra/lcu"
)

// Rule names used in logs and metrics.
const (
	ruleReadyCheck    = "ready_check"
	ruleAppearOffline = "appear_offline"
	ruleBan           = "auto_ban"
	rulePick          = "auto_pick"
	ruleSkin          = "auto_skin"
	ruleQueue         = "auto_queue"
)

// onReadyCheck accepts once per ready-check episode. An episode ends when the check leaves the
// in-progress state.
func (e *Engine) onReadyCheck(ctx context.Context, eventType schema.EventType, rc schema.ReadyCheck) {
	if rc.State != schema.ReadyCheckInProgress {
		e.resetReadyCheck()
		return
	}
	if eventType != schema.EventUpdate || rc.PlayerResponse != schema.ResponseNone {
		return
	}
	if !e.state.AutoAccept() {
		return
	}

	e.readyCheckMu.Lock()
	accepted := e.readyCheckAccepted
	e.readyCheckMu.Unlock()
	if accepted {
		return
	}
	if !e.readyCheckBusy.CompareAndSwap(false, true) {
		return
	}
	defer e.readyCheckBusy.Store(false)

	res := e.gw.AcceptReadyCheck(ctx)
	e.record(ctx, ruleReadyCheck, res)
	if !res.OK() {
		return
	}
	e.logger.Printf("automation: match found, accepted ready check")
	e.readyCheckMu.Lock()
	e.readyCheckAccepted = true
	e.readyCheckMu.Unlock()
}

func (e *Engine) resetReadyCheck() {
	e.readyCheckMu.Lock()
	e.readyCheckAccepted = false
	e.readyCheckMu.Unlock()
}

func (e *Engine) onPresence(ctx context.Context, presence schema.ChatPresence) {
	acc, ok := e.currentAccount()
	if !ok || !acc.AppearOffline {
		return
	}
	if strings.EqualFold(presence.Availability, schema.AvailabilityOffline) {
		return
	}
	if !e.offlineBusy.CompareAndSwap(false, true) {
		return
	}
	defer e.offlineBusy.Store(false)

	res := e.gw.SetAvailability(ctx, schema.AvailabilityOffline)
	e.record(ctx, ruleAppearOffline, res)
	if res.OK() {
		e.logger.Printf("automation: presence %q forced offline for %s", presence.Availability, acc.Username)
	}
}

// mirrorChampSelect forwards the session verbatim; Delete is a distinct end signal.
func (e *Engine) mirrorChampSelect(ctx context.Context, evt schema.Event) {
	switch evt.EventType {
	case schema.EventCreate, schema.EventUpdate:
		e.publish(ctx, uibus.TypeChampSelectUpdate, evt.Data)
	case schema.EventDelete:
		e.champSelectMu.Lock()
		e.champSelect = newChampSelectMemory(0)
		e.champSelectMu.Unlock()
		e.publish(ctx, uibus.TypeChampSelectEnd, nil)
	}
}

func (e *Engine) onChampSelect(ctx context.Context, session schema.ChampSelectSession) {
	acc, ok := e.currentAccount()
	if !ok {
		return
	}

	e.champSelectMu.Lock()
	defer e.champSelectMu.Unlock()
	if session.GameID != 0 && session.GameID != e.champSelect.gameID {
		e.champSelect = newChampSelectMemory(session.GameID)
	}

	e.completeAction(ctx, ruleBan, session, schema.ActionBan, acc.AutoBanChamp)
	e.completeAction(ctx, rulePick, session, schema.ActionPick, acc.AutoPickChamp)
	if acc.AutoSkinRandom {
		e.applySkin(ctx, session)
	}
}

// completeAction locks the configured champion into the local player's in-progress slot. Callers
// hold champSelectMu.
func (e *Engine) completeAction(ctx context.Context, rule string, session schema.ChampSelectSession, kind, champion string) {
	if strings.TrimSpace(champion) == "" || e.catalog == nil {
		return
	}
	action, ok := session.PendingAction(kind)
	if !ok {
		return
	}
	if _, done := e.champSelect.submitted[action.ID]; done {
		return
	}
	championID, ok := e.catalog.Resolve(champion)
	if !ok {
		e.logger.Printf("automation: %s: unknown champion %q", rule, champion)
		return
	}
	res := e.gw.CompleteAction(ctx, action.ID, championID)
	e.record(ctx, rule, res)
	if !res.OK() {
		return
	}
	e.champSelect.submitted[action.ID] = struct{}{}
	e.logger.Printf("automation: %s champion %d on action %d", kind, championID, action.ID)
}

// applySkin picks a random owned skin once the local pick is locked. Callers hold champSelectMu.
func (e *Engine) applySkin(ctx context.Context, session schema.ChampSelectSession) {
	if e.champSelect.skinApplied {
		return
	}
	if _, locked := session.CompletedPick(); !locked {
		return
	}
	skins, err := e.gw.SkinCarousel(ctx)
	if err != nil {
		e.metrics.recordRule(ctx, ruleSkin, "error")
		return
	}
	owned := make([]lcu.Skin, 0, len(skins))
	for _, skin := range skins {
		if skin.Ownership.Owned {
			owned = append(owned, skin)
		}
	}
	if len(owned) == 0 {
		return
	}
	choice := owned[e.intn(len(owned))]
	res := e.gw.SelectSkin(ctx, choice.ID)
	e.record(ctx, ruleSkin, res)
	if !res.OK() {
		return
	}
	e.champSelect.skinApplied = true
	e.logger.Printf("automation: selected skin %d (%s)", choice.ID, choice.Name)
}

func (e *Engine) record(ctx context.Context, rule string, res lcu.Result) {
	e.metrics.recordRule(ctx, rule, res.Outcome.String())
	if !res.OK() {
		e.logger.Printf("automation: %s: %v", rule, res.Error())
	}
}
