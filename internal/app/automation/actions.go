package automation

import (
	"context"
	"strings"

	"github.com/coachpo/riftpilot/errs"
	"github.com/coachpo/riftpilot/internal/infra/lcu"
)

// defaultSkinFactor turns a champion id into the id of its base skin.
const defaultSkinFactor = 1000

// AcceptMatch accepts the pending ready check on request.
func (e *Engine) AcceptMatch(ctx context.Context) error {
	return e.gw.AcceptReadyCheck(ctx).Error()
}

// SetStatusMessage updates the chat status message.
func (e *Engine) SetStatusMessage(ctx context.Context, message string) error {
	return e.gw.SetStatusMessage(ctx, message).Error()
}

// CurrentSummoner returns the logged-in summoner.
func (e *Engine) CurrentSummoner(ctx context.Context) (lcu.Summoner, error) {
	return e.gw.CurrentSummoner(ctx)
}

// LobbyMembers lists the champ-select team as gameName#tagLine. Members whose lookup fails are
// skipped.
func (e *Engine) LobbyMembers(ctx context.Context) ([]string, error) {
	session, err := e.gw.ChampSelectSession(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(session.MyTeam))
	for _, member := range session.MyTeam {
		if member.SummonerID <= 0 {
			continue
		}
		summoner, err := e.gw.SummonerByID(ctx, member.SummonerID)
		if err != nil {
			continue
		}
		if id := summoner.RiotID(); id != "" {
			names = append(names, id)
		}
	}
	return names, nil
}

// SetProfileBackground sets the profile background. A zero skinID selects the champion's base
// skin.
func (e *Engine) SetProfileBackground(ctx context.Context, championName string, skinID int64) error {
	if _, err := e.gw.CurrentSummoner(ctx); err != nil {
		return errs.New("automation/profile", errs.CodeUnavailable,
			errs.WithMessage("not logged in"), errs.WithCause(err))
	}
	if skinID <= 0 {
		name := strings.TrimSpace(championName)
		if name == "" {
			return errs.New("automation/profile", errs.CodeInvalid, errs.WithMessage("champion or skin id required"))
		}
		var championID int64
		ok := false
		if e.catalog != nil {
			championID, ok = e.catalog.Resolve(name)
		}
		if !ok {
			return errs.New("automation/profile", errs.CodeNotFound,
				errs.WithMessage("champion not found"), errs.WithField("champion", name))
		}
		skinID = championID * defaultSkinFactor
	}
	return e.gw.SetProfileBackground(ctx, skinID).Error()
}
