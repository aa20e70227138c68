package schema

// Action types inside a champ-select session.
const (
	ActionPick = "pick"
	ActionBan  = "ban"
)

// Action is one pick or ban slot.
type Action struct {
	ID           int64  `json:"id"`
	ActorCellID  int64  `json:"actorCellId"`
	ChampionID   int64  `json:"championId"`
	Type         string `json:"type"`
	Completed    bool   `json:"completed"`
	IsInProgress bool   `json:"isInProgress"`
}

// TeamMember is one seat on the local team.
type TeamMember struct {
	CellID           int64  `json:"cellId"`
	SummonerID       int64  `json:"summonerId"`
	ChampionID       int64  `json:"championId"`
	AssignedPosition string `json:"assignedPosition"`
	SelectedSkinID   int64  `json:"selectedSkinId"`
}

// ChampSelectSession is the champ-select snapshot pushed by the client.
type ChampSelectSession struct {
	GameID            int64        `json:"gameId"`
	LocalPlayerCellID int64        `json:"localPlayerCellId"`
	Actions           [][]Action   `json:"actions"`
	MyTeam            []TeamMember `json:"myTeam"`
}

func (ChampSelectSession) uri() string { return URIChampSelect }

// PendingAction returns the local player's actionable slot of the given type: not completed and
// currently in progress.
func (s ChampSelectSession) PendingAction(kind string) (Action, bool) {
	for _, phase := range s.Actions {
		for _, action := range phase {
			if action.ActorCellID == s.LocalPlayerCellID && action.Type == kind && !action.Completed && action.IsInProgress {
				return action, true
			}
		}
	}
	return Action{}, false
}

// CompletedPick returns the local player's locked-in pick.
func (s ChampSelectSession) CompletedPick() (Action, bool) {
	for _, phase := range s.Actions {
		for _, action := range phase {
			if action.ActorCellID == s.LocalPlayerCellID && action.Type == ActionPick && action.Completed {
				return action, true
			}
		}
	}
	return Action{}, false
}
