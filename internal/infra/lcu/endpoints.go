package lcu

import (
	"context"
	"net/http"
	"strconv"

	"github.com/coachpo/riftpilot/internal/domain/schema"
)

// Control-plane REST paths.
const (
	PathGameflowPhase       = "/lol-gameflow/v1/gameflow-phase"
	PathLobby               = "/lol-lobby/v2/lobby"
	PathPositionPreferences = "/lol-lobby/v2/lobby/members/localMember/position-preferences"
	PathMatchmakingSearch   = "/lol-lobby/v2/lobby/matchmaking/search"
	PathReadyCheckAccept    = "/lol-matchmaking/v1/ready-check/accept"
	PathChatMe              = "/lol-chat/v1/me"
	PathChampSelectSession  = "/lol-champ-select/v1/session"
	PathChampSelectActions  = "/lol-champ-select/v1/session/actions/"
	PathSkinCarousel        = "/lol-champ-select/v1/skin-carousel-skins"
	PathMySelection         = "/lol-champ-select/v1/session/my-selection"
	PathCurrentSummoner     = "/lol-summoner/v1/current-summoner"
	PathSummoners           = "/lol-summoner/v1/summoners/"
	PathSummonerProfile     = "/lol-summoner/v1/current-summoner/summoner-profile"
)

// ProfileBackgroundKey is the summoner-profile key holding the background skin.
const ProfileBackgroundKey = "backgroundSkinId"

// Skin is one entry of the champ-select skin carousel.
type Skin struct {
	ID        int64         `json:"id"`
	Name      string        `json:"name"`
	Ownership SkinOwnership `json:"ownership"`
}

// SkinOwnership reports whether the local player owns a skin.
type SkinOwnership struct {
	Owned bool `json:"owned"`
}

// Summoner is the subset of a summoner record the core reads.
type Summoner struct {
	SummonerID    int64  `json:"summonerId"`
	PUUID         string `json:"puuid"`
	GameName      string `json:"gameName"`
	TagLine       string `json:"tagLine"`
	DisplayName   string `json:"displayName"`
	SummonerLevel int64  `json:"summonerLevel"`
	ProfileIconID int64  `json:"profileIconId"`
}

// RiotID formats the summoner as gameName#tagLine.
func (s Summoner) RiotID() string {
	if s.GameName == "" {
		return ""
	}
	return s.GameName + "#" + s.TagLine
}

type lobbyRequest struct {
	QueueID int `json:"queueId"`
}

type positionPreferences struct {
	FirstPreference  string `json:"firstPreference"`
	SecondPreference string `json:"secondPreference"`
}

type availabilityRequest struct {
	Availability string `json:"availability"`
}

type statusMessageRequest struct {
	StatusMessage string `json:"statusMessage"`
}

type actionPatch struct {
	ChampionID int64 `json:"championId"`
	Completed  bool  `json:"completed"`
}

type selectionPatch struct {
	SelectedSkinID int64 `json:"selectedSkinId"`
}

type profileUpdate struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

// GameflowPhase reads the coarse client phase.
func (g *Gateway) GameflowPhase(ctx context.Context) (schema.GameflowPhase, error) {
	var phase string
	if err := g.Do(ctx, http.MethodGet, PathGameflowPhase, nil).Decode(&phase); err != nil {
		return "", err
	}
	return schema.GameflowPhase(phase), nil
}

// CreateLobby opens a lobby for the queue id.
func (g *Gateway) CreateLobby(ctx context.Context, queueID int) Result {
	return g.Do(ctx, http.MethodPost, PathLobby, lobbyRequest{QueueID: queueID})
}

// SetPositionPreferences sets the local member's primary and secondary roles.
func (g *Gateway) SetPositionPreferences(ctx context.Context, first, second string) Result {
	return g.Do(ctx, http.MethodPut, PathPositionPreferences, positionPreferences{FirstPreference: first, SecondPreference: second})
}

// StartSearch enters matchmaking from the current lobby.
func (g *Gateway) StartSearch(ctx context.Context) Result {
	return g.Do(ctx, http.MethodPost, PathMatchmakingSearch, nil)
}

// AcceptReadyCheck accepts the pending match.
func (g *Gateway) AcceptReadyCheck(ctx context.Context) Result {
	return g.Do(ctx, http.MethodPost, PathReadyCheckAccept, nil)
}

// SetAvailability updates the chat presence availability.
func (g *Gateway) SetAvailability(ctx context.Context, availability string) Result {
	return g.Do(ctx, http.MethodPut, PathChatMe, availabilityRequest{Availability: availability})
}

// SetStatusMessage updates the chat status message.
func (g *Gateway) SetStatusMessage(ctx context.Context, message string) Result {
	return g.Do(ctx, http.MethodPut, PathChatMe, statusMessageRequest{StatusMessage: message})
}

// ChampSelectSession fetches the current champ-select snapshot.
func (g *Gateway) ChampSelectSession(ctx context.Context) (schema.ChampSelectSession, error) {
	var session schema.ChampSelectSession
	if err := g.Do(ctx, http.MethodGet, PathChampSelectSession, nil).Decode(&session); err != nil {
		return schema.ChampSelectSession{}, err
	}
	return session, nil
}

// CompleteAction locks the champion into a pick or ban slot.
func (g *Gateway) CompleteAction(ctx context.Context, actionID, championID int64) Result {
	path := PathChampSelectActions + strconv.FormatInt(actionID, 10)
	return g.Do(ctx, http.MethodPatch, path, actionPatch{ChampionID: championID, Completed: true})
}

// SkinCarousel lists the skins offered for the locked champion.
func (g *Gateway) SkinCarousel(ctx context.Context) ([]Skin, error) {
	var skins []Skin
	if err := g.Do(ctx, http.MethodGet, PathSkinCarousel, nil).Decode(&skins); err != nil {
		return nil, err
	}
	return skins, nil
}

// SelectSkin applies a skin to the local selection.
func (g *Gateway) SelectSkin(ctx context.Context, skinID int64) Result {
	return g.Do(ctx, http.MethodPatch, PathMySelection, selectionPatch{SelectedSkinID: skinID})
}

// CurrentSummoner fetches the logged-in summoner.
func (g *Gateway) CurrentSummoner(ctx context.Context) (Summoner, error) {
	var summoner Summoner
	if err := g.Do(ctx, http.MethodGet, PathCurrentSummoner, nil).Decode(&summoner); err != nil {
		return Summoner{}, err
	}
	return summoner, nil
}

// SummonerByID looks up another summoner.
func (g *Gateway) SummonerByID(ctx context.Context, summonerID int64) (Summoner, error) {
	var summoner Summoner
	if err := g.Do(ctx, http.MethodGet, PathSummoners+strconv.FormatInt(summonerID, 10), nil).Decode(&summoner); err != nil {
		return Summoner{}, err
	}
	return summoner, nil
}

// SetProfileBackground sets the profile background to a skin id.
func (g *Gateway) SetProfileBackground(ctx context.Context, skinID int64) Result {
	return g.Do(ctx, http.MethodPost, PathSummonerProfile, profileUpdate{Key: ProfileBackgroundKey, Value: skinID})
}
