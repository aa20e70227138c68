package schema

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/riftpilot/errs"
)

func TestSubscribeFrame(t *testing.T) {
	require.JSONEq(t, `[5,"OnJsonApiEvent"]`, string(SubscribeFrame()))
}

func TestParseEventFrameRoundTrip(t *testing.T) {
	raw := []byte(`[8,"OnJsonApiEvent",{"uri":"/lol-matchmaking/v1/ready-check","eventType":"Update","data":{"state":"InProgress","playerResponse":"None"}}]`)

	evt, ok := ParseEventFrame(raw)
	require.True(t, ok)
	require.Equal(t, URIReadyCheck, evt.URI)
	require.Equal(t, EventUpdate, evt.EventType)

	payload, err := evt.Decode()
	require.NoError(t, err)
	rc, ok := payload.(ReadyCheck)
	require.True(t, ok)
	require.Equal(t, ReadyCheckInProgress, rc.State)
	require.Equal(t, ResponseNone, rc.PlayerResponse)
}

func TestParseEventFrameRejectsOtherShapes(t *testing.T) {
	frames := []string{
		``,
		`not json`,
		`{}`,
		`[]`,
		`[8,"OnJsonApiEvent"]`,
		`[5,"OnJsonApiEvent",{}]`,
		`[8,"OnSomethingElse",{"uri":"/x","eventType":"Update","data":null}]`,
		`[8,"OnJsonApiEvent",{"uri":"","eventType":"Update"}]`,
		`[8,"OnJsonApiEvent",{"uri":"/x"},"extra"]`,
		`["8","OnJsonApiEvent",{"uri":"/x"}]`,
	}
	for _, frame := range frames {
		_, ok := ParseEventFrame([]byte(frame))
		require.False(t, ok, frame)
	}
}

func TestEncodeEventFrameParses(t *testing.T) {
	raw, err := EncodeEventFrame(Event{URI: URIChatMe, EventType: EventUpdate, Data: json.RawMessage(`{"availability":"chat"}`)})
	require.NoError(t, err)

	evt, ok := ParseEventFrame(raw)
	require.True(t, ok)
	payload, err := evt.Decode()
	require.NoError(t, err)
	require.Equal(t, ChatPresence{Availability: "chat"}, payload)
}

func TestDecodeVariants(t *testing.T) {
	phase, err := Event{URI: URIGameflowPhase, EventType: EventUpdate, Data: json.RawMessage(`"Lobby"`)}.Decode()
	require.NoError(t, err)
	require.Equal(t, PhaseLobby, phase)

	opaque, err := Event{URI: "/lol-lobby/v2/lobby", EventType: EventUpdate, Data: json.RawMessage(`{"a":1}`)}.Decode()
	require.NoError(t, err)
	require.IsType(t, Opaque{}, opaque)

	deleted, err := Event{URI: URIChampSelect, EventType: EventDelete}.Decode()
	require.NoError(t, err)
	require.IsType(t, Opaque{}, deleted)

	_, err = Event{URI: URIReadyCheck, EventType: EventUpdate, Data: json.RawMessage(`[1,2]`)}.Decode()
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.CodeDecode))
}

func TestChampSelectActionLookup(t *testing.T) {
	session := ChampSelectSession{
		LocalPlayerCellID: 2,
		Actions: [][]Action{
			{
				{ID: 1, ActorCellID: 1, Type: ActionBan, IsInProgress: true},
				{ID: 2, ActorCellID: 2, Type: ActionBan, IsInProgress: true},
			},
			{
				{ID: 7, ActorCellID: 2, Type: ActionPick, IsInProgress: false},
			},
		},
	}

	ban, ok := session.PendingAction(ActionBan)
	require.True(t, ok)
	require.Equal(t, int64(2), ban.ID)

	_, ok = session.PendingAction(ActionPick)
	require.False(t, ok, "pick not yet in progress")

	_, ok = session.CompletedPick()
	require.False(t, ok)

	session.Actions[1][0].Completed = true
	pick, ok := session.CompletedPick()
	require.True(t, ok)
	require.Equal(t, int64(7), pick.ID)
}

func TestQueueIDs(t *testing.T) {
	require.Equal(t, 420, QueueRankedSolo.QueueID())
	require.Equal(t, 420, QueueType(" ranked_solo ").QueueID())
	require.Equal(t, 440, QueueRankedFlex.QueueID())
	require.Equal(t, 450, QueueARAM.QueueID())
	require.Equal(t, 440, QueueType("CLASH").QueueID())
	require.Equal(t, QueueRankedSolo, NormalizeQueueType(""))
}
