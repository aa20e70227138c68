// Package schema defines the control-plane event envelope and the payload types the core inspects.
package schema

import (
	"strings"

	json "github.com/goccy/go-json"

	"github.com/coachpo/riftpilot/errs"
)

// Wire opcodes and the single event name of the subscribe-all protocol.
const (
	OpcodeSubscribe = 5
	OpcodeEvent     = 8
	JSONAPIEvent    = "OnJsonApiEvent"
)

// Control-plane URIs whose payloads the core decodes.
const (
	URIReadyCheck    = "/lol-matchmaking/v1/ready-check"
	URIChatMe        = "/lol-chat/v1/me"
	URIChampSelect   = "/lol-champ-select/v1/session"
	URIGameflowPhase = "/lol-gameflow/v1/gameflow-phase"
)

// EventType classifies a pushed change.
type EventType string

const (
	// EventCreate signals a resource came into existence.
	EventCreate EventType = "Create"
	// EventUpdate signals a resource changed.
	EventUpdate EventType = "Update"
	// EventDelete signals a resource was removed.
	EventDelete EventType = "Delete"
)

// Valid reports whether the event type is one of the three known kinds.
func (t EventType) Valid() bool {
	switch t {
	case EventCreate, EventUpdate, EventDelete:
		return true
	default:
		return false
	}
}

// Event is one pushed control-plane change.
type Event struct {
	URI       string          `json:"uri"`
	EventType EventType       `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

// SubscribeFrame returns the encoded subscribe-all control frame.
func SubscribeFrame() []byte {
	frame, _ := json.Marshal([]any{OpcodeSubscribe, JSONAPIEvent})
	return frame
}

// EncodeEventFrame wraps an event in the pushed-event envelope.
func EncodeEventFrame(evt Event) ([]byte, error) {
	if len(evt.Data) == 0 {
		evt.Data = json.RawMessage("null")
	}
	return json.Marshal([]any{OpcodeEvent, JSONAPIEvent, evt})
}

// ParseEventFrame extracts an Event from a raw frame. It returns false for any frame that is not
// a three-element event envelope; such frames are expected traffic, not errors.
func ParseEventFrame(raw []byte) (Event, bool) {
	var parts []json.RawMessage
	if err := json.Unmarshal(raw, &parts); err != nil || len(parts) != 3 {
		return Event{}, false
	}
	var opcode int
	if err := json.Unmarshal(parts[0], &opcode); err != nil || opcode != OpcodeEvent {
		return Event{}, false
	}
	var name string
	if err := json.Unmarshal(parts[1], &name); err != nil || name != JSONAPIEvent {
		return Event{}, false
	}
	var evt Event
	if err := json.Unmarshal(parts[2], &evt); err != nil {
		return Event{}, false
	}
	if strings.TrimSpace(evt.URI) == "" {
		return Event{}, false
	}
	return evt, true
}

// Payload is the decoded body of an Event, keyed by URI.
type Payload interface {
	uri() string
}

// ReadyCheck is the match-found confirmation state.
type ReadyCheck struct {
	State          string  `json:"state"`
	PlayerResponse string  `json:"playerResponse"`
	Timer          float64 `json:"timer"`
}

func (ReadyCheck) uri() string { return URIReadyCheck }

// Ready-check states and responses the rules compare against.
const (
	ReadyCheckInProgress = "InProgress"
	ResponseNone         = "None"
	ResponseAccepted     = "Accepted"
)

// ChatPresence is the local player's chat presence.
type ChatPresence struct {
	Availability  string `json:"availability"`
	StatusMessage string `json:"statusMessage"`
	GameName      string `json:"gameName"`
	GameTag       string `json:"gameTag"`
}

func (ChatPresence) uri() string { return URIChatMe }

// AvailabilityOffline is the presence value that hides the player.
const AvailabilityOffline = "offline"

// GameflowPhase is the coarse client state label.
type GameflowPhase string

func (GameflowPhase) uri() string { return URIGameflowPhase }

// Gameflow phases used by queue progression.
const (
	PhaseNone        GameflowPhase = "None"
	PhaseLobby       GameflowPhase = "Lobby"
	PhaseMatchmaking GameflowPhase = "Matchmaking"
	PhaseReadyCheck  GameflowPhase = "ReadyCheck"
	PhaseChampSelect GameflowPhase = "ChampSelect"
	PhaseInProgress  GameflowPhase = "InProgress"
)

// Opaque carries payloads the core only forwards.
type Opaque struct {
	URI  string
	Data json.RawMessage
}

func (o Opaque) uri() string { return o.URI }

// Decode returns the typed payload for the event's URI. Unknown URIs and Delete events with
// empty bodies decode to Opaque.
func (e Event) Decode() (Payload, error) {
	if e.EventType == EventDelete || isNull(e.Data) {
		return Opaque{URI: e.URI, Data: e.Data}, nil
	}
	var (
		payload Payload
		err     error
	)
	switch e.URI {
	case URIReadyCheck:
		var v ReadyCheck
		err = json.Unmarshal(e.Data, &v)
		payload = v
	case URIChatMe:
		var v ChatPresence
		err = json.Unmarshal(e.Data, &v)
		payload = v
	case URIChampSelect:
		var v ChampSelectSession
		err = json.Unmarshal(e.Data, &v)
		payload = v
	case URIGameflowPhase:
		var v string
		err = json.Unmarshal(e.Data, &v)
		payload = GameflowPhase(v)
	default:
		return Opaque{URI: e.URI, Data: e.Data}, nil
	}
	if err != nil {
		return nil, errs.New("schema/decode", errs.CodeDecode,
			errs.WithField("uri", e.URI), errs.WithCause(err))
	}
	return payload, nil
}

func isNull(data json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(data))
	return trimmed == "" || trimmed == "null"
}
