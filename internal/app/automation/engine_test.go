package automation

import (
	"context"
	"io"
	"log"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/riftpilot/internal/app/appstate"
	"github.com/coachpo/riftpilot/internal/app/catalog"
	"github.com/coachpo/riftpilot/internal/app/uibus"
	"github.com/coachpo/riftpilot/internal/domain/schema"
	"github.com/coachpo/riftpilot/internal/infra/lcu"
)

type call struct {
	name string
	args []any
}

type fakeGateway struct {
	mu        sync.Mutex
	calls     []call
	failures  map[string]int
	phase     schema.GameflowPhase
	skins     []lcu.Skin
	session   schema.ChampSelectSession
	summoners map[int64]lcu.Summoner
	loggedIn  bool
	onSearch  func()
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{failures: map[string]int{}, summoners: map[int64]lcu.Summoner{}, loggedIn: true}
}

func (f *fakeGateway) record(name string, args ...any) lcu.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: args})
	if f.failures[name] > 0 {
		f.failures[name]--
		return lcu.Result{Outcome: lcu.OutcomeStatus, Status: 500}
	}
	return lcu.Result{Outcome: lcu.OutcomeOK, Status: 204}
}

func (f *fakeGateway) named(name string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeGateway) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeGateway) AcceptReadyCheck(context.Context) lcu.Result {
	return f.record("accept")
}

func (f *fakeGateway) SetAvailability(_ context.Context, availability string) lcu.Result {
	return f.record("availability", availability)
}

func (f *fakeGateway) SetStatusMessage(_ context.Context, message string) lcu.Result {
	return f.record("status", message)
}

func (f *fakeGateway) CompleteAction(_ context.Context, actionID, championID int64) lcu.Result {
	return f.record("action", actionID, championID)
}

func (f *fakeGateway) SkinCarousel(context.Context) ([]lcu.Skin, error) {
	if res := f.record("skins"); !res.OK() {
		return nil, res.Error()
	}
	return f.skins, nil
}

func (f *fakeGateway) SelectSkin(_ context.Context, skinID int64) lcu.Result {
	return f.record("skin", skinID)
}

func (f *fakeGateway) GameflowPhase(context.Context) (schema.GameflowPhase, error) {
	if res := f.record("phase"); !res.OK() {
		return "", res.Error()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.phase, nil
}

func (f *fakeGateway) CreateLobby(_ context.Context, queueID int) lcu.Result {
	res := f.record("lobby", queueID)
	if res.OK() {
		f.mu.Lock()
		f.phase = schema.PhaseLobby
		f.mu.Unlock()
	}
	return res
}

func (f *fakeGateway) SetPositionPreferences(_ context.Context, first, second string) lcu.Result {
	return f.record("roles", first, second)
}

func (f *fakeGateway) StartSearch(context.Context) lcu.Result {
	if f.onSearch != nil {
		f.onSearch()
	}
	res := f.record("search")
	if res.OK() {
		f.mu.Lock()
		f.phase = schema.PhaseMatchmaking
		f.mu.Unlock()
	}
	return res
}

func (f *fakeGateway) ChampSelectSession(context.Context) (schema.ChampSelectSession, error) {
	if res := f.record("session"); !res.OK() {
		return schema.ChampSelectSession{}, res.Error()
	}
	return f.session, nil
}

func (f *fakeGateway) CurrentSummoner(context.Context) (lcu.Summoner, error) {
	f.record("me")
	if !f.loggedIn {
		return lcu.Summoner{}, lcu.Result{Outcome: lcu.OutcomeNoCredentials}.Error()
	}
	return lcu.Summoner{SummonerID: 1, GameName: "Me", TagLine: "EUW"}, nil
}

func (f *fakeGateway) SummonerByID(_ context.Context, summonerID int64) (lcu.Summoner, error) {
	f.record("summoner", summonerID)
	summoner, ok := f.summoners[summonerID]
	if !ok {
		return lcu.Summoner{}, lcu.Result{Outcome: lcu.OutcomeStatus, Status: 404}.Error()
	}
	return summoner, nil
}

func (f *fakeGateway) SetProfileBackground(_ context.Context, skinID int64) lcu.Result {
	return f.record("background", skinID)
}

type recordingUI struct {
	mu       sync.Mutex
	messages []uibus.Message
}

func (r *recordingUI) Publish(_ context.Context, typ uibus.MessageType, payload any) error {
	var raw json.RawMessage
	switch v := payload.(type) {
	case nil:
		raw = json.RawMessage("null")
	case json.RawMessage:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raw = encoded
	}
	r.mu.Lock()
	r.messages = append(r.messages, uibus.Message{Type: typ, Payload: raw})
	r.mu.Unlock()
	return nil
}

func (r *recordingUI) types() []uibus.MessageType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uibus.MessageType, 0, len(r.messages))
	for _, m := range r.messages {
		out = append(out, m.Type)
	}
	return out
}

func testCatalog() *catalog.Catalog {
	return catalog.New("14.1.1", []catalog.Champion{
		{ID: 103, Key: "Ahri", Name: "Ahri"},
		{ID: 266, Key: "Aatrox", Name: "Aatrox"},
	})
}

type harness struct {
	engine *Engine
	gw     *fakeGateway
	state  *appstate.State
	ui     *recordingUI
}

func newHarness(autoAccept bool) *harness {
	gw := newFakeGateway()
	state := appstate.New(autoAccept)
	ui := &recordingUI{}
	engine := New(Options{
		Gateway: gw,
		State:   state,
		Catalog: testCatalog(),
		UI:      ui,
		Logger:  log.New(io.Discard, "", 0),
		Intn:    func(n int) int { return n - 1 },
	})
	return &harness{engine: engine, gw: gw, state: state, ui: ui}
}

func event(t *testing.T, uri string, eventType schema.EventType, data any) schema.Event {
	t.Helper()
	var raw []byte
	if data != nil {
		encoded, err := json.Marshal(data)
		require.NoError(t, err)
		raw = encoded
	}
	return schema.Event{URI: uri, EventType: eventType, Data: raw}
}

func (h *harness) observe(t *testing.T, evts ...schema.Event) {
	t.Helper()
	for _, evt := range evts {
		require.NoError(t, h.engine.Observe(context.Background(), evt))
	}
}

func readyCheck(t *testing.T, state, response string) schema.Event {
	t.Helper()
	return event(t, schema.URIReadyCheck, schema.EventUpdate, schema.ReadyCheck{State: state, PlayerResponse: response})
}
