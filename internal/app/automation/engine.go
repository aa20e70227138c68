// Package automation reacts to dispatched control-plane events on behalf of the current account:
// ready-check accept, presence enforcement, champ-select mirroring, ban/pick, skin selection and
// queue progression.
package automation

import (
	"context"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coachpo/riftpilot/internal/app/appstate"
	"github.com/coachpo/riftpilot/internal/app/uibus"
	"github.com/coachpo/riftpilot/internal/domain/schema"
	"github.com/coachpo/riftpilot/internal/infra/lcu"
)

const defaultQueueInterval = 3 * time.Second

// Gateway is the slice of the control-plane client the engine drives.
type Gateway interface {
	AcceptReadyCheck(ctx context.Context) lcu.Result
	SetAvailability(ctx context.Context, availability string) lcu.Result
	SetStatusMessage(ctx context.Context, message string) lcu.Result
	CompleteAction(ctx context.Context, actionID, championID int64) lcu.Result
	SkinCarousel(ctx context.Context) ([]lcu.Skin, error)
	SelectSkin(ctx context.Context, skinID int64) lcu.Result
	GameflowPhase(ctx context.Context) (schema.GameflowPhase, error)
	CreateLobby(ctx context.Context, queueID int) lcu.Result
	SetPositionPreferences(ctx context.Context, first, second string) lcu.Result
	StartSearch(ctx context.Context) lcu.Result
	ChampSelectSession(ctx context.Context) (schema.ChampSelectSession, error)
	CurrentSummoner(ctx context.Context) (lcu.Summoner, error)
	SummonerByID(ctx context.Context, summonerID int64) (lcu.Summoner, error)
	SetProfileBackground(ctx context.Context, skinID int64) lcu.Result
}

// Resolver maps champion names to ids.
type Resolver interface {
	Resolve(name string) (int64, bool)
}

// Options wire the engine's collaborators.
type Options struct {
	Gateway       Gateway
	State         *appstate.State
	Catalog       Resolver
	UI            uibus.Publisher
	Logger        *log.Logger
	QueueInterval time.Duration
	// Intn picks the skin index; defaults to math/rand/v2.
	Intn func(n int) int
}

// Engine is a dispatcher observer plus the queue poller.
type Engine struct {
	gw       Gateway
	state    *appstate.State
	catalog  Resolver
	ui       uibus.Publisher
	logger   *log.Logger
	interval time.Duration
	intn     func(n int) int
	metrics  *engineMetrics

	readyCheckBusy atomic.Bool
	offlineBusy    atomic.Bool
	queueBusy      atomic.Bool

	readyCheckMu       sync.Mutex
	readyCheckAccepted bool

	champSelectMu sync.Mutex
	champSelect   champSelectMemory
}

// champSelectMemory is reset whenever a champ-select session ends or a new game id appears.
type champSelectMemory struct {
	gameID      int64
	submitted   map[int64]struct{}
	skinApplied bool
}

func newChampSelectMemory(gameID int64) champSelectMemory {
	return champSelectMemory{gameID: gameID, submitted: make(map[int64]struct{}), skinApplied: false}
}

// New builds an engine. Gateway and State are required.
func New(opts Options) *Engine {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.QueueInterval <= 0 {
		opts.QueueInterval = defaultQueueInterval
	}
	if opts.Intn == nil {
		opts.Intn = rand.IntN
	}
	if opts.State == nil {
		opts.State = appstate.New(false)
	}
	return &Engine{
		gw:                 opts.Gateway,
		state:              opts.State,
		catalog:            opts.Catalog,
		ui:                 opts.UI,
		logger:             opts.Logger,
		interval:           opts.QueueInterval,
		intn:               opts.Intn,
		metrics:            newEngineMetrics(),
		readyCheckBusy:     atomic.Bool{},
		offlineBusy:        atomic.Bool{},
		queueBusy:          atomic.Bool{},
		readyCheckMu:       sync.Mutex{},
		readyCheckAccepted: false,
		champSelectMu:      sync.Mutex{},
		champSelect:        newChampSelectMemory(0),
	}
}

// Observe applies the event rules in order. Rule failures are logged and never returned, so a
// failing rule cannot stop the ones after it.
func (e *Engine) Observe(ctx context.Context, evt schema.Event) error {
	payload, err := evt.Decode()
	if err != nil {
		e.logger.Printf("automation: %v", err)
		payload = schema.Opaque{URI: evt.URI, Data: evt.Data}
	}

	switch evt.URI {
	case schema.URIReadyCheck:
		if rc, ok := payload.(schema.ReadyCheck); ok {
			e.onReadyCheck(ctx, evt.EventType, rc)
		} else if evt.EventType == schema.EventDelete {
			e.resetReadyCheck()
		}
	case schema.URIChatMe:
		if presence, ok := payload.(schema.ChatPresence); ok && evt.EventType == schema.EventUpdate {
			e.onPresence(ctx, presence)
		}
	case schema.URIChampSelect:
		e.mirrorChampSelect(ctx, evt)
		if session, ok := payload.(schema.ChampSelectSession); ok && evt.EventType == schema.EventUpdate {
			e.onChampSelect(ctx, session)
		}
	}
	return nil
}

// Run polls queue progression until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Tick(ctx)
		}
	}
}

func (e *Engine) currentAccount() (schema.Account, bool) {
	return e.state.Current()
}

func (e *Engine) publish(ctx context.Context, typ uibus.MessageType, payload any) {
	if e.ui == nil {
		return
	}
	if err := e.ui.Publish(ctx, typ, payload); err != nil {
		e.logger.Printf("automation: publish %s: %v", typ, err)
	}
}
