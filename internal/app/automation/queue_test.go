package automation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/riftpilot/internal/domain/schema"
)

func TestQueueProgressionClearsFlagAfterSearch(t *testing.T) {
	h := newHarness(false)
	h.gw.phase = schema.PhaseNone
	h.state.SetCurrent(schema.Account{
		Username:      "main",
		AutoQueue:     true,
		QueueType:     schema.QueueRankedSolo,
		PrimaryRole:   "MIDDLE",
		SecondaryRole: "TOP",
	})
	ctx := context.Background()

	h.engine.Tick(ctx)
	lobby := h.gw.named("lobby")
	require.Len(t, lobby, 1)
	require.Equal(t, 420, lobby[0].args[0])

	h.engine.Tick(ctx)
	require.Equal(t, []any{"MIDDLE", "TOP"}, h.gw.named("roles")[0].args)
	require.Len(t, h.gw.named("search"), 1)

	acc, ok := h.state.Current()
	require.True(t, ok)
	require.False(t, acc.AutoQueue)

	before := h.gw.total()
	h.engine.Tick(ctx)
	h.engine.Tick(ctx)
	require.Equal(t, before, h.gw.total(), "no calls once the flag is cleared")
}

func TestQueueSkipsRolesWhenIncomplete(t *testing.T) {
	h := newHarness(false)
	h.gw.phase = schema.PhaseLobby
	h.state.SetCurrent(schema.Account{Username: "main", AutoQueue: true, PrimaryRole: "JUNGLE"})

	h.engine.Tick(context.Background())
	require.Empty(t, h.gw.named("roles"))
	require.Len(t, h.gw.named("search"), 1)
}

func TestQueueKeepsFlagWhenSearchFails(t *testing.T) {
	h := newHarness(false)
	h.gw.phase = schema.PhaseLobby
	h.gw.failures["search"] = 1
	h.state.SetCurrent(schema.Account{Username: "main", AutoQueue: true})

	h.engine.Tick(context.Background())
	acc, _ := h.state.Current()
	require.True(t, acc.AutoQueue)

	h.engine.Tick(context.Background())
	acc, _ = h.state.Current()
	require.False(t, acc.AutoQueue)
	require.Len(t, h.gw.named("search"), 2)
}

func TestQueueDoesNotClobberRelaunchedAccount(t *testing.T) {
	h := newHarness(false)
	h.gw.phase = schema.PhaseLobby
	h.state.SetCurrent(schema.Account{Username: "main", AutoQueue: true})
	h.gw.onSearch = func() {
		h.state.SetCurrent(schema.Account{Username: "smurf", AutoQueue: true})
	}

	h.engine.Tick(context.Background())
	acc, _ := h.state.Current()
	require.Equal(t, "smurf", acc.Username)
	require.True(t, acc.AutoQueue)
}

func TestQueueTypeMapping(t *testing.T) {
	for queueType, want := range map[schema.QueueType]int{
		schema.QueueRankedSolo:  420,
		schema.QueueRankedFlex:  440,
		schema.QueueNormalDraft: 400,
		schema.QueueARAM:        450,
		"TFT":                   440,
	} {
		h := newHarness(false)
		h.gw.phase = schema.PhaseNone
		h.state.SetCurrent(schema.Account{Username: "main", AutoQueue: true, QueueType: queueType})
		h.engine.Tick(context.Background())
		require.Equal(t, want, h.gw.named("lobby")[0].args[0], queueType)
	}
}

func TestQueueIdleWithoutAccountOrFlag(t *testing.T) {
	h := newHarness(false)
	h.engine.Tick(context.Background())
	h.state.SetCurrent(schema.Account{Username: "main"})
	h.engine.Tick(context.Background())
	require.Zero(t, h.gw.total())
}
