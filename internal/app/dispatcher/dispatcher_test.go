package dispatcher

import (
	"bytes"
	"context"
	"errors"
	"log"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/riftpilot/internal/domain/schema"
)

func readyCheckFrame(t *testing.T) []byte {
	t.Helper()
	frame, err := schema.EncodeEventFrame(schema.Event{
		URI:       schema.URIReadyCheck,
		EventType: schema.EventUpdate,
		Data:      []byte(`{"state":"InProgress","playerResponse":"None"}`),
	})
	require.NoError(t, err)
	return frame
}

func TestDispatchDeliversInRegistrationOrder(t *testing.T) {
	d := New(log.New(&bytes.Buffer{}, "", 0))
	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		d.Register(name, ObserverFunc(func(_ context.Context, evt schema.Event) error {
			require.Equal(t, schema.URIReadyCheck, evt.URI)
			order = append(order, name)
			return nil
		}))
	}

	require.True(t, d.Dispatch(context.Background(), readyCheckFrame(t)))
	require.Equal(t, []string{"first", "second", "third"}, order)
}

func TestDispatchIsolatesFailingObservers(t *testing.T) {
	var logs bytes.Buffer
	d := New(log.New(&logs, "", 0))
	calls := 0
	d.Register("errors", ObserverFunc(func(context.Context, schema.Event) error {
		return errors.New("boom")
	}))
	d.Register("panics", ObserverFunc(func(context.Context, schema.Event) error {
		panic("kaboom")
	}))
	d.Register("healthy", ObserverFunc(func(context.Context, schema.Event) error {
		calls++
		return nil
	}))

	require.True(t, d.Dispatch(context.Background(), readyCheckFrame(t)))
	require.Equal(t, 1, calls)
	require.Contains(t, logs.String(), "observer errors failed")
	require.Contains(t, logs.String(), "observer panics failed")
}

func TestDispatchIgnoresNonEventFramesSilently(t *testing.T) {
	var logs bytes.Buffer
	d := New(log.New(&logs, "", 0))
	calls := 0
	d.Register("count", ObserverFunc(func(context.Context, schema.Event) error {
		calls++
		return nil
	}))

	for _, frame := range []string{`garbage`, `[5,"OnJsonApiEvent"]`, `[8,"Other",{"uri":"/x"}]`, `{"uri":"/x"}`} {
		require.False(t, d.Dispatch(context.Background(), []byte(frame)))
	}
	require.Zero(t, calls)
	require.Empty(t, logs.String())
}

func TestRegisterIgnoresNilAndNamesAnonymous(t *testing.T) {
	d := New(nil)
	d.Register("nil", nil)
	d.Register("", ObserverFunc(func(context.Context, schema.Event) error { return nil }))
	require.Len(t, d.observers, 1)
	require.Equal(t, "observer-1", d.observers[0].name)
}
