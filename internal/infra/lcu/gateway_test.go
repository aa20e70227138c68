package lcu

import (
	"context"
	"encoding/base64"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/coachpo/riftpilot/errs"
	"github.com/coachpo/riftpilot/internal/domain/schema"
	"github.com/coachpo/riftpilot/internal/infra/lockfile"
)

type staticCredentials struct {
	creds lockfile.Credentials
	ok    bool
}

func (s staticCredentials) Credentials() (lockfile.Credentials, bool) {
	return s.creds, s.ok
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func quietOptions() Options {
	return Options{Logger: log.New(io.Discard, "", 0)}
}

func TestGatewayTargetsLockfileEndpoint(t *testing.T) {
	creds, ok := lockfile.Parse("LeagueClient:1234:54321:abcXYZ:https")
	require.True(t, ok)

	gw := NewGateway(staticCredentials{creds: creds, ok: true}, quietOptions())
	var captured *http.Request
	gw.client.Transport = roundTripFunc(func(req *http.Request) (*http.Response, error) {
		captured = req
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(`"Lobby"`)),
			Header:     http.Header{},
			Request:    req,
		}, nil
	})

	phase, err := gw.GameflowPhase(context.Background())
	require.NoError(t, err)
	require.Equal(t, schema.PhaseLobby, phase)

	require.NotNil(t, captured)
	require.Equal(t, http.MethodGet, captured.Method)
	require.Equal(t, "https://127.0.0.1:54321/lol-gameflow/v1/gameflow-phase", captured.URL.String())
	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("riot:abcXYZ"))
	require.Equal(t, want, captured.Header.Get("Authorization"))
	require.Equal(t, "application/json", captured.Header.Get("Content-Type"))
}

func TestGatewayNoCredentials(t *testing.T) {
	gw := NewGateway(staticCredentials{}, quietOptions())

	res := gw.Do(context.Background(), http.MethodGet, PathGameflowPhase, nil)
	require.Equal(t, OutcomeNoCredentials, res.Outcome)
	require.True(t, errs.Is(res.Error(), errs.CodeNoCredentials))

	gw = NewGateway(nil, quietOptions())
	require.Equal(t, OutcomeNoCredentials, gw.Do(context.Background(), http.MethodGet, "/x", nil).Outcome)
}

type recordedRequest struct {
	method string
	path   string
	body   string
}

func newFakeClient(t *testing.T, respond func(w http.ResponseWriter, r *http.Request)) (*httptest.Server, lockfile.Credentials, func() []recordedRequest) {
	t.Helper()
	var (
		mu   sync.Mutex
		seen []recordedRequest
	)
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		seen = append(seen, recordedRequest{method: r.Method, path: r.URL.Path, body: string(body)})
		mu.Unlock()
		respond(w, r)
	}))
	t.Cleanup(server.Close)

	u, err := url.Parse(server.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	creds := lockfile.Credentials{Port: port, Password: "secret", Scheme: "https"}
	return server, creds, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		out := make([]recordedRequest, len(seen))
		copy(out, seen)
		return out
	}
}

func TestGatewayAgainstTLSServer(t *testing.T) {
	_, creds, requests := newFakeClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathChampSelectSession:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"No active delegate"}`))
		case PathCurrentSummoner:
			_, _ = w.Write([]byte(`{"summonerId":7,"gameName":"Rift","tagLine":"EUW"}`))
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	})
	gw := NewGateway(staticCredentials{creds: creds, ok: true}, quietOptions())
	ctx := context.Background()

	res := gw.CompleteAction(ctx, 12, 103)
	require.True(t, res.OK())
	require.NoError(t, res.Error())

	_, err := gw.ChampSelectSession(ctx)
	require.Error(t, err)
	var envelope *errs.E
	require.ErrorAs(t, err, &envelope)
	require.Equal(t, errs.CodeStatus, envelope.Code)
	require.Equal(t, http.StatusNotFound, envelope.HTTP)

	summoner, err := gw.CurrentSummoner(ctx)
	require.NoError(t, err)
	require.Equal(t, "Rift#EUW", summoner.RiotID())

	seen := requests()
	require.Len(t, seen, 3)
	require.Equal(t, http.MethodPatch, seen[0].method)
	require.Equal(t, "/lol-champ-select/v1/session/actions/12", seen[0].path)
	require.JSONEq(t, `{"championId":103,"completed":true}`, seen[0].body)
}

func TestGatewayTransportFailure(t *testing.T) {
	server, creds, _ := newFakeClient(t, func(w http.ResponseWriter, r *http.Request) {})
	server.Close()

	gw := NewGateway(staticCredentials{creds: creds, ok: true}, quietOptions())
	res := gw.AcceptReadyCheck(context.Background())
	require.Equal(t, OutcomeTransport, res.Outcome)
	require.Error(t, res.Err)
	require.True(t, errs.Is(res.Error(), errs.CodeNetwork))
}

func TestResultDecodeAndNull(t *testing.T) {
	res := Result{Outcome: OutcomeOK, Body: []byte(" null ")}
	require.True(t, res.Null())
	var v map[string]any
	require.True(t, errs.Is(res.Decode(&v), errs.CodeDecode))

	res = Result{Outcome: OutcomeOK, Body: []byte(`{"a":1}`)}
	require.False(t, res.Null())
	require.NoError(t, res.Decode(&v))
	require.EqualValues(t, 1, v["a"])
}

func TestEncodeBodyPassesRawJSON(t *testing.T) {
	raw, err := encodeBody(json.RawMessage(`{"x":1}`))
	require.NoError(t, err)
	require.Equal(t, `{"x":1}`, string(raw))

	raw, err = encodeBody(nil)
	require.NoError(t, err)
	require.Nil(t, raw)

	raw, err = encodeBody(lobbyRequest{QueueID: 420})
	require.NoError(t, err)
	require.JSONEq(t, `{"queueId":420}`, string(raw))
}

func TestRouteOfCollapsesIDs(t *testing.T) {
	require.Equal(t, "/lol-champ-select/v1/session/actions/{id}", routeOf("/lol-champ-select/v1/session/actions/12"))
	require.Equal(t, "/lol-summoner/v1/summoners/{id}", routeOf("/lol-summoner/v1/summoners/99?x=1"))
	require.Equal(t, PathGameflowPhase, routeOf(PathGameflowPhase))
}
