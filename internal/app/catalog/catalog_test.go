package catalog

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coachpo/riftpilot/errs"
)

func TestResolveIsCaseInsensitive(t *testing.T) {
	c := New("14.1.1", []Champion{
		{ID: 103, Key: "Ahri", Name: "Ahri"},
		{ID: 62, Key: "MonkeyKing", Name: "Wukong"},
	})

	for _, name := range []string{"Ahri", "ahri", "AHRI", "  aHrI "} {
		id, ok := c.Resolve(name)
		require.True(t, ok, name)
		require.Equal(t, int64(103), id)
	}
	id, ok := c.Resolve("monkeyking")
	require.True(t, ok)
	require.Equal(t, int64(62), id)
	_, ok = c.Resolve("Nobody")
	require.False(t, ok)

	require.Equal(t, 2, c.Len())
	require.Equal(t, "Ahri", c.Champions()[0].Name)

	var nilCatalog *Catalog
	_, ok = nilCatalog.Resolve("ahri")
	require.False(t, ok)
}

func TestLoadFromDataDragon(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/versions.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`["15.2.1","15.1.1"]`))
	})
	mux.HandleFunc("/cdn/15.2.1/data/en_US/champion.json", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"Ahri":{"id":"Ahri","key":"103","name":"Ahri"},"Bad":{"id":"Bad","key":"x","name":"Bad"}}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := Load(context.Background(), Options{BaseURL: server.URL, Logger: log.New(io.Discard, "", 0)})
	require.NoError(t, err)
	require.Equal(t, "15.2.1", c.Version())
	require.Equal(t, 1, c.Len())
	champ, ok := c.Champion(103)
	require.True(t, ok)
	require.Equal(t, server.URL+"/cdn/15.2.1/img/champion/Ahri.png", champ.ImageURL)
}

func TestLoadFallsBackToConfiguredVersion(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/versions.json", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c, err := Load(context.Background(), Options{BaseURL: server.URL, FallbackVersion: "13.9.1", Logger: log.New(io.Discard, "", 0)})
	require.Error(t, err)
	require.True(t, errs.Is(err, errs.CodeStatus))
	require.NotNil(t, c)
	require.Equal(t, "13.9.1", c.Version())
	require.Zero(t, c.Len())
}
