// Package catalog maps champion names to numeric ids and portrait URLs using Data Dragon.
package catalog

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/coachpo/riftpilot/errs"
)

const (
	defaultBaseURL         = "https://ddragon.leagueoflegends.com"
	defaultLocale          = "en_US"
	defaultFallbackVersion = "14.1.1"
	defaultTimeout         = 10 * time.Second
)

// Champion is one catalog entry.
type Champion struct {
	ID       int64  `json:"id"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	ImageURL string `json:"imageUrl"`
}

// Catalog is immutable after construction and safe for concurrent reads.
type Catalog struct {
	version string
	byName  map[string]Champion
	byID    map[int64]Champion
}

// New builds a catalog from explicit entries.
func New(version string, champions []Champion) *Catalog {
	c := &Catalog{
		version: version,
		byName:  make(map[string]Champion, len(champions)*2),
		byID:    make(map[int64]Champion, len(champions)),
	}
	for _, champ := range champions {
		if champ.ID <= 0 {
			continue
		}
		c.byID[champ.ID] = champ
		if name := normalize(champ.Key); name != "" {
			c.byName[name] = champ
		}
	}
	// Display names win over internal keys when they collide.
	for _, champ := range champions {
		if name := normalize(champ.Name); name != "" && champ.ID > 0 {
			c.byName[name] = champ
		}
	}
	return c
}

// Version returns the Data Dragon version the catalog was built from.
func (c *Catalog) Version() string {
	if c == nil {
		return ""
	}
	return c.version
}

// Resolve maps a champion name to its id, case-insensitively.
func (c *Catalog) Resolve(name string) (int64, bool) {
	if c == nil {
		return 0, false
	}
	champ, ok := c.byName[normalize(name)]
	if !ok {
		return 0, false
	}
	return champ.ID, true
}

// Champion returns the entry for id.
func (c *Catalog) Champion(id int64) (Champion, bool) {
	if c == nil {
		return Champion{}, false
	}
	champ, ok := c.byID[id]
	return champ, ok
}

// Champions returns all entries sorted by name.
func (c *Catalog) Champions() []Champion {
	if c == nil {
		return nil
	}
	out := make([]Champion, 0, len(c.byID))
	for _, champ := range c.byID {
		out = append(out, champ)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of champions.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.byID)
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Options configure Load.
type Options struct {
	BaseURL         string
	Locale          string
	FallbackVersion string
	Timeout         time.Duration
	Client          *http.Client
	Logger          *log.Logger
}

func (o Options) withDefaults() Options {
	if strings.TrimSpace(o.BaseURL) == "" {
		o.BaseURL = defaultBaseURL
	}
	o.BaseURL = strings.TrimRight(o.BaseURL, "/")
	if strings.TrimSpace(o.Locale) == "" {
		o.Locale = defaultLocale
	}
	if strings.TrimSpace(o.FallbackVersion) == "" {
		o.FallbackVersion = defaultFallbackVersion
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.Client == nil {
		o.Client = &http.Client{Transport: nil, CheckRedirect: nil, Jar: nil, Timeout: o.Timeout}
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

type championFile struct {
	Data map[string]struct {
		ID   string `json:"id"`
		Key  string `json:"key"`
		Name string `json:"name"`
	} `json:"data"`
}

// Load fetches the latest version and its champion list. It always returns a usable catalog: when
// the version lookup fails the fallback version is used, and when the champion list fails the
// catalog is empty and the error is returned alongside it.
func Load(ctx context.Context, opts Options) (*Catalog, error) {
	opts = opts.withDefaults()

	version := opts.FallbackVersion
	var versions []string
	if err := fetchJSON(ctx, opts.Client, opts.BaseURL+"/api/versions.json", &versions); err != nil {
		opts.Logger.Printf("catalog: version lookup failed, using %s: %v", version, err)
	} else if len(versions) > 0 && strings.TrimSpace(versions[0]) != "" {
		version = strings.TrimSpace(versions[0])
	}

	var file championFile
	url := fmt.Sprintf("%s/cdn/%s/data/%s/champion.json", opts.BaseURL, version, opts.Locale)
	if err := fetchJSON(ctx, opts.Client, url, &file); err != nil {
		return New(version, nil), err
	}

	champions := make([]Champion, 0, len(file.Data))
	for _, entry := range file.Data {
		id, err := strconv.ParseInt(strings.TrimSpace(entry.Key), 10, 64)
		if err != nil {
			continue
		}
		champions = append(champions, Champion{
			ID:       id,
			Key:      entry.ID,
			Name:     entry.Name,
			ImageURL: fmt.Sprintf("%s/cdn/%s/img/champion/%s.png", opts.BaseURL, version, entry.ID),
		})
	}
	opts.Logger.Printf("catalog: loaded %d champions (version %s)", len(champions), version)
	return New(version, champions), nil
}

func fetchJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.New("catalog", errs.CodeInvalid, errs.WithRequest(http.MethodGet, url), errs.WithCause(err))
	}
	resp, err := client.Do(req)
	if err != nil {
		return errs.New("catalog", errs.CodeNetwork, errs.WithRequest(http.MethodGet, url), errs.WithCause(err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.New("catalog", errs.CodeNetwork, errs.WithRequest(http.MethodGet, url), errs.WithCause(err))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return errs.New("catalog", errs.CodeStatus, errs.WithRequest(http.MethodGet, url), errs.WithHTTP(resp.StatusCode))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errs.New("catalog", errs.CodeDecode, errs.WithRequest(http.MethodGet, url), errs.WithCause(err))
	}
	return nil
}
