// Package httpserver exposes the local control API used by the UI: accounts, launches, client
// actions, app settings, a raw control-plane proxy and the UI event stream.
package httpserver

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/coachpo/riftpilot/errs"
	"github.com/coachpo/riftpilot/internal/app/accounts"
	"github.com/coachpo/riftpilot/internal/app/appstate"
	"github.com/coachpo/riftpilot/internal/app/uibus"
	"github.com/coachpo/riftpilot/internal/domain/schema"
	"github.com/coachpo/riftpilot/internal/infra/clientsettings"
	"github.com/coachpo/riftpilot/internal/infra/config"
	"github.com/coachpo/riftpilot/internal/infra/lcu"
)

const (
	maxJSONBodyBytes int64 = 1 << 20 // 1 MiB

	statusPath = "/status"

	accountsPath        = "/accounts"
	accountDetailPrefix = accountsPath + "/"
	launchCancelPath    = "/launch/cancel"

	configPath = "/config"

	actionsPrefix = "/actions/"
	proxyPrefix   = "/lcu/"
	eventsPath    = "/events"
)

// Accounts is the account service surface.
type Accounts interface {
	List(ctx context.Context) ([]schema.Account, error)
	Add(ctx context.Context, in accounts.Input) (schema.Account, error)
	Update(ctx context.Context, username string, patch accounts.Patch) (schema.Account, error)
	Delete(ctx context.Context, username string) error
}

// Launcher drives account launches and client process control.
type Launcher interface {
	Launch(ctx context.Context, username string) error
	Cancel() bool
	Dodge(ctx context.Context) error
	FixClient(ctx context.Context) error
}

// Actions are the user-invoked control-plane commands.
type Actions interface {
	AcceptMatch(ctx context.Context) error
	SetStatusMessage(ctx context.Context, message string) error
	LobbyMembers(ctx context.Context) ([]string, error)
	SetProfileBackground(ctx context.Context, championName string, skinID int64) error
}

// Proxy forwards raw control-plane requests.
type Proxy interface {
	Do(ctx context.Context, method, path string, body any) lcu.Result
}

// Session reports connector state.
type Session interface {
	State() lcu.State
	SessionID() string
}

// Events is the UI message source.
type Events interface {
	Subscribe(ctx context.Context) (uibus.SubscriptionID, <-chan uibus.Message, error)
	Unsubscribe(id uibus.SubscriptionID)
}

// Deps wires the handler's collaborators. Nil collaborators answer 503.
type Deps struct {
	Accounts       Accounts
	Launcher       Launcher
	Actions        Actions
	Proxy          Proxy
	Session        Session
	Events         Events
	State          *appstate.State
	ConfigStore    *config.AppConfigStore
	CatalogVersion func() string
	// AllowedOrigins lists browser origins besides the API's own that may call it.
	AllowedOrigins []string
	Logger         *log.Logger
}

type handlerFunc func(http.ResponseWriter, *http.Request)

type httpServer struct {
	deps     Deps
	logger   *log.Logger
	upgrader websocket.Upgrader
}

// NewHandler creates the control API handler.
func NewHandler(deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "api ", log.LstdFlags|log.Lmicroseconds)
	}
	origins := newOriginPolicy(deps.AllowedOrigins)
	server := &httpServer{deps: deps, logger: logger, upgrader: newUpgrader(origins)}
	mux := http.NewServeMux()

	mux.Handle(statusPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.getStatus,
	}))
	mux.Handle(accountsPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet:  server.listAccounts,
		http.MethodPost: server.createAccount,
	}))
	mux.Handle(accountDetailPrefix, http.HandlerFunc(server.handleAccount))
	mux.Handle(launchCancelPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodPost: server.cancelLaunch,
	}))
	mux.Handle(configPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.getConfig,
		http.MethodPut: server.updateConfig,
	}))

	mux.Handle(actionsPrefix+"accept-match", server.methodHandlers(map[string]handlerFunc{
		http.MethodPost: server.acceptMatch,
	}))
	mux.Handle(actionsPrefix+"status-message", server.methodHandlers(map[string]handlerFunc{
		http.MethodPost: server.setStatusMessage,
	}))
	mux.Handle(actionsPrefix+"lobby-members", server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.lobbyMembers,
	}))
	mux.Handle(actionsPrefix+"profile-background", server.methodHandlers(map[string]handlerFunc{
		http.MethodPost: server.setProfileBackground,
	}))
	mux.Handle(actionsPrefix+"language", server.methodHandlers(map[string]handlerFunc{
		http.MethodPost: server.changeLanguage,
	}))
	mux.Handle(actionsPrefix+"dodge", server.methodHandlers(map[string]handlerFunc{
		http.MethodPost: server.dodge,
	}))
	mux.Handle(actionsPrefix+"fix-client", server.methodHandlers(map[string]handlerFunc{
		http.MethodPost: server.fixClient,
	}))

	mux.Handle(proxyPrefix, http.HandlerFunc(server.proxy))
	mux.Handle(eventsPath, server.methodHandlers(map[string]handlerFunc{
		http.MethodGet: server.serveEvents,
	}))

	return withCORS(origins, mux)
}

func (s *httpServer) methodHandlers(handlers map[string]handlerFunc) http.Handler {
	allowed := allowedMethods(handlers)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler(w, r)
			return
		}
		methodNotAllowed(w, allowed...)
	})
}

func allowedMethods(handlers map[string]handlerFunc) []string {
	if len(handlers) == 0 {
		return nil
	}
	allowed := make([]string, 0, len(handlers))
	for method := range handlers {
		allowed = append(allowed, method)
	}
	sort.Strings(allowed)
	return allowed
}

type statusResponse struct {
	Connection     string `json:"connection"`
	SessionID      string `json:"sessionId,omitempty"`
	CurrentAccount string `json:"currentAccount,omitempty"`
	AutoAccept     bool   `json:"autoAccept"`
	CatalogVersion string `json:"catalogVersion,omitempty"`
}

func (s *httpServer) getStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{Connection: lcu.StateDisconnected.String()}
	if s.deps.Session != nil {
		resp.Connection = s.deps.Session.State().String()
		resp.SessionID = s.deps.Session.SessionID()
	}
	if s.deps.State != nil {
		if acc, ok := s.deps.State.Current(); ok {
			resp.CurrentAccount = acc.Username
		}
		resp.AutoAccept = s.deps.State.AutoAccept()
	}
	if s.deps.CatalogVersion != nil {
		resp.CatalogVersion = s.deps.CatalogVersion()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *httpServer) listAccounts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Accounts == nil {
		writeUnavailable(w, "accounts")
		return
	}
	list, err := s.deps.Accounts.List(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if list == nil {
		list = []schema.Account{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"accounts": list})
}

func (s *httpServer) createAccount(w http.ResponseWriter, r *http.Request) {
	if s.deps.Accounts == nil {
		writeUnavailable(w, "accounts")
		return
	}
	var in accounts.Input
	if err := decodeJSON(w, r, &in); err != nil {
		writeDecodeError(w, err)
		return
	}
	acc, err := s.deps.Accounts.Add(r.Context(), in)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, acc)
}

func (s *httpServer) handleAccount(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, accountDetailPrefix), "/")
	if rest == "" {
		writeError(w, http.StatusNotFound, "account username required")
		return
	}
	username, action, _ := strings.Cut(rest, "/")
	switch action {
	case "":
		s.methodHandlers(map[string]handlerFunc{
			http.MethodPut:    func(w http.ResponseWriter, r *http.Request) { s.updateAccount(w, r, username) },
			http.MethodDelete: func(w http.ResponseWriter, r *http.Request) { s.deleteAccount(w, r, username) },
		}).ServeHTTP(w, r)
	case "launch":
		s.methodHandlers(map[string]handlerFunc{
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) { s.launchAccount(w, r, username) },
		}).ServeHTTP(w, r)
	default:
		writeError(w, http.StatusNotFound, "unknown account action")
	}
}

func (s *httpServer) updateAccount(w http.ResponseWriter, r *http.Request, username string) {
	if s.deps.Accounts == nil {
		writeUnavailable(w, "accounts")
		return
	}
	var patch accounts.Patch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeDecodeError(w, err)
		return
	}
	acc, err := s.deps.Accounts.Update(r.Context(), username, patch)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

func (s *httpServer) deleteAccount(w http.ResponseWriter, r *http.Request, username string) {
	if s.deps.Accounts == nil {
		writeUnavailable(w, "accounts")
		return
	}
	if err := s.deps.Accounts.Delete(r.Context(), username); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *httpServer) launchAccount(w http.ResponseWriter, r *http.Request, username string) {
	if s.deps.Launcher == nil {
		writeUnavailable(w, "launcher")
		return
	}
	if err := s.deps.Launcher.Launch(r.Context(), username); err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "launching", "username": username})
}

func (s *httpServer) cancelLaunch(w http.ResponseWriter, _ *http.Request) {
	if s.deps.Launcher == nil {
		writeUnavailable(w, "launcher")
		return
	}
	if !s.deps.Launcher.Cancel() {
		writeError(w, http.StatusConflict, "no launch in progress")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
}

func (s *httpServer) getConfig(w http.ResponseWriter, _ *http.Request) {
	snapshot := s.deps.ConfigStore.Snapshot()
	writeJSON(w, http.StatusOK, clientView(snapshot.Client))
}

func (s *httpServer) updateConfig(w http.ResponseWriter, r *http.Request) {
	if s.deps.ConfigStore == nil {
		writeUnavailable(w, "config")
		return
	}
	var patch config.ClientPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		writeDecodeError(w, err)
		return
	}
	client, err := s.deps.ConfigStore.UpdateClient(patch)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "persist config: "+err.Error())
		return
	}
	if s.deps.State != nil {
		s.deps.State.SetAutoAccept(client.AutoAccept)
	}
	writeJSON(w, http.StatusOK, clientView(client))
}

func clientView(client config.ClientConfig) map[string]any {
	return map[string]any{"installPath": client.InstallPath, "autoAccept": client.AutoAccept}
}

func (s *httpServer) acceptMatch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Actions == nil {
		writeUnavailable(w, "actions")
		return
	}
	if err := s.deps.Actions.AcceptMatch(r.Context()); err != nil {
		s.writeErr(w, err)
		return
	}
	writeSuccess(w)
}

type statusMessagePayload struct {
	Message string `json:"message"`
}

func (s *httpServer) setStatusMessage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Actions == nil {
		writeUnavailable(w, "actions")
		return
	}
	var payload statusMessagePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := s.deps.Actions.SetStatusMessage(r.Context(), payload.Message); err != nil {
		s.writeErr(w, err)
		return
	}
	writeSuccess(w)
}

func (s *httpServer) lobbyMembers(w http.ResponseWriter, r *http.Request) {
	if s.deps.Actions == nil {
		writeUnavailable(w, "actions")
		return
	}
	names, err := s.deps.Actions.LobbyMembers(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"names": names})
}

type profileBackgroundPayload struct {
	ChampionName string `json:"championName"`
	SkinID       int64  `json:"skinId"`
}

func (s *httpServer) setProfileBackground(w http.ResponseWriter, r *http.Request) {
	if s.deps.Actions == nil {
		writeUnavailable(w, "actions")
		return
	}
	var payload profileBackgroundPayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeDecodeError(w, err)
		return
	}
	if err := s.deps.Actions.SetProfileBackground(r.Context(), payload.ChampionName, payload.SkinID); err != nil {
		s.writeErr(w, err)
		return
	}
	writeSuccess(w)
}

type languagePayload struct {
	Locale string `json:"locale"`
}

func (s *httpServer) changeLanguage(w http.ResponseWriter, r *http.Request) {
	var payload languagePayload
	if err := decodeJSON(w, r, &payload); err != nil {
		writeDecodeError(w, err)
		return
	}
	path := s.deps.ConfigStore.Snapshot().Client.SettingsPath()
	if path == "" {
		writeError(w, http.StatusConflict, "client install path not configured")
		return
	}
	if err := clientsettings.SetLocale(path, payload.Locale); err != nil {
		s.writeErr(w, err)
		return
	}
	s.logger.Printf("client locale set to %s", payload.Locale)
	writeSuccess(w)
}

func (s *httpServer) dodge(w http.ResponseWriter, r *http.Request) {
	if s.deps.Launcher == nil {
		writeUnavailable(w, "launcher")
		return
	}
	if err := s.deps.Launcher.Dodge(r.Context()); err != nil {
		s.writeErr(w, err)
		return
	}
	writeSuccess(w)
}

func (s *httpServer) fixClient(w http.ResponseWriter, r *http.Request) {
	if s.deps.Launcher == nil {
		writeUnavailable(w, "launcher")
		return
	}
	if err := s.deps.Launcher.FixClient(r.Context()); err != nil {
		s.writeErr(w, err)
		return
	}
	writeSuccess(w)
}

// proxy forwards /lcu/{path} to the control plane and relays status and body verbatim.
func (s *httpServer) proxy(w http.ResponseWriter, r *http.Request) {
	if s.deps.Proxy == nil {
		writeUnavailable(w, "proxy")
		return
	}
	target := "/" + strings.TrimPrefix(r.URL.Path, proxyPrefix)
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}
	limitRequestBody(w, r)
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeDecodeError(w, err)
		return
	}
	var body any
	if len(raw) > 0 {
		body = json.RawMessage(raw)
	}

	res := s.deps.Proxy.Do(r.Context(), r.Method, target, body)
	switch res.Outcome {
	case lcu.OutcomeOK, lcu.OutcomeStatus:
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(res.Status)
		_, _ = w.Write(res.Body)
	default:
		s.writeErr(w, res.Error())
	}
}

func (s *httpServer) writeErr(w http.ResponseWriter, err error) {
	status := statusFromError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Printf("request failed: %v", err)
	}
	message := err.Error()
	var e *errs.E
	if errors.As(err, &e) && e.Message != "" {
		message = e.Message
	}
	writeJSON(w, status, map[string]string{"status": "error", "error": message, "code": string(errs.CodeOf(err))})
}

func statusFromError(err error) int {
	switch errs.CodeOf(err) {
	case errs.CodeInvalid, errs.CodeDecode:
		return http.StatusBadRequest
	case errs.CodeNotFound:
		return http.StatusNotFound
	case errs.CodeConflict:
		return http.StatusConflict
	case errs.CodeNoCredentials, errs.CodeUnavailable:
		return http.StatusServiceUnavailable
	case errs.CodeNetwork, errs.CodeStatus:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	limitRequestBody(w, r)
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body required")
		}
		return err
	}
	return nil
}

func limitRequestBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
}

func writeDecodeError(w http.ResponseWriter, err error) {
	if isRequestTooLarge(err) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}
	writeError(w, http.StatusBadRequest, err.Error())
}

func isRequestTooLarge(err error) bool {
	var maxBytesErr *http.MaxBytesError
	return errors.As(err, &maxBytesErr)
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "error": message})
}

func writeSuccess(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func writeUnavailable(w http.ResponseWriter, component string) {
	writeError(w, http.StatusServiceUnavailable, component+" unavailable")
}
