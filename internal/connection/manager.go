// Package connection implements discovery of, and authenticated sessions
// with, remote media servers.
//
// Connecting to a server races its candidate addresses: probes are issued
// concurrently with a fixed stagger and the first successful response wins.
// Losing probes are not cancelled; their results are discarded. Reachability
// failures are never surfaced as errors, only as a resolved
// [domain.ConnectionStateUnavailable] outcome.
package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/mod/semver"

	"github.com/playhead/playhead/internal/domain"
	"github.com/playhead/playhead/internal/httpclient"
	"github.com/playhead/playhead/internal/optional"
	"github.com/playhead/playhead/internal/store"
)

const (
	// MinServerVersion is the minimum server version this client can talk
	// to. Older servers resolve as ServerUpdateNeeded.
	MinServerVersion = "10.3.0"

	// addressStagger is the delay between launching probes for successive
	// address candidates: local first, then manual, then remote.
	addressStagger = 100 * time.Millisecond

	// discoveryTimeout bounds the native discovery channel.
	discoveryTimeout = time.Second
)

// ErrAPIClientNotFound is returned when no API client exists for a server
// ID. Unlike reachability failures this is a programmer error and is
// surfaced loudly.
var ErrAPIClientNotFound = errors.New("api client not found")

// ErrEmptyServerID is returned when a server ID is required but empty.
var ErrEmptyServerID = errors.New("server ID is empty")

// ConnectOptions modifies the behaviour of a connection attempt.
type ConnectOptions struct {
	// EnableAutoLogin controls whether a stored access token is used and
	// persisted. Defaults to true.
	EnableAutoLogin optional.V[bool]

	// verifyAuthentication is cleared on the single non-recursive retry
	// after a stored token fails validation.
	verifyAuthentication optional.V[bool]
}

func (o ConnectOptions) autoLogin() bool {
	return !o.EnableAutoLogin.IsPresent() || o.EnableAutoLogin.Value
}

func (o ConnectOptions) verifyAuth() bool {
	return !o.verifyAuthentication.IsPresent() || o.verifyAuthentication.Value
}

// Result is the outcome of a connection attempt. Reachability failures are
// expressed in State, never as an error.
type Result struct {
	State     domain.ConnectionState
	Server    store.ServerRecord
	Mode      domain.ConnectionMode
	APIClient *APIClient
	Servers   []store.ServerRecord // populated by Connect when selection is needed
}

// Manager owns the connection and authentication state machine.
type Manager struct {
	credStore        *store.CredentialStore
	httpClient       httpclient.Doer
	discoverer       Discoverer
	minServerVersion string
	stagger          time.Duration
	logger           *slog.Logger

	mu         sync.Mutex
	apiClients map[string]*APIClient
}

// NewManagerParams contains the parameters for building a new Manager.
type NewManagerParams struct {
	CredentialStore  *store.CredentialStore
	HTTPClient       httpclient.Doer
	Discoverer       Discoverer    // optional; absence degrades to an empty discovery list
	MinServerVersion string        // defaults to MinServerVersion
	AddressStagger   time.Duration // defaults to 100ms; tests may shorten it
	Logger           *slog.Logger
}

// NewManager creates a new Manager.
func NewManager(params NewManagerParams) *Manager {
	minVersion := params.MinServerVersion
	if minVersion == "" {
		minVersion = MinServerVersion
	}
	stagger := params.AddressStagger
	if stagger == 0 {
		stagger = addressStagger
	}

	return &Manager{
		credStore:        params.CredentialStore,
		httpClient:       params.HTTPClient,
		discoverer:       params.Discoverer,
		minServerVersion: minVersion,
		stagger:          stagger,
		logger:           params.Logger,
		apiClients:       make(map[string]*APIClient),
	}
}

// GetAvailableServers merges saved servers with freshly discovered ones,
// deduplicating by ID, and returns them sorted by last access descending
// (never-accessed records last). The merged set is persisted.
func (m *Manager) GetAvailableServers(ctx context.Context) ([]store.ServerRecord, error) {
	servers := m.credStore.Get().Servers

	for _, discovered := range m.discover(ctx) {
		idx := slices.IndexFunc(servers, func(rec store.ServerRecord) bool {
			return rec.ID != "" && rec.ID == discovered.ID
		})
		if idx >= 0 {
			if discovered.Address != "" {
				servers[idx].LocalAddress = discovered.Address
			}
			continue
		}

		servers = append(servers, store.ServerRecord{
			ID:            discovered.ID,
			Name:          discovered.Name,
			LocalAddress:  discovered.Address,
			ManualAddress: discovered.EndpointAddress,
		})
	}

	slices.SortStableFunc(servers, func(a, b store.ServerRecord) int {
		switch {
		case a.DateLastAccessed.IsZero() && b.DateLastAccessed.IsZero():
			return 0
		case a.DateLastAccessed.IsZero():
			return 1
		case b.DateLastAccessed.IsZero():
			return -1
		default:
			return b.DateLastAccessed.Compare(a.DateLastAccessed)
		}
	})

	if err := m.credStore.Set(store.Credentials{Servers: servers}); err != nil {
		return nil, fmt.Errorf("persist servers: %w", err)
	}

	return servers, nil
}

func (m *Manager) discover(ctx context.Context) []DiscoveredServer {
	if m.discoverer == nil {
		return nil
	}

	discovered, err := m.discoverer(ctx, discoveryTimeout)
	if err != nil {
		m.logger.Warn("Server discovery failed", "err", err)
		return nil
	}

	return discovered
}

type addressCandidate struct {
	mode    domain.ConnectionMode
	address string
	stagger time.Duration
}

type probeOutcome struct {
	candidate addressCandidate
	info      domain.ServerInfo
	err       error
}

// ConnectToServer races the server's candidate addresses and authenticates
// against the winner. It never returns an error for reachability failures:
// if every candidate fails the result state is Unavailable.
func (m *Manager) ConnectToServer(ctx context.Context, server store.ServerRecord, opts ConnectOptions) (Result, error) {
	candidates := m.addressCandidates(server)
	if len(candidates) == 0 {
		return Result{State: domain.ConnectionStateUnavailable, Server: server}, nil
	}

	// Buffered so that losing probes never block; their results are
	// discarded once a winner has been taken.
	outcomeC := make(chan probeOutcome, len(candidates))

	for _, cand := range candidates {
		cand := cand
		go func() {
			if cand.stagger > 0 {
				select {
				case <-time.After(cand.stagger):
				case <-ctx.Done():
					outcomeC <- probeOutcome{candidate: cand, err: ctx.Err()}
					return
				}
			}

			client := NewAPIClient(server.ID, cand.address, server.AccessToken, m.httpClient)
			info, err := client.PublicInfo(ctx)
			outcomeC <- probeOutcome{candidate: cand, info: info, err: err}
		}()
	}

	var rejects int
	for outcome := range outcomeC {
		if outcome.err != nil {
			m.logger.Debug("Address probe failed", "address", outcome.candidate.address, "err", outcome.err)

			rejects++
			if rejects == len(candidates) {
				return Result{State: domain.ConnectionStateUnavailable, Server: server}, nil
			}
			continue
		}

		// First success wins. Slower probes continue but their results
		// are never read.
		return m.onProbeSuccess(ctx, server, outcome.candidate, outcome.info, opts)
	}

	return Result{State: domain.ConnectionStateUnavailable, Server: server}, nil
}

func (m *Manager) addressCandidates(server store.ServerRecord) []addressCandidate {
	var candidates []addressCandidate

	add := func(mode domain.ConnectionMode, address string, stagger time.Duration) {
		if address == "" {
			return
		}
		if server.ManualAddressOnly && mode != domain.ConnectionModeManual {
			return
		}
		candidates = append(candidates, addressCandidate{
			mode:    mode,
			address: address,
			stagger: stagger,
		})
	}

	add(domain.ConnectionModeLocal, server.LocalAddress, 0)
	add(domain.ConnectionModeManual, server.ManualAddress, m.stagger)
	add(domain.ConnectionModeRemote, server.RemoteAddress, 2*m.stagger)

	return candidates
}

func (m *Manager) onProbeSuccess(
	ctx context.Context,
	server store.ServerRecord,
	candidate addressCandidate,
	info domain.ServerInfo,
	opts ConnectOptions,
) (Result, error) {
	if !m.versionSupported(info.Version) {
		m.logger.Info("Server requires update", "address", candidate.address, "version", info.Version)
		return Result{State: domain.ConnectionStateServerUpdateNeeded, Server: server}, nil
	}

	// An ID mismatch is never silently accepted: this is not the server the
	// record pointed at.
	if server.ID != "" && info.ID != "" && server.ID != info.ID {
		m.logger.Warn("Server identity mismatch", "address", candidate.address, "want", server.ID, "got", info.ID)
		return Result{State: domain.ConnectionStateUnavailable, Server: server}, nil
	}

	autoLogin := opts.autoLogin()

	if server.AccessToken != "" && autoLogin && opts.verifyAuth() {
		client := NewAPIClient(info.ID, candidate.address, server.AccessToken, m.httpClient)
		if _, err := client.Info(ctx); err != nil {
			m.logger.Info("Stored access token rejected, signing in afresh", "server_id", info.ID, "err", err)

			server.ClearAuth()
			if err := m.credStore.UpsertServer(server); err != nil {
				return Result{}, fmt.Errorf("persist server: %w", err)
			}

			retryOpts := opts
			retryOpts.verifyAuthentication = optional.New(false)
			return m.ConnectToServer(ctx, server, retryOpts)
		}
	}

	server.ID = info.ID
	if info.Name != "" {
		server.Name = info.Name
	}
	if candidate.mode == domain.ConnectionModeLocal || server.LocalAddress == "" {
		if info.LocalAddress != "" {
			server.LocalAddress = normalizeAddress(info.LocalAddress)
		}
	}
	if candidate.mode == domain.ConnectionModeManual {
		server.ManualAddress = candidate.address
	}
	server.LastConnectionMode = candidate.mode
	server.DateLastAccessed = time.Now()

	if !autoLogin {
		server.ClearAuth()
	}

	if err := m.credStore.UpsertServer(server); err != nil {
		return Result{}, fmt.Errorf("persist server: %w", err)
	}

	client := NewAPIClient(server.ID, candidate.address, server.AccessToken, m.httpClient)
	m.storeAPIClient(client)

	state := domain.ConnectionStateServerSignIn
	if server.AccessToken != "" && autoLogin {
		state = domain.ConnectionStateSignedIn
	}

	m.logger.Info("Connected to server",
		"server_id", server.ID,
		"server_name", server.Name,
		"mode", candidate.mode,
		"state", state,
	)

	return Result{State: state, Server: server, Mode: candidate.mode, APIClient: client}, nil
}

func (m *Manager) versionSupported(version string) bool {
	if version == "" {
		return true
	}
	return semver.Compare("v"+version, "v"+m.minServerVersion) >= 0
}

// ConnectToAddress normalizes the address and connects to it as a synthetic
// single-address server. A schemeless address tries https:// then http://
// in sequence, stopping at the first success.
func (m *Manager) ConnectToAddress(ctx context.Context, address string, opts ConnectOptions) (Result, error) {
	address = normalizeAddress(address)
	if address == "" {
		return Result{State: domain.ConnectionStateUnavailable}, nil
	}

	if strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://") {
		return m.connectToManualAddress(ctx, address, opts)
	}

	for _, scheme := range []string{"https://", "http://"} {
		result, err := m.connectToManualAddress(ctx, scheme+address, opts)
		if err != nil {
			return Result{}, err
		}
		if result.State != domain.ConnectionStateUnavailable {
			return result, nil
		}
	}

	return Result{State: domain.ConnectionStateUnavailable}, nil
}

func (m *Manager) connectToManualAddress(ctx context.Context, address string, opts ConnectOptions) (Result, error) {
	server := store.ServerRecord{
		ManualAddress:     address,
		ManualAddressOnly: true,
	}

	// Reuse a saved record if this address is already known, so stored
	// credentials apply.
	for _, rec := range m.credStore.Get().Servers {
		if rec.ManualAddress == address || rec.LocalAddress == address || rec.RemoteAddress == address {
			server = rec
			server.ManualAddress = address
			server.ManualAddressOnly = true
			break
		}
	}

	return m.ConnectToServer(ctx, server, opts)
}

// normalizeAddress trims whitespace and lower-cases the scheme.
func normalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	address = strings.TrimRight(address, "/")

	for _, scheme := range []string{"http:", "https:"} {
		if len(address) >= len(scheme) && strings.EqualFold(address[:len(scheme)], scheme) {
			return scheme + address[len(scheme):]
		}
	}

	return address
}

// Logout fires a best-effort server-side logout for every API client
// holding a token, then clears credentials on all non-guest saved servers.
// Server-side failures are swallowed: the local sign-out happens regardless.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	clients := make([]*APIClient, 0, len(m.apiClients))
	for _, client := range m.apiClients {
		if client.AccessToken() != "" {
			clients = append(clients, client)
		}
	}
	m.mu.Unlock()

	for _, client := range clients {
		if err := client.Logout(ctx); err != nil {
			m.logger.Warn("Server-side logout failed", "server_id", client.ServerID(), "err", err)
		}
		client.SetAccessToken("")
	}

	if err := m.credStore.ClearAuth(); err != nil {
		return fmt.Errorf("clear credentials: %w", err)
	}

	return nil
}

// DeleteServer removes a saved server. An empty ID is a programmer error.
func (m *Manager) DeleteServer(id string) error {
	if id == "" {
		return ErrEmptyServerID
	}

	if err := m.credStore.DeleteServer(id); err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.apiClients, id)
	m.mu.Unlock()

	return nil
}

// GetOrCreateAPIClient returns the API client for a known server, creating
// one from the saved record if needed. An unknown ID is a programmer error.
func (m *Manager) GetOrCreateAPIClient(serverID string) (*APIClient, error) {
	if serverID == "" {
		return nil, ErrEmptyServerID
	}

	m.mu.Lock()
	if client, ok := m.apiClients[serverID]; ok {
		m.mu.Unlock()
		return client, nil
	}
	m.mu.Unlock()

	creds := m.credStore.Get()
	idx := slices.IndexFunc(creds.Servers, func(rec store.ServerRecord) bool { return rec.ID == serverID })
	if idx < 0 {
		return nil, fmt.Errorf("%w: %s", ErrAPIClientNotFound, serverID)
	}

	rec := creds.Servers[idx]
	address := rec.Address(rec.LastConnectionMode)
	if address == "" {
		address = rec.ManualAddress
	}

	client := NewAPIClient(rec.ID, address, rec.AccessToken, m.httpClient)
	m.storeAPIClient(client)

	return client, nil
}

func (m *Manager) storeAPIClient(client *APIClient) {
	if client.ServerID() == "" {
		return
	}

	m.mu.Lock()
	m.apiClients[client.ServerID()] = client
	m.mu.Unlock()
}
