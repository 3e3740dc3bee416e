package connection

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/playhead/playhead/internal/domain"
	"github.com/playhead/playhead/internal/event"
	"github.com/playhead/playhead/internal/shortid"
	"github.com/playhead/playhead/internal/store"
)

// maxAttemptHistory bounds the connection attempt ring buffer. The oldest
// attempt is evicted first.
const maxAttemptHistory = 50

// Attempt is an immutable record of a single connection attempt.
type Attempt struct {
	ID         string
	ServerID   string
	ServerName string
	Timestamp  time.Time
	Duration   time.Duration
	Success    bool
	Err        error
}

// Metrics is derived from the current attempt history.
type Metrics struct {
	TotalAttempts         int
	SuccessfulAttempts    int
	FailedAttempts        int
	AverageConnectionTime time.Duration // successes only
	LastConnectionTime    time.Duration
	LastError             error
}

// Facade wraps Manager 1:1 per public method, adding attempt timing, a
// bounded attempt history with derived metrics, and an event-bus projection
// of connection state. It performs no policy decisions of its own.
type Facade struct {
	manager          *Manager
	bus              *event.Bus
	reconnectInitial time.Duration
	logger           *slog.Logger

	mu        sync.Mutex
	attempts  []Attempt
	lastError error
}

// NewFacadeParams contains the parameters for building a new Facade.
type NewFacadeParams struct {
	Manager                  *Manager
	Bus                      *event.Bus
	ReconnectInitialInterval time.Duration // defaults to 1 second
	Logger                   *slog.Logger
}

// NewFacade creates a new Facade.
func NewFacade(params NewFacadeParams) *Facade {
	reconnectInitial := params.ReconnectInitialInterval
	if reconnectInitial == 0 {
		reconnectInitial = time.Second
	}

	return &Facade{
		manager:          params.Manager,
		bus:              params.Bus,
		reconnectInitial: reconnectInitial,
		logger:           params.Logger,
	}
}

// GetAvailableServers passes through to the Manager.
func (f *Facade) GetAvailableServers(ctx context.Context) ([]store.ServerRecord, error) {
	return f.manager.GetAvailableServers(ctx)
}

// Connect resolves the saved server set itself so that a single-server
// resolution routes through ConnectToServer, keeping attempt timing, history
// and state projection on the startup path.
func (f *Facade) Connect(ctx context.Context, opts ConnectOptions) (Result, error) {
	servers, err := f.manager.GetAvailableServers(ctx)
	if err != nil {
		return Result{}, err
	}

	if len(servers) == 1 {
		return f.ConnectToServer(ctx, servers[0], opts)
	}

	result := Result{State: domain.ConnectionStateServerSelection, Servers: servers}
	f.publishState(result)
	return result, nil
}

// ConnectToServer times the attempt, records it, and projects the outcome
// onto the event bus.
func (f *Facade) ConnectToServer(ctx context.Context, server store.ServerRecord, opts ConnectOptions) (Result, error) {
	start := time.Now()
	result, err := f.manager.ConnectToServer(ctx, server, opts)
	f.recordAttempt(server, result, time.Since(start), err)

	if err != nil {
		return result, err
	}

	f.publishState(result)
	return result, nil
}

// ConnectToAddress times the attempt, records it, and projects the outcome
// onto the event bus.
func (f *Facade) ConnectToAddress(ctx context.Context, address string, opts ConnectOptions) (Result, error) {
	start := time.Now()
	result, err := f.manager.ConnectToAddress(ctx, address, opts)

	server := result.Server
	if server.Name == "" {
		server.Name = address
	}
	f.recordAttempt(server, result, time.Since(start), err)

	if err != nil {
		return result, err
	}

	f.publishState(result)
	return result, nil
}

// Logout passes through to the Manager. The signed-out event fires even if
// server-side logout calls failed.
func (f *Facade) Logout(ctx context.Context) error {
	err := f.manager.Logout(ctx)
	f.bus.Send(event.SignedOutEvent{})
	return err
}

// DeleteServer passes through to the Manager.
func (f *Facade) DeleteServer(id string) error {
	return f.manager.DeleteServer(id)
}

// GetOrCreateAPIClient passes through to the Manager.
func (f *Facade) GetOrCreateAPIClient(serverID string) (*APIClient, error) {
	return f.manager.GetOrCreateAPIClient(serverID)
}

// History returns a copy of the current attempt history, oldest first.
func (f *Facade) History() []Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()

	return slices.Clone(f.attempts)
}

// Metrics derives connection metrics from the current attempt history.
func (f *Facade) Metrics() Metrics {
	f.mu.Lock()
	defer f.mu.Unlock()

	metrics := Metrics{LastError: f.lastError}

	var successTotal time.Duration
	for _, attempt := range f.attempts {
		metrics.TotalAttempts++
		if attempt.Success {
			metrics.SuccessfulAttempts++
			successTotal += attempt.Duration
			metrics.LastConnectionTime = attempt.Duration
		} else {
			metrics.FailedAttempts++
		}
	}

	if metrics.SuccessfulAttempts > 0 {
		metrics.AverageConnectionTime = successTotal / time.Duration(metrics.SuccessfulAttempts)
	}

	return metrics
}

func (f *Facade) recordAttempt(server store.ServerRecord, result Result, duration time.Duration, err error) {
	success := err == nil && resultConnected(result.State)

	attemptErr := err
	if attemptErr == nil && !success {
		attemptErr = stateError(result.State)
	}

	attempt := Attempt{
		ID:         shortid.New().String(),
		ServerID:   server.ID,
		ServerName: server.Name,
		Timestamp:  time.Now(),
		Duration:   duration,
		Success:    success,
		Err:        attemptErr,
	}

	f.mu.Lock()
	if len(f.attempts) == maxAttemptHistory {
		f.attempts = slices.Delete(f.attempts, 0, 1)
	}
	f.attempts = append(f.attempts, attempt)
	// LastError updates only on failure; success leaves it untouched.
	if !success {
		f.lastError = attemptErr
	}
	f.mu.Unlock()

	f.bus.Send(event.ConnectionAttemptedEvent{
		ServerID:   attempt.ServerID,
		ServerName: attempt.ServerName,
		DurationMS: attempt.Duration.Milliseconds(),
		Success:    attempt.Success,
		Err:        attempt.Err,
	})
}

func (f *Facade) publishState(result Result) {
	f.bus.Send(event.ConnectionStateChangedEvent{
		State:      result.State,
		ServerID:   result.Server.ID,
		ServerName: result.Server.Name,
	})
}

func resultConnected(state domain.ConnectionState) bool {
	return state == domain.ConnectionStateSignedIn || state == domain.ConnectionStateServerSignIn
}

var (
	errUnavailable        = errors.New("server unavailable")
	errServerUpdateNeeded = errors.New("server update needed")
	errSelectionRequired  = errors.New("server selection required")
)

func stateError(state domain.ConnectionState) error {
	switch state {
	case domain.ConnectionStateServerUpdateNeeded:
		return errServerUpdateNeeded
	case domain.ConnectionStateServerSelection:
		return errSelectionRequired
	default:
		return errUnavailable
	}
}

// Reconnect retries the connection to a server with exponential backoff
// until it succeeds, the server demands an update, or the context is
// cancelled. Unavailable outcomes are retried.
func (f *Facade) Reconnect(ctx context.Context, server store.ServerRecord, opts ConnectOptions) (Result, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = f.reconnectInitial
	expBackoff.MaxInterval = time.Minute
	expBackoff.MaxElapsedTime = 0 // retry until the context is cancelled

	var result Result
	operation := func() error {
		var err error
		result, err = f.ConnectToServer(ctx, server, opts)
		if err != nil {
			return backoff.Permanent(err)
		}

		if result.State == domain.ConnectionStateUnavailable {
			f.logger.Info("Server unavailable, will retry", "server_id", server.ID, "server_name", server.Name)
			return errUnavailable
		}

		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(expBackoff, ctx)); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return result, permanent.Err
		}
		return result, err
	}

	return result, nil
}
