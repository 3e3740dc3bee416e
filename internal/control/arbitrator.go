// Package control arbitrates which control source - the local UI, a
// remote-control client, or the server - is authoritative over playback.
package control

import (
	"log/slog"
	"sync"
	"time"

	"github.com/playhead/playhead/internal/domain"
	"github.com/playhead/playhead/internal/event"
)

const (
	// transferTimeoutSeconds is how long a confirmation-gated transfer
	// waits before resolving as cancelled.
	transferTimeoutSeconds = 20

	defaultCountdownInterval = time.Second
)

// Action is a playback action subject to arbitration.
type Action int

const (
	ActionPlay Action = iota
	ActionPause
	ActionStop
	ActionSeek
	ActionSetVolume
	ActionToggleMute
	ActionNextTrack
	ActionPreviousTrack
)

// String implements the fmt.Stringer interface.
func (a Action) String() string {
	switch a {
	case ActionPlay:
		return "play"
	case ActionPause:
		return "pause"
	case ActionStop:
		return "stop"
	case ActionSeek:
		return "seek"
	case ActionSetVolume:
		return "set_volume"
	case ActionToggleMute:
		return "toggle_mute"
	case ActionNextTrack:
		return "next_track"
	case ActionPreviousTrack:
		return "previous_track"
	default:
		return "unknown"
	}
}

// priorityOrder is the fixed eligibility order for action dispatch. It is
// not a strict override: a source may act if it is the active source, or if
// it is local. Local always has floor control.
var priorityOrder = []domain.ControlSource{
	domain.ControlSourceLocal,
	domain.ControlSourceRemote,
	domain.ControlSourceServer,
}

// sourceAllows reports whether a source's static capability flags permit
// the action. Local permits everything; remote and server permit everything
// except volume control.
func sourceAllows(source domain.ControlSource, action Action) bool {
	if source == domain.ControlSourceLocal {
		return true
	}
	return action != ActionSetVolume && action != ActionToggleMute
}

// PendingTransfer is a control handoff awaiting resolution.
type PendingTransfer struct {
	FromSource       domain.ControlSource
	ToSource         domain.ControlSource
	ConfirmRequired  bool
	SecondsRemaining int
}

// Arbitrator owns the active control source and the transfer-confirmation
// state machine. Arbitration failures are booleans, never errors: a caller
// receiving false owns its own user feedback.
type Arbitrator struct {
	bus      *event.Bus
	interval time.Duration
	logger   *slog.Logger

	mu            sync.Mutex
	active        domain.ControlSource
	remoteName    string
	pending       *PendingTransfer
	countdownStop chan struct{}
}

// NewArbitratorParams contains the parameters for building a new
// Arbitrator.
type NewArbitratorParams struct {
	Bus               *event.Bus
	CountdownInterval time.Duration // defaults to 1 second; tests may shorten it
	Logger            *slog.Logger
}

// NewArbitrator creates a new Arbitrator. The initial active source is
// local.
func NewArbitrator(params NewArbitratorParams) *Arbitrator {
	interval := params.CountdownInterval
	if interval == 0 {
		interval = defaultCountdownInterval
	}

	return &Arbitrator{
		bus:      params.Bus,
		interval: interval,
		logger:   params.Logger,
	}
}

// ActiveSource returns the currently active control source.
func (a *Arbitrator) ActiveSource() domain.ControlSource {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.active
}

// Pending returns the pending transfer, if any.
func (a *Arbitrator) Pending() (PendingTransfer, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.pending == nil {
		return PendingTransfer{}, false
	}
	return *a.pending, true
}

// CanControl reports whether the source is strictly authoritative right
// now. Action dispatch is deliberately more permissive (local is always a
// fallback); callers needing strict adherence check this first.
func (a *Arbitrator) CanControl(source domain.ControlSource) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.active == source
}

// SetRemoteConnected records a remote-control client attaching or
// detaching. An attaching remote takes control immediately: only handing
// control back to local requires consent.
func (a *Arbitrator) SetRemoteConnected(connected bool, name string) {
	a.mu.Lock()

	if connected {
		a.remoteName = name
		a.setActiveLocked(domain.ControlSourceRemote, name)
	} else {
		a.remoteName = ""
		a.stopCountdownLocked()
		a.pending = nil
		if a.active == domain.ControlSourceRemote {
			a.setActiveLocked(domain.ControlSourceLocal, "")
		}
	}

	a.mu.Unlock()
}

// SetServerPlaybackState records server-driven playback state. A non-nil
// state makes the server the active source; nil returns control to local.
func (a *Arbitrator) SetServerPlaybackState(state *domain.PlayerState) {
	a.mu.Lock()

	if state != nil {
		a.setActiveLocked(domain.ControlSourceServer, "")
	} else {
		a.setActiveLocked(domain.ControlSourceLocal, "")
	}

	a.mu.Unlock()
}

// InitiateTransfer requests a control handoff. Handing control from a
// remote back to local requires confirmation within the timeout; all other
// transitions are immediate.
func (a *Arbitrator) InitiateTransfer(from, to domain.ControlSource) {
	a.mu.Lock()

	confirmRequired := from == domain.ControlSourceRemote && to == domain.ControlSourceLocal
	if !confirmRequired {
		a.setActiveLocked(to, "")
		a.mu.Unlock()
		return
	}

	a.stopCountdownLocked()
	a.pending = &PendingTransfer{
		FromSource:       from,
		ToSource:         to,
		ConfirmRequired:  true,
		SecondsRemaining: transferTimeoutSeconds,
	}
	stop := make(chan struct{})
	a.countdownStop = stop
	pending := *a.pending
	a.mu.Unlock()

	a.bus.Send(event.TransferPendingEvent{
		FromSource:       pending.FromSource,
		ToSource:         pending.ToSource,
		SecondsRemaining: pending.SecondsRemaining,
	})

	go a.countdownLoop(stop)
}

func (a *Arbitrator) countdownLoop(stop chan struct{}) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if a.tick(stop) {
				return
			}
		}
	}
}

// tick decrements the countdown, reporting true when the countdown has
// resolved.
func (a *Arbitrator) tick(stop chan struct{}) bool {
	a.mu.Lock()

	// The pending transfer may have been resolved between the tick firing
	// and the lock being acquired.
	if a.pending == nil || a.countdownStop != stop {
		a.mu.Unlock()
		return true
	}

	a.pending.SecondsRemaining--
	if a.pending.SecondsRemaining > 0 {
		pending := *a.pending
		a.mu.Unlock()

		a.bus.Send(event.TransferPendingEvent{
			FromSource:       pending.FromSource,
			ToSource:         pending.ToSource,
			SecondsRemaining: pending.SecondsRemaining,
		})
		return false
	}

	// Timed out: the transfer is cancelled, not auto-accepted. The
	// requester must re-initiate.
	a.pending = nil
	a.countdownStop = nil
	active := a.active
	a.mu.Unlock()

	a.logger.Info("Control transfer timed out", "active_source", active)
	a.bus.Send(event.TransferResolvedEvent{Accepted: false, ActiveSource: active})

	return true
}

// ConfirmTransfer accepts the pending transfer and hands control to its
// target source.
func (a *Arbitrator) ConfirmTransfer() {
	a.mu.Lock()

	if a.pending == nil {
		a.mu.Unlock()
		return
	}

	to := a.pending.ToSource
	a.pending = nil
	a.stopCountdownLocked()
	a.setActiveLocked(to, "")
	active := a.active

	a.mu.Unlock()

	a.bus.Send(event.TransferResolvedEvent{Accepted: true, ActiveSource: active})
}

// AcceptTransfer is an alias for ConfirmTransfer.
func (a *Arbitrator) AcceptTransfer() {
	a.ConfirmTransfer()
}

// CancelTransfer declines the pending transfer, leaving the active source
// unchanged.
func (a *Arbitrator) CancelTransfer() {
	a.mu.Lock()

	if a.pending == nil {
		a.mu.Unlock()
		return
	}

	a.pending = nil
	a.stopCountdownLocked()
	active := a.active

	a.mu.Unlock()

	a.bus.Send(event.TransferResolvedEvent{Accepted: false, ActiveSource: active})
}

// DeclineTransfer is an alias for CancelTransfer.
func (a *Arbitrator) DeclineTransfer() {
	a.CancelTransfer()
}

// Dispatch resolves which source may perform the action. It walks the
// priority list; a source may act if it is active or if it is local, and
// its capability flags permit the action. The accepting source becomes
// active. Returns false, with no state change, if no source qualifies.
//
// Local acting as a fallback even when another source is nominally active
// is longstanding behaviour which callers depend on; use CanControl for
// strict checks.
func (a *Arbitrator) Dispatch(action Action) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, candidate := range priorityOrder {
		if candidate != a.active && candidate != domain.ControlSourceLocal {
			continue
		}
		if !sourceAllows(candidate, action) {
			continue
		}

		a.setActiveLocked(candidate, a.nameForLocked(candidate))
		return true
	}

	return false
}

func (a *Arbitrator) nameForLocked(source domain.ControlSource) string {
	if source == domain.ControlSourceRemote {
		return a.remoteName
	}
	return ""
}

// setActiveLocked updates the active source and publishes the change. The
// caller must hold the mutex.
func (a *Arbitrator) setActiveLocked(source domain.ControlSource, name string) {
	if a.active == source {
		return
	}

	a.active = source
	a.bus.Send(event.ControlSourceChangedEvent{Source: source, Name: name})
}

// stopCountdownLocked cancels any running countdown. The caller must hold
// the mutex. Every resolution path must call this so the ticker goroutine
// is never leaked.
func (a *Arbitrator) stopCountdownLocked() {
	if a.countdownStop != nil {
		close(a.countdownStop)
		a.countdownStop = nil
	}
}
