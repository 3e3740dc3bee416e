package control_test

import (
	"testing"
	"time"

	"github.com/playhead/playhead/internal/control"
	"github.com/playhead/playhead/internal/domain"
	"github.com/playhead/playhead/internal/event"
	"github.com/playhead/playhead/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestArbitrator(t *testing.T) (*control.Arbitrator, *event.Bus) {
	t.Helper()

	bus := event.NewBus(testhelpers.NewNopLogger())
	arb := control.NewArbitrator(control.NewArbitratorParams{
		Bus:               bus,
		CountdownInterval: 5 * time.Millisecond,
		Logger:            testhelpers.NewNopLogger(),
	})

	return arb, bus
}

func TestArbitratorInitialState(t *testing.T) {
	arb, _ := newTestArbitrator(t)

	assert.Equal(t, domain.ControlSourceLocal, arb.ActiveSource())
	_, pending := arb.Pending()
	assert.False(t, pending)
}

func TestSetRemoteConnected(t *testing.T) {
	arb, bus := newTestArbitrator(t)
	eventC := bus.Register()

	// a remote attaching is not a transfer requiring consent
	arb.SetRemoteConnected(true, "living room")
	assert.Equal(t, domain.ControlSourceRemote, arb.ActiveSource())
	_, pending := arb.Pending()
	assert.False(t, pending)

	evt := testhelpers.ChanRecv(t, eventC, time.Second).(event.ControlSourceChangedEvent)
	assert.Equal(t, domain.ControlSourceRemote, evt.Source)
	assert.Equal(t, "living room", evt.Name)

	// detaching returns control to local
	arb.SetRemoteConnected(false, "")
	assert.Equal(t, domain.ControlSourceLocal, arb.ActiveSource())
}

func TestSetServerPlaybackState(t *testing.T) {
	arb, _ := newTestArbitrator(t)

	arb.SetServerPlaybackState(&domain.PlayerState{Status: domain.PlaybackStatusPlaying})
	assert.Equal(t, domain.ControlSourceServer, arb.ActiveSource())

	arb.SetServerPlaybackState(nil)
	assert.Equal(t, domain.ControlSourceLocal, arb.ActiveSource())
}

func TestInitiateTransferRemoteToLocalRequiresConfirmation(t *testing.T) {
	arb, _ := newTestArbitrator(t)

	arb.SetRemoteConnected(true, "living room")
	arb.InitiateTransfer(domain.ControlSourceRemote, domain.ControlSourceLocal)

	pending, ok := arb.Pending()
	require.True(t, ok)
	assert.True(t, pending.ConfirmRequired)
	assert.Equal(t, 20, pending.SecondsRemaining)
	assert.Equal(t, domain.ControlSourceRemote, arb.ActiveSource())
}

func TestInitiateTransferOtherPairsAreImmediate(t *testing.T) {
	arb, _ := newTestArbitrator(t)

	arb.InitiateTransfer(domain.ControlSourceLocal, domain.ControlSourceRemote)

	assert.Equal(t, domain.ControlSourceRemote, arb.ActiveSource())
	_, pending := arb.Pending()
	assert.False(t, pending)
}

func TestConfirmTransfer(t *testing.T) {
	arb, bus := newTestArbitrator(t)

	arb.SetRemoteConnected(true, "living room")
	arb.InitiateTransfer(domain.ControlSourceRemote, domain.ControlSourceLocal)

	eventC := bus.Register()
	arb.ConfirmTransfer()

	assert.Equal(t, domain.ControlSourceLocal, arb.ActiveSource())
	_, pending := arb.Pending()
	assert.False(t, pending)

	var resolved event.TransferResolvedEvent
	for {
		evt := testhelpers.ChanRecv(t, eventC, time.Second)
		if r, ok := evt.(event.TransferResolvedEvent); ok {
			resolved = r
			break
		}
	}
	assert.True(t, resolved.Accepted)
	assert.Equal(t, domain.ControlSourceLocal, resolved.ActiveSource)
}

func TestCancelTransferLeavesActiveSourceUnchanged(t *testing.T) {
	arb, _ := newTestArbitrator(t)

	arb.SetRemoteConnected(true, "living room")
	arb.InitiateTransfer(domain.ControlSourceRemote, domain.ControlSourceLocal)
	arb.CancelTransfer()

	assert.Equal(t, domain.ControlSourceRemote, arb.ActiveSource())
	_, pending := arb.Pending()
	assert.False(t, pending)
}

func TestTransferTimeoutResolvesAsCancel(t *testing.T) {
	arb, bus := newTestArbitrator(t)

	arb.SetRemoteConnected(true, "living room")
	eventC := bus.Register()
	arb.InitiateTransfer(domain.ControlSourceRemote, domain.ControlSourceLocal)

	// 20 ticks at 5ms: wait for the resolution event
	var resolved event.TransferResolvedEvent
	deadline := time.After(2 * time.Second)
loop:
	for {
		select {
		case evt := <-eventC:
			if r, ok := evt.(event.TransferResolvedEvent); ok {
				resolved = r
				break loop
			}
		case <-deadline:
			require.Fail(t, "timed out waiting for transfer resolution")
		}
	}

	// the transfer is cancelled, not auto-accepted
	assert.False(t, resolved.Accepted)
	assert.Equal(t, domain.ControlSourceRemote, arb.ActiveSource())
	_, pending := arb.Pending()
	assert.False(t, pending)
}

func TestTransferCountdownTicks(t *testing.T) {
	arb, bus := newTestArbitrator(t)

	arb.SetRemoteConnected(true, "living room")
	eventC := bus.Register()
	arb.InitiateTransfer(domain.ControlSourceRemote, domain.ControlSourceLocal)

	first := testhelpers.ChanRecv(t, eventC, time.Second).(event.TransferPendingEvent)
	assert.Equal(t, 20, first.SecondsRemaining)

	second := testhelpers.ChanRecv(t, eventC, time.Second).(event.TransferPendingEvent)
	assert.Equal(t, 19, second.SecondsRemaining)
}

func TestDispatchLocalFallback(t *testing.T) {
	arb, _ := newTestArbitrator(t)

	// server is active; volume is not in the server's capabilities but
	// local picks it up as fallback
	arb.SetServerPlaybackState(&domain.PlayerState{})
	require.Equal(t, domain.ControlSourceServer, arb.ActiveSource())

	assert.True(t, arb.Dispatch(control.ActionSetVolume))
	assert.Equal(t, domain.ControlSourceLocal, arb.ActiveSource())
}

func TestDispatchLocalAlwaysWins(t *testing.T) {
	arb, _ := newTestArbitrator(t)

	arb.SetRemoteConnected(true, "living room")
	require.Equal(t, domain.ControlSourceRemote, arb.ActiveSource())

	// local precedes remote in the priority order and permits everything,
	// so it accepts even though remote is active
	assert.True(t, arb.Dispatch(control.ActionPlay))
	assert.Equal(t, domain.ControlSourceLocal, arb.ActiveSource())
}

func TestCanControl(t *testing.T) {
	arb, _ := newTestArbitrator(t)

	assert.True(t, arb.CanControl(domain.ControlSourceLocal))
	assert.False(t, arb.CanControl(domain.ControlSourceRemote))

	arb.SetRemoteConnected(true, "living room")
	assert.True(t, arb.CanControl(domain.ControlSourceRemote))
	assert.False(t, arb.CanControl(domain.ControlSourceLocal))
}

func TestRemoteDisconnectClearsPendingTransfer(t *testing.T) {
	arb, _ := newTestArbitrator(t)

	arb.SetRemoteConnected(true, "living room")
	arb.InitiateTransfer(domain.ControlSourceRemote, domain.ControlSourceLocal)
	arb.SetRemoteConnected(false, "")

	assert.Equal(t, domain.ControlSourceLocal, arb.ActiveSource())
	_, pending := arb.Pending()
	assert.False(t, pending)
}
