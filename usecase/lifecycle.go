package usecase

import (
	"context"

	"github.com/qmuntal/stateless"
	"go.uber.org/zap"

	"github.com/unclepete-20/chatbot-test/utils/log"
)

// ConnState is the lifecycle state of one relay connection.
type ConnState string

const (
	StateConnecting ConnState = "Connecting"
	StateWelcoming  ConnState = "Welcoming"
	StateActive     ConnState = "Active"
	StateClosed     ConnState = "Closed" // terminal
)

type connTrigger string

const (
	triggerAccept     connTrigger = "Accept"
	triggerWelcomed   connTrigger = "Welcomed"
	triggerDisconnect connTrigger = "Disconnect"
	triggerTurnFailed connTrigger = "TurnFailed"
)

// Lifecycle tracks a connection through Connecting, Welcoming, Active and
// Closed. Firing a trigger the current state does not permit is an error.
type Lifecycle struct {
	sm *stateless.StateMachine
}

func NewLifecycle(ctx context.Context) *Lifecycle {
	sm := stateless.NewStateMachine(StateConnecting)

	sm.Configure(StateConnecting).
		Permit(triggerAccept, StateWelcoming).
		Permit(triggerDisconnect, StateClosed)

	sm.Configure(StateWelcoming).
		Permit(triggerWelcomed, StateActive).
		Permit(triggerDisconnect, StateClosed)

	sm.Configure(StateActive).
		Permit(triggerDisconnect, StateClosed).
		Permit(triggerTurnFailed, StateClosed)

	sm.Configure(StateClosed)

	logger := log.WithCtx(ctx)
	sm.OnTransitioned(func(_ context.Context, t stateless.Transition) {
		logger.Debug("Connection state changed",
			zap.Any("from", t.Source),
			zap.Any("to", t.Destination),
			zap.Any("trigger", t.Trigger))
	})

	return &Lifecycle{sm: sm}
}

// fire ignores ctx cancellation: a disconnect must still reach Closed.
func (l *Lifecycle) fire(ctx context.Context, trigger connTrigger) error {
	return l.sm.FireCtx(context.WithoutCancel(ctx), trigger)
}

// State returns the current state.
func (l *Lifecycle) State() ConnState {
	return l.sm.MustState().(ConnState)
}

func (l *Lifecycle) Closed() bool {
	return l.State() == StateClosed
}
