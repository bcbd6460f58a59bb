package ivr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ivr-platform/internal/dialogue"
	"ivr-platform/internal/intent"
	"ivr-platform/internal/session"
	"ivr-platform/pkg/logger"
)

var (
	ErrInvalidCallIdentifier = errors.New("ivr: invalid call identifier")
	// ErrInternalState reports a corrupt call context (see session.ErrInternalState).
	ErrInternalState = session.ErrInternalState
)

// DefaultTransferTarget is dialed for talk_agent when no router is configured.
const DefaultTransferTarget = "+911234567890"

// TurnInput is one caller utterance (speech transcript or keypad digits).
// An empty RawText is a normal turn, e.g. the caller stayed silent.
type TurnInput struct {
	CallID  string
	RawText string
}

// TurnOutput tells the transport what to say and what to do next.
// Exactly one of KeepListening, Terminate or a non-empty TransferTarget is set.
type TurnOutput struct {
	Utterance      string `json:"utterance"`
	KeepListening  bool   `json:"keep_listening"`
	Terminate      bool   `json:"terminate"`
	TransferTarget string `json:"transfer_target,omitempty"`
}

// TransferRouter chooses where a talk_agent call is handed off.
type TransferRouter interface {
	TransferTarget(ctx context.Context, callID string) (string, error)
}

type fixedTarget string

func (f fixedTarget) TransferTarget(context.Context, string) (string, error) { return string(f), nil }

// Options configures an Engine. Nil fields fall back to defaults.
type Options struct {
	Classifier *intent.Classifier
	Machine    *dialogue.Machine
	Transfer   TransferRouter
	Observers  []Observer
	Now        func() time.Time
}

// Engine is the turn orchestrator and the only entry point transports use.
// It is safe for concurrent use; all call state lives in the store.
type Engine struct {
	store      session.Store
	classifier *intent.Classifier
	machine    *dialogue.Machine
	transfer   TransferRouter
	observers  []Observer
	now        func() time.Time
}

func NewEngine(store session.Store, opts Options) *Engine {
	e := &Engine{
		store:      store,
		classifier: opts.Classifier,
		machine:    opts.Machine,
		transfer:   opts.Transfer,
		observers:  opts.Observers,
		now:        opts.Now,
	}
	if e.classifier == nil {
		e.classifier = intent.NewClassifier()
	}
	if e.machine == nil {
		e.machine = dialogue.NewMachine(dialogue.DefaultPrompts())
	}
	if e.transfer == nil {
		e.transfer = fixedTarget(DefaultTransferTarget)
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Greeting is the welcome menu spoken when a call connects.
func (e *Engine) Greeting() string { return e.machine.Prompts().Greeting }

// Apology is spoken when a turn fails.
func (e *Engine) Apology() string { return e.machine.Prompts().Apology }

// HandleTurn classifies the input, advances the call's dialogue and stores the
// result as one transaction. A terminated call's context is removed right away.
func (e *Engine) HandleTurn(ctx context.Context, in TurnInput) (TurnOutput, error) {
	start := e.now()
	callID := strings.TrimSpace(in.CallID)
	if callID == "" {
		e.turnFailed(ctx, in.CallID, ErrInvalidCallIdentifier)
		return TurnOutput{}, ErrInvalidCallIdentifier
	}
	log := logger.From(ctx).With("call_id", callID)

	in.RawText = strings.TrimSpace(in.RawText)
	it, rule := e.classifier.ClassifyRule(in.RawText)

	var (
		res     dialogue.Result
		created bool
	)
	_, err := e.store.Update(ctx, callID, func(cur dialogue.CallContext) (dialogue.CallContext, bool, error) {
		created = cur.CreatedAt.IsZero()
		res = e.machine.Advance(cur, it, in.RawText)
		return res.Context, res.Signal != dialogue.SignalTerminate, nil
	})
	if err != nil {
		if errors.Is(err, session.ErrInvalidCallID) {
			err = ErrInvalidCallIdentifier
		}
		e.turnFailed(ctx, callID, err)
		log.Error("turn failed", "err", err.Error())
		return TurnOutput{}, err
	}

	out := TurnOutput{Utterance: res.Utterance}
	switch res.Signal {
	case dialogue.SignalTerminate:
		out.Terminate = true
	case dialogue.SignalTransfer:
		target, err := e.transfer.TransferTarget(ctx, callID)
		if err != nil {
			err = fmt.Errorf("ivr: transfer target: %w", err)
			e.turnFailed(ctx, callID, err)
			log.Error("turn failed", "err", err.Error())
			return TurnOutput{}, err
		}
		out.TransferTarget = target
	default:
		out.KeepListening = true
	}

	rec := TurnRecord{
		CallID:         callID,
		Intent:         it,
		Rule:           rule,
		Signal:         res.Signal,
		Phase:          res.Context.Phase,
		TransferTarget: out.TransferTarget,
		CallStarted:    created && res.Signal != dialogue.SignalTerminate,
		CallEnded:      !created && res.Signal == dialogue.SignalTerminate,
		Duration:       e.now().Sub(start),
	}
	log.Info("turn handled", "intent", it.String(), "rule", rule, "signal", string(res.Signal), "phase", string(rec.Phase))
	log.Debug("turn input", "raw_text", in.RawText)
	for _, o := range e.observers {
		o.TurnHandled(ctx, rec)
	}
	return out, nil
}

// EndCall removes the call's context. It is idempotent.
func (e *Engine) EndCall(ctx context.Context, callID string) error {
	return e.End(ctx, callID, EndReasonHangup)
}

// End removes the call's context and reports reason to observers when a
// context was actually removed. A turn in flight for the call finishes first.
func (e *Engine) End(ctx context.Context, callID string, reason EndReason) error {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return ErrInvalidCallIdentifier
	}
	prev, err := e.store.Update(ctx, callID, func(cur dialogue.CallContext) (dialogue.CallContext, bool, error) {
		return cur, false, nil
	})
	if errors.Is(err, session.ErrCallEnded) {
		return nil
	}
	if err != nil {
		// Corrupt record or busy lock: the context must still go.
		logger.From(ctx).Warn("end call: falling back to remove", "call_id", callID, "err", err.Error())
		if rerr := e.store.Remove(ctx, callID); rerr != nil {
			return rerr
		}
		prev = dialogue.CallContext{CreatedAt: e.now()}
	}
	if prev.CreatedAt.IsZero() {
		return nil
	}
	logger.From(ctx).Info("call ended", "call_id", callID, "reason", string(reason))
	for _, o := range e.observers {
		o.CallEnded(ctx, callID, reason)
	}
	return nil
}

// Lookup returns the stored context for callID and whether the call is live.
func (e *Engine) Lookup(ctx context.Context, callID string) (dialogue.CallContext, bool, error) {
	callID = strings.TrimSpace(callID)
	if callID == "" {
		return dialogue.CallContext{}, false, ErrInvalidCallIdentifier
	}
	cc, err := e.store.Get(ctx, callID)
	if err != nil {
		return dialogue.CallContext{}, false, err
	}
	return cc, !cc.CreatedAt.IsZero(), nil
}

// Calls lists every live call context.
func (e *Engine) Calls(ctx context.Context) ([]dialogue.CallContext, error) {
	return e.store.List(ctx)
}

func (e *Engine) turnFailed(ctx context.Context, callID string, err error) {
	for _, o := range e.observers {
		o.TurnFailed(ctx, callID, err)
	}
}
