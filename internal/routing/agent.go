package routing

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ErrNoDestination is returned when no agent destination is eligible.
var ErrNoDestination = errors.New("routing: no eligible agent destination")

// WeightedDestination is one agent hand-off target.
type WeightedDestination struct {
	// TargetURI is a provider-agnostic dial target.
	// Examples:
	// - sip:agent-123@pbx.example.com
	// - +911234567890
	TargetURI string

	// Weight must be > 0.
	Weight int
}

// AgentRouter chooses where talk_agent calls are transferred.
//
// Priority:
//  1. Active per-call override set by a supervisor
//  2. Weighted destination selection
//
// Return a decision only. No provider calls.
type AgentRouter struct {
	Overrides *OverrideEngine

	Destinations []WeightedDestination

	mu  sync.Mutex
	rng *rand.Rand
}

func NewAgentRouter(dests []WeightedDestination, rng *rand.Rand) *AgentRouter {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &AgentRouter{Destinations: dests, rng: rng}
}

func (r *AgentRouter) Route(ctx context.Context, callID string) (Decision, error) {
	if callID == "" {
		return Decision{}, errors.New("routing: call_id required")
	}

	if r.Overrides != nil {
		d, applied, err := r.Overrides.Decide(ctx, callID)
		if err != nil {
			return Decision{}, err
		}
		if applied {
			return d, nil
		}
	}

	if dest, ok := r.pickDestination(); ok {
		return Decision{CallID: callID, Action: ActionConnect, ConnectTo: dest, Reason: "selected"}, nil
	}
	return Decision{CallID: callID, Action: ActionReject, Reason: "no_eligible_destination"}, nil
}

// TransferTarget returns the dial target for callID, or ErrNoDestination.
func (r *AgentRouter) TransferTarget(ctx context.Context, callID string) (string, error) {
	d, err := r.Route(ctx, callID)
	if err != nil {
		return "", err
	}
	if d.Action != ActionConnect {
		return "", ErrNoDestination
	}
	return d.ConnectTo, nil
}

func (r *AgentRouter) pickDestination() (string, bool) {
	var total int
	for _, d := range r.Destinations {
		if d.Weight <= 0 {
			continue
		}
		total += d.Weight
	}
	if total <= 0 {
		return "", false
	}

	// *rand.Rand is not safe for concurrent use.
	r.mu.Lock()
	n := r.rng.Intn(total) // 0..total-1
	r.mu.Unlock()

	var acc int
	for _, d := range r.Destinations {
		if d.Weight <= 0 {
			continue
		}
		acc += d.Weight
		if n < acc {
			return d.TargetURI, true
		}
	}
	return "", false
}

// ParseDestinations parses a comma separated list of target[=weight] entries,
// e.g. "+911234567890=3,sip:desk@pbx.example.com;transport=tls". Only an
// all-digit suffix after the last "=" is a weight; weight defaults to 1.
func ParseDestinations(s string) ([]WeightedDestination, error) {
	var out []WeightedDestination
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		target, weight := part, 1
		if i := strings.LastIndex(part, "="); i >= 0 && isDigits(strings.TrimSpace(part[i+1:])) {
			w, err := strconv.Atoi(strings.TrimSpace(part[i+1:]))
			if err != nil || w <= 0 {
				return nil, fmt.Errorf("routing: invalid weight in %q", part)
			}
			target, weight = strings.TrimSpace(part[:i]), w
		}
		if target == "" {
			return nil, fmt.Errorf("routing: empty target in %q", part)
		}
		out = append(out, WeightedDestination{TargetURI: target, Weight: weight})
	}
	if len(out) == 0 {
		return nil, ErrNoDestination
	}
	return out, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
