package routing

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"
)

func TestAgentRouter_SingleDestinationIsFixed(t *testing.T) {
	r := NewAgentRouter([]WeightedDestination{{TargetURI: "+911234567890", Weight: 1}}, rand.New(rand.NewSource(1)))
	for i := 0; i < 10; i++ {
		target, err := r.TransferTarget(context.Background(), "CA1")
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if target != "+911234567890" {
			t.Fatalf("unexpected target %q", target)
		}
	}
}

func TestAgentRouter_WeightedPick(t *testing.T) {
	r := NewAgentRouter([]WeightedDestination{{TargetURI: "sip:a", Weight: 1}, {TargetURI: "sip:b", Weight: 3}, {TargetURI: "sip:off", Weight: 0}}, rand.New(rand.NewSource(1)))

	counts := map[string]int{}
	for i := 0; i < 4000; i++ {
		d, err := r.Route(context.Background(), "CA1")
		if err != nil {
			t.Fatalf("unexpected err: %v", err)
		}
		if d.Action != ActionConnect {
			t.Fatalf("expected connect, got %q", d.Action)
		}
		counts[d.ConnectTo]++
	}
	if counts["sip:off"] != 0 {
		t.Fatalf("zero-weight destination must never be picked")
	}
	if counts["sip:b"] < 2*counts["sip:a"] {
		t.Fatalf("expected sip:b to dominate, got %v", counts)
	}
}

func TestAgentRouter_NoDestinationRejects(t *testing.T) {
	r := NewAgentRouter(nil, nil)
	d, err := r.Route(context.Background(), "CA1")
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if d.Action != ActionReject || d.Reason != "no_eligible_destination" {
		t.Fatalf("unexpected decision %+v", d)
	}
	if _, err := r.TransferTarget(context.Background(), "CA1"); !errors.Is(err, ErrNoDestination) {
		t.Fatalf("expected ErrNoDestination, got %v", err)
	}
	if _, err := r.Route(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty call id")
	}
}

func TestAgentRouter_OverrideWins(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	store := NewMemoryOverrideStore()
	_ = store.SetOverride(context.Background(), Override{CallID: "CA1", ConnectTo: "sip:desk", ExpiresAt: now.Add(time.Minute)})
	oe := NewOverrideEngine(store, nil)
	oe.Now = func() time.Time { return now }

	r := NewAgentRouter([]WeightedDestination{{TargetURI: "+911234567890", Weight: 1}}, nil)
	r.Overrides = oe

	if target, _ := r.TransferTarget(context.Background(), "CA1"); target != "sip:desk" {
		t.Fatalf("expected override target, got %q", target)
	}
	if target, _ := r.TransferTarget(context.Background(), "CA2"); target != "+911234567890" {
		t.Fatalf("expected default target for other call, got %q", target)
	}
}

func TestParseDestinations(t *testing.T) {
	cases := []struct {
		in      string
		want    []WeightedDestination
		wantErr bool
	}{
		{in: "+911234567890", want: []WeightedDestination{{TargetURI: "+911234567890", Weight: 1}}},
		{in: " sip:a@pbx=2 , +15550001111=1 ,", want: []WeightedDestination{{TargetURI: "sip:a@pbx", Weight: 2}, {TargetURI: "+15550001111", Weight: 1}}},
		{in: "", wantErr: true},
		{in: "sip:a=0", wantErr: true},
		{in: "sip:a=x", want: []WeightedDestination{{TargetURI: "sip:a=x", Weight: 1}}},
		{in: "sip:desk@pbx.example.com;transport=tls", want: []WeightedDestination{{TargetURI: "sip:desk@pbx.example.com;transport=tls", Weight: 1}}},
		{in: "sip:desk@pbx.example.com;transport=tls=4", want: []WeightedDestination{{TargetURI: "sip:desk@pbx.example.com;transport=tls", Weight: 4}}},
		{in: "=3", wantErr: true},
		{in: "sip:a=99999999999999999999", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseDestinations(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%q: expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected err: %v", tc.in, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("%q: got %+v", tc.in, got)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("%q: got %+v want %+v", tc.in, got, tc.want)
			}
		}
	}
}
