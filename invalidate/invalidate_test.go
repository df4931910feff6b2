package invalidate

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/heyxyz/heycache"
	"github.com/heyxyz/heycache/keys"
	"github.com/heyxyz/heycache/provider/memory"
)

var features = FeatureIDs{Verified: "feat-verified", StaffPick: "feat-staff-pick"}

func seeded(t *testing.T, ks ...string) *heycache.Cache {
	t.Helper()
	c, err := heycache.New(heycache.Options{Provider: memory.New()})
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range ks {
		c.SetText(context.Background(), k, "cached", time.Hour)
	}
	return c
}

func present(c *heycache.Cache, k string) bool {
	_, ok := c.Get(context.Background(), k)
	return ok
}

func TestFeatureToggleNotVerified(t *testing.T) {
	ctx := context.Background()
	c := seeded(t, keys.Preference("P"), keys.Profile("P"), keys.Verified, keys.Profile("Q"))
	co := New(DefaultRegistry(features), c, Options{})

	got, err := co.Invalidate(ctx, FeatureToggled{ProfileID: "P", FeatureID: "feat-other", Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"preference:P", "profile:P"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
	if present(c, keys.Preference("P")) || present(c, keys.Profile("P")) {
		t.Fatalf("profile keys not invalidated")
	}
	if !present(c, keys.Verified) {
		t.Fatalf("verified list must be unaffected")
	}
	if !present(c, keys.Profile("Q")) {
		t.Fatalf("other profile must be unaffected")
	}
}

func TestFeatureToggleVerified(t *testing.T) {
	ctx := context.Background()
	c := seeded(t, keys.Preference("P"), keys.Profile("P"), keys.Verified, keys.StaffPicks)
	co := New(DefaultRegistry(features), c, Options{})

	if _, err := co.Invalidate(ctx, FeatureToggled{ProfileID: "P", FeatureID: "feat-verified"}); err != nil {
		t.Fatal(err)
	}
	for _, k := range []string{keys.Preference("P"), keys.Profile("P"), keys.Verified} {
		if present(c, k) {
			t.Fatalf("%s not invalidated", k)
		}
	}
	if !present(c, keys.StaffPicks) {
		t.Fatalf("staff picks must be unaffected by the verified feature")
	}
}

func TestRegistryMappings(t *testing.T) {
	r := DefaultRegistry(features)
	cases := []struct {
		m    Mutation
		want []string
	}{
		{FeatureToggled{ProfileID: "P", FeatureID: "feat-staff-pick"}, []string{"preference:P", "profile:P", "staff-picks"}},
		{AllowedTokenCreated{ID: "t1", Address: "0xabc"}, []string{"allowedTokens"}},
		{AllowedTokenDeleted{ID: "t1"}, []string{"allowedTokens"}},
		{PollResponded{PollID: "poll-1", ProfileID: "P"}, []string{"poll:poll-1"}},
	}
	for _, tc := range cases {
		got, err := r.Keys(tc.m)
		if err != nil {
			t.Fatalf("%s: %v", tc.m.Kind(), err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("%s: keys = %v, want %v", tc.m.Kind(), got, tc.want)
		}
	}
	if n := len(r.Kinds()); n != 4 {
		t.Fatalf("kinds = %v", r.Kinds())
	}
}

func TestEmptyFeatureIDsNeverMatch(t *testing.T) {
	r := DefaultRegistry(FeatureIDs{})
	got, err := r.Keys(FeatureToggled{ProfileID: "P", FeatureID: ""})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("keys = %v", got)
	}
}

type unknownWrite struct{}

func (unknownWrite) Kind() Kind { return "unknown_write" }

func TestUnmapped(t *testing.T) {
	co := New(DefaultRegistry(features), seeded(t), Options{})
	if _, err := co.Invalidate(context.Background(), unknownWrite{}); !errors.Is(err, ErrUnmapped) {
		t.Fatalf("err = %v, want ErrUnmapped", err)
	}
}

func TestMergedAndDeduped(t *testing.T) {
	r := NewRegistry()
	Register(r, func(m PollResponded) []string { return []string{keys.Poll(m.PollID), ""} })
	Register(r, func(m PollResponded) []string { return []string{keys.Poll(m.PollID), keys.Profile(m.ProfileID)} })

	got, err := r.Keys(PollResponded{PollID: "1", ProfileID: "P"})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"poll:1", "profile:P"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("keys = %v, want %v", got, want)
	}
}

type flakyDeleter struct {
	fail    map[string]error
	deleted []string
}

func (d *flakyDeleter) Delete(ctx context.Context, key string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := d.fail[key]; err != nil {
		return err
	}
	d.deleted = append(d.deleted, key)
	return nil
}

type recHooks struct {
	heycache.NopHooks
	invalidated []string
	failed      []string
}

func (h *recHooks) Invalidated(_ string, ks []string)     { h.invalidated = append(h.invalidated, ks...) }
func (h *recHooks) InvalidateFailed(_, k string, _ error) { h.failed = append(h.failed, k) }

func TestPartialFailure(t *testing.T) {
	down := errors.New("i/o timeout")
	d := &flakyDeleter{fail: map[string]error{"profile:P": down}}
	h := &recHooks{}
	co := New(DefaultRegistry(features), d, Options{Hooks: h})

	got, err := co.Invalidate(context.Background(), FeatureToggled{ProfileID: "P", FeatureID: "feat-verified"})
	var ie *heycache.InvalidateError
	if !errors.As(err, &ie) || !errors.Is(err, down) {
		t.Fatalf("err = %v, want *InvalidateError wrapping %v", err, down)
	}
	if !reflect.DeepEqual(ie.Keys(), []string{"profile:P"}) {
		t.Fatalf("failed keys = %v", ie.Keys())
	}
	if len(got) != 3 {
		t.Fatalf("returned keys = %v", got)
	}
	// the failure did not stop the remaining deletes
	if want := []string{"preference:P", "verified"}; !reflect.DeepEqual(d.deleted, want) {
		t.Fatalf("deleted = %v, want %v", d.deleted, want)
	}
	if !reflect.DeepEqual(h.invalidated, d.deleted) || !reflect.DeepEqual(h.failed, []string{"profile:P"}) {
		t.Fatalf("hooks: invalidated=%v failed=%v", h.invalidated, h.failed)
	}
}

func TestRunsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &flakyDeleter{}
	co := New(DefaultRegistry(features), d, Options{})
	if _, err := co.Invalidate(ctx, AllowedTokenDeleted{ID: "t1"}); err != nil {
		t.Fatalf("err = %v", err)
	}
	if len(d.deleted) != 1 {
		t.Fatalf("deleted = %v", d.deleted)
	}
}
