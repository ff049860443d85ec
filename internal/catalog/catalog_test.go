package catalog

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseTier(t *testing.T) {
	tests := []struct {
		in      string
		want    Tier
		wantErr bool
	}{
		{"RARE", TierRare, false},
		{"secret", TierSecret, false},
		{" Godly ", TierGodly, false},
		{"COMMON", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseTier(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownTier) {
				t.Errorf("ParseTier(%q) error = %v, want ErrUnknownTier", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseTier(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
}

func TestTierOrder(t *testing.T) {
	want := []string{"RARE", "EPIC", "LEGENDARY", "MYTHIC", "GODLY", "SECRET"}
	tiers := AllTiers()
	if len(tiers) != len(want) {
		t.Fatalf("expected %d tiers, got %d", len(want), len(tiers))
	}
	for i, tier := range tiers {
		if tier.String() != want[i] {
			t.Errorf("tier %d = %s, want %s", i, tier, want[i])
		}
	}
}

func TestTierSetToggle(t *testing.T) {
	var s TierSet
	s = s.Toggle(TierSecret)
	if !s.Has(TierSecret) || s.Len() != 1 {
		t.Fatalf("expected {SECRET}, got %s", s)
	}
	s = s.Toggle(TierRare)
	s = s.Toggle(TierSecret)
	if s.Has(TierSecret) || !s.Has(TierRare) {
		t.Fatalf("expected {RARE}, got %s", s)
	}

	if NewTierSet(Tier(42)) != 0 {
		t.Error("invalid tier must not enter a set")
	}
}

func TestTierSetTiersInDisplayOrder(t *testing.T) {
	s := NewTierSet(TierSecret, TierRare, TierMythic)
	got := s.Names()
	want := []string{"RARE", "MYTHIC", "SECRET"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestTierSetJSON(t *testing.T) {
	s := NewTierSet(TierEpic, TierGodly)
	data, err := json.Marshal(s)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `["EPIC","GODLY"]` {
		t.Errorf("unexpected encoding %s", data)
	}

	var back TierSet
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back != s {
		t.Errorf("decoded %s, want %s", back, s)
	}

	var empty TierSet
	if err := json.Unmarshal([]byte(`[]`), &empty); err != nil || !empty.Empty() {
		t.Errorf("empty array should decode to empty set, got %s (%v)", empty, err)
	}
	if err := json.Unmarshal([]byte(`["BOGUS"]`), &empty); !errors.Is(err, ErrUnknownTier) {
		t.Errorf("expected ErrUnknownTier, got %v", err)
	}
}

func TestLookup(t *testing.T) {
	p, ok := Lookup("Mr Carrot")
	if !ok || p.Tier != TierSecret {
		t.Fatalf("Mr Carrot lookup = %+v, %v", p, ok)
	}
	if _, ok := Lookup("Potato"); ok {
		t.Error("unknown plant must not resolve")
	}
	if Position("Cactus") != 0 || Position("Potato") != -1 {
		t.Error("unexpected table positions")
	}
	if len(Plants()) != 13 {
		t.Errorf("expected 13 plants, got %d", len(Plants()))
	}
}

func TestTierOf(t *testing.T) {
	if tier, ok := TierOf("Dragon Fruit"); !ok || tier != TierLegendary {
		t.Errorf("Dragon Fruit = %v, %v", tier, ok)
	}
	if _, ok := TierOf("dragon fruit"); ok {
		t.Error("TierOf must match exact names only")
	}
}
