package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownTier is returned when a tier name is not part of the rarity enum
var ErrUnknownTier = errors.New("unknown rarity tier")

// Tier is a rarity classification. Declaration order is display order.
type Tier int

const (
	TierRare Tier = iota
	TierEpic
	TierLegendary
	TierMythic
	TierGodly
	TierSecret

	tierCount
)

var tierNames = [tierCount]string{"RARE", "EPIC", "LEGENDARY", "MYTHIC", "GODLY", "SECRET"}

var tierEmoji = [tierCount]string{"🔵", "🟣", "🟡", "🔴", "🌈", "🔲"}

func (t Tier) String() string {
	if !t.Valid() {
		return fmt.Sprintf("Tier(%d)", int(t))
	}
	return tierNames[t]
}

// Valid reports whether t is one of the declared tiers
func (t Tier) Valid() bool {
	return t >= 0 && t < tierCount
}

// Emoji returns the display marker for the tier
func (t Tier) Emoji() string {
	if !t.Valid() {
		return "⚪"
	}
	return tierEmoji[t]
}

// MarshalText encodes the tier by name
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTier, int(t))
	}
	return []byte(t.String()), nil
}

func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseTier resolves a tier by its name, case-insensitively
func ParseTier(name string) (Tier, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for i, n := range tierNames {
		if n == name {
			return Tier(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTier, name)
}

// AllTiers returns every tier in display order
func AllTiers() []Tier {
	tiers := make([]Tier, tierCount)
	for i := range tiers {
		tiers[i] = Tier(i)
	}
	return tiers
}

// TierSet is a set of tiers. The zero value is the empty set.
type TierSet uint8

// NewTierSet builds a set from the given tiers, ignoring invalid ones
func NewTierSet(tiers ...Tier) TierSet {
	var s TierSet
	for _, t := range tiers {
		if t.Valid() {
			s |= 1 << uint(t)
		}
	}
	return s
}

// ParseTierSet builds a set from tier names
func ParseTierSet(names []string) (TierSet, error) {
	var s TierSet
	for _, n := range names {
		t, err := ParseTier(n)
		if err != nil {
			return 0, err
		}
		s = s.With(t)
	}
	return s, nil
}

func (s TierSet) Has(t Tier) bool {
	return t.Valid() && s&(1<<uint(t)) != 0
}

func (s TierSet) With(t Tier) TierSet {
	return s | NewTierSet(t)
}

func (s TierSet) Without(t Tier) TierSet {
	return s &^ NewTierSet(t)
}

// Toggle flips membership of t
func (s TierSet) Toggle(t Tier) TierSet {
	if s.Has(t) {
		return s.Without(t)
	}
	return s.With(t)
}

func (s TierSet) Union(o TierSet) TierSet {
	return s | o
}

func (s TierSet) Empty() bool {
	return s == 0
}

func (s TierSet) Len() int {
	n := 0
	for _, t := range AllTiers() {
		if s.Has(t) {
			n++
		}
	}
	return n
}

// Tiers lists the members in display order
func (s TierSet) Tiers() []Tier {
	tiers := []Tier{}
	for _, t := range AllTiers() {
		if s.Has(t) {
			tiers = append(tiers, t)
		}
	}
	return tiers
}

// Names lists the member names in display order
func (s TierSet) Names() []string {
	names := []string{}
	for _, t := range s.Tiers() {
		names = append(names, t.String())
	}
	return names
}

func (s TierSet) String() string {
	return "[" + strings.Join(s.Names(), ",") + "]"
}

// MarshalJSON encodes the set as an array of tier names
func (s TierSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Names())
}

// UnmarshalJSON accepts an array of tier names; null decodes to the empty set
func (s *TierSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	set, err := ParseTierSet(names)
	if err != nil {
		return err
	}
	*s = set
	return nil
}

// Plant is one known item of the seed shop
type Plant struct {
	Name  string
	Tier  Tier
	Emoji string
}

// Table order is significant: extraction takes the first plant that matches a field label.
var plants = []Plant{
	{"Cactus", TierRare, "🌵"},
	{"Strawberry", TierRare, "🍓"},
	{"Pumpkin", TierEpic, "🎃"},
	{"Sunflower", TierEpic, "🌻"},
	{"Dragon Fruit", TierLegendary, "🐉"},
	{"Eggplant", TierLegendary, "🍆"},
	{"Watermelon", TierMythic, "🍉"},
	{"Grape", TierMythic, "🍇"},
	{"Cocotank", TierGodly, "🥥"},
	{"Carnivorous Plant", TierGodly, "🌿"},
	{"Mr Carrot", TierSecret, "🥕"},
	{"Tomatrio", TierSecret, "🍅"},
	{"Shroombino", TierSecret, "🍄"},
}

var plantIndex = func() map[string]int {
	idx := make(map[string]int, len(plants))
	for i, p := range plants {
		idx[p.Name] = i
	}
	return idx
}()

// Plants returns a copy of the plant table in table order
func Plants() []Plant {
	out := make([]Plant, len(plants))
	copy(out, plants)
	return out
}

// Lookup finds a plant by its exact name
func Lookup(name string) (Plant, bool) {
	i, ok := plantIndex[name]
	if !ok {
		return Plant{}, false
	}
	return plants[i], true
}

// TierOf returns the tier of a known plant
func TierOf(name string) (Tier, bool) {
	p, ok := Lookup(name)
	return p.Tier, ok
}

// Position returns the table position of a plant, or -1 if it is not known
func Position(name string) int {
	if i, ok := plantIndex[name]; ok {
		return i
	}
	return -1
}

// PlantEmoji returns the display marker for a plant
func PlantEmoji(name string) string {
	if p, ok := Lookup(name); ok {
		return p.Emoji
	}
	return "🌱"
}
