package models

import (
	"sort"
	"time"

	"github.com/akagifreeez/seed-restock-bot/internal/catalog"
)

// StockItem is one plant available in a restock
type StockItem struct {
	Name     string       `json:"name"`
	Tier     catalog.Tier `json:"tier"`
	Quantity int          `json:"quantity"`
}

// Snapshot is the inventory derived from one restock announcement.
// Items are kept grouped by tier in display order and are never mutated in place.
type Snapshot struct {
	MessageID  string      `json:"message_id"`
	ObservedAt string      `json:"observed_at"` // dd/mm/yyyy hh:mm, Moscow time
	Items      []StockItem `json:"items"`
}

// Empty reports whether the snapshot lists no items
func (s *Snapshot) Empty() bool {
	return s == nil || len(s.Items) == 0
}

// Quantity returns the quantity of an item and whether it is present
func (s *Snapshot) Quantity(name string) (int, bool) {
	if s == nil {
		return 0, false
	}
	for _, it := range s.Items {
		if it.Name == name {
			return it.Quantity, true
		}
	}
	return 0, false
}

// ItemsFromQuantities builds display-ordered items from plant quantities, grouped by
// tier and then by plant table position. Unknown plants are dropped.
func ItemsFromQuantities(found map[string]int) []StockItem {
	items := make([]StockItem, 0, len(found))
	for name, qty := range found {
		tier, ok := catalog.TierOf(name)
		if !ok {
			continue
		}
		items = append(items, StockItem{Name: name, Tier: tier, Quantity: qty})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Tier != items[j].Tier {
			return items[i].Tier < items[j].Tier
		}
		return catalog.Position(items[i].Name) < catalog.Position(items[j].Name)
	})
	return items
}

// Names lists item names in display order
func (s *Snapshot) Names() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Items))
	for _, it := range s.Items {
		names = append(names, it.Name)
	}
	return names
}

// EmbedField is a name/value pair of an embedded payload
type EmbedField struct {
	Name  string
	Value string
}

// Embed is one structured payload attached to a channel message
type Embed struct {
	Title      string
	AuthorName string
	Fields     []EmbedField
}

// Message is a channel message as seen by the poller
type Message struct {
	ID        string
	Timestamp string
	Embeds    []Embed
}

// UserPreference holds a user's confirmed notification filter
type UserPreference struct {
	UserID    int64           `json:"user_id" db:"user_id"`
	Ignored   catalog.TierSet `json:"ignored_rarities" db:"ignored_rarities"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt time.Time       `json:"updated_at" db:"updated_at"`
}

// DispatchReport summarizes one fan-out batch
type DispatchReport struct {
	BatchID  string `json:"batch_id"`
	Total    int    `json:"total"`
	Notified int    `json:"notified"`
	Skipped  int    `json:"skipped"` // filtered out by preference
	Failed   int    `json:"failed"`  // every failed delivery, Notified+Skipped+Failed == Total
	Removed  int    `json:"removed"` // failed subscribers that were unreachable and got evicted
}

// UserStats are aggregate counters over the user base
type UserStats struct {
	TotalUsers  int `json:"total_users"`
	Subscribed  int `json:"subscribed"`
	WithFilters int `json:"with_filters"`
}
