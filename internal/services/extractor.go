package services

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/akagifreeez/seed-restock-bot/internal/catalog"
	"github.com/akagifreeez/seed-restock-bot/internal/models"
)

const (
	// RestockTitle marks an embed as a seed shop restock announcement
	RestockTitle = "SEEDS SHOP RESTOCK!"

	// DisplayLayout is the layout of every timestamp shown to users
	DisplayLayout = "02/01/2006 15:04"

	clockMarker = "⏳"
)

// DisplayZone is the fixed display timezone (Moscow, UTC+3)
var DisplayZone = time.FixedZone("MSK", 3*60*60)

var (
	labelJunk   = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
	quantityPat = regexp.MustCompile(`\+(\d+)`)
)

// Extractor turns restock embeds into inventory snapshots
type Extractor struct {
	plants []catalog.Plant
	now    func() time.Time
}

// NewExtractor creates an Extractor over the static plant table
func NewExtractor() *Extractor {
	return &Extractor{
		plants: catalog.Plants(),
		now:    time.Now,
	}
}

// WithClock overrides the wall clock used for the timestamp fallback
func (e *Extractor) WithClock(now func() time.Time) *Extractor {
	e.now = now
	return e
}

// IsRestock reports whether the embed carries the restock marker
func IsRestock(embed models.Embed) bool {
	return embed.Title == RestockTitle
}

// ExtractMessage extracts the first restock embed of a message.
// Returns nil if the message carries no restock embed.
func (e *Extractor) ExtractMessage(msg models.Message) *models.Snapshot {
	for _, embed := range msg.Embeds {
		if !IsRestock(embed) {
			continue
		}
		snap := e.Extract(embed)
		snap.MessageID = msg.ID
		return snap
	}
	return nil
}

// Extract parses one embed. Returns nil only when the restock marker is absent;
// a marked embed without recognised fields yields an empty snapshot.
func (e *Extractor) Extract(embed models.Embed) *models.Snapshot {
	if !IsRestock(embed) {
		return nil
	}

	found := make(map[string]int)
	for _, field := range embed.Fields {
		qty, ok := parseQuantity(field.Value)
		if !ok {
			continue
		}
		if name, ok := e.match(cleanLabel(field.Name)); ok {
			found[name] = qty
		}
	}

	return &models.Snapshot{
		ObservedAt: e.observedAt(embed.AuthorName),
		Items:      models.ItemsFromQuantities(found),
	}
}

// match returns the first plant in table order whose name contains the label or is
// contained by it, case-insensitively.
func (e *Extractor) match(label string) (string, bool) {
	if label == "" {
		return "", false
	}
	label = strings.ToLower(label)
	for _, p := range e.plants {
		known := strings.ToLower(p.Name)
		if strings.Contains(label, known) || strings.Contains(known, label) {
			return p.Name, true
		}
	}
	return "", false
}

func (e *Extractor) observedAt(author string) string {
	if strings.Contains(author, clockMarker) {
		raw := strings.TrimSpace(strings.ReplaceAll(author, clockMarker, ""))
		if ts, err := ConvertAnnouncedTime(raw); err == nil {
			return ts
		}
	}
	return e.now().In(DisplayZone).Format(DisplayLayout)
}

// ConvertAnnouncedTime converts "DD/MM/YYYY @ HH:MM GMT" into display time (GMT+3)
func ConvertAnnouncedTime(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimSpace(strings.TrimSuffix(raw, "GMT"))

	date, clock, ok := strings.Cut(raw, "@")
	if !ok {
		return "", &time.ParseError{Layout: "D/M/YYYY @ H:MM GMT", Value: raw, Message: ": missing '@'"}
	}

	t, err := time.Parse("2/1/2006 15:4", strings.TrimSpace(date)+" "+strings.TrimSpace(clock))
	if err != nil {
		return "", err
	}
	return t.Add(3 * time.Hour).Format(DisplayLayout), nil
}

func cleanLabel(name string) string {
	return strings.TrimSpace(labelJunk.ReplaceAllString(name, ""))
}

func parseQuantity(value string) (int, bool) {
	m := quantityPat.FindStringSubmatch(value)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

