package services

import (
	"reflect"
	"testing"
	"time"

	"github.com/akagifreeez/seed-restock-bot/internal/catalog"
	"github.com/akagifreeez/seed-restock-bot/internal/models"
)

func TestExtract_MarkedEmbed(t *testing.T) {
	e := NewExtractor()
	snap := e.Extract(models.Embed{
		Title:      RestockTitle,
		AuthorName: "⏳01/09/2025 @ 12:30 GMT",
		Fields:     []models.EmbedField{{Name: "Cactus!", Value: "+5 in stock"}},
	})
	if snap == nil {
		t.Fatal("expected snapshot")
	}

	want := []models.StockItem{{Name: "Cactus", Tier: catalog.TierRare, Quantity: 5}}
	if !reflect.DeepEqual(snap.Items, want) {
		t.Errorf("got %+v, want %+v", snap.Items, want)
	}
	if snap.ObservedAt != "01/09/2025 15:30" {
		t.Errorf("expected converted time, got %q", snap.ObservedAt)
	}
}

func TestExtract_UnmarkedEmbed(t *testing.T) {
	e := NewExtractor()
	snap := e.Extract(models.Embed{
		Title:  "GEAR SHOP RESTOCK!",
		Fields: []models.EmbedField{{Name: "Cactus", Value: "+5"}},
	})
	if snap != nil {
		t.Errorf("expected nil, got %+v", snap)
	}
}

func TestExtract_NoRecognisedFields(t *testing.T) {
	e := NewExtractor()
	snap := e.Extract(models.Embed{
		Title:  RestockTitle,
		Fields: []models.EmbedField{{Name: "Banana", Value: "+3"}, {Name: "Cactus", Value: "sold out"}},
	})
	if snap == nil {
		t.Fatal("marked embed must yield a snapshot")
	}
	if !snap.Empty() {
		t.Errorf("expected empty snapshot, got %+v", snap.Items)
	}
}

func TestExtract_FieldParsing(t *testing.T) {
	e := NewExtractor()
	snap := e.Extract(models.Embed{
		Title: RestockTitle,
		Fields: []models.EmbedField{
			{Name: "🍄 Shroombino", Value: "x1 (+1)"},
			{Name: "Mr. Carrot", Value: "+2 stock"},
			{Name: "Grape", Value: "no quantity"},
			{Name: "!!!", Value: "+9"},
			{Name: "Strawberry", Value: "+12 then +4"},
			{Name: "Pumpkin", Value: "+3"},
		},
	})

	want := []models.StockItem{
		{Name: "Strawberry", Tier: catalog.TierRare, Quantity: 12},
		{Name: "Pumpkin", Tier: catalog.TierEpic, Quantity: 3},
		{Name: "Mr Carrot", Tier: catalog.TierSecret, Quantity: 2},
		{Name: "Shroombino", Tier: catalog.TierSecret, Quantity: 1},
	}
	if !reflect.DeepEqual(snap.Items, want) {
		t.Errorf("got %+v\nwant %+v", snap.Items, want)
	}
}

func TestExtract_SubstringMatchBothWays(t *testing.T) {
	e := NewExtractor()
	tests := []struct {
		label string
		want  string
	}{
		{"Dragon Fruit Seed", "Dragon Fruit"}, // label contains the name
		{"Carnivorous", "Carnivorous Plant"},  // name contains the label
		{"watermelon", "Watermelon"},
		{"Cocotank", "Cocotank"},
	}
	for _, tt := range tests {
		got, ok := e.match(cleanLabel(tt.label))
		if !ok || got != tt.want {
			t.Errorf("match(%q) = %q, %v; want %q", tt.label, got, ok, tt.want)
		}
	}

	// A short label matches the first plant in table order that contains it
	if got, _ := e.match("a"); got != "Cactus" {
		t.Errorf("expected first table entry, got %q", got)
	}
}

func TestExtract_Deterministic(t *testing.T) {
	e := NewExtractor().WithClock(func() time.Time { return time.Unix(0, 0) })
	embed := models.Embed{
		Title: RestockTitle,
		Fields: []models.EmbedField{
			{Name: "Tomatrio", Value: "+1"}, {Name: "Cactus", Value: "+4"}, {Name: "Eggplant", Value: "+2"},
		},
	}

	first := e.Extract(embed)
	for i := 0; i < 20; i++ {
		if got := e.Extract(embed); !reflect.DeepEqual(got, first) {
			t.Fatalf("run %d differs: %+v vs %+v", i, got, first)
		}
	}
}

func TestExtract_TimestampFallback(t *testing.T) {
	now := time.Date(2025, 9, 1, 21, 45, 0, 0, time.UTC)
	e := NewExtractor().WithClock(func() time.Time { return now })

	for _, author := range []string{"⏳garbage", "", "Restock Bot"} {
		snap := e.Extract(models.Embed{Title: RestockTitle, AuthorName: author})
		if snap.ObservedAt != "02/09/2025 00:45" {
			t.Errorf("author %q: got %q", author, snap.ObservedAt)
		}
	}
}

func TestConvertAnnouncedTime(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"01/09/2025 @ 12:30 GMT", "01/09/2025 15:30", false},
		{"1/9/2025 @ 9:05 GMT", "01/09/2025 12:05", false},
		{"31/12/2025 @ 22:10 GMT", "01/01/2026 01:10", false},
		{"01/09/2025 12:30 GMT", "", true},
		{"garbage", "", true},
	}
	for _, tt := range tests {
		got, err := ConvertAnnouncedTime(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("%q: unexpected error state: %v", tt.raw, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestExtractMessage(t *testing.T) {
	e := NewExtractor()

	msg := models.Message{
		ID: "42",
		Embeds: []models.Embed{
			{Title: "Weather"},
			{Title: RestockTitle, Fields: []models.EmbedField{{Name: "Grape", Value: "+7"}}},
		},
	}
	snap := e.ExtractMessage(msg)
	if snap == nil || snap.MessageID != "42" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if q, _ := snap.Quantity("Grape"); q != 7 {
		t.Errorf("expected Grape x7, got %d", q)
	}

	if snap := e.ExtractMessage(models.Message{ID: "43"}); snap != nil {
		t.Errorf("message without embeds should not extract, got %+v", snap)
	}
}
