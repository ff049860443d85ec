package services

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/akagifreeez/seed-restock-bot/internal/catalog"
	"github.com/akagifreeez/seed-restock-bot/internal/models"
)

// Texts shown instead of a stock listing
const (
	NoStockText = "📭 В последнем сообщении нет данных о стоке"

	FilteredEmptyText = "🌫️ *Ой, а здесь пусто!*\n\n" +
		"В текущем стоке только растения с редкостями которые ты игнорируешь.\n\n" +
		"Хочешь изменить настройки? Нажми кнопку ⚙️ НАСТРОЙКИ"

	PreviewEmptyText = "🌫️ *С твоими настройками этот сток пуст!*\n\n" +
		"Все растения в этом стоке находятся в твоем списке игнорируемых редкостей."

	StockUnavailableText = "❌ Не удалось получить сток"
)

const (
	alertHeader   = "🔥 **НОВЫЙ СТОК ОБНАРУЖЕН!** 🔥\n\n"
	currentHeader = "☔️ **АКТУАЛЬНЫЙ СТОК** ☔️\n\n"

	communityFooter = "⚡ Успей приобрести!\n\n" +
		"📢 *Присоединяйтесь к нашему сообществу:*\n" +
		"👉 Канал: @PlantsVersusBrainrotsSTOCK\n" +
		"💬 Чат: @PlantsVersusBrainrotSTOCKCHAT"
)

var printer = message.NewPrinter(language.Russian)

// Render formats a snapshot as a Telegram Markdown message. Alert style is used for
// push notifications, the plain style for on-demand stock requests.
func Render(snap *models.Snapshot, alert bool) string {
	if snap.Empty() {
		return NoStockText
	}

	var b strings.Builder
	if alert {
		b.WriteString(alertHeader)
	} else {
		b.WriteString(currentHeader)
	}
	printer.Fprintf(&b, "⏰ *Обновлено: %s МСК*\n\n", snap.ObservedAt)
	b.WriteString("🎯 **ДОСТУПНЫЕ РАСТЕНИЯ:**\n\n")

	// Items are already grouped by tier
	current := catalog.Tier(-1)
	for i, it := range snap.Items {
		if it.Tier != current {
			if i > 0 {
				b.WriteString("\n")
			}
			current = it.Tier
			printer.Fprintf(&b, "%s **%s**\n", current.Emoji(), current)
		}
		printer.Fprintf(&b, "├─ %s %s ×%d\n", catalog.PlantEmoji(it.Name), it.Name, it.Quantity)
	}
	b.WriteString("\n")

	b.WriteString(communityFooter)
	return b.String()
}

// RenderFor renders the part of a snapshot visible to a user ignoring the given tiers.
// emptyText is returned when the filter hides everything.
func RenderFor(snap *models.Snapshot, ignored catalog.TierSet, alert bool, emptyText string) string {
	if snap.Empty() {
		return NoStockText
	}
	if !ShouldNotify(snap, ignored) {
		return emptyText
	}
	return Render(VisibleSubset(snap, ignored), alert)
}

// AnnouncementText wraps an admin broadcast
func AnnouncementText(text string) string {
	return "📢 **ОБЪЯВЛЕНИЕ:**\n\n" + text
}
