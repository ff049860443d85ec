package tgbot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/akagifreeez/seed-restock-bot/internal/catalog"
	"github.com/akagifreeez/seed-restock-bot/internal/models"
)

// Reply keyboard buttons
const (
	ButtonStock    = "🎯УЗНАТЬ СТОК🎯"
	ButtonSettings = "⚙️ НАСТРОЙКИ"
)

// Callback data
const (
	callbackTogglePrefix      = "toggle_"
	callbackPreview           = "test_filter"
	callbackConfirm           = "confirm_changes"
	callbackCheckSubscription = "check_subscription"
)

const (
	welcomeText = "🤖 Бот для отслеживания стока Plants Vs Brainrots\n\n" +
		"🎯 Нажми кнопку чтобы узнать текущий сток\n" +
		"⚙️ Настрой уведомления по редкостям\n" +
		"📢 Канал: @PlantsVersusBrainrotsSTOCK\n" +
		"💬 Чат: @PlantsVersusBrainrotSTOCKCHAT"

	greetingPrefix = "👋 Добро пожаловать!\n\n"

	subscriptionText = "🔒 Для доступа к стоку нужно подписаться на канал\n\n" +
		"📢 Подпишитесь на канал и получайте:\n" +
		"• Уведомления о новом стоке\n" +
		"• Актуальную информацию о растениях\n" +
		"• Обновления первыми"

	subscriptionMissingPrefix = "❌ Подписка не найдена. Пожалуйста, подпишитесь на канал и попробуйте снова.\n\n"

	fetchingText    = "⏳ Получаем сток..."
	navigationText  = "Используй кнопки для навигации 🎯"
	storageFailText = "⚠️ Не удалось сохранить данные, попробуй еще раз позже"
	saveFailAlert   = "❌ Не удалось сохранить настройки"
	broadcastUsage  = "❌ Использование: /all <сообщение>"
)

func mainKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonStock)),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(ButtonSettings)),
	)
	kb.ResizeKeyboard = true
	return kb
}

func subscriptionKeyboard(channelURL string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL("📢 Подписаться на канал", channelURL)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Проверить подписку", callbackCheckSubscription)),
	)
}

// settingsText describes the pending set of ignored tiers
func settingsText(ignored catalog.TierSet) string {
	var b strings.Builder
	b.WriteString("⚙️ *НАСТРОЙКИ УВЕДОМЛЕНИЙ*\n\n")
	b.WriteString("🎯 *Выбери редкости которые хочешь игнорировать:*\n\n")

	if ignored.Empty() {
		b.WriteString("🔕 *Игнорируемые редкости:* Нет\n\n")
	} else {
		b.WriteString("🔕 *Игнорируемые редкости:*\n")
		for _, t := range ignored.Tiers() {
			fmt.Fprintf(&b, "├─ %s %s\n", t.Emoji(), t)
		}
		b.WriteString("\n")
	}

	b.WriteString("💡 *Настройки сохранятся только после нажатия '✅ Подтвердить'*")
	return b.String()
}

func settingsKeyboard(ignored catalog.TierSet) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(catalog.AllTiers())+2)
	for _, t := range catalog.AllTiers() {
		mark := "❌"
		if ignored.Has(t) {
			mark = "✅"
		}
		label := fmt.Sprintf("%s %s %s", mark, t.Emoji(), t)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, callbackTogglePrefix+t.String()),
		))
	}
	rows = append(rows,
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("📊 Показать текущий сток с фильтром", callbackPreview)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData("✅ Подтвердить изменения", callbackConfirm)),
	)
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func savedText(ignored catalog.TierSet) string {
	return fmt.Sprintf("✅ *Настройки сохранены!*\n\n"+
		"🔕 Игнорируемых редкостей: %d\n\n"+
		"Теперь ты будешь получать уведомления только о выбранных редкостях!", ignored.Len())
}

func broadcastResultText(r models.DispatchReport) string {
	return fmt.Sprintf("📊 Рассылка завершена:\n✅ Отправлено: %d\n❌ Ошибок: %d\n🗑 Удалено: %d",
		r.Notified, r.Failed, r.Removed)
}
