package notifier

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram delivers chat messages and resolves member display names over
// the bot API. The underlying HTTP client carries a bounded timeout and no
// retry logic; a failed delivery is the caller's to log.
type Telegram struct {
	bot *tgbotapi.BotAPI
}

func NewTelegram(bot *tgbotapi.BotAPI) *Telegram {
	return &Telegram{bot: bot}
}

func (t *Telegram) SendMessage(_ context.Context, chatID int64, text string, html bool) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if html {
		msg.ParseMode = tgbotapi.ModeHTML
	}
	_, err := t.bot.Send(msg)
	return err
}

func (t *Telegram) ChatMemberName(_ context.Context, chatID, userID int64) (string, error) {
	member, err := t.bot.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		return "", err
	}

	name := strings.TrimSpace(member.User.FirstName + " " + member.User.LastName)
	if name == "" {
		name = member.User.UserName
	}
	return name, nil
}
