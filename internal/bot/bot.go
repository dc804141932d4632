package bot

import (
	"context"
	"errors"
	"fmt"

	"activity_lottery_bot/internal/model"
	"activity_lottery_bot/internal/scheduler"
	"activity_lottery_bot/internal/service"
	"activity_lottery_bot/pkg/logger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Bot runs the long-poll update loop: it feeds group messages into the
// activity tracker, admits users who cross the threshold, and lazily
// starts the per-chat lottery scheduler on the first qualifying event.
type Bot struct {
	api        *tgbotapi.BotAPI
	activity   service.ActivityServiceI
	lotteries  service.LotteryServiceI
	schedulers *scheduler.Registry
}

func New(api *tgbotapi.BotAPI, activity service.ActivityServiceI, lotteries service.LotteryServiceI, schedulers *scheduler.Registry) *Bot {
	return &Bot{
		api:        api,
		activity:   activity,
		lotteries:  lotteries,
		schedulers: schedulers,
	}
}

func (b *Bot) Run(ctx context.Context) {
	log := logger.Logger()

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60

	updates := b.api.GetUpdatesChan(updateConfig)
	log.Info("bot update loop started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case update := <-updates:
			b.handleUpdate(ctx, update)
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	if !msg.Chat.IsGroup() && !msg.Chat.IsSuperGroup() {
		return
	}

	b.schedulers.Ensure(ctx, msg.Chat.ID)

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}
	if msg.Text == "" {
		return
	}

	b.handleMessage(ctx, msg)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	log := logger.Logger()
	chatID := msg.Chat.ID
	from := msg.From

	user, crossed, err := b.activity.RecordMessage(ctx, from.ID, from.UserName, from.FirstName, from.LastName, msg.Text)
	if err != nil {
		log.Error("failed to record message activity",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", from.ID),
			zap.Error(err))
		return
	}

	if !crossed {
		return
	}

	username := user.Username
	if username == "" {
		username = from.FirstName
	}

	_, err = b.lotteries.Admit(ctx, chatID, from.ID, username, user.DailyPoints)
	switch {
	case errors.Is(err, service.ErrAlreadyJoined):
		log.Info("user already in today's lottery", zap.Int64("chat_id", chatID), zap.Int64("user_id", from.ID))
	case errors.Is(err, service.ErrNoOpenLottery):
		log.Info("threshold crossed but no open lottery", zap.Int64("chat_id", chatID), zap.Int64("user_id", from.ID))
	case err != nil:
		log.Error("failed to admit participant",
			zap.Int64("chat_id", chatID),
			zap.Int64("user_id", from.ID),
			zap.Error(err))
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	switch msg.Command() {
	case "lottery":
		b.replyLotteryInfo(ctx, msg)
	case "lottery_create":
		b.manualCreate(ctx, msg)
	case "lottery_draw":
		b.manualDraw(ctx, msg)
	}
}

func (b *Bot) replyLotteryInfo(ctx context.Context, msg *tgbotapi.Message) {
	lot, err := b.lotteries.Active(ctx, msg.Chat.ID)
	if err != nil {
		if errors.Is(err, service.ErrNoOpenLottery) {
			b.reply(msg.Chat.ID, "There is no lottery running right now.")
			return
		}
		logger.Logger().Error("failed to load current lottery", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		b.reply(msg.Chat.ID, "Could not load the current lottery, try again later.")
		return
	}

	b.reply(msg.Chat.ID, formatLotteryInfo(lot))
}

// manualCreate opens today's cycle on demand. Racing the midnight trigger
// is fine: the second creation reports "already exists".
func (b *Bot) manualCreate(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.Chat.ID, msg.From.ID) {
		return
	}

	_, err := b.lotteries.Create(ctx, msg.Chat.ID)
	if err != nil {
		if errors.Is(err, service.ErrLotteryExists) {
			b.reply(msg.Chat.ID, "Today's lottery already exists.")
			return
		}
		logger.Logger().Error("manual lottery creation failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		b.reply(msg.Chat.ID, "Could not create the lottery, try again later.")
		return
	}

	b.reply(msg.Chat.ID, "Today's lottery is open. 🎉")
}

func (b *Bot) manualDraw(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg.Chat.ID, msg.From.ID) {
		return
	}

	err := b.lotteries.DrawCurrent(ctx, msg.Chat.ID)
	switch {
	case errors.Is(err, service.ErrNoOpenLottery):
		b.reply(msg.Chat.ID, "There is no open lottery to draw.")
	case errors.Is(err, service.ErrAlreadyDrawn):
		b.reply(msg.Chat.ID, "Today's lottery has already been drawn.")
	case err != nil:
		logger.Logger().Error("manual draw failed", zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
		b.reply(msg.Chat.ID, "The draw failed, try again later.")
	}
}

func (b *Bot) isAdmin(chatID, userID int64) bool {
	member, err := b.api.GetChatMember(tgbotapi.GetChatMemberConfig{
		ChatConfigWithUser: tgbotapi.ChatConfigWithUser{
			ChatID: chatID,
			UserID: userID,
		},
	})
	if err != nil {
		logger.Logger().Error("failed to check admin status", zap.Int64("user_id", userID), zap.Error(err))
		return false
	}
	return member.Status == "administrator" || member.Status == "creator"
}

func (b *Bot) reply(chatID int64, text string) {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	if err != nil {
		logger.Logger().Error("failed to send reply", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func formatLotteryInfo(lot *model.Lottery) string {
	return fmt.Sprintf("🎁 Current lottery\n\nParticipants: %d\nPrize: %d points\nStarted: %s\nDraw at: %s\n\n🎉 Stay active in the chat to join automatically!",
		len(lot.Participants),
		lot.Prize,
		lot.CreatedAt.Format("2006-01-02 15:04"),
		lot.Deadline.Format("2006-01-02 15:04"))
}
