package service

import (
	"context"
	"errors"
	"time"

	"activity_lottery_bot/internal/model"
)

var (
	ErrLotteryExists = errors.New("a lottery already exists for today")
	ErrNoOpenLottery = errors.New("no open lottery for today")
	ErrAlreadyJoined = errors.New("user already joined today's lottery")
	ErrAlreadyDrawn  = errors.New("lottery has already been drawn")
	ErrUserNotFound  = errors.New("user not found")
)

// Service bundles the domain services behind one value so the bot, the
// scheduler and the HTTP surface all share the same wiring.
type Service struct {
	*LotteryService
	*ActivityService
}

var (
	_ LotteryServiceI  = (*Service)(nil)
	_ ActivityServiceI = (*Service)(nil)
)

func NewService(lotteryService *LotteryService, activityService *ActivityService) *Service {
	return &Service{
		LotteryService:  lotteryService,
		ActivityService: activityService,
	}
}

type LotteryServiceI interface {
	Create(ctx context.Context, chatID int64) (*model.Lottery, error)
	Admit(ctx context.Context, chatID, userID int64, username string, activity int) (*model.Lottery, error)
	Draw(ctx context.Context, lot *model.Lottery) error
	DrawCurrent(ctx context.Context, chatID int64) error
	Active(ctx context.Context, chatID int64) (*model.Lottery, error)
	Overdue(ctx context.Context, chatID int64) ([]*model.Lottery, error)
}

type ActivityServiceI interface {
	RecordMessage(ctx context.Context, userID int64, username, firstName, lastName, text string) (*model.User, bool, error)
}

type LotteryRepository interface {
	CreateLottery(ctx context.Context, lot *model.Lottery) error
	FindOpenLottery(ctx context.Context, chatID int64, dayStart time.Time) (*model.Lottery, error)
	FindOverdueLotteries(ctx context.Context, chatID int64, now time.Time) ([]*model.Lottery, error)
	UpdateParticipants(ctx context.Context, lotteryID string, participants []model.Participant) error
	SetDrawn(ctx context.Context, lotteryID string, winners []int64) error
	ListTrackedParticipantIDs(ctx context.Context) ([]int64, error)
}

type UserRepository interface {
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error)
	UpsertUser(ctx context.Context, user *model.User) error
	UpdateActivity(ctx context.Context, telegramID int64, points, dailyPoints int, lastActiveDate string) error
	SetNotified(ctx context.Context, telegramID int64, notified bool) error
	AddLotteryPoints(ctx context.Context, telegramID int64, delta int) error
}

// Notifier is the outbound messaging boundary. Implementations are
// expected to use bounded timeouts and no retries; callers log failures
// and move on.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string, html bool) error
	ChatMemberName(ctx context.Context, chatID, userID int64) (string, error)
}
