package mocks

import (
	"context"
	"time"

	"activity_lottery_bot/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockLotteryRepository struct {
	mock.Mock
}

func (m *MockLotteryRepository) CreateLottery(ctx context.Context, lot *model.Lottery) error {
	args := m.Called(ctx, lot)
	return args.Error(0)
}

func (m *MockLotteryRepository) FindOpenLottery(ctx context.Context, chatID int64, dayStart time.Time) (*model.Lottery, error) {
	args := m.Called(ctx, chatID, dayStart)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Lottery), args.Error(1)
}

func (m *MockLotteryRepository) FindOverdueLotteries(ctx context.Context, chatID int64, now time.Time) ([]*model.Lottery, error) {
	args := m.Called(ctx, chatID, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Lottery), args.Error(1)
}

func (m *MockLotteryRepository) UpdateParticipants(ctx context.Context, lotteryID string, participants []model.Participant) error {
	args := m.Called(ctx, lotteryID, participants)
	return args.Error(0)
}

func (m *MockLotteryRepository) SetDrawn(ctx context.Context, lotteryID string, winners []int64) error {
	args := m.Called(ctx, lotteryID, winners)
	return args.Error(0)
}

func (m *MockLotteryRepository) ListTrackedParticipantIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	args := m.Called(ctx, telegramID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.User), args.Error(1)
}

func (m *MockUserRepository) UpsertUser(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) UpdateActivity(ctx context.Context, telegramID int64, points, dailyPoints int, lastActiveDate string) error {
	args := m.Called(ctx, telegramID, points, dailyPoints, lastActiveDate)
	return args.Error(0)
}

func (m *MockUserRepository) SetNotified(ctx context.Context, telegramID int64, notified bool) error {
	args := m.Called(ctx, telegramID, notified)
	return args.Error(0)
}

func (m *MockUserRepository) AddLotteryPoints(ctx context.Context, telegramID int64, delta int) error {
	args := m.Called(ctx, telegramID, delta)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendMessage(ctx context.Context, chatID int64, text string, html bool) error {
	args := m.Called(ctx, chatID, text, html)
	return args.Error(0)
}

func (m *MockNotifier) ChatMemberName(ctx context.Context, chatID, userID int64) (string, error) {
	args := m.Called(ctx, chatID, userID)
	return args.String(0), args.Error(1)
}
