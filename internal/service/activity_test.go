package service

import (
	"context"
	"testing"
	"time"

	"activity_lottery_bot/internal/model"
	"activity_lottery_bot/internal/repository"
	"activity_lottery_bot/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func newTestActivityService(users *mocks.MockUserRepository) *ActivityService {
	s := NewActivityService(users, ActivityConfig{
		DailyPointCap:     50,
		MinMessageLength:  4,
		ActivityThreshold: 10,
		Location:          time.UTC,
	})
	s.now = func() time.Time { return testNow }
	return s
}

func TestActivityService_RecordMessage(t *testing.T) {
	const today = "2026-08-28"

	existingUser := func(daily int, notified bool) *model.User {
		return &model.User{
			TelegramID:         7,
			Username:           "alice",
			FirstName:          "Alice",
			Points:             100,
			DailyPoints:        daily,
			NotifiedForLottery: notified,
			LastActiveDate:     today,
			JoinedAt:           testNow.Add(-72 * time.Hour),
		}
	}

	t.Run("registers an unknown user and scores the message", func(t *testing.T) {
		mockUsers := &mocks.MockUserRepository{}
		service := newTestActivityService(mockUsers)

		mockUsers.On("GetUserByTelegramID", mock.Anything, int64(7)).
			Return(nil, repository.ErrNotFound)
		mockUsers.On("UpsertUser", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
			return u.TelegramID == 7 && u.Username == "alice" && u.LastActiveDate == today
		})).Return(nil)
		mockUsers.On("UpdateActivity", mock.Anything, int64(7), 1, 1, today).Return(nil)

		user, crossed, err := service.RecordMessage(context.Background(), 7, "alice", "Alice", "", "hello there")

		assert.NoError(t, err)
		assert.False(t, crossed)
		assert.Equal(t, 1, user.DailyPoints)
		mockUsers.AssertExpectations(t)
	})

	t.Run("short messages earn nothing", func(t *testing.T) {
		mockUsers := &mocks.MockUserRepository{}
		service := newTestActivityService(mockUsers)

		mockUsers.On("GetUserByTelegramID", mock.Anything, int64(7)).
			Return(existingUser(5, false), nil)
		mockUsers.On("UpdateActivity", mock.Anything, int64(7), 100, 5, today).Return(nil)

		user, crossed, err := service.RecordMessage(context.Background(), 7, "alice", "Alice", "", "ok")

		assert.NoError(t, err)
		assert.False(t, crossed)
		assert.Equal(t, 5, user.DailyPoints)
	})

	t.Run("daily counter is capped", func(t *testing.T) {
		mockUsers := &mocks.MockUserRepository{}
		service := newTestActivityService(mockUsers)

		mockUsers.On("GetUserByTelegramID", mock.Anything, int64(7)).
			Return(existingUser(50, true), nil)
		mockUsers.On("UpdateActivity", mock.Anything, int64(7), 100, 50, today).Return(nil)

		user, _, err := service.RecordMessage(context.Background(), 7, "alice", "Alice", "", "a long enough message")

		assert.NoError(t, err)
		assert.Equal(t, 50, user.DailyPoints)
	})

	t.Run("crossing the threshold is reported once", func(t *testing.T) {
		mockUsers := &mocks.MockUserRepository{}
		service := newTestActivityService(mockUsers)

		mockUsers.On("GetUserByTelegramID", mock.Anything, int64(7)).
			Return(existingUser(9, false), nil)
		mockUsers.On("UpdateActivity", mock.Anything, int64(7), 101, 10, today).Return(nil)

		_, crossed, err := service.RecordMessage(context.Background(), 7, "alice", "Alice", "", "crossing message")

		assert.NoError(t, err)
		assert.True(t, crossed)
	})

	t.Run("already admitted users do not cross again", func(t *testing.T) {
		mockUsers := &mocks.MockUserRepository{}
		service := newTestActivityService(mockUsers)

		mockUsers.On("GetUserByTelegramID", mock.Anything, int64(7)).
			Return(existingUser(20, true), nil)
		mockUsers.On("UpdateActivity", mock.Anything, int64(7), 101, 21, today).Return(nil)

		_, crossed, err := service.RecordMessage(context.Background(), 7, "alice", "Alice", "", "another message")

		assert.NoError(t, err)
		assert.False(t, crossed)
	})

	t.Run("new local day resets the daily counter", func(t *testing.T) {
		mockUsers := &mocks.MockUserRepository{}
		service := newTestActivityService(mockUsers)

		user := existingUser(42, false)
		user.LastActiveDate = "2026-08-27"
		mockUsers.On("GetUserByTelegramID", mock.Anything, int64(7)).Return(user, nil)
		mockUsers.On("UpdateActivity", mock.Anything, int64(7), 101, 1, today).Return(nil)

		updated, crossed, err := service.RecordMessage(context.Background(), 7, "alice", "Alice", "", "good morning all")

		assert.NoError(t, err)
		assert.False(t, crossed)
		assert.Equal(t, 1, updated.DailyPoints)
		assert.Equal(t, today, updated.LastActiveDate)
	})
}
