package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"activity_lottery_bot/internal/model"
	"activity_lottery_bot/internal/repository"
	"activity_lottery_bot/internal/service/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var testNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

func newTestLotteryService(repo *mocks.MockLotteryRepository, users *mocks.MockUserRepository, n *mocks.MockNotifier) *LotteryService {
	s := NewLotteryService(repo, users, n, LotteryConfig{
		Prize:             30,
		MinWinners:        2,
		WinnerFraction:    0.5,
		ActivityThreshold: 10,
		DrawHour:          23,
		DrawMinute:        30,
		Location:          time.UTC,
	})
	s.now = func() time.Time { return testNow }
	s.rng = rand.New(rand.NewSource(1))
	return s
}

func TestLotteryService_Create(t *testing.T) {
	t.Run("creates a lottery when none exists", func(t *testing.T) {
		mockRepo := &mocks.MockLotteryRepository{}
		service := newTestLotteryService(mockRepo, &mocks.MockUserRepository{}, &mocks.MockNotifier{})

		dayStart := time.Date(2026, 8, 28, 0, 0, 0, 0, time.UTC)
		mockRepo.On("FindOpenLottery", mock.Anything, int64(100), dayStart).
			Return(nil, repository.ErrNotFound)
		mockRepo.On("CreateLottery", mock.Anything, mock.MatchedBy(func(lot *model.Lottery) bool {
			return lot.ID != "" &&
				lot.ChatID == 100 &&
				lot.Prize == 30 &&
				!lot.Drawn &&
				len(lot.Participants) == 0
		})).Return(nil)

		lot, err := service.Create(context.Background(), 100)

		assert.NoError(t, err)
		assert.NotNil(t, lot)
		assert.Equal(t, time.Date(2026, 8, 28, 23, 30, 0, 0, time.UTC), lot.Deadline)
		mockRepo.AssertExpectations(t)
	})

	t.Run("second create is a no-op reporting already exists", func(t *testing.T) {
		mockRepo := &mocks.MockLotteryRepository{}
		service := newTestLotteryService(mockRepo, &mocks.MockUserRepository{}, &mocks.MockNotifier{})

		existing := &model.Lottery{ID: "2f0c6a62-0000-0000-0000-000000000001", ChatID: 100}
		mockRepo.On("FindOpenLottery", mock.Anything, int64(100), mock.Anything).
			Return(existing, nil)

		lot, err := service.Create(context.Background(), 100)

		assert.ErrorIs(t, err, ErrLotteryExists)
		assert.Equal(t, existing, lot)
		mockRepo.AssertNotCalled(t, "CreateLottery", mock.Anything, mock.Anything)
	})
}

func TestLotteryService_Admit(t *testing.T) {
	openLottery := func() *model.Lottery {
		return &model.Lottery{
			ID:        "2f0c6a62-0000-0000-0000-000000000001",
			ChatID:    100,
			Prize:     30,
			CreatedAt: testNow,
			Deadline:  time.Date(2026, 8, 28, 23, 30, 0, 0, time.UTC),
			Participants: []model.Participant{
				{UserID: 5, MessageCount: 10},
			},
		}
	}

	t.Run("admits a new participant", func(t *testing.T) {
		mockRepo := &mocks.MockLotteryRepository{}
		mockUsers := &mocks.MockUserRepository{}
		mockNotifier := &mocks.MockNotifier{}
		service := newTestLotteryService(mockRepo, mockUsers, mockNotifier)

		mockRepo.On("FindOpenLottery", mock.Anything, int64(100), mock.Anything).
			Return(openLottery(), nil)
		mockRepo.On("UpdateParticipants", mock.Anything, "2f0c6a62-0000-0000-0000-000000000001",
			mock.MatchedBy(func(ps []model.Participant) bool {
				return len(ps) == 2 && ps[1].UserID == 6 && ps[1].MessageCount == 12
			})).Return(nil)
		mockUsers.On("SetNotified", mock.Anything, int64(6), true).Return(nil)
		mockNotifier.On("SendMessage", mock.Anything, int64(100), mock.Anything, false).Return(nil)

		lot, err := service.Admit(context.Background(), 100, 6, "alice", 12)

		assert.NoError(t, err)
		assert.Len(t, lot.Participants, 2)
		mockRepo.AssertExpectations(t)
		mockUsers.AssertExpectations(t)
		mockNotifier.AssertExpectations(t)
	})

	t.Run("repeated admit is idempotent", func(t *testing.T) {
		mockRepo := &mocks.MockLotteryRepository{}
		mockUsers := &mocks.MockUserRepository{}
		service := newTestLotteryService(mockRepo, mockUsers, &mocks.MockNotifier{})

		mockRepo.On("FindOpenLottery", mock.Anything, int64(100), mock.Anything).
			Return(openLottery(), nil)

		lot, err := service.Admit(context.Background(), 100, 5, "bob", 11)

		assert.ErrorIs(t, err, ErrAlreadyJoined)
		assert.Len(t, lot.Participants, 1)
		mockRepo.AssertNotCalled(t, "UpdateParticipants", mock.Anything, mock.Anything, mock.Anything)
		mockUsers.AssertNotCalled(t, "SetNotified", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("no open lottery", func(t *testing.T) {
		mockRepo := &mocks.MockLotteryRepository{}
		service := newTestLotteryService(mockRepo, &mocks.MockUserRepository{}, &mocks.MockNotifier{})

		mockRepo.On("FindOpenLottery", mock.Anything, int64(100), mock.Anything).
			Return(nil, repository.ErrNotFound)

		_, err := service.Admit(context.Background(), 100, 6, "alice", 12)

		assert.ErrorIs(t, err, ErrNoOpenLottery)
	})
}

func TestLotteryService_Draw(t *testing.T) {
	lotteryWith := func(participants ...model.Participant) *model.Lottery {
		return &model.Lottery{
			ID:           "2f0c6a62-0000-0000-0000-000000000001",
			ChatID:       100,
			Prize:        30,
			CreatedAt:    testNow,
			Deadline:     time.Date(2026, 8, 28, 23, 30, 0, 0, time.UTC),
			Participants: participants,
		}
	}

	t.Run("selects winners, credits them and resets tracked users", func(t *testing.T) {
		mockRepo := &mocks.MockLotteryRepository{}
		mockUsers := &mocks.MockUserRepository{}
		mockNotifier := &mocks.MockNotifier{}
		service := newTestLotteryService(mockRepo, mockUsers, mockNotifier)

		lot := lotteryWith(
			model.Participant{UserID: 1, MessageCount: 10},
			model.Participant{UserID: 2, MessageCount: 11},
			model.Participant{UserID: 3, MessageCount: 12},
			model.Participant{UserID: 4, MessageCount: 13},
		)

		pool := map[int64]bool{1: true, 2: true, 3: true, 4: true}
		mockRepo.On("SetDrawn", mock.Anything, lot.ID, mock.MatchedBy(func(winners []int64) bool {
			if len(winners) != 2 {
				return false
			}
			seen := map[int64]bool{}
			for _, id := range winners {
				if !pool[id] || seen[id] {
					return false
				}
				seen[id] = true
			}
			return true
		})).Return(nil)
		mockUsers.On("AddLotteryPoints", mock.Anything, mock.Anything, 30).Return(nil).Twice()
		mockNotifier.On("ChatMemberName", mock.Anything, int64(100), mock.Anything).Return("Winner", nil).Twice()
		mockNotifier.On("SendMessage", mock.Anything, int64(100), mock.Anything, true).Return(nil)
		mockRepo.On("ListTrackedParticipantIDs", mock.Anything).Return([]int64{1, 2, 3, 4}, nil)
		mockUsers.On("SetNotified", mock.Anything, mock.Anything, false).Return(nil).Times(4)

		err := service.Draw(context.Background(), lot)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
		mockUsers.AssertExpectations(t)
		mockNotifier.AssertExpectations(t)
	})

	t.Run("voids the cycle below the minimum pool", func(t *testing.T) {
		mockRepo := &mocks.MockLotteryRepository{}
		mockUsers := &mocks.MockUserRepository{}
		mockNotifier := &mocks.MockNotifier{}
		service := newTestLotteryService(mockRepo, mockUsers, mockNotifier)

		lot := lotteryWith(
			model.Participant{UserID: 1, MessageCount: 10},
			model.Participant{UserID: 2, MessageCount: 3},
		)

		mockRepo.On("SetDrawn", mock.Anything, lot.ID, mock.MatchedBy(func(winners []int64) bool {
			return len(winners) == 0
		})).Return(nil)
		mockRepo.On("ListTrackedParticipantIDs", mock.Anything).Return([]int64{1, 2}, nil)
		mockUsers.On("SetNotified", mock.Anything, mock.Anything, false).Return(nil).Twice()
		mockNotifier.On("SendMessage", mock.Anything, int64(100), mock.Anything, false).Return(nil)

		err := service.Draw(context.Background(), lot)

		assert.NoError(t, err)
		mockRepo.AssertExpectations(t)
		mockUsers.AssertNotCalled(t, "AddLotteryPoints", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("second draw on a drawn lottery does nothing", func(t *testing.T) {
		mockRepo := &mocks.MockLotteryRepository{}
		service := newTestLotteryService(mockRepo, &mocks.MockUserRepository{}, &mocks.MockNotifier{})

		lot := lotteryWith(model.Participant{UserID: 1, MessageCount: 10})
		lot.Drawn = true

		err := service.Draw(context.Background(), lot)

		assert.ErrorIs(t, err, ErrAlreadyDrawn)
		mockRepo.AssertNotCalled(t, "SetDrawn", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("losing the drawn-flag race is a silent no-op", func(t *testing.T) {
		mockRepo := &mocks.MockLotteryRepository{}
		mockUsers := &mocks.MockUserRepository{}
		service := newTestLotteryService(mockRepo, mockUsers, &mocks.MockNotifier{})

		lot := lotteryWith(
			model.Participant{UserID: 1, MessageCount: 10},
			model.Participant{UserID: 2, MessageCount: 10},
		)

		mockRepo.On("SetDrawn", mock.Anything, lot.ID, mock.Anything).
			Return(repository.ErrAlreadyDrawn)

		err := service.Draw(context.Background(), lot)

		assert.NoError(t, err)
		mockUsers.AssertNotCalled(t, "AddLotteryPoints", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing lottery id fails fast", func(t *testing.T) {
		service := newTestLotteryService(&mocks.MockLotteryRepository{}, &mocks.MockUserRepository{}, &mocks.MockNotifier{})

		err := service.Draw(context.Background(), &model.Lottery{})

		assert.ErrorIs(t, err, repository.ErrMissingID)
	})

	t.Run("draws for several chats run concurrently on one service", func(t *testing.T) {
		mockRepo := &mocks.MockLotteryRepository{}
		mockUsers := &mocks.MockUserRepository{}
		mockNotifier := &mocks.MockNotifier{}
		service := newTestLotteryService(mockRepo, mockUsers, mockNotifier)

		mockRepo.On("SetDrawn", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		mockRepo.On("ListTrackedParticipantIDs", mock.Anything).Return([]int64{}, nil)
		mockUsers.On("AddLotteryPoints", mock.Anything, mock.Anything, 30).Return(nil)
		mockNotifier.On("ChatMemberName", mock.Anything, mock.Anything, mock.Anything).Return("Winner", nil)
		mockNotifier.On("SendMessage", mock.Anything, mock.Anything, mock.Anything, true).Return(nil)

		const chats = 8
		errCh := make(chan error, chats)
		var wg sync.WaitGroup
		for i := 0; i < chats; i++ {
			lot := lotteryWith(
				model.Participant{UserID: 1, MessageCount: 10},
				model.Participant{UserID: 2, MessageCount: 11},
				model.Participant{UserID: 3, MessageCount: 12},
				model.Participant{UserID: 4, MessageCount: 13},
			)
			lot.ID = fmt.Sprintf("2f0c6a62-0000-0000-0000-0000000000%02d", i)
			lot.ChatID = int64(100 + i)

			wg.Add(1)
			go func(lot *model.Lottery) {
				defer wg.Done()
				errCh <- service.Draw(context.Background(), lot)
			}(lot)
		}
		wg.Wait()
		close(errCh)

		for err := range errCh {
			assert.NoError(t, err)
		}
		mockRepo.AssertNumberOfCalls(t, "SetDrawn", chats)
	})
}
