package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"activity_lottery_bot/internal/model"
	"activity_lottery_bot/internal/repository"
	"activity_lottery_bot/pkg/logger"

	"go.uber.org/zap"
)

type ActivityConfig struct {
	DailyPointCap     int
	MinMessageLength  int
	ActivityThreshold int
	Location          *time.Location
}

// ActivityService is the participation tracker: it owns the per-user daily
// activity counter and decides when a user crosses the admission threshold.
type ActivityService struct {
	users UserRepository
	cfg   ActivityConfig

	now func() time.Time
}

func NewActivityService(users UserRepository, cfg ActivityConfig) *ActivityService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &ActivityService{
		users: users,
		cfg:   cfg,
		now:   time.Now,
	}
}

// RecordMessage scores one chat message. Messages shorter than the minimum
// length earn nothing, and the daily counter is capped. It returns the
// updated user and whether this message pushed them across the admission
// threshold while not yet admitted this cycle.
func (s *ActivityService) RecordMessage(ctx context.Context, userID int64, username, firstName, lastName, text string) (*model.User, bool, error) {
	log := logger.Logger()

	today := s.now().In(s.cfg.Location).Format("2006-01-02")

	user, err := s.users.GetUserByTelegramID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, false, fmt.Errorf("failed to get user: %w", err)
		}
		user = &model.User{
			TelegramID:     userID,
			Username:       username,
			FirstName:      firstName,
			LastName:       lastName,
			LastActiveDate: today,
			JoinedAt:       s.now(),
		}
		if err := s.users.UpsertUser(ctx, user); err != nil {
			return nil, false, fmt.Errorf("failed to register user: %w", err)
		}
		log.Info("new user registered", zap.Int64("user_id", userID), zap.String("username", username))
	} else if user.Username != username || user.FirstName != firstName || user.LastName != lastName {
		user.Username = username
		user.FirstName = firstName
		user.LastName = lastName
		if err := s.users.UpsertUser(ctx, user); err != nil {
			return nil, false, fmt.Errorf("failed to refresh user profile: %w", err)
		}
	}

	// New local day: the daily counter starts over.
	if user.LastActiveDate != today {
		user.DailyPoints = 0
		user.LastActiveDate = today
	}

	if len([]rune(text)) >= s.cfg.MinMessageLength && user.DailyPoints < s.cfg.DailyPointCap {
		user.Points++
		user.DailyPoints++
	}

	if err := s.users.UpdateActivity(ctx, userID, user.Points, user.DailyPoints, user.LastActiveDate); err != nil {
		return nil, false, fmt.Errorf("failed to update activity: %w", err)
	}

	crossed := user.DailyPoints >= s.cfg.ActivityThreshold && !user.NotifiedForLottery
	return user, crossed, nil
}
