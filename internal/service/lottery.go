package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"activity_lottery_bot/internal/model"
	"activity_lottery_bot/internal/repository"
	"activity_lottery_bot/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LotteryConfig struct {
	Prize             int
	MinWinners        int
	WinnerFraction    float64
	ActivityThreshold int
	DrawHour          int
	DrawMinute        int
	Location          *time.Location
}

// LotteryService owns the lifecycle of one lottery per (chat, local day):
// creation, admission, draw, settlement.
type LotteryService struct {
	repo     LotteryRepository
	users    UserRepository
	notifier Notifier
	cfg      LotteryConfig

	now func() time.Time

	// Draw triggers for different chats fire at the same minute in their
	// own goroutines; rand.Rand is not safe for concurrent use.
	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewLotteryService(repo LotteryRepository, users UserRepository, notifier Notifier, cfg LotteryConfig) *LotteryService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &LotteryService{
		repo:     repo,
		users:    users,
		notifier: notifier,
		cfg:      cfg,
		now:      time.Now,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Create opens today's lottery for the chat. Calling it again the same day
// returns the existing lottery with ErrLotteryExists; a manual trigger and
// the scheduled one racing is an expected condition, not a failure.
func (s *LotteryService) Create(ctx context.Context, chatID int64) (*model.Lottery, error) {
	now := s.now().In(s.cfg.Location)

	existing, err := s.repo.FindOpenLottery(ctx, chatID, s.dayStart(now))
	if err == nil {
		return existing, ErrLotteryExists
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up today's lottery: %w", err)
	}

	lot := &model.Lottery{
		ID:           uuid.NewString(),
		ChatID:       chatID,
		Prize:        s.cfg.Prize,
		CreatedAt:    now,
		Deadline:     s.cutoff(now),
		Participants: []model.Participant{},
		Winners:      []int64{},
		Drawn:        false,
	}
	if err := s.repo.CreateLottery(ctx, lot); err != nil {
		return nil, fmt.Errorf("failed to create lottery: %w", err)
	}

	logger.Logger().Info("lottery created",
		zap.String("lottery_id", lot.ID),
		zap.Int64("chat_id", chatID),
		zap.Time("deadline", lot.Deadline))

	return lot, nil
}

// Active returns today's open lottery for the chat, or ErrNoOpenLottery.
func (s *LotteryService) Active(ctx context.Context, chatID int64) (*model.Lottery, error) {
	now := s.now().In(s.cfg.Location)

	lot, err := s.repo.FindOpenLottery(ctx, chatID, s.dayStart(now))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoOpenLottery
		}
		return nil, fmt.Errorf("failed to look up today's lottery: %w", err)
	}

	return lot, nil
}

// Overdue returns undrawn lotteries of the chat whose deadline has passed.
func (s *LotteryService) Overdue(ctx context.Context, chatID int64) ([]*model.Lottery, error) {
	lotteries, err := s.repo.FindOverdueLotteries(ctx, chatID, s.now().In(s.cfg.Location))
	if err != nil {
		return nil, fmt.Errorf("failed to look up overdue lotteries: %w", err)
	}
	return lotteries, nil
}

// Admit appends the user to today's lottery with their activity snapshot
// and sets the notified flag so they are not admitted twice in one cycle.
// A repeated call for the same user returns ErrAlreadyJoined and mutates
// nothing.
func (s *LotteryService) Admit(ctx context.Context, chatID, userID int64, username string, activity int) (*model.Lottery, error) {
	log := logger.Logger()

	lot, err := s.Active(ctx, chatID)
	if err != nil {
		return nil, err
	}

	if lot.HasParticipant(userID) {
		return lot, ErrAlreadyJoined
	}

	lot.Participants = append(lot.Participants, model.Participant{
		UserID:       userID,
		MessageCount: activity,
	})
	if err := s.repo.UpdateParticipants(ctx, lot.ID, lot.Participants); err != nil {
		return nil, fmt.Errorf("failed to persist participants: %w", err)
	}

	if err := s.users.SetNotified(ctx, userID, true); err != nil {
		return nil, fmt.Errorf("failed to set notified flag: %w", err)
	}

	log.Info("participant admitted",
		zap.String("lottery_id", lot.ID),
		zap.Int64("chat_id", chatID),
		zap.Int64("user_id", userID))

	text := fmt.Sprintf("🎉 Congrats @%s, you're in!\n\n🎁 %s\nParticipants: %d\nPrize: %d points\nDraw at: %s",
		username,
		s.lotteryTitle(lot),
		len(lot.Participants),
		lot.Prize,
		lot.Deadline.In(s.cfg.Location).Format("15:04"))
	if err := s.notifier.SendMessage(ctx, chatID, text, false); err != nil {
		log.Error("failed to send admission reply", zap.Int64("user_id", userID), zap.Error(err))
	}

	return lot, nil
}

// DrawCurrent draws today's open lottery of the chat, if any.
func (s *LotteryService) DrawCurrent(ctx context.Context, chatID int64) error {
	lot, err := s.Active(ctx, chatID)
	if err != nil {
		return err
	}
	return s.Draw(ctx, lot)
}

// Draw settles a lottery: filters eligible participants, picks winners,
// flips the drawn flag through the store's conditional update, credits the
// prize and announces the outcome. Losing the drawn-flag race is a silent
// no-op. Persisted steps are never rolled back on a later failure; the
// points game accepts at-least-once semantics.
func (s *LotteryService) Draw(ctx context.Context, lot *model.Lottery) error {
	log := logger.Logger()

	if lot == nil || lot.ID == "" {
		return fmt.Errorf("%w: lottery id", repository.ErrMissingID)
	}
	if lot.Drawn {
		return ErrAlreadyDrawn
	}

	eligible := make([]model.Participant, 0, len(lot.Participants))
	for _, p := range lot.Participants {
		if p.MessageCount >= s.cfg.ActivityThreshold {
			eligible = append(eligible, p)
		}
	}

	if len(eligible) < s.cfg.MinWinners {
		return s.voidDraw(ctx, lot, len(eligible))
	}

	winnerCount := int(float64(len(eligible)) * s.cfg.WinnerFraction)
	s.rngMu.Lock()
	winners := selectWinners(eligible, winnerCount, s.rng)
	s.rngMu.Unlock()

	winnerIDs := make([]int64, len(winners))
	for i, w := range winners {
		winnerIDs[i] = w.UserID
	}

	err := s.repo.SetDrawn(ctx, lot.ID, winnerIDs)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyDrawn) {
			log.Info("draw lost the drawn-flag race", zap.String("lottery_id", lot.ID))
			return nil
		}
		return fmt.Errorf("failed to mark lottery drawn: %w", err)
	}

	for _, id := range winnerIDs {
		if err := s.users.AddLotteryPoints(ctx, id, lot.Prize); err != nil {
			log.Error("failed to credit winner",
				zap.String("lottery_id", lot.ID),
				zap.Int64("user_id", id),
				zap.Error(err))
		}
	}

	text := s.winnersAnnouncement(ctx, lot, len(eligible), winnerIDs)
	if err := s.notifier.SendMessage(ctx, lot.ChatID, text, true); err != nil {
		log.Error("failed to announce winners", zap.String("lottery_id", lot.ID), zap.Error(err))
	}

	s.resetTrackedParticipants(ctx)

	log.Info("lottery drawn",
		zap.String("lottery_id", lot.ID),
		zap.Int64("chat_id", lot.ChatID),
		zap.Int("eligible", len(eligible)),
		zap.Int("winners", len(winnerIDs)))

	return nil
}

// voidDraw terminates a cycle that never reached the minimum pool size:
// drawn becomes true, nobody is credited.
func (s *LotteryService) voidDraw(ctx context.Context, lot *model.Lottery, eligibleCount int) error {
	log := logger.Logger()

	err := s.repo.SetDrawn(ctx, lot.ID, nil)
	if err != nil {
		if errors.Is(err, repository.ErrAlreadyDrawn) {
			log.Info("void draw lost the drawn-flag race", zap.String("lottery_id", lot.ID))
			return nil
		}
		return fmt.Errorf("failed to void lottery: %w", err)
	}

	s.resetTrackedParticipants(ctx)

	text := fmt.Sprintf("Sorry, today's draw was cancelled: it needs at least %d eligible participants, only %d qualified.",
		s.cfg.MinWinners, eligibleCount)
	if err := s.notifier.SendMessage(ctx, lot.ChatID, text, false); err != nil {
		log.Error("failed to announce void draw", zap.String("lottery_id", lot.ID), zap.Error(err))
	}

	log.Info("lottery voided",
		zap.String("lottery_id", lot.ID),
		zap.Int64("chat_id", lot.ChatID),
		zap.Int("eligible", eligibleCount))

	return nil
}

func (s *LotteryService) winnersAnnouncement(ctx context.Context, lot *model.Lottery, eligibleCount int, winnerIDs []int64) string {
	log := logger.Logger()

	mentions := make([]string, len(winnerIDs))
	for i, id := range winnerIDs {
		name, err := s.notifier.ChatMemberName(ctx, lot.ChatID, id)
		if err != nil || name == "" {
			log.Warn("failed to resolve winner display name", zap.Int64("user_id", id), zap.Error(err))
			name = strconv.FormatInt(id, 10)
		}
		mentions[i] = fmt.Sprintf(`🎉<a href="tg://user?id=%d">%s</a> +%d points`, id, name, lot.Prize)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎁 %s\nThe draw is in!\n\n", s.lotteryTitle(lot))
	fmt.Fprintf(&b, "Entered: %d; winners: %d\n\n", eligibleCount, len(winnerIDs))
	b.WriteString("🥳 Congratulations to:\n")
	b.WriteString(strings.Join(mentions, "\n"))
	b.WriteString("\n\nPrize points have been credited automatically.")
	return b.String()
}

// resetTrackedParticipants clears the notified flag for every user that has
// ever appeared in a participant list, not only this lottery's. The blanket
// reset unblocks admission for the next cycle.
func (s *LotteryService) resetTrackedParticipants(ctx context.Context) {
	log := logger.Logger()

	ids, err := s.repo.ListTrackedParticipantIDs(ctx)
	if err != nil {
		log.Error("failed to list tracked participants", zap.Error(err))
		return
	}

	for _, id := range ids {
		if err := s.users.SetNotified(ctx, id, false); err != nil {
			log.Error("failed to reset notified flag", zap.Int64("user_id", id), zap.Error(err))
		}
	}
}

func (s *LotteryService) lotteryTitle(lot *model.Lottery) string {
	return fmt.Sprintf("Daily activity draw (%s)", lot.CreatedAt.In(s.cfg.Location).Format("2006.01.02"))
}

func (s *LotteryService) dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.cfg.Location)
}

func (s *LotteryService) cutoff(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), s.cfg.DrawHour, s.cfg.DrawMinute, 0, 0, s.cfg.Location)
}
