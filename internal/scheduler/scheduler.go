package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"activity_lottery_bot/internal/model"
	"activity_lottery_bot/internal/service"
	"activity_lottery_bot/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// LotteryService is the slice of the lottery surface the driver fires.
type LotteryService interface {
	Create(ctx context.Context, chatID int64) (*model.Lottery, error)
	Draw(ctx context.Context, lot *model.Lottery) error
	DrawCurrent(ctx context.Context, chatID int64) error
	Active(ctx context.Context, chatID int64) (*model.Lottery, error)
	Overdue(ctx context.Context, chatID int64) ([]*model.Lottery, error)
}

type Config struct {
	Location   *time.Location
	CreateSpec string
	DrawSpec   string
	// How long one triggered transition may run before its context expires.
	JobTimeout time.Duration
}

// Driver fires the lottery state machine of a single chat at fixed local
// times. Both triggers are calendar entries in the configured zone, not
// elapsed-time timers, so they survive DST transitions.
type Driver struct {
	chatID    int64
	lotteries LotteryService
	cfg       Config
	cron      *cron.Cron

	now func() time.Time

	mu sync.Mutex
	// Cached id of the cycle this driver last touched. A hint for logs
	// only; the store stays the source of truth.
	currentLotteryID string
}

func NewDriver(chatID int64, lotteries LotteryService, cfg Config) *Driver {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = time.Minute
	}
	return &Driver{
		chatID:    chatID,
		lotteries: lotteries,
		cfg:       cfg,
		cron:      cron.New(cron.WithLocation(cfg.Location)),
		now:       time.Now,
	}
}

// Start recovers any backlog first, then registers the two daily triggers.
// Recovery failures are logged but do not prevent scheduling; the next
// trigger will retry against the store.
func (d *Driver) Start(ctx context.Context) error {
	log := logger.Logger()

	if err := d.Recover(ctx); err != nil {
		log.Error("startup recovery failed", zap.Int64("chat_id", d.chatID), zap.Error(err))
	}

	_, err := d.cron.AddFunc(d.cfg.CreateSpec, func() { d.runCreate() })
	if err != nil {
		return fmt.Errorf("failed to register create trigger: %w", err)
	}

	_, err = d.cron.AddFunc(d.cfg.DrawSpec, func() { d.runDraw() })
	if err != nil {
		return fmt.Errorf("failed to register draw trigger: %w", err)
	}

	d.cron.Start()
	log.Info("lottery scheduler started",
		zap.Int64("chat_id", d.chatID),
		zap.String("create", d.cfg.CreateSpec),
		zap.String("draw", d.cfg.DrawSpec),
		zap.String("location", d.cfg.Location.String()))

	return nil
}

func (d *Driver) Stop() {
	d.cron.Stop()
}

// Recover completes any draw whose deadline passed while the process was
// down, then makes sure today's cycle exists. Overdue draws always run
// before a new lottery is created, and a cycle opened today and settled
// during recovery is never reopened: its cutoff is already behind us and
// the next draw trigger would skip it.
func (d *Driver) Recover(ctx context.Context) error {
	log := logger.Logger()

	overdue, err := d.lotteries.Overdue(ctx, d.chatID)
	if err != nil {
		return err
	}

	now := d.now().In(d.cfg.Location)
	settledToday := false
	for _, lot := range overdue {
		d.setCurrentLotteryID(lot.ID)
		log.Info("found overdue lottery, drawing now",
			zap.Int64("chat_id", d.chatID),
			zap.String("lottery_id", lot.ID))
		if err := d.lotteries.Draw(ctx, lot); err != nil {
			return fmt.Errorf("failed to draw overdue lottery %s: %w", lot.ID, err)
		}
		if sameDay(lot.CreatedAt.In(d.cfg.Location), now) {
			settledToday = true
		}
	}

	lot, err := d.lotteries.Active(ctx, d.chatID)
	if err != nil {
		if !errors.Is(err, service.ErrNoOpenLottery) {
			return err
		}
		if settledToday {
			log.Info("today's cycle already settled, not reopening",
				zap.Int64("chat_id", d.chatID))
			return nil
		}
		created, err := d.lotteries.Create(ctx, d.chatID)
		if err != nil && !errors.Is(err, service.ErrLotteryExists) {
			return err
		}
		if created != nil {
			d.setCurrentLotteryID(created.ID)
		}
		return nil
	}

	d.setCurrentLotteryID(lot.ID)
	return nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func (d *Driver) runCreate() {
	log := logger.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.JobTimeout)
	defer cancel()

	lot, err := d.lotteries.Create(ctx, d.chatID)
	if errors.Is(err, service.ErrLotteryExists) {
		log.Info("lottery already exists for today", zap.Int64("chat_id", d.chatID))
	} else if err != nil {
		log.Error("scheduled lottery creation failed", zap.Int64("chat_id", d.chatID), zap.Error(err))
		return
	}
	if lot != nil {
		d.setCurrentLotteryID(lot.ID)
	}
}

func (d *Driver) runDraw() {
	log := logger.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.JobTimeout)
	defer cancel()

	err := d.lotteries.DrawCurrent(ctx, d.chatID)
	if errors.Is(err, service.ErrNoOpenLottery) {
		log.Info("nothing to draw today", zap.Int64("chat_id", d.chatID))
		return
	}
	if err != nil {
		log.Error("scheduled draw failed", zap.Int64("chat_id", d.chatID), zap.Error(err))
	}
}

func (d *Driver) setCurrentLotteryID(id string) {
	d.mu.Lock()
	d.currentLotteryID = id
	d.mu.Unlock()
}

// CurrentLotteryID returns the cached cycle id hint.
func (d *Driver) CurrentLotteryID() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.currentLotteryID
}
