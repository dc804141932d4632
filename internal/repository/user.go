package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"activity_lottery_bot/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
)

type userRow struct {
	TelegramID         int64     `db:"telegram_id"`
	Username           string    `db:"username"`
	FirstName          string    `db:"first_name"`
	LastName           string    `db:"last_name"`
	Points             int       `db:"points"`
	DailyPoints        int       `db:"daily_points"`
	LotteryPoints      int       `db:"lottery_points"`
	NotifiedForLottery bool      `db:"notified_for_lottery"`
	LastActiveDate     string    `db:"last_active_date"`
	JoinedAt           time.Time `db:"joined_at"`
}

func (r *Repository) GetUserByTelegramID(ctx context.Context, telegramID int64) (*model.User, error) {
	var user userRow
	query, args, err := squirrel.
		Select("*").
		From("users").
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &user, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &model.User{
		TelegramID:         user.TelegramID,
		Username:           user.Username,
		FirstName:          user.FirstName,
		LastName:           user.LastName,
		Points:             user.Points,
		DailyPoints:        user.DailyPoints,
		LotteryPoints:      user.LotteryPoints,
		NotifiedForLottery: user.NotifiedForLottery,
		LastActiveDate:     user.LastActiveDate,
		JoinedAt:           user.JoinedAt,
	}, nil
}

// UpsertUser inserts the user or refreshes the mutable profile fields when
// the row already exists. Counters are left untouched on conflict.
func (r *Repository) UpsertUser(ctx context.Context, user *model.User) error {
	if user.TelegramID == 0 {
		return fmt.Errorf("%w: telegram id", ErrMissingID)
	}

	query, args, err := squirrel.
		Insert("users").
		SetMap(map[string]interface{}{
			"telegram_id":      user.TelegramID,
			"username":         user.Username,
			"first_name":       user.FirstName,
			"last_name":        user.LastName,
			"last_active_date": user.LastActiveDate,
			"joined_at":        user.JoinedAt,
		}).
		Suffix("ON CONFLICT (telegram_id) DO UPDATE SET username = EXCLUDED.username, first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build user upsert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}

	return nil
}

func (r *Repository) UpdateActivity(ctx context.Context, telegramID int64, points, dailyPoints int, lastActiveDate string) error {
	query, args, err := squirrel.
		Update("users").
		SetMap(map[string]interface{}{
			"points":           points,
			"daily_points":     dailyPoints,
			"last_active_date": lastActiveDate,
		}).
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// SetNotified flips the per-cycle admission guard for one user.
func (r *Repository) SetNotified(ctx context.Context, telegramID int64, notified bool) error {
	query, args, err := squirrel.
		Update("users").
		Set("notified_for_lottery", notified).
		Where(squirrel.Eq{"telegram_id": telegramID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	return nil
}

// AddLotteryPoints credits prize points to a single winner. The read is
// only an existence check; the increment itself is done in SQL so
// concurrent credits to different users stay independent.
func (r *Repository) AddLotteryPoints(ctx context.Context, telegramID int64, delta int) error {
	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		var exists int
		checkQuery, checkArgs, err := squirrel.
			Select("1").
			From("users").
			Where(squirrel.Eq{"telegram_id": telegramID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		err = tx.GetContext(ctx, &exists, checkQuery, checkArgs...)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		updateQuery, updateArgs, err := squirrel.
			Update("users").
			Set("lottery_points", squirrel.Expr("lottery_points + ?", delta)).
			Where(squirrel.Eq{"telegram_id": telegramID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, updateQuery, updateArgs...)
		if err != nil {
			return err
		}

		return nil
	})
}
