package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"activity_lottery_bot/internal/model"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type lotteryRow struct {
	ID        uuid.UUID     `db:"lottery_id"`
	ChatID    int64         `db:"chat_id"`
	Prize     int           `db:"prize"`
	CreatedAt time.Time     `db:"created_at"`
	Deadline  time.Time     `db:"deadline"`
	Winners   pq.Int64Array `db:"winners"`
	Drawn     bool          `db:"is_drawn"`
}

type participantRow struct {
	UserID       int64 `db:"user_id"`
	MessageCount int   `db:"message_count"`
}

func (r *Repository) CreateLottery(ctx context.Context, lot *model.Lottery) error {
	if lot.ID == "" {
		return fmt.Errorf("%w: lottery id", ErrMissingID)
	}
	id, err := uuid.Parse(lot.ID)
	if err != nil {
		return fmt.Errorf("invalid lottery id %q: %w", lot.ID, err)
	}

	query, args, err := squirrel.
		Insert("lotteries").
		SetMap(map[string]interface{}{
			"lottery_id": id,
			"chat_id":    lot.ChatID,
			"prize":      lot.Prize,
			"created_at": lot.CreatedAt,
			"deadline":   lot.Deadline,
			"winners":    pq.Int64Array(lot.Winners),
			"is_drawn":   lot.Drawn,
		}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build lottery insert query: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to insert lottery: %w", err)
	}

	return nil
}

// FindOpenLottery returns the newest undrawn lottery of the chat created at
// or after dayStart.
func (r *Repository) FindOpenLottery(ctx context.Context, chatID int64, dayStart time.Time) (*model.Lottery, error) {
	var row lotteryRow
	query, args, err := squirrel.
		Select("lottery_id", "chat_id", "prize", "created_at", "deadline", "winners", "is_drawn").
		From("lotteries").
		Where(squirrel.Eq{"chat_id": chatID, "is_drawn": false}).
		Where(squirrel.GtOrEq{"created_at": dayStart}).
		OrderBy("created_at DESC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.GetContext(ctx, &row, query, args...)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return r.lotteryFromRow(ctx, &row)
}

// FindOverdueLotteries returns every undrawn lottery of the chat whose
// deadline has already passed. Used by startup recovery.
func (r *Repository) FindOverdueLotteries(ctx context.Context, chatID int64, now time.Time) ([]*model.Lottery, error) {
	var rows []lotteryRow
	query, args, err := squirrel.
		Select("lottery_id", "chat_id", "prize", "created_at", "deadline", "winners", "is_drawn").
		From("lotteries").
		Where(squirrel.Eq{"chat_id": chatID, "is_drawn": false}).
		Where(squirrel.LtOrEq{"deadline": now}).
		OrderBy("created_at ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	err = r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	lotteries := make([]*model.Lottery, 0, len(rows))
	for i := range rows {
		lot, err := r.lotteryFromRow(ctx, &rows[i])
		if err != nil {
			return nil, err
		}
		lotteries = append(lotteries, lot)
	}

	return lotteries, nil
}

// UpdateParticipants replaces the participant list of a lottery, keeping
// the given insertion order.
func (r *Repository) UpdateParticipants(ctx context.Context, lotteryID string, participants []model.Participant) error {
	if lotteryID == "" {
		return fmt.Errorf("%w: lottery id", ErrMissingID)
	}

	return r.Transaction(ctx, func(tx *sqlx.Tx) error {
		deleteQuery, deleteArgs, err := squirrel.
			Delete("lottery_participants").
			Where(squirrel.Eq{"lottery_id": lotteryID}).
			PlaceholderFormat(squirrel.Dollar).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build participants delete query: %w", err)
		}

		_, err = tx.ExecContext(ctx, deleteQuery, deleteArgs...)
		if err != nil {
			return fmt.Errorf("failed to delete participants: %w", err)
		}

		if len(participants) == 0 {
			return nil
		}

		builder := squirrel.
			Insert("lottery_participants").
			Columns("lottery_id", "user_id", "message_count", "position")

		for i, p := range participants {
			builder = builder.Values(lotteryID, p.UserID, p.MessageCount, i)
		}

		query, args, err := builder.PlaceholderFormat(squirrel.Dollar).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build participants insert query: %w", err)
		}

		_, err = tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to insert participants: %w", err)
		}

		return nil
	})
}

// SetDrawn flips the drawn flag and records the winners in one conditional
// update. Returns ErrAlreadyDrawn when the flag was already set, so a draw
// racing another trigger loses silently.
func (r *Repository) SetDrawn(ctx context.Context, lotteryID string, winners []int64) error {
	if lotteryID == "" {
		return fmt.Errorf("%w: lottery id", ErrMissingID)
	}

	query, args, err := squirrel.
		Update("lotteries").
		Set("is_drawn", true).
		Set("winners", pq.Int64Array(winners)).
		Where(squirrel.Eq{"lottery_id": lotteryID, "is_drawn": false}).
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
		return ErrAlreadyDrawn
	}

	return nil
}

// ListTrackedParticipantIDs returns the distinct user ids that appear in
// any lottery's participant list, past or present.
func (r *Repository) ListTrackedParticipantIDs(ctx context.Context) ([]int64, error) {
	query, args, err := squirrel.
		Select("DISTINCT user_id").
		From("lottery_participants").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var ids []int64
	err = r.db.SelectContext(ctx, &ids, query, args...)
	if err != nil {
		return nil, err
	}

	return ids, nil
}

func (r *Repository) lotteryFromRow(ctx context.Context, row *lotteryRow) (*model.Lottery, error) {
	query, args, err := squirrel.
		Select("user_id", "message_count").
		From("lottery_participants").
		Where(squirrel.Eq{"lottery_id": row.ID}).
		OrderBy("position ASC").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, err
	}

	var prows []participantRow
	err = r.db.SelectContext(ctx, &prows, query, args...)
	if err != nil {
		return nil, err
	}

	participants := make([]model.Participant, len(prows))
	for i, p := range prows {
		participants[i] = model.Participant{
			UserID:       p.UserID,
			MessageCount: p.MessageCount,
		}
	}

	return &model.Lottery{
		ID:           row.ID.String(),
		ChatID:       row.ChatID,
		Prize:        row.Prize,
		CreatedAt:    row.CreatedAt,
		Deadline:     row.Deadline,
		Participants: participants,
		Winners:      []int64(row.Winners),
		Drawn:        row.Drawn,
	}, nil
}
