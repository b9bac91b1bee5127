package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dynaprizes/waitlist/internal/domain"
	"github.com/dynaprizes/waitlist/internal/repository"
)

var _ repository.ParticipantStore = (*ParticipantRepository)(nil)

type ParticipantRepository struct {
	pool *pgxpool.Pool
}

func NewParticipantRepository(pool *pgxpool.Pool) *ParticipantRepository {
	return &ParticipantRepository{pool: pool}
}

const participantCols = `id, coalesce(email, ''), coalesce(mobile, ''), position,
referral_code, coalesce(referred_by, ''), referral_count, joined_at, metadata`

const uniqueViolation = "23505"

func scanParticipant(row pgx.Row) (*domain.Participant, error) {
	var p domain.Participant
	if err := row.Scan(
		&p.ID, &p.Email, &p.Mobile, &p.Position,
		&p.ReferralCode, &p.ReferredByCode, &p.ReferralCount, &p.JoinedAt, &p.Metadata,
	); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ParticipantRepository) CountParticipants(ctx context.Context) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM participants`).Scan(&n)
	return n, err
}

func (r *ParticipantRepository) findOne(ctx context.Context, where string, arg any) (*domain.Participant, error) {
	q := `SELECT ` + participantCols + ` FROM participants WHERE ` + where
	p, err := scanParticipant(r.pool.QueryRow(ctx, q, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

func (r *ParticipantRepository) FindByNormalizedEmail(ctx context.Context, email string) (*domain.Participant, error) {
	return r.findOne(ctx, `email=$1`, email)
}

func (r *ParticipantRepository) FindByNormalizedMobile(ctx context.Context, mobile string) (*domain.Participant, error) {
	return r.findOne(ctx, `mobile=$1`, mobile)
}

func (r *ParticipantRepository) FindByReferralCode(ctx context.Context, code string) (*domain.Participant, error) {
	return r.findOne(ctx, `referral_code=$1`, code)
}

// InsertParticipant takes the next position from the counter row inside the
// insert transaction. The row lock serializes concurrent admissions and a
// rollback on conflict hands the position back. The referrer is credited in
// the same transaction.
func (r *ParticipantRepository) InsertParticipant(ctx context.Context, p *domain.Participant) (*domain.Participant, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, fmt.Errorf("begin insert participant: %w", err)
	}
	defer tx.Rollback(ctx)

	var position int64
	if err := tx.QueryRow(ctx,
		`UPDATE waitlist_counter SET value = value + 1 WHERE id = 1 RETURNING value`,
	).Scan(&position); err != nil {
		return nil, fmt.Errorf("next position: %w", err)
	}

	const q = `INSERT INTO participants (
		id, email, mobile, position, referral_code, referred_by, referral_count, joined_at, metadata
	) VALUES ($1, nullif($2, ''), nullif($3, ''), $4, $5, nullif($6, ''), 0, $7, $8)
	RETURNING ` + participantCols

	stored, err := scanParticipant(tx.QueryRow(ctx, q,
		p.ID, p.Email, p.Mobile, position, p.ReferralCode, p.ReferredByCode, p.JoinedAt, p.Metadata,
	))
	if err != nil {
		if ce := conflictFromPgError(err); ce != nil {
			return nil, ce
		}
		return nil, fmt.Errorf("insert participant: %w", err)
	}

	if p.ReferredByCode != "" {
		tag, err := tx.Exec(ctx,
			`UPDATE participants SET referral_count = referral_count + 1 WHERE referral_code=$1`,
			p.ReferredByCode)
		if err != nil {
			return nil, fmt.Errorf("credit referrer: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil, repository.ErrNotFound
		}
	}

	if err := tx.Commit(ctx); err != nil {
		if ce := conflictFromPgError(err); ce != nil {
			return nil, ce
		}
		return nil, fmt.Errorf("commit insert participant: %w", err)
	}
	return stored, nil
}

func (r *ParticipantRepository) ListRecentByJoinedAtDesc(ctx context.Context, limit, offset int) ([]domain.Participant, error) {
	if offset < 0 {
		offset = 0
	}
	q := `SELECT ` + participantCols + ` FROM participants
		ORDER BY joined_at DESC, position DESC LIMIT $1 OFFSET $2`
	return r.list(ctx, q, limit, offset)
}

func (r *ParticipantRepository) ListByReferralCountDesc(ctx context.Context, limit int) ([]domain.Participant, error) {
	q := `SELECT ` + participantCols + ` FROM participants
		WHERE referral_count > 0
		ORDER BY referral_count DESC, joined_at ASC, position ASC LIMIT $1`
	return r.list(ctx, q, limit)
}

func (r *ParticipantRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var n int64
	err := r.pool.QueryRow(ctx, `SELECT count(*) FROM participants WHERE joined_at >= $1`, since).Scan(&n)
	return n, err
}

func (r *ParticipantRepository) list(ctx context.Context, q string, args ...any) ([]domain.Participant, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	participants := []domain.Participant{}
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *p)
	}
	return participants, rows.Err()
}

// conflictFromPgError maps unique-index violations to the field they guard.
func conflictFromPgError(err error) *repository.ConflictError {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	switch pgErr.ConstraintName {
	case "participants_email_key":
		return &repository.ConflictError{Field: repository.FieldEmail}
	case "participants_mobile_key":
		return &repository.ConflictError{Field: repository.FieldMobile}
	case "participants_referral_code_key":
		return &repository.ConflictError{Field: repository.FieldReferralCode}
	default:
		return nil
	}
}
