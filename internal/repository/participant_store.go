package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dynaprizes/waitlist/internal/domain"
)

// ParticipantStore is the durable record store behind the waitlist.
//
// Find* methods return (nil, nil) when nothing matches. InsertParticipant
// assigns Position atomically with the insert and returns a *ConflictError
// when the normalized email, mobile or referral code already exists; a
// failed insert never consumes a position. When ReferredByCode is set the
// referrer's ReferralCount is incremented in the same atomic unit, so a
// referral is recorded and credited together or not at all.
type ParticipantStore interface {
	CountParticipants(ctx context.Context) (int64, error)
	FindByNormalizedEmail(ctx context.Context, email string) (*domain.Participant, error)
	FindByNormalizedMobile(ctx context.Context, mobile string) (*domain.Participant, error)
	FindByReferralCode(ctx context.Context, code string) (*domain.Participant, error)
	InsertParticipant(ctx context.Context, p *domain.Participant) (*domain.Participant, error)
	ListRecentByJoinedAtDesc(ctx context.Context, limit, offset int) ([]domain.Participant, error)
	ListByReferralCountDesc(ctx context.Context, limit int) ([]domain.Participant, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
}

// ErrNotFound is returned by InsertParticipant when ReferredByCode names no
// stored participant.
var ErrNotFound = errors.New("record not found")

const (
	FieldEmail        = "email"
	FieldMobile       = "mobile"
	FieldReferralCode = "referral_code"
)

// ConflictError reports a unique-constraint violation on insert.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("participant with this %s already exists", e.Field)
}

// IsConflict reports whether err is a *ConflictError and returns it.
func IsConflict(err error) (*ConflictError, bool) {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
