package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dynaprizes/waitlist/internal/domain"
	"github.com/dynaprizes/waitlist/internal/repository"
)

var _ repository.ParticipantStore = (*ParticipantRepository)(nil)

// ParticipantRepository keeps participants in process memory. A single mutex
// serializes every call, which gives InsertParticipant the same atomicity the
// durable stores get from transactions or scripts.
type ParticipantRepository struct {
	mu       sync.RWMutex
	byPos    []*domain.Participant
	byEmail  map[string]*domain.Participant
	byMobile map[string]*domain.Participant
	byCode   map[string]*domain.Participant
}

func NewParticipantRepository() *ParticipantRepository {
	return &ParticipantRepository{
		byEmail:  make(map[string]*domain.Participant),
		byMobile: make(map[string]*domain.Participant),
		byCode:   make(map[string]*domain.Participant),
	}
}

func (r *ParticipantRepository) CountParticipants(_ context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.byPos)), nil
}

func (r *ParticipantRepository) FindByNormalizedEmail(_ context.Context, email string) (*domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.byEmail[email]), nil
}

func (r *ParticipantRepository) FindByNormalizedMobile(_ context.Context, mobile string) (*domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.byMobile[mobile]), nil
}

func (r *ParticipantRepository) FindByReferralCode(_ context.Context, code string) (*domain.Participant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return clone(r.byCode[code]), nil
}

func (r *ParticipantRepository) InsertParticipant(_ context.Context, p *domain.Participant) (*domain.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Email != "" {
		if _, ok := r.byEmail[p.Email]; ok {
			return nil, &repository.ConflictError{Field: repository.FieldEmail}
		}
	}
	if p.Mobile != "" {
		if _, ok := r.byMobile[p.Mobile]; ok {
			return nil, &repository.ConflictError{Field: repository.FieldMobile}
		}
	}
	if _, ok := r.byCode[p.ReferralCode]; ok {
		return nil, &repository.ConflictError{Field: repository.FieldReferralCode}
	}
	var referrer *domain.Participant
	if p.ReferredByCode != "" {
		var ok bool
		if referrer, ok = r.byCode[p.ReferredByCode]; !ok {
			return nil, repository.ErrNotFound
		}
	}

	stored := clone(p)
	stored.Position = int64(len(r.byPos)) + 1
	stored.ReferralCount = 0

	r.byPos = append(r.byPos, stored)
	if stored.Email != "" {
		r.byEmail[stored.Email] = stored
	}
	if stored.Mobile != "" {
		r.byMobile[stored.Mobile] = stored
	}
	r.byCode[stored.ReferralCode] = stored
	if referrer != nil {
		referrer.ReferralCount++
	}

	return clone(stored), nil
}

func (r *ParticipantRepository) ListRecentByJoinedAtDesc(_ context.Context, limit, offset int) ([]domain.Participant, error) {
	r.mu.RLock()
	all := r.snapshot()
	r.mu.RUnlock()

	sort.SliceStable(all, func(i, j int) bool {
		if !all[i].JoinedAt.Equal(all[j].JoinedAt) {
			return all[i].JoinedAt.After(all[j].JoinedAt)
		}
		return all[i].Position > all[j].Position
	})
	return page(all, limit, offset), nil
}

func (r *ParticipantRepository) ListByReferralCountDesc(_ context.Context, limit int) ([]domain.Participant, error) {
	r.mu.RLock()
	all := r.snapshot()
	r.mu.RUnlock()

	leaders := all[:0]
	for _, p := range all {
		if p.ReferralCount > 0 {
			leaders = append(leaders, p)
		}
	}
	sort.SliceStable(leaders, func(i, j int) bool {
		a, b := leaders[i], leaders[j]
		if a.ReferralCount != b.ReferralCount {
			return a.ReferralCount > b.ReferralCount
		}
		if !a.JoinedAt.Equal(b.JoinedAt) {
			return a.JoinedAt.Before(b.JoinedAt)
		}
		return a.Position < b.Position
	})
	return page(leaders, limit, 0), nil
}

func (r *ParticipantRepository) CountSince(_ context.Context, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, p := range r.byPos {
		if !p.JoinedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

// snapshot copies all records; callers must hold r.mu.
func (r *ParticipantRepository) snapshot() []domain.Participant {
	out := make([]domain.Participant, len(r.byPos))
	for i, p := range r.byPos {
		out[i] = *p
	}
	return out
}

func page(ps []domain.Participant, limit, offset int) []domain.Participant {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(ps) {
		return []domain.Participant{}
	}
	ps = ps[offset:]
	if limit > 0 && limit < len(ps) {
		ps = ps[:limit]
	}
	return ps
}

func clone(p *domain.Participant) *domain.Participant {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
