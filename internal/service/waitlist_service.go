package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dynaprizes/waitlist/internal/domain"
	"github.com/dynaprizes/waitlist/internal/repository"
	"github.com/dynaprizes/waitlist/pkg/config"
	"github.com/dynaprizes/waitlist/pkg/events"
	"github.com/dynaprizes/waitlist/pkg/logger"
)

const (
	maxCodeAttempts = 8
	maxListLimit    = 100
	defaultPageSize = 50
)

type WaitlistService interface {
	Admit(ctx context.Context, req *domain.AdmissionReq) (*domain.AdmissionResult, error)
	Stats(ctx context.Context, now time.Time) (*domain.StatsSnapshot, error)
	LookupByReferralCode(ctx context.Context, code string) (*domain.PublicParticipant, error)
	Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error)
	Participants(ctx context.Context, limit, offset int) ([]domain.Participant, error)
	Total(ctx context.Context) (int64, error)
}

type Option func(*waitlistService)

// WithClock replaces time.Now as the source of joinedAt.
func WithClock(now func() time.Time) Option {
	return func(s *waitlistService) { s.now = now }
}

func WithCodeGenerator(gen CodeGenerator) Option {
	return func(s *waitlistService) { s.newCode = gen }
}

type waitlistService struct {
	store        repository.ParticipantStore
	publisher    events.Publisher
	cfg          config.WaitlistConfig
	storeTimeout time.Duration
	now          func() time.Time
	newCode      CodeGenerator
}

// NewWaitlistService builds the admission engine. publisher may be nil, in
// which case admissions emit no events.
func NewWaitlistService(
	store repository.ParticipantStore,
	publisher events.Publisher,
	cfg *config.Config,
	opts ...Option,
) WaitlistService {
	s := &waitlistService{
		store:        store,
		publisher:    publisher,
		cfg:          cfg.Waitlist,
		storeTimeout: cfg.Store.Timeout,
		now:          time.Now,
		newCode:      NewCodeGenerator(cfg.Waitlist.CodePrefix, cfg.Waitlist.CodeLength),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *waitlistService) Admit(ctx context.Context, req *domain.AdmissionReq) (*domain.AdmissionResult, error) {
	identity, err := domain.ResolveIdentity(req.Email, req.Mobile)
	if err != nil {
		return nil, err
	}

	existing, err := s.findExisting(ctx, identity)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return s.alreadyRegistered(ctx, existing)
	}

	referrer, err := s.resolveReferrer(ctx, req.ReferralCode)
	if err != nil {
		return nil, err
	}

	meta := req.Metadata
	if meta.Source == "" {
		meta.Source = s.cfg.DefaultSource
	}

	var stored *domain.Participant
	for attempt := 0; stored == nil; attempt++ {
		if attempt == maxCodeAttempts {
			return nil, fmt.Errorf("%w: could not allocate a unique referral code", domain.ErrStoreUnavailable)
		}

		code, err := s.uniqueCandidate(ctx)
		if err != nil {
			return nil, err
		}
		if code == "" {
			continue
		}

		candidate := &domain.Participant{
			ID:           uuid.NewString(),
			Email:        identity.Email,
			Mobile:       identity.Mobile,
			ReferralCode: code,
			JoinedAt:     s.now(),
			Metadata:     meta,
		}
		if referrer != nil {
			// The store credits the referrer atomically with this insert.
			candidate.ReferredByCode = referrer.ReferralCode
		}

		stored, err = s.insert(ctx, candidate)
		if ce, ok := repository.IsConflict(err); ok {
			if ce.Field == repository.FieldReferralCode {
				continue
			}
			// Lost a race against a concurrent signup with the same identity.
			return s.resolveConflict(ctx, identity)
		}
		if err != nil {
			return nil, err
		}
	}

	total, err := s.count(ctx)
	if err != nil {
		logger.WarnContext(ctx, "Failed to count participants after admission", "error", err)
		total = stored.Position
	}

	result := &domain.AdmissionResult{
		Outcome:      domain.OutcomeCreated,
		Position:     stored.Position,
		ReferralCode: stored.ReferralCode,
		ReferralLink: s.referralLink(stored.ReferralCode),
		Total:        total,
		Participant:  stored,
	}

	logger.InfoContext(ctx, "Participant admitted",
		"position", stored.Position,
		"referred", stored.ReferredByCode != "",
		"source", meta.Source,
	)
	s.publishAdmitted(ctx, stored, result)

	return result, nil
}

// findExisting checks email first, then mobile. The first hit wins; the two
// fields are never OR-ed against a single record.
func (s *waitlistService) findExisting(ctx context.Context, id domain.Identity) (*domain.Participant, error) {
	if id.Email != "" {
		p, err := s.call(ctx, "find by email", func(ctx context.Context) (*domain.Participant, error) {
			return s.store.FindByNormalizedEmail(ctx, id.Email)
		})
		if err != nil || p != nil {
			return p, err
		}
	}
	if id.Mobile != "" {
		return s.call(ctx, "find by mobile", func(ctx context.Context) (*domain.Participant, error) {
			return s.store.FindByNormalizedMobile(ctx, id.Mobile)
		})
	}
	return nil, nil
}

func (s *waitlistService) resolveReferrer(ctx context.Context, code string) (*domain.Participant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	referrer, err := s.call(ctx, "find referrer", func(ctx context.Context) (*domain.Participant, error) {
		return s.store.FindByReferralCode(ctx, code)
	})
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		logger.WarnContext(ctx, "Ignoring unknown referral code", "referral_code", code)
	}
	return referrer, nil
}

// uniqueCandidate returns a generated code not yet in the store, or "" when
// the candidate is taken.
func (s *waitlistService) uniqueCandidate(ctx context.Context) (string, error) {
	code, err := s.newCode()
	if err != nil {
		return "", fmt.Errorf("generate referral code: %w", err)
	}
	taken, err := s.call(ctx, "check referral code", func(ctx context.Context) (*domain.Participant, error) {
		return s.store.FindByReferralCode(ctx, code)
	})
	if err != nil {
		return "", err
	}
	if taken != nil {
		logger.DebugContext(ctx, "Referral code collision, regenerating")
		return "", nil
	}
	return code, nil
}

func (s *waitlistService) insert(ctx context.Context, p *domain.Participant) (*domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	stored, err := s.store.InsertParticipant(ctx, p)
	if err != nil {
		if _, ok := repository.IsConflict(err); ok {
			return nil, err
		}
		return nil, unavailable("insert participant", err)
	}
	return stored, nil
}

func (s *waitlistService) resolveConflict(ctx context.Context, id domain.Identity) (*domain.AdmissionResult, error) {
	existing, err := s.findExisting(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: conflicting participant not visible yet", domain.ErrStoreUnavailable)
	}
	return s.alreadyRegistered(ctx, existing)
}

func (s *waitlistService) alreadyRegistered(ctx context.Context, p *domain.Participant) (*domain.AdmissionResult, error) {
	total, err := s.count(ctx)
	if err != nil {
		return nil, err
	}

	logger.DebugContext(ctx, "Participant already registered", "position", p.Position)

	return &domain.AdmissionResult{
		Outcome:      domain.OutcomeAlreadyRegistered,
		Position:     p.Position,
		ReferralCode: p.ReferralCode,
		ReferralLink: s.referralLink(p.ReferralCode),
		Total:        total,
		Participant:  p,
	}, nil
}

func (s *waitlistService) publishAdmitted(ctx context.Context, p *domain.Participant, r *domain.AdmissionResult) {
	if s.publisher == nil {
		return
	}

	event := events.ParticipantAdmittedEvent{
		Email:        p.Email,
		Mobile:       p.Mobile,
		Position:     p.Position,
		ReferralCode: p.ReferralCode,
		ReferralLink: r.ReferralLink,
		Total:        r.Total,
		ReferredBy:   p.ReferredByCode,
		AdmittedAt:   p.JoinedAt,
	}
	if err := s.publisher.Publish(ctx, events.ParticipantAdmitted, event); err != nil {
		logger.ErrorContext(ctx, "Failed to publish participant admitted event", "error", err, "position", p.Position)
	}
}

func (s *waitlistService) Stats(ctx context.Context, now time.Time) (*domain.StatsSnapshot, error) {
	total, err := s.count(ctx)
	if err != nil {
		return nil, err
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	today, err := s.countSince(ctx, midnight)
	if err != nil {
		return nil, err
	}
	week, err := s.countSince(ctx, now.Add(-7*24*time.Hour))
	if err != nil {
		return nil, err
	}

	recent, err := s.list(ctx, "list recent", func(ctx context.Context) ([]domain.Participant, error) {
		return s.store.ListRecentByJoinedAtDesc(ctx, s.cfg.RecentLimit, 0)
	})
	if err != nil {
		return nil, err
	}

	snapshot := &domain.StatsSnapshot{
		Total:      total,
		TodayCount: today,
		WeekCount:  week,
		Recent:     make([]domain.RecentSignup, 0, len(recent)),
		Timestamp:  now,
	}
	for i := range recent {
		snapshot.Recent = append(snapshot.Recent, domain.RecentSignup{
			Identity: recent[i].MaskedIdentity(),
			Position: recent[i].Position,
			JoinedAt: recent[i].JoinedAt,
		})
	}
	return snapshot, nil
}

func (s *waitlistService) LookupByReferralCode(ctx context.Context, code string) (*domain.PublicParticipant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, domain.ErrNotFound
	}

	p, err := s.call(ctx, "find by referral code", func(ctx context.Context) (*domain.Participant, error) {
		return s.store.FindByReferralCode(ctx, code)
	})
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.ErrNotFound
	}

	public := p.Public()
	return &public, nil
}

func (s *waitlistService) Leaderboard(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.cfg.LeaderboardLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	leaders, err := s.list(ctx, "list leaderboard", func(ctx context.Context) ([]domain.Participant, error) {
		return s.store.ListByReferralCountDesc(ctx, limit)
	})
	if err != nil {
		return nil, err
	}

	entries := make([]domain.LeaderboardEntry, 0, len(leaders))
	for i := range leaders {
		if leaders[i].ReferralCount <= 0 {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			Identity:      leaders[i].MaskedIdentity(),
			ReferralCount: leaders[i].ReferralCount,
			Position:      leaders[i].Position,
		})
	}
	return entries, nil
}

func (s *waitlistService) Participants(ctx context.Context, limit, offset int) ([]domain.Participant, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.list(ctx, "list participants", func(ctx context.Context) ([]domain.Participant, error) {
		return s.store.ListRecentByJoinedAtDesc(ctx, limit, offset)
	})
}

func (s *waitlistService) Total(ctx context.Context) (int64, error) {
	return s.count(ctx)
}

func (s *waitlistService) count(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	n, err := s.store.CountParticipants(ctx)
	if err != nil {
		return 0, unavailable("count participants", err)
	}
	return n, nil
}

func (s *waitlistService) countSince(ctx context.Context, since time.Time) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	n, err := s.store.CountSince(ctx, since)
	if err != nil {
		return 0, unavailable("count since", err)
	}
	return n, nil
}

// call runs a single-record store lookup under the store timeout.
func (s *waitlistService) call(ctx context.Context, op string, fn func(context.Context) (*domain.Participant, error)) (*domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	p, err := fn(ctx)
	if err != nil {
		return nil, unavailable(op, err)
	}
	return p, nil
}

func (s *waitlistService) list(ctx context.Context, op string, fn func(context.Context) ([]domain.Participant, error)) ([]domain.Participant, error) {
	ctx, cancel := context.WithTimeout(ctx, s.storeTimeout)
	defer cancel()

	ps, err := fn(ctx)
	if err != nil {
		return nil, unavailable(op, err)
	}
	return ps, nil
}

func (s *waitlistService) referralLink(code string) string {
	u, err := url.Parse(s.cfg.BaseURL)
	if err != nil {
		return s.cfg.BaseURL + "?ref=" + url.QueryEscape(code)
	}
	q := u.Query()
	q.Set("ref", code)
	u.RawQuery = q.Encode()
	return u.String()
}

func unavailable(op string, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}
