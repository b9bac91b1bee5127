package redis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynaprizes/waitlist/internal/domain"
	"github.com/dynaprizes/waitlist/internal/repository"
)

func newTestRepository(t *testing.T) (*ParticipantRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewParticipantRepository(client, "test"), mr
}

func add(t *testing.T, r *ParticipantRepository, email, mobile, code, referredBy string, joined time.Time) (*domain.Participant, error) {
	t.Helper()
	return r.InsertParticipant(context.Background(), &domain.Participant{
		ID:             "id-" + code,
		Email:          email,
		Mobile:         mobile,
		ReferralCode:   code,
		ReferredByCode: referredBy,
		JoinedAt:       joined,
		Metadata:       domain.Metadata{Source: "website"},
	})
}

func TestInsert_PositionsAndConflicts(t *testing.T) {
	r, _ := newTestRepository(t)
	ctx := context.Background()
	now := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	a, err := add(t, r, "a@example.com", "", "DYNAAAAAA", "", now)
	require.NoError(t, err)
	b, err := add(t, r, "", "5551234567", "DYNBBBBBB", "", now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Position)
	assert.Equal(t, int64(2), b.Position)
	assert.Equal(t, now, a.JoinedAt)

	tests := []struct {
		name, email, mobile, code, field string
	}{
		{"email", "a@example.com", "", "DYNCCCCCC", repository.FieldEmail},
		{"mobile", "", "5551234567", "DYNCCCCCC", repository.FieldMobile},
		{"code", "c@example.com", "", "DYNAAAAAA", repository.FieldReferralCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := add(t, r, tt.email, tt.mobile, tt.code, "", now)
			ce, ok := repository.IsConflict(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}

	_, err = add(t, r, "d@example.com", "", "DYNDDDDDD", "DYNNOBODY", now)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	c, err := add(t, r, "c@example.com", "", "DYNCCCCCC", "", now)
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.Position, "rejected inserts must not consume positions")

	n, err := r.CountParticipants(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	got, err := r.FindByNormalizedMobile(ctx, "5551234567")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "DYNBBBBBB", got.ReferralCode)
	assert.Equal(t, "website", got.Metadata.Source)

	missing, err := r.FindByNormalizedEmail(ctx, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestInsert_ConcurrentPositionsAreGapless(t *testing.T) {
	r, _ := newTestRepository(t)
	now := time.Now()

	const n = 50
	positions := make([]bool, n+1)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := add(t, r, fmt.Sprintf("u%02d@example.com", i), "", fmt.Sprintf("DYNCON%03d", i), "", now)
			if err != nil {
				t.Errorf("insert %d: %v", i, err)
				return
			}
			mu.Lock()
			positions[p.Position] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	for pos := 1; pos <= n; pos++ {
		assert.True(t, positions[pos], "position %d missing", pos)
	}
}

func TestInsert_CreditsReferrerAndRanksLeaders(t *testing.T) {
	r, _ := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	for _, code := range []string{"DYNFIRST1", "DYNSECND2", "DYNTHIRD3"} {
		_, err := add(t, r, code+"@example.com", "", code, "", now)
		require.NoError(t, err)
	}

	refer := func(code string, times int) {
		for i := 0; i < times; i++ {
			_, err := add(t, r, fmt.Sprintf("%s-%d@example.com", code, i), "", fmt.Sprintf("%s%02d", code, i), code, now)
			require.NoError(t, err)
		}
	}
	refer("DYNSECND2", 2)
	refer("DYNTHIRD3", 1)
	refer("DYNFIRST1", 2)

	// A conflicting referred insert credits no one.
	_, err := add(t, r, "DYNFIRST1@example.com", "", "DYNDUPE00", "DYNFIRST1", now)
	_, isConflict := repository.IsConflict(err)
	require.True(t, isConflict)

	first, err := r.FindByReferralCode(ctx, "DYNFIRST1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), first.ReferralCount)

	leaders, err := r.ListByReferralCountDesc(ctx, 10)
	require.NoError(t, err)
	require.Len(t, leaders, 3)
	assert.Equal(t, []string{"DYNFIRST1", "DYNSECND2", "DYNTHIRD3"},
		[]string{leaders[0].ReferralCode, leaders[1].ReferralCode, leaders[2].ReferralCode})
	assert.Equal(t, []int64{2, 2, 1},
		[]int64{leaders[0].ReferralCount, leaders[1].ReferralCount, leaders[2].ReferralCount})

	top, err := r.ListByReferralCountDesc(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "DYNFIRST1", top[0].ReferralCode)
}

func TestRecentAndCountSince(t *testing.T) {
	r, mr := newTestRepository(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)

	// The last two share a millisecond; position breaks the tie. Codes are
	// chosen so member-name order would disagree.
	for i, code := range []string{"DYNZZZZZZ", "DYNYYYYYY", "DYNBBBBBB", "DYNAAAAAA"} {
		joined := base.Add(time.Duration(i) * time.Hour)
		if i == 3 {
			joined = base.Add(2 * time.Hour)
		}
		_, err := add(t, r, fmt.Sprintf("u%d@example.com", i), "", code, "", joined)
		require.NoError(t, err)
	}

	members, err := mr.ZMembers(newKeys("test").joined())
	require.NoError(t, err)
	assert.Contains(t, members, joinedMember(4, "DYNAAAAAA"))

	recent, err := r.ListRecentByJoinedAtDesc(ctx, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{4, 3, 2}, []int64{recent[0].Position, recent[1].Position, recent[2].Position})

	page, err := r.ListRecentByJoinedAtDesc(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "DYNZZZZZZ", page[0].ReferralCode)

	since, err := r.CountSince(ctx, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), since)
}
