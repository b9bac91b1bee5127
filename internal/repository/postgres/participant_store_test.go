package postgres

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynaprizes/waitlist/internal/domain"
	"github.com/dynaprizes/waitlist/internal/repository"
	"github.com/dynaprizes/waitlist/pkg/config"
	"github.com/dynaprizes/waitlist/pkg/database"
)

// newTestRepository runs against TEST_DATABASE_URL, a disposable database:
// the tables are truncated before each test.
func newTestRepository(t *testing.T) *ParticipantRepository {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	require.NoError(t, database.Migrate(dsn, Migrations, MigrationsDir))

	ctx := context.Background()
	pool, err := database.Connect(ctx, config.DatabaseConfig{URL: dsn, MaxConns: 10, MinConns: 1, MaxLifetime: time.Hour})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE participants`)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `UPDATE waitlist_counter SET value = 0 WHERE id = 1`)
	require.NoError(t, err)

	return NewParticipantRepository(pool)
}

func add(t *testing.T, r *ParticipantRepository, email, mobile, code, referredBy string) (*domain.Participant, error) {
	t.Helper()
	return r.InsertParticipant(context.Background(), &domain.Participant{
		ID:             uuid.NewString(),
		Email:          email,
		Mobile:         mobile,
		ReferralCode:   code,
		ReferredByCode: referredBy,
		JoinedAt:       time.Now().UTC(),
		Metadata:       domain.Metadata{Source: "website"},
	})
}

func TestInsert_GaplessUnderConflicts(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	a, err := add(t, r, "a@example.com", "", "DYNAAAAAA", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.Position)

	_, err = add(t, r, "", "5551234567", "DYNBBBBBB", "")
	require.NoError(t, err)

	tests := []struct {
		name, email, mobile, code, field string
	}{
		{"email", "a@example.com", "", "DYNCCCCCC", repository.FieldEmail},
		{"mobile", "", "5551234567", "DYNCCCCCC", repository.FieldMobile},
		{"code", "c@example.com", "", "DYNAAAAAA", repository.FieldReferralCode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := add(t, r, tt.email, tt.mobile, tt.code, "")
			ce, ok := repository.IsConflict(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tt.field, ce.Field)
		})
	}

	_, err = add(t, r, "d@example.com", "", "DYNDDDDDD", "DYNNOBODY")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	c, err := add(t, r, "c@example.com", "", "DYNCCCCCC", "DYNAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, int64(3), c.Position)

	referrer, err := r.FindByReferralCode(ctx, "DYNAAAAAA")
	require.NoError(t, err)
	assert.Equal(t, int64(1), referrer.ReferralCount)

	got, err := r.FindByNormalizedMobile(ctx, "5551234567")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Empty(t, got.Email)
	assert.Equal(t, "website", got.Metadata.Source)
}

func TestInsert_ConcurrentReferralsArePositionedAndCounted(t *testing.T) {
	r := newTestRepository(t)
	ctx := context.Background()

	_, err := add(t, r, "ref@example.com", "", "DYNREFERR", "")
	require.NoError(t, err)

	const n = 20
	var (
		mu        sync.Mutex
		positions []int64
		wg        sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := add(t, r, fmt.Sprintf("f%02d@example.com", i), "", fmt.Sprintf("DYNF%05d", i), "DYNREFERR")
			if err != nil {
				t.Errorf("insert %d: %v", i, err)
				return
			}
			mu.Lock()
			positions = append(positions, p.Position)
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	sort.Slice(positions, func(i, j int) bool { return positions[i] < positions[j] })
	for i, p := range positions {
		assert.Equal(t, int64(i+2), p)
	}

	referrer, err := r.FindByReferralCode(ctx, "DYNREFERR")
	require.NoError(t, err)
	assert.Equal(t, int64(n), referrer.ReferralCount)

	leaders, err := r.ListByReferralCountDesc(ctx, 5)
	require.NoError(t, err)
	require.Len(t, leaders, 1)
	assert.Equal(t, "DYNREFERR", leaders[0].ReferralCode)

	total, err := r.CountParticipants(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(n+1), total)
}
