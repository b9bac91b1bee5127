package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dynaprizes/waitlist/internal/domain"
)

func TestKeysShareHashTag(t *testing.T) {
	k := newKeys("dyn")
	for _, key := range []string{k.counter(), k.emailIndex(), k.mobileIndex(), k.joined(), k.leaders(), k.record("DYNABC123")} {
		assert.Contains(t, key, "{dyn}:")
	}
	assert.Equal(t, "{waitlist}:counter", newKeys("").counter())
}

func TestParticipantFromHash(t *testing.T) {
	joined := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	p, err := participantFromHash(map[string]string{
		"id":             "6f1c1a52-0000-4000-8000-000000000001",
		"email":          "ada@example.com",
		"mobile":         "",
		"position":       "7",
		"referral_code":  "DYNABC123",
		"referred_by":    "DYNZZZ999",
		"referral_count": "3",
		"joined_at":      "1772368200000",
		"metadata":       `{"ip":"10.0.0.1","source":"website"}`,
	})
	require.NoError(t, err)

	assert.Equal(t, &domain.Participant{
		ID:             "6f1c1a52-0000-4000-8000-000000000001",
		Email:          "ada@example.com",
		Position:       7,
		ReferralCode:   "DYNABC123",
		ReferredByCode: "DYNZZZ999",
		ReferralCount:  3,
		JoinedAt:       joined,
		Metadata:       domain.Metadata{IP: "10.0.0.1", Source: "website"},
	}, p)
}

func TestParticipantFromHash_BadPosition(t *testing.T) {
	_, err := participantFromHash(map[string]string{"position": "x", "referral_count": "0", "joined_at": "0"})
	assert.Error(t, err)
}
