package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dynaprizes/waitlist/internal/domain"
	"github.com/dynaprizes/waitlist/internal/repository"
)

var _ repository.ParticipantStore = (*ParticipantRepository)(nil)

// Every key shares one hash tag so the scripts stay on a single cluster slot.
type keys struct {
	prefix string
}

func newKeys(prefix string) keys {
	if prefix == "" {
		prefix = "waitlist"
	}
	return keys{prefix: "{" + prefix + "}"}
}

func (k keys) counter() string     { return k.prefix + ":counter" }
func (k keys) emailIndex() string  { return k.prefix + ":idx:email" }
func (k keys) mobileIndex() string { return k.prefix + ":idx:mobile" }
func (k keys) joined() string      { return k.prefix + ":joined" }
func (k keys) leaders() string     { return k.prefix + ":leaders" }
func (k keys) record(code string) string {
	return k.prefix + ":p:" + code
}

// insertScript checks every unique index and the referrer before taking a
// position, so a rejected insert never burns one. Members of the joined set
// are "<zero-padded position>:<code>": equal millisecond scores then order
// by position.
//
// The referrer's leaderboard score is count*2^32 + (2^32-1-position): higher
// counts first, earlier joiners on ties. Position stands in for joinedAt
// here because it is assigned in join order.
var insertScript = goredis.NewScript(`
local email, mobile, code, referrer = ARGV[1], ARGV[2], ARGV[3], ARGV[5]
if email ~= '' and redis.call('HEXISTS', KEYS[2], email) == 1 then
  return {0, 'email'}
end
if mobile ~= '' and redis.call('HEXISTS', KEYS[3], mobile) == 1 then
  return {0, 'mobile'}
end
if redis.call('EXISTS', KEYS[5]) == 1 then
  return {0, 'referral_code'}
end
if referrer ~= '' and redis.call('EXISTS', KEYS[6]) == 0 then
  return {0, 'referred_by'}
end
local pos = redis.call('INCR', KEYS[1])
redis.call('HSET', KEYS[5],
  'id', ARGV[4], 'email', email, 'mobile', mobile, 'position', pos,
  'referral_code', code, 'referred_by', referrer, 'referral_count', 0,
  'joined_at', ARGV[6], 'metadata', ARGV[7])
if email ~= '' then redis.call('HSET', KEYS[2], email, code) end
if mobile ~= '' then redis.call('HSET', KEYS[3], mobile, code) end
redis.call('ZADD', KEYS[4], ARGV[6], string.format('%019.0f', pos) .. ':' .. code)
if referrer ~= '' then
  local count = redis.call('HINCRBY', KEYS[6], 'referral_count', 1)
  local rpos = tonumber(redis.call('HGET', KEYS[6], 'position'))
  local score = count * 4294967296 + (4294967295 - rpos)
  redis.call('ZADD', KEYS[7], string.format('%.0f', score), referrer)
end
return {1, pos}
`)

type ParticipantRepository struct {
	client goredis.UniversalClient
	keys   keys
}

func NewParticipantRepository(client goredis.UniversalClient, prefix string) *ParticipantRepository {
	return &ParticipantRepository{client: client, keys: newKeys(prefix)}
}

func (r *ParticipantRepository) CountParticipants(ctx context.Context) (int64, error) {
	return r.client.ZCard(ctx, r.keys.joined()).Result()
}

func (r *ParticipantRepository) FindByNormalizedEmail(ctx context.Context, email string) (*domain.Participant, error) {
	return r.findByIndex(ctx, r.keys.emailIndex(), email)
}

func (r *ParticipantRepository) FindByNormalizedMobile(ctx context.Context, mobile string) (*domain.Participant, error) {
	return r.findByIndex(ctx, r.keys.mobileIndex(), mobile)
}

func (r *ParticipantRepository) FindByReferralCode(ctx context.Context, code string) (*domain.Participant, error) {
	fields, err := r.client.HGetAll(ctx, r.keys.record(code)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, nil
	}
	return participantFromHash(fields)
}

func (r *ParticipantRepository) findByIndex(ctx context.Context, index, value string) (*domain.Participant, error) {
	code, err := r.client.HGet(ctx, index, value).Result()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return r.FindByReferralCode(ctx, code)
}

func (r *ParticipantRepository) InsertParticipant(ctx context.Context, p *domain.Participant) (*domain.Participant, error) {
	meta, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}

	res, err := insertScript.Run(ctx, r.client,
		[]string{
			r.keys.counter(), r.keys.emailIndex(), r.keys.mobileIndex(),
			r.keys.joined(), r.keys.record(p.ReferralCode),
			r.keys.record(p.ReferredByCode), r.keys.leaders(),
		},
		p.Email, p.Mobile, p.ReferralCode, p.ID, p.ReferredByCode,
		p.JoinedAt.UnixMilli(), string(meta),
	).Slice()
	if err != nil {
		return nil, fmt.Errorf("insert participant: %w", err)
	}
	if len(res) != 2 {
		return nil, fmt.Errorf("insert participant: unexpected reply %v", res)
	}

	if ok, _ := res[0].(int64); ok == 0 {
		field, _ := res[1].(string)
		if field == "referred_by" {
			return nil, repository.ErrNotFound
		}
		return nil, &repository.ConflictError{Field: field}
	}
	position, _ := res[1].(int64)

	stored := *p
	stored.Position = position
	stored.ReferralCount = 0
	stored.JoinedAt = time.UnixMilli(p.JoinedAt.UnixMilli()).UTC()
	return &stored, nil
}

func (r *ParticipantRepository) ListRecentByJoinedAtDesc(ctx context.Context, limit, offset int) ([]domain.Participant, error) {
	if offset < 0 {
		offset = 0
	}
	stop := int64(-1)
	if limit > 0 {
		stop = int64(offset + limit - 1)
	}
	members, err := r.client.ZRevRange(ctx, r.keys.joined(), int64(offset), stop).Result()
	if err != nil {
		return nil, err
	}
	codes := make([]string, len(members))
	for i, m := range members {
		codes[i] = codeFromJoinedMember(m)
	}
	return r.loadAll(ctx, codes)
}

func (r *ParticipantRepository) ListByReferralCountDesc(ctx context.Context, limit int) ([]domain.Participant, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit - 1)
	}
	codes, err := r.client.ZRevRange(ctx, r.keys.leaders(), 0, stop).Result()
	if err != nil {
		return nil, err
	}
	return r.loadAll(ctx, codes)
}

func (r *ParticipantRepository) CountSince(ctx context.Context, since time.Time) (int64, error) {
	return r.client.ZCount(ctx, r.keys.joined(), strconv.FormatInt(since.UnixMilli(), 10), "+inf").Result()
}

// loadAll fetches records in one pipeline, preserving the order of codes.
func (r *ParticipantRepository) loadAll(ctx context.Context, codes []string) ([]domain.Participant, error) {
	participants := make([]domain.Participant, 0, len(codes))
	if len(codes) == 0 {
		return participants, nil
	}

	cmds := make([]*goredis.MapStringStringCmd, len(codes))
	_, err := r.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, code := range codes {
			cmds[i] = pipe.HGetAll(ctx, r.keys.record(code))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		p, err := participantFromHash(fields)
		if err != nil {
			return nil, err
		}
		participants = append(participants, *p)
	}
	return participants, nil
}

func joinedMember(position int64, code string) string {
	return fmt.Sprintf("%019d:%s", position, code)
}

func codeFromJoinedMember(member string) string {
	_, code, ok := strings.Cut(member, ":")
	if !ok {
		return member
	}
	return code
}

func participantFromHash(fields map[string]string) (*domain.Participant, error) {
	position, err := strconv.ParseInt(fields["position"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode position: %w", err)
	}
	count, err := strconv.ParseInt(fields["referral_count"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode referral_count: %w", err)
	}
	joinedMs, err := strconv.ParseInt(fields["joined_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("decode joined_at: %w", err)
	}

	p := &domain.Participant{
		ID:             fields["id"],
		Email:          fields["email"],
		Mobile:         fields["mobile"],
		Position:       position,
		ReferralCode:   fields["referral_code"],
		ReferredByCode: fields["referred_by"],
		ReferralCount:  count,
		JoinedAt:       time.UnixMilli(joinedMs).UTC(),
	}
	if raw := fields["metadata"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	return p, nil
}
