package domain

import "time"

// Participant is one waitlist entrant. Only ReferralCount changes after creation.
type Participant struct {
	ID             string    `json:"id"`
	Email          string    `json:"email,omitempty"`
	Mobile         string    `json:"mobile,omitempty"`
	Position       int64     `json:"position"`
	ReferralCode   string    `json:"referralCode"`
	ReferredByCode string    `json:"referredBy,omitempty"`
	ReferralCount  int64     `json:"referralCount"`
	JoinedAt       time.Time `json:"joinedAt"`
	Metadata       Metadata  `json:"metadata"`
}

// Metadata is provenance captured at signup. The engine never reads it.
type Metadata struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	Source    string `json:"source,omitempty"`
}

type Outcome string

const (
	OutcomeCreated           Outcome = "created"
	OutcomeAlreadyRegistered Outcome = "already_registered"
)

type AdmissionResult struct {
	Outcome      Outcome
	Position     int64
	ReferralCode string
	ReferralLink string
	Total        int64
	Participant  *Participant
}

func (r *AdmissionResult) Created() bool {
	return r.Outcome == OutcomeCreated
}

type AdmissionReq struct {
	Email        string   `json:"email"`
	Mobile       string   `json:"mobile"`
	ReferralCode string   `json:"referralCode"`
	Metadata     Metadata `json:"-"`
}

// PublicParticipant is the projection returned by referral-code lookups.
type PublicParticipant struct {
	Position      int64     `json:"position"`
	ReferralCount int64     `json:"referralCount"`
	JoinedAt      time.Time `json:"joinedAt"`
	ReferralCode  string    `json:"referralCode"`
}

func (p *Participant) Public() PublicParticipant {
	return PublicParticipant{
		Position:      p.Position,
		ReferralCount: p.ReferralCount,
		JoinedAt:      p.JoinedAt,
		ReferralCode:  p.ReferralCode,
	}
}

type RecentSignup struct {
	Identity string    `json:"identity"`
	Position int64     `json:"position"`
	JoinedAt time.Time `json:"joinedAt"`
}

type StatsSnapshot struct {
	Total      int64          `json:"total"`
	TodayCount int64          `json:"today"`
	WeekCount  int64          `json:"week"`
	Recent     []RecentSignup `json:"recent"`
	Timestamp  time.Time      `json:"timestamp"`
}

type LeaderboardEntry struct {
	Identity      string `json:"identity"`
	ReferralCount int64  `json:"referralCount"`
	Position      int64  `json:"position"`
}
