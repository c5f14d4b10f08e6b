package domain

import (
	"sort"
	"time"
)

// LeaderboardEntry is a snapshot-friendly view of a participant.
type LeaderboardEntry struct {
	Rank          int     `json:"rank"`
	ParticipantID string  `json:"participantId"`
	Name          string  `json:"name"`
	StudentID     string  `json:"studentId"`
	Section       Section `json:"section"`
	Score         int     `json:"score"`
	TotalPoints   int     `json:"totalPoints"`
	// ElapsedSeconds is -1 while the participant is still in progress.
	ElapsedSeconds int  `json:"elapsedSeconds"`
	Submitted      bool `json:"submitted"`
}

// Leaderboard captures the ordered scoreboard.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// Submitted returns only entries of participants who finished, re-ranked.
func (lb Leaderboard) Submitted() []LeaderboardEntry {
	out := make([]LeaderboardEntry, 0, len(lb.Entries))
	for _, e := range lb.Entries {
		if e.Submitted {
			e.Rank = len(out) + 1
			out = append(out, e)
		}
	}
	return out
}

// RankParticipants orders participants by score (desc), then by elapsed time
// (asc, unfinished last), then by name.
func RankParticipants(participants []Participant, now time.Time) Leaderboard {
	ordered := make([]Participant, len(participants))
	copy(ordered, participants)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		ae, aDone := a.Elapsed()
		be, bDone := b.Elapsed()
		if aDone != bDone {
			return aDone
		}
		if aDone && ae != be {
			return ae < be
		}
		return a.Name < b.Name
	})

	entries := make([]LeaderboardEntry, 0, len(ordered))
	for i, p := range ordered {
		elapsed := -1
		if d, ok := p.Elapsed(); ok {
			elapsed = int(d / time.Second)
		}
		entries = append(entries, LeaderboardEntry{
			Rank:           i + 1,
			ParticipantID:  p.ID,
			Name:           p.Name,
			StudentID:      p.StudentID,
			Section:        p.Section,
			Score:          p.Score,
			TotalPoints:    p.TotalPoints,
			ElapsedSeconds: elapsed,
			Submitted:      p.Submitted,
		})
	}
	return Leaderboard{Entries: entries, UpdatedAt: now}
}
