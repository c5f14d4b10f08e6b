package domain

import (
	"testing"
	"time"
)

func TestRankParticipants(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	participants := []Participant{
		{ID: "slow", Name: "Slow", Score: 30, StartedAt: 0, CompletedAt: 900_000, Submitted: true},
		{ID: "pending", Name: "Pending", Score: 30, StartedAt: 0},
		{ID: "fast", Name: "Fast", Score: 30, StartedAt: 0, CompletedAt: 600_000, Submitted: true},
		{ID: "top", Name: "Top", Score: 40, StartedAt: 0, CompletedAt: 1_000_000, Submitted: true},
	}

	lb := RankParticipants(participants, now)
	want := []string{"top", "fast", "slow", "pending"}
	for i, id := range want {
		if lb.Entries[i].ParticipantID != id || lb.Entries[i].Rank != i+1 {
			t.Fatalf("position %d: expected %s, got %+v", i, id, lb.Entries[i])
		}
	}
	if lb.Entries[1].ElapsedSeconds != 600 || lb.Entries[3].ElapsedSeconds != -1 {
		t.Fatalf("unexpected elapsed seconds %+v", lb.Entries)
	}

	submitted := lb.Submitted()
	if len(submitted) != 3 || submitted[2].ParticipantID != "slow" || submitted[2].Rank != 3 {
		t.Fatalf("unexpected submitted view %+v", submitted)
	}
	if participants[0].ID != "slow" {
		t.Fatalf("ranking must not reorder the input slice")
	}
}

func TestResultTally(t *testing.T) {
	r := Result{
		Score:       10,
		TotalPoints: 30,
		Answers: []Answer{
			{UserAnswer: "x", IsCorrect: true, PointsAwarded: 10},
			{UserAnswer: "wrong"},
			{UserAnswer: "   "},
		},
	}
	correct, incorrect, skipped := r.Tally()
	if correct != 1 || incorrect != 1 || skipped != 1 {
		t.Fatalf("unexpected tally %d/%d/%d", correct, incorrect, skipped)
	}
	if r.Percentage() != 33 {
		t.Fatalf("expected 33%%, got %d", r.Percentage())
	}
}
