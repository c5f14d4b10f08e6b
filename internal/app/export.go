package app

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var csvHeader = []string{"Rank", "Name", "Student ID", "Score", "Total Points", "Time Taken (s)"}

// ExportCSV writes the submitted participants, ranked, as CSV.
func (s *ContentService) ExportCSV(ctx context.Context, w io.Writer) error {
	lb, err := s.Leaderboard(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range lb.Submitted() {
		elapsed := ""
		if e.ElapsedSeconds >= 0 {
			elapsed = strconv.Itoa(e.ElapsedSeconds)
		}
		record := []string{
			strconv.Itoa(e.Rank),
			e.Name,
			e.StudentID,
			strconv.Itoa(e.Score),
			strconv.Itoa(e.TotalPoints),
			elapsed,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
