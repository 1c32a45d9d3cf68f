package game

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// RoundSink receives every resolved round after the manager has committed it.
type RoundSink interface {
	RoundCompleted(ctx context.Context, res *GuessResult) error
}

// FileExporter appends a readable report of each round to a text file.
type FileExporter struct {
	Filename string

	mu sync.Mutex
}

func NewFileExporter(filename string) *FileExporter {
	return &FileExporter{Filename: filename}
}

func (e *FileExporter) RoundCompleted(_ context.Context, res *GuessResult) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	// Create directory if it doesn't exist
	dir := filepath.Dir(e.Filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	fileExists := false
	if _, err := os.Stat(e.Filename); err == nil {
		fileExists = true
	}

	file, err := os.OpenFile(e.Filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	if _, err := file.WriteString(formatRound(res, !fileExists || res.Round == 1, fileExists)); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}

func formatRound(res *GuessResult, header, spacing bool) string {
	var sb strings.Builder

	if header {
		if spacing {
			sb.WriteString("\n\n")
		}
		sb.WriteString(fmt.Sprintf("Raja-Mantri-Chor-Sipahi Results - Room %s\n", res.RoomID))
		sb.WriteString(strings.Repeat("=", 50) + "\n\n")
		sb.WriteString("Players:\n")
		for _, p := range res.Roles {
			sb.WriteString(fmt.Sprintf("- %s\n", p.Name))
		}
		sb.WriteString("\n")
	}

	names := make(map[string]string, len(res.Roles))
	for _, p := range res.Roles {
		names[p.PlayerID] = p.Name
	}

	sb.WriteString(fmt.Sprintf("Round %d - Room %s (%s)\n", res.Round, res.RoomID, res.Timestamp.Format("2006-01-02 15:04:05")))
	sb.WriteString(strings.Repeat("-", 40) + "\n")
	for _, p := range res.Roles {
		role := "?"
		if p.Role != nil {
			role = string(*p.Role)
		}
		sb.WriteString(fmt.Sprintf("- %s: %s (%+d)\n", p.Name, role, res.PointsChange[p.PlayerID]))
	}
	sb.WriteString(fmt.Sprintf("\nMantri %s guessed %s: %s\n", names[res.MantriID], names[res.GuessedPlayerID], res.Message))

	scores := make([]PlayerScore, len(res.CumulativeScores))
	copy(scores, res.CumulativeScores)
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].CumulativeScore > scores[j].CumulativeScore })
	sb.WriteString("\nScores after this round:\n")
	for _, s := range scores {
		sb.WriteString(fmt.Sprintf("- %s: %d points\n", s.Name, s.CumulativeScore))
	}
	sb.WriteString("\n")
	return sb.String()
}
