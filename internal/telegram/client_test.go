package telegram

import (
	"strings"
	"testing"
	"time"

	"github.com/mokoia/spawatch/internal/models"
)

func TestEscapeMarkdownV2(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"2026-09-10", "2026\\-09\\-10"},
		{"run ok!", "run ok\\!"},
		{"a.b(c)", "a\\.b\\(c\\)"},
		{"plain", "plain"},
	}

	for _, tt := range tests {
		result := escapeMarkdownV2(tt.input)
		if result != tt.expected {
			t.Errorf("escapeMarkdownV2(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}

func TestFormatReport_CleanRun(t *testing.T) {
	report := &models.RunReport{
		RunID:     "run-1",
		StartedAt: time.Date(2026, time.September, 10, 8, 0, 0, 0, time.UTC),
		Duration:  90 * time.Second,
		Units: []models.UnitOutcome{
			{Horizon: models.SameDay, Observations: 14, Anomalies: 0, Attempts: 1},
		},
	}

	message := formatReport(report)
	if !strings.Contains(message, "✅") {
		t.Error("clean run should carry the success icon")
	}
	if strings.Contains(message, "failed") {
		t.Error("clean run must not mention failures")
	}
	if !strings.Contains(message, "Observations: 14") {
		t.Errorf("missing observation total: %s", message)
	}
}

func TestFormatReport_ListsFailedUnits(t *testing.T) {
	report := &models.RunReport{
		RunID:     "run-2",
		StartedAt: time.Date(2026, time.September, 10, 8, 0, 0, 0, time.UTC),
		Duration:  2 * time.Minute,
		Units: []models.UnitOutcome{
			{Horizon: models.SameDay, Observations: 14},
			{
				Horizon:   models.SevenDays,
				Date:      time.Date(2026, time.September, 12, 0, 0, 0, 0, time.UTC),
				Anomalies: 14,
				ErrText:   "extraction failed after 3 attempts",
			},
		},
	}

	message := formatReport(report)
	if !strings.Contains(message, "⚠️") {
		t.Error("failing run should carry the warning icon")
	}
	if !strings.Contains(message, "1 units failed") {
		t.Errorf("missing failure count: %s", message)
	}
	if !strings.Contains(message, "2026\\-09\\-12") {
		t.Errorf("failed unit's date should be listed escaped: %s", message)
	}
}
