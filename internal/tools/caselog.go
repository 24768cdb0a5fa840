package tools

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/normanking/zira/internal/data"
	"github.com/normanking/zira/internal/logging"
)

//go:embed migrations/001_cases.sql
var casesSchema string

// DefaultSeverity applies when a case omits severity.
const DefaultSeverity = 3

// Case is one row of the cases table.
type Case struct {
	ID        int64     `json:"id"`
	Issue     string    `json:"issue"`
	Severity  int       `json:"severity"`
	NextStep  string    `json:"next_step"`
	Timestamp time.Time `json:"timestamp"`
}

// CaseLog records support cases in SQLite.
type CaseLog struct {
	store *data.Store
	now   func() time.Time
}

// OpenCaseLog opens (or creates) the cases database at path.
func OpenCaseLog(path string) (*CaseLog, error) {
	store, err := data.Open(path, data.Migration{Name: "cases", Schema: casesSchema})
	if err != nil {
		return nil, fmt.Errorf("open cases database: %w", err)
	}
	return &CaseLog{store: store, now: time.Now}, nil
}

// Close closes the database.
func (c *CaseLog) Close() error {
	return c.store.Close()
}

func (c *CaseLog) Name() string { return "log_case" }

func (c *CaseLog) Description() string {
	return `Record a support case. Input is JSON: {"issue": "...", "severity": 1-5, "next_step": "..."}.`
}

// Invoke parses the JSON case description and stores it.
func (c *CaseLog) Invoke(ctx context.Context, arg string) (string, error) {
	var in struct {
		Issue    string `json:"issue"`
		Severity *int   `json:"severity"`
		NextStep string `json:"next_step"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(arg)), &in); err != nil {
		return "", fmt.Errorf("log_case expects a JSON object with issue, severity and next_step: %w", err)
	}

	severity := DefaultSeverity
	if in.Severity != nil {
		severity = *in.Severity
	}

	rec, err := c.Log(ctx, in.Issue, severity, in.NextStep)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Logged case #%d (severity %d).", rec.ID, rec.Severity), nil
}

// Log inserts a case and returns it with its id.
func (c *CaseLog) Log(ctx context.Context, issue string, severity int, nextStep string) (*Case, error) {
	issue = strings.TrimSpace(issue)
	if issue == "" {
		return nil, fmt.Errorf("issue is required")
	}
	if severity < 1 || severity > 5 {
		return nil, fmt.Errorf("severity must be between 1 and 5, got %d", severity)
	}

	rec := &Case{
		Issue:     issue,
		Severity:  severity,
		NextStep:  strings.TrimSpace(nextStep),
		Timestamp: c.now().UTC(),
	}
	res, err := c.store.DB().ExecContext(ctx,
		`INSERT INTO cases (issue, severity, next_step, timestamp) VALUES (?, ?, ?, ?)`,
		rec.Issue, rec.Severity, rec.NextStep, rec.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("insert case: %w", err)
	}
	if rec.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("case id: %w", err)
	}

	logging.Global().WithComponent("CaseLog").Info("logged case #%d severity=%d", rec.ID, rec.Severity)
	return rec, nil
}

// Recent returns up to limit cases, newest first.
func (c *CaseLog) Recent(ctx context.Context, limit int) ([]Case, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := c.store.DB().QueryContext(ctx, `
		SELECT id, issue, severity, next_step, timestamp
		FROM cases
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var out []Case
	for rows.Next() {
		var rec Case
		if err := rows.Scan(&rec.ID, &rec.Issue, &rec.Severity, &rec.NextStep, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
