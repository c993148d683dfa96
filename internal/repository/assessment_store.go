package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"LaneRisk/internal/domain/models"
	domrepo "LaneRisk/internal/domain/repository"
	pkgch "LaneRisk/pkg/clickhouse"
	applogger "LaneRisk/pkg/logger"
)

// CHAssessmentStore implements AssessmentStore backed by ClickHouse. It keeps
// the append-only audit trail of issued assessments and serves labeled
// outcomes (assessments joined with realized disruptions) for calibration
// quality checks.
type CHAssessmentStore struct {
	db            *sql.DB
	table         string
	outcomesTable string
	l             *applogger.Logger
}

// NewCHAssessmentStore creates a ClickHouse-backed assessment store.
func NewCHAssessmentStore(ch *pkgch.Client, table, outcomesTable string) domrepo.AssessmentStore {
	if table == "" {
		table = "risk_assessments"
	}
	if outcomesTable == "" {
		outcomesTable = "labeled_outcomes"
	}
	return &CHAssessmentStore{db: ch.DB(), table: table, outcomesTable: outcomesTable}
}

// SetLogger injects a structured logger.
func (s *CHAssessmentStore) SetLogger(l *applogger.Logger) { s.l = l }

var assessmentSchema = []string{
	`CREATE TABLE IF NOT EXISTS %s (
        ts DateTime64(3),
        entity_id String,
        raw_score Float64,
        calibrated Float64,
        interval_lower Float64,
        interval_upper Float64,
        disagreement Float64,
        high_disagreement UInt8,
        contributions String
    ) ENGINE = MergeTree() ORDER BY (entity_id, ts)`,
	`CREATE TABLE IF NOT EXISTS %s (
        ts DateTime64(3),
        entity_id String,
        raw_score Float64,
        calibrated Float64,
        outcome UInt8
    ) ENGINE = MergeTree() ORDER BY (entity_id, ts)`,
}

// Init ensures the assessment and outcome tables exist.
func (s *CHAssessmentStore) Init(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(assessmentSchema[0], s.table),
		fmt.Sprintf(assessmentSchema[1], s.outcomesTable),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Store inserts one assessment.
func (s *CHAssessmentStore) Store(ctx context.Context, a *models.RiskAssessment) error {
	return s.StoreBatch(ctx, []*models.RiskAssessment{a})
}

// StoreBatch inserts assessments with multi-row VALUES, chunked to bound
// statement size.
func (s *CHAssessmentStore) StoreBatch(ctx context.Context, as []*models.RiskAssessment) error {
	if len(as) == 0 {
		return nil
	}
	const chunkSize = 2000
	for start := 0; start < len(as); start += chunkSize {
		end := start + chunkSize
		if end > len(as) {
			end = len(as)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*9)
		for _, a := range as[start:end] {
			if a == nil || a.EntityID == "" {
				continue
			}
			contrib, err := json.Marshal(a.FactorContributions)
			if err != nil {
				if s.l != nil {
					s.l.Error("marshal contributions",
						applogger.String("entity", a.EntityID),
						applogger.Error(err))
				}
				continue
			}
			high := uint8(0)
			if a.HighDisagreement {
				high = 1
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
			args = append(args,
				a.EvaluatedAt,
				a.EntityID,
				a.RawScore,
				a.CalibratedProbability,
				a.Interval.Lower,
				a.Interval.Upper,
				a.Disagreement,
				high,
				string(contrib),
			)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf(
			"INSERT INTO %s (ts, entity_id, raw_score, calibrated, interval_lower, interval_upper, disagreement, high_disagreement, contributions) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert assessments: %w", err)
		}
	}
	return nil
}

// LabeledOutcomes returns labeled samples observed since the given time,
// newest first.
func (s *CHAssessmentStore) LabeledOutcomes(ctx context.Context, since time.Time, limit int) ([]models.LabeledOutcome, error) {
	if limit <= 0 {
		limit = 1000
	}
	q := fmt.Sprintf(
		"SELECT entity_id, raw_score, calibrated, outcome, ts FROM %s WHERE ts >= ? ORDER BY ts DESC LIMIT ?",
		s.outcomesTable)
	rows, err := s.db.QueryContext(ctx, q, since, limit)
	if err != nil {
		if s.l != nil {
			s.l.Error("clickhouse labeled_outcomes query error", applogger.Error(err))
		}
		return nil, fmt.Errorf("labeled outcomes: %w", err)
	}
	defer rows.Close()

	out := make([]models.LabeledOutcome, 0, limit)
	for rows.Next() {
		var lo models.LabeledOutcome
		var outcome uint8
		if err := rows.Scan(&lo.EntityID, &lo.RawScore, &lo.Calibrated, &outcome, &lo.ObservedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		lo.Outcome = outcome != 0
		out = append(out, lo)
	}
	return out, rows.Err()
}

// Health pings the database.
func (s *CHAssessmentStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool is owned by pkg/clickhouse.
func (s *CHAssessmentStore) Close() error {
	return nil
}
