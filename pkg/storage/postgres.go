package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/cleanloop/binsight/pkg/anomaly"
	"github.com/cleanloop/binsight/pkg/events"
)

// PostgresStore implements EventStore and AnomalyStore on PostgreSQL.
//
// Expected schema:
//
//	bins(id, location_class, location_label, rated_capacity_kg)
//	bin_events(id, bin_id, occurred_at, weight_kg, fill_level_pct,
//	           purity_score, material_counts jsonb, user_id)
//	bin_anomalies(id, bin_id, event_id, type, severity, confidence,
//	              details jsonb, source, detected_at)
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection pool and verifies connectivity.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn cannot be empty")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close releases the connection pool.
func (p *PostgresStore) Close() error { return p.db.Close() }

// Ping checks database connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error { return p.db.PingContext(ctx) }

const eventColumns = `
	e.id, e.bin_id, e.occurred_at, e.weight_kg, e.fill_level_pct,
	e.purity_score, e.material_counts, e.user_id,
	b.location_class, b.location_label, b.rated_capacity_kg`

func (p *PostgresStore) RecentEvents(ctx context.Context, since time.Time) ([]events.Event, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT`+eventColumns+`
		FROM bin_events e
		JOIN bins b ON b.id = e.bin_id
		WHERE e.occurred_at >= $1
		ORDER BY e.occurred_at ASC`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (p *PostgresStore) BinEvents(ctx context.Context, binID string, since time.Time) ([]events.Event, error) {
	if binID == "" {
		return nil, errors.New("bin id required")
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT`+eventColumns+`
		FROM bin_events e
		JOIN bins b ON b.id = e.bin_id
		WHERE e.bin_id = $1 AND e.occurred_at >= $2
		ORDER BY e.occurred_at ASC`, binID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query events for bin %s: %w", binID, err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (p *PostgresStore) ActiveBins(ctx context.Context, since time.Time) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT bin_id FROM bin_events
		WHERE occurred_at >= $1
		ORDER BY bin_id`, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query active bins: %w", err)
	}
	defer rows.Close()

	var bins []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan bin id: %w", err)
		}
		bins = append(bins, id)
	}
	return bins, rows.Err()
}

func scanEvents(rows *sql.Rows) ([]events.Event, error) {
	var out []events.Event
	for rows.Next() {
		var (
			ev            events.Event
			fillLevel     sql.NullFloat64
			purity        sql.NullFloat64
			materials     []byte
			userID        sql.NullString
			locationClass sql.NullString
			locationLabel sql.NullString
			ratedCapacity sql.NullFloat64
		)
		if err := rows.Scan(&ev.ID, &ev.BinID, &ev.Timestamp, &ev.WeightKg,
			&fillLevel, &purity, &materials, &userID,
			&locationClass, &locationLabel, &ratedCapacity); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		ev.FillLevelPct = fillLevel.Float64
		ev.PurityScore = purity.Float64
		ev.UserID = userID.String
		ev.LocationClass = locationClass.String
		ev.LocationLabel = locationLabel.String
		ev.RatedCapacityKg = ratedCapacity.Float64
		if len(materials) > 0 {
			if err := json.Unmarshal(materials, &ev.MaterialCounts); err != nil {
				return nil, fmt.Errorf("failed to decode material counts for event %s: %w", ev.ID, err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

func (p *PostgresStore) SaveAnomalies(ctx context.Context, anomalies []anomaly.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO bin_anomalies
			(bin_id, event_id, type, severity, confidence, details, source, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`)
	if err != nil {
		return fmt.Errorf("failed to prepare anomaly insert: %w", err)
	}
	defer stmt.Close()

	for _, a := range anomalies {
		details, err := json.Marshal(a.Details)
		if err != nil {
			return fmt.Errorf("failed to encode details for anomaly %s/%s: %w", a.BinID, a.Type, err)
		}
		if _, err := stmt.ExecContext(ctx, a.BinID, nullString(a.EventID), a.Type,
			string(a.Severity), a.Confidence, details, a.Source, a.DetectedAt); err != nil {
			return fmt.Errorf("failed to insert anomaly %s/%s: %w", a.BinID, a.Type, err)
		}
	}
	return tx.Commit()
}

func (p *PostgresStore) RecentAnomalies(ctx context.Context, binID string, since time.Time) ([]anomaly.Anomaly, error) {
	if binID == "" {
		return nil, errors.New("bin id required")
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT bin_id, event_id, type, severity, confidence, details, source, detected_at
		FROM bin_anomalies
		WHERE bin_id = $1 AND detected_at >= $2
		ORDER BY detected_at DESC`, binID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query anomalies for bin %s: %w", binID, err)
	}
	defer rows.Close()

	var out []anomaly.Anomaly
	for rows.Next() {
		var (
			a       anomaly.Anomaly
			eventID sql.NullString
			sev     string
			details []byte
		)
		if err := rows.Scan(&a.BinID, &eventID, &a.Type, &sev, &a.Confidence,
			&details, &a.Source, &a.DetectedAt); err != nil {
			return nil, fmt.Errorf("failed to scan anomaly row: %w", err)
		}
		a.EventID = eventID.String
		a.Severity = anomaly.ParseSeverity(sev)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &a.Details); err != nil {
				return nil, fmt.Errorf("failed to decode anomaly details: %w", err)
			}
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
