package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "optionflow/internal/errors"
	"optionflow/internal/scanner"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool for concurrent access
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Verdicts table, one row per scan cycle
	CREATE TABLE IF NOT EXISTS verdicts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		class TEXT NOT NULL,
		confidence_pct INTEGER NOT NULL,
		holding_period TEXT,
		entry_type TEXT,
		entry_strike REAL,
		target_move_pct REAL,
		stop_loss REAL,
		risk_level TEXT,
		spot_price REAL,
		regime TEXT,
		bias_label TEXT,
		bias_score REAL,
		key_reasons TEXT,
		red_flags TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Dealer exposure history
	CREATE TABLE IF NOT EXISTS exposures (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		gex REAL NOT NULL,
		dex REAL NOT NULL,
		vex REAL NOT NULL,
		cex REAL NOT NULL,
		flip_strike REAL,
		spot_price REAL,
		pcr_oi REAL,
		max_pain REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Structure detections
	CREATE TABLE IF NOT EXISTS detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp DATETIME NOT NULL,
		symbol TEXT NOT NULL,
		structure TEXT NOT NULL,
		bias TEXT NOT NULL,
		conviction TEXT,
		confidence REAL NOT NULL,
		rationale TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_verdicts_symbol_time ON verdicts(symbol, timestamp);
	CREATE INDEX IF NOT EXISTS idx_exposures_symbol_time ON exposures(symbol, timestamp);
	CREATE INDEX IF NOT EXISTS idx_detections_symbol_time ON detections(symbol, timestamp);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveScan persists one scan cycle: the verdict, the exposure snapshot and
// every detection, in a single transaction.
func (s *SQLiteStore) SaveScan(res *scanner.Result) error {
	tx, err := s.db.Begin()
	if err != nil {
		return apperrors.NewStoreError("save_scan", err)
	}
	defer tx.Rollback()

	reasons, err := json.Marshal(res.Verdict.KeyReasons)
	if err != nil {
		return apperrors.NewStoreError("save_scan", err)
	}
	flags, err := json.Marshal(res.Verdict.RedFlags)
	if err != nil {
		return apperrors.NewStoreError("save_scan", err)
	}

	_, err = tx.Exec(`
		INSERT INTO verdicts (timestamp, symbol, class, confidence_pct, holding_period,
			entry_type, entry_strike, target_move_pct, stop_loss, risk_level,
			spot_price, regime, bias_label, bias_score, key_reasons, red_flags)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ScannedAt, res.Symbol,
		string(res.Verdict.Class), res.Verdict.ConfidencePct,
		string(res.Verdict.HoldingPeriod), string(res.Verdict.EntryType),
		res.Verdict.EntryStrike, res.Verdict.TargetMovePct, res.Verdict.StopLoss,
		string(res.Verdict.RiskLevel), res.Snapshot.SpotPrice, string(res.Regime),
		string(res.Bias.Label), res.Bias.FinalScore,
		string(reasons), string(flags),
	)
	if err != nil {
		return apperrors.NewStoreError("save_verdict", err)
	}

	_, err = tx.Exec(`
		INSERT INTO exposures (timestamp, symbol, gex, dex, vex, cex, flip_strike,
			spot_price, pcr_oi, max_pain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		res.ScannedAt, res.Symbol,
		res.Exposure.GEX, res.Exposure.DEX, res.Exposure.VEX, res.Exposure.CEX,
		res.Exposure.FlipStrike, res.Snapshot.SpotPrice,
		res.Stats.PCROI, res.Stats.MaxPain,
	)
	if err != nil {
		return apperrors.NewStoreError("save_exposure", err)
	}

	for _, det := range res.Detections {
		_, err = tx.Exec(`
			INSERT INTO detections (timestamp, symbol, structure, bias, conviction,
				confidence, rationale)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			res.ScannedAt, res.Symbol,
			string(det.Structure), string(det.Bias), string(det.Conviction),
			det.Confidence, det.Rationale,
		)
		if err != nil {
			return apperrors.NewStoreError("save_detection", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewStoreError("save_scan", err)
	}
	return nil
}

// GetVerdicts returns stored verdicts matching the filter, newest first.
func (s *SQLiteStore) GetVerdicts(ctx context.Context, filter VerdictFilter) ([]VerdictRecord, error) {
	query := `SELECT id, timestamp, symbol, class, confidence_pct, holding_period,
		entry_type, entry_strike, target_move_pct, stop_loss, risk_level,
		spot_price, regime, bias_label, bias_score, key_reasons, red_flags
		FROM verdicts WHERE 1=1`
	var args []interface{}

	if filter.Symbol != "" {
		query += " AND symbol = ?"
		args = append(args, filter.Symbol)
	}
	if filter.Class != "" {
		query += " AND class = ?"
		args = append(args, filter.Class)
	}
	if !filter.StartDate.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		query += " AND timestamp <= ?"
		args = append(args, filter.EndDate)
	}
	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStoreError("get_verdicts", err)
	}
	defer rows.Close()

	var out []VerdictRecord
	for rows.Next() {
		var rec VerdictRecord
		var reasons, flags string
		err := rows.Scan(&rec.ID, &rec.Timestamp, &rec.Symbol, &rec.Class,
			&rec.ConfidencePct, &rec.HoldingPeriod, &rec.EntryType, &rec.EntryStrike,
			&rec.TargetMovePct, &rec.StopLoss, &rec.RiskLevel, &rec.SpotPrice,
			&rec.Regime, &rec.BiasLabel, &rec.BiasScore, &reasons, &flags)
		if err != nil {
			return nil, apperrors.NewStoreError("get_verdicts", err)
		}
		if reasons != "" {
			json.Unmarshal([]byte(reasons), &rec.KeyReasons)
		}
		if flags != "" {
			json.Unmarshal([]byte(flags), &rec.RedFlags)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetExposureHistory returns exposure rows for a symbol in a time window,
// oldest first.
func (s *SQLiteStore) GetExposureHistory(ctx context.Context, symbol string, from, to time.Time) ([]ExposureRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, symbol, gex, dex, vex, cex, flip_strike, spot_price, pcr_oi, max_pain
		FROM exposures
		WHERE symbol = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC`,
		symbol, from, to)
	if err != nil {
		return nil, apperrors.NewStoreError("get_exposures", err)
	}
	defer rows.Close()

	var out []ExposureRecord
	for rows.Next() {
		var rec ExposureRecord
		err := rows.Scan(&rec.Timestamp, &rec.Symbol, &rec.GEX, &rec.DEX, &rec.VEX,
			&rec.CEX, &rec.FlipStrike, &rec.SpotPrice, &rec.PCROI, &rec.MaxPain)
		if err != nil {
			return nil, apperrors.NewStoreError("get_exposures", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetDetections returns the most recent detections for a symbol.
func (s *SQLiteStore) GetDetections(ctx context.Context, symbol string, limit int) ([]DetectionRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, symbol, structure, bias, conviction, confidence, rationale
		FROM detections
		WHERE symbol = ?
		ORDER BY timestamp DESC
		LIMIT ?`,
		symbol, limit)
	if err != nil {
		return nil, apperrors.NewStoreError("get_detections", err)
	}
	defer rows.Close()

	var out []DetectionRecord
	for rows.Next() {
		var rec DetectionRecord
		err := rows.Scan(&rec.Timestamp, &rec.Symbol, &rec.Structure, &rec.Bias,
			&rec.Conviction, &rec.Confidence, &rec.Rationale)
		if err != nil {
			return nil, apperrors.NewStoreError("get_detections", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes rows older than the retention window. A retainDays of 0 is
// a no-op.
func (s *SQLiteStore) Prune(ctx context.Context, retainDays int) error {
	if retainDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retainDays)
	for _, table := range []string{"verdicts", "exposures", "detections"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table+" WHERE timestamp < ?", cutoff); err != nil {
			return apperrors.NewStoreError("prune", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
