package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"audio-classification/models"
	"audio-classification/utils"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

// SQLiteRegistry is the default Registry, one local database file.
type SQLiteRegistry struct {
	db *sql.DB
}

func NewSQLiteRegistry(dataSourceName string) (*SQLiteRegistry, error) {
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating registry directory: %w", err)
		}
	}

	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return &SQLiteRegistry{db: db}, nil
}

func createTables(db *sql.DB) error {
	createModelsTable := `
    CREATE TABLE IF NOT EXISTS models (
        version TEXT PRIMARY KEY,
        created_at DATETIME NOT NULL,
        artifact_path TEXT NOT NULL,
        source_table TEXT,
        num_features INTEGER NOT NULL,
        classes TEXT NOT NULL,
        trees INTEGER NOT NULL,
        train_rows INTEGER NOT NULL DEFAULT 0,
        test_rows INTEGER NOT NULL DEFAULT 0,
        accuracy REAL NOT NULL DEFAULT 0,
        report TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_models_created_at ON models(created_at);
    `

	createPredictionsTable := `
    CREATE TABLE IF NOT EXISTS predictions (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
        session_id TEXT,
        model_version TEXT,
        file_name TEXT,
        duration REAL NOT NULL DEFAULT 0,
        sample_rate INTEGER NOT NULL DEFAULT 0,
        num_features INTEGER NOT NULL DEFAULT 0,
        label TEXT,
        confidence REAL NOT NULL DEFAULT 0,
        latency_ms REAL NOT NULL DEFAULT 0,
        error TEXT
    );
    CREATE INDEX IF NOT EXISTS idx_predictions_timestamp ON predictions(timestamp);
    `

	if _, err := db.Exec(createModelsTable); err != nil {
		return fmt.Errorf("error creating models table: %w", err)
	}
	if _, err := db.Exec(createPredictionsTable); err != nil {
		return fmt.Errorf("error creating predictions table: %w", err)
	}
	return nil
}

func (r *SQLiteRegistry) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Record stores info, replacing an existing row for the same version.
func (r *SQLiteRegistry) Record(ctx context.Context, info models.ModelInfo) error {
	classesJSON, err := json.Marshal(info.Classes)
	if err != nil {
		return fmt.Errorf("error marshaling classes: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO models (
			version, created_at, artifact_path, source_table, num_features,
			classes, trees, train_rows, test_rows, accuracy, report
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		info.Version,
		info.CreatedAt,
		info.ArtifactPath,
		info.SourceTable,
		info.NumFeatures,
		string(classesJSON),
		info.Trees,
		info.TrainRows,
		info.TestRows,
		info.Accuracy,
		info.Report,
	)
	if err != nil {
		return fmt.Errorf("error storing model %s: %w", info.Version, err)
	}
	return nil
}

const modelColumns = `version, created_at, artifact_path, source_table, num_features,
		       classes, trees, train_rows, test_rows, accuracy, report`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanModel(row rowScanner) (models.ModelInfo, error) {
	var info models.ModelInfo
	var sourceTable, report sql.NullString
	var classesJSON string
	err := row.Scan(
		&info.Version,
		&info.CreatedAt,
		&info.ArtifactPath,
		&sourceTable,
		&info.NumFeatures,
		&classesJSON,
		&info.Trees,
		&info.TrainRows,
		&info.TestRows,
		&info.Accuracy,
		&report,
	)
	if err != nil {
		return models.ModelInfo{}, err
	}
	info.SourceTable = sourceTable.String
	info.Report = report.String
	if err := json.Unmarshal([]byte(classesJSON), &info.Classes); err != nil {
		return models.ModelInfo{}, fmt.Errorf("error unmarshaling classes: %w", err)
	}
	return info, nil
}

// Get looks a version up; the bool is false when it is unknown.
func (r *SQLiteRegistry) Get(ctx context.Context, version string) (models.ModelInfo, bool, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+modelColumns+" FROM models WHERE version = ?", version)
	info, err := scanModel(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.ModelInfo{}, false, nil
		}
		return models.ModelInfo{}, false, fmt.Errorf("failed to retrieve model: %w", err)
	}
	return info, true, nil
}

func (r *SQLiteRegistry) List(ctx context.Context, limit int) ([]models.ModelInfo, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+modelColumns+" FROM models ORDER BY created_at DESC, rowid DESC LIMIT ?", clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("error querying models: %w", err)
	}
	defer rows.Close()

	var infos []models.ModelInfo
	for rows.Next() {
		info, err := scanModel(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning model: %w", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// RecordPrediction inserts rec and sets its ID.
func (r *SQLiteRegistry) RecordPrediction(ctx context.Context, rec *models.PredictionRecord) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO predictions (
			timestamp, session_id, model_version, file_name, duration,
			sample_rate, num_features, label, confidence, latency_ms, error
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp,
		rec.SessionID,
		rec.ModelVersion,
		rec.FileName,
		rec.Duration,
		rec.SampleRate,
		rec.NumFeatures,
		rec.Label,
		rec.Confidence,
		rec.LatencyMs,
		rec.Error,
	)
	if err != nil {
		return fmt.Errorf("error storing prediction: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		rec.ID = id
	}
	return nil
}

func (r *SQLiteRegistry) Predictions(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, timestamp, session_id, model_version, file_name, duration,
		       sample_rate, num_features, label, confidence, latency_ms, error
		FROM predictions
		ORDER BY timestamp DESC, id DESC
		LIMIT ?`, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("error querying predictions: %w", err)
	}
	defer rows.Close()

	var records []models.PredictionRecord
	for rows.Next() {
		var rec models.PredictionRecord
		var sessionID, version, fileName, label, errMsg sql.NullString
		err := rows.Scan(
			&rec.ID,
			&rec.Timestamp,
			&sessionID,
			&version,
			&fileName,
			&rec.Duration,
			&rec.SampleRate,
			&rec.NumFeatures,
			&label,
			&rec.Confidence,
			&rec.LatencyMs,
			&errMsg,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning prediction: %w", err)
		}
		rec.SessionID = sessionID.String
		rec.ModelVersion = version.String
		rec.FileName = fileName.String
		rec.Label = label.String
		rec.Error = errMsg.String
		records = append(records, rec)
	}
	return records, rows.Err()
}
