package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite-backed persistence for stitching jobs and their
// alignment records.
type Store struct {
	DB *sql.DB // Export for direct database access
}

// New opens (or creates) the database at path and ensures schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stitch_jobs (
            id TEXT PRIMARY KEY,
            job_type TEXT NOT NULL,
            status TEXT NOT NULL,
            input_path TEXT,
            output_path TEXT,
            options_json TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            started_at TIMESTAMP,
            completed_at TIMESTAMP,
            error_message TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS job_results (
            job_id TEXT,
            meta_json TEXT,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS pair_translations (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            job_id TEXT NOT NULL,
            pair_a INTEGER NOT NULL,
            pair_b INTEGER NOT NULL,
            dx REAL NOT NULL,
            dy REAL NOT NULL,
            num_matches INTEGER,
            num_inliers INTEGER,
            inlier_ratio REAL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS drift_corrections (
            job_id TEXT PRIMARY KEY,
            gap_angle_rad REAL NOT NULL,
            gap_angle_deg REAL NOT NULL,
            original_focal REAL NOT NULL,
            corrected_focal REAL NOT NULL,
            num_images INTEGER,
            applied BOOLEAN DEFAULT FALSE,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE TABLE IF NOT EXISTS image_metadata (
            file_path TEXT PRIMARY KEY,
            camera_make TEXT,
            camera_model TEXT,
            focal_length_mm REAL,
            focal_in_35mm REAL,
            timestamp TEXT,
            width INTEGER,
            height INTEGER
        );`,
		`CREATE INDEX IF NOT EXISTS idx_pair_translations_job ON pair_translations(job_id);`,
		`CREATE INDEX IF NOT EXISTS idx_stitch_jobs_status ON stitch_jobs(status);`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// JobRecord captures persisted job info.
type JobRecord struct {
	ID          string
	JobType     string
	Status      string
	InputPath   string
	OutputPath  string
	OptionsJSON string
	Error       string
	CreatedAt   time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// PairTranslation is one persisted pairwise alignment.
type PairTranslation struct {
	JobID       string
	PairA       int
	PairB       int
	DX          float64
	DY          float64
	NumMatches  int
	NumInliers  int
	InlierRatio float64
}

// DriftRecord captures one applied (or skipped) drift correction.
type DriftRecord struct {
	JobID          string
	GapAngleRad    float64
	GapAngleDeg    float64
	OriginalFocal  float64
	CorrectedFocal float64
	NumImages      int
	Applied        bool
}

// ImageMetadata captures basic EXIF info used for focal estimation.
type ImageMetadata struct {
	FilePath      string
	CameraMake    string
	CameraModel   string
	FocalLengthMM float64
	FocalIn35mm   float64
	Timestamp     string
	Width         int
	Height        int
}

// RecordJobQueued inserts a pending job.
func (s *Store) RecordJobQueued(rec JobRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT OR REPLACE INTO stitch_jobs (id, job_type, status, input_path, output_path, options_json) VALUES (?, ?, ?, ?, ?, ?);`,
		rec.ID, rec.JobType, rec.Status, rec.InputPath, rec.OutputPath, rec.OptionsJSON)
	return err
}

// RecordJobStart marks a job as running.
func (s *Store) RecordJobStart(id string) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`UPDATE stitch_jobs SET status='running', started_at=CURRENT_TIMESTAMP WHERE id=?;`, id)
	return err
}

// RecordJobResult finalizes a job with status and meta.
func (s *Store) RecordJobResult(id string, status string, meta map[string]any, errMsg string) error {
	if s == nil {
		return nil
	}
	metaJSON, _ := json.Marshal(meta)
	_, err := s.DB.Exec(`UPDATE stitch_jobs SET status=?, completed_at=CURRENT_TIMESTAMP, error_message=? WHERE id=?;`, status, errMsg, id)
	if err != nil {
		return err
	}
	_, err = s.DB.Exec(`INSERT INTO job_results (job_id, meta_json) VALUES (?, ?);`, id, string(metaJSON))
	return err
}

// RecentJobs returns the latest jobs up to limit.
func (s *Store) RecentJobs(limit int) ([]JobRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT id, job_type, status, input_path, output_path, options_json, created_at, started_at, completed_at, error_message FROM stitch_jobs ORDER BY created_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []JobRecord
	for rows.Next() {
		var rec JobRecord
		var created time.Time
		var started, completed sql.NullTime
		var errorMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.JobType, &rec.Status, &rec.InputPath, &rec.OutputPath, &rec.OptionsJSON, &created, &started, &completed, &errorMsg); err != nil {
			return nil, err
		}
		rec.CreatedAt = created
		if started.Valid {
			rec.StartedAt = &started.Time
		}
		if completed.Valid {
			rec.CompletedAt = &completed.Time
		}
		if errorMsg.Valid {
			rec.Error = errorMsg.String
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// JobMeta fetches the last meta blob for a job.
func (s *Store) JobMeta(id string) (map[string]any, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	var metaJSON string
	err := s.DB.QueryRow(`SELECT meta_json FROM job_results WHERE job_id=? ORDER BY created_at DESC LIMIT 1;`, id).Scan(&metaJSON)
	if err != nil {
		return nil, err
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(metaJSON), &meta); err != nil {
		return nil, fmt.Errorf("unmarshal meta: %w", err)
	}
	return meta, nil
}

// RecordPairTranslations persists the pairwise alignments of one job.
func (s *Store) RecordPairTranslations(recs []PairTranslation) error {
	if s == nil {
		return nil
	}
	for _, rec := range recs {
		_, err := s.DB.Exec(`INSERT INTO pair_translations (job_id, pair_a, pair_b, dx, dy, num_matches, num_inliers, inlier_ratio) VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
			rec.JobID, rec.PairA, rec.PairB, rec.DX, rec.DY, rec.NumMatches, rec.NumInliers, rec.InlierRatio)
		if err != nil {
			return err
		}
	}
	return nil
}

// PairTranslations returns the persisted alignments for one job, ordered
// by pair index.
func (s *Store) PairTranslations(jobID string) ([]PairTranslation, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT job_id, pair_a, pair_b, dx, dy, num_matches, num_inliers, inlier_ratio FROM pair_translations WHERE job_id=? ORDER BY pair_a;`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []PairTranslation
	for rows.Next() {
		var rec PairTranslation
		if err := rows.Scan(&rec.JobID, &rec.PairA, &rec.PairB, &rec.DX, &rec.DY, &rec.NumMatches, &rec.NumInliers, &rec.InlierRatio); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// RecordDriftCorrection persists the drift outcome of one job.
func (s *Store) RecordDriftCorrection(rec DriftRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT OR REPLACE INTO drift_corrections (job_id, gap_angle_rad, gap_angle_deg, original_focal, corrected_focal, num_images, applied) VALUES (?, ?, ?, ?, ?, ?, ?);`,
		rec.JobID, rec.GapAngleRad, rec.GapAngleDeg, rec.OriginalFocal, rec.CorrectedFocal, rec.NumImages, rec.Applied)
	return err
}

// DriftCorrection returns the drift record for one job, if any.
func (s *Store) DriftCorrection(jobID string) (*DriftRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	var rec DriftRecord
	err := s.DB.QueryRow(`SELECT job_id, gap_angle_rad, gap_angle_deg, original_focal, corrected_focal, num_images, applied FROM drift_corrections WHERE job_id=?;`, jobID).
		Scan(&rec.JobID, &rec.GapAngleRad, &rec.GapAngleDeg, &rec.OriginalFocal, &rec.CorrectedFocal, &rec.NumImages, &rec.Applied)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// RecordImageMetadata stores EXIF details if available.
func (s *Store) RecordImageMetadata(meta ImageMetadata) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT OR REPLACE INTO image_metadata (file_path, camera_make, camera_model, focal_length_mm, focal_in_35mm, timestamp, width, height)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
		meta.FilePath, meta.CameraMake, meta.CameraModel, meta.FocalLengthMM, meta.FocalIn35mm, meta.Timestamp, meta.Width, meta.Height)
	return err
}
