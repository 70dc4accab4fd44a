package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"vehicle-dynamics-dashboard/internal/models"
)

// ErrRunNotFound is returned for an id that is not in the archive.
var ErrRunNotFound = errors.New("run not found")

// Database wraps the SQLite connection
type Database struct {
	conn *sql.DB
	now  func() time.Time
}

// New opens (or creates) the run archive at dbPath
func New(dbPath string) (*Database, error) {
	// Enable WAL mode and other optimizations via connection string
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_foreign_keys=on", dbPath)

	conn, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works best with a single writer
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(time.Hour)

	db := &Database{conn: conn, now: time.Now}

	if err := db.initialize(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// initialize creates tables and indexes
func (db *Database) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		sample_count INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		speed REAL NOT NULL,
		acceleration REAL NOT NULL,
		fuel_rate REAL NOT NULL,
		vehicle_type TEXT NOT NULL,
		profile_type TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_samples_run_seq ON samples(run_id, seq);
	CREATE INDEX IF NOT EXISTS idx_samples_pair ON samples(vehicle_type, profile_type);
	CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.conn.Close()
}

// InsertRun archives every sample of ds under a new run id in a single
// transaction.
func (db *Database) InsertRun(ds *models.Dataset) (*models.RunInfo, error) {
	if ds.Len() == 0 {
		return nil, fmt.Errorf("%w: nothing to archive", models.ErrEmptyDataset)
	}

	run := &models.RunInfo{
		ID:          uuid.NewString(),
		Source:      ds.Source,
		SampleCount: ds.Len(),
		CreatedAt:   db.now().UTC().Truncate(time.Second),
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO runs (id, source, sample_count, created_at) VALUES (?, ?, ?, ?)`,
		run.ID, run.Source, run.SampleCount, run.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO samples
		(run_id, seq, timestamp, speed, acceleration, fuel_rate, vehicle_type, profile_type)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	seen := make(map[models.Pair]bool)
	for i, s := range ds.Samples {
		_, err := stmt.Exec(run.ID, i, s.Timestamp, s.Speed, s.Acceleration, s.FuelRate,
			string(s.VehicleType), string(s.ProfileType))
		if err != nil {
			return nil, fmt.Errorf("failed to insert sample %d: %w", i, err)
		}
		if !seen[s.Pair()] {
			seen[s.Pair()] = true
			run.Pairs = append(run.Pairs, s.Pair())
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return run, nil
}

// GetRun retrieves a run by id
func (db *Database) GetRun(id string) (*models.RunInfo, error) {
	query := `SELECT id, source, sample_count, created_at FROM runs WHERE id = ?`

	var r models.RunInfo
	err := db.conn.QueryRow(query, id).Scan(&r.ID, &r.Source, &r.SampleCount, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	if r.Pairs, err = db.runPairs(id); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRuns returns all runs, newest first
func (db *Database) ListRuns() ([]models.RunInfo, error) {
	query := `SELECT id, source, sample_count, created_at FROM runs ORDER BY created_at DESC, id`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.RunInfo
	for rows.Next() {
		var r models.RunInfo
		if err := rows.Scan(&r.ID, &r.Source, &r.SampleCount, &r.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if runs[i].Pairs, err = db.runPairs(runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (db *Database) runPairs(id string) ([]models.Pair, error) {
	query := `
		SELECT vehicle_type, profile_type
		FROM samples
		WHERE run_id = ?
		GROUP BY vehicle_type, profile_type
		ORDER BY MIN(seq)
	`
	rows, err := db.conn.Query(query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs []models.Pair
	for rows.Next() {
		var vt, pt string
		if err := rows.Scan(&vt, &pt); err != nil {
			return nil, err
		}
		pairs = append(pairs, models.Pair{Vehicle: models.VehicleType(vt), Profile: models.ProfileType(pt)})
	}
	return pairs, rows.Err()
}

// LoadRun rebuilds the dataset archived under id, in its original order.
func (db *Database) LoadRun(id string) (*models.Dataset, error) {
	run, err := db.GetRun(id)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT timestamp, speed, acceleration, fuel_rate, vehicle_type, profile_type
		FROM samples
		WHERE run_id = ?
		ORDER BY seq
	`
	rows, err := db.conn.Query(query, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ds := &models.Dataset{
		Source:   run.Source,
		LoadedAt: db.now(),
		Samples:  make([]models.Sample, 0, run.SampleCount),
	}
	for rows.Next() {
		var (
			s      models.Sample
			vt, pt string
		)
		if err := rows.Scan(&s.Timestamp, &s.Speed, &s.Acceleration, &s.FuelRate, &vt, &pt); err != nil {
			return nil, err
		}
		if s.VehicleType, err = models.ParseVehicleType(vt); err != nil {
			return nil, fmt.Errorf("%w: run %s: %v", models.ErrSchema, id, err)
		}
		if s.ProfileType, err = models.ParseProfileType(pt); err != nil {
			return nil, fmt.Errorf("%w: run %s: %v", models.ErrSchema, id, err)
		}
		ds.Samples = append(ds.Samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ds, nil
}

// DeleteRun removes a run and its samples
func (db *Database) DeleteRun(id string) error {
	res, err := db.conn.Exec(`DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetPairCounts returns archived sample and run counts per pair
func (db *Database) GetPairCounts() ([]models.PairCount, error) {
	query := `
		SELECT vehicle_type, profile_type, COUNT(*), COUNT(DISTINCT run_id)
		FROM samples
		GROUP BY vehicle_type, profile_type
		ORDER BY vehicle_type, profile_type
	`
	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []models.PairCount
	for rows.Next() {
		var (
			c      models.PairCount
			vt, pt string
		)
		if err := rows.Scan(&vt, &pt, &c.Samples, &c.Runs); err != nil {
			return nil, err
		}
		c.Pair = models.Pair{Vehicle: models.VehicleType(vt), Profile: models.ProfileType(pt)}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// GetStats returns database statistics. Samples with acceleration at or
// below brakingThreshold are counted as braking.
func (db *Database) GetStats(brakingThreshold float64) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var totalRuns int64
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM runs").Scan(&totalRuns); err != nil {
		return nil, err
	}
	stats["total_runs"] = totalRuns

	var totalSamples int64
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM samples").Scan(&totalSamples); err != nil {
		return nil, err
	}
	stats["total_samples"] = totalSamples

	var braking int64
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM samples WHERE acceleration <= ?", brakingThreshold).Scan(&braking); err != nil {
		return nil, err
	}
	stats["braking_samples"] = braking

	var pairs int64
	if err := db.conn.QueryRow("SELECT COUNT(*) FROM (SELECT DISTINCT vehicle_type, profile_type FROM samples)").Scan(&pairs); err != nil {
		return nil, err
	}
	stats["distinct_pairs"] = pairs

	return stats, nil
}
