package templates

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Entry is one indexed template.
type Entry struct {
	BlueprintID     int       `json:"blueprint_id"`
	PrintProviderID int       `json:"print_provider_id"`
	Title           string    `json:"title"`
	Category        string    `json:"category"`
	Path            string    `json:"path"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Index is a sqlite catalog of generated templates so listing and
// category counts do not require rewalking the template tree.
type Index struct {
	db *gorm.DB
	mu sync.Mutex
}

func NewIndex(dbPath string) (*Index, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open template index: %w", err)
	}

	schemaSQL := `
	CREATE TABLE IF NOT EXISTS templates (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		blueprint_id INTEGER NOT NULL,
		print_provider_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		category TEXT NOT NULL,
		path TEXT NOT NULL,
		generated_at DATETIME NOT NULL,
		UNIQUE(blueprint_id, print_provider_id, path)
	);

	CREATE INDEX IF NOT EXISTS idx_templates_category ON templates(category);
	`

	if err := db.Exec(schemaSQL).Error; err != nil {
		return nil, fmt.Errorf("failed to create index schema: %w", err)
	}

	return &Index{db: db}, nil
}

func (ix *Index) Close() error {
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Record upserts one template row.
func (ix *Index) Record(e Entry) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	upsert := `
		INSERT INTO templates (blueprint_id, print_provider_id, title, category, path, generated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(blueprint_id, print_provider_id, path) DO UPDATE SET
			title = excluded.title,
			category = excluded.category,
			generated_at = excluded.generated_at`

	if err := ix.db.Exec(upsert,
		e.BlueprintID, e.PrintProviderID, e.Title, e.Category, e.Path,
		e.GeneratedAt.UTC().Format("2006-01-02 15:04:05"),
	).Error; err != nil {
		return fmt.Errorf("failed to record template: %w", err)
	}
	return nil
}

// All lists every indexed template ordered by blueprint then provider.
func (ix *Index) All() ([]Entry, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	query := `
		SELECT blueprint_id, print_provider_id, title, category, path, generated_at
		FROM templates
		ORDER BY blueprint_id, print_provider_id`

	rows, err := ix.db.Raw(query).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to query templates: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var generatedAt string
		if err := rows.Scan(&e.BlueprintID, &e.PrintProviderID, &e.Title, &e.Category, &e.Path, &generatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan template row: %w", err)
		}
		e.GeneratedAt, _ = time.Parse("2006-01-02 15:04:05", generatedAt)
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// CountByCategory returns template counts keyed by category.
func (ix *Index) CountByCategory() (map[string]int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	rows, err := ix.db.Raw(`SELECT category, COUNT(*) FROM templates GROUP BY category`).Rows()
	if err != nil {
		return nil, fmt.Errorf("failed to count categories: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		counts[category] = n
	}

	return counts, rows.Err()
}

// Rebuild replaces the whole index with the given entries. Used when the
// sqlite file is missing or stale relative to the template tree.
func (ix *Index) Rebuild(entries []Entry) error {
	ix.mu.Lock()
	if err := ix.db.Exec(`DELETE FROM templates`).Error; err != nil {
		ix.mu.Unlock()
		return fmt.Errorf("failed to clear index: %w", err)
	}
	ix.mu.Unlock()

	for _, e := range entries {
		if err := ix.Record(e); err != nil {
			return err
		}
	}
	return nil
}
