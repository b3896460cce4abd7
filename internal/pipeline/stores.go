package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/TobiSchelling/itnewsbot/internal/config"
	"github.com/TobiSchelling/itnewsbot/internal/database"
	"github.com/TobiSchelling/itnewsbot/internal/news"
	"github.com/TobiSchelling/itnewsbot/internal/store"
)

// Stores bundles the queues, logs and watermarks shared by the stages.
type Stores struct {
	Processing  store.Queue[news.Article]
	Publication store.Queue[news.Publication]
	Processed   store.Log[news.ProcessedRecord]
	Approved    store.Log[news.ApprovedRecord]
	Watermarks  store.Watermarks

	db *database.DB
}

// OpenStores opens the configured storage backend under the data directory.
func OpenStores(cfg *config.Config) (*Stores, error) {
	dir := cfg.GetDataDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}
	ret := store.NewRetention(cfg.Pipeline.Retention)
	processedRet := store.NewRetention(cfg.Pipeline.ProcessedRetention)

	if cfg.Storage.Backend == "sqlite" {
		db, err := database.Open(filepath.Join(dir, "itnewsbot.db"))
		if err != nil {
			return nil, err
		}
		return &Stores{
			Processing:  database.NewQueue[news.Article](db, "processing"),
			Publication: database.NewQueue[news.Publication](db, "publication"),
			Processed:   database.NewLog[news.ProcessedRecord](db, "processed", processedRet),
			Approved:    database.NewLog[news.ApprovedRecord](db, "approved", ret),
			Watermarks:  database.NewWatermarks(db),
			db:          db,
		}, nil
	}

	return &Stores{
		Processing:  store.NewFileQueue[news.Article](filepath.Join(dir, "processing_queue.json")),
		Publication: store.NewFileQueue[news.Publication](filepath.Join(dir, "publication_queue.json")),
		Processed:   store.NewFileLog[news.ProcessedRecord](filepath.Join(dir, "processed_articles.json"), processedRet),
		Approved:    store.NewFileLog[news.ApprovedRecord](filepath.Join(dir, "approved_articles.json"), ret),
		Watermarks:  store.NewFileWatermarks(filepath.Join(dir, "last_check.json")),
	}, nil
}

// Close releases the database, if any.
func (s *Stores) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Status is a snapshot of the pipeline's persisted state.
type Status struct {
	Processing  int                   `json:"processing_queue"`
	Publication int                   `json:"publication_queue"`
	Processed   int                   `json:"processed_articles"`
	Approved    int                   `json:"approved_articles"`
	Watermarks  map[string]time.Time  `json:"last_check"`
	Recent      []news.ApprovedRecord `json:"recent"`
}

// Status reads queue lengths, log sizes and watermarks. Recent holds the
// approved records, newest first.
func (s *Stores) Status(ctx context.Context) (*Status, error) {
	st := &Status{}
	var err error

	if st.Processing, err = s.Processing.Len(ctx); err != nil {
		return nil, err
	}
	if st.Publication, err = s.Publication.Len(ctx); err != nil {
		return nil, err
	}
	processed, err := s.Processed.List(ctx)
	if err != nil {
		return nil, err
	}
	st.Processed = len(processed)

	approved, err := s.Approved.List(ctx)
	if err != nil {
		return nil, err
	}
	st.Approved = len(approved)
	st.Recent = make([]news.ApprovedRecord, 0, len(approved))
	for i := len(approved) - 1; i >= 0; i-- {
		st.Recent = append(st.Recent, approved[i])
	}

	if st.Watermarks, err = s.Watermarks.All(ctx); err != nil {
		return nil, err
	}
	return st, nil
}
