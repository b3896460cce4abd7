package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/TobiSchelling/itnewsbot/internal/news"
	"github.com/TobiSchelling/itnewsbot/internal/store"
)

var (
	_ store.Queue[news.Article]      = (*Queue[news.Article])(nil)
	_ store.Log[news.ApprovedRecord] = (*Log[news.ApprovedRecord])(nil)
	_ store.Watermarks               = (*Watermarks)(nil)
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestQueuePushDedup(t *testing.T) {
	ctx := context.Background()
	q := NewQueue[news.Article](openTestDB(t), "processing")

	added, err := q.Push(ctx,
		news.Article{Title: "A", Link: "https://a"},
		news.Article{Title: "B", Link: "https://b"},
		news.Article{Title: "A again", Link: "https://a"},
	)
	if err != nil {
		t.Fatalf("Push: %v", err)
	}
	if added != 2 {
		t.Errorf("expected 2 added, got %d", added)
	}

	n, _ := q.Len(ctx)
	if n != 2 {
		t.Errorf("expected len 2, got %d", n)
	}
}

func TestQueueFIFO(t *testing.T) {
	ctx := context.Background()
	q := NewQueue[news.Article](openTestDB(t), "processing")
	q.Push(ctx, news.Article{Link: "1"}, news.Article{Link: "2"}, news.Article{Link: "3"})

	head, ok, err := q.Peek(ctx)
	if err != nil || !ok || head.Link != "1" {
		t.Fatalf("Peek: %+v ok=%v err=%v", head, ok, err)
	}

	popped, ok, err := q.Pop(ctx)
	if err != nil || !ok || popped.Link != "1" {
		t.Fatalf("Pop: %+v ok=%v err=%v", popped, ok, err)
	}

	removed, err := q.Ack(ctx, "2")
	if err != nil || !removed {
		t.Fatalf("Ack: removed=%v err=%v", removed, err)
	}

	items, _ := q.List(ctx)
	if len(items) != 1 || items[0].Link != "3" {
		t.Errorf("unexpected remaining: %+v", items)
	}
}

func TestQueuesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	processing := NewQueue[news.Article](db, "processing")
	publication := NewQueue[news.Publication](db, "publication")

	processing.Push(ctx, news.Article{Link: "https://a"})
	publication.Push(ctx, news.Publication{Link: "https://a", Title: "A"})

	if n, _ := processing.Len(ctx); n != 1 {
		t.Errorf("processing len = %d", n)
	}
	publication.Pop(ctx)
	if ok, _ := processing.Contains(ctx, "https://a"); !ok {
		t.Error("popping publication queue must not touch processing queue")
	}
}

func TestLogRetention(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	l := NewLog[news.ApprovedRecord](openTestDB(t), "approved", store.Retention{
		Horizon: store.DefaultHorizon,
		Now:     func() time.Time { return now },
	})

	l.Append(ctx, news.ApprovedRecord{Link: "https://old", ApprovedAt: now.Add(-72*time.Hour - time.Second)})
	l.Append(ctx, news.ApprovedRecord{Link: "https://edge", ApprovedAt: now.Add(-72 * time.Hour)})

	records, err := l.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].Link != "https://edge" {
		t.Errorf("expected only edge record, got %+v", records)
	}
}

func TestLogAppendDedup(t *testing.T) {
	ctx := context.Background()
	l := NewLog[news.ProcessedRecord](openTestDB(t), "processed", store.NewRetention(store.DefaultHorizon))

	rec := news.ProcessedRecord{Article: news.Article{Link: "https://a"}, ProcessedAt: time.Now()}
	if added, err := l.Append(ctx, rec); err != nil || !added {
		t.Fatalf("Append: added=%v err=%v", added, err)
	}
	if added, _ := l.Append(ctx, rec); added {
		t.Error("duplicate append should be ignored")
	}
	if ok, _ := l.Contains(ctx, "https://a"); !ok {
		t.Error("expected Contains to find record")
	}
}

func TestWatermarks(t *testing.T) {
	ctx := context.Background()
	w := NewWatermarks(openTestDB(t))

	first := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	w.Set(ctx, "habr", first)
	w.Set(ctx, "habr", first.Add(time.Hour))

	got, ok, err := w.Get(ctx, "habr")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if !got.Equal(first.Add(time.Hour)) {
		t.Errorf("expected updated watermark, got %v", got)
	}

	all, _ := w.All(ctx)
	if len(all) != 1 {
		t.Errorf("expected 1 watermark, got %d", len(all))
	}
}

func TestQueueDropsCorruptHead(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	q := NewQueue[news.Article](db, "processing")

	if _, err := db.conn.Exec(
		`INSERT INTO queue_entries (queue, link, payload) VALUES ('processing', 'https://bad', '{"title": 42')`,
	); err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}
	q.Push(ctx, news.Article{Link: "https://good"})

	head, ok, err := q.Peek(ctx)
	if err != nil || !ok || head.Link != "https://good" {
		t.Fatalf("Peek: %+v ok=%v err=%v", head, ok, err)
	}
	if ok, _ := q.Contains(ctx, "https://bad"); ok {
		t.Error("corrupt entry should be removed")
	}

	popped, ok, err := q.Pop(ctx)
	if err != nil || !ok || popped.Link != "https://good" {
		t.Fatalf("Pop: %+v ok=%v err=%v", popped, ok, err)
	}
}

func TestQueuePopSkipsCorruptEntries(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	q := NewQueue[news.Publication](db, "publication")

	if _, err := db.conn.Exec(
		`INSERT INTO queue_entries (queue, link, payload) VALUES ('publication', 'https://bad', 'not json')`,
	); err != nil {
		t.Fatalf("insert corrupt row: %v", err)
	}

	if _, ok, err := q.Pop(ctx); err != nil || ok {
		t.Fatalf("Pop: ok=%v err=%v", ok, err)
	}
	if n, _ := q.Len(ctx); n != 0 {
		t.Errorf("corrupt entry should be gone, got %d", n)
	}
}

func TestLogPrunesByDecidedAt(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	db := openTestDB(t)
	l := NewLog[news.ProcessedRecord](db, "processed", store.Retention{
		Horizon: store.DefaultHorizon,
		Now:     func() time.Time { return now },
	})

	l.Append(ctx, news.ProcessedRecord{Article: news.Article{Link: "https://old"}, ProcessedAt: now.Add(-96 * time.Hour)})
	l.Append(ctx, news.ProcessedRecord{Article: news.Article{Link: "https://undated"}})
	l.Append(ctx, news.ProcessedRecord{Article: news.Article{Link: "https://new"}, ProcessedAt: now.Add(-time.Hour)})

	var rows int
	if err := db.conn.QueryRow(`SELECT COUNT(*) FROM decision_log WHERE log = 'processed'`).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 2 {
		t.Errorf("expected expired row deleted, %d rows left", rows)
	}

	var undated int
	db.conn.QueryRow(`SELECT COUNT(*) FROM decision_log WHERE decided_at IS NULL`).Scan(&undated)
	if undated != 1 {
		t.Errorf("records without a timestamp must be kept, got %d", undated)
	}
}

func TestLogWithoutHorizonKeepsEverything(t *testing.T) {
	ctx := context.Background()
	l := NewLog[news.ProcessedRecord](openTestDB(t), "processed", store.Retention{})

	l.Append(ctx, news.ProcessedRecord{Article: news.Article{Link: "https://a"}, ProcessedAt: time.Now().Add(-365 * 24 * time.Hour)})
	if ok, _ := l.Contains(ctx, "https://a"); !ok {
		t.Error("log without horizon must keep old records")
	}
}
