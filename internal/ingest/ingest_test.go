package ingest

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joseph-ayodele/hr-extractor/constants"
	"github.com/joseph-ayodele/hr-extractor/internal/queue"
)

// the PNG signature is enough for content sniffing
func pngWith(tail byte) []byte {
	return append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), tail)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestIngestDirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.png"), pngWith('a'))
	writeFile(t, filepath.Join(root, "sub", "b.PDF"), []byte("%PDF-1.4 b"))
	writeFile(t, filepath.Join(root, "sub", "copy-of-a.png"), pngWith('a'))
	writeFile(t, filepath.Join(root, "notes.txt"), []byte("ignore me"))
	writeFile(t, filepath.Join(root, ".cache", "c.png"), pngWith('c'))

	q := queue.New(testLogger())
	ing := NewFSIngestor(q, testLogger())
	results, stats, err := ing.IngestDirectory(context.Background(), root, true)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if stats.Matched != 3 || stats.Succeeded != 3 || stats.Deduplicated != 1 || stats.Failed != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(results) != 3 {
		t.Fatalf("results = %d", len(results))
	}
	if q.Len() != 2 {
		t.Fatalf("queue len = %d, want 2", q.Len())
	}
	items := q.Items()
	if items[0].Document.Filename != "a.png" || items[0].Document.MediaType != constants.MediaTypePNG {
		t.Fatalf("first item = %+v", items[0].Document)
	}
	if items[1].Document.MediaType != constants.MediaTypePDF {
		t.Fatalf("second item media type = %s", items[1].Document.MediaType)
	}
}

func TestIngestPathRejects(t *testing.T) {
	root := t.TempDir()
	q := queue.New(testLogger())
	ing := NewFSIngestor(q, testLogger())

	writeFile(t, filepath.Join(root, "a.gif"), []byte("GIF89a"))
	if _, err := ing.IngestPath(context.Background(), filepath.Join(root, "a.gif")); err == nil {
		t.Fatal("expected unsupported extension error")
	}

	writeFile(t, filepath.Join(root, "empty.png"), nil)
	if _, err := ing.IngestPath(context.Background(), filepath.Join(root, "empty.png")); err == nil {
		t.Fatal("expected empty file error")
	}

	ing.MaxBytes = 4
	writeFile(t, filepath.Join(root, "big.pdf"), []byte("%PDF-1.4 long"))
	if _, err := ing.IngestPath(context.Background(), filepath.Join(root, "big.pdf")); err == nil {
		t.Fatal("expected size error")
	}
	if q.Len() != 0 {
		t.Fatalf("nothing should be queued, got %d", q.Len())
	}
}

func TestHiddenEntries(t *testing.T) {
	cases := map[string]bool{".git": true, "a/.env": true, ".": false, "a/b.png": false}
	for p, want := range cases {
		if got := isHidden(p); got != want {
			t.Fatalf("isHidden(%q) = %t, want %t", p, got, want)
		}
	}
}

func TestWatcherEmitsNewDocuments(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "existing.pdf"), []byte("%PDF-1.4"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{root},
		InitialScan: true,
		Debounce:    20 * time.Millisecond,
		Logger:      testLogger(),
	})
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	want := map[string]bool{
		filepath.Join(root, "existing.pdf"): false,
		filepath.Join(root, "new.png"):      false,
	}
	writeFile(t, filepath.Join(root, "new.png"), pngWith('n'))
	writeFile(t, filepath.Join(root, "ignored.txt"), []byte("x"))

	timeout := time.After(5 * time.Second)
	for seen := 0; seen < len(want); {
		select {
		case p := <-events:
			if _, ok := want[p]; !ok {
				t.Fatalf("unexpected path %q", p)
			}
			if !want[p] {
				want[p] = true
				seen++
			}
		case <-timeout:
			t.Fatalf("timed out, seen = %v", want)
		}
	}

	cancel()
	for range events {
	}
}
