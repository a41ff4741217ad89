package delivery

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"red_bot/internal/config"
	"red_bot/internal/media"
	"red_bot/internal/model"
)

// --- mocks ---

type sentCall struct {
	Method  string
	ChatID  int64
	Text    string // text or caption
	HadFile bool
}

type mockSender struct {
	mu        sync.Mutex
	calls     []sentCall
	photoErr  error
	videoErr  error
	docErr    error
	textErr   error
	pathsSeen []string
}

func (m *mockSender) record(method string, chatID int64, text, path string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, sentCall{Method: method, ChatID: chatID, Text: text, HadFile: path != ""})
	if path != "" {
		m.pathsSeen = append(m.pathsSeen, path)
	}
}

func (m *mockSender) SendText(chatID int64, text string) error {
	m.record("text", chatID, text, "")
	return m.textErr
}

func (m *mockSender) SendPhoto(chatID int64, path, caption string) error {
	m.record("photo", chatID, caption, path)
	return m.photoErr
}

func (m *mockSender) SendVideo(chatID int64, path, caption string) error {
	m.record("video", chatID, caption, path)
	return m.videoErr
}

func (m *mockSender) SendDocument(chatID int64, path, caption string) error {
	m.record("document", chatID, caption, path)
	return m.docErr
}

type mockFetcher struct {
	mu       sync.Mutex
	dir      string
	size     int64
	miss     bool
	err      error
	attempts int
}

func (m *mockFetcher) Download(_ context.Context, _ string, kind model.MediaKind) (*media.File, error) {
	m.mu.Lock()
	m.attempts++
	n := m.attempts
	m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.miss {
		return nil, nil
	}
	path := filepath.Join(m.dir, fmt.Sprintf("dl-%d.bin", n))
	if err := os.WriteFile(path, make([]byte, int(m.size)), 0o600); err != nil {
		return nil, err
	}
	return &media.File{Kind: kind, Path: path, Size: m.size}, nil
}

// --- helpers ---

const testCeiling = 50 * 1048576

func newTestEngine(t *testing.T, sender *mockSender, fetcher *mockFetcher) *Engine {
	t.Helper()
	if fetcher.dir == "" {
		fetcher.dir = t.TempDir()
	}
	pats := config.Patterns{
		Video: config.PatternSet{Suffixes: []string{".mp4"}, Prefixes: []string{"https://v.redd.it/"}},
		Image: config.PatternSet{Suffixes: []string{".jpg", ".png"}, Prefixes: []string{"https://i.redd.it/"}},
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(sender, fetcher, pats, testCeiling, log)
}

func methods(calls []sentCall) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Method
	}
	return out
}

func dirEmpty(t *testing.T, dir string) bool {
	t.Helper()
	names, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	return len(names) == 0
}

// --- tests ---

func TestDeliverTextOnly(t *testing.T) {
	sender := &mockSender{}
	fetcher := &mockFetcher{}
	e := newTestEngine(t, sender, fetcher)

	if err := e.Deliver(context.Background(), 7, model.Entry{Title: "just words"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []sentCall{{Method: "text", ChatID: 7, Text: "just words"}}
	if diff := cmp.Diff(want, sender.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if fetcher.attempts != 0 {
		t.Errorf("download attempts = %d, want 0", fetcher.attempts)
	}
}

func TestDeliverUnclassifiedURL(t *testing.T) {
	sender := &mockSender{}
	fetcher := &mockFetcher{}
	e := newTestEngine(t, sender, fetcher)

	entry := model.Entry{Title: "story", URL: "https://example.com/article"}
	if err := e.Deliver(context.Background(), 7, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []sentCall{{Method: "text", ChatID: 7, Text: "story\nhttps://example.com/article"}}
	if diff := cmp.Diff(want, sender.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if fetcher.attempts != 0 {
		t.Errorf("download attempts = %d, want 0", fetcher.attempts)
	}
}

func TestDeliverPhoto(t *testing.T) {
	sender := &mockSender{}
	fetcher := &mockFetcher{size: 2 * 1048576}
	e := newTestEngine(t, sender, fetcher)

	entry := model.Entry{Title: "a cat", URL: "https://i.redd.it/cat.jpg"}
	if err := e.Deliver(context.Background(), 7, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []sentCall{{Method: "photo", ChatID: 7, Text: "a cat", HadFile: true}}
	if diff := cmp.Diff(want, sender.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if !dirEmpty(t, fetcher.dir) {
		t.Error("downloaded file not removed after delivery")
	}
}

func TestDeliverPhotoFallsBackToDocument(t *testing.T) {
	sender := &mockSender{photoErr: errors.New("PHOTO_INVALID_DIMENSIONS")}
	fetcher := &mockFetcher{size: 1024}
	e := newTestEngine(t, sender, fetcher)

	entry := model.Entry{Title: "huge pano", URL: "https://i.redd.it/pano.png"}
	if err := e.Deliver(context.Background(), 7, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := methods(sender.calls), []string{"photo", "document"}; !cmp.Equal(want, got) {
		t.Errorf("methods = %v, want %v", got, want)
	}
	if !dirEmpty(t, fetcher.dir) {
		t.Error("downloaded file not removed")
	}
}

func TestDeliverVideoNoSecondTier(t *testing.T) {
	sender := &mockSender{videoErr: errors.New("UPLOAD_FAILED")}
	fetcher := &mockFetcher{size: 1024}
	e := newTestEngine(t, sender, fetcher)

	entry := model.Entry{Title: "clip", URL: "https://v.redd.it/xyz"}
	if err := e.Deliver(context.Background(), 7, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// video fails straight to the text fallback, never to document
	if got, want := methods(sender.calls), []string{"video", "text"}; !cmp.Equal(want, got) {
		t.Errorf("methods = %v, want %v", got, want)
	}
}

func TestDeliverSizeCeiling(t *testing.T) {
	tests := []struct {
		name        string
		size        int64
		wantMethods []string
	}{
		{name: "exactly at ceiling passes", size: testCeiling, wantMethods: []string{"photo"}},
		{name: "one byte over falls back", size: testCeiling + 1, wantMethods: []string{"text"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &mockSender{}
			fetcher := &mockFetcher{size: tt.size}
			e := newTestEngine(t, sender, fetcher)

			entry := model.Entry{Title: "big", URL: "https://i.redd.it/big.jpg"}
			if err := e.Deliver(context.Background(), 7, entry); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := methods(sender.calls); !cmp.Equal(tt.wantMethods, got) {
				t.Errorf("methods = %v, want %v", got, tt.wantMethods)
			}
			if !dirEmpty(t, fetcher.dir) {
				t.Error("file not removed")
			}
		})
	}
}

func TestDeliverDownloadMiss(t *testing.T) {
	sender := &mockSender{}
	fetcher := &mockFetcher{miss: true}
	e := newTestEngine(t, sender, fetcher)

	entry := model.Entry{Title: "gone", URL: "https://i.redd.it/gone.jpg"}
	if err := e.Deliver(context.Background(), 7, entry); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []sentCall{{Method: "text", ChatID: 7, Text: "gone\nhttps://i.redd.it/gone.jpg"}}
	if diff := cmp.Diff(want, sender.calls); diff != "" {
		t.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	if fetcher.attempts != 1 {
		t.Errorf("download attempts = %d, want 1", fetcher.attempts)
	}
}

func TestDeliverFinalTextFailurePropagates(t *testing.T) {
	sender := &mockSender{textErr: errors.New("chat not found")}
	fetcher := &mockFetcher{miss: true}
	e := newTestEngine(t, sender, fetcher)

	entry := model.Entry{Title: "x", URL: "https://i.redd.it/x.jpg"}
	if err := e.Deliver(context.Background(), 7, entry); err == nil {
		t.Fatal("expected transport error to propagate")
	}
}

func TestDeliverPageOrderAndCounts(t *testing.T) {
	sender := &mockSender{}
	fetcher := &mockFetcher{size: 1024}
	e := newTestEngine(t, sender, fetcher)

	entries := []model.Entry{
		{Title: "first"},
		{Title: "second", URL: "https://i.redd.it/b.jpg"},
		{Title: "third", URL: "https://example.com/c"},
		{Title: "fourth", URL: "https://v.redd.it/d"},
	}
	if err := e.DeliverPage(context.Background(), 7, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantMethods := []string{"text", "photo", "text", "video"}
	if got := methods(sender.calls); !cmp.Equal(wantMethods, got) {
		t.Errorf("methods = %v, want %v", got, wantMethods)
	}
	wantTexts := []string{"first", "second", "third\nhttps://example.com/c", "fourth"}
	var gotTexts []string
	for _, c := range sender.calls {
		gotTexts = append(gotTexts, c.Text)
	}
	if diff := cmp.Diff(wantTexts, gotTexts); diff != "" {
		t.Errorf("delivery order mismatch (-want +got):\n%s", diff)
	}
	if !dirEmpty(t, fetcher.dir) {
		t.Error("files not removed after page delivery")
	}
}

func TestDeliverPageTextOnlyScenario(t *testing.T) {
	// Two non-pinned text-only entries: two text sends, no downloads.
	sender := &mockSender{}
	fetcher := &mockFetcher{}
	e := newTestEngine(t, sender, fetcher)

	entries := []model.Entry{
		{Title: "one", Self: true},
		{Title: "two", Self: true},
	}
	if err := e.DeliverPage(context.Background(), 7, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := methods(sender.calls), []string{"text", "text"}; !cmp.Equal(want, got) {
		t.Errorf("methods = %v, want %v", got, want)
	}
	if fetcher.attempts != 0 {
		t.Errorf("download attempts = %d, want 0", fetcher.attempts)
	}
}

func TestDeliverPageSkipsFailedEntry(t *testing.T) {
	sender := &mockSender{}
	fetcher := &mockFetcher{err: errors.New("disk full")}
	e := newTestEngine(t, sender, fetcher)

	entries := []model.Entry{
		{Title: "bad", URL: "https://i.redd.it/bad.jpg"},
		{Title: "plain"},
	}
	if err := e.DeliverPage(context.Background(), 7, entries); err != nil {
		t.Fatalf("page should continue past entry failure: %v", err)
	}
	if got, want := methods(sender.calls), []string{"text"}; !cmp.Equal(want, got) {
		t.Errorf("methods = %v, want %v", got, want)
	}
	if sender.calls[0].Text != "plain" {
		t.Errorf("delivered %q, want the surviving entry", sender.calls[0].Text)
	}
}

func TestDeliverPageTransportErrorAborts(t *testing.T) {
	sender := &mockSender{textErr: errors.New("blocked by user")}
	fetcher := &mockFetcher{size: 1024}
	e := newTestEngine(t, sender, fetcher)

	entries := []model.Entry{
		{Title: "one"},
		{Title: "two", URL: "https://i.redd.it/b.jpg"},
	}
	if err := e.DeliverPage(context.Background(), 7, entries); err == nil {
		t.Fatal("expected transport error")
	}
	// The in-flight download for the second entry must still be cleaned up.
	if !dirEmpty(t, fetcher.dir) {
		t.Error("late download not cleaned up after abort")
	}
}
