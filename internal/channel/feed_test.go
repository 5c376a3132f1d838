package channel

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func appendFile(t *testing.T, path, content string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open for append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append: %v", err)
	}
}

func TestFeed_OpensNewestFileAtEOFAndReadsCompleteLines(t *testing.T) {
	dir := t.TempDir()
	older := filepath.Join(dir, "23-04-27", "CH1 T 23-04-27.log")
	newest := filepath.Join(dir, "23-04-28", "CH1 T 23-04-28.log")
	writeFile(t, older, "27-04-23,00:00:01,1\n")
	writeFile(t, newest, "28-04-23,00:00:01,1\n")

	reg := NewRegistry()
	feed := reg.Feed("CH1 T")
	feed.AddPath(newest)
	feed.AddPath(older)
	reg.Ensure("CH1 T", KindRecord, feed)
	if err := reg.OpenFeeds(); err != nil {
		t.Fatalf("OpenFeeds() error = %v", err)
	}
	t.Cleanup(func() { _ = reg.Close() })

	if feed.Path() != newest {
		t.Fatalf("Path() = %q, want %q", feed.Path(), newest)
	}
	if data, err := feed.ReadAppended(); err != nil || len(data) != 0 {
		t.Fatalf("first read = %q, %v; want nothing", data, err)
	}

	appendFile(t, newest, "28-04-23,00:00:02,2\n28-04-23,00:00:0")
	data, err := feed.ReadAppended()
	if err != nil {
		t.Fatalf("ReadAppended() error = %v", err)
	}
	if string(data) != "28-04-23,00:00:02,2\n" {
		t.Fatalf("ReadAppended() = %q", data)
	}

	appendFile(t, newest, "3,3\n")
	data, err = feed.ReadAppended()
	if err != nil || string(data) != "28-04-23,00:00:03,3\n" {
		t.Fatalf("ReadAppended() = %q, %v; want completed partial line", data, err)
	}
}

func TestFeed_TruncationIsReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "23-04-28", "CH1 T 23-04-28.log")
	writeFile(t, path, "28-04-23,00:00:01,1\n28-04-23,00:00:02,2\n")

	feed := newFeed("CH1 T")
	feed.AddPath(path)
	if err := feed.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer feed.Close()

	if err := os.Truncate(path, 4); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	if _, err := feed.ReadAppended(); !errors.Is(err, ErrFeedTruncated) {
		t.Fatalf("ReadAppended() error = %v, want ErrFeedTruncated", err)
	}
}

func TestFeed_ReplacementIsReported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "23-04-28", "CH1 T 23-04-28.log")
	writeFile(t, path, "28-04-23,00:00:01,1\n")

	feed := newFeed("CH1 T")
	feed.AddPath(path)
	if err := feed.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer feed.Close()

	if err := os.Rename(path, path+".old"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	writeFile(t, path, "28-04-23,00:00:01,1\n28-04-23,00:00:02,2\n")
	if _, err := feed.ReadAppended(); !errors.Is(err, ErrFeedReplaced) {
		t.Fatalf("ReadAppended() error = %v, want ErrFeedReplaced", err)
	}
}

func TestRegistry_StatusChannelsShareOneFeedAndCloseOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "23-04-28", "Status_23-04-28.log")
	writeFile(t, path, "28-04-23,00:00:01,a,1,b,0\n")

	reg := NewRegistry()
	feed := reg.Feed("Status_")
	feed.AddPath(path)
	a := reg.Ensure(StatusChannelName("a"), KindStatus, feed)
	b := reg.Ensure(StatusChannelName("b"), KindStatus, feed)
	if a.Feed() != b.Feed() {
		t.Fatalf("status channels must share a feed")
	}
	if err := reg.OpenFeeds(); err != nil {
		t.Fatalf("OpenFeeds() error = %v", err)
	}
	if got := reg.OpenHandles(); got != 1 {
		t.Fatalf("OpenHandles() = %d, want 1", got)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := reg.Close(); err != nil {
		t.Fatalf("second Close() error = %v", err)
	}
	if got := reg.OpenHandles(); got != 0 {
		t.Fatalf("OpenHandles() after close = %d, want 0", got)
	}
	if _, err := feed.ReadAppended(); !errors.Is(err, ErrFeedClosed) {
		t.Fatalf("ReadAppended() after close error = %v, want ErrFeedClosed", err)
	}
	if got := reg.Names(); len(got) != 2 || got[0] != "status/a" || got[1] != "status/b" {
		t.Fatalf("Names() = %v", got)
	}
}

func TestFeed_OpenResumesAtConsumedOffset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "23-04-28", "CH1 T 23-04-28.log")
	writeFile(t, path, "28-04-23,00:00:01,1\n")

	feed := newFeed("CH1 T")
	feed.MarkConsumed(path, 20)
	// Written after the file was parsed but before the handle existed.
	appendFile(t, path, "28-04-23,00:00:02,2\n")
	if err := feed.Open(); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = feed.Close() })

	if feed.Offset() != 20 {
		t.Fatalf("Offset() = %d, want 20", feed.Offset())
	}
	data, err := feed.ReadAppended()
	if err != nil || string(data) != "28-04-23,00:00:02,2\n" {
		t.Fatalf("ReadAppended() = %q, %v; want the line written before Open", data, err)
	}
}
