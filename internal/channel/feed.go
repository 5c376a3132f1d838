package channel

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"slices"

	"drmonitor/internal/logdir"
)

// Feed is one source log stream ("CH1 T", "Status_", ...) across all date
// directories. It owns the tail handle on the newest file; the channels it
// produced hold a plain pointer back to it and never close it.
type Feed struct {
	source   string
	paths    []string
	channels []string
	// consumed is how far ingestion parsed each path: the byte after the
	// last complete line.
	consumed map[string]int64

	path    string
	file    *os.File
	info    os.FileInfo
	offset  int64
	pending []byte
	closed  bool
}

func newFeed(source string) *Feed {
	return &Feed{source: source}
}

// Source is the channel name taken from the file name; it is the parse hint
// for everything read from this feed.
func (f *Feed) Source() string { return f.source }

// Path is the tailed file, empty until Open.
func (f *Feed) Path() string { return f.path }

func (f *Feed) Offset() int64 { return f.offset }

func (f *Feed) IsOpen() bool { return f.file != nil }

func (f *Feed) Channels() []string {
	return slices.Clone(f.channels)
}

func (f *Feed) AddPath(path string) {
	if !slices.Contains(f.paths, path) {
		f.paths = append(f.paths, path)
	}
}

func (f *Feed) Paths() []string {
	return slices.Clone(f.paths)
}

// MostRecentPath is the chronologically newest source file, the one Open
// tails.
func (f *Feed) MostRecentPath() string {
	return logdir.MostRecent(f.paths)
}

// MarkConsumed records that path was parsed up to offset. Open resumes the
// tailed file there instead of at its end, so a line that was incomplete
// at ingestion, or appended after it, is read by the first poll.
func (f *Feed) MarkConsumed(path string, offset int64) {
	f.AddPath(path)
	if f.consumed == nil {
		f.consumed = map[string]int64{}
	}
	f.consumed[path] = offset
}

func (f *Feed) linkChannel(name string) {
	if !slices.Contains(f.channels, name) {
		f.channels = append(f.channels, name)
	}
}

// Open parks a read cursor on the most recently dated source file: where
// ingestion stopped parsing it if MarkConsumed was called, otherwise at its
// end.
func (f *Feed) Open() error {
	if f.closed {
		return ErrFeedClosed
	}
	if f.file != nil {
		return nil
	}
	path := f.MostRecentPath()
	if path == "" {
		return fmt.Errorf("feed %q has no source files", f.source)
	}
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open tail handle: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("stat tail handle: %w", err)
	}
	f.path = path
	f.file = file
	f.info = info
	f.offset = info.Size()
	if offset, ok := f.consumed[path]; ok {
		// Past the end means the file shrank; ReadAppended reports it.
		f.offset = offset
	}
	return nil
}

// ReadAppended returns the complete lines appended since the last call.
// A trailing partial line is held back until its newline arrives. The read
// is bounded by the file size observed at the start of the call.
func (f *Feed) ReadAppended() ([]byte, error) {
	if f.closed {
		return nil, ErrFeedClosed
	}
	if f.file == nil {
		return nil, ErrFeedNotOpen
	}
	current, err := f.file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", f.path, err)
	}
	if onDisk, err := os.Stat(f.path); err != nil || !os.SameFile(f.info, onDisk) {
		return nil, fmt.Errorf("%s: %w", f.path, ErrFeedReplaced)
	}
	size := current.Size()
	if size < f.offset {
		return nil, fmt.Errorf("%s: %w", f.path, ErrFeedTruncated)
	}
	if size == f.offset {
		return nil, nil
	}

	chunk, err := io.ReadAll(io.NewSectionReader(f.file, f.offset, size-f.offset))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.path, err)
	}
	f.offset += int64(len(chunk))

	data := chunk
	if len(f.pending) > 0 {
		data = append(f.pending, chunk...)
		f.pending = nil
	}
	cut := bytes.LastIndexByte(data, '\n')
	if cut < 0 {
		f.pending = data
		return nil, nil
	}
	if cut+1 < len(data) {
		f.pending = slices.Clone(data[cut+1:])
	}
	return data[:cut+1], nil
}

// Close releases the tail handle. It is safe to call more than once; only
// the first call closes the file.
func (f *Feed) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.pending = nil
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}
