package replay

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"driftpursuit/intercept/internal/combat"
)

var bundleNameCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// ManifestVersion is the bundle layout version written by this package.
const ManifestVersion = 1

const (
	eventsFile   = "events.jsonl.sz"
	framesFile   = "frames.bin.zst"
	manifestFile = "manifest.json"
	headerFile   = "header.json"

	frameHeaderSize = 8 + 8 + 8 + 4
)

// Event kinds recorded in the event log.
const (
	KindBegin = "begin"
	KindFire  = "fire"
	KindEnd   = "end"
)

var errWriterClosed = errors.New("replay writer closed")

// Manifest describes the bundle layout so tooling can locate artefacts.
type Manifest struct {
	Version    int    `json:"version"`
	CreatedAt  string `json:"created_at"`
	EventsPath string `json:"events_path"`
	FramesPath string `json:"frames_path"`
	HeaderPath string `json:"header_path"`
}

// Event is one line of the event log.
type Event struct {
	Seq        uint64            `json:"seq"`
	Engagement int               `json:"engagement"`
	Kind       string            `json:"kind"`
	CapturedAt time.Time         `json:"captured_at"`
	StartA     float64           `json:"start_a,omitempty"`
	StartB     float64           `json:"start_b,omitempty"`
	Fire       *combat.FireEvent `json:"fire,omitempty"`
	Outcome    *combat.Outcome   `json:"outcome,omitempty"`
}

// Frame is one resolved engagement from the frame stream.
type Frame struct {
	Engagement int            `json:"engagement"`
	StartA     float64        `json:"start_a"`
	StartB     float64        `json:"start_b"`
	Outcome    combat.Outcome `json:"outcome"`
	CapturedAt time.Time      `json:"captured_at"`
}

// Writer records a campaign into a bundle directory. It satisfies the campaign recorder
// contract, so recording errors are latched and reported by Err and Close.
type Writer struct {
	mu          sync.Mutex
	dir         string
	now         func() time.Time
	eventFile   *os.File
	eventStream *snappy.Writer
	frameFile   *os.File
	frameStream *zstd.Encoder
	seq         uint64
	current     int
	starts      map[int][2]float64
	header      Header
	err         error
	closed      bool
}

// NewWriter prepares the bundle directory and opens compressed sinks.
func NewWriter(root, name string, clock func() time.Time) (*Writer, Manifest, error) {
	if root == "" {
		return nil, Manifest{}, fmt.Errorf("replay root must be provided")
	}
	if clock == nil {
		clock = time.Now
	}

	cleaned := bundleNameCleaner.ReplaceAllString(name, "")
	if cleaned == "" {
		cleaned = "campaign"
	}
	created := clock().UTC()
	path := filepath.Join(root, fmt.Sprintf("%s-%s", cleaned, created.Format("20060102T150405.000000000Z")))
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, Manifest{}, err
	}

	eventFile, err := os.Create(filepath.Join(path, eventsFile))
	if err != nil {
		return nil, Manifest{}, err
	}
	eventStream := snappy.NewBufferedWriter(eventFile)

	frameFile, err := os.Create(filepath.Join(path, framesFile))
	if err != nil {
		eventFile.Close()
		return nil, Manifest{}, err
	}
	frameStream, err := zstd.NewWriter(frameFile)
	if err != nil {
		eventStream.Close()
		eventFile.Close()
		frameFile.Close()
		return nil, Manifest{}, err
	}

	manifest := Manifest{
		Version:    ManifestVersion,
		CreatedAt:  created.Format(time.RFC3339Nano),
		EventsPath: eventsFile,
		FramesPath: framesFile,
		HeaderPath: headerFile,
	}
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err == nil {
		err = os.WriteFile(filepath.Join(path, manifestFile), data, 0o644)
	}
	if err != nil {
		frameStream.Close()
		frameFile.Close()
		eventStream.Close()
		eventFile.Close()
		return nil, Manifest{}, err
	}

	return &Writer{
		dir:         path,
		now:         clock,
		eventFile:   eventFile,
		eventStream: eventStream,
		frameFile:   frameFile,
		frameStream: frameStream,
		starts:      make(map[int][2]float64),
	}, manifest, nil
}

// Directory exposes the directory backing the bundle.
func (w *Writer) Directory() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// SetHeader stores the campaign metadata persisted when the writer closes.
func (w *Writer) SetHeader(header Header) {
	if w == nil {
		return
	}
	w.mu.Lock()
	w.header = header
	w.mu.Unlock()
}

// BeginEngagement logs the fractions an engagement starts from.
func (w *Writer) BeginEngagement(index int, startA, startB float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = index
	w.starts[index] = [2]float64{startA, startB}
	w.appendLocked(Event{Engagement: index, Kind: KindBegin, StartA: startA, StartB: startB})
}

// ObserveFire logs a single shot against the engagement in progress.
func (w *Writer) ObserveFire(event combat.FireEvent) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.appendLocked(Event{Engagement: w.current, Kind: KindFire, Fire: &event})
}

// EndEngagement logs the outcome and appends a frame for it.
func (w *Writer) EndEngagement(index int, outcome combat.Outcome) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.appendLocked(Event{Engagement: index, Kind: KindEnd, Outcome: &outcome})
	start := w.starts[index]
	w.frameLocked(Frame{Engagement: index, StartA: start[0], StartB: start[1], Outcome: outcome})
}

// Err reports the first recording failure, if any.
func (w *Writer) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

// Close writes the header, flushes both streams and releases file handles.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return w.err
	}
	w.closed = true

	//1.- Persist the header before dismantling the streaming sinks.
	firstErr := w.err
	header := w.header
	header.SchemaVersion = HeaderSchemaVersion
	header.FilePointer = manifestFile
	if err := WriteHeader(filepath.Join(w.dir, headerFile), header); err != nil && firstErr == nil {
		firstErr = err
	}
	//2.- Attempt every close and surface the first failure.
	for _, closeFn := range []func() error{w.eventStream.Close, w.eventFile.Close, w.frameStream.Close, w.frameFile.Close} {
		if err := closeFn(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	w.err = firstErr
	return firstErr
}

func (w *Writer) appendLocked(event Event) {
	if w.err != nil {
		return
	}
	if w.closed {
		w.err = errWriterClosed
		return
	}
	event.Seq = w.seq
	event.CapturedAt = w.now().UTC()
	w.seq++
	line, err := json.Marshal(event)
	if err != nil {
		w.err = err
		return
	}
	if _, err := w.eventStream.Write(append(line, '\n')); err != nil {
		w.err = err
		return
	}
	if err := w.eventStream.Flush(); err != nil {
		w.err = err
	}
}

// frameLocked writes a length-prefixed frame: engagement, elapsed, capture time, size.
func (w *Writer) frameLocked(frame Frame) {
	if w.err != nil {
		return
	}
	frame.CapturedAt = w.now().UTC()
	payload, err := json.Marshal(frame)
	if err != nil {
		w.err = err
		return
	}
	header := make([]byte, frameHeaderSize)
	binary.LittleEndian.PutUint64(header[0:8], uint64(frame.Engagement))
	binary.LittleEndian.PutUint64(header[8:16], uint64(frame.Outcome.Elapsed))
	binary.LittleEndian.PutUint64(header[16:24], uint64(frame.CapturedAt.UnixNano()))
	binary.LittleEndian.PutUint32(header[24:28], uint32(len(payload)))
	if _, err := w.frameStream.Write(header); err != nil {
		w.err = err
		return
	}
	if _, err := w.frameStream.Write(payload); err != nil {
		w.err = err
	}
}
