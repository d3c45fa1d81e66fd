package replay

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
)

// Bundle is a fully decoded campaign recording.
type Bundle struct {
	Dir      string   `json:"dir"`
	Manifest Manifest `json:"manifest"`
	Header   Header   `json:"header"`
	Events   []Event  `json:"events"`
	Frames   []Frame  `json:"frames"`
}

// Load reads a bundle from its directory or its manifest.json path.
func Load(path string) (Bundle, error) {
	if path == "" {
		return Bundle{}, fmt.Errorf("bundle path must be provided")
	}
	info, err := os.Stat(path)
	if err != nil {
		return Bundle{}, err
	}
	manifestPath := path
	if info.IsDir() {
		manifestPath = filepath.Join(path, manifestFile)
	}
	dir := filepath.Dir(manifestPath)

	//1.- Decode the manifest first so every other artefact is resolved relative to it.
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return Bundle{}, err
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return Bundle{}, fmt.Errorf("decode manifest: %w", err)
	}
	if manifest.Version != ManifestVersion {
		return Bundle{}, fmt.Errorf("unsupported manifest version %d", manifest.Version)
	}

	bundle := Bundle{Dir: dir, Manifest: manifest}
	headerPath := manifest.HeaderPath
	if headerPath == "" {
		headerPath = headerFile
	}
	if bundle.Header, err = ReadHeader(filepath.Join(dir, headerPath)); err != nil {
		return Bundle{}, fmt.Errorf("read header: %w", err)
	}
	//2.- Events carry every shot while frames hold one outcome per engagement.
	if bundle.Events, err = loadEvents(filepath.Join(dir, manifest.EventsPath)); err != nil {
		return Bundle{}, fmt.Errorf("read events: %w", err)
	}
	if bundle.Frames, err = loadFrames(filepath.Join(dir, manifest.FramesPath)); err != nil {
		return Bundle{}, fmt.Errorf("read frames: %w", err)
	}
	return bundle, nil
}

// Replay walks the events in sequence order.
func (b Bundle) Replay(apply func(Event) error) error {
	if apply == nil {
		return fmt.Errorf("replay callback must be provided")
	}
	for _, event := range b.Events {
		if err := apply(event); err != nil {
			return err
		}
	}
	return nil
}

// Final returns the last recorded outcome fractions.
func (b Bundle) Final() (float64, float64, bool) {
	if len(b.Frames) == 0 {
		return 0, 0, false
	}
	last := b.Frames[len(b.Frames)-1].Outcome
	return last.SideA, last.SideB, true
}

func loadEvents(path string) ([]Event, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(snappy.NewReader(file))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	var events []Event
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func loadFrames(path string) ([]Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader, err := zstd.NewReader(file)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	payload, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	var frames []Frame
	offset := 0
	for offset+frameHeaderSize <= len(payload) {
		//1.- Read the fixed header then decode the JSON body it prefixes.
		engagement := binary.LittleEndian.Uint64(payload[offset : offset+8])
		size := int(binary.LittleEndian.Uint32(payload[offset+24 : offset+28]))
		offset += frameHeaderSize
		if offset+size > len(payload) {
			return nil, fmt.Errorf("frame %d payload truncated", engagement)
		}
		var frame Frame
		if err := json.Unmarshal(payload[offset:offset+size], &frame); err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", engagement, err)
		}
		offset += size
		frames = append(frames, frame)
	}
	if offset != len(payload) {
		return nil, fmt.Errorf("trailing %d bytes in frame stream", len(payload)-offset)
	}
	return frames, nil
}
