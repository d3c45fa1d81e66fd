package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"driftpursuit/intercept/internal/combat"
)

// HeaderSchemaVersion tracks the schema version for bundle header documents.
const HeaderSchemaVersion = 1

// Header is the campaign metadata persisted alongside a bundle.
type Header struct {
	SchemaVersion int               `json:"schema_version"`
	CampaignID    string            `json:"campaign_id,omitempty"`
	Scenario      string            `json:"scenario,omitempty"`
	Seed          uint64            `json:"seed"`
	Stance        combat.Stance     `json:"stance"`
	Engagements   int               `json:"engagements"`
	Parameters    combat.Parameters `json:"parameters"`
	FilePointer   string            `json:"file_pointer"`
}

// Validate ensures the header contains enough information for catalogue tooling.
func (h Header) Validate() error {
	if h.SchemaVersion <= 0 {
		return fmt.Errorf("schema_version must be positive")
	}
	if !h.Stance.Valid() {
		return fmt.Errorf("unknown stance %d", int(h.Stance))
	}
	//1.- Ensure catalogue tooling can locate the bundle reliably.
	if strings.TrimSpace(h.FilePointer) == "" {
		return fmt.Errorf("file_pointer must not be empty")
	}
	return nil
}

// WriteHeader persists the supplied header to the provided file path.
func WriteHeader(path string, header Header) error {
	if err := header.Validate(); err != nil {
		return err
	}
	//1.- Encode using indented JSON so manual inspection remains readable.
	payload, err := json.MarshalIndent(header, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(payload, '\n'), 0o644)
}

// ReadHeader loads and decodes a bundle header from disk.
func ReadHeader(path string) (Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Header{}, err
	}
	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return Header{}, err
	}
	if err := header.Validate(); err != nil {
		return Header{}, err
	}
	return header, nil
}
