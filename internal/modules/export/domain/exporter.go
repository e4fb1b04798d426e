package domain

import (
	"errors"
	"fmt"
	"regexp"
)

// Capability names what an exporter binary is allowed to do. Card
// export is the only capability today; the manifest schema leaves room
// for more.
type Capability string

const CapabilityExport Capability = "export"

var (
	ErrExporterDisabled  = errors.New("exporter is disabled")
	ErrChecksumMismatch  = errors.New("exporter checksum mismatch")
	ErrCapabilityMissing = errors.New("exporter capability missing")
	ErrFormatNotFound    = errors.New("export format not found")
	ErrExporterTimeout   = errors.New("exporter timeout")
)

var sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Manifest describes one exporter binary registered in plugins.json.
type Manifest struct {
	Name         string       `json:"name"`
	Version      string       `json:"version"`
	Binary       string       `json:"binary"`
	SHA256       string       `json:"sha256"`
	Enabled      bool         `json:"enabled"`
	Capabilities []Capability `json:"capabilities"`
}

func (m Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("exporter name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("exporter version is required")
	}
	if m.Binary == "" {
		return fmt.Errorf("exporter binary path is required")
	}
	if !sha256Pattern.MatchString(m.SHA256) {
		return fmt.Errorf("exporter sha256 must be lowercase 64-char hex")
	}
	if len(m.Capabilities) == 0 {
		return fmt.Errorf("exporter capabilities are required")
	}
	seen := map[Capability]struct{}{}
	for _, capability := range m.Capabilities {
		if err := capability.Validate(); err != nil {
			return err
		}
		if _, ok := seen[capability]; ok {
			return fmt.Errorf("duplicate capability: %s", capability)
		}
		seen[capability] = struct{}{}
	}
	return nil
}

func (c Capability) Validate() error {
	if c == CapabilityExport {
		return nil
	}
	return fmt.Errorf("unknown capability: %s", c)
}

func (m Manifest) HasCapability(capability Capability) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// FormatDescriptor is one output format an exporter offers.
type FormatDescriptor struct {
	ID          string
	Title       string
	Description string
	Extension   string
	TimeoutMS   int
}

func (d FormatDescriptor) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("format id is required")
	}
	if d.Extension == "" {
		return fmt.Errorf("format extension is required")
	}
	return nil
}

type Metadata struct {
	Name         string
	Version      string
	Capabilities []Capability
}

// Card is the shape cards take on the exporter wire. Exporters receive
// content only; sync state such as the Anki note id stays host-side.
type Card struct {
	Front       string            `json:"front"`
	Back        string            `json:"back"`
	Tags        []string          `json:"tags"`
	ModelName   string            `json:"model_name"`
	Fields      map[string]string `json:"fields"`
	SlideNumber int               `json:"slide_number,omitempty"`
	SlideTopic  string            `json:"slide_topic,omitempty"`
}

// CardSet is a deck's worth of cards handed to an exporter.
type CardSet struct {
	DeckName string
	Cards    []Card
}

type ExportContext struct {
	DeckName  string
	SessionID string
	Cwd       string
	Env       map[string]string
}

func (c ExportContext) Validate() error {
	if c.Cwd == "" {
		return fmt.Errorf("cwd is required")
	}
	return nil
}

type ExportRequest struct {
	FormatID   string
	CardsJSON  string
	OutputPath string
	TimeoutMS  int
	Context    ExportContext
}

func (r ExportRequest) Validate() error {
	if r.FormatID == "" {
		return fmt.Errorf("format id is required")
	}
	if r.CardsJSON == "" {
		return fmt.Errorf("cards payload is required")
	}
	if r.OutputPath == "" {
		return fmt.Errorf("output path is required")
	}
	return r.Context.Validate()
}

type ExportResult struct {
	Path      string
	CardCount int
}
