package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"alerthub/pkg/protocol"
)

// ImportEntry is one event to replay. Extra fields (id, created_at, channel)
// are allowed so an export document imports as-is.
type ImportEntry struct {
	Source   string `json:"source"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// ImportDocument is {"events": [...]}.
type ImportDocument struct {
	Events []ImportEntry `json:"events"`
}

// ExportDocument is the artifact written by export.
type ExportDocument struct {
	Events     []protocol.Event         `json:"events"`
	EmailLogs  []protocol.EmailLogEntry `json:"email_logs"`
	Stats      protocol.Stats           `json:"stats"`
	ExportedAt string                   `json:"exported_at"`
}

const importSchemaURL = "https://alerthub.local/schema/import.json"

const importSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["events"],
  "properties": {
    "events": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "source":   {"type": "string"},
          "severity": {"type": "string"},
          "message":  {"type": "string"}
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledImportSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(importSchema))
		if err != nil {
			schemaErr = fmt.Errorf("import schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(importSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("import schema: %w", err)
			return
		}
		schema, schemaErr = c.Compile(importSchemaURL)
	})
	return schema, schemaErr
}

// ParseImport reads and validates an import document. A malformed document
// fails as a whole with a *protocol.DecodeError.
func ParseImport(r io.Reader) (ImportDocument, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return ImportDocument{}, fmt.Errorf("read import: %w", err)
	}
	sch, err := compiledImportSchema()
	if err != nil {
		return ImportDocument{}, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return ImportDocument{}, &protocol.DecodeError{Op: "import document", Payload: clip(data), Err: err}
	}
	if err := sch.Validate(inst); err != nil {
		return ImportDocument{}, &protocol.DecodeError{Op: "import document", Payload: clip(data), Err: err}
	}
	var doc ImportDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return ImportDocument{}, &protocol.DecodeError{Op: "import document", Payload: clip(data), Err: err}
	}
	return doc, nil
}

// BuildExport wraps a snapshot with the client-side export time.
func BuildExport(snap protocol.Snapshot, now time.Time) ExportDocument {
	events := snap.Events
	if events == nil {
		events = []protocol.Event{}
	}
	logs := snap.EmailLogs
	if logs == nil {
		logs = []protocol.EmailLogEntry{}
	}
	return ExportDocument{
		Events:     events,
		EmailLogs:  logs,
		Stats:      snap.Stats.Normalize(),
		ExportedAt: now.UTC().Format(time.RFC3339Nano),
	}
}

// WriteExport pretty-prints doc with two-space indentation.
func WriteExport(w io.Writer, doc ExportDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

// ExportFileName is the default artifact name for an export taken at now.
func ExportFileName(now time.Time) string {
	return "alerthub-export-" + strconv.FormatInt(now.UnixMilli(), 10) + ".json"
}

func clip(b []byte) string {
	const maxEcho = 256
	if len(b) > maxEcho {
		return string(b[:maxEcho])
	}
	return string(b)
}
