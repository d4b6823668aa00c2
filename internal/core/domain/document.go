package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// QueueEntry is a document picked for the next check. The JSON form is the
// backend listing object itself, so unknown fields survive a round trip.
type QueueEntry struct {
	ID       string
	Filename string
	Metadata map[string]any
}

func (e QueueEntry) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Metadata)+2)
	for k, v := range e.Metadata {
		out[k] = v
	}
	out["_id"] = e.ID
	out["filename"] = e.Filename
	return json.Marshal(out)
}

func (e *QueueEntry) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("queue entry: expected object")
	}

	id := stringField(raw, "_id")
	if id == "" {
		id = stringField(raw, "id")
	}
	entry := QueueEntry{
		ID:       id,
		Filename: stringField(raw, "filename"),
	}
	delete(raw, "_id")
	delete(raw, "filename")
	if len(raw) > 0 {
		entry.Metadata = raw
	}
	*e = entry
	return nil
}

// Document is one row of the backend document listing.
type Document struct {
	ID         string
	Filename   string
	UploadedAt time.Time
	Metadata   map[string]any
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var entry QueueEntry
	if err := entry.UnmarshalJSON(data); err != nil {
		return err
	}
	doc := Document{
		ID:       entry.ID,
		Filename: entry.Filename,
		Metadata: entry.Metadata,
	}
	if raw := stringField(entry.Metadata, "upload_at"); raw != "" {
		doc.UploadedAt = parseBackendTime(raw)
	}
	*d = doc
	return nil
}

func (d Document) MarshalJSON() ([]byte, error) {
	return d.QueueEntry().MarshalJSON()
}

func (d Document) QueueEntry() QueueEntry {
	return QueueEntry{
		ID:       d.ID,
		Filename: d.Filename,
		Metadata: d.Metadata,
	}
}

// UploadedDocument is the backend answer to an upload.
type UploadedDocument struct {
	ID       string `json:"_id,omitempty"`
	Filename string `json:"filename"`
	Message  string `json:"message,omitempty"`
}

func stringField(raw map[string]any, key string) string {
	if raw == nil {
		return ""
	}
	switch v := raw[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func parseBackendTime(raw string) time.Time {
	layouts := []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return time.Time{}
}

// FileInfo describes a local file that passed pre-upload inspection.
type FileInfo struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Size  int64  `json:"size"`
	Pages int    `json:"pages"`
}
