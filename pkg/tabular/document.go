package tabular

import (
	"bytes"
	"encoding/json"
	"fmt"
	"reflect"
)

const (
	keyData    = "data"
	keySources = "sources"
)

// Document is the JSON content of a tabular data page.
// Members other than data and sources pass through as raw JSON.
type Document struct {
	members map[string]json.RawMessage
}

// ParseDocument decodes data page content. Anything but a non-empty JSON
// object is rejected with ErrInvalidDocument.
func ParseDocument(content []byte) (*Document, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(content, &members); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if len(members) == 0 {
		return nil, ErrInvalidDocument
	}
	return &Document{members: members}, nil
}

// Has reports whether the document carries the given top-level member.
func (d *Document) Has(key string) bool {
	_, ok := d.members[key]
	return ok
}

// Data returns the stored rows, numbers kept as json.Number.
func (d *Document) Data() (any, error) {
	raw, ok := d.members[keyData]
	if !ok {
		return nil, nil
	}
	return decodeLoose(raw)
}

// DataEqual reports whether rows serialize to exactly the stored data:
// same order, same values.
func (d *Document) DataEqual(rows []FormattedRow) (bool, error) {
	stored, err := d.Data()
	if err != nil {
		return false, err
	}
	if stored == nil {
		return false, nil
	}
	encoded, err := marshal(rows)
	if err != nil {
		return false, err
	}
	fresh, err := decodeLoose(encoded)
	if err != nil {
		return false, err
	}
	return reflect.DeepEqual(stored, fresh), nil
}

// SetData replaces the rows.
func (d *Document) SetData(rows []FormattedRow) error {
	if rows == nil {
		rows = []FormattedRow{}
	}
	raw, err := marshal(rows)
	if err != nil {
		return err
	}
	d.members[keyData] = raw
	return nil
}

// SetSources replaces the provenance note.
func (d *Document) SetSources(text string) error {
	raw, err := marshal(text)
	if err != nil {
		return err
	}
	d.members[keySources] = raw
	return nil
}

// Sources returns the provenance note, if it is a string.
func (d *Document) Sources() string {
	var s string
	if raw, ok := d.members[keySources]; ok {
		_ = json.Unmarshal(raw, &s)
	}
	return s
}

// Marshal serializes the document. Top-level keys come out sorted.
func (d *Document) Marshal() ([]byte, error) {
	return marshal(d.members)
}

func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func decodeLoose(raw []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return v, nil
}
