package adapter

import (
	"encoding/json"
)

// JSON is the codec for the documents that cross process boundaries: event envelopes
// on the wire, event log payloads and simulation reports
//
//go:generate mockgen -source=json.go -destination=../mocks/json.go -package=mocks -mock_names=JSON=MockJSON
type JSON interface {
	Marshal(v any) ([]byte, error)
	// MarshalIndent is used for human-readable output
	MarshalIndent(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type stdJSON struct {
	indent string
}

// NewJSON returns a JSON encoder that indents with two spaces
func NewJSON() JSON {
	return &stdJSON{indent: "  "}
}

func (j *stdJSON) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

func (j *stdJSON) MarshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", j.indent)
}

func (j *stdJSON) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
