// Package entry defines the record users write to and read from the store.
package entry

import (
	"github.com/LumeraProtocol/entrynode/pkg/errors"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	// ErrMissingName is returned when an entry has no name.
	ErrMissingName = errors.New("entry name is required")
	// ErrDecode is returned when stored bytes are not an entry.
	ErrDecode = errors.New("decode entry")
)

// Entry is an immutable named record.
type Entry struct {
	Name     string            `json:"name"`
	Data     []byte            `json:"data,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Validate checks the fields required for storage.
func (e Entry) Validate() error {
	if e.Name == "" {
		return ErrMissingName
	}
	return nil
}

// Marshal serializes e for storage.
func Marshal(e Entry) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Errorf("encode entry %q: %w", e.Name, err)
	}
	return b, nil
}

// Unmarshal decodes stored bytes into an Entry.
func Unmarshal(b []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil {
		return Entry{}, errors.Errorf("%w: %v", ErrDecode, err)
	}
	if err := e.Validate(); err != nil {
		return Entry{}, errors.Errorf("%w: %v", ErrDecode, err)
	}
	return e, nil
}
