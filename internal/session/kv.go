package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// fileKV persists keys as a flat JSON object in a single file, the same
// shape the config backend uses.
type fileKV struct {
	path string
}

// NewFileKV returns a KV backed by dataDir/session.json.
func NewFileKV(dataDir string) KV {
	return &fileKV{path: filepath.Join(dataDir, "session.json")}
}

func (f *fileKV) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, err
	}
	m := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (f *fileKV) write(m map[string]json.RawMessage) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0o600)
}

func (f *fileKV) Get(key string) ([]byte, bool, error) {
	m, err := f.read()
	if err != nil {
		return nil, false, err
	}
	v, ok := m[key]
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

func (f *fileKV) Set(key string, val []byte) error {
	m, err := f.read()
	if err != nil {
		// A corrupt file is replaced rather than preserved.
		m = map[string]json.RawMessage{}
	}
	m[key] = json.RawMessage(val)
	return f.write(m)
}

func (f *fileKV) Delete(key string) error {
	m, err := f.read()
	if err != nil {
		m = map[string]json.RawMessage{}
	}
	delete(m, key)
	return f.write(m)
}
