package filerepo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jrsteele09/flowcraft-client/sessions"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

var _ sessions.Repo = (*FileRepo)(nil)

// DefaultFileName is the session file created inside the data folder.
const DefaultFileName = "session.yaml"

// errCorrupt marks a session file that exists but cannot be decoded.
var errCorrupt = errors.New("corrupt session file")

// FileRepo persists session values to a single YAML file readable only by
// the current user. Every write replaces the file through a rename, so a
// crash mid-write leaves the previous contents intact.
type FileRepo struct {
	path string
	lock sync.Mutex
}

func New(path string) *FileRepo {
	return &FileRepo{path: path}
}

// NewInFolder stores the session in DefaultFileName under folder.
func NewInFolder(folder string) *FileRepo {
	return New(filepath.Join(folder, DefaultFileName))
}

func (r *FileRepo) Path() string {
	return r.path
}

func (r *FileRepo) Get(key string) (string, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	values, err := r.read()
	if err != nil {
		return "", err
	}
	v, ok := values[key]
	if !ok {
		return "", sessions.ErrNotFound
	}
	return v, nil
}

// SetAll merges values into the file. An undecodable file is replaced.
func (r *FileRepo) SetAll(values map[string]string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	current, err := r.read()
	if errors.Is(err, errCorrupt) {
		log.Warn().Err(err).Str("path", r.path).Msg("Replacing unreadable session file")
		current = make(map[string]string)
	} else if err != nil {
		return err
	}
	for k, v := range values {
		current[k] = v
	}
	return r.write(current)
}

// Delete removes keys, and the file once it is empty or undecodable.
func (r *FileRepo) Delete(keys ...string) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	current, err := r.read()
	if errors.Is(err, errCorrupt) {
		log.Warn().Err(err).Str("path", r.path).Msg("Removing unreadable session file")
		current = nil
	} else if err != nil {
		return err
	}
	for _, k := range keys {
		delete(current, k)
	}
	if len(current) == 0 {
		if err := os.Remove(r.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("filerepo.Delete remove %s: %w", r.path, err)
		}
		return nil
	}
	return r.write(current)
}

func (r *FileRepo) read() (map[string]string, error) {
	values := make(map[string]string)
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return values, nil
	}
	if err != nil {
		return nil, fmt.Errorf("filerepo read %s: %w", r.path, err)
	}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("filerepo decode %s: %w: %v", r.path, errCorrupt, err)
	}
	if values == nil {
		values = make(map[string]string)
	}
	return values, nil
}

func (r *FileRepo) write(values map[string]string) error {
	data, err := yaml.Marshal(values)
	if err != nil {
		return fmt.Errorf("filerepo encode: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("filerepo mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".session-*.yaml")
	if err != nil {
		return fmt.Errorf("filerepo temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("filerepo write: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("filerepo chmod: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("filerepo close: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("filerepo rename: %w", err)
	}
	return nil
}
