package repofakes

import (
	"errors"
	"sync"

	"github.com/jrsteele09/flowcraft-client/sessions"
)

var _ sessions.Repo = (*FakeSessionRepo)(nil)

var ErrInjected = errors.New("injected persistence failure")

// FakeSessionRepo is an in-memory sessions.Repo with switchable failures.
type FakeSessionRepo struct {
	values map[string]string
	lock   sync.RWMutex

	FailReads   bool
	FailWrites  bool
	FailDeletes bool
	Writes      int
	Deletes     int
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		values: make(map[string]string),
	}
}

// Seed stores values directly, bypassing failure injection and counters.
func (r *FakeSessionRepo) Seed(values map[string]string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	for k, v := range values {
		r.values[k] = v
	}
}

// Values returns a copy of everything stored.
func (r *FakeSessionRepo) Values() map[string]string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	cp := make(map[string]string, len(r.values))
	for k, v := range r.values {
		cp[k] = v
	}
	return cp
}

func (r *FakeSessionRepo) Get(key string) (string, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	if r.FailReads {
		return "", ErrInjected
	}
	v, ok := r.values[key]
	if !ok {
		return "", sessions.ErrNotFound
	}
	return v, nil
}

func (r *FakeSessionRepo) SetAll(values map[string]string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.Writes++
	if r.FailWrites {
		return ErrInjected
	}
	for k, v := range values {
		r.values[k] = v
	}
	return nil
}

func (r *FakeSessionRepo) Delete(keys ...string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.Deletes++
	if r.FailDeletes {
		return ErrInjected
	}
	for _, k := range keys {
		delete(r.values, k)
	}
	return nil
}
