package item

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/stevemurr/simple-item-server/id"
)

// Store is the storage the Service needs. store.Store satisfies it.
type Store interface {
	Get(id string) (Item, bool, error)
	Set(id string, it Item) error
	Delete(id string) (bool, error)
	List() ([]Item, error)
}

// maxIDAttempts bounds how often Create retries after an id collision.
const maxIDAttempts = 3

// Service validates requests and applies them to a Store.
// It is safe for concurrent use.
type Service struct {
	store Store
	newID id.Generator
	log   *zap.Logger
	locks keyedMutex
}

// Option configures a Service.
type Option func(*Service)

// WithIDGenerator overrides the identifier source.
func WithIDGenerator(g id.Generator) Option {
	return func(s *Service) {
		if g != nil {
			s.newID = g
		}
	}
}

// WithLogger sets the logger used for debug tracing.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// NewService creates a Service over st.
func NewService(st Store, opts ...Option) *Service {
	s := &Service{
		store: st,
		newID: id.New,
		log:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates req, assigns a fresh id and stores the new item.
// On validation failure the store is not touched.
func (s *Service) Create(req CreateRequest) (Item, error) {
	if !req.Name.IsString() || req.Name.Value == "" {
		return Item{}, &ValidationError{Field: "name", Message: MsgNameRequired}
	}
	if req.Description.Present && !req.Description.Null && !req.Description.IsString() {
		return Item{}, &ValidationError{Field: "description", Message: MsgDescriptionString}
	}

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		key := s.newID()
		if key == "" {
			continue
		}
		created, ok, err := s.insert(key, Item{
			ID:          key,
			Name:        req.Name.Value,
			Description: req.Description.Ptr(),
		})
		if err != nil {
			return Item{}, err
		}
		if ok {
			s.log.Debug("item created", zap.String("id", key))
			return created, nil
		}
		s.log.Warn("generated id already in use", zap.String("id", key))
	}
	return Item{}, fmt.Errorf("create item: no unused id after %d attempts", maxIDAttempts)
}

// insert stores it under key unless key is taken.
func (s *Service) insert(key string, it Item) (Item, bool, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	_, exists, err := s.store.Get(key)
	if err != nil {
		return Item{}, false, fmt.Errorf("get item %s: %w", key, err)
	}
	if exists {
		return Item{}, false, nil
	}
	if err := s.store.Set(key, it); err != nil {
		return Item{}, false, fmt.Errorf("set item %s: %w", key, err)
	}
	return it, true, nil
}

// List returns every stored item. The result is never nil.
func (s *Service) List() ([]Item, error) {
	items, err := s.store.List()
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if items == nil {
		items = []Item{}
	}
	return items, nil
}

// Get returns the item stored under key.
func (s *Service) Get(key string) (Item, error) {
	it, ok, err := s.store.Get(key)
	if err != nil {
		return Item{}, fmt.Errorf("get item %s: %w", key, err)
	}
	if !ok {
		return Item{}, &NotFoundError{ID: key}
	}
	return it, nil
}

// Update merges req into the item stored under key.
//
// Absent keys keep their value, strings overwrite (including ""), and a
// null description clears it. A null or non-string name is rejected. The
// id is never changed. The read and the write happen under a per-id lock.
func (s *Service) Update(key string, req UpdateRequest) (Item, error) {
	unlock := s.locks.Lock(key)
	defer unlock()

	existing, ok, err := s.store.Get(key)
	if err != nil {
		return Item{}, fmt.Errorf("get item %s: %w", key, err)
	}
	if !ok {
		return Item{}, &NotFoundError{ID: key}
	}

	if req.Name.Present && !req.Name.IsString() {
		return Item{}, &ValidationError{Field: "name", Message: MsgNameString}
	}
	if req.Description.Present && !req.Description.Null && !req.Description.IsString() {
		return Item{}, &ValidationError{Field: "description", Message: MsgDescriptionString}
	}

	merged := existing.Clone()
	if req.Name.Present {
		merged.Name = req.Name.Value
	}
	if req.Description.Present {
		merged.Description = req.Description.Ptr()
	}
	merged.ID = existing.ID

	if err := s.store.Set(key, merged); err != nil {
		return Item{}, fmt.Errorf("set item %s: %w", key, err)
	}
	if req.ID.Present && req.ID.Value != existing.ID {
		s.log.Debug("ignored id in update payload", zap.String("id", key), zap.String("payload_id", req.ID.Value))
	}
	s.log.Debug("item updated", zap.String("id", key))
	return merged, nil
}

// Delete removes the item stored under key.
func (s *Service) Delete(key string) error {
	unlock := s.locks.Lock(key)
	defer unlock()

	removed, err := s.store.Delete(key)
	if err != nil {
		return fmt.Errorf("delete item %s: %w", key, err)
	}
	if !removed {
		return &NotFoundError{ID: key}
	}
	s.log.Debug("item deleted", zap.String("id", key))
	return nil
}

// keyedMutex hands out one mutex per key and drops it once unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// Lock blocks until key is held and returns the matching unlock func.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
