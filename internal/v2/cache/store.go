// Package cache keeps the identity the SDK presents to the server: a stable
// installation id persisted across launches and the subscriber id learned
// at initialization.
package cache

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Store.Get for a missing key
var ErrNotFound = errors.New("key not found")

// Store is a small persistent key-value store
type Store interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Close() error
}

type Driver string

const (
	DriverMemory Driver = "memory"
	DriverBolt   Driver = "bolt"
	DriverRedis  Driver = "redis"
)

type Config struct {
	Driver Driver `yaml:"driver" json:"driver"`

	BoltPath string `yaml:"bolt_path" json:"bolt_path"`

	RedisHost     string `yaml:"redis_host" json:"redis_host"`
	RedisPort     string `yaml:"redis_port" json:"redis_port"`
	RedisPassword string `yaml:"redis_password" json:"-"`
	RedisDB       int    `yaml:"redis_db" json:"redis_db"`
	RedisPrefix   string `yaml:"redis_prefix" json:"redis_prefix"`
}

// Open creates the store selected by cfg.Driver. An empty driver selects
// the in-memory store.
func Open(cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return NewMemoryStore(), nil
	case DriverBolt:
		return OpenBoltStore(cfg.BoltPath)
	case DriverRedis:
		return NewRedisStore(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword, cfg.RedisDB, cfg.RedisPrefix)
	default:
		return nil, fmt.Errorf("unknown cache driver %q", cfg.Driver)
	}
}

// MemoryStore lives as long as the process
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]string{}}
}

func (m *MemoryStore) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *MemoryStore) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryStore) Close() error { return nil }
