package cache

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/google/uuid"
)

const (
	keyInstallationID = "kInstallationId"
	keyInstallTime    = "kInstallTime"
)

// Manager hands out the installation id, install time and subscriber id.
// The first two are created on first use and persisted; the subscriber id
// is only kept in memory.
type Manager struct {
	store Store
	now   func() time.Time

	installOnce    sync.Once
	installationID string
	installTime    int64

	mu           sync.RWMutex
	subscriberID string
}

func NewManager(store Store) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Manager{store: store, now: time.Now}
}

func (m *Manager) load() {
	m.installOnce.Do(func() {
		id, err := m.store.Get(keyInstallationID)
		if err != nil || id == "" {
			if err != nil && !errors.Is(err, ErrNotFound) {
				glog.Warningf("read installation id failed, generating a new one: %v", err)
			}
			id = uuid.NewString()
			if err := m.store.Set(keyInstallationID, id); err != nil {
				glog.Warningf("persist installation id failed: %v", err)
			}
		}
		m.installationID = id

		raw, err := m.store.Get(keyInstallTime)
		if ts, perr := strconv.ParseInt(raw, 10, 64); err == nil && perr == nil {
			m.installTime = ts
			return
		}
		m.installTime = m.now().UnixMilli()
		if err := m.store.Set(keyInstallTime, strconv.FormatInt(m.installTime, 10)); err != nil {
			glog.Warningf("persist install time failed: %v", err)
		}
	})
}

func (m *Manager) InstallationID() string {
	m.load()
	return m.installationID
}

// InstallTime is the unix millis of the first launch seen by this store
func (m *Manager) InstallTime() int64 {
	m.load()
	return m.installTime
}

func (m *Manager) SubscriberID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.subscriberID
}

func (m *Manager) SetSubscriberID(id string) {
	m.mu.Lock()
	m.subscriberID = id
	m.mu.Unlock()
}

func (m *Manager) Close() error {
	return m.store.Close()
}
