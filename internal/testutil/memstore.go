// Package testutil provides in-memory collaborators for exercising the
// reconciliation and administrative services without a database.
package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"week_notification_agent/internal/domain/contract"
	"week_notification_agent/internal/domain/notification"
	idb "week_notification_agent/internal/infra/database"
)

type deliveryKey struct {
	notificationID int64
	contractID     int64
}

// MemStore implements contract.Repository and notification.Repository in memory.
// Setting one of the Fail* fields makes the matching operation return that error.
type MemStore struct {
	mu         sync.Mutex
	contracts  map[int64]*contract.Contract
	rules      map[int64]*notification.Rule
	deliveries map[deliveryKey]time.Time

	FailListActive error
	FailListRules  error
	FailHas        error
	FailRecord     error
}

func NewMemStore() *MemStore {
	return &MemStore{
		contracts:  make(map[int64]*contract.Contract),
		rules:      make(map[int64]*notification.Rule),
		deliveries: make(map[deliveryKey]time.Time),
	}
}

func cloneContract(c *contract.Contract) *contract.Contract {
	cp := *c
	cp.Presets = append(contract.Presets{}, c.Presets...)
	return &cp
}

func (m *MemStore) Upsert(_ context.Context, c *contract.Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	stored, ok := m.contracts[c.ID]
	if !ok {
		stored = &contract.Contract{ID: c.ID, CreatedAt: now}
		m.contracts[c.ID] = stored
	}
	stored.Presets = append(contract.Presets{}, c.Presets...)
	if c.StartDate.Valid {
		stored.StartDate = c.StartDate
	}
	stored.UpdatedAt = now

	c.StartDate = stored.StartDate
	c.CreatedAt = stored.CreatedAt
	c.UpdatedAt = stored.UpdatedAt
	return nil
}

func (m *MemStore) Remove(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.deliveries {
		if key.contractID == id {
			delete(m.deliveries, key)
		}
	}
	delete(m.contracts, id)
	return nil
}

func (m *MemStore) GetByID(_ context.Context, id int64) (*contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.contracts[id]
	if !ok {
		return nil, idb.ErrContractNotFound
	}
	return cloneContract(c), nil
}

func (m *MemStore) ListActive(_ context.Context) ([]*contract.Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailListActive != nil {
		return nil, m.FailListActive
	}
	out := make([]*contract.Contract, 0, len(m.contracts))
	for _, c := range m.contracts {
		if c.StartDate.Valid {
			out = append(out, cloneContract(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemStore) ListIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.contracts))
	for id := range m.contracts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemStore) ListRules(_ context.Context) ([]*notification.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailListRules != nil {
		return nil, m.FailListRules
	}
	out := make([]*notification.Rule, 0, len(m.rules))
	for _, r := range m.rules {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].WeekOffset != out[j].WeekOffset {
			return out[i].WeekOffset < out[j].WeekOffset
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemStore) UpsertRules(_ context.Context, rules []*notification.Rule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range rules {
		cp := *r
		m.rules[r.ID] = &cp
	}
	return nil
}

func (m *MemStore) Has(_ context.Context, notificationID, contractID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailHas != nil {
		return false, m.FailHas
	}
	_, ok := m.deliveries[deliveryKey{notificationID, contractID}]
	return ok, nil
}

func (m *MemStore) Record(_ context.Context, notificationID, contractID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.FailRecord != nil {
		return m.FailRecord
	}
	key := deliveryKey{notificationID, contractID}
	if _, ok := m.deliveries[key]; ok {
		return idb.ErrAlreadyDelivered
	}
	m.deliveries[key] = time.Now()
	return nil
}

func (m *MemStore) Purge(_ context.Context, contractID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for key := range m.deliveries {
		if key.contractID == contractID {
			delete(m.deliveries, key)
		}
	}
	return nil
}

func (m *MemStore) ListDelivered(_ context.Context, contractID int64) ([]*notification.Delivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]*notification.Delivery, 0)
	for key, sentAt := range m.deliveries {
		if key.contractID == contractID {
			out = append(out, &notification.Delivery{NotificationID: key.notificationID, ContractID: contractID, SentAt: sentAt})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NotificationID < out[j].NotificationID })
	return out, nil
}

// SentMessage is one call captured by RecordingSink.
type SentMessage struct {
	ContractID    int64
	Text          string
	InfoMaterials string
}

// RecordingSink captures sent messages. Fail decides per call whether the send fails.
type RecordingSink struct {
	mu   sync.Mutex
	sent []SentMessage
	Fail func(contractID int64, text string) error
}

func (s *RecordingSink) Send(_ context.Context, contractID int64, text, infoMaterials string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Fail != nil {
		if err := s.Fail(contractID, text); err != nil {
			return err
		}
	}
	s.sent = append(s.sent, SentMessage{ContractID: contractID, Text: text, InfoMaterials: infoMaterials})
	return nil
}

// Sent returns a copy of the successful sends in call order.
func (s *RecordingSink) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentMessage(nil), s.sent...)
}

// Reset forgets captured sends.
func (s *RecordingSink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = nil
}
