package db

import (
	"cmp"
	"context"
	"errors"
	"road-editor/model"
	"road-editor/utils"
	"slices"
	"sync"
	"time"
)

// MemoryUsers 内存用户存储 (STORAGE=memory 时使用)
type MemoryUsers struct {
	mu    sync.RWMutex
	users map[string]*model.User
	next  uint
}

func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]*model.User)}
}

func (m *MemoryUsers) FindByUsername(_ context.Context, username string) (*model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[username]
	if !ok {
		return nil, ErrNotFound
	}
	c := *u
	return &c, nil
}

func (m *MemoryUsers) Create(_ context.Context, user *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.Username]; ok {
		return ErrAlreadyExists
	}
	m.next++
	user.ID = m.next
	user.CreatedAt = time.Now()
	c := *user
	m.users[user.Username] = &c
	return nil
}

// MemoryDocuments 内存文档存储
type MemoryDocuments struct {
	mu   sync.RWMutex
	docs map[string]model.RoadDocument
}

func NewMemoryDocuments() *MemoryDocuments {
	return &MemoryDocuments{docs: make(map[string]model.RoadDocument)}
}

func (m *MemoryDocuments) Save(_ context.Context, doc *model.RoadDocument) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now()
	}
	m.docs[doc.ID] = *doc
	return nil
}

func (m *MemoryDocuments) Get(_ context.Context, id string) (*model.RoadDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &doc, nil
}

func (m *MemoryDocuments) List(_ context.Context) ([]model.RoadDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.RoadDocument, 0, len(m.docs))
	for _, doc := range m.docs {
		doc.Content = ""
		out = append(out, doc)
	}
	slices.SortFunc(out, func(a, b model.RoadDocument) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// SeedAdmin 没有 admin 用户时创建一个
func SeedAdmin(ctx context.Context, store UserStore, password string) error {
	if _, err := store.FindByUsername(ctx, "admin"); err == nil {
		return nil
	}
	hashed, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	err = store.Create(ctx, &model.User{Username: "admin", Password: hashed, Email: "admin@example.com"})
	if err != nil && !errors.Is(err, ErrAlreadyExists) {
		return err
	}
	return nil
}
