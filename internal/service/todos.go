package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/todoer/internal/model"
	"github.com/iliyamo/todoer/internal/repository"
)

// TodoStore is the persistence the lifecycle needs.  Implementations scope
// every lookup and update by owner and return repository.ErrTodoNotFound
// when nothing matches.
type TodoStore interface {
	Insert(ctx context.Context, t *model.Todo) error
	GetByIDAndOwner(ctx context.Context, id, owner uint64) (*model.Todo, error)
	ListByOwner(ctx context.Context, owner uint64, trashed bool) ([]model.Todo, error)
	Update(ctx context.Context, t *model.Todo) error
}

// TodoManager implements the lifecycle of a to-do item: active, done or
// not done, trashed and restored.  All operations act on behalf of one
// owner; validation and ownership are checked before anything is written.
type TodoManager struct {
	store TodoStore
	now   func() time.Time
}

// NewTodoManager returns a manager over store using the wall clock.
func NewTodoManager(store TodoStore) *TodoManager {
	return &TodoManager{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Create adds a new active, not-done item.  Surrounding whitespace is
// trimmed; empty content is rejected with ErrValidation.
func (m *TodoManager) Create(ctx context.Context, owner uint64, content string) (*model.Todo, error) {
	content, err := cleanContent(content)
	if err != nil {
		return nil, err
	}
	t := &model.Todo{OwnerID: owner, Content: content, CreatedAt: m.now()}
	if err := m.store.Insert(ctx, t); err != nil {
		return nil, fmt.Errorf("insert todo: %w", err)
	}
	return t, nil
}

// Get returns one of the owner's items, trashed or not.
func (m *TodoManager) Get(ctx context.Context, owner, id uint64) (*model.Todo, error) {
	return m.load(ctx, owner, id)
}

// ListActive returns the owner's items outside the trash, newest first.
func (m *TodoManager) ListActive(ctx context.Context, owner uint64) ([]model.Todo, error) {
	return m.store.ListByOwner(ctx, owner, false)
}

// ListTrashed returns the owner's items in the trash, newest first.
func (m *TodoManager) ListTrashed(ctx context.Context, owner uint64) ([]model.Todo, error) {
	return m.store.ListByOwner(ctx, owner, true)
}

// ToggleDone flips the done state of an item.  Trashed items can be
// toggled too; the trash state is left alone.
func (m *TodoManager) ToggleDone(ctx context.Context, owner, id uint64) (*model.Todo, error) {
	t, err := m.load(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if t.IsDone() {
		t.CompletedAt = nil
	} else {
		now := m.now()
		t.CompletedAt = &now
	}
	if err := m.save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Edit replaces the content of an item.  Nothing else changes.
func (m *TodoManager) Edit(ctx context.Context, owner, id uint64, content string) (*model.Todo, error) {
	t, err := m.load(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	content, err = cleanContent(content)
	if err != nil {
		return nil, err
	}
	t.Content = content
	if err := m.save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// SoftDelete moves an item to the trash.  Deleting an item that is already
// trashed refreshes its deletion time.
func (m *TodoManager) SoftDelete(ctx context.Context, owner, id uint64) (*model.Todo, error) {
	t, err := m.load(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	now := m.now()
	t.DeletedAt = &now
	if err := m.save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Restore takes an item out of the trash.  Only trashed items qualify; an
// active item is reported as ErrNotFound.
func (m *TodoManager) Restore(ctx context.Context, owner, id uint64) (*model.Todo, error) {
	t, err := m.load(ctx, owner, id)
	if err != nil {
		return nil, err
	}
	if !t.IsDeleted() {
		return nil, ErrNotFound
	}
	t.DeletedAt = nil
	if err := m.save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (m *TodoManager) load(ctx context.Context, owner, id uint64) (*model.Todo, error) {
	t, err := m.store.GetByIDAndOwner(ctx, id, owner)
	if errors.Is(err, repository.ErrTodoNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load todo %d: %w", id, err)
	}
	return t, nil
}

func (m *TodoManager) save(ctx context.Context, t *model.Todo) error {
	err := m.store.Update(ctx, t)
	if errors.Is(err, repository.ErrTodoNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update todo %d: %w", t.ID, err)
	}
	return nil
}

func cleanContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: todo content cannot be empty", ErrValidation)
	}
	return content, nil
}
