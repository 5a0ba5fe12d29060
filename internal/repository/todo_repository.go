package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/todoer/internal/model"
)

// TodoRepo encapsulates all queries on the todos table.  Every read and
// write is scoped by owner_id: a caller can never observe or touch an
// item belonging to another user through this type.
type TodoRepo struct {
	db *sql.DB
}

// NewTodoRepo constructs a TodoRepo with the provided DB handle.
func NewTodoRepo(db *sql.DB) *TodoRepo {
	return &TodoRepo{db: db}
}

const todoColumns = "id, owner_id, content, created_at, completed_at, deleted_at"

// Insert stores a new item and fills in its ID.
func (r *TodoRepo) Insert(ctx context.Context, t *model.Todo) error {
	const q = "INSERT INTO todos (owner_id, content, created_at, completed_at, deleted_at) VALUES (?, ?, ?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, t.OwnerID, t.Content, t.CreatedAt, nullTime(t.CompletedAt), nullTime(t.DeletedAt))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// GetByIDAndOwner fetches an item by id but only if it belongs to owner.
// Trashed items are returned as well.  It returns ErrTodoNotFound when
// there is no match.
func (r *TodoRepo) GetByIDAndOwner(ctx context.Context, id, owner uint64) (*model.Todo, error) {
	const q = "SELECT " + todoColumns + " FROM todos WHERE id = ? AND owner_id = ?"
	t, err := scanTodo(r.db.QueryRowContext(ctx, q, id, owner))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTodoNotFound
		}
		return nil, err
	}
	return t, nil
}

// ListByOwner returns the owner's items, newest first.  With trashed set
// only items in the trash are returned, otherwise only active ones.
func (r *TodoRepo) ListByOwner(ctx context.Context, owner uint64, trashed bool) ([]model.Todo, error) {
	q := "SELECT " + todoColumns + " FROM todos WHERE owner_id = ? AND deleted_at IS NULL ORDER BY created_at DESC, id DESC"
	if trashed {
		q = "SELECT " + todoColumns + " FROM todos WHERE owner_id = ? AND deleted_at IS NOT NULL ORDER BY created_at DESC, id DESC"
	}
	rows, err := r.db.QueryContext(ctx, q, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Todo
	for rows.Next() {
		t, err := scanTodo(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// Update writes back the mutable fields of an item (content and the two
// timestamps).  Owner and creation time never change.  It returns
// ErrTodoNotFound when the row no longer exists for this owner.
func (r *TodoRepo) Update(ctx context.Context, t *model.Todo) error {
	const q = "UPDATE todos SET content = ?, completed_at = ?, deleted_at = ? WHERE id = ? AND owner_id = ?"
	res, err := r.db.ExecContext(ctx, q, t.Content, nullTime(t.CompletedAt), nullTime(t.DeletedAt), t.ID, t.OwnerID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTodoNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTodo(s rowScanner) (*model.Todo, error) {
	var (
		t         model.Todo
		completed sql.NullTime
		deleted   sql.NullTime
	)
	if err := s.Scan(&t.ID, &t.OwnerID, &t.Content, &t.CreatedAt, &completed, &deleted); err != nil {
		return nil, err
	}
	t.CompletedAt = timePtr(completed)
	t.DeletedAt = timePtr(deleted)
	return &t, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}
