package model

import "time"

// Todo represents a single to-do item as stored in the `todos` table.
// Completion and trash state are not stored as flags; they are derived
// from the two nullable timestamps, which move independently of each
// other (an item can be both done and in the trash).
//
// Fields:
//  ID          – primary key identifier, assigned by the database.
//  OwnerID     – users.id of the creator; never changes.
//  Content     – free text (markdown) of the item.
//  CreatedAt   – set once when the item is created.
//  CompletedAt – when the item was marked done (nil when not done).
//  DeletedAt   – when the item was moved to the trash (nil when active).
type Todo struct {
	ID          uint64     // todos.id
	OwnerID     uint64     // todos.owner_id
	Content     string     // todos.content
	CreatedAt   time.Time  // todos.created_at
	CompletedAt *time.Time // todos.completed_at (nullable)
	DeletedAt   *time.Time // todos.deleted_at (nullable)
}

// IsDone reports whether the item has been marked as done.
func (t *Todo) IsDone() bool { return t.CompletedAt != nil }

// IsDeleted reports whether the item sits in the trash.
func (t *Todo) IsDeleted() bool { return t.DeletedAt != nil }

// String returns a short preview of the content: at most 50 characters
// followed by an ellipsis.
func (t *Todo) String() string {
	r := []rune(t.Content)
	if len(r) > 50 {
		r = r[:50]
	}
	return string(r) + "..."
}
