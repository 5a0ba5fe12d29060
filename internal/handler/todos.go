package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/todoer/internal/model"
	"github.com/iliyamo/todoer/internal/render"
	"github.com/iliyamo/todoer/internal/service"
)

// TodoHandler exposes the to-do lifecycle of the authenticated user.
type TodoHandler struct {
	Todos *service.TodoManager
}

func NewTodoHandler(todos *service.TodoManager) *TodoHandler {
	if todos == nil {
		panic("nil TodoManager passed to NewTodoHandler")
	}
	return &TodoHandler{Todos: todos}
}

type todoReq struct {
	Content string `json:"content"`
}

type todoResp struct {
	ID          uint64     `json:"id"`
	Content     string     `json:"content"`
	ContentHTML string     `json:"content_html"`
	Done        bool       `json:"done"`
	Deleted     bool       `json:"deleted"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
	DeletedAt   *time.Time `json:"deleted_at"`
}

func toTodoResp(t *model.Todo) todoResp {
	return todoResp{
		ID:          t.ID,
		Content:     t.Content,
		ContentHTML: render.HTML(t.Content),
		Done:        t.IsDone(),
		Deleted:     t.IsDeleted(),
		CreatedAt:   t.CreatedAt,
		CompletedAt: t.CompletedAt,
		DeletedAt:   t.DeletedAt,
	}
}

func toTodoList(items []model.Todo) []todoResp {
	out := make([]todoResp, 0, len(items))
	for i := range items {
		out = append(out, toTodoResp(&items[i]))
	}
	return out
}

// List returns the active items, newest first.
func (h *TodoHandler) List(c echo.Context) error {
	return h.list(c, h.Todos.ListActive)
}

// Trash returns the trashed items, newest first.
func (h *TodoHandler) Trash(c echo.Context) error {
	return h.list(c, h.Todos.ListTrashed)
}

func (h *TodoHandler) list(c echo.Context, fetch func(context.Context, uint64) ([]model.Todo, error)) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := fetch(ctx, uid)
	if err != nil {
		return todoError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": toTodoList(items)})
}

// Create adds a new item.
func (h *TodoHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req todoReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	t, err := h.Todos.Create(ctx, uid, req.Content)
	if err != nil {
		return todoError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"message": "Todo added successfully!", "item": toTodoResp(t)})
}

// Update replaces the content of an item.
func (h *TodoHandler) Update(c echo.Context) error {
	var req todoReq
	return h.act(c, func(ctx context.Context, uid, id uint64) (*model.Todo, string, error) {
		if err := c.Bind(&req); err != nil {
			return nil, "", errBadBody
		}
		t, err := h.Todos.Edit(ctx, uid, id, req.Content)
		return t, "Todo updated successfully!", err
	})
}

// Toggle flips the done state of an item.
func (h *TodoHandler) Toggle(c echo.Context) error {
	return h.act(c, func(ctx context.Context, uid, id uint64) (*model.Todo, string, error) {
		t, err := h.Todos.ToggleDone(ctx, uid, id)
		if err != nil {
			return nil, "", err
		}
		if t.IsDone() {
			return t, "Todo marked as done!", nil
		}
		return t, "Todo marked as not done!", nil
	})
}

// Delete moves an item to the trash.
func (h *TodoHandler) Delete(c echo.Context) error {
	return h.act(c, func(ctx context.Context, uid, id uint64) (*model.Todo, string, error) {
		t, err := h.Todos.SoftDelete(ctx, uid, id)
		return t, "Todo deleted successfully!", err
	})
}

// Restore takes an item out of the trash.
func (h *TodoHandler) Restore(c echo.Context) error {
	return h.act(c, func(ctx context.Context, uid, id uint64) (*model.Todo, string, error) {
		t, err := h.Todos.Restore(ctx, uid, id)
		return t, "Todo restored successfully!", err
	})
}

var errBadBody = errors.New("invalid body")

// act resolves the user and the :id parameter, runs op and writes the
// item with a success message.
func (h *TodoHandler) act(c echo.Context, op func(ctx context.Context, uid, id uint64) (*model.Todo, string, error)) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	id, ok := parseID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid todo id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	t, msg, err := op(ctx, uid, id)
	if err != nil {
		return todoError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": msg, "item": toTodoResp(t)})
}

// todoError maps lifecycle errors to HTTP responses.
func todoError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, errBadBody):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	case errors.Is(err, service.ErrValidation):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": validationMessage(err)})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "todo not found"})
	}
	c.Logger().Errorf("todos: %v", err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

// validationMessage turns "validation failed: todo content cannot be
// empty" into "Todo content cannot be empty!".
func validationMessage(err error) string {
	msg := strings.TrimPrefix(err.Error(), service.ErrValidation.Error()+": ")
	if msg == "" {
		return "invalid input"
	}
	return strings.ToUpper(msg[:1]) + msg[1:] + "!"
}
