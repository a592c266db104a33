// Package tasks validates task input and scopes every operation to its owner.
// Persistence is delegated to a Store; ownership is part of every Store query.
package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/just-being-aryan/task-manager-app/internal/domain/errors"
	"github.com/just-being-aryan/task-manager-app/internal/domain/models"
)

const maxTitleLength = 255

type Store interface {
	GetTasks(ctx context.Context, userID string) ([]models.Task, error)
	CreateTask(ctx context.Context, task *models.Task) error
	// UpdateTask replaces the mutable fields of the task with the given id and
	// owner and fills task with the stored row. Returns errors.ErrNotFound when
	// no such row exists for that owner.
	UpdateTask(ctx context.Context, userID, id string, task *models.Task) error
	DeleteTask(ctx context.Context, userID, id string) error
}

type Input struct {
	Title       string
	Description string
	DueDate     string
	Priority    string
	IsComplete  bool
}

type Repository struct {
	store Store
	now   func() time.Time
}

func NewRepository(store Store) *Repository {
	return &Repository{store: store, now: time.Now}
}

// WithClock replaces the timestamp source.
func (r *Repository) WithClock(now func() time.Time) *Repository {
	r.now = now
	return r
}

func (r *Repository) ListByOwner(ctx context.Context, userID string) ([]models.Task, error) {
	list, err := r.store.GetTasks(ctx, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []models.Task{}
	}
	return list, nil
}

func (r *Repository) Create(ctx context.Context, userID string, in Input) (*models.Task, error) {
	task, err := buildTask(in)
	if err != nil {
		return nil, err
	}
	now := r.now().UTC()
	task.ID = uuid.New().String()
	task.UserID = userID
	task.IsComplete = false
	task.CreatedAt = now
	task.UpdatedAt = now

	if err := r.store.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *Repository) Update(ctx context.Context, userID, taskID string, in Input) (*models.Task, error) {
	if !validID(taskID) {
		return nil, errors.ErrNotFound
	}
	task, err := buildTask(in)
	if err != nil {
		return nil, err
	}
	task.IsComplete = in.IsComplete
	task.UpdatedAt = r.now().UTC()

	if err := r.store.UpdateTask(ctx, userID, taskID, task); err != nil {
		return nil, err
	}
	return task, nil
}

func (r *Repository) Delete(ctx context.Context, userID, taskID string) error {
	if !validID(taskID) {
		return errors.ErrNotFound
	}
	return r.store.DeleteTask(ctx, userID, taskID)
}

func buildTask(in Input) (*models.Task, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" || utf8.RuneCountInString(title) > maxTitleLength {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidInput, errors.ErrInvalidTitle)
	}
	due, err := models.ParseDate(in.DueDate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidInput, err)
	}
	priority, err := models.ParsePriority(in.Priority)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errors.ErrInvalidInput, err)
	}
	return &models.Task{
		Title:       title,
		Description: in.Description,
		DueDate:     due,
		Priority:    priority,
	}, nil
}

// Malformed ids cannot name any row; treat them as missing rather than bad input.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
