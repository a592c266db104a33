package storage

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/just-being-aryan/task-manager-app/internal/domain/errors"
	"github.com/just-being-aryan/task-manager-app/internal/domain/models"
)

// Storage keeps users and tasks in process memory. It backs tests and the
// fallback mode when the database is unreachable.
type Storage struct {
	mu      sync.RWMutex
	users   map[string]models.User
	byEmail map[string]string
	tasks   map[string]models.Task
	order   []string
}

func NewStorage() *Storage {
	return &Storage{
		users:   make(map[string]models.User),
		byEmail: make(map[string]string),
		tasks:   make(map[string]models.Task),
	}
}

func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := s.byEmail[key]; exists {
		return errors.ErrDuplicateEmail
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	s.users[user.ID] = *user
	s.byEmail[key] = user.ID
	return nil
}

func (s *Storage) GetUserByID(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, errors.ErrUserNotFound
	}
	return &user, nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, exists := s.byEmail[strings.ToLower(email)]
	if !exists {
		return nil, errors.ErrUserNotFound
	}
	user := s.users[id]
	return &user, nil
}

func (s *Storage) CreateTask(_ context.Context, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	s.tasks[task.ID] = *task
	s.order = append(s.order, task.ID)
	return nil
}

func (s *Storage) GetTasks(_ context.Context, userID string) ([]models.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tasks := []models.Task{}
	for _, id := range s.order {
		if t := s.tasks[id]; t.UserID == userID {
			tasks = append(tasks, t)
		}
	}
	return tasks, nil
}

func (s *Storage) UpdateTask(_ context.Context, userID, id string, task *models.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.tasks[id]
	if !exists || stored.UserID != userID {
		return errors.ErrNotFound
	}
	stored.Title = task.Title
	stored.Description = task.Description
	stored.DueDate = task.DueDate
	stored.Priority = task.Priority
	stored.IsComplete = task.IsComplete
	stored.UpdatedAt = task.UpdatedAt
	s.tasks[id] = stored

	*task = stored
	return nil
}

func (s *Storage) DeleteTask(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.tasks[id]
	if !exists || stored.UserID != userID {
		return errors.ErrNotFound
	}
	delete(s.tasks, id)
	s.order = slices.DeleteFunc(s.order, func(v string) bool { return v == id })
	return nil
}

func (s *Storage) Ping(context.Context) error { return nil }
