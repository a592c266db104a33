package db

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/just-being-aryan/task-manager-app/internal/domain/errors"
	"github.com/just-being-aryan/task-manager-app/internal/domain/models"
	"github.com/just-being-aryan/task-manager-app/pkg/logger"
)

const (
	queryTimeout      = 15 * time.Second
	uniqueViolation   = "23505"
	taskColumns       = `id::text, user_id::text, title, description, due_date, priority::text, is_complete, created_at, updated_at`
	userColumns       = `id::text, email, password_hash, COALESCE(name, ''), created_at, updated_at`
	queryCreateTask   = `INSERT INTO tasks (id, user_id, title, description, due_date, priority, is_complete, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6::task_priority, $7, $8, $9)`
	queryGetTasks     = `SELECT ` + taskColumns + ` FROM tasks WHERE user_id = $1 ORDER BY created_at, id`
	queryUpdateTask   = `UPDATE tasks SET title = $1, description = $2, due_date = $3, priority = $4::task_priority, is_complete = $5, updated_at = $6 WHERE id = $7 AND user_id = $8 RETURNING ` + taskColumns
	queryDeleteTask   = `DELETE FROM tasks WHERE id = $1 AND user_id = $2`
	queryCreateUser   = `INSERT INTO users (id, email, password_hash, name, created_at, updated_at) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)`
	queryUserByID     = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	queryUserByEmail  = `SELECT ` + userColumns + ` FROM users WHERE lower(email) = lower($1)`
	connectionTimeout = 15 * time.Second
)

// Storage is the PostgreSQL backend for users and tasks.
type Storage struct {
	pool *pgxpool.Pool
}

func NewStorage(connStr string) (*Storage, error) {
	log := logger.Get()

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		log.Error().Err(err).Msg("failed to configure database pool")
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error().Err(err).Msg("failed to connect to database")
		return nil, err
	}

	log.Info().Msg("database connection established")
	return &Storage{pool: pool}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	log := logger.Get()

	_, err := s.pool.Exec(ctx, queryCreateTask,
		task.ID, task.UserID, task.Title, task.Description, task.DueDate.Time(),
		string(task.Priority), task.IsComplete, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		log.Error().Err(err).Str("task_id", task.ID).Msg("failed to create task")
		return fmt.Errorf("create task: %w", err)
	}
	log.Debug().Str("task_id", task.ID).Msg("task created")
	return nil
}

func (s *Storage) GetTasks(ctx context.Context, userID string) ([]models.Task, error) {
	tasks := []models.Task{}
	if !isUUID(userID) {
		return tasks, nil
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	log := logger.Get()

	rows, err := s.pool.Query(ctx, queryGetTasks, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("failed to query tasks")
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			log.Error().Err(err).Msg("failed to read task row")
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	log.Debug().Str("user_id", userID).Int("count", len(tasks)).Msg("tasks loaded")
	return tasks, nil
}

func (s *Storage) UpdateTask(ctx context.Context, userID, id string, task *models.Task) error {
	if !isUUID(userID) || !isUUID(id) {
		return errors.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	log := logger.Get()

	row := s.pool.QueryRow(ctx, queryUpdateTask,
		task.Title, task.Description, task.DueDate.Time(), string(task.Priority),
		task.IsComplete, task.UpdatedAt, id, userID)
	stored, err := scanTask(row)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return errors.ErrNotFound
		}
		log.Error().Err(err).Str("task_id", id).Msg("failed to update task")
		return fmt.Errorf("update task: %w", err)
	}
	*task = *stored
	log.Debug().Str("task_id", id).Msg("task updated")
	return nil
}

func (s *Storage) DeleteTask(ctx context.Context, userID, id string) error {
	if !isUUID(userID) || !isUUID(id) {
		return errors.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	log := logger.Get()

	ct, err := s.pool.Exec(ctx, queryDeleteTask, id, userID)
	if err != nil {
		log.Error().Err(err).Str("task_id", id).Msg("failed to delete task")
		return fmt.Errorf("delete task: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return errors.ErrNotFound
	}
	log.Debug().Str("task_id", id).Msg("task deleted")
	return nil
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	log := logger.Get()

	_, err := s.pool.Exec(ctx, queryCreateUser,
		user.ID, user.Email, user.PasswordHash, user.Name, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if stderrors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errors.ErrDuplicateEmail
		}
		log.Error().Err(err).Msg("failed to create user")
		return fmt.Errorf("create user: %w", err)
	}
	log.Debug().Str("user_id", user.ID).Msg("user created")
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if !isUUID(id) {
		return nil, errors.ErrUserNotFound
	}
	return s.getUser(ctx, queryUserByID, id)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, queryUserByEmail, email)
}

func (s *Storage) getUser(ctx context.Context, query, arg string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	user := &models.User{}
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID, &user.Email, &user.PasswordHash, &user.Name, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrUserNotFound
		}
		log := logger.Get()
		log.Error().Err(err).Msg("failed to load user")
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var (
		task     models.Task
		due      time.Time
		priority string
	)
	err := row.Scan(&task.ID, &task.UserID, &task.Title, &task.Description, &due,
		&priority, &task.IsComplete, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	task.DueDate = models.DateOf(due)
	task.Priority = models.Priority(priority)
	return &task, nil
}

func isUUID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
