package tasks

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/just-being-aryan/task-manager-app/internal/domain/errors"
	"github.com/just-being-aryan/task-manager-app/internal/domain/models"
	inmemory "github.com/just-being-aryan/task-manager-app/repository/inmemory"
)

func payRent() Input {
	return Input{Title: "Pay rent", Description: "", DueDate: "2025-01-05", Priority: "High"}
}

func TestCreate(t *testing.T) {
	tests := []struct {
		name  string
		input Input
		want  struct {
			err      error
			priority models.Priority
		}
	}{
		{
			name:  "valid task",
			input: payRent(),
			want: struct {
				err      error
				priority models.Priority
			}{priority: models.PriorityHigh},
		},
		{
			name:  "priority is canonicalised",
			input: Input{Title: "Water plants", DueDate: "2025-03-01", Priority: "low"},
			want: struct {
				err      error
				priority models.Priority
			}{priority: models.PriorityLow},
		},
		{
			name:  "blank title",
			input: Input{Title: "   ", DueDate: "2025-03-01", Priority: "Low"},
			want: struct {
				err      error
				priority models.Priority
			}{err: errors.ErrInvalidTitle},
		},
		{
			name:  "invalid date",
			input: Input{Title: "Taxes", DueDate: "2025-13-01", Priority: "Low"},
			want: struct {
				err      error
				priority models.Priority
			}{err: errors.ErrInvalidDueDate},
		},
		{
			name:  "missing date",
			input: Input{Title: "Taxes", Priority: "Low"},
			want: struct {
				err      error
				priority models.Priority
			}{err: errors.ErrInvalidDueDate},
		},
		{
			name:  "unknown priority",
			input: Input{Title: "Taxes", DueDate: "2025-04-15", Priority: "Critical"},
			want: struct {
				err      error
				priority models.Priority
			}{err: errors.ErrInvalidPriority},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := NewRepository(inmemory.NewStorage())

			task, err := repo.Create(context.Background(), "owner", tt.input)
			if tt.want.err != nil {
				assert.ErrorIs(t, err, errors.ErrInvalidInput)
				assert.ErrorIs(t, err, tt.want.err)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, task.ID)
			assert.Equal(t, "owner", task.UserID)
			assert.Equal(t, tt.want.priority, task.Priority)
			assert.False(t, task.IsComplete)
			assert.False(t, task.CreatedAt.IsZero())
		})
	}
}

func TestCreateThenListRoundTrip(t *testing.T) {
	repo := NewRepository(inmemory.NewStorage())
	ctx := context.Background()

	created, err := repo.Create(ctx, "owner", payRent())
	require.NoError(t, err)

	list, err := repo.ListByOwner(ctx, "owner")
	require.NoError(t, err)
	require.Len(t, list, 1)

	got := list[0]
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Pay rent", got.Title)
	assert.Equal(t, "", got.Description)
	assert.Equal(t, "2025-01-05", got.DueDate.String())
	assert.Equal(t, models.PriorityHigh, got.Priority)
}

func TestListIsOwnerScoped(t *testing.T) {
	repo := NewRepository(inmemory.NewStorage())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := repo.Create(ctx, "alice", payRent())
		require.NoError(t, err)
	}
	_, err := repo.Create(ctx, "bob", payRent())
	require.NoError(t, err)

	aliceTasks, err := repo.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, aliceTasks, 3)
	for _, task := range aliceTasks {
		assert.Equal(t, "alice", task.UserID)
	}

	empty, err := repo.ListByOwner(ctx, "carol")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestUpdate(t *testing.T) {
	now := time.Date(2025, time.January, 1, 9, 0, 0, 0, time.UTC)
	repo := NewRepository(inmemory.NewStorage()).WithClock(func() time.Time { return now })
	ctx := context.Background()

	created, err := repo.Create(ctx, "alice", payRent())
	require.NoError(t, err)

	now = now.Add(time.Hour)
	in := payRent()
	in.IsComplete = true
	updated, err := repo.Update(ctx, "alice", created.ID, in)
	require.NoError(t, err)
	assert.True(t, updated.IsComplete)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.Equal(t, now, updated.UpdatedAt)

	list, err := repo.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].IsComplete)
}

func TestUpdateIsFullReplace(t *testing.T) {
	repo := NewRepository(inmemory.NewStorage())
	ctx := context.Background()

	created, err := repo.Create(ctx, "alice", Input{Title: "Draft", Description: "long notes", DueDate: "2025-02-01", Priority: "Low"})
	require.NoError(t, err)

	updated, err := repo.Update(ctx, "alice", created.ID, Input{Title: "Final", DueDate: "2025-02-02", Priority: "Medium"})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, "", updated.Description)
	assert.Equal(t, "2025-02-02", updated.DueDate.String())
	assert.Equal(t, models.PriorityMedium, updated.Priority)
}

func TestNotFoundIsUniform(t *testing.T) {
	repo := NewRepository(inmemory.NewStorage())
	ctx := context.Background()

	owned, err := repo.Create(ctx, "alice", payRent())
	require.NoError(t, err)

	cases := map[string]struct {
		user string
		id   string
	}{
		"foreign owner": {user: "mallory", id: owned.ID},
		"unknown id":    {user: "alice", id: uuid.NewString()},
		"malformed id":  {user: "alice", id: "42"},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := repo.Update(ctx, c.user, c.id, payRent())
			assert.Equal(t, errors.ErrNotFound, err)

			err = repo.Delete(ctx, c.user, c.id)
			assert.Equal(t, errors.ErrNotFound, err)
		})
	}

	list, err := repo.ListByOwner(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.False(t, list[0].IsComplete, "foreign update must not touch the row")
}

func TestDeleteTwice(t *testing.T) {
	repo := NewRepository(inmemory.NewStorage())
	ctx := context.Background()

	created, err := repo.Create(ctx, "alice", payRent())
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, "alice", created.ID))
	assert.ErrorIs(t, repo.Delete(ctx, "alice", created.ID), errors.ErrNotFound)
}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) GetTasks(ctx context.Context, userID string) ([]models.Task, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Task), args.Error(1)
}

func (m *mockStore) CreateTask(ctx context.Context, task *models.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *mockStore) UpdateTask(ctx context.Context, userID, id string, task *models.Task) error {
	return m.Called(ctx, userID, id, task).Error(0)
}

func (m *mockStore) DeleteTask(ctx context.Context, userID, id string) error {
	return m.Called(ctx, userID, id).Error(0)
}

func TestStoreErrorsPropagate(t *testing.T) {
	store := &mockStore{}
	store.On("GetTasks", mock.Anything, "alice").Return(nil, assert.AnError)
	store.On("CreateTask", mock.Anything, mock.AnythingOfType("*models.Task")).Return(assert.AnError)

	repo := NewRepository(store)
	_, err := repo.ListByOwner(context.Background(), "alice")
	assert.ErrorIs(t, err, assert.AnError)

	_, err = repo.Create(context.Background(), "alice", payRent())
	assert.ErrorIs(t, err, assert.AnError)

	_, err = repo.Create(context.Background(), "alice", Input{})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
	store.AssertNumberOfCalls(t, "CreateTask", 1)
	store.AssertExpectations(t)
}

func TestNilListBecomesEmpty(t *testing.T) {
	store := &mockStore{}
	store.On("GetTasks", mock.Anything, "alice").Return(nil, nil)

	list, err := NewRepository(store).ListByOwner(context.Background(), "alice")
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
