package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/just-being-aryan/task-manager-app/internal/auth"
	"github.com/just-being-aryan/task-manager-app/internal/domain/errors"
	"github.com/just-being-aryan/task-manager-app/internal/domain/models"
	"github.com/just-being-aryan/task-manager-app/internal/server"
	"github.com/just-being-aryan/task-manager-app/internal/tasks"
	storage "github.com/just-being-aryan/task-manager-app/repository/inmemory"
)

const (
	testEmail    = "user@example.com"
	testPassword = "secret1"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type backend struct {
	srv   *httptest.Server
	clock *testClock

	mu    sync.Mutex
	calls map[string]int
}

func (b *backend) count(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[method+" "+path]
}

// newBackend serves the real API over in-memory storage.
func newBackend(t *testing.T, authOpts ...auth.Option) *backend {
	t.Helper()
	gin.SetMode(gin.TestMode)

	b := &backend{
		clock: &testClock{now: time.Now()},
		calls: make(map[string]int),
	}
	store := storage.NewStorage()
	authOpts = append(authOpts, auth.WithBcryptCost(bcrypt.MinCost), auth.WithClock(b.clock.Now))
	svc := auth.NewService(store, "shouldbeinVaultsecret", time.Hour, authOpts...)
	api := server.NewTaskAPI(svc, tasks.NewRepository(store), server.DefaultConfig())
	require.NotNil(t, api)

	handler := api.Handler()
	b.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.Method+" "+r.URL.Path]++
		b.mu.Unlock()
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(b.srv.Close)
	return b
}

func newClient(b *backend, tokens TokenStore) *Client {
	return New(NewAPI(b.srv.URL+"/api"), tokens)
}

func loggedInClient(t *testing.T, b *backend) (*Client, *MemoryTokenStore) {
	t.Helper()
	tokens := NewMemoryTokenStore("")
	c := newClient(b, tokens)
	require.NoError(t, c.Register(context.Background(), models.RegisterRequest{Email: testEmail, Password: testPassword}))
	require.NoError(t, c.Login(context.Background(), testEmail, testPassword))
	return c, tokens
}

func lastNotification(t *testing.T, c *Client) Notification {
	t.Helper()
	list := c.State().UI.Notifications
	require.NotEmpty(t, list)
	return list[len(list)-1]
}

func TestPayRentToggle(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	c, _ := loggedInClient(t, b)

	require.NoError(t, c.CreateTask(ctx, Draft{
		Title:       "Pay rent",
		Description: "",
		DueDate:     "2025-01-05",
		Priority:    models.PriorityHigh,
	}))

	items := c.State().Tasks.Items
	require.Len(t, items, 1)
	created := items[0]
	assert.Equal(t, "Pay rent", created.Title)
	assert.Equal(t, "", created.Description)
	assert.Equal(t, "2025-01-05", created.DueDate.String())
	assert.Equal(t, models.PriorityHigh, created.Priority)
	assert.False(t, created.IsComplete)

	require.NoError(t, c.ToggleComplete(ctx, created.ID))

	items = c.State().Tasks.Items
	require.Len(t, items, 1)
	assert.True(t, items[0].IsComplete)
	assert.Equal(t, created.ID, items[0].ID)
	assert.Equal(t, created.Title, items[0].Title)
	assert.Equal(t, created.DueDate, items[0].DueDate)
	assert.Equal(t, created.Priority, items[0].Priority)

	require.NoError(t, c.ToggleComplete(ctx, created.ID))
	assert.False(t, c.State().Tasks.Items[0].IsComplete)
}

func TestMutationsRefetch(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	c, _ := loggedInClient(t, b)
	lists := b.count(http.MethodGet, "/api/tasks")

	require.NoError(t, c.CreateTask(ctx, Draft{Title: "a", DueDate: "2025-01-05", Priority: models.PriorityLow}))
	assert.Equal(t, lists+1, b.count(http.MethodGet, "/api/tasks"))

	id := c.State().Tasks.Items[0].ID
	require.NoError(t, c.UpdateTask(ctx, id, Draft{Title: "b", DueDate: "2025-01-06", Priority: models.PriorityLow}, false))
	assert.Equal(t, lists+2, b.count(http.MethodGet, "/api/tasks"))
	assert.Equal(t, "b", c.State().Tasks.Items[0].Title)

	require.NoError(t, c.DeleteTask(ctx, id))
	assert.Equal(t, lists+3, b.count(http.MethodGet, "/api/tasks"))
	assert.Empty(t, c.State().Tasks.Items)
	assert.False(t, c.State().UI.IsSubmitting)
}

func TestCreateTaskNormalizesDueDate(t *testing.T) {
	tests := []struct {
		name    string
		dueDate string
		want    string
	}{
		{name: "calendar date", dueDate: "2025-01-05", want: "2025-01-05"},
		{name: "rfc3339", dueDate: "2025-01-05T00:00:00Z", want: "2025-01-05"},
		{name: "date time", dueDate: "2025-01-05T18:30:00", want: "2025-01-05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBackend(t)
			c, _ := loggedInClient(t, b)

			require.NoError(t, c.CreateTask(context.Background(), Draft{Title: "x", DueDate: tt.dueDate, Priority: models.PriorityMedium}))

			require.Len(t, c.State().Tasks.Items, 1)
			assert.Equal(t, tt.want, c.State().Tasks.Items[0].DueDate.String())
		})
	}
}

func TestFailedMutationKeepsList(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	c, _ := loggedInClient(t, b)
	require.NoError(t, c.CreateTask(ctx, Draft{Title: "keep", DueDate: "2025-01-05", Priority: models.PriorityLow}))
	before := c.State().Tasks.Items
	lists := b.count(http.MethodGet, "/api/tasks")

	tests := []struct {
		name string
		run  func() error
		want struct {
			status  int
			message string
		}
	}{
		{
			name: "invalid priority",
			run: func() error {
				return c.CreateTask(ctx, Draft{Title: "x", DueDate: "2025-01-05", Priority: "Urgent"})
			},
			want: struct {
				status  int
				message string
			}{status: http.StatusBadRequest, message: `Failed to create task: invalid input: ` + errors.ErrInvalidPriority.Error() + `: "Urgent"`},
		},
		{
			name: "unknown task",
			run: func() error {
				return c.DeleteTask(ctx, "00000000-0000-0000-0000-000000000000")
			},
			want: struct {
				status  int
				message string
			}{status: http.StatusNotFound, message: "Failed to delete task: task not found"},
		},
		{
			name: "bad due date never reaches the server",
			run: func() error {
				return c.CreateTask(ctx, Draft{Title: "x", DueDate: "next week", Priority: models.PriorityLow})
			},
			want: struct {
				status  int
				message string
			}{message: `Failed to create task: due_date must be a YYYY-MM-DD date: "next week"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)

			if tt.want.status != 0 {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, tt.want.status, apiErr.StatusCode)
			}
			assert.Equal(t, before, c.State().Tasks.Items)
			assert.Equal(t, lists, b.count(http.MethodGet, "/api/tasks"))
			n := lastNotification(t, c)
			assert.Equal(t, KindError, n.Kind)
			assert.Equal(t, tt.want.message, n.Message)
			assert.Equal(t, RouteDashboard, c.State().Route)
		})
	}
}

func TestToggleUnknownTask(t *testing.T) {
	b := newBackend(t)
	c, _ := loggedInClient(t, b)

	err := c.ToggleComplete(context.Background(), "missing")

	assert.ErrorIs(t, err, errors.ErrNotFound)
	assert.Equal(t, KindError, lastNotification(t, c).Kind)
}

func TestLoginFailure(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	tokens := NewMemoryTokenStore("")
	c := newClient(b, tokens)
	require.NoError(t, c.Register(ctx, models.RegisterRequest{Email: testEmail, Password: testPassword}))

	var messages []string
	for range 2 {
		err := c.Login(ctx, testEmail, "wrong-password")
		require.Error(t, err)
		assert.True(t, IsUnauthorized(err))
		messages = append(messages, c.State().Auth.Error)
	}

	assert.Equal(t, errors.ErrInvalidCredentials.Error(), messages[0])
	assert.Equal(t, messages[0], messages[1])
	s := c.State()
	assert.False(t, s.Auth.IsAuthenticated)
	assert.Equal(t, RouteLogin, s.Route)
	assert.Equal(t, "Login failed: invalid email or password", lastNotification(t, c).Message)
	token, _ := tokens.Load()
	assert.Empty(t, token)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	c := newClient(b, nil)

	require.NoError(t, c.Register(ctx, models.RegisterRequest{Name: "Test", Email: testEmail, Password: testPassword}))
	s := c.State()
	assert.Equal(t, RouteLogin, s.Route)
	assert.False(t, s.Auth.IsAuthenticated)
	assert.Equal(t, KindSuccess, lastNotification(t, c).Kind)

	err := c.Register(ctx, models.RegisterRequest{Email: testEmail, Password: testPassword})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, errors.ErrDuplicateEmail.Error(), c.State().Auth.Error)
}

func TestExpiredCredentialIsDisposed(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	c, tokens := loggedInClient(t, b)
	require.NoError(t, c.CreateTask(ctx, Draft{Title: "x", DueDate: "2025-01-05", Priority: models.PriorityLow}))

	b.clock.Advance(2 * time.Hour)
	err := c.Refresh(ctx)

	require.Error(t, err)
	assert.True(t, IsUnauthorized(err))
	s := c.State()
	assert.Equal(t, RouteLogin, s.Route)
	assert.False(t, s.Auth.IsAuthenticated)
	assert.Empty(t, s.Auth.Token)
	assert.Empty(t, s.Tasks.Items)
	assert.Equal(t, sessionExpiredMessage, lastNotification(t, c).Message)
	token, _ := tokens.Load()
	assert.Empty(t, token)

	assert.ErrorIs(t, c.Refresh(ctx), errors.ErrUnauthenticated)
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("valid credential", func(t *testing.T) {
		b := newBackend(t)
		first, tokens := loggedInClient(t, b)
		require.NoError(t, first.CreateTask(ctx, Draft{Title: "x", DueDate: "2025-01-05", Priority: models.PriorityLow}))

		c := newClient(b, tokens)
		require.NoError(t, c.Restore(ctx))

		s := c.State()
		assert.True(t, s.Auth.IsAuthenticated)
		assert.Equal(t, RouteDashboard, s.Route)
		require.NotNil(t, s.Auth.User)
		assert.Equal(t, testEmail, s.Auth.User.Email)
		assert.Len(t, s.Tasks.Items, 1)
	})

	t.Run("rejected credential", func(t *testing.T) {
		b := newBackend(t)
		tokens := NewMemoryTokenStore("not-a-token")
		c := newClient(b, tokens)

		err := c.Restore(ctx)

		assert.True(t, IsUnauthorized(err))
		assert.Equal(t, RouteLogin, c.State().Route)
		token, _ := tokens.Load()
		assert.Empty(t, token)
	})

	t.Run("nothing stored", func(t *testing.T) {
		b := newBackend(t)
		c := newClient(b, NewMemoryTokenStore(""))

		require.NoError(t, c.Restore(ctx))
		assert.Equal(t, RouteLogin, c.State().Route)
		assert.Zero(t, b.count(http.MethodGet, "/api/auth/me"))
	})
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	c, tokens := loggedInClient(t, b)

	require.NoError(t, c.Logout(ctx))

	s := c.State()
	assert.Equal(t, RouteLogin, s.Route)
	assert.False(t, s.Auth.IsAuthenticated)
	assert.Empty(t, s.Tasks.Items)
	token, _ := tokens.Load()
	assert.Empty(t, token)
	assert.Equal(t, 1, b.count(http.MethodPost, "/api/auth/logout"))
}

func TestLogoutRevokesWithDenylist(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t, auth.WithDenylist(storage.NewDenylist()))
	c, tokens := loggedInClient(t, b)
	token, _ := tokens.Load()

	require.NoError(t, c.Logout(ctx))

	_, err := NewAPI(b.srv.URL).ListTasks(ctx, token)
	assert.True(t, IsUnauthorized(err))
}

func TestSubmitForm(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	c, _ := loggedInClient(t, b)

	err := c.SubmitForm(ctx)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	c.OpenCreateModal()
	c.SetForm(Form{Title: "Pay rent", DueDate: "2025-01-05", Priority: models.PriorityHigh})
	require.NoError(t, c.SubmitForm(ctx))
	s := c.State()
	assert.False(t, s.UI.Modals.CreateTask)
	require.Len(t, s.Tasks.Items, 1)

	task := s.Tasks.Items[0]
	c.OpenEditModal(task)
	form := c.State().UI.Form
	form.Title = ""
	c.SetForm(form)
	require.Error(t, c.SubmitForm(ctx))
	assert.True(t, c.State().UI.Modals.EditTask, "modal stays open on failure")
	assert.Equal(t, "Pay rent", c.State().Tasks.Items[0].Title)

	form.Title = "Pay rent today"
	c.SetForm(form)
	require.NoError(t, c.SubmitForm(ctx))
	s = c.State()
	assert.False(t, s.UI.Modals.EditTask)
	assert.Nil(t, s.UI.CurrentTask)
	assert.Equal(t, "Pay rent today", s.Tasks.Items[0].Title)
}

func TestClientVisible(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	c, _ := loggedInClient(t, b)
	require.NoError(t, c.CreateTask(ctx, Draft{Title: "late", DueDate: "2025-03-01", Priority: models.PriorityLow}))
	require.NoError(t, c.CreateTask(ctx, Draft{Title: "early", DueDate: "2025-01-01", Priority: models.PriorityHigh}))

	assert.Equal(t, "early", c.Visible()[0].Title)

	c.SetSortOrder(SortDesc)
	assert.Equal(t, "late", c.Visible()[0].Title)

	high := models.PriorityHigh
	c.SetPriorityFilter(&high)
	require.Len(t, c.Visible(), 1)
	assert.Equal(t, "early", c.Visible()[0].Title)

	done := true
	c.SetCompletionFilter(&done)
	assert.Empty(t, c.Visible())

	c.ResetFilters()
	c.SetSearchTerm("LAT")
	require.Len(t, c.Visible(), 1)
	assert.Equal(t, "late", c.Visible()[0].Title)
}

func TestClientDismissExpired(t *testing.T) {
	clock := &testClock{now: time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)}
	c := New(NewAPI("http://127.0.0.1:0"), nil, WithClock(clock.Now))

	c.Notify(KindInfo, "old")
	clock.Advance(2 * time.Second)
	c.Notify(KindWarning, "new")
	clock.Advance(2 * time.Second)

	c.DismissExpired()

	list := c.State().UI.Notifications
	require.Len(t, list, 1)
	assert.Equal(t, "new", list[0].Message)

	c.Dismiss(list[0].ID)
	assert.Empty(t, c.State().UI.Notifications)
}

func TestServerUnavailable(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)
	c, tokens := loggedInClient(t, b)
	require.NoError(t, c.CreateTask(ctx, Draft{Title: "x", DueDate: "2025-01-05", Priority: models.PriorityLow}))
	before := c.State().Tasks.Items

	b.srv.Close()
	err := c.Refresh(ctx)

	require.Error(t, err)
	assert.False(t, IsUnauthorized(err))
	s := c.State()
	assert.Equal(t, before, s.Tasks.Items)
	assert.NotEmpty(t, s.Tasks.Error)
	assert.True(t, s.Auth.IsAuthenticated, "transport failures keep the credential")
	token, _ := tokens.Load()
	assert.NotEmpty(t, token)
}
