package client

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/just-being-aryan/task-manager-app/internal/domain/errors"
	"github.com/just-being-aryan/task-manager-app/internal/domain/models"
	"github.com/just-being-aryan/task-manager-app/pkg/logger"
)

const sessionExpiredMessage = "Session expired, please log in again"

// Draft is the user-editable part of a task.
type Draft struct {
	Title       string
	Description string
	DueDate     string
	Priority    models.Priority
}

func draftOf(task models.Task) Draft {
	return Draft{
		Title:       task.Title,
		Description: task.Description,
		DueDate:     task.DueDate.String(),
		Priority:    task.Priority,
	}
}

func draftFromForm(f Form) Draft {
	return Draft(f)
}

// Client owns the State and is the only path that changes it. Every task
// mutation is followed by a full refetch; nothing is merged locally.
type Client struct {
	api    *API
	tokens TokenStore
	now    func() time.Time

	mu    sync.Mutex
	state State
}

type Option func(*Client)

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func New(api *API, tokens TokenStore, opts ...Option) *Client {
	if tokens == nil {
		tokens = NewMemoryTokenStore("")
	}
	c := &Client{
		api:    api,
		tokens: tokens,
		now:    time.Now,
		state:  InitialState(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a snapshot. Slices in it are shared and must not be modified.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Visible returns the filtered and sorted task list for display.
func (c *Client) Visible() []models.Task {
	return Visible(c.State())
}

func (c *Client) Dispatch(a Action) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Reduce(c.state, a)
}

func (c *Client) Notify(kind Kind, message string) {
	c.Dispatch(NotificationAdded{Notification: NewNotification(kind, message, c.now())})
}

func (c *Client) Dismiss(id string) {
	c.Dispatch(NotificationRemoved{ID: id})
}

// DismissExpired drops every notification whose duration has passed.
func (c *Client) DismissExpired() {
	now := c.now()
	for _, n := range c.State().UI.Notifications {
		if n.Expired(now) {
			c.Dispatch(NotificationRemoved{ID: n.ID})
		}
	}
}

// Restore reactivates a persisted credential and loads the task list. A
// credential the server rejects is discarded.
func (c *Client) Restore(ctx context.Context) error {
	token, err := c.tokens.Load()
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	c.Dispatch(CredentialRestored{Token: token})

	user, err := c.api.Me(ctx, token)
	if err != nil {
		return c.fail(err, "Failed to restore session")
	}
	c.Dispatch(UserLoaded{User: user})
	return c.Refresh(ctx)
}

// Register creates the account. The user still has to log in afterwards.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) error {
	c.Dispatch(AuthRequested{})
	if _, _, err := c.api.Register(ctx, req); err != nil {
		msg := Message(err)
		c.Dispatch(RegisterFailed{Message: msg})
		c.Notify(KindError, "Registration failed: "+msg)
		return err
	}

	c.Dispatch(Registered{})
	c.Notify(KindSuccess, "Registration successful, please log in")
	return nil
}

func (c *Client) Login(ctx context.Context, email, password string) error {
	log := logger.Get()

	c.Dispatch(AuthRequested{})
	token, user, err := c.api.Login(ctx, email, password)
	if err != nil {
		msg := Message(err)
		c.Dispatch(AuthFailed{Message: msg})
		c.Notify(KindError, "Login failed: "+msg)
		return err
	}
	if err := c.tokens.Save(token); err != nil {
		log.Error().Err(err).Msg("failed to persist credential")
		c.Dispatch(AuthFailed{Message: err.Error()})
		c.Notify(KindError, "Login failed: could not store credential")
		return err
	}

	c.Dispatch(AuthSucceeded{Token: token, User: user})
	c.Notify(KindSuccess, "Logged in")
	return c.Refresh(ctx)
}

// Logout disposes of the credential locally. The server is asked to revoke it
// as well, but a failure there does not keep the user logged in.
func (c *Client) Logout(ctx context.Context) error {
	log := logger.Get()

	if token := c.State().Auth.Token; token != "" {
		if err := c.api.Logout(ctx, token); err != nil {
			log.Debug().Err(err).Msg("server-side logout failed")
		}
	}

	err := c.tokens.Clear()
	c.Dispatch(LoggedOut{})
	c.Notify(KindInfo, "Logged out")
	return err
}

// Refresh replaces the task list with the server's.
func (c *Client) Refresh(ctx context.Context) error {
	token, err := c.token()
	if err != nil {
		return err
	}

	c.Dispatch(TasksRequested{})
	list, err := c.api.ListTasks(ctx, token)
	if err != nil {
		c.Dispatch(TasksFailed{Message: Message(err)})
		return c.fail(err, "Failed to fetch tasks")
	}
	c.Dispatch(TasksLoaded{Items: list})
	return nil
}

func (c *Client) CreateTask(ctx context.Context, d Draft) error {
	token, err := c.token()
	if err != nil {
		return err
	}
	dueDate, err := models.NormalizeDate(d.DueDate)
	if err != nil {
		return c.fail(err, "Failed to create task")
	}

	err = c.submit(func() error {
		_, err := c.api.CreateTask(ctx, token, models.CreateTaskRequest{
			Title:       d.Title,
			Description: d.Description,
			DueDate:     dueDate,
			Priority:    string(d.Priority),
		})
		return err
	})
	if err != nil {
		return c.fail(err, "Failed to create task")
	}

	c.Notify(KindSuccess, "Task created successfully")
	return c.refetch(ctx)
}

// UpdateTask replaces every editable field of the task, including completion.
func (c *Client) UpdateTask(ctx context.Context, id string, d Draft, complete bool) error {
	token, err := c.token()
	if err != nil {
		return err
	}
	dueDate, err := models.NormalizeDate(d.DueDate)
	if err != nil {
		return c.fail(err, "Failed to update task")
	}

	err = c.submit(func() error {
		_, err := c.api.UpdateTask(ctx, token, id, models.UpdateTaskRequest{
			Title:       d.Title,
			Description: d.Description,
			DueDate:     dueDate,
			Priority:    string(d.Priority),
			IsComplete:  models.FlexBool(complete),
		})
		return err
	})
	if err != nil {
		return c.fail(err, "Failed to update task")
	}

	c.Notify(KindSuccess, "Task updated successfully")
	return c.refetch(ctx)
}

// ToggleComplete flips the completion flag of a task in the current list.
func (c *Client) ToggleComplete(ctx context.Context, id string) error {
	task, ok := c.find(id)
	if !ok {
		return c.fail(errors.ErrNotFound, "Failed to update task status")
	}
	return c.UpdateTask(ctx, id, draftOf(task), !task.IsComplete)
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	token, err := c.token()
	if err != nil {
		return err
	}

	if err := c.submit(func() error { return c.api.DeleteTask(ctx, token, id) }); err != nil {
		return c.fail(err, "Failed to delete task")
	}

	c.Notify(KindSuccess, "Task deleted successfully")
	return c.refetch(ctx)
}

// SubmitForm saves the open modal's form: an update in the edit modal, a new
// task in the create modal. The modal closes once the server accepts the change.
func (c *Client) SubmitForm(ctx context.Context) error {
	ui := c.State().UI

	var err error
	switch {
	case ui.Modals.EditTask && ui.CurrentTask != nil:
		err = c.UpdateTask(ctx, ui.CurrentTask.ID, draftFromForm(ui.Form), ui.CurrentTask.IsComplete)
	case ui.Modals.CreateTask:
		err = c.CreateTask(ctx, draftFromForm(ui.Form))
	default:
		return fmt.Errorf("%w: no task form is open", errors.ErrInvalidInput)
	}
	if err != nil && !isRefreshError(err) {
		return err
	}

	c.Dispatch(ModalsClosed{})
	return err
}

func (c *Client) OpenCreateModal()            { c.Dispatch(CreateModalOpened{}) }
func (c *Client) OpenEditModal(t models.Task) { c.Dispatch(EditModalOpened{Task: t}) }
func (c *Client) CloseModals()                { c.Dispatch(ModalsClosed{}) }
func (c *Client) SetForm(f Form)              { c.Dispatch(FormSet{Form: f}) }
func (c *Client) SetSortOrder(o SortOrder)    { c.Dispatch(SortOrderSet{Order: o}) }
func (c *Client) SetSearchTerm(term string)   { c.Dispatch(SearchTermSet{Term: term}) }
func (c *Client) ResetFilters()               { c.Dispatch(FiltersReset{}) }
func (c *Client) SetCompletionFilter(v *bool) { c.Dispatch(CompletionFilterSet{Completion: v}) }

func (c *Client) SetPriorityFilter(p *models.Priority) {
	c.Dispatch(PriorityFilterSet{Priority: p})
}

func (c *Client) token() (string, error) {
	token := c.State().Auth.Token
	if token == "" {
		return "", errors.ErrUnauthenticated
	}
	return token, nil
}

func (c *Client) find(id string) (models.Task, bool) {
	for _, task := range c.State().Tasks.Items {
		if task.ID == id {
			return task, true
		}
	}
	return models.Task{}, false
}

func (c *Client) submit(call func() error) error {
	c.Dispatch(SubmittingSet{Submitting: true})
	defer c.Dispatch(SubmittingSet{Submitting: false})
	return call()
}

// refreshError marks a failure of the refetch that follows a successful
// mutation.
type refreshError struct{ err error }

func (e *refreshError) Error() string { return e.err.Error() }
func (e *refreshError) Unwrap() error { return e.err }

func (c *Client) refetch(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		return &refreshError{err: err}
	}
	return nil
}

func isRefreshError(err error) bool {
	_, ok := err.(*refreshError)
	return ok
}

// fail reports err to the user. A 401 also disposes of the credential.
func (c *Client) fail(err error, action string) error {
	log := logger.Get()
	log.Debug().Err(err).Str("action", action).Msg("client request failed")

	if IsUnauthorized(err) {
		c.expire()
		return err
	}
	c.Notify(KindError, fmt.Sprintf("%s: %s", action, strings.TrimSpace(Message(err))))
	return err
}

func (c *Client) expire() {
	log := logger.Get()
	if err := c.tokens.Clear(); err != nil {
		log.Error().Err(err).Msg("failed to clear stored credential")
	}
	c.Dispatch(LoggedOut{})
	c.Notify(KindError, sessionExpiredMessage)
}
