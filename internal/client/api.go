package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/just-being-aryan/task-manager-app/internal/domain/models"
)

const defaultRequestTimeout = 15 * time.Second

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	StatusCode int
	Message    string
	Stack      string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusUnauthorized
}

// Message returns the text to show a user for err.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Stack   string `json:"stack"`
}

type authEnvelope struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

type userEnvelope struct {
	User *models.User `json:"user"`
}

type tasksEnvelope struct {
	Tasks []wireTask `json:"tasks"`
}

type taskEnvelope struct {
	Task wireTask `json:"task"`
}

// wireTask tolerates date-time due dates and 0/1 completion flags.
type wireTask struct {
	models.Task
	DueDate    string          `json:"due_date"`
	IsComplete models.FlexBool `json:"is_complete"`
}

func (w wireTask) task() (models.Task, error) {
	task := w.Task
	task.IsComplete = bool(w.IsComplete)
	if w.DueDate == "" {
		return task, nil
	}
	normalized, err := models.NormalizeDate(w.DueDate)
	if err != nil {
		return models.Task{}, err
	}
	if task.DueDate, err = models.ParseDate(normalized); err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// API is an HTTP client for the task-manager REST surface.
type API struct {
	baseURL string
	http    *http.Client
}

type APIOption func(*API)

func WithHTTPClient(c *http.Client) APIOption {
	return func(a *API) { a.http = c }
}

// NewAPI targets baseURL, which may carry a path prefix such as /api.
func NewAPI(baseURL string, opts ...APIOption) *API {
	a := &API{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultRequestTimeout},
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Register creates an account and returns the credential issued for it.
func (a *API) Register(ctx context.Context, req models.RegisterRequest) (string, *models.User, error) {
	var out authEnvelope
	if err := a.do(ctx, http.MethodPost, "/auth/register", "", req, &out); err != nil {
		return "", nil, err
	}
	return out.Token, out.User, nil
}

func (a *API) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	var out authEnvelope
	req := models.LoginRequest{Email: email, Password: password}
	if err := a.do(ctx, http.MethodPost, "/auth/login", "", req, &out); err != nil {
		return "", nil, err
	}
	return out.Token, out.User, nil
}

// Logout asks the server to revoke token. Servers without a denylist accept
// the call and keep honouring the token until it expires.
func (a *API) Logout(ctx context.Context, token string) error {
	return a.do(ctx, http.MethodPost, "/auth/logout", token, nil, nil)
}

func (a *API) Me(ctx context.Context, token string) (*models.User, error) {
	var out userEnvelope
	if err := a.do(ctx, http.MethodGet, "/auth/me", token, nil, &out); err != nil {
		return nil, err
	}
	return out.User, nil
}

func (a *API) ListTasks(ctx context.Context, token string) ([]models.Task, error) {
	var out tasksEnvelope
	if err := a.do(ctx, http.MethodGet, "/tasks", token, nil, &out); err != nil {
		return nil, err
	}

	list := make([]models.Task, 0, len(out.Tasks))
	for _, w := range out.Tasks {
		task, err := w.task()
		if err != nil {
			return nil, fmt.Errorf("decode task %s: %w", w.ID, err)
		}
		list = append(list, task)
	}
	return list, nil
}

func (a *API) CreateTask(ctx context.Context, token string, req models.CreateTaskRequest) (*models.Task, error) {
	var out taskEnvelope
	if err := a.do(ctx, http.MethodPost, "/tasks", token, req, &out); err != nil {
		return nil, err
	}
	return decodedTask(out.Task)
}

func (a *API) UpdateTask(ctx context.Context, token, id string, req models.UpdateTaskRequest) (*models.Task, error) {
	var out taskEnvelope
	if err := a.do(ctx, http.MethodPut, "/tasks/"+id, token, req, &out); err != nil {
		return nil, err
	}
	return decodedTask(out.Task)
}

func (a *API) DeleteTask(ctx context.Context, token, id string) error {
	return a.do(ctx, http.MethodDelete, "/tasks/"+id, token, nil, nil)
}

func decodedTask(w wireTask) (*models.Task, error) {
	task, err := w.task()
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (a *API) do(ctx context.Context, method, path, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var env errorEnvelope
		if json.Unmarshal(data, &env) == nil {
			apiErr.Message = env.Message
			apiErr.Stack = env.Stack
		}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
