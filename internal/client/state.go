// Package client holds the state of a task-manager front end and drives the
// REST API on its behalf. All state changes go through Reduce.
package client

import (
	"slices"

	"github.com/just-being-aryan/task-manager-app/internal/domain/models"
)

type Route string

const (
	RouteLogin     Route = "login"
	RouteDashboard Route = "dashboard"
)

type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

type AuthState struct {
	Token           string
	User            *models.User
	IsAuthenticated bool
	Loading         bool
	Error           string
}

// Filters narrow the displayed list. A nil field does not filter.
type Filters struct {
	Priority   *models.Priority
	Completion *bool
}

type TaskState struct {
	Items      []models.Task
	Loading    bool
	Error      string
	Filters    Filters
	SortOrder  SortOrder
	SearchTerm string
}

type Modals struct {
	CreateTask bool
	EditTask   bool
}

// Form is the task being edited in the create or edit modal.
type Form struct {
	Title       string
	Description string
	DueDate     string
	Priority    models.Priority
}

func EmptyForm() Form {
	return Form{Priority: models.PriorityMedium}
}

type UIState struct {
	Modals        Modals
	CurrentTask   *models.Task
	Form          Form
	IsSubmitting  bool
	Notifications []Notification
}

type State struct {
	Auth  AuthState
	Tasks TaskState
	UI    UIState
	Route Route
}

func InitialState() State {
	return State{
		Tasks: TaskState{SortOrder: SortAsc},
		UI:    UIState{Form: EmptyForm()},
		Route: RouteLogin,
	}
}

// Action is one of the state transitions below.
type Action interface {
	isAction()
}

// Auth transitions.
type (
	// CredentialRestored marks a persisted credential as active before the
	// server has confirmed it.
	CredentialRestored struct{ Token string }
	AuthRequested      struct{}
	AuthSucceeded      struct {
		Token string
		User  *models.User
	}
	AuthFailed       struct{ Message string }
	Registered       struct{}
	RegisterFailed   struct{ Message string }
	UserLoaded       struct{ User *models.User }
	LoggedOut        struct{}
	AuthErrorCleared struct{}
)

// Task list transitions.
type (
	TasksRequested      struct{}
	TasksLoaded         struct{ Items []models.Task }
	TasksFailed         struct{ Message string }
	TaskErrorCleared    struct{}
	PriorityFilterSet   struct{ Priority *models.Priority }
	CompletionFilterSet struct{ Completion *bool }
	SortOrderSet        struct{ Order SortOrder }
	SearchTermSet       struct{ Term string }
	FiltersReset        struct{}
)

// UI transitions.
type (
	CreateModalOpened    struct{}
	EditModalOpened      struct{ Task models.Task }
	CreateModalClosed    struct{}
	EditModalClosed      struct{}
	ModalsClosed         struct{}
	FormSet              struct{ Form Form }
	FormReset            struct{}
	SubmittingSet        struct{ Submitting bool }
	NotificationAdded    struct{ Notification Notification }
	NotificationRemoved  struct{ ID string }
	NotificationsCleared struct{}
)

func (CredentialRestored) isAction() {}
func (AuthRequested) isAction()      {}
func (AuthSucceeded) isAction()      {}
func (AuthFailed) isAction()         {}
func (Registered) isAction()         {}
func (RegisterFailed) isAction()     {}
func (UserLoaded) isAction()         {}
func (LoggedOut) isAction()          {}
func (AuthErrorCleared) isAction()   {}

func (TasksRequested) isAction()      {}
func (TasksLoaded) isAction()         {}
func (TasksFailed) isAction()         {}
func (TaskErrorCleared) isAction()    {}
func (PriorityFilterSet) isAction()   {}
func (CompletionFilterSet) isAction() {}
func (SortOrderSet) isAction()        {}
func (SearchTermSet) isAction()       {}
func (FiltersReset) isAction()        {}

func (CreateModalOpened) isAction()    {}
func (EditModalOpened) isAction()      {}
func (CreateModalClosed) isAction()    {}
func (EditModalClosed) isAction()      {}
func (ModalsClosed) isAction()         {}
func (FormSet) isAction()              {}
func (FormReset) isAction()            {}
func (SubmittingSet) isAction()        {}
func (NotificationAdded) isAction()    {}
func (NotificationRemoved) isAction()  {}
func (NotificationsCleared) isAction() {}

// Reduce returns the state that follows s after a. It never modifies s or
// any slice reachable from it.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case CredentialRestored:
		s.Auth.Token = a.Token
		s.Auth.IsAuthenticated = a.Token != ""
		if s.Auth.IsAuthenticated {
			s.Route = RouteDashboard
		}
	case AuthRequested:
		s.Auth.Loading = true
		s.Auth.Error = ""
	case AuthSucceeded:
		s.Auth = AuthState{Token: a.Token, User: a.User, IsAuthenticated: true}
		s.Route = RouteDashboard
	case AuthFailed:
		s.Auth = AuthState{Error: a.Message}
		s.Route = RouteLogin
	case Registered:
		s.Auth.Loading = false
		s.Auth.Error = ""
		s.Route = RouteLogin
	case RegisterFailed:
		s.Auth.Loading = false
		s.Auth.Error = a.Message
	case UserLoaded:
		s.Auth.User = a.User
	case LoggedOut:
		s.Auth = AuthState{}
		s.Tasks.Items = nil
		s.Tasks.Loading = false
		s.Tasks.Error = ""
		s.UI = closeModals(s.UI)
		s.UI.IsSubmitting = false
		s.Route = RouteLogin
	case AuthErrorCleared:
		s.Auth.Error = ""

	case TasksRequested:
		s.Tasks.Loading = true
		s.Tasks.Error = ""
	case TasksLoaded:
		s.Tasks.Items = slices.Clone(a.Items)
		s.Tasks.Loading = false
		s.Tasks.Error = ""
	case TasksFailed:
		s.Tasks.Loading = false
		s.Tasks.Error = a.Message
	case TaskErrorCleared:
		s.Tasks.Error = ""
	case PriorityFilterSet:
		s.Tasks.Filters.Priority = a.Priority
	case CompletionFilterSet:
		s.Tasks.Filters.Completion = a.Completion
	case SortOrderSet:
		if a.Order == SortAsc || a.Order == SortDesc {
			s.Tasks.SortOrder = a.Order
		}
	case SearchTermSet:
		s.Tasks.SearchTerm = a.Term
	case FiltersReset:
		s.Tasks.Filters = Filters{}
		s.Tasks.SortOrder = SortAsc
		s.Tasks.SearchTerm = ""

	case CreateModalOpened:
		s.UI.Modals.CreateTask = true
		s.UI.Form = EmptyForm()
	case EditModalOpened:
		task := a.Task
		s.UI.Modals.EditTask = true
		s.UI.CurrentTask = &task
		s.UI.Form = Form{
			Title:       task.Title,
			Description: task.Description,
			DueDate:     task.DueDate.String(),
			Priority:    task.Priority,
		}
	case CreateModalClosed:
		s.UI.Modals.CreateTask = false
		s.UI.Form = EmptyForm()
	case EditModalClosed:
		s.UI.Modals.EditTask = false
		s.UI.CurrentTask = nil
		s.UI.Form = EmptyForm()
	case ModalsClosed:
		s.UI = closeModals(s.UI)
	case FormSet:
		s.UI.Form = a.Form
	case FormReset:
		s.UI.Form = EmptyForm()
	case SubmittingSet:
		s.UI.IsSubmitting = a.Submitting
	case NotificationAdded:
		s.UI.Notifications = append(slices.Clip(s.UI.Notifications), a.Notification.withDefaults())
	case NotificationRemoved:
		s.UI.Notifications = filterNotifications(s.UI.Notifications, func(n Notification) bool {
			return n.ID != a.ID
		})
	case NotificationsCleared:
		s.UI.Notifications = nil
	}
	return s
}

func closeModals(ui UIState) UIState {
	ui.Modals = Modals{}
	ui.CurrentTask = nil
	ui.Form = EmptyForm()
	return ui
}
