// Command taskctl is a command line front end for the task manager API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/just-being-aryan/task-manager-app/internal/client"
	"github.com/just-being-aryan/task-manager-app/internal/domain/models"
	"github.com/just-being-aryan/task-manager-app/pkg/logger"
)

const defaultAPIURL = "http://localhost:8080/api"

const usage = `usage: taskctl [-api URL] [-token-file PATH] <command> [flags]

commands:
  register  -email E -password P [-name N]
  login     -email E -password P
  logout
  list      [-priority Low|Medium|High] [-status open|done] [-sort asc|desc] [-search TEXT]
  add       -title T -due YYYY-MM-DD [-description D] [-priority P]
  edit      ID [-title T] [-due YYYY-MM-DD] [-description D] [-priority P]
  toggle    ID
  rm        ID
`

type app struct {
	client *client.Client
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	logger.Init(logger.Options{Level: os.Getenv("TASKCTL_LOG_LEVEL"), Pretty: true, Output: stderr})

	global := flag.NewFlagSet("taskctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	apiURL := global.String("api", envOr("TASKCTL_API", defaultAPIURL), "base URL of the API")
	tokenFile := global.String("token-file", "", "credential file (default under the user config dir)")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	path := *tokenFile
	if path == "" {
		var err error
		if path, err = client.DefaultTokenPath(); err != nil {
			fmt.Fprintln(stderr, err)
			return 1
		}
	}

	a := &app{
		client: client.New(client.NewAPI(*apiURL), client.NewFileTokenStore(path)),
		stdout: stdout,
		stderr: stderr,
	}

	cmd, rest := global.Arg(0), global.Args()[1:]
	err := a.dispatch(ctx, cmd, rest)
	a.flushNotifications()
	if err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(stderr, usage)
			return 2
		}
		return 1
	}
	return 0
}

var errUsage = errors.New("usage")

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "register":
		return a.register(ctx, args)
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "list", "ls":
		return a.list(ctx, args)
	case "add":
		return a.add(ctx, args)
	case "edit":
		return a.edit(ctx, args)
	case "toggle":
		return a.toggle(ctx, args)
	case "rm", "delete":
		return a.remove(ctx, args)
	}
	fmt.Fprintf(a.stderr, "unknown command %q\n", cmd)
	return errUsage
}

func (a *app) newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) register(ctx context.Context, args []string) error {
	fs := a.newFlagSet("register")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	name := fs.String("name", "", "display name")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return a.client.Register(ctx, models.RegisterRequest{Name: *name, Email: *email, Password: *password})
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.newFlagSet("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return a.client.Login(ctx, *email, *password)
}

func (a *app) logout(ctx context.Context) error {
	if err := a.client.Restore(ctx); err != nil && !client.IsUnauthorized(err) {
		return err
	}
	return a.client.Logout(ctx)
}

// session restores the stored credential and loads the task list.
func (a *app) session(ctx context.Context) error {
	if err := a.client.Restore(ctx); err != nil {
		return err
	}
	if !a.client.State().Auth.IsAuthenticated {
		fmt.Fprintln(a.stderr, "not logged in, run: taskctl login -email E -password P")
		return errors.New("not logged in")
	}
	return nil
}

func (a *app) list(ctx context.Context, args []string) error {
	fs := a.newFlagSet("list")
	priority := fs.String("priority", "", "only this priority")
	status := fs.String("status", "", "open or done")
	sortOrder := fs.String("sort", string(client.SortAsc), "due date order: asc or desc")
	search := fs.String("search", "", "text in title or description")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if *priority != "" {
		p, err := models.ParsePriority(*priority)
		if err != nil {
			fmt.Fprintln(a.stderr, err)
			return errUsage
		}
		a.client.SetPriorityFilter(&p)
	}
	switch strings.ToLower(*status) {
	case "":
	case "open":
		open := false
		a.client.SetCompletionFilter(&open)
	case "done", "complete", "completed":
		done := true
		a.client.SetCompletionFilter(&done)
	default:
		fmt.Fprintf(a.stderr, "unknown status %q\n", *status)
		return errUsage
	}
	a.client.SetSortOrder(client.SortOrder(strings.ToLower(*sortOrder)))
	a.client.SetSearchTerm(*search)

	if err := a.session(ctx); err != nil {
		return err
	}
	a.printTasks(a.client.Visible())
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := a.newFlagSet("add")
	title := fs.String("title", "", "task title")
	description := fs.String("description", "", "task description")
	due := fs.String("due", "", "due date, YYYY-MM-DD")
	priority := fs.String("priority", string(models.PriorityMedium), "Low, Medium or High")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if err := a.session(ctx); err != nil {
		return err
	}
	return a.client.CreateTask(ctx, client.Draft{
		Title:       *title,
		Description: *description,
		DueDate:     *due,
		Priority:    models.Priority(*priority),
	})
}

func (a *app) edit(ctx context.Context, args []string) error {
	id, args, err := splitID(args)
	if err != nil {
		return err
	}
	fs := a.newFlagSet("edit")
	title := fs.String("title", "", "task title")
	description := fs.String("description", "", "task description")
	due := fs.String("due", "", "due date, YYYY-MM-DD")
	priority := fs.String("priority", "", "Low, Medium or High")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	if err := a.session(ctx); err != nil {
		return err
	}
	task, err := a.resolve(id)
	if err != nil {
		return err
	}

	a.client.OpenEditModal(task)
	form := a.client.State().UI.Form
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "title":
			form.Title = *title
		case "description":
			form.Description = *description
		case "due":
			form.DueDate = *due
		case "priority":
			form.Priority = models.Priority(*priority)
		}
	})
	a.client.SetForm(form)
	return a.client.SubmitForm(ctx)
}

func (a *app) toggle(ctx context.Context, args []string) error {
	id, _, err := splitID(args)
	if err != nil {
		return err
	}
	if err := a.session(ctx); err != nil {
		return err
	}
	task, err := a.resolve(id)
	if err != nil {
		return err
	}
	return a.client.ToggleComplete(ctx, task.ID)
}

func (a *app) remove(ctx context.Context, args []string) error {
	id, _, err := splitID(args)
	if err != nil {
		return err
	}
	if err := a.session(ctx); err != nil {
		return err
	}
	task, err := a.resolve(id)
	if err != nil {
		return err
	}
	return a.client.DeleteTask(ctx, task.ID)
}

func splitID(args []string) (string, []string, error) {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		return "", nil, errUsage
	}
	return args[0], args[1:], nil
}

// resolve finds the task whose id is or starts with id.
func (a *app) resolve(id string) (models.Task, error) {
	var found []models.Task
	for _, task := range a.client.State().Tasks.Items {
		if task.ID == id {
			return task, nil
		}
		if strings.HasPrefix(task.ID, id) {
			found = append(found, task)
		}
	}
	switch len(found) {
	case 0:
		fmt.Fprintf(a.stderr, "no task matches %q\n", id)
		return models.Task{}, fmt.Errorf("no task matches %q", id)
	case 1:
		return found[0], nil
	}
	fmt.Fprintf(a.stderr, "%q matches %d tasks\n", id, len(found))
	return models.Task{}, fmt.Errorf("ambiguous task id %q", id)
}

func (a *app) printTasks(list []models.Task) {
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDONE\tDUE\tPRIORITY\tTITLE\tDESCRIPTION")
	for _, task := range list {
		done := " "
		if task.IsComplete {
			done = "x"
		}
		fmt.Fprintf(w, "%s\t[%s]\t%s\t%s\t%s\t%s\n",
			shortID(task.ID), done, task.DueDate, task.Priority, task.Title, task.Description)
	}
	w.Flush()
}

func (a *app) flushNotifications() {
	for _, n := range a.client.State().UI.Notifications {
		fmt.Fprintf(a.stderr, "%s: %s\n", n.Kind, n.Message)
		a.client.Dismiss(n.ID)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
