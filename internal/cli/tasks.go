package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"taskmanager/internal/model"
	"taskmanager/internal/view"

	"github.com/spf13/cobra"
)

func newTasksCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List, create and delete tasks of the logged in user",
	}
	cmd.AddCommand(
		newTasksListCommand(opts),
		newTasksAddCommand(opts),
		newTasksDeleteCommand(opts),
	)
	return cmd
}

// mountView 创建视图并加载任务列表；会话失效时返回 errNotLoggedIn
func mountView(ctx context.Context, a *app) (*view.View, error) {
	nav := &navigator{logger: a.logger}
	v := a.newView(nav)

	if v.Mount(ctx) == view.OutcomeRedirect || nav.navigated() {
		return nil, errNotLoggedIn
	}
	if snap := v.Snapshot(); snap.LoadFailed {
		return nil, errors.New(snap.Error)
	}
	return v, nil
}

func newTasksListCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show all tasks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, out io.Writer) error {
				v, err := mountView(ctx, a)
				if err != nil {
					return err
				}
				return view.RenderText(out, v.Snapshot())
			})
		},
	}
}

type addOptions struct {
	title       string
	description string
	priority    string
	status      string
	deadline    string
}

func newTasksAddCommand(opts *rootOptions) *cobra.Command {
	draft := model.NewDraft()
	add := &addOptions{}

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a new task",
		Long:  "Create a new task. Title, description, priority, status and deadline (YYYY-MM-DD) are all required.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, out io.Writer) error {
				v, err := mountView(ctx, a)
				if err != nil {
					return err
				}

				v.OpenForm()
				v.SetDraftField(model.FieldTitle, add.title)
				v.SetDraftField(model.FieldDescription, add.description)
				v.SetDraftField(model.FieldPriority, add.priority)
				v.SetDraftField(model.FieldStatus, add.status)
				v.SetDraftField(model.FieldDeadline, add.deadline)

				if v.CreateTask(ctx) != view.OutcomeSuccess {
					return errors.New(v.Snapshot().Error)
				}

				fmt.Fprintln(out, "Task created!")
				return view.RenderText(out, v.Snapshot())
			})
		},
	}

	cmd.Flags().StringVarP(&add.title, "title", "t", "", "Task title (required)")
	cmd.Flags().StringVarP(&add.description, "description", "d", "", "Task description (required)")
	cmd.Flags().StringVarP(&add.priority, "priority", "p", string(draft.Priority), "Task priority: low, medium or high")
	cmd.Flags().StringVarP(&add.status, "status", "s", string(draft.Status), "Task status: yet-to-start, in-progress, completed or hold")
	cmd.Flags().StringVar(&add.deadline, "deadline", "", "Task deadline as YYYY-MM-DD (required)")
	return cmd
}

func newTasksDeleteCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a task by id",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app, out io.Writer) error {
				v, err := mountView(ctx, a)
				if err != nil {
					return err
				}

				id := model.TaskID(args[0])
				if v.DeleteTask(ctx, id) != view.OutcomeSuccess {
					return errors.New(v.Snapshot().Error)
				}

				fmt.Fprintf(out, "Task %s deleted!\n", id)
				return view.RenderText(out, v.Snapshot())
			})
		},
	}
}
