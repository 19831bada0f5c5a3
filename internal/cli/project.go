package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/shaiso/Novoflow/internal/domain"
	"github.com/shaiso/Novoflow/internal/repo"
)

// NewProjectCmd создаёт группу команд для управления projects.
func NewProjectCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project",
		Short: "Manage projects",
	}

	cmd.AddCommand(
		newProjectListCmd(appFn, outputFn),
		newProjectShowCmd(appFn, outputFn),
		newProjectDeleteCmd(appFn, outputFn),
	)

	return cmd
}

func newProjectListCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := repo.ProjectFilter{Status: domain.ParseStatus(status), Limit: limit}
			if status != "" && !filter.Status.IsValid() {
				return fmt.Errorf("invalid status %q", status)
			}

			a, err := appFn(cmd.Context())
			if err != nil {
				return err
			}

			projects, err := a.Stores.Projects.List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "STATUS", "STEP", "CREATED"}
			rows := make([][]string, len(projects))
			for i, p := range projects {
				step, _ := p.Parameters[domain.ParamStep].(string)
				rows[i] = []string{
					p.ID.String(),
					p.Name,
					p.Status.String(),
					orDash(step),
					formatTime(p.CreatedAt),
				}
			}

			outputFn().Print(headers, rows, projects)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (pending, running, success, failed)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newProjectShowCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "show PROJECT_ID",
		Short: "Show project with its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id: %w", err)
			}

			a, err := appFn(cmd.Context())
			if err != nil {
				return err
			}

			project, err := a.Stores.Projects.GetByID(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("project %s: %w", id, err)
			}
			tasks, err := a.Stores.Tasks.ListByProject(cmd.Context(), id)
			if err != nil {
				return err
			}

			out := outputFn()
			if out.JSONMode() {
				out.JSON(struct {
					*domain.Project
					Tasks []domain.Task `json:"tasks"`
				}{project, tasks})
				return nil
			}

			out.Table([]string{"FIELD", "VALUE"}, [][]string{
				{"ID", project.ID.String()},
				{"NAME", project.Name},
				{"STATUS", project.Status.String()},
				{"CREATED", formatTime(project.CreatedAt)},
				{"UPDATED", formatTime(project.UpdatedAt)},
			})
			fmt.Fprintln(out.w)
			printTasks(out, tasks, tasks)
			return nil
		},
	}
}

func newProjectDeleteCmd(appFn AppFunc, outputFn OutputFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "delete PROJECT_ID",
		Short: "Delete a project and all its tasks",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id: %w", err)
			}

			a, err := appFn(cmd.Context())
			if err != nil {
				return err
			}

			if err := a.Stores.Projects.Delete(cmd.Context(), id); err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Project deleted: %s", id))
			return nil
		},
	}
}
