package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// NewTaskCmd создаёт группу команд для управления tasks.
func NewTaskCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage tasks",
	}

	cmd.AddCommand(
		newTaskListCmd(clientFn, outputFn),
		newTaskCreateCmd(clientFn, outputFn),
		newTaskStatusCmd(clientFn, outputFn),
		newTaskExecuteCmd(clientFn, outputFn),
		newTaskCancelCmd(clientFn, outputFn),
		newTaskStatsCmd(clientFn, outputFn),
	)

	return cmd
}

func newTaskListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			tasks, err := client.ListTasks(status)
			if err != nil {
				return err
			}

			out.Tasks(tasks)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING/RUNNING/COMPLETED/FAILED/CANCELLED)")

	return cmd
}

func newTaskCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var inputJSON, inputFile, priority string
	var execute bool

	cmd := &cobra.Command{
		Use:   "create TEMPLATE_ID",
		Short: "Create a task from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			input, err := parseInput(inputJSON, inputFile)
			if err != nil {
				return err
			}

			task, err := client.CreateTask(args[0], CreateTaskRequest{
				Input:    input,
				Priority: priority,
				Execute:  execute,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task created: %s", task.ID))
			out.Task(task)
			return nil
		},
	}

	cmd.Flags().StringVar(&inputJSON, "input", "", "Task input as inline JSON object")
	cmd.Flags().StringVar(&inputFile, "input-file", "", "Path to JSON file with task input")
	cmd.Flags().StringVar(&priority, "priority", "", "Task priority (LOW/NORMAL/HIGH)")
	cmd.Flags().BoolVar(&execute, "execute", false, "Start execution immediately")

	return cmd
}

func newTaskStatusCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "status ID",
		Short: "Show task status and step results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.GetTaskStatus(args[0])
			if err != nil {
				return err
			}

			out.TaskStatus(status)
			return nil
		},
	}
}

func newTaskExecuteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "execute ID",
		Short: "Start task execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.ExecuteTask(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task execution started: %s", args[0]))
			return nil
		},
	}
}

func newTaskCancelCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel ID",
		Short: "Cancel a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			status, err := client.CancelTask(args[0])
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task cancelled: %s", status.TaskID))
			return nil
		},
	}
}

func newTaskStatsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show aggregated task statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			stats, err := client.TaskStats()
			if err != nil {
				return err
			}

			out.JSON(stats)
			return nil
		},
	}
}

// parseInput собирает вход task из флагов --input / --input-file.
func parseInput(inputJSON, inputFile string) (map[string]any, error) {
	if inputJSON != "" && inputFile != "" {
		return nil, fmt.Errorf("--input and --input-file are mutually exclusive")
	}

	var data []byte
	switch {
	case inputJSON != "":
		data = []byte(inputJSON)
	case inputFile != "":
		b, err := os.ReadFile(inputFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read input file: %w", err)
		}
		data = b
	default:
		return nil, nil
	}

	var input map[string]any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("input is not a valid JSON object: %w", err)
	}
	return input, nil
}
