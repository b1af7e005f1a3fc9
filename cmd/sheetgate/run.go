package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sheetgate/sheetgate/internal/engine"
	"github.com/sheetgate/sheetgate/internal/model"
	"github.com/sheetgate/sheetgate/internal/store"
	"github.com/spf13/cobra"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage gated runs",
	}
	cmd.AddCommand(runNewCmd())
	cmd.AddCommand(runTurnCmd())
	cmd.AddCommand(runUserCmd())
	cmd.AddCommand(runShowCmd())
	cmd.AddCommand(runStopCmd())
	cmd.AddCommand(runListCmd())
	return cmd
}

func runNewCmd() *cobra.Command {
	var userID, taskID string
	cmd := &cobra.Command{
		Use:          "new",
		Short:        "Create a new run for a task",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, st, closeFn, err := setup()
			if err != nil {
				return err
			}
			defer closeFn()

			run, err := eng.NewRun(userID, taskID)
			if err != nil {
				return err
			}
			if err := st.CreateRun(cmd.Context(), run); err != nil {
				return err
			}
			fmt.Println(run.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "owner id")
	cmd.Flags().StringVar(&taskID, "task", "", "task id")
	_ = cmd.MarkFlagRequired("task")
	return cmd
}

func runTurnCmd() *cobra.Command {
	var inputFile string
	cmd := &cobra.Command{
		Use:          "turn <run-id>",
		Short:        "Process one model output against a run",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, st, closeFn, err := setup()
			if err != nil {
				return err
			}
			defer closeFn()

			text, err := readInput(inputFile)
			if err != nil {
				return err
			}

			run, status, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if status != store.StatusRunning {
				return fmt.Errorf("run %s is %s; no further turns accepted", run.ID, status)
			}

			result := eng.HandleModelOutput(run, text)
			newStatus, event := classifyTurn(run, result)
			if err := st.SaveRun(cmd.Context(), run, newStatus, &event); err != nil {
				return err
			}

			if result.AllowFinish {
				fmt.Println("DEPLOYED")
			}
			if result.UserMessage != "" {
				fmt.Println(result.UserMessage)
			}
			if result.SystemMessage != "" {
				fmt.Println(result.SystemMessage)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&inputFile, "file", "f", "", "read the model output from this file instead of stdin")
	return cmd
}

func runUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "user <run-id> <text>...",
		Short:        "Record a user message against a run",
		Args:         cobra.MinimumNArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, st, closeFn, err := setup()
			if err != nil {
				return err
			}
			defer closeFn()

			run, status, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if status != store.StatusRunning {
				return fmt.Errorf("run %s is %s; no further turns accepted", run.ID, status)
			}
			eng.HandleUserMessage(run, strings.Join(args[1:], " "))
			return st.SaveRun(cmd.Context(), run, status, &store.Event{Type: "turn_recorded", Message: "user message"})
		},
	}
	return cmd
}

func runShowCmd() *cobra.Command {
	var withHistory bool
	cmd := &cobra.Command{
		Use:          "show <run-id>",
		Short:        "Show a run's stage, checklist, and history",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, st, closeFn, err := setup()
			if err != nil {
				return err
			}
			defer closeFn()

			run, status, err := st.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(eng.RunSummary(run))
			fmt.Printf("status: %s\n", status)
			if withHistory {
				for _, msg := range run.History {
					fmt.Printf("--- %s %s\n%s\n", msg.At.Format("2006-01-02 15:04:05"), msg.Role, msg.Content)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withHistory, "history", false, "include the full turn history")
	return cmd
}

func runStopCmd() *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:          "stop <run-id>",
		Short:        "Stop an abandoned run",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, closeFn, err := setup()
			if err != nil {
				return err
			}
			defer closeFn()
			return st.StopRun(cmd.Context(), args[0], reason)
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "stopped by operator", "why the run is being stopped")
	return cmd
}

func runListCmd() *cobra.Command {
	return &cobra.Command{
		Use:          "list",
		Short:        "List stored runs",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, st, closeFn, err := setup()
			if err != nil {
				return err
			}
			defer closeFn()

			records, err := st.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			for _, rec := range records {
				fmt.Printf("%s  task=%s  stage=%s  iter=%d/%d  status=%s  updated=%s\n",
					rec.RunID, rec.TaskID, rec.Stage, rec.Iteration, rec.MaxIter, rec.Status, rec.UpdatedAt)
			}
			return nil
		},
	}
}

func setup() (*engine.Engine, *store.Store, func(), error) {
	workDir, err := workingDir()
	if err != nil {
		return nil, nil, func() {}, err
	}
	cfg, err := loadConfig(workDir)
	if err != nil {
		return nil, nil, func() {}, err
	}
	storeDB, closeFn, err := openStore(workDir, cfg)
	if err != nil {
		return nil, nil, func() {}, err
	}
	return engine.New(cfg), store.New(storeDB), closeFn, nil
}

func readInput(path string) (string, error) {
	if path == "" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// classifyTurn maps a turn result onto the stored run status and event.
func classifyTurn(run *model.Run, result engine.TurnResult) (store.RunStatus, store.Event) {
	switch {
	case result.AllowFinish:
		return store.StatusDeployed, store.Event{Type: "gate_passed", Message: "run deployed"}
	case result.UserMessage != "" && run.BudgetExhausted():
		return store.StatusStopped, store.Event{Type: "budget_exhausted", Message: "iteration ceiling reached"}
	default:
		return store.StatusRunning, store.Event{Type: "turn_recorded", Message: "completion rejected"}
	}
}
