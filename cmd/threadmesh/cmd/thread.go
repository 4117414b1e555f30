package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	newContextType string
	newTaskType    string
	threadID       string
)

var newCmd = &cobra.Command{
	Use:   "new",
	Short: "Create a thread and print its id",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		id, err := a.svc.CreateThread(cmd.Context(), newContextType, newTaskType)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Clear the conversation of a thread",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		existed, err := a.svc.Reset(cmd.Context(), threadID)
		if err != nil {
			return err
		}
		if existed {
			fmt.Fprintf(cmd.OutOrStdout(), "%s thread %s reset\n", color.GreenString("✓"), threadID)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s thread %s had no history, initialized empty\n", color.YellowString("•"), threadID)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the transcript of a thread",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := bootstrap(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		history, err := a.svc.History(cmd.Context(), threadID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(history) == 0 {
			fmt.Fprintln(out, color.HiBlackString("(empty)"))
			return nil
		}
		for _, m := range history {
			fmt.Fprintf(out, "%s %s\n", roleLabel(m.Role, m.Author), m.Content)
		}
		return nil
	},
}

func roleLabel(role, author string) string {
	label := role
	if author != "" && role == "user" {
		label = author
	}
	switch role {
	case "user":
		if author != "" {
			return color.MagentaString("[%s]", label)
		}
		return color.BlueString("[%s]", label)
	case "assistant":
		return color.GreenString("[%s]", label)
	case "tool":
		return color.HiBlackString("[%s]", label)
	default:
		return fmt.Sprintf("[%s]", label)
	}
}

func init() {
	newCmd.Flags().StringVar(&newContextType, "context", "", "Context type of the thread")
	newCmd.Flags().StringVar(&newTaskType, "task", "", "Task type of the thread")

	for _, c := range []*cobra.Command{resetCmd, historyCmd} {
		c.Flags().StringVarP(&threadID, "thread", "t", "", "Thread id")
		_ = c.MarkFlagRequired("thread")
	}
}
