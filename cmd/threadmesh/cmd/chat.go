package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/hupe1980/threadmesh"
	"github.com/hupe1980/threadmesh/core"
	"github.com/hupe1980/threadmesh/reconcile"
)

var (
	chatThreadID    string
	chatContextType string
	chatTaskType    string
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a message, or start an interactive session without one",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatThreadID, "thread", "t", "", "Thread id (a new thread is created when empty)")
	chatCmd.Flags().StringVar(&chatContextType, "context", "", "Override the context type for this turn")
	chatCmd.Flags().StringVar(&chatTaskType, "task", "", "Override the task type for this turn")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	id := chatThreadID
	if id == "" {
		id, err = a.svc.CreateThread(ctx, chatContextType, chatTaskType)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, color.HiBlackString("thread %s", id))
	}
	ov := reconcile.Overrides{ContextType: chatContextType, TaskType: chatTaskType}

	if len(args) > 0 {
		return turn(ctx, a.svc, out, id, strings.Join(args, " "), ov)
	}

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, color.BlueString("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		text := strings.TrimSpace(scanner.Text())
		switch text {
		case "":
			continue
		case "/exit", "/quit":
			return nil
		}
		if err := turn(ctx, a.svc, out, id, text, ov); err != nil {
			fmt.Fprintln(out, color.RedString("error: %v", err))
		}
	}
}

// turn streams one turn to out. Response events replace the buffer, so only
// the new suffix is printed while content keeps growing.
func turn(ctx context.Context, svc *threadmesh.Service, out io.Writer, id, text string, ov reconcile.Overrides) error {
	events, err := svc.Chat(ctx, id, text, ov)
	if err != nil {
		return err
	}

	var shown string
	for ev := range events {
		switch ev.Type {
		case core.EventStatus:
			fmt.Fprintln(out, color.YellowString("… %s", ev.Content))
		case core.EventToolOutput:
			fmt.Fprintln(out, color.HiBlackString("[tool] %s", firstLine(ev.Content)))
		case core.EventError:
			if shown != "" {
				fmt.Fprintln(out)
			}
			return fmt.Errorf("%s", ev.Content)
		case core.EventResponse:
			if ev.IsFinal() {
				if shown != "" {
					fmt.Fprintln(out)
				}
				continue
			}
			if strings.HasPrefix(ev.Content, shown) && shown != "" {
				fmt.Fprint(out, ev.Content[len(shown):])
			} else {
				if shown != "" {
					fmt.Fprintln(out)
				}
				fmt.Fprint(out, color.GreenString("bot> "), ev.Content)
			}
			shown = ev.Content
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " …"
	}
	return s
}
