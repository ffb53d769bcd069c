package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/run-bigpig/watchdog/internal/agent"
)

var (
	chatUser    string
	showResults bool
)

var (
	toolColor   = color.New(color.FgCyan)
	resultColor = color.New(color.FgHiBlack)
	errorColor  = color.New(color.FgRed)
	answerColor = color.New(color.FgGreen, color.Bold)
	promptColor = color.New(color.FgYellow, color.Bold)
)

// chatCmd interactive session
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive session for a user",
	Long: `Each line you type is one turn. Tool calls are printed as they happen,
tagged with the provider they come from ([LOCAL] or [WEB]).

Type "exit" or press Ctrl-D to leave.`,
	RunE: runChat,
}

// askCmd single turn
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question and print the answer",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAsk,
}

func init() {
	for _, c := range []*cobra.Command{chatCmd, askCmd} {
		c.Flags().StringVarP(&chatUser, "user", "u", "", "portfolio owner")
		c.Flags().BoolVar(&showResults, "show-results", false, "print full tool results")
		_ = c.MarkFlagRequired("user")
	}
}

func runChat(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := requireUser(ctx, a.store, chatUser); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Portfolio watchdog for %s. Type \"exit\" to quit.\n", chatUser)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		promptColor.Fprint(out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		if err := ask(ctx, a.session, line, out); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			errorColor.Fprintf(out, "Error: %v\n", err)
		}
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := requireUser(ctx, a.store, chatUser); err != nil {
		return err
	}
	return ask(ctx, a.session, strings.Join(args, " "), cmd.OutOrStdout())
}

func ask(ctx context.Context, session *agent.Session, input string, out io.Writer) error {
	result, err := session.Ask(ctx, chatUser, input, printProgress(out))
	if err != nil {
		return err
	}
	if !result.Answered {
		errorColor.Fprintf(out, "(no final answer after %d steps)\n", result.Steps)
	}
	if result.FinalAnswer != "" {
		answerColor.Fprintln(out, result.FinalAnswer)
	}
	return nil
}

// printProgress renders tool activity as it happens
func printProgress(out io.Writer) agent.ProgressCallback {
	if out == nil {
		out = os.Stdout
	}
	return func(ev agent.ProgressEvent) {
		switch ev.Type {
		case agent.EventToolCall:
			toolColor.Fprintf(out, "[%s] %s %s\n", ev.Provider, ev.Tool, string(ev.Arguments))
		case agent.EventToolResult:
			switch {
			case ev.IsError:
				errorColor.Fprintf(out, "  %s\n", ev.Content)
			case showResults:
				resultColor.Fprintf(out, "  %s\n", ev.Content)
			default:
				resultColor.Fprintf(out, "  %s\n", firstLine(ev.Content))
			}
		}
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}
