package tui

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// Terminal asks questions on a terminal. When the input is a TTY each
// question runs as a bubbletea program; otherwise answers are read line by
// line so piped input and tests work.
type Terminal struct {
	in          io.Reader
	out         io.Writer
	interactive bool
	lines       *bufio.Reader
}

// NewTerminal returns a Terminal on the given streams.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	interactive := false
	if f, ok := in.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Terminal{in: in, out: out, interactive: interactive, lines: bufio.NewReader(in)}
}

// Confirm shows the plan and reports whether the user typed "yes". Anything
// else, including cancelling the prompt, is a refusal.
func (t *Terminal) Confirm(ctx context.Context, plan Plan) (bool, error) {
	answer, cancelled, err := t.ask(ctx, RenderPlan(plan), "Type yes to start generating.", "Anything else exits without generating.")
	if err != nil || cancelled {
		return false, err
	}
	return strings.EqualFold(answer, "yes"), nil
}

// Choose asks question and returns the raw answer. Validation against options
// is left to the caller.
func (t *Terminal) Choose(ctx context.Context, question string, options []string) (string, error) {
	hint := "Options: " + strings.Join(options, " / ")
	answer, _, err := t.ask(ctx, "", question, hint)
	if err != nil {
		return "", err
	}
	return strings.ToLower(answer), nil
}

func (t *Terminal) ask(ctx context.Context, header, question, hint string) (string, bool, error) {
	if t.interactive {
		program := tea.NewProgram(NewPrompt(header, question, hint),
			tea.WithInput(t.in),
			tea.WithOutput(t.out),
			tea.WithContext(ctx),
		)
		final, err := program.Run()
		if err != nil {
			return "", false, fmt.Errorf("tui: prompt: %w", err)
		}
		m := final.(PromptModel)
		return m.Answer(), m.Cancelled(), nil
	}

	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	if header != "" {
		fmt.Fprintln(t.out, header)
	}
	fmt.Fprintln(t.out, question)
	if hint != "" {
		fmt.Fprintln(t.out, hintStyle.Render(hint))
	}
	fmt.Fprint(t.out, "> ")
	line, err := t.lines.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, fmt.Errorf("tui: read answer: %w", err)
	}
	if errors.Is(err, io.EOF) && line == "" {
		return "", true, nil
	}
	return strings.TrimSpace(line), false, nil
}
