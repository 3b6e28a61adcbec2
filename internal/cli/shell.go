package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const historyFileName = "history"

// lineReader is the part of *liner.State the shell loop uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "shell",
		Aliases: []string{"repl"},
		Short:   "Interactive prompt running library commands against one open store",
		Args:    exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.inShell {
				return usageErrorf("already in the shell")
			}
			if _, err := a.manager(cmd.Context()); err != nil {
				return err
			}

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)
			line.SetCompleter(completer(cmd.Root()))

			history := filepath.Join(a.configDir, historyFileName)
			if f, err := os.Open(history); err == nil {
				_, _ = line.ReadHistory(f)
				f.Close()
			}
			defer saveHistory(line, history)

			return a.runShell(cmd.Context(), line)
		},
	}
}

// runShell reads lines until exit or EOF and runs each as a command line of
// its own. Errors are printed and the loop goes on.
func (a *app) runShell(ctx context.Context, in lineReader) error {
	a.inShell = true
	defer func() { a.inShell = false }()

	fmt.Fprintln(a.stdout, "Welcome to your home library!")
	fmt.Fprintln(a.stdout, "Commands are the same as on the command line, without the leading 'library':")
	fmt.Fprintln(a.stdout, "  Books:     book add|list|show|update|status|remove")
	fmt.Fprintln(a.stdout, "  Borrowers: borrower add|list|show|update|status|delete")
	fmt.Fprintln(a.stdout, "  Loans:     loan create|return|return-book|show")
	fmt.Fprintln(a.stdout, "  Reports:   report dashboard|active|overdue|history|top-books|top-borrowers")
	fmt.Fprintln(a.stdout, "  System:    help, exit")

	for {
		text, err := in.Prompt("library> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(a.stdout, "\nGoodbye!")
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		in.AppendHistory(text)

		args, err := splitArgs(text)
		if err != nil {
			a.reportError(usageError{err})
			continue
		}
		switch args[0] {
		case "exit", "quit":
			fmt.Fprintln(a.stdout, "Goodbye!")
			return nil
		case "help", "?":
			if len(args) == 1 {
				args = []string{"--help"}
			}
		}

		root := newRootCmd(a)
		root.SetArgs(args)
		if err := root.ExecuteContext(ctx); err != nil {
			a.reportError(err)
		}
	}
}

func saveHistory(line *liner.State, path string) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return
	}
	f, err := os.Create(path)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}

// completer completes the first two words of a line from the command tree.
func completer(root *cobra.Command) liner.Completer {
	top := map[string][]string{}
	for _, c := range root.Commands() {
		if c.Hidden {
			continue
		}
		var subs []string
		for _, s := range c.Commands() {
			subs = append(subs, s.Name())
		}
		sort.Strings(subs)
		top[c.Name()] = subs
	}
	top["exit"] = nil
	top["help"] = nil

	return func(line string) []string {
		fields := strings.Fields(line)
		trailing := strings.HasSuffix(line, " ")
		var out []string
		switch {
		case len(fields) == 0 || (len(fields) == 1 && !trailing):
			prefix := ""
			if len(fields) == 1 {
				prefix = fields[0]
			}
			for name := range top {
				if strings.HasPrefix(name, prefix) {
					out = append(out, name)
				}
			}
		case (len(fields) == 1 && trailing) || (len(fields) == 2 && !trailing):
			prefix := ""
			if len(fields) == 2 {
				prefix = fields[1]
			}
			for _, sub := range top[fields[0]] {
				if strings.HasPrefix(sub, prefix) {
					out = append(out, fields[0]+" "+sub)
				}
			}
		}
		sort.Strings(out)
		return out
	}
}

// splitArgs splits a shell line into words. Single and double quotes group
// words and a backslash escapes the next character outside single quotes.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inWord  bool
		quote   rune
		escaped bool
	)
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\' && quote != '\'':
			escaped = true
			inWord = true
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '"' || r == '\'':
			quote = r
			inWord = true
		case r == ' ' || r == '\t':
			if inWord {
				args = append(args, cur.String())
				cur.Reset()
				inWord = false
			}
		default:
			cur.WriteRune(r)
			inWord = true
		}
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated %c quote", quote)
	}
	if escaped {
		return nil, errors.New("trailing backslash")
	}
	if inWord {
		args = append(args, cur.String())
	}
	return args, nil
}
