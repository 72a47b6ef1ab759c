package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/avaropoint/devident/internal/literal"
)

func newLiteralCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "literal [PATH|-] [NAME]",
		Short: "Convert a PEM file into a C string-literal declaration",
		Long: `Convert a PEM file into a C string-literal declaration.

PATH "-" reads from standard input. When PATH is omitted you are prompted
for it; quotes left by drag-and-drop are removed. NAME defaults to root_ca.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := a.cfg.Literal.Name
			if len(args) == 2 {
				name = args[1]
			}

			var path string
			if len(args) > 0 {
				path = args[0]
			} else {
				p, err := promptPath(cmd.InOrStdin(), cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				path = p
			}

			var (
				lit *literal.SourceLiteral
				err error
			)
			if path == "-" {
				lit, err = literal.EmitReader(cmd.InOrStdin(), name)
			} else {
				lit, err = literal.EmitFile(path, name)
			}
			if err != nil {
				return err
			}

			a.logger.Debug("Literal emitted", zap.String("name", lit.Name), zap.Int("lines", len(lit.Lines)))
			_, err = lit.WriteTo(cmd.OutOrStdout())
			return err
		},
	}
}

// promptPath asks for a file path on out and reads one line from in.
func promptPath(in io.Reader, out io.Writer) (string, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "PEM file path: ",
		InterruptPrompt: "^C",
		Stdin:           io.NopCloser(in),
		Stdout:          out,
		Stderr:          out,
	})
	if err != nil {
		return "", fmt.Errorf("prompt: %w", err)
	}
	defer rl.Close() //nolint:errcheck

	line, err := rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
			return "", fmt.Errorf("%w: no file provided", literal.ErrNotFound)
		}
		return "", err
	}
	return literal.CleanPath(line), nil
}
