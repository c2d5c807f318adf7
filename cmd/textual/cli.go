package main

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/textual/internal/errors"
	"github.com/hpungsan/textual/internal/ops"
	"github.com/hpungsan/textual/internal/redaction"
)

// newCLIApp creates the CLI application with all commands.
func newCLIApp(env *ops.Env) *cli.App {
	app := &cli.App{
		Name:    "textual",
		Usage:   "Redact sensitive entities in text, CSV, conversations, markdown and transcripts",
		Version: Version,
		Commands: []*cli.Command{
			redactCmd(env),
			unredactCmd(env),
			csvCmd(env),
			conversationCmd(env),
			markdownCmd(env),
			transcriptCmd(env),
			historyCmd(env),
			purgeCmd(env),
		},
	}
	// Each --fragment value is one fragment, commas and all.
	app.DisableSliceFlagSeparator = true
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// settingsFlags are accepted by every redacting command.
func settingsFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "generator-default", Usage: "Treatment for unlisted entity types: Redaction|Synthesis|Off"},
		&cli.StringSliceFlag{Name: "synthesize", Usage: "Entity types to synthesize (repeatable)"},
		&cli.StringSliceFlag{Name: "off", Usage: "Entity types to leave as is (repeatable)"},
		&cli.StringSliceFlag{Name: "custom-entity", Usage: "Custom entity types to detect (repeatable)"},
		&cli.StringFlag{Name: "seed", Usage: "Random seed for synthesized values"},
		&cli.StringFlag{Name: "span-policy", Usage: "Replacement positions for grouped input: redacted|anchored"},
		&cli.IntFlag{Name: "retention-hours", Usage: "Ask the service to record the request (1-720)"},
	}
}

// settingsFromFlags builds per-run settings from settingsFlags.
func settingsFromFlags(c *cli.Context) (ops.Settings, error) {
	s := ops.Settings{
		GeneratorDefault: c.String("generator-default"),
		CustomEntities:   c.StringSlice("custom-entity"),
		NewSpanPolicy:    c.String("span-policy"),
		RetentionHours:   c.Int("retention-hours"),
	}

	for _, list := range []struct {
		flag  string
		state redaction.PiiState
	}{
		{"synthesize", redaction.Synthesis},
		{"off", redaction.Off},
	} {
		for _, label := range c.StringSlice(list.flag) {
			if s.GeneratorConfig == nil {
				s.GeneratorConfig = map[string]string{}
			}
			s.GeneratorConfig[strings.TrimSpace(label)] = string(list.state)
		}
	}

	if v := c.String("seed"); v != "" {
		seed, err := strconv.Atoi(v)
		if err != nil {
			return s, errors.NewInvalidRequest(fmt.Sprintf("invalid seed: %s", v))
		}
		s.RandomSeed = &seed
	}
	return s, nil
}

// redactCmd creates the redact command.
func redactCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "redact",
		Usage:     "Redact a text (argument or stdin) or a list of fragments",
		ArgsUsage: "[text]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: ops.FormatText, Usage: "text|json|xml|html"},
			&cli.StringSliceFlag{Name: "fragment", KeepSpace: true, Usage: "Fragment redacted together with the others (repeatable)"},
			&cli.BoolFlag{Name: "independent", Usage: "Redact fragments separately in one bulk request"},
			&cli.BoolFlag{Name: "describe", Aliases: []string{"d"}, Usage: "Print a readable summary instead of JSON"},
		}, settingsFlags()...),
		Action: func(c *cli.Context) error {
			settings, err := settingsFromFlags(c)
			if err != nil {
				return outputError(err)
			}
			input := ops.RedactTextInput{
				Format:      c.String("format"),
				Independent: c.Bool("independent"),
				Settings:    settings,
			}

			if fragments := c.StringSlice("fragment"); len(fragments) > 0 {
				input.Fragments = fragments
			} else {
				text, err := textArg(c)
				if err != nil {
					return outputError(err)
				}
				input.Text = text
			}

			output, err := ops.RedactText(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}

			if c.Bool("describe") {
				for i := range output.Results {
					fmt.Fprintln(os.Stdout, output.Results[i].Describe())
				}
				return nil
			}
			return outputJSON(output)
		},
	}
}

// unredactCmd creates the unredact command.
func unredactCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "unredact",
		Usage:     "Restore original values in a redacted text (argument or stdin)",
		ArgsUsage: "[text]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "seed", Usage: "Random seed used when the text was synthesized"},
		},
		Action: func(c *cli.Context) error {
			text, err := textArg(c)
			if err != nil {
				return outputError(err)
			}
			input := ops.UnredactInput{Text: text}
			if v := c.String("seed"); v != "" {
				seed, err := strconv.Atoi(v)
				if err != nil {
					return outputError(errors.NewInvalidRequest(fmt.Sprintf("invalid seed: %s", v)))
				}
				input.RandomSeed = &seed
			}

			output, err := ops.Unredact(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// csvCmd creates the csv command.
func csvCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "csv",
		Usage:     "Redact one text column of a CSV file (or stdin)",
		ArgsUsage: "[path]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "text-column", Aliases: []string{"c"}, Required: true, Usage: "Column holding the text"},
			&cli.StringFlag{Name: "group-by", Aliases: []string{"g"}, Usage: "Column whose equal values are redacted together"},
			&cli.StringFlag{Name: "order-by", Usage: "Integer column ordering rows inside a group"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write the redacted CSV here instead of stdout"},
			&cli.BoolFlag{Name: "no-header", Usage: "First row is data; columns are named 0, 1, ..."},
		}, settingsFlags()...),
		Action: func(c *cli.Context) error {
			settings, err := settingsFromFlags(c)
			if err != nil {
				return outputError(err)
			}
			path, content, err := pathOrStdin(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.RedactCSV(c.Context, env, ops.RedactCSVInput{
				Path:       path,
				Content:    content,
				OutputPath: c.String("output"),
				NoHeader:   c.Bool("no-header"),
				TextColumn: c.String("text-column"),
				GroupBy:    c.String("group-by"),
				OrderBy:    c.String("order-by"),
				Settings:   settings,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// conversationCmd creates the conversation command.
func conversationCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "conversation",
		Usage:     "Redact every message of a JSON conversation (file or stdin)",
		ArgsUsage: "[path]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "items-path", Value: ops.DefaultItemsPath, Usage: "Path to the message array"},
			&cli.StringFlag{Name: "text-path", Value: ops.DefaultTextPath, Usage: "Path to the text inside a message (. for string messages)"},
		}, settingsFlags()...),
		Action: func(c *cli.Context) error {
			settings, err := settingsFromFlags(c)
			if err != nil {
				return outputError(err)
			}
			path, content, err := pathOrStdin(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.RedactConversation(c.Context, env, ops.RedactConversationInput{
				Path:      path,
				Content:   content,
				ItemsPath: c.String("items-path"),
				TextPath:  c.String("text-path"),
				Settings:  settings,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// markdownCmd creates the markdown command.
func markdownCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "markdown",
		Usage:     "Redact the prose of a markdown document (file or stdin)",
		ArgsUsage: "[path]",
		Flags: append([]cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "Write the result here (.html renders HTML)"},
			&cli.BoolFlag{Name: "html", Usage: "Also return the result rendered as HTML"},
		}, settingsFlags()...),
		Action: func(c *cli.Context) error {
			settings, err := settingsFromFlags(c)
			if err != nil {
				return outputError(err)
			}
			path, content, err := pathOrStdin(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.RedactMarkdown(c.Context, env, ops.RedactMarkdownInput{
				Path:       path,
				Content:    content,
				OutputPath: c.String("output"),
				HTML:       c.Bool("html"),
				Settings:   settings,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// transcriptCmd creates the transcript command.
func transcriptCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "transcript",
		Usage:     "Redact a word-timed transcription and list the audio intervals to bleep",
		ArgsUsage: "[path]",
		Flags: append([]cli.Flag{
			&cli.Float64Flag{Name: "before", Usage: "Seconds to widen each interval before"},
			&cli.Float64Flag{Name: "after", Usage: "Seconds to widen each interval after"},
		}, settingsFlags()...),
		Action: func(c *cli.Context) error {
			settings, err := settingsFromFlags(c)
			if err != nil {
				return outputError(err)
			}
			path, content, err := pathOrStdin(c)
			if err != nil {
				return outputError(err)
			}

			output, err := ops.RedactTranscript(c.Context, env, ops.RedactTranscriptInput{
				Path:          path,
				Content:       content,
				BeforeSeconds: c.Float64("before"),
				AfterSeconds:  c.Float64("after"),
				Settings:      settings,
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "List journaled runs, newest first",
		ArgsUsage: "[id]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Usage: "Filter by kind: " + strings.Join(ops.Kinds, "|")},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Max runs to return"},
			&cli.IntFlag{Name: "offset", Usage: "Runs to skip"},
		},
		Action: func(c *cli.Context) error {
			input := ops.HistoryInput{
				Kind:   c.String("kind"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			}
			if c.NArg() > 0 {
				input.ID = c.Args().First()
			}

			output, err := ops.History(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete journaled runs",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge runs recorded more than N days ago (e.g., 7d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeHistoryInput{}

			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.PurgeHistory(c.Context, env, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var tErr *errors.TextualError
	if stderrors.As(err, &tErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", tErr.Code, tErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// textArg returns the first argument, or stdin when there is none.
func textArg(c *cli.Context) (string, error) {
	if c.NArg() > 0 {
		return strings.Join(c.Args().Slice(), " "), nil
	}
	if !stdinHasData() {
		return "", errors.NewInvalidRequest("text must be given as an argument or piped via stdin")
	}
	text, err := readStdin(ops.MaxInputBytes)
	if err != nil {
		return "", errors.NewInvalidRequest(err.Error())
	}
	return text, nil
}

// pathOrStdin returns the path argument, or stdin content when there is none.
func pathOrStdin(c *cli.Context) (path, content string, err error) {
	if c.NArg() > 0 {
		return c.Args().First(), "", nil
	}
	if !stdinHasData() {
		return "", "", errors.NewInvalidRequest("give a file path or pipe content via stdin")
	}
	content, err = readStdin(ops.MaxInputBytes)
	if err != nil {
		return "", "", errors.NewInvalidRequest(err.Error())
	}
	return "", content, nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads all content from stdin, up to limit bytes.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}
