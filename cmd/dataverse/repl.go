// Copyright 2025 Magnus Pierre
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/magpierre/dataverse/dataio"
	"github.com/magpierre/dataverse/datatable"
	"github.com/magpierre/dataverse/formula"
	"github.com/magpierre/dataverse/internal/highlight"
)

const replHelp = `Enter a formula to evaluate it against the loaded table.
  :columns            list the columns and their types
  :add Name = expr    evaluate expr and keep it as column Name
  :save path          write the table (.csv, .parquet or .json)
  :help               show this help
  exit                leave
`

func runREPL(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	fs.SetOutput(stdout)
	in := fs.String("in", "", "data file to load (.csv, .parquet or .json)")
	seed := fs.Int64("seed", formula.DefaultSeed, "random seed for np.random and random")
	rows := fs.Int("rows", 10, "number of result rows to print")
	history := fs.String("history", defaultHistory(), "history file, empty to disable")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return fmt.Errorf("repl: -in is required")
	}

	t, err := dataio.LoadFile(ctx, *in)
	if err != nil {
		return err
	}
	s := newSession(t, formula.DefaultConfig().WithSeed(*seed), *rows, stdout)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "formula> ",
		HistoryFile:       *history,
		AutoComplete:      s,
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
		Stdin:             io.NopCloser(stdin),
		Stdout:            stdout,
	})
	if err != nil {
		return fmt.Errorf("repl: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(stdout, "%s: %d rows, %d columns. Type :help for commands.\n",
		filepath.Base(*in), t.RowCount(), t.ColumnCount())
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if s.handle(ctx, line) {
			return nil
		}
	}
	return nil
}

func defaultHistory() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "dataverse_history")
}

// session holds the table a REPL evaluates formulas against.
type session struct {
	engine *formula.Engine
	table  *datatable.Table
	hl     *highlight.Highlighter
	rows   int
	out    io.Writer
}

func newSession(t *datatable.Table, cfg formula.Config, rows int, out io.Writer) *session {
	s := &session{rows: rows, out: out}
	s.engine = formula.NewEngine(cfg, formula.WithNotifier(func(msg string) {
		fmt.Fprintf(s.out, "warning: %s\n", msg)
	}))
	s.setTable(t)
	return s
}

func (s *session) setTable(t *datatable.Table) {
	s.table = t
	s.hl = highlight.New(t.ColumnNames(), s.engine.Config().Aliases())
}

// handle runs one input line and reports whether the session should end.
func (s *session) handle(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
	case line == "exit" || line == "quit" || line == ":q":
		return true
	case line == ":help":
		fmt.Fprint(s.out, replHelp)
	case line == ":columns":
		for _, c := range s.table.Columns() {
			fmt.Fprintf(s.out, "  %-20s %s\n", c.Name, c.Type)
		}
	case strings.HasPrefix(line, ":add "):
		name, expr, ok := strings.Cut(strings.TrimPrefix(line, ":add "), "=")
		name, expr = strings.TrimSpace(name), strings.TrimSpace(expr)
		if !ok || name == "" || expr == "" {
			fmt.Fprintln(s.out, "usage: :add Name = expr")
			return false
		}
		out, ok := s.evaluate(expr)
		if !ok {
			return false
		}
		t, err := s.table.WithColumn(name, out.Type, out.Values)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			return false
		}
		s.setTable(t)
		fmt.Fprintf(s.out, "added %s (%s)\n", name, out.Type)
	case strings.HasPrefix(line, ":save "):
		path := strings.TrimSpace(strings.TrimPrefix(line, ":save "))
		if err := dataio.Export(s.table, path, dataio.DetectFileType(path)); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
			return false
		}
		fmt.Fprintf(s.out, "wrote %s\n", path)
	case strings.HasPrefix(line, ":"):
		fmt.Fprintf(s.out, "unknown command %s; try :help\n", strings.Fields(line)[0])
	default:
		fmt.Fprintln(s.out, s.hl.ANSI(line))
		if out, ok := s.evaluate(line); ok {
			s.print(out)
		}
	}
	return ctx.Err() != nil
}

func (s *session) evaluate(expr string) (*formula.Outcome, bool) {
	out, err := s.engine.EvaluateColumn(expr, s.table)
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
		var rej *formula.RejectionError
		if errors.As(err, &rej) && rej.Offset >= 0 && rej.Offset <= len(expr) {
			fmt.Fprintf(s.out, "  %s\n  %s^\n", expr, strings.Repeat(" ", len([]rune(expr[:rej.Offset]))))
		}
		return nil, false
	}
	return out, true
}

func (s *session) print(out *formula.Outcome) {
	fmt.Fprintf(s.out, "%s, %s, %d rows\n", out.Strategy, out.Type, len(out.Values))
	if len(out.RowErrors) > 0 {
		fmt.Fprintf(s.out, "  %v\n", out.RowErrors)
	}
	for i, v := range out.Values {
		if i == s.rows {
			fmt.Fprintf(s.out, "  ... %d more\n", len(out.Values)-s.rows)
			break
		}
		cell := v.String()
		if v.IsNull {
			cell = "<missing>"
		}
		fmt.Fprintf(s.out, "  %4d  %s\n", i, cell)
	}
}

// Do completes column names, module aliases and module members at the
// cursor. It implements readline.AutoCompleter.
func (s *session) Do(line []rune, pos int) ([][]rune, int) {
	start := pos
	for start > 0 && isWordRune(line[start-1]) {
		start--
	}
	word := string(line[start:pos])
	path := strings.Split(word, ".")
	prefix := path[len(path)-1]

	var names []string
	if len(path) == 1 {
		names = append(s.table.ColumnNames(), s.engine.Config().Aliases()...)
	} else if m, ok := s.engine.Config().Modules[path[0]]; ok {
		target := m
		if len(path) > 2 {
			v, found := m.Lookup(path[1 : len(path)-1]...)
			sub, isModule := v.(*formula.Module)
			if !found || !isModule {
				return nil, 0
			}
			target = sub
		}
		names = target.Members()
	}

	var out [][]rune
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			out = append(out, []rune(name[len(prefix):]))
		}
	}
	return out, len([]rune(prefix))
}

func isWordRune(r rune) bool {
	return r == '_' || r == '.' || r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > 127
}

var _ readline.AutoCompleter = (*session)(nil)
