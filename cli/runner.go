// Command execution for CLI commands.
//
// Information Hiding:
// - Turn dispatch and the interactive loop hidden
// - Output formatting for answers, failures and trace listings hidden

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/richinex/scout/agent"
	"github.com/richinex/scout/model"
	"github.com/richinex/scout/storage"
	"github.com/richinex/scout/trace"
)

// TurnRunner runs one agent turn.
type TurnRunner interface {
	Run(ctx context.Context, query model.Query) (agent.Result, error)
}

// Ask runs one independent turn per query. Failures are printed as the
// generic user message and do not stop later queries. It returns the
// number of failed turns.
func Ask(ctx context.Context, r TurnRunner, queries []string, out, errOut io.Writer) int {
	failed := 0
	for i, q := range queries {
		if len(queries) > 1 {
			if i > 0 {
				fmt.Fprintln(out)
			}
			fmt.Fprintf(out, "Q: %s\n", q)
		}
		if !runTurn(ctx, r, q, out, errOut) {
			failed++
		}
	}
	return failed
}

// Chat reads one query per line until EOF, "exit" or "quit".
func Chat(ctx context.Context, r TurnRunner, in io.Reader, out, errOut io.Writer) error {
	fmt.Fprintln(out, "Ask anything. Type 'exit' to quit.")
	fmt.Fprintln(out)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		runTurn(ctx, r, input, out, errOut)
		fmt.Fprintln(out)

		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

func runTurn(ctx context.Context, r TurnRunner, query string, out, errOut io.Writer) bool {
	res, err := r.Run(ctx, model.Query(query))
	if err != nil {
		msg := "Something went wrong. Please try again."
		if oe, ok := agent.AsOrchestrationError(err); ok {
			msg = oe.UserMessage()
		}
		fmt.Fprintf(errOut, "Error: %s\n", msg)
		return false
	}
	fmt.Fprintln(out, res.Answer)
	return true
}

// ListTraces prints the newest stored traces, one per line.
func ListTraces(ctx context.Context, store storage.TraceStore, limit int, out io.Writer) error {
	summaries, err := store.ListTraces(ctx, limit)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(out, "No traces recorded.")
		return nil
	}
	for _, s := range summaries {
		fmt.Fprintf(out, "%s  %s  %-5s  %2d spans  %8s  %s\n",
			s.StartTime.Local().Format("2006-01-02 15:04:05"),
			s.ID,
			s.Status,
			s.SpanCount,
			s.EndTime.Sub(s.StartTime).Round(time.Millisecond),
			preview(s.Input, 60),
		)
	}
	return nil
}

// ShowTrace prints one stored trace as an indented span tree.
func ShowTrace(ctx context.Context, store storage.TraceStore, id string, out io.Writer) error {
	t, err := store.LoadTrace(ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Trace %s (%s)\n", t.ID, t.Name)
	fmt.Fprintf(out, "Status: %s\n", t.Status)
	if q, ok := t.Input.(string); ok {
		fmt.Fprintf(out, "Query:  %s\n", q)
	}
	if a, ok := t.Output.(string); ok && a != "" {
		fmt.Fprintf(out, "Answer: %s\n", preview(a, 200))
	}
	fmt.Fprintln(out)

	t.Root.Walk(func(s *trace.Span, depth int) {
		line := fmt.Sprintf("%s%s [%s] %s %s",
			strings.Repeat("  ", depth), s.Name, s.Kind, s.Status, s.Duration().Round(time.Millisecond))
		if s.StatusMessage != "" {
			line += ": " + s.StatusMessage
		}
		fmt.Fprintln(out, line)
	})
	return nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
