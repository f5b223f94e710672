package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/yaoapp/relay/config"
	"github.com/yaoapp/relay/definition"
	"github.com/yaoapp/relay/listener"
	"github.com/yaoapp/relay/listener/types"
	"github.com/yaoapp/relay/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	replayDefs     string
	replayMessages string
	replayInvokes  []string
	replayStrict   bool
)

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Invoke operations, then replay a JSON-lines message file through the store",
	Long: `Invoke operations, then replay a JSON-lines message file through the store.

Each --invoke is "name" or "name=<json payload>". In the message file, a meta.id of
"$N" is replaced by the correlation id of the N-th invocation (1-based).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := definition.Load(replayDefs)
		if err != nil {
			return err
		}

		in, err := openMessages(cmd, replayMessages)
		if err != nil {
			return err
		}
		defer in.Close()

		calls, err := replay(set, replayInvokes, in)
		if err != nil {
			return err
		}

		pending := report(cmd.OutOrStdout(), calls)
		if replayStrict && pending > 0 {
			return fmt.Errorf("%d operations still pending", pending)
		}
		return nil
	},
}

// invocation is one --invoke and its promise.
type invocation struct {
	name    string
	promise *listener.Promise
}

func replay(set definition.Set, invokes []string, in io.Reader) ([]invocation, error) {
	l := listener.New(listenerOptions(config.Get())...)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.Shutdown(ctx)
	}()

	st := store.New(countReducer, 0, l.Middleware)

	fns := make(map[string]*listener.AsyncFunction)
	calls := make([]invocation, 0, len(invokes))
	for _, arg := range invokes {
		name, payload, err := parseInvoke(arg)
		if err != nil {
			return nil, err
		}
		def, ok := set[name]
		if !ok {
			return nil, fmt.Errorf("unknown operation %q", name)
		}
		fn, ok := fns[name]
		if !ok {
			if fn, err = l.CreateAsyncFunction(def.Config()); err != nil {
				return nil, err
			}
			fns[name] = fn
		}
		calls = append(calls, invocation{name: name, promise: fn.Invoke(payload)})
	}

	scanner := bufio.NewScanner(in)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		msg, err := types.ParseMessage([]byte(text))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if err := bindMetaID(msg, calls); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		st.Dispatch(msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for _, fn := range fns {
		fn.Unsubscribe()
	}
	return calls, nil
}

func listenerOptions(cfg config.Config) []listener.Option {
	opts := []listener.Option{listener.MaxWorkers(cfg.MaxWorkers)}
	if strings.EqualFold(cfg.IDGenerator, "uuid") {
		opts = append(opts, listener.WithIDFunc(listener.UUID))
	}
	return opts
}

// countReducer counts the messages the store has reduced.
func countReducer(state any, msg *types.Message) any {
	n, _ := state.(int)
	return n + 1
}

func parseInvoke(arg string) (string, any, error) {
	name, raw, found := strings.Cut(arg, "=")
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, fmt.Errorf("invalid --invoke %q", arg)
	}
	if !found {
		return name, nil, nil
	}
	var payload any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return "", nil, fmt.Errorf("invalid payload for %s: %w", name, err)
	}
	return name, payload, nil
}

func bindMetaID(msg *types.Message, calls []invocation) error {
	id := msg.MetaID()
	if !strings.HasPrefix(id, "$") {
		return nil
	}
	n, err := strconv.Atoi(id[1:])
	if err != nil || n < 1 || n > len(calls) {
		return fmt.Errorf("meta.id %s does not name an invocation", id)
	}
	msg.Meta.ID = calls[n-1].promise.ID()
	return nil
}

func openMessages(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	return os.Open(path)
}

// report prints one line per invocation and returns how many are still pending.
func report(out io.Writer, calls []invocation) int {
	pending := 0
	for i, c := range calls {
		value, err := c.promise.Result()
		switch c.promise.State() {
		case listener.Resolved:
			data, _ := json.Marshal(value)
			fmt.Fprintf(out, "%d %s %s %s\n", i+1, c.name, color.GreenString("resolved"), data)
		case listener.Rejected:
			fmt.Fprintf(out, "%d %s %s %s\n", i+1, c.name, color.RedString("rejected"), err)
		default:
			pending++
			fmt.Fprintf(out, "%d %s %s\n", i+1, c.name, color.YellowString("pending"))
		}
	}
	return pending
}

func init() {
	replayCmd.Flags().StringVarP(&replayDefs, "defs", "d", "operations.yml", "operation definition file")
	replayCmd.Flags().StringVarP(&replayMessages, "messages", "m", "-", "JSON-lines message file, - for stdin")
	replayCmd.Flags().StringArrayVarP(&replayInvokes, "invoke", "i", nil, "operation to invoke: name or name=<json>")
	replayCmd.Flags().BoolVar(&replayStrict, "strict", false, "fail when an operation is still pending")
}
