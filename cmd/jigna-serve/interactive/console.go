// Package interactive provides the interactive command-line interface
// for jigna-serve.
package interactive

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"github.com/jigna-sync/jigna-go/pkg/discovery"
	"github.com/jigna-sync/jigna-go/pkg/model"
	"github.com/jigna-sync/jigna-go/pkg/session"
	"github.com/jigna-sync/jigna-go/pkg/wire"
)

// Simulator is the demo simulation control.
type Simulator interface {
	Start()
	Stop()
	Running() bool
}

// Finder looks up other jigna servers on the network.
type Finder interface {
	Find(ctx context.Context) ([]*discovery.Service, error)
}

// Config wires the console to the running server. Sim and Finder are
// optional.
type Config struct {
	Session *session.Session
	Sim     Simulator
	Finder  Finder

	// Extra reports additional counters for the stats command.
	Extra func() map[string]uint64
}

// Console handles interactive mode for jigna-serve.
type Console struct {
	config Config
	rl     *readline.Instance
}

// New creates a console reading from the terminal.
func New(cfg Config) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "jigna> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{config: cfg, rl: rl}, nil
}

// Configure replaces the console's wiring. Call it before Run.
func (c *Console) Configure(cfg Config) {
	c.config = cfg
}

// Stdout returns a writer that properly coordinates with the readline input.
// Use this for log output to avoid interfering with the command prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run starts the interactive command loop.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp(c.rl.Stdout())

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		if quit := c.execute(ctx, c.rl.Stdout(), line); quit {
			cancel()
			return
		}
	}
}

// execute runs one command line and reports whether the user asked to
// quit.
func (c *Console) execute(ctx context.Context, out io.Writer, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}

	parts := strings.Fields(input)
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		c.printHelp(out)
	case "models", "m":
		c.cmdModels(out)
	case "get", "g":
		c.cmdGet(out, args)
	case "set", "s":
		c.cmdSet(ctx, out, input, args)
	case "conns", "c":
		c.cmdConns(out)
	case "stats":
		c.cmdStats(out)
	case "peers":
		c.cmdPeers(ctx, out)
	case "start", "sim-start":
		c.cmdSim(out, true)
	case "stop", "sim-stop":
		c.cmdSim(out, false)
	case "quit", "exit", "q":
		fmt.Fprintln(out, "Exiting...")
		return true
	default:
		fmt.Fprintf(out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return false
}

func (c *Console) printHelp(out io.Writer) {
	fmt.Fprintln(out, `
jigna Commands:
  Models:
    models                    - List registered models
    get <model> [attr]        - Show a model or one attribute
    set <model> <attr> <json> - Change an attribute, e.g. set 0 age 43

  Session:
    conns                     - List connected clients
    stats                     - Show sync counters
    peers                     - Find other jigna servers on the network

  Simulation:
    start                     - Start simulation
    stop                      - Stop simulation

  General:
    help                      - Show this help
    quit                      - Exit

  <model> is the index shown by 'models', a model ID, or an ID prefix.`)
}

// cmdModels handles the models command.
func (c *Console) cmdModels(out io.Writer) {
	entries := c.config.Session.Registry().Entries()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No models registered")
		return
	}
	for i, e := range entries {
		fmt.Fprintf(out, "  [%d] %s %s (%s)\n", i, e.Model.Kind(), e.Model.ID(), strings.Join(e.View.VisibleAttributes, ", "))
	}
}

// cmdGet handles the get command.
func (c *Console) cmdGet(out io.Writer, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(out, "Usage: get <model> [attr]")
		return
	}
	m, err := c.findModel(args[0])
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	if len(args) == 1 {
		snapshot := m.Snapshot()
		names := make([]string, 0, len(snapshot))
		for name := range snapshot {
			names = append(names, name)
		}
		sort.Strings(names)
		fmt.Fprintf(out, "%s\n", m)
		for _, name := range names {
			fmt.Fprintf(out, "  %s = %s\n", name, formatValue(snapshot[name]))
		}
		return
	}

	value, err := m.Get(args[1])
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(out, "%s = %s\n", args[1], formatValue(value))
}

// cmdSet handles the set command. The value is everything after the
// attribute name, parsed as JSON; bare words are taken as strings.
func (c *Console) cmdSet(ctx context.Context, out io.Writer, input string, args []string) {
	if len(args) < 3 {
		fmt.Fprintln(out, "Usage: set <model> <attr> <json-value>")
		fmt.Fprintln(out, `  Example: set 0 name "Fred Flintstone"`)
		return
	}
	m, err := c.findModel(args[0])
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	attr, err := m.Attribute(args[1])
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}

	raw := valueText(input, 3)
	decoded, err := wire.DecodeValue(raw)
	if err != nil {
		decoded = raw
	}

	reg := c.config.Session.Registry()
	value, err := wire.Coerce(attr.Metadata(), decoded, func(id string) (*model.Model, bool) {
		found, err := reg.Model(id)
		return found, err == nil
	})
	if err != nil {
		fmt.Fprintf(out, "Invalid value: %v\n", err)
		return
	}

	err = c.config.Session.Update(ctx, func(context.Context) error {
		return m.Set(args[1], value)
	})
	if err != nil {
		fmt.Fprintf(out, "Set failed: %v\n", err)
		return
	}
	fmt.Fprintln(out, "OK")
}

// cmdConns handles the conns command.
func (c *Console) cmdConns(out io.Writer) {
	conns := c.config.Session.Connections()
	if len(conns) == 0 {
		fmt.Fprintln(out, "No connected clients")
		return
	}
	fmt.Fprintf(out, "Connected clients: %d\n", len(conns))
	for _, id := range conns {
		fmt.Fprintf(out, "  %s\n", id)
	}
}

// cmdStats handles the stats command.
func (c *Console) cmdStats(out io.Writer) {
	st := c.config.Session.Stats()
	fmt.Fprintf(out, "Session %s\n", c.config.Session.ID())
	fmt.Fprintf(out, "  Connections:     %d\n", st.Connections)
	fmt.Fprintf(out, "  Models:          %d\n", st.Models)
	fmt.Fprintf(out, "  Edits applied:   %d\n", st.EditsApplied)
	fmt.Fprintf(out, "  Notifications:   %d\n", st.Notifications)
	fmt.Fprintf(out, "  Full states:     %d\n", st.FullStates)
	fmt.Fprintf(out, "  Dropped:         %d (echo %d, unknown model %d, malformed %d, coercion %d, set failed %d)\n",
		st.Dropped(), st.DroppedEcho, st.DroppedUnknownModel, st.DroppedMalformed, st.DroppedCoercion, st.DroppedSetFailed)
	if err := c.config.Session.Err(); err != nil {
		fmt.Fprintf(out, "  Failed:          %v\n", err)
	}

	if c.config.Extra == nil {
		return
	}
	extra := c.config.Extra()
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(out, "  %-16s %d\n", k+":", extra[k])
	}
}

// cmdPeers handles the peers command.
func (c *Console) cmdPeers(ctx context.Context, out io.Writer) {
	if c.config.Finder == nil {
		fmt.Fprintln(out, "Discovery is disabled")
		return
	}
	fmt.Fprintln(out, "Browsing...")
	services, err := c.config.Finder.Find(ctx)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return
	}
	if len(services) == 0 {
		fmt.Fprintln(out, "No jigna servers found")
		return
	}
	for _, svc := range services {
		addr := svc.Host
		if len(svc.Addresses) > 0 {
			addr = svc.Addresses[0]
		}
		fmt.Fprintf(out, "  %s  ws://%s%s  (version %s)\n", svc.InstanceName, hostPort(addr, svc.Port), svc.Path, orDash(svc.Version))
	}
}

// cmdSim handles the start and stop commands.
func (c *Console) cmdSim(out io.Writer, start bool) {
	if c.config.Sim == nil {
		fmt.Fprintln(out, "Simulation is not available")
		return
	}
	if start {
		c.config.Sim.Start()
	} else {
		c.config.Sim.Stop()
	}
	fmt.Fprintf(out, "Simulation running: %v\n", c.config.Sim.Running())
}

// findModel resolves an index from the models listing, a model ID or a
// unique ID prefix.
func (c *Console) findModel(ref string) (*model.Model, error) {
	entries := c.config.Session.Registry().Entries()

	if i, err := strconv.Atoi(ref); err == nil {
		if i < 0 || i >= len(entries) {
			return nil, fmt.Errorf("no model with index %d", i)
		}
		return entries[i].Model, nil
	}

	var match *model.Model
	for _, e := range entries {
		id := e.Model.ID()
		if id == ref {
			return e.Model, nil
		}
		if strings.HasPrefix(id, ref) {
			if match != nil {
				return nil, fmt.Errorf("model prefix %q is ambiguous", ref)
			}
			match = e.Model
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no model %q", ref)
	}
	return match, nil
}

// valueText returns input with its first n fields removed, preserving the
// spacing of the rest.
func valueText(input string, n int) string {
	rest := strings.TrimSpace(input)
	for i := 0; i < n; i++ {
		idx := strings.IndexAny(rest, " \t")
		if idx < 0 {
			return ""
		}
		rest = strings.TrimSpace(rest[idx:])
	}
	return rest
}

func formatValue(v any) string {
	data, err := json.Marshal(wire.EncodeValue(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func hostPort(host string, port uint16) string {
	if strings.Contains(host, ":") {
		return fmt.Sprintf("[%s]:%d", host, port)
	}
	return fmt.Sprintf("%s:%d", host, port)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
