package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/amirbrooks/tasker/internal/config"
	"github.com/amirbrooks/tasker/internal/logging"
	"github.com/amirbrooks/tasker/internal/state"
	"github.com/amirbrooks/tasker/internal/store"
)

// Exit codes
const (
	ExitOK       = 0
	ExitUsage    = 2
	ExitNotFound = 3
	ExitConflict = 4
	ExitInternal = 10
)

// Version is stamped into exports.
var Version = "dev"

var timeNow = time.Now

type GlobalFlags struct {
	Root         string
	JSON         bool
	NDJSON       bool
	Plain        bool
	Quiet        bool
	Verbose      bool
	StdoutJSON   bool
	StdoutNDJSON bool
	ExportDir    string
	LogLevel     string
}

// app carries what every command needs.
type app struct {
	gf     GlobalFlags
	cfg    *config.Config
	out    io.Writer
	errOut io.Writer
	log    *log.Logger
}

func reorderFlags(args []string, takesValue map[string]bool) []string {
	if len(args) == 0 {
		return args
	}
	var flags []string
	var rest []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			if i+1 < len(args) {
				rest = append(rest, args[i+1:]...)
			}
			break
		}
		if strings.HasPrefix(a, "-") && a != "-" {
			flags = append(flags, a)
			if takesValue[a] && !strings.Contains(a, "=") {
				if i+1 < len(args) {
					flags = append(flags, args[i+1])
					i++
				}
			}
			continue
		}
		rest = append(rest, a)
	}
	return append(flags, rest...)
}

func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	gf, rest, err := extractGlobalFlags(args)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return ExitUsage
	}

	if len(rest) == 0 {
		printHelp(stderr)
		return ExitUsage
	}

	cmd := rest[0]
	cmdArgs := rest[1:]

	switch cmd {
	case "help", "--help", "-h":
		printHelp(stdout)
		return ExitOK
	}

	cfg, err := config.Load(gf.Root)
	if err != nil {
		fmt.Fprintln(stderr, "tasker:", err)
		if errors.Is(err, store.ErrInvalid) {
			return ExitUsage
		}
		return ExitInternal
	}
	level := cfg.LogLevel
	if gf.LogLevel != "" {
		level = gf.LogLevel
	}
	if gf.Verbose {
		level = "debug"
	}
	a := &app{gf: gf, cfg: cfg, out: stdout, errOut: stderr, log: logging.New(stderr, level)}

	switch cmd {
	case "config", "cfg":
		return cmdConfig(a, cmdArgs)
	case "add":
		return cmdAdd(a, cmdArgs)
	case "ls", "list":
		return cmdList(a, cmdArgs)
	case "show":
		return cmdShow(a, cmdArgs)
	case "edit":
		return cmdEdit(a, cmdArgs)
	case "done":
		return cmdDone(a, cmdArgs)
	case "toggle":
		return cmdToggle(a, cmdArgs)
	case "rm", "delete":
		return cmdRemove(a, cmdArgs)
	case "clear":
		return cmdClear(a, cmdArgs)
	case "priority", "pri":
		return cmdPriority(a, cmdArgs)
	case "mv", "move":
		return cmdMove(a, cmdArgs)
	case "view":
		return cmdView(a, cmdArgs)
	case "today":
		return cmdToday(a, cmdArgs)
	case "week", "agenda", "upcoming":
		return cmdAgenda(a, cmdArgs)
	case "export":
		return cmdExport(a, cmdArgs)
	case "import":
		return cmdImport(a, cmdArgs)
	case "tui", "ui":
		return cmdTUI(a, cmdArgs)
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n\n", cmd)
		printHelp(stderr)
		return ExitUsage
	}
}

func printHelp(w io.Writer) {
	fmt.Fprint(w, `tasker: local task list with undo, filters and a terminal UI

Usage:
  tasker [global flags] <command> [args]

Global flags:
  --root <path>       Store root (default: ~/.tasker or TASKER_ROOT)
  --json              Write JSON output to <root>/exports (no stdout JSON)
  --ndjson            Write NDJSON output to <root>/exports (no stdout NDJSON)
  --stdout-json       Allow JSON to stdout
  --stdout-ndjson     Allow NDJSON to stdout
  --export-dir        Override export directory (default: <root>/exports)
  --plain             TSV output
  --log-level <lvl>   debug|info|warn|error
  --quiet
  --verbose

Commands:
  add "<title> [#tag] [!priority] [@due]" [--notes <text>] [--due <date>] [--priority <p>] [--tag <t>...] [--parent <id>]
  ls [--filter all|active|completed] [--sort created|due|priority|title|manual] [--search <q>] [--tag <t>...]
  show <id-or-prefix>
  edit <id-or-prefix> [--title <t>] [--notes <n>] [--due <date>|--no-due] [--priority <p>] [--tag <t>...|--clear-tags]
  done <id-or-prefix>...
  toggle <id-or-prefix>
  rm <id-or-prefix>...
  clear
  priority <high|medium|low|none> <id-or-prefix>...
  mv <id-or-prefix> --before|--after <id-or-prefix>
  view [--filter <f>] [--sort <s>] [--search <q>] [--tag <t>...|--clear-tags] [--theme light|dark|auto]
  today [--all]
  week [--days N] [--all]
  export [--out <file>]
  import <file|->
  config show
  config get <key>
  config set <key> <value>
  tui

Dates:
  today, tomorrow, friday, next week, in 3 days, 2026-05-01, Mar 4
`)
}

func extractGlobalFlags(args []string) (GlobalFlags, []string, error) {
	// Allow flags anywhere by scanning and stripping known globals.
	gf := GlobalFlags{}

	out := make([]string, 0, len(args))
	skip := 0

	for i := 0; i < len(args); i++ {
		if skip > 0 {
			skip--
			continue
		}
		a := args[i]
		switch a {
		case "--root":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--root requires a value")
			}
			gf.Root = args[i+1]
			skip = 1
		case "--json":
			gf.JSON = true
		case "--ndjson":
			gf.NDJSON = true
		case "--stdout-json":
			gf.StdoutJSON = true
		case "--stdout-ndjson":
			gf.StdoutNDJSON = true
		case "--export-dir":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--export-dir requires a value")
			}
			gf.ExportDir = args[i+1]
			skip = 1
		case "--log-level":
			if i+1 >= len(args) {
				return gf, nil, errors.New("--log-level requires a value")
			}
			if !logging.ValidLevel(args[i+1]) {
				return gf, nil, fmt.Errorf("invalid --log-level %q", args[i+1])
			}
			gf.LogLevel = args[i+1]
			skip = 1
		case "--plain":
			gf.Plain = true
		case "--quiet":
			gf.Quiet = true
		case "--verbose":
			gf.Verbose = true
		default:
			out = append(out, a)
		}
	}

	if gf.JSON && gf.NDJSON {
		return gf, nil, errors.New("--json and --ndjson are mutually exclusive")
	}
	if gf.StdoutJSON && !gf.JSON {
		return gf, nil, errors.New("--stdout-json requires --json")
	}
	if gf.StdoutNDJSON && !gf.NDJSON {
		return gf, nil, errors.New("--stdout-ndjson requires --ndjson")
	}
	gf.Root = config.ResolveRoot(gf.Root)
	if gf.ExportDir == "" {
		gf.ExportDir = filepath.Join(gf.Root, "exports")
	}
	return gf, out, nil
}

// open builds a Manager over the file store and loads it. A load failure is
// fatal for one-shot commands so a damaged file is never overwritten.
func (a *app) open(logger *log.Logger) (*state.Manager, error) {
	fs := store.NewFileStore(a.gf.Root)
	fresh := !fs.Exists()
	m := state.New(fs,
		state.WithLogger(logger),
		state.WithHistoryLimit(a.cfg.HistoryLimit),
		state.WithSaveDelay(a.cfg.SaveDelay()),
		state.WithCollation(a.cfg.Language()),
	)
	if err := m.Load(context.Background()); err != nil {
		m.Close()
		return m, err
	}
	if fresh {
		m.SetSort(store.SortMode(a.cfg.DefaultSort))
		m.SetTheme(store.Theme(a.cfg.DefaultTheme))
	}
	return m, nil
}

// commit saves pending changes and releases the Manager.
func (a *app) commit(m *state.Manager, cmd string) int {
	defer m.Close()
	if err := m.Flush(context.Background()); err != nil {
		fmt.Fprintf(a.errOut, "%s: %v\n", cmd, err)
		return ExitInternal
	}
	return ExitOK
}

func (a *app) fail(cmd string, err error) int {
	var mc *store.MatchConflictError
	switch {
	case errors.As(err, &mc):
		fmt.Fprintf(a.errOut, "%s: ambiguous id prefix\n", cmd)
		for _, t := range mc.Matches {
			fmt.Fprintf(a.errOut, "  %s  %s\n", t.ID, t.Title)
		}
		return ExitConflict
	case errors.Is(err, store.ErrNotFound):
		fmt.Fprintf(a.errOut, "%s: not found\n", cmd)
		return ExitNotFound
	case errors.Is(err, store.ErrConflict):
		fmt.Fprintf(a.errOut, "%s: ambiguous id prefix\n", cmd)
		return ExitConflict
	case errors.Is(err, store.ErrInvalid):
		fmt.Fprintf(a.errOut, "%s: %v\n", cmd, err)
		return ExitUsage
	default:
		fmt.Fprintf(a.errOut, "%s: %v\n", cmd, err)
		return ExitInternal
	}
}

// emitJSON honours --json/--stdout-json. It reports whether JSON output was
// requested; code is the exit code to return in that case.
func (a *app) emitJSON(cmd, base string, payload any) (handled bool, code int) {
	if !a.gf.JSON {
		return false, ExitOK
	}
	if a.gf.StdoutJSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(payload)
		return true, ExitOK
	}
	path, err := writeJSONExport(a.gf, base, payload)
	if err != nil {
		fmt.Fprintf(a.errOut, "%s: %v\n", cmd, err)
		return true, ExitInternal
	}
	if !a.gf.Quiet {
		fmt.Fprintln(a.out, "Wrote JSON to:", path)
	}
	return true, ExitOK
}

func (a *app) emitNDJSON(cmd, base string, tasks []store.Task) (handled bool, code int) {
	if !a.gf.NDJSON {
		return false, ExitOK
	}
	if a.gf.StdoutNDJSON {
		for _, t := range tasks {
			b, _ := json.Marshal(t)
			fmt.Fprintln(a.out, string(b))
		}
		return true, ExitOK
	}
	items := make([]any, 0, len(tasks))
	for i := range tasks {
		items = append(items, tasks[i])
	}
	path, err := writeNDJSONExport(a.gf, base, items)
	if err != nil {
		fmt.Fprintf(a.errOut, "%s: %v\n", cmd, err)
		return true, ExitInternal
	}
	if !a.gf.Quiet {
		fmt.Fprintln(a.out, "Wrote NDJSON to:", path)
	}
	return true, ExitOK
}

// multiFlag supports repeated --tag flags.
type multiFlag struct{ Values []string }

func (m *multiFlag) String() string { return strings.Join(m.Values, ",") }
func (m *multiFlag) Set(v string) error {
	m.Values = append(m.Values, v)
	return nil
}

func writeJSONExport(gf GlobalFlags, base string, payload any) (string, error) {
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", err
	}
	return writeExportFile(gf.ExportDir, base, "json", data)
}

func writeNDJSONExport(gf GlobalFlags, base string, items []any) (string, error) {
	var b strings.Builder
	for _, item := range items {
		line, err := json.Marshal(item)
		if err != nil {
			return "", err
		}
		b.Write(line)
		b.WriteByte('\n')
	}
	return writeExportFile(gf.ExportDir, base, "ndjson", []byte(b.String()))
}

func writeExportFile(dir, base, ext string, data []byte) (string, error) {
	if strings.TrimSpace(dir) == "" {
		return "", errors.New("export directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	ts := timeNow().UTC().Format("20060102-150405")
	name := fmt.Sprintf("%s-%s.%s", base, ts, ext)
	path := filepath.Join(dir, name)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			break
		}
		name = fmt.Sprintf("%s-%s-%d.%s", base, ts, i, ext)
		path = filepath.Join(dir, name)
	}
	if err := store.WriteFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}
