package cli

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/amirbrooks/tasker/internal/config"
	"github.com/amirbrooks/tasker/internal/store"
)

// stdin is swapped in tests.
var stdin io.Reader = os.Stdin

func cmdExport(a *app, args []string) int {
	args = reorderFlags(args, map[string]bool{"--out": true})
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	out := fs.String("out", "", "Write to this file (\"-\" for stdout)")
	if err := fs.Parse(args); err != nil {
		return ExitUsage
	}
	if len(fs.Args()) > 0 {
		fmt.Fprintln(a.errOut, "Usage: tasker export [--out <file>|-]")
		return ExitUsage
	}
	gw := store.NewFileStore(a.gf.Root)
	fresh := !gw.Exists()
	exp, err := store.ExportSnapshot(context.Background(), gw, Version, timeNow())
	if err != nil {
		return a.fail("export", fmt.Errorf("load tasks: %w", err))
	}
	if fresh {
		if s, ok := store.ParseSort(a.cfg.DefaultSort); ok {
			exp.CurrentSort = s
		}
		if th, ok := store.ParseTheme(a.cfg.DefaultTheme); ok {
			exp.Theme = th
		}
	}
	data, err := json.MarshalIndent(exp, "", "  ")
	if err != nil {
		return a.fail("export", err)
	}
	data = append(data, '\n')

	var path string
	switch strings.TrimSpace(*out) {
	case "-":
		_, _ = a.out.Write(data)
		return ExitOK
	case "":
		path, err = writeExportFile(a.gf.ExportDir, "tasks", "json", data)
	default:
		path = *out
		if dir := filepath.Dir(path); dir != "" {
			err = os.MkdirAll(dir, 0o755)
		}
		if err == nil {
			err = store.WriteFileAtomic(path, data)
		}
	}
	if err != nil {
		return a.fail("export", err)
	}
	a.log.Debug("exported tasks", "path", path, "tasks", len(exp.Tasks))
	if !a.gf.Quiet {
		fmt.Fprintf(a.out, "Exported %d task(s) to %s\n", len(exp.Tasks), path)
	}
	return ExitOK
}

func cmdImport(a *app, args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(a.errOut, "Usage: tasker import <file|->")
		return ExitUsage
	}
	var data []byte
	var err error
	if args[0] == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(args[0])
	}
	if err != nil {
		return a.fail("import", err)
	}

	m, err := a.open(a.log)
	if err != nil {
		return a.fail("import", err)
	}
	defer m.Close()
	res, err := m.Import(context.Background(), data)
	if err != nil {
		return a.fail("import", err)
	}
	v := m.View()
	if handled, code := a.emitJSON("import", "import", map[string]any{
		"added":   res.Added,
		"updated": res.Updated,
		"total":   len(res.Tasks),
	}); handled {
		return code
	}
	if !a.gf.Quiet {
		fmt.Fprintf(a.out, "%s (%d added, %d updated)\n", v.Message, res.Added, res.Updated)
	}
	return ExitOK
}

func cmdConfig(a *app, args []string) int {
	if len(args) == 0 {
		fmt.Fprintln(a.errOut, "Usage: tasker config <show|get|set> ...")
		return ExitUsage
	}
	switch args[0] {
	case "show":
		return cmdConfigShow(a)
	case "get":
		if len(args) != 2 {
			fmt.Fprintln(a.errOut, "Usage: tasker config get <key>")
			return ExitUsage
		}
		v, ok := a.cfg.Get(strings.ToLower(strings.TrimSpace(args[1])))
		if !ok {
			fmt.Fprintf(a.errOut, "config get: unknown key %q\n", args[1])
			return ExitUsage
		}
		fmt.Fprintln(a.out, v)
		return ExitOK
	case "set":
		return cmdConfigSet(a, args[1:])
	default:
		fmt.Fprintln(a.errOut, "Usage: tasker config <show|get|set> ...")
		return ExitUsage
	}
}

func cmdConfigShow(a *app) int {
	values := map[string]string{}
	for _, k := range config.Keys() {
		values[k], _ = a.cfg.Get(k)
	}
	payload := map[string]any{
		"root":        a.cfg.Root,
		"config_path": config.Path(a.cfg.Root),
		"config":      values,
		"sources":     a.cfg.Sources,
	}
	if handled, code := a.emitJSON("config show", "config", payload); handled {
		return code
	}
	if a.gf.Plain {
		for _, k := range config.Keys() {
			fmt.Fprintf(a.out, "%s\t%s\t%s\n", k, values[k], a.cfg.Sources[k])
		}
		return ExitOK
	}
	fmt.Fprintf(a.out, "root: %s\n", a.cfg.Root)
	fmt.Fprintf(a.out, "config: %s\n", config.Path(a.cfg.Root))
	for _, k := range config.Keys() {
		v := values[k]
		if v == "" {
			v = "(unset)"
		}
		fmt.Fprintf(a.out, "  %s = %s  [%s]\n", k, v, a.cfg.Sources[k])
	}
	return ExitOK
}

func cmdConfigSet(a *app, args []string) int {
	if len(args) < 2 {
		fmt.Fprintln(a.errOut, "Usage: tasker config set <key> <value>")
		return ExitUsage
	}
	key := strings.ToLower(strings.TrimSpace(args[0]))
	value := strings.TrimSpace(strings.Join(args[1:], " "))
	if err := a.cfg.Set(key, value); err != nil {
		return a.fail("config set", err)
	}
	if err := os.MkdirAll(a.cfg.Root, 0o755); err != nil {
		return a.fail("config set", err)
	}
	if err := config.Save(a.cfg.Root, a.cfg); err != nil {
		return a.fail("config set", err)
	}
	if !a.gf.Quiet {
		fmt.Fprintf(a.out, "Set %s = %s\n", key, value)
	}
	return ExitOK
}
