// Command sheetconv imports and exports workbooks from the command line
// using the same record types as the server.
//
// Usage:
//
//	sheetconv types [-group G]
//	sheetconv import -type K FILE...
//	sheetconv inspect -type K FILE
//	sheetconv detect FILE
//	sheetconv export -type K [-in records.json] -out book.xlsx
//	sheetconv raw [-in rows.json] -out book.xlsx
//	sheetconv template -type K -out book.xlsx
//
// JSON results go to stdout and logs to stderr. "-in -" or no -in reads
// stdin.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/JonMunkholm/tabmap/internal/config"
	"github.com/JonMunkholm/tabmap/internal/core"
	_ "github.com/JonMunkholm/tabmap/internal/core/records" // Register all record types
	"github.com/JonMunkholm/tabmap/internal/logging"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

var errUsage = errors.New("usage")

// rawInput is the document read by the raw command.
type rawInput struct {
	Headers []string            `json:"headers"`
	Rows    []core.RawRow       `json:"rows"`
	Keyed   map[string][]string `json:"keyed"`
}

// fileResult is one entry of a multi-file import.
type fileResult struct {
	File   string             `json:"file"`
	Report *core.ImportReport `json:"report,omitempty"`
	Error  string             `json:"error,omitempty"`
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, "configuration:", err)
		return 1
	}
	ctx = logging.WithLogger(ctx, logging.New(stderr, cfg.Logging.Level, cfg.Logging.Format))

	c := &cli{
		svc:    core.NewService(cfg),
		cfg:    cfg,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	if len(args) == 0 {
		c.usage()
		return 2
	}

	cmds := map[string]func(context.Context, []string) error{
		"types":    c.types,
		"import":   c.importFiles,
		"inspect":  c.inspect,
		"detect":   c.detect,
		"export":   c.export,
		"raw":      c.raw,
		"template": c.template,
	}
	cmd, ok := cmds[args[0]]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", args[0])
		c.usage()
		return 2
	}

	if err := cmd(ctx, args[1:]); err != nil {
		if errors.Is(err, errUsage) || errors.Is(err, flag.ErrHelp) {
			return 2
		}
		logging.FromContext(ctx).Error(args[0]+" failed", "error", err)
		fmt.Fprintln(stderr, core.FormatUserError(err))
		return 1
	}
	return 0
}

type cli struct {
	svc    *core.Service
	cfg    *config.Config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (c *cli) usage() {
	fmt.Fprintln(c.stderr, "usage: sheetconv <types|import|inspect|detect|export|raw|template> [flags] [files]")
}

func (c *cli) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

func (c *cli) types(_ context.Context, args []string) error {
	fs := c.flags("types")
	group := fs.String("group", "", "only list types of this group")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *group != "" {
		return c.printJSON(c.svc.ListTypesByGroup()[*group])
	}
	return c.printJSON(c.svc.ListTypes())
}

func (c *cli) importFiles(ctx context.Context, args []string) error {
	fs := c.flags("import")
	typeKey := fs.String("type", "", "record type key (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *typeKey == "" || fs.NArg() == 0 {
		fmt.Fprintln(c.stderr, "import: -type and at least one file are required")
		return errUsage
	}

	if fs.NArg() == 1 {
		report, err := c.importFile(ctx, *typeKey, fs.Arg(0))
		if err != nil {
			return err
		}
		return c.printJSON(report)
	}

	// Files are parsed concurrently, bounded like server imports. A failing
	// file is reported in place and does not stop the others.
	results := make([]fileResult, fs.NArg())
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Import.MaxConcurrent)
	for i, path := range fs.Args() {
		g.Go(func() error {
			results[i].File = path
			report, err := c.importFile(gctx, *typeKey, path)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				results[i].Error = core.FormatUserError(err)
				return nil
			}
			results[i].Report = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return c.printJSON(results)
}

func (c *cli) importFile(ctx context.Context, typeKey, path string) (*core.ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}
	// Import closes f.
	return c.svc.Import(ctx, typeKey, path, f)
}

func (c *cli) inspect(ctx context.Context, args []string) error {
	fs := c.flags("inspect")
	typeKey := fs.String("type", "", "record type key (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *typeKey == "" || fs.NArg() != 1 {
		fmt.Fprintln(c.stderr, "inspect: -type and exactly one file are required")
		return errUsage
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}
	rep, err := c.svc.Inspect(ctx, *typeKey, fs.Arg(0), f)
	if err != nil {
		return err
	}
	return c.printJSON(rep)
}

func (c *cli) detect(ctx context.Context, args []string) error {
	fs := c.flags("detect")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(c.stderr, "detect: exactly one file is required")
		return errUsage
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("%w: %v", core.ErrNoFile, err)
	}
	h, matches, err := c.svc.Detect(ctx, fs.Arg(0), f)
	if err != nil {
		return err
	}
	return c.printJSON(map[string]any{"header": h, "matches": matches})
}

func (c *cli) export(ctx context.Context, args []string) error {
	fs := c.flags("export")
	typeKey := fs.String("type", "", "record type key (required)")
	in := fs.String("in", "-", "JSON array of records, - for stdin")
	out := fs.String("out", "", "workbook to write (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *typeKey == "" || *out == "" {
		fmt.Fprintln(c.stderr, "export: -type and -out are required")
		return errUsage
	}

	body, err := c.readInput(*in)
	if err != nil {
		return err
	}
	wb, err := c.svc.Export(ctx, *typeKey, body)
	if err != nil {
		return err
	}
	defer wb.Close()

	return c.save(ctx, *out, wb)
}

func (c *cli) raw(ctx context.Context, args []string) error {
	fs := c.flags("raw")
	in := fs.String("in", "-", `JSON {"headers", "rows", "keyed"}, - for stdin`)
	out := fs.String("out", "", "workbook to write (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *out == "" {
		fmt.Fprintln(c.stderr, "raw: -out is required")
		return errUsage
	}

	body, err := c.readInput(*in)
	if err != nil {
		return err
	}
	var doc rawInput
	if err := json.Unmarshal(body, &doc); err != nil {
		return fmt.Errorf("decode raw rows: %w", err)
	}

	wb, err := c.svc.ExportRaw(ctx, doc.Headers, append(doc.Rows, core.RowsFromMap(doc.Keyed)...))
	if err != nil {
		return err
	}
	defer wb.Close()

	return c.save(ctx, *out, wb)
}

func (c *cli) template(ctx context.Context, args []string) error {
	fs := c.flags("template")
	typeKey := fs.String("type", "", "record type key (required)")
	out := fs.String("out", "", "workbook to write (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *typeKey == "" || *out == "" {
		fmt.Fprintln(c.stderr, "template: -type and -out are required")
		return errUsage
	}

	wb, err := c.svc.Template(*typeKey)
	if err != nil {
		return err
	}
	defer wb.Close()

	return c.save(ctx, *out, wb)
}

func (c *cli) readInput(name string) ([]byte, error) {
	var r io.Reader = c.stdin
	if name != "" && name != "-" {
		f, err := os.Open(name)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}

	body, err := io.ReadAll(io.LimitReader(r, c.svc.MaxBodySize()+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.svc.MaxBodySize() {
		return nil, fmt.Errorf("request body too large: over %d bytes", c.svc.MaxBodySize())
	}
	return body, nil
}

func (c *cli) save(ctx context.Context, path string, wb *core.Workbook) error {
	if err := core.WriteFile(ctx, path, wb); err != nil {
		return err
	}
	logging.FromContext(ctx).Info("workbook written", "path", path, "rows", wb.Rows())
	return nil
}

func (c *cli) printJSON(v any) error {
	enc := json.NewEncoder(c.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
