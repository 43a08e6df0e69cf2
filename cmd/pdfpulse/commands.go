package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/Thekiidd/pdfpulse"
	"github.com/Thekiidd/pdfpulse/internal/batch"
	"github.com/Thekiidd/pdfpulse/internal/config"
	"github.com/Thekiidd/pdfpulse/internal/stats"
)

var errTerminal = errors.New("refusing to write PDF data to a terminal, use --out FILE or redirect stdout")

func outFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "out",
		Aliases: []string{"o"},
		Usage:   "output file, - for stdout (default: generated name in --dir)",
	}
}

func pageSizeFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "page-size",
		Usage: "page size: letter, legal, a4, a5 or WIDTHxHEIGHT in points",
	}
}

func compressFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:    "quality",
			Aliases: []string{"q"},
			Usage:   "JPEG quality 1-100",
		},
		&cli.IntFlag{
			Name:  "max-dimension",
			Usage: "downsample images whose longer side exceeds this many pixels",
		},
	}
}

func (st *state) mergeCommand() *cli.Command {
	return &cli.Command{
		Name:      "merge",
		Usage:     "concatenate the pages of two or more PDFs",
		ArgsUsage: "FILE.pdf FILE.pdf...",
		Flags:     []cli.Flag{outFlag()},
		Action: func(c *cli.Context) error {
			return st.runSingle(c, pdfpulse.OpMerge)
		},
	}
}

func (st *state) compressCommand() *cli.Command {
	return &cli.Command{
		Name:      "compress",
		Usage:     "re-encode the images of a PDF as JPEG",
		ArgsUsage: "FILE.pdf",
		Flags:     append([]cli.Flag{outFlag()}, compressFlags()...),
		Action: func(c *cli.Context) error {
			return st.runSingle(c, pdfpulse.OpCompress)
		},
	}
}

func (st *state) imagesCommand() *cli.Command {
	return &cli.Command{
		Name:      "images",
		Usage:     "place each image on its own page",
		ArgsUsage: "IMAGE...",
		Flags:     []cli.Flag{outFlag(), pageSizeFlag()},
		Action: func(c *cli.Context) error {
			return st.runSingle(c, pdfpulse.OpImages)
		},
	}
}

func (st *state) docxCommand() *cli.Command {
	return &cli.Command{
		Name:      "docx",
		Usage:     "render a Word document onto a single image page",
		ArgsUsage: "FILE.docx",
		Flags:     []cli.Flag{outFlag()},
		Action: func(c *cli.Context) error {
			return st.runSingle(c, pdfpulse.OpDOCX)
		},
	}
}

func (st *state) batchCommand() *cli.Command {
	return &cli.Command{
		Name:      "batch",
		Usage:     "run the jobs listed in a YAML manifest concurrently",
		ArgsUsage: "MANIFEST.yaml",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "number of jobs run at once",
			},
		},
		Action: st.runBatch,
	}
}

func (st *state) statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "show the usage counter",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "recent",
				Value: 5,
				Usage: "number of recent conversions to list",
			},
			&cli.BoolFlag{
				Name:  "reset",
				Usage: "clear the counter",
			},
		},
		Action: st.showStats,
	}
}

// configure applies the resolved configuration and the command's flags to
// job.
func (st *state) configure(c *cli.Context, job *pdfpulse.Job) (*pdfpulse.Job, error) {
	cfg := *st.cfg
	if c.IsSet("quality") {
		cfg.JPEGQuality = c.Int("quality")
	}
	if c.IsSet("max-dimension") {
		cfg.MaxDimension = c.Int("max-dimension")
	}
	if c.IsSet("page-size") {
		w, h, err := config.PageSize(c.String("page-size"))
		if err != nil {
			return nil, err
		}
		cfg.PageWidth, cfg.PageHeight = w, h
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return job.
		MaxFileSize(int64(cfg.MaxFileSize)).
		PageSize(cfg.PageWidth, cfg.PageHeight).
		Quality(cfg.JPEGQuality).
		MaxDimension(cfg.MaxDimension).
		CompressStreams(cfg.CompressStreams).
		Logger(st.log), nil
}

// openStats opens the usage counter, or returns nil when recording is off
// or the store cannot be opened. A broken counter never fails a conversion.
func (st *state) openStats(c *cli.Context) *stats.Store {
	if c.Bool("no-stats") || st.cfg.StatsPath == "" {
		return nil
	}
	store, err := stats.Open(st.cfg.StatsPath)
	if err != nil {
		st.log.WithError(err).Warn("usage counter unavailable")
		return nil
	}
	return store
}

// hold returns a success handler that keeps the job's event in dst. Events
// are recorded only once the output has been written.
func hold(dst **pdfpulse.Event) func(pdfpulse.Event) {
	return func(ev pdfpulse.Event) { *dst = &ev }
}

// record adds ev to the usage counter. A nil store or event is a no-op and
// a counter failure is only logged.
func (st *state) record(store *stats.Store, ev *pdfpulse.Event) {
	if store == nil || ev == nil {
		return
	}
	err := store.Record(stats.Entry{
		Operation: string(ev.Operation),
		Filename:  ev.Filename,
		Pages:     ev.Pages,
		Bytes:     int64(ev.Bytes),
		Time:      ev.Time,
	})
	if err != nil {
		st.log.WithError(err).Warn("failed to record conversion")
	}
}

func (st *state) runSingle(c *cli.Context, op pdfpulse.Operation) error {
	if c.NArg() == 0 {
		return cli.Exit(fmt.Sprintf("%s: no input files", op), 2)
	}

	out := c.String("out")
	if out == "-" && st.isTerminal(st.stdout) {
		return errTerminal
	}

	files := make([]pdfpulse.File, 0, c.NArg())
	for _, path := range c.Args().Slice() {
		f, err := pdfpulse.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, f)
	}

	job, err := st.configure(c, pdfpulse.New(op, files...))
	if err != nil {
		return err
	}
	var ev *pdfpulse.Event
	store := st.openStats(c)
	if store != nil {
		defer store.Close()
		job = job.OnSuccess(hold(&ev))
	}

	res, err := job.Run(c.Context)
	if err != nil {
		return err
	}

	// status goes to stderr when the PDF itself goes to stdout
	status := st.stdout
	if out == "-" {
		if _, err := st.stdout.Write(res.Data); err != nil {
			return fmt.Errorf("writing output: %w", err)
		}
		status = st.stderr
		out = "stdout"
	} else {
		if out == "" {
			out = filepath.Join(st.cfg.OutputDir, res.Filename)
		}
		if err := writeOutput(out, res.Data); err != nil {
			return err
		}
	}
	st.record(store, ev)

	fmt.Fprintf(status, "%s %s (%s, %s)\n", color.GreenString("wrote"), out,
		pages(res.Pages), humanize.IBytes(uint64(len(res.Data))))
	if res.Report != nil {
		printReport(status, res)
	}
	return nil
}

func (st *state) runBatch(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("batch: expected one manifest file", 2)
	}
	m, err := batch.LoadManifest(c.Args().First())
	if err != nil {
		return err
	}

	store := st.openStats(c)
	if store != nil {
		defer store.Close()
	}
	var configErr error
	// one slot per job, filled by its worker and read after the runner returns
	events := make([]*pdfpulse.Event, len(m.Jobs))
	next := 0
	tasks, err := m.Tasks(func(j *pdfpulse.Job) *pdfpulse.Job {
		slot := &events[next]
		next++
		configured, err := st.configure(c, j)
		if err != nil {
			configErr = err
			return j
		}
		if store != nil {
			configured = configured.OnSuccess(hold(slot))
		}
		return configured
	})
	if err != nil {
		return err
	}
	if configErr != nil {
		return configErr
	}

	workers := st.cfg.Workers
	if c.IsSet("workers") {
		workers = c.Int("workers")
	}
	runner := &batch.Runner{Workers: workers, Logger: st.log}
	outcomes, err := runner.Run(c.Context, tasks)
	if err != nil {
		return err
	}

	used := map[string]bool{}
	var failed int
	for i, o := range outcomes {
		if o.Err != nil {
			failed++
			fmt.Fprintf(st.stdout, "%s %s: %v\n", color.RedString("failed"), o.Name, o.Err)
			continue
		}
		path := uniquePath(m.OutputPath(i, st.cfg.OutputDir, o.Result), used)
		if err := writeOutput(path, o.Result.Data); err != nil {
			failed++
			fmt.Fprintf(st.stdout, "%s %s: %v\n", color.RedString("failed"), o.Name, err)
			continue
		}
		st.record(store, events[i])
		fmt.Fprintf(st.stdout, "%s %s (%s, %s)\n", color.GreenString("wrote"), path,
			pages(o.Result.Pages), humanize.IBytes(uint64(len(o.Result.Data))))
	}
	if failed > 0 {
		return cli.Exit(fmt.Sprintf("%d of %d jobs failed", failed, len(outcomes)), 1)
	}
	return nil
}

func (st *state) showStats(c *cli.Context) error {
	store, err := stats.Open(st.cfg.StatsPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if c.Bool("reset") {
		if err := store.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(st.stdout, "usage counter cleared")
		return nil
	}

	counts, err := store.Counts()
	if err != nil {
		return err
	}
	total, err := store.Total()
	if err != nil {
		return err
	}

	ops := make([]string, 0, len(counts))
	for op := range counts {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(st.stdout, "%s %s\n", bold("conversions:"), humanize.Comma(total))
	for _, op := range ops {
		fmt.Fprintf(st.stdout, "  %-9s %s\n", op, humanize.Comma(counts[op]))
	}

	if n := c.Int("recent"); n > 0 && total > 0 {
		recent, err := store.Recent(n)
		if err != nil {
			return err
		}
		fmt.Fprintln(st.stdout, bold("recent:"))
		for _, r := range recent {
			fmt.Fprintf(st.stdout, "  %s  %s (%s, %s)\n", humanize.Time(r.CreatedAt), r.Filename,
				pages(r.Pages), humanize.IBytes(uint64(r.Bytes)))
		}
	}
	return nil
}

func printReport(w io.Writer, res *pdfpulse.Result) {
	r := res.Report
	fmt.Fprintf(w, "  images: %d, recompressed: %d, unchanged: %d, skipped: %d\n",
		r.Images, r.Recompressed, r.Unchanged, len(r.Skipped))
	if r.Inline > 0 {
		fmt.Fprintf(w, "  inline images left as they are: %d\n", r.Inline)
	}
	if saved := r.Saved(); saved > 0 {
		fmt.Fprintf(w, "  saved %s of image data\n", humanize.IBytes(uint64(saved)))
	}
	for _, s := range r.Skipped {
		fmt.Fprintf(w, "  %s %v\n", color.YellowString("skipped"), s)
	}
}

func writeOutput(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// uniquePath returns path, or path with a _N suffix before the extension if
// it was already handed out.
func uniquePath(path string, used map[string]bool) string {
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	candidate := path
	for n := 2; used[candidate]; n++ {
		candidate = fmt.Sprintf("%s_%d%s", base, n, ext)
	}
	used[candidate] = true
	return candidate
}

func pages(n int) string {
	if n == 1 {
		return "1 page"
	}
	return fmt.Sprintf("%d pages", n)
}
