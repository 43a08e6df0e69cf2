// Command pdfpulse merges PDFs, compresses their images, and turns images or
// Word documents into PDFs.
//
// Usage:
//
//	pdfpulse merge a.pdf b.pdf
//	pdfpulse compress --quality 50 scan.pdf
//	pdfpulse images --page-size a4 one.jpg two.png
//	pdfpulse docx letter.docx
//	pdfpulse batch jobs.yaml
//	pdfpulse stats
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/Thekiidd/pdfpulse/internal/config"
)

// Version information, set during build.
var (
	Version = "dev"
	Commit  = "none"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(&state{stdout: os.Stdout, stderr: os.Stderr, isTerminal: isTerminal})
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		code := 1
		var exit cli.ExitCoder
		if errors.As(err, &exit) {
			code = exit.ExitCode()
		}
		os.Exit(code)
	}
}

// state is shared by all commands of one invocation.
type state struct {
	stdout io.Writer
	stderr io.Writer
	cfg    *config.Config
	log    *logrus.Logger

	// isTerminal reports whether w is an interactive terminal.
	isTerminal func(w io.Writer) bool
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newApp(st *state) *cli.App {
	return &cli.App{
		Name:      "pdfpulse",
		Usage:     "merge, compress and create PDF files locally",
		Version:   fmt.Sprintf("%s (commit: %s)", Version, Commit),
		Writer:    st.stdout,
		ErrWriter: st.stderr,
		// main reports errors and picks the exit code
		ExitErrHandler: func(*cli.Context, error) {},
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "YAML configuration file",
				EnvVars: []string{config.EnvPrefix + "CONFIG"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: ".env",
				Usage: "dotenv file with " + config.EnvPrefix + "* settings",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "directory for output files",
			},
			&cli.BoolFlag{
				Name:  "no-stats",
				Usage: "do not record conversions in the usage counter",
			},
		},
		Before: st.setup,
		Commands: []*cli.Command{
			st.mergeCommand(),
			st.compressCommand(),
			st.imagesCommand(),
			st.docxCommand(),
			st.batchCommand(),
			st.statsCommand(),
		},
	}
}

// setup resolves the configuration and the logger before any command runs.
func (st *state) setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"), c.String("env-file"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("dir") {
		cfg.OutputDir = c.String("dir")
	}
	st.cfg = cfg

	st.log = logrus.New()
	st.log.SetOutput(st.stderr)
	st.log.SetLevel(parseLogLevel(cfg.LogLevel))
	st.log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

// parseLogLevel maps a level name to a logrus level, warn when unknown.
func parseLogLevel(s string) logrus.Level {
	level, err := logrus.ParseLevel(s)
	if err != nil {
		return logrus.WarnLevel
	}
	return level
}
