package main

import (
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/docopt/docopt-go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	log "github.com/sirupsen/logrus"

	pd "github.com/t7a/pkgdelta"
	"github.com/t7a/pkgdelta/runlock"
	"github.com/t7a/pkgdelta/watch"
)

// exit codes: a scheduler wrapping pd needs to tell "someone else is
// already working" apart from "something broke".
const (
	rcOk     = 0
	rcFail   = 1
	rcLocked = 3
)

func init() {
	var debug string
	debug = os.Getenv("DEBUG")
	if debug == "1" {
		log.SetLevel(log.DebugLevel)
	}
	formatter := &logrus.TextFormatter{
		CallerPrettyfier: caller(),
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyFile: "caller",
		},
	}
	formatter.TimestampFormat = "15:04:05.999999999"
	logrus.SetFormatter(formatter)
}

// caller returns string presentation of log caller which is formatted as
// `/path/to/file.go:line_number`. e.g. `/internal/app/api.go:25`
func caller() func(*runtime.Frame) (function string, file string) {
	return func(f *runtime.Frame) (function string, file string) {
		p, _ := os.Getwd()
		return "", fmt.Sprintf("%s:%d", strings.TrimPrefix(f.File, p), f.Line)
	}
}

type Opts struct {
	Generate bool
	Cleanup  bool
	Watch    bool
	Dir      []string `docopt:"<dir>"`
	Quiet    bool     `docopt:"-q"`
	Lock     string   `docopt:"--lock"`
	Config   string   `docopt:"--config"`
}

func main() {
	// see https://github.com/google/go-cmdtest
	os.Exit(run())
}

func run() (rc int) {

	usage := `pkgdelta

Usage:
  pd generate [-q] [--lock=<path>] [--config=<file>] <dir>...
  pd cleanup [-q] [--lock=<path>] [--config=<file>] <dir>...
  pd watch [-q] [--config=<file>] <dir>...

Options:
  -h --help        Show this screen.
  -q               Suppress per-item diagnostics on stderr.
  --lock=<path>    Serialize against other invocations via this lock file.
  --config=<file>  Load settings from a YAML file.
`
	parser := &docopt.Parser{OptionsFirst: false}
	o, _ := parser.ParseArgs(usage, os.Args[1:], "0.1")
	var opts Opts
	err := o.Bind(&opts)
	if err != nil {
		log.Error(err)
		return rcFail
	}
	log.Debug(opts)

	if opts.Quiet {
		// diagnostics off, failures still reported
		log.SetLevel(log.ErrorLevel)
	}

	cfg := pd.DefaultConfig()
	if opts.Config != "" {
		cfg, err = pd.LoadConfig(opts.Config)
		if err != nil {
			log.Error(err)
			return rcFail
		}
	}

	// lock before any work: contention must mean zero mutation
	if opts.Lock != "" {
		lk, err := runlock.TryAcquire(opts.Lock)
		if errors.Cause(err) == runlock.ErrContended {
			log.Errorf("lock %s: %v", opts.Lock, err)
			return rcLocked
		}
		if err != nil {
			log.Error(err)
			return rcFail
		}
		defer func() {
			if err := lk.Release(); err != nil {
				log.Error(err)
				if rc == rcOk {
					rc = rcFail
				}
			}
		}()
	}

	switch true {
	case opts.Generate:
		be, err := cfg.NewBackend()
		if err != nil {
			log.Error(err)
			return rcFail
		}
		r := pd.NewReconciler(cfg, be)
		for _, dir := range opts.Dir {
			err = r.ReconcileDir(dir)
			if err != nil {
				log.Error(err)
				rc = rcFail
			}
		}
	case opts.Cleanup:
		s := pd.NewSweeper(cfg)
		for _, dir := range opts.Dir {
			err = s.Cleanup(dir)
			if err != nil {
				log.Error(err)
				rc = rcFail
			}
		}
	case opts.Watch:
		be, err := cfg.NewBackend()
		if err != nil {
			log.Error(err)
			return rcFail
		}
		r := pd.NewReconciler(cfg, be)
		s := pd.NewSweeper(cfg)
		runner := func(dir string) (err error) {
			err = r.ReconcileDir(dir)
			if err != nil {
				return
			}
			return s.Cleanup(dir)
		}
		// settle the backlog first; the watcher only sees future events
		for _, dir := range opts.Dir {
			err = runner(dir)
			if err != nil {
				log.Error(err)
			}
		}
		w, err := watch.New(opts.Dir, runner)
		if err != nil {
			log.Error(err)
			return rcFail
		}
		err = w.Run(nil)
		if err != nil {
			log.Error(err)
			return rcFail
		}
	default:
		log.Error("no recognized command")
		return rcFail
	}
	return rc
}
