package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/gompdf/examsheet/internal/config"
	"github.com/gompdf/examsheet/internal/logger"
	"github.com/gompdf/examsheet/internal/storage"
	"github.com/gompdf/examsheet/internal/store"
	"github.com/gompdf/examsheet/pkg/api"
)

const usage = `Usage: examsheet [-config path] [-verbose] <command> [flags]

Commands:
  render      render a document file to PDF and/or HTML
  paginate    print the page assignment of a document file
  distribute  fill in or reset scores of a document file
  watch       re-render a document file whenever it or its images change
  save        store a document file as an exam or wrong-note
  print       render a stored exam or wrong-note
  list        list stored exams, wrong-notes, classes or students
  delete      delete a stored exam, wrong-note, class or student
  class       create or rename a class
  student     create or update a student
  wrongnote   build a wrong-note from exam items for a student
  export      write a backup of everything stored
  import      replace everything stored with a backup
`

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"render":     runRender,
	"paginate":   runPaginate,
	"distribute": runDistribute,
	"watch":      runWatch,
	"save":       runSave,
	"print":      runPrint,
	"list":       runList,
	"delete":     runDelete,
	"class":      runClass,
	"student":    runStudent,
	"wrongnote":  runWrongNote,
	"export":     runExport,
	"import":     runImport,
}

func main() {
	var (
		configPath string
		verbose    bool
	)

	flag.StringVar(&configPath, "config", "", "Config file or directory holding config.yaml")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	run, ok := commands[flag.Arg(0)]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", flag.Arg(0))
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if verbose {
		cfg.Log.Level = "debug"
	}
	log := logger.New(cfg.Log)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, log: log, out: os.Stdout}
	defer a.close()

	if err := run(ctx, a, flag.Args()[1:]); err != nil {
		log.Error("command failed", zap.String("command", flag.Arg(0)), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		a.close()
		os.Exit(1)
	}
}

// app carries what commands share. The store and blob store open on first use.
type app struct {
	cfg *config.Config
	log *zap.Logger
	out io.Writer

	db *store.SQLStore

	blobOnce sync.Once
	blobs    storage.BlobStore
	blobErr  error
}

func (a *app) store(ctx context.Context) (*store.SQLStore, error) {
	if a.db != nil {
		return a.db, nil
	}
	db, err := store.Open(ctx, store.Driver(a.cfg.Store.Driver), a.cfg.Store.DSN)
	if err != nil {
		return nil, err
	}
	a.db = store.NewSQLStore(db)
	a.log.Debug("store opened", zap.String("driver", a.cfg.Store.Driver))
	return a.db, nil
}

func (a *app) blobStore(ctx context.Context) (storage.BlobStore, error) {
	a.blobOnce.Do(func() {
		a.blobs, a.blobErr = storage.New(ctx, a.cfg.Blob)
		if a.blobErr == nil {
			a.log.Debug("blob store ready", zap.String("driver", a.cfg.Blob.Driver))
		}
	})
	return a.blobs, a.blobErr
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("failed to close store", zap.Error(err))
		}
		a.db = nil
	}
}

// lazyBlobs opens the blob store the first time an image needs it, so
// documents without blob references never touch it
type lazyBlobs struct {
	ctx context.Context
	a   *app
}

func (l lazyBlobs) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	b, err := l.a.blobStore(l.ctx)
	if err != nil {
		return nil, err
	}
	return b.Get(ctx, key)
}

// composer builds a composer from the layout config plus extra options
func (a *app) composer(ctx context.Context, opts ...api.Option) *api.Composer {
	lc := a.cfg.Layout
	base := []api.Option{
		api.WithPageSize(api.PageSizeByName(lc.PageSize)),
		api.WithMargin(lc.MarginMM),
		api.WithColumnGap(lc.ColumnGap),
		api.WithFallbackHeight(lc.FallbackHeight),
		api.WithHeaderSpansColumns(lc.HeaderSpansColumns),
		api.WithDebug(lc.Debug),
		api.WithBlobStore(lazyBlobs{ctx: ctx, a: a}),
		api.WithLogger(a.log),
	}
	return api.New(append(base, opts...)...)
}
