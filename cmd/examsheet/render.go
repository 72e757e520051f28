package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/gompdf/examsheet/internal/docfile"
	"github.com/gompdf/examsheet/internal/model"
	"github.com/gompdf/examsheet/internal/pagination"
	"github.com/gompdf/examsheet/internal/scoring"
	"github.com/gompdf/examsheet/internal/session"
	"github.com/gompdf/examsheet/pkg/api"
)

type outputFlags struct {
	pdf       string
	html      string
	noAnswers bool
}

func (o *outputFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&o.pdf, "pdf", "", "Output PDF file path")
	fs.StringVar(&o.html, "html", "", "Output HTML preview file path")
	fs.BoolVar(&o.noAnswers, "no-answers", false, "Leave out the answer key page")
}

// defaults derives the PDF path from input when no output was asked for
func (o *outputFlags) defaults(input string) {
	if o.pdf == "" && o.html == "" {
		ext := filepath.Ext(input)
		o.pdf = input[:len(input)-len(ext)] + ".pdf"
	}
}

func (o *outputFlags) write(ctx context.Context, c *api.Composer, sheet model.Sheet, plan *pagination.Plan) error {
	if o.pdf != "" {
		var buf bytes.Buffer
		if err := c.RenderPDFPlan(ctx, sheet, plan, &buf); err != nil {
			return err
		}
		if err := writeOutput(o.pdf, buf.Bytes()); err != nil {
			return err
		}
	}
	if o.html != "" {
		var buf bytes.Buffer
		if err := c.RenderHTMLPlan(ctx, sheet, plan, &buf); err != nil {
			return err
		}
		if err := writeOutput(o.html, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func writeOutput(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func docComposer(ctx context.Context, a *app, input string, noAnswers bool) *api.Composer {
	return a.composer(ctx,
		api.WithBaseURL(input),
		api.WithResourcePath(filepath.Dir(input)),
		api.WithAnswerKey(!noAnswers))
}

func runRender(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("render", flag.ContinueOnError)
	var (
		input string
		out   outputFlags
	)
	fs.StringVar(&input, "input", "", "Input document file (YAML or JSON)")
	out.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if input == "" {
		return errors.New("input file is required")
	}
	out.defaults(input)

	doc, err := docfile.Load(input)
	if err != nil {
		return err
	}
	c := docComposer(ctx, a, input, out.noAnswers)
	plan, err := c.Layout(ctx, doc.Sheet)
	if err != nil {
		return err
	}
	if err := out.write(ctx, c, doc.Sheet, plan); err != nil {
		return err
	}
	a.log.Info("sheet rendered",
		zap.String("input", input),
		zap.String("pdf", out.pdf),
		zap.String("html", out.html),
		zap.Int("pages", len(plan.Pages)))
	return nil
}

func runPaginate(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("paginate", flag.ContinueOnError)
	var input string
	fs.StringVar(&input, "input", "", "Input document file (YAML or JSON)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if input == "" {
		return errors.New("input file is required")
	}

	doc, err := docfile.Load(input)
	if err != nil {
		return err
	}
	plan, err := docComposer(ctx, a, input, false).Layout(ctx, doc.Sheet)
	if err != nil {
		return err
	}

	g := plan.Geometry
	fmt.Fprintf(a.out, "%s: %d items, %d column(s), column width %.2fpt, %d page(s)\n",
		doc.Title, len(doc.Items), g.Columns, g.ColumnWidth, len(plan.Pages))
	for _, p := range plan.Pages {
		fill := pagination.ColumnFill(p, plan.Heights, plan.Spacing)
		var cols []string
		for ci, col := range p.Columns {
			cols = append(cols, fmt.Sprintf("col %d %v (%.1fpt)", ci+1, numbers(col), fill[ci]))
		}
		fmt.Fprintf(a.out, "page %d: %s\n", p.Number, strings.Join(cols, ", "))
	}
	return nil
}

// numbers turns item indices into the 1-based numbers printed on the sheet
func numbers(idx []int) []int {
	out := make([]int, len(idx))
	for i, v := range idx {
		out[i] = v + 1
	}
	return out
}

func runDistribute(_ context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("distribute", flag.ContinueOnError)
	var (
		input string
		reset bool
		write bool
	)
	fs.StringVar(&input, "input", "", "Input document file (YAML or JSON)")
	fs.BoolVar(&reset, "reset", false, "Clear every score before splitting the total")
	fs.BoolVar(&write, "write", false, "Write the scores back to the document")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if input == "" {
		return errors.New("input file is required")
	}

	doc, err := docfile.Load(input)
	if err != nil {
		return err
	}
	if reset {
		doc.Items = scoring.Redistribute(doc.Items)
	} else {
		doc.Items = scoring.Distribute(doc.Items)
	}
	for i, it := range doc.Items {
		fmt.Fprintf(a.out, "%d.\t%s\t%d\n", i+1, it.Name, it.Score)
	}
	fmt.Fprintf(a.out, "total\t\t%d\n", scoring.Total(doc.Items))

	if write {
		return docfile.Save(input, doc)
	}
	return nil
}

type watchAction int

const (
	watchIgnore watchAction = iota
	// watchRefresh re-lays out the current sheet after an image changed
	watchRefresh
	// watchReload reads the document again
	watchReload
)

// classify decides what a file event means for the document at doc. Writes
// of our own outputs are ignored so a render does not trigger another.
func (o *outputFlags) classify(event fsnotify.Event, doc string) watchAction {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return watchIgnore
	}
	switch {
	case event.Name == o.pdf, event.Name == o.html:
		return watchIgnore
	case event.Name == doc:
		return watchReload
	}
	return watchRefresh
}

func runWatch(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	var (
		input string
		out   outputFlags
	)
	fs.StringVar(&input, "input", "", "Input document file (YAML or JSON)")
	out.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if input == "" {
		return errors.New("input file is required")
	}
	out.defaults(input)

	absPath, err := filepath.Abs(input)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}
	for _, p := range []*string{&out.pdf, &out.html} {
		if *p != "" {
			if *p, err = filepath.Abs(*p); err != nil {
				return err
			}
		}
	}
	doc, err := docfile.Load(absPath)
	if err != nil {
		return err
	}

	c := docComposer(ctx, a, absPath, out.noAnswers)
	sess := session.New(c, doc.Sheet,
		session.WithDebounce(a.cfg.Session.Debounce),
		session.WithLogger(a.log),
		session.OnLayout(func(res session.Result) {
			if err := out.write(ctx, c, res.Sheet, res.Plan); err != nil {
				a.log.Error("failed to write outputs", zap.Error(err))
				return
			}
			a.log.Info("sheet re-rendered",
				zap.Uint64("revision", res.Revision),
				zap.Int("pages", len(res.Plan.Pages)))
		}))
	defer sess.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// editors replace files on save, so watch the directory rather than the file
	dirs := map[string]bool{filepath.Dir(absPath): true}
	for _, it := range doc.Items {
		if filepath.IsAbs(it.ImageRef) {
			dirs[filepath.Dir(it.ImageRef)] = true
		}
	}
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	a.log.Info("watching", zap.String("input", absPath))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			action := out.classify(event, absPath)
			if action == watchIgnore {
				continue
			}
			c.Loader().Purge()
			if action == watchRefresh {
				sess.Replace(sess.Sheet())
				continue
			}
			doc, err := docfile.Load(absPath)
			if err != nil {
				a.log.Warn("failed to reload document", zap.Error(err))
				continue
			}
			sess.Replace(doc.Sheet)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.log.Error("watcher error", zap.Error(err))
		}
	}
}
