// Package session holds an exam sheet while it is being edited and keeps its
// pagination current as the sheet changes.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gompdf/examsheet/internal/model"
	"github.com/gompdf/examsheet/internal/pagination"
	"github.com/gompdf/examsheet/internal/schedule"
	"github.com/gompdf/examsheet/internal/scoring"
)

// DefaultDebounce is the quiet period before a changed sheet is re-laid out
const DefaultDebounce = 150 * time.Millisecond

// Layouter measures and paginates a sheet
type Layouter interface {
	Layout(ctx context.Context, sheet model.Sheet) (*pagination.Plan, error)
}

// Result is a finished layout of one revision of the sheet
type Result struct {
	Revision uint64
	Sheet    model.Sheet
	Plan     *pagination.Plan
}

// Session owns one sheet. Every mutation bumps the revision and schedules a
// layout; only a layout of the current revision is published.
type Session struct {
	layouter Layouter
	log      *zap.Logger
	debounce time.Duration
	onLayout func(Result)

	mu       sync.RWMutex
	sheet    model.Sheet
	revision uint64
	result   *Result

	tasks *schedule.Coalescer[Result]
}

// Option configures a Session
type Option func(*Session)

// WithDebounce sets the quiet period before re-layout
func WithDebounce(d time.Duration) Option {
	return func(s *Session) { s.debounce = d }
}

// WithLogger sets the logger
func WithLogger(log *zap.Logger) Option {
	return func(s *Session) { s.log = log }
}

// OnLayout registers fn to receive every published layout
func OnLayout(fn func(Result)) Option {
	return func(s *Session) { s.onLayout = fn }
}

// New starts a session for sheet and schedules its first layout
func New(layouter Layouter, sheet model.Sheet, opts ...Option) *Session {
	s := &Session{
		layouter: layouter,
		debounce: DefaultDebounce,
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tasks = schedule.New(s.debounce, s.publish, s.log)

	s.mu.Lock()
	s.sheet = sheet.Clone()
	s.sheet.Config = s.sheet.Config.Normalized()
	s.sheet.Items = model.Normalize(s.sheet.Items, s.sheet.Config.ImageSize)
	s.bumpLocked()
	s.mu.Unlock()
	return s
}

// Sheet returns a copy of the sheet as currently edited
func (s *Session) Sheet() model.Sheet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sheet.Clone()
}

// Revision returns the number of changes applied so far
func (s *Session) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// Result returns the latest published layout. ok is false until the first
// layout finishes, and whenever the published layout is older than the sheet.
func (s *Session) Result() (res Result, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.result == nil {
		return Result{}, false
	}
	return *s.result, s.result.Revision == s.revision
}

// Plan returns the current plan, or nil while a layout is outstanding
func (s *Session) Plan() *pagination.Plan {
	res, ok := s.Result()
	if !ok {
		return nil
	}
	return res.Plan
}

// Settle waits until no layout is scheduled or running
func (s *Session) Settle(ctx context.Context) error {
	return s.tasks.Settle(ctx)
}

// Close cancels outstanding work. The sheet stays readable.
func (s *Session) Close() {
	s.tasks.Stop()
}

// SetTitle renames the sheet
func (s *Session) SetTitle(title string) {
	_ = s.mutate("title", func(sh *model.Sheet) error {
		sh.Title = title
		return nil
	})
}

// SetConfig replaces the layout settings
func (s *Session) SetConfig(cfg model.LayoutConfig) {
	_ = s.mutate("config", func(sh *model.Sheet) error {
		sh.Config = cfg.Normalized()
		return nil
	})
}

// AddImages appends one item per image at the configured image size
func (s *Session) AddImages(images ...model.Image) {
	_ = s.mutate("add", func(sh *model.Sheet) error {
		sh.Items = model.Append(sh.Items, sh.Config.ImageSize, images...)
		return nil
	})
}

// RemoveItem drops an item
func (s *Session) RemoveItem(id string) error {
	return s.mutate("remove", func(sh *model.Sheet) error {
		items, err := model.Remove(sh.Items, id)
		if err != nil {
			return err
		}
		sh.Items = items
		return nil
	})
}

// MoveItem moves an item to a new position
func (s *Session) MoveItem(id string, to int) error {
	return s.mutate("move", func(sh *model.Sheet) error {
		items, err := model.Move(sh.Items, id, to)
		if err != nil {
			return err
		}
		sh.Items = items
		return nil
	})
}

// SortItems orders every item by name or date
func (s *Session) SortItems(key model.SortKey, descending bool) {
	_ = s.mutate("sort", func(sh *model.Sheet) error {
		sh.Items = model.SortItems(sh.Items, key, descending)
		return nil
	})
}

// SetScale sets an item's image scale, clamped to the valid range
func (s *Session) SetScale(id string, scale int) error {
	if scale < model.MinScale {
		scale = model.MinScale
	}
	return s.update("scale", id, func(it *model.QuestionItem) { it.Scale = scale })
}

// SetAnswer sets an item's answer key entry
func (s *Session) SetAnswer(id, answer string) error {
	return s.update("answer", id, func(it *model.QuestionItem) { it.Answer = answer })
}

// SetScore sets an item's score; zero marks it unscored
func (s *Session) SetScore(id string, score int) error {
	return s.update("score", id, func(it *model.QuestionItem) { it.Score = score })
}

// AutoDistribute clears every score and splits the total evenly
func (s *Session) AutoDistribute() {
	_ = s.mutate("distribute", func(sh *model.Sheet) error {
		sh.Items = scoring.Redistribute(sh.Items)
		return nil
	})
}

// Replace swaps in a new sheet, as when the document file is reloaded
func (s *Session) Replace(sheet model.Sheet) {
	_ = s.mutate("replace", func(sh *model.Sheet) error {
		*sh = sheet.Clone()
		sh.Config = sh.Config.Normalized()
		return nil
	})
}

func (s *Session) update(op, id string, fn func(*model.QuestionItem)) error {
	return s.mutate(op, func(sh *model.Sheet) error {
		items, err := model.Update(sh.Items, id, fn)
		if err != nil {
			return err
		}
		sh.Items = items
		return nil
	})
}

// mutate applies fn to a copy of the sheet. On success the copy replaces the
// sheet and a layout is scheduled; on error nothing changes.
func (s *Session) mutate(op string, fn func(*model.Sheet) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.sheet.Clone()
	if err := fn(&next); err != nil {
		return err
	}
	next.Items = model.Normalize(next.Items, next.Config.ImageSize)
	s.sheet = next
	s.bumpLocked()
	s.log.Debug("sheet changed", zap.String("op", op), zap.Uint64("revision", s.revision))
	return nil
}

func (s *Session) bumpLocked() {
	s.revision++
	rev := s.revision
	snapshot := s.sheet.Clone()
	s.tasks.Schedule(func(ctx context.Context) (Result, error) {
		plan, err := s.layouter.Layout(ctx, snapshot)
		if err != nil {
			return Result{}, fmt.Errorf("failed to lay out revision %d: %w", rev, err)
		}
		return Result{Revision: rev, Sheet: snapshot, Plan: plan}, nil
	})
}

func (s *Session) publish(res Result) {
	s.mu.Lock()
	if res.Revision != s.revision {
		s.mu.Unlock()
		s.log.Debug("dropping layout of old revision",
			zap.Uint64("revision", res.Revision))
		return
	}
	s.result = &res
	s.mu.Unlock()

	pages := 0
	if res.Plan != nil {
		pages = len(res.Plan.Pages)
	}
	s.log.Debug("layout published",
		zap.Uint64("revision", res.Revision),
		zap.Int("pages", pages))
	if s.onLayout != nil {
		s.onLayout(res)
	}
}
