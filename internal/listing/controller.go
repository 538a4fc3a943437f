// Package listing drives the snippet list: filter state, debounced name
// search, pagination and the rendered view of the current query.
package listing

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/bassista/snipsync/internal/apperror"
	"github.com/bassista/snipsync/internal/cache"
	"github.com/bassista/snipsync/internal/logger"
	"github.com/bassista/snipsync/internal/model"
)

const DefaultPageSize = 10

// Source is the slice of the resource service the controller needs.
type Source interface {
	ListSnippets(ctx context.Context, filter model.ListFilter) (model.Page, error)
	RefreshSnippets(ctx context.Context, filter model.ListFilter) (model.Page, error)
	Cache() cache.Reader
}

// View is the rendered state of the list. Count, Page and PageSize are the
// values last reported by the server for the current query.
type View struct {
	Version     uint64
	Filter      model.ListFilter
	PendingName string
	Key         string
	Status      cache.Status
	Items       []model.SnippetDescriptor
	Count       int
	Page        int
	PageSize    int
	Err         error
}

// Option customizes a Controller.
type Option func(*Controller)

func WithClock(clock Clock) Option {
	return func(c *Controller) { c.clock = clock }
}

func WithSearchDebounce(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.delay = d
		}
	}
}

// WithFilter sets the initial filter. A non-positive page size falls back to
// DefaultPageSize and the name is trimmed.
func WithFilter(f model.ListFilter) Option {
	return func(c *Controller) { c.filter = f }
}

// subscriber coalesces views so fn sees them in version order, skipping any
// superseded while it was busy.
type subscriber struct {
	fn       func(View)
	mu       sync.Mutex
	next     *View
	accepted uint64
	draining bool
}

// Controller owns one list view. The filter is replaced as a whole on every
// change so the derived cache key changes atomically.
type Controller struct {
	src   Source
	clock Clock
	delay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	search *Debouncer

	mu          sync.Mutex
	filter      model.ListFilter
	pending     string
	view        View
	version     uint64
	unsubscribe func()
	subs        map[uint64]*subscriber
	nextSub     uint64
	closed      bool
}

func New(src Source, opts ...Option) *Controller {
	c := &Controller{
		src:   src,
		delay: DefaultSearchDebounce,
		subs:  make(map[uint64]*subscriber),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.filter.PageSize < 1 {
		c.filter.PageSize = DefaultPageSize
	}
	if c.filter.Page < 0 {
		c.filter.Page = 0
	}
	c.filter.NameSubstring = strings.TrimSpace(c.filter.NameSubstring)
	c.pending = c.filter.NameSubstring
	c.search = NewDebouncer(c.delay, c.clock)
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.view = View{Filter: c.filter, PendingName: c.pending, Key: c.filter.Key(), PageSize: c.filter.PageSize}
	return c
}

// Start subscribes to the initial query and loads it.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	f := c.filter
	c.watchLocked(f)
	c.mu.Unlock()
	c.load(f)
}

// Filter returns the applied filter.
func (c *Controller) Filter() model.ListFilter {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.filter
}

// View returns the latest rendered view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// Subscribe registers fn for every re-render. Views reach fn in version order;
// an older view is never delivered after a newer one.
func (c *Controller) Subscribe(fn func(View)) func() {
	c.mu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = &subscriber{fn: fn}
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// SetNameText records typed search text. The filter picks it up once typing
// has been quiet for the debounce window.
func (c *Controller) SetNameText(text string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending = text
	c.mu.Unlock()
	c.render()
	c.search.Schedule(c.applyName)
}

func (c *Controller) applyName() {
	c.update(func(f model.ListFilter) model.ListFilter {
		f.NameSubstring = strings.TrimSpace(c.pending)
		f.Page = 0
		return f
	})
}

func (c *Controller) SetLanguage(language string) {
	c.update(func(f model.ListFilter) model.ListFilter {
		f.Language = strings.TrimSpace(language)
		f.Page = 0
		return f
	})
}

func (c *Controller) SetRelation(r model.Relation) {
	c.update(func(f model.ListFilter) model.ListFilter {
		f.Relation = r
		f.Page = 0
		return f
	})
}

func (c *Controller) SetValidity(v model.Validity) {
	c.update(func(f model.ListFilter) model.ListFilter {
		f.Validity = v
		f.Page = 0
		return f
	})
}

func (c *Controller) SetSort(by string, dir model.SortDir) {
	c.update(func(f model.ListFilter) model.ListFilter {
		f.SortBy = by
		f.SortDir = dir
		f.Page = 0
		return f
	})
}

// SetPage moves to page. Negative pages clamp to 0.
func (c *Controller) SetPage(page int) {
	if page < 0 {
		page = 0
	}
	c.update(func(f model.ListFilter) model.ListFilter {
		f.Page = page
		return f
	})
}

// NextPage advances when the server-reported count has more items.
func (c *Controller) NextPage() bool {
	c.mu.Lock()
	f, count := c.filter, c.view.Count
	c.mu.Unlock()
	if (f.Page+1)*f.PageSize >= count {
		return false
	}
	c.SetPage(f.Page + 1)
	return true
}

func (c *Controller) PrevPage() bool {
	f := c.Filter()
	if f.Page == 0 {
		return false
	}
	c.SetPage(f.Page - 1)
	return true
}

// SetPageSize changes the page size and returns to page 0.
func (c *Controller) SetPageSize(size int) error {
	if size < 1 {
		return apperror.ValidationFailed("pageSize", "pageSize must be at least 1")
	}
	c.update(func(f model.ListFilter) model.ListFilter {
		f.PageSize = size
		f.Page = 0
		return f
	})
	return nil
}

// Refresh refetches the current query while keeping the current items
// visible. The returned channel closes when the fetch completes.
func (c *Controller) Refresh() <-chan struct{} {
	done := make(chan struct{})
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(done)
		return done
	}
	f := c.filter
	c.mu.Unlock()

	go func() {
		defer close(done)
		if _, err := c.src.RefreshSnippets(c.ctx, f); err != nil {
			c.loadFailed(f, err)
		}
		c.render()
	}()
	return done
}

// Close disposes the pending search timer and the cache subscription. No view
// is rendered afterwards.
func (c *Controller) Close() {
	c.search.Close()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
	c.subs = map[uint64]*subscriber{}
	c.mu.Unlock()
	c.cancel()
}

func (c *Controller) update(change func(model.ListFilter) model.ListFilter) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	next := change(c.filter)
	if next == c.filter {
		c.mu.Unlock()
		return
	}
	c.filter = next
	c.view.Err = nil
	c.watchLocked(next)
	c.mu.Unlock()

	logger.WithComponent("listing").Debugf("filter changed: %s", next.Key())
	c.render()
	c.load(next)
}

// watchLocked moves the cache subscription to the key of f.
func (c *Controller) watchLocked(f model.ListFilter) {
	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	key := f.Key()
	c.unsubscribe = c.src.Cache().Subscribe(key, func(cache.Entry) {
		c.render()
	})
}

func (c *Controller) load(f model.ListFilter) {
	go func() {
		if _, err := c.src.ListSnippets(c.ctx, f); err != nil {
			c.loadFailed(f, err)
		}
		c.render()
	}()
}

// loadFailed keeps errors the cache does not record, such as local
// validation failures, for the query they belong to.
func (c *Controller) loadFailed(f model.ListFilter, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.filter != f {
		logger.WithComponent("listing").Debugf("discarding result for superseded query %s", f.Key())
		return
	}
	c.view.Err = err
}

// render rebuilds the view from the cache entry of the current key. Responses
// for any other key are never rendered.
func (c *Controller) render() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	f := c.filter
	entry := c.src.Cache().Peek(f.Key())

	v := c.view
	v.Filter = f
	v.PendingName = c.pending
	v.Key = f.Key()
	v.Status = entry.Status

	page, ok := cache.ValueAs[model.Page](entry)
	if !ok && entry.Status == cache.StatusError {
		page, ok = cache.LastGoodAs[model.Page](entry)
	}
	if ok {
		v.Items = page.Items
		v.Count = page.Total
		v.Page = page.Page
		v.PageSize = page.PageSize
	} else {
		v.Items = nil
		v.Count = 0
		v.Page = f.Page
		v.PageSize = f.PageSize
	}
	if entry.Status == cache.StatusError {
		v.Err = entry.Err
	} else if entry.Status == cache.StatusFresh {
		v.Err = nil
	}

	c.version++
	v.Version = c.version
	c.view = v
	subs := make([]*subscriber, 0, len(c.subs))
	for _, s := range c.subs {
		subs = append(subs, s)
	}
	c.mu.Unlock()

	for _, s := range subs {
		s.deliver(v)
	}
}

func (s *subscriber) deliver(v View) {
	s.mu.Lock()
	if v.Version <= s.accepted {
		s.mu.Unlock()
		return
	}
	s.accepted = v.Version
	s.next = &v
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	for s.next != nil {
		view := *s.next
		s.next = nil
		s.mu.Unlock()
		s.fn(view)
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}
