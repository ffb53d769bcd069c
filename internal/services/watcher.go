// Package services holds long-running background services.
package services

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/run-bigpig/watchdog/internal/agent"
	"github.com/run-bigpig/watchdog/internal/logger"
)

var watchLog = logger.New("watcher")

const (
	DefaultWatchInterval = 30 * time.Minute
	// DefaultWatchPrompt periodic check-up sent on the user's behalf
	DefaultWatchPrompt = "Run a routine check-up: check my portfolio health and the latest market news. " +
		"If any holding looks risky or the news is alarming, send me an alert."
)

// Asker runs one agent turn for a user
type Asker interface {
	Ask(ctx context.Context, user, input string, progress agent.ProgressCallback) (*agent.TurnResult, error)
}

// CheckResult outcome of one periodic check
type CheckResult struct {
	User   string
	At     time.Time
	Result *agent.TurnResult
	Err    error
}

// WatcherConfig watcher settings; zero values pick the defaults
type WatcherConfig struct {
	Users    []string
	Interval time.Duration
	Prompt   string
	// SkipMarketClosed skips rounds while US equity markets are closed
	SkipMarketClosed bool
	OnResult         func(CheckResult)
	Progress         agent.ProgressCallback
}

// Watcher periodically asks the agent to check each user's portfolio
type Watcher struct {
	asker    Asker
	cfg      WatcherConfig
	now      func() time.Time
	mu       sync.Mutex
	running  bool
	stopChan chan struct{}
	done     chan struct{}
}

// NewWatcher creates a watcher
func NewWatcher(asker Asker, cfg WatcherConfig) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultWatchInterval
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultWatchPrompt
	}
	return &Watcher{asker: asker, cfg: cfg, now: time.Now}
}

// safeCall runs fn, recovering a panic
func safeCall(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			watchLog.Error("panic recovered: %v", r)
		}
	}()
	fn()
}

// Start runs one round immediately and then one per interval
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return goerr.New("watcher already running")
	}
	if len(w.cfg.Users) == 0 {
		return goerr.New("no users to watch")
	}
	w.running = true
	w.stopChan = make(chan struct{})
	w.done = make(chan struct{})
	go w.loop(ctx)
	return nil
}

// Stop ends the loop and waits for the current round
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stopChan)
	done := w.done
	w.mu.Unlock()
	<-done
}

// Done is closed when the loop exits
func (w *Watcher) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

func (w *Watcher) loop(ctx context.Context) {
	defer close(w.done)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.round(ctx)
	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.cfg.SkipMarketClosed && IsMarketClosed(w.now()) {
				watchLog.Debug("market closed, skipping round")
				continue
			}
			w.round(ctx)
		}
	}
}

// round checks every user in order
func (w *Watcher) round(ctx context.Context) {
	for _, user := range w.cfg.Users {
		if ctx.Err() != nil {
			return
		}
		safeCall(func() { w.check(ctx, user) })
	}
}

func (w *Watcher) check(ctx context.Context, user string) {
	watchLog.Info("check-up for %s", user)
	res, err := w.asker.Ask(ctx, user, w.cfg.Prompt, w.cfg.Progress)
	if err != nil {
		watchLog.Warn("check-up for %s failed: %v", user, err)
	}
	if w.cfg.OnResult != nil {
		w.cfg.OnResult(CheckResult{User: user, At: w.now(), Result: res, Err: err})
	}
}

// newYork fixed US Eastern standard offset; DST is ignored
var newYork = time.FixedZone("EST", -5*60*60)

// IsMarketClosed reports whether t falls outside regular NYSE hours
// (Mon-Fri 09:30-16:00 Eastern). Holidays are not considered.
func IsMarketClosed(t time.Time) bool {
	et := t.In(newYork)
	switch et.Weekday() {
	case time.Saturday, time.Sunday:
		return true
	}
	minutes := et.Hour()*60 + et.Minute()
	return minutes < 9*60+30 || minutes >= 16*60
}
