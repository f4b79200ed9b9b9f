package kvstore

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/okian/onetoone/internal/adapters/blob"
	"github.com/okian/onetoone/pkg/logger"
	"github.com/okian/onetoone/pkg/metrics"
)

// ChangeFunc receives a document that changed remotely.
type ChangeFunc func(value json.RawMessage, version string)

type poller struct {
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

func (p *poller) halt() {
	p.once.Do(func() { close(p.stop) })
	<-p.done
}

// StartPolling checks key every interval and calls onChange when its version
// moves away from the cached one. A poller already running for key is stopped
// first. The returned func stops this poller; it is safe to call more than once.
// onChange runs on the poller goroutine and must not start or stop polling.
func (c *Client) StartPolling(ctx context.Context, key string, interval time.Duration, onChange ChangeFunc) (stop func()) {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()

	if old, ok := c.pollers[key]; ok {
		delete(c.pollers, key)
		old.halt()
	}
	if c.closed || interval <= 0 {
		return func() {}
	}

	p := &poller{stop: make(chan struct{}), done: make(chan struct{})}
	c.pollers[key] = p
	metrics.UpdateActivePollers(len(c.pollers))
	go c.poll(ctx, key, interval, onChange, p)

	c.logger.Debug(ctx, "polling started",
		logger.String("key", key),
		logger.Duration("interval", interval),
	)
	return func() { c.stopPoller(key, p) }
}

// StopPolling stops the poller of key, if any, and waits for it to exit.
func (c *Client) StopPolling(key string) {
	c.pollMu.Lock()
	p, ok := c.pollers[key]
	c.pollMu.Unlock()
	if ok {
		c.stopPoller(key, p)
	}
}

// Close stops every poller. Polling cannot be started afterwards.
func (c *Client) Close() {
	c.pollMu.Lock()
	defer c.pollMu.Unlock()
	c.closed = true
	for key, p := range c.pollers {
		delete(c.pollers, key)
		p.halt()
	}
	metrics.UpdateActivePollers(0)
}

func (c *Client) stopPoller(key string, p *poller) {
	c.pollMu.Lock()
	if c.pollers[key] == p {
		delete(c.pollers, key)
		metrics.UpdateActivePollers(len(c.pollers))
	}
	c.pollMu.Unlock()
	p.halt()
}

func (c *Client) poll(ctx context.Context, key string, interval time.Duration, onChange ChangeFunc, p *poller) {
	defer close(p.done)
	tk := time.NewTicker(interval)
	defer tk.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-tk.C:
			c.check(ctx, key, onChange)
		}
	}
}

// check compares the remote version with the cached one and refetches on change.
func (c *Client) check(ctx context.Context, key string, onChange ChangeFunc) {
	metrics.RecordPollCheck(key)
	remote, err := c.store.Head(ctx, c.container, key)
	if err != nil {
		if !errors.Is(err, blob.ErrNotFound) && ctx.Err() == nil {
			metrics.RecordPollCheckError()
			c.logger.Debug(ctx, "poll check failed",
				logger.String("key", key),
				logger.Error(err),
			)
		}
		return
	}
	if remote == c.Version(key) {
		return
	}

	obj, err := c.store.Get(ctx, c.container, key)
	if err != nil {
		metrics.RecordPollCheckError()
		return
	}
	if obj.Version == c.Version(key) {
		return
	}
	c.cache(key, obj.Data, obj.Version)
	metrics.RecordPollChange(key)
	c.logger.Debug(ctx, "remote change detected",
		logger.String("key", key),
		logger.String("version", obj.Version),
	)
	if onChange != nil {
		onChange(clone(obj.Data), obj.Version)
	}
}
