package plugin

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/ayusman/sitstand/internal/session"
)

// DefaultQueueSize bounds the number of requests waiting for a plugin.
const DefaultQueueSize = 16

// RequestFor maps a session event to a plugin request. Phase and start
// events have no plugin action.
func RequestFor(e session.Event) (Request, bool) {
	req := Request{Event: string(e.Type), SessionID: e.SessionID}

	switch e.Type {
	case session.EventCue:
		req.Action = ActionSpeak
		req.Text = e.Text
		req.Params, _ = json.Marshal(map[string]string{"cue": string(e.Cue)})
	case session.EventRep, session.EventRejected:
		if e.Rep == nil {
			return Request{}, false
		}
		req.Action = ActionRep
		req.Params, _ = json.Marshal(e.Rep)
	case session.EventEnded:
		if e.Summary == nil {
			return Request{}, false
		}
		req.Action = ActionSummary
		req.Text = string(e.Reason)
		req.Params, _ = json.Marshal(e.Summary)
	default:
		return Request{}, false
	}
	return req, true
}

// Dispatcher forwards session events to plugins on its own goroutine so that
// a slow plugin never stalls the frame loop. When the queue is full new
// requests are dropped.
type Dispatcher struct {
	mgr    *Manager
	exec   *Executor
	target string
	config json.RawMessage

	queue chan Request
	wg    sync.WaitGroup
	once  sync.Once
}

// NewDispatcher creates a dispatcher. An empty target sends each request to
// every plugin that declares its action.
func NewDispatcher(mgr *Manager, exec *Executor, target string, queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Dispatcher{
		mgr:    mgr,
		exec:   exec,
		target: target,
		queue:  make(chan Request, queueSize),
	}
}

// SetConfig sets the plugin config attached to every request.
func (d *Dispatcher) SetConfig(cfg json.RawMessage) {
	d.config = cfg
}

// Handle is a session.Handler.
func (d *Dispatcher) Handle(e session.Event) {
	req, ok := RequestFor(e)
	if !ok {
		return
	}
	req.Config = d.config

	select {
	case d.queue <- req:
	default:
		log.Printf("Plugin queue full, dropping %s request", req.Action)
	}
}

// Start delivers queued requests on a new goroutine until ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.run(ctx)
	}()
}

func (d *Dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-d.queue:
			d.deliver(ctx, req)
		}
	}
}

// Drain delivers whatever is queued and returns.
func (d *Dispatcher) Drain(ctx context.Context) {
	for {
		select {
		case req := <-d.queue:
			d.deliver(ctx, req)
		default:
			return
		}
	}
}

// Wait blocks until the goroutine started by Start has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, req Request) {
	plugins, err := d.mgr.Resolve(d.target, req.Action)
	if err != nil {
		d.once.Do(func() { log.Printf("Plugin dispatch disabled: %v", err) })
		return
	}
	for _, p := range plugins {
		resp, err := d.exec.Execute(ctx, p, &req)
		if err != nil {
			log.Printf("Plugin %s %s: %v", p.Manifest.Name, req.Action, err)
			continue
		}
		if !resp.Success {
			log.Printf("Plugin %s %s failed: %s", p.Manifest.Name, req.Action, resp.Error)
		}
	}
}
