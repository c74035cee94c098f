// Package dispatch runs gateway requests as units of work that report
// pending, fulfilled and rejected phases to the dataset reducer.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teledash/teledash/internal/dataset"
	"github.com/teledash/teledash/internal/query"
	"github.com/teledash/teledash/internal/remote"
)

// Gateway is the remote API as seen by the dispatcher. Records in a page or
// in a Recent are optional; the dispatcher rebuilds them from the typed rows
// when a gateway leaves them nil.
type Gateway interface {
	ListMessages(ctx context.Context, d query.Descriptor) (*query.Page[query.Message], error)
	ListRawMessages(ctx context.Context, d query.Descriptor) (*query.Page[query.RawMessage], error)
	FetchRecent(ctx context.Context) (*query.Recent, error)
	ProcessMessages(ctx context.Context, payload any) (*query.Ack, error)
}

// Sink receives phase events.
type Sink func(dataset.Event)

// Call is one request. Create calls with the Dispatcher builders so each gets
// a fresh request id.
type Call struct {
	ID       uint64
	Op       dataset.Operation
	Detached bool

	// cancellable calls may be aborted when a newer call targets the same table.
	cancellable bool
	run         func(ctx context.Context) (dataset.Result, error)
}

// Pending returns the event that marks the call as started.
func (c *Call) Pending() dataset.Event {
	return dataset.Event{Op: c.Op, Phase: dataset.Pending, RequestID: c.ID, Detached: c.Detached}
}

func (c *Call) execute(ctx context.Context) (res dataset.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", c.Op, r)
		}
	}()
	return c.run(ctx)
}

func (c *Call) outcome(res dataset.Result, err error) dataset.Event {
	ev := dataset.Event{Op: c.Op, RequestID: c.ID, Detached: c.Detached}
	if err != nil {
		ev.Phase = dataset.Rejected
		ev.Err = failureMessage(c.Op, err)
		return ev
	}
	ev.Phase = dataset.Fulfilled
	ev.Result = res
	return ev
}

// failureMessage returns the display message for err. Gateway errors carry
// their own; anything else gets the operation default.
func failureMessage(op dataset.Operation, err error) string {
	var re *remote.Error
	if errors.As(err, &re) && re.Message != "" {
		return re.Message
	}
	return gatewayOp(op).DefaultMessage()
}

func gatewayOp(op dataset.Operation) remote.Op {
	switch op {
	case dataset.OpListMessages:
		return remote.OpListMessages
	case dataset.OpListRawMessages:
		return remote.OpListRawMessages
	case dataset.OpFetchRecent:
		return remote.OpFetchRecent
	case dataset.OpProcessMessages:
		return remote.OpProcessMessages
	default:
		return remote.Op(op)
	}
}

type inflight struct {
	id     uint64
	cancel context.CancelFunc
}

// Dispatcher builds and runs calls against a gateway.
type Dispatcher struct {
	gw     Gateway
	seq    atomic.Uint64
	logger *slog.Logger

	mu       sync.Mutex
	inflight map[dataset.Slice]inflight
}

// New creates a dispatcher for gw.
func New(gw Gateway) *Dispatcher {
	return &Dispatcher{
		gw:       gw,
		logger:   slog.Default(),
		inflight: make(map[dataset.Slice]inflight),
	}
}

// WithLogger sets the logger for the dispatcher.
func (d *Dispatcher) WithLogger(logger *slog.Logger) *Dispatcher {
	d.logger = logger
	return d
}

func (d *Dispatcher) newCall(op dataset.Operation, cancellable, detached bool, run func(context.Context) (dataset.Result, error)) *Call {
	return &Call{
		ID:          d.seq.Add(1),
		Op:          op,
		Detached:    detached,
		cancellable: cancellable,
		run:         run,
	}
}

func (d *Dispatcher) listMessages(desc query.Descriptor, detached bool) *Call {
	return d.newCall(dataset.OpListMessages, true, detached, func(ctx context.Context) (dataset.Result, error) {
		page, err := d.gw.ListMessages(ctx, desc)
		if err != nil {
			return dataset.Result{}, err
		}
		records := page.Records
		if records == nil {
			records = query.MessageRecords(page.Rows)
		}
		return dataset.Result{Messages: page.Rows, Records: records, Total: page.Total}, nil
	})
}

func (d *Dispatcher) listRawMessages(desc query.Descriptor, detached bool) *Call {
	return d.newCall(dataset.OpListRawMessages, true, detached, func(ctx context.Context) (dataset.Result, error) {
		page, err := d.gw.ListRawMessages(ctx, desc)
		if err != nil {
			return dataset.Result{}, err
		}
		records := page.Records
		if records == nil {
			records = query.RawMessageRecords(page.Rows)
		}
		return dataset.Result{RawMessages: page.Rows, Records: records, Total: page.Total}, nil
	})
}

// ListMessages builds a call that loads a page of processed messages.
func (d *Dispatcher) ListMessages(desc query.Descriptor) *Call {
	return d.listMessages(desc, false)
}

// ListRawMessages builds a call that loads a page of raw messages.
func (d *Dispatcher) ListRawMessages(desc query.Descriptor) *Call {
	return d.listRawMessages(desc, false)
}

// ExportMessages builds a detached processed-message load. Its outcome goes
// to the caller only; the paginated table is never touched.
func (d *Dispatcher) ExportMessages(desc query.Descriptor) *Call {
	return d.listMessages(desc, true)
}

// ExportRawMessages is the raw-table counterpart of ExportMessages.
func (d *Dispatcher) ExportRawMessages(desc query.Descriptor) *Call {
	return d.listRawMessages(desc, true)
}

// FetchRecent builds a call that ingests new raw messages.
func (d *Dispatcher) FetchRecent() *Call {
	return d.newCall(dataset.OpFetchRecent, false, false, func(ctx context.Context) (dataset.Result, error) {
		recent, err := d.gw.FetchRecent(ctx)
		if err != nil {
			return dataset.Result{}, err
		}
		records := recent.Records
		if records == nil {
			records = query.RawMessageRecords(recent.Messages)
		}
		return dataset.Result{
			RawMessages: recent.Messages,
			Records:     records,
			Count:       recent.Count,
		}, nil
	})
}

// ProcessMessages builds a call that moves raw messages into processed storage.
func (d *Dispatcher) ProcessMessages(payload any) *Call {
	return d.newCall(dataset.OpProcessMessages, false, false, func(ctx context.Context) (dataset.Result, error) {
		ack, err := d.gw.ProcessMessages(ctx, payload)
		if err != nil {
			return dataset.Result{}, err
		}
		return dataset.Result{Ack: ack}, nil
	})
}

// start registers call as the in-flight call of its table, cancelling the
// cancellable call it supersedes. The returned func unregisters it.
func (d *Dispatcher) start(ctx context.Context, call *Call) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	if call.Detached {
		return ctx, cancel
	}

	target := call.Op.Target()
	d.mu.Lock()
	if prev, ok := d.inflight[target]; ok && prev.id < call.ID {
		if prev.cancel != nil {
			d.logger.Debug("cancelling superseded request", "table", target, "id", prev.id, "by", call.ID)
			prev.cancel()
		}
		delete(d.inflight, target)
	}
	if _, ok := d.inflight[target]; !ok {
		entry := inflight{id: call.ID}
		if call.cancellable {
			entry.cancel = cancel
		}
		d.inflight[target] = entry
	}
	d.mu.Unlock()

	return ctx, func() {
		d.mu.Lock()
		if cur, ok := d.inflight[target]; ok && cur.id == call.ID {
			delete(d.inflight, target)
		}
		d.mu.Unlock()
		cancel()
	}
}

func (d *Dispatcher) run(ctx context.Context, call *Call) (dataset.Event, dataset.Result, error) {
	ctx, done := d.start(ctx, call)
	defer done()

	res, err := call.execute(ctx)
	ev := call.outcome(res, err)
	if err != nil {
		d.logger.Debug("request failed", "op", call.Op, "id", call.ID, "error", err)
	} else {
		d.logger.Debug("request done", "op", call.Op, "id", call.ID)
	}
	return ev, res, err
}

// Run performs call and returns its outcome event. The caller is
// responsible for having reduced call.Pending() first.
func (d *Dispatcher) Run(ctx context.Context, call *Call) dataset.Event {
	ev, _, _ := d.run(ctx, call)
	return ev
}

// Execute emits the pending event to sink, performs call, emits the outcome
// and returns the payload or failure to the caller.
func (d *Dispatcher) Execute(ctx context.Context, sink Sink, call *Call) (dataset.Result, error) {
	if sink == nil {
		sink = func(dataset.Event) {}
	}
	sink(call.Pending())
	ev, res, err := d.run(ctx, call)
	sink(ev)
	return res, err
}
