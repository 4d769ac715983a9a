package capture

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/llmtap/llmtap/pkg/proxy"
)

// RecordWriter persists one record per call and returns the final path.
type RecordWriter interface {
	Write(v any) (string, error)
}

// Addon observes completed flows and persists a capture record for each
// LLM API call. It is a pure side channel: any failure anywhere in the
// capture path drops that one capture and nothing else. The observed
// traffic must never notice us.
type Addon struct {
	identity Identity
	writer   RecordWriter
	log      *zap.Logger

	wg sync.WaitGroup
}

// NewAddon creates a capture addon writing records through w.
func NewAddon(id Identity, w RecordWriter, log *zap.Logger) *Addon {
	if log == nil {
		log = zap.NewNop()
	}
	return &Addon{identity: id, writer: w, log: log}
}

// OnComplete assembles a record from the finished flow and hands it to the
// writer off the hot path. Non-POST flows and unknown hosts produce
// nothing: no record, no error, no log.
func (a *Addon) OnComplete(flow *proxy.Flow) {
	rec := a.assemble(flow)
	if rec == nil {
		return
	}
	a.wg.Add(1)
	go a.persist(rec)
}

// Flush blocks until all in-flight writes have finished. Test hook.
func (a *Addon) Flush() {
	a.wg.Wait()
}

func (a *Addon) assemble(flow *proxy.Flow) (rec *Record) {
	defer func() {
		if r := recover(); r != nil {
			rec = nil
		}
	}()
	return FromFlow(flow, a.identity, time.Now())
}

func (a *Addon) persist(rec *Record) {
	defer a.wg.Done()
	defer func() {
		_ = recover()
	}()
	if _, err := a.writer.Write(rec); err != nil {
		// Swallowed: a slow or broken disk loses this capture, not traffic.
		a.log.Debug("capture write failed", zap.Error(err))
	}
}
