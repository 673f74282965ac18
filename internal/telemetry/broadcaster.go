// Package telemetry fans engine events out to TCP subscribers (dashboards,
// monitors). Each event is one 4-byte big-endian length header followed by
// a msgpack body. Delivery is best-effort: a dead or slow subscriber is
// dropped, never waited on.
package telemetry

import (
	"context"
	"encoding/binary"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/crosslight-io/crosslight/engine/internal/sequencer"
)

const writeTimeout = 100 * time.Millisecond

// Event is one broadcast message.
type Event struct {
	Kind        string `msgpack:"kind"`
	Phase       string `msgpack:"phase,omitempty"`
	Road        int    `msgpack:"road,omitempty"`
	DeadlineMS  int64  `msgpack:"deadlineMs,omitempty"`
	TimestampMS int64  `msgpack:"timestampMs"`
}

// Broadcaster accepts subscriber connections and pushes events to all of
// them.
type Broadcaster struct {
	logger *slog.Logger
	ln     net.Listener

	mu    sync.Mutex
	conns map[string]net.Conn
}

// NewBroadcaster creates a broadcaster with no subscribers.
func NewBroadcaster(logger *slog.Logger) *Broadcaster {
	return &Broadcaster{
		logger: logger,
		conns:  make(map[string]net.Conn),
	}
}

// Listen binds addr and returns the bound address (useful with ":0").
func (b *Broadcaster) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	b.ln = ln
	return ln.Addr(), nil
}

// Serve accepts subscribers until ctx is cancelled. Listen must have been
// called first.
func (b *Broadcaster) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		b.ln.Close()
	}()

	for {
		conn, err := b.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		id := uuid.NewString()
		b.mu.Lock()
		b.conns[id] = conn
		b.mu.Unlock()
		b.logger.Info("telemetry subscriber connected", "id", id, "remote", conn.RemoteAddr().String())
	}
}

// Publish sends ev to every subscriber, dropping any that fail.
func (b *Broadcaster) Publish(ev Event) {
	ev.TimestampMS = time.Now().UnixMilli()
	payload, err := msgpack.Marshal(&ev)
	if err != nil {
		b.logger.Error("marshal telemetry event", "err", err)
		return
	}

	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	frame := append(hdr[:], payload...)

	b.mu.Lock()
	defer b.mu.Unlock()
	for id, conn := range b.conns {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := conn.Write(frame); err != nil {
			b.logger.Info("dropping telemetry subscriber", "id", id, "err", err)
			conn.Close()
			delete(b.conns, id)
		}
	}
}

// SubscriberCount returns the number of live subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.conns)
}

// Close drops all subscribers.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, conn := range b.conns {
		conn.Close()
		delete(b.conns, id)
	}
}

// OnPhaseChange implements sequencer.Observer.
func (b *Broadcaster) OnPhaseChange(_, to sequencer.State) {
	ev := Event{
		Kind:  "phase_change",
		Phase: to.Phase.String(),
		Road:  to.Road,
	}
	if !to.Until.IsZero() {
		ev.DeadlineMS = to.Until.UnixMilli()
	}
	b.Publish(ev)
}

var _ sequencer.Observer = (*Broadcaster)(nil)
