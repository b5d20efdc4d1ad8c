package transport

import (
	"context"
	"net"
	"sync"
	"time"

	"chatd/internal/metrics"
	"chatd/internal/wire"

	"github.com/rs/zerolog"
)

// Dispatcher runs the accept loop (§4.E): accepting a connection, gating it
// past the admission guard, selecting a worker round-robin, and handing the
// connection off.
type Dispatcher struct {
	listener net.Listener
	workers  []*Worker
	guard    *AdmissionGuard
	logger   zerolog.Logger

	cursorMu sync.Mutex
	cursor   int
}

// NewDispatcher builds a dispatcher over listener, round-robining across
// workers. guard may be nil to disable the CPU-based admission check.
func NewDispatcher(listener net.Listener, workers []*Worker, guard *AdmissionGuard, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{listener: listener, workers: workers, guard: guard, logger: logger}
}

// Run accepts connections until the listener is closed, returning nil on a
// clean shutdown (ctx done) or the accept error otherwise.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		conn, err := d.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				d.logger.Error().Err(err).Msg("accept failed")
				return err
			}
		}
		configureKeepAlive(conn, d.logger)
		d.dispatch(ctx, conn)
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, conn net.Conn) {
	if d.guard != nil && d.guard.Overloaded() {
		metrics.IncConnectionsRejected("admission_guard")
		rejectAndClose(conn, wire.ErrServerFull, "Server is overloaded, please try again shortly\n", d.logger)
		return
	}

	worker := d.selectWorker()
	if worker == nil {
		metrics.IncConnectionsRejected("server_full")
		rejectAndClose(conn, wire.ErrServerFull, "Server is at capacity, please try again later\n", d.logger)
		return
	}

	worker.AcquireHandoff()
	if !worker.Notify(conn, ctx.Done()) {
		worker.ReleaseHandoff()
		worker.Release()
		rejectAndClose(conn, wire.ErrConnecting, "Server is shutting down\n", d.logger)
	}
}

// selectWorker implements the round-robin, capacity-gated probe of §4.E
// step 3: starting just after the last worker chosen, scan at most
// len(workers) candidates and reserve the first one under capacity.
func (d *Dispatcher) selectWorker() *Worker {
	n := len(d.workers)

	d.cursorMu.Lock()
	start := d.cursor
	d.cursorMu.Unlock()

	for i := 0; i < n; i++ {
		idx := (start + i) % n
		w := d.workers[idx]
		if w.TryReserve() {
			d.cursorMu.Lock()
			d.cursor = (idx + 1) % n
			d.cursorMu.Unlock()
			return w
		}
	}
	return nil
}

func rejectAndClose(conn net.Conn, cmd wire.Command, msg string, logger zerolog.Logger) {
	if err := wire.SendFrame(conn, cmd, msg); err != nil {
		logger.Debug().Err(err).Msg("failed to deliver rejection frame")
	}
	conn.Close()
}

// configureKeepAlive enables TCP keepalive on newly accepted connections so
// a half-open client is eventually detected even without application
// traffic.
func configureKeepAlive(conn net.Conn, logger zerolog.Logger) {
	tcpConn, ok := conn.(*net.TCPConn)
	if !ok {
		return
	}
	cfg := net.KeepAliveConfig{Enable: true, Idle: 5 * time.Second, Interval: time.Second, Count: 2}
	if err := tcpConn.SetKeepAliveConfig(cfg); err != nil {
		logger.Debug().Err(err).Msg("failed to configure keepalive")
	}
}
