// Package transport wires together the dispatcher, the worker pool, and
// the admission guard into a running server (§4.D, §4.E, §4.J).
//
// The original design's per-worker epoll reactor is expressed here as a
// goroutine reading from a buffered notification channel: the Go runtime's
// netpoller plays the role epoll_wait played in the original, and the
// channel plays the role of the eventfd notification endpoint a dispatcher
// thread would write to.
package transport

import (
	"net"
	"runtime/debug"
	"sync"

	"chatd/internal/client"
	"chatd/internal/metrics"
	"chatd/internal/room"

	"github.com/rs/zerolog"
)

// Worker owns a disjoint, fixed-capacity slice of client connections and
// runs its own notification-consumer loop (§4.D).
type Worker struct {
	id         int
	maxClients int
	registry   *room.Registry
	logger     zerolog.Logger

	notify     chan net.Conn  // buffered to maxClients; the dispatcher hands off sockets here
	handoffAck chan struct{} // size 1, pre-loaded; serializes in-flight handoffs (§9)

	numMu      sync.Mutex
	numClients int

	slotMu  sync.Mutex
	clients []*client.Client // fixed length == maxClients; nil entries are free

	wg sync.WaitGroup
}

// NewWorker builds a worker with room for maxClients simultaneous
// connections.
func NewWorker(id, maxClients int, registry *room.Registry, logger zerolog.Logger) *Worker {
	w := &Worker{
		id:         id,
		maxClients: maxClients,
		registry:   registry,
		logger:     logger.With().Int("worker", id).Logger(),
		notify:     make(chan net.Conn, maxClients),
		handoffAck: make(chan struct{}, 1),
		clients:    make([]*client.Client, maxClients),
	}
	w.handoffAck <- struct{}{}
	return w
}

// TryReserve claims a client slot ahead of the dispatcher's handoff (§4.E
// step 3). Returns false if the worker is already at capacity.
func (w *Worker) TryReserve() bool {
	w.numMu.Lock()
	defer w.numMu.Unlock()
	if w.numClients >= w.maxClients {
		return false
	}
	w.numClients++
	return true
}

// Release gives back a slot that TryReserve claimed: on a rolled-back
// handoff (§4.E step 6), when admit finds no free client slot, and when a
// client goroutine exits.
func (w *Worker) Release() {
	w.numMu.Lock()
	w.numClients--
	w.numMu.Unlock()
}

// Load returns the worker's current reserved-slot count, reported through
// the per-worker clients gauge.
func (w *Worker) Load() int {
	w.numMu.Lock()
	defer w.numMu.Unlock()
	return w.numClients
}

// AcquireHandoff blocks until this worker has acknowledged its previous
// handoff, enforcing one in-flight handoff at a time (§4.E step 5, §9).
func (w *Worker) AcquireHandoff() {
	<-w.handoffAck
}

// ReleaseHandoff returns the handoff token without a notification having
// been delivered, used when Notify itself could not proceed (§4.E step 6).
func (w *Worker) ReleaseHandoff() {
	w.handoffAck <- struct{}{}
}

// Notify hands a freshly accepted connection to the worker's reactor loop.
// It reports ok=false if done fires first (server shutting down).
func (w *Worker) Notify(conn net.Conn, done <-chan struct{}) (ok bool) {
	select {
	case w.notify <- conn:
		return true
	case <-done:
		return false
	}
}

// Run is the worker's notification-consumer loop. Each accepted connection
// becomes its own client goroutine; Run itself never blocks on a client's
// lifetime. It returns once notify is closed and every spawned client
// goroutine has exited.
func (w *Worker) Run() {
	for conn := range w.notify {
		w.handoffAck <- struct{}{}
		w.admit(conn)
	}
	w.wg.Wait()
}

func (w *Worker) admit(conn net.Conn) {
	idx, ok := w.allocateSlot()
	if !ok {
		w.logger.Warn().Msg("no free client slot despite reserved capacity")
		w.Release()
		conn.Close()
		return
	}

	c := client.New(conn, w.registry, w.logger)
	w.slotMu.Lock()
	w.clients[idx] = c
	w.slotMu.Unlock()

	metrics.IncConnections()
	metrics.SetWorkerClients(w.id, w.Load())

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				w.logger.Error().
					Interface("panic", r).
					Str("stack", string(debug.Stack())).
					Msg("client goroutine panic recovered")
			}
			w.freeSlot(idx)
			w.Release()
			metrics.DecConnections()
			metrics.SetWorkerClients(w.id, w.Load())
		}()
		c.Serve()
	}()
}

func (w *Worker) allocateSlot() (int, bool) {
	w.slotMu.Lock()
	defer w.slotMu.Unlock()
	for i, c := range w.clients {
		if c == nil {
			return i, true
		}
	}
	return -1, false
}

func (w *Worker) freeSlot(idx int) {
	w.slotMu.Lock()
	w.clients[idx] = nil
	w.slotMu.Unlock()
}

// Shutdown closes the notification channel, letting Run drain in-flight
// handoffs and return once every client goroutine has finished.
func (w *Worker) Shutdown() {
	close(w.notify)
}
