// Package metrics declares the server's Prometheus instrumentation (§4.I).
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	connectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatd_connections_active",
		Help: "Current number of connected clients.",
	})
	connectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatd_connections_total",
		Help: "Total number of accepted connections.",
	})
	connectionsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatd_connections_rejected_total",
		Help: "Total number of rejected connections, by reason.",
	}, []string{"reason"})

	roomsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "chatd_rooms_active",
		Help: "Current number of in-use rooms.",
	})
	roomsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatd_rooms_created_total",
		Help: "Total number of rooms created.",
	})
	roomCapacityRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatd_rooms_capacity_rejections_total",
		Help: "Total number of room-create or room-join rejections due to capacity.",
	})

	messagesReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatd_messages_received_total",
		Help: "Total number of valid inbound frames processed.",
	})
	messagesBroadcast = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "chatd_messages_broadcast_total",
		Help: "Total number of room broadcast operations.",
	})
	protocolErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "chatd_protocol_errors_total",
		Help: "Total number of rejected frames, by error kind.",
	}, []string{"kind"})

	workerClients = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "chatd_worker_clients",
		Help: "Current number of clients owned by each worker.",
	}, []string{"worker"})
)

func init() {
	prometheus.MustRegister(
		connectionsActive, connectionsTotal, connectionsRejected,
		roomsActive, roomsCreated, roomCapacityRejections,
		messagesReceived, messagesBroadcast, protocolErrors,
		workerClients,
	)
}

func IncConnections() {
	connectionsActive.Inc()
	connectionsTotal.Inc()
}

func DecConnections() {
	connectionsActive.Dec()
}

func IncConnectionsRejected(reason string) {
	connectionsRejected.WithLabelValues(reason).Inc()
}

func SetRoomsActive(n int) {
	roomsActive.Set(float64(n))
}

func IncRoomsCreated() {
	roomsCreated.Inc()
}

func IncRoomCapacityRejections() {
	roomCapacityRejections.Inc()
}

func IncMessagesReceived() {
	messagesReceived.Inc()
}

func IncMessagesBroadcast() {
	messagesBroadcast.Inc()
}

func IncProtocolErrors(kind string) {
	protocolErrors.WithLabelValues(kind).Inc()
}

func SetWorkerClients(workerID int, n int) {
	workerClients.WithLabelValues(strconv.Itoa(workerID)).Set(float64(n))
}
