// Package metrics defines the Prometheus instrumentation shared by the
// streaming pipeline. Commands expose it via promhttp.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// FramesTotal counts every raw frame delivered by a stream socket.
	FramesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketsync",
		Subsystem: "ws",
		Name:      "frames_total",
		Help:      "Total number of raw frames received from the feed",
	})

	// DecodeErrors counts frames dropped because they failed to parse.
	DecodeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketsync",
		Subsystem: "router",
		Name:      "decode_errors_total",
		Help:      "Frames dropped due to malformed JSON or field values",
	})

	// UnknownFrames counts frames dropped because the event kind or
	// stream was not recognized.
	UnknownFrames = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketsync",
		Subsystem: "router",
		Name:      "unknown_frames_total",
		Help:      "Frames dropped due to an unrecognized event kind",
	})

	// EventsRouted counts typed events dispatched to the store, by kind.
	EventsRouted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketsync",
		Subsystem: "router",
		Name:      "events_routed_total",
		Help:      "Typed events dispatched to the reconciliation store",
	}, []string{"kind"})

	// Reconnects counts reconnection attempts after a socket close or error.
	Reconnects = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketsync",
		Subsystem: "stream",
		Name:      "reconnects_total",
		Help:      "Reconnection attempts after socket close or error",
	})

	// BufferDrops counts frames dropped because the socket buffer was full.
	BufferDrops = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "marketsync",
		Subsystem: "ws",
		Name:      "buffer_drops_total",
		Help:      "Frames dropped because the message buffer was full",
	})

	// FlashTransitions counts directional flash transitions, by direction.
	FlashTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketsync",
		Subsystem: "store",
		Name:      "flash_transitions_total",
		Help:      "Directional price flash transitions",
	}, []string{"direction"})
)

// Register registers all metrics in the given registry, or the default
// registerer when none is provided. Safe to call more than once.
func Register(registerers ...prometheus.Registerer) {
	once.Do(func() {
		var reg prometheus.Registerer
		if len(registerers) > 0 && registerers[0] != nil {
			reg = registerers[0]
		} else {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(
			FramesTotal,
			DecodeErrors,
			UnknownFrames,
			EventsRouted,
			Reconnects,
			BufferDrops,
			FlashTransitions,
		)
	})
}
