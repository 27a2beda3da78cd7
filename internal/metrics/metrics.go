package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveSessions prometheus.Gauge

	EventsHandled *prometheus.CounterVec // kind label: button|text|location|document

	TracksIngested   prometheus.Counter
	TrackParseErrs   prometheus.Counter
	RoutesSaved      prometheus.Counter
	StopsSaved       prometheus.Counter
	SaveErrs         prometheus.Counter
	SessionsCanceled prometheus.Counter
	SessionsSwept    prometheus.Counter

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	SaveDuration    prometheus.Histogram
	PublishDuration prometheus.Histogram
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "surveybot_active_sessions",
			Help: "Number of live conversation sessions.",
		}),
		EventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "surveybot_events_handled_total",
			Help: "Total inbound chat events handled.",
		}, []string{"kind"}),
		TracksIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveybot_tracks_ingested_total",
			Help: "Total GPX documents ingested successfully.",
		}),
		TrackParseErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveybot_track_parse_errors_total",
			Help: "Total malformed GPX uploads.",
		}),
		RoutesSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveybot_routes_saved_total",
			Help: "Total full route sessions persisted.",
		}),
		StopsSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveybot_stops_saved_total",
			Help: "Total bus stops persisted.",
		}),
		SaveErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveybot_save_errors_total",
			Help: "Total failed data-store writes.",
		}),
		SessionsCanceled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveybot_sessions_canceled_total",
			Help: "Total sessions canceled by the user.",
		}),
		SessionsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveybot_sessions_swept_total",
			Help: "Total idle sessions removed by the TTL sweep.",
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveybot_nats_published_total",
			Help: "Total NATS survey events published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "surveybot_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "surveybot_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		SaveDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "surveybot_save_duration_seconds",
			Help:    "Duration of persistence-gateway writes.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "surveybot_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	// Register
	reg.MustRegister(
		c.ActiveSessions, c.EventsHandled,
		c.TracksIngested, c.TrackParseErrs,
		c.RoutesSaved, c.StopsSaved, c.SaveErrs,
		c.SessionsCanceled, c.SessionsSwept,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.SaveDuration, c.PublishDuration,
	)

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}

// Adapter methods satisfying the publisher's metrics interface; the
// collector itself stays optional (nil) at every call site.

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) NATSSetConnected(connected bool) {
	if connected {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}
