// Package publisher pushes completed-survey events to NATS for
// downstream consumers (dashboards, tile refresh). Publishing is
// best-effort: a failure is counted and logged, never surfaced to the
// user flow.
package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"transitlab-bot/internal/survey"
)

type NATSPublisher struct {
	nc          *nats.Conn
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("transitlab-bot"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, logSubjects: logSubjects, metrics: m}, nil
}

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

type RouteRecordedMessage struct {
	SessionID     string    `json:"sessionId"`
	Username      string    `json:"username"`
	VehicleType   string    `json:"vehicleType"`
	Source        string    `json:"source"`
	Destination   string    `json:"destination"`
	Fare          string    `json:"fare"`
	Condition     string    `json:"vehicleCondition"`
	RoutingPoints int       `json:"routingPoints"`
	BoardingMarks int       `json:"boardingMarks"`
	Timestamp     time.Time `json:"timestamp"`
}

type StopRecordedMessage struct {
	SessionID   string    `json:"sessionId"`
	Username    string    `json:"username"`
	VehicleType string    `json:"vehicleType"`
	Destination string    `json:"destination"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Timestamp   time.Time `json:"timestamp"`
}

// PublishRoute emits a route-recorded event on survey.route.<vehicle>.
func (p *NATSPublisher) PublishRoute(rec survey.RouteRecord) error {
	msg := RouteRecordedMessage{
		SessionID:     rec.SessionID,
		Username:      rec.Username,
		VehicleType:   rec.VehicleType,
		Source:        rec.Source,
		Destination:   rec.Destination,
		Fare:          rec.Fare,
		Condition:     rec.Condition,
		RoutingPoints: len(rec.Track.Routing),
		BoardingMarks: len(rec.Track.Boarding),
		Timestamp:     rec.RecordedAt,
	}
	subject := fmt.Sprintf("survey.route.%s", subjectToken(rec.VehicleType))
	return p.publish(subject, msg)
}

// PublishStop emits a stop-recorded event on survey.stop.<vehicle>.
func (p *NATSPublisher) PublishStop(rec survey.StopRecord) error {
	msg := StopRecordedMessage{
		SessionID:   rec.SessionID,
		Username:    rec.Username,
		VehicleType: rec.VehicleType,
		Destination: rec.Destination,
		Lat:         rec.Lat,
		Lon:         rec.Lon,
		Timestamp:   rec.RecordedAt,
	}
	subject := fmt.Sprintf("survey.stop.%s", subjectToken(rec.VehicleType))
	return p.publish(subject, msg)
}

func (p *NATSPublisher) publish(subject string, msg any) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
