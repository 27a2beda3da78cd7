// Package engine is the conversation state machine. It is the only
// component that touches the session store and the only one that
// drives the track ingestor, the simplifying persistence gateway, and
// the event publisher. Events for one user are strictly serialized;
// different users never contend.
package engine

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"transitlab-bot/internal/metrics"
	"transitlab-bot/internal/prompt"
	"transitlab-bot/internal/session"
	"transitlab-bot/internal/survey"
)

// Gateway is the persistence boundary (see internal/store).
type Gateway interface {
	SaveRoute(ctx context.Context, rec survey.RouteRecord) error
	SaveStop(ctx context.Context, rec survey.StopRecord) error
	MarkCanceled(ctx context.Context, userID int64, sessionID string) error
}

// Ingestor parses an uploaded GPS document (see internal/track).
type Ingestor interface {
	Ingest(ctx context.Context, username, sessionID, name string, data []byte) (survey.TrackData, error)
}

// Publisher emits completed-survey events; optional.
type Publisher interface {
	PublishRoute(rec survey.RouteRecord) error
	PublishStop(rec survey.StopRecord) error
}

type Engine struct {
	sessions *session.Store
	gw       Gateway
	ingest   Ingestor
	out      Responder
	pub      Publisher          // optional
	metrics  *metrics.Collector // optional
	prompts  *prompt.Catalog
	now      func() time.Time

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

func New(sessions *session.Store, gw Gateway, ingest Ingestor, out Responder, pub Publisher, mcol *metrics.Collector, prompts *prompt.Catalog) *Engine {
	return &Engine{
		sessions: sessions,
		gw:       gw,
		ingest:   ingest,
		out:      out,
		pub:      pub,
		metrics:  mcol,
		prompts:  prompts,
		now:      time.Now,
		locks:    make(map[int64]*sync.Mutex),
	}
}

// Handle processes one inbound event to completion. Events for the
// same user are serialized through a per-user lock; session access is
// read-modify-write and not safe under concurrent handling for one
// key.
func (e *Engine) Handle(ctx context.Context, ev Event) {
	lock := e.userLock(ev.UserID)
	lock.Lock()
	defer lock.Unlock()

	if e.metrics != nil {
		e.metrics.EventsHandled.WithLabelValues(ev.Kind.String()).Inc()
	}

	var err error
	switch ev.Kind {
	case KindButton:
		err = e.handleButton(ctx, ev)
	case KindText:
		err = e.handleText(ctx, ev)
	case KindLocation:
		err = e.handleLocation(ctx, ev)
	case KindDocument:
		err = e.handleDocument(ctx, ev)
	}
	if err != nil {
		var inputErr *survey.UserInputError
		var missingErr *survey.SessionMissingError
		if errors.As(err, &inputErr) || errors.As(err, &missingErr) {
			log.Printf("user %d: ignored %s event: %v", ev.UserID, ev.Kind, err)
			return
		}
		log.Printf("user %d: %s event: %v", ev.UserID, ev.Kind, err)
	}
}

func (e *Engine) userLock(id int64) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

func (e *Engine) handleButton(ctx context.Context, ev Event) error {
	switch ev.Data {
	case prompt.BtnShowVideo:
		return e.out.SendVideo(ctx, ev.UserID, e.prompts.VideoCaption())

	case prompt.BtnHelp:
		return e.out.Send(ctx, ev.UserID, e.prompts.Help())

	case prompt.BtnRecordRoute:
		e.sessions.CreateOrReset(ev.UserID, ev.Username, session.StepPhoneType)
		e.setActiveGauge()
		return e.out.Edit(ctx, ev.UserID, e.prompts.PhoneType())

	case prompt.BtnRecordStop:
		e.sessions.CreateOrReset(ev.UserID, ev.Username, session.StepVehicleTypeStop)
		e.setActiveGauge()
		return e.out.Edit(ctx, ev.UserID, e.prompts.VehicleTypeStop())

	case prompt.BtnPhoneIphone, prompt.BtnPhoneAndroid:
		if _, ok := e.sessions.Get(ev.UserID); !ok {
			return &survey.SessionMissingError{UserID: ev.UserID}
		}
		link := prompt.AppLinkAndroid
		if ev.Data == prompt.BtnPhoneIphone {
			link = prompt.AppLinkIOS
		}
		return e.out.Edit(ctx, ev.UserID, e.prompts.InstallLink(link))

	case prompt.BtnPhoneInstalled:
		if ok := e.sessions.Update(ev.UserID, func(s *session.Session) {
			s.Step = session.StepUploadGPX
		}); !ok {
			return &survey.SessionMissingError{UserID: ev.UserID}
		}
		return e.out.Edit(ctx, ev.UserID, e.prompts.UploadTrack())

	case prompt.BtnCancel:
		return e.enterCancelPrompt(ctx, ev, true)

	case prompt.BtnConfirmCancel:
		return e.confirmCancel(ctx, ev)

	case prompt.BtnDenyCancel:
		return e.denyCancel(ctx, ev)

	case prompt.BtnFareOther:
		if ok := e.sessions.Update(ev.UserID, func(s *session.Session) {
			s.Step = session.StepEnterFare
		}); !ok {
			return &survey.SessionMissingError{UserID: ev.UserID}
		}
		return e.out.Edit(ctx, ev.UserID, e.prompts.ManualFare())
	}

	switch {
	case strings.HasPrefix(ev.Data, prompt.FarePrefix):
		fare := strings.TrimPrefix(ev.Data, prompt.FarePrefix)
		if ok := e.sessions.Update(ev.UserID, func(s *session.Session) {
			s.Fare = fare
			s.Step = session.StepVehicleCondition
		}); !ok {
			return &survey.SessionMissingError{UserID: ev.UserID}
		}
		return e.out.Send(ctx, ev.UserID, e.prompts.Condition())

	case strings.HasPrefix(ev.Data, prompt.ConditionPrefix):
		return e.recordCondition(ctx, ev)

	case strings.HasPrefix(ev.Data, prompt.VehiclePrefix):
		return e.recordVehicle(ctx, ev)
	}

	return &survey.UserInputError{Step: "button", Reason: "unknown payload " + ev.Data}
}

func (e *Engine) recordVehicle(ctx context.Context, ev Event) error {
	name := strings.TrimPrefix(ev.Data, prompt.VehiclePrefix)
	stop := strings.HasSuffix(name, prompt.StopSuffix)
	name = strings.TrimSuffix(name, prompt.StopSuffix)

	var vt string
	switch name {
	case "kia":
		vt = survey.VehicleKia
	case "coaster":
		vt = survey.VehicleCoaster
	case "bus":
		vt = survey.VehicleBus
	default:
		return &survey.UserInputError{Step: "button", Reason: "unknown vehicle " + name}
	}

	if stop {
		if ok := e.sessions.Update(ev.UserID, func(s *session.Session) {
			s.VehicleType = vt
			s.Step = session.StepDestinationStop
		}); !ok {
			return &survey.SessionMissingError{UserID: ev.UserID}
		}
		return e.out.Edit(ctx, ev.UserID, e.prompts.Destination())
	}
	if ok := e.sessions.Update(ev.UserID, func(s *session.Session) {
		s.VehicleType = vt
		s.Step = session.StepSource
	}); !ok {
		return &survey.SessionMissingError{UserID: ev.UserID}
	}
	return e.out.Edit(ctx, ev.UserID, e.prompts.Source())
}

// recordCondition is the terminal transition of the route flow: record
// the condition, and iff every required field is present run the
// full-session write. A missing field leaves the session in place with
// no write and no user-visible error; that mirrors a caller-ordering
// guard, not a failure.
func (e *Engine) recordCondition(ctx context.Context, ev Event) error {
	cond := strings.TrimPrefix(ev.Data, prompt.ConditionPrefix)

	var snap session.Session
	if ok := e.sessions.Update(ev.UserID, func(s *session.Session) {
		s.Condition = cond
		snap = *s
	}); !ok {
		return &survey.SessionMissingError{UserID: ev.UserID}
	}

	rec, complete := buildRouteRecord(snap, e.now())
	if !complete {
		log.Printf("user %d: condition recorded but session %s incomplete, waiting", ev.UserID, snap.ID)
		return nil
	}

	start := time.Now()
	err := e.gw.SaveRoute(ctx, rec)
	if e.metrics != nil {
		e.metrics.SaveDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if e.metrics != nil {
			e.metrics.SaveErrs.Inc()
		}
		// Session survives so the user can retry the terminal action.
		if serr := e.out.Send(ctx, ev.UserID, e.prompts.SaveFailed()); serr != nil {
			log.Printf("user %d: send failure prompt: %v", ev.UserID, serr)
		}
		return err
	}
	if e.metrics != nil {
		e.metrics.RoutesSaved.Inc()
	}
	e.publishRoute(rec)
	e.sessions.Remove(ev.UserID)
	e.setActiveGauge()
	return e.out.Edit(ctx, ev.UserID, e.prompts.RouteSaved())
}

func (e *Engine) enterCancelPrompt(ctx context.Context, ev Event, edit bool) error {
	if ok := e.sessions.Update(ev.UserID, func(s *session.Session) {
		s.LastStep = s.Step
		s.Step = session.StepConfirmCancel
	}); !ok {
		return &survey.SessionMissingError{UserID: ev.UserID}
	}
	if edit {
		return e.out.Edit(ctx, ev.UserID, e.prompts.ConfirmCancel())
	}
	return e.out.Send(ctx, ev.UserID, e.prompts.ConfirmCancel())
}

func (e *Engine) confirmCancel(ctx context.Context, ev Event) error {
	sess, ok := e.sessions.Get(ev.UserID)
	if !ok {
		return &survey.SessionMissingError{UserID: ev.UserID}
	}
	// Best-effort: the mark may match zero rows (nothing written yet)
	// or fail outright; neither blocks the cancellation.
	if err := e.gw.MarkCanceled(ctx, ev.UserID, sess.ID); err != nil {
		log.Printf("user %d: mark canceled session %s: %v", ev.UserID, sess.ID, err)
	}
	e.sessions.Remove(ev.UserID)
	e.setActiveGauge()
	if e.metrics != nil {
		e.metrics.SessionsCanceled.Inc()
	}
	return e.out.Edit(ctx, ev.UserID, e.prompts.Canceled())
}

func (e *Engine) denyCancel(ctx context.Context, ev Event) error {
	var restored session.Step
	if ok := e.sessions.Update(ev.UserID, func(s *session.Session) {
		s.Step = s.LastStep
		restored = s.Step
	}); !ok {
		return &survey.SessionMissingError{UserID: ev.UserID}
	}
	p, ok := e.prompts.ForStep(restored)
	if !ok {
		return &survey.UserInputError{Step: restored.String(), Reason: "no re-entry prompt"}
	}
	return e.out.Edit(ctx, ev.UserID, p)
}

func (e *Engine) handleText(ctx context.Context, ev Event) error {
	switch ev.Text {
	case "/start":
		return e.out.Send(ctx, ev.UserID, e.prompts.Welcome())
	case "/help":
		return e.out.Send(ctx, ev.UserID, e.prompts.Help())
	case e.prompts.CancelText():
		return e.enterCancelPrompt(ctx, ev, false)
	}

	sess, ok := e.sessions.Get(ev.UserID)
	if !ok {
		// Defensive: never fail on a stray message, start an idle
		// session and wait for a menu choice.
		e.sessions.CreateOrReset(ev.UserID, ev.Username, session.StepIdle)
		e.setActiveGauge()
		return &survey.UserInputError{Step: session.StepIdle.String(), Reason: "text before menu choice"}
	}

	switch sess.Step {
	case session.StepSource:
		e.sessions.Update(ev.UserID, func(s *session.Session) {
			s.Source = ev.Text
			s.Step = session.StepDestination
		})
		return e.out.Send(ctx, ev.UserID, e.prompts.Destination())

	case session.StepDestination:
		e.sessions.Update(ev.UserID, func(s *session.Session) {
			s.Destination = ev.Text
			s.Step = session.StepSelectFare
		})
		return e.out.Send(ctx, ev.UserID, e.prompts.FareSelect())

	case session.StepEnterFare:
		e.sessions.Update(ev.UserID, func(s *session.Session) {
			s.Fare = ev.Text
			s.Step = session.StepVehicleCondition
		})
		return e.out.Send(ctx, ev.UserID, e.prompts.Condition())

	case session.StepDestinationStop:
		e.sessions.Update(ev.UserID, func(s *session.Session) {
			s.Destination = ev.Text
			s.Step = session.StepLocationStop
		})
		return e.out.Send(ctx, ev.UserID, e.prompts.ShareLocation())
	}

	return &survey.UserInputError{Step: sess.Step.String(), Reason: "text not expected"}
}

func (e *Engine) handleLocation(ctx context.Context, ev Event) error {
	sess, ok := e.sessions.Get(ev.UserID)
	if !ok {
		if err := e.out.Send(ctx, ev.UserID, e.prompts.PickFromMenu()); err != nil {
			return err
		}
		return &survey.SessionMissingError{UserID: ev.UserID}
	}
	if sess.Step != session.StepLocationStop {
		return &survey.UserInputError{Step: sess.Step.String(), Reason: "location not expected"}
	}

	rec := survey.StopRecord{
		UserID:      ev.UserID,
		Username:    sess.Username,
		SessionID:   sess.ID,
		VehicleType: sess.VehicleType,
		Destination: sess.Destination,
		Lat:         ev.Lat,
		Lon:         ev.Lon,
		RecordedAt:  e.now(),
	}

	start := time.Now()
	err := e.gw.SaveStop(ctx, rec)
	if e.metrics != nil {
		e.metrics.SaveDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if e.metrics != nil {
			e.metrics.SaveErrs.Inc()
		}
		if serr := e.out.Send(ctx, ev.UserID, e.prompts.SaveFailed()); serr != nil {
			log.Printf("user %d: send failure prompt: %v", ev.UserID, serr)
		}
		return err
	}
	if e.metrics != nil {
		e.metrics.StopsSaved.Inc()
	}
	e.publishStop(rec)
	e.sessions.Remove(ev.UserID)
	e.setActiveGauge()
	return e.out.Send(ctx, ev.UserID, e.prompts.StopSaved())
}

func (e *Engine) handleDocument(ctx context.Context, ev Event) error {
	sess, ok := e.sessions.Get(ev.UserID)
	if !ok || sess.Step != session.StepUploadGPX {
		if err := e.out.Send(ctx, ev.UserID, e.prompts.PickFromMenu()); err != nil {
			return err
		}
		if !ok {
			return &survey.SessionMissingError{UserID: ev.UserID}
		}
		return &survey.UserInputError{Step: sess.Step.String(), Reason: "document not expected"}
	}

	td, err := e.ingest.Ingest(ctx, sess.Username, sess.ID, ev.FileName, ev.FileData)
	if err != nil {
		// Step stays at upload so the user can re-send the file.
		if e.metrics != nil {
			e.metrics.TrackParseErrs.Inc()
		}
		if serr := e.out.Send(ctx, ev.UserID, e.prompts.ParseFailed()); serr != nil {
			log.Printf("user %d: send parse prompt: %v", ev.UserID, serr)
		}
		return err
	}
	if e.metrics != nil {
		e.metrics.TracksIngested.Inc()
	}
	e.sessions.Update(ev.UserID, func(s *session.Session) {
		s.Track = &td
		s.Step = session.StepVehicleType
	})
	return e.out.Send(ctx, ev.UserID, e.prompts.VehicleType())
}

// SweepIdle drops sessions idle longer than ttl. Called from the main
// loop ticker; a zero ttl disables the sweep.
func (e *Engine) SweepIdle(ttl time.Duration) {
	n := e.sessions.Sweep(ttl)
	if n == 0 {
		return
	}
	log.Printf("swept %d idle sessions", n)
	if e.metrics != nil {
		e.metrics.SessionsSwept.Add(float64(n))
	}
	e.setActiveGauge()
}

func (e *Engine) setActiveGauge() {
	if e.metrics != nil {
		e.metrics.ActiveSessions.Set(float64(e.sessions.Len()))
	}
}

func (e *Engine) publishRoute(rec survey.RouteRecord) {
	if e.pub == nil {
		return
	}
	if err := e.pub.PublishRoute(rec); err != nil {
		log.Printf("publish route event for session %s: %v", rec.SessionID, err)
	}
}

func (e *Engine) publishStop(rec survey.StopRecord) {
	if e.pub == nil {
		return
	}
	if err := e.pub.PublishStop(rec); err != nil {
		log.Printf("publish stop event for session %s: %v", rec.SessionID, err)
	}
}

// buildRouteRecord constructs the full-session record only when every
// required field is present: source, destination, vehicle type, fare,
// condition, and ingested track data.
func buildRouteRecord(s session.Session, now time.Time) (survey.RouteRecord, bool) {
	if s.Source == "" || s.Destination == "" || s.VehicleType == "" ||
		s.Fare == "" || s.Condition == "" || s.Track == nil {
		return survey.RouteRecord{}, false
	}
	return survey.RouteRecord{
		UserID:      s.UserID,
		Username:    s.Username,
		SessionID:   s.ID,
		VehicleType: s.VehicleType,
		Source:      s.Source,
		Destination: s.Destination,
		Fare:        s.Fare,
		Condition:   s.Condition,
		Track:       *s.Track,
		RecordedAt:  now,
	}, true
}
