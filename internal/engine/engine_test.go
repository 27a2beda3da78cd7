package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitlab-bot/internal/prompt"
	"transitlab-bot/internal/session"
	"transitlab-bot/internal/survey"
)

type fakeGateway struct {
	routes   []survey.RouteRecord
	stops    []survey.StopRecord
	canceled []string
	routeErr error
	stopErr  error
}

func (g *fakeGateway) SaveRoute(_ context.Context, rec survey.RouteRecord) error {
	if g.routeErr != nil {
		return g.routeErr
	}
	g.routes = append(g.routes, rec)
	return nil
}

func (g *fakeGateway) SaveStop(_ context.Context, rec survey.StopRecord) error {
	if g.stopErr != nil {
		return g.stopErr
	}
	g.stops = append(g.stops, rec)
	return nil
}

func (g *fakeGateway) MarkCanceled(_ context.Context, _ int64, sessionID string) error {
	g.canceled = append(g.canceled, sessionID)
	return nil
}

type fakeIngestor struct {
	track survey.TrackData
	err   error
	calls int
}

func (f *fakeIngestor) Ingest(_ context.Context, _, _, _ string, _ []byte) (survey.TrackData, error) {
	f.calls++
	if f.err != nil {
		return survey.TrackData{}, f.err
	}
	return f.track, nil
}

type fakeResponder struct {
	sent   []prompt.Prompt
	edited []prompt.Prompt
	videos int
}

func (r *fakeResponder) Send(_ context.Context, _ int64, p prompt.Prompt) error {
	r.sent = append(r.sent, p)
	return nil
}

func (r *fakeResponder) Edit(_ context.Context, _ int64, p prompt.Prompt) error {
	r.edited = append(r.edited, p)
	return nil
}

func (r *fakeResponder) SendVideo(_ context.Context, _ int64, _ string) error {
	r.videos++
	return nil
}

func (r *fakeResponder) lastText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, r.sent)
	return r.sent[len(r.sent)-1].Text
}

func (r *fakeResponder) lastEditText(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, r.edited)
	return r.edited[len(r.edited)-1].Text
}

type fakePublisher struct {
	routes []survey.RouteRecord
	stops  []survey.StopRecord
}

func (p *fakePublisher) PublishRoute(rec survey.RouteRecord) error {
	p.routes = append(p.routes, rec)
	return nil
}

func (p *fakePublisher) PublishStop(rec survey.StopRecord) error {
	p.stops = append(p.stops, rec)
	return nil
}

type testRig struct {
	eng     *Engine
	store   *session.Store
	gw      *fakeGateway
	ingest  *fakeIngestor
	out     *fakeResponder
	pub     *fakePublisher
	prompts *prompt.Catalog
}

func newTestRig() *testRig {
	r := &testRig{
		store:   session.NewStore(),
		gw:      &fakeGateway{},
		ingest:  &fakeIngestor{},
		out:     &fakeResponder{},
		pub:     &fakePublisher{},
		prompts: prompt.ForLocale(prompt.LocaleEN),
	}
	r.eng = New(r.store, r.gw, r.ingest, r.out, r.pub, nil, r.prompts)
	return r
}

func (r *testRig) button(userID int64, data string) {
	r.eng.Handle(context.Background(), Event{Kind: KindButton, UserID: userID, Username: "tester", Data: data})
}

func (r *testRig) text(userID int64, text string) {
	r.eng.Handle(context.Background(), Event{Kind: KindText, UserID: userID, Username: "tester", Text: text})
}

func (r *testRig) location(userID int64, lat, lon float64) {
	r.eng.Handle(context.Background(), Event{Kind: KindLocation, UserID: userID, Username: "tester", Lat: lat, Lon: lon})
}

func (r *testRig) document(userID int64) {
	r.eng.Handle(context.Background(), Event{
		Kind: KindDocument, UserID: userID, Username: "tester",
		FileName: "track.gpx", FileData: []byte("<gpx/>"),
	})
}

func sampleTrack() survey.TrackData {
	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	return survey.TrackData{
		Routing: []survey.RoutePoint{
			{Lat: 33.31, Lon: 44.40, Time: base, Kind: survey.KindRouting},
			{Lat: 33.32, Lon: 44.41, Time: base.Add(time.Minute), Kind: survey.KindRouting},
		},
		Boarding: []survey.RoutePoint{
			{Lat: 33.315, Lon: 44.405, Time: base.Add(30 * time.Second), Kind: survey.KindBoarding},
		},
	}
}

// runRouteFlow drives a user through the whole route conversation up to
// and including the condition choice.
func (r *testRig) runRouteFlow(userID int64) {
	r.button(userID, prompt.BtnRecordRoute)
	r.button(userID, prompt.BtnPhoneInstalled)
	r.document(userID)
	r.button(userID, "vehicle_bus")
	r.text(userID, "Alawi")
	r.text(userID, "Karada")
	r.button(userID, "fare_500")
	r.button(userID, "condition_good")
}

func TestRouteFlowSavesAndClearsSession(t *testing.T) {
	r := newTestRig()
	r.ingest.track = sampleTrack()

	r.runRouteFlow(1)

	require.Len(t, r.gw.routes, 1)
	rec := r.gw.routes[0]
	assert.Equal(t, int64(1), rec.UserID)
	assert.Equal(t, "tester", rec.Username)
	assert.Equal(t, survey.VehicleBus, rec.VehicleType)
	assert.Equal(t, "Alawi", rec.Source)
	assert.Equal(t, "Karada", rec.Destination)
	assert.Equal(t, "500", rec.Fare)
	assert.Equal(t, survey.ConditionGood, rec.Condition)
	assert.Len(t, rec.Track.Routing, 2)
	assert.Len(t, rec.Track.Boarding, 1)
	assert.NotEmpty(t, rec.SessionID)

	_, ok := r.store.Get(1)
	assert.False(t, ok, "session should be gone after a successful save")
	assert.Equal(t, r.prompts.RouteSaved().Text, r.out.lastEditText(t))

	require.Len(t, r.pub.routes, 1)
	assert.Equal(t, rec.SessionID, r.pub.routes[0].SessionID)
}

func TestRouteFlowStepProgression(t *testing.T) {
	r := newTestRig()
	r.ingest.track = sampleTrack()

	r.button(1, prompt.BtnRecordRoute)
	sess, ok := r.store.Get(1)
	require.True(t, ok)
	assert.Equal(t, session.StepPhoneType, sess.Step)

	r.button(1, prompt.BtnPhoneInstalled)
	sess, _ = r.store.Get(1)
	assert.Equal(t, session.StepUploadGPX, sess.Step)

	r.document(1)
	sess, _ = r.store.Get(1)
	assert.Equal(t, session.StepVehicleType, sess.Step)
	require.NotNil(t, sess.Track)

	r.button(1, "vehicle_coaster")
	sess, _ = r.store.Get(1)
	assert.Equal(t, session.StepSource, sess.Step)
	assert.Equal(t, survey.VehicleCoaster, sess.VehicleType)

	r.text(1, "Mansour")
	sess, _ = r.store.Get(1)
	assert.Equal(t, session.StepDestination, sess.Step)

	r.text(1, "Shorja")
	sess, _ = r.store.Get(1)
	assert.Equal(t, session.StepSelectFare, sess.Step)

	r.button(1, prompt.BtnFareOther)
	sess, _ = r.store.Get(1)
	assert.Equal(t, session.StepEnterFare, sess.Step)

	r.text(1, "3000")
	sess, _ = r.store.Get(1)
	assert.Equal(t, session.StepVehicleCondition, sess.Step)
	assert.Equal(t, "3000", sess.Fare)
}

func TestEmptyTrackStillAdvances(t *testing.T) {
	r := newTestRig()
	// Parseable document with no points at all.
	r.ingest.track = survey.TrackData{}

	r.runRouteFlow(1)

	require.Len(t, r.gw.routes, 1)
	assert.Empty(t, r.gw.routes[0].Track.Routing)
	assert.Empty(t, r.gw.routes[0].Track.Boarding)
	_, ok := r.store.Get(1)
	assert.False(t, ok)
}

func TestStopFlowSavesLocation(t *testing.T) {
	r := newTestRig()

	r.button(2, prompt.BtnRecordStop)
	sess, ok := r.store.Get(2)
	require.True(t, ok)
	assert.Equal(t, session.StepVehicleTypeStop, sess.Step)

	r.button(2, "vehicle_kia_stop")
	sess, _ = r.store.Get(2)
	assert.Equal(t, session.StepDestinationStop, sess.Step)
	assert.Equal(t, survey.VehicleKia, sess.VehicleType)

	r.text(2, "Bab Al-Muadham")
	sess, _ = r.store.Get(2)
	assert.Equal(t, session.StepLocationStop, sess.Step)

	r.location(2, 33.35, 44.38)

	require.Len(t, r.gw.stops, 1)
	rec := r.gw.stops[0]
	assert.Equal(t, survey.VehicleKia, rec.VehicleType)
	assert.Equal(t, "Bab Al-Muadham", rec.Destination)
	assert.Equal(t, 33.35, rec.Lat)
	assert.Equal(t, 44.38, rec.Lon)

	_, ok = r.store.Get(2)
	assert.False(t, ok)
	assert.Equal(t, r.prompts.StopSaved().Text, r.out.lastText(t))
	require.Len(t, r.pub.stops, 1)
}

func TestConfirmCancelDropsSessionAndMarksRows(t *testing.T) {
	r := newTestRig()
	r.ingest.track = sampleTrack()

	r.button(1, prompt.BtnRecordRoute)
	first, _ := r.store.Get(1)

	r.button(1, prompt.BtnCancel)
	sess, _ := r.store.Get(1)
	assert.Equal(t, session.StepConfirmCancel, sess.Step)
	assert.Equal(t, session.StepPhoneType, sess.LastStep)

	r.button(1, prompt.BtnConfirmCancel)
	_, ok := r.store.Get(1)
	assert.False(t, ok)
	require.Len(t, r.gw.canceled, 1)
	assert.Equal(t, first.ID, r.gw.canceled[0])

	// A new recording starts a brand new session.
	r.button(1, prompt.BtnRecordRoute)
	second, ok := r.store.Get(1)
	require.True(t, ok)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestDenyCancelRestoresStep(t *testing.T) {
	r := newTestRig()
	r.ingest.track = sampleTrack()

	r.button(1, prompt.BtnRecordRoute)
	r.button(1, prompt.BtnPhoneInstalled)
	r.document(1)
	r.button(1, "vehicle_bus")

	r.button(1, prompt.BtnCancel)
	r.button(1, prompt.BtnDenyCancel)

	sess, ok := r.store.Get(1)
	require.True(t, ok)
	assert.Equal(t, session.StepSource, sess.Step)
	assert.Equal(t, r.prompts.Source().Text, r.out.lastEditText(t))
	assert.Empty(t, r.gw.canceled)
}

func TestCancelViaKeyboardText(t *testing.T) {
	r := newTestRig()
	r.button(1, prompt.BtnRecordRoute)

	r.text(1, r.prompts.CancelText())
	sess, ok := r.store.Get(1)
	require.True(t, ok)
	assert.Equal(t, session.StepConfirmCancel, sess.Step)
}

func TestParseFailureKeepsUploadStep(t *testing.T) {
	r := newTestRig()
	r.ingest.err = &survey.ParseError{Name: "track.gpx", Err: errors.New("truncated")}

	r.button(1, prompt.BtnRecordRoute)
	r.button(1, prompt.BtnPhoneInstalled)
	r.document(1)

	sess, ok := r.store.Get(1)
	require.True(t, ok)
	assert.Equal(t, session.StepUploadGPX, sess.Step)
	assert.Nil(t, sess.Track)
	assert.Equal(t, r.prompts.ParseFailed().Text, r.out.lastText(t))

	// A good re-upload proceeds normally.
	r.ingest.err = nil
	r.ingest.track = sampleTrack()
	r.document(1)
	sess, _ = r.store.Get(1)
	assert.Equal(t, session.StepVehicleType, sess.Step)
}

func TestPersistenceFailureKeepsSessionForRetry(t *testing.T) {
	r := newTestRig()
	r.ingest.track = sampleTrack()
	r.gw.routeErr = &survey.PersistenceError{Op: "save route", Err: errors.New("down")}

	r.runRouteFlow(1)

	assert.Empty(t, r.gw.routes)
	assert.Empty(t, r.pub.routes)
	sess, ok := r.store.Get(1)
	require.True(t, ok, "session must survive a failed save")
	assert.Equal(t, survey.ConditionGood, sess.Condition)
	assert.Equal(t, r.prompts.SaveFailed().Text, r.out.lastText(t))

	// The terminal choice can simply be repeated once storage is back.
	r.gw.routeErr = nil
	r.button(1, "condition_good")
	require.Len(t, r.gw.routes, 1)
	_, ok = r.store.Get(1)
	assert.False(t, ok)
}

func TestIncompleteSessionWritesNothing(t *testing.T) {
	r := newTestRig()

	r.button(1, prompt.BtnRecordRoute)
	// Condition arrives with no track, vehicle, or endpoints collected.
	r.button(1, "condition_bad")

	assert.Empty(t, r.gw.routes)
	sess, ok := r.store.Get(1)
	require.True(t, ok)
	assert.Equal(t, survey.ConditionBad, sess.Condition)
}

func TestStrayTextStartsIdleSession(t *testing.T) {
	r := newTestRig()

	r.text(1, "hello?")
	sess, ok := r.store.Get(1)
	require.True(t, ok)
	assert.Equal(t, session.StepIdle, sess.Step)
	assert.Empty(t, r.gw.routes)
	assert.Empty(t, r.gw.stops)
}

func TestUnexpectedLocationIgnored(t *testing.T) {
	r := newTestRig()
	r.ingest.track = sampleTrack()

	r.button(1, prompt.BtnRecordRoute)
	r.button(1, prompt.BtnPhoneInstalled)
	r.document(1)
	r.button(1, "vehicle_bus")

	r.location(1, 33.3, 44.4)

	assert.Empty(t, r.gw.stops)
	sess, ok := r.store.Get(1)
	require.True(t, ok)
	assert.Equal(t, session.StepSource, sess.Step)
}

func TestLocationWithoutSessionPromptsMenu(t *testing.T) {
	r := newTestRig()

	r.location(9, 33.3, 44.4)
	assert.Empty(t, r.gw.stops)
	assert.Equal(t, r.prompts.PickFromMenu().Text, r.out.lastText(t))
}

func TestStartHelpAndVideo(t *testing.T) {
	r := newTestRig()

	r.text(1, "/start")
	assert.Equal(t, r.prompts.Welcome().Text, r.out.lastText(t))
	_, ok := r.store.Get(1)
	assert.False(t, ok, "/start must not open a session")

	r.text(1, "/help")
	assert.Equal(t, r.prompts.Help().Text, r.out.lastText(t))

	r.button(1, prompt.BtnShowVideo)
	assert.Equal(t, 1, r.out.videos)
}

func TestUsersDoNotInterfere(t *testing.T) {
	r := newTestRig()
	r.ingest.track = sampleTrack()

	r.button(1, prompt.BtnRecordRoute)
	r.button(2, prompt.BtnRecordStop)

	a, _ := r.store.Get(1)
	b, _ := r.store.Get(2)
	assert.Equal(t, session.StepPhoneType, a.Step)
	assert.Equal(t, session.StepVehicleTypeStop, b.Step)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSweepIdleRemovesStaleSessions(t *testing.T) {
	r := newTestRig()
	r.button(1, prompt.BtnRecordRoute)

	time.Sleep(2 * time.Millisecond)
	r.eng.SweepIdle(time.Nanosecond)

	_, ok := r.store.Get(1)
	assert.False(t, ok)
}
