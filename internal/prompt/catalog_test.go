package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transitlab-bot/internal/session"
	"transitlab-bot/internal/survey"
)

func payloads(p Prompt) []string {
	var out []string
	for _, row := range p.Keyboard {
		for _, b := range row {
			out = append(out, b.Data)
		}
	}
	return out
}

func TestWelcomeMenuPayloads(t *testing.T) {
	for _, loc := range []Locale{LocaleEN, LocaleAR} {
		c := ForLocale(loc)
		assert.Equal(t,
			[]string{BtnRecordRoute, BtnRecordStop, BtnShowVideo, BtnHelp},
			payloads(c.Welcome()))
	}
}

func TestFareKeyboardCoversAllOptions(t *testing.T) {
	got := payloads(ForLocale(LocaleEN).FareSelect())
	for _, f := range survey.FareOptions {
		assert.Contains(t, got, FarePrefix+f)
	}
	assert.Contains(t, got, BtnFareOther)
	assert.Len(t, got, len(survey.FareOptions)+1)
}

func TestVehicleKeyboardsDifferOnlyInSuffix(t *testing.T) {
	c := ForLocale(LocaleEN)
	route := payloads(c.VehicleType())
	stop := payloads(c.VehicleTypeStop())

	require.Len(t, stop, 3)
	for i, data := range stop {
		assert.Equal(t, route[i]+StopSuffix, data)
		assert.True(t, strings.HasPrefix(data, VehiclePrefix))
	}
}

func TestConditionKeyboardPayloads(t *testing.T) {
	got := payloads(ForLocale(LocaleAR).Condition())
	assert.Equal(t, []string{
		ConditionPrefix + "very_bad",
		ConditionPrefix + "bad",
		ConditionPrefix + "good",
		ConditionPrefix + "very_good",
	}, got)
}

func TestForStepCoversResumableSteps(t *testing.T) {
	c := ForLocale(LocaleEN)
	resumable := []session.Step{
		session.StepPhoneType, session.StepUploadGPX, session.StepVehicleType,
		session.StepSource, session.StepDestination, session.StepSelectFare,
		session.StepEnterFare, session.StepVehicleCondition,
		session.StepVehicleTypeStop, session.StepDestinationStop, session.StepLocationStop,
	}
	for _, s := range resumable {
		p, ok := c.ForStep(s)
		assert.True(t, ok, "step %s must have a re-entry prompt", s)
		assert.NotEmpty(t, p.Text)
	}

	_, ok := c.ForStep(session.StepIdle)
	assert.False(t, ok)
	_, ok = c.ForStep(session.StepConfirmCancel)
	assert.False(t, ok)
}

func TestShareLocationRequestsLocation(t *testing.T) {
	p := ForLocale(LocaleEN).ShareLocation()
	assert.True(t, p.RequestLocation)
	assert.Empty(t, p.Keyboard)
}

func TestLocalesCarryDistinctText(t *testing.T) {
	en := ForLocale(LocaleEN)
	ar := ForLocale(LocaleAR)
	assert.NotEqual(t, en.Welcome().Text, ar.Welcome().Text)
	assert.NotEqual(t, en.CancelText(), ar.CancelText())
}

func TestInstallLinkEmbedsURL(t *testing.T) {
	c := ForLocale(LocaleEN)
	p := c.InstallLink(AppLinkAndroid)
	assert.Contains(t, p.Text, AppLinkAndroid)
	assert.Equal(t, []string{BtnPhoneInstalled, BtnCancel}, payloads(p))
}
