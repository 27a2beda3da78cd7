// Package prompt builds every outbound message of the dialogue. Each
// prompt is a pure function of the conversation step and the locale;
// handlers never compose text themselves.
package prompt

// Button is one inline-keyboard button: a visible label and the opaque
// callback payload delivered back as a button-press event.
type Button struct {
	Label string
	Data  string
}

// Prompt is a transport-neutral outbound message.
type Prompt struct {
	Text            string
	HTML            bool
	Keyboard        [][]Button // inline keyboard rows
	RequestLocation bool       // reply keyboard with a share-location button
	RemoveKeyboard  bool
}

// Callback payloads. These are the wire protocol between keyboards and
// the conversation engine and are locale-independent.
const (
	BtnRecordRoute    = "record_bus_route"
	BtnRecordStop     = "record_bus_stop"
	BtnShowVideo      = "show_video"
	BtnHelp           = "help"
	BtnPhoneIphone    = "phone_iphone"
	BtnPhoneAndroid   = "phone_android"
	BtnPhoneInstalled = "phone_installed"
	BtnCancel         = "cancel"
	BtnConfirmCancel  = "confirm_cancel"
	BtnDenyCancel     = "deny_cancel"
	BtnFareOther      = "fare_other"

	FarePrefix      = "fare_"
	ConditionPrefix = "condition_"
	VehiclePrefix   = "vehicle_"
	StopSuffix      = "_stop"
)

// Tracking-app install links offered at the phone-type step.
const (
	AppLinkIOS     = "https://apps.apple.com/app/id984503772"
	AppLinkAndroid = "https://play.google.com/store/apps/details?id=com.ilyabogdanovich.geotracker"
)
