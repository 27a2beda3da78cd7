package prompt

import (
	"fmt"

	"transitlab-bot/internal/session"
)

// Locale selects the prompt language. The deployed bot runs one locale
// per process (BOT_LOCALE).
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleAR Locale = "ar"
)

// Catalog produces every prompt of the flow for one locale.
type Catalog struct {
	t table
}

// ForLocale returns the catalog for l, falling back to English.
func ForLocale(l Locale) *Catalog {
	if l == LocaleAR {
		return &Catalog{t: arabic}
	}
	return &Catalog{t: english}
}

type table struct {
	welcome          string
	help             string
	videoCaption     string
	videoUnavailable string
	phoneType        string
	installLink      string // fmt: app link
	uploadTrack      string
	vehicleType      string
	source           string
	destination      string
	fareSelect       string
	manualFare       string
	condition        string
	shareLocation    string
	confirmCancel    string
	canceled         string
	routeSaved       string
	stopSaved        string
	parseFailed      string
	saveFailed       string
	pickFromMenu     string

	btnRecordRoute string
	btnRecordStop  string
	btnShowVideo   string
	btnHelp        string
	btnIphone      string
	btnAndroid     string
	btnInstalled   string
	btnDone        string
	btnCancel      string
	btnYes         string
	btnNo          string
	btnKia         string
	btnCoaster     string
	btnBus         string
	btnFareOther   string
	btnVeryBad     string
	btnBad         string
	btnGood        string
	btnVeryGood    string
	btnShareLoc    string
}

var english = table{
	welcome:          "👋 <b>Welcome to the Data Collector Bot!</b>\nWhat would you like to do now?",
	help:             "❓ Help:\n1. <b>🚌 Record Bus Route:</b> Record the bus route using a GPS tracking app, where the route is recorded when boarding and the recording ends when alighting, then send the tracking file to the bot to save the information.\n2. <b>🚏 Record Bus Stop:</b> Use this option to record the starting location of the bus from the garage or bus gathering places.",
	videoCaption:     "To return to the main menu, press /start",
	videoUnavailable: "The video is not available. Please try again later.",
	phoneType:        "To record the bus route, you need to install the tracking app and run it. Then send the tracking file to the bot to save the information.\n<b>What type of phone do you use?</b>",
	installLink:      "Please install the app from the following link:\n%s",
	uploadTrack:      "📂 Start recording the journey with the app and do not forget to mark a point when any passenger boards or alights if possible. After finishing, please send the GPX file of the recorded route using the tracking app.",
	vehicleType:      "What type of public transport are you going to use?",
	source:           "🗺️ Enter the departure location (e.g., Alawi, Bab Al-Moatham, Bayaa, etc.):",
	destination:      "🗺️ Enter the destination (where is the bus going?):",
	fareSelect:       "💵 What was the fare?",
	manualFare:       "💬 Enter the fare manually (numbers only without currency):",
	condition:        "🚐 How was the condition of the vehicle (what is your overall rating of the car)?",
	shareLocation:    "Please share your location to save the bus stop.",
	confirmCancel:    "❌ Are you sure you want to cancel?",
	canceled:         "Canceled! Please press /start to return to the main menu.",
	routeSaved:       "Fare and vehicle condition recorded. Thank you! Press /start to return to the main menu.",
	stopSaved:        "The bus stop has been saved. Thank you! Press /start to return to the main menu.",
	parseFailed:      "An error occurred while processing the GPX file. Please try again.",
	saveFailed:       "An error occurred while saving. Please try again.",
	pickFromMenu:     "Please select from the menu.",

	btnRecordRoute: "🚌 Record Bus Route",
	btnRecordStop:  "🚏 Record Bus Stop",
	btnShowVideo:   "🎥 Watch Intro Video",
	btnHelp:        "❓ Help",
	btnIphone:      "📱 iPhone",
	btnAndroid:     "📱 Android",
	btnInstalled:   "✅ I have installed the app",
	btnDone:        "✅ Done",
	btnCancel:      "❌ Cancel",
	btnYes:         "✅ Yes",
	btnNo:          "❌ No",
	btnKia:         "🚐 Kia",
	btnCoaster:     "🚍 Coaster",
	btnBus:         "🚌 Bus",
	btnFareOther:   "💬 Other",
	btnVeryBad:     "😡 Very Bad",
	btnBad:         "😟 Bad",
	btnGood:        "🙂 Good",
	btnVeryGood:    "😃 Very Good",
	btnShareLoc:    "📍 Share Location",
}

var arabic = table{
	welcome:          "👋 <b>أهلاً بكم في بوت جامع البيانات!</b>\nشنو راح تسوي هسة؟",
	help:             "❓ مساعدة:\n1. <b>🚌 تسجيل مسار الباص:</b> تسجيل مسار الباص بواسطة برنامج تسجيل المسار باستخدام GPS حيث يتم تسجيل المسار للباص عند الصعود وانهاء التسجيل عند النزول ثم ارسال ملف التتبع الى البوت لحفظ المعلومات.\n2. <b>🚏 تسجيل محطة انطلاق الخط:</b> يستخدم هذا الخيار لتسجيل موقع انطلاق الباص من الكراج او من اماكن تجمع الباصات.",
	videoCaption:     " للعودة إلى القائمة الرئيسية اضغط /start",
	videoUnavailable: "الفيديو غير موجود. يرجى المحاولة لاحقاً.",
	phoneType:        "لتسجيل مسار الباص يجب تنصيب برنامج التتبع وتشغيله. وبعدها ارسال ملف التتبع الى البوت لحفظ المعلومات.\n<b>شنو نوع الموبايل اللي تستخدمه؟</b>",
	installLink:      "يرجى تثبيت التطبيق من الرابط التالي:\n%s",
	uploadTrack:      "📂  ابدا بتسجيل الرحلة من التطبيق ولا تنسى تسجيل نقطة عند ركوب او خروج اي راكب اذا امكن . وعند الانتهاء يرجى إرسال ملف GPX الخاص بالمسار الذي سجلته باستخدام تطبيق التتبع.",
	vehicleType:      "شنو نوع النقل العام اللي راح تستخدمه؟",
	source:           "🗺️ أدخل مكان الانطلاق (من وين طالع الباص؟ مثلا علاوي, باب معظم, بياع .. الخ):",
	destination:      "🗺️ أدخل الوجهة (ليوين رايح الباص؟):",
	fareSelect:       "💵 كم كانت الأجرة؟",
	manualFare:       "💬 أدخل الأجرة يدويًا (ارقام فقط بدون العملة):",
	condition:        "🚐 كيف كانت حالة المركبة (شنو تقييمك للسيارة بشكل عام)؟",
	shareLocation:    "يرجى مشاركة موقعك لحفظ محطة انطلاق الخط.",
	confirmCancel:    "❌ هل أنت متأكد من الإلغاء؟",
	canceled:         "تم الإلغاء! يرجى الضغط على /start للعودة إلى القائمة الرئيسية.",
	routeSaved:       "تم تسجيل الأجرة وحالة المركبة. شكراً! اضغط /start للعودة إلى القائمة الرئيسية.",
	stopSaved:        "تم حفظ محطة انطلاق الخط. شكراً! اضغط /start للعودة للقائمة الرئيسية.",
	parseFailed:      "حدث خطأ أثناء معالجة ملف GPX. يرجى المحاولة مرة أخرى.",
	saveFailed:       "حدث خطأ أثناء الحفظ. يرجى المحاولة مرة أخرى.",
	pickFromMenu:     "يرجى الاختيار من القائمة.",

	btnRecordRoute: "🚌 تسجيل مسار الباص",
	btnRecordStop:  "🚏 تسجيل محطة انطلاق الخط",
	btnShowVideo:   "🎥 مشاهدة فيديو تعريفي",
	btnHelp:        "❓ مساعدة",
	btnIphone:      "📱 iPhone",
	btnAndroid:     "📱 Android",
	btnInstalled:   "✅ لقد قمت بتثبيت التطبيق",
	btnDone:        "✅ تم",
	btnCancel:      "❌ إلغاء",
	btnYes:         "✅ نعم",
	btnNo:          "❌ لا",
	btnKia:         "🚐 كيا",
	btnCoaster:     "🚍 كوستر",
	btnBus:         "🚌 باص",
	btnFareOther:   "💬 أخرى",
	btnVeryBad:     "😡 سيئة جداً",
	btnBad:         "😟 سيئة",
	btnGood:        "🙂 جيدة",
	btnVeryGood:    "😃 جيدة جداً",
	btnShareLoc:    "📍 مشاركة الموقع",
}

func (c *Catalog) Welcome() Prompt {
	return Prompt{
		Text: c.t.welcome,
		HTML: true,
		Keyboard: [][]Button{
			{{Label: c.t.btnRecordRoute, Data: BtnRecordRoute}},
			{{Label: c.t.btnRecordStop, Data: BtnRecordStop}},
			{{Label: c.t.btnShowVideo, Data: BtnShowVideo}},
			{{Label: c.t.btnHelp, Data: BtnHelp}},
		},
	}
}

func (c *Catalog) Help() Prompt { return Prompt{Text: c.t.help, HTML: true} }

func (c *Catalog) VideoCaption() string     { return c.t.videoCaption }
func (c *Catalog) VideoUnavailable() Prompt { return Prompt{Text: c.t.videoUnavailable} }

func (c *Catalog) PhoneType() Prompt {
	return Prompt{
		Text: c.t.phoneType,
		HTML: true,
		Keyboard: [][]Button{
			{{Label: c.t.btnIphone, Data: BtnPhoneIphone}},
			{{Label: c.t.btnAndroid, Data: BtnPhoneAndroid}},
			{{Label: c.t.btnInstalled, Data: BtnPhoneInstalled}},
		},
	}
}

func (c *Catalog) InstallLink(link string) Prompt {
	return Prompt{
		Text: fmt.Sprintf(c.t.installLink, link),
		Keyboard: [][]Button{
			{{Label: c.t.btnDone, Data: BtnPhoneInstalled}},
			{{Label: c.t.btnCancel, Data: BtnCancel}},
		},
	}
}

func (c *Catalog) UploadTrack() Prompt { return Prompt{Text: c.t.uploadTrack} }

func (c *Catalog) VehicleType() Prompt {
	return Prompt{
		Text: c.t.vehicleType,
		Keyboard: [][]Button{
			{{Label: c.t.btnKia, Data: VehiclePrefix + "kia"}},
			{{Label: c.t.btnCoaster, Data: VehiclePrefix + "coaster"}},
			{{Label: c.t.btnBus, Data: VehiclePrefix + "bus"}},
			{{Label: c.t.btnCancel, Data: BtnCancel}},
		},
	}
}

func (c *Catalog) VehicleTypeStop() Prompt {
	return Prompt{
		Text: c.t.vehicleType,
		Keyboard: [][]Button{
			{{Label: c.t.btnKia, Data: VehiclePrefix + "kia" + StopSuffix}},
			{{Label: c.t.btnCoaster, Data: VehiclePrefix + "coaster" + StopSuffix}},
			{{Label: c.t.btnBus, Data: VehiclePrefix + "bus" + StopSuffix}},
		},
	}
}

func (c *Catalog) Source() Prompt      { return Prompt{Text: c.t.source} }
func (c *Catalog) Destination() Prompt { return Prompt{Text: c.t.destination} }

func (c *Catalog) FareSelect() Prompt {
	return Prompt{
		Text: c.t.fareSelect,
		Keyboard: [][]Button{
			{{Label: "💵 250", Data: FarePrefix + "250"}, {Label: "💵 500", Data: FarePrefix + "500"}},
			{{Label: "💵 750", Data: FarePrefix + "750"}, {Label: "💵 1000", Data: FarePrefix + "1000"}},
			{{Label: "💵 1250", Data: FarePrefix + "1250"}, {Label: "💵 1500", Data: FarePrefix + "1500"}},
			{{Label: "💵 2000", Data: FarePrefix + "2000"}, {Label: c.t.btnFareOther, Data: BtnFareOther}},
		},
	}
}

func (c *Catalog) ManualFare() Prompt { return Prompt{Text: c.t.manualFare} }

func (c *Catalog) Condition() Prompt {
	return Prompt{
		Text: c.t.condition,
		Keyboard: [][]Button{
			{{Label: c.t.btnVeryBad, Data: ConditionPrefix + "very_bad"}},
			{{Label: c.t.btnBad, Data: ConditionPrefix + "bad"}},
			{{Label: c.t.btnGood, Data: ConditionPrefix + "good"}},
			{{Label: c.t.btnVeryGood, Data: ConditionPrefix + "very_good"}},
		},
	}
}

func (c *Catalog) ShareLocation() Prompt {
	return Prompt{Text: c.t.shareLocation, RequestLocation: true}
}

// ShareLocationButton is the reply-keyboard label for the location
// request; CancelText is the plain-text cancel row next to it.
func (c *Catalog) ShareLocationButton() string { return c.t.btnShareLoc }
func (c *Catalog) CancelText() string          { return c.t.btnCancel }

func (c *Catalog) ConfirmCancel() Prompt {
	return Prompt{
		Text: c.t.confirmCancel,
		Keyboard: [][]Button{
			{{Label: c.t.btnYes, Data: BtnConfirmCancel}},
			{{Label: c.t.btnNo, Data: BtnDenyCancel}},
		},
	}
}

func (c *Catalog) Canceled() Prompt   { return Prompt{Text: c.t.canceled, RemoveKeyboard: true} }
func (c *Catalog) RouteSaved() Prompt { return Prompt{Text: c.t.routeSaved, RemoveKeyboard: true} }
func (c *Catalog) StopSaved() Prompt  { return Prompt{Text: c.t.stopSaved, RemoveKeyboard: true} }

func (c *Catalog) ParseFailed() Prompt  { return Prompt{Text: c.t.parseFailed} }
func (c *Catalog) SaveFailed() Prompt   { return Prompt{Text: c.t.saveFailed} }
func (c *Catalog) PickFromMenu() Prompt { return Prompt{Text: c.t.pickFromMenu} }

// ForStep is the fixed re-entry prompt shown when a deny-cancel
// restores the saved step. Steps that were reached by a one-shot
// button (e.g. the condition keyboard) re-emit that same keyboard.
func (c *Catalog) ForStep(step session.Step) (Prompt, bool) {
	switch step {
	case session.StepPhoneType:
		return c.PhoneType(), true
	case session.StepUploadGPX:
		return c.UploadTrack(), true
	case session.StepVehicleType:
		return c.VehicleType(), true
	case session.StepSource:
		return c.Source(), true
	case session.StepDestination:
		return c.Destination(), true
	case session.StepSelectFare:
		return c.FareSelect(), true
	case session.StepEnterFare:
		return c.ManualFare(), true
	case session.StepVehicleCondition:
		return c.Condition(), true
	case session.StepVehicleTypeStop:
		return c.VehicleTypeStop(), true
	case session.StepDestinationStop:
		return c.Destination(), true
	case session.StepLocationStop:
		return c.ShareLocation(), true
	}
	return Prompt{}, false
}
