package session

// Step is the position of a conversation inside the data-collection
// protocol. Every inbound event is interpreted against the step of the
// user's live session.
type Step int

const (
	StepIdle Step = iota
	StepPhoneType
	StepUploadGPX
	StepVehicleType
	StepSource
	StepDestination
	StepSelectFare
	StepEnterFare
	StepVehicleCondition
	StepVehicleTypeStop
	StepDestinationStop
	StepLocationStop
	StepConfirmCancel
)

var stepNames = map[Step]string{
	StepIdle:             "idle",
	StepPhoneType:        "phone_type",
	StepUploadGPX:        "upload_gpx",
	StepVehicleType:      "vehicle_type",
	StepSource:           "source",
	StepDestination:      "destination",
	StepSelectFare:       "select_fare",
	StepEnterFare:        "enter_fare",
	StepVehicleCondition: "vehicle_condition",
	StepVehicleTypeStop:  "vehicle_type_stop",
	StepDestinationStop:  "destination_stop",
	StepLocationStop:     "location_stop",
	StepConfirmCancel:    "confirm_cancel",
}

func (s Step) String() string {
	if n, ok := stepNames[s]; ok {
		return n
	}
	return "unknown"
}
