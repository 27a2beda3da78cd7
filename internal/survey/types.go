package survey

import "time"

// PointKind distinguishes continuous track fixes from discrete
// boarding/alighting marks. Values match the point_type column.
type PointKind string

const (
	KindRouting  PointKind = "bus_routing"
	KindBoarding PointKind = "passenger_on_off"
)

// Vehicle type vocabulary offered by the keyboards.
const (
	VehicleKia     = "Kia"
	VehicleCoaster = "Coaster"
	VehicleBus     = "Bus"
)

// Vehicle condition vocabulary offered by the keyboards.
const (
	ConditionVeryBad  = "very_bad"
	ConditionBad      = "bad"
	ConditionGood     = "good"
	ConditionVeryGood = "very_good"
)

// FareOptions are the fixed fare keyboard values, in display order.
// "Other" leads to manual entry and is not part of this list.
var FareOptions = []string{"250", "500", "750", "1000", "1250", "1500", "2000"}

type RoutePoint struct {
	Lat  float64
	Lon  float64
	Time time.Time
	Kind PointKind
}

// TrackData is the result of ingesting one uploaded GPX document:
// routing points from all track segments in file order, and boarding
// waypoints in file order. Either sequence may be empty.
type TrackData struct {
	Routing  []RoutePoint
	Boarding []RoutePoint
}

// RouteRecord is a fully collected route survey, constructed only once
// every required field is present. The persistence gateway writes it
// as one unit of work.
type RouteRecord struct {
	UserID      int64
	Username    string
	SessionID   string
	VehicleType string
	Source      string
	Destination string
	Fare        string
	Condition   string
	Track       TrackData
	RecordedAt  time.Time
}

// StopRecord is a fully collected bus-stop survey.
type StopRecord struct {
	UserID      int64
	Username    string
	SessionID   string
	VehicleType string
	Destination string
	Lat         float64
	Lon         float64
	RecordedAt  time.Time
}
