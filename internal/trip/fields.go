package trip

import "strconv"

// Field names one free-form editable leaf of the document. The
// original stored these as untyped dot-paths resolved at runtime; the
// set is closed here so an unknown path is rejected instead of
// silently growing the tree.
type Field string

const (
	FieldTripTitle     Field = "tripInfo.title"
	FieldTripDates     Field = "tripInfo.dates"
	FieldTripGroupSize Field = "tripInfo.groupSize"
	FieldTripPassword  Field = "tripInfo.password"

	FieldLodgingName     Field = "lodging.name"
	FieldLodgingAddress  Field = "lodging.address"
	FieldLodgingVRBOLink Field = "lodging.vrboLink"
	FieldLodgingCheckIn  Field = "lodging.checkIn"
	FieldLodgingCheckOut Field = "lodging.checkOut"
	FieldLodgingNotes    Field = "lodging.notes"

	FieldEmergencyHospital    Field = "emergency.hospital"
	FieldEmergencyPharmacy    Field = "emergency.pharmacy"
	FieldEmergencyContact     Field = "emergency.emergencyContact"
	FieldEmergencyMeetingSpot Field = "emergency.meetingSpot"
)

// FlightField names an editable leg attribute; combined with a
// FlightLegKey it addresses one leaf under flights.
type FlightField string

const (
	FlightAirline          FlightField = "airline"
	FlightNumber           FlightField = "flightNumber"
	FlightDepartureAirport FlightField = "departureAirport"
	FlightArrivalAirport   FlightField = "arrivalAirport"
	FlightDepartureTime    FlightField = "departureTime"
	FlightArrivalTime      FlightField = "arrivalTime"
	FlightTerminal         FlightField = "terminal"
	FlightGate             FlightField = "gate"
	FlightDate             FlightField = "date"
)

// SetField assigns a leaf value. It reports false for an unknown field
// or an unparsable group size, leaving the document unchanged.
func SetField(d Document, field Field, value string) (Document, bool) {
	switch field {
	case FieldTripTitle:
		d.TripInfo.Title = value
	case FieldTripDates:
		d.TripInfo.Dates = value
	case FieldTripGroupSize:
		n, err := strconv.Atoi(value)
		if err != nil {
			return d, false
		}
		d.TripInfo.GroupSize = n
	case FieldTripPassword:
		d.TripInfo.Password = value
	case FieldLodgingName:
		d.Lodging.Name = value
	case FieldLodgingAddress:
		d.Lodging.Address = value
	case FieldLodgingVRBOLink:
		d.Lodging.VRBOLink = value
	case FieldLodgingCheckIn:
		d.Lodging.CheckIn = value
	case FieldLodgingCheckOut:
		d.Lodging.CheckOut = value
	case FieldLodgingNotes:
		d.Lodging.Notes = value
	case FieldEmergencyHospital:
		d.Emergency.Hospital = value
	case FieldEmergencyPharmacy:
		d.Emergency.Pharmacy = value
	case FieldEmergencyContact:
		d.Emergency.EmergencyContact = value
	case FieldEmergencyMeetingSpot:
		d.Emergency.MeetingSpot = value
	default:
		return d, false
	}
	return d, true
}

// SetFlightField assigns one leg attribute. It reports false for an
// unknown leg or field.
func SetFlightField(d Document, leg FlightLegKey, field FlightField, value string) (Document, bool) {
	var target *FlightLeg
	switch leg {
	case LegArrival:
		target = &d.Flights.Arrival
	case LegDeparture:
		target = &d.Flights.Departure
	default:
		return d, false
	}
	switch field {
	case FlightAirline:
		target.Airline = value
	case FlightNumber:
		target.FlightNumber = value
	case FlightDepartureAirport:
		target.DepartureAirport = value
	case FlightArrivalAirport:
		target.ArrivalAirport = value
	case FlightDepartureTime:
		target.DepartureTime = value
	case FlightArrivalTime:
		target.ArrivalTime = value
	case FlightTerminal:
		target.Terminal = value
	case FlightGate:
		target.Gate = value
	case FlightDate:
		target.Date = value
	default:
		return d, false
	}
	return d, true
}
