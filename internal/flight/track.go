// Package flight derives tracking links for the trip's flight legs.
// There is no live status API; tracking stamps a FlightAware link and
// a timestamp onto the leg.
package flight

import (
	"strings"
	"time"

	"tripboard/api/internal/trip"
)

// iataCode maps the airline names participants actually type to IATA
// carrier codes. Unknown airlines fall back to the bare flight number.
func iataCode(airline string) string {
	switch {
	case strings.Contains(airline, "Allegiant"):
		return "G4"
	case strings.Contains(airline, "Delta"):
		return "DL"
	case strings.Contains(airline, "Southwest"):
		return "WN"
	case strings.Contains(airline, "American"):
		return "AA"
	case strings.Contains(airline, "United"):
		return "UA"
	default:
		return ""
	}
}

// Track returns the tracking stamp for a leg, or false when the leg
// has no airline or flight number to track.
func Track(leg trip.FlightLeg, now time.Time) (trip.FlightStatus, bool) {
	if leg.FlightNumber == "" || leg.Airline == "" {
		return trip.FlightStatus{}, false
	}
	flightCode := leg.FlightNumber
	if code := iataCode(leg.Airline); code != "" {
		flightCode = code + leg.FlightNumber
	}
	return trip.FlightStatus{
		Status:      "Tracked",
		TrackingURL: "https://www.flightaware.com/live/flight/" + flightCode,
		LastUpdated: now.UTC().Format(time.RFC3339),
	}, true
}

// Imminent reports whether a leg departs today or tomorrow, the window
// in which the refresher keeps its tracking stamp current.
func Imminent(leg trip.FlightLeg, now time.Time) bool {
	if leg.Date == "" || leg.FlightNumber == "" || leg.Airline == "" {
		return false
	}
	today := now.UTC().Format("2006-01-02")
	tomorrow := now.UTC().Add(24 * time.Hour).Format("2006-01-02")
	return leg.Date == today || leg.Date == tomorrow
}
