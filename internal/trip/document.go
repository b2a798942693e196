// Package trip defines the shared trip document: its schema, seed
// content, normalization of older persisted shapes, and the catalog of
// pure mutation operations applied to it.
package trip

import (
	"encoding/json"
)

// Key is the identifier of the single shared document in the remote
// store. There is exactly one trip; no multi-document addressing.
const Key = "disney-family-trip-2026"

// ID is an entity identifier. Older persisted documents used numeric
// wall-clock ids for user-created records and string ids for seed
// records, so unmarshalling accepts both; new ids are opaque strings.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

type Document struct {
	TripInfo        TripInfo         `json:"tripInfo"`
	Flights         Flights          `json:"flights"`
	Lodging         Lodging          `json:"lodging"`
	Days            []Day            `json:"days"`
	Families        []Family         `json:"families"`
	Emergency       Emergency        `json:"emergency"`
	Recommendations []Recommendation `json:"recommendations"`
	BudgetTips      []BudgetTip      `json:"budgetTips"`
	Polls           []Poll           `json:"polls"`
	Announcements   []Announcement   `json:"announcements"`
	EditHistory     []HistoryEntry   `json:"editHistory"`

	// Contacts is the pre-families roster shape. Normalize folds it
	// into Families and clears it; it is never written back non-empty.
	Contacts []Contact `json:"contacts,omitempty"`
}

type TripInfo struct {
	Title     string `json:"title"`
	Dates     string `json:"dates"`
	GroupSize int    `json:"groupSize"`
	Password  string `json:"password"`
}

type Flights struct {
	Arrival   FlightLeg `json:"arrival"`
	Departure FlightLeg `json:"departure"`
}

type FlightLeg struct {
	Airline          string `json:"airline"`
	FlightNumber     string `json:"flightNumber"`
	DepartureAirport string `json:"departureAirport"`
	ArrivalAirport   string `json:"arrivalAirport"`
	DepartureTime    string `json:"departureTime"`
	ArrivalTime      string `json:"arrivalTime"`
	Terminal         string `json:"terminal"`
	Gate             string `json:"gate"`
	Date             string `json:"date"`
	Status           string `json:"status,omitempty"`
	TrackingURL      string `json:"trackingUrl,omitempty"`
	LastUpdated      string `json:"lastUpdated,omitempty"`
}

type Lodging struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	VRBOLink string `json:"vrboLink"`
	CheckIn  string `json:"checkIn"`
	CheckOut string `json:"checkOut"`
	Notes    string `json:"notes"`
}

// Day themes.
const (
	ThemeArrival   = "arrival"
	ThemePark      = "park"
	ThemeRest      = "rest"
	ThemeDeparture = "departure"
)

type Day struct {
	ID         int        `json:"id"`
	Date       string     `json:"date"`
	Label      string     `json:"label"`
	Theme      string     `json:"theme"`
	Activities []Activity `json:"activities"`
}

// Activity unmarshals from either an object or a bare string; older
// documents stored activities as plain strings.
type Activity struct {
	Text     string `json:"text"`
	EditedBy string `json:"editedBy,omitempty"`
}

func (a *Activity) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Activity{Text: s}
		return nil
	}
	type plain Activity
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*a = Activity(p)
	return nil
}

type Family struct {
	ID       ID       `json:"id"`
	LastName string   `json:"lastName"`
	Members  []Member `json:"members"`
}

type Member struct {
	ID                    ID     `json:"id"`
	FirstName             string `json:"firstName"`
	LastName              string `json:"lastName"`
	Birthdate             string `json:"birthdate"`
	Phone                 string `json:"phone"`
	EmergencyContactName  string `json:"emergencyContactName"`
	EmergencyContactPhone string `json:"emergencyContactPhone"`
	OtherInfo             string `json:"otherInfo"`
	AddedBy               string `json:"addedBy,omitempty"`
	LastEditedBy          string `json:"lastEditedBy,omitempty"`
}

type Emergency struct {
	Hospital         string `json:"hospital"`
	Pharmacy         string `json:"pharmacy"`
	EmergencyContact string `json:"emergencyContact"`
	MeetingSpot      string `json:"meetingSpot"`
}

type Recommendation struct {
	ID          ID       `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Votes       int      `json:"votes"`
	AddedBy     string   `json:"addedBy"`
	Voters      []string `json:"voters"`
}

type BudgetTip struct {
	ID       ID     `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
	AddedBy  string `json:"addedBy"`
}

type Poll struct {
	ID        ID           `json:"id"`
	Question  string       `json:"question"`
	Options   []PollOption `json:"options"`
	AddedBy   string       `json:"addedBy"`
	CreatedAt string       `json:"createdAt"`
}

type PollOption struct {
	Text   string   `json:"text"`
	Votes  int      `json:"votes"`
	Voters []string `json:"voters"`
}

type Announcement struct {
	ID     ID     `json:"id"`
	Text   string `json:"text"`
	Author string `json:"author"`
	Time   string `json:"time"`
}

type HistoryEntry struct {
	User   string `json:"user"`
	Action string `json:"action"`
	Time   string `json:"time"`
}

// Contact is the legacy roster entry kept only for migration.
type Contact struct {
	ID      ID     `json:"id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Room    string `json:"room"`
	Notes   string `json:"notes"`
	AddedBy string `json:"addedBy"`
}

// Serialize renders the document in its canonical persisted form. Two
// documents are considered identical when their serializations match.
func Serialize(d Document) []byte {
	raw, err := json.Marshal(d)
	if err != nil {
		// The document tree is plain data; marshalling cannot fail
		// for any value constructed through this package.
		return nil
	}
	return raw
}

// DefaultDocument returns the fully populated seed document used when
// the remote store holds no record yet.
func DefaultDocument() Document {
	return Document{
		TripInfo: TripInfo{
			Title:     "Disney Family Trip 2026",
			Dates:     "June 22–28, 2026",
			GroupSize: 15,
			Password:  "Disney2026",
		},
		Flights: Flights{
			Arrival: FlightLeg{
				Airline: "Allegiant Airlines", FlightNumber: "2967",
				DepartureAirport: "SBN", ArrivalAirport: "MCO",
				DepartureTime: "9:39 AM", ArrivalTime: "12:03 PM",
				Date: "2026-06-22",
			},
			Departure: FlightLeg{
				Airline: "Allegiant Airlines", FlightNumber: "2967",
				DepartureAirport: "MCO", ArrivalAirport: "SBN",
				DepartureTime: "6:15 AM", ArrivalTime: "8:44 AM",
				Date: "2026-06-28",
			},
		},
		Lodging: Lodging{CheckIn: "4:00 PM", CheckOut: "10:00 AM"},
		Days: []Day{
			{ID: 1, Date: "Sun, Jun 22", Label: "Arrival Day", Theme: ThemeArrival, Activities: activities(
				"Check-in at VRBO", "Grocery run for snacks & essentials", "Pool time to unwind", "Optional: Disney Springs dinner")},
			{ID: 2, Date: "Mon, Jun 23", Label: "Animal Kingdom", Theme: ThemePark, Activities: activities(
				"Rope drop: Flight of Passage", "Kilimanjaro Safari", "Key shows & character meets", "Exit by 2-3pm → Pool break", "Dinner at VRBO or nearby")},
			{ID: 3, Date: "Tue, Jun 24", Label: "Hollywood Studios", Theme: ThemePark, Activities: activities(
				"Early entry: Rise of the Resistance", "Slinky Dog Dash", "Midday pool break", "Evening return for Fantasmic")},
			{ID: 4, Date: "Wed, Jun 25", Label: "EPCOT", Theme: ThemePark, Activities: activities(
				"Guardians of the Galaxy (if available)", "Test Track / Frozen", "World Showcase exploration", "Group dinner reservation")},
			{ID: 5, Date: "Thu, Jun 26", Label: "Magic Kingdom", Theme: ThemePark, Activities: activities(
				"Rope drop priorities", "Classic rides & characters", "Midday break (highly recommended!)", "Return for fireworks spectacular")},
			{ID: 6, Date: "Fri, Jun 27", Label: "Rest & Recharge", Theme: ThemeRest, Activities: activities(
				"Sleep in!", "Pool day", "Mini golf or shopping", "Early dinner, early bedtime")},
			{ID: 7, Date: "Sat, Jun 28", Label: "Departure", Theme: ThemeDeparture, Activities: activities(
				"Pack & checkout", "Optional: quick park visit if time", "Safe travels home!")},
		},
		Families:  []Family{},
		Emergency: Emergency{},
		Recommendations: []Recommendation{
			{
				ID:    "ak-rope-drop-strategy",
				Title: "Animal Kingdom Rope Drop Strategy",
				Description: "ARRIVAL TIMES:\n" +
					"• Disney Resort Guests: Arrive at bus stop 1 hour before Early Park Entry\n" +
					"• Off-Property Guests: Arrive at park 45 minutes before regular park open (or 15 min before Early Park Entry)\n\n" +
					"PARK ENTRY (1 Hour Before Open):\n" +
					"• Scan into park and head LEFT (Disney Resort Guests) or RIGHT (Non-Resort Guests)\n" +
					"• Resort guests can queue for attractions; Non-resort guests wait until park open\n\n" +
					"EARLY PARK ENTRY (30 min before regular open):\n" +
					"• Start with Flight of Passage, then Na'vi River Journey\n" +
					"• Breakfast option: Satu'li Canteen\n\n" +
					"REGULAR PARK OPENING:\n" +
					"• Non-resort guests: Start with Dinosaur, Expedition Everest, or Kilimanjaro Safari\n" +
					"• Breakfast options: Yak & Yeti Local Foods Cafe or Kusafiri Bakery\n\n" +
					"PRO TIP: Ride Flight of Passage right before park closes for shorter waits!",
				Category: "Pro Tip",
				Votes:    0,
				AddedBy:  SystemActor,
				Voters:   []string{},
			},
		},
		BudgetTips: []BudgetTip{
			{ID: "1", Text: "Buy multi-day tickets - the more days, the cheaper per day!", Category: "🎟️ Tickets", AddedBy: SystemActor},
			{ID: "2", Text: "Pack breakfast & snacks at the VRBO - saves $20+/person/day", Category: "🍽️ Food & Dining", AddedBy: SystemActor},
			{ID: "3", Text: "Bring refillable water bottles - free water at any quick service", Category: "🍽️ Food & Dining", AddedBy: SystemActor},
			{ID: "4", Text: "Mobile order food to skip lines and avoid impulse buys", Category: "🍽️ Food & Dining", AddedBy: SystemActor},
			{ID: "5", Text: "Memory Maker ($169) covers unlimited photos for the whole group", Category: "📸 Photos & Souvenirs", AddedBy: SystemActor},
			{ID: "6", Text: "Visit water parks on check-in day - it's FREE for resort guests in summer 2026!", Category: "🏨 Lodging", AddedBy: SystemActor},
			{ID: "7", Text: "Book dining reservations 60 days out - hard to get for groups of 15", Category: "🍽️ Food & Dining", AddedBy: SystemActor},
			{ID: "8", Text: "Use Disney gift cards bought at Target with RedCard for 5% off", Category: "💡 General", AddedBy: SystemActor},
			{ID: "9", Text: "Download My Disney Experience app and set up Genie+ strategies", Category: "📱 Apps & Planning", AddedBy: SystemActor},
			{ID: "10", Text: "Eat at quick service for lunch, table service for dinner only", Category: "🍽️ Food & Dining", AddedBy: SystemActor},
		},
		Polls:         []Poll{},
		Announcements: []Announcement{},
		EditHistory:   []HistoryEntry{},
	}
}

// SystemActor marks seed records. Seed budget tips are protected from
// deletion by the presentation layer, not by this package.
const SystemActor = "System"

func activities(texts ...string) []Activity {
	out := make([]Activity, len(texts))
	for i, t := range texts {
		out[i] = Activity{Text: t}
	}
	return out
}
