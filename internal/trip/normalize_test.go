package trip

import (
	"strings"
	"testing"
)

func TestNormalizeUndecodablePayloadFallsBackToSeed(t *testing.T) {
	d := Normalize([]byte("not json"))
	if d.TripInfo.Title != "Disney Family Trip 2026" {
		t.Fatalf("expected seed document, got title %q", d.TripInfo.Title)
	}
	if len(d.Days) != 7 {
		t.Fatalf("expected 7 seed days, got %d", len(d.Days))
	}
}

func TestNormalizeCoercesStringActivities(t *testing.T) {
	raw := []byte(`{"days":[{"id":1,"label":"Arrival Day","activities":["check in",{"text":"pool","editedBy":"Maya"}]}]}`)
	d := Normalize(raw)

	acts := d.Days[0].Activities
	if len(acts) != 2 {
		t.Fatalf("expected 2 activities, got %d", len(acts))
	}
	if acts[0].Text != "check in" || acts[0].EditedBy != "" {
		t.Fatalf("bare string should coerce to text-only activity: %+v", acts[0])
	}
	if acts[1].Text != "pool" || acts[1].EditedBy != "Maya" {
		t.Fatalf("object activity should pass through: %+v", acts[1])
	}
}

func TestNormalizeAcceptsNumericIDs(t *testing.T) {
	raw := []byte(`{"days":[],"recommendations":[{"id":1717171717171,"title":"Old tip","votes":3,"voters":["a","b","c"]}]}`)
	d := Normalize(raw)

	var found bool
	for _, r := range d.Recommendations {
		if r.ID == "1717171717171" {
			found = true
		}
	}
	if !found {
		t.Fatalf("numeric id should decode as its string form, got %+v", d.Recommendations)
	}
}

func TestNormalizeBackfillsDefaultsByIDUnion(t *testing.T) {
	raw := []byte(`{"budgetTips":[{"id":"2","text":"custom replacement","addedBy":"Maya"},{"id":"mine","text":"my tip","addedBy":"Maya"}]}`)
	d := Normalize(raw)

	byID := map[ID]BudgetTip{}
	for _, tip := range d.BudgetTips {
		byID[tip.ID] = tip
	}
	if byID["2"].Text != "custom replacement" {
		t.Fatalf("stored tip should win over the seed: %+v", byID["2"])
	}
	if _, ok := byID["mine"]; !ok {
		t.Fatal("user tip should survive")
	}
	if _, ok := byID["10"]; !ok {
		t.Fatal("seed tips absent from the payload should be backfilled")
	}
	if len(d.BudgetTips) != 11 {
		t.Fatalf("expected 2 stored + 9 backfilled tips, got %d", len(d.BudgetTips))
	}
}

func TestNormalizeBackfillsEmptyCollections(t *testing.T) {
	d := Normalize([]byte(`{}`))
	if d.Polls == nil || d.Announcements == nil || d.EditHistory == nil || d.Families == nil {
		t.Fatal("nil collections should become empty slices")
	}
	if len(d.Recommendations) == 0 || len(d.BudgetTips) == 0 {
		t.Fatal("empty recommendations and tips should take the seed set")
	}
	if d.Flights.Arrival.FlightNumber != "2967" {
		t.Fatalf("zero flights should take the seed legs, got %+v", d.Flights.Arrival)
	}
}

func TestMigrateContacts(t *testing.T) {
	raw := []byte(`{"contacts":[
		{"id":"c1","name":"Maya Rhodes","phone":"555-0001","email":"maya@example.com","room":"2B","notes":"early riser","addedBy":"Maya"},
		{"id":"c2","name":"Ben Rhodes","phone":"555-0002"},
		{"id":"c3","name":"Cher"}
	]}`)
	d := Normalize(raw)

	if d.Contacts != nil {
		t.Fatal("contacts should be cleared after migration")
	}
	if len(d.Families) != 2 {
		t.Fatalf("expected Rhodes and Unknown families, got %+v", d.Families)
	}

	rhodes := d.Families[0]
	if rhodes.LastName != "Rhodes" || len(rhodes.Members) != 2 {
		t.Fatalf("unexpected first family: %+v", rhodes)
	}
	maya := rhodes.Members[0]
	if maya.FirstName != "Maya" || maya.Phone != "555-0001" || maya.AddedBy != "Maya" {
		t.Fatalf("unexpected migrated member: %+v", maya)
	}
	if !strings.Contains(maya.OtherInfo, "early riser") ||
		!strings.Contains(maya.OtherInfo, "Email: maya@example.com") ||
		!strings.Contains(maya.OtherInfo, "Room: 2B") {
		t.Fatalf("notes, email and room should fold into otherInfo: %q", maya.OtherInfo)
	}

	unknown := d.Families[1]
	if unknown.LastName != "Unknown" || len(unknown.Members) != 1 || unknown.Members[0].FirstName != "Cher" {
		t.Fatalf("single-token names should land in Unknown: %+v", unknown)
	}
}

func TestMigrateContactsSkippedWhenFamiliesExist(t *testing.T) {
	raw := []byte(`{"families":[{"id":"f1","lastName":"Rhodes","members":[]}],"contacts":[{"id":"c1","name":"Old Contact"}]}`)
	d := Normalize(raw)

	if len(d.Families) != 1 || d.Families[0].ID != "f1" {
		t.Fatalf("existing families should win, got %+v", d.Families)
	}
	if d.Contacts != nil {
		t.Fatal("stale contacts should still be cleared")
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raw := []byte(`{"contacts":[{"id":"c1","name":"Maya Rhodes"}],"budgetTips":[{"id":"mine","text":"tip"}]}`)
	once := Normalize(raw)
	twice := normalizeDocument(once)

	if string(Serialize(once)) != string(Serialize(twice)) {
		t.Fatal("normalizing a normalized document should change nothing")
	}
}
