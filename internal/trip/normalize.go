package trip

import (
	"encoding/json"
	"strings"

	"tripboard/api/internal/util"
)

// Decode parses a document payload. Activities stored as bare strings
// are coerced to the current shape during unmarshalling, which is the
// only normalization change-feed payloads receive.
func Decode(raw []byte) (Document, error) {
	var d Document
	if err := json.Unmarshal(raw, &d); err != nil {
		return Document{}, err
	}
	return d, nil
}

// Normalize turns a persisted payload into a fully shaped document.
// Fields missing from older documents are backfilled from the seed
// document, merging by id rather than overwriting. A payload that
// cannot be decoded at all falls back to the seed document wholesale;
// there is no partial recovery.
func Normalize(raw []byte) Document {
	d, err := Decode(raw)
	if err != nil {
		return DefaultDocument()
	}
	return normalizeDocument(d)
}

func normalizeDocument(d Document) Document {
	defaults := DefaultDocument()

	if len(d.Recommendations) == 0 {
		d.Recommendations = defaults.Recommendations
	} else {
		d.Recommendations = append(d.Recommendations, missingRecommendations(d.Recommendations, defaults.Recommendations)...)
	}

	if len(d.BudgetTips) == 0 {
		d.BudgetTips = defaults.BudgetTips
	} else {
		d.BudgetTips = append(d.BudgetTips, missingTips(d.BudgetTips, defaults.BudgetTips)...)
	}

	if d.Flights == (Flights{}) {
		d.Flights = defaults.Flights
	}
	if d.Days == nil {
		d.Days = defaults.Days
	}
	if d.Polls == nil {
		d.Polls = []Poll{}
	}
	if d.Announcements == nil {
		d.Announcements = []Announcement{}
	}
	if d.EditHistory == nil {
		d.EditHistory = []HistoryEntry{}
	}
	if d.Families == nil {
		d.Families = []Family{}
	}

	d = migrateContacts(d)
	return d
}

func missingRecommendations(have, defaults []Recommendation) []Recommendation {
	present := make(map[ID]bool, len(have))
	for _, r := range have {
		present[r.ID] = true
	}
	var missing []Recommendation
	for _, r := range defaults {
		if !present[r.ID] {
			missing = append(missing, r)
		}
	}
	return missing
}

func missingTips(have, defaults []BudgetTip) []BudgetTip {
	present := make(map[ID]bool, len(have))
	for _, t := range have {
		present[t.ID] = true
	}
	var missing []BudgetTip
	for _, t := range defaults {
		if !present[t.ID] {
			missing = append(missing, t)
		}
	}
	return missing
}

// migrateContacts folds the legacy flat contacts roster into families
// grouped by last name, then removes the roster. Grouping keys off the
// last whitespace-separated token of the contact name; single-token
// names land in an "Unknown" family.
func migrateContacts(d Document) Document {
	if len(d.Contacts) == 0 || len(d.Families) > 0 {
		d.Contacts = nil
		return d
	}

	index := make(map[string]int)
	var families []Family
	for _, contact := range d.Contacts {
		first, last := splitContactName(contact.Name)
		i, ok := index[last]
		if !ok {
			i = len(families)
			index[last] = i
			families = append(families, Family{
				ID:       ID(util.NewID("family")),
				LastName: last,
				Members:  []Member{},
			})
		}

		memberID := contact.ID
		if memberID == "" {
			memberID = ID(util.NewID("member"))
		}
		var other strings.Builder
		other.WriteString(contact.Notes)
		if contact.Email != "" {
			other.WriteString(" Email: " + contact.Email)
		}
		if contact.Room != "" {
			other.WriteString(" Room: " + contact.Room)
		}
		families[i].Members = append(families[i].Members, Member{
			ID:        memberID,
			FirstName: first,
			LastName:  last,
			Phone:     contact.Phone,
			OtherInfo: other.String(),
			AddedBy:   contact.AddedBy,
		})
	}

	d.Families = families
	d.Contacts = nil
	return d
}

func splitContactName(name string) (first, last string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "", "Unknown"
	case 1:
		return parts[0], "Unknown"
	default:
		return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
	}
}
