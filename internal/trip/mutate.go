package trip

import (
	"strings"
	"time"

	"tripboard/api/internal/util"
)

// HistoryCap bounds the edit-history feed; the oldest entries beyond
// it are dropped, not archived.
const HistoryCap = 50

// Every operation below is a pure transform: it returns a new document
// and never modifies its input. Operations that represent a meaningful
// user action append a history entry themselves; votes and per-field
// member edits do not, matching the behavior participants expect from
// the activity feed.

// AppendHistory prepends a history entry attributed to actor and drops
// entries beyond HistoryCap. A blank actor is a no-op.
func AppendHistory(d Document, actor, action string) Document {
	if actor == "" {
		return d
	}
	entry := HistoryEntry{User: actor, Action: action, Time: nowISO()}
	history := make([]HistoryEntry, 0, HistoryCap)
	history = append(history, entry)
	rest := d.EditHistory
	if len(rest) > HistoryCap-1 {
		rest = rest[:HistoryCap-1]
	}
	d.EditHistory = append(history, rest...)
	return d
}

// EditActivity replaces the text of the activity at index within the
// given day and marks it edited by actor. Unknown day or index out of
// range is a no-op.
func EditActivity(d Document, actor string, dayID, index int, text string) Document {
	day, i := findDay(d, dayID)
	if i < 0 || index < 0 || index >= len(day.Activities) {
		return d
	}
	acts := cloneActivities(day.Activities)
	acts[index] = Activity{Text: text, EditedBy: actor}
	d = replaceDayActivities(d, i, acts)
	return AppendHistory(d, actor, "edited "+day.Label)
}

// AddActivity appends a blank activity to the day, attributed to actor.
func AddActivity(d Document, actor string, dayID int) Document {
	day, i := findDay(d, dayID)
	if i < 0 {
		return d
	}
	acts := cloneActivities(day.Activities)
	acts = append(acts, Activity{EditedBy: actor})
	d = replaceDayActivities(d, i, acts)
	return AppendHistory(d, actor, "added activity to "+day.Label)
}

// RemoveActivity deletes the activity at index; the remaining entries
// close the gap, there are no tombstones.
func RemoveActivity(d Document, actor string, dayID, index int) Document {
	day, i := findDay(d, dayID)
	if i < 0 || index < 0 || index >= len(day.Activities) {
		return d
	}
	acts := make([]Activity, 0, len(day.Activities)-1)
	acts = append(acts, day.Activities[:index]...)
	acts = append(acts, day.Activities[index+1:]...)
	d = replaceDayActivities(d, i, acts)
	return AppendHistory(d, actor, "removed activity from "+day.Label)
}

// ReorderActivities moves the activity at from to position to, with
// splice semantics: the item is removed first, then inserted, so when
// from < to the items in between shift left before the insert. Only the
// moved item is marked edited by actor.
func ReorderActivities(d Document, actor string, dayID, from, to int) Document {
	day, i := findDay(d, dayID)
	if i < 0 || from < 0 || from >= len(day.Activities) || to < 0 || to >= len(day.Activities) {
		return d
	}
	acts := cloneActivities(day.Activities)
	moved := acts[from]
	moved.EditedBy = actor
	acts = append(acts[:from], acts[from+1:]...)
	rest := make([]Activity, 0, len(acts)+1)
	rest = append(rest, acts[:to]...)
	rest = append(rest, moved)
	rest = append(rest, acts[to:]...)
	d = replaceDayActivities(d, i, rest)
	return AppendHistory(d, actor, "reordered activities in "+day.Label)
}

// AddFamily appends a new empty family. Blank last names are ignored.
func AddFamily(d Document, actor, lastName string) Document {
	lastName = strings.TrimSpace(lastName)
	if lastName == "" {
		return d
	}
	families := cloneFamilies(d.Families)
	families = append(families, Family{
		ID:       ID(util.NewID("family")),
		LastName: lastName,
		Members:  []Member{},
	})
	d.Families = families
	return AppendHistory(d, actor, "added "+lastName+" family")
}

// RemoveFamily deletes a family; its members go with it.
func RemoveFamily(d Document, actor string, familyID ID) Document {
	families := make([]Family, 0, len(d.Families))
	for _, f := range d.Families {
		if f.ID != familyID {
			families = append(families, f)
		}
	}
	if len(families) == len(d.Families) {
		return d
	}
	d.Families = families
	return AppendHistory(d, actor, "removed family")
}

// AddFamilyMember appends a blank member to the family, inheriting the
// family last name and attributed to actor.
func AddFamilyMember(d Document, actor string, familyID ID) Document {
	families := cloneFamilies(d.Families)
	for i, f := range families {
		if f.ID != familyID {
			continue
		}
		members := cloneMembers(f.Members)
		members = append(members, Member{
			ID:       ID(util.NewID("member")),
			LastName: f.LastName,
			AddedBy:  actor,
		})
		families[i].Members = members
		d.Families = families
		return AppendHistory(d, actor, "added family member")
	}
	return d
}

// RemoveFamilyMember deletes one member from a family.
func RemoveFamilyMember(d Document, actor string, familyID, memberID ID) Document {
	families := cloneFamilies(d.Families)
	for i, f := range families {
		if f.ID != familyID {
			continue
		}
		members := make([]Member, 0, len(f.Members))
		for _, m := range f.Members {
			if m.ID != memberID {
				members = append(members, m)
			}
		}
		if len(members) == len(f.Members) {
			return d
		}
		families[i].Members = members
		d.Families = families
		return AppendHistory(d, actor, "removed family member")
	}
	return d
}

// MemberField names an editable member field. Free-form string paths
// invite typos; the set is closed instead.
type MemberField string

const (
	MemberFirstName             MemberField = "firstName"
	MemberLastName              MemberField = "lastName"
	MemberBirthdate             MemberField = "birthdate"
	MemberPhone                 MemberField = "phone"
	MemberEmergencyContactName  MemberField = "emergencyContactName"
	MemberEmergencyContactPhone MemberField = "emergencyContactPhone"
	MemberOtherInfo             MemberField = "otherInfo"
)

// UpdateFamilyMember sets one field on a member and records the actor
// as its last editor. Unknown fields, families, or members are no-ops.
func UpdateFamilyMember(d Document, actor string, familyID, memberID ID, field MemberField, value string) Document {
	families := cloneFamilies(d.Families)
	for i, f := range families {
		if f.ID != familyID {
			continue
		}
		members := cloneMembers(f.Members)
		for j, m := range members {
			if m.ID != memberID {
				continue
			}
			switch field {
			case MemberFirstName:
				m.FirstName = value
			case MemberLastName:
				m.LastName = value
			case MemberBirthdate:
				m.Birthdate = value
			case MemberPhone:
				m.Phone = value
			case MemberEmergencyContactName:
				m.EmergencyContactName = value
			case MemberEmergencyContactPhone:
				m.EmergencyContactPhone = value
			case MemberOtherInfo:
				m.OtherInfo = value
			default:
				return d
			}
			m.LastEditedBy = actor
			members[j] = m
			families[i].Members = members
			d.Families = families
			return d
		}
	}
	return d
}

// AddRecommendation appends a recommendation seeded with zero votes.
func AddRecommendation(d Document, actor, title, description, category string) Document {
	recs := make([]Recommendation, len(d.Recommendations), len(d.Recommendations)+1)
	copy(recs, d.Recommendations)
	recs = append(recs, Recommendation{
		ID:          ID(util.NewID("rec")),
		Title:       title,
		Description: description,
		Category:    category,
		Votes:       0,
		AddedBy:     actor,
		Voters:      []string{},
	})
	d.Recommendations = recs
	return AppendHistory(d, actor, "added tip: "+title)
}

// VoteRecommendation records one vote by actor. A repeat vote by the
// same actor is a no-op, keeping votes equal to the voter count.
func VoteRecommendation(d Document, actor string, id ID) Document {
	recs := make([]Recommendation, len(d.Recommendations))
	copy(recs, d.Recommendations)
	for i, r := range recs {
		if r.ID != id || containsString(r.Voters, actor) {
			continue
		}
		voters := make([]string, len(r.Voters), len(r.Voters)+1)
		copy(voters, r.Voters)
		r.Voters = append(voters, actor)
		r.Votes = len(r.Voters)
		recs[i] = r
	}
	d.Recommendations = recs
	return d
}

// PostAnnouncement prepends an announcement so the feed stays
// most-recent-first.
func PostAnnouncement(d Document, actor, text string) Document {
	anns := make([]Announcement, 0, len(d.Announcements)+1)
	anns = append(anns, Announcement{
		ID:     ID(util.NewID("ann")),
		Text:   text,
		Author: actor,
		Time:   nowISO(),
	})
	anns = append(anns, d.Announcements...)
	d.Announcements = anns
	return AppendHistory(d, actor, "posted announcement")
}

// AddPoll appends a poll with the given options, each starting empty.
func AddPoll(d Document, actor, question string, options []string) Document {
	opts := make([]PollOption, len(options))
	for i, text := range options {
		opts[i] = PollOption{Text: text, Votes: 0, Voters: []string{}}
	}
	polls := make([]Poll, len(d.Polls), len(d.Polls)+1)
	copy(polls, d.Polls)
	polls = append(polls, Poll{
		ID:        ID(util.NewID("poll")),
		Question:  question,
		Options:   opts,
		AddedBy:   actor,
		CreatedAt: nowISO(),
	})
	d.Polls = polls
	return AppendHistory(d, actor, "created poll: "+question)
}

// VotePoll records one vote by actor on an option. Idempotence is
// scoped per option, so an actor may still vote on several options of
// the same poll; that matches how the polls have always behaved.
func VotePoll(d Document, actor string, pollID ID, optionIndex int) Document {
	polls := make([]Poll, len(d.Polls))
	copy(polls, d.Polls)
	for i, p := range polls {
		if p.ID != pollID || optionIndex < 0 || optionIndex >= len(p.Options) {
			continue
		}
		opt := p.Options[optionIndex]
		if containsString(opt.Voters, actor) {
			continue
		}
		opts := make([]PollOption, len(p.Options))
		copy(opts, p.Options)
		voters := make([]string, len(opt.Voters), len(opt.Voters)+1)
		copy(voters, opt.Voters)
		opt.Voters = append(voters, actor)
		opt.Votes = len(opt.Voters)
		opts[optionIndex] = opt
		p.Options = opts
		polls[i] = p
	}
	d.Polls = polls
	return d
}

// RemovePoll deletes a poll.
func RemovePoll(d Document, actor string, pollID ID) Document {
	polls := make([]Poll, 0, len(d.Polls))
	for _, p := range d.Polls {
		if p.ID != pollID {
			polls = append(polls, p)
		}
	}
	if len(polls) == len(d.Polls) {
		return d
	}
	d.Polls = polls
	return AppendHistory(d, actor, "removed poll")
}

// AddBudgetTip appends a budget tip.
func AddBudgetTip(d Document, actor, text, category string) Document {
	tips := make([]BudgetTip, len(d.BudgetTips), len(d.BudgetTips)+1)
	copy(tips, d.BudgetTips)
	tips = append(tips, BudgetTip{
		ID:       ID(util.NewID("tip")),
		Text:     text,
		Category: category,
		AddedBy:  actor,
	})
	d.BudgetTips = tips
	return AppendHistory(d, actor, "added budget tip")
}

// RemoveBudgetTip deletes a budget tip.
func RemoveBudgetTip(d Document, actor string, tipID ID) Document {
	tips := make([]BudgetTip, 0, len(d.BudgetTips))
	for _, t := range d.BudgetTips {
		if t.ID != tipID {
			tips = append(tips, t)
		}
	}
	if len(tips) == len(d.BudgetTips) {
		return d
	}
	d.BudgetTips = tips
	return AppendHistory(d, actor, "removed budget tip")
}

// FlightLegKey selects one of the two flight legs.
type FlightLegKey string

const (
	LegArrival   FlightLegKey = "arrival"
	LegDeparture FlightLegKey = "departure"
)

// FlightStatus is the tracking stamp applied to a leg.
type FlightStatus struct {
	Status      string
	TrackingURL string
	LastUpdated string
}

// SetFlightStatus stamps tracking info onto a leg and records the
// action in history.
func SetFlightStatus(d Document, actor string, leg FlightLegKey, status FlightStatus) Document {
	var target *FlightLeg
	switch leg {
	case LegArrival:
		target = &d.Flights.Arrival
	case LegDeparture:
		target = &d.Flights.Departure
	default:
		return d
	}
	target.Status = status.Status
	target.TrackingURL = status.TrackingURL
	target.LastUpdated = status.LastUpdated
	return AppendHistory(d, actor, "tracked "+string(leg)+" flight "+target.FlightNumber)
}

func findDay(d Document, dayID int) (Day, int) {
	for i, day := range d.Days {
		if day.ID == dayID {
			return day, i
		}
	}
	return Day{}, -1
}

func replaceDayActivities(d Document, index int, acts []Activity) Document {
	days := make([]Day, len(d.Days))
	copy(days, d.Days)
	days[index].Activities = acts
	d.Days = days
	return d
}

func cloneActivities(acts []Activity) []Activity {
	out := make([]Activity, len(acts))
	copy(out, acts)
	return out
}

func cloneFamilies(families []Family) []Family {
	out := make([]Family, len(families))
	copy(out, families)
	return out
}

func cloneMembers(members []Member) []Member {
	out := make([]Member, len(members))
	copy(out, members)
	return out
}

func containsString(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}
