// Package search provides full-text search over the trip plan:
// activities, recommendations, budget tips, and polls.
package search

import (
	"strconv"

	"tripboard/api/internal/trip"
)

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultActivity       ResultType = "activity"
	ResultRecommendation ResultType = "recommendation"
	ResultBudgetTip      ResultType = "budgetTip"
	ResultPoll           ResultType = "poll"
)

// Record is one indexed entry derived from the trip document.
type Record struct {
	ID       string     `json:"id"`
	Type     ResultType `json:"type"`
	Title    string     `json:"title"`
	Text     string     `json:"text"`
	Category string     `json:"category,omitempty"`
}

// Result is a single search hit returned to the caller.
type Result struct {
	Type     ResultType `json:"type"`
	ID       string     `json:"id"`
	Title    string     `json:"title"`
	Snippet  string     `json:"snippet"`
	Category string     `json:"category,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over the current records.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Records flattens a document into index entries.
func Records(d trip.Document) []Record {
	var out []Record
	for _, day := range d.Days {
		for i, activity := range day.Activities {
			out = append(out, Record{
				ID:    recordID("activity", day.ID, i),
				Type:  ResultActivity,
				Title: day.Label,
				Text:  activity.Text,
			})
		}
	}
	for _, rec := range d.Recommendations {
		out = append(out, Record{
			ID:       "rec-" + string(rec.ID),
			Type:     ResultRecommendation,
			Title:    rec.Title,
			Text:     rec.Description,
			Category: rec.Category,
		})
	}
	for _, tip := range d.BudgetTips {
		out = append(out, Record{
			ID:       "tip-" + string(tip.ID),
			Type:     ResultBudgetTip,
			Title:    tip.Text,
			Text:     tip.Text,
			Category: tip.Category,
		})
	}
	for _, poll := range d.Polls {
		text := poll.Question
		for _, opt := range poll.Options {
			text += " " + opt.Text
		}
		out = append(out, Record{
			ID:    "poll-" + string(poll.ID),
			Type:  ResultPoll,
			Title: poll.Question,
			Text:  text,
		})
	}
	return out
}

func recordID(kind string, dayID, index int) string {
	return kind + "-" + strconv.Itoa(dayID) + "-" + strconv.Itoa(index)
}
