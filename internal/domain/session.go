package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Session is the active working unit: one or more processed documents plus
// the cumulative chat history. A zero ID means no session is active and the
// view routes to the welcome screen.
type Session struct {
	ID        string        `json:"id"`
	Documents []Document    `json:"documents"`
	History   []Interaction `json:"history"`
}

// Active reports whether a session has been created or loaded.
func (s Session) Active() bool {
	return s.ID != ""
}

// SessionSummary is one row of the backend's session listing.
type SessionSummary struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
	Date string      `json:"date"`
	Docs int         `json:"docs"`
}

// Label renders the summary the way the session picker displays it.
func (s SessionSummary) Label() string {
	unit := "docs"
	if s.Docs == 1 {
		unit = "doc"
	}
	return s.Name + " (" + s.Date + ") - " + strconv.Itoa(s.Docs) + " " + unit
}

// Interaction is one question/answer exchange with its supporting results.
// Interactions are appended to the history in order and never mutated.
type Interaction struct {
	Question string        `json:"question"`
	Response string        `json:"response"`
	Sources  []QueryResult `json:"sources"`
}

// QueryResult is one retrieved passage backing an answer. It lives only
// inside the Interaction that produced it.
type QueryResult struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Page   int    `json:"page"`
	Score  Score  `json:"score"`
}

// SourceName returns the bare filename of the result's source path.
func (r QueryResult) SourceName() string {
	s := r.Source
	if i := strings.LastIndexAny(s, "/\\"); i >= 0 {
		s = s[i+1:]
	}
	if s == "" {
		return "Unknown"
	}
	return s
}

// Score is the relevance distance reported by the backend. It arrives as a
// JSON number or, from older backends, as an arbitrary string; anything that
// does not parse as a number is carried as unscored rather than rejected.
type Score struct {
	value float64
	valid bool
}

// ScoreOf builds a valid Score, mainly for tests and fixtures.
func ScoreOf(v float64) Score {
	return Score{value: v, valid: true}
}

func (s *Score) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		s.value, s.valid = n, true
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		if n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			s.value, s.valid = n, true
		}
	}
	// Unscored, never an unmarshal failure.
	return nil
}

func (s Score) MarshalJSON() ([]byte, error) {
	if !s.valid {
		return []byte("null"), nil
	}
	return json.Marshal(s.value)
}

// Relevance maps the distance to a display percentage, 100/(1+score).
// The second return is false when the score never parsed as a number.
func (s Score) Relevance() (float64, bool) {
	if !s.valid {
		return 0, false
	}
	return 100 / (1 + s.value), true
}
