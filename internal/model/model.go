// Package model defines the domain types used across the application.
package model

import "strings"

// ViewMode selects how a listing is ordered and, for top modes, over
// which time period.
type ViewMode int

// Supported view modes.
const (
	Rising ViewMode = iota
	Hot
	TopDay
	TopWeek
	TopMonth
	TopYear
	TopAll
)

var viewModeNames = map[ViewMode]string{
	Rising:   "Rising",
	Hot:      "Hot",
	TopDay:   "TopDay",
	TopWeek:  "TopWeek",
	TopMonth: "TopMonth",
	TopYear:  "TopYear",
	TopAll:   "TopAll",
}

var viewModePeriods = map[ViewMode]string{
	TopDay:   "day",
	TopWeek:  "week",
	TopMonth: "month",
	TopYear:  "year",
	TopAll:   "all",
}

// Modes returns all view modes in a fixed display order.
func Modes() []ViewMode {
	return []ViewMode{Rising, Hot, TopDay, TopWeek, TopMonth, TopYear, TopAll}
}

// String returns the display name of the mode, also used as the button
// label and callback data.
func (v ViewMode) String() string {
	if s, ok := viewModeNames[v]; ok {
		return s
	}
	return "Hot"
}

// IsTop reports whether the mode is one of the top-within-period variants.
func (v ViewMode) IsTop() bool {
	_, ok := viewModePeriods[v]
	return ok
}

// Period returns the time-period query value for top modes, "" otherwise.
func (v ViewMode) Period() string {
	return viewModePeriods[v]
}

// ParseViewMode maps a display name back to its mode. Unknown names
// default to Hot.
func ParseViewMode(s string) ViewMode {
	for m, name := range viewModeNames {
		if name == s {
			return m
		}
	}
	return Hot
}

// Request holds the parameters of one listing query sequence.
type Request struct {
	View     ViewMode
	Source   string
	Count    int
	Category string
	// Cursor is the opaque pagination token returned by the previous
	// page, "" on the first page. It is threaded forward verbatim.
	Cursor string
}

// NormalizedSource returns the source name with all whitespace removed.
func (r Request) NormalizedSource() string {
	return strings.Join(strings.Fields(r.Source), "")
}

// Entry is one item of a fetched listing page.
type Entry struct {
	Title  string
	URL    string // "" means text-only
	Pinned bool
	Self   bool
}

// Page is the result of one listing fetch.
type Page struct {
	Entries []Entry
	// NextCursor is the token for the following page, "" when the
	// listing is exhausted.
	NextCursor string
}

// MediaKind classifies an entry URL.
type MediaKind int

// Media kinds.
const (
	MediaNone MediaKind = iota
	MediaImage
	MediaVideo
)

// CatSources maps a category label to its ordered list of source names.
type CatSources map[string][]string
