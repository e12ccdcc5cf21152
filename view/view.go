// Package view holds the explicit UI state for the gallery page and the
// pure functions that turn query results into a renderable page. Handlers
// parse state from the request, run the queries, and hand everything here;
// nothing in this package touches the database or the object store.
package view

import (
	"net/url"
	"path"
	"strconv"
	"strings"
)

// State is everything the user has selected: filter controls plus the two
// comparison picks. Zero values mean the control is unset.
type State struct {
	Label       string
	LabelDetail string
	Search      string
	MinScore    float64
	MaxScore    float64
	Left        string
	Right       string
}

// ParseState reads gallery state from query parameters. The score range
// defaults to the table's bounds and is clamped into them; an inverted
// range is swapped rather than rejected.
func ParseState(q url.Values, boundsMin, boundsMax float64) State {
	st := State{
		Label:       q.Get("label"),
		LabelDetail: q.Get("label_detail"),
		Search:      q.Get("search"),
		MinScore:    boundsMin,
		MaxScore:    boundsMax,
		Left:        q.Get("left"),
		Right:       q.Get("right"),
	}

	if v, err := strconv.ParseFloat(q.Get("min_score"), 64); err == nil {
		st.MinScore = v
	}
	if v, err := strconv.ParseFloat(q.Get("max_score"), 64); err == nil {
		st.MaxScore = v
	}

	if st.MinScore < boundsMin {
		st.MinScore = boundsMin
	}
	if st.MaxScore > boundsMax {
		st.MaxScore = boundsMax
	}
	if st.MinScore > st.MaxScore {
		st.MinScore, st.MaxScore = st.MaxScore, st.MinScore
	}
	return st
}

// Panel is one side of the two-image comparison.
type Panel struct {
	Path        string
	Label       string
	LabelDetail string
	Score       float64
	HasRecord   bool
}

// Filename is the Panel's display name.
func (p Panel) Filename() string {
	return Filename(p.Path)
}

// Page is everything the gallery template renders.
type Page struct {
	State        State
	Labels       []string
	LabelDetails []string
	BoundsMin    float64
	BoundsMax    float64
	Paths        []string
	Total        int64
	Left         *Panel
	Right        *Panel
	Empty        bool
	Error        string
}

// NewPage assembles the page. Comparison picks that are no longer in the
// filtered result set are dropped, so narrowing the filters can never show
// a stale image; an empty result set therefore renders zero comparison
// options.
func NewPage(st State, labels, details []string, boundsMin, boundsMax float64, paths []string, total int64) Page {
	if !contains(paths, st.Left) {
		st.Left = ""
	}
	if !contains(paths, st.Right) {
		st.Right = ""
	}
	return Page{
		State:        st,
		Labels:       labels,
		LabelDetails: details,
		BoundsMin:    boundsMin,
		BoundsMax:    boundsMax,
		Paths:        paths,
		Total:        total,
		Empty:        len(paths) == 0,
	}
}

// ErrorPage is the page rendered when a query fails: just the banner.
func ErrorPage(err error) Page {
	return Page{Empty: true, Error: err.Error(), BoundsMax: 1}
}

// DisplayPath strips the dbfs: scheme for display.
func DisplayPath(p string) string {
	if strings.HasPrefix(p, "dbfs:/Volumes/") {
		return strings.TrimPrefix(p, "dbfs:")
	}
	return p
}

// Filename is the last path element, used for dropdown labels.
func Filename(p string) string {
	return path.Base(DisplayPath(p))
}

func contains(paths []string, p string) bool {
	if p == "" {
		return false
	}
	for _, candidate := range paths {
		if candidate == p {
			return true
		}
	}
	return false
}
