package projection

import (
	"sync"

	"github.com/starford/protasker/internal/models"
	"github.com/starford/protasker/internal/query"
)

// Mode is the active restriction of a view.
type Mode string

const (
	ModeUnfiltered Mode = "unfiltered"
	ModeSearching  Mode = "searching"
	ModeFiltered   Mode = "filtered"
)

// ViewState is a snapshot of a View.
type ViewState struct {
	Mode     Mode   `json:"mode"`
	Query    string `json:"query,omitempty"`
	Type     string `json:"type,omitempty"`
	Category string `json:"category,omitempty"`
	Results  int    `json:"results"`
}

// View holds the search/filter state of one tree view. Searching and
// Filtered are mutually exclusive: entering either replaces the other.
type View struct {
	mu      sync.Mutex
	state   ViewState
	results *query.ResultSet
}

// NewView returns an unfiltered view.
func NewView() *View {
	return &View{state: ViewState{Mode: ModeUnfiltered}}
}

// Search enters Searching with an already computed result list.
func (v *View) Search(q string, results []models.Located) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.results = query.NewResultSet(results)
	v.state = ViewState{Mode: ModeSearching, Query: q, Results: v.results.Len()}
}

// Filter enters Filtered with an already computed result list.
func (v *View) Filter(typ, category string, results []models.Located) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.results = query.NewResultSet(results)
	v.state = ViewState{Mode: ModeFiltered, Type: typ, Category: category, Results: v.results.Len()}
}

// Reset returns to Unfiltered.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.results = nil
	v.state = ViewState{Mode: ModeUnfiltered}
}

// State returns the current state.
func (v *View) State() ViewState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Results returns the active restriction, nil when unfiltered.
func (v *View) Results() *query.ResultSet {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.results
}

// Refresh re-runs the active query against src so the restriction follows
// store changes. An error leaves the previous result set in place.
func (v *View) Refresh(src query.Source) error {
	st := v.State()
	switch st.Mode {
	case ModeSearching:
		res := query.Search(src, st.Query)
		v.mu.Lock()
		if v.state.Mode == ModeSearching && v.state.Query == st.Query {
			v.results = query.NewResultSet(res)
			v.state.Results = v.results.Len()
		}
		v.mu.Unlock()
	case ModeFiltered:
		res, err := query.Filter(src, st.Type, st.Category)
		if err != nil {
			return err
		}
		v.mu.Lock()
		if v.state.Mode == ModeFiltered && v.state.Type == st.Type && v.state.Category == st.Category {
			v.results = query.NewResultSet(res)
			v.state.Results = v.results.Len()
		}
		v.mu.Unlock()
	}
	return nil
}
