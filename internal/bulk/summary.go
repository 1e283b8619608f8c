package bulk

import (
	"sort"
	"sync"
)

// Summary actions
const (
	ActionDeleteServiceGroup = "delete-service-group"
	ActionCreateServiceGroup = "create-service-group"
	ActionCreateServiceInfo  = "create-service-info"
	ActionCreateRedirect     = "create-redirect"
	ActionDeleteBusinessCard = "delete-business-card"
	ActionCreateBusinessCard = "create-business-card"
)

// Counts holds the outcomes of one action
type Counts struct {
	Success int `json:"success"`
	Error   int `json:"error"`
}

// Recorder receives every counted outcome, e.g. for metrics
type Recorder interface {
	RecordImportAction(action string, success bool)
}

type noopRecorder struct{}

func (noopRecorder) RecordImportAction(string, bool) {}

// Summary counts successes and errors per action
type Summary struct {
	mu       sync.Mutex
	counts   map[string]*Counts
	recorder Recorder
}

func newSummary(recorder Recorder) *Summary {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Summary{counts: make(map[string]*Counts), recorder: recorder}
}

func (s *Summary) onSuccess(action string) {
	s.mu.Lock()
	s.get(action).Success++
	s.mu.Unlock()
	s.recorder.RecordImportAction(action, true)
}

func (s *Summary) onError(action string) {
	s.mu.Lock()
	s.get(action).Error++
	s.mu.Unlock()
	s.recorder.RecordImportAction(action, false)
}

// get requires mu
func (s *Summary) get(action string) *Counts {
	c, ok := s.counts[action]
	if !ok {
		c = &Counts{}
		s.counts[action] = c
	}
	return c
}

// Get returns the counts of action
func (s *Summary) Get(action string) Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counts[action]; ok {
		return *c
	}
	return Counts{}
}

// Snapshot returns a copy of all counts
func (s *Summary) Snapshot() map[string]Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counts, len(s.counts))
	for k, v := range s.counts {
		out[k] = *v
	}
	return out
}

// Actions returns the actions with at least one outcome, sorted
func (s *Summary) Actions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.counts))
	for k := range s.counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Totals sums all actions
func (s *Summary) Totals() Counts {
	s.mu.Lock()
	defer s.mu.Unlock()
	var t Counts
	for _, c := range s.counts {
		t.Success += c.Success
		t.Error += c.Error
	}
	return t
}
