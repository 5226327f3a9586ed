package feed

import (
	"strings"
	"time"

	"github.com/hamed0406/servicecheck/internal/domain"
)

type Area struct {
	Name    string              `json:"name"`
	Records []domain.FeedRecord `json:"records"`
}

// Snapshot is one successfully decoded feed response. A nil *Snapshot means
// the feed was absent for the cycle, which is not the same as a record that
// reports Running=false.
type Snapshot struct {
	FetchedAt time.Time `json:"fetched_at"`
	Total     int       `json:"total"`
	Areas     []Area    `json:"areas"`

	index map[string]domain.FeedRecord
}

func NewSnapshot(fetchedAt time.Time, total int, areas []Area) *Snapshot {
	s := &Snapshot{
		FetchedAt: fetchedAt,
		Total:     total,
		Areas:     areas,
		index:     make(map[string]domain.FeedRecord),
	}
	for _, a := range areas {
		for _, r := range a.Records {
			key := strings.ToLower(r.Name)
			if _, dup := s.index[key]; !dup {
				s.index[key] = r
			}
		}
	}
	return s
}

// Lookup finds a record by case-insensitive exact name. The first area that
// lists the name wins. Safe on a nil snapshot.
func (s *Snapshot) Lookup(name string) (*domain.FeedRecord, bool) {
	if s == nil {
		return nil, false
	}
	if r, ok := s.index[strings.ToLower(name)]; ok {
		return &r, true
	}
	// ToLower keys miss some Unicode fold pairs, e.g. long s (U+017F) and S.
	for _, a := range s.Areas {
		for _, r := range a.Records {
			if strings.EqualFold(r.Name, name) {
				return &r, true
			}
		}
	}
	return nil, false
}

// Len is the number of distinct service names in the snapshot.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.index)
}
