// Package models defines data structures shared by the checker, the
// aggregator and the report writers.
package models

import "fmt"

// DefaultCoach is assigned to seekers whose coach cell is blank.
const DefaultCoach = "Placements"

// Slot identifies one of the three project categories tracked per seeker.
type Slot int

const (
	Solo Slot = iota
	Capstone
	Group

	// NumSlots is the number of project slots per seeker.
	NumSlots = 3
)

// Slots lists every slot in report order.
var Slots = [NumSlots]Slot{Solo, Capstone, Group}

func (s Slot) String() string {
	switch s {
	case Solo:
		return "solo"
	case Capstone:
		return "capstone"
	case Group:
		return "group"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// Title returns the capitalised slot name used in report headers.
func (s Slot) Title() string {
	switch s {
	case Solo:
		return "Solo"
	case Capstone:
		return "Capstone"
	case Group:
		return "Group"
	default:
		return s.String()
	}
}

// Seeker is one roster row: a participant and the URLs of their projects.
type Seeker struct {
	Name   string
	Coach  string
	Status string
	Email  string
	URLs   [NumSlots]string
}

// URL returns the raw URL submitted for slot.
func (s *Seeker) URL(slot Slot) string {
	if slot < 0 || int(slot) >= NumSlots {
		return ""
	}
	return s.URLs[slot]
}

// Roster groups seekers by coach, preserving ingestion order for both.
type Roster struct {
	coaches []string
	seekers map[string][]*Seeker
	index   map[string]map[string]int
	rows    int
}

// NewRoster returns an empty roster.
func NewRoster() *Roster {
	return &Roster{
		seekers: make(map[string][]*Seeker),
		index:   make(map[string]map[string]int),
	}
}

// Add inserts a seeker under its coach. A seeker whose name already exists for
// that coach replaces the earlier record in place.
func (r *Roster) Add(s *Seeker) {
	if s == nil {
		return
	}
	r.rows++

	byName, ok := r.index[s.Coach]
	if !ok {
		byName = make(map[string]int)
		r.index[s.Coach] = byName
		r.coaches = append(r.coaches, s.Coach)
	}
	if pos, dup := byName[s.Name]; dup {
		r.seekers[s.Coach][pos] = s
		return
	}
	byName[s.Name] = len(r.seekers[s.Coach])
	r.seekers[s.Coach] = append(r.seekers[s.Coach], s)
}

// Coaches returns coach names in ingestion order.
func (r *Roster) Coaches() []string {
	out := make([]string, len(r.coaches))
	copy(out, r.coaches)
	return out
}

// Seekers returns the seekers assigned to coach in ingestion order.
func (r *Roster) Seekers(coach string) []*Seeker {
	list := r.seekers[coach]
	out := make([]*Seeker, len(list))
	copy(out, list)
	return out
}

// Seeker looks up a single seeker.
func (r *Roster) Seeker(coach, name string) (*Seeker, bool) {
	pos, ok := r.index[coach][name]
	if !ok {
		return nil, false
	}
	return r.seekers[coach][pos], true
}

// Len returns the number of distinct seekers.
func (r *Roster) Len() int {
	total := 0
	for _, list := range r.seekers {
		total += len(list)
	}
	return total
}

// Rows returns the number of rows ingested, duplicates included.
func (r *Roster) Rows() int {
	return r.rows
}
