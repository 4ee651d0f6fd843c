package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NoIssuesText is rendered for a slot whose probe came back clean.
const NoIssuesText = "No Issues Found"

// IssueKind enumerates the issue taxonomy.
type IssueKind int

const (
	KindNoLink IssueKind = iota
	KindTimeout
	KindBadURL
	KindStatus
	KindTime

	// NumKinds is the number of issue kinds.
	NumKinds = 5
)

// Kinds lists every kind in legend order.
var Kinds = [NumKinds]IssueKind{KindStatus, KindBadURL, KindTime, KindTimeout, KindNoLink}

func (k IssueKind) String() string {
	switch k {
	case KindNoLink:
		return "no-link"
	case KindTimeout:
		return "timeout"
	case KindBadURL:
		return "bad-url"
	case KindStatus:
		return "status"
	case KindTime:
		return "time"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Key is the name used for the kind in the exported document. Downstream
// consumers read bad URLs under "bad_url".
func (k IssueKind) Key() string {
	if k == KindBadURL {
		return "bad_url"
	}
	return k.String()
}

// Issue is a single finding for one (seeker, slot) pair. Only the field that
// belongs to Kind is meaningful.
type Issue struct {
	Kind    IssueKind
	Detail  string
	Status  int
	Elapsed time.Duration
}

// NoLink reports a slot without a URL.
func NoLink() Issue {
	return Issue{Kind: KindNoLink}
}

// TimedOut reports a fetch that hit the caller's timeout.
func TimedOut(timeout time.Duration) Issue {
	return Issue{
		Kind:   KindTimeout,
		Detail: fmt.Sprintf("URL timeout at %ss", strconv.FormatFloat(timeout.Seconds(), 'f', -1, 64)),
	}
}

// BadURL reports a fetch that failed for any reason other than a timeout.
func BadURL(err error) Issue {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	return Issue{Kind: KindBadURL, Detail: detail}
}

// BadStatus reports a response whose status code was not 200.
func BadStatus(code int) Issue {
	return Issue{Kind: KindStatus, Status: code}
}

// Slow reports a response that took longer than the slow threshold.
func Slow(elapsed time.Duration) Issue {
	return Issue{Kind: KindTime, Elapsed: elapsed}
}

// Value returns the detail as it appears in the exported document. Durations
// are total seconds rendered as a string that always carries a decimal point.
func (i Issue) Value() any {
	switch i.Kind {
	case KindNoLink:
		return true
	case KindStatus:
		return i.Status
	case KindTime:
		return SecondsString(i.Elapsed)
	default:
		return i.Detail
	}
}

func (i Issue) String() string {
	switch i.Kind {
	case KindNoLink:
		return i.Kind.String() + ": true"
	case KindStatus:
		return fmt.Sprintf("%s: %d", i.Kind, i.Status)
	case KindTime:
		return fmt.Sprintf("%s: %.2fs", i.Kind, i.Elapsed.Seconds())
	default:
		return fmt.Sprintf("%s: %s", i.Kind, i.Detail)
	}
}

// SecondsString formats d as total seconds, e.g. "15.0" or "12.345".
func SecondsString(d time.Duration) string {
	s := strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// DescribeIssues joins issues into the human-readable form used in reports.
func DescribeIssues(issues []Issue, sep string) string {
	if len(issues) == 0 {
		return NoIssuesText
	}
	parts := make([]string, len(issues))
	for i, issue := range issues {
		parts[i] = issue.String()
	}
	return strings.Join(parts, sep)
}

// SeekerIssues holds the findings for one seeker across the three slots.
type SeekerIssues struct {
	Seeker string
	Status string
	Email  string
	Slots  [NumSlots][]Issue
}

// HasIssues reports whether any slot has at least one issue.
func (s *SeekerIssues) HasIssues() bool {
	for _, issues := range s.Slots {
		if len(issues) > 0 {
			return true
		}
	}
	return false
}

// Has reports whether slot carries an issue of kind.
func (s *SeekerIssues) Has(slot Slot, kind IssueKind) bool {
	for _, issue := range s.Slots[slot] {
		if issue.Kind == kind {
			return true
		}
	}
	return false
}

// CoachReport lists, in roster order, the seekers of one coach that have at
// least one issue.
type CoachReport struct {
	Coach   string
	Seekers []*SeekerIssues
}

// Find returns the entry for seeker, if present.
func (c *CoachReport) Find(seeker string) (*SeekerIssues, bool) {
	for _, s := range c.Seekers {
		if s.Seeker == seeker {
			return s, true
		}
	}
	return nil, false
}
