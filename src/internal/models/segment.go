package models

import (
	"fmt"

	"github.com/routervm/uplinkctl/src/internal/errors"
)

// Segment is a logical network segment served by the router VM.
type Segment string

const (
	SegmentPentest Segment = "pentest"
	SegmentOffice  Segment = "office"
	SegmentBrowse  Segment = "browse"
	SegmentDev     Segment = "dev"
)

// Routing table ids. They double as the fwmark set by the packet classifier
// and must never be reassigned to another segment.
const (
	TablePentest = 100
	TableOffice  = 101
	TableBrowse  = 102
	TableDev     = 103
)

var allSegments = []Segment{SegmentPentest, SegmentOffice, SegmentBrowse, SegmentDev}

var tableIDs = map[Segment]int{
	SegmentPentest: TablePentest,
	SegmentOffice:  TableOffice,
	SegmentBrowse:  TableBrowse,
	SegmentDev:     TableDev,
}

// Segments returns all known segments ordered by table id.
func Segments() []Segment {
	out := make([]Segment, len(allSegments))
	copy(out, allSegments)
	return out
}

// ParseSegment validates a segment name.
func ParseSegment(name string) (Segment, error) {
	s := Segment(name)
	if !s.Valid() {
		return "", errors.NewConfigError(
			fmt.Sprintf("unknown segment %q (expected one of: pentest, office, browse, dev)", name), nil)
	}
	return s, nil
}

// Valid reports whether s is one of the known segments.
func (s Segment) Valid() bool {
	_, ok := tableIDs[s]
	return ok
}

// TableID returns the routing table id owned by the segment, or 0 for an unknown segment.
func (s Segment) TableID() int {
	return tableIDs[s]
}

// FwMark returns the packet mark the classifier sets for the segment's traffic.
func (s Segment) FwMark() uint32 {
	return uint32(s.TableID())
}

// SegmentByTableID returns the segment owning the given table id.
func SegmentByTableID(id int) (Segment, bool) {
	for s, t := range tableIDs {
		if t == id {
			return s, true
		}
	}
	return "", false
}

func (s Segment) String() string {
	return string(s)
}
