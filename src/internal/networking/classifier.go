package networking

import (
	"github.com/routervm/uplinkctl/src/internal/config"
	"github.com/routervm/uplinkctl/src/internal/models"
)

// SegmentMark is the classification of one segment: traffic sourced from
// Subnet gets FwMark, which equals the segment's table id.
type SegmentMark struct {
	Segment   models.Segment
	Subnet    string
	Interface string
	FwMark    uint32
	Table     int
}

// SegmentMarks returns the marks of the configured segments in table id order.
func SegmentMarks(cfg *config.Config) []SegmentMark {
	var marks []SegmentMark
	for _, segment := range models.Segments() {
		seg := cfg.Segment(segment)
		if seg == nil {
			continue
		}
		marks = append(marks, SegmentMark{
			Segment:   segment,
			Subnet:    seg.Subnet,
			Interface: seg.Interface,
			FwMark:    segment.FwMark(),
			Table:     segment.TableID(),
		})
	}
	return marks
}
