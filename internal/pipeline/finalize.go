package pipeline

import (
	"context"

	"markad/internal/logging"
	"markad/internal/marks"
)

// finalize makes the sequence start with a start and end with a stop, then
// saves the marks file regardless of growth.
func (p *Pipeline) finalize(ctx context.Context) error {
	logger := logging.WithContext(ctx, p.logger)
	if first := p.store.First(marks.Any); first != nil && first.IsStop() {
		logging.Decision(logger, "leading stop removed", "finalize", "delete", "sequence must begin with a start",
			logging.Frame(first.Position), logging.MarkType(first.Type))
		p.store.Delete(first)
	}
	if last := p.store.Last(marks.Any); last != nil && last.IsStart() && p.lastFrame > last.Position {
		m := &marks.Mark{
			Type:      marks.Type{Class: marks.ClassRecording, Kind: marks.Stop},
			Position:  p.lastFrame,
			Comment:   "stop recording (end of recording)",
			Confirmed: true,
		}
		if got := p.store.Add(m); got != nil {
			p.stop = got
			logging.Decision(logger, "trailing start closed", "finalize", "add", "sequence must end with a stop",
				logging.Frame(p.lastFrame))
		}
	}
	return p.checkpoint(ctx, true)
}
