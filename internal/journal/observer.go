package journal

import (
	"log/slog"

	"github.com/crosslight-io/crosslight/engine/internal/sequencer"
)

// Recorder adapts a Journal to the sequencer's observer interface. Journal
// failures are logged and dropped; the audit trail never blocks a phase
// transition.
type Recorder struct {
	journal *Journal
	logger  *slog.Logger
}

// NewRecorder creates a Recorder writing to j.
func NewRecorder(j *Journal, logger *slog.Logger) *Recorder {
	return &Recorder{journal: j, logger: logger}
}

type phaseDetail struct {
	From       string `json:"from"`
	To         string `json:"to"`
	DeadlineMS int64  `json:"deadlineMs,omitempty"`
}

// OnPhaseChange implements sequencer.Observer.
func (r *Recorder) OnPhaseChange(from, to sequencer.State) {
	detail := phaseDetail{From: from.Phase.String(), To: to.Phase.String()}
	if !to.Until.IsZero() {
		detail.DeadlineMS = to.Until.UnixMilli()
	}
	if err := r.journal.Append("phase_change", to.Road, detail); err != nil {
		r.logger.Warn("journal append failed", "err", err)
	}
}

var _ sequencer.Observer = (*Recorder)(nil)
