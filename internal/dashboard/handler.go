package dashboard

import (
	"encoding/json"
	"log"
	"math"
	"os"
	"time"

	"github.com/benchtrail/benchtrail/internal/pipeline"
)

// Handler turns pipeline outcomes into dashboard messages.
type Handler struct {
	server *Server
	logger *log.Logger
}

// NewHandler creates a new event handler connected to a dashboard server
func NewHandler(server *Server, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.New(os.Stderr, "[dashboard] ", log.LstdFlags)
	}
	return &Handler{server: server, logger: logger}
}

// OnOutcome broadcasts the recorded run followed by its verdicts.
func (h *Handler) OnOutcome(group string, out *pipeline.Outcome) {
	if out == nil {
		return
	}
	h.logger.Printf("Run recorded: %s in %q", out.Run.Commit.ID, group)

	h.send(MessageTypeRunAppended, RunAppendedData{
		Group:     group,
		Commit:    out.Run.Commit.ID,
		URL:       out.Run.Commit.URL,
		Date:      out.Run.Date,
		Cases:     len(out.Run.Benches),
		Length:    out.Append.Length,
		Duplicate: out.Append.Duplicate,
	})

	data := VerdictsData{
		Group:         group,
		Commit:        out.Run.Commit.ID,
		Baseline:      out.Result.Selector,
		HasRegression: out.Result.HasRegression,
		ShouldFail:    out.Result.ShouldFail,
		Verdicts:      make([]VerdictData, 0, len(out.Result.Verdicts)),
	}
	for _, v := range out.Result.Verdicts {
		data.Verdicts = append(data.Verdicts, VerdictData{
			Name:          v.Name,
			Verdict:       v.Kind.String(),
			Factor:        finite(v.Factor),
			Fails:         v.Fails,
			LowConfidence: v.LowConfidence,
		})
	}
	for _, item := range out.Result.Review {
		data.Review = append(data.Review, item.Name)
	}
	h.send(MessageTypeVerdicts, data)
}

func (h *Handler) send(t MessageType, v interface{}) {
	dataJSON, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("Failed to marshal %s data: %v", t, err)
		return
	}
	h.server.Broadcast(Message{Type: t, Timestamp: time.Now(), Data: dataJSON})
}

// finite maps +Inf, which JSON cannot carry, to zero.
func finite(f float64) float64 {
	if math.IsInf(f, 0) {
		return 0
	}
	return f
}
