package runtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/verbatimlabs/verbatim-core/internal/ai"
	"github.com/verbatimlabs/verbatim-core/internal/protocol"
	"github.com/verbatimlabs/verbatim-core/internal/summarize"
)

// serveCommands exposes the session and summarization operations over the
// bus as request/reply subjects.
func (r *Runtime) serveCommands(orchestrator *summarize.Orchestrator) ([]*nats.Subscription, error) {
	conn := r.busClient.Conn()
	log := r.logger.With(slog.String("component", "commands"))

	reply := func(msg *nats.Msg, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error("encode reply failed", slog.String("error", err.Error()))
			return
		}
		if err := msg.Respond(data); err != nil {
			log.Warn("respond failed", slog.String("subject", msg.Subject), slog.String("error", err.Error()))
		}
	}
	sessionReply := func(msg *nats.Msg, noteID string, err error) {
		if err != nil {
			reply(msg, protocol.SessionReply{NoteID: noteID, Error: err.Error()})
			return
		}
		reply(msg, protocol.SessionReply{NoteID: noteID, OK: true})
	}
	decode := func(msg *nats.Msg) protocol.SessionRequest {
		var req protocol.SessionRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				log.Warn("malformed session request", slog.String("subject", msg.Subject))
			}
		}
		return req
	}

	handlers := map[string]nats.MsgHandler{
		protocol.SubjectSessionStart: func(msg *nats.Msg) {
			req := decode(msg)
			noteID, err := r.controller.Start(context.Background(), req.NoteID, req.MicID, req.Language)
			sessionReply(msg, noteID, err)
		},
		protocol.SubjectSessionPause: func(msg *nats.Msg) {
			sessionReply(msg, "", r.controller.Pause(context.Background()))
		},
		protocol.SubjectSessionResume: func(msg *nats.Msg) {
			req := decode(msg)
			sessionReply(msg, "", r.controller.Resume(context.Background(), req.MicID, req.Language))
		},
		protocol.SubjectSessionContinue: func(msg *nats.Msg) {
			req := decode(msg)
			sessionReply(msg, req.NoteID, r.controller.Continue(context.Background(), req.NoteID, req.MicID, req.Language))
		},
		protocol.SubjectSessionStop: func(msg *nats.Msg) {
			sessionReply(msg, "", r.controller.Stop(context.Background()))
		},
		protocol.SubjectSessionStatus: func(msg *nats.Msg) {
			snap, active := r.controller.Snapshot()
			reply(msg, protocol.SessionStatus{
				Active:       active,
				NoteID:       snap.NoteID,
				Phase:        string(snap.Phase),
				Mode:         string(snap.Mode),
				Groups:       snap.Groups,
				Transcribing: snap.Transcribing,
			})
		},
		protocol.SubjectSessionLevel: func(msg *nats.Msg) {
			level, err := r.controller.Level(context.Background())
			if err != nil {
				reply(msg, protocol.SessionReply{Error: err.Error()})
				return
			}
			reply(msg, protocol.LevelResult{Level: level})
		},
		protocol.SubjectSummarize: func(msg *nats.Msg) {
			var req protocol.SummarizeRequest
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				reply(msg, protocol.SummarizeReply{Error: "malformed request"})
				return
			}
			summary, title, err := orchestrator.Regenerate(context.Background(), req.NoteID, ai.ParseSummaryType(req.Type), req.CustomPrompt)
			if err != nil {
				reply(msg, protocol.SummarizeReply{Error: err.Error(), Content: summary.Content})
				return
			}
			reply(msg, protocol.SummarizeReply{OK: true, Content: summary.Content, Title: title})
		},
	}

	subs := make([]*nats.Subscription, 0, len(handlers))
	for subject, handler := range handlers {
		sub, err := conn.Subscribe(subject, handler)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}
