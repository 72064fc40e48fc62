// Package honeypot runs the per-message pipeline: admit the message into
// its session, classify it, harvest intelligence, and produce the decoy's
// next reply. All state changes for one message happen under that session's
// turn lock, so concurrent messages for the same conversation serialize.
package honeypot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/TryMightyAI/decoy/pkg/classify"
	"github.com/TryMightyAI/decoy/pkg/engage"
	"github.com/TryMightyAI/decoy/pkg/protocol"
	"github.com/TryMightyAI/decoy/pkg/session"
)

// ErrInvalidRequest marks a request rejected before any session mutation.
var ErrInvalidRequest = errors.New("invalid request")

// StatusSuccess is the only status a processed turn reports.
const StatusSuccess = "success"

// Classifier scores one message in its conversational context.
type Classifier interface {
	Classify(ctx context.Context, text string, history []protocol.Message) classify.Result
}

// Extractor harvests intelligence from one message.
type Extractor interface {
	FromText(text string) protocol.Intelligence
}

// Orchestrator wires the pipeline stages together.
type Orchestrator struct {
	store      *session.Store
	classifier Classifier
	extractor  Extractor
	generator  engage.Generator // may be nil; fallback covers every turn then
	fallback   *engage.FallbackResponder
	genTimeout time.Duration
}

// New assembles an orchestrator. fallback must be non-nil; generator may be
// nil for LLM-less deployments.
func New(store *session.Store, classifier Classifier, extractor Extractor, generator engage.Generator, fallback *engage.FallbackResponder, genTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		store:      store,
		classifier: classifier,
		extractor:  extractor,
		generator:  generator,
		fallback:   fallback,
		genTimeout: genTimeout,
	}
}

// Store exposes the session store for the serving layer's session endpoints.
func (o *Orchestrator) Store() *session.Store {
	return o.store
}

// Process runs one conversation turn. A validation failure returns
// ErrInvalidRequest and leaves the session untouched; past validation the
// turn always produces a reply, substituting the fallback rotation when
// generation fails.
func (o *Orchestrator) Process(ctx context.Context, req *protocol.EngageRequest) (*protocol.EngageResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	release := o.store.Acquire(req.SessionID)
	defer release()

	count := o.store.AppendMessage(req.SessionID, req.Message)

	// Reconcile caller-supplied history, but only while the session is
	// fresh: an established session already owns its transcript and a
	// replayed history must not duplicate it.
	if len(req.ConversationHistory) > 0 && count <= 1 {
		o.reconcileHistory(req.SessionID, req.ConversationHistory)
	}

	snap := o.store.Get(req.SessionID)
	res := o.classifier.Classify(ctx, req.Message.Text, snap.Messages)

	// Confidence ratchet: the session verdict only strengthens. A later
	// low-confidence reading never downgrades an established detection.
	if res.IsScam && res.Confidence > snap.Confidence {
		o.store.UpdateClassification(req.SessionID, true, res.Confidence, res.ScamType)
		o.store.AppendNote(req.SessionID, fmt.Sprintf("Scam detected: %s (confidence: %.2f)", res.ScamType, res.Confidence))
	}

	intel := o.extractor.FromText(req.Message.Text)
	o.store.MergeIntelligence(req.SessionID, intel)
	if intel.HasActionable() {
		o.store.AppendNote(req.SessionID, fmt.Sprintf("Extracted: %d accounts, %d UPIs, %d links, %d phones",
			len(intel.BankAccounts), len(intel.UPIIDs), len(intel.PhishingLinks), len(intel.PhoneNumbers)))
	}

	snap = o.store.Get(req.SessionID)
	reply, note := o.generate(ctx, req.Message.Text, snap, res)
	o.store.AppendNote(req.SessionID, note)

	// The decoy's reply joins the transcript, echoing the inbound
	// timestamp since the decoy has no clock of record.
	o.store.AppendMessage(req.SessionID, protocol.Message{
		Sender:    protocol.SenderAgent,
		Text:      reply,
		Timestamp: req.Message.Timestamp,
	})

	return &protocol.EngageResponse{Status: StatusSuccess, Reply: reply}, nil
}

// reconcileHistory appends caller-supplied messages the store has not seen.
func (o *Orchestrator) reconcileHistory(id string, history []protocol.Message) {
	known := o.store.Get(id).Messages
	for _, msg := range history {
		seen := false
		for _, k := range known {
			if msg.Equal(k) {
				seen = true
				break
			}
		}
		if !seen {
			o.store.AppendMessage(id, msg)
			known = append(known, msg)
		}
	}
}

// generate produces the turn's reply. The session's ratcheted scam type
// steers the persona when a verdict exists; otherwise this turn's reading
// does.
func (o *Orchestrator) generate(ctx context.Context, inbound string, snap session.Session, res classify.Result) (string, string) {
	scamType := res.ScamType
	if snap.ScamDetected {
		scamType = snap.ScamType
	}
	if scamType == "" {
		scamType = "unknown"
	}

	if o.generator == nil {
		return o.fallback.Next()
	}

	gctx := ctx
	if o.genTimeout > 0 {
		var cancel context.CancelFunc
		gctx, cancel = context.WithTimeout(ctx, o.genTimeout)
		defer cancel()
	}

	reply, note, err := o.generator.Generate(gctx, inbound, snap.Messages, scamType, snap.MessageCount)
	if err != nil {
		reply, _ = o.fallback.Next()
		return reply, fmt.Sprintf("Error: %s - using fallback", truncate(err.Error(), 50))
	}
	return reply, note
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
