// Package assistant answers weather questions: it extracts the intent,
// consults the knowledge base, decides whether live telemetry is needed and
// asks the language engine for the final answer.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/i474232898/weather-assistant/internal/knowledge"
	"github.com/i474232898/weather-assistant/internal/weather"
)

// State is a step of the per-request state machine.
type State string

const (
	StateStart           State = "start"
	StateIntentExtracted State = "intent_extracted"
	StateClarifying      State = "clarifying"
	StateRetrieved       State = "retrieved"
	StateDataReady       State = "data_ready"
	StateSynthesized     State = "synthesized"
	StateFailed          State = "failed"
)

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool {
	return s == StateClarifying || s == StateSynthesized || s == StateFailed
}

// DefaultRetrievalK is the number of knowledge entries retrieved per query.
const DefaultRetrievalK = 3

// KnowledgeBase is the knowledge store capability. QueryLocation ranks entries
// by similarity to text among those stored for location.
type KnowledgeBase interface {
	QueryLocation(ctx context.Context, location, text string, k int) ([]knowledge.Entry, error)
	Upsert(ctx context.Context, e knowledge.Entry) error
}

// Telemetry is the live weather capability.
type Telemetry interface {
	FetchCurrent(ctx context.Context, location string) (weather.Snapshot, error)
}

// ResponseSynthesizer produces the final answer.
type ResponseSynthesizer interface {
	Synthesize(ctx context.Context, sc SynthesisContext) (string, error)
}

// Recorder receives pipeline events, e.g. for metrics.
type Recorder interface {
	ObserveRequest(state State, cause string, elapsed time.Duration)
	ObserveFreshness(fresh bool)
	ObserveTelemetry(cause string, elapsed time.Duration)
	ObservePersistenceFailure()
}

// Deps are the collaborators of an Orchestrator. All are required except Recorder.
type Deps struct {
	Intents     IntentExtractor
	Knowledge   KnowledgeBase
	Telemetry   Telemetry
	Synthesizer ResponseSynthesizer
	Recorder    Recorder
}

// Config tunes an Orchestrator.
type Config struct {
	RetrievalK int
	Freshness  FreshnessPolicy
}

// Orchestrator runs the state machine once per query. It holds no
// per-request state, so one instance serves concurrent requests.
type Orchestrator struct {
	intents   IntentExtractor
	kb        KnowledgeBase
	telemetry Telemetry
	synth     ResponseSynthesizer
	recorder  Recorder
	policy    FreshnessPolicy
	k         int
	now       func() time.Time
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	k := cfg.RetrievalK
	if k <= 0 {
		k = DefaultRetrievalK
	}
	rec := deps.Recorder
	if rec == nil {
		rec = nopRecorder{}
	}
	return &Orchestrator{
		intents:   deps.Intents,
		kb:        deps.Knowledge,
		telemetry: deps.Telemetry,
		synth:     deps.Synthesizer,
		recorder:  rec,
		policy:    cfg.Freshness,
		k:         k,
		now:       time.Now,
	}
}

// Reply is the outcome of one request.
type Reply struct {
	Text      string
	State     State // always terminal
	Cause     string
	Intent    Intent
	Retrieved int
	UsedFresh bool
	Err       error
}

// Respond answers a query with a user-facing string.
func (o *Orchestrator) Respond(ctx context.Context, query string) string {
	return o.Handle(ctx, query).Text
}

// Handle runs the state machine from start to a terminal state.
func (o *Orchestrator) Handle(ctx context.Context, query string) Reply {
	start := time.Now()
	reply := o.run(ctx, strings.TrimSpace(query))
	elapsed := time.Since(start)

	o.recorder.ObserveRequest(reply.State, reply.Cause, elapsed)
	if reply.Err != nil {
		slog.Warn("assistant: request failed",
			"state", reply.State,
			"cause", reply.Cause,
			"location", reply.Intent.Location,
			"error", reply.Err,
			"duration_ms", elapsed.Milliseconds(),
		)
	} else {
		slog.Info("assistant: request completed",
			"state", reply.State,
			"location", reply.Intent.Location,
			"retrieved", reply.Retrieved,
			"fresh", reply.UsedFresh,
			"duration_ms", elapsed.Milliseconds(),
		)
	}
	return reply
}

func (o *Orchestrator) run(ctx context.Context, query string) Reply {
	if query == "" {
		return Reply{Text: MsgClarify, State: StateClarifying}
	}

	// Start -> IntentExtracted
	intent, err := o.intents.Extract(ctx, query)
	if err != nil {
		return o.fail(err, Intent{RawQuery: query})
	}
	intent.RawQuery = query

	// IntentExtracted -> Clarifying
	if !intent.HasLocation() {
		return Reply{Text: MsgClarify, State: StateClarifying, Intent: intent}
	}

	// IntentExtracted -> Retrieved
	retrieved, err := o.kb.QueryLocation(ctx, intent.Location, query, o.k)
	if err != nil {
		// Retrieval is an optimization; an unreadable store behaves like an empty one.
		slog.Warn("assistant: knowledge retrieval failed", "location", intent.Location, "error", err)
		retrieved = nil
	}

	// Retrieved -> DataReady
	sc := SynthesisContext{Intent: intent, Retrieved: retrieved}
	fresh := o.policy.NeedsFreshData(retrieved, intent, o.now())
	o.recorder.ObserveFreshness(fresh)
	if fresh {
		snap, err := o.fetch(ctx, intent.Location)
		if err != nil {
			reply := o.fail(err, intent)
			reply.Retrieved = len(retrieved)
			return reply
		}
		o.persist(ctx, snap)
		sc.Fresh = &snap
	}

	// DataReady -> Synthesized
	answer, err := o.synth.Synthesize(ctx, sc)
	if err != nil {
		reply := o.fail(err, intent)
		reply.Retrieved = len(retrieved)
		reply.UsedFresh = fresh
		return reply
	}

	return Reply{
		Text:      answer,
		State:     StateSynthesized,
		Intent:    intent,
		Retrieved: len(retrieved),
		UsedFresh: fresh,
	}
}

func (o *Orchestrator) fetch(ctx context.Context, location string) (weather.Snapshot, error) {
	start := time.Now()
	snap, err := o.telemetry.FetchCurrent(ctx, location)
	cause := CauseNone
	if err != nil {
		cause, _ = classify(err, location)
	}
	o.recorder.ObserveTelemetry(cause, time.Since(start))
	return snap, err
}

// persist stores a freshly fetched snapshot. Failures are logged and
// swallowed: the answer is built from the snapshot either way.
func (o *Orchestrator) persist(ctx context.Context, snap weather.Snapshot) {
	if err := o.kb.Upsert(ctx, knowledge.EntryFromSnapshot(snap)); err != nil {
		o.recorder.ObservePersistenceFailure()
		slog.Error("assistant: could not cache fresh telemetry", "location", snap.Location.City, "error", err)
	}
}

func (o *Orchestrator) fail(err error, intent Intent) Reply {
	cause, msg := classify(err, intent.Location)
	return Reply{Text: msg, State: StateFailed, Cause: cause, Intent: intent, Err: err}
}

// Refresh fetches live telemetry for one location and stores it, outside of
// any user request. It is used to keep tracked locations warm.
func (o *Orchestrator) Refresh(ctx context.Context, location string) error {
	snap, err := o.fetch(ctx, location)
	if err != nil {
		return err
	}
	if err := o.kb.Upsert(ctx, knowledge.EntryFromSnapshot(snap)); err != nil {
		o.recorder.ObservePersistenceFailure()
		return err
	}
	return nil
}

type nopRecorder struct{}

func (nopRecorder) ObserveRequest(State, string, time.Duration)  {}
func (nopRecorder) ObserveFreshness(bool)                        {}
func (nopRecorder) ObserveTelemetry(string, time.Duration)       {}
func (nopRecorder) ObservePersistenceFailure()                   {}
