// Package supervisor is the slot-filling state machine at the center of
// portfoliod. HandleRequest turns free text into slots, decides whether
// they are complete for the classified intent, and either routes to a
// specialist or asks one targeted clarification question.
//
// States advance Parsing -> SlotCheck -> Routed | AwaitingClarification.
// Every transition is recorded in the per-request trace. The supervisor
// holds no conversation state; callers pass prior slots in explicitly.
package supervisor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/portfoliod/internal/intent"
	"github.com/fyrsmithlabs/portfoliod/internal/journal"
	"github.com/fyrsmithlabs/portfoliod/internal/ledger"
	"github.com/fyrsmithlabs/portfoliod/internal/period"
	"github.com/fyrsmithlabs/portfoliod/internal/resolver"
	"github.com/fyrsmithlabs/portfoliod/internal/specialist"
)

var tracer = otel.Tracer("portfoliod.supervisor")

// State is a step of the request state machine.
type State string

const (
	StateParsing               State = "parsing"
	StateSlotCheck             State = "slot_check"
	StateRouted                State = "routed"
	StateAwaitingClarification State = "awaiting_clarification"
)

// journalTimeout bounds a single journal publish.
const journalTimeout = 2 * time.Second

// Request is one user turn.
type Request struct {
	Text string `json:"message"`
	// PriorSlots are the slots returned by the previous turn, if any.
	PriorSlots *Slots `json:"prior_slots,omitempty"`
	// ReferenceDate anchors relative periods. Zero means now.
	ReferenceDate time.Time `json:"reference_date,omitempty"`
}

// Response is the outcome of one turn.
type Response struct {
	RequestID   string                `json:"request_id"`
	Answer      string                `json:"answer"`
	Intent      intent.Intent         `json:"intent"`
	State       State                 `json:"state"`
	Slots       Slots                 `json:"slots"`
	Result      any                   `json:"result,omitempty"`
	Error       *ErrorPayload         `json:"error,omitempty"`
	Notice      *ErrorPayload         `json:"notice,omitempty"`
	Decision    intent.Decision       `json:"decision"`
	Resolutions []resolver.Resolution `json:"resolutions,omitempty"`
	Trace       []TraceEntry          `json:"trace"`
}

// Deps wires a Supervisor.
type Deps struct {
	Table *ledger.Table
	// Resolver defaults to a lexical-only resolver over Table.
	Resolver *resolver.Resolver
	// Classifier defaults to the rule-based strategy.
	Classifier intent.Strategy
	Logger     *zap.Logger
	// Sink defaults to journal.Nop.
	Sink journal.Publisher
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Supervisor handles requests. It is safe for concurrent use; the table
// is read-only and all per-request state lives in the request.
type Supervisor struct {
	table      *ledger.Table
	resolver   *resolver.Resolver
	classifier intent.Strategy
	logger     *zap.Logger
	sink       journal.Publisher
	clock      func() time.Time
}

// New validates deps and fills defaults.
func New(deps Deps) (*Supervisor, error) {
	if deps.Table == nil {
		return nil, ErrNoDataset
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.Classifier == nil {
		deps.Classifier = intent.NewRuleBased()
	}
	if deps.Sink == nil {
		deps.Sink = journal.Nop{}
	}
	if deps.Resolver == nil {
		r, err := resolver.New(context.Background(), deps.Table.Properties(), nil, resolver.Config{Logger: deps.Logger})
		if err != nil {
			return nil, fmt.Errorf("building resolver: %w", err)
		}
		deps.Resolver = r
	}
	return &Supervisor{
		table:      deps.Table,
		resolver:   deps.Resolver,
		classifier: deps.Classifier,
		logger:     deps.Logger,
		sink:       deps.Sink,
		clock:      deps.Clock,
	}, nil
}

// Table returns the dataset the supervisor serves.
func (s *Supervisor) Table() *ledger.Table { return s.table }

// Resolver returns the property resolver in use.
func (s *Supervisor) Resolver() *resolver.Resolver { return s.resolver }

// HandleRequest runs one turn. Only a missing dataset is an error; every
// other outcome is a structured response.
func (s *Supervisor) HandleRequest(ctx context.Context, req Request) (*Response, error) {
	if s == nil || s.table == nil {
		return nil, ErrNoDataset
	}
	start := s.clock()
	id := uuid.NewString()

	ctx, span := tracer.Start(ctx, "Supervisor.HandleRequest")
	defer span.End()
	span.SetAttributes(attribute.String("request.id", id))

	ref := req.ReferenceDate
	if ref.IsZero() {
		ref = start
	}
	text := strings.TrimSpace(req.Text)

	r := &run{id: id, clock: s.clock, logger: s.logger, state: StateParsing, slots: newSlots()}
	r.record(LevelInfo, "supervisor", "request received", "", map[string]any{
		"text_length": len(text),
		"has_prior":   req.PriorSlots != nil,
	})

	// Parsing: properties, tenants, period.
	mentions := s.resolver.Mentions(text)
	resolutions := s.resolver.Resolve(ctx, mentions)
	var unresolved []resolver.Resolution
	for _, res := range resolutions {
		if res.Status == resolver.StatusResolved {
			r.slots.Properties = union(r.slots.Properties, []string{res.PropertyID}, func(v string) string { return v })
			continue
		}
		unresolved = append(unresolved, res)
		r.slots.Unresolved = append(r.slots.Unresolved, res.Mention)
	}
	r.record(LevelInfo, "property_resolver",
		fmt.Sprintf("%d mentions, %d resolved, %d unresolved", len(mentions), len(resolutions)-len(unresolved), len(unresolved)),
		reqResolution, map[string]any{"mentions": mentions, "resolutions": resolutions})

	r.slots.Tenants = union(nil, resolver.ExtractTenants(text), ledger.NormalizeTenant)
	periods := period.Mentions(text, ref)
	if len(periods) > 0 {
		r.slots.Period = periods[0]
	}
	periodKeys := make([]string, len(periods))
	for i, p := range periods {
		periodKeys[i] = p.String()
	}
	r.record(LevelInfo, "period_parser", "period "+r.slots.Period.Label(), reqPeriod, map[string]any{
		"period":   r.slots.Period.String(),
		"mentions": periodKeys,
		"tenants":  r.slots.Tenants,
	})

	if req.PriorSlots != nil {
		r.slots.merge(req.PriorSlots)
		r.record(LevelInfo, "supervisor", "merged prior slots", reqSlotCheck, map[string]any{
			"prior_intent": string(req.PriorSlots.Intent),
		})
	}

	// Classification.
	sig := intent.Signals{
		HasProperties: len(r.slots.Properties) > 0 || len(unresolved) > 0,
		HasTenants:    len(r.slots.Tenants) > 0,
		HasPeriod:     !r.slots.Period.IsNone(),
		Periods:       len(periods),
	}
	decision := s.classifier.Classify(ctx, text, sig)
	if decision.FallbackReason != "" {
		classifierFallbacksTotal.WithLabelValues(decision.FallbackReason).Inc()
		r.record(LevelWarn, "classifier", "model output discarded, rules used", reqClassifier, map[string]any{
			"fallback_reason": decision.FallbackReason,
		})
	}
	chosen := decision.Intent
	keptPrior := false
	if prior := req.PriorSlots; prior != nil && prior.Intent.Valid() && prior.Intent != intent.Clarification &&
		(chosen == intent.Clarification || len(decision.Markers) == 0) {
		chosen = prior.Intent
		keptPrior = true
	}
	r.slots.Intent = chosen
	if chosen == intent.PnL {
		applyComparePeriod(&r.slots, periods)
	} else {
		r.slots.ComparePeriod = nil
	}
	r.record(LevelInfo, "classifier", "classified as "+string(chosen), reqClassifier, map[string]any{
		"source":     string(decision.Source),
		"rule":       decision.Rule,
		"markers":    decision.Markers,
		"kept_prior": keptPrior,
	})

	// Slot check.
	r.transition(StateSlotCheck, "supervisor", "checking required slots", reqSlotCheck, nil)
	r.slots.Missing, r.slots.Informational = missingFor(chosen, r.slots)

	resp := &Response{RequestID: id, Decision: decision, Resolutions: resolutions}
	switch {
	case len(unresolved) > 0 || len(r.slots.Missing) > 0 || chosen == intent.Clarification:
		s.clarify(r, resp, unresolved)
	default:
		s.route(ctx, r, resp, text)
	}

	resp.Intent = r.slots.Intent
	resp.State = r.state
	resp.Slots = r.slots.clone()
	resp.Trace = r.trace

	elapsed := s.clock().Sub(start)
	requestsTotal.WithLabelValues(string(resp.Intent), string(resp.State)).Inc()
	requestDuration.WithLabelValues(string(resp.Intent)).Observe(elapsed.Seconds())
	span.SetAttributes(
		attribute.String("intent", string(resp.Intent)),
		attribute.String("state", string(resp.State)),
	)
	span.SetStatus(codes.Ok, "")
	s.logger.Info("request handled",
		zap.String("request.id", id),
		zap.String("intent", string(resp.Intent)),
		zap.String("state", string(resp.State)),
		zap.Duration("duration", elapsed))

	s.publish(ctx, resp, start, elapsed)
	return resp, nil
}

// applyComparePeriod turns two equally specific periods into a current
// period and an earlier one to compare against.
func applyComparePeriod(slots *Slots, periods []period.Filter) {
	if len(periods) < 2 || periods[0].Kind != periods[1].Kind {
		return
	}
	current, previous := periods[0], periods[1]
	if current.Before(previous) {
		current, previous = previous, current
	}
	slots.Period = current
	slots.ComparePeriod = &previous
}

func (s *Supervisor) clarify(r *run, resp *Response, unresolved []resolver.Resolution) {
	prompt := specialist.Prompt{
		Intent:     r.slots.Intent,
		Missing:    r.slots.Missing,
		Unresolved: unresolved,
		Resolved:   s.names(r.slots.Properties),
	}
	if len(unresolved) == 0 && r.slots.Intent != intent.Clarification {
		prompt.Options = s.names(propertyIDs(s.table.Properties()))
	}
	resp.Answer = specialist.Clarify(prompt)

	reason := "unclear_intent"
	switch {
	case len(unresolved) > 0:
		resp.Error = unresolvedPayload(unresolved, resp.Answer)
		reason = string(resp.Error.Type)
	case len(r.slots.Missing) > 0:
		resp.Error = &ErrorPayload{
			Type:    ErrorMissingProperty,
			Message: resp.Answer,
			Details: map[string]any{"missing": r.slots.Missing, "resolved": r.slots.Properties},
		}
		reason = string(ErrorMissingProperty)
	}
	clarificationsTotal.WithLabelValues(reason).Inc()
	r.transition(StateAwaitingClarification, "clarification", "awaiting clarification", reqClarification, map[string]any{
		"reason":  reason,
		"missing": r.slots.Missing,
	})
}

func (s *Supervisor) route(ctx context.Context, r *run, resp *Response, text string) {
	meta := map[string]any{}
	switch r.slots.Intent {
	case intent.PriceComparison:
		gap := specialist.PriceComparison(s.table, r.slots.Properties)
		resp.Result = gap
		resp.Answer = gap.Answer()
		meta["capability_gap"] = gap.Attribute

	case intent.PnL:
		names := s.names(r.slots.Properties)
		var rep specialist.Report
		if r.slots.ComparePeriod != nil {
			rep = specialist.PnLComparison(ctx, s.table, names, r.slots.Query(), *r.slots.ComparePeriod)
		} else {
			rep = specialist.PnL(ctx, s.table, names, r.slots.Query())
		}
		resp.Result = rep
		resp.Answer = rep.Message
		if rep.Status == specialist.StatusNoData {
			resp.Error = &ErrorPayload{
				Type:    ErrorDataUnavailable,
				Message: rep.Message,
				Details: map[string]any{
					"period":     r.slots.Period.String(),
					"properties": r.slots.Properties,
					"tenants":    r.slots.Tenants,
				},
			}
		}
		if containsSlot(r.slots.Informational, intent.SlotTimeframe) {
			hint := intent.Lookup(intent.PnL).FallbackHint
			resp.Notice = &ErrorPayload{Type: ErrorMissingTimeframe, Message: hint}
			resp.Answer += " This covers all periods. " + hint
		}
		meta["noi"] = rep.Result.NetOperatingIncome.String()
		meta["row_count"] = rep.Result.RowCount

	case intent.AssetDetails:
		snaps, err := specialist.AssetDetails(s.table, s.resolver.Index(), r.slots.Properties)
		if err != nil {
			var nf *resolver.NotFoundError
			if errors.As(err, &nf) {
				s.clarify(r, resp, []resolver.Resolution{{Mention: nf.Mention, Status: resolver.StatusNotFound}})
				return
			}
			r.slots.Missing = append(r.slots.Missing, intent.SlotProperty)
			s.clarify(r, resp, nil)
			return
		}
		summaries := make([]string, len(snaps))
		for i, snap := range snaps {
			summaries[i] = snap.Summary()
		}
		resp.Result = snaps
		resp.Answer = strings.Join(summaries, "\n")
		meta["snapshots"] = len(snaps)

	case intent.GeneralKnowledge:
		ans, err := specialist.GeneralKnowledge(s.table, text)
		if err != nil {
			r.record(LevelWarn, "general_knowledge", "question not covered, asking for clarification", reqRouting, map[string]any{
				"error": err.Error(),
			})
			r.slots.Intent = intent.Clarification
			resp.Answer = specialist.Clarify(specialist.Prompt{Intent: intent.GeneralKnowledge})
			resp.Error = &ErrorPayload{Type: ErrorUnsupported, Message: "I can't answer that from the portfolio data. " + resp.Answer}
			clarificationsTotal.WithLabelValues(string(ErrorUnsupported)).Inc()
			r.transition(StateAwaitingClarification, "clarification", "awaiting clarification", reqClarification, map[string]any{
				"reason": string(ErrorUnsupported),
			})
			return
		}
		resp.Result = ans
		resp.Answer = ans.Message
		meta["topic"] = string(ans.Topic)
	}
	r.transition(StateRouted, string(r.slots.Intent), "routed to "+string(r.slots.Intent), reqRouting, meta)
}

func (s *Supervisor) names(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.table.Property(id); ok {
			out = append(out, p.DisplayName)
			continue
		}
		out = append(out, id)
	}
	return out
}

func propertyIDs(props []ledger.PropertyRecord) []string {
	out := make([]string, len(props))
	for i, p := range props {
		out[i] = p.PropertyID
	}
	return out
}

func (s *Supervisor) publish(ctx context.Context, resp *Response, start time.Time, elapsed time.Duration) {
	slots, _ := json.Marshal(resp.Slots)
	trace, _ := json.Marshal(resp.Trace)
	rec := journal.Record{
		RequestID: resp.RequestID,
		Timestamp: start,
		Intent:    string(resp.Intent),
		State:     string(resp.State),
		Answer:    resp.Answer,
		Duration:  elapsed,
		Slots:     slots,
		Trace:     trace,
	}
	if resp.Error != nil {
		rec.ErrorType = string(resp.Error.Type)
	}
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), journalTimeout)
	defer cancel()
	if err := s.sink.Publish(pubCtx, rec); err != nil {
		s.logger.Warn("journal publish failed", zap.String("request.id", resp.RequestID), zap.Error(err))
	}
}
