// Package auction runs the timed ascending rounds of the game. An Engine owns
// the round state and the participant ledger and serialises every mutation of
// both behind a single lock.
package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/zoo-auction/internal/catalog"
	"github.com/jensholdgaard/zoo-auction/internal/clock"
	"github.com/jensholdgaard/zoo-auction/internal/event"
	"github.com/jensholdgaard/zoo-auction/internal/ledger"
)

// Errors returned by the engine. Ledger errors are re-exported so callers
// only need this package to classify a rejection.
var (
	ErrInvalidRoundStart  = errors.New("invalid round start")
	ErrRoundNotOpen       = errors.New("round not open")
	ErrBidTooLow          = errors.New("bid too low")
	ErrInvariantViolation = errors.New("invariant violation")

	ErrInsufficientFunds  = ledger.ErrInsufficientFunds
	ErrTierCapExceeded    = ledger.ErrTierCapExceeded
	ErrItemAlreadySold    = ledger.ErrItemAlreadySold
	ErrUnknownParticipant = ledger.ErrUnknownParticipant
)

// Reason maps an engine error to a stable, transport-friendly code.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRoundNotOpen):
		return "round_not_open"
	case errors.Is(err, ErrBidTooLow):
		return "bid_too_low"
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrTierCapExceeded):
		return "tier_cap_exceeded"
	case errors.Is(err, ErrItemAlreadySold):
		return "item_already_sold"
	case errors.Is(err, ErrUnknownParticipant):
		return "unknown_participant"
	case errors.Is(err, ErrInvalidRoundStart):
		return "invalid_round_start"
	case errors.Is(err, ErrInvariantViolation):
		return "invariant_violation"
	default:
		return "internal"
	}
}

// UnsoldPolicy decides what happens to an item nobody bid on.
type UnsoldPolicy string

const (
	// UnsoldReturn keeps the item in the pool.
	UnsoldReturn UnsoldPolicy = "return"
	// UnsoldDiscard removes the item from the game.
	UnsoldDiscard UnsoldPolicy = "discard"
)

// Rules configure round timing and bidding.
type Rules struct {
	RoundDurations map[catalog.Tier]time.Duration
	SnipeThreshold time.Duration
	GraceWindow    time.Duration
	MinIncrement   int
	AnnounceDelay  time.Duration
	UnsoldPolicy   UnsoldPolicy
}

// DefaultRules returns the standard round configuration.
func DefaultRules() Rules {
	return Rules{
		RoundDurations: map[catalog.Tier]time.Duration{
			1: 30 * time.Second,
			2: 25 * time.Second,
			3: 20 * time.Second,
			4: 15 * time.Second,
		},
		SnipeThreshold: 10 * time.Second,
		GraceWindow:    10 * time.Second,
		MinIncrement:   1,
		UnsoldPolicy:   UnsoldReturn,
	}
}

// Validate checks the rules are usable.
func (r Rules) Validate() error {
	for t := catalog.MinTier; t <= catalog.MaxTier; t++ {
		if r.RoundDurations[t] <= 0 {
			return fmt.Errorf("round duration for tier %d must be positive", t)
		}
	}
	if r.MinIncrement < 1 {
		return fmt.Errorf("min increment must be at least 1, got %d", r.MinIncrement)
	}
	if r.SnipeThreshold < 0 || r.GraceWindow < 0 || r.AnnounceDelay < 0 {
		return fmt.Errorf("durations must not be negative")
	}
	// A bid inside the grace window but outside the threshold would leave the
	// deadline short of bid time plus grace.
	if r.GraceWindow > r.SnipeThreshold {
		return fmt.Errorf("grace window %s exceeds snipe threshold %s", r.GraceWindow, r.SnipeThreshold)
	}
	switch r.UnsoldPolicy {
	case UnsoldReturn, UnsoldDiscard:
	default:
		return fmt.Errorf("unknown unsold policy %q", r.UnsoldPolicy)
	}
	return nil
}

// Duration returns the round length for tier t.
func (r Rules) Duration(t catalog.Tier) time.Duration {
	return r.RoundDurations[t]
}

// Resolution describes a round that closed during an engine call.
type Resolution struct {
	RoundID  string       `json:"round_id"`
	Tier     catalog.Tier `json:"tier"`
	ItemID   string       `json:"item_id"`
	Outcome  Outcome      `json:"outcome"`
	WinnerID string       `json:"winner_id,omitempty"`
	Amount   int          `json:"amount,omitempty"`
	Stopped  bool         `json:"stopped,omitempty"`
	Discard  bool         `json:"discard,omitempty"`
}

// Update is the result of a mutating engine call.
type Update struct {
	// Round is the state of the latest round after the call. Zero when no
	// round has run since the last reset.
	Round RoundView
	// Resolved is set when the call closed a round, including a round closed
	// by the expiry check in front of a rejected bid.
	Resolved *Resolution
	Opened   bool
	Extended bool
}

// Changed reports whether the call altered observable state.
func (u Update) Changed() bool {
	return u.Resolved != nil || u.Opened || u.Extended
}

type metrics struct {
	bidsAccepted   metric.Int64Counter
	bidsRejected   metric.Int64Counter
	roundsResolved metric.Int64Counter
	extensions     metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (metrics, error) {
	meter := mp.Meter("github.com/jensholdgaard/zoo-auction/internal/auction")
	var (
		m   metrics
		err error
	)
	if m.bidsAccepted, err = meter.Int64Counter("auction.bids.accepted",
		metric.WithDescription("Bids admitted as the new high bid.")); err != nil {
		return m, err
	}
	if m.bidsRejected, err = meter.Int64Counter("auction.bids.rejected",
		metric.WithDescription("Bids rejected, by reason.")); err != nil {
		return m, err
	}
	if m.roundsResolved, err = meter.Int64Counter("auction.rounds.resolved",
		metric.WithDescription("Rounds closed, by outcome.")); err != nil {
		return m, err
	}
	if m.extensions, err = meter.Int64Counter("auction.rounds.extended",
		metric.WithDescription("Deadline extensions caused by late bids.")); err != nil {
		return m, err
	}
	return m, nil
}

// Engine runs rounds for one game instance.
type Engine struct {
	mu     sync.RWMutex
	ledger *ledger.Ledger
	round  *Round
	gameID string
	seq    uint64
	outbox []event.Event

	rules   Rules
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics metrics
	clock   clock.Clock
}

// NewEngine creates an Engine over the given ledger.
func NewEngine(l *ledger.Ledger, gameID string, rules Rules, logger *slog.Logger, tp trace.TracerProvider, mp metric.MeterProvider, clk clock.Clock) (*Engine, error) {
	if err := rules.Validate(); err != nil {
		return nil, fmt.Errorf("validating rules: %w", err)
	}
	m, err := newMetrics(mp)
	if err != nil {
		return nil, fmt.Errorf("creating auction metrics: %w", err)
	}
	return &Engine{
		ledger:  l,
		gameID:  gameID,
		rules:   rules,
		logger:  logger,
		tracer:  tp.Tracer("github.com/jensholdgaard/zoo-auction/internal/auction"),
		metrics: m,
		clock:   clk,
	}, nil
}

// Rules returns the engine's round configuration.
func (e *Engine) Rules() Rules { return e.rules }

// StartRound opens a round for itemID in tier.
func (e *Engine) StartRound(ctx context.Context, tier catalog.Tier, itemID string) (Update, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.StartRound",
		trace.WithAttributes(
			attribute.Int("tier", int(tier)),
			attribute.String("item_id", itemID),
		),
	)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.collect()

	now := e.clock.Now()
	upd, err := e.advance(ctx, now, false)
	if err != nil {
		return upd, err
	}

	if e.round != nil && e.round.Live() {
		return upd, fmt.Errorf("%w: round %s is %s", ErrInvalidRoundStart, e.round.ID, e.round.State)
	}
	item, ok := e.ledger.Catalog().Item(itemID)
	if !ok {
		return upd, fmt.Errorf("%w: unknown item %q", ErrInvalidRoundStart, itemID)
	}
	if item.Tier != tier {
		return upd, fmt.Errorf("%w: item %s is tier %d, not %d", ErrInvalidRoundStart, itemID, item.Tier, tier)
	}
	if status := e.ledger.ItemStatus(itemID); status != ledger.ItemAvailable {
		return upd, fmt.Errorf("%w: item %s is %s", ErrItemAlreadySold, itemID, status)
	}

	opensAt := now.Add(e.rules.AnnounceDelay)
	r := newRound(uuid.NewString(), e.gameID, item, opensAt, opensAt.Add(e.rules.Duration(tier)))
	if e.rules.AnnounceDelay == 0 {
		r.open()
		upd.Opened = true
	}
	e.collect()
	e.round = r
	upd.Round = r.View()

	span.SetAttributes(attribute.String("round_id", r.ID))
	e.logger.InfoContext(ctx, "round started",
		slog.String("round_id", r.ID),
		slog.String("item_id", itemID),
		slog.Int("tier", int(tier)),
		slog.Time("deadline", r.Deadline),
	)
	return upd, nil
}

// SubmitBid offers amount on the live round for bidder.
func (e *Engine) SubmitBid(ctx context.Context, bidderID string, amount int) (Update, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.SubmitBid",
		trace.WithAttributes(
			attribute.String("bidder_id", bidderID),
			attribute.Int("amount", amount),
		),
	)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.collect()

	now := e.clock.Now()
	upd, err := e.advance(ctx, now, false)
	if err != nil {
		return upd, err
	}

	if err := e.admit(bidderID, amount, now); err != nil {
		reason := Reason(err)
		e.metrics.bidsRejected.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
		span.SetAttributes(attribute.String("rejected", reason))
		e.logger.DebugContext(ctx, "bid rejected",
			slog.String("bidder_id", bidderID),
			slog.Int("amount", amount),
			slog.String("reason", reason),
		)
		return upd, err
	}

	r := e.round
	e.seq++
	bid := Bid{BidderID: bidderID, Amount: amount, Time: now, Seq: e.seq}

	if prev := r.HighBid(); prev != nil && prev.BidderID != bidderID {
		e.ledger.Release(prev.BidderID, r.Item.ID)
	}
	if err := e.ledger.Commit(bidderID, r.Item.ID, amount); err != nil {
		// admit already checked the same condition under the same lock.
		return upd, e.violation(ctx, r, fmt.Errorf("committing bid: %w", err))
	}
	r.accept(bid)
	e.metrics.bidsAccepted.Add(ctx, 1)

	if r.Deadline.Sub(now) < e.rules.SnipeThreshold {
		if extended := now.Add(e.rules.GraceWindow); extended.After(r.Deadline) {
			r.extend(extended)
			upd.Extended = true
			e.metrics.extensions.Add(ctx, 1)
		}
	}
	upd.Round = r.View()

	e.logger.InfoContext(ctx, "bid accepted",
		slog.String("round_id", r.ID),
		slog.String("bidder_id", bidderID),
		slog.Int("amount", amount),
		slog.Uint64("seq", bid.Seq),
		slog.Bool("extended", upd.Extended),
	)
	return upd, nil
}

// admit runs every bid check without mutating anything.
func (e *Engine) admit(bidderID string, amount int, now time.Time) error {
	r := e.round
	if r == nil || r.State != StateOpen || !now.Before(r.Deadline) {
		return ErrRoundNotOpen
	}
	entry, err := e.ledger.Entry(bidderID)
	if err != nil {
		return err
	}
	if minimum := r.HighAmount() + e.rules.MinIncrement; amount < minimum {
		return fmt.Errorf("%w: minimum is %d", ErrBidTooLow, minimum)
	}
	if avail := entry.AvailableFor(r.Item.ID); amount > avail {
		return fmt.Errorf("%w: %d available", ErrInsufficientFunds, avail)
	}
	return e.ledger.CheckAcquire(bidderID, r.Item.ID)
}

// Tick applies any time-driven transition that is due.
func (e *Engine) Tick(ctx context.Context) (Update, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Tick")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.collect()

	return e.advance(ctx, e.clock.Now(), false)
}

// ForceStop resolves the live round immediately.
func (e *Engine) ForceStop(ctx context.Context) (Update, error) {
	ctx, span := e.tracer.Start(ctx, "Engine.ForceStop")
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.collect()

	return e.advance(ctx, e.clock.Now(), true)
}

// advance moves the latest round through any due transitions. Callers hold
// the write lock.
func (e *Engine) advance(ctx context.Context, now time.Time, force bool) (Update, error) {
	r := e.round
	if r == nil {
		return Update{}, nil
	}
	upd := Update{Round: r.View()}
	if !r.Live() {
		return upd, nil
	}

	if r.State == StateAnnouncing && (force || !now.Before(r.OpensAt)) {
		r.open()
		upd.Opened = true
	}
	if r.State == StateOpen && force {
		r.stop(now)
		r.State = StateResolving
	}
	if r.State == StateOpen && !now.Before(r.Deadline) {
		r.State = StateResolving
	}
	if r.State == StateResolving {
		res, err := e.resolve(ctx, r, now)
		upd.Round = r.View()
		if err != nil {
			return upd, err
		}
		upd.Resolved = res
	}
	upd.Round = r.View()
	return upd, nil
}

func (e *Engine) resolve(ctx context.Context, r *Round, now time.Time) (*Resolution, error) {
	res := &Resolution{
		RoundID: r.ID,
		Tier:    r.Tier,
		ItemID:  r.Item.ID,
		Stopped: r.Stopped,
	}

	if high := r.HighBid(); high != nil {
		if err := e.ledger.Settle(high.BidderID, r.Item.ID, high.Amount); err != nil {
			return nil, e.violation(ctx, r, fmt.Errorf("settling %s to %s for %d: %w", r.Item.ID, high.BidderID, high.Amount, err))
		}
		r.closeSold(*high, now)
		res.Outcome = OutcomeSold
		res.WinnerID = high.BidderID
		res.Amount = high.Amount
	} else {
		discard := e.rules.UnsoldPolicy == UnsoldDiscard
		e.ledger.MarkUnsold(r.Item.ID, discard)
		r.closeUnsold(discard, now)
		res.Outcome = OutcomeUnsold
		res.Discard = discard
	}

	e.metrics.roundsResolved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", string(res.Outcome)),
		attribute.Bool("stopped", res.Stopped),
	))
	e.logger.InfoContext(ctx, "round resolved",
		slog.String("round_id", r.ID),
		slog.String("item_id", r.Item.ID),
		slog.String("outcome", string(res.Outcome)),
		slog.String("winner_id", res.WinnerID),
		slog.Int("amount", res.Amount),
		slog.Bool("stopped", res.Stopped),
	)
	return res, nil
}

// violation logs a broken invariant. The round keeps its current state.
func (e *Engine) violation(ctx context.Context, r *Round, err error) error {
	err = fmt.Errorf("%w: round %s: %w", ErrInvariantViolation, r.ID, err)
	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invariant violation")
	}
	e.logger.ErrorContext(ctx, "auction invariant violated",
		slog.String("round_id", r.ID),
		slog.String("item_id", r.Item.ID),
		slog.Int("bids", len(r.Bids)),
		slog.Int("high_bid", r.HighAmount()),
		slog.Any("error", err),
	)
	return err
}

// Claim attaches a display name to a participant's entry.
func (e *Engine) Claim(ctx context.Context, participantID, name string) error {
	_, span := e.tracer.Start(ctx, "Engine.Claim",
		trace.WithAttributes(attribute.String("participant_id", participantID)),
	)
	defer span.End()

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ledger.Claim(participantID, name)
}

// Reset replaces the ledger and forgets the current round.
func (e *Engine) Reset(l *ledger.Ledger, gameID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.ledger = l
	e.gameID = gameID
	e.round = nil
	e.seq = 0
	e.outbox = nil
}

// Current returns a view of the latest round.
func (e *Engine) Current() (RoundView, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.round == nil {
		return RoundView{}, false
	}
	return e.round.View(), true
}

// View calls fn with the ledger and latest round under the read lock. fn
// must not retain or modify either.
func (e *Engine) View(fn func(l *ledger.Ledger, r *Round)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(e.ledger, e.round)
}

// PendingEvents returns round events recorded since the last call.
func (e *Engine) PendingEvents() []event.Event {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.collect()
	events := e.outbox
	e.outbox = nil
	return events
}

// collect moves the round's new events into the outbox. Callers hold the
// write lock.
func (e *Engine) collect() {
	if e.round == nil {
		return
	}
	now := e.clock.Now()
	for _, ev := range e.round.pendingEvents() {
		ev.ID = uuid.NewString()
		ev.CreatedAt = now
		e.outbox = append(e.outbox, ev)
	}
}
