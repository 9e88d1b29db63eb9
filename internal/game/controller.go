// Package game sequences a whole game: initialisation, tiers of auction
// rounds, the round timer, final scoring, and snapshot publication. All
// auction state lives in the auction engine; the controller only holds what
// comes next.
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/zoo-auction/internal/auction"
	"github.com/jensholdgaard/zoo-auction/internal/catalog"
	"github.com/jensholdgaard/zoo-auction/internal/clock"
	"github.com/jensholdgaard/zoo-auction/internal/event"
	"github.com/jensholdgaard/zoo-auction/internal/ledger"
	"github.com/jensholdgaard/zoo-auction/internal/scoring"
	"github.com/jensholdgaard/zoo-auction/internal/store"
)

// Errors returned by the controller in addition to the auction errors.
var (
	ErrNotInitialized = errors.New("game not initialized")
	ErrInvalidTier    = errors.New("invalid tier")
	ErrTierRunning    = errors.New("tier already running")
	ErrGameScored     = errors.New("game already scored")
	ErrAlreadyClaimed = ledger.ErrAlreadyClaimed
)

// InitParams are the inputs of Initialize, kept for Reset.
type InitParams struct {
	Catalog *catalog.Catalog
	Stake   int
}

// Options configure sequencing and scoring.
type Options struct {
	Rules   auction.Rules
	Scoring scoring.Rules
	// AutoAdvance starts the next tier TierPause after one completes.
	AutoAdvance bool
	TierPause   time.Duration
}

// Controller drives one game instance.
type Controller struct {
	mu     sync.Mutex
	engine *auction.Engine

	params      InitParams
	initialized bool
	gameID      string
	version     int
	phase       Phase
	tier        catalog.Tier
	queue       []string
	completed   map[catalog.Tier]bool
	final       []scoring.Standing
	timer       clock.Timer
	pause       clock.Timer
	seq         uint64

	opts    Options
	journal *store.Repositories
	writes  *journalQueue
	hub     *Hub
	logger  *slog.Logger
	tracer  trace.Tracer
	clock   clock.Clock
}

// NewController creates a Controller. The game must be initialised before
// any other operation succeeds.
func NewController(journal *store.Repositories, hub *Hub, opts Options, logger *slog.Logger, tp trace.TracerProvider, mp metric.MeterProvider, clk clock.Clock) (*Controller, error) {
	if err := opts.Scoring.Validate(); err != nil {
		return nil, fmt.Errorf("validating scoring rules: %w", err)
	}
	engine, err := auction.NewEngine(nil, "", opts.Rules, logger, tp, mp, clk)
	if err != nil {
		return nil, err
	}
	return &Controller{
		engine:    engine,
		phase:     PhaseSetup,
		completed: make(map[catalog.Tier]bool),
		opts:      opts,
		journal:   journal,
		writes:    newJournalQueue(),
		hub:       hub,
		logger:    logger,
		tracer:    tp.Tracer("github.com/jensholdgaard/zoo-auction/internal/game"),
		clock:     clk,
	}, nil
}

// Hub returns the snapshot hub the controller publishes to.
func (c *Controller) Hub() *Hub { return c.hub }

// GameID returns the id of the current game, empty before Initialize. Reset
// assigns a new id.
func (c *Controller) GameID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gameID
}

// Initialize builds a fresh ledger with one entry per zone and resets the
// engine.
func (c *Controller) Initialize(ctx context.Context, p InitParams) error {
	ctx, span := c.tracer.Start(ctx, "Controller.Initialize",
		trace.WithAttributes(attribute.Int("stake", p.Stake)),
	)
	defer span.End()

	if p.Catalog == nil {
		return fmt.Errorf("initializing game: catalog is required")
	}
	if p.Stake <= 0 {
		return fmt.Errorf("initializing game: stake must be positive, got %d", p.Stake)
	}

	c.mu.Lock()
	defer c.unlock(ctx)

	c.setup(ctx, p, event.GameInitialized)
	c.publish()
	return nil
}

// Reset discards all progress and rebuilds the post-initialize state from
// the stored parameters.
func (c *Controller) Reset(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "Controller.Reset")
	defer span.End()

	c.mu.Lock()
	defer c.unlock(ctx)

	if !c.initialized {
		return ErrNotInitialized
	}
	c.setup(ctx, c.params, event.GameReset)
	c.publish()
	return nil
}

func (c *Controller) setup(ctx context.Context, p InitParams, t event.Type) {
	c.stopTimers()

	c.params = p
	c.initialized = true
	c.gameID = uuid.NewString()
	c.version = 0
	c.phase = PhaseSetup
	c.tier = 0
	c.queue = nil
	c.completed = make(map[catalog.Tier]bool)
	c.final = nil

	l := ledger.New(p.Catalog, p.Stake)
	c.engine.Reset(l, c.gameID)

	c.record(ctx, t, event.GameInitializedData{
		Stake:        p.Stake,
		Participants: len(p.Catalog.Zones()),
		Items:        len(p.Catalog.Items()),
	})
	c.logger.InfoContext(ctx, "game initialized",
		slog.String("game_id", c.gameID),
		slog.String("reason", string(t)),
		slog.Int("stake", p.Stake),
	)
}

// StartTier queues every available item of tier and starts the first round.
func (c *Controller) StartTier(ctx context.Context, tier catalog.Tier) error {
	ctx, span := c.tracer.Start(ctx, "Controller.StartTier",
		trace.WithAttributes(attribute.Int("tier", int(tier))),
	)
	defer span.End()

	c.mu.Lock()
	defer c.unlock(ctx)

	if err := c.startTier(ctx, tier); err != nil {
		return err
	}
	c.publish()
	return nil
}

func (c *Controller) startTier(ctx context.Context, tier catalog.Tier) error {
	if !c.initialized {
		return ErrNotInitialized
	}
	if !tier.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidTier, tier)
	}
	if c.phase == PhaseAuction {
		return fmt.Errorf("%w: tier %d", ErrTierRunning, c.tier)
	}
	if v, ok := c.engine.Current(); ok && (v.State == auction.StateAnnouncing || v.State == auction.StateOpen || v.State == auction.StateResolving) {
		return fmt.Errorf("%w: round %s is %s", auction.ErrInvalidRoundStart, v.ID, v.State)
	}
	c.stopPause()

	var queue []string
	c.engine.View(func(l *ledger.Ledger, _ *auction.Round) {
		for _, it := range l.AvailableItems(tier) {
			queue = append(queue, it.ID)
		}
	})

	c.tier = tier
	c.queue = queue
	c.phase = PhaseAuction
	c.record(ctx, event.TierStarted, event.TierData{Tier: int(tier), Items: queue})
	c.logger.InfoContext(ctx, "tier started",
		slog.String("game_id", c.gameID),
		slog.Int("tier", int(tier)),
		slog.Int("items", len(queue)),
	)
	return c.startNext(ctx)
}

// startNext starts the next queued round, or completes the tier when the
// queue is empty.
func (c *Controller) startNext(ctx context.Context) error {
	for len(c.queue) > 0 {
		id := c.queue[0]
		upd, err := c.engine.StartRound(ctx, c.tier, id)
		c.flush()
		if errors.Is(err, auction.ErrItemAlreadySold) {
			c.queue = c.queue[1:]
			continue
		}
		if err != nil {
			return fmt.Errorf("starting round for %s: %w", id, err)
		}
		c.queue = c.queue[1:]
		c.journalRoundStarted(upd.Round)
		c.schedule(upd.Round)
		return nil
	}
	c.completeTier(ctx)
	return nil
}

func (c *Controller) completeTier(ctx context.Context) {
	c.completed[c.tier] = true
	c.phase = PhaseIntermission
	c.record(ctx, event.TierCompleted, event.TierData{Tier: int(c.tier)})
	c.logger.InfoContext(ctx, "tier completed",
		slog.String("game_id", c.gameID),
		slog.Int("tier", int(c.tier)),
	)

	if c.allCompleted() {
		c.score(ctx)
		return
	}
	if c.tier == catalog.MaxTier {
		c.logger.WarnContext(ctx, "last tier completed with earlier tiers outstanding; finish the game to score it",
			slog.String("game_id", c.gameID),
			slog.Any("completed", c.completedTiers()),
		)
		return
	}
	if c.opts.AutoAdvance {
		next, gameID := c.tier+1, c.gameID
		c.pause = c.clock.AfterFunc(c.opts.TierPause, func() {
			c.autoStart(gameID, next)
		})
	}
}

func (c *Controller) allCompleted() bool {
	for t := catalog.MinTier; t <= catalog.MaxTier; t++ {
		if !c.completed[t] {
			return false
		}
	}
	return true
}

func (c *Controller) completedTiers() []int {
	var out []int
	for t := catalog.MinTier; t <= catalog.MaxTier; t++ {
		if c.completed[t] {
			out = append(out, int(t))
		}
	}
	return out
}

func (c *Controller) autoStart(gameID string, tier catalog.Tier) {
	ctx, span := c.tracer.Start(context.Background(), "Controller.autoStart",
		trace.WithAttributes(attribute.Int("tier", int(tier))),
	)
	defer span.End()

	c.mu.Lock()
	defer c.unlock(ctx)

	if c.gameID != gameID || c.phase != PhaseIntermission {
		return
	}
	if err := c.startTier(ctx, tier); err != nil {
		c.logger.ErrorContext(ctx, "auto-advance failed", slog.Int("tier", int(tier)), slog.Any("error", err))
	}
	c.publish()
}

func (c *Controller) score(ctx context.Context) {
	c.final = c.standings()
	c.phase = PhaseScoring

	data := make([]store.Standing, 0, len(c.final))
	now := c.clock.Now()
	for _, s := range c.final {
		data = append(data, store.Standing{
			GameID:        c.gameID,
			Rank:          s.Rank,
			ParticipantID: s.Breakdown.ParticipantID,
			Name:          s.Name,
			Total:         s.Breakdown.Total,
			Rating:        s.Breakdown.Rating,
			CreatedAt:     now,
		})
	}
	gameID := c.gameID
	c.writes.push(func(ctx context.Context) {
		if err := c.journal.Standings.Save(ctx, gameID, data); err != nil {
			c.logger.ErrorContext(ctx, "saving final standings", slog.String("game_id", gameID), slog.Any("error", err))
		}
	})
	c.record(ctx, event.GameScored, event.TierData{Tier: int(c.tier)})

	attrs := []any{slog.String("game_id", c.gameID)}
	if len(c.final) > 0 {
		attrs = append(attrs,
			slog.String("winner", c.final[0].Breakdown.ParticipantID),
			slog.String("total", c.final[0].Breakdown.Total.String()),
		)
	}
	c.logger.InfoContext(ctx, "game scored", attrs...)
}

// Finish scores the game from the current ledger. Completing the last
// outstanding tier scores automatically; Finish ends a game any other way,
// such as after a stop during tier 4.
func (c *Controller) Finish(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "Controller.Finish")
	defer span.End()

	c.mu.Lock()
	defer c.unlock(ctx)

	if !c.initialized {
		return ErrNotInitialized
	}
	switch c.phase {
	case PhaseAuction:
		return fmt.Errorf("%w: tier %d", ErrTierRunning, c.tier)
	case PhaseScoring:
		return ErrGameScored
	}
	c.stopPause()
	c.score(ctx)
	c.publish()
	return nil
}

// StopAuction force-stops the live round and abandons the rest of the tier.
func (c *Controller) StopAuction(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "Controller.StopAuction")
	defer span.End()

	c.mu.Lock()
	defer c.unlock(ctx)

	if !c.initialized {
		return ErrNotInitialized
	}
	c.stopTimers()
	c.queue = nil

	upd, err := c.engine.ForceStop(ctx)
	c.flush()
	if upd.Resolved != nil {
		c.journalResolution(upd.Resolved)
	}
	if c.phase == PhaseAuction {
		c.phase = PhaseIntermission
	}
	c.logger.InfoContext(ctx, "auction stopped",
		slog.String("game_id", c.gameID),
		slog.Int("tier", int(c.tier)),
	)
	c.publish()
	return err
}

// SubmitBid forwards a bid to the engine.
func (c *Controller) SubmitBid(ctx context.Context, participantID string, amount int) (auction.Update, error) {
	ctx, span := c.tracer.Start(ctx, "Controller.SubmitBid",
		trace.WithAttributes(
			attribute.String("participant_id", participantID),
			attribute.Int("amount", amount),
		),
	)
	defer span.End()

	c.mu.Lock()
	defer c.unlock(ctx)

	if !c.initialized {
		return auction.Update{}, ErrNotInitialized
	}
	upd, err := c.engine.SubmitBid(ctx, participantID, amount)
	c.apply(ctx, upd)
	if err == nil || upd.Changed() {
		c.publish()
	}
	return upd, err
}

// Tick applies due time transitions. It is safe to call at any time.
func (c *Controller) Tick(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "Controller.Tick")
	defer span.End()

	c.mu.Lock()
	defer c.unlock(ctx)

	if !c.initialized {
		return nil
	}
	upd, err := c.engine.Tick(ctx)
	c.apply(ctx, upd)
	if upd.Changed() {
		c.publish()
	}
	return err
}

// apply reacts to an engine update: journal, timer and queue.
func (c *Controller) apply(ctx context.Context, upd auction.Update) {
	c.flush()

	if upd.Resolved != nil {
		c.journalResolution(upd.Resolved)
		c.stopTimer()
		if c.phase == PhaseAuction {
			if err := c.startNext(ctx); err != nil {
				c.logger.ErrorContext(ctx, "advancing tier", slog.Int("tier", int(c.tier)), slog.Any("error", err))
			}
		}
		return
	}
	if upd.Opened || upd.Extended {
		c.schedule(upd.Round)
	}
}

// Claim attaches a display name to a zoo.
func (c *Controller) Claim(ctx context.Context, participantID, name string) error {
	ctx, span := c.tracer.Start(ctx, "Controller.Claim",
		trace.WithAttributes(attribute.String("participant_id", participantID)),
	)
	defer span.End()

	c.mu.Lock()
	defer c.unlock(ctx)

	if !c.initialized {
		return ErrNotInitialized
	}
	if err := c.engine.Claim(ctx, participantID, name); err != nil {
		return err
	}
	c.record(ctx, event.ZooClaimed, event.ZooClaimedData{ParticipantID: participantID, Name: name})
	c.publish()
	return nil
}

// Snapshot returns the current game view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

// Standings returns the final standings once the game is scored, and live
// standings before that.
func (c *Controller) Standings() ([]scoring.Standing, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return nil, ErrNotInitialized
	}
	if c.phase == PhaseScoring {
		return c.final, nil
	}
	return c.standings(), nil
}

func (c *Controller) standings() []scoring.Standing {
	var out []scoring.Standing
	c.engine.View(func(l *ledger.Ledger, _ *auction.Round) {
		out = scoring.Standings(l.Entries(), l.Catalog(), c.opts.Scoring)
	})
	return out
}

// Rounds lists the journaled rounds of the current game.
func (c *Controller) Rounds(ctx context.Context) ([]store.Round, error) {
	c.mu.Lock()
	gameID := c.gameID
	c.mu.Unlock()
	c.writes.wait(context.WithoutCancel(ctx))
	return c.journal.Rounds.ListByGame(ctx, gameID)
}

// RoundHistory rebuilds a round from its journaled events.
func (c *Controller) RoundHistory(ctx context.Context, roundID string) (*auction.Round, error) {
	ctx, span := c.tracer.Start(ctx, "Controller.RoundHistory",
		trace.WithAttributes(attribute.String("round_id", roundID)),
	)
	defer span.End()

	c.writes.wait(context.WithoutCancel(ctx))
	events, err := c.journal.Events.Load(ctx, roundID)
	if err != nil {
		return nil, fmt.Errorf("loading round events: %w", err)
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("round %s: %w", roundID, store.ErrNotFound)
	}
	return auction.Replay(events)
}

func (c *Controller) snapshot() Snapshot {
	s := Snapshot{
		Seq:         c.seq,
		GameID:      c.gameID,
		Initialized: c.initialized,
		Phase:       c.phase,
		Tier:        int(c.tier),
		Stake:       c.params.Stake,
		Queued:      len(c.queue),
		At:          c.clock.Now(),
	}
	s.Completed = c.completedTiers()
	if c.phase == PhaseScoring {
		s.Final = c.final
	}
	if !c.initialized {
		return s
	}

	c.engine.View(func(l *ledger.Ledger, r *auction.Round) {
		if r != nil {
			v := r.View()
			s.Round = &v
		}
		s.Available = make(map[catalog.Tier]int)
		for t := catalog.MinTier; t <= catalog.MaxTier; t++ {
			s.Available[t] = len(l.AvailableItems(t))
		}
		for _, e := range l.Entries() {
			s.Participants = append(s.Participants, Participant{
				ID:         e.ParticipantID,
				Name:       e.Name,
				Continent:  e.Zone.Continent,
				Favored:    e.Zone.FavoredBiome,
				Funds:      e.Funds,
				Spent:      e.Spent,
				Committed:  e.Committed(),
				Items:      e.Items,
				TierCounts: e.TierCounts,
				Score:      scoring.Score(e, l.Catalog(), c.opts.Scoring),
			})
		}
	})
	return s
}

func (c *Controller) publish() {
	c.seq++
	c.hub.Publish(c.snapshot())
}

// schedule arms the round timer for the next transition of v.
func (c *Controller) schedule(v auction.RoundView) {
	c.stopTimer()

	var at time.Time
	switch v.State {
	case auction.StateAnnouncing:
		at = v.OpensAt
	case auction.StateOpen:
		at = v.Deadline
	default:
		return
	}
	c.timer = c.clock.AfterFunc(at.Sub(c.clock.Now()), func() {
		if err := c.Tick(context.Background()); err != nil {
			c.logger.Error("round timer tick failed", slog.Any("error", err))
		}
	})
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) stopPause() {
	if c.pause != nil {
		c.pause.Stop()
		c.pause = nil
	}
}

func (c *Controller) stopTimers() {
	c.stopTimer()
	c.stopPause()
}

// record journals a game-level event.
func (c *Controller) record(ctx context.Context, t event.Type, payload any) {
	data, _ := json.Marshal(payload)
	c.version++
	ev := event.Event{
		ID:          uuid.NewString(),
		GameID:      c.gameID,
		AggregateID: c.gameID,
		Type:        t,
		Data:        data,
		Version:     c.version,
		CreatedAt:   c.clock.Now(),
	}
	c.writes.push(func(ctx context.Context) {
		if err := c.journal.Events.Append(ctx, ev); err != nil {
			c.logger.ErrorContext(ctx, "journaling game event",
				slog.String("type", string(t)),
				slog.Any("error", err),
			)
		}
	})
}

// flush queues the engine's pending round events for the journal.
func (c *Controller) flush() {
	events := c.engine.PendingEvents()
	if len(events) == 0 {
		return
	}
	c.writes.push(func(ctx context.Context) {
		if err := c.journal.Events.Append(ctx, events...); err != nil {
			c.logger.ErrorContext(ctx, "journaling round events",
				slog.Int("count", len(events)),
				slog.Any("error", err),
			)
		}
	})
}

func (c *Controller) journalRoundStarted(v auction.RoundView) {
	round := &store.Round{
		ID:           v.ID,
		GameID:       c.gameID,
		Tier:         v.Tier,
		ItemID:       v.ItemID,
		OpeningPrice: v.OpeningPrice,
		StartedAt:    c.clock.Now(),
	}
	c.writes.push(func(ctx context.Context) {
		if err := c.journal.Rounds.Create(ctx, round); err != nil {
			c.logger.ErrorContext(ctx, "journaling round start", slog.String("round_id", round.ID), slog.Any("error", err))
		}
	})
}

func (c *Controller) journalResolution(res *auction.Resolution) {
	c.writes.push(func(ctx context.Context) {
		var err error
		if res.Outcome == auction.OutcomeSold {
			err = c.journal.Rounds.Close(ctx, res.RoundID, res.WinnerID, res.Amount, res.Stopped)
		} else {
			err = c.journal.Rounds.MarkUnsold(ctx, res.RoundID, res.Stopped)
		}
		if err != nil {
			c.logger.ErrorContext(ctx, "journaling round result", slog.String("round_id", res.RoundID), slog.Any("error", err))
		}
	})
}

// unlock releases the controller lock, then applies the journal writes
// queued while it was held.
func (c *Controller) unlock(ctx context.Context) {
	c.mu.Unlock()
	c.writes.drain(context.WithoutCancel(ctx))
}
