package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jensholdgaard/zoo-auction/internal/auction"
	"github.com/jensholdgaard/zoo-auction/internal/catalog"
	"github.com/jensholdgaard/zoo-auction/internal/game"
	"github.com/jensholdgaard/zoo-auction/internal/roster"
)

// standingsShown caps the /standings reply.
const standingsShown = 10

// Handlers process Discord interactions.
type Handlers struct {
	ctrl        *game.Controller
	roster      *roster.Manager
	adminRoleID string
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewHandlers creates new command handlers. Members holding adminRoleID, or
// the administrator permission, may run admin commands.
func NewHandlers(ctrl *game.Controller, r *roster.Manager, adminRoleID string, logger *slog.Logger, tp trace.TracerProvider) *Handlers {
	return &Handlers{
		ctrl:        ctrl,
		roster:      r,
		adminRoleID: adminRoleID,
		logger:      logger,
		tracer:      tp.Tracer("github.com/jensholdgaard/zoo-auction/internal/bot/commands"),
	}
}

// SlashCommands returns the slash command definitions.
func SlashCommands() []*discordgo.ApplicationCommand {
	tierMin, tierMax := float64(catalog.MinTier), float64(catalog.MaxTier)
	amountMin := float64(1)
	return []*discordgo.ApplicationCommand{
		{
			Name:        "claim",
			Description: "Claim a zoo for this game",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "zoo",
					Description: "Zoo id, e.g. A1 or C3",
					Required:    true,
				},
			},
		},
		{
			Name:        "bid",
			Description: "Bid on the animal currently up for auction",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "amount",
					Description: "Total bid amount",
					Required:    true,
					MinValue:    &amountMin,
				},
			},
		},
		{
			Name:        "zoo",
			Description: "Show a zoo's funds, animals and score",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionString,
					Name:        "zoo",
					Description: "Zoo id (default: your own)",
					Required:    false,
				},
			},
		},
		{
			Name:        "standings",
			Description: "Show the leaderboard",
		},
		{
			Name:        "auction",
			Description: "Show the current round",
		},
		{
			Name:        "tier-start",
			Description: "Start auctioning a tier (admin only)",
			Options: []*discordgo.ApplicationCommandOption{
				{
					Type:        discordgo.ApplicationCommandOptionInteger,
					Name:        "tier",
					Description: "Tier 1 to 4",
					Required:    true,
					MinValue:    &tierMin,
					MaxValue:    tierMax,
				},
			},
		},
		{
			Name:        "auction-stop",
			Description: "Stop the current round and the rest of the tier (admin only)",
		},
		{
			Name:        "game-finish",
			Description: "Score the game now and publish final standings (admin only)",
		},
		{
			Name:        "game-reset",
			Description: "Reset the game to its initial state (admin only)",
		},
	}
}

// Request is one slash command invocation, decoupled from the session.
type Request struct {
	Command     string
	UserID      string
	DisplayName string
	Admin       bool
	Options     map[string]*discordgo.ApplicationCommandInteractionDataOption
}

// InteractionCreate handles incoming slash command interactions.
func (h *Handlers) InteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	data := i.ApplicationCommandData()
	ctx, span := h.tracer.Start(context.Background(), "InteractionCreate",
		trace.WithAttributes(attribute.String("command", data.Name)),
	)
	defer span.End()

	req := Request{
		Command: data.Name,
		Options: make(map[string]*discordgo.ApplicationCommandInteractionDataOption, len(data.Options)),
	}
	for _, opt := range data.Options {
		req.Options[opt.Name] = opt
	}
	switch {
	case i.Member != nil && i.Member.User != nil:
		req.UserID = i.Member.User.ID
		req.DisplayName = displayName(i.Member.Nick, i.Member.User)
		req.Admin = i.Member.Permissions&discordgo.PermissionAdministrator != 0 ||
			(h.adminRoleID != "" && slices.Contains(i.Member.Roles, h.adminRoleID))
	case i.User != nil:
		req.UserID = i.User.ID
		req.DisplayName = displayName("", i.User)
	}

	respond(s, i, h.Execute(ctx, req))
}

// Execute runs a command and returns the reply text.
func (h *Handlers) Execute(ctx context.Context, req Request) string {
	switch req.Command {
	case "claim":
		return h.handleClaim(ctx, req)
	case "bid":
		return h.handleBid(ctx, req)
	case "zoo":
		return h.handleZoo(req)
	case "standings":
		return h.handleStandings()
	case "auction":
		return h.handleAuction()
	case "tier-start", "auction-stop", "game-finish", "game-reset":
		if !req.Admin {
			return "Only admins can do that."
		}
		return h.handleAdmin(ctx, req)
	default:
		return "Unknown command"
	}
}

func (h *Handlers) handleClaim(ctx context.Context, req Request) string {
	zoo := strings.ToUpper(strings.TrimSpace(stringOption(req, "zoo")))
	if err := h.roster.Claim(ctx, req.UserID, req.DisplayName, zoo); err != nil {
		return fmt.Sprintf("Claim failed: %s", describe(err))
	}
	return fmt.Sprintf("**%s** now runs zoo **%s**.", req.DisplayName, zoo)
}

func (h *Handlers) handleBid(ctx context.Context, req Request) string {
	zoo, err := h.roster.Lookup(req.UserID)
	if err != nil {
		return "You have no zoo in this game. Use `/claim` first."
	}
	amount := int(intOption(req, "amount"))

	upd, err := h.ctrl.SubmitBid(ctx, zoo, amount)
	if err != nil {
		h.logger.DebugContext(ctx, "bid rejected",
			slog.String("participant_id", zoo),
			slog.Int("amount", amount),
			slog.String("reason", auction.Reason(err)),
		)
		return fmt.Sprintf("Bid failed: %s", describe(err))
	}
	msg := fmt.Sprintf("**%s** leads **%s** at **%d**.", zoo, upd.Round.ItemName, amount)
	if upd.Extended {
		msg += fmt.Sprintf(" Deadline extended to <t:%d:T>.", upd.Round.Deadline.Unix())
	}
	return msg
}

func (h *Handlers) handleZoo(req Request) string {
	zoo := strings.ToUpper(strings.TrimSpace(stringOption(req, "zoo")))
	if zoo == "" {
		var err error
		if zoo, err = h.roster.Lookup(req.UserID); err != nil {
			return "You have no zoo in this game. Name one, or use `/claim` first."
		}
	}

	snap := h.ctrl.Snapshot()
	if !snap.Initialized {
		return "No game is running."
	}
	for _, p := range snap.Participants {
		if p.ID != zoo {
			continue
		}
		var b strings.Builder
		fmt.Fprintf(&b, "**%s**", p.ID)
		if p.Name != "" {
			fmt.Fprintf(&b, " (%s)", p.Name)
		}
		fmt.Fprintf(&b, " favours %s\nFunds: **%d** (spent %d, committed %d)\n", p.Favored, p.Funds, p.Spent, p.Committed)
		if len(p.Items) == 0 {
			b.WriteString("No animals yet.\n")
		} else {
			fmt.Fprintf(&b, "Animals: %s\n", strings.Join(p.Items, ", "))
		}
		fmt.Fprintf(&b, "Score: **%s** (rating %s)", p.Score.Total.StringFixed(2), p.Score.Rating.StringFixed(2))
		return b.String()
	}
	return fmt.Sprintf("Unknown zoo %q.", zoo)
}

func (h *Handlers) handleStandings() string {
	standings, err := h.ctrl.Standings()
	if err != nil {
		return fmt.Sprintf("No standings: %s", describe(err))
	}
	var b strings.Builder
	b.WriteString("**Standings:**\n")
	for _, s := range standings[:min(len(standings), standingsShown)] {
		name := s.Breakdown.ParticipantID
		if s.Name != "" {
			name += " " + s.Name
		}
		fmt.Fprintf(&b, "%d. %s: %s\n", s.Rank, name, s.Breakdown.Total.StringFixed(2))
	}
	return b.String()
}

func (h *Handlers) handleAuction() string {
	snap := h.ctrl.Snapshot()
	if snap.Round == nil {
		return fmt.Sprintf("No round yet (phase: %s).", snap.Phase)
	}
	r := snap.Round
	switch r.State {
	case auction.StateAnnouncing:
		return fmt.Sprintf("Up next: **%s** (tier %d, %s), opens <t:%d:R> at %d.", r.ItemName, r.Tier, r.Biome, r.OpensAt.Unix(), r.OpeningPrice)
	case auction.StateOpen:
		lead := "no bids yet"
		if r.HighBidder != "" {
			lead = fmt.Sprintf("**%s** leads", r.HighBidder)
		}
		return fmt.Sprintf("**%s** (tier %d, %s): high bid **%d**, %s. Closes <t:%d:R>.",
			r.ItemName, r.Tier, r.Biome, r.HighBid, lead, r.Deadline.Unix())
	default:
		if r.Outcome == auction.OutcomeSold {
			return fmt.Sprintf("**%s** sold to **%s** for %d. %d left in tier %d.", r.ItemName, r.HighBidder, r.HighBid, snap.Queued, r.Tier)
		}
		return fmt.Sprintf("**%s** went unsold. %d left in tier %d.", r.ItemName, snap.Queued, r.Tier)
	}
}

func (h *Handlers) handleAdmin(ctx context.Context, req Request) string {
	var err error
	var done string
	switch req.Command {
	case "tier-start":
		tier := catalog.Tier(intOption(req, "tier"))
		err = h.ctrl.StartTier(ctx, tier)
		done = fmt.Sprintf("Tier %d started.", tier)
	case "auction-stop":
		err = h.ctrl.StopAuction(ctx)
		done = "Auction stopped."
	case "game-finish":
		err = h.ctrl.Finish(ctx)
		done = "Game scored. See `/standings` for the final ranking."
	case "game-reset":
		err = h.ctrl.Reset(ctx)
		done = "Game reset. Everyone needs to `/claim` again."
	}
	if err != nil {
		return fmt.Sprintf("Failed: %s", describe(err))
	}
	h.logger.InfoContext(ctx, "admin command", slog.String("command", req.Command), slog.String("user_id", req.UserID))
	return done
}

// describe turns a game error into a short human message.
func describe(err error) string {
	switch {
	case errors.Is(err, roster.ErrAlreadyBound):
		return "you already run a zoo in this game"
	case errors.Is(err, game.ErrAlreadyClaimed):
		return "that zoo is already taken"
	case errors.Is(err, game.ErrNotInitialized):
		return "no game is running"
	case errors.Is(err, game.ErrTierRunning):
		return "a tier is already running"
	case errors.Is(err, game.ErrGameScored):
		return "the game is already scored"
	case errors.Is(err, game.ErrInvalidTier):
		return "tier must be 1 to 4"
	}
	switch auction.Reason(err) {
	case "round_not_open":
		return "no round is open"
	case "bid_too_low":
		return err.Error()
	case "insufficient_funds":
		return "not enough funds"
	case "tier_cap_exceeded":
		return "your zoo holds the maximum for this tier"
	case "item_already_sold":
		return "you already own that animal"
	case "unknown_participant":
		return "unknown zoo"
	default:
		return err.Error()
	}
}

func stringOption(req Request, name string) string {
	if opt, ok := req.Options[name]; ok {
		return opt.StringValue()
	}
	return ""
}

func intOption(req Request, name string) int64 {
	if opt, ok := req.Options[name]; ok {
		return opt.IntValue()
	}
	return 0
}

func displayName(nick string, u *discordgo.User) string {
	switch {
	case nick != "":
		return nick
	case u.GlobalName != "":
		return u.GlobalName
	default:
		return u.Username
	}
}

func respond(s *discordgo.Session, i *discordgo.InteractionCreate, msg string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: msg,
		},
	})
}
