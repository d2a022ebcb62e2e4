package bot

import (
	"fmt"
	"sync"
	"sync/atomic"

	"herald/bot/common"
	"herald/bot/features/announce"
	"herald/bot/features/giveaways"
	"herald/bot/features/reactroles"
	"herald/bot/features/verification"
	"herald/infrastructure/observability"
	"herald/listeners"
	"herald/service"

	"github.com/bwmarrin/discordgo"
	log "github.com/sirupsen/logrus"
)

// Event kinds recorded per handled gateway event
const (
	EventKindCommand   = observability.EventTypeCommand
	EventKindReaction  = observability.EventTypeReaction
	EventKindComponent = observability.EventTypeComponent
	EventKindMessage   = observability.EventTypeMessage
)

const startingUpReply = "Still starting up, please try again in a moment."

// Config holds bot configuration
type Config struct {
	Token        string
	GuildID      string
	StaffRoleIDs []int64
}

// Services are the campaign services the bot routes commands and events to
type Services struct {
	Giveaways    service.GiveawayService
	ReactRoles   service.ReactRoleService
	Verification service.VerificationService
	Sticky       service.StickyService
	AutoReact    service.AutoReactService
	Announce     service.AnnounceService
	Reconciler   reactroles.Reattacher
}

// EventRecorder counts handled gateway events
type EventRecorder interface {
	RecordDiscordEvent(eventType string)
}

// Bot manages the Discord session and all feature modules
type Bot struct {
	// Core components
	config    Config
	session   *discordgo.Session
	registry  *listeners.Registry
	sticky    service.StickyService
	autoReact service.AutoReactService
	metrics   EventRecorder

	// Feature modules
	giveaways    *giveaways.Feature
	reactRoles   *reactroles.Feature
	verification *verification.Feature
	announce     *announce.Feature

	// ready is set once reconciliation finished and commands are registered
	ready atomic.Bool

	// knownBots holds IDs of automated users seen on earlier events
	knownBots sync.Map
}

// NewSession creates a Discord session with the intents herald needs
func NewSession(token string) (*discordgo.Session, error) {
	dg, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("error creating discord session: %w", err)
	}
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMessageReactions
	return dg, nil
}

// New creates a bot on an unopened session and registers its handlers
func New(config Config, session *discordgo.Session, registry *listeners.Registry, services Services, metrics EventRecorder) *Bot {
	bot := &Bot{
		config:    config,
		session:   session,
		registry:  registry,
		sticky:    services.Sticky,
		autoReact: services.AutoReact,
		metrics:   metrics,
	}

	// Create feature modules
	bot.giveaways = giveaways.NewFeature(services.Giveaways, config.StaffRoleIDs)
	bot.reactRoles = reactroles.NewFeature(services.ReactRoles, services.Reconciler, config.StaffRoleIDs)
	bot.verification = verification.NewFeature(services.Verification, config.StaffRoleIDs)
	bot.announce = announce.NewFeature(services.Announce, config.StaffRoleIDs)

	// Register handlers
	session.AddHandler(bot.handleInteraction)
	session.AddHandler(bot.handleReactionAdd)
	session.AddHandler(bot.handleReactionRemove)
	session.AddHandler(bot.handleMessageCreate)
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		log.WithFields(log.Fields{
			"user":   r.User.Username,
			"guilds": len(r.Guilds),
		}).Info("Connected to Discord")
	})

	return bot
}

// Open connects to the gateway. Commands are rejected until MarkReady.
func (b *Bot) Open() error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("error opening connection: %w", err)
	}
	return nil
}

// MarkReady registers slash commands and starts serving them
func (b *Bot) MarkReady() error {
	if err := b.registerCommands(); err != nil {
		return fmt.Errorf("error registering commands: %w", err)
	}
	b.ready.Store(true)
	log.Info("Commands are open")
	return nil
}

// Ready reports whether commands are being served
func (b *Bot) Ready() bool {
	return b.ready.Load()
}

// Close disconnects from the gateway
func (b *Bot) Close() error {
	b.ready.Store(false)
	return b.session.Close()
}

func (b *Bot) recordEvent(kind string) {
	if b.metrics != nil {
		b.metrics.RecordDiscordEvent(kind)
	}
}

func (b *Bot) handleInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		if !b.Ready() {
			common.RespondWithError(s, i, startingUpReply)
			return
		}
		b.recordEvent(EventKindCommand)
		b.handleCommand(s, i)

	case discordgo.InteractionMessageComponent:
		if !b.Ready() {
			common.RespondWithError(s, i, startingUpReply)
			return
		}
		b.handleComponent(s, i)
	}
}

func (b *Bot) handleCommand(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.ApplicationCommandData().Name {
	case "giveaway":
		b.giveaways.HandleCommand(s, i)
	case "reactrole":
		b.reactRoles.HandleCommand(s, i)
	case "verification":
		b.verification.HandleCommand(s, i)
	case "announce":
		b.announce.HandleCommand(s, i)
	default:
		log.WithField("command", i.ApplicationCommandData().Name).Warn("Unknown command")
	}
}
