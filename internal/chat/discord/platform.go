// Package discord implements chat.Platform on a discordgo gateway session.
package discord

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/psds-microservice/ticket-bot/internal/chat"
	"github.com/psds-microservice/ticket-bot/internal/errs"
	"go.uber.org/zap"
)

const (
	intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsDirectMessages

	// interactionTimeout bounds the work triggered by one button or command.
	interactionTimeout = 30 * time.Second
	// guildLoadTimeout bounds the wait for the guild to reach the state cache.
	guildLoadTimeout = 30 * time.Second

	CommandCheckMember = "check-member"
	optionUserID       = "user_id"
)

// Handler receives the guild input the bot reacts to.
type Handler interface {
	HandleButton(ctx context.Context, in chat.Interaction)
	HandleCheckMember(ctx context.Context, userID string, respond chat.Responder)
	HandleChannelMessage(channelID, authorID, content string, fromBot bool)
}

type Platform struct {
	session *discordgo.Session
	guildID string
	log     *zap.Logger

	handler   Handler
	ready     chan struct{}
	readyOnce sync.Once

	// guildLoaded closes once GUILD_CREATE filled the state cache, so that
	// HasChannel answers for channels that existed before startup.
	guildLoaded chan struct{}
	guildOnce   sync.Once
}

var _ chat.Platform = (*Platform)(nil)

func New(token, guildID string, log *zap.Logger) (*Platform, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	s.Identify.Intents = intents
	return &Platform{
		session: s,
		guildID: guildID,
		log:     log.Named("discord"),
		ready:   make(chan struct{}),

		guildLoaded: make(chan struct{}),
	}, nil
}

// SetHandler must be called before Open.
func (p *Platform) SetHandler(h Handler) { p.handler = h }

// Open connects the gateway, waits for the ready event, checks the guild and
// registers the slash commands.
func (p *Platform) Open(ctx context.Context) error {
	p.session.AddHandler(p.onReady)
	p.session.AddHandler(p.onGuildCreate)
	p.session.AddHandler(p.onInteraction)
	p.session.AddHandler(p.onMessageCreate)
	p.session.AddHandler(p.onMemberAdd)
	p.session.AddHandler(p.onMemberRemove)

	if err := p.session.Open(); err != nil {
		return fmt.Errorf("discord gateway: %w", err)
	}
	select {
	case <-p.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	guild, err := p.session.Guild(p.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return classify("resolve guild "+p.guildID, err, errs.ErrGuildUnavailable)
	}
	p.log.Info("guild resolved", zap.String("guild", guild.Name), zap.String("guild_id", guild.ID))

	select {
	case <-p.guildLoaded:
	case <-time.After(guildLoadTimeout):
		return fmt.Errorf("guild %s not delivered by the gateway: %w", p.guildID, errs.ErrGuildUnavailable)
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := p.registerCommands(ctx); err != nil {
		// The button flows work without slash commands.
		p.log.Error("register slash commands", zap.Error(err))
	}
	return nil
}

func (p *Platform) Close() error {
	return p.session.Close()
}

func (p *Platform) registerCommands(ctx context.Context) error {
	cmd := &discordgo.ApplicationCommand{
		Name:        CommandCheckMember,
		Description: "Vérifie si un utilisateur est sur le serveur",
		Options: []*discordgo.ApplicationCommandOption{{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        optionUserID,
			Description: "ID Discord de l'utilisateur",
			Required:    true,
		}},
	}
	appID := p.session.State.User.ID
	if _, err := p.session.ApplicationCommandCreate(appID, p.guildID, cmd, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("create /%s: %w", cmd.Name, err)
	}
	p.log.Info("slash command registered", zap.String("command", cmd.Name))
	return nil
}

func (p *Platform) GuildID() string { return p.guildID }

// EnsureCategory returns the id of the category named name, creating it when
// the guild has none.
func (p *Platform) EnsureCategory(ctx context.Context, name string) (string, error) {
	channels, err := p.session.GuildChannels(p.guildID, discordgo.WithContext(ctx))
	if err != nil {
		return "", classify("list guild channels", err, errs.ErrGuildUnavailable)
	}
	for _, ch := range channels {
		if ch.Type == discordgo.ChannelTypeGuildCategory && ch.Name == name {
			return ch.ID, nil
		}
	}
	ch, err := p.session.GuildChannelCreate(p.guildID, name, discordgo.ChannelTypeGuildCategory, discordgo.WithContext(ctx))
	if err != nil {
		return "", classify("create category "+name, err, nil)
	}
	p.log.Info("ticket category created", zap.String("category", name))
	return ch.ID, nil
}

func (p *Platform) CreateChannel(ctx context.Context, spec chat.ChannelSpec) (chat.Channel, error) {
	ch, err := p.session.GuildChannelCreateComplex(p.guildID, discordgo.GuildChannelCreateData{
		Name:                 spec.Name,
		Type:                 discordgo.ChannelTypeGuildText,
		ParentID:             spec.ParentID,
		PermissionOverwrites: overwrites(spec.Overwrites),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return chat.Channel{}, classify("create channel "+spec.Name, err, nil)
	}
	// The gateway CHANNEL_CREATE may lag behind the next poll tick.
	if err := p.session.State.ChannelAdd(ch); err != nil {
		p.log.Debug("cache created channel", zap.String("channel_id", ch.ID), zap.Error(err))
	}
	return chat.Channel{ID: ch.ID, Name: ch.Name}, nil
}

// HasChannel consults the gateway state cache only.
func (p *Platform) HasChannel(channelID string) bool {
	if channelID == "" {
		return false
	}
	_, err := p.session.State.Channel(channelID)
	return err == nil
}

func (p *Platform) SendMessage(ctx context.Context, channelID string, msg chat.Message) error {
	_, err := p.session.ChannelMessageSendComplex(channelID, messageSend(msg), discordgo.WithContext(ctx))
	return classify("send message to "+channelID, err, errs.ErrChannelNotFound)
}

func (p *Platform) SendDirectMessage(ctx context.Context, userID string, msg chat.Message) error {
	dm, err := p.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		return classify("open dm with "+userID, err, errs.ErrUserNotFound)
	}
	_, err = p.session.ChannelMessageSendComplex(dm.ID, messageSend(msg), discordgo.WithContext(ctx))
	return classify("send dm to "+userID, err, nil)
}

func (p *Platform) FetchMember(ctx context.Context, userID string) (chat.Member, error) {
	m, err := p.session.GuildMember(p.guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		return chat.Member{}, classify("fetch member "+userID, err, errs.ErrMemberNotFound)
	}
	out := chat.Member{UserID: userID, RoleIDs: m.Roles}
	if m.User != nil {
		out.Username = m.User.Username
	}
	return out, nil
}

func (p *Platform) AddRole(ctx context.Context, userID, roleID string) error {
	err := p.session.GuildMemberRoleAdd(p.guildID, userID, roleID, discordgo.WithContext(ctx))
	return classify("add role "+roleID+" to "+userID, err, errs.ErrMemberNotFound)
}

func (p *Platform) DeleteChannel(ctx context.Context, channelID, reason string) error {
	_, err := p.session.ChannelDelete(channelID, discordgo.WithContext(ctx), discordgo.WithAuditLogReason(reason))
	return classify("delete channel "+channelID, err, errs.ErrChannelNotFound)
}

func (p *Platform) onReady(s *discordgo.Session, r *discordgo.Ready) {
	p.log.Info("bot connected", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
	p.readyOnce.Do(func() { close(p.ready) })
}

func (p *Platform) onGuildCreate(_ *discordgo.Session, g *discordgo.GuildCreate) {
	if g.ID != p.guildID {
		return
	}
	p.log.Info("guild loaded", zap.Int("channels", len(g.Channels)), zap.Int("members", g.MemberCount))
	p.guildOnce.Do(func() { close(p.guildLoaded) })
}

func (p *Platform) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if p.handler == nil || (i.GuildID != "" && i.GuildID != p.guildID) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), interactionTimeout)
	defer cancel()
	respond := &responder{session: s, interaction: i.Interaction}

	switch i.Type {
	case discordgo.InteractionMessageComponent:
		p.handler.HandleButton(ctx, chat.Interaction{
			ChannelID: i.ChannelID,
			UserID:    interactionUser(i.Interaction),
			CustomID:  i.MessageComponentData().CustomID,
			Respond:   respond,
		})
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		if data.Name != CommandCheckMember {
			return
		}
		var userID string
		for _, opt := range data.Options {
			if opt.Name == optionUserID {
				userID = opt.StringValue()
			}
		}
		p.handler.HandleCheckMember(ctx, userID, respond)
	}
}

func (p *Platform) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	if p.handler == nil || m.Author == nil {
		return
	}
	p.handler.HandleChannelMessage(m.ChannelID, m.Author.ID, m.Content, m.Author.Bot)
}

func (p *Platform) onMemberAdd(_ *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.GuildID != p.guildID || m.User == nil {
		return
	}
	p.log.Info("member joined", zap.String("user_id", m.User.ID), zap.String("username", m.User.Username))
}

func (p *Platform) onMemberRemove(_ *discordgo.Session, m *discordgo.GuildMemberRemove) {
	if m.GuildID != p.guildID || m.User == nil {
		return
	}
	p.log.Info("member left", zap.String("user_id", m.User.ID), zap.String("username", m.User.Username))
}

func interactionUser(i *discordgo.Interaction) string {
	switch {
	case i.Member != nil && i.Member.User != nil:
		return i.Member.User.ID
	case i.User != nil:
		return i.User.ID
	default:
		return ""
	}
}

// responder answers one interaction.
type responder struct {
	session     *discordgo.Session
	interaction *discordgo.Interaction
}

func flags(r chat.Reply) discordgo.MessageFlags {
	if r.Ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

func (r *responder) Reply(ctx context.Context, rep chat.Reply) error {
	return r.respond(ctx, discordgo.InteractionResponseChannelMessageWithSource, &discordgo.InteractionResponseData{
		Content:    rep.Content,
		Components: components(rep.Buttons),
		Flags:      flags(rep),
	})
}

// Update rewrites the message carrying the clicked button.
func (r *responder) Update(ctx context.Context, rep chat.Reply) error {
	return r.respond(ctx, discordgo.InteractionResponseUpdateMessage, &discordgo.InteractionResponseData{
		Content:    rep.Content,
		Components: components(rep.Buttons),
	})
}

func (r *responder) Defer(ctx context.Context, ephemeral bool) error {
	return r.respond(ctx, discordgo.InteractionResponseDeferredChannelMessageWithSource, &discordgo.InteractionResponseData{
		Flags: flags(chat.Reply{Ephemeral: ephemeral}),
	})
}

func (r *responder) EditReply(ctx context.Context, rep chat.Reply) error {
	content := rep.Content
	comps := components(rep.Buttons)
	_, err := r.session.InteractionResponseEdit(r.interaction, &discordgo.WebhookEdit{
		Content:    &content,
		Components: &comps,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("edit interaction reply: %w", err)
	}
	return nil
}

func (r *responder) respond(ctx context.Context, typ discordgo.InteractionResponseType, data *discordgo.InteractionResponseData) error {
	err := r.session.InteractionRespond(r.interaction, &discordgo.InteractionResponse{Type: typ, Data: data}, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("respond to interaction: %w", err)
	}
	return nil
}
