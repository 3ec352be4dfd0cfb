package command

import (
	"context"

	"haven/internal/models"
	"haven/internal/observability"
	"haven/internal/service"
)

// Result is the outcome of dispatching one command. Events describes the
// realtime notifications the caller should publish.
type Result struct {
	Kind Kind `json:"kind"`

	// Channel the command resolved against. Nil for /list.
	Channel *models.Channel `json:"channel,omitempty"`

	// ChannelCreated is true when a join created the channel.
	ChannelCreated bool `json:"channel_created,omitempty"`
	// ChannelDeleted is true when the command removed the channel.
	ChannelDeleted bool `json:"channel_deleted,omitempty"`
	// ReplacedChannelID is the stale channel a join retired to free the
	// name. The caller publishes its deletion.
	ReplacedChannelID uint `json:"replaced_channel_id,omitempty"`

	// TargetID is the affected user for invite/kick/revoke/mute/unmute.
	TargetID uint `json:"target_id,omitempty"`
	// Banned is true when a kick resulted in a ban.
	Banned bool `json:"banned,omitempty"`
	// Unbanned is true when an invite reinstated a banned user.
	Unbanned bool `json:"unbanned,omitempty"`
	// Votes and Required report vote-kick progress when Banned is false.
	Votes    int `json:"votes,omitempty"`
	Required int `json:"required,omitempty"`
	// Muted is the new mute state for mute/unmute.
	Muted bool `json:"muted,omitempty"`

	// Channels is populated for /list.
	Channels []*models.Channel `json:"channels,omitempty"`
}

// Dispatcher routes parsed commands to the owning service.
type Dispatcher struct {
	registry   *service.ChannelRegistry
	moderation *service.ModerationEngine
}

// NewDispatcher returns a Dispatcher over the given services.
func NewDispatcher(registry *service.ChannelRegistry, moderation *service.ModerationEngine) *Dispatcher {
	return &Dispatcher{registry: registry, moderation: moderation}
}

// Execute runs a parsed command for a user. channelID is the channel the
// user issued the command from; it is ignored by /join and /list.
func (d *Dispatcher) Execute(ctx context.Context, userID, channelID uint, cmd *Command) (*Result, error) {
	res, err := d.execute(ctx, userID, channelID, cmd)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.CommandsTotal.WithLabelValues(string(cmd.Kind), outcome).Inc()

	return res, err
}

func (d *Dispatcher) execute(ctx context.Context, userID, channelID uint, cmd *Command) (*Result, error) {
	result := &Result{Kind: cmd.Kind}

	switch cmd.Kind {
	case KindJoin:
		channel, created, replacedID, err := d.registry.FindOrCreate(ctx, userID, cmd.ChannelName, cmd.Private)
		if err != nil {
			return nil, err
		}
		result.Channel = channel
		result.ChannelCreated = created
		result.ReplacedChannelID = replacedID
		return result, nil

	case KindQuit:
		channel, err := d.registry.Get(ctx, channelID)
		if err != nil {
			return nil, err
		}
		outcome, err := d.moderation.Leave(ctx, userID, channelID)
		if err != nil {
			return nil, err
		}
		result.Channel = channel
		result.ChannelDeleted = outcome.ChannelDeleted
		return result, nil

	case KindList:
		channels, err := d.registry.List(ctx)
		if err != nil {
			return nil, err
		}
		result.Channels = channels
		return result, nil

	case KindInvite:
		channel, err := d.registry.Get(ctx, channelID)
		if err != nil {
			return nil, err
		}
		outcome, err := d.moderation.Invite(ctx, userID, cmd.TargetUsername, channelID)
		if err != nil {
			return nil, err
		}
		result.Channel = channel
		result.TargetID = outcome.TargetID
		result.Unbanned = outcome.Unbanned
		return result, nil

	case KindKick:
		channel, err := d.registry.Get(ctx, channelID)
		if err != nil {
			return nil, err
		}
		outcome, err := d.moderation.Kick(ctx, userID, cmd.TargetUsername, channelID)
		if err != nil {
			return nil, err
		}
		result.Channel = channel
		result.TargetID = outcome.TargetID
		result.Banned = outcome.Banned
		result.Votes = outcome.Votes
		result.Required = outcome.Required
		return result, nil

	case KindRevoke:
		channel, err := d.registry.Get(ctx, channelID)
		if err != nil {
			return nil, err
		}
		outcome, err := d.moderation.Revoke(ctx, userID, cmd.TargetUsername, channelID)
		if err != nil {
			return nil, err
		}
		result.Channel = channel
		result.TargetID = outcome.TargetID
		return result, nil

	case KindMute, KindUnmute:
		channel, err := d.registry.Get(ctx, channelID)
		if err != nil {
			return nil, err
		}
		muted := cmd.Kind == KindMute
		targetID, err := d.moderation.SetMuted(ctx, userID, cmd.TargetUsername, channelID, muted)
		if err != nil {
			return nil, err
		}
		result.Channel = channel
		result.TargetID = targetID
		result.Muted = muted
		return result, nil

	default:
		return nil, models.NewValidationError("Unknown command")
	}
}
