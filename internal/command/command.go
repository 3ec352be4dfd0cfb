// Package command parses slash commands and decides who may run them.
package command

import (
	"fmt"
	"strings"

	"haven/internal/models"
)

// Kind identifies a slash command.
type Kind string

const (
	KindJoin   Kind = "join"
	KindInvite Kind = "invite"
	KindKick   Kind = "kick"
	KindRevoke Kind = "revoke"
	KindQuit   Kind = "quit"
	KindList   Kind = "list"
	KindMute   Kind = "mute"
	KindUnmute Kind = "unmute"
)

// Command is a parsed slash command.
type Command struct {
	Kind Kind

	// ChannelName is set for join.
	ChannelName string
	// Private is set when join requested a private channel.
	Private bool
	// TargetUsername is set for invite, kick, revoke, mute, and unmute.
	TargetUsername string
}

// Context carries the caller's standing in the channel a command targets.
type Context struct {
	Visibility models.ChannelVisibility
	Role       models.MembershipRole
	IsOwner    bool
}

// ErrNotCommand is returned by Parse for input that is not a slash command.
var ErrNotCommand = fmt.Errorf("not a command")

// Parse interprets a chat input line as a slash command. Plain text returns
// ErrNotCommand so the caller can treat it as a message.
func Parse(input string) (*Command, error) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") {
		return nil, ErrNotCommand
	}

	fields := strings.Fields(input)
	verb := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	args := fields[1:]

	switch verb {
	case "join":
		if len(args) < 1 {
			return nil, fmt.Errorf("usage: /join <channel> [private]")
		}
		cmd := &Command{Kind: KindJoin, ChannelName: args[0]}
		if len(args) > 1 {
			if strings.EqualFold(args[1], "private") {
				cmd.Private = true
			} else {
				return nil, fmt.Errorf("usage: /join <channel> [private]")
			}
		}
		return cmd, nil
	case "invite":
		return targetCommand(KindInvite, "invite", args)
	case "kick":
		return targetCommand(KindKick, "kick", args)
	case "revoke":
		return targetCommand(KindRevoke, "revoke", args)
	case "mute":
		return targetCommand(KindMute, "mute", args)
	case "unmute":
		return targetCommand(KindUnmute, "unmute", args)
	case "quit", "cancel":
		if len(args) != 0 {
			return nil, fmt.Errorf("usage: /quit")
		}
		return &Command{Kind: KindQuit}, nil
	case "list":
		if len(args) != 0 {
			return nil, fmt.Errorf("usage: /list")
		}
		return &Command{Kind: KindList}, nil
	default:
		return nil, fmt.Errorf("unknown command: /%s", verb)
	}
}

func targetCommand(kind Kind, verb string, args []string) (*Command, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("usage: /%s <username>", verb)
	}
	return &Command{Kind: kind, TargetUsername: args[0]}, nil
}

// Allowed reports whether a member with the given standing may run the
// command. It encodes permissions only; the services re-check everything
// under a transaction, so this is a fast pre-filter for dispatch.
func Allowed(kind Kind, ctx Context) bool {
	mod := ctx.IsOwner || ctx.Role == models.MembershipRoleAdmin

	switch kind {
	case KindJoin, KindQuit, KindList:
		return true
	case KindInvite:
		// Public channels let any member invite; private channels
		// restrict invites to moderators.
		return ctx.Visibility == models.ChannelVisibilityPublic || mod
	case KindKick:
		// Everyone can initiate a kick in public channels (members get
		// a vote, moderators an immediate ban). Private kicks are
		// moderator-only.
		return ctx.Visibility == models.ChannelVisibilityPublic || mod
	case KindRevoke:
		return ctx.Visibility == models.ChannelVisibilityPrivate && mod
	case KindMute, KindUnmute:
		return mod
	default:
		return false
	}
}
