// Package chat describes the chat-platform capabilities the bot depends on.
// The ticket engine only talks to Platform; internal/chat/discord provides
// the production implementation.
package chat

import (
	"context"
	"time"
)

// Permission is a set of channel permissions granted or denied by an overwrite.
type Permission uint8

const (
	PermView Permission = 1 << iota
	PermSend
	PermReadHistory
	PermManageChannels
)

// Has reports whether every bit of q is set in p.
func (p Permission) Has(q Permission) bool { return p&q == q }

type OverwriteKind uint8

const (
	OverwriteRole OverwriteKind = iota
	OverwriteMember
)

// Overwrite grants or denies permissions on a channel to one role or member.
type Overwrite struct {
	ID    string
	Kind  OverwriteKind
	Allow Permission
	Deny  Permission
}

// ChannelSpec describes a text channel to create inside the guild.
type ChannelSpec struct {
	Name       string
	ParentID   string
	Overwrites []Overwrite
}

type Channel struct {
	ID   string
	Name string
}

type ButtonStyle uint8

const (
	ButtonPrimary ButtonStyle = iota + 1
	ButtonSecondary
	ButtonSuccess
	ButtonDanger
)

type Button struct {
	CustomID string
	Label    string
	Style    ButtonStyle
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Color       int
	Title       string
	Description string
	Fields      []EmbedField
	Footer      string
	Timestamp   time.Time
}

// Message is a rich message: text, embeds and one row of buttons.
type Message struct {
	Content string
	Embeds  []Embed
	Buttons []Button
}

// Text builds a plain text message.
func Text(content string) Message { return Message{Content: content} }

type Member struct {
	UserID   string
	Username string
	RoleIDs  []string
}

// HasRole reports whether the member holds roleID.
func (m Member) HasRole(roleID string) bool {
	for _, r := range m.RoleIDs {
		if r == roleID {
			return true
		}
	}
	return false
}

// Platform is the capability set of the chat guild. Implementations return
// errs.ErrGuildUnavailable, errs.ErrChannelNotFound, errs.ErrMemberNotFound
// or errs.ErrUserNotFound (wrapped) for the matching conditions.
type Platform interface {
	// GuildID returns the identifier of the configured guild; it doubles as
	// the id of its default (@everyone) role.
	GuildID() string
	EnsureCategory(ctx context.Context, name string) (string, error)
	CreateChannel(ctx context.Context, spec ChannelSpec) (Channel, error)
	// HasChannel is a cache lookup; it never hits the network.
	HasChannel(channelID string) bool
	SendMessage(ctx context.Context, channelID string, msg Message) error
	SendDirectMessage(ctx context.Context, userID string, msg Message) error
	FetchMember(ctx context.Context, userID string) (Member, error)
	AddRole(ctx context.Context, userID, roleID string) error
	DeleteChannel(ctx context.Context, channelID, reason string) error
}

// Reply is an answer to an interaction. Ephemeral replies are only visible
// to the acting user.
type Reply struct {
	Content   string
	Buttons   []Button
	Ephemeral bool
}

// Responder answers one interaction. Reply and Defer are mutually
// exclusive first responses; Update rewrites the message that carried the
// clicked button; EditReply completes a deferred reply.
type Responder interface {
	Reply(ctx context.Context, r Reply) error
	Update(ctx context.Context, r Reply) error
	Defer(ctx context.Context, ephemeral bool) error
	EditReply(ctx context.Context, r Reply) error
}

// Interaction is a button click delivered by the platform.
type Interaction struct {
	ChannelID string
	UserID    string
	CustomID  string
	Respond   Responder
}
