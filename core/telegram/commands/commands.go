package commands

import (
	tele "gopkg.in/telebot.v4"
)

// Command describes a slash command: its handler, the line shown in the
// Telegram command menu and access flags.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands run only for the configured admin and stay out of the menu.
	AdminOnly bool
	// Hidden commands work but stay out of the menu.
	Hidden  bool
	Aliases []string
}

// Visible reports whether the command belongs in the public command menu.
func (c Command) Visible() bool {
	return !c.Hidden && !c.AdminOnly
}
