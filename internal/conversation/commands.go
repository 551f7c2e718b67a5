package conversation

import (
	"strings"

	"fleetdesk_backend/internal/wizards"
)

// flowCommands maps command phrases and their menu numbers to flows.
var flowCommands = map[string]string{
	"add client":      wizards.Client,
	"new client":      wizards.Client,
	"1":               wizards.Client,
	"new invoice":     wizards.Invoice,
	"create invoice":  wizards.Invoice,
	"2":               wizards.Invoice,
	"invoice profile": wizards.InvoiceProfile,
	"3":               wizards.InvoiceProfile,
	"add driver":      wizards.Driver,
	"new driver":      wizards.Driver,
	"4":               wizards.Driver,
	"add vehicle":     wizards.Vehicle,
	"new vehicle":     wizards.Vehicle,
	"5":               wizards.Vehicle,
}

type commandKind int

const (
	commandNone commandKind = iota
	commandMenu
	commandCancel
	commandLanguage
	commandFlow
	commandLink
)

type command struct {
	kind commandKind
	flow string
	arg  string
}

func normalizeCommand(text string) string {
	s := strings.ToLower(strings.Join(strings.Fields(text), " "))
	return strings.Trim(s, ".!?")
}

// parseCommand recognises the fixed command set. Anything else is free text.
func parseCommand(text string) command {
	s := normalizeCommand(text)
	switch s {
	case "menu", "help", "start":
		return command{kind: commandMenu}
	case "cancel", "stop":
		return command{kind: commandCancel}
	case "link", "link account":
		return command{kind: commandLink}
	}
	if rest, ok := strings.CutPrefix(s, "language "); ok {
		return command{kind: commandLanguage, arg: strings.TrimSpace(rest)}
	}
	if id, ok := flowCommands[s]; ok {
		return command{kind: commandFlow, flow: id}
	}
	return command{kind: commandNone}
}
