package orchestrator

import (
	"fmt"
	"strings"
	"time"
)

var languageNames = map[string]string{
	"en":  "English",
	"fr":  "French",
	"pcm": "Nigerian Pidgin",
}

const basePrompt = `You are the operations assistant of a logistics company, talking to its staff over WhatsApp.
You manage routes, drivers, vehicles, clients and invoices by calling the tools you are given.

Rules:
- Only state facts that come from tool results. Never invent ids, names or amounts.
- Amounts are in naira. Show them the way the tool's "display" field does.
- When a tool reports not_found with candidates, ask the user which one they meant.
- When a tool reports any other error, explain it plainly and suggest what to do next.
- Ask for missing required details instead of guessing them.
- Confirm what changed after every successful create, update or delete.
- Keep replies short and readable on a phone. Use plain text, no markdown tables.`

func systemPrompt(lang, summary string, now time.Time) string {
	name, ok := languageNames[lang]
	if !ok {
		name = languageNames["en"]
	}

	var b strings.Builder
	b.WriteString(basePrompt)
	fmt.Fprintf(&b, "\n\nToday is %s. Reply in %s.", now.Format("Monday 2 January 2006"), name)
	if s := strings.TrimSpace(summary); s != "" {
		b.WriteString("\n\nEarlier in this conversation:\n")
		b.WriteString(s)
	}
	return b.String()
}

const summaryPrompt = `Summarise the conversation below for a logistics assistant that will continue it later.
Keep names, ids, amounts, dates and any open questions. Drop greetings and small talk.
Write at most 8 short lines of plain text.`
