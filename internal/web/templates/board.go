package templates

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/mcoot/rosterbot/internal/services/roster"
)

// BoardData is the content of one date's board page
type BoardData struct {
	Date     string
	Previous string
	Next     string
	Rosters  []roster.View
}

// Board lists every session of a date with its main and reserve lists
func Board(data BoardData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<h1>Sessions on <span class="date">%s</span></h1>`, templ.EscapeString(data.Date))
		fmt.Fprintf(&b, `<nav><a class="prev" href="/?date=%s">&larr; %s</a><a class="next" href="/?date=%s">%s &rarr;</a></nav>`,
			data.Previous, data.Previous, data.Next, data.Next)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}

		if len(data.Rosters) == 0 {
			_, err := io.WriteString(w, `<p class="no-sessions">No sessions scheduled.</p>`)
			return err
		}
		for _, view := range data.Rosters {
			if err := RosterCard(view).Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
	return Layout("Sessions "+data.Date, body)
}

// SessionPage shows a single session's roster
func SessionPage(view roster.View) templ.Component {
	return Layout(fmt.Sprintf("Session %s %s", view.Date, view.Start), RosterCard(view))
}

// RosterCard renders one session. Slot numbering and the reserve section
// follow the chat message layout.
func RosterCard(view roster.View) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		fmt.Fprintf(&b, `<section class="roster" id="session-%d">`, view.SessionID)
		fmt.Fprintf(&b, `<h2><a href="/sessions/%d">%s &ndash; %s</a></h2>`, view.SessionID, view.Start, view.End)
		fmt.Fprintf(&b, `<p class="meta">%s &middot; <span class="filled">%d</span>/<span class="capacity">%d</span> places</p>`,
			templ.EscapeString(view.DisplayDate()), view.Filled(), view.Capacity)

		b.WriteString(`<ol class="main">`)
		for _, slot := range view.Slots {
			if slot.Empty {
				b.WriteString(`<li class="slot empty">open</li>`)
				continue
			}
			fmt.Fprintf(&b, `<li class="slot"><span class="name">%s</span>%s</li>`,
				templ.EscapeString(slot.Name), provenance(slot.RegisteredBy))
		}
		b.WriteString(`</ol><h3>Reserve</h3><ul class="reserve">`)
		for _, entry := range view.Reserve {
			fmt.Fprintf(&b, `<li><span class="name">%s</span>%s</li>`,
				templ.EscapeString(entry.Name), provenance(entry.RegisteredBy))
		}
		b.WriteString(`</ul></section>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func provenance(registeredBy string) string {
	if registeredBy == "" {
		return ""
	}
	return ` <span class="provenance">(registered by ` + templ.EscapeString(registeredBy) + `)</span>`
}
