// Package templates holds the HTML components of the roster board.
package templates

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

const stylesheet = `body{font-family:system-ui,sans-serif;max-width:40rem;margin:2rem auto;padding:0 1rem}
.roster{border:1px solid #ccc;border-radius:6px;padding:0.5rem 1rem;margin-bottom:1rem}
.slot.empty{color:#888}.provenance{color:#666;font-size:0.9em}
nav a{margin-right:1rem}`

// Layout wraps body in the board's HTML page
func Layout(title string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if _, err := fmt.Fprintf(w, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>%s</title><style>%s</style></head><body>`,
			templ.EscapeString(title), stylesheet); err != nil {
			return err
		}
		if err := body.Render(ctx, w); err != nil {
			return err
		}
		_, err := io.WriteString(w, `</body></html>`)
		return err
	})
}

// ErrorPage renders a message for a failed board request
func ErrorPage(status int, message string) templ.Component {
	return Layout("Error", templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<h1>%d</h1><p class="error">%s</p><p><a href="/">Back to today's sessions</a></p>`,
			status, templ.EscapeString(message))
		return err
	}))
}
