// Package roster renders a session's registrations into a display view.
package roster

import (
	"fmt"
	"strings"

	"github.com/mcoot/rosterbot/internal/model"
)

const (
	// DisplayDateLayout is how session dates are shown in roster messages
	DisplayDateLayout = "02 January, Monday"

	emptySlotMarker = "(open)"
	noReserveMarker = "(none)"
)

var keycaps = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

// Slot is one numbered place on the main list
type Slot struct {
	Number       int    `json:"number"`
	Name         string `json:"name,omitempty"`
	Empty        bool   `json:"empty"`
	RegisteredBy string `json:"registered_by,omitempty"`
}

// ReserveEntry is one place on the reserve list
type ReserveEntry struct {
	Name         string `json:"name"`
	RegisteredBy string `json:"registered_by,omitempty"`
}

// View is the rendered state of one session's roster.
//
// len(Slots) == Capacity whenever the main list holds at most Capacity
// players, which the registration engine guarantees.
type View struct {
	SessionID model.SessionID `json:"session_id"`
	Date      string          `json:"date"`
	Start     model.ClockTime `json:"start"`
	End       model.ClockTime `json:"end"`
	Capacity  int             `json:"capacity"`
	Slots     []Slot          `json:"slots"`
	Reserve   []ReserveEntry  `json:"reserve"`
}

// Render builds the view of a session from its main and reserve lists,
// both already in registration order.
//
// The view has one slot per unit of capacity. A main list longer than the
// capacity is never truncated; the extra entries get further numbered slots.
func Render(session *model.Session, main, reserve []model.RosterEntry) View {
	slotCount := max(session.Capacity, len(main))
	view := View{
		SessionID: session.ID,
		Date:      model.FormatDate(session.Date),
		Start:     session.Start,
		End:       session.End,
		Capacity:  session.Capacity,
		Slots:     make([]Slot, 0, slotCount),
		Reserve:   make([]ReserveEntry, 0, len(reserve)),
	}

	for i := range slotCount {
		slot := Slot{Number: i + 1, Empty: true}
		if i < len(main) {
			slot.Empty = false
			slot.Name = main[i].Player.FullName
			slot.RegisteredBy = registeredBy(&main[i])
		}
		view.Slots = append(view.Slots, slot)
	}

	for i := range reserve {
		view.Reserve = append(view.Reserve, ReserveEntry{
			Name:         reserve[i].Player.FullName,
			RegisteredBy: registeredBy(&reserve[i]),
		})
	}
	return view
}

func registeredBy(entry *model.RosterEntry) string {
	if !entry.Registration.RegisteredBySomeoneElse(&entry.Player) {
		return ""
	}
	if name := entry.Registration.Provenance.ActorName; name != "" {
		return name
	}
	return string(entry.Registration.Provenance.ActorID)
}

// Filled returns the number of occupied main-list slots
func (v View) Filled() int {
	n := 0
	for _, s := range v.Slots {
		if !s.Empty {
			n++
		}
	}
	return n
}

// Text renders the view as the roster message body
func (v View) Text() string {
	var b strings.Builder

	fmt.Fprintf(&b, "📅 Date: %s\n\n", v.DisplayDate())
	fmt.Fprintf(&b, "⏰ Session: %s – %s\n", v.Start, v.End)
	fmt.Fprintf(&b, "👥 Max Players: %d\n", v.Capacity)
	b.WriteString("Players:\n")
	for _, slot := range v.Slots {
		b.WriteString(slotLabel(slot.Number))
		b.WriteString(" ")
		if slot.Empty {
			b.WriteString(emptySlotMarker)
		} else {
			b.WriteString(withProvenance(slot.Name, slot.RegisteredBy))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nReserve:\n")
	if len(v.Reserve) == 0 {
		b.WriteString(noReserveMarker + "\n")
	}
	for _, entry := range v.Reserve {
		b.WriteString("• ")
		b.WriteString(withProvenance(entry.Name, entry.RegisteredBy))
		b.WriteString("\n")
	}
	return b.String()
}

// DisplayDate is the session date as shown in roster messages
func (v View) DisplayDate() string {
	d, err := model.ParseDate(v.Date)
	if err != nil {
		return v.Date
	}
	return d.Format(DisplayDateLayout)
}

func slotLabel(n int) string {
	if n >= 1 && n <= len(keycaps) {
		return keycaps[n-1]
	}
	return fmt.Sprintf("%d.", n)
}

func withProvenance(name, registeredBy string) string {
	if registeredBy == "" {
		return name
	}
	return fmt.Sprintf("%s (registered by %s)", name, registeredBy)
}

// PromotionText is the direct message sent to a player moved off the reserve list
func PromotionText(session *model.Session) string {
	return fmt.Sprintf("You've been moved from reserve to main list! Session on %s, %s – %s.",
		session.Date.Format(DisplayDateLayout), session.Start, session.End)
}
