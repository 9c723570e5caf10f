package roster

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rosterbot/internal/model"
)

func testSession(capacity int) *model.Session {
	return &model.Session{
		ID:       7,
		Date:     time.Date(2026, time.June, 2, 0, 0, 0, 0, time.UTC),
		Start:    model.NewClockTime(14, 0),
		End:      model.NewClockTime(16, 0),
		Capacity: capacity,
	}
}

func entry(id int64, name string, ext model.ExternalID, prov *model.Provenance) model.RosterEntry {
	return model.RosterEntry{
		Player: model.Player{ID: model.PlayerID(id), FullName: name, ExternalID: ext},
		Registration: model.Registration{
			ID:         model.RegistrationID(id),
			PlayerID:   model.PlayerID(id),
			Provenance: prov,
		},
	}
}

func TestRenderFillsSlotsInOrderWithEmptyMarkers(t *testing.T) {
	main := []model.RosterEntry{entry(1, "Alice", "tg-1", nil), entry(2, "Bob", "tg-2", nil)}
	view := Render(testSession(4), main, nil)

	require.Len(t, view.Slots, 4)
	assert.Equal(t, Slot{Number: 1, Name: "Alice"}, view.Slots[0])
	assert.Equal(t, Slot{Number: 2, Name: "Bob"}, view.Slots[1])
	assert.Equal(t, Slot{Number: 3, Empty: true}, view.Slots[2])
	assert.Equal(t, Slot{Number: 4, Empty: true}, view.Slots[3])
	assert.Equal(t, 2, view.Filled())
	assert.NotNil(t, view.Reserve)
	assert.Empty(t, view.Reserve)
}

func TestRenderSlotCountMatchesCapacityAtEveryFill(t *testing.T) {
	const capacity = 6
	var main []model.RosterEntry
	for filled := 0; filled <= capacity; filled++ {
		view := Render(testSession(capacity), main, nil)
		assert.Len(t, view.Slots, capacity, "filled=%d", filled)
		assert.Equal(t, filled, view.Filled())
		main = append(main, entry(int64(filled+1), fmt.Sprintf("P%d", filled+1), "", nil))
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	main := []model.RosterEntry{entry(1, "Alice", "tg-1", nil)}
	reserve := []model.RosterEntry{entry(2, "Bob", "tg-2", nil)}

	first := Render(testSession(1), main, reserve)
	second := Render(testSession(1), main, reserve)

	assert.Equal(t, first, second)
	assert.Equal(t, first.Text(), second.Text())
}

func TestRenderProvenanceOnlyForOtherActors(t *testing.T) {
	admin := &model.Provenance{ActorID: "admin-1", ActorName: "Coach"}
	self := &model.Provenance{ActorID: "tg-1", ActorName: "Alice"}
	main := []model.RosterEntry{
		entry(1, "Alice", "tg-1", self),
		entry(2, "Ivan", "", admin),
	}
	reserve := []model.RosterEntry{entry(3, "Elena", "", &model.Provenance{ActorID: "admin-2"})}

	view := Render(testSession(2), main, reserve)

	assert.Empty(t, view.Slots[0].RegisteredBy)
	assert.Equal(t, "Coach", view.Slots[1].RegisteredBy)
	assert.Equal(t, "admin-2", view.Reserve[0].RegisteredBy)
}

func TestRenderNeverDropsOverflowingMainEntries(t *testing.T) {
	main := []model.RosterEntry{entry(1, "A", "", nil), entry(2, "B", "", nil)}
	view := Render(testSession(1), main, nil)

	require.Len(t, view.Slots, 2)
	assert.Equal(t, "B", view.Slots[1].Name)
}

func TestText(t *testing.T) {
	main := []model.RosterEntry{
		entry(1, "Alice", "tg-1", nil),
		entry(2, "Ivan", "", &model.Provenance{ActorID: "admin-1", ActorName: "Coach"}),
	}
	reserve := []model.RosterEntry{entry(3, "Bob", "tg-3", nil)}

	text := Render(testSession(3), main, reserve).Text()

	expected := "📅 Date: 02 June, Tuesday\n\n" +
		"⏰ Session: 14:00 – 16:00\n" +
		"👥 Max Players: 3\n" +
		"Players:\n" +
		"1️⃣ Alice\n" +
		"2️⃣ Ivan (registered by Coach)\n" +
		"3️⃣ (open)\n" +
		"\nReserve:\n" +
		"• Bob\n"
	assert.Equal(t, expected, text)
}

func TestTextEmptyReserveStillShowsSection(t *testing.T) {
	text := Render(testSession(1), nil, nil).Text()
	assert.Contains(t, text, "\nReserve:\n(none)\n")
	assert.Contains(t, text, "1️⃣ (open)\n")
}

func TestSlotLabelBeyondKeycaps(t *testing.T) {
	assert.Equal(t, "🔟", slotLabel(10))
	assert.Equal(t, "11.", slotLabel(11))
}

func TestPromotionText(t *testing.T) {
	assert.Equal(t,
		"You've been moved from reserve to main list! Session on 02 June, Tuesday, 14:00 – 16:00.",
		PromotionText(testSession(4)))
}
