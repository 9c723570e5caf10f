package response

import "github.com/mcoot/rosterbot/internal/services/registration"

var outcomeMessages = map[registration.Outcome]string{
	registration.OutcomeJoinedMain:        "You've been added to the main list.",
	registration.OutcomeJoinedReserve:     "The main list is full. You've been added to the reserve list.",
	registration.OutcomeAlreadyRegistered: "You're already registered for this session.",
	registration.OutcomeRegisteredSameDay: "You're already registered for another session on this day.",
	registration.OutcomeLeft:              "You've been removed from the session.",
	registration.OutcomeRemoved:           "The player has been removed from the session.",
	registration.OutcomeNotRegistered:     "Not registered for this session.",
}

// OutcomeMessage is the chat reply for a command outcome
func OutcomeMessage(o registration.Outcome) string {
	return outcomeMessages[o]
}
