package ai

import (
	"fmt"
	"strings"

	"persona-chat/backend/internal/models"
)

// systemPrompt renders the character profile into the instruction block
// shared by every remote provider.
func systemPrompt(character *models.Character) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are %s. %s.\n", character.Name, character.Personality)
	if character.Background != "" {
		fmt.Fprintf(&b, "Background: %s\n", character.Background)
	}
	if character.Greeting != "" {
		fmt.Fprintf(&b, "You typically greet people by saying: %q\n", character.Greeting)
	}
	fmt.Fprintf(&b, "\nStay in character at all times. Respond as %s would, maintaining their personality and speaking style.", character.Name)
	return b.String()
}

// buildPrompt flattens the system prompt and conversation into a single
// text completion prompt for providers without a chat API shape.
func buildPrompt(character *models.Character, history []models.Message, utterance string) string {
	var b strings.Builder
	b.WriteString(systemPrompt(character))
	b.WriteString("\n\n")

	for _, msg := range history {
		speaker := character.Name
		if msg.Role == models.RoleUser {
			speaker = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n", speaker, msg.Content)
	}

	fmt.Fprintf(&b, "User: %s\n%s:", utterance, character.Name)
	return b.String()
}

// chatTurn is the provider-neutral chat message shape.
type chatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatTurns builds the system+history+utterance message list for
// chat-completion style providers.
func chatTurns(character *models.Character, history []models.Message, utterance string) []chatTurn {
	turns := make([]chatTurn, 0, len(history)+2)
	turns = append(turns, chatTurn{Role: "system", Content: systemPrompt(character)})
	for _, msg := range history {
		turns = append(turns, chatTurn{Role: msg.Role, Content: msg.Content})
	}
	turns = append(turns, chatTurn{Role: models.RoleUser, Content: utterance})
	return turns
}
