package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"persona-chat/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	characters map[string]*models.Character
	err        error
}

func newFakeFetcher(characters ...*models.Character) *fakeFetcher {
	f := &fakeFetcher{characters: make(map[string]*models.Character)}
	for _, c := range characters {
		f.characters[c.ID] = c
	}
	return f
}

func (f *fakeFetcher) GetByID(ctx context.Context, id string) (*models.Character, error) {
	if f.err != nil {
		return nil, f.err
	}
	if c, ok := f.characters[id]; ok {
		return c, nil
	}
	return nil, errors.New("character not found")
}

func testCharacter() *models.Character {
	return &models.Character{
		ID:          "char-1",
		Name:        "Luna",
		Personality: "wise and mystical",
		Background:  "An ancient spirit who has watched over forests for centuries.",
		Greeting:    "Greetings, wanderer.",
	}
}

func newBasicEngine(t *testing.T, character *models.Character) *RuleEngine {
	t.Helper()
	return NewRuleEngineWithSeed(newFakeFetcher(character), 0, 42)
}

func TestRuleEngineGreeting(t *testing.T) {
	character := testCharacter()
	engine := newBasicEngine(t, character)

	response, err := engine.Generate(context.Background(), "char-1", "user-a", "hello there")
	require.NoError(t, err)

	var expected []string
	for _, template := range basicGreetingPool {
		expected = append(expected, fmt.Sprintf(template, character.Greeting))
	}
	assert.Contains(t, expected, response)
}

func TestRuleEngineGreetingWithoutConfiguredGreeting(t *testing.T) {
	character := testCharacter()
	character.Greeting = ""
	engine := newBasicEngine(t, character)

	response, err := engine.Generate(context.Background(), "char-1", "user-a", "hi")
	require.NoError(t, err)

	var expected []string
	for _, template := range basicGreetingPool {
		for _, tail := range basicGreetingFallbacks {
			expected = append(expected, fmt.Sprintf(template, tail))
		}
	}
	assert.Contains(t, expected, response)
}

func TestRuleEngineViolencePool(t *testing.T) {
	engine := newBasicEngine(t, testCharacter())

	response, err := engine.Generate(context.Background(), "char-1", "user-a", "let's talk about a sword fight")
	require.NoError(t, err)
	assert.Contains(t, basicViolencePool, response)
}

func TestRuleEngineFirstMatchWins(t *testing.T) {
	character := testCharacter()
	engine := newBasicEngine(t, character)

	// "hello" and "fight" both match; the greeting check runs first.
	response, err := engine.Generate(context.Background(), "char-1", "user-a", "hello, wanna fight?")
	require.NoError(t, err)

	var expected []string
	for _, template := range basicGreetingPool {
		expected = append(expected, fmt.Sprintf(template, character.Greeting))
	}
	assert.Contains(t, expected, response)
	assert.NotContains(t, basicViolencePool, response)
}

func TestRuleEngineIdentity(t *testing.T) {
	character := testCharacter()
	engine := newBasicEngine(t, character)

	response, err := engine.Generate(context.Background(), "char-1", "user-a", "so, who are you exactly?")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("I'm %s, an AI character. %s %s",
		character.Name, character.Personality, character.Background), response)
}

func TestRuleEngineDefaultResponse(t *testing.T) {
	character := testCharacter()
	engine := newBasicEngine(t, character)

	response, err := engine.Generate(context.Background(), "char-1", "user-a", "the weather turned cold today")
	require.NoError(t, err)

	expected := []string{
		fmt.Sprintf("That's interesting! As %s, I think %s", character.Name, personalityAngle(character.Personality)),
		fmt.Sprintf("I see what you mean. From my perspective as %s, %s", character.Name, personalityAngle(character.Personality)),
		fmt.Sprintf("That's a fascinating thought. %s", character.Greeting),
		fmt.Sprintf("I appreciate you sharing that with me. %s", backgroundAngle(character)),
	}
	assert.Contains(t, expected, response)
}

func TestRuleEngineMatchingIsCaseInsensitive(t *testing.T) {
	engine := newBasicEngine(t, testCharacter())

	response, err := engine.Generate(context.Background(), "char-1", "user-a", "TELL ME ABOUT A WEAPON")
	require.NoError(t, err)
	assert.Contains(t, basicViolencePool, response)
}

func TestRuleEngineSeededDeterminism(t *testing.T) {
	character := testCharacter()
	inputs := []string{"hello", "fight me", "anything at all", "beautiful day"}

	a := NewRuleEngineWithSeed(newFakeFetcher(character), 0, 7)
	b := NewRuleEngineWithSeed(newFakeFetcher(character), 0, 7)

	for _, input := range inputs {
		ra, err := a.Generate(context.Background(), "char-1", "user-a", input)
		require.NoError(t, err)
		rb, err := b.Generate(context.Background(), "char-1", "user-a", input)
		require.NoError(t, err)
		assert.Equal(t, ra, rb)
	}
}

func TestRuleEngineCharacterLookupFailure(t *testing.T) {
	fetcher := newFakeFetcher()
	fetcher.err = errors.New("db down")
	engine := NewRuleEngineWithSeed(fetcher, 0, 42)

	_, err := engine.Generate(context.Background(), "char-1", "user-a", "hello")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestPersonalityAngle(t *testing.T) {
	tests := []struct {
		personality string
		want        string
	}{
		{"wise and calm", "that reminds me of deeper philosophical questions about human nature and existence."},
		{"very funny", "that's hilarious! You've got quite the sense of humor."},
		{"mystical seer", "the stars and cosmic energies are aligning around this topic."},
		{"professional advisor", "from a professional standpoint, that raises some interesting considerations."},
		{"grumpy", "that's really worth exploring further. Tell me more about your thoughts on this."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, personalityAngle(tt.personality), tt.personality)
	}
}
