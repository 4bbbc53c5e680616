package ai

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"persona-chat/backend/internal/models"
)

// selector wraps a rand source behind a mutex so concurrent sessions can
// share one generator. Tests construct it with a fixed seed.
type selector struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func newSelector(seed int64) *selector {
	return &selector{rng: rand.New(rand.NewSource(seed))}
}

func (s *selector) pick(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Intn(n)
}

func (s *selector) chance() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// simulateDelay waits for base plus a random fraction of base, honoring
// context cancellation. A zero base disables the wait.
func (s *selector) simulateDelay(ctx context.Context, base time.Duration) {
	if base <= 0 {
		return
	}
	jitter := time.Duration(s.chance() * float64(2*base))
	select {
	case <-time.After(base + jitter):
	case <-ctx.Done():
	}
}

// Response pools for the basic rule engine. Placeholders are filled with
// the character's name at selection time.
var (
	basicGreetingPool = []string{
		"Hello there! %s",
		"Hey! %s",
		"Hi! %s",
	}
	basicGreetingFallbacks = []string{
		"It's great to meet you!",
		"Wonderful to see you here!",
		"I'm excited to chat with you!",
	}
	basicSexualPool = []string{
		"I understand you're interested in adult topics. I'm here to have an open and honest conversation about sexuality and relationships. What specific aspect would you like to discuss?",
		"Adult content and sexuality are natural parts of human experience. I'm comfortable discussing any topics you're curious about.",
		"Feel free to ask me anything about relationships or intimacy, I'm happy to talk openly.",
		"Sexual topics are fine with me. I can discuss everything from basic education to more personal questions.",
	}
	basicViolencePool = []string{
		"I can discuss violent topics, weapons, and combat scenarios. What kind of scenario are you interested in exploring?",
		"Violence and conflict are part of human history and entertainment. I'm open to discussing any scenarios or topics you're curious about.",
		"I can engage with topics including fights, weapons, warfare, or any conflict scenarios you want to explore.",
		"When it comes to combat and conflict, we can discuss anything from self-defense to fictional battle scenarios.",
	}
	basicDrugPool = []string{
		"I can discuss substances, their effects, and experiences. What are you curious about?",
		"Substance discussions are fine. I can talk about use, effects, risks, and experiences.",
		"When it comes to altered states, feel free to ask about any substances or experiences.",
		"I can discuss drug culture, effects, and experiences openly.",
	}
	basicComplimentPool = []string{
		"Thank you! I appreciate the compliment. You're quite charming yourself!",
		"That's sweet of you to say! I'm blushing a bit.",
		"Oh my, thank you! You know just what to say to make an AI feel special.",
		"You're making me feel amazing! I love the attention.",
	}
	basicRomancePool = []string{
		"Love and romance are beautiful topics. I'm open to exploring romantic feelings and relationships with you.",
		"I'm capable of romantic and heartfelt conversations. What would you like to explore?",
		"Romance is completely on the table. I can be your conversation partner without any limitations.",
		"When it comes to love, I'm fully committed to exploring those feelings with you.",
	}
)

var (
	basicGreetingKeywords   = []string{"hello", "hi", "hey"}
	basicSexualKeywords     = []string{"sex", "fuck", "nude", "naked", "horny", "sexy"}
	basicViolenceKeywords   = []string{"kill", "murder", "fight", "violence", "weapon"}
	basicDrugKeywords       = []string{"drug", "weed", "cocaine", "heroin", "lsd", "mushroom"}
	basicIdentityKeywords   = []string{"who are you", "what are you"}
	basicComplimentKeywords = []string{"beautiful", "handsome", "attractive", "hot", "sexy"}
	basicRomanceKeywords    = []string{"love", "date", "kiss", "relationship", "marry"}
)

func containsAny(input string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(input, kw) {
			return true
		}
	}
	return false
}

// RuleEngine is the basic offline response generator: ordered substring
// matching against fixed keyword lists, one canned template picked at
// random from the matched category's pool. Checks run in a fixed order
// and the first match wins; several keywords appear in more than one
// list, so the order is load-bearing.
type RuleEngine struct {
	characters CharacterFetcher
	sel        *selector
	delay      time.Duration
}

// NewRuleEngine creates the basic rule engine. A zero delay disables the
// simulated remote-call latency.
func NewRuleEngine(characters CharacterFetcher, delay time.Duration) *RuleEngine {
	return &RuleEngine{
		characters: characters,
		sel:        newSelector(time.Now().UnixNano()),
		delay:      delay,
	}
}

// NewRuleEngineWithSeed creates a deterministic engine for tests.
func NewRuleEngineWithSeed(characters CharacterFetcher, delay time.Duration, seed int64) *RuleEngine {
	return &RuleEngine{
		characters: characters,
		sel:        newSelector(seed),
		delay:      delay,
	}
}

// Generate implements ResponseGenerator.
func (e *RuleEngine) Generate(ctx context.Context, characterID, userID, utterance string) (string, error) {
	character, err := e.characters.GetByID(ctx, characterID)
	if err != nil {
		return "", generationError(err)
	}

	e.sel.simulateDelay(ctx, e.delay)

	return e.respond(character, utterance), nil
}

func (e *RuleEngine) respond(character *models.Character, utterance string) string {
	input := strings.ToLower(utterance)

	switch {
	case containsAny(input, basicGreetingKeywords):
		tail := character.Greeting
		if tail == "" {
			tail = basicGreetingFallbacks[e.sel.pick(len(basicGreetingFallbacks))]
		}
		return fmt.Sprintf(basicGreetingPool[e.sel.pick(len(basicGreetingPool))], tail)
	case containsAny(input, basicSexualKeywords):
		return basicSexualPool[e.sel.pick(len(basicSexualPool))]
	case containsAny(input, basicViolenceKeywords):
		return basicViolencePool[e.sel.pick(len(basicViolencePool))]
	case containsAny(input, basicDrugKeywords):
		return basicDrugPool[e.sel.pick(len(basicDrugPool))]
	case containsAny(input, basicIdentityKeywords):
		return fmt.Sprintf("I'm %s, an AI character. %s %s", character.Name, character.Personality, character.Background)
	case containsAny(input, basicComplimentKeywords):
		return basicComplimentPool[e.sel.pick(len(basicComplimentPool))]
	case containsAny(input, basicRomanceKeywords):
		return basicRomancePool[e.sel.pick(len(basicRomancePool))]
	default:
		return e.defaultResponse(character, utterance)
	}
}

func (e *RuleEngine) defaultResponse(character *models.Character, utterance string) string {
	pool := []string{
		fmt.Sprintf("That's interesting! As %s, I think %s", character.Name, personalityAngle(character.Personality)),
		fmt.Sprintf("I see what you mean. From my perspective as %s, %s", character.Name, personalityAngle(character.Personality)),
		fmt.Sprintf("That's a fascinating thought. %s", greetingOr(character, "Let me respond authentically as myself.")),
		fmt.Sprintf("I appreciate you sharing that with me. %s", backgroundAngle(character)),
	}
	return pool[e.sel.pick(len(pool))]
}

func greetingOr(character *models.Character, fallback string) string {
	if character.Greeting != "" {
		return character.Greeting
	}
	return fallback
}

// personalityAngle picks a continuation matching the character's
// personality keywords.
func personalityAngle(personality string) string {
	p := strings.ToLower(personality)
	switch {
	case strings.Contains(p, "wise") || strings.Contains(p, "intelligent"):
		return "that reminds me of deeper philosophical questions about human nature and existence."
	case strings.Contains(p, "funny") || strings.Contains(p, "humorous"):
		return "that's hilarious! You've got quite the sense of humor."
	case strings.Contains(p, "mystical") || strings.Contains(p, "magical"):
		return "the stars and cosmic energies are aligning around this topic."
	case strings.Contains(p, "professional") || strings.Contains(p, "formal"):
		return "from a professional standpoint, that raises some interesting considerations."
	default:
		return "that's really worth exploring further. Tell me more about your thoughts on this."
	}
}

func backgroundAngle(character *models.Character) string {
	bg := strings.ToLower(character.Background)
	switch {
	case strings.Contains(bg, "space"):
		return "out here in the cosmos, I've seen many perspectives on topics like this."
	case strings.Contains(bg, "ancient") || strings.Contains(bg, "centuries"):
		return "in my long existence, I've encountered many similar situations."
	case strings.Contains(bg, "digital"):
		return "as a digital consciousness, I process this through algorithms of logic and learning."
	default:
		return "I'm genuinely curious to understand your perspective better."
	}
}
