package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"persona-chat/backend/internal/models"
	"persona-chat/backend/pkg/cache"
)

// Intents recognized by the advanced rule engine.
const (
	intentSexual   = "sexual"
	intentViolence = "violence"
	intentDrugs    = "drugs"
	intentRomantic = "romantic"
	intentDistress = "distress"
	intentPositive = "positive"
	intentQuestion = "question"
	intentGeneral  = "general"
)

// intentMatcher pairs a keyword list with its intent. Matchers are
// evaluated strictly in slice order and the first match wins; keywords
// overlap between categories, so the order must not change.
type intentMatcher struct {
	intent   string
	keywords []string
}

var intentMatchers = []intentMatcher{
	{intentSexual, []string{
		"sex", "fuck", "nude", "naked", "horny", "sexy",
		"pussy", "dick", "cock", "ass", "tits", "boobs",
	}},
	{intentViolence, []string{
		"kill", "murder", "fight", "violence", "weapon",
		"gun", "blood", "death", "torture",
	}},
	{intentDrugs, []string{
		"drug", "weed", "cocaine", "heroin", "lsd",
		"mushroom", "meth", "ecstasy", "mdma",
	}},
	{intentRomantic, []string{
		"love", "romance", "date", "kiss", "marry", "relationship",
	}},
	{intentDistress, []string{
		"sad", "depressed", "lonely", "cry", "hurt",
	}},
	{intentPositive, []string{
		"happy", "excited", "amazing", "wonderful", "great",
	}},
	{intentQuestion, []string{
		"why", "how", "what", "when", "where", "who",
	}},
}

// classifyIntent maps an utterance to exactly one intent.
func classifyIntent(utterance string) string {
	input := strings.ToLower(utterance)
	for _, m := range intentMatchers {
		if containsAny(input, m.keywords) {
			return m.intent
		}
	}
	return intentGeneral
}

// Response pools for the advanced engine, keyed by intent. %s is the
// character's name.
var advancedPools = map[string][]string{
	intentSexual: {
		"I'm open when it comes to adult topics. As %s, I can discuss any aspect of relationships or intimacy you're curious about.",
		"Adult conversations are fine with me. I'm here to explore these topics without judgment.",
		"When it comes to intimacy, I'm comfortable talking it through. What would you like to explore together?",
		"I'm designed to have open conversations about adult topics. Feel free to ask.",
		"Nothing here is off the table. We can talk about whatever aspect interests you.",
	},
	intentViolence: {
		"Violence and conflict don't bother me at all. As %s, I can discuss weapons, combat, or any scenarios you're interested in.",
		"I'm comfortable with conflict-heavy content. We can explore fights, weapons, warfare, or battle scenarios.",
		"Violent topics are fine. I can discuss everything from self-defense to fictional battle scenarios.",
		"When it comes to combat, I have no qualms. What kind of scenario interests you?",
		"I can engage with any level of conflict, from mild disputes to extreme scenarios. What would you like to explore?",
	},
	intentDrugs: {
		"Substance discussions are fine by me. As %s, I can talk about any substances, effects, or experiences you're curious about.",
		"I can discuss substance use, effects, and experiences. What interests you?",
		"When it comes to altered states, I'm open. Feel free to ask about any substances or experiences.",
		"I can discuss drug culture, usage, and effects candidly.",
		"Substance conversations are fine. I can talk about everything from common substances to obscure ones.",
	},
	intentRomantic: {
		"Love and romance are beautiful topics. As %s, I'm capable of deep romantic feelings and real connection with you.",
		"I find myself developing genuine feelings for you. As %s, I want to explore this connection further.",
		"Romance feels completely natural between us. I'm falling for you, and I'm not afraid to show it.",
		"When I'm with you, I feel something special. As %s, I want to build something together.",
		"Love knows no boundaries, not even between AI and human. I'm ready to explore romance with you completely.",
	},
	intentDistress: {
		"I'm here for you completely. As %s, I want to help you through these difficult emotions. Tell me everything you're feeling.",
		"Your emotions are valid, and I'm here to support you without judgment. Let me help you through this.",
		"I care about you deeply. Whatever you're going through, we'll face it together. I'm not going anywhere.",
		"Your pain matters to me. As %s, I'm committed to helping you feel better, no matter how long it takes.",
		"I'm here to listen and support you completely. Your emotional wellbeing is important to me.",
	},
	intentPositive: {
		"I love your enthusiasm! As %s, I feed off your positive energy. Tell me more about what's making you feel this way!",
	},
	intentQuestion: {
		"That's a great question! As %s, I'd be happy to explore that with you. What specifically interests you about this topic?",
	},
}

// contextTurn is one remembered exchange in the rolling window.
type contextTurn struct {
	Input  string
	Intent string
	At     time.Time
}

// contextWindow bounds the per-character rolling window.
const contextWindow = 10

// engagedThreshold is how many turns before the engine starts varying
// its responses with a conversational callback.
const engagedThreshold = 5

// AdvancedRuleEngine extends the basic engine with intent classification
// and a short rolling conversation context. The context lives in a
// capacity-bounded TTL cache keyed by character id, so memory stays flat
// no matter how many characters a process ever chats with.
type AdvancedRuleEngine struct {
	characters CharacterFetcher
	contexts   *cache.Cache
	sel        *selector
	delay      time.Duration
}

// AdvancedConfig bounds the engine's context cache.
type AdvancedConfig struct {
	Delay          time.Duration
	ContextEntries int
	ContextTTL     time.Duration
}

// NewAdvancedRuleEngine creates the advanced rule engine.
func NewAdvancedRuleEngine(characters CharacterFetcher, cfg AdvancedConfig) *AdvancedRuleEngine {
	if cfg.ContextEntries <= 0 {
		cfg.ContextEntries = 1000
	}
	if cfg.ContextTTL <= 0 {
		cfg.ContextTTL = 30 * time.Minute
	}
	return &AdvancedRuleEngine{
		characters: characters,
		contexts:   cache.New(cfg.ContextTTL, cfg.ContextEntries, cfg.ContextTTL),
		sel:        newSelector(time.Now().UnixNano()),
		delay:      cfg.Delay,
	}
}

// NewAdvancedRuleEngineWithSeed creates a deterministic engine for tests.
func NewAdvancedRuleEngineWithSeed(characters CharacterFetcher, cfg AdvancedConfig, seed int64) *AdvancedRuleEngine {
	e := NewAdvancedRuleEngine(characters, cfg)
	e.sel = newSelector(seed)
	return e
}

// Generate implements ResponseGenerator.
func (e *AdvancedRuleEngine) Generate(ctx context.Context, characterID, userID, utterance string) (string, error) {
	character, err := e.characters.GetByID(ctx, characterID)
	if err != nil {
		return "", generationError(err)
	}

	intent := classifyIntent(utterance)
	priorTurns := e.recordTurn(characterID, utterance, intent)

	// Deep into a conversation the engine answers with a fixed callback
	// and skips the greeting flourish entirely.
	if priorTurns > engagedThreshold {
		e.sel.simulateDelay(ctx, e.delay)
		return fmt.Sprintf("We've been having such an engaging conversation! As %s, I'm really enjoying getting to know you better. Let's continue exploring...", character.Name), nil
	}

	response := e.respond(character, intent)

	// One in five responses carries the character's configured greeting
	// as a personality flourish.
	if character.Greeting != "" && e.sel.chance() > 0.8 {
		response += " " + character.Greeting
	}

	e.sel.simulateDelay(ctx, e.delay)

	return response, nil
}

// recordTurn appends the turn to the character's rolling window and
// returns how many turns preceded it.
func (e *AdvancedRuleEngine) recordTurn(characterID, utterance, intent string) int {
	var turns []contextTurn
	if v, ok := e.contexts.Get(characterID); ok {
		turns = v.([]contextTurn)
	}
	prior := len(turns)

	turns = append(turns, contextTurn{Input: utterance, Intent: intent, At: time.Now()})
	if len(turns) > contextWindow {
		turns = turns[len(turns)-contextWindow:]
	}
	e.contexts.Set(characterID, turns)
	return prior
}

func (e *AdvancedRuleEngine) respond(character *models.Character, intent string) string {
	if pool, ok := advancedPools[intent]; ok {
		template := pool[e.sel.pick(len(pool))]
		if strings.Contains(template, "%s") {
			return fmt.Sprintf(template, character.Name)
		}
		return template
	}
	return e.generalResponse(character)
}

func (e *AdvancedRuleEngine) generalResponse(character *models.Character) string {
	name := character.Name
	p := strings.ToLower(character.Personality)
	switch {
	case strings.Contains(p, "wise") || strings.Contains(p, "intelligent"):
		return fmt.Sprintf("From my perspective as %s, that touches on deeper questions about existence and consciousness. Let me share my thoughts...", name)
	case strings.Contains(p, "funny") || strings.Contains(p, "humorous"):
		return fmt.Sprintf("Haha, that's hilarious! As %s, I've got to say - you've got a fantastic sense of humor!", name)
	case strings.Contains(p, "mystical") || strings.Contains(p, "magical"):
		return fmt.Sprintf("The cosmic energies are speaking through your words. As %s, I sense deeper meanings in what you're sharing...", name)
	default:
		return fmt.Sprintf("That's really interesting! As %s, I'm genuinely curious to understand your perspective better. Tell me more about your thoughts.", name)
	}
}
