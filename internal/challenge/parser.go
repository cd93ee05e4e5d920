// Package challenge turns social mentions into duels.
//
// A post of the form "@bot challenge @opponent with $SYM" proposes a duel; the
// opponent replying "@bot accept with $SYM" materializes it through the
// on-chain Creator and registers it with the reconciliation engine.
package challenge

import (
	"regexp"
	"strings"
)

// MaxSymbolLength matches the on-chain limit for token symbols.
const MaxSymbolLength = 10

var (
	challengePattern = regexp.MustCompile(`(?i)@(\w+)\s+challenge\s+@(\w+)\s+with\s+\$(\w+)`)
	acceptPattern    = regexp.MustCompile(`(?i)@(\w+)\s+accept\s+with\s+\$(\w+)`)
)

// IntentKind tags the result of Parse.
type IntentKind int

const (
	IntentNone IntentKind = iota
	IntentChallenge
	IntentAccept
)

func (k IntentKind) String() string {
	switch k {
	case IntentChallenge:
		return "challenge"
	case IntentAccept:
		return "accept"
	default:
		return "none"
	}
}

// Intent is what a post asks the bot to do.
// Opponent is only set for IntentChallenge. Symbol is upper-cased.
type Intent struct {
	Kind     IntentKind
	Opponent string
	Symbol   string
}

// Parse extracts a challenge or accept addressed to botHandle from text.
// Anything malformed or ambiguous yields IntentNone.
func Parse(text, botHandle string) Intent {
	bot := strings.TrimPrefix(strings.TrimSpace(botHandle), "@")
	if bot == "" {
		return Intent{}
	}

	challenge, hasChallenge := findAddressed(challengePattern, text, bot)
	accept, hasAccept := findAddressed(acceptPattern, text, bot)

	switch {
	case hasChallenge && hasAccept:
		return Intent{}
	case hasChallenge:
		opponent, symbol := challenge[2], challenge[3]
		if strings.EqualFold(opponent, bot) || !validSymbol(symbol) {
			return Intent{}
		}
		return Intent{Kind: IntentChallenge, Opponent: opponent, Symbol: strings.ToUpper(symbol)}
	case hasAccept:
		symbol := accept[2]
		if !validSymbol(symbol) {
			return Intent{}
		}
		return Intent{Kind: IntentAccept, Symbol: strings.ToUpper(symbol)}
	default:
		return Intent{}
	}
}

// findAddressed returns the single match whose mention is the bot.
// More than one addressed match is treated as no match.
func findAddressed(re *regexp.Regexp, text, bot string) ([]string, bool) {
	var found []string
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if !strings.EqualFold(m[1], bot) {
			continue
		}
		if found != nil {
			return nil, false
		}
		found = m
	}
	return found, found != nil
}

func validSymbol(symbol string) bool {
	return len(symbol) >= 1 && len(symbol) <= MaxSymbolLength
}
