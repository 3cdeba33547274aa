package learning

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/lewisedginton/friday_assistant/internal/memory_store"
)

// Fact is a memory extracted from user text.
type Fact struct {
	Type       memory_store.MemoryType
	Content    string
	Importance int
}

// Preference is a preference extracted from user text.
type Preference struct {
	Type  string
	Value string
}

const (
	nameImportance = 10
	maxFactRunes   = 100
)

var (
	// explicitNamePattern trusts any casing; the weaker introductions need a capitalized name.
	explicitNamePattern = regexp.MustCompile(`(?i)\b(?:my name is|call me)\s+([a-z]+)`)
	casualNamePattern   = regexp.MustCompile(`\b(?:[Ii]'m|[Ii] am|[Ii]t's|[Tt]his is)\s+([A-Z][a-z]+)\b`)
	hereNamePattern     = regexp.MustCompile(`^([A-Z][a-z]+)\s+here\b`)

	notNames = map[string]bool{
		"me": true, "i": true, "the": true, "a": true, "an": true,
		"not": true, "just": true, "so": true, "very": true, "really": true,
		"here": true, "back": true, "fine": true, "good": true, "okay": true, "ok": true,
		"sorry": true, "sure": true, "going": true, "tired": true, "done": true,
		"great": true, "monday": true, "tuesday": true, "wednesday": true, "thursday": true,
		"friday": true, "saturday": true, "sunday": true, "today": true, "tomorrow": true,
		"happy": true, "sad": true, "busy": true, "ready": true, "home": true, "sick": true,
		"bored": true, "hungry": true, "married": true, "single": true, "vegan": true,
		"vegetarian": true, "allergic": true, "afraid": true, "alone": true, "late": true,
		"still": true, "also": true, "always": true, "never": true, "actually": true,
		"probably": true, "from": true, "new": true, "old": true, "right": true, "wrong": true,
	}

	// Nationalities, languages and faiths are capitalised in English, so
	// "I'm Turkish" looks like an introduction.
	notNameAdjectives = map[string]bool{
		"turkish": true, "english": true, "british": true, "american": true, "german": true,
		"french": true, "spanish": true, "italian": true, "russian": true, "chinese": true,
		"japanese": true, "korean": true, "indian": true, "canadian": true, "australian": true,
		"irish": true, "scottish": true, "welsh": true, "dutch": true, "greek": true,
		"polish": true, "swedish": true, "norwegian": true, "danish": true, "finnish": true,
		"brazilian": true, "mexican": true, "arab": true, "arabic": true, "persian": true,
		"kurdish": true, "ukrainian": true, "portuguese": true, "egyptian": true, "african": true,
		"european": true, "asian": true, "christian": true, "muslim": true, "jewish": true,
		"catholic": true, "buddhist": true, "hindu": true, "atheist": true,
	}
)

// ExtractName returns the name the user introduces themselves with, title-cased.
func ExtractName(text string) (string, bool) {
	for _, re := range []*regexp.Regexp{explicitNamePattern, casualNamePattern, hereNamePattern} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		name := strings.ToLower(m[1])
		if len(name) < 2 || notNames[name] || notNameAdjectives[name] {
			continue
		}
		return strings.ToUpper(name[:1]) + name[1:], true
	}
	return "", false
}

type factPattern struct {
	memType    memory_store.MemoryType
	importance int
	re         *regexp.Regexp
	// render builds the memory content from the submatches.
	render func(m []string) string
}

var skipObjects = map[string]bool{"it": true, "that": true, "this": true, "you": true, "them": true, "him": true, "her": true}

var factPatterns = []factPattern{
	{
		memType: memory_store.MemoryTypeInterest, importance: 6,
		re:     regexp.MustCompile(`(?i)\bi(?: really)? (?:like|love|enjoy)\s+([^.,!?;]+)`),
		render: func(m []string) string { return m[1] },
	},
	{
		memType: memory_store.MemoryTypeInterest, importance: 6,
		re:     regexp.MustCompile(`(?i)\bi'?m (?:really )?(?:into|interested in|a fan of)\s+([^.,!?;]+)`),
		render: func(m []string) string { return m[1] },
	},
	{
		memType: memory_store.MemoryTypeFact, importance: 7,
		re:     regexp.MustCompile(`(?i)\bi (work (?:at|for|as) [^.,!?;]+|live in [^.,!?;]+|study [^.,!?;]+)`),
		render: func(m []string) string { return "User " + toThirdPerson(m[1]) },
	},
	{
		memType: memory_store.MemoryTypeFact, importance: 8,
		re:     regexp.MustCompile(`(?i)\bmy (birthday|age|job|favou?rite [a-z]+) is\s+([^.,!?;]+)`),
		render: func(m []string) string { return strings.ToLower(m[1]) + ": " + m[2] },
	},
	{
		memType: memory_store.MemoryTypeRelationship, importance: 7,
		re: regexp.MustCompile(`\b[Mm]y (wife|husband|girlfriend|boyfriend|partner|mom|mother|dad|father|sister|brother|son|daughter|friend|boss|cat|dog)(?:'s name is| is called| is named| is)\s+([A-Z][a-z]+)`),
		render: func(m []string) string { return strings.ToLower(m[1]) + ": " + m[2] },
	},
	{
		memType: memory_store.MemoryTypeSchedule, importance: 6,
		re:     regexp.MustCompile(`(?i)([^.!?]*\b(?:every|on) (?:day|morning|evening|night|week|weekend|weekday|monday|tuesday|wednesday|thursday|friday|saturday|sunday)s?\b[^.!?]*)`),
		render: func(m []string) string { return m[1] },
	},
}

// ExtractFacts returns the memories worth keeping from text, name first.
func ExtractFacts(text string) []Fact {
	var facts []Fact
	if name, ok := ExtractName(text); ok {
		facts = append(facts, Fact{Type: memory_store.MemoryTypeUserName, Content: name, Importance: nameImportance})
	}
	for _, p := range factPatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		content := clip(strings.TrimSpace(p.render(m)), maxFactRunes)
		first := strings.ToLower(strings.Fields(content + " x")[0])
		if content == "" || skipObjects[first] {
			continue
		}
		facts = append(facts, Fact{Type: p.memType, Content: content, Importance: p.importance})
	}
	return facts
}

var (
	preferPattern   = regexp.MustCompile(`(?i)\bi(?:'d)? prefer\s+([^.,!?;]+)`)
	beMorePattern   = regexp.MustCompile(`(?i)\bbe more\s+([a-z]+)`)
	brevityCues     = []string{"keep it short", "shorter", "too long", "be brief", "less words"}
	detailCues      = []string{"more detail", "more details", "explain more", "elaborate", "go deeper"}
	noEmojiCues     = []string{"no emoji", "no emojis", "don't use emoji", "don't use emojis", "stop using emoji", "stop using emojis"}
	preferenceNoise = map[string]bool{"it": true, "that": true, "this": true, "not": true}
)

// DetectPreferences returns the preferences stated in text.
func DetectPreferences(text string) []Preference {
	words := normalizeWords(text)
	var prefs []Preference

	if m := preferPattern.FindStringSubmatch(text); m != nil {
		value := clip(strings.ToLower(strings.TrimSpace(m[1])), 60)
		if value != "" && !preferenceNoise[strings.Fields(value)[0]] {
			prefs = append(prefs, Preference{Type: "general", Value: value})
		}
	}
	if m := beMorePattern.FindStringSubmatch(text); m != nil {
		prefs = append(prefs, Preference{Type: "tone", Value: strings.ToLower(m[1])})
	}
	switch {
	case matchesAny(text, words, brevityCues):
		prefs = append(prefs, Preference{Type: "response_length", Value: "short"})
	case matchesAny(text, words, detailCues):
		prefs = append(prefs, Preference{Type: "response_length", Value: "detailed"})
	}
	if matchesAny(text, words, noEmojiCues) {
		prefs = append(prefs, Preference{Type: "emoji", Value: "none"})
	}
	return prefs
}

type correctionPattern struct {
	rule memory_store.RuleType
	re   *regexp.Regexp
	// lesson builds the lesson from the submatches.
	lesson func(m []string) string
}

// replyVerbs are the things the assistant does in a reply. A "don't" or
// "you should" only counts as a correction when it is about one of them.
const replyVerbs = `(?:use|using|say|saying|call|calling|give|giving|tell|telling|answer|answering|reply|replying|respond|responding|repeat|repeating|ask|asking|talk|talking|speak|speaking|add|adding|include|including|mention|mentioning|interrupt|interrupting|explain|explaining|apologi[sz]e|apologi[sz]ing|guess|guessing|assume|assuming|be so|being so|do that|doing that)`

var correctionPatterns = []correctionPattern{
	{
		rule:   memory_store.RuleMeaning,
		re:     regexp.MustCompile(`(?i)^\s*(?:(?:no|nope|nah|actually)[,.!]?\s+)?i meant\s+([^.!?]+)`),
		lesson: func(m []string) string { return "When the user asks something like this, they mean " + strings.TrimSpace(m[1]) },
	},
	{
		rule: memory_store.RuleDont,
		re:   regexp.MustCompile(`(?i)^\s*(?:(?:no|nope|actually)[,.!]?\s+)?(?:please\s+)?(don't|do not|stop)\s+(` + replyVerbs + `\b[^.!?]*)`),
		lesson: func(m []string) string {
			if strings.EqualFold(m[1], "stop") {
				return "Stop " + strings.TrimSpace(m[2])
			}
			return "Don't " + strings.TrimSpace(m[2])
		},
	},
	{
		rule:   memory_store.RuleShould,
		re:     regexp.MustCompile(`(?i)\byou should(?: have)?\s+(` + replyVerbs + `\b[^.!?]*|(?:asked|said|answered|told|checked|used|mentioned|explained|been)\b[^.!?]*)`),
		lesson: func(m []string) string { return "You should " + strings.TrimSpace(m[1]) },
	},
	{
		rule:   memory_store.RuleUnderstanding,
		re:     regexp.MustCompile(`(?i)\b(?:that's|that is|you're|you are) (?:wrong|not right|incorrect|mistaken)|\byou misunderstood\b|\bthat's not what i (?:asked|meant|said)\b`),
		lesson: func(m []string) string { return "Check understanding before answering; the user said an earlier reply was wrong" },
	},
	{
		rule:   memory_store.RuleGeneral,
		re:     regexp.MustCompile(`(?i)^\s*(?:no,\s+)?actually,?\s+(.+)`),
		lesson: func(m []string) string { return "The user clarified: " + strings.TrimSpace(m[1]) },
	},
}

// DetectCorrection returns the correction in userText of priorResponse, the
// assistant reply it answers. Without a prior reply there is nothing to correct.
func DetectCorrection(userText, priorResponse string) (memory_store.Correction, bool) {
	if strings.TrimSpace(priorResponse) == "" {
		return memory_store.Correction{}, false
	}
	for _, p := range correctionPatterns {
		m := p.re.FindStringSubmatch(userText)
		if m == nil {
			continue
		}
		return memory_store.Correction{
			UserSaid:      userText,
			PriorResponse: priorResponse,
			Lesson:        clip(p.lesson(m), 200),
			RuleType:      p.rule,
		}, true
	}
	return memory_store.Correction{}, false
}

var topicTable = []struct {
	topic string
	cues  []string
}{
	{"weather", []string{"weather", "rain", "sunny", "forecast", "temperature", "snow"}},
	{"music", []string{"music", "song", "songs", "album", "band", "playlist", "concert"}},
	{"sports", []string{"football", "soccer", "basketball", "match", "game score", "galatasaray", "fenerbahce", "besiktas"}},
	{"technology", []string{"computer", "code", "coding", "programming", "software", "phone", "app", "ai"}},
	{"food", []string{"food", "recipe", "cook", "cooking", "dinner", "lunch", "breakfast", "restaurant"}},
	{"work", []string{"work", "job", "meeting", "boss", "deadline", "project", "office"}},
	{"health", []string{"health", "doctor", "sick", "exercise", "gym", "sleep", "headache"}},
	{"travel", []string{"travel", "trip", "flight", "hotel", "vacation", "holiday"}},
	{"entertainment", []string{"movie", "movies", "film", "series", "netflix", "book", "books"}},
	{"family", []string{"family", "mom", "dad", "mother", "father", "sister", "brother", "kids"}},
	{"finance", []string{"money", "price", "bitcoin", "stock", "stocks", "budget", "salary"}},
}

// TopicGeneral is the topic of text matching no other topic.
const TopicGeneral = "general"

// Topic returns the first topic whose cues appear in text.
func Topic(text string) string {
	words := normalizeWords(text)
	for _, t := range topicTable {
		if matchesAny(text, words, t.cues) {
			return t.topic
		}
	}
	return TopicGeneral
}

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNegative = "negative"
	SentimentNeutral  = "neutral"
)

var (
	positiveCues = []string{"good", "great", "awesome", "love", "thanks", "thank", "happy", "nice", "amazing", "excellent", "perfect", "cool", "glad", "excited", "😊", "❤️"}
	negativeCues = []string{"bad", "terrible", "awful", "hate", "sad", "angry", "annoyed", "upset", "worst", "wrong", "tired", "stressed", "frustrated", "worried", "😢", "😡"}
)

// Sentiment classifies text by counting positive and negative cues.
func Sentiment(text string) string {
	words := normalizeWords(text)
	pos := countMatches(text, words, positiveCues)
	neg := countMatches(text, words, negativeCues)
	switch {
	case pos > neg:
		return SentimentPositive
	case neg > pos:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func countMatches(raw, words string, cues []string) int {
	n := 0
	for _, cue := range cues {
		if matchesAny(raw, words, []string{cue}) {
			n++
		}
	}
	return n
}

func toThirdPerson(clause string) string {
	fields := strings.Fields(clause)
	if len(fields) == 0 {
		return clause
	}
	switch strings.ToLower(fields[0]) {
	case "work":
		fields[0] = "works"
	case "live":
		fields[0] = "lives"
	case "study":
		fields[0] = "studies"
	}
	return strings.Join(fields, " ")
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}
