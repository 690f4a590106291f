package summary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gnavi-ai/kbkeeper/pkg/message"
)

// DefaultMaxKeywords caps the keyword list attached to a summary.
const DefaultMaxKeywords = 5

// Complexity indicator flags.
const (
	ComplexityNegativeSentiment = "negative_sentiment"
	ComplexityDiverseTopics     = "diverse_topics"
	ComplexityLongSession       = "long_session"
	ComplexityDetailedQuestions = "detailed_questions"
)

// Thresholds for the complexity indicators.
const (
	diverseTopicsMin    = 3
	longSessionMessages = 20
	detailedQuestionLen = 200 // runes
	detailedQuestionMin = 3
)

// significanceShare is the fraction of total topic weight a domain must
// accumulate to count toward the session type.
const significanceShare = 0.25

// negativeMarkers flag sessions where the user sounds blocked or unhappy.
var negativeMarkers = []string{
	"frustrated", "stuck", "worried", "confused", "anxious",
	"overwhelmed", "difficult", "struggling", "can't", "cannot", "failed",
}

// stopWords are dropped during generic keyword extraction: particles,
// filler, and transcript boilerplate.
var stopWords = map[string]struct{}{
	"the": {}, "and": {}, "that": {}, "this": {}, "with": {}, "have": {},
	"about": {}, "what": {}, "when": {}, "where": {}, "would": {},
	"could": {}, "should": {}, "there": {}, "which": {}, "your": {},
	"from": {}, "they": {}, "them": {}, "been": {}, "will": {},
	"just": {}, "like": {}, "want": {}, "know": {}, "need": {},
	"really": {}, "think": {}, "because": {}, "some": {}, "more": {},
	"user": {}, "assistant": {}, "system": {},
}

// SessionSummary is the structured analysis of one session.
type SessionSummary struct {
	SessionType       string
	Topics            []string
	Keywords          []string
	UserMessages      int
	AssistantMessages int
	MessageCount      int
	Complexity        []string
}

// Summarizer turns a message list into a discoverable one-line summary.
type Summarizer struct {
	classifier  Classifier
	maxKeywords int
}

// New creates a Summarizer. A nil classifier falls back to the keyword
// classifier; a non-positive cap falls back to DefaultMaxKeywords.
func New(classifier Classifier, maxKeywords int) *Summarizer {
	if classifier == nil {
		classifier = NewKeywordClassifier()
	}
	if maxKeywords <= 0 {
		maxKeywords = DefaultMaxKeywords
	}
	return &Summarizer{classifier: classifier, maxKeywords: maxKeywords}
}

// Analyze classifies the session's user messages, tracking how topics
// progress across the conversation. Later messages weigh more: where the
// conversation drifted matters more than where it started.
func (s *Summarizer) Analyze(msgs []message.Message) SessionSummary {
	users, assistants := message.CountByRole(msgs)

	sum := SessionSummary{
		UserMessages:      users,
		AssistantMessages: assistants,
		MessageCount:      len(msgs),
	}

	weights := make(map[string]float64)
	topicKeywords := make(map[string][]string)
	keywordSeen := make(map[string]struct{})

	userIdx := 0
	detailed := 0
	negative := false
	for _, m := range msgs {
		if m.Role != message.RoleUser {
			continue
		}

		cls := s.classifier.Classify(m.Content)

		// Position weight ramps from 1x (first user message) to 2x (last).
		w := 1.0
		if users > 1 {
			w += float64(userIdx) / float64(users-1)
		}
		for _, t := range cls.Topics {
			weights[t] += w
		}
		for topic, kws := range cls.TopicKeywords {
			for _, kw := range kws {
				if _, dup := keywordSeen[kw]; !dup {
					keywordSeen[kw] = struct{}{}
					topicKeywords[topic] = append(topicKeywords[topic], kw)
				}
			}
		}

		if len([]rune(m.Content)) >= detailedQuestionLen {
			detailed++
		}
		if !negative && containsAny(strings.ToLower(m.Content), negativeMarkers) {
			negative = true
		}
		userIdx++
	}

	sum.Topics = rankTopics(weights)
	sum.SessionType = sessionType(sum.Topics, weights)
	sum.Keywords = s.pickKeywords(sum.Topics, topicKeywords, keywordSeen, msgs)

	if negative {
		sum.Complexity = append(sum.Complexity, ComplexityNegativeSentiment)
	}
	if len(sum.Topics) >= diverseTopicsMin {
		sum.Complexity = append(sum.Complexity, ComplexityDiverseTopics)
	}
	if len(msgs) >= longSessionMessages {
		sum.Complexity = append(sum.Complexity, ComplexityLongSession)
	}
	if detailed >= detailedQuestionMin {
		sum.Complexity = append(sum.Complexity, ComplexityDetailedQuestions)
	}

	return sum
}

// Summarize renders the single-line structured summary for ownerName.
// Short sessions get the terse form; longer ones include topics and
// keywords. An empty message list yields a fixed marker, never an error.
func (s *Summarizer) Summarize(msgs []message.Message, ownerName string) string {
	if len(msgs) == 0 {
		return fmt.Sprintf("%s's empty session", ownerName)
	}

	sum := s.Analyze(msgs)

	line := fmt.Sprintf("%s's %s session - %d questions, %d replies",
		ownerName, sum.SessionType, sum.UserMessages, sum.AssistantMessages)

	// Terse form for short sessions.
	if sum.UserMessages <= 2 {
		return line
	}

	if len(sum.Topics) > 0 {
		line += " | topics: " + strings.Join(sum.Topics, ", ")
	}
	if len(sum.Keywords) > 0 {
		line += " | keywords: " + strings.Join(sum.Keywords, ", ")
	}
	if len(sum.Complexity) > 0 {
		line += " | complexity: " + strings.Join(sum.Complexity, ", ")
	}
	return line
}

// pickKeywords prioritizes domain vocabulary over generic tokens, then tops
// up from the user messages' own words, capped at maxKeywords. Domain
// keywords are drawn round-robin across the ranked topics, so a session
// that spans several domains keeps terms from each of them.
func (s *Summarizer) pickKeywords(topics []string, topicKeywords map[string][]string, seen map[string]struct{}, msgs []message.Message) []string {
	var keywords []string
	for i := 0; len(keywords) < s.maxKeywords; i++ {
		progressed := false
		for _, topic := range topics {
			kws := topicKeywords[topic]
			if i >= len(kws) {
				continue
			}
			progressed = true
			if len(keywords) < s.maxKeywords {
				keywords = append(keywords, kws[i])
			}
		}
		if !progressed {
			break
		}
	}
	if len(keywords) >= s.maxKeywords {
		return keywords
	}

	for _, m := range msgs {
		if len(keywords) >= s.maxKeywords {
			break
		}
		if m.Role != message.RoleUser {
			continue
		}
		for _, tok := range tokenize(m.Content) {
			if len(keywords) >= s.maxKeywords {
				break
			}
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			keywords = append(keywords, tok)
		}
	}
	return keywords
}

// tokenize lowercases text and returns candidate keyword tokens with stop
// words and short tokens dropped.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})

	var out []string
	for _, f := range fields {
		if len([]rune(f)) < 4 {
			continue
		}
		if _, stop := stopWords[f]; stop {
			continue
		}
		out = append(out, f)
	}
	return out
}

func isWordRune(r rune) bool {
	return r == '-' || r == '_' ||
		(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9') || r > 127
}

// rankTopics orders topics by accumulated weight, heaviest first, breaking
// ties by the fixed domain order.
func rankTopics(weights map[string]float64) []string {
	var topics []string
	for _, domain := range domainOrder {
		if weights[domain] > 0 {
			topics = append(topics, domain)
		}
	}
	sort.SliceStable(topics, func(i, j int) bool {
		return weights[topics[i]] > weights[topics[j]]
	})
	return topics
}

// sessionType labels the session from its significant topics. Two or more
// significant domains yield a composite label instead of forcing one.
func sessionType(topics []string, weights map[string]float64) string {
	if len(topics) == 0 {
		return "general"
	}

	total := 0.0
	for _, w := range weights {
		total += w
	}

	var significant []string
	for _, t := range topics {
		if weights[t] >= significanceShare*total {
			significant = append(significant, t)
		}
	}

	switch len(significant) {
	case 0:
		return topics[0]
	case 1:
		return significant[0]
	default:
		return significant[0] + "-" + significant[1] + " mixed"
	}
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
