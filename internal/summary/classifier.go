// Package summary produces deterministic, rule-based analyses of session
// transcripts. It runs on the teardown path, so it never calls a model
// service: summarization must not add a failure mode at the moment
// resources are being reclaimed.
package summary

import "strings"

// Topic domain labels.
const (
	TopicCareer           = "career"
	TopicTechnical        = "technical"
	TopicEntrepreneurship = "entrepreneurship"
	TopicEducation        = "education"
)

// Classification is the outcome of classifying one piece of text.
type Classification struct {
	// Topics lists the matched domains, in fixed domain order.
	Topics []string
	// Keywords lists the domain vocabulary found in the text, deduplicated.
	Keywords []string
	// TopicKeywords groups the found vocabulary by domain.
	TopicKeywords map[string][]string
}

// Classifier maps free text onto topic domains. The heuristic
// implementation can be swapped without touching lifecycle or build
// orchestration.
type Classifier interface {
	Classify(text string) Classification
}

// domainOrder fixes iteration order so classification is deterministic.
var domainOrder = []string{TopicCareer, TopicTechnical, TopicEntrepreneurship, TopicEducation}

// domainVocabulary holds the per-domain keyword sets checked by containment.
var domainVocabulary = map[string][]string{
	TopicCareer: {
		"career", "job", "role", "promotion", "salary", "interview",
		"resume", "transition", "position", "leadership", "mentoring",
	},
	TopicTechnical: {
		"programming", "developer", "backend", "frontend", "devops",
		"database", "python", "golang", "kubernetes", "cloud",
		"machine learning", "data science", "architecture", "coding", "api",
	},
	TopicEntrepreneurship: {
		"startup", "founder", "business", "funding", "venture",
		"market", "customer", "revenue", "pitch", "cofounder",
	},
	TopicEducation: {
		"course", "certification", "bootcamp", "degree", "curriculum",
		"tutorial", "study plan", "exam", "training", "lecture",
	},
}

// KeywordClassifier classifies by keyword containment against the fixed
// per-domain vocabularies.
type KeywordClassifier struct {
	vocabulary map[string][]string
}

// NewKeywordClassifier creates a classifier with the default vocabularies.
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{vocabulary: domainVocabulary}
}

// Compile-time interface check.
var _ Classifier = (*KeywordClassifier)(nil)

// Classify reports the domains and domain keywords present in text.
func (c *KeywordClassifier) Classify(text string) Classification {
	lower := strings.ToLower(text)

	cls := Classification{TopicKeywords: make(map[string][]string)}
	seen := make(map[string]struct{})

	for _, domain := range domainOrder {
		matched := false
		for _, kw := range c.vocabulary[domain] {
			if !strings.Contains(lower, kw) {
				continue
			}
			matched = true
			if _, dup := seen[kw]; !dup {
				seen[kw] = struct{}{}
				cls.Keywords = append(cls.Keywords, kw)
				cls.TopicKeywords[domain] = append(cls.TopicKeywords[domain], kw)
			}
		}
		if matched {
			cls.Topics = append(cls.Topics, domain)
		}
	}

	return cls
}
