// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package index creates the Elasticsearch indices the pipeline searches and
// bulk-loads them from post and user dumps.
package index

import (
	"fmt"
	"strings"
)

// Variant selects an index schema.
type Variant int

const (
	// Unigram is a post index analyzed into lowercase words without
	// stopwords.
	Unigram Variant = iota

	// Bigram is a post index whose text fields are analyzed into word pairs.
	Bigram

	// User is a user-attribute index searched for twins.
	User
)

var variantNames = map[Variant]string{
	Unigram: "unigram",
	Bigram:  "bigram",
	User:    "user",
}

func (v Variant) String() string {
	if s, ok := variantNames[v]; ok {
		return s
	}
	return fmt.Sprintf("Variant(%d)", int(v))
}

// ParseVariant maps a schema name to its Variant.
func ParseVariant(s string) (Variant, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for v, n := range variantNames {
		if n == name {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown index variant %q (want unigram, bigram or user)", s)
}

var stopwords = []string{
	"a", "about", "above", "after", "again", "against", "all", "also", "am", "an", "and", "another", "any",
	"are", "aren't", "as", "at", "back", "be", "because", "been", "before", "being", "below", "between",
	"both", "but", "by", "can't", "cannot", "could", "couldn't", "did", "didn't", "do", "does", "doesn't",
	"doing", "don't", "down", "during", "each", "even", "ever", "every", "few", "first", "five", "for",
	"four", "from", "further", "get", "go", "goes", "had", "hadn't", "has", "hasn't", "have", "haven't",
	"having", "he", "he'd", "he'll", "he's", "her", "here", "here's", "hers", "herself", "high", "him",
	"himself", "his", "how", "how's", "however", "i", "i'd", "i'll", "i'm", "i've", "if", "in", "into",
	"is", "isn't", "it", "it's", "its", "itself", "just", "least", "less", "let's", "like", "long", "made",
	"make", "many", "me", "more", "most", "mustn't", "my", "myself", "never", "new", "no", "nor", "not",
	"now", "of", "off", "old", "on", "once", "one", "only", "or", "other", "ought", "our", "ours",
	"ourselves", "out", "over", "own", "put", "said", "same", "say", "says", "second", "see", "seen",
	"shan't", "she", "she'd", "she'll", "she's", "should", "shouldn't", "since", "so", "some", "still",
	"such", "take", "than", "that", "that's", "the", "their", "theirs", "them", "themselves", "then",
	"there", "there's", "these", "they", "they'd", "they'll", "they're", "they've", "this", "those",
	"three", "through", "to", "too", "two", "under", "until", "up", "very", "was", "wasn't", "way", "we",
	"we'd", "we'll", "we're", "we've", "well", "were", "weren't", "what", "what's", "when", "when's",
	"where", "where's", "whether", "which", "while", "who", "who's", "whom", "why", "why's", "with",
	"won't", "would", "wouldn't", "you", "you'd", "you'll", "you're", "you've", "your", "yours",
	"yourself", "yourselves",
}

// postKeywordFields are the post fields indexed as exact keywords.
var postKeywordFields = []string{
	"subreddit", "author", "category", "content_categories", "domain", "permalink", "removal_reason",
	"report_reasons", "subreddit_id", "subreddit_type", "url", "query", "scale", "lonely",
}

// postFields are the fields kept from each post document.
var postFields = []string{
	"author", "category", "content_categories", "created_utc", "domain", "downs", "gilded", "likes",
	"name", "num_comments", "num_reports", "over_18", "permalink", "post_categories", "removal_reason",
	"report_reasons", "retrieved_on", "score", "selftext", "selftext_html", "subreddit", "subreddit_id",
	"subreddit_type", "title", "ups", "url", "user_reports", "query", "scale", "lonely",
}

// Schema returns the index creation body (settings and mappings) for v.
func Schema(v Variant) map[string]any {
	if v == User {
		return map[string]any{"mappings": userMappings()}
	}

	analyzers := map[string]any{
		"default": map[string]any{
			"tokenizer": "standard",
			"filter":    []string{"lowercase", "filter_stopwords"},
		},
	}
	filters := map[string]any{
		"filter_stopwords": map[string]any{
			"type":      "stop",
			"stopwords": stopwords,
		},
	}
	textAnalyzer := "default"
	if v == Bigram {
		analyzers["analyzer_shingle"] = map[string]any{
			"tokenizer": "standard",
			"filter":    []string{"lowercase", "filter_stopwords", "filter_shingle"},
		}
		filters["filter_shingle"] = map[string]any{
			"type":             "shingle",
			"min_shingle_size": 2,
			"max_shingle_size": 2,
			"output_unigrams":  false,
		}
		textAnalyzer = "analyzer_shingle"
	}

	return map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"analysis": map[string]any{
					"analyzer": analyzers,
					"filter":   filters,
				},
			},
		},
		"mappings": postMappings(textAnalyzer),
	}
}

func postMappings(textAnalyzer string) map[string]any {
	props := map[string]any{
		"title":        map[string]any{"type": "text", "fielddata": true, "analyzer": textAnalyzer},
		"selftext":     map[string]any{"type": "text", "fielddata": true, "analyzer": textAnalyzer},
		"created_utc":  map[string]any{"type": "long"},
		"gilded":       map[string]any{"type": "long"},
		"num_comments": map[string]any{"type": "long"},
		"over_18":      map[string]any{"type": "boolean"},
	}
	for _, f := range postKeywordFields {
		props[f] = map[string]any{"type": "keyword"}
	}
	return map[string]any{"dynamic": false, "properties": props}
}

func userMappings() map[string]any {
	props := map[string]any{"name": map[string]any{"type": "keyword"}}
	for _, f := range []string{"created_utc", "updated_on", "comment_karma", "link_karma", "posts"} {
		props[f] = map[string]any{"type": "long"}
	}
	return map[string]any{"dynamic": false, "properties": props}
}
