package classifier

import (
	"regexp"
	"strings"
)

// Class is the freshness category of a query.
type Class string

const (
	TimeSensitive Class = "time_sensitive"
	Evergreen     Class = "evergreen"
)

// Topic is the cache partition tag derived from lexicon matches.
type Topic string

const (
	TopicWeather    Topic = "weather"
	TopicFinance    Topic = "finance"
	TopicSports     Topic = "sports"
	TopicTechnology Topic = "technology"
	TopicScience    Topic = "science"
	TopicHistory    Topic = "history"
	TopicGeography  Topic = "geography"
	TopicNews       Topic = "news"
	TopicGeneral    Topic = "general"
)

// Classification is the immutable output of Classify.
type Classification struct {
	Class     Class
	Topic     Topic
	Threshold float64
	TTLSecs   int64
}

// cachingParams maps class to the fixed (threshold, ttl) pair. This is
// the only place that mapping lives — §3 of the design.
var cachingParams = map[Class]struct {
	threshold float64
	ttlSecs   int64
}{
	TimeSensitive: {threshold: 0.15, ttlSecs: 300},
	Evergreen:     {threshold: 0.30, ttlSecs: 604800},
}

func compileAll(patterns []string) []*regexp.Regexp {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return compiled
}

// evergreenPatterns, matched first, override the time-sensitive lexicon
// for fact-style queries whose words happen to overlap it (e.g. "what
// year did the stock market crash").
var evergreenPatterns = compileAll([]string{
	`who was the first`,
	`what year did`,
	`definition of`,
	`what is a\b`,
	`how do you`,
	`history of`,
})

var timeSensitivePatterns = compileAll([]string{
	`\btoday\b`,
	`\bnow\b`,
	`\bcurrent(ly)?\b`,
	`\blatest\b`,
	`\brecent(ly)?\b`,
	`\byesterday\b`,
	`\btomorrow\b`,
	`\bthis week\b`,
	`\btonight\b`,
	`\bweather\b`,
	`\bforecast\b`,
	`\btemperature\b`,
	`\bnews\b`,
	`\bheadlines?\b`,
	`\bbreaking\b`,
	`\bstock\b`,
	`\bprice\b`,
	`\bmarket\b`,
	`\btrading\b`,
	`\bbitcoin\b`,
	`\bscore\b`,
	`\bgame\b`,
	`\bmatch\b`,
	`\bwon\b`,
	`\blost\b`,
})

// topicOrder fixes the tie-break order for the topic stage: on equal
// scores the earliest-declared topic here wins. Declaration order below
// mirrors the external contract's enumeration in the topic lexicon table.
var topicOrder = []Topic{
	TopicWeather,
	TopicFinance,
	TopicSports,
	TopicTechnology,
	TopicScience,
	TopicHistory,
	TopicGeography,
	TopicNews,
}

var topicPatterns = map[Topic][]*regexp.Regexp{
	TopicWeather: compileAll([]string{
		`\bweather\b`, `\bforecast\b`, `\btemperature\b`, `\brain\b`, `\bsunny\b`,
		`\bcloudy\b`, `\bsnow\b`, `\bhumidity\b`, `\bclimate\b`,
	}),
	TopicFinance: compileAll([]string{
		`\bstock\b`, `\bprice\b`, `\bmarket\b`, `\btrading\b`, `\bbitcoin\b`, `\bcrypto\b`,
		`\binvest\b`, `\bdividend\b`, `\bshares\b`, `\bportfolio\b`, `\bindex\b`,
		`\bnasdaq\b`, `s&p`,
	}),
	TopicSports: compileAll([]string{
		`\bscore\b`, `\bgame\b`, `\bmatch\b`, `\bteam\b`, `\bplayer\b`, `\bwon\b`, `\blost\b`,
		`\bchampionship\b`, `\bleague\b`, `\btournament\b`, `\bfootball\b`, `\bbasketball\b`,
		`\bsoccer\b`, `\btennis\b`, `\bolympic\b`,
	}),
	TopicTechnology: compileAll([]string{
		`\bprogramming\b`, `\bsoftware\b`, `\bcode\b`, `\bcomputer\b`, `\balgorithm\b`,
		`\bdatabase\b`, `\bapi\b`, `\bpython\b`, `\bjavascript\b`, `\bjava\b`, `\brust\b`,
		`machine learning`, `\bai\b`, `artificial intelligence`, `\bneural\b`, `deep learning`,
		`\bframework\b`, `\blibrary\b`,
	}),
	TopicScience: compileAll([]string{
		`\bphysics\b`, `\bchemistry\b`, `\bbiology\b`, `\bmath\b`, `\bscience\b`, `\batom\b`,
		`\bmolecule\b`, `\bcell\b`, `\bdna\b`, `\bevolution\b`, `\btheory\b`, `\bexperiment\b`,
		`\bquantum\b`, `\brelativity\b`, `\bgravity\b`,
	}),
	TopicHistory: compileAll([]string{
		`\bhistory\b`, `\bhistorical\b`, `\bwar\b`, `\bcentury\b`, `\bancient\b`, `\bempire\b`,
		`\bking\b`, `\bqueen\b`, `\bpresident\b`, `\brevolution\b`, `\bcivilization\b`,
		`\bcolonial\b`, `\bmedieval\b`,
	}),
	TopicGeography: compileAll([]string{
		`\bcapital\b`, `\bcountry\b`, `\bcity\b`, `\bcontinent\b`, `\bocean\b`, `\bmountain\b`,
		`\briver\b`, `\bisland\b`, `\bpopulation\b`, `\bgeography\b`, `\blocation\b`, `\bregion\b`,
	}),
	TopicNews: compileAll([]string{
		`\bnews\b`, `\bheadlines?\b`, `\bbreaking\b`, `\breport\b`, `\bannounce\b`,
		`\belection\b`, `\bpolitics\b`, `\bgovernment\b`,
	}),
}

// Classify applies the class and topic stages to a query and resolves
// the fixed (threshold, ttl) policy for the resulting class. It is pure
// and deterministic: Classify(s) == Classify(s) and Classify(s) ==
// Classify(strings.ToLower(s)).
func Classify(query string) Classification {
	lowered := strings.ToLower(query)

	class := classify(lowered)
	topic := classifyTopic(lowered)
	params := cachingParams[class]

	return Classification{
		Class:     class,
		Topic:     topic,
		Threshold: params.threshold,
		TTLSecs:   params.ttlSecs,
	}
}

func classify(lowered string) Class {
	for _, p := range evergreenPatterns {
		if p.MatchString(lowered) {
			return Evergreen
		}
	}

	matches := 0
	for _, p := range timeSensitivePatterns {
		if p.MatchString(lowered) {
			matches++
		}
	}
	if matches >= 1 {
		return TimeSensitive
	}
	return Evergreen
}

func classifyTopic(lowered string) Topic {
	best := TopicGeneral
	bestScore := 0

	for _, topic := range topicOrder {
		score := 0
		for _, p := range topicPatterns[topic] {
			if p.MatchString(lowered) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			best = topic
		}
	}
	return best
}

// NormalizeTopic maps any topic string outside the closed set to
// "general", per invariant 4.
func NormalizeTopic(t string) Topic {
	switch Topic(t) {
	case TopicWeather, TopicFinance, TopicSports, TopicTechnology, TopicScience,
		TopicHistory, TopicGeography, TopicNews, TopicGeneral:
		return Topic(t)
	default:
		return TopicGeneral
	}
}
