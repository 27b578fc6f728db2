package search

import (
	"regexp"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

var fieldPattern = regexp.MustCompile(`(\w+):("[^"]+"|[^\s]+)`)

// QueryParser handles advanced query syntax parsing
type QueryParser struct {
	// Field mappings for shorthand notation
	fieldAliases map[string]string
}

// NewQueryParser creates a new query parser
func NewQueryParser() *QueryParser {
	return &QueryParser{
		fieldAliases: map[string]string{
			"id":          "identifier",
			"study":       "study_titles",
			"design":      "design_types",
			"factor":      "factors",
			"protocol":    "protocols",
			"ptype":       "protocol_types",
			"measurement": "measurement_types",
			"tech":        "technology_types",
			"technology":  "technology_types",
			"org":         "organisms",
			"organism":    "organisms",
			"node":        "node_names",
			"sample":      "node_names",
		},
	}
}

// ParseAdvancedQuery parses an advanced query string into a Bleve query
func (p *QueryParser) ParseAdvancedQuery(queryStr string) (query.Query, error) {
	queryStr = strings.TrimSpace(queryStr)
	if queryStr == "" {
		return bleve.NewMatchAllQuery(), nil
	}

	if containsBooleanOp(queryStr) {
		return p.parseBooleanQuery(queryStr)
	}

	if fieldPattern.MatchString(queryStr) {
		return p.parseFieldQuery(queryStr)
	}

	if strings.Contains(queryStr, "\"") {
		return p.parsePhraseQuery(queryStr)
	}

	if !strings.Contains(queryStr, " ") && strings.ContainsAny(queryStr, "*?") {
		return bleve.NewWildcardQuery(strings.ToLower(queryStr)), nil
	}

	return bleve.NewQueryStringQuery(queryStr), nil
}

// parseFieldQuery parses field-specific queries like "factor:dose"
func (p *QueryParser) parseFieldQuery(queryStr string) (query.Query, error) {
	matches := fieldPattern.FindAllStringSubmatch(queryStr, -1)

	var queries []query.Query
	for _, match := range matches {
		field := match[1]
		if alias, ok := p.fieldAliases[field]; ok {
			field = alias
		}
		queries = append(queries, p.createFieldQuery(field, match[2]))
	}

	remaining := strings.TrimSpace(fieldPattern.ReplaceAllString(queryStr, ""))
	if remaining != "" {
		queries = append(queries, bleve.NewQueryStringQuery(remaining))
	}

	if len(queries) == 1 {
		return queries[0], nil
	}
	return bleve.NewConjunctionQuery(queries...), nil
}

// parseBooleanQuery parses queries with AND, OR, NOT operators
func (p *QueryParser) parseBooleanQuery(queryStr string) (query.Query, error) {
	orParts := splitByOperator(queryStr, " OR ")
	if len(orParts) > 1 {
		var orQueries []query.Query
		for _, part := range orParts {
			q, err := p.parseAndQuery(part)
			if err != nil {
				return nil, err
			}
			orQueries = append(orQueries, q)
		}
		return bleve.NewDisjunctionQuery(orQueries...), nil
	}
	return p.parseAndQuery(queryStr)
}

// parseAndQuery handles AND and NOT operators
func (p *QueryParser) parseAndQuery(queryStr string) (query.Query, error) {
	var must, mustNot []query.Query

	for _, part := range splitByOperator(queryStr, " AND ") {
		part = strings.TrimSpace(part)
		target := &must
		if strings.HasPrefix(part, "NOT ") {
			part = strings.TrimPrefix(part, "NOT ")
			target = &mustNot
		}
		q, err := p.ParseAdvancedQuery(part)
		if err != nil {
			return nil, err
		}
		*target = append(*target, q)
	}

	if len(mustNot) > 0 {
		boolQuery := bleve.NewBooleanQuery()
		if len(must) == 0 {
			boolQuery.AddMust(bleve.NewMatchAllQuery())
		}
		for _, q := range must {
			boolQuery.AddMust(q)
		}
		for _, q := range mustNot {
			boolQuery.AddMustNot(q)
		}
		return boolQuery, nil
	}

	if len(must) == 1 {
		return must[0], nil
	}
	return bleve.NewConjunctionQuery(must...), nil
}

// parsePhraseQuery handles quoted phrases
func (p *QueryParser) parsePhraseQuery(queryStr string) (query.Query, error) {
	phrasePattern := regexp.MustCompile(`"([^"]+)"`)
	matches := phrasePattern.FindAllStringSubmatch(queryStr, -1)
	if len(matches) == 0 {
		return bleve.NewQueryStringQuery(queryStr), nil
	}

	var queries []query.Query
	for _, match := range matches {
		queries = append(queries, bleve.NewMatchPhraseQuery(match[1]))
	}

	remaining := strings.TrimSpace(phrasePattern.ReplaceAllString(queryStr, ""))
	if remaining != "" {
		queries = append(queries, bleve.NewQueryStringQuery(remaining))
	}

	if len(queries) == 1 {
		return queries[0], nil
	}
	return bleve.NewConjunctionQuery(queries...), nil
}

// createFieldQuery creates appropriate query type based on field
func (p *QueryParser) createFieldQuery(field, value string) query.Query {
	quoted := strings.HasPrefix(value, "\"")
	value = strings.Trim(value, "\"")

	if isKeywordField(field) {
		termQuery := bleve.NewTermQuery(value)
		termQuery.SetField(field)
		return termQuery
	}
	if quoted {
		phraseQuery := bleve.NewMatchPhraseQuery(value)
		phraseQuery.SetField(field)
		return phraseQuery
	}
	matchQuery := bleve.NewMatchQuery(value)
	matchQuery.SetField(field)
	return matchQuery
}

func containsBooleanOp(s string) bool {
	return strings.Contains(s, " AND ") ||
		strings.Contains(s, " OR ") ||
		strings.HasPrefix(s, "NOT ")
}

func splitByOperator(s, op string) []string {
	// Split while respecting quoted strings
	var parts []string
	var current strings.Builder
	inQuotes := false

	for i, word := range strings.Split(s, " ") {
		if strings.Count(word, "\"")%2 == 1 {
			inQuotes = !inQuotes
		}

		if !inQuotes && i > 0 && word == strings.TrimSpace(op) {
			parts = append(parts, current.String())
			current.Reset()
			continue
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}
	return parts
}

func isKeywordField(field string) bool {
	switch field {
	case "identifier", "study_identifiers", "measurement_types", "technology_types", "organisms", "type":
		return true
	}
	return false
}
