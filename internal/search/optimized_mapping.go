package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// createInvestigationMapping maps Doc fields. Free text goes through the
// standard analyzer; controlled terms (measurement types, technology types,
// organisms) are keywords so they facet and filter exactly.
func createInvestigationMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "standard"

	docMapping := bleve.NewDocumentMapping()

	docMapping.AddFieldMappingsAt("type", createKeywordField(true, false))
	docMapping.AddFieldMappingsAt("identifier", createKeywordField(true, true))
	docMapping.AddFieldMappingsAt("title", createTextField(true, true))
	docMapping.AddFieldMappingsAt("description", createTextField(false, true))
	docMapping.AddFieldMappingsAt("source", createDisabledField())

	docMapping.AddFieldMappingsAt("study_identifiers", createKeywordField(false, true))
	docMapping.AddFieldMappingsAt("study_titles", createTextField(false, true))
	docMapping.AddFieldMappingsAt("study_descriptions", createTextField(false, true))
	docMapping.AddFieldMappingsAt("design_types", createTextField(false, true))
	docMapping.AddFieldMappingsAt("factors", createTextField(false, true))
	docMapping.AddFieldMappingsAt("protocols", createTextField(false, true))
	docMapping.AddFieldMappingsAt("protocol_types", createTextField(false, true))

	docMapping.AddFieldMappingsAt("measurement_types", createKeywordField(false, true))
	docMapping.AddFieldMappingsAt("technology_types", createKeywordField(false, true))
	docMapping.AddFieldMappingsAt("organisms", createKeywordField(false, true))

	// node names can be numerous; searchable but not stored
	docMapping.AddFieldMappingsAt("node_names", createTextField(false, true))

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

func createKeywordField(store bool, includeInAll bool) *mapping.FieldMapping {
	fieldMapping := bleve.NewTextFieldMapping()
	fieldMapping.Analyzer = "keyword"
	fieldMapping.Store = store
	fieldMapping.IncludeInAll = includeInAll
	fieldMapping.IncludeTermVectors = false
	fieldMapping.DocValues = true
	return fieldMapping
}

func createTextField(store bool, includeInAll bool) *mapping.FieldMapping {
	fieldMapping := bleve.NewTextFieldMapping()
	fieldMapping.Analyzer = "standard"
	fieldMapping.Store = store
	fieldMapping.IncludeInAll = includeInAll
	fieldMapping.IncludeTermVectors = true
	fieldMapping.DocValues = false
	return fieldMapping
}

func createDisabledField() *mapping.FieldMapping {
	fieldMapping := bleve.NewTextFieldMapping()
	fieldMapping.Index = false
	fieldMapping.Store = true
	fieldMapping.IncludeInAll = false
	fieldMapping.DocValues = false
	return fieldMapping
}
