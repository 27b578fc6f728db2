package testutil

import (
	"strings"
	"testing"
)

// Fixture data for tests

// TSV joins rows of cells into tab-separated text.
func TSV(rows ...[]string) string {
	var b strings.Builder
	for _, r := range rows {
		b.WriteString(strings.Join(r, "\t"))
		b.WriteByte('\n')
	}
	return b.String()
}

// InvestigationFile is a canonical investigation file with one study and
// two assays.
var InvestigationFile = TSV(
	[]string{"ONTOLOGY SOURCE REFERENCE"},
	[]string{"Term Source Name", "NCBITAXON", "OBI", "UO"},
	[]string{"Term Source File", "http://purl.obolibrary.org/obo/ncbitaxon.owl", "http://purl.obolibrary.org/obo/obi.owl", "http://purl.obolibrary.org/obo/uo.owl"},
	[]string{"Term Source Version", "2024-01-01", "2023-09-20", "2023-05-25"},
	[]string{"Term Source Description", "NCBI Taxonomy", "Ontology for Biomedical Investigations", "Units of measurement ontology"},
	[]string{"INVESTIGATION"},
	[]string{"Investigation Identifier", "INV-LIVER"},
	[]string{"Investigation Title", "Liver dose response"},
	[]string{"Investigation Description", "Transcriptome and metabolome of mouse liver after dosing"},
	[]string{"Investigation Submission Date", "2024-01-15"},
	[]string{"Investigation Public Release Date", "2024-06-01"},
	[]string{"Comment[Created With]", "isakit"},
	[]string{"INVESTIGATION PUBLICATIONS"},
	[]string{"Investigation PubMed ID", "12345678"},
	[]string{"Investigation Publication DOI", "10.1000/liver.2024"},
	[]string{"Investigation Publication Author List", "Doe J, Roe R"},
	[]string{"Investigation Publication Title", "Dose response of the mouse liver"},
	[]string{"Investigation Publication Status", "published"},
	[]string{"Investigation Publication Status Term Accession Number", "http://purl.obolibrary.org/obo/OBI_0001796"},
	[]string{"Investigation Publication Status Term Source REF", "OBI"},
	[]string{"INVESTIGATION CONTACTS"},
	[]string{"Investigation Person Last Name", "Doe"},
	[]string{"Investigation Person First Name", "Jane"},
	[]string{"Investigation Person Mid Initials"},
	[]string{"Investigation Person Email", "jane.doe@example.org"},
	[]string{"Investigation Person Phone"},
	[]string{"Investigation Person Fax"},
	[]string{"Investigation Person Address"},
	[]string{"Investigation Person Affiliation", "Example University"},
	[]string{"Investigation Person Roles", "principal investigator;submitter"},
	[]string{"Investigation Person Roles Term Accession Number", ";"},
	[]string{"Investigation Person Roles Term Source REF", ";"},
	[]string{"STUDY"},
	[]string{"Study Identifier", "S-LIVER"},
	[]string{"Study Title", "Dosed mice"},
	[]string{"Study Description", "Mice dosed at two levels"},
	[]string{"Study Submission Date", "2024-01-15"},
	[]string{"Study Public Release Date", "2024-06-01"},
	[]string{"Study File Name", "s_study.txt"},
	[]string{"STUDY DESIGN DESCRIPTORS"},
	[]string{"Study Design Type", "dose response design"},
	[]string{"Study Design Type Term Accession Number", "http://purl.obolibrary.org/obo/OBI_0001047"},
	[]string{"Study Design Type Term Source REF", "OBI"},
	[]string{"STUDY PUBLICATIONS"},
	[]string{"Study PubMed ID"},
	[]string{"Study Publication DOI"},
	[]string{"Study Publication Author List"},
	[]string{"Study Publication Title"},
	[]string{"Study Publication Status"},
	[]string{"Study Publication Status Term Accession Number"},
	[]string{"Study Publication Status Term Source REF"},
	[]string{"STUDY FACTORS"},
	[]string{"Study Factor Name", "dose"},
	[]string{"Study Factor Type", "dose"},
	[]string{"Study Factor Type Term Accession Number", "http://purl.obolibrary.org/obo/OBI_0000984"},
	[]string{"Study Factor Type Term Source REF", "OBI"},
	[]string{"STUDY ASSAYS"},
	[]string{"Study Assay File Name", "a_transcriptome.txt", "a_metabolome.txt"},
	[]string{"Study Assay Measurement Type", "transcription profiling", "metabolite profiling"},
	[]string{"Study Assay Measurement Type Term Accession Number", "http://purl.obolibrary.org/obo/OBI_0000424", "http://purl.obolibrary.org/obo/OBI_0000366"},
	[]string{"Study Assay Measurement Type Term Source REF", "OBI", "OBI"},
	[]string{"Study Assay Technology Type", "nucleotide sequencing", "mass spectrometry"},
	[]string{"Study Assay Technology Type Term Accession Number", "http://purl.obolibrary.org/obo/OBI_0000626", "http://purl.obolibrary.org/obo/OBI_0000470"},
	[]string{"Study Assay Technology Type Term Source REF", "OBI", "OBI"},
	[]string{"Study Assay Technology Platform", "Illumina", "Agilent"},
	[]string{"STUDY PROTOCOLS"},
	[]string{"Study Protocol Name", "sample collection", "extraction", "sequencing", "mass spectrometry", "data transformation"},
	[]string{"Study Protocol Type", "sample collection", "extraction", "nucleic acid sequencing", "mass spectrometry", "data transformation"},
	[]string{"Study Protocol Type Term Accession Number"},
	[]string{"Study Protocol Type Term Source REF"},
	[]string{"Study Protocol Description", "Livers were excised", "Total RNA or metabolites were extracted", "Paired end sequencing", "LC-MS in positive mode", "Peak picking"},
	[]string{"Study Protocol URI"},
	[]string{"Study Protocol Version"},
	[]string{"Study Protocol Parameters Name", "", "", "instrument", "instrument"},
	[]string{"Study Protocol Parameters Name Term Accession Number"},
	[]string{"Study Protocol Parameters Name Term Source REF"},
	[]string{"Study Protocol Components Name"},
	[]string{"Study Protocol Components Type"},
	[]string{"Study Protocol Components Type Term Accession Number"},
	[]string{"Study Protocol Components Type Term Source REF"},
	[]string{"STUDY CONTACTS"},
	[]string{"Study Person Last Name", "Roe"},
	[]string{"Study Person First Name", "Richard"},
	[]string{"Study Person Mid Initials", "R"},
	[]string{"Study Person Email", "r.roe@example.org"},
	[]string{"Study Person Phone"},
	[]string{"Study Person Fax"},
	[]string{"Study Person Address"},
	[]string{"Study Person Affiliation", "Example University"},
	[]string{"Study Person Roles", "curator"},
	[]string{"Study Person Roles Term Accession Number"},
	[]string{"Study Person Roles Term Source REF"},
)

// StudyTable is the study table of the fixture bundle.
var StudyTable = TSV(
	[]string{"Source Name", "Characteristics[Organism]", "Term Source REF", "Term Accession Number", "Protocol REF", "Sample Name", "Characteristics[organism part]", "Factor Value[dose]", "Unit", "Term Source REF", "Term Accession Number"},
	[]string{"mouse1", "Mus musculus", "NCBITAXON", "http://purl.obolibrary.org/obo/NCBITaxon_10090", "sample collection", "liver1", "liver", "10", "milligram per kilogram", "UO", "http://purl.obolibrary.org/obo/UO_0000308"},
	[]string{"mouse1", "Mus musculus", "NCBITAXON", "http://purl.obolibrary.org/obo/NCBITaxon_10090", "sample collection", "liver2", "liver", "20", "milligram per kilogram", "UO", "http://purl.obolibrary.org/obo/UO_0000308"},
	[]string{"mouse2", "Mus musculus", "NCBITAXON", "http://purl.obolibrary.org/obo/NCBITaxon_10090", "sample collection", "liver3", "liver", "10", "milligram per kilogram", "UO", "http://purl.obolibrary.org/obo/UO_0000308"},
)

// TranscriptomeTable is a sequencing assay table of the fixture bundle.
var TranscriptomeTable = TSV(
	[]string{"Sample Name", "Protocol REF", "Extract Name", "Material Type", "Protocol REF", "Parameter Value[instrument]", "Performer", "Date", "Assay Name", "Raw Data File", "Comment[checksum]"},
	[]string{"liver1", "extraction", "rna1", "RNA", "sequencing", "Illumina HiSeq 2500", "Core facility", "2024-02-01", "run1", "run1.fastq.gz", "9b2c"},
	[]string{"liver2", "extraction", "rna2", "RNA", "sequencing", "Illumina HiSeq 2500", "Core facility", "2024-02-01", "run2", "run2.fastq.gz", "77e1"},
	[]string{"liver3", "extraction", "rna3", "RNA", "sequencing", "Illumina HiSeq 2500", "", "2024-02-02", "run3", "run3.fastq.gz", ""},
)

// MetabolomeTable is a mass spectrometry assay table of the fixture bundle.
var MetabolomeTable = TSV(
	[]string{"Sample Name", "Protocol REF", "Extract Name", "Protocol REF", "Parameter Value[instrument]", "MS Assay Name", "Raw Spectral Data File", "Protocol REF", "Data Transformation Name", "Derived Spectral Data File"},
	[]string{"liver1", "extraction", "met1", "mass spectrometry", "Agilent 6550 QTOF", "ms1", "ms1.mzML", "data transformation", "dt1", "metabolites.tsv"},
	[]string{"liver2", "extraction", "met2", "mass spectrometry", "Agilent 6550 QTOF", "ms2", "ms2.mzML", "data transformation", "dt2", "metabolites.tsv"},
)

// Bundle returns the files of the fixture bundle keyed by file name.
func Bundle() map[string]string {
	return map[string]string{
		"i_investigation.txt": InvestigationFile,
		"s_study.txt":         StudyTable,
		"a_transcriptome.txt": TranscriptomeTable,
		"a_metabolome.txt":    MetabolomeTable,
	}
}

// WriteBundle writes the fixture bundle into a temporary directory and
// returns its path and a cleanup function.
func WriteBundle(t *testing.T) (string, func()) {
	t.Helper()
	dir, cleanup := TempDir(t)
	WriteFiles(t, dir, Bundle())
	return dir, cleanup
}
