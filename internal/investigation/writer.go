package investigation

import (
	"bytes"
	"io"
	"os"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/models"
	"github.com/nishad/isakit/internal/tabular"
)

// Records renders inv as investigation file records in canonical section
// and key order.
func Records(inv *models.Investigation) [][]string {
	var rows [][]string
	section := func(name string, body [][]string) {
		rows = append(rows, []string{name})
		for _, r := range body {
			rows = append(rows, tabular.TrimTrailingEmpty(r))
		}
	}

	info := *inv
	section(SectionOntologySources, ontologySources.encode(inv.OntologySources))
	section(SectionInvestigation, investigationInfo.encode([]models.Investigation{info}))
	section(SectionInvestigationPubs, investigationPubs.encode(inv.Publications))
	section(SectionInvestigationContacts, investigationContacts.encode(inv.Contacts))

	for _, s := range inv.Studies {
		assays := make([]models.Assay, len(s.Assays))
		for i, a := range s.Assays {
			assays[i] = *a
		}
		section(SectionStudy, studyInfo.encode([]models.Study{*s}))
		section(SectionStudyDesignDescriptors, designDescriptors.encode(s.DesignDescriptors))
		section(SectionStudyPubs, studyPubs.encode(s.Publications))
		section(SectionStudyFactors, studyFactors.encode(s.Factors))
		section(SectionStudyAssays, studyAssays.encode(assays))
		section(SectionStudyProtocols, studyProtocols.encode(s.Protocols))
		section(SectionStudyContacts, studyContacts.encode(s.Contacts))
	}
	return rows
}

// Write writes inv as an investigation file.
func Write(w io.Writer, inv *models.Investigation) error {
	return tabular.WriteRecords(w, Records(inv))
}

// WriteFile writes inv to path.
func WriteFile(path string, inv *models.Investigation) error {
	const op isaerr.Op = "investigation.WriteFile"

	var buf bytes.Buffer
	if err := Write(&buf, inv); err != nil {
		return isaerr.Wrap(op, err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return isaerr.IO(op, path, err)
	}
	return nil
}
