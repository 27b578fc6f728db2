package investigation

import (
	"log/slog"
	"path/filepath"

	isaerr "github.com/nishad/isakit/internal/errors"
	"github.com/nishad/isakit/internal/graph"
	"github.com/nishad/isakit/internal/models"
	"github.com/nishad/isakit/internal/tabular"
)

// Options configures Load.
type Options struct {
	Logger *slog.Logger
	// SkipTables reads the investigation file only.
	SkipTables bool
	// Pattern matches the investigation file of a directory; FilePattern
	// if empty.
	Pattern string
	// StrictKeys rejects unknown investigation keys instead of warning.
	StrictKeys bool
}

// Load locates the investigation file under path, reads it and builds the
// graph of every declared study and assay table. Table references are
// checked against the declarations of the enclosing study and investigation.
func Load(path string, opts Options) (*models.Investigation, error) {
	const op isaerr.Op = "investigation.Load"
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	file, err := LocateGlob(path, opts.Pattern)
	if err != nil {
		return nil, err
	}
	inv, err := readFile(file, opts.StrictKeys, logger)
	if err != nil {
		return nil, err
	}
	if err := CheckOntologySources(inv); err != nil {
		return nil, isaerr.Wrap(op, isaerr.E(isaerr.Pos{Path: file}, err))
	}
	if opts.SkipTables {
		return inv, nil
	}

	dir := filepath.Dir(file)
	for _, study := range inv.Studies {
		scope := models.StudyScope{Investigation: inv, Study: study}
		if study.Filename == "" {
			logger.Warn("study declares no table", "study", study.Identifier)
		} else {
			g, err := loadTable(filepath.Join(dir, study.Filename), study.Filename, graph.StudyTable, scope, logger)
			if err != nil {
				return nil, isaerr.Wrap(op, err)
			}
			study.Graph = g
		}
		for _, assay := range study.Assays {
			if assay.Filename == "" {
				logger.Warn("assay declares no table", "study", study.Identifier)
				continue
			}
			g, err := loadTable(filepath.Join(dir, assay.Filename), assay.Filename, graph.AssayTable, scope, logger)
			if err != nil {
				return nil, isaerr.Wrap(op, err)
			}
			assay.Graph = g
			warnUnknownSamples(study, assay, logger)
		}
	}
	return inv, nil
}

func loadTable(path, name string, table graph.TableKind, scope graph.Scope, logger *slog.Logger) (*models.Graph, error) {
	t, err := tabular.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g, err := graph.BuildTable(t, graph.Options{Scope: scope, Table: table, Logger: logger})
	if err != nil {
		return nil, err
	}
	g.Filename = name
	logger.Debug("built graph", "table", name, "nodes", len(g.Nodes), "edges", len(g.Edges))
	return g, nil
}

// warnUnknownSamples reports assay samples that the study table never produced.
func warnUnknownSamples(study *models.Study, assay *models.Assay, logger *slog.Logger) {
	if study.Graph == nil || assay.Graph == nil {
		return
	}
	for _, i := range assay.Graph.NodesOf(models.NodeSample) {
		n := assay.Graph.Nodes[i]
		if _, ok := study.Graph.Lookup(n.Key()); !ok {
			logger.Warn("assay sample is not defined by the study table",
				"assay", assay.Filename, "sample", n.Name, "row", n.Row)
		}
	}
}

// CheckOntologySources reports the first ontology annotation of the
// investigation file whose source is not declared.
func CheckOntologySources(inv *models.Investigation) error {
	check := func(where string, oa models.OntologyAnnotation) error {
		if oa.Source == "" {
			return nil
		}
		if _, ok := inv.OntologySource(oa.Source); ok {
			return nil
		}
		return isaerr.Errorf("investigation.CheckOntologySources", isaerr.KindUnresolvedReference, isaerr.Pos{},
			"%s refers to undeclared ontology source %q", where, oa.Source)
	}
	checkAll := func(where string, list []models.OntologyAnnotation) error {
		for _, oa := range list {
			if err := check(where, oa); err != nil {
				return err
			}
		}
		return nil
	}
	people := func(where string, list []models.Person) error {
		for _, p := range list {
			if err := checkAll(where+" "+p.LastName+" roles", p.Roles); err != nil {
				return err
			}
		}
		return nil
	}
	pubs := func(where string, list []models.Publication) error {
		for _, p := range list {
			if err := check(where+" status", p.Status); err != nil {
				return err
			}
		}
		return nil
	}

	if err := people("investigation contact", inv.Contacts); err != nil {
		return err
	}
	if err := pubs("investigation publication", inv.Publications); err != nil {
		return err
	}
	for _, s := range inv.Studies {
		prefix := "study " + s.Identifier
		if err := checkAll(prefix+" design descriptor", s.DesignDescriptors); err != nil {
			return err
		}
		if err := pubs(prefix+" publication", s.Publications); err != nil {
			return err
		}
		if err := people(prefix+" contact", s.Contacts); err != nil {
			return err
		}
		for _, f := range s.Factors {
			if err := check(prefix+" factor "+f.Name, f.Type); err != nil {
				return err
			}
		}
		for _, a := range s.Assays {
			if err := check(prefix+" assay "+a.Filename+" measurement type", a.MeasurementType); err != nil {
				return err
			}
			if err := check(prefix+" assay "+a.Filename+" technology type", a.TechnologyType); err != nil {
				return err
			}
		}
		for _, p := range s.Protocols {
			if err := check(prefix+" protocol "+p.Name+" type", p.Type); err != nil {
				return err
			}
			if err := checkAll(prefix+" protocol "+p.Name+" parameter", p.Parameters); err != nil {
				return err
			}
			for _, c := range p.Components {
				if err := check(prefix+" protocol "+p.Name+" component "+c.Name, c.Type); err != nil {
					return err
				}
			}
		}
	}
	return nil
}
