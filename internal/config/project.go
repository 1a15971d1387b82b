package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dealtimeline/internal/risk"
	"dealtimeline/internal/schedule"
	"dealtimeline/internal/templates"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
	yaml "go.yaml.in/yaml/v3"
)

var ErrProjectFormat = errors.New("config: unsupported project file format")

// ProjectFile is the on-disk shape of a deal project. JSON, YAML and HCL files
// map onto it.
//
// When Tasks is empty and Template is set, the template's tasks are used.
type ProjectFile struct {
	Name         string        `json:"name" yaml:"name"`
	StartDate    string        `json:"start_date" yaml:"start_date"`
	Jurisdiction string        `json:"jurisdiction,omitempty" yaml:"jurisdiction,omitempty"`
	Template     string        `json:"template,omitempty" yaml:"template,omitempty"`
	VDD          bool          `json:"vdd,omitempty" yaml:"vdd,omitempty"`
	Tasks        []TaskSpec    `json:"tasks,omitempty" yaml:"tasks,omitempty"`
	Absences     []AbsenceSpec `json:"absences,omitempty" yaml:"absences,omitempty"`
}

type TaskSpec struct {
	ID            string   `json:"id" yaml:"id" hcl:"id,label"`
	Name          string   `json:"name" yaml:"name" hcl:"name,attr"`
	Phase         string   `json:"phase,omitempty" yaml:"phase,omitempty" hcl:"phase,optional"`
	DurationWeeks float64  `json:"duration_weeks" yaml:"duration_weeks" hcl:"duration_weeks,optional"`
	Predecessors  []string `json:"predecessors,omitempty" yaml:"predecessors,omitempty" hcl:"predecessors,optional"`
	Category      string   `json:"category,omitempty" yaml:"category,omitempty" hcl:"category,optional"`
}

type AbsenceSpec struct {
	Person string `json:"person" yaml:"person" hcl:"person,label"`
	Start  string `json:"start" yaml:"start" hcl:"start,attr"`
	End    string `json:"end" yaml:"end" hcl:"end,attr"`
}

type hclProjectFile struct {
	Name         string        `hcl:"name,attr"`
	StartDate    string        `hcl:"start_date,attr"`
	Jurisdiction string        `hcl:"jurisdiction,optional"`
	Template     string        `hcl:"template,optional"`
	VDD          bool          `hcl:"vdd,optional"`
	Tasks        []TaskSpec    `hcl:"task,block"`
	Absences     []AbsenceSpec `hcl:"absence,block"`
}

// LoadedProject is a project file resolved into domain values.
type LoadedProject struct {
	Project  *schedule.Project
	Absences []risk.Absence
	Source   string
}

// LoadProject reads a .json, .yaml/.yml or .hcl project file. defaultJurisdiction
// is used when the file does not name one.
func LoadProject(path, defaultJurisdiction string) (*LoadedProject, error) {
	pf, err := ReadProjectFile(path)
	if err != nil {
		return nil, err
	}
	lp, err := pf.Resolve(defaultJurisdiction)
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", path, err)
	}
	lp.Source = path
	return lp, nil
}

// ReadProjectFile decodes a project file without resolving it.
func ReadProjectFile(path string) (*ProjectFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf ProjectFile
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".hcl":
		if err := decodeProjectHCL(path, b, &pf); err != nil {
			return nil, err
		}
	case ".json", ".yaml", ".yml":
		jb, _, err := coerceToJSONBytes(path, b)
		if err != nil {
			return nil, err
		}
		if err := decodeStrict(jb, &pf); err != nil {
			return nil, fmt.Errorf("project %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrProjectFormat, ext)
	}
	return &pf, nil
}

func decodeProjectHCL(path string, src []byte, pf *ProjectFile) error {
	parser := hclparse.NewParser()
	f, diags := parser.ParseHCL(src, path)
	if diags.HasErrors() {
		return fmt.Errorf("failed to parse HCL file %s: %w", path, diags)
	}
	var raw hclProjectFile
	if diags := gohcl.DecodeBody(f.Body, nil, &raw); diags.HasErrors() {
		return fmt.Errorf("failed to decode HCL file %s: %w", path, diags)
	}
	*pf = ProjectFile{
		Name:         raw.Name,
		StartDate:    raw.StartDate,
		Jurisdiction: raw.Jurisdiction,
		Template:     raw.Template,
		VDD:          raw.VDD,
		Tasks:        raw.Tasks,
		Absences:     raw.Absences,
	}
	return nil
}

// Resolve turns the file into a schedule.Project plus absences. It does not
// validate task ids; that is Project.Validate's job.
func (pf *ProjectFile) Resolve(defaultJurisdiction string) (*LoadedProject, error) {
	start, err := ParseDate(pf.StartDate)
	if err != nil {
		return nil, fmt.Errorf("start_date: %w", err)
	}
	jur := strings.TrimSpace(pf.Jurisdiction)
	if jur == "" {
		jur = strings.TrimSpace(defaultJurisdiction)
	}

	var p *schedule.Project
	if len(pf.Tasks) == 0 && strings.TrimSpace(pf.Template) != "" {
		p = templates.ByName(pf.Template, start, jur)
		if pf.Name != "" {
			p.Name = pf.Name
		}
	} else {
		p = &schedule.Project{Name: pf.Name, StartDate: start, Jurisdiction: jur}
		tasks := make([]schedule.Task, 0, len(pf.Tasks))
		for _, ts := range pf.Tasks {
			cat, err := schedule.ParseCategory(ts.Category)
			if err != nil {
				return nil, fmt.Errorf("task %q: %w", ts.ID, err)
			}
			tasks = append(tasks, schedule.Task{
				ID:            strings.TrimSpace(ts.ID),
				Name:          ts.Name,
				Phase:         ts.Phase,
				DurationWeeks: ts.DurationWeeks,
				Predecessors:  trimAll(ts.Predecessors),
				Category:      cat,
			})
		}
		p.ReplaceTasks(tasks)
	}
	if pf.VDD {
		templates.InjectVendorDueDiligence(p)
	}

	absences := make([]risk.Absence, 0, len(pf.Absences))
	for i, as := range pf.Absences {
		a := risk.Absence{Person: strings.TrimSpace(as.Person)}
		if a.Start, err = ParseDate(as.Start); err != nil {
			return nil, fmt.Errorf("absences[%d].start: %w", i, err)
		}
		if a.End, err = ParseDate(as.End); err != nil {
			return nil, fmt.Errorf("absences[%d].end: %w", i, err)
		}
		if err := a.Validate(); err != nil {
			return nil, fmt.Errorf("absences[%d]: %w", i, err)
		}
		absences = append(absences, a)
	}
	return &LoadedProject{Project: p, Absences: absences}, nil
}

// NewProjectFile captures p (tasks included) and absences in file form.
func NewProjectFile(p *schedule.Project, absences []risk.Absence) *ProjectFile {
	pf := &ProjectFile{
		Name:         p.Name,
		StartDate:    p.StartDate.Format(DateLayout),
		Jurisdiction: p.Jurisdiction,
	}
	for _, t := range p.Tasks {
		pf.Tasks = append(pf.Tasks, TaskSpec{
			ID:            t.ID,
			Name:          t.Name,
			Phase:         t.Phase,
			DurationWeeks: t.DurationWeeks,
			Predecessors:  append([]string(nil), t.Predecessors...),
			Category:      string(t.Category),
		})
	}
	for _, a := range absences {
		pf.Absences = append(pf.Absences, AbsenceSpec{
			Person: a.Person,
			Start:  a.Start.Format(DateLayout),
			End:    a.End.Format(DateLayout),
		})
	}
	return pf
}

// SaveProjectFile writes pf in the format implied by path's extension.
func SaveProjectFile(path string, pf *ProjectFile) error {
	var (
		b   []byte
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		b, err = json.MarshalIndent(pf, "", "  ")
		b = append(b, '\n')
	case ".yaml", ".yml":
		b, err = yaml.Marshal(pf)
	case ".hcl":
		b = encodeProjectHCL(pf)
	default:
		return fmt.Errorf("%w: %q", ErrProjectFormat, ext)
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, b, 0o644)
}

func encodeProjectHCL(pf *ProjectFile) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()
	body.SetAttributeValue("name", cty.StringVal(pf.Name))
	body.SetAttributeValue("start_date", cty.StringVal(pf.StartDate))
	if pf.Jurisdiction != "" {
		body.SetAttributeValue("jurisdiction", cty.StringVal(pf.Jurisdiction))
	}
	if pf.Template != "" {
		body.SetAttributeValue("template", cty.StringVal(pf.Template))
	}
	if pf.VDD {
		body.SetAttributeValue("vdd", cty.True)
	}

	for _, t := range pf.Tasks {
		body.AppendNewline()
		tb := body.AppendNewBlock("task", []string{t.ID}).Body()
		tb.SetAttributeValue("name", cty.StringVal(t.Name))
		if t.Phase != "" {
			tb.SetAttributeValue("phase", cty.StringVal(t.Phase))
		}
		tb.SetAttributeValue("duration_weeks", cty.NumberFloatVal(t.DurationWeeks))
		if len(t.Predecessors) > 0 {
			vals := make([]cty.Value, 0, len(t.Predecessors))
			for _, p := range t.Predecessors {
				vals = append(vals, cty.StringVal(p))
			}
			tb.SetAttributeValue("predecessors", cty.ListVal(vals))
		}
		if t.Category != "" && t.Category != string(schedule.CategoryStandard) {
			tb.SetAttributeValue("category", cty.StringVal(t.Category))
		}
	}
	for _, a := range pf.Absences {
		body.AppendNewline()
		ab := body.AppendNewBlock("absence", []string{a.Person}).Body()
		ab.SetAttributeValue("start", cty.StringVal(a.Start))
		ab.SetAttributeValue("end", cty.StringVal(a.End))
	}
	return f.Bytes()
}

func trimAll(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
