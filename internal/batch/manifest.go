package batch

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/Thekiidd/pdfpulse"
	"github.com/Thekiidd/pdfpulse/internal/config"
	"github.com/Thekiidd/pdfpulse/validate"
)

// Manifest describes a batch of jobs in YAML:
//
//	jobs:
//	  - name: report
//	    operation: merge
//	    files: [cover.pdf, body.pdf]
//	  - operation: images
//	    files: [a.png, b.jpg]
//	    page_size: a4
type Manifest struct {
	Jobs []Entry `yaml:"jobs"`

	// dir resolves relative file paths.
	dir string
}

// Entry is one job in a manifest. Zero-valued options keep the defaults
// supplied by the caller.
type Entry struct {
	Name         string   `yaml:"name"`
	Operation    string   `yaml:"operation"`
	Files        []string `yaml:"files"`
	Output       string   `yaml:"output"`
	Quality      int      `yaml:"quality"`
	MaxDimension int      `yaml:"max_dimension"`
	PageSize     string   `yaml:"page_size"`
}

// LoadManifest reads a manifest file. Relative paths inside it are taken
// relative to the manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	return m, nil
}

// ParseManifest decodes and checks a manifest. Unknown keys are rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing manifest: %w", err)
	}
	if len(m.Jobs) == 0 {
		return nil, errors.New("manifest has no jobs")
	}
	for i, e := range m.Jobs {
		if !validate.Operation(e.Operation).Known() {
			return nil, fmt.Errorf("job %d: unknown operation %q", i, e.Operation)
		}
		if len(e.Files) == 0 {
			return nil, fmt.Errorf("job %d: no files", i)
		}
		if e.PageSize != "" {
			if _, _, err := config.PageSize(e.PageSize); err != nil {
				return nil, fmt.Errorf("job %d: %w", i, err)
			}
		}
	}
	return &m, nil
}

// Tasks reads every input file and builds the jobs. configure, when not
// nil, is applied to each job before the entry's own options so it can
// carry shared settings.
func (m *Manifest) Tasks(configure func(*pdfpulse.Job) *pdfpulse.Job) ([]Task, error) {
	tasks := make([]Task, 0, len(m.Jobs))
	for i, e := range m.Jobs {
		files := make([]pdfpulse.File, 0, len(e.Files))
		for _, name := range e.Files {
			if !filepath.IsAbs(name) && m.dir != "" {
				name = filepath.Join(m.dir, name)
			}
			f, err := pdfpulse.ReadFile(name)
			if err != nil {
				return nil, fmt.Errorf("job %d: %w", i, err)
			}
			files = append(files, f)
		}

		job := pdfpulse.New(pdfpulse.Operation(e.Operation), files...)
		if configure != nil {
			job = configure(job)
		}
		if e.Quality > 0 {
			job = job.Quality(e.Quality)
		}
		if e.MaxDimension > 0 {
			job = job.MaxDimension(e.MaxDimension)
		}
		if e.PageSize != "" {
			w, h, _ := config.PageSize(e.PageSize)
			job = job.PageSize(w, h)
		}
		tasks = append(tasks, Task{Name: e.Name, Job: job})
	}
	return tasks, nil
}

// OutputPath returns where the outcome of job i should be written: the
// entry's output if set, otherwise the generated filename, joined to dir.
func (m *Manifest) OutputPath(i int, dir string, res *pdfpulse.Result) string {
	name := res.Filename
	if out := m.Jobs[i].Output; out != "" {
		name = out
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}
