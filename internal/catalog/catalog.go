// Package catalog owns the curated name→structure table served by the
// name-to-structure endpoint and the normalization applied to chemical
// names before they are stored or looked up.
//
// The built-in table holds the demo entries. Operators can extend or
// override it with a markdown table file (SEED_PATH):
//
//	| name       | smiles  | source |
//	|------------|---------|--------|
//	| isopentane | CC(C)CC | demo   |
//	| hexane     | CCCCCC  |        |
//
// The header row and separator rows are skipped; an empty source defaults
// to "demo".
package catalog

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"

	"github.com/tbourn/chemvision-backend/internal/domain"
)

// Normalize trims surrounding whitespace and case-folds name, so that
// "isopentane", "IsoPentane" and "  isopentane  " share one key.
func Normalize(name string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(strings.TrimSpace(name))
}

// demo is the built-in table.
var demo = []domain.NameMapping{
	{Name: "isopentane", Smiles: "CC(C)CC", Source: string(domain.ProvenanceDemo)},
}

// Demo returns a copy of the built-in demo table.
func Demo() []domain.NameMapping {
	out := make([]domain.NameMapping, len(demo))
	copy(out, demo)
	return out
}

// Load returns the demo table merged with the rows of the markdown file at
// path. File rows override demo rows with the same normalized name. An
// empty path yields the demo table alone.
func Load(path string) ([]domain.NameMapping, error) {
	rows := Demo()
	if strings.TrimSpace(path) == "" {
		return rows, nil
	}
	extra, err := ParseMarkdownFile(path)
	if err != nil {
		return nil, err
	}

	idx := make(map[string]int, len(rows)+len(extra))
	for i, r := range rows {
		idx[r.Name] = i
	}
	for _, r := range extra {
		if i, ok := idx[r.Name]; ok {
			rows[i] = r
			continue
		}
		idx[r.Name] = len(rows)
		rows = append(rows, r)
	}
	return rows, nil
}

// ParseMarkdownFile reads the mapping table stored at path.
func ParseMarkdownFile(path string) ([]domain.NameMapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var (
		out    []domain.NameMapping
		lineNo int
	)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())

		// table row: "| ... |"; anything else is prose and ignored
		if !strings.HasPrefix(line, "|") || !strings.HasSuffix(line, "|") || len(line) < 2 {
			continue
		}
		cells := splitRow(line)
		if isSeparator(cells) || isHeader(cells) {
			continue
		}

		row, err := parseRow(cells)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		out = append(out, row)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func splitRow(line string) []string {
	raw := strings.Trim(line, "|")
	cols := strings.Split(raw, "|")
	for i := range cols {
		cols[i] = strings.TrimSpace(cols[i])
	}
	return cols
}

func isSeparator(cells []string) bool {
	for _, c := range cells {
		tmp := strings.ReplaceAll(c, ":", "")
		tmp = strings.ReplaceAll(tmp, "-", "")
		if strings.TrimSpace(tmp) != "" {
			return false
		}
	}
	return true
}

func isHeader(cells []string) bool {
	return len(cells) >= 2 &&
		strings.EqualFold(cells[0], "name") &&
		strings.EqualFold(cells[1], "smiles")
}

func parseRow(cells []string) (domain.NameMapping, error) {
	if len(cells) < 2 {
		return domain.NameMapping{}, fmt.Errorf("expected at least 2 columns, got %d", len(cells))
	}
	name := Normalize(cells[0])
	smiles := cells[1]
	switch {
	case name == "":
		return domain.NameMapping{}, fmt.Errorf("empty name")
	case len([]rune(name)) > domain.MaxNameLen:
		return domain.NameMapping{}, fmt.Errorf("name longer than %d characters", domain.MaxNameLen)
	case smiles == "":
		return domain.NameMapping{}, fmt.Errorf("empty smiles for %q", name)
	case len([]rune(smiles)) > domain.MaxSmilesLen:
		return domain.NameMapping{}, fmt.Errorf("smiles longer than %d characters", domain.MaxSmilesLen)
	}

	src := domain.ProvenanceDemo
	if len(cells) >= 3 && cells[2] != "" {
		src = domain.Provenance(strings.ToLower(cells[2]))
		if !src.Valid() {
			return domain.NameMapping{}, fmt.Errorf("unknown source %q", cells[2])
		}
	}
	return domain.NameMapping{Name: name, Smiles: smiles, Source: string(src)}, nil
}
