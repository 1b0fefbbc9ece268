// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// ReadNames loads a list of names from path. The format follows the
// extension:
//
//	.csv         column named column (default "name"); a file with
//	             "first" and "last" columns is also accepted
//	.yaml, .yml  a list of strings, or a mapping with a "names" list
//	anything     one name per line; blank lines and # comments skipped
func ReadNames(path, column string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening names file: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return readCSVNames(f, column)
	case ".yaml", ".yml":
		return readYAMLNames(f)
	}
	return readLineNames(f)
}

func readLineNames(r io.Reader) ([]string, error) {
	var names []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading names: %w", err)
	}
	return names, nil
}

func readCSVNames(r io.Reader, column string) ([]string, error) {
	if column == "" {
		column = "name"
	}
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading names header: %w", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}

	col, hasCol := idx[strings.ToLower(column)]
	first, hasFirst := idx["first"]
	last, hasLast := idx["last"]
	if !hasCol && !(hasFirst && hasLast) {
		return nil, fmt.Errorf("names file has no %q column (header %v)", column, header)
	}

	var names []string
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading names: %w", err)
		}
		var name string
		if hasCol {
			name = field(rec, col)
		} else {
			name = joinName(field(rec, first), field(rec, last))
		}
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}

func readYAMLNames(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading names: %w", err)
	}
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc struct {
		Names []string `yaml:"names"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing names file: %w", err)
	}
	return doc.Names, nil
}
