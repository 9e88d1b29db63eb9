package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	idColumn   = "Animal ID"
	nameColumn = "Animal Name"
)

// LoadNames reads display names from a CSV with "Animal ID" and
// "Animal Name" header columns. Rows with an empty id are skipped.
func LoadNames(r io.Reader) (map[string]string, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	idCol, nameCol := -1, -1
	for i, h := range header {
		switch strings.TrimSpace(h) {
		case idColumn:
			idCol = i
		case nameColumn:
			nameCol = i
		}
	}
	if idCol < 0 || nameCol < 0 {
		return nil, fmt.Errorf("header must contain %q and %q columns", idColumn, nameColumn)
	}

	names := make(map[string]string)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row: %w", err)
		}
		if idCol >= len(rec) || nameCol >= len(rec) {
			continue
		}
		id := strings.TrimSpace(rec[idCol])
		if id == "" {
			continue
		}
		names[id] = strings.TrimSpace(rec[nameCol])
	}
	return names, nil
}

// LoadNamesFile is LoadNames over a file path.
func LoadNamesFile(path string) (map[string]string, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("opening names file: %w", err)
	}
	defer f.Close()
	return LoadNames(f)
}
