// Package dataset reads and writes family data CSV files.
//
// The file starts with a header line followed by rows of
// family_id,choice_0,...,choice_9,n_people. Blank lines and rows with fewer
// than twelve fields are ignored.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/kilianp07/slotanneal/core/model"
)

const numFields = model.NumChoices + 2

// ErrEmpty is returned when a file has no header or no usable rows.
var ErrEmpty = errors.New("no rows parsed from csv")

// Header is the column line written by Write.
var Header = func() []string {
	h := []string{"family_id"}
	for i := 0; i < model.NumChoices; i++ {
		h = append(h, "choice_"+strconv.Itoa(i))
	}
	return append(h, "n_people")
}()

// Load reads the CSV at path and returns a validated instance.
func Load(path string) (*model.Instance, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()
	inst, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return inst, nil
}

// Read parses family rows from r and validates the resulting instance.
func Read(r io.Reader) (*model.Instance, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var groups []model.Group
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < numFields {
			continue
		}
		line, _ := cr.FieldPos(0)
		g, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		groups = append(groups, g)
	}
	if len(groups) == 0 {
		return nil, ErrEmpty
	}
	return model.NewInstance(groups)
}

func parseRow(rec []string) (model.Group, error) {
	var vals [numFields]int
	for i := range vals {
		v, err := strconv.Atoi(strings.TrimSpace(rec[i]))
		if err != nil {
			return model.Group{}, fmt.Errorf("%w: field %d: %v", model.ErrInvalidInstance, i, err)
		}
		vals[i] = v
	}
	g := model.Group{ID: vals[0], Size: vals[numFields-1]}
	copy(g.Choices[:], vals[1:1+model.NumChoices])
	return g, nil
}

// Write encodes inst in the format accepted by Read.
func Write(w io.Writer, inst *model.Instance) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	rec := make([]string, numFields)
	for _, g := range inst.Groups {
		rec[0] = strconv.Itoa(g.ID)
		for i, c := range g.Choices {
			rec[1+i] = strconv.Itoa(c)
		}
		rec[numFields-1] = strconv.Itoa(g.Size)
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Save writes inst to path, replacing any existing file.
func Save(path string, inst *model.Instance) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := Write(f, inst); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
