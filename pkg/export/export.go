// Package export writes solver results as submission CSV or JSON documents
// and reads submissions back for scoring.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kilianp07/slotanneal/core/anneal"
	"github.com/kilianp07/slotanneal/core/model"
)

// SubmissionHeader is the first line of a submission file.
var SubmissionHeader = []string{"family_id", "assigned_day"}

// ErrMalformed is returned by ReadSubmission for unusable input.
var ErrMalformed = errors.New("malformed submission")

// Document is the JSON form of a finished run.
type Document struct {
	RunID       string            `json:"run_id,omitempty"`
	Fingerprint string            `json:"fingerprint"`
	State       anneal.State      `json:"state"`
	BestCost    float64           `json:"best_cost"`
	Iterations  int               `json:"iterations"`
	Elapsed     time.Duration     `json:"elapsed"`
	Stats       anneal.Stats      `json:"stats"`
	Params      anneal.Params     `json:"params"`
	Occupancy   []int             `json:"occupancy"`
	Placements  []model.Placement `json:"placements"`
}

// NewDocument collects the exported view of res.
func NewDocument(runID string, inst *model.Instance, params anneal.Params, res anneal.Result) Document {
	occ := model.OccupancyOf(inst, res.BestAssignment)
	return Document{
		RunID:       runID,
		Fingerprint: anneal.Fingerprint(res.BestAssignment),
		State:       res.State,
		BestCost:    res.BestCost,
		Iterations:  res.Iterations,
		Elapsed:     res.Elapsed,
		Stats:       res.Stats,
		Params:      params,
		Occupancy:   occ.Slots(),
		Placements:  res.Placements(inst),
	}
}

// WriteJSON writes doc to w in indented JSON.
func WriteJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteCSV writes placements as family_id,assigned_day rows.
func WriteCSV(w io.Writer, placements []model.Placement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SubmissionHeader); err != nil {
		return err
	}
	for _, p := range placements {
		rec := []string{strconv.Itoa(p.GroupID), strconv.Itoa(p.Slot)}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes doc to path as JSON when the extension is .json and as a
// submission CSV otherwise.
func WriteFile(path string, doc Document) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		err = WriteJSON(f, doc)
	} else {
		err = WriteCSV(f, doc.Placements)
	}
	if err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// ReadSubmission parses a submission and returns the assignment indexed like
// inst.Groups. Every group must appear exactly once.
func ReadSubmission(r io.Reader, inst *model.Instance) ([]int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("%w: missing header: %v", ErrMalformed, err)
	}

	index := inst.IndexByID()
	assignment := make([]int, inst.Len())
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		if len(rec) < 2 {
			return nil, fmt.Errorf("%w: line %d has %d fields", ErrMalformed, line, len(rec))
		}
		id, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		slot, err := strconv.Atoi(strings.TrimSpace(rec[1]))
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformed, line, err)
		}
		i, ok := index[id]
		if !ok {
			return nil, fmt.Errorf("%w: line %d: unknown family %d", ErrMalformed, line, id)
		}
		if assignment[i] != 0 {
			return nil, fmt.Errorf("%w: line %d: family %d assigned twice", ErrMalformed, line, id)
		}
		if slot < 1 || slot > model.NumSlots {
			return nil, fmt.Errorf("%w: line %d: slot %d out of range", ErrMalformed, line, slot)
		}
		assignment[i] = slot
	}
	for i, slot := range assignment {
		if slot == 0 {
			return nil, fmt.Errorf("%w: family %d not assigned", ErrMalformed, inst.Groups[i].ID)
		}
	}
	return assignment, nil
}

// LoadSubmission reads the submission at path.
func LoadSubmission(path string, inst *model.Instance) ([]int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return ReadSubmission(f, inst)
}
