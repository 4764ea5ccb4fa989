package csvio

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/examhall/cbt-portal/internal/exam"
)

// ParseStudents reads a roster CSV. matric_number and full_name are required
// columns; rows without a matric number are skipped. New rows get fresh IDs
// here so the store's upsert can key on matric number alone.
func ParseStudents(r io.Reader) ([]exam.Student, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	hdr, err := cr.Read()
	if err != nil {
		return nil, err
	}
	idx := map[string]int{}
	for i, h := range hdr {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, k := range []string{"matric_number", "full_name"} {
		if _, ok := idx[k]; !ok {
			return nil, errors.New("missing column: " + k)
		}
	}

	cell := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []exam.Student
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		matric := cell(rec, "matric_number")
		if matric == "" {
			continue
		}
		out = append(out, exam.Student{
			ID:           uuid.NewString(),
			MatricNumber: matric,
			FullName:     cell(rec, "full_name"),
			Department:   cell(rec, "department"),
			Level:        cell(rec, "level"),
		})
	}
	return out, nil
}
