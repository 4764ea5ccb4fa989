// Package csvio reads and writes the spreadsheet formats examiners exchange:
// subjective question banks and student rosters.
package csvio

import (
	"encoding/csv"
	"errors"
	"io"
	"strconv"
	"strings"

	"github.com/examhall/cbt-portal/internal/exam"
)

var subjectiveHeader = []string{
	"question_text", "max_words", "marks", "grading_type",
	"expected_answer", "keywords", "keyword_weightage", "min_word_count",
}

// ParseSubjectiveQuestions reads a question bank CSV. Only question_text is
// mandatory per row; everything else falls back to the schema defaults.
// Keywords are semicolon-separated inside their single cell.
func ParseSubjectiveQuestions(r io.Reader, courseID string) ([]exam.Question, error) {
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
	if _, ok := idx["question_text"]; !ok {
		return nil, errors.New("missing column: question_text")
	}

	cell := func(rec []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []exam.Question
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		text := cell(rec, "question_text")
		if text == "" {
			continue
		}
		q := exam.Question{
			CourseID:         courseID,
			Kind:             exam.KindSubjective,
			Text:             text,
			MaxWords:         atoiOr(cell(rec, "max_words"), 0),
			Marks:            atofOr(cell(rec, "marks"), 10),
			GradingType:      parseGradingType(cell(rec, "grading_type")),
			ExpectedAnswer:   cell(rec, "expected_answer"),
			Keywords:         splitKeywords(cell(rec, "keywords")),
			KeywordWeightage: atoiOr(cell(rec, "keyword_weightage"), 60),
			MinWordCount:     atoiOr(cell(rec, "min_word_count"), 50),
		}
		out = append(out, q)
	}
	return out, nil
}

// WriteSubjectiveQuestions emits the same format ParseSubjectiveQuestions
// accepts, so an exported bank re-imports cleanly.
func WriteSubjectiveQuestions(w io.Writer, questions []exam.Question) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(subjectiveHeader); err != nil {
		return err
	}
	for _, q := range questions {
		rec := []string{
			q.Text,
			strconv.Itoa(q.MaxWords),
			strconv.FormatFloat(q.Marks, 'f', -1, 64),
			string(q.GradingType),
			q.ExpectedAnswer,
			strings.Join(q.Keywords, ";"),
			strconv.Itoa(q.KeywordWeightage),
			strconv.Itoa(q.MinWordCount),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func parseGradingType(s string) exam.GradingType {
	switch strings.ToLower(s) {
	case "auto":
		return exam.GradingAuto
	case "mixed":
		return exam.GradingMixed
	default:
		return exam.GradingManual
	}
}

func splitKeywords(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if kw := strings.TrimSpace(p); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func atofOr(s string, def float64) float64 {
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
