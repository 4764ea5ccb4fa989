package exam

// Score aggregation. All three scores are percentages in [0,100]; the final
// score weights the objective and subjective sections by their share of the
// total question count. The counts used for weighting are the ones captured
// at submission time (stored on the result row), never the live question
// bank, so later edits to a course cannot silently rescore past sessions.

// ObjectiveScore is the percentage of objective questions answered correctly.
func ObjectiveScore(correct, totalObjective int) float64 {
	if totalObjective <= 0 {
		return 0
	}
	return float64(correct) / float64(totalObjective) * 100
}

// SubjectiveScore is marks obtained over total marks, as a percentage.
func SubjectiveScore(marksObtained, totalMarks float64) float64 {
	if totalMarks <= 0 {
		return 0
	}
	return marksObtained / totalMarks * 100
}

// WeightedFinalScore combines the section scores by question-count share.
// With only one section present it is that section's score directly.
func WeightedFinalScore(objectiveScore, subjectiveScore float64, nObjective, nSubjective int) float64 {
	total := nObjective + nSubjective
	if total <= 0 {
		return 0
	}
	if nObjective == 0 {
		return subjectiveScore
	}
	if nSubjective == 0 {
		return objectiveScore
	}
	objWeight := float64(nObjective) / float64(total)
	subjWeight := float64(nSubjective) / float64(total)
	return objectiveScore*objWeight + subjectiveScore*subjWeight
}

// AnswerMarks converts one subjective answer's grade to the marks scale.
// A human-entered final score (already marks-scale) wins over the auto score
// (a percentage of the question's marks); an ungraded answer contributes zero
// until graded.
func AnswerMarks(a SubjectiveAnswer, questionMarks float64) (marks float64, graded bool) {
	if a.FinalScore != nil {
		return *a.FinalScore, true
	}
	if a.AutoScore != nil {
		return *a.AutoScore / 100 * questionMarks, true
	}
	return 0, false
}

// SubjectiveTally sums a session's subjective answers against their
// questions' marks. Answers whose question is missing from marksByQuestion
// fall back to a default of 10 marks.
type SubjectiveTally struct {
	MarksObtained float64
	GradedCount   int
}

const defaultQuestionMarks = 10

func TallySubjective(answers []SubjectiveAnswer, marksByQuestion map[string]float64) SubjectiveTally {
	var t SubjectiveTally
	for _, a := range answers {
		qm, ok := marksByQuestion[a.QuestionID]
		if !ok || qm <= 0 {
			qm = defaultQuestionMarks
		}
		if m, graded := AnswerMarks(a, qm); graded {
			t.MarksObtained += m
			t.GradedCount++
		}
	}
	return t
}

// TotalMarks sums the marks of a set of subjective questions, applying the
// same default as TallySubjective for unset values.
func TotalMarks(subjective []Question) float64 {
	var total float64
	for _, q := range subjective {
		if q.Marks > 0 {
			total += q.Marks
		} else {
			total += defaultQuestionMarks
		}
	}
	return total
}
