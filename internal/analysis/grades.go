package analysis

// Grade is the closed move-quality enumeration. The numeric order matches
// the histogram index layout consumed by report readers and must not be
// rearranged.
type Grade int

const (
	GradeBest Grade = iota
	GradeMistake
	GradeBlunder
	GradeOkay
	GradeGood
	GradeGreat
	GradeInaccuracy
	GradeBrilliant
	GradeMiss
	GradeMate

	// GradeCount is the size of the closed set.
	GradeCount
)

// GradeNone marks a ply the engine gave no suggestion for; it is excluded
// from histograms and centipawn-loss aggregation.
const GradeNone Grade = -1

var gradeNames = [GradeCount]string{
	"Best",
	"Mistake",
	"Blunder",
	"Okay",
	"Good",
	"Great",
	"Inaccuracy",
	"Brilliant",
	"Miss",
	"Mate",
}

func (g Grade) String() string {
	if g < 0 || g >= GradeCount {
		return "None"
	}
	return gradeNames[g]
}
