package workflow

// Class periods run from MinPeriod to MaxPeriod.
const (
	MinPeriod = 1
	MaxPeriod = 5
)

var subjectsByPeriod = map[int][]string{
	1: {"Mathematics", "Physics", "Chemistry", "Computer Science", "English"},
	2: {"Physics", "Biology", "History", "Geography", "Economics"},
	3: {"Chemistry", "Computer Science", "Mathematics", "Psychology", "Sociology"},
	4: {"English", "Literature", "Political Science", "Philosophy", "Fine Arts"},
	5: {"Physical Education", "Environmental Science", "Statistics", "Business Studies", "Foreign Language"},
}

// SubjectsFor returns the subjects taught in period.
func SubjectsFor(period int) ([]string, bool) {
	subjects, ok := subjectsByPeriod[period]
	if !ok {
		return nil, false
	}
	out := make([]string, len(subjects))
	copy(out, subjects)
	return out, true
}

// ValidPeriod reports whether p is a class period.
func ValidPeriod(p int) bool {
	return p >= MinPeriod && p <= MaxPeriod
}

func subjectInPeriod(period int, subject string) bool {
	for _, s := range subjectsByPeriod[period] {
		if s == subject {
			return true
		}
	}
	return false
}
