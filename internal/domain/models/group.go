// internal/domain/models/group.go
package models

// Group is a subject study group. The set of groups is fixed and small;
// groups are not user-created.
type Group struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

var groups = []Group{
	{ID: "interview", Name: "Interview Preparation", Description: "Practice interview questions and techniques"},
	{ID: "aptitude", Name: "Aptitude", Description: "Logical reasoning and quantitative aptitude"},
	{ID: "english", Name: "English", Description: "Grammar, vocabulary, and communication skills"},
	{ID: "programming", Name: "Programming", Description: "Coding practice and algorithm discussions"},
}

// Groups returns the fixed set of subject groups.
func Groups() []Group {
	out := make([]Group, len(groups))
	copy(out, groups)
	return out
}

// GroupByID looks up a group by its identifier.
func GroupByID(id string) (Group, bool) {
	for _, g := range groups {
		if g.ID == id {
			return g, true
		}
	}
	return Group{}, false
}

// ValidGroupID reports whether id names one of the fixed groups.
func ValidGroupID(id string) bool {
	_, ok := GroupByID(id)
	return ok
}
