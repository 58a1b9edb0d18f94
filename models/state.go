package models

import "time"

// State is the whole-event snapshot served by GET /state.
type State struct {
	Teams        []Team     `json:"teams"`
	Questions    []Question `json:"questions"`
	CurrentRound int        `json:"currentRound"`
	Rounds       []Round    `json:"rounds"`
}

// Assignment is the derived binding of a team to the question it claimed.
type Assignment struct {
	TeamID     string     `json:"teamId"`
	TeamName   string     `json:"teamName"`
	QuestionID string     `json:"questionId"`
	Question   string     `json:"question"`
	Round      int        `json:"round"`
	AssignedAt *time.Time `json:"assignedAt,omitempty"`
}

// FinalRound returns the highest configured round number.
func (s *State) FinalRound() int {
	final := 0
	for _, r := range s.Rounds {
		if r.Number > final {
			final = r.Number
		}
	}
	return final
}

func (s *State) FindRound(number int) (*Round, bool) {
	for i := range s.Rounds {
		if s.Rounds[i].Number == number {
			return &s.Rounds[i], true
		}
	}
	return nil, false
}

func (s *State) FindTeam(id string) (*Team, bool) {
	for i := range s.Teams {
		if s.Teams[i].ID == id {
			return &s.Teams[i], true
		}
	}
	return nil, false
}

func (s *State) FindQuestion(id string) (*Question, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

func (s *State) TeamsInRound(round int) []Team {
	teams := []Team{}
	for _, t := range s.Teams {
		if t.Round == round {
			teams = append(teams, t)
		}
	}
	return teams
}

func (s *State) QuestionsInRound(round int) []Question {
	questions := []Question{}
	for _, q := range s.Questions {
		if q.Round == round {
			questions = append(questions, q)
		}
	}
	return questions
}

// WithoutDescriptions returns a copy with question descriptions removed, as
// served to participants before the reveal.
func (s *State) WithoutDescriptions() *State {
	out := *s
	out.Questions = make([]Question, len(s.Questions))
	for i, q := range s.Questions {
		q.Description = ""
		out.Questions[i] = q
	}
	return &out
}
