package scoring

import (
	"fmt"
	"sort"
	"time"
)

// RubricItemView is the reporting render of one rubric item: its
// configuration, current best match, and a bounded window of recent
// judgments.
type RubricItemView struct {
	Question  string   `json:"question"`
	Answer    string   `json:"answer,omitempty"`
	Weight    float64  `json:"weight"`
	Category  string   `json:"category"`
	Keywords  []string `json:"keywords,omitempty"`
	Threshold float64  `json:"threshold"`

	IsAsked        bool       `json:"is_asked"`
	BestMatchScore float64    `json:"best_match_score"`
	PartialScore   float64    `json:"partial_score"`
	AskedTurns     []string   `json:"asked_turns,omitempty"`
	Judgments      []Judgment `json:"judgments,omitempty"`
}

// Report is the full grading report: summary plus the rubric partitioned into
// fully matched, partially matched and missed items.
type Report struct {
	Summary ScoreSummary `json:"score_summary"`

	FullyMatched     []RubricItemView `json:"fully_matched_questions"`
	PartiallyMatched []RubricItemView `json:"partially_matched_questions"`
	Missed           []RubricItemView `json:"missed_questions"`

	DoctorTurns int       `json:"doctor_turns"`
	TotalTurns  int       `json:"total_turns"`
	GeneratedAt time.Time `json:"report_time"`
}

func (it *RubricItem) view() RubricItemView {
	return RubricItemView{
		Question:       it.cfg.Question,
		Answer:         it.cfg.Answer,
		Weight:         it.cfg.Weight,
		Category:       it.cfg.Category,
		Keywords:       it.cfg.Keywords,
		Threshold:      it.cfg.Threshold,
		IsAsked:        it.isAsked,
		BestMatchScore: it.bestMatchScore,
		PartialScore:   it.partialScore(),
		AskedTurns:     append([]string(nil), it.askedTurns...),
		Judgments:      it.recentJudgments(),
	}
}

// Report renders the full grading report from current rubric state. Items
// partition by their best match: asked items are fully matched, unasked items
// with a best score of at least the partial floor are partially matched, and
// the rest are missed.
func (e *Engine) Report() Report {
	report := Report{
		Summary:     e.Summary(),
		DoctorTurns: e.turns.countByRole(RoleDoctor),
		TotalTurns:  e.turns.len(),
		GeneratedAt: time.Now(),
	}

	for _, item := range e.items {
		view := item.view()
		switch {
		case item.isAsked:
			report.FullyMatched = append(report.FullyMatched, view)
		case item.bestMatchScore >= partialFloor:
			report.PartiallyMatched = append(report.PartiallyMatched, view)
		default:
			report.Missed = append(report.Missed, view)
		}
	}
	return report
}

// suggestion formatting bounds.
const (
	maxPartialSuggestions   = 3
	maxQuestionsPerCategory = 2
)

// Suggestions produces ranked, human-readable guidance for the trainee. With
// nothing missed it congratulates; otherwise it surfaces judge advice for
// partially covered items and groups fully missed questions by category.
func (e *Engine) Suggestions() []string {
	var missed, partial []*RubricItem
	for _, item := range e.items {
		if item.isAsked {
			continue
		}
		missed = append(missed, item)
		if item.bestMatchScore >= partialFloor {
			partial = append(partial, item)
		}
	}

	if len(missed) == 0 {
		return []string{"Excellent coverage: every important point was addressed."}
	}

	var suggestions []string

	if len(partial) > 0 {
		suggestions = append(suggestions, "These points were partially covered; ask about them in more depth:")
		count := 0
		for _, item := range partial {
			if count == maxPartialSuggestions {
				break
			}
			latest := item.latestJudgment()
			if latest == nil || latest.Suggestions == "" {
				continue
			}
			suggestions = append(suggestions, fmt.Sprintf("  - %s: %s", item.cfg.Question, latest.Suggestions))
			count++
		}
	}

	var completelyMissed []*RubricItem
	for _, item := range missed {
		if item.bestMatchScore < partialFloor {
			completelyMissed = append(completelyMissed, item)
		}
	}
	if len(completelyMissed) > 0 {
		suggestions = append(suggestions, "Consider asking about these points:")

		byCategory := make(map[string][]string)
		for _, item := range completelyMissed {
			byCategory[item.cfg.Category] = append(byCategory[item.cfg.Category], item.cfg.Question)
		}
		categories := make([]string, 0, len(byCategory))
		for cat := range byCategory {
			categories = append(categories, cat)
		}
		sort.Strings(categories)

		for _, cat := range categories {
			questions := byCategory[cat]
			if len(questions) <= maxQuestionsPerCategory {
				for _, q := range questions {
					suggestions = append(suggestions, "  - "+q)
				}
				continue
			}
			suggestions = append(suggestions, fmt.Sprintf("  - %s: %s and %d more", cat, questions[0], len(questions)-1))
		}
	}
	return suggestions
}

func (it *RubricItem) latestJudgment() *Judgment {
	if len(it.judgments) == 0 {
		return nil
	}
	return &it.judgments[len(it.judgments)-1]
}
