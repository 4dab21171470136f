package intelligence

import (
	"math"
	"strings"

	"github.com/AmitRK9819/pulsegov/internal/graph"
)

const (
	titleMatchScore = 0.8
	categoryScore   = 0.5
	minSimilarity   = 0.4

	SuggestionLimit = 5
	NetworkLimit    = 50
)

// SimilarityScore compares two same-category complaints by title. Matching
// is case-sensitive.
func SimilarityScore(a, b string) float64 {
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return titleMatchScore
	}
	return categoryScore
}

var genericActions = []string{
	"Inspect the complaint location",
	"Contact relevant department",
	"Document findings",
}

var followUpActions = []string{
	"Follow up within 24 hours",
	"Document resolution with photos",
	"Request citizen feedback after completion",
}

type SimilarComplaint struct {
	ComplaintID        int64   `json:"complaint_id"`
	Code               string  `json:"complaint_code,omitempty"`
	Title              string  `json:"title"`
	Description        string  `json:"description"`
	ResolutionText     string  `json:"resolution_text"`
	SimilarityScore    float64 `json:"similarity_score"`
	TimeToResolveHours float64 `json:"time_to_resolve_hours"`
	SuccessRating      float64 `json:"success_rating"`
	CategoryMatch      bool    `json:"category_match"`
}

type Suggestion struct {
	ComplaintID        int64              `json:"complaint_id"`
	SuggestedActions   []string           `json:"suggested_actions"`
	EstimatedTimeHours int                `json:"estimated_time_hours"`
	SuccessProbability float64            `json:"success_probability"`
	BasedOnCases       int                `json:"based_on_cases"`
	SimilarComplaints  []SimilarComplaint `json:"similar_complaints"`
}

// BuildSuggestion turns the ranked matches into a suggestion bundle. Matches
// must already be ordered best first.
func BuildSuggestion(complaintID int64, matches []graph.Match) Suggestion {
	if len(matches) == 0 {
		return Suggestion{
			ComplaintID:        complaintID,
			SuggestedActions:   append([]string(nil), genericActions...),
			EstimatedTimeHours: 48,
			SuccessProbability: 0.5,
			BasedOnCases:       0,
			SimilarComplaints:  []SimilarComplaint{},
		}
	}

	var sumHours, sumRating float64
	similar := make([]SimilarComplaint, 0, len(matches))
	for _, m := range matches {
		sumHours += m.TimeToResolveHours
		sumRating += m.SuccessRating
		similar = append(similar, SimilarComplaint{
			ComplaintID:        m.ComplaintID,
			Code:               m.Code,
			Title:              m.Title,
			Description:        m.Description,
			ResolutionText:     m.ResolutionText,
			SimilarityScore:    m.Score,
			TimeToResolveHours: m.TimeToResolveHours,
			SuccessRating:      m.SuccessRating,
			CategoryMatch:      true,
		})
	}
	n := float64(len(matches))

	actions := make([]string, 0, 1+len(followUpActions))
	actions = append(actions, matches[0].ResolutionText)
	actions = append(actions, followUpActions...)

	return Suggestion{
		ComplaintID:        complaintID,
		SuggestedActions:   actions,
		EstimatedTimeHours: int(math.Round(sumHours / n)),
		SuccessProbability: math.Min((sumRating/n/5.0)*0.9, 0.95),
		BasedOnCases:       len(matches),
		SimilarComplaints:  similar,
	}
}
