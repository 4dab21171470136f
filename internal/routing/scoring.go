package routing

import (
	"sort"
	"strings"

	"github.com/AmitRK9819/pulsegov/internal/models"
)

const (
	workloadWeight  = 40.0
	ratingWeight    = 30.0
	expertiseWeight = 20.0
	speedWeight     = 10.0

	// unknownResolutionHours stands in for officers with no resolution history.
	unknownResolutionHours = 48.0
)

type Score struct {
	Workload  float64 `json:"workload"`
	Rating    float64 `json:"rating"`
	Expertise float64 `json:"expertise"`
	Speed     float64 `json:"speed"`
	Total     float64 `json:"total"`
}

type Candidate struct {
	Officer models.Officer
	Score   Score
}

// ScoreOfficer scores one officer against the pool's max load.
func ScoreOfficer(o models.Officer, maxLoad int, categoryName string) Score {
	if maxLoad < 1 {
		maxLoad = 1
	}
	var s Score
	s.Workload = (1 - float64(o.ActiveLoad)/float64(maxLoad)) * workloadWeight
	s.Rating = (o.Rating / 5.0) * ratingWeight
	if expertiseMatch(o.Expertise, categoryName) {
		s.Expertise = expertiseWeight
	}
	avg := o.AvgResolutionHours
	if avg <= 0 {
		avg = unknownResolutionHours
	}
	s.Speed = max(0, (100-avg)/100) * speedWeight
	s.Total = s.Workload + s.Rating + s.Expertise + s.Speed
	return s
}

// RankCandidates scores the pool and orders it best first. Equal scores keep
// the pool's original order.
func RankCandidates(pool []models.Officer, categoryName string) []Candidate {
	maxLoad := 1
	for _, o := range pool {
		if o.ActiveLoad > maxLoad {
			maxLoad = o.ActiveLoad
		}
	}
	out := make([]Candidate, 0, len(pool))
	for _, o := range pool {
		out = append(out, Candidate{Officer: o, Score: ScoreOfficer(o, maxLoad, categoryName)})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score.Total > out[j].Score.Total
	})
	return out
}

func expertiseMatch(tags []string, categoryName string) bool {
	tokens := strings.Fields(strings.ToLower(categoryName))
	if len(tokens) == 0 {
		return false
	}
	for _, tag := range tags {
		t := strings.ToLower(tag)
		for _, tok := range tokens {
			if strings.Contains(t, tok) {
				return true
			}
		}
	}
	return false
}

func filterOfficers(officers []models.Officer, keep func(models.Officer) bool) []models.Officer {
	out := make([]models.Officer, 0, len(officers))
	for _, o := range officers {
		if keep(o) {
			out = append(out, o)
		}
	}
	return out
}
