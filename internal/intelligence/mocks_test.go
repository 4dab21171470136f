package intelligence

import (
	"context"
	"sort"
	"sync"

	"github.com/AmitRK9819/pulsegov/internal/apperr"
	"github.com/AmitRK9819/pulsegov/internal/graph"
	"github.com/AmitRK9819/pulsegov/internal/models"
)

type MockStore struct {
	GetComplaintFunc  func(ctx context.Context, id int64) (models.Complaint, error)
	GetResolutionFunc func(ctx context.Context, complaintID int64) (models.Resolution, error)
}

func (m *MockStore) GetComplaint(ctx context.Context, id int64) (models.Complaint, error) {
	return m.GetComplaintFunc(ctx, id)
}

func (m *MockStore) GetResolution(ctx context.Context, complaintID int64) (models.Resolution, error) {
	if m.GetResolutionFunc == nil {
		return models.Resolution{}, apperr.NotFound("resolution %d", complaintID)
	}
	return m.GetResolutionFunc(ctx, complaintID)
}

// memGraph is an in-memory graph with MERGE semantics keyed like the
// Neo4j constraints.
type memGraph struct {
	mu          sync.Mutex
	complaints  map[int64]graph.ComplaintNode
	resolved    map[int64]bool
	resolutions map[int64]graph.ResolutionNode
	edges       map[[2]int64]float64
	writes      map[string]int

	networkLimit int
}

func newMemGraph() *memGraph {
	return &memGraph{
		complaints:  map[int64]graph.ComplaintNode{},
		resolved:    map[int64]bool{},
		resolutions: map[int64]graph.ResolutionNode{},
		edges:       map[[2]int64]float64{},
		writes:      map[string]int{},
	}
}

func (g *memGraph) UpsertComplaint(ctx context.Context, n graph.ComplaintNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes["complaint"]++
	if prev, ok := g.complaints[n.ID]; ok && n.CategoryID == 0 {
		n.CategoryID, n.CategoryName = prev.CategoryID, prev.CategoryName
	}
	g.complaints[n.ID] = n
	return nil
}

func (g *memGraph) UpsertResolution(ctx context.Context, r graph.ResolutionNode) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.writes["resolution"]++
	if _, ok := g.complaints[r.ComplaintID]; !ok {
		return nil
	}
	g.resolved[r.ComplaintID] = true
	if _, ok := g.resolutions[r.ComplaintID]; !ok {
		g.resolutions[r.ComplaintID] = r
	}
	return nil
}

func (g *memGraph) CategoryPeers(ctx context.Context, complaintID int64) ([]graph.Peer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	self, ok := g.complaints[complaintID]
	if !ok {
		return nil, nil
	}
	var out []graph.Peer
	for id, n := range g.complaints {
		if id == complaintID || n.CategoryID != self.CategoryID {
			continue
		}
		out = append(out, graph.Peer{ID: id, Title: n.Title, Resolved: g.resolved[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (g *memGraph) UpsertSimilarity(ctx context.Context, edges []graph.Edge) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, e := range edges {
		g.edges[[2]int64{e.From, e.To}] = e.Score
	}
	return nil
}

func (g *memGraph) SimilarResolved(ctx context.Context, complaintID int64, limit int) ([]graph.Match, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	self := g.complaints[complaintID]
	var out []graph.Match
	for key, score := range g.edges {
		if key[0] != complaintID {
			continue
		}
		other := g.complaints[key[1]]
		res, ok := g.resolutions[key[1]]
		if !ok || other.CategoryID != self.CategoryID {
			continue
		}
		out = append(out, graph.Match{
			ComplaintID:        other.ID,
			Title:              other.Title,
			ResolutionText:     res.Text,
			Score:              score,
			TimeToResolveHours: res.TimeToResolveHours,
			SuccessRating:      res.SuccessRating,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].SuccessRating > out[j].SuccessRating
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (g *memGraph) Network(ctx context.Context, categoryID int64, limit int) (graph.Network, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.networkLimit = limit

	var ids []int64
	for id, n := range g.complaints {
		if n.CategoryID == categoryID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) > limit {
		ids = ids[:limit]
	}

	net := graph.Network{Nodes: []graph.NetworkNode{}, Edges: []graph.NetworkEdge{}}
	for _, id := range ids {
		n := g.complaints[id]
		net.Nodes = append(net.Nodes, graph.NetworkNode{ID: id, Label: n.Code, Title: n.Title, Resolved: g.resolved[id]})
		for key, score := range g.edges {
			if key[0] == id {
				net.Edges = append(net.Edges, graph.NetworkEdge{From: key[0], To: key[1], Weight: score})
			}
		}
	}
	sort.Slice(net.Edges, func(i, j int) bool {
		if net.Edges[i].From != net.Edges[j].From {
			return net.Edges[i].From < net.Edges[j].From
		}
		return net.Edges[i].To < net.Edges[j].To
	})
	return net, nil
}
