// Package intelligence maintains the complaint similarity graph and answers
// resolution suggestion queries from it.
package intelligence

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/AmitRK9819/pulsegov/internal/bus"
	"github.com/AmitRK9819/pulsegov/internal/events"
	"github.com/AmitRK9819/pulsegov/internal/graph"
	"github.com/AmitRK9819/pulsegov/internal/models"
)

const defaultSuccessRating = 4.0

type Store interface {
	GetComplaint(ctx context.Context, id int64) (models.Complaint, error)
	GetResolution(ctx context.Context, complaintID int64) (models.Resolution, error)
}

type Graph interface {
	UpsertComplaint(ctx context.Context, n graph.ComplaintNode) error
	UpsertResolution(ctx context.Context, r graph.ResolutionNode) error
	CategoryPeers(ctx context.Context, complaintID int64) ([]graph.Peer, error)
	UpsertSimilarity(ctx context.Context, edges []graph.Edge) error
	SimilarResolved(ctx context.Context, complaintID int64, limit int) ([]graph.Match, error)
	Network(ctx context.Context, categoryID int64, limit int) (graph.Network, error)
}

type Engine struct {
	Store  Store
	Graph  Graph
	Logger zerolog.Logger
}

// HandleRouted mirrors a routed complaint into the graph and links it to
// already resolved complaints of its category.
func (e *Engine) HandleRouted(ctx context.Context, msg bus.Message) error {
	ev, err := events.Decode[events.RoutedEvent](msg.Data)
	if err != nil {
		return err
	}
	c, err := e.Store.GetComplaint(ctx, ev.ComplaintID)
	if err != nil {
		return err
	}
	if err := e.Graph.UpsertComplaint(ctx, complaintNode(c, ev.CategoryID, ev.CategoryName)); err != nil {
		return err
	}

	peers, err := e.Graph.CategoryPeers(ctx, c.ID)
	if err != nil {
		return err
	}
	var edges []graph.Edge
	for _, p := range peers {
		if !p.Resolved {
			continue
		}
		if s := SimilarityScore(c.Title, p.Title); s > minSimilarity {
			edges = append(edges, graph.Edge{From: c.ID, To: p.ID, Score: s})
		}
	}
	if err := e.Graph.UpsertSimilarity(ctx, edges); err != nil {
		return err
	}
	e.Logger.Info().Int64("complaint_id", c.ID).Int("precedents", len(edges)).Msg("complaint added to graph")
	return nil
}

// HandleResolved records the resolution once and recomputes the complaint's
// similarity edges. Redelivery rewrites the same nodes and edges.
func (e *Engine) HandleResolved(ctx context.Context, msg bus.Message) error {
	ev, err := events.Decode[events.ResolvedEvent](msg.Data)
	if err != nil {
		return err
	}
	c, err := e.Store.GetComplaint(ctx, ev.ComplaintID)
	if err != nil {
		return err
	}
	res, err := e.Store.GetResolution(ctx, ev.ComplaintID)
	if err != nil {
		return err
	}

	if err := e.Graph.UpsertComplaint(ctx, complaintNode(c, 0, "")); err != nil {
		return err
	}
	node := graph.ResolutionNode{
		ComplaintID:        c.ID,
		Text:               res.Text,
		TimeToResolveHours: res.TimeToResolveHours,
		SuccessRating:      defaultSuccessRating,
		OfficerID:          ev.OfficerID,
	}
	if res.SuccessRating != nil {
		node.SuccessRating = *res.SuccessRating
	}
	if res.OfficerID != nil {
		node.OfficerID = *res.OfficerID
	}
	if node.TimeToResolveHours == 0 {
		node.TimeToResolveHours = ev.ResolutionTimeHours
	}
	if err := e.Graph.UpsertResolution(ctx, node); err != nil {
		return err
	}

	peers, err := e.Graph.CategoryPeers(ctx, c.ID)
	if err != nil {
		return err
	}
	var edges []graph.Edge
	for _, p := range peers {
		s := SimilarityScore(c.Title, p.Title)
		if s <= minSimilarity {
			continue
		}
		if p.Resolved {
			edges = append(edges, graph.Edge{From: c.ID, To: p.ID, Score: s})
		} else {
			// Open complaints gain this one as a precedent.
			edges = append(edges, graph.Edge{From: p.ID, To: c.ID, Score: s})
		}
	}
	if err := e.Graph.UpsertSimilarity(ctx, edges); err != nil {
		return err
	}
	e.Logger.Info().Int64("complaint_id", c.ID).Int("similarity_edges", len(edges)).Msg("resolution added to graph")
	return nil
}

func (e *Engine) Suggestions(ctx context.Context, complaintID int64) (Suggestion, error) {
	matches, err := e.Graph.SimilarResolved(ctx, complaintID, SuggestionLimit)
	if err != nil {
		return Suggestion{}, err
	}
	return BuildSuggestion(complaintID, matches), nil
}

func (e *Engine) Network(ctx context.Context, categoryID int64) (graph.Network, error) {
	return e.Graph.Network(ctx, categoryID, NetworkLimit)
}

func complaintNode(c models.Complaint, categoryID int64, categoryName string) graph.ComplaintNode {
	if c.CategoryID != nil {
		categoryID = *c.CategoryID
	}
	if c.CategoryName != "" {
		categoryName = c.CategoryName
	}
	return graph.ComplaintNode{
		ID:           c.ID,
		Code:         c.Code,
		Title:        c.Title,
		Description:  c.Description,
		CategoryID:   categoryID,
		CategoryName: categoryName,
	}
}
