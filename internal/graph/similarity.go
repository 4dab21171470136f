package graph

import (
	"context"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/AmitRK9819/pulsegov/internal/apperr"
)

type ComplaintNode struct {
	ID           int64
	Code         string
	Title        string
	Description  string
	CategoryID   int64
	CategoryName string
}

type ResolutionNode struct {
	ComplaintID        int64
	Text               string
	TimeToResolveHours float64
	SuccessRating      float64
	OfficerID          int64
}

// Peer is another complaint of the same category, considered for a
// similarity edge.
type Peer struct {
	ID       int64
	Title    string
	Resolved bool
}

type Edge struct {
	From  int64
	To    int64
	Score float64
}

// Match is a resolved complaint reached through an outgoing similarity edge.
type Match struct {
	ComplaintID        int64
	Code               string
	Title              string
	Description        string
	ResolutionText     string
	Score              float64
	TimeToResolveHours float64
	SuccessRating      float64
}

// NetworkNode is labelled with the complaint code.
type NetworkNode struct {
	ID       int64  `json:"id"`
	Label    string `json:"label"`
	Title    string `json:"title"`
	Resolved bool   `json:"resolved"`
}

type NetworkEdge struct {
	From   int64   `json:"from"`
	To     int64   `json:"to"`
	Weight float64 `json:"weight"`
}

type Network struct {
	Nodes []NetworkNode `json:"nodes"`
	Edges []NetworkEdge `json:"edges"`
}

func (c *Client) write(ctx context.Context, op, cypher string, params map[string]any) error {
	session := c.writeSession(ctx)
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return apperr.Transient(op, err)
}

func (c *Client) read(ctx context.Context, op, cypher string, params map[string]any) ([]*neo4j.Record, error) {
	session := c.readSession(ctx)
	defer session.Close(ctx)
	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, apperr.Transient(op, err)
	}
	records, _ := out.([]*neo4j.Record)
	return records, nil
}

// UpsertComplaint merges the complaint node and, when the category is known,
// its BELONGS_TO category edge.
func (c *Client) UpsertComplaint(ctx context.Context, n ComplaintNode) error {
	return c.write(ctx, "graph.upsert_complaint", `
MERGE (c:Complaint {id: $id})
ON CREATE SET c.resolved = false, c.created_at = $now
SET c.complaint_id = $code, c.title = $title, c.description = $description
WITH c
WHERE $category_id > 0
MERGE (cat:Category {id: $category_id})
SET cat.name = CASE WHEN $category_name = '' THEN cat.name ELSE $category_name END
MERGE (c)-[:BELONGS_TO]->(cat)
`, map[string]any{
		"id":            n.ID,
		"code":          n.Code,
		"title":         n.Title,
		"description":   n.Description,
		"category_id":   n.CategoryID,
		"category_name": n.CategoryName,
		"now":           time.Now().UTC().Format(time.RFC3339),
	})
}

// UpsertResolution records the resolution once per complaint and links the
// resolving officer.
func (c *Client) UpsertResolution(ctx context.Context, r ResolutionNode) error {
	return c.write(ctx, "graph.upsert_resolution", `
MATCH (c:Complaint {id: $complaint_id})
SET c.resolved = true
MERGE (r:Resolution {complaint_id: $complaint_id})
ON CREATE SET r.text = $text,
	r.time_to_resolve_hours = $hours,
	r.success_rating = $rating,
	r.created_at = $now
MERGE (c)-[:RESOLVED_BY]->(r)
WITH r
WHERE $officer_id > 0
MERGE (o:Officer {id: $officer_id})
MERGE (r)-[:PERFORMED_BY]->(o)
`, map[string]any{
		"complaint_id": r.ComplaintID,
		"text":         r.Text,
		"hours":        r.TimeToResolveHours,
		"rating":       r.SuccessRating,
		"officer_id":   r.OfficerID,
		"now":          time.Now().UTC().Format(time.RFC3339),
	})
}

// CategoryPeers lists the other complaints that share the complaint's category.
func (c *Client) CategoryPeers(ctx context.Context, complaintID int64) ([]Peer, error) {
	records, err := c.read(ctx, "graph.category_peers", `
MATCH (c:Complaint {id: $id})-[:BELONGS_TO]->(cat:Category)<-[:BELONGS_TO]-(o:Complaint)
WHERE o.id <> c.id
RETURN o.id AS id, o.title AS title, coalesce(o.resolved, false) AS resolved
`, map[string]any{"id": complaintID})
	if err != nil {
		return nil, err
	}
	out := make([]Peer, 0, len(records))
	for _, rec := range records {
		out = append(out, Peer{
			ID:       int64Of(rec, "id"),
			Title:    stringOf(rec, "title"),
			Resolved: boolOf(rec, "resolved"),
		})
	}
	return out, nil
}

// UpsertSimilarity merges one SIMILAR_TO edge per ordered pair and overwrites
// its score.
func (c *Client) UpsertSimilarity(ctx context.Context, edges []Edge) error {
	if len(edges) == 0 {
		return nil
	}
	rows := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, map[string]any{"from": e.From, "to": e.To, "score": e.Score})
	}
	return c.write(ctx, "graph.upsert_similarity", `
UNWIND $edges AS e
MATCH (a:Complaint {id: e.from})
MATCH (b:Complaint {id: e.to})
MERGE (a)-[s:SIMILAR_TO]->(b)
SET s.score = e.score
`, map[string]any{"edges": rows})
}

// SimilarResolved follows outgoing similarity edges to resolved complaints
// of the same category, best score first.
func (c *Client) SimilarResolved(ctx context.Context, complaintID int64, limit int) ([]Match, error) {
	records, err := c.read(ctx, "graph.similar_resolved", `
MATCH (c:Complaint {id: $id})-[:BELONGS_TO]->(cat:Category)
MATCH (c)-[s:SIMILAR_TO]->(o:Complaint)-[:BELONGS_TO]->(cat)
MATCH (o)-[:RESOLVED_BY]->(r:Resolution)
RETURN o.id AS id, o.complaint_id AS code, o.title AS title, o.description AS description,
	r.text AS resolution_text, s.score AS score,
	r.time_to_resolve_hours AS hours, r.success_rating AS rating
ORDER BY score DESC, rating DESC
LIMIT $limit
`, map[string]any{"id": complaintID, "limit": int64(limit)})
	if err != nil {
		return nil, err
	}
	out := make([]Match, 0, len(records))
	for _, rec := range records {
		out = append(out, Match{
			ComplaintID:        int64Of(rec, "id"),
			Code:               stringOf(rec, "code"),
			Title:              stringOf(rec, "title"),
			Description:        stringOf(rec, "description"),
			ResolutionText:     stringOf(rec, "resolution_text"),
			Score:              floatOf(rec, "score"),
			TimeToResolveHours: floatOf(rec, "hours"),
			SuccessRating:      floatOf(rec, "rating"),
		})
	}
	return out, nil
}

// Network returns up to limit complaint records of a category with their
// outgoing similarity edges.
func (c *Client) Network(ctx context.Context, categoryID int64, limit int) (Network, error) {
	records, err := c.read(ctx, "graph.network", `
MATCH (c:Complaint)-[:BELONGS_TO]->(:Category {id: $category_id})
OPTIONAL MATCH (c)-[s:SIMILAR_TO]->(o:Complaint)
RETURN c.id AS id, c.complaint_id AS label, c.title AS title, coalesce(c.resolved, false) AS resolved,
	o.id AS other_id, o.complaint_id AS other_label, o.title AS other_title,
	coalesce(o.resolved, false) AS other_resolved, s.score AS score
ORDER BY c.id, o.id
LIMIT $limit
`, map[string]any{"category_id": categoryID, "limit": int64(limit)})
	if err != nil {
		return Network{}, err
	}
	rows := make([]networkRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, networkRowOf(rec))
	}
	return assembleNetwork(rows), nil
}

// networkRow is one complaint and at most one of its outgoing edges.
type networkRow struct {
	Node  NetworkNode
	Other *NetworkNode
	Score float64
}

func networkRowOf(rec *neo4j.Record) networkRow {
	row := networkRow{
		Node: NetworkNode{
			ID:       int64Of(rec, "id"),
			Label:    stringOf(rec, "label"),
			Title:    stringOf(rec, "title"),
			Resolved: boolOf(rec, "resolved"),
		},
	}
	if v, ok := rec.Get("other_id"); ok && v != nil {
		row.Other = &NetworkNode{
			ID:       int64Of(rec, "other_id"),
			Label:    stringOf(rec, "other_label"),
			Title:    stringOf(rec, "other_title"),
			Resolved: boolOf(rec, "other_resolved"),
		}
		row.Score = floatOf(rec, "score")
	}
	return row
}

// assembleNetwork keeps the first occurrence of every node and one edge per
// row that has a target.
func assembleNetwork(rows []networkRow) Network {
	net := Network{Nodes: []NetworkNode{}, Edges: []NetworkEdge{}}
	seen := map[int64]bool{}
	add := func(n NetworkNode) {
		if seen[n.ID] {
			return
		}
		seen[n.ID] = true
		net.Nodes = append(net.Nodes, n)
	}
	for _, row := range rows {
		add(row.Node)
		if row.Other == nil {
			continue
		}
		add(*row.Other)
		net.Edges = append(net.Edges, NetworkEdge{From: row.Node.ID, To: row.Other.ID, Weight: row.Score})
	}
	return net
}

func int64Of(rec *neo4j.Record, key string) int64 {
	v, _ := rec.Get(key)
	switch n := v.(type) {
	case int64:
		return n
	case float64:
		return int64(n)
	}
	return 0
}

func floatOf(rec *neo4j.Record, key string) float64 {
	v, _ := rec.Get(key)
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	}
	return 0
}

func stringOf(rec *neo4j.Record, key string) string {
	v, _ := rec.Get(key)
	s, _ := v.(string)
	return s
}

func boolOf(rec *neo4j.Record, key string) bool {
	v, _ := rec.Get(key)
	b, _ := v.(bool)
	return b
}
