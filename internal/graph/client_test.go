package graph

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	uri := os.Getenv("TEST_NEO4J_URI")
	if uri == "" {
		t.Skip("TEST_NEO4J_URI not set")
	}
	ctx := context.Background()
	c, err := New(ctx, Config{
		URI:      uri,
		User:     os.Getenv("TEST_NEO4J_USER"),
		Password: os.Getenv("TEST_NEO4J_PASSWORD"),
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	c.EnsureSchema(ctx)
	return c
}

// idSpace hands out ids unlikely to collide with other runs and removes the
// nodes it handed out when the test ends.
type idSpace struct {
	base int64
	next int64
}

func newIDSpace(t *testing.T, c *Client) *idSpace {
	s := &idSpace{base: time.Now().UnixNano() / 1000 * 1000}
	t.Cleanup(func() {
		_ = c.write(context.Background(), "test.cleanup", `
MATCH (n) WHERE (n:Complaint OR n:Category) AND n.id >= $lo AND n.id < $hi
OPTIONAL MATCH (n)-[:RESOLVED_BY]->(r:Resolution)
DETACH DELETE n, r
`, map[string]any{"lo": s.base, "hi": s.base + 1000})
	})
	return s
}

func (s *idSpace) id() int64 {
	s.next++
	return s.base + s.next
}

func complaint(t *testing.T, c *Client, id, category int64, title string) {
	t.Helper()
	require.NoError(t, c.UpsertComplaint(context.Background(), ComplaintNode{
		ID: id, Code: fmt.Sprintf("CMP-%d", id), Title: title, CategoryID: category, CategoryName: "Road Damage",
	}))
}

func resolve(t *testing.T, c *Client, id int64, rating float64) {
	t.Helper()
	require.NoError(t, c.UpsertResolution(context.Background(), ResolutionNode{
		ComplaintID: id, Text: fmt.Sprintf("fixed %d", id), TimeToResolveHours: 12, SuccessRating: rating,
	}))
}

func TestSimilarResolvedOrdersAndLimits(t *testing.T) {
	c := testClient(t)
	ids := newIDSpace(t, c)
	ctx := context.Background()
	cat, otherCat := ids.id(), ids.id()

	open := ids.id()
	complaint(t, c, open, cat, "Pothole on Main St")

	type peer struct {
		score, rating float64
	}
	peers := []peer{{0.6, 5}, {0.9, 3}, {0.9, 4.5}, {0.7, 4}, {0.55, 5}, {0.8, 2}, {0.65, 4}}
	var edges []Edge
	byScore := map[int64]peer{}
	for _, p := range peers {
		id := ids.id()
		complaint(t, c, id, cat, "Pothole")
		resolve(t, c, id, p.rating)
		edges = append(edges, Edge{From: open, To: id, Score: p.score})
		byScore[id] = p
	}

	unresolved := ids.id()
	complaint(t, c, unresolved, cat, "Pothole again")
	foreign := ids.id()
	complaint(t, c, foreign, otherCat, "Pothole elsewhere")
	resolve(t, c, foreign, 5)
	edges = append(edges, Edge{From: open, To: unresolved, Score: 0.99}, Edge{From: open, To: foreign, Score: 0.99})
	require.NoError(t, c.UpsertSimilarity(ctx, edges))

	matches, err := c.SimilarResolved(ctx, open, 5)
	require.NoError(t, err)
	require.Len(t, matches, 5)

	var got []peer
	for _, m := range matches {
		assert.Contains(t, byScore, m.ComplaintID)
		got = append(got, peer{m.Score, m.SuccessRating})
	}
	assert.Equal(t, []peer{{0.9, 4.5}, {0.9, 3}, {0.8, 2}, {0.7, 4}, {0.65, 4}}, got)
	assert.Equal(t, fmt.Sprintf("fixed %d", matches[0].ComplaintID), matches[0].ResolutionText)
}

func TestUpsertResolutionKeepsFirstRecord(t *testing.T) {
	c := testClient(t)
	ids := newIDSpace(t, c)
	ctx := context.Background()
	cat, open, done := ids.id(), ids.id(), ids.id()

	complaint(t, c, open, cat, "Pothole")
	complaint(t, c, done, cat, "Pothole")
	resolve(t, c, done, 4.5)
	resolve(t, c, done, 1)
	require.NoError(t, c.UpsertSimilarity(ctx, []Edge{{From: open, To: done, Score: 0.8}}))
	require.NoError(t, c.UpsertSimilarity(ctx, []Edge{{From: open, To: done, Score: 0.9}}))

	matches, err := c.SimilarResolved(ctx, open, 5)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, 4.5, matches[0].SuccessRating)
	assert.Equal(t, 0.9, matches[0].Score)
}

func TestNetworkLabelsAndBound(t *testing.T) {
	c := testClient(t)
	ids := newIDSpace(t, c)
	ctx := context.Background()
	cat := ids.id()

	first, second := ids.id(), ids.id()
	complaint(t, c, first, cat, "Pothole")
	complaint(t, c, second, cat, "Pothole")
	resolve(t, c, second, 4)
	require.NoError(t, c.UpsertSimilarity(ctx, []Edge{{From: first, To: second, Score: 0.8}}))

	net, err := c.Network(ctx, cat, 50)
	require.NoError(t, err)
	require.Len(t, net.Nodes, 2)
	assert.Equal(t, NetworkNode{ID: first, Label: fmt.Sprintf("CMP-%d", first), Title: "Pothole"}, net.Nodes[0])
	assert.True(t, net.Nodes[1].Resolved)
	assert.Equal(t, []NetworkEdge{{From: first, To: second, Weight: 0.8}}, net.Edges)

	for i := 0; i < 60; i++ {
		complaint(t, c, ids.id(), cat, fmt.Sprintf("Streetlight %d", i))
	}
	net, err = c.Network(ctx, cat, 50)
	require.NoError(t, err)
	assert.Len(t, net.Nodes, 50)
}

func TestUpsertComplaintWithoutCategory(t *testing.T) {
	c := testClient(t)
	ids := newIDSpace(t, c)
	ctx := context.Background()
	id := ids.id()

	complaint(t, c, id, 0, "Pothole")

	records, err := c.read(ctx, "test.category_edges", `
MATCH (c:Complaint {id: $id})
OPTIONAL MATCH (c)-[:BELONGS_TO]->(cat:Category)
OPTIONAL MATCH (zero:Category {id: 0})
RETURN count(cat) AS edges, count(zero) AS zero, c.complaint_id AS code
`, map[string]any{"id": id})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Zero(t, int64Of(records[0], "edges"))
	assert.Zero(t, int64Of(records[0], "zero"))
	assert.Equal(t, fmt.Sprintf("CMP-%d", id), stringOf(records[0], "code"))
}
