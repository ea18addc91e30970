package cypher

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/graphogm/internal/graph"
)

func TestCatalog_PlanVertex(t *testing.T) {
	c := newCatalog()
	assert.False(t, c.hasVertexLabel(""))

	stmts, commit, err := c.planVertex("Person", graph.Props{"name": "Ann", "age": int64(3), "born": time.Now(), "id": 9})
	require.NoError(t, err)
	require.Len(t, stmts, 1)
	assert.Equal(t,
		"CREATE NODE TABLE IF NOT EXISTS `Person`(`_uid` INT64, `age` INT64, `born` TIMESTAMP, `name` STRING, PRIMARY KEY(`_uid`))",
		stmts[0])
	assert.False(t, c.hasVertexLabel("Person"), "nothing recorded before commit")

	commit()
	assert.True(t, c.hasVertexLabel("Person"))
	assert.True(t, c.hasVertexLabel(""))
	assert.True(t, c.hasProperty("Person", "name"))
	assert.True(t, c.hasProperty("", KeyUID))
	assert.False(t, c.hasProperty("Person", "email"))

	stmts, commit, err = c.planVertex("Person", graph.Props{"name": "Bob", "email": "b@x.io", "score": 1.5})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"ALTER TABLE `Person` ADD `email` STRING",
		"ALTER TABLE `Person` ADD `score` DOUBLE",
	}, stmts)
	commit()

	stmts, _, err = c.planVertex("Person", graph.Props{"email": "c@x.io"})
	require.NoError(t, err)
	assert.Empty(t, stmts)
}

func TestCatalog_PlanEdge(t *testing.T) {
	c := newCatalog()

	stmts, commit, err := c.planEdge("knows", "Person", "Person", graph.Props{"since": int64(2020)})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"CREATE REL TABLE IF NOT EXISTS `knows`(FROM `Person` TO `Person`, `_uid` INT64, `since` INT64)",
	}, stmts)
	commit()
	assert.True(t, c.hasEdgeLabel("knows"))
	assert.True(t, c.hasEdgeLabel(""))

	stmts, commit, err = c.planEdge("knows", "Person", "City", graph.Props{"note": "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{
		"ALTER TABLE `knows` ADD FROM `Person` TO `City`",
		"ALTER TABLE `knows` ADD `note` STRING",
	}, stmts)
	commit()

	stmts, _, err = c.planEdge("knows", "Person", "City", nil)
	require.NoError(t, err)
	assert.Empty(t, stmts)
}

func TestCatalog_Errors(t *testing.T) {
	c := newCatalog()
	_, _, err := c.planVertex("Bad`Label", nil)
	assert.ErrorIs(t, err, ErrInvalidName)

	_, _, err = c.planVertex("Person", graph.Props{"tags": []string{"a"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported property type")
}

func TestCatalog_Accepts(t *testing.T) {
	c := newCatalog()
	_, commit, err := c.planVertex("Person", graph.Props{"name": "Ann", "age": 3, "score": 1.5, "active": true})
	require.NoError(t, err)
	commit()

	tests := []struct {
		name  string
		label string
		key   string
		value any
		want  bool
	}{
		{"same type", "Person", "age", 30, true},
		{"widened integer", "Person", "age", int32(30), true},
		{"string against integer", "Person", "age", "thirty", false},
		{"float against integer", "Person", "age", 30.0, false},
		{"integer against double", "Person", "score", 2, false},
		{"integer against string", "Person", "name", 7, false},
		{"bool", "Person", "active", false, true},
		{"unsupported kind", "Person", "name", []int{1}, false},
		{"nil", "Person", "age", nil, true},
		{"unknown column", "Person", "email", 7, true},
		{"any label", "", "age", int64(1), true},
		{"any label mismatch", "", "age", "x", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, c.accepts(tt.label, tt.key, tt.value))
		})
	}
}

func TestCatalog_AcceptsLoadedTypes(t *testing.T) {
	c := newCatalog()
	require.NoError(t, c.load(func(stmt string) ([]Record, error) {
		switch {
		case strings.HasPrefix(stmt, "CALL SHOW_TABLES()"):
			return []Record{{"Flag", "NODE"}}, nil
		case strings.HasPrefix(stmt, "CALL TABLE_INFO('Flag')"):
			return []Record{{KeyUID, "INT64"}, {"on", "BOOL"}, {"small", "INT32"}}, nil
		}
		return nil, nil
	}))
	assert.True(t, c.accepts("Flag", "on", true))
	assert.False(t, c.accepts("Flag", "on", "yes"))
	assert.True(t, c.accepts("Flag", "small", "anything"), "foreign column types are left to the store")
}

func TestCatalog_Load(t *testing.T) {
	c := newCatalog()
	q := func(stmt string) ([]Record, error) {
		switch {
		case strings.HasPrefix(stmt, "CALL SHOW_TABLES()"):
			return []Record{{"Person", "NODE"}, {"knows", "REL"}}, nil
		case stmt == "CALL TABLE_INFO('Person') RETURN name, type":
			return []Record{{KeyUID, "INT64"}, {"name", "STRING"}}, nil
		case stmt == "CALL TABLE_INFO('knows') RETURN name, type":
			return []Record{{KeyUID, "INT64"}}, nil
		case stmt == "CALL SHOW_CONNECTION('knows') RETURN *":
			return []Record{{"Person", "Person", KeyUID, KeyUID}}, nil
		}
		return nil, errors.New("unexpected " + stmt)
	}
	require.NoError(t, c.load(q))
	assert.True(t, c.hasProperty("Person", "name"))
	assert.True(t, c.hasEdgeLabel("knows"))

	stmts, _, err := c.planEdge("knows", "Person", "Person", nil)
	require.NoError(t, err)
	assert.Empty(t, stmts, "loaded pair is known")

	err = c.load(func(string) ([]Record, error) { return nil, errors.New("boom") })
	assert.Error(t, err)
	assert.True(t, c.hasVertexLabel("Person"), "failed load keeps the previous state")
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, `it\'s`, literal("it's"))
	assert.Equal(t, `a\\b`, literal(`a\b`))
}
