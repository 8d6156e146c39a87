package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tourdesk/internal/record"
)

func bookings() []record.Record {
	return []record.Record{
		record.MustFromMap(map[string]any{"id": "b1", "status": "active", "seats": 2}),
		record.MustFromMap(map[string]any{"id": "b2", "status": "pending", "seats": 4}),
		record.MustFromMap(map[string]any{"id": "b3", "status": "vip", "seats": 2}),
	}
}

func ids(records []record.Record) []string {
	out := make([]string, 0, len(records))
	for _, r := range records {
		id, _ := r.ID()
		out = append(out, id)
	}
	return out
}

func TestFilterSetMembershipPreservesOrder(t *testing.T) {
	q := Parse(map[string]any{"status": map[string]any{"in": []any{"active", "vip"}}})

	got := Filter(bookings(), q)

	assert.Equal(t, []string{"b1", "b3"}, ids(got))
}

func TestFilterEqualityAndConjunction(t *testing.T) {
	q := Parse(map[string]any{"seats": 2, "status": "vip"})

	assert.Equal(t, []string{"b3"}, ids(Filter(bookings(), q)))
}

func TestEmptyQuerySelectsAll(t *testing.T) {
	assert.Equal(t, []string{"b1", "b2", "b3"}, ids(Filter(bookings(), All)))
	assert.Equal(t, []string{"b1", "b2", "b3"}, ids(Filter(bookings(), Parse(nil))))
}

func TestMissingFieldNeverMatches(t *testing.T) {
	q := Where(Equals("driver", nil))

	assert.Empty(t, Filter(bookings(), q), "absent field must not equal null")
}

func TestEqualityIsStrict(t *testing.T) {
	q := Parse(map[string]any{"seats": "2"})

	assert.Empty(t, Filter(bookings(), q), "string 2 must not match number 2")
}

func TestLargeIntegersMatchExactly(t *testing.T) {
	rows := []record.Record{
		{"id": record.String("r1"), "n": record.Int(9007199254740993)},
		{"id": record.String("r2"), "n": record.Int(9007199254740992)},
	}

	assert.Equal(t, []string{"r2"}, ids(Filter(rows, Where(Equals("n", int64(9007199254740992))))))
	assert.Equal(t, []string{"r1"}, ids(Filter(rows, Where(OneOf("n", int64(9007199254740993))))))
}

func TestMalformedClausesMatchNothing(t *testing.T) {
	cases := map[string]map[string]any{
		"unknown operator":  {"seats": map[string]any{"gt": 1}},
		"in without list":   {"status": map[string]any{"in": "active"}},
		"two operator keys": {"status": map[string]any{"in": []any{"a"}, "nin": []any{"b"}}},
		"bad value":         {"status": struct{}{}},
	}
	for name, where := range cases {
		t.Run(name, func(t *testing.T) {
			q := Parse(where)
			require.Len(t, q.Where, 1)
			assert.IsType(t, Invalid{}, q.Where[0])
			assert.Empty(t, Filter(bookings(), q))
		})
	}
}

func TestEmptyInSetMatchesNothing(t *testing.T) {
	q := Parse(map[string]any{"status": map[string]any{"in": []any{}}})

	assert.Empty(t, Filter(bookings(), q))
	res := Validate(q)
	assert.False(t, res.OK)
	assert.Contains(t, res.Warnings[0], "empty in-set")
}

func TestParseJSON(t *testing.T) {
	q, err := ParseJSON([]byte(`{"where":{"status":{"in":["active","vip"]},"seats":2}}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"seats", "status"}, q.Fields())
	assert.Equal(t, []string{"b1", "b3"}, ids(Filter(bookings(), q)))

	q, err = ParseJSON([]byte(`{}`))
	require.NoError(t, err)
	assert.True(t, q.IsEmpty())

	q, err = ParseJSON([]byte(`{"where": 5}`))
	require.NoError(t, err)
	assert.Empty(t, Filter(bookings(), q))

	_, err = ParseJSON([]byte(`{"where":`))
	require.Error(t, err)
}

func TestParseWhereJSON(t *testing.T) {
	q, err := ParseWhereJSON([]byte(`{"status":"pending"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"b2"}, ids(Filter(bookings(), q)))

	q, err = ParseWhereJSON([]byte("  "))
	require.NoError(t, err)
	assert.True(t, q.IsEmpty())

	_, err = ParseWhereJSON([]byte(`[1]`))
	require.Error(t, err)
}

// prefix is a clause kind added from outside the package.
type prefix struct {
	name, p string
}

func (c prefix) Field() string { return c.name }

func (c prefix) Match(v record.Value) bool {
	s, ok := v.(record.String)
	return ok && strings.HasPrefix(string(s), c.p)
}

func TestRegisteredOperatorExtendsLanguage(t *testing.T) {
	p := NewParser()
	p.Register("prefix", func(field string, arg any) Clause {
		s, ok := arg.(string)
		if !ok {
			return Invalid{Name: field, Reason: "prefix expects a string"}
		}
		return prefix{name: field, p: s}
	})

	q := p.Parse(map[string]any{"status": map[string]any{"prefix": "p"}})
	assert.Equal(t, []string{"b2"}, ids(Filter(bookings(), q)))

	// The default parser is unaffected.
	q = Parse(map[string]any{"status": map[string]any{"prefix": "p"}})
	assert.Empty(t, Filter(bookings(), q))
}

func TestQueryTotalityOverArbitraryShapes(t *testing.T) {
	shapes := []any{nil, 1, "x", true, []any{1, "a"}, map[string]any{}, map[string]any{"in": nil}}
	for _, shape := range shapes {
		q := Parse(map[string]any{"status": shape})
		got := Filter(bookings(), q)
		for _, r := range got {
			assert.True(t, q.Matches(r))
		}
		assert.LessOrEqual(t, len(got), 3)
	}
}

func TestValidateReportsInvalidClauses(t *testing.T) {
	res := Validate(Parse(map[string]any{"seats": map[string]any{"between": []any{1, 2}}}))

	assert.False(t, res.OK)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], `unsupported operator "between"`)

	assert.True(t, Validate(All).OK)
}
