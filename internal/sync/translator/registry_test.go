package translator

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitesync/internal/core/apperror"
	"sitesync/internal/domain"
	"sitesync/internal/sync/changelog"
	"sitesync/internal/sync/wire"
)

type stubTranslator struct {
	table string
	deps  []string
}

func (s stubTranslator) TableName() string          { return s.table }
func (s stubTranslator) PullDependencies() []string { return s.deps }

func (s stubTranslator) TryTranslatePull(context.Context, domain.Repositories, wire.Record) (PullResult, error) {
	return IgnoreOf("stub"), nil
}

func (s stubTranslator) TranslatePush(context.Context, domain.Repositories, changelog.Entry) (*wire.Record, error) {
	return nil, nil
}

func stub(table string, deps ...string) Translator {
	return stubTranslator{table: table, deps: deps}
}

func TestNewRegistry_Duplicate(t *testing.T) {
	_, err := NewRegistry(stub("a"), stub("a"))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeConflict, apperror.CodeOf(err))
}

func TestNewRegistry_EmptyTableName(t *testing.T) {
	_, err := NewRegistry(stub(""))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
}

func TestNewRegistry_UnregisteredDependency(t *testing.T) {
	_, err := NewRegistry(stub("line", "header"))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
}

func TestNewRegistry_Cycle(t *testing.T) {
	_, err := NewRegistry(stub("a", "b"), stub("b", "c"), stub("c", "a"), stub("d"))
	require.Error(t, err)
	assert.True(t, apperror.IsDependencyCycle(err))

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, "a -> b -> c -> a", appErr.Details["cycle"])
}

func TestNewRegistry_SelfCycle(t *testing.T) {
	_, err := NewRegistry(stub("a", "a"))
	assert.True(t, apperror.IsDependencyCycle(err))
}

func TestRegister_RejectedOnceValidated(t *testing.T) {
	r, err := NewRegistry(stub("name"), stub("store", "name"))
	require.NoError(t, err)

	err = r.Register(stub("item"))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))

	_, err = r.Lookup("item")
	assert.True(t, apperror.IsNotFound(err))
	assert.Equal(t, []string{"name", "store"}, r.PullOrder())
	assert.Equal(t, []string{"name", "store"}, r.ResolvePullOrder([]string{"store", "name"}))
}

func TestLookup(t *testing.T) {
	r, err := NewRegistry(stub("name"), stub("store", "name"))
	require.NoError(t, err)

	tr, err := r.Lookup("store")
	require.NoError(t, err)
	assert.Equal(t, "store", tr.TableName())

	_, err = r.Lookup("stock_take")
	assert.True(t, apperror.IsNotFound(err))

	assert.Equal(t, []string{"name", "store"}, r.Tables())
}

func TestPullOrder_Deterministic(t *testing.T) {
	r, err := NewRegistry(
		stub("invoice_line", "invoice", "item"),
		stub("invoice", "store", "name"),
		stub("store", "name"),
		stub("item"),
		stub("name"),
	)
	require.NoError(t, err)

	assert.Equal(t, []string{"item", "name", "store", "invoice", "invoice_line"}, r.PullOrder())

	rank := r.Rank()
	assert.Less(t, rank["name"], rank["store"])
	assert.Less(t, rank["invoice"], rank["invoice_line"])
}

func TestResolvePullOrder_UnknownTablesLast(t *testing.T) {
	r, err := NewRegistry(stub("name"), stub("store", "name"))
	require.NoError(t, err)

	got := r.ResolvePullOrder([]string{"zeta", "store", "alpha", "name", "store"})
	assert.Equal(t, []string{"name", "store", "alpha", "zeta"}, got)
}

func TestResolvePullOrder_RespectsTransitiveDependencies(t *testing.T) {
	translators := []Translator{
		stub("a"),
		stub("b", "a"),
		stub("c", "b"),
		stub("d", "c", "a"),
		stub("e"),
		stub("f", "e", "d"),
	}
	deps := make(map[string][]string, len(translators))
	for _, tr := range translators {
		deps[tr.TableName()] = tr.PullDependencies()
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 50; i++ {
		shuffled := append([]Translator(nil), translators...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		r, err := NewRegistry(shuffled...)
		require.NoError(t, err)

		present := []string{"f", "c", "a", "e", "d", "b"}
		rng.Shuffle(len(present), func(i, j int) { present[i], present[j] = present[j], present[i] })

		order := r.ResolvePullOrder(present)
		require.Len(t, order, len(present))

		pos := make(map[string]int, len(order))
		for i, table := range order {
			pos[table] = i
		}
		for table, ds := range deps {
			for _, d := range ds {
				assert.Less(t, pos[d], pos[table], "%s must follow %s", table, d)
			}
		}
	}
}

func TestPullResult_Apply(t *testing.T) {
	var applied []string
	res := DeleteOf("r1", func(_ context.Context, _ domain.Repositories, id string) error {
		applied = append(applied, id)
		return nil
	})
	assert.Equal(t, PullDelete, res.Kind)
	require.NoError(t, res.Apply(context.Background(), nil))
	assert.Equal(t, []string{"r1"}, applied)

	require.NoError(t, NotMine("x").Apply(context.Background(), nil))
	assert.Equal(t, "ignore", IgnoreOf("y").Kind.String())
}
