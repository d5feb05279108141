package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func pendingOf(kind ObjectKind, name string, deps ...string) pendingCreate {
	o := &Object{Kind: kind, Schema: "dbo", Name: name, Dependencies: deps}
	return pendingCreate{object: o, statement: "CREATE " + name + ";\nGO\n"}
}

func TestOrderPendingCreatesDependencyFirst(t *testing.T) {
	ordered := orderPendingCreates([]pendingCreate{
		pendingOf(ObjectKindTable, "Child", "Table:dbo.Parent"),
		pendingOf(ObjectKindTable, "Parent"),
	})

	assert.Equal(t, []string{"CREATE Parent;\nGO\n", "CREATE Child;\nGO\n"}, ordered)
}

func TestOrderPendingCreatesTieBreak(t *testing.T) {
	// No edges at all: order falls back to (create priority, key).
	ordered := orderPendingCreates([]pendingCreate{
		pendingOf(ObjectKindStoredProcedure, "Proc"),
		pendingOf(ObjectKindView, "View"),
		pendingOf(ObjectKindTable, "Beta"),
		pendingOf(ObjectKindTable, "alpha"),
		pendingOf(ObjectKindFunction, "Func"),
	})

	assert.Equal(t, []string{
		"CREATE alpha;\nGO\n",
		"CREATE Beta;\nGO\n",
		"CREATE Func;\nGO\n",
		"CREATE View;\nGO\n",
		"CREATE Proc;\nGO\n",
	}, ordered)
}

func TestOrderPendingCreatesChain(t *testing.T) {
	// C -> B -> A; A sorts first by key but must wait for both.
	ordered := orderPendingCreates([]pendingCreate{
		pendingOf(ObjectKindTable, "A", "Table:dbo.B"),
		pendingOf(ObjectKindTable, "B", "Table:dbo.C"),
		pendingOf(ObjectKindTable, "C"),
	})

	assert.Equal(t, []string{"CREATE C;\nGO\n", "CREATE B;\nGO\n", "CREATE A;\nGO\n"}, ordered)
}

func TestOrderPendingCreatesIgnoresOutsideAndSelfDependencies(t *testing.T) {
	ordered := orderPendingCreates([]pendingCreate{
		pendingOf(ObjectKindTable, "Solo", "Table:dbo.Solo", "Table:dbo.Missing"),
	})
	assert.Equal(t, []string{"CREATE Solo;\nGO\n"}, ordered)
}

func TestOrderPendingCreatesDeduplicatesByKey(t *testing.T) {
	first := pendingOf(ObjectKindTable, "T")
	duplicate := pendingOf(ObjectKindTable, "T")
	duplicate.statement = "CREATE duplicate;\nGO\n"

	ordered := orderPendingCreates([]pendingCreate{first, duplicate})
	assert.Equal(t, []string{"CREATE T;\nGO\n"}, ordered)
}

func TestOrderPendingCreatesCycleFallback(t *testing.T) {
	ordered := orderPendingCreates([]pendingCreate{
		pendingOf(ObjectKindView, "V2", "View:dbo.V1"),
		pendingOf(ObjectKindView, "V1", "View:dbo.V2"),
		pendingOf(ObjectKindTable, "T"),
	})

	joined := strings.Join(ordered, "")
	assert.Equal(t, 1, strings.Count(joined, CycleWarningComment))
	assert.Equal(t, 1, strings.Count(joined, "CREATE V1;"))
	assert.Equal(t, 1, strings.Count(joined, "CREATE V2;"))

	// The acyclic node is emitted before the warning, the cycle members
	// after it in (priority, key) order.
	assert.Equal(t, []string{
		"CREATE T;\nGO\n",
		CycleWarningComment + "\n",
		"CREATE V1;\nGO\n",
		"CREATE V2;\nGO\n",
	}, ordered)
}
