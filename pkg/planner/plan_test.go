package planner

import (
	"testing"

	"github.com/cuemby/agentpool/pkg/types"
	"github.com/stretchr/testify/assert"
)

func task(id string, provider types.Provider, fraction float64, dependsOn string) types.TaskDescriptor {
	return types.TaskDescriptor{SubagentID: id, Provider: provider, ReservedFraction: fraction, DependsOn: dependsOn}
}

func TestBuild_NoEdgesFitsParallel(t *testing.T) {
	tasks := []types.TaskDescriptor{
		task("a", types.ProviderVLLM, 0.2, ""),
		task("b", types.ProviderVLLM, 0.2, ""),
	}
	plan := Build(tasks, 0.80)

	assert.True(t, plan.CanRun)
	assert.Equal(t, StrategyParallel, plan.Strategy)
	assert.ElementsMatch(t, []string{"a", "b"}, plan.Order)
}

func TestBuild_NoEdgesExceedsCapFallsBackSequential(t *testing.T) {
	tasks := []types.TaskDescriptor{
		task("a", types.ProviderVLLM, 0.5, ""),
		task("b", types.ProviderVLLM, 0.5, ""),
		task("c", types.ProviderVLLM, 0.5, ""),
	}
	plan := Build(tasks, 0.80)

	assert.True(t, plan.CanRun)
	assert.Equal(t, StrategySequential, plan.Strategy)
	assert.NotEmpty(t, plan.Reason)
}

func TestBuild_NonAcceleratedProvidersIgnoredByMemoryCheck(t *testing.T) {
	tasks := []types.TaskDescriptor{
		task("a", types.ProviderOpenAI, 0, ""),
		task("b", types.ProviderAnthropic, 0, ""),
	}
	plan := Build(tasks, 0.10)

	assert.Equal(t, StrategyParallel, plan.Strategy)
}

func TestBuild_LinearChainIsSequential(t *testing.T) {
	tasks := []types.TaskDescriptor{
		task("a", types.ProviderVLLM, 0.1, ""),
		task("b", types.ProviderVLLM, 0.1, "a"),
		task("c", types.ProviderVLLM, 0.1, "b"),
	}
	plan := Build(tasks, 0.80)

	assert.True(t, plan.CanRun)
	assert.Equal(t, StrategySequential, plan.Strategy)
	assert.Equal(t, []string{"a", "b", "c"}, plan.Order)
}

func TestBuild_DiamondDependencyOrdersParentsBeforeChildren(t *testing.T) {
	tasks := []types.TaskDescriptor{
		task("root", types.ProviderVLLM, 0.1, ""),
		task("left", types.ProviderVLLM, 0.1, "root"),
		task("right", types.ProviderVLLM, 0.1, "root"),
	}
	plan := Build(tasks, 0.80)

	require := assert.New(t)
	require.True(plan.CanRun)
	require.Equal(StrategySequential, plan.Strategy)
	require.Equal("root", plan.Order[0])
	require.ElementsMatch([]string{"left", "right"}, plan.Order[1:])
}

func TestBuild_CycleReportsResidualAndCannotRun(t *testing.T) {
	tasks := []types.TaskDescriptor{
		task("a", types.ProviderVLLM, 0.1, "b"),
		task("b", types.ProviderVLLM, 0.1, "a"),
	}
	plan := Build(tasks, 0.80)

	assert.False(t, plan.CanRun)
	assert.ElementsMatch(t, []string{"a", "b"}, plan.Order)
	assert.NotEmpty(t, plan.Reason)
}

func TestBuild_SelfReferenceIsACycle(t *testing.T) {
	tasks := []types.TaskDescriptor{
		task("a", types.ProviderVLLM, 0.1, "a"),
	}
	plan := Build(tasks, 0.80)
	assert.False(t, plan.CanRun)
	assert.Equal(t, []string{"a"}, plan.Order)
}

func TestBuild_MissingDependencyIsTreatedAsUnschedulable(t *testing.T) {
	tasks := []types.TaskDescriptor{
		task("a", types.ProviderVLLM, 0.1, "ghost"),
	}
	plan := Build(tasks, 0.80)
	assert.False(t, plan.CanRun)
	assert.Equal(t, []string{"a"}, plan.Order)
}

func TestMaxFeasibleSubsetSize_PicksSmallestFirst(t *testing.T) {
	tasks := []types.TaskDescriptor{
		task("a", types.ProviderVLLM, 0.5, ""),
		task("b", types.ProviderVLLM, 0.2, ""),
		task("c", types.ProviderVLLM, 0.2, ""),
	}
	k, total := maxFeasibleSubsetSize(tasks, 0.45)
	assert.Equal(t, 2, k) // 0.2 + 0.2 fits, 0.5 alone does not combine
	assert.Equal(t, 3, total)
}

func TestBuild_EmptyBatch(t *testing.T) {
	plan := Build(nil, 0.80)
	assert.True(t, plan.CanRun)
	assert.Equal(t, StrategyParallel, plan.Strategy)
	assert.Empty(t, plan.Order)
}
