package githubql

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentageUsedRoundsToTwoDecimals(t *testing.T) {
	assert.Equal(t, 0.84, Snapshot{Used: 42, Limit: 5000}.PercentageUsed())
	assert.Equal(t, 33.33, Snapshot{Used: 1, Limit: 3}.PercentageUsed())
	assert.Equal(t, 100.0, Snapshot{Used: 5000, Limit: 5000}.PercentageUsed())
}

func TestPercentageUsedKeepsValuesOverHundred(t *testing.T) {
	// used có thể thuộc cửa sổ trước khi reset, giữ nguyên để báo cáo
	assert.Equal(t, 110.0, Snapshot{Used: 5500, Limit: 5000}.PercentageUsed())
}

func TestPercentageUsedZeroLimit(t *testing.T) {
	assert.Equal(t, 0.0, Snapshot{Used: 10, Limit: 0}.PercentageUsed())
}

func TestSearchNodeDispatchesByTypename(t *testing.T) {
	repo := SearchNode{TypeName: "Repository"}
	repo.Repository.NameWithOwner = "tea/pot"
	assert.Equal(t, KindRepository, repo.Node().Kind())

	pull := SearchNode{TypeName: "PullRequest"}
	pull.PullRequest.Number = 5
	node := pull.Node()
	assert.Equal(t, KindPullRequest, node.Kind())
	assert.Equal(t, 5, int(node.PullRequest.Number))

	issue := SearchNode{TypeName: "Issue"}
	assert.Equal(t, KindIssue, issue.Node().Kind())

	unknown := SearchNode{TypeName: "Discussion"}
	assert.Equal(t, KindUnknown, unknown.Node().Kind())
}
