package fetcher

import (
	"github.com/thep200/github-syncer/internal/githubql"
)

// Batch là kết quả một lần fetch logic sau khi phân loại node theo kind.
// Repositories khử trùng lặp theo natural key, giá trị nil khi mới chỉ biết
// identity từ node cha của một PR/issue.
type Batch struct {
	Repositories map[string]*githubql.RepoNode
	PullRequests []githubql.PullNode
	Issues       []githubql.IssueNode
}

func NewBatch() *Batch {
	return &Batch{
		Repositories: make(map[string]*githubql.RepoNode),
	}
}

// SeeRepo ghi nhận một repo đã gặp. Lần gặp đầu thắng, gặp lại là no-op,
// trừ khi bản ghi cũ chỉ có identity và bản mới mang đủ metadata.
func (b *Batch) SeeRepo(naturalKey string, node *githubql.RepoNode) {
	if naturalKey == "" {
		return
	}
	existing, seen := b.Repositories[naturalKey]
	if !seen {
		b.Repositories[naturalKey] = node
		return
	}
	if existing == nil && node != nil {
		b.Repositories[naturalKey] = node
	}
}

// Classify phân loại một node search theo kind. Node PR/issue luôn kéo theo
// identity repo cha vào tập đã gặp.
func (b *Batch) Classify(node githubql.Node) {
	switch node.Kind() {
	case githubql.KindRepository:
		b.SeeRepo(string(node.Repository.NameWithOwner), node.Repository)
	case githubql.KindPullRequest:
		b.PullRequests = append(b.PullRequests, *node.PullRequest)
		b.SeeRepo(string(node.PullRequest.Repository.NameWithOwner), nil)
	case githubql.KindIssue:
		b.Issues = append(b.Issues, *node.Issue)
		b.SeeRepo(string(node.Issue.Repository.NameWithOwner), nil)
	case githubql.KindUnknown:
		// node không thuộc kind nào cần mirror, bỏ qua
	}
}

// Size trả về tổng số item đã phân loại
func (b *Batch) Size() int {
	return len(b.Repositories) + len(b.PullRequests) + len(b.Issues)
}
