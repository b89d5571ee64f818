package githubql

import (
	"fmt"

	"github.com/shurcooL/githubv4"
)

type PageInfo struct {
	EndCursor   githubv4.String
	HasNextPage githubv4.Boolean
}

type RepoIdentity struct {
	NameWithOwner githubv4.String
	Name          githubv4.String
	Owner         struct {
		Login githubv4.String
	}
}

type RepoNode struct {
	ID             githubv4.ID
	Name           githubv4.String
	NameWithOwner  githubv4.String
	StargazerCount githubv4.Int
	ForkCount      githubv4.Int
	Owner          struct {
		Login githubv4.String
	}
	Issues struct {
		TotalCount githubv4.Int
	} `graphql:"issues(states: [OPEN])"`
	RepositoryTopics struct {
		Nodes []struct {
			Topic struct {
				Name githubv4.String
			}
		}
	} `graphql:"repositoryTopics(first: 20)"`
}

type LabelNode struct {
	Name  githubv4.String
	Color githubv4.String
}

// IssueRefNode là issue được một PR tham chiếu đóng, có thể thuộc repo khác
type IssueRefNode struct {
	Number     githubv4.Int
	Repository RepoIdentity
}

// PullRefNode là PR đóng một issue, có thể thuộc repo khác
type PullRefNode struct {
	Number     githubv4.Int
	Repository RepoIdentity
}

type PullNode struct {
	ID         githubv4.ID
	Number     githubv4.Int
	Title      githubv4.String
	State      githubv4.String
	UpdatedAt  githubv4.DateTime
	MergedAt   *githubv4.DateTime
	ClosedAt   *githubv4.DateTime
	Author     struct {
		Login githubv4.String
	}
	Repository RepoIdentity
	Labels     struct {
		Nodes []LabelNode
	} `graphql:"labels(first: 50)"`
	ClosingIssuesReferences struct {
		Nodes []IssueRefNode
	} `graphql:"closingIssuesReferences(first: 10)"`
}

type IssueNode struct {
	ID         githubv4.ID
	Number     githubv4.Int
	Title      githubv4.String
	State      githubv4.String
	UpdatedAt  githubv4.DateTime
	ClosedAt   *githubv4.DateTime
	Author     struct {
		Login githubv4.String
	}
	Repository RepoIdentity
	Labels     struct {
		Nodes []LabelNode
	} `graphql:"labels(first: 50)"`
	ClosedByPullRequestsReferences struct {
		Nodes []PullRefNode
	} `graphql:"closedByPullRequestsReferences(first: 10)"`
}

// NodeID chuyển githubv4.ID về chuỗi để làm khóa upsert
func NodeID(id githubv4.ID) string {
	return fmt.Sprintf("%v", id)
}

type NodeKind int

const (
	KindUnknown NodeKind = iota
	KindRepository
	KindPullRequest
	KindIssue
)

// Node là tagged union cho kết quả search, đúng một nhánh khác nil
type Node struct {
	Repository  *RepoNode
	PullRequest *PullNode
	Issue       *IssueNode
}

func (n Node) Kind() NodeKind {
	switch {
	case n.Repository != nil:
		return KindRepository
	case n.PullRequest != nil:
		return KindPullRequest
	case n.Issue != nil:
		return KindIssue
	default:
		return KindUnknown
	}
}

// SearchNode là node thô từ search API, phân nhánh bằng __typename
type SearchNode struct {
	TypeName    githubv4.String `graphql:"__typename"`
	Repository  RepoNode        `graphql:"... on Repository"`
	PullRequest PullNode        `graphql:"... on PullRequest"`
	Issue       IssueNode       `graphql:"... on Issue"`
}

// Node chuyển search node thô về tagged union
func (s SearchNode) Node() Node {
	switch string(s.TypeName) {
	case "Repository":
		repo := s.Repository
		return Node{Repository: &repo}
	case "PullRequest":
		pull := s.PullRequest
		return Node{PullRequest: &pull}
	case "Issue":
		issue := s.Issue
		return Node{Issue: &issue}
	default:
		return Node{}
	}
}
