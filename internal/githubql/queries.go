package githubql

import "github.com/shurcooL/githubv4"

type viewer struct {
	Login githubv4.String
}

// RepoPullsQuery lấy một trang pull request đang mở của một repo
type RepoPullsQuery struct {
	RateLimit  RateLimit
	Viewer     viewer
	Repository struct {
		ID           githubv4.ID
		PullRequests struct {
			Nodes    []PullNode
			PageInfo PageInfo
		} `graphql:"pullRequests(first: $perPage, after: $cursor, states: [OPEN], orderBy: {field: UPDATED_AT, direction: ASC})"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

func (q *RepoPullsQuery) RateLimitSnapshot() Snapshot { return q.RateLimit.Snapshot() }
func (q *RepoPullsQuery) ViewerLogin() string         { return string(q.Viewer.Login) }

// RepoIssuesQuery lấy một trang issue đang mở của một repo
type RepoIssuesQuery struct {
	RateLimit  RateLimit
	Viewer     viewer
	Repository struct {
		ID     githubv4.ID
		Issues struct {
			Nodes    []IssueNode
			PageInfo PageInfo
		} `graphql:"issues(first: $perPage, after: $cursor, states: [OPEN], orderBy: {field: UPDATED_AT, direction: ASC})"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

func (q *RepoIssuesQuery) RateLimitSnapshot() Snapshot { return q.RateLimit.Snapshot() }
func (q *RepoIssuesQuery) ViewerLogin() string         { return string(q.Viewer.Login) }

// SearchQuery lấy một trang kết quả search hỗn hợp kind
type SearchQuery struct {
	RateLimit RateLimit
	Viewer    viewer
	Search    struct {
		Nodes    []SearchNode
		PageInfo PageInfo
	} `graphql:"search(query: $query, type: ISSUE, first: $perPage, after: $cursor)"`
}

func (q *SearchQuery) RateLimitSnapshot() Snapshot { return q.RateLimit.Snapshot() }
func (q *SearchQuery) ViewerLogin() string         { return string(q.Viewer.Login) }

// RepoQuery lấy metadata một repo theo natural key
type RepoQuery struct {
	RateLimit  RateLimit
	Viewer     viewer
	Repository RepoNode `graphql:"repository(owner: $owner, name: $name)"`
}

func (q *RepoQuery) RateLimitSnapshot() Snapshot { return q.RateLimit.Snapshot() }
func (q *RepoQuery) ViewerLogin() string         { return string(q.Viewer.Login) }

// PullQuery lấy đúng một pull request theo number
type PullQuery struct {
	RateLimit  RateLimit
	Viewer     viewer
	Repository struct {
		PullRequest PullNode `graphql:"pullRequest(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

func (q *PullQuery) RateLimitSnapshot() Snapshot { return q.RateLimit.Snapshot() }
func (q *PullQuery) ViewerLogin() string         { return string(q.Viewer.Login) }

// IssueQuery lấy đúng một issue theo number
type IssueQuery struct {
	RateLimit  RateLimit
	Viewer     viewer
	Repository struct {
		Issue IssueNode `graphql:"issue(number: $number)"`
	} `graphql:"repository(owner: $owner, name: $name)"`
}

func (q *IssueQuery) RateLimitSnapshot() Snapshot { return q.RateLimit.Snapshot() }
func (q *IssueQuery) ViewerLogin() string         { return string(q.Viewer.Login) }
