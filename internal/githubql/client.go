// Gói githubql bọc GitHub GraphQL API. Transport nhận (query, variables, token)
// và điền kết quả vào query struct, lỗi mạng hay lỗi query đều trả về qua error.
// Executor ở tầng trên chịu trách nhiệm phân loại và nuốt lỗi.

package githubql

import (
	"context"

	"github.com/shurcooL/githubv4"
	"github.com/thep200/github-syncer/cfg"
	"golang.org/x/oauth2"
)

// Querier là contract transport mà executor sử dụng
type Querier interface {
	Query(ctx context.Context, token string, query interface{}, variables map[string]interface{}) error
}

type Client struct {
	Config *cfg.Config
}

func NewClient(config *cfg.Config) (*Client, error) {
	return &Client{Config: config}, nil
}

// Query thực hiện một call GraphQL với bearer token được chọn cho call đó.
// Client githubv4 được dựng theo từng call vì token thay đổi theo credential.
func (c *Client) Query(ctx context.Context, token string, query interface{}, variables map[string]interface{}) error {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(ctx, src)

	var client *githubv4.Client
	if c.Config.Github.GraphqlUrl == "" || c.Config.Github.GraphqlUrl == "https://api.github.com/graphql" {
		client = githubv4.NewClient(httpClient)
	} else {
		client = githubv4.NewEnterpriseClient(c.Config.Github.GraphqlUrl, httpClient)
	}

	return client.Query(ctx, query, variables)
}
