// Gói ingest nhận batch đã phân loại từ fetcher và ghi vào store. Repo thiếu
// được schedule fetch out-of-band, item upsert theo remote id, lỗi của một
// repo không chặn các repo khác trong cùng batch.

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/shurcooL/githubv4"
	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/internal/fetcher"
	"github.com/thep200/github-syncer/internal/githubql"
	"github.com/thep200/github-syncer/internal/model"
	"github.com/thep200/github-syncer/internal/scheduler"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/log"
)

type Pipeline struct {
	Config  *cfg.Config
	Logger  log.Logger
	RepoMd  *model.Repo
	PullMd  *model.PullRequest
	IssueMd *model.Issue
	LabelMd *model.Label
	TopicMd *model.Topic
	CrossMd *model.CrossReference
	Labels  *LabelCache
	Topics  *TopicCache
	Sched   scheduler.Scheduler
}

func NewPipeline(config *cfg.Config, logger log.Logger, provider db.Provider, sched scheduler.Scheduler, labels *LabelCache, topics *TopicCache) (*Pipeline, error) {
	repoMd, err := model.NewRepo(config, logger, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create repo model: %w", err)
	}
	pullMd, err := model.NewPullRequest(config, logger, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create pull request model: %w", err)
	}
	issueMd, err := model.NewIssue(config, logger, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create issue model: %w", err)
	}
	labelMd, err := model.NewLabel(config, logger, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create label model: %w", err)
	}
	topicMd, err := model.NewTopic(config, logger, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create topic model: %w", err)
	}
	crossMd, err := model.NewCrossReference(config, logger, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create cross reference model: %w", err)
	}

	return &Pipeline{
		Config:  config,
		Logger:  logger,
		RepoMd:  repoMd,
		PullMd:  pullMd,
		IssueMd: issueMd,
		LabelMd: labelMd,
		TopicMd: topicMd,
		CrossMd: crossMd,
		Labels:  labels,
		Topics:  topics,
		Sched:   sched,
	}, nil
}

// Process ghi một batch vào store
func (p *Pipeline) Process(ctx context.Context, batch *fetcher.Batch) error {
	if batch == nil || batch.Size() == 0 {
		return nil
	}

	// Repo node đầy đủ metadata thì upsert thẳng
	fullRepos := make([]model.Repo, 0, len(batch.Repositories))
	for _, node := range batch.Repositories {
		if node == nil {
			continue
		}
		fullRepos = append(fullRepos, model.Repo{
			GithubID:   githubql.NodeID(node.ID),
			Owner:      string(node.Owner.Login),
			Name:       string(node.Name),
			StarCount:  int(node.StargazerCount),
			ForkCount:  int(node.ForkCount),
			IssueCount: int(node.Issues.TotalCount),
		})
	}
	if err := p.RepoMd.UpsertBatch(ctx, fullRepos); err != nil {
		p.Logger.Error(ctx, "Failed to upsert repositories: %v", err)
	}

	keys := make([]string, 0, len(batch.Repositories))
	for key := range batch.Repositories {
		keys = append(keys, key)
	}

	// Repo chỉ biết identity mà chưa có local thì schedule fetch out-of-band
	existing, err := p.RepoMd.IDsByNaturalKeys(ctx, keys)
	if err != nil {
		return fmt.Errorf("failed to check repository existence: %w", err)
	}
	for _, key := range keys {
		if _, ok := existing[key]; ok {
			continue
		}
		if err := p.Sched.ScheduleFetch(ctx, key); err != nil {
			p.Logger.Error(ctx, "Failed to schedule fetch for %s: %v", key, err)
		}
	}

	// Kiểm tra lại sau khi schedule: bước trước đó trong cùng batch có thể
	// đã tạo xong row
	repoIDs, err := p.RepoMd.IDsByNaturalKeys(ctx, keys)
	if err != nil {
		return fmt.Errorf("failed to re-check repository existence: %w", err)
	}

	// Topic cho các repo node đầy đủ
	for key, node := range batch.Repositories {
		if node == nil {
			continue
		}
		repoID, ok := repoIDs[key]
		if !ok {
			continue
		}
		if err := p.ensureTopics(ctx, repoID, node); err != nil {
			p.Logger.Error(ctx, "Failed to associate topics for %s: %v", key, err)
		}
	}

	// Phân vùng item theo repo, mỗi repo là một đơn vị ghi độc lập
	pullsByRepo := make(map[string][]githubql.PullNode)
	for _, node := range batch.PullRequests {
		key := string(node.Repository.NameWithOwner)
		pullsByRepo[key] = append(pullsByRepo[key], node)
	}
	issuesByRepo := make(map[string][]githubql.IssueNode)
	for _, node := range batch.Issues {
		key := string(node.Repository.NameWithOwner)
		issuesByRepo[key] = append(issuesByRepo[key], node)
	}

	for key, nodes := range pullsByRepo {
		repoID, ok := repoIDs[key]
		if !ok {
			p.Logger.Warn(ctx, "Skipping %d pull requests, repository %s not mirrored yet", len(nodes), key)
			continue
		}
		if err := p.processPulls(ctx, repoID, nodes); err != nil {
			p.Logger.Error(ctx, "Failed to upsert pull requests for %s: %v", key, err)
		}
	}

	for key, nodes := range issuesByRepo {
		repoID, ok := repoIDs[key]
		if !ok {
			p.Logger.Warn(ctx, "Skipping %d issues, repository %s not mirrored yet", len(nodes), key)
			continue
		}
		if err := p.processIssues(ctx, repoID, nodes); err != nil {
			p.Logger.Error(ctx, "Failed to upsert issues for %s: %v", key, err)
		}
	}

	// Claim tham chiếu chéo từ cả hai phía
	claims := CollectClaims(batch)
	if err := p.CrossMd.UpsertClaims(ctx, claims); err != nil {
		p.Logger.Error(ctx, "Failed to record cross reference claims: %v", err)
	}

	return nil
}

func (p *Pipeline) processPulls(ctx context.Context, repoID uint, nodes []githubql.PullNode) error {
	pulls := make([]model.PullRequest, 0, len(nodes))
	for _, node := range nodes {
		pulls = append(pulls, model.PullRequest{
			GithubID:    githubql.NodeID(node.ID),
			RepoID:      repoID,
			Number:      int(node.Number),
			Title:       string(node.Title),
			State:       string(node.State),
			AuthorLogin: string(node.Author.Login),
			MergedAt:    convertTime(node.MergedAt),
			ClosedAt:    convertTime(node.ClosedAt),
		})
	}

	saved, err := p.PullMd.UpsertBatch(ctx, pulls)
	if err != nil {
		return err
	}

	localIDs := make(map[string]uint, len(saved))
	for _, pull := range saved {
		localIDs[pull.GithubID] = pull.ID
	}

	for _, node := range nodes {
		localID, ok := localIDs[githubql.NodeID(node.ID)]
		if !ok {
			continue
		}
		labelIDs, err := p.ensureLabels(ctx, repoID, node.Labels.Nodes)
		if err != nil {
			p.Logger.Error(ctx, "Failed to ensure labels for pull #%d: %v", int(node.Number), err)
			continue
		}
		if err := p.LabelMd.ReplacePullRequestLabels(ctx, localID, labelIDs); err != nil {
			p.Logger.Error(ctx, "Failed to associate labels for pull #%d: %v", int(node.Number), err)
		}
	}
	return nil
}

func (p *Pipeline) processIssues(ctx context.Context, repoID uint, nodes []githubql.IssueNode) error {
	issues := make([]model.Issue, 0, len(nodes))
	for _, node := range nodes {
		issues = append(issues, model.Issue{
			GithubID:    githubql.NodeID(node.ID),
			RepoID:      repoID,
			Number:      int(node.Number),
			Title:       string(node.Title),
			State:       string(node.State),
			AuthorLogin: string(node.Author.Login),
			ClosedAt:    convertTime(node.ClosedAt),
		})
	}

	saved, err := p.IssueMd.UpsertBatch(ctx, issues)
	if err != nil {
		return err
	}

	localIDs := make(map[string]uint, len(saved))
	for _, issue := range saved {
		localIDs[issue.GithubID] = issue.ID
	}

	for _, node := range nodes {
		localID, ok := localIDs[githubql.NodeID(node.ID)]
		if !ok {
			continue
		}
		labelIDs, err := p.ensureLabels(ctx, repoID, node.Labels.Nodes)
		if err != nil {
			p.Logger.Error(ctx, "Failed to ensure labels for issue #%d: %v", int(node.Number), err)
			continue
		}
		if err := p.LabelMd.ReplaceIssueLabels(ctx, localID, labelIDs); err != nil {
			p.Logger.Error(ctx, "Failed to associate labels for issue #%d: %v", int(node.Number), err)
		}
	}
	return nil
}

// ensureLabels trả về id cho mọi label của một item, tạo những label còn
// thiếu theo lô và đi qua cache write-through
func (p *Pipeline) ensureLabels(ctx context.Context, repoID uint, nodes []githubql.LabelNode) ([]uint, error) {
	ids := make([]uint, 0, len(nodes))
	missing := make([]githubql.LabelNode, 0)
	for _, node := range nodes {
		if id, ok := p.Labels.Lookup(repoID, string(node.Name)); ok {
			ids = append(ids, id)
			continue
		}
		missing = append(missing, node)
	}
	if len(missing) == 0 {
		return ids, nil
	}

	names := make([]string, 0, len(missing))
	for _, node := range missing {
		names = append(names, string(node.Name))
	}

	found, err := p.LabelMd.FindByNames(ctx, repoID, names)
	if err != nil {
		return nil, err
	}

	toCreate := make([]model.Label, 0)
	for _, node := range missing {
		if _, ok := found[string(node.Name)]; ok {
			continue
		}
		toCreate = append(toCreate, model.Label{
			RepoID: repoID,
			Name:   string(node.Name),
			Color:  string(node.Color),
		})
	}
	if len(toCreate) > 0 {
		if err := p.LabelMd.CreateBatch(ctx, toCreate); err != nil {
			return nil, err
		}
		found, err = p.LabelMd.FindByNames(ctx, repoID, names)
		if err != nil {
			return nil, err
		}
	}

	for name, id := range found {
		p.Labels.Store(repoID, name, id)
	}
	for _, node := range missing {
		if id, ok := found[string(node.Name)]; ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// ensureTopics gắn topic cho một repo qua cache write-through
func (p *Pipeline) ensureTopics(ctx context.Context, repoID uint, node *githubql.RepoNode) error {
	names := make([]string, 0, len(node.RepositoryTopics.Nodes))
	for _, topicNode := range node.RepositoryTopics.Nodes {
		names = append(names, string(topicNode.Topic.Name))
	}
	if len(names) == 0 {
		return nil
	}

	ids := make([]uint, 0, len(names))
	missing := make([]string, 0)
	for _, name := range names {
		if id, ok := p.Topics.Lookup(name); ok {
			ids = append(ids, id)
			continue
		}
		missing = append(missing, name)
	}

	if len(missing) > 0 {
		found, err := p.TopicMd.FindByNames(ctx, missing)
		if err != nil {
			return err
		}
		toCreate := make([]model.Topic, 0)
		for _, name := range missing {
			if _, ok := found[name]; ok {
				continue
			}
			toCreate = append(toCreate, model.Topic{Name: name})
		}
		if len(toCreate) > 0 {
			if err := p.TopicMd.CreateBatch(ctx, toCreate); err != nil {
				return err
			}
			found, err = p.TopicMd.FindByNames(ctx, missing)
			if err != nil {
				return err
			}
		}
		for name, id := range found {
			p.Topics.Store(name, id)
			ids = append(ids, id)
		}
	}

	return p.TopicMd.ReplaceRepoTopics(ctx, repoID, ids)
}

// CollectClaims gom claim PR-đóng-issue từ cả hai phía của batch
func CollectClaims(batch *fetcher.Batch) []model.CrossReference {
	type claimKey struct {
		PrRepo      string
		PrNumber    int
		IssueRepo   string
		IssueNumber int
	}
	seen := make(map[claimKey]bool)
	claims := make([]model.CrossReference, 0)

	add := func(prRepo string, prNumber int, issueRepo string, issueNumber int) {
		key := claimKey{PrRepo: prRepo, PrNumber: prNumber, IssueRepo: issueRepo, IssueNumber: issueNumber}
		if prRepo == "" || issueRepo == "" || seen[key] {
			return
		}
		seen[key] = true
		claims = append(claims, model.CrossReference{
			PrRepo:      prRepo,
			PrNumber:    prNumber,
			IssueRepo:   issueRepo,
			IssueNumber: issueNumber,
			ClosesIssue: true,
		})
	}

	for _, pull := range batch.PullRequests {
		for _, ref := range pull.ClosingIssuesReferences.Nodes {
			add(string(pull.Repository.NameWithOwner), int(pull.Number),
				string(ref.Repository.NameWithOwner), int(ref.Number))
		}
	}
	for _, issue := range batch.Issues {
		for _, ref := range issue.ClosedByPullRequestsReferences.Nodes {
			add(string(ref.Repository.NameWithOwner), int(ref.Number),
				string(issue.Repository.NameWithOwner), int(issue.Number))
		}
	}
	return claims
}

func convertTime(dt *githubv4.DateTime) *time.Time {
	if dt == nil {
		return nil
	}
	t := dt.Time
	return &t
}
