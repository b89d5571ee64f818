// Gói reconciler hội tụ các claim PR-đóng-issue. Repo thiếu thì schedule
// fetch đầy đủ, item thiếu trong repo đã có thì schedule targeted fetch,
// claim đủ cả hai phía thì chuyển processed trong một update duy nhất.
// Claim chưa đủ điều kiện nằm lại cho lượt sau, không bao giờ mất.

package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/internal/model"
	"github.com/thep200/github-syncer/internal/scheduler"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/log"
)

// Stats là kết quả một lượt reconcile
type Stats struct {
	Processed             int
	RepositoriesScheduled int
	ItemsScheduled        int
}

type Reconciler struct {
	Config  *cfg.Config
	Logger  log.Logger
	RepoMd  *model.Repo
	PullMd  *model.PullRequest
	IssueMd *model.Issue
	CrossMd *model.CrossReference
	Sched   scheduler.Scheduler
	now     func() time.Time
}

func NewReconciler(config *cfg.Config, logger log.Logger, provider db.Provider, sched scheduler.Scheduler) (*Reconciler, error) {
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
	crossMd, err := model.NewCrossReference(config, logger, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create cross reference model: %w", err)
	}

	return &Reconciler{
		Config:  config,
		Logger:  logger,
		RepoMd:  repoMd,
		PullMd:  pullMd,
		IssueMd: issueMd,
		CrossMd: crossMd,
		Sched:   sched,
		now:     time.Now,
	}, nil
}

// Reconcile xử lý tối đa batchSize claim chưa processed
func (r *Reconciler) Reconcile(ctx context.Context, batchSize int) (Stats, error) {
	stats := Stats{}
	if batchSize <= 0 {
		batchSize = r.Config.Sync.ReconcileBatchSize
	}
	if batchSize <= 0 {
		batchSize = 200
	}

	claims, err := r.CrossMd.Unprocessed(ctx, batchSize)
	if err != nil {
		return stats, fmt.Errorf("failed to load unprocessed claims: %w", err)
	}
	if len(claims) == 0 {
		return stats, nil
	}

	// Tập repo được tham chiếu ở cả hai phía
	repoKeys := make([]string, 0)
	seenKeys := make(map[string]bool)
	for _, claim := range claims {
		for _, key := range []string{claim.PrRepo, claim.IssueRepo} {
			if !seenKeys[key] {
				seenKeys[key] = true
				repoKeys = append(repoKeys, key)
			}
		}
	}

	repoIDs, err := r.RepoMd.IDsByNaturalKeys(ctx, repoKeys)
	if err != nil {
		return stats, fmt.Errorf("failed to check referenced repositories: %w", err)
	}

	// Repo thiếu: schedule fetch đầy đủ
	for _, key := range repoKeys {
		if _, ok := repoIDs[key]; ok {
			continue
		}
		if err := r.Sched.ScheduleFetch(ctx, key); err != nil {
			r.Logger.Error(ctx, "Failed to schedule repository fetch for %s: %v", key, err)
			continue
		}
		stats.RepositoriesScheduled++
	}

	// Gom number cần kiểm tra theo repo đã có
	pullNumbers := make(map[uint][]int)
	issueNumbers := make(map[uint][]int)
	for _, claim := range claims {
		if repoID, ok := repoIDs[claim.PrRepo]; ok {
			pullNumbers[repoID] = appendUnique(pullNumbers[repoID], claim.PrNumber)
		}
		if repoID, ok := repoIDs[claim.IssueRepo]; ok {
			issueNumbers[repoID] = appendUnique(issueNumbers[repoID], claim.IssueNumber)
		}
	}

	existingPulls := make(map[uint]map[int]bool)
	for repoID, numbers := range pullNumbers {
		existing, err := r.PullMd.ExistingNumbers(ctx, repoID, numbers)
		if err != nil {
			return stats, fmt.Errorf("failed to check pull request numbers: %w", err)
		}
		existingPulls[repoID] = existing
	}
	existingIssues := make(map[uint]map[int]bool)
	for repoID, numbers := range issueNumbers {
		existing, err := r.IssueMd.ExistingNumbers(ctx, repoID, numbers)
		if err != nil {
			return stats, fmt.Errorf("failed to check issue numbers: %w", err)
		}
		existingIssues[repoID] = existing
	}

	// Item thiếu trong repo đã có: targeted fetch rẻ hơn backfill cả repo
	type itemKey struct {
		repo   string
		kind   string
		number int
	}
	scheduledItems := make(map[itemKey]bool)
	scheduleItem := func(repo, kind string, number int) {
		key := itemKey{repo: repo, kind: kind, number: number}
		if scheduledItems[key] {
			return
		}
		scheduledItems[key] = true
		if err := r.Sched.ScheduleTargetedFetch(ctx, repo, kind, number); err != nil {
			r.Logger.Error(ctx, "Failed to schedule targeted fetch %s %s#%d: %v", kind, repo, number, err)
			return
		}
		stats.ItemsScheduled++
	}

	eligible := make([]uint, 0, len(claims))
	for _, claim := range claims {
		prRepoID, prRepoOk := repoIDs[claim.PrRepo]
		issueRepoID, issueRepoOk := repoIDs[claim.IssueRepo]

		prOk := false
		if prRepoOk {
			prOk = existingPulls[prRepoID][claim.PrNumber]
			if !prOk {
				scheduleItem(claim.PrRepo, scheduler.KindPullRequest, claim.PrNumber)
			}
		}
		issueOk := false
		if issueRepoOk {
			issueOk = existingIssues[issueRepoID][claim.IssueNumber]
			if !issueOk {
				scheduleItem(claim.IssueRepo, scheduler.KindIssue, claim.IssueNumber)
			}
		}

		if prRepoOk && prOk && issueRepoOk && issueOk {
			eligible = append(eligible, claim.ID)
		}
	}

	if len(eligible) > 0 {
		processed, err := r.CrossMd.MarkProcessed(ctx, eligible, r.now())
		if err != nil {
			return stats, fmt.Errorf("failed to mark claims processed: %w", err)
		}
		stats.Processed = int(processed)
	}

	r.Logger.Info(ctx, "Reconcile pass: %d claims processed, %d repositories scheduled, %d items scheduled",
		stats.Processed, stats.RepositoriesScheduled, stats.ItemsScheduled)
	return stats, nil
}

func appendUnique(numbers []int, number int) []int {
	for _, existing := range numbers {
		if existing == number {
			return numbers
		}
	}
	return append(numbers, number)
}
