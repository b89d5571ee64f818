// Gói executor bọc một call GraphQL: chọn credential, thực hiện call, trích
// rate limit, ghi usage log. Mọi lỗi transport hay lỗi query đều được nuốt tại
// đây và trả về kết quả nil, caller tự quyết retry. Lỗi duy nhất được trả ra
// ngoài là cạn credential.

package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"runtime"
	"time"

	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/internal/credential"
	"github.com/thep200/github-syncer/internal/githubql"
	"github.com/thep200/github-syncer/internal/model"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/log"
)

// stackFrameCount là số frame đầu tiên được log khi bắt panic
const stackFrameCount = 5

// CredentialSelector là contract của credential pool
type CredentialSelector interface {
	Select(ctx context.Context, repo *model.Repo, username string) (credential.Selection, error)
}

// Request mô tả một call. Query là struct githubv4 sẽ được điền khi thành công.
// Token khác rỗng thì bỏ qua pool. Repo và Username là hint chọn credential.
type Request struct {
	Name      string
	Query     interface{}
	Variables map[string]interface{}
	Token     string
	Repo      *model.Repo
	Username  string
}

// Result chỉ khác nil khi call thành công và đã trích được rate limit
type Result struct {
	Snapshot  githubql.Snapshot
	Viewer    string
	Elapsed   time.Duration
	Selection credential.Selection
}

type Executor struct {
	Config    *cfg.Config
	Logger    log.Logger
	Pool      CredentialSelector
	Transport githubql.Querier
	UsageMd   *model.UsageLog
}

func NewExecutor(config *cfg.Config, logger log.Logger, provider db.Provider, pool CredentialSelector, transport githubql.Querier) (*Executor, error) {
	usageMd, err := model.NewUsageLog(config, logger, provider)
	if err != nil {
		return nil, err
	}

	return &Executor{
		Config:    config,
		Logger:    logger,
		Pool:      pool,
		Transport: transport,
		UsageMd:   usageMd,
	}, nil
}

// Execute thực hiện một call. Trả về (nil, nil) cho mọi thất bại đã nuốt,
// (nil, err) chỉ khi không chọn được credential nào.
func (e *Executor) Execute(ctx context.Context, req Request) (result *Result, err error) {
	selection := credential.Selection{Token: req.Token}
	if req.Token == "" {
		selection, err = e.Pool.Select(ctx, req.Repo, req.Username)
		if err != nil {
			return nil, fmt.Errorf("no credential available for query %s: %w", req.Name, err)
		}
	}

	// Trace trước khi call, chỉ để quan sát
	e.Logger.Debug(ctx, "Executing query %s tier=%s owner=%v variables=%v",
		req.Name, selection.Tier, ownerForLog(selection.OwnerID), req.Variables)

	// Panic từ transport không được thoát khỏi executor
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Error(ctx, "Recovered from panic in query %s: %v\n%s", req.Name, r, shortStack())
			result = nil
			err = nil
		}
	}()

	started := time.Now()
	queryErr := e.Transport.Query(ctx, selection.Token, req.Query, req.Variables)
	elapsed := time.Since(started)

	if queryErr != nil {
		e.Logger.Error(ctx, "Query %s failed (%s): %v", req.Name, classifyError(queryErr), queryErr)
		return nil, nil
	}

	carrier, ok := req.Query.(githubql.SnapshotCarrier)
	if !ok {
		e.Logger.Error(ctx, "Query %s carries no rate limit fragment", req.Name)
		return nil, nil
	}
	snapshot := carrier.RateLimitSnapshot()

	viewer := ""
	if vc, ok := req.Query.(githubql.ViewerCarrier); ok {
		viewer = vc.ViewerLogin()
	}

	repoKey := ""
	if req.Repo != nil {
		repoKey = req.Repo.NaturalKey()
	}
	e.Logger.Info(ctx, "Query %s done viewer=%s elapsed=%dms remaining=%d/%d used=%.2f%% repo=%s tier=%s",
		req.Name, viewer, elapsed.Milliseconds(), snapshot.Remaining, snapshot.Limit,
		snapshot.PercentageUsed(), repoKey, selection.Tier)

	e.recordUsage(ctx, req, selection, snapshot)

	return &Result{
		Snapshot:  snapshot,
		Viewer:    viewer,
		Elapsed:   elapsed,
		Selection: selection,
	}, nil
}

// recordUsage ghi đúng một dòng usage cho call đã trích được rate limit
func (e *Executor) recordUsage(ctx context.Context, req Request, selection credential.Selection, snapshot githubql.Snapshot) {
	variables, err := json.Marshal(req.Variables)
	if err != nil {
		variables = []byte("{}")
	}

	var repoID *uint
	if req.Repo != nil && req.Repo.ID != 0 {
		id := req.Repo.ID
		repoID = &id
	}

	entry := &model.UsageLog{
		OwnerID:         selection.OwnerID,
		RepoID:          repoID,
		QueryName:       req.Name,
		Variables:       string(variables),
		Tier:            string(selection.Tier),
		PointsUsed:      snapshot.Cost,
		PointsRemaining: snapshot.Remaining,
		PercentageUsed:  snapshot.PercentageUsed(),
	}
	if err := e.UsageMd.Record(ctx, entry); err != nil {
		e.Logger.Error(ctx, "Failed to record usage for query %s: %v", req.Name, err)
	}
}

// classifyError phân loại lỗi để log: lỗi mạng hay lỗi do query trả về
func classifyError(err error) string {
	var netErr net.Error
	var urlErr *url.Error
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &netErr), errors.As(err, &urlErr):
		return "network"
	default:
		return "query"
	}
}

// shortStack trả về vài frame đầu của stack hiện tại
func shortStack() string {
	pcs := make([]uintptr, stackFrameCount)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	out := ""
	for {
		frame, more := frames.Next()
		out += fmt.Sprintf("  %s\n    %s:%d\n", frame.Function, frame.File, frame.Line)
		if !more {
			break
		}
	}
	return out
}

func ownerForLog(ownerID *uint) interface{} {
	if ownerID == nil {
		return "app"
	}
	return *ownerID
}
