// Gói credential chọn token cho từng call ra GitHub theo thứ tự tier:
// personal > contributed > global_pool, cuối cùng là installation token của App.
// Kết quả chọn theo repo được cache 5 phút để tránh tra tier lặp lại khi burst.

package credential

import (
	"context"
	"math/rand"
	"time"

	"github.com/thep200/github-syncer/cfg"
	"github.com/thep200/github-syncer/internal/model"
	"github.com/thep200/github-syncer/pkg/db"
	"github.com/thep200/github-syncer/pkg/log"
)

type Tier string

const (
	TierPersonal        Tier = "personal"
	TierContributed     Tier = "contributed"
	TierGlobalPool      Tier = "global_pool"
	TierAppInstallation Tier = "app_installation"
)

// Selection là kết quả chọn credential. OwnerID nil khi dùng installation token.
type Selection struct {
	OwnerID *uint
	Token   string
	Tier    Tier
}

// Sampler chọn một chỉ số trong [0, n). Mặc định là uniform-random để dàn tải
// giữa các candidate, test có thể thay bằng hàm tất định.
type Sampler func(n int) int

func RandomSampler(n int) int {
	return rand.Intn(n)
}

// InstallationTokenSource là nguồn installation token, thường là AppTokenManager
type InstallationTokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Pool struct {
	Config    *cfg.Config
	Logger    log.Logger
	UserMd    *model.User
	Cache     *SelectionCache
	AppTokens InstallationTokenSource
	Sample    Sampler
}

func NewPool(config *cfg.Config, logger log.Logger, provider db.Provider, appTokens InstallationTokenSource) (*Pool, error) {
	userMd, err := model.NewUser(config, logger, provider)
	if err != nil {
		return nil, err
	}

	ttl := time.Duration(config.Sync.CredentialCacheTTL) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &Pool{
		Config:    config,
		Logger:    logger,
		UserMd:    userMd,
		Cache:     NewSelectionCache(ttl),
		AppTokens: appTokens,
		Sample:    RandomSampler,
	}, nil
}

// Select chọn credential cho một call. Đường username không đi qua cache vì
// gắn với identity chứ không phải repo. Chỉ trả lỗi khi không còn tier nào
// và việc đổi installation token cũng thất bại.
func (p *Pool) Select(ctx context.Context, repo *model.Repo, username string) (Selection, error) {
	if username != "" {
		user, err := p.UserMd.FindByLogin(ctx, username)
		if err != nil {
			p.Logger.Error(ctx, "Failed to look up user %s: %v", username, err)
		}
		if user != nil && user.AccessToken != "" {
			ownerID := user.ID
			return Selection{OwnerID: &ownerID, Token: user.AccessToken, Tier: TierPersonal}, nil
		}
	}

	if repo == nil {
		return p.installationSelection(ctx)
	}

	if selection, ok := p.Cache.Get(repo.ID); ok {
		return selection, nil
	}

	selection, err := p.resolve(ctx, repo)
	if err != nil {
		return Selection{}, err
	}

	p.Cache.Put(repo.ID, selection)
	return selection, nil
}

// resolve tra các tier theo thứ tự chặt chẽ
func (p *Pool) resolve(ctx context.Context, repo *model.Repo) (Selection, error) {
	// 1. personal: token của chính author repo
	if repo.AuthorID != nil {
		author, err := p.UserMd.FindByID(ctx, *repo.AuthorID)
		if err != nil {
			p.Logger.Error(ctx, "Failed to look up repo author: %v", err)
		}
		if author != nil && author.AccessToken != "" {
			ownerID := author.ID
			return Selection{OwnerID: &ownerID, Token: author.AccessToken, Tier: TierPersonal}, nil
		}
	}

	// 2. contributed: user cho mượn token trên repo đã đóng góp
	contributors, err := p.UserMd.ContributorsWithToken(ctx, repo.ID)
	if err != nil {
		p.Logger.Error(ctx, "Failed to look up contributors for repo %d: %v", repo.ID, err)
	}
	if len(contributors) > 0 {
		picked := contributors[p.Sample(len(contributors))]
		ownerID := picked.ID
		return Selection{OwnerID: &ownerID, Token: picked.AccessToken, Tier: TierContributed}, nil
	}

	// 3. global_pool: user cho mượn token toàn hệ thống
	lenders, err := p.UserMd.GlobalLendersWithToken(ctx)
	if err != nil {
		p.Logger.Error(ctx, "Failed to look up global lenders: %v", err)
	}
	if len(lenders) > 0 {
		picked := lenders[p.Sample(len(lenders))]
		ownerID := picked.ID
		return Selection{OwnerID: &ownerID, Token: picked.AccessToken, Tier: TierGlobalPool}, nil
	}

	// 4. fallback: installation token của App
	return p.installationSelection(ctx)
}

func (p *Pool) installationSelection(ctx context.Context) (Selection, error) {
	token, err := p.AppTokens.Token(ctx)
	if err != nil {
		// Không còn credential nào, đây là lỗi duy nhất được phép nổi lên
		return Selection{}, err
	}
	return Selection{OwnerID: nil, Token: token, Tier: TierGlobalPool}, nil
}
