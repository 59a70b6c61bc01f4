package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"classtrack/backend/config"
	"classtrack/backend/internal/dto"
	"classtrack/backend/internal/model"
	"classtrack/backend/internal/repository"
	"classtrack/backend/pkg/jwt"
	pkgredis "classtrack/backend/pkg/redis"
)

// ── 认证模块业务错误 ──

var (
	ErrInvalidCredentials = errors.New("邮箱或密码错误")
	ErrEmailTaken         = errors.New("该邮箱已被注册")
	ErrUserNotFound       = errors.New("用户不存在")
	ErrRefreshTokenWrong  = errors.New("需要 refresh 类型的 token")
)

// AuthService 认证业务接口
//
// 登录/登出不只是发 Token：二者同时是同步状态机的转换点。
// 登录后本地有旧数据时，Login 仍然成功，但响应中 local_data_present
// 为 true，客户端必须先调用冲突决策接口才能开始同步。
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	RefreshToken(ctx context.Context, req *dto.RefreshRequest) (*dto.TokenResponse, error)
	// Logout 拉黑当前 access token 并清空本地工作集
	Logout(ctx context.Context, uid, jti string, expiresAt time.Time) error
}

type authService struct {
	cfg     *config.Config
	repo    *repository.Repository
	syncSvc SyncService
	jwtMgr  *jwt.Manager
	rdb     *pkgredis.Client
	logger  *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	syncSvc SyncService,
	jwtMgr *jwt.Manager,
	rdb *pkgredis.Client,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:     cfg,
		repo:    repo,
		syncSvc: syncSvc,
		jwtMgr:  jwtMgr,
		rdb:     rdb,
		logger:  logger,
	}
}

// ────────────────────── Register ──────────────────────

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.TokenResponse, error) {
	// 1. 邮箱查重
	if _, err := s.repo.User.GetByEmail(ctx, req.Email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. bcrypt 哈希
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("密码哈希失败", zap.Error(err))
		return nil, err
	}

	user := &model.User{
		Email:        req.Email,
		PasswordHash: string(hash),
		Name:         req.Name,
	}
	if err := s.repo.User.Create(ctx, user); err != nil {
		s.logger.Error("创建用户失败", zap.Error(err))
		return nil, err
	}

	s.logger.Info("用户注册成功", zap.String("uid", user.UserID))

	// 新注册用户无本地数据，水合必然成功且为空
	if err := s.syncSvc.HandleSignIn(ctx, user.UserID); err != nil && !errors.Is(err, ErrSyncConflictDecision) {
		s.logger.Warn("注册后初始化本地工作集失败", zap.Error(err))
	}

	return s.issueTokens(user, "")
}

// ────────────────────── Login ──────────────────────

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	// 1. 查询用户
	user, err := s.repo.User.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 2. 验证密码 (bcrypt)
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	// 3. 同步转换：无本地数据 → 云端水合；有本地数据 → 要求冲突决策
	localDataPresent := false
	if err := s.syncSvc.HandleSignIn(ctx, user.UserID); err != nil {
		if errors.Is(err, ErrSyncConflictDecision) {
			localDataPresent = true
		} else {
			s.logger.Error("登录水合失败", zap.Error(err))
			return nil, err
		}
	}

	resp, err := s.issueTokens(user, req.DeviceID)
	if err != nil {
		return nil, err
	}
	resp.LocalDataPresent = localDataPresent
	return resp, nil
}

// ────────────────────── RefreshToken ──────────────────────

func (s *authService) RefreshToken(ctx context.Context, req *dto.RefreshRequest) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(req.RefreshToken)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != "refresh" {
		return nil, ErrRefreshTokenWrong
	}

	if s.rdb != nil {
		blacklisted, err := s.rdb.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Error("查询 token 黑名单失败", zap.Error(err))
			return nil, err
		}
		if blacklisted {
			return nil, jwt.ErrTokenInvalid
		}
	}

	user, err := s.repo.User.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		s.logger.Error("查询用户失败", zap.Error(err))
		return nil, err
	}

	// 旧 refresh token 在剩余有效期内拉黑，实现单次轮换
	if s.rdb != nil && claims.ExpiresAt != nil {
		if ttl := time.Until(claims.ExpiresAt.Time); ttl > 0 {
			if err := s.rdb.BlacklistToken(ctx, claims.ID, ttl); err != nil {
				s.logger.Warn("拉黑旧 refresh token 失败", zap.Error(err))
			}
		}
	}

	return s.issueTokens(user, claims.DeviceID)
}

// ────────────────────── Logout ──────────────────────

func (s *authService) Logout(ctx context.Context, uid, jti string, expiresAt time.Time) error {
	// 1. 拉黑当前 access token（rdb 不可用时降级为仅清空本地数据）
	if ttl := time.Until(expiresAt); s.rdb != nil && ttl > 0 {
		if err := s.rdb.BlacklistToken(ctx, jti, ttl); err != nil {
			s.logger.Error("拉黑 token 失败", zap.Error(err))
			return err
		}
	}

	// 2. 同步转换：清空本地工作集，云端数据保持不动
	if err := s.syncSvc.SignOut(ctx, uid); err != nil {
		s.logger.Error("登出清空本地数据失败", zap.Error(err))
		return err
	}

	s.logger.Info("用户登出", zap.String("uid", uid))
	return nil
}

// issueTokens 生成 Token 对并构造响应
func (s *authService) issueTokens(user *model.User, deviceID string) (*dto.TokenResponse, error) {
	accessToken, err := s.jwtMgr.GenerateAccessToken(user.UserID, deviceID)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}

	refreshToken, err := s.jwtMgr.GenerateRefreshToken(user.UserID, deviceID)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: &dto.UserResponse{
			UserID: user.UserID,
			Email:  user.Email,
			Name:   user.Name,
		},
	}, nil
}
