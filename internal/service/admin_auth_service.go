package service

import (
	"context"
	"crypto/subtle"
	"errors"

	"go.uber.org/zap"

	"github.com/wfunc/casino-bot/internal/config"
	apperrors "github.com/wfunc/casino-bot/internal/errors"
	"github.com/wfunc/casino-bot/internal/utils"
)

// RoleAdmin 管理员角色
const RoleAdmin = "admin"

// adminAuthService 管理员认证实现
// 只有配置中的一个管理员账号，密码以 argon2id 哈希保存
type adminAuthService struct {
	cfg        config.AdminConfig
	jwtManager *utils.JWTManager
	log        *zap.Logger
}

// NewAdminAuthService 创建管理员认证服务
func NewAdminAuthService(cfg config.AdminConfig, jwtManager *utils.JWTManager, log *zap.Logger) AdminAuthService {
	return &adminAuthService{
		cfg:        cfg,
		jwtManager: jwtManager,
		log:        log,
	}
}

// Login 校验用户名密码并签发令牌
func (s *adminAuthService) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	if s.cfg.PasswordHash == "" {
		return nil, apperrors.New(apperrors.ErrAuthentication, "未配置管理员密码")
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.cfg.Username)) == 1
	passOK, err := utils.VerifyPassword(password, s.cfg.PasswordHash)
	if err != nil {
		s.log.Error("管理员密码哈希无效", zap.Error(err))
		return nil, apperrors.Wrap(err, apperrors.ErrAuthentication)
	}
	if !userOK || !passOK {
		s.log.Warn("管理员登录失败", zap.String("username", username))
		return nil, apperrors.New(apperrors.ErrAuthentication, "用户名或密码错误")
	}

	s.log.Info("管理员登录", zap.String("username", username))
	return s.IssueToken(username)
}

// IssueToken 直接签发令牌（命令行使用）
func (s *adminAuthService) IssueToken(username string) (*TokenResponse, error) {
	token, expiresAt, err := s.jwtManager.Generate(username, RoleAdmin)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrUnknown, "签发令牌")
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresAt:   expiresAt,
	}, nil
}

// ValidateToken 验证令牌，返回用户名
func (s *adminAuthService) ValidateToken(token string) (string, error) {
	claims, err := s.jwtManager.Validate(token)
	if errors.Is(err, utils.ErrExpiredToken) {
		return "", apperrors.New(apperrors.ErrTokenExpired)
	}
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrTokenInvalid)
	}
	if claims.Role != RoleAdmin {
		return "", apperrors.New(apperrors.ErrAuthorization)
	}
	return claims.Username, nil
}
