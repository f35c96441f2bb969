package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"recruify/internal/api/middleware"
	"recruify/internal/auth"
	"recruify/internal/database"
	"recruify/internal/demo"
	"recruify/internal/recruit"
)

const refreshTokenCookieName = "refresh_token"
const refreshTokenBlacklistKeyPrefix = "auth:refresh:blacklist:"

// authStore 是认证流程用到的 Redis 命令子集。
type authStore interface {
	redisRateCounter
	TTL(ctx context.Context, key string) *redis.DurationCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// AuthOptions carries the login protection and cookie settings.
type AuthOptions struct {
	LoginRateLimitPerHour int
	LoginLockThreshold    int
	LoginLockTTL          time.Duration
	CookieDomain          string
	DemoEnabled           bool
}

// AuthHandler 处理注册、登录、刷新、退出与演示登录。
type AuthHandler struct {
	db          *gorm.DB
	authService *auth.AuthService
	redis       authStore
	logger      *slog.Logger
	opts        AuthOptions
}

// NewAuthHandler 构造认证处理器。
func NewAuthHandler(db *gorm.DB, authService *auth.AuthService, redisClient authStore, logger *slog.Logger, opts AuthOptions) *AuthHandler {
	return &AuthHandler{
		db:          db,
		authService: authService,
		redis:       redisClient,
		logger:      logger,
		opts:        opts,
	}
}

type registerRequest struct {
	Email       string  `json:"email" binding:"required,email,max=255"`
	Password    string  `json:"password" binding:"required,min=8,max=72"`
	CompanyName string  `json:"company_name" binding:"required,max=255"`
	Industry    *string `json:"industry"`
	Size        *string `json:"size"`
}

// Register 创建账号及其公司，成功后直接登录。
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	email := normalizeEmail(req.Email)
	companyName := strings.TrimSpace(req.CompanyName)
	if companyName == "" {
		BadRequest(c, "Company name is required")
		return
	}
	if err := auth.ValidatePassword(req.Password); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.Size != nil && !recruit.CompanySize(*req.Size).Valid() {
		BadRequest(c, "Invalid company size")
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	hashed, err := h.authService.HashPassword(req.Password)
	if err != nil {
		logger.Error("hash password failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	var (
		user    database.User
		company database.Company
	)
	errTaken := errors.New("email taken")
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&database.User{}).Where("email = ?", email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return errTaken
		}
		user = database.User{Email: email, PasswordHash: hashed}
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		company = database.Company{Name: companyName, Industry: trimmedOrNil(req.Industry), Size: req.Size, OwnerID: user.ID}
		return tx.Create(&company).Error
	})
	if err != nil {
		if errors.Is(err, errTaken) {
			logger.Info("register conflict: user already exists")
			Conflict(c, "email already registered")
			return
		}
		logger.Error("register failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	logger.Info("user registered",
		slog.Uint64("user_id", uint64(user.ID)),
		slog.Uint64("company_id", uint64(company.ID)),
	)
	h.issueTokens(c, http.StatusCreated, auth.Subject{UserID: user.ID, CompanyID: company.ID})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type tokenResponse struct {
	AccessToken        string `json:"access_token"`
	TokenType          string `json:"token_type"`
	ExpiresIn          int    `json:"expires_in"`
	MustChangePassword bool   `json:"must_change_password"`
	CompanyID          uint   `json:"company_id"`
}

// Login 校验口令并返回 Token。
func (h *AuthHandler) Login(c *gin.Context) {
	ip := c.ClientIP()
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	email := normalizeEmail(req.Email)

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.String("email", email))

	// 速率限制：每 IP+邮箱 每小时 N 次
	rateKey := "rate:login:" + ip + ":" + email + ":" + time.Now().UTC().Format("2006010215")
	count, err := incrWithTTL(ctx, h.redis, rateKey, time.Hour)
	if err != nil {
		logger.Warn("login rate counter unavailable", slog.Any("error", err))
		count = 0
	}
	if h.opts.LoginRateLimitPerHour > 0 && count > int64(h.opts.LoginRateLimitPerHour) {
		TooManyRequests(c, "rate limit exceeded")
		return
	}

	lockKey := "lock:login:" + email
	if ttl, _ := h.redis.TTL(ctx, lockKey).Result(); ttl > 0 {
		TooManyRequests(c, "account temporarily locked")
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).Preload("Company").Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Info("login failed: user not found")
			_ = h.incrementLoginFail(ctx, email)
			Unauthorized(c)
			return
		}
		logger.Error("login query failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if !h.authService.CheckPasswordHash(req.Password, user.PasswordHash) {
		logger.Info("login failed: password mismatch", slog.Uint64("user_id", uint64(user.ID)))
		_ = h.incrementLoginFail(ctx, email)
		Unauthorized(c)
		return
	}
	if user.Company == nil {
		logger.Error("login failed: user has no company", slog.Uint64("user_id", uint64(user.ID)))
		Forbidden(c, "account has no company")
		return
	}

	// 登录成功：清理失败计数
	_ = h.redis.Del(ctx, "lock:login:fail:"+email).Err()

	h.issueTokens(c, http.StatusOK, auth.Subject{
		UserID:             user.ID,
		CompanyID:          user.Company.ID,
		MustChangePassword: user.MustChangePassword,
	})
}

// Demo 以固定演示账号登录，首次调用时写入示例数据。
func (h *AuthHandler) Demo(c *gin.Context) {
	if !h.opts.DemoEnabled {
		NotFound(c, "demo mode is disabled")
		return
	}

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	user, company, err := demo.EnsureCompany(ctx, h.db)
	if err != nil {
		logger.Error("ensure demo company failed", slog.Any("error", err))
		Internal(c, "Failed to create demo session")
		return
	}
	seeded, err := demo.Seed(ctx, h.db, company.ID, nil)
	if err != nil {
		logger.Error("seed demo data failed", slog.Any("error", err))
		Internal(c, "Failed to create demo session")
		return
	}
	if !seeded.Skipped {
		logger.Info("demo data seeded",
			slog.Int("postings", seeded.Postings),
			slog.Int("applicants", seeded.Applicants),
		)
	}

	h.issueTokens(c, http.StatusOK, auth.Subject{UserID: user.ID, CompanyID: company.ID})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh 校验刷新令牌并颁发新的 TokenPair，旧令牌随即作废。
func (h *AuthHandler) Refresh(c *gin.Context) {
	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	claims, key, ok := h.validRefreshClaims(c, logger)
	if !ok {
		Unauthorized(c)
		return
	}

	if err := h.redis.Get(ctx, key).Err(); err == nil {
		logger.Info("refresh token revoked", slog.String("jti", claims.ID))
		Unauthorized(c)
		return
	} else if !errors.Is(err, redis.Nil) {
		logger.Error("refresh token blacklist lookup failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	var user database.User
	if err := h.db.WithContext(ctx).Preload("Company").First(&user, claims.UserID).Error; err != nil || user.Company == nil {
		logger.Info("refresh user not found", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
		logger.Error("refresh revoke old token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.issueTokens(c, http.StatusOK, auth.Subject{
		UserID:             user.ID,
		CompanyID:          user.Company.ID,
		MustChangePassword: user.MustChangePassword,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required,max=72"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=72"`
	ConfirmPassword string `json:"confirm_password" binding:"required,min=8,max=72"`
}

// ChangePassword 校验当前密码并更新为新密码。
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}
	if req.NewPassword != req.ConfirmPassword {
		BadRequest(c, "password confirmation does not match")
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		BadRequest(c, err.Error())
		return
	}

	userID, ok := userIDFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}
	companyID, _ := companyIDFromContext(c)

	ctx := c.Request.Context()
	logger := h.loggerFromContext(c).With(slog.Uint64("user_id", uint64(userID)))

	var user database.User
	if err := h.db.WithContext(ctx).First(&user, userID).Error; err != nil {
		logger.Info("change password: user not found", slog.Any("error", err))
		Unauthorized(c)
		return
	}

	if !h.authService.CheckPasswordHash(req.CurrentPassword, user.PasswordHash) {
		logger.Info("change password: current password mismatch")
		Unauthorized(c)
		return
	}
	if req.NewPassword == req.CurrentPassword {
		BadRequest(c, "new password must be different from current password")
		return
	}

	hashed, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		logger.Error("change password: hash failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if err := h.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"password_hash":        hashed,
		"must_change_password": false,
	}).Error; err != nil {
		logger.Error("change password: update failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	if claims, key, ok := h.validRefreshClaims(c, logger); ok {
		if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
			logger.Error("change password: revoke refresh failed", slog.Any("error", err))
			Internal(c, "internal error")
			return
		}
	}

	h.issueTokens(c, http.StatusOK, auth.Subject{UserID: user.ID, CompanyID: companyID})
}

// Logout 将刷新令牌加入黑名单，防止继续使用。
func (h *AuthHandler) Logout(c *gin.Context) {
	ctx := c.Request.Context()
	logger := h.loggerFromContext(c)

	claims, key, ok := h.validRefreshClaims(c, logger)
	if !ok {
		BadRequest(c, "refresh token missing or invalid")
		return
	}
	if err := h.revokeRefreshToken(ctx, key, claims.ExpiresAt); err != nil {
		logger.Error("logout revoke token failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    "",
		MaxAge:   -1,
		Path:     "/",
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   strings.TrimSpace(h.opts.CookieDomain),
	})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *AuthHandler) issueTokens(c *gin.Context, status int, sub auth.Subject) {
	tokenPair, err := h.authService.GenerateTokenPair(sub)
	if err != nil {
		h.loggerFromContext(c).Error("generate token pair failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	h.setRefreshCookie(c, tokenPair.RefreshToken)
	c.JSON(status, tokenResponse{
		AccessToken:        tokenPair.AccessToken,
		TokenType:          "Bearer",
		ExpiresIn:          int(h.authService.AccessTokenTTL().Seconds()),
		MustChangePassword: sub.MustChangePassword,
		CompanyID:          sub.CompanyID,
	})
}

// validRefreshClaims 读取并校验刷新令牌，返回其黑名单键。
func (h *AuthHandler) validRefreshClaims(c *gin.Context, logger *slog.Logger) (*auth.TokenClaims, string, bool) {
	refreshToken := h.extractRefreshToken(c)
	if refreshToken == "" {
		return nil, "", false
	}
	claims, err := h.authService.ValidateToken(refreshToken)
	if err != nil {
		logger.Info("refresh token invalid", slog.Any("error", err))
		return nil, "", false
	}
	if claims.TokenType != auth.TokenTypeRefresh || claims.ID == "" {
		logger.Info("refresh token rejected", slog.String("token_type", claims.TokenType))
		return nil, "", false
	}
	return claims, refreshTokenBlacklistKeyPrefix + claims.ID, true
}

func (h *AuthHandler) extractRefreshToken(c *gin.Context) string {
	if token, err := c.Cookie(refreshTokenCookieName); err == nil && token != "" {
		return token
	}

	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err == nil && req.RefreshToken != "" {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setRefreshCookie(c *gin.Context, refreshToken string) {
	ttl := h.authService.RefreshTokenTTL()
	if ttl <= 0 {
		ttl = time.Hour
	}
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     refreshTokenCookieName,
		Value:    refreshToken,
		MaxAge:   int(ttl.Seconds()),
		Path:     "/",
		Secure:   isHTTPSRequest(c),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Domain:   strings.TrimSpace(h.opts.CookieDomain),
		Expires:  time.Now().Add(ttl),
	})
}

func (h *AuthHandler) revokeRefreshToken(ctx context.Context, key string, expiresAt *jwt.NumericDate) error {
	var ttl time.Duration
	if expiresAt == nil {
		ttl = h.authService.RefreshTokenTTL()
	} else {
		ttl = time.Until(expiresAt.Time)
	}
	if ttl <= 0 {
		ttl = time.Second
	}
	return h.redis.Set(ctx, key, "revoked", ttl).Err()
}

func (h *AuthHandler) loggerFromContext(c *gin.Context) *slog.Logger {
	if _, ok := c.Get("slogLogger"); !ok && h.logger != nil {
		return h.logger
	}
	return middleware.LoggerFromContext(c)
}

func (h *AuthHandler) incrementLoginFail(ctx context.Context, email string) error {
	failKey := "lock:login:fail:" + email
	count, err := incrWithTTL(ctx, h.redis, failKey, h.opts.LoginLockTTL)
	if err != nil {
		return err
	}
	if h.opts.LoginLockThreshold > 0 && count >= int64(h.opts.LoginLockThreshold) {
		_ = h.redis.Set(ctx, "lock:login:"+email, "1", h.opts.LoginLockTTL).Err()
	}
	return nil
}

func isHTTPSRequest(c *gin.Context) bool {
	if c.Request == nil {
		return false
	}
	if c.Request.TLS != nil {
		return true
	}
	return strings.EqualFold(c.Request.Header.Get("X-Forwarded-Proto"), "https")
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
