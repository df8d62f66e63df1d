package stubserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/copayhq/copayctl/pkg/tokeninspect"
)

// Server wires the auth and admin routes over the configured stores.
type Server struct {
	configuration ServerConfig
	directory     UserDirectory
	refreshTokens RefreshTokenStore
	throttle      *LoginThrottle
	fixtures      *FixtureSet
	validator     *tokeninspect.Validator
	logger        *zap.Logger
}

// NewServer validates the configuration and constructs the route handlers.
func NewServer(configuration ServerConfig, directory UserDirectory, refreshTokens RefreshTokenStore, fixtures *FixtureSet, logger *zap.Logger) (*Server, error) {
	configuration = configuration.withDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	validator, validatorErr := tokeninspect.New(tokeninspect.Config{
		SigningKey: configuration.SigningKey,
		Issuer:     configuration.Issuer,
	})
	if validatorErr != nil {
		return nil, validatorErr
	}
	return &Server{
		configuration: configuration,
		directory:     directory,
		refreshTokens: refreshTokens,
		throttle:      NewLoginThrottle(configuration.ThrottleWindow, configuration.ThrottleLimit),
		fixtures:      fixtures,
		validator:     validator,
		logger:        logger,
	}, nil
}

// Mount registers /auth and /admin routes on the router.
func (server *Server) Mount(router gin.IRouter) {
	router.POST("/auth/login", server.handleLogin)
	router.POST("/auth/refresh", server.handleRefresh)
	router.POST("/auth/logout", server.handleLogout)

	authenticated := router.Group("/")
	authenticated.Use(RequireBearer(server.validator))
	authenticated.GET("/auth/me", server.handleMe)

	adminGroup := router.Group("/admin")
	adminGroup.Use(RequireBearer(server.validator))
	adminGroup.GET("/organizations", server.handleListOrganizations)
	adminGroup.GET("/organizations/:id", server.handleGetOrganization)
	adminGroup.GET("/tenants", server.handleListTenants)
	adminGroup.GET("/tenants/:id", server.handleGetTenant)
	adminGroup.GET("/reminders", server.handleListReminders)
	adminGroup.POST("/reminders", server.handleCreateReminder)
	adminGroup.GET("/audit", server.handleListAudit)
	adminGroup.GET("/redistributions", server.handleListRedistributions)
	adminGroup.POST("/redistributions", server.handleRunRedistribution)
}

func (server *Server) handleLogin(contextGin *gin.Context) {
	var inbound struct {
		Phone string `json:"phone"`
		Pin   string `json:"pin"`
	}
	if err := contextGin.BindJSON(&inbound); err != nil || strings.TrimSpace(inbound.Phone) == "" || strings.TrimSpace(inbound.Pin) == "" {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "phone and pin are required", "error": "auth.invalid_json"})
		return
	}

	if throttleErr := server.throttle.Check(inbound.Phone); throttleErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "too many login attempts", "error": "auth.throttled"})
		return
	}

	user, authErr := server.directory.Authenticate(contextGin, inbound.Phone, inbound.Pin)
	if authErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid credentials", "error": "auth.invalid_credentials"})
		return
	}
	server.throttle.Reset(inbound.Phone)

	server.issueSession(contextGin, user, "")
}

func (server *Server) handleRefresh(contextGin *gin.Context) {
	secret := server.refreshSecretFromRequest(contextGin)
	if secret == "" {
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "missing refresh token", "error": "auth.missing_refresh_token"})
		return
	}

	userID, tokenID, _, validateErr := server.refreshTokens.Validate(contextGin, secret)
	if validateErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "invalid refresh token", "error": "auth.invalid_refresh_token"})
		return
	}
	user, userErr := server.directory.GetByID(contextGin, userID)
	if userErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unknown user", "error": "auth.unknown_user"})
		return
	}

	server.issueSession(contextGin, user, tokenID)
}

func (server *Server) handleLogout(contextGin *gin.Context) {
	secret := server.refreshSecretFromRequest(contextGin)
	if secret != "" {
		_, tokenID, _, validateErr := server.refreshTokens.Validate(contextGin, secret)
		if validateErr == nil && tokenID != "" {
			if revokeErr := server.refreshTokens.Revoke(contextGin, tokenID); revokeErr != nil {
				server.logger.Warn("logout revoke failed", zap.Error(revokeErr))
			}
		}
	}
	server.clearAuthCookies(contextGin)
	contextGin.Status(http.StatusNoContent)
}

func (server *Server) handleMe(contextGin *gin.Context) {
	claims, ok := ClaimsFrom(contextGin)
	if !ok {
		contextGin.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	user, userErr := server.directory.GetByID(contextGin, claims.UserID)
	if userErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "unknown user", "error": "auth.unknown_user"})
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"data": user})
}

// issueSession mints the access JWT, rotates the refresh token, and writes the
// response body plus cookies. previousTokenID is revoked after the new token exists.
func (server *Server) issueSession(contextGin *gin.Context, user AdminUser, previousTokenID string) {
	now := time.Now().UTC()
	accessToken, accessExpiresAt, mintErr := MintAccessToken(user, server.configuration.Issuer, server.configuration.SigningKey, server.configuration.AccessTTL, now)
	if mintErr != nil {
		server.logger.Error("mint access token failed", zap.Error(mintErr))
		contextGin.AbortWithStatus(http.StatusInternalServerError)
		return
	}

	refreshExpiresAt := now.Add(server.configuration.RefreshTTL)
	_, refreshSecret, issueErr := server.refreshTokens.Issue(contextGin, user.ID, refreshExpiresAt, previousTokenID)
	if issueErr != nil || refreshSecret == "" {
		server.logger.Error("issue refresh token failed", zap.Error(issueErr))
		contextGin.AbortWithStatus(http.StatusInternalServerError)
		return
	}
	if previousTokenID != "" {
		if revokeErr := server.refreshTokens.Revoke(contextGin, previousTokenID); revokeErr != nil {
			server.logger.Error("revoke rotated token failed", zap.Error(revokeErr))
			contextGin.AbortWithStatus(http.StatusInternalServerError)
			return
		}
	}

	server.writeAuthCookies(contextGin, accessToken, accessExpiresAt, refreshSecret, refreshExpiresAt)
	contextGin.JSON(http.StatusOK, gin.H{
		"accessToken":  accessToken,
		"refreshToken": refreshSecret,
		"expiresIn":    int64(server.configuration.AccessTTL.Seconds()),
		"user":         user,
	})
}

func (server *Server) refreshSecretFromRequest(contextGin *gin.Context) string {
	var inbound struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := contextGin.ShouldBindJSON(&inbound); err == nil && strings.TrimSpace(inbound.RefreshToken) != "" {
		return strings.TrimSpace(inbound.RefreshToken)
	}
	cookie, cookieErr := contextGin.Request.Cookie(refreshCookieName)
	if cookieErr != nil || cookie == nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

func (server *Server) writeAuthCookies(contextGin *gin.Context, accessToken string, accessExpiresAt time.Time, refreshSecret string, refreshExpiresAt time.Time) {
	secure := !server.configuration.AllowInsecureHTTP
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     accessCookieName,
		Value:    accessToken,
		Path:     "/",
		Domain:   server.configuration.CookieDomain,
		Expires:  accessExpiresAt,
		Secure:   secure,
		HttpOnly: true,
		SameSite: server.configuration.SameSiteMode,
	})
	http.SetCookie(contextGin.Writer, &http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshSecret,
		Path:     "/auth",
		Domain:   server.configuration.CookieDomain,
		Expires:  refreshExpiresAt,
		Secure:   secure,
		HttpOnly: true,
		SameSite: server.configuration.SameSiteMode,
	})
}

func (server *Server) clearAuthCookies(contextGin *gin.Context) {
	secure := !server.configuration.AllowInsecureHTTP
	for _, name := range []string{accessCookieName, refreshCookieName} {
		http.SetCookie(contextGin.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Domain:   server.configuration.CookieDomain,
			MaxAge:   -1,
			Secure:   secure,
			HttpOnly: true,
			SameSite: server.configuration.SameSiteMode,
		})
	}
}

func (server *Server) handleListOrganizations(contextGin *gin.Context) {
	organizations := server.fixtures.listOrganizations(contextGin.Query("search"))
	writeListEnvelope(contextGin, organizations)
}

func (server *Server) handleGetOrganization(contextGin *gin.Context) {
	organization, found := server.fixtures.getOrganization(contextGin.Param("id"))
	if !found {
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "organization not found", "error": "admin.organization_not_found"})
		return
	}
	contextGin.JSON(http.StatusOK, gin.H{"data": organization})
}

func (server *Server) handleListTenants(contextGin *gin.Context) {
	tenants := server.fixtures.listTenants(contextGin.Query("organizationId"))
	writeListEnvelope(contextGin, tenants)
}

// Tenant detail is served unwrapped to exercise the raw decode branch of clients.
func (server *Server) handleGetTenant(contextGin *gin.Context) {
	tenant, found := server.fixtures.getTenant(contextGin.Param("id"))
	if !found {
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "tenant not found", "error": "admin.tenant_not_found"})
		return
	}
	contextGin.JSON(http.StatusOK, tenant)
}

func (server *Server) handleListReminders(contextGin *gin.Context) {
	writeListEnvelope(contextGin, server.fixtures.listReminders())
}

func (server *Server) handleCreateReminder(contextGin *gin.Context) {
	var inbound struct {
		TenantID string `json:"tenantId"`
		Channel  string `json:"channel"`
		Message  string `json:"message"`
	}
	if err := contextGin.BindJSON(&inbound); err != nil || strings.TrimSpace(inbound.TenantID) == "" {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "tenantId is required", "error": "admin.invalid_reminder"})
		return
	}
	if _, found := server.fixtures.getTenant(inbound.TenantID); !found {
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "tenant not found", "error": "admin.tenant_not_found"})
		return
	}
	channel := inbound.Channel
	if channel == "" {
		channel = "SMS"
	}

	now := time.Now().UTC()
	reminder := server.fixtures.createReminder(inbound.TenantID, channel, inbound.Message, now)
	if claims, ok := ClaimsFrom(contextGin); ok {
		server.fixtures.appendAudit(claims.UserID, "REMINDER_CREATED", "reminder", reminder.ID, channel+" to "+inbound.TenantID, now)
	}
	contextGin.JSON(http.StatusOK, gin.H{"data": reminder})
}

func (server *Server) handleListAudit(contextGin *gin.Context) {
	from, fromErr := parseTimeQuery(contextGin.Query("from"))
	to, toErr := parseTimeQuery(contextGin.Query("to"))
	if fromErr != nil || toErr != nil {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "from/to must be RFC3339 timestamps", "error": "admin.invalid_time_range"})
		return
	}
	entries := server.fixtures.listAudit(contextGin.Query("actorId"), contextGin.Query("action"), from, to)
	writeListEnvelope(contextGin, entries)
}

func (server *Server) handleListRedistributions(contextGin *gin.Context) {
	writeListEnvelope(contextGin, server.fixtures.listRedistributions(contextGin.Query("organizationId")))
}

func (server *Server) handleRunRedistribution(contextGin *gin.Context) {
	var inbound struct {
		OrganizationID string `json:"organizationId"`
		DryRun         bool   `json:"dryRun"`
	}
	if err := contextGin.BindJSON(&inbound); err != nil || strings.TrimSpace(inbound.OrganizationID) == "" {
		contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "organizationId is required", "error": "admin.invalid_redistribution"})
		return
	}

	now := time.Now().UTC()
	result, found := server.fixtures.runRedistribution(inbound.OrganizationID, inbound.DryRun, now)
	if !found {
		contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "organization not found", "error": "admin.organization_not_found"})
		return
	}
	if claims, ok := ClaimsFrom(contextGin); !inbound.DryRun && ok {
		server.fixtures.appendAudit(claims.UserID, "REDISTRIBUTION_RUN", "organization", inbound.OrganizationID, "", now)
	}
	contextGin.JSON(http.StatusOK, gin.H{"data": result})
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func writeListEnvelope[Item any](contextGin *gin.Context, items []Item) {
	page := positiveIntQuery(contextGin, "page", 1)
	pageSize := positiveIntQuery(contextGin, "pageSize", defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	total := len(items)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}

	contextGin.JSON(http.StatusOK, gin.H{
		"data":     items[start:end],
		"page":     page,
		"pageSize": pageSize,
		"total":    total,
	})
}

func positiveIntQuery(contextGin *gin.Context, name string, fallback int) int {
	raw := contextGin.Query(name)
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func parseTimeQuery(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
