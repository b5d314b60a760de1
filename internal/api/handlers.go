package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"mentora/internal/auth"
	"mentora/internal/service/account"
	"mentora/internal/service/catalog"
	"mentora/internal/service/history"
)

// Assistant answers chatbot prompts for a company.
type Assistant interface {
	Ask(ctx context.Context, companyID int64, prompt string) string
	ProactiveSuggestion(ctx context.Context, companyID int64) (string, error)
}

// Handler wires HTTP routes to the account, catalog, history and assistant services.
type Handler struct {
	accounts  *account.Service
	catalog   *catalog.Service
	history   *history.Service
	assistant Assistant
	auth      *auth.Service
	logger    *zap.Logger
}

// NewHandler constructs a Handler instance.
func NewHandler(accounts *account.Service, catalogSvc *catalog.Service, historySvc *history.Service, assistant Assistant, authService *auth.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		accounts:  accounts,
		catalog:   catalogSvc,
		history:   historySvc,
		assistant: assistant,
		auth:      authService,
		logger:    logger.Named("api"),
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.HandleMethodNotAllowed = true
	router.NoMethod(func(c *gin.Context) {
		c.JSON(http.StatusMethodNotAllowed, gin.H{"error": fmt.Sprintf("method %s not allowed on this endpoint", c.Request.Method)})
	})
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})

	router.GET("/healthz", h.healthz)
	router.POST("/register", h.register)
	router.POST("/token", h.obtainToken)
	router.POST("/token/refresh", h.refreshToken)

	authMW := h.auth.Middleware()
	router.POST("/logout", authMW, h.logout)

	dash := router.Group("/dashboard")
	dash.Use(authMW)
	dash.GET("/", h.listProducts)
	dash.POST("/", h.createProduct)
	dash.GET("/:id/", h.getProduct)
	dash.PUT("/:id/", h.updateProduct)
	dash.DELETE("/:id/", h.deleteProduct)
	dash.POST("/chatbot/", h.chatbot)
	dash.GET("/chat-history/", h.chatHistory)
	dash.GET("/proactive-suggestion/", h.proactiveSuggestion)
	dash.POST("/upload-products/", h.uploadProducts)
	dash.GET("/sales/", h.listSales)
	dash.POST("/sales/", h.recordSale)
}

func (h *Handler) principal(c *gin.Context) (auth.Principal, bool) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok || p.UserID <= 0 || p.CompanyID <= 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return auth.Principal{}, false
	}
	return p, true
}

func (h *Handler) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, zap.String("path", c.Request.URL.Path), zap.Error(err))
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Registration & tokens
type registerRequest struct {
	Username    string `json:"username"`
	CompanyName string `json:"company_name"`
	Password    string `json:"password"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON"})
		return
	}
	ctx := c.Request.Context()
	user, company, err := h.accounts.Register(ctx, req.Username, req.CompanyName, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrMissingFields) || errors.Is(err, account.ErrUsernameTaken) || errors.Is(err, account.ErrCompanyTaken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.internalError(c, "register failed", err)
		return
	}
	pair, err := h.auth.IssuePair(ctx, user.ID, company.ID)
	if err != nil {
		h.internalError(c, "issue tokens after register failed", err)
		return
	}
	h.logger.Info("company registered", zap.Int64("user_id", user.ID), zap.Int64("company_id", company.ID))
	c.JSON(http.StatusCreated, gin.H{
		"success": fmt.Sprintf("User %s and company %s created.", user.Username, company.Name),
		"user":    user,
		"company": company,
		"access":  pair.Access,
		"refresh": pair.Refresh,
	})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) obtainToken(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON"})
		return
	}
	ctx := c.Request.Context()
	user, company, err := h.accounts.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		if errors.Is(err, account.ErrInvalidCredentials) || errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": account.ErrInvalidCredentials.Error()})
			return
		}
		h.internalError(c, "authenticate failed", err)
		return
	}
	pair, err := h.auth.IssuePair(ctx, user.ID, company.ID)
	if err != nil {
		h.internalError(c, "issue tokens failed", err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	Refresh string `json:"refresh"`
}

func (h *Handler) refreshToken(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Refresh == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh token is required"})
		return
	}
	pair, err := h.auth.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		if isTokenError(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		h.internalError(c, "refresh failed", err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *Handler) logout(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req refreshRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be valid JSON"})
			return
		}
	}
	ctx := c.Request.Context()
	if req.Refresh == "" {
		// No refresh token named: end every session of the user.
		if err := h.auth.RevokeUserTokens(ctx, p.UserID); err != nil {
			h.internalError(c, "revoke user tokens failed", err)
			return
		}
	} else if err := h.auth.RevokeRefresh(ctx, p.UserID, req.Refresh); err != nil {
		if isTokenError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.internalError(c, "revoke refresh failed", err)
		return
	}
	if claims, ok := auth.ClaimsFromContext(c); ok {
		if err := h.auth.RevokeAccess(ctx, claims); err != nil {
			h.logger.Warn("revoke access token failed", zap.Error(err))
		}
	}
	c.Status(http.StatusNoContent)
}

func isTokenError(err error) bool {
	return errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrRevokedToken)
}

// Products
type productRequest struct {
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price"`
}

func (r productRequest) validate() error {
	if r.Price == nil {
		return errors.New("name and price are required")
	}
	_, err := catalog.ValidateProduct(r.Name, *r.Price)
	return err
}

func (h *Handler) listProducts(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	products, err := h.catalog.ListProducts(c.Request.Context(), p.CompanyID)
	if err != nil {
		h.internalError(c, "list products failed", err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) createProduct(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := h.catalog.CreateProduct(c.Request.Context(), p.CompanyID, req.Name, *req.Price)
	if err != nil {
		h.internalError(c, "create product failed", err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// productID parses :id. Anything that is not a positive integer cannot name a product.
func productID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return 0, false
	}
	return id, true
}

func (h *Handler) getProduct(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := productID(c)
	if !ok {
		return
	}
	product, err := h.catalog.GetProduct(c.Request.Context(), p.CompanyID, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		h.internalError(c, "get product failed", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := productID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	// Ownership is checked before the body so foreign ids are indistinguishable from missing ones.
	if _, err := h.catalog.GetProduct(ctx, p.CompanyID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		h.internalError(c, "get product failed", err)
		return
	}
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	product, err := h.catalog.UpdateProduct(ctx, p.CompanyID, id, req.Name, *req.Price)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		h.internalError(c, "update product failed", err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	id, ok := productID(c)
	if !ok {
		return
	}
	if err := h.catalog.DeleteProduct(c.Request.Context(), p.CompanyID, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
			return
		}
		h.internalError(c, "delete product failed", err)
		return
	}
	c.Status(http.StatusNoContent)
}
