package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"mentora/internal/importer"
	"mentora/internal/service/catalog"
)

const maxUploadBytes = 10 << 20

type chatRequest struct {
	Prompt string `json:"prompt"`
}

func (h *Handler) chatbot(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "prompt cannot be empty"})
		return
	}
	ctx := c.Request.Context()
	response := h.assistant.Ask(ctx, p.CompanyID, prompt)
	if _, err := h.history.Append(ctx, p.CompanyID, prompt, response); err != nil {
		// The answer is still returned; only the transcript is lost.
		h.logger.Error("persist chat history failed", zap.Int64("company_id", p.CompanyID), zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"response": response})
}

func (h *Handler) chatHistory(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	rows, err := h.history.List(c.Request.Context(), p.CompanyID)
	if err != nil {
		h.internalError(c, "list chat history failed", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

func (h *Handler) proactiveSuggestion(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	suggestion, err := h.assistant.ProactiveSuggestion(c.Request.Context(), p.CompanyID)
	if err != nil {
		h.internalError(c, "proactive suggestion failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"suggestion": suggestion})
}

func (h *Handler) uploadProducts(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes+1<<20)
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	defer f.Close()

	products, err := importer.Parse(file.Filename, f)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	created, err := h.catalog.ImportProducts(c.Request.Context(), p.CompanyID, products)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidProduct) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.internalError(c, "import products failed", err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"created": created,
		"message": fmt.Sprintf("%d products imported.", created),
	})
}

type saleRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int64 `json:"quantity"`
}

func (h *Handler) listSales(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	sales, err := h.catalog.ListSales(c.Request.Context(), p.CompanyID)
	if err != nil {
		h.internalError(c, "list sales failed", err)
		return
	}
	c.JSON(http.StatusOK, sales)
}

func (h *Handler) recordSale(c *gin.Context) {
	p, ok := h.principal(c)
	if !ok {
		return
	}
	var req saleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	sale, err := h.catalog.RecordSale(c.Request.Context(), p.CompanyID, req.ProductID, req.Quantity)
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrInvalidQuantity):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, sql.ErrNoRows):
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		default:
			h.internalError(c, "record sale failed", err)
		}
		return
	}
	c.JSON(http.StatusCreated, sale)
}
