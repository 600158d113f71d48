package dto

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// PageRequest carries pagination query parameters.
type PageRequest struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"page_size" json:"page_size"`
}

func (r *PageRequest) Normalize() {
	if r.Page < 1 {
		r.Page = 1
	}
	if r.PageSize < 1 {
		r.PageSize = 20
	}
	if r.PageSize > 100 {
		r.PageSize = 100
	}
}

// BindPage binds pagination from the query string.
func BindPage(c *gin.Context) PageRequest {
	req := PageRequest{
		Page:     parseIntWithDefault(c.Query("page"), 1),
		PageSize: parseIntWithDefault(c.Query("page_size"), 20),
	}
	req.Normalize()
	return req
}

func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// BindStoryID binds the story ID from the URI.
func BindStoryID(c *gin.Context) string {
	return c.Param("sid")
}

// BindJobID binds the job ID from the URI.
func BindJobID(c *gin.Context) string {
	return c.Param("jid")
}
