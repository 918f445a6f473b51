package httpx

import (
	"github.com/gin-gonic/gin"
)

// Parse extracts request parameters from URI, query and JSON body into
// req. URI and query binding failures are tolerated (the struct may not
// carry those tags); a malformed body is not.
func Parse(c *gin.Context, req any) error {
	_ = c.ShouldBindUri(req)
	_ = c.ShouldBindQuery(req)

	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(req); err != nil {
			return err
		}
	}
	return nil
}
