package common

import (
	"github.com/gin-gonic/gin"
)

// OK writes data as the JSON body.
func OK(c *gin.Context, data any) {
	c.JSON(200, data)
}

// Fail writes {"error": msg, "code": code}. The error field is what stream
// clients look for, so plain failures and stream failures parse the same way.
func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"error": msg,
		"code":  code,
	})
}
