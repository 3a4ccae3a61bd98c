package utils

import "github.com/gin-gonic/gin"

// Error writes the uniform failure body. Only the message is exposed;
// internal error chains stay in the logs.
func Error(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"error": message})
}

// Message writes a {message: ...} body for endpoints that report an action.
func Message(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, gin.H{"message": message})
}
