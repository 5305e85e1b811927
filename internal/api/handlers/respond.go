package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/your-org/homewatch/pkg/dto"
)

func respond(c *gin.Context, status int, kind dto.Kind, data any) {
	c.JSON(status, dto.New(kind, data))
}

func fail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, dto.Error(msg))
}
