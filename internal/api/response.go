package api

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"skillsync/internal/apperr"
)

// envelope is the body of every response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

func respond(c *gin.Context, status int, data any, message string) {
	c.JSON(status, envelope{Success: true, Data: data, Message: message})
}

func respondError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, envelope{Success: false, Error: msg})
}

// fail writes err as an error envelope. Only the client-safe message of an
// *apperr.Error is exposed; causes are logged.
func fail(c *gin.Context, err error) {
	e, ok := apperr.As(err)
	if !ok {
		log.Printf("%s %s: %v", c.Request.Method, c.FullPath(), err)
		respondError(c, http.StatusInternalServerError, "Internal server error")
		return
	}
	if e.Err != nil {
		log.Printf("%s %s: %s: %v", c.Request.Method, c.FullPath(), e.Message, e.Err)
	}
	respondError(c, e.Status(), e.Message)
}
