package handler

import (
	"net/http"
	"time"

	"astroconnect/backend/internal/models"

	"github.com/gin-gonic/gin"

	jwt "github.com/golang-jwt/jwt/v5"
)

// generateJWT signs a token carrying the anonymous identity.
func (h *Handler) generateJWT(anonID, userName string) (string, error) {
	claims := jwt.MapClaims{
		"anon_id":   anonID,
		"user_name": userName,
		"exp":       time.Now().Add(time.Hour * 72).Unix(),
		"iss":       "astroconnect-service",
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

// GetAnonID mints an anonymous identity and returns it as a JWT. The
// user name is derived from the id the way the chat displays it.
func (h *Handler) GetAnonID(c *gin.Context) {
	anonID := models.NewID("user_")
	userName := "User " + anonID[5:9]

	token, err := h.generateJWT(anonID, userName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "anon_id": anonID, "user_name": userName})
}
