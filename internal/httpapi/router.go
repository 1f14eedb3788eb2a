// Package httpapi is the REST surface: accounts, monster roster, room and
// battle lookups, and the websocket upgrade.
package httpapi

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

type Deps struct {
	Auth *AuthHandler
	Game *GameHandler
	// Tokens guards /api/me.
	Tokens TokenVerifier
	Log    *slog.Logger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(RequestLogger(d.Log), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/auth/register", d.Auth.Register)
	api.POST("/auth/login", d.Auth.Login)
	api.GET("/me", AuthMiddleware(d.Tokens), d.Auth.Me)

	api.GET("/monsters", d.Game.ListMonsters)
	api.GET("/rooms/:roomId", d.Game.GetRoom)
	api.GET("/battles/:roomId", d.Game.GetBattle)

	r.GET("/ws", d.Game.ServeWS)

	return r
}
