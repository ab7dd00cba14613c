package routes

import (
	"log"
	"net/http"
	"os"

	"github.com/borderlesste/cavb-visa-sub000/utils"
	"github.com/borderlesste/cavb-visa-sub000/ws"

	jwtGo "github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		allowed := os.Getenv("CORS_ORIGIN")
		return allowed == "" || origin == allowed
	},
}

// ServeWS upgrades GET /ws?token=... to a push connection. Browsers cannot
// set an Authorization header on a WebSocket, so the access token travels
// as a query parameter, verified before the upgrade.
func ServeWS(hub *ws.Hub) iris.Handler {
	return func(ctx iris.Context) {
		tokenStr := ctx.URLParam("token")
		if tokenStr == "" {
			utils.JSONError(ctx, iris.StatusUnauthorized, "unauthorized", "missing token")
			return
		}

		userID, err := parseUserIDFromAccessToken(tokenStr)
		if err != nil {
			// Finish the upgrade anyway so the client receives a proper
			// policy-violation close instead of an opaque HTTP error.
			if conn, upErr := upgrader.Upgrade(ctx.ResponseWriter().Naive(), ctx.Request(), nil); upErr == nil {
				msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token")
				_ = conn.WriteMessage(websocket.CloseMessage, msg)
				conn.Close()
				return
			}
			utils.JSONError(ctx, iris.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		conn, err := upgrader.Upgrade(ctx.ResponseWriter().Naive(), ctx.Request(), nil)
		if err != nil {
			// Upgrade already wrote the error response.
			return
		}

		client := hub.Register(userID, conn)
		log.Printf("ws: user %d connected", userID)

		// Push-only: read to process control frames until the peer goes away.
		go func() {
			defer func() {
				hub.Unregister(client)
				log.Printf("ws: user %d disconnected", userID)
			}()
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}()
	}
}

func parseUserIDFromAccessToken(tokenStr string) (uint, error) {
	token, err := jwtGo.Parse(tokenStr, func(t *jwtGo.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtGo.SigningMethodHMAC); !ok {
			return nil, jwtGo.ErrSignatureInvalid
		}
		return []byte(os.Getenv("ACCESS_TOKEN_SECRET")), nil
	})
	if err != nil || !token.Valid {
		return 0, jwtGo.ErrTokenUnverifiable
	}

	claims, ok := token.Claims.(jwtGo.MapClaims)
	if !ok {
		return 0, jwtGo.ErrTokenInvalidClaims
	}
	id, ok := claims["ID"].(float64)
	if !ok || id <= 0 {
		return 0, jwtGo.ErrTokenInvalidClaims
	}
	return uint(id), nil
}
