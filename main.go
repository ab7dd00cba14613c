package main

import (
	"log"
	"os"

	"github.com/borderlesste/cavb-visa-sub000/routes"
	"github.com/borderlesste/cavb-visa-sub000/services"
	"github.com/borderlesste/cavb-visa-sub000/storage"
	"github.com/borderlesste/cavb-visa-sub000/utils"
	"github.com/borderlesste/cavb-visa-sub000/ws"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"
)

func main() {
	godotenv.Load()
	storage.InitializeDB()
	storage.InitializeRedis()
	storage.InitializeUploads()

	app := iris.New()
	app.Validator = validator.New()

	// CORS for the SPA
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		origin := os.Getenv("CORS_ORIGIN")
		if origin == "" {
			origin = ctx.GetHeader("Origin")
		}
		ctx.Header("Access-Control-Allow-Origin", origin)
		ctx.Header("Vary", "Origin")
		ctx.Header("Access-Control-Allow-Credentials", "true")
		ctx.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Requested-With")
		ctx.Header("Access-Control-Allow-Methods", "GET,POST,PATCH,PUT,DELETE,OPTIONS")
		if ctx.Method() == iris.MethodOptions {
			ctx.StatusCode(iris.StatusNoContent)
			return
		}
		ctx.Next()
	})

	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	refreshTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("REFRESH_TOKEN_SECRET")))
	refreshTokenVerifier.WithDefaultBlocklist()
	refreshTokenVerifierMiddleware := refreshTokenVerifier.Verify(func() interface{} {
		return new(jwt.Claims)
	})
	refreshTokenVerifier.Extractors = append(refreshTokenVerifier.Extractors, func(ctx iris.Context) string {
		var tokenInput refreshTokenInput
		if err := ctx.ReadJSON(&tokenInput); err != nil {
			return ""
		}
		return tokenInput.RefreshToken
	})

	hub := ws.NewHub()
	notifier := services.NewNotificationService(hub)
	mailer := services.NewMailer()

	auth := app.Party("/api/auth")
	{
		auth.Post("/register", routes.Register(mailer))
		auth.Post("/login", routes.Login)
		auth.Post("/refresh", refreshTokenVerifierMiddleware, utils.RefreshToken)
		auth.Get("/me", accessTokenVerifierMiddleware, routes.Me)
		auth.Get("/verify-email/{token}", routes.VerifyEmail)
		auth.Post("/resend-verification", accessTokenVerifierMiddleware, routes.ResendVerification(mailer))
	}

	applications := app.Party("/api/applications", accessTokenVerifierMiddleware)
	{
		applications.Get("/", routes.GetCurrentApplication)
		applications.Post("/", routes.CreateApplication)
		applications.Get("/all", routes.GetApplications)
		applications.Post("/documents/{docID}", routes.UploadDocument(notifier))
		applications.Post("/appointment", routes.ScheduleAppointment(notifier, mailer))
		applications.Get("/{id}", routes.GetApplicationByID)
		applications.Put("/{id}", routes.UpdateApplication)
		applications.Delete("/{id}", routes.DeleteApplication)
	}

	admin := app.Party("/api/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
	{
		admin.Get("/applications", routes.AdminListApplications)
		admin.Put("/applications/{id}/documents/{docID}", routes.AdminReviewDocument(notifier))
		admin.Put("/applications/{id}/status", routes.AdminSetApplicationStatus(notifier, mailer))
		admin.Get("/analytics", routes.AdminAnalytics)
		admin.Get("/activity", routes.AdminActivity)
		admin.Get("/appointments", routes.AdminListAppointments)
	}

	messages := app.Party("/api/messages", accessTokenVerifierMiddleware)
	{
		messages.Post("/", routes.CreateMessage(notifier))
		messages.Get("/conversations", routes.GetConversations)
		messages.Get("/conversations/{id}", routes.GetConversation)
		messages.Put("/conversations/{id}/read", routes.MarkConversationRead)
		messages.Put("/{id}/read", routes.MarkMessageRead)
	}

	notifications := app.Party("/api/notifications", accessTokenVerifierMiddleware)
	{
		notifications.Get("/", routes.GetNotifications)
		notifications.Put("/read-all", routes.MarkAllNotificationsRead(notifier))
		notifications.Put("/{id}/read", routes.MarkNotificationRead(notifier))
		notifications.Delete("/{id}", routes.DeleteNotification(notifier))
	}

	files := app.Party("/api/files", accessTokenVerifierMiddleware)
	{
		files.Get("/documents/{docID}", routes.DownloadDocument)
		files.Get("/letters/{id}", routes.DownloadConfirmationLetter)
	}

	app.Get("/ws", routes.ServeWS(hub))

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	log.Fatal(app.Listen(":" + port))
}

type refreshTokenInput struct {
	RefreshToken string `json:"refreshToken"`
}
