package main

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kataras/iris/v12"
	"github.com/kataras/iris/v12/middleware/jwt"

	"hostpilot-server/routes"
	"hostpilot-server/services"
	"hostpilot-server/storage"
	"hostpilot-server/utils"
)

func main() {
	// Only load .env in development
	if os.Getenv("RENDER") == "" {
		godotenv.Load()
	}

	storage.InitializeDB()
	storage.InitializeRedis()

	app := iris.New()
	app.Validator = validator.New()

	// CORS configuration
	app.AllowMethods(iris.MethodOptions)
	app.UseRouter(func(ctx iris.Context) {
		ctx.Header("Access-Control-Allow-Origin", ctx.GetHeader("Origin"))
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

	// Minimal middleware - compression only
	app.Use(iris.Compression)

	accessTokenVerifier := jwt.NewVerifier(jwt.HS256, []byte(os.Getenv("ACCESS_TOKEN_SECRET")))
	accessTokenVerifier.WithDefaultBlocklist()
	accessTokenVerifierMiddleware := accessTokenVerifier.Verify(func() interface{} {
		return new(utils.AccessToken)
	})

	// Health check endpoint - CRITICAL for Render
	app.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"status": "ok"})
	})

	// Provider webhooks carry no auth; the payloads themselves are
	// validated (DKIM, forwarding address, phone match).
	webhook := app.Party("/api/webhook")
	{
		webhook.Post("/email", routes.InboundEmail)
		webhook.Post("/sms", routes.InboundSMS)
		webhook.Get("/sms", routes.InboundSMS)
		webhook.Post("/verification", routes.VerificationCode)
	}

	conversations := app.Party("/api/conversations", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		conversations.Get("/", routes.ListConversations)
		conversations.Post("/{id:uint}/read", routes.MarkConversationRead)
	}

	messages := app.Party("/api/messages", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		messages.Get("/", routes.ListMessages)
		messages.Post("/", routes.SendMessage)
		messages.Post("/{id:uint}/retry", routes.RetryMessage)
	}

	templates := app.Party("/api/templates", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		templates.Post("/", routes.CreateTemplate)
		templates.Get("/", routes.ListTemplates)
	}

	automations := app.Party("/api/automations", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		automations.Post("/", routes.CreateAutomation)
		automations.Get("/", routes.ListAutomations)
		automations.Patch("/{id:uint}/toggle", routes.ToggleAutomation)
	}

	forwarding := app.Party("/api/forwarding", accessTokenVerifierMiddleware, utils.UserIDFromTokenMiddleware)
	{
		forwarding.Post("/", routes.RegisterForwardingEmail)
		forwarding.Get("/", routes.ListForwardingEmails)
		forwarding.Patch("/{id:uint}/toggle", routes.ToggleForwardingEmail)
	}

	admin := app.Party("/api/admin", accessTokenVerifierMiddleware, utils.AdminOnlyMiddleware)
	{
		admin.Get("/parse-tasks", routes.AdminListParseTasks)
		admin.Get("/parse-tasks/{uid:string}", routes.AdminGetParseTask)
		admin.Post("/parse-tasks/{uid:string}/reparse", routes.AdminReparseTask)
		admin.Get("/notifications", routes.AdminListNotifications)
	}

	// Background loops: automation firing, dispatch, notification drain,
	// inbound email parsing, payload cleanup.
	store := services.NewMessageStore(services.NowUTC)
	transports := services.NewTransportSet(services.NowUTC)
	dispatcher := services.NewDispatcher(store, transports, services.NowUTC)
	runner := services.NewRunner(
		services.NewScheduler(services.NowUTC),
		dispatcher,
		services.NewEmailParser(store, services.NowUTC),
		services.NewNotificationService(transports),
		services.NowUTC,
	)
	runner.Start()

	port := os.Getenv("PORT")
	if port == "" {
		port = "4000"
	}
	addr := "0.0.0.0:" + port

	fmt.Printf("🚀 Server starting on %s\n", addr)

	if err := app.Listen(addr); err != nil {
		log.Fatalf("❌ Server failed: %v", err)
	}
}
