package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"document-billing-backend/internal/config"
	handler "document-billing-backend/internal/handlers"
	"document-billing-backend/internal/repository"
	"document-billing-backend/internal/services/audit"
	"document-billing-backend/internal/services/collaborators"
	"document-billing-backend/internal/services/ledger"
	"document-billing-backend/internal/services/lifecycle"
	"document-billing-backend/internal/services/reconciliation"
	"document-billing-backend/internal/services/sweeper"
)

// Services bundles the wired engine so cmd/server can start the background
// pieces after routes are registered.
type Services struct {
	Contracts  *lifecycle.Service
	Invoices   *ledger.Service
	Queue      *reconciliation.Queue
	Dispatcher *collaborators.Dispatcher
	Sweeper    *sweeper.Sweeper
}

func RegisterRoutes(r *gin.Engine, db *gorm.DB) *Services {
	templateRepo := repository.NewTemplateRepository(db)
	contractRepo := repository.NewContractRepository(db)
	invoiceRepo := repository.NewInvoiceRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	eventRepo := repository.NewEventRepository(db)

	recorder := audit.NewRecorder(eventRepo)
	dispatcher := collaborators.NewDispatcher(collaborators.NoopPDFGenerator{}, collaborators.LogEmailSender{})

	ttl := config.ContractTTLDays()
	contractSvc := lifecycle.NewService(contractRepo, templateRepo, recorder, dispatcher, ttl)
	invoiceSvc := ledger.NewService(invoiceRepo, templateRepo, recorder, dispatcher, ttl)
	reconSvc := reconciliation.NewReconciliationService(invoiceRepo, paymentRepo, recorder)
	queue := reconciliation.NewQueue(reconSvc, paymentRepo)

	templateHandler := handler.NewTemplateHandler(templateRepo)
	contractHandler := handler.NewContractHandler(contractSvc, eventRepo)
	invoiceHandler := handler.NewInvoiceHandler(invoiceSvc, reconSvc, eventRepo)
	webhookHandler := handler.NewWebhookHandler(reconSvc, queue)

	api := r.Group("/api")

	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	templates := api.Group("/templates")
	templates.POST("/contracts", templateHandler.CreateContractTemplate)
	templates.GET("/contracts", templateHandler.ListContractTemplates)
	templates.GET("/contracts/:id", templateHandler.GetContractTemplate)
	templates.PUT("/contracts/:id", templateHandler.UpdateContractTemplate)
	templates.POST("/contracts/:id/retire", templateHandler.RetireContractTemplate)
	templates.POST("/invoices", templateHandler.CreateInvoiceTemplate)
	templates.GET("/invoices", templateHandler.ListInvoiceTemplates)
	templates.POST("/invoices/:id/retire", templateHandler.RetireInvoiceTemplate)

	contracts := api.Group("/contracts")
	contracts.POST("", contractHandler.Create)
	contracts.GET("", contractHandler.List)
	contracts.GET("/:id", contractHandler.Get)
	contracts.POST("/:id/render", contractHandler.Render)
	contracts.POST("/:id/send", contractHandler.Send)
	contracts.POST("/:id/countersign", contractHandler.Countersign)
	contracts.POST("/:id/cancel", contractHandler.Cancel)
	contracts.GET("/:id/events", contractHandler.ListEvents)

	invoices := api.Group("/invoices")
	invoices.POST("", invoiceHandler.Create)
	invoices.GET("", invoiceHandler.List)
	invoices.GET("/:id", invoiceHandler.Get)
	invoices.PUT("/:id/lines", invoiceHandler.UpdateLines)
	invoices.POST("/:id/send", invoiceHandler.Send)
	invoices.POST("/:id/cancel", invoiceHandler.Cancel)
	invoices.GET("/:id/payments", invoiceHandler.ListPayments)
	invoices.GET("/:id/events", invoiceHandler.ListEvents)

	// Unauthenticated token access for document recipients.
	public := r.Group("/p")
	public.GET("/contracts/:token", contractHandler.ViewByToken)
	public.POST("/contracts/:token/sign", contractHandler.Sign)
	public.POST("/contracts/:token/decline", contractHandler.Decline)
	public.GET("/invoices/:token", invoiceHandler.ViewByToken)

	webhooks := api.Group("/webhooks")
	webhooks.POST("/payments/:provider", webhookHandler.HandlePayment)
	webhooks.POST("/payments/:provider/batch", webhookHandler.HandleBatch)

	return &Services{
		Contracts:  contractSvc,
		Invoices:   invoiceSvc,
		Queue:      queue,
		Dispatcher: dispatcher,
		Sweeper:    sweeper.New(contractSvc, invoiceSvc),
	}
}
