package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/swagger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/jhoicas/Facturacion-api/internal/application/billing"
	"github.com/jhoicas/Facturacion-api/internal/domain/fiscal"
	infrafiscal "github.com/jhoicas/Facturacion-api/internal/infrastructure/fiscal"
	"github.com/jhoicas/Facturacion-api/internal/infrastructure/fiscal/signer"
	"github.com/jhoicas/Facturacion-api/internal/infrastructure/postgres"
	httpRouter "github.com/jhoicas/Facturacion-api/internal/interfaces/http"
	"github.com/jhoicas/Facturacion-api/pkg/config"
	pkgfiscal "github.com/jhoicas/Facturacion-api/pkg/fiscal"
	"github.com/jhoicas/Facturacion-api/pkg/logger"
)

const retryBatch = 50

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}

	log := logger.New(logger.Config{
		Env:     cfg.App.Env,
		Level:   cfg.App.LogLevel,
		Service: cfg.App.Name,
	})
	log.Info().
		Str("env", cfg.App.Env).
		Str("fiscal_env", cfg.Fiscal.Env).
		Str("country", cfg.Fiscal.CountryCode).
		Msg("iniciando aplicación")

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	companyRepo := postgres.NewCompanyRepository(pool)
	clientRepo := postgres.NewClientRepository(pool)
	documentRepo := postgres.NewDocumentRepository(pool)
	txRunner := postgres.NewTxRunner(pool)

	billingCfg := billing.Config{
		CountryCode:     cfg.Fiscal.CountryCode,
		DefaultSeries:   cfg.Fiscal.DefaultSeries,
		WithholdingRate: cfg.Fiscal.WithholdingRate,
	}

	// Certificado del emisor: sin ruta el DFE se transmite sin firma.
	cert, err := signer.Load(cfg.Fiscal.CertPath, cfg.Fiscal.KeyPath, cfg.Fiscal.CertPassword)
	if err != nil {
		log.Fatal().Err(err).Msg("cargar certificado de firma")
	}
	var dfeSigner pkgfiscal.Signer
	if len(cert.Certificate) > 0 {
		dfeSigner = signer.NewDigitalSignatureService()
	}

	// Cliente SOAP solo fuera de dev; en dev el orquestador no envía.
	var submitter infrafiscal.Submitter
	if cfg.Fiscal.Env != "dev" {
		submitter = infrafiscal.NewSOAPClient(infrafiscal.Endpoints{
			Test: cfg.Fiscal.TestEndpoint,
			Prod: cfg.Fiscal.Endpoint,
		}, cfg.Fiscal.SubmitTimeout)
	}

	transmission := billing.NewTransmissionOrchestrator(
		documentRepo, companyRepo, infrafiscal.NewXMLBuilderService(),
		dfeSigner, cert, submitter,
		billing.TransmissionConfig{Env: cfg.Fiscal.Env, Timeout: cfg.Fiscal.SubmitTimeout},
		log.Component("transmission"),
	)

	draftUC := billing.NewDraftUseCase(documentRepo, clientRepo, billingCfg, log.Component("drafts"))
	finalizeUC := billing.NewFinalizeUseCase(
		txRunner, documentRepo, companyRepo,
		pkgfiscal.Mod11Validator{}, fiscal.CryptoRandomCode,
		transmission, billingCfg, log.Component("finalize"),
	)
	creditNoteUC := billing.NewCreditNoteUseCase(documentRepo, billingCfg, log.Component("credit_notes"))
	statusUC := billing.NewStatusUseCase(documentRepo, log.Component("status"))

	app := fiber.New(fiber.Config{
		AppName:      cfg.App.Name,
		ReadTimeout:  time.Second * 10,
		WriteTimeout: time.Second * 10,
		IdleTimeout:  time.Second * 60,
	})
	app.Use(recover.New())

	// Swagger UI en local: http://localhost:<port>/docs
	app.Use(swagger.New(swagger.Config{
		BasePath: "/",
		FilePath: "./docs/swagger.json",
		Path:     "docs",
		Title:    "Facturación API",
	}))

	app.Get("/health", func(c *fiber.Ctx) error {
		if err := pool.Ping(c.UserContext()); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "db_down", "service": cfg.App.Name})
		}
		return c.JSON(fiber.Map{"status": "ok", "service": cfg.App.Name})
	})

	httpRouter.Router(app, httpRouter.RouterDeps{
		Drafts:       draftUC,
		Finalize:     finalizeUC,
		CreditNotes:  creditNoteUC,
		Status:       statusUC,
		Transmission: transmission,
		JWTSecret:    cfg.JWT.Secret,
		Log:          log.Component("http"),
	})

	// Reintento periódico de transmisiones FAILED / NOT_SENT.
	retryCtx, stopRetry := context.WithCancel(ctx)
	defer stopRetry()
	go retryLoop(retryCtx, transmission, cfg.Fiscal.RetryInterval, log)

	go func() {
		if err := app.Listen(cfg.HTTP.Addr()); err != nil {
			log.Error().Err(err).Msg("servidor HTTP finalizado")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("señal de apagado recibida, cerrando servidor...")
	stopRetry()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("apagado del servidor")
	}

	log.Info().Msg("aplicación detenida")
}

func retryLoop(ctx context.Context, o *billing.TransmissionOrchestrator, every time.Duration, log *logger.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := o.RetryFailed(ctx, retryBatch)
			if err != nil {
				log.Error().Err(err).Msg("reintento de transmisiones")
				continue
			}
			if n > 0 {
				log.Info().Int("transmitted", n).Msg("transmisiones reintentadas")
			}
		}
	}
}
