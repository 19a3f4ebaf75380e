package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/pharmacy-api/internal/app"
	"github.com/jwalitptl/pharmacy-api/internal/config"
	audithandler "github.com/jwalitptl/pharmacy-api/internal/handler/audit"
	customerhandler "github.com/jwalitptl/pharmacy-api/internal/handler/customer"
	diagnosishandler "github.com/jwalitptl/pharmacy-api/internal/handler/diagnosis"
	doctorhandler "github.com/jwalitptl/pharmacy-api/internal/handler/doctor"
	"github.com/jwalitptl/pharmacy-api/internal/handler/health"
	medicinehandler "github.com/jwalitptl/pharmacy-api/internal/handler/medicine"
	recipehandler "github.com/jwalitptl/pharmacy-api/internal/handler/recipe"
	reporthandler "github.com/jwalitptl/pharmacy-api/internal/handler/report"
	sickleavehandler "github.com/jwalitptl/pharmacy-api/internal/handler/sickleave"
	"github.com/jwalitptl/pharmacy-api/internal/middleware"
	"github.com/jwalitptl/pharmacy-api/internal/repository/postgres"
	"github.com/jwalitptl/pharmacy-api/internal/router"
	"github.com/jwalitptl/pharmacy-api/internal/service/access"
	auditService "github.com/jwalitptl/pharmacy-api/internal/service/audit"
	customerService "github.com/jwalitptl/pharmacy-api/internal/service/customer"
	diagnosisService "github.com/jwalitptl/pharmacy-api/internal/service/diagnosis"
	doctorService "github.com/jwalitptl/pharmacy-api/internal/service/doctor"
	eventService "github.com/jwalitptl/pharmacy-api/internal/service/event"
	medicineService "github.com/jwalitptl/pharmacy-api/internal/service/medicine"
	"github.com/jwalitptl/pharmacy-api/internal/service/rbac"
	recipeService "github.com/jwalitptl/pharmacy-api/internal/service/recipe"
	reportService "github.com/jwalitptl/pharmacy-api/internal/service/report"
	sickleaveService "github.com/jwalitptl/pharmacy-api/internal/service/sickleave"
	"github.com/jwalitptl/pharmacy-api/pkg/auth"
)

const serviceName = "pharmacy-api"

func main() {
	var configPath string

	root := &cobra.Command{
		Use:   serviceName,
		Short: "Pharmacy and clinic administration API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), configPath)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context(), configPath)
		},
	})

	ctx, stop := app.SignalContext(context.Background())
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func migrate(ctx context.Context, configPath string) error {
	rt, err := app.Bootstrap(ctx, configPath, serviceName)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())

	if err := postgres.Migrate(ctx, rt.DB); err != nil {
		return err
	}
	rt.Logger.Info("Schema applied")
	return nil
}

func serve(ctx context.Context, configPath string) error {
	rt, err := app.Bootstrap(ctx, configPath, serviceName)
	if err != nil {
		return err
	}
	defer rt.Close(context.Background())
	cfg := rt.Config

	if !cfg.IsProduction() {
		if err := postgres.Migrate(ctx, rt.DB); err != nil {
			return err
		}
	}

	// Repositories
	base := postgres.NewBaseRepository(rt.DB)
	doctorRepo := postgres.NewDoctorRepository(base)
	customerRepo := postgres.NewCustomerRepository(base)
	medicineRepo := postgres.NewMedicineRepository(base)
	recipeRepo := postgres.NewRecipeRepository(base)
	diagnosisRepo := postgres.NewDiagnosisRepository(base)
	sickLeaveRepo := postgres.NewSickLeaveRepository(base)
	reportRepo := postgres.NewReportRepository(base)
	auditRepo := postgres.NewAuditRepository(base)
	outboxRepo := postgres.NewOutboxRepository(base)

	// Services
	auditor := auditService.NewService(auditRepo)
	events := eventService.NewService(outboxRepo)

	doctorSvc := doctorService.NewService(doctorRepo)
	customerSvc := customerService.NewService(customerRepo, doctorRepo)
	medicineSvc := medicineService.NewService(medicineRepo)
	recipeSvc := recipeService.NewService(recipeService.Deps{
		Tx:        base,
		Recipes:   recipeRepo,
		Doctors:   doctorRepo,
		Customers: customerRepo,
		Medicines: medicineRepo,
		Diagnoses: diagnosisRepo,
		Auditor:   auditor,
		Events:    events,
	})
	diagnosisSvc := diagnosisService.NewService(base, diagnosisRepo, recipeRepo, auditor)
	sickLeaveSvc := sickleaveService.NewService(sickleaveService.Deps{
		Tx:        base,
		Leaves:    sickLeaveRepo,
		Recipes:   recipeRepo,
		Customers: customerRepo,
		Auditor:   auditor,
		Events:    events,
		Numbers:   sickleaveService.NewNumberGenerator(),
		Issued:    rt.Metrics.SickLeavesIssued,
	})
	reportSvc := reportService.NewService(reportService.Deps{
		Reports:    reportRepo,
		Customers:  customerRepo,
		Doctors:    doctorRepo,
		Medicines:  medicineRepo,
		Recipes:    recipeRepo,
		Diagnoses:  diagnosisRepo,
		SickLeaves: sickLeaveRepo,
	})

	// Authentication and route policy
	verifier, err := auth.NewVerifier(auth.Config{
		Issuer:         cfg.Auth.Issuer,
		Audience:       cfg.Auth.Audience,
		ClientID:       cfg.Auth.ClientID,
		SigningKey:     cfg.Auth.SigningKey,
		JWKSURL:        cfg.Auth.JWKSURL,
		JWKSCacheTTL:   cfg.Auth.JWKSCacheTTL,
		JWKSMinRefresh: cfg.Auth.JWKSMinRefresh,
		Leeway:         cfg.Auth.Leeway,
	})
	if err != nil {
		return fmt.Errorf("failed to create token verifier: %w", err)
	}
	policy, err := rbac.NewService(policyRules(cfg))
	if err != nil {
		return err
	}
	authMiddleware := middleware.NewAuthMiddleware(verifier, access.NewResolver(doctorRepo), policy)

	r := router.NewRouter(
		authMiddleware,
		health.NewHandler(rt.DB, rt.Registry),
		[]router.Handler{
			doctorhandler.NewHandler(doctorSvc),
			customerhandler.NewHandler(customerSvc),
			medicinehandler.NewHandler(medicineSvc),
			recipehandler.NewHandler(recipeSvc),
			diagnosishandler.NewHandler(diagnosisSvc),
			sickleavehandler.NewHandler(sickLeaveSvc),
			reporthandler.NewHandler(reportSvc),
			audithandler.NewHandler(auditor),
		},
		rt.Metrics,
		*rt.Logger.Zerolog(),
		router.RouterConfig{
			ServiceName:    cfg.Tracing.ServiceName,
			RateLimit:      rate.Limit(cfg.Server.RateLimit),
			RateBurst:      cfg.Server.RateBurst,
			CORSOrigins:    cfg.Server.CORSOrigins,
			RequestTimeout: cfg.Server.RequestTimeout,
			MaxBodyBytes:   cfg.Server.MaxBodyBytes,
			Production:     cfg.IsProduction(),
		},
	)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.Logger.Info("Starting server", "port", cfg.Server.Port, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	rt.Logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	rt.Logger.Info("Server exited")
	return nil
}

// policyRules prefers configured rules over the built-in route table.
func policyRules(cfg *config.Config) []rbac.Rule {
	if len(cfg.Policy.Rules) == 0 {
		return rbac.DefaultRules(router.BasePath)
	}
	rules := make([]rbac.Rule, 0, len(cfg.Policy.Rules))
	for _, r := range cfg.Policy.Rules {
		rules = append(rules, rbac.Rule{Subject: r.Subject, Object: r.Object, Action: r.Action})
	}
	return rules
}
