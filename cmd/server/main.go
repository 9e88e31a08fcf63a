package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/CryptoMichaael/Nexus/internal/chain"
	"github.com/CryptoMichaael/Nexus/internal/config"
	"github.com/CryptoMichaael/Nexus/internal/handler"
	"github.com/CryptoMichaael/Nexus/internal/models"
	"github.com/CryptoMichaael/Nexus/internal/queue"
	"github.com/CryptoMichaael/Nexus/internal/repository"
	"github.com/CryptoMichaael/Nexus/internal/scheduler"
	"github.com/CryptoMichaael/Nexus/internal/service"
	"github.com/CryptoMichaael/Nexus/internal/wallet"
	"github.com/CryptoMichaael/Nexus/pkg/logger"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	db, err := initDatabase(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	defer closeDatabase(db)

	if err := migrate(db); err != nil {
		logger.Fatal("Failed to migrate database:", err)
	}

	userRepo := repository.NewUserRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	depositRepo := repository.NewDepositRepository(db)
	roiRepo := repository.NewRoiRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	poolRepo := repository.NewPoolRepository(db)
	withdrawalRepo := repository.NewWithdrawalRepository(db)
	jobRepo := repository.NewJobRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	treasuryWallet := wallet.NewManager(cfg.Treasury.EncryptedKey, cfg.Treasury.AutoLockMinutes)
	chainClient, err := chain.NewClient(&cfg.Treasury, treasuryWallet)
	if err != nil {
		logger.Fatal("Failed to connect chain RPC:", err)
	}
	defer chainClient.Close()

	rankSvc := service.NewRankService(db, userRepo, balanceRepo, roiRepo, ledgerRepo, auditRepo, cfg)
	depositSvc := service.NewDepositService(db, userRepo, balanceRepo, depositRepo, roiRepo, ledgerRepo, cfg, rankSvc)
	roiSvc := service.NewRoiService(db, roiRepo, balanceRepo, ledgerRepo, cfg)
	poolSvc := service.NewPoolService(db, userRepo, balanceRepo, poolRepo, ledgerRepo, cfg)
	withdrawalSvc := service.NewWithdrawalService(db, userRepo, balanceRepo, withdrawalRepo, jobRepo, ledgerRepo, chainClient, cfg)
	adminSvc := service.NewAdminService(db, userRepo, balanceRepo, ledgerRepo, auditRepo, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	worker := queue.NewWorker(jobRepo, withdrawalSvc, cfg)
	worker.Start(ctx)
	defer worker.Stop()

	sched := scheduler.NewScheduler(roiSvc, poolSvc, rankSvc, cfg)
	if err := sched.Start(); err != nil {
		logger.Fatal("Failed to start scheduler:", err)
	}
	defer sched.Stop()

	webhookHandler := handler.NewWebhookHandler(depositSvc, cfg)
	apiHandler := handler.NewApiHandler(withdrawalSvc, balanceRepo, ledgerRepo, withdrawalRepo)
	adminHandler := handler.NewAdminHandler(adminSvc, rankSvc, roiSvc, poolSvc, treasuryWallet, poolRepo)
	router := handler.NewRouter(webhookHandler, apiHandler, adminHandler, cfg, auditRepo)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("Server starting on port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error:", err)
	}

	treasuryWallet.Lock()
	logger.Info("Server stopped")
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	// TranslateError 把驱动的唯一键冲突翻译成 gorm.ErrDuplicatedKey，
	// 入金与周池的幂等都依赖这条约定
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	return db, nil
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Balance{},
		&models.Deposit{},
		&models.RoiLedger{},
		&models.LedgerEntry{},
		&models.WeeklyPool{},
		&models.WeeklyReward{},
		&models.Withdrawal{},
		&models.WithdrawalJob{},
		&models.AuditLog{},
	)
}

func closeDatabase(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get database instance:", err)
		return
	}
	sqlDB.Close()
}
