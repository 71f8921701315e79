package worker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/creditwise/credit-gateway/internal/config"
	"github.com/creditwise/credit-gateway/internal/db"
	"github.com/creditwise/credit-gateway/internal/kafka"
	"github.com/creditwise/credit-gateway/internal/logger"
	"github.com/creditwise/credit-gateway/internal/metrics"
	"github.com/creditwise/credit-gateway/internal/repository"
	"github.com/creditwise/credit-gateway/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Run the usage ingest worker (Kafka -> ClickHouse)",
	RunE:  runUsage,
}

func runUsage(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Init(cfg.Logging.Level)

	metrics.MustRegister(prometheus.DefaultRegisterer)

	chDB, err := db.NewClickHouseConnection(db.ClickHouseOpts{
		DSN:             cfg.ClickHouse.DSN,
		MaxOpenConns:    cfg.ClickHouse.MaxOpenConns,
		MaxIdleConns:    cfg.ClickHouse.MaxIdleConns,
		ConnMaxLifetime: cfg.ClickHouse.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ClickHouse.ConnMaxIdleTime,
		PingTimeout:     cfg.ClickHouse.PingTimeout,
	})
	if err != nil {
		return fmt.Errorf("clickhouse connect: %w", err)
	}
	defer func() { _ = chDB.Close() }()

	groupID := cfg.Kafka.GroupID
	if groupID == "" {
		groupID = "creditgw-usage"
	}

	consumer := kafka.NewConsumerFromConfig(kafka.Config{
		Brokers:        cfg.Kafka.Brokers,
		Topic:          cfg.Kafka.UsageTopic,
		GroupID:        groupID,
		MinBytes:       cfg.Kafka.MinBytes,
		MaxBytes:       cfg.Kafka.MaxBytes,
		CommitInterval: time.Duration(cfg.Kafka.CommitInterval) * time.Millisecond,
	})
	defer consumer.Close()

	w := worker.NewUsageIngest(
		consumer,
		repository.NewCHUsageRepository(chDB),
		cfg.Ingest.BatchSize,
		cfg.Ingest.BatchWait,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Log.Info("usage ingest started",
		zap.String("topic", cfg.Kafka.UsageTopic),
		zap.String("group", groupID),
		zap.Int("batch_size", w.BatchSize),
		zap.Duration("batch_wait", w.BatchWait),
	)

	return w.Run(ctx)
}
