package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/fyerfyer/docling-nodes/api/middleware"
	"github.com/fyerfyer/docling-nodes/pkg/taskqueue"
	"github.com/spf13/cobra"
)

var workerConcurrency int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Process async ingestion tasks from the Redis queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		// 工作者总是需要队列
		cfg.Queue.Enable = true
		if cmd.Flags().Changed("concurrency") {
			cfg.Queue.Concurrency = workerConcurrency
		}

		logger := setupLogger(middleware.GetLogger(), cfg.Log, os.Stdout)

		a, err := setupApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.queue == nil {
			return errors.New("task queue is not configured")
		}

		worker := taskqueue.NewRedisWorker(a.queue, nil)
		worker.RegisterHandler(taskqueue.TaskDocumentIngest, a.svc)
		if err := worker.Start(); err != nil {
			return err
		}
		logger.Info("Worker started")

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()

		logger.Info("Shutting down worker...")
		worker.Stop()
		return nil
	},
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 4, "Number of tasks processed concurrently, overrides queue.concurrency")

	rootCmd.AddCommand(workerCmd)
}
