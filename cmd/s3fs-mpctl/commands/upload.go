package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/soitun/s3fs-fuse/internal/logger"
	"github.com/soitun/s3fs-fuse/pkg/multipart"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <local-file> <remote-key>",
	Short: "Upload a local file to the configured bucket via the multipart planner",
	Args:  cobra.ExactArgs(2),
	RunE:  runUpload,
}

func runUpload(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	localPath, remoteKey := args[0], args[1]
	runID := uuid.NewString()
	log := logger.L().With(slog.String("run_id", runID), slog.String(logger.KeyPath, remoteKey))
	log.Info("starting upload run")

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	ctx := context.Background()
	client, err := multipart.NewS3Client(ctx, multipart.S3Config{
		Bucket:          cfg.Remote.Bucket,
		Region:          cfg.Remote.Region,
		Endpoint:        cfg.Remote.Endpoint,
		UsePathStyle:    cfg.Remote.UsePathStyle,
		AccessKeyID:     cfg.Remote.AccessKeyID,
		SecretAccessKey: cfg.Remote.SecretAccessKey,
	})
	if err != nil {
		return err
	}
	remote := multipart.NewS3RemoteStore(client, cfg.Remote.Bucket)

	pool := multipart.NewWorkerPool(cfg.Multipart.Workers, cfg.Multipart.QueueSize)
	defer pool.Stop()

	allocator := multipart.NewPseudoFDAllocator()
	handle := multipart.NewHandle(allocator, pool, remote, cfg.Multipart.PartSize.Int64(),
		remoteKey, multipart.OpenFlags{Writable: true, Readable: true}, f)
	defer handle.Close()

	handle.AddDirty(0, info.Size())

	plan, err := handle.FlushAll(ctx, info.Size(), cfg.Multipart.UseCopy)
	if err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "planned: %d upload, %d copy, %d download, %d cancel\n",
		len(plan.Upload), len(plan.Copy), len(plan.Download), len(plan.Cancel))

	if err := handle.Finalize(ctx); err != nil {
		return fmt.Errorf("finalize: %w", err)
	}

	log.Info("upload run complete", slog.Int64(logger.KeySize, info.Size()))
	fmt.Fprintf(cmd.OutOrStdout(), "uploaded %s to s3://%s/%s\n", localPath, cfg.Remote.Bucket, remoteKey)
	return nil
}
