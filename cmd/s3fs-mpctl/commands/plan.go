package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/soitun/s3fs-fuse/pkg/multipart"
)

var planDirtyRanges []string

var planCmd = &cobra.Command{
	Use:   "plan <local-file>",
	Short: "Print the part plan for a local file without uploading it",
	Long: `Plan computes the same copy/upload/download/cancel decomposition the
planner would produce for a flush, against an empty manifest, and prints it.
Useful for inspecting how a given part size carves up a file before running
upload.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringArrayVar(&planDirtyRanges, "dirty", nil,
		"dirty byte range as start:size, repeatable (default: the whole file)")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	info, err := os.Stat(args[0])
	if err != nil {
		return fmt.Errorf("stat %s: %w", args[0], err)
	}

	dirty := multipart.NewUntreatedParts()
	if len(planDirtyRanges) == 0 {
		dirty.Add(0, info.Size())
	} else {
		for _, r := range planDirtyRanges {
			start, size, err := parseRange(r)
			if err != nil {
				return err
			}
			dirty.Add(start, size)
		}
	}

	planner := multipart.NewPlanner(cfg.Multipart.PartSize.Int64())
	manifest := multipart.NewManifest(multipart.NewEtagRegistry())

	plan, err := planner.PlanWholeFile(dirty.Duplicate(), manifest, info.Size(), cfg.Multipart.UseCopy)
	if err != nil {
		return fmt.Errorf("plan: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "upload (%d):\n", len(plan.Upload))
	for _, p := range plan.Upload {
		fmt.Fprintf(out, "  part %d: [%d, %d)\n", p.PartNum, p.Start, p.Start+p.Size)
	}
	fmt.Fprintf(out, "copy (%d):\n", len(plan.Copy))
	for _, p := range plan.Copy {
		fmt.Fprintf(out, "  part %d: [%d, %d)\n", p.PartNum, p.Start, p.Start+p.Size)
	}
	fmt.Fprintf(out, "download (%d):\n", len(plan.Download))
	for _, iv := range plan.Download {
		fmt.Fprintf(out, "  [%d, %d)\n", iv.Start, iv.End())
	}
	fmt.Fprintf(out, "cancel (%d part(s) superseded)\n", len(plan.Cancel))

	return nil
}

func parseRange(s string) (start, size int64, err error) {
	fields := strings.SplitN(s, ":", 2)
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("invalid range %q, want start:size", s)
	}
	start, err = strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range %q: %w", s, err)
	}
	size, err = strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid range %q: %w", s, err)
	}
	return start, size, nil
}
