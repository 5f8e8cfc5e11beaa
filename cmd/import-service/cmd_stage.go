package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"gopkg.in/yaml.v3"

	"racecrew/import-service/internal/grpcserver"
	"racecrew/import-service/internal/taskstore"
)

var stageCmd = &cobra.Command{
	Use:   "stage",
	Short: "Stage extraction results from a YAML file over gRPC",
	Long: `Reads extraction results from a YAML file and hands them to a running
import-service through the staging gRPC service. Prints the task id to open
in the review screens.

File format:

  kind: schedule        # or "documents"
  task_id: optional
  regattas:
    - name: Autumn Series
      location: Test YC
      start_date: 2026-09-01
      documents:
        - url: https://example.com/nor.pdf
          doc_type: NOR`,
	RunE: runStage,
}

var (
	stageFilePath string
	stageAddr     string
	stageKind     string
	stageTimeout  time.Duration
)

func init() {
	stageCmd.Flags().StringVarP(&stageFilePath, "file", "f", "", "YAML file with extraction results (required)")
	stageCmd.Flags().StringVar(&stageAddr, "addr", "localhost:9093", "staging gRPC address")
	stageCmd.Flags().StringVar(&stageKind, "kind", "", "override the kind given in the file (schedule|documents)")
	stageCmd.Flags().DurationVar(&stageTimeout, "timeout", 10*time.Second, "request timeout")
	_ = stageCmd.MarkFlagRequired("file")
}

// stageFile is the on-disk shape read by the stage command.
type stageFile struct {
	Kind               string `yaml:"kind"`
	grpcserver.Payload `yaml:",inline"`
}

// loadStageFile reads and validates path. kind, when set, overrides the
// file's kind; an empty kind defaults to schedule.
func loadStageFile(path, kind string) (*stageFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f stageFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if kind != "" {
		f.Kind = kind
	}
	if f.Kind == "" {
		f.Kind = taskstore.KindSchedule
	}
	if f.Kind != taskstore.KindSchedule && f.Kind != taskstore.KindDocuments {
		return nil, fmt.Errorf("kind must be %q or %q, got %q", taskstore.KindSchedule, taskstore.KindDocuments, f.Kind)
	}
	return &f, nil
}

func runStage(cmd *cobra.Command, _ []string) error {
	f, err := loadStageFile(stageFilePath, stageKind)
	if err != nil {
		return err
	}
	in, err := grpcserver.EncodePayload(f.Payload)
	if err != nil {
		return err
	}

	conn, err := grpc.NewClient(stageAddr, dialOptions...)
	if err != nil {
		return fmt.Errorf("dial %s: %w", stageAddr, err)
	}
	defer conn.Close()
	client := grpcserver.NewClient(conn)

	ctx, cancel := context.WithTimeout(cmd.Context(), stageTimeout)
	defer cancel()

	stage := client.StageSchedule
	if f.Kind == taskstore.KindDocuments {
		stage = client.StageDocuments
	}
	out, err := stage(ctx, in)
	if err != nil {
		return fmt.Errorf("stage %s: %w", f.Kind, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Staged %d regatta(s) as %s task %s\n",
		int(out.GetFields()["count"].GetNumberValue()), f.Kind, out.GetFields()["task_id"].GetStringValue())
	return nil
}

// dialOptions is overridden by tests to route through an in-memory listener.
var dialOptions = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
