package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/jupierce/css-coverage-analysis/pkg/log"
)

var (
	s3Bucket     string
	s3Profile    string
	s3Region     string
	s3Prefix     string
	skipExisting bool

	downloadCmd = &cobra.Command{
		Use:   "download",
		Short: "Download coverage dumps from S3",
		Long: `Download CSS coverage dumps (*.json) from an S3 bucket into
<collection>/coverage, keeping the key layout below the prefix.

Uses the AWS CLI, so credentials, SSO profiles and regions are configured the
same way as for aws itself.`,
		Example: `  # Download coverage dumps
  css-coverage collection download --collection nightly \
    --bucket ui-test-artifacts \
    --prefix e2e/css-coverage \
    --profile saml \
    --region us-east-1

  # Skip dumps already downloaded
  css-coverage collection download --collection nightly \
    --bucket ui-test-artifacts \
    --prefix e2e/css-coverage \
    --skip-existing`,
		RunE: runDownload,
	}
)

func init() {
	downloadCmd.Flags().StringVar(&s3Bucket, "bucket", "", "S3 bucket name (required)")
	downloadCmd.Flags().StringVar(&s3Profile, "profile", "", "AWS CLI profile")
	downloadCmd.Flags().StringVar(&s3Region, "region", "", "AWS region")
	downloadCmd.Flags().StringVar(&s3Prefix, "prefix", "", "S3 path prefix (required)")
	downloadCmd.Flags().BoolVar(&skipExisting, "skip-existing", false, "Skip dumps that already exist locally with the same size")
	downloadCmd.MarkFlagRequired("bucket")
	downloadCmd.MarkFlagRequired("prefix")
	collectionCmd.AddCommand(downloadCmd)
}

// ---------------------------------------------------------------------------
// S3 types
// ---------------------------------------------------------------------------

type s3Object struct {
	Key          string `json:"Key"`
	LastModified string `json:"LastModified"`
	Size         int64  `json:"Size"`
}

type s3ListResponse struct {
	Contents              []s3Object `json:"Contents"`
	IsTruncated           bool       `json:"IsTruncated"`
	NextContinuationToken string     `json:"NextContinuationToken"`
}

// awsRunner runs the AWS CLI with args and returns its standard output.
type awsRunner func(ctx context.Context, args ...string) ([]byte, error)

func runAWS(ctx context.Context, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "aws", args...)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("aws %s failed: %s", strings.Join(args[:min(2, len(args))], " "), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("aws %s failed: %w", strings.Join(args[:min(2, len(args))], " "), err)
	}
	return output, nil
}

// s3Source is a bucket prefix holding coverage dumps.
type s3Source struct {
	Bucket  string
	Prefix  string
	Profile string
	Region  string
	aws     awsRunner
}

func (s s3Source) awsArgs() []string {
	var args []string
	if s.Profile != "" {
		args = append(args, "--profile", s.Profile)
	}
	if s.Region != "" {
		args = append(args, "--region", s.Region)
	}
	return args
}

func (s s3Source) prefix() string {
	return strings.TrimRight(s.Prefix, "/") + "/"
}

// ---------------------------------------------------------------------------
// Main download logic
// ---------------------------------------------------------------------------

func runDownload(cmd *cobra.Command, args []string) error {
	if _, err := exec.LookPath("aws"); err != nil {
		return fmt.Errorf("aws CLI not found in PATH. Install it from https://aws.amazon.com/cli/")
	}

	logger, err := createCollectionLogger()
	if err != nil {
		return err
	}
	defer logger.Close()

	src := s3Source{
		Bucket:  s3Bucket,
		Prefix:  s3Prefix,
		Profile: s3Profile,
		Region:  s3Region,
		aws:     runAWS,
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Minute)
	defer cancel()

	return downloadCollection(ctx, src, collectionPath("coverage"), skipExisting, settings.MaxConcurrency, logger)
}

// downloadCollection copies every dump below src into coverageDir.
func downloadCollection(ctx context.Context, src s3Source, coverageDir string, skip bool, concurrency int, logger *log.Logger) error {
	if err := os.MkdirAll(coverageDir, 0755); err != nil {
		return fmt.Errorf("create coverage directory: %w", err)
	}

	logger.Info("Downloading coverage dumps from s3://%s/%s", src.Bucket, src.prefix())

	// Step 1: List all S3 objects under the prefix
	objects, err := listS3Objects(ctx, src)
	if err != nil {
		return fmt.Errorf("list S3 objects: %w", err)
	}

	// Step 2: Map dumps to local files
	downloads, skipped := planDownloads(src, objects, coverageDir, skip)
	logger.Info("Found %d coverage dumps (%d total objects)", len(downloads)+skipped, len(objects))
	if len(downloads) == 0 {
		logger.Success("Nothing to download (%d already present)", skipped)
		return nil
	}

	// Step 3: Download files concurrently
	s3Log := logger.Named("s3")
	var (
		mu         sync.Mutex
		errs       error
		downloaded int
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for _, d := range downloads {
		d := d
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := downloadS3File(ctx, src, d.Key, d.LocalPath)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				s3Log.Warning("Error downloading %s: %v", d.Key, err)
				errs = multierr.Append(errs, err)
				return nil
			}
			downloaded++
			logger.Debug("  [%d/%d] %s", downloaded, len(downloads), d.LocalPath)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Downloaded: %d files", downloaded)
	if skipped > 0 {
		logger.Info("Skipped: %d (already present)", skipped)
	}
	if errs != nil {
		logger.Warning("Errors: %d", len(multierr.Errors(errs)))
		if downloaded == 0 {
			return fmt.Errorf("no dump could be downloaded: %w", errs)
		}
	}
	logger.Success("Coverage dumps saved to: %s", coverageDir)
	return nil
}

// ---------------------------------------------------------------------------
// S3 listing
// ---------------------------------------------------------------------------

func listS3Objects(ctx context.Context, src s3Source) ([]s3Object, error) {
	var allObjects []s3Object
	var continuationToken string

	for {
		args := []string{"s3api", "list-objects-v2",
			"--bucket", src.Bucket,
			"--prefix", src.prefix(),
			"--output", "json",
		}
		args = append(args, src.awsArgs()...)
		if continuationToken != "" {
			args = append(args, "--continuation-token", continuationToken)
		}

		output, err := src.aws(ctx, args...)
		if err != nil {
			return nil, err
		}

		var resp s3ListResponse
		if len(strings.TrimSpace(string(output))) > 0 {
			if err := json.Unmarshal(output, &resp); err != nil {
				return nil, fmt.Errorf("parse S3 listing response: %w", err)
			}
		}
		allObjects = append(allObjects, resp.Contents...)

		if !resp.IsTruncated || resp.NextContinuationToken == "" {
			break
		}
		continuationToken = resp.NextContinuationToken
	}

	return allObjects, nil
}

type plannedDownload struct {
	Key       string
	LocalPath string
}

// planDownloads selects the *.json objects and maps each to a path below
// coverageDir that mirrors its key below the prefix. Keys that would escape
// coverageDir are ignored. With skip, objects whose local copy has the same
// size are counted in skipped instead.
func planDownloads(src s3Source, objects []s3Object, coverageDir string, skip bool) (downloads []plannedDownload, skipped int) {
	prefix := src.prefix()
	for _, obj := range objects {
		if !strings.EqualFold(path.Ext(obj.Key), ".json") {
			continue
		}
		rel := path.Clean(strings.TrimPrefix(obj.Key, prefix))
		if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
			continue
		}
		local := filepath.Join(coverageDir, filepath.FromSlash(rel))

		if skip {
			if info, err := os.Stat(local); err == nil && info.Size() == obj.Size {
				skipped++
				continue
			}
		}
		downloads = append(downloads, plannedDownload{Key: obj.Key, LocalPath: local})
	}
	return downloads, skipped
}

func downloadS3File(ctx context.Context, src s3Source, key, localPath string) error {
	if err := os.MkdirAll(filepath.Dir(localPath), 0755); err != nil {
		return err
	}
	args := []string{"s3", "cp",
		fmt.Sprintf("s3://%s/%s", src.Bucket, key),
		localPath,
		"--only-show-errors",
	}
	args = append(args, src.awsArgs()...)

	_, err := src.aws(ctx, args...)
	return err
}
