package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jupierce/css-coverage-analysis/pkg/log"
)

// fakeAWS serves list-objects-v2 pages and writes a file for every cp.
type fakeAWS struct {
	mu    sync.Mutex
	pages []string
	calls [][]string
	fail  map[string]bool
}

func (f *fakeAWS) run(ctx context.Context, args ...string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()

	switch {
	case args[0] == "s3api":
		page := 0
		for i, a := range args {
			if a == "--continuation-token" {
				fmt.Sscanf(args[i+1], "page%d", &page)
			}
		}
		return []byte(f.pages[page]), nil
	case args[0] == "s3" && args[1] == "cp":
		src, dst := args[2], args[3]
		if f.fail[src] {
			return nil, errors.New("access denied")
		}
		return nil, os.WriteFile(dst, []byte("[]"), 0644)
	}
	return nil, fmt.Errorf("unexpected aws call %v", args)
}

func TestListS3ObjectsPaginates(t *testing.T) {
	fake := &fakeAWS{pages: []string{
		`{"Contents":[{"Key":"p/a.json","Size":2}],"IsTruncated":true,"NextContinuationToken":"page1"}`,
		`{"Contents":[{"Key":"p/b.json","Size":2}],"IsTruncated":false}`,
	}}
	src := s3Source{Bucket: "bucket", Prefix: "p/", Profile: "saml", Region: "us-east-1", aws: fake.run}

	objects, err := listS3Objects(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, []s3Object{{Key: "p/a.json", Size: 2}, {Key: "p/b.json", Size: 2}}, objects)

	require.Len(t, fake.calls, 2)
	assert.Equal(t, []string{
		"s3api", "list-objects-v2", "--bucket", "bucket", "--prefix", "p/", "--output", "json",
		"--profile", "saml", "--region", "us-east-1",
	}, fake.calls[0])
	assert.Equal(t, []string{"--continuation-token", "page1"}, fake.calls[1][len(fake.calls[1])-2:])
}

func TestListS3ObjectsEmptyPrefix(t *testing.T) {
	fake := &fakeAWS{pages: []string{""}}
	objects, err := listS3Objects(context.Background(), s3Source{Bucket: "b", Prefix: "p", aws: fake.run})
	require.NoError(t, err)
	assert.Empty(t, objects)
}

func TestPlanDownloads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "run/present.json", "[]")
	writeFile(t, dir, "run/resized.json", "[]")

	src := s3Source{Prefix: "dumps"}
	objects := []s3Object{
		{Key: "dumps/run/present.json", Size: 2},
		{Key: "dumps/run/resized.json", Size: 10},
		{Key: "dumps/run/new.JSON", Size: 2},
		{Key: "dumps/run/screenshot.png", Size: 2},
		{Key: "dumps/../escape.json", Size: 2},
	}

	downloads, skipped := planDownloads(src, objects, dir, true)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, []plannedDownload{
		{Key: "dumps/run/resized.json", LocalPath: filepath.Join(dir, "run", "resized.json")},
		{Key: "dumps/run/new.JSON", LocalPath: filepath.Join(dir, "run", "new.JSON")},
	}, downloads)

	all, skipped := planDownloads(src, objects, dir, false)
	assert.Zero(t, skipped)
	assert.Len(t, all, 3)
}

func TestDownloadCollection(t *testing.T) {
	fake := &fakeAWS{
		pages: []string{`{"Contents":[
			{"Key":"e2e/css/1/coverage.json","Size":2},
			{"Key":"e2e/css/2/coverage.json","Size":2},
			{"Key":"e2e/css/3/coverage.json","Size":2}
		]}`},
		fail: map[string]bool{"s3://bucket/e2e/css/3/coverage.json": true},
	}
	src := s3Source{Bucket: "bucket", Prefix: "e2e/css", aws: fake.run}
	dir := filepath.Join(t.TempDir(), "coverage")

	require.NoError(t, downloadCollection(context.Background(), src, dir, false, 2, quietLogger(t)))

	files, err := findCoverageFiles([]string{dir})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "1", "coverage.json"),
		filepath.Join(dir, "2", "coverage.json"),
	}, files)

	for _, call := range fake.calls {
		if call[0] == "s3" {
			assert.Contains(t, strings.Join(call, " "), "--only-show-errors")
		}
	}
}

func TestDownloadCollectionAllFailed(t *testing.T) {
	fake := &fakeAWS{
		pages: []string{`{"Contents":[{"Key":"p/a.json","Size":2}]}`},
		fail:  map[string]bool{"s3://b/p/a.json": true},
	}
	err := downloadCollection(context.Background(), s3Source{Bucket: "b", Prefix: "p", aws: fake.run},
		t.TempDir(), false, 1, quietLogger(t))
	assert.ErrorContains(t, err, "access denied")
}

func TestDownloadCollectionLogsObjectErrors(t *testing.T) {
	fake := &fakeAWS{
		pages: []string{`{"Contents":[{"Key":"p/a.json","Size":2},{"Key":"p/b.json","Size":2}]}`},
		fail:  map[string]bool{"s3://b/p/b.json": true},
	}
	logger, err := log.New(log.DebugLevel, "")
	require.NoError(t, err)
	var out bytes.Buffer
	logger.SetOutput(&out, &out)

	require.NoError(t, downloadCollection(context.Background(), s3Source{Bucket: "b", Prefix: "p", aws: fake.run},
		t.TempDir(), false, 1, logger))

	assert.Contains(t, out.String(), "[s3] Error downloading p/b.json: access denied")
	assert.Contains(t, out.String(), "[s3] [1/2]")
}
