package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/docuvec/docuvec/internal/job"
)

var (
	ingestServer     string
	ingestUploadedBy string
	ingestWait       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <pattern>...",
	Short: "Upload documents to a running docuvec server",
	Long: `Expands the given glob patterns (** is supported), uploads every
matching PDF or JPEG to the server, and optionally waits for the
pipeline to finish each one.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var files []string
		for _, pattern := range args {
			matches, err := doublestar.FilepathGlob(pattern)
			if err != nil {
				return fmt.Errorf("invalid pattern %q: %w", pattern, err)
			}
			for _, m := range matches {
				if supportedUpload(m) {
					files = append(files, m)
				}
			}
		}
		if len(files) == 0 {
			return fmt.Errorf("no PDF or JPEG files match the given patterns")
		}

		bar := progressbar.NewOptions(len(files),
			progressbar.OptionSetDescription("Uploading"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)

		client := &http.Client{Timeout: 2 * time.Minute}
		var jobIDs []string
		var failed int
		for _, path := range files {
			bar.Describe("Uploading " + filepath.Base(path))
			jobID, err := uploadFile(client, path)
			if err != nil {
				failed++
				fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			} else {
				jobIDs = append(jobIDs, jobID)
			}
			bar.Add(1)
		}
		bar.Finish()

		fmt.Printf("Uploaded %d of %d files\n", len(jobIDs), len(files))
		if failed > 0 {
			fmt.Printf("%d uploads failed\n", failed)
		}

		if ingestWait && len(jobIDs) > 0 {
			if err := waitForJobs(client, jobIDs); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d uploads failed", failed, len(files))
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestServer, "server", "http://localhost:8080", "docuvec server URL")
	ingestCmd.Flags().StringVar(&ingestUploadedBy, "uploaded-by", "", "uploader recorded on each document")
	ingestCmd.Flags().BoolVar(&ingestWait, "wait", false, "wait for each document to finish processing")
	rootCmd.AddCommand(ingestCmd)
}

func supportedUpload(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".jpg", ".jpeg":
		return true
	}
	return false
}

func uploadFile(client *http.Client, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(data); err != nil {
		return "", err
	}
	if ingestUploadedBy != "" {
		writer.WriteField("uploaded_by", ingestUploadedBy)
	}
	writer.Close()

	resp, err := client.Post(ingestServer+"/api/documents", writer.FormDataContentType(), &body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var status job.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	return status.JobID, nil
}

// waitForJobs polls until every job is terminal. Pipeline retries can take
// minutes, so the poll interval is generous.
func waitForJobs(client *http.Client, jobIDs []string) error {
	bar := progressbar.NewOptions(len(jobIDs),
		progressbar.OptionSetDescription("Processing"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	pending := make(map[string]bool, len(jobIDs))
	for _, id := range jobIDs {
		pending[id] = true
	}

	var errored int
	for len(pending) > 0 {
		time.Sleep(2 * time.Second)
		for id := range pending {
			status, err := fetchJobStatus(client, id)
			if err != nil {
				return err
			}
			if !status.Stage.Terminal() {
				continue
			}
			delete(pending, id)
			bar.Add(1)
			if status.Stage == job.StageError {
				errored++
				summary := ""
				if status.ErrorSummary != nil {
					summary = ": " + *status.ErrorSummary
				}
				fmt.Fprintf(os.Stderr, "job %s failed%s\n", id, summary)
			}
		}
	}

	if errored > 0 {
		return fmt.Errorf("%d of %d documents failed processing", errored, len(jobIDs))
	}
	fmt.Printf("All %d documents processed\n", len(jobIDs))
	return nil
}

func fetchJobStatus(client *http.Client, id string) (*job.StatusResponse, error) {
	resp, err := client.Get(ingestServer + "/api/jobs/" + id)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("job status returned %d", resp.StatusCode)
	}
	var status job.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}
	return &status, nil
}
