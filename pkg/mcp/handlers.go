package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Sriram-PR/img-relay/pkg/models"
	"github.com/Sriram-PR/img-relay/pkg/utils"
)

const (
	maxPrefetchBatch    = 100
	prefetchConcurrency = 4
)

// handleResolveImage handles the resolve_image tool
func (s *Server) handleResolveImage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := strings.TrimSpace(request.GetString("url", ""))
	if ref == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	res := s.cfg.Relay.Resolve(ctx, ref)
	result := map[string]interface{}{
		"original": res.Original,
		"resolved": res.Resolved,
		"kind":     res.Kind,
		"stage":    res.Stage,
	}
	if res.Platform != models.PlatformNone {
		result["platform"] = res.Platform
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleFetchImage handles the fetch_image tool
func (s *Server) handleFetchImage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := strings.TrimSpace(request.GetString("url", ""))
	if ref == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}

	img, err := s.cfg.Relay.ResolveAndFetch(ctx, ref)
	if err != nil {
		s.log.WithFields(logrus.Fields{"url": ref, "category": utils.CategorizeError(err)}).Warnf("fetch_image failed: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to fetch image: %v", err)), nil
	}

	summary := map[string]interface{}{
		"url":          ref,
		"content_type": img.ContentType,
		"size":         img.Size(),
		"from_cache":   img.FromCache,
	}
	return mcp.NewToolResultImage(formatJSON(summary), base64.StdEncoding.EncodeToString(img.Data), img.ContentType), nil
}

// handleCompressImage handles the compress_image tool
func (s *Server) handleCompressImage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ref := strings.TrimSpace(request.GetString("url", ""))
	if ref == "" {
		return mcp.NewToolResultError("url parameter is required"), nil
	}
	variant, err := models.ParseVariant(request.GetString("variant", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	enc, err := s.cfg.Relay.FetchAndCompress(ctx, ref, variant)
	if err != nil {
		s.log.WithFields(logrus.Fields{"url": ref, "variant": variant, "category": utils.CategorizeError(err)}).Warnf("compress_image failed: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to compress image: %v", err)), nil
	}

	summary := map[string]interface{}{
		"url":           ref,
		"variant":       enc.Variant,
		"size":          enc.Size(),
		"target_bytes":  enc.TargetBytes,
		"within_budget": enc.WithinBudget(),
		"width":         enc.Width,
		"height":        enc.Height,
		"quality":       enc.Quality,
	}
	return mcp.NewToolResultImage(formatJSON(summary), enc.Base64(), models.DefaultContentType), nil
}

// handlePrefetchImages handles the prefetch_images tool
func (s *Server) handlePrefetchImages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var refs []string
	for _, r := range request.GetStringSlice("urls", nil) {
		if r = strings.TrimSpace(r); r != "" {
			refs = append(refs, r)
		}
	}
	if len(refs) == 0 {
		return mcp.NewToolResultError("urls parameter is required"), nil
	}
	if len(refs) > maxPrefetchBatch {
		return mcp.NewToolResultError(fmt.Sprintf("too many urls: %d (max %d)", len(refs), maxPrefetchBatch)), nil
	}

	if key := BatchKey(refs); s.jobManager.IsRunning(key) {
		existing := s.jobManager.CreateJob(refs)
		result := map[string]interface{}{
			"status":  "already_running",
			"message": "An identical batch is already being prefetched",
			"job_id":  existing.ID,
		}
		return mcp.NewToolResultText(formatJSON(result)), nil
	}

	job := s.jobManager.CreateJob(refs)
	go s.runPrefetchJob(job.ID, refs)

	result := map[string]interface{}{
		"status":  "started",
		"message": "Prefetch started",
		"job_id":  job.ID,
		"total":   len(refs),
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// handleGetJobStatus handles the get_job_status tool
func (s *Server) handleGetJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	jobID := request.GetString("job_id", "")
	if jobID == "" {
		return mcp.NewToolResultError("job_id parameter is required"), nil
	}

	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return mcp.NewToolResultError(fmt.Sprintf("job '%s' not found", jobID)), nil
	}

	result := map[string]interface{}{
		"job_id":     job.ID,
		"status":     job.Status,
		"started_at": job.StartedAt.Format(time.RFC3339),
		"total":      job.Total(),
		"processed":  job.Processed,
		"failed":     job.Failed,
	}
	if !job.CompletedAt.IsZero() {
		result["completed_at"] = job.CompletedAt.Format(time.RFC3339)
		result["duration_seconds"] = job.CompletedAt.Sub(job.StartedAt).Seconds()
	}
	if job.ErrorMessage != "" {
		result["error_message"] = job.ErrorMessage
	}
	return mcp.NewToolResultText(formatJSON(result)), nil
}

// runPrefetchJob fetches every reference through the cache. Individual
// failures are counted; the job fails only when every reference failed.
func (s *Server) runPrefetchJob(jobID string, refs []string) {
	s.jobManager.UpdateStatus(jobID, JobStatusRunning, "")
	jobCtx := s.jobManager.GetContext(jobID)
	jobLog := s.log.WithField("job_id", jobID)

	var g errgroup.Group
	g.SetLimit(prefetchConcurrency)
	for _, ref := range refs {
		g.Go(func() error {
			if jobCtx.Err() != nil {
				return nil
			}
			_, err := s.cfg.Relay.ResolveAndFetch(jobCtx, ref)
			if err != nil {
				jobLog.WithField("url", ref).Debugf("Prefetch failed: %v", err)
			}
			s.jobManager.RecordResult(jobID, err != nil)
			return nil
		})
	}
	_ = g.Wait()

	if jobCtx.Err() != nil {
		jobLog.Info("Prefetch cancelled")
		return
	}
	job := s.jobManager.GetJob(jobID)
	if job == nil {
		return
	}
	if job.Failed == int64(len(refs)) {
		s.jobManager.UpdateStatus(jobID, JobStatusFailed, "every reference failed to fetch")
		return
	}
	s.jobManager.UpdateStatus(jobID, JobStatusCompleted, "")
	jobLog.Infof("Prefetch finished: %d references, %d failed", len(refs), job.Failed)
}

// formatJSON formats data as an indented JSON string
func formatJSON(data map[string]interface{}) string {
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("{\"error\": %q}", err.Error())
	}
	return string(b)
}
