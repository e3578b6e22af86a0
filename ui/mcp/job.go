package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/reelforge/reelforge/domains/identity"
	domainJob "github.com/reelforge/reelforge/domains/job"
	domainQuota "github.com/reelforge/reelforge/domains/quota"
)

type JobHandler struct {
	jobService   domainJob.IJobUsecase
	quotaService domainQuota.IQuotaUsecase
}

func InitMcpJob(jobService domainJob.IJobUsecase, quotaService domainQuota.IQuotaUsecase) *JobHandler {
	return &JobHandler{jobService: jobService, quotaService: quotaService}
}

func (h *JobHandler) AddJobTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(h.toolCreateJob(), h.handleCreateJob)
	mcpServer.AddTool(h.toolJobStatus(), h.handleJobStatus)
	mcpServer.AddTool(h.toolRetryJob(), h.handleRetryJob)
	mcpServer.AddTool(h.toolGetQuota(), h.handleGetQuota)
}

func (h *JobHandler) toolCreateJob() mcp.Tool {
	return mcp.NewTool(
		"reelforge_create_job",
		mcp.WithDescription("Start an immediate video generation job for a user. Consumes one slot of the daily quota."),
		mcp.WithTitleAnnotation("Create Generation Job"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithString("user_id", mcp.Description("The owner of the job."), mcp.Required()),
		mcp.WithString("user_tier", mcp.Description("User tier: free, premium or admin. Defaults to free.")),
		mcp.WithString("title", mcp.Description("Video title."), mcp.Required()),
		mcp.WithString("topic", mcp.Description("Topic used to drive script and media search.")),
		mcp.WithString("custom_instructions", mcp.Description("Extra instructions for the scriptwriter.")),
	)
}

func (h *JobHandler) handleCreateJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return nil, err
	}
	title, err := request.RequireString("title")
	if err != nil {
		return nil, err
	}

	user := identity.User{ID: userID, Tier: tierFromString(request.GetString("user_tier", ""))}
	video, err := h.jobService.Create(ctx, user, domainJob.CreateJobRequest{
		Title:              title,
		Topic:              request.GetString("topic", ""),
		CustomInstructions: request.GetString("custom_instructions", ""),
	})
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("Job %s created, status %s", video.ID, video.Status)
	return mcp.NewToolResultStructured(video, fallback), nil
}

func (h *JobHandler) toolJobStatus() mcp.Tool {
	return mcp.NewTool(
		"reelforge_job_status",
		mcp.WithDescription("Retrieve the current status, progress, and artifacts of a generation job."),
		mcp.WithTitleAnnotation("Get Job Status"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("user_id", mcp.Description("The owner of the job."), mcp.Required()),
		mcp.WithString("job_id", mcp.Description("The job identifier."), mcp.Required()),
	)
}

func (h *JobHandler) handleJobStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return nil, err
	}
	jobID, err := request.RequireString("job_id")
	if err != nil {
		return nil, err
	}

	video, err := h.jobService.GetStatus(ctx, userID, jobID)
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("Job %s is %s at %d%%", video.ID, video.Status, video.Progress)
	return mcp.NewToolResultStructured(video, fallback), nil
}

func (h *JobHandler) toolRetryJob() mcp.Tool {
	return mcp.NewTool(
		"reelforge_retry_job",
		mcp.WithDescription("Retry a failed job from its failing stage, optionally swapping the provider for that stage."),
		mcp.WithTitleAnnotation("Retry Failed Job"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithString("user_id", mcp.Description("The owner of the job."), mcp.Required()),
		mcp.WithString("job_id", mcp.Description("The failed job identifier."), mcp.Required()),
		mcp.WithString("provider", mcp.Description("Different provider for the failing stage. Omit for a bare retry.")),
	)
}

func (h *JobHandler) handleRetryJob(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return nil, err
	}
	jobID, err := request.RequireString("job_id")
	if err != nil {
		return nil, err
	}

	user := identity.User{ID: userID, Tier: identity.TierFree}
	video, err := h.jobService.Retry(ctx, user, jobID, domainJob.RetryJobRequest{
		Provider: request.GetString("provider", ""),
	})
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("Retry started for job %s at stage %s", video.ID, video.CurrentStep)
	return mcp.NewToolResultStructured(video, fallback), nil
}

func (h *JobHandler) toolGetQuota() mcp.Tool {
	return mcp.NewTool(
		"reelforge_get_quota",
		mcp.WithDescription("Retrieve the user's remaining daily generation allowance."),
		mcp.WithTitleAnnotation("Get Quota"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("user_id", mcp.Description("The user identifier."), mcp.Required()),
		mcp.WithString("user_tier", mcp.Description("User tier: free, premium or admin. Defaults to free.")),
	)
}

func (h *JobHandler) handleGetQuota(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return nil, err
	}

	user := identity.User{ID: userID, Tier: tierFromString(request.GetString("user_tier", ""))}
	snapshot, err := h.quotaService.Get(ctx, user)
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("%d of %d generations used today", snapshot.Used, snapshot.Limit)
	if snapshot.Unlimited {
		fallback = "Unlimited generations available"
	}
	return mcp.NewToolResultStructured(snapshot, fallback), nil
}

func tierFromString(s string) identity.Tier {
	switch identity.Tier(s) {
	case identity.TierPremium:
		return identity.TierPremium
	case identity.TierAdmin:
		return identity.TierAdmin
	}
	return identity.TierFree
}
