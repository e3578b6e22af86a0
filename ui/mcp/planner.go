package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	domainCalendar "github.com/reelforge/reelforge/domains/calendar"
	"github.com/reelforge/reelforge/domains/identity"
	domainPlanning "github.com/reelforge/reelforge/domains/planning"
)

type PlannerHandler struct {
	planningService domainPlanning.IPlanningUsecase
	calendarService domainCalendar.ICalendarUsecase
}

func InitMcpPlanner(planningService domainPlanning.IPlanningUsecase, calendarService domainCalendar.ICalendarUsecase) *PlannerHandler {
	return &PlannerHandler{planningService: planningService, calendarService: calendarService}
}

func (h *PlannerHandler) AddPlannerTools(mcpServer *server.MCPServer) {
	mcpServer.AddTool(h.toolApplyActionCard(), h.handleApplyActionCard)
	mcpServer.AddTool(h.toolListPlanned(), h.handleListPlanned)
	mcpServer.AddTool(h.toolTriggerGenerate(), h.handleTriggerGenerate)
	mcpServer.AddTool(h.toolCalendar(), h.handleCalendar)
}

func (h *PlannerHandler) toolApplyActionCard() mcp.Tool {
	return mcp.NewTool(
		"reelforge_apply_action_card",
		mcp.WithDescription("Apply a content planning action card: single_video, schedule, series, or monthly_plan. The card is a JSON object with a type tag and exactly one matching payload."),
		mcp.WithTitleAnnotation("Apply Action Card"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithString("user_id", mcp.Description("The owner of the plan."), mcp.Required()),
		mcp.WithString("user_tier", mcp.Description("User tier: free, premium or admin. Defaults to free.")),
		mcp.WithString("card", mcp.Description("The action card as a JSON string."), mcp.Required()),
	)
}

func (h *PlannerHandler) handleApplyActionCard(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return nil, err
	}
	raw, err := request.RequireString("card")
	if err != nil {
		return nil, err
	}

	var card domainPlanning.ActionCard
	if err := json.Unmarshal([]byte(raw), &card); err != nil {
		return nil, fmt.Errorf("invalid action card JSON: %w", err)
	}

	user := identity.User{ID: userID, Tier: tierFromString(request.GetString("user_tier", ""))}
	result, err := h.planningService.ApplyActionCard(ctx, user, card)
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("Action card applied: %d created, %d rejected", len(result.Created), len(result.Rejected))
	return mcp.NewToolResultStructured(result, fallback), nil
}

func (h *PlannerHandler) toolListPlanned() mcp.Tool {
	return mcp.NewTool(
		"reelforge_list_planned",
		mcp.WithDescription("List a user's planned videos, optionally filtered by planning status or series name."),
		mcp.WithTitleAnnotation("List Planned Videos"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("user_id", mcp.Description("The owner of the plan."), mcp.Required()),
		mcp.WithString("planning_status", mcp.Description("Filter: planned, generating, ready, posting, posted, or failed.")),
		mcp.WithString("series_name", mcp.Description("Filter by series name.")),
	)
}

func (h *PlannerHandler) handleListPlanned(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return nil, err
	}

	videos, err := h.planningService.ListPlanned(ctx, userID, domainPlanning.ListFilters{
		PlanningStatus: request.GetString("planning_status", ""),
		SeriesName:     request.GetString("series_name", ""),
	})
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("Found %d planned videos", len(videos))
	return mcp.NewToolResultStructured(videos, fallback), nil
}

func (h *PlannerHandler) toolTriggerGenerate() mcp.Tool {
	return mcp.NewTool(
		"reelforge_trigger_generate",
		mcp.WithDescription("Start generation for a planned video ahead of its scheduled trigger time."),
		mcp.WithTitleAnnotation("Trigger Generation Now"),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithString("user_id", mcp.Description("The owner of the job."), mcp.Required()),
		mcp.WithString("job_id", mcp.Description("The planned job identifier."), mcp.Required()),
		mcp.WithBoolean("force", mcp.Description("Re-arm a job stuck in the generating state.")),
	)
}

func (h *PlannerHandler) handleTriggerGenerate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return nil, err
	}
	jobID, err := request.RequireString("job_id")
	if err != nil {
		return nil, err
	}

	video, err := h.planningService.TriggerGenerateNow(ctx, userID, jobID, request.GetBool("force", false))
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("Generation started for job %s", video.ID)
	return mcp.NewToolResultStructured(video, fallback), nil
}

func (h *PlannerHandler) toolCalendar() mcp.Tool {
	return mcp.NewTool(
		"reelforge_calendar",
		mcp.WithDescription("Retrieve the content calendar for a month, with per-entry overdue and generate-now flags and a status summary."),
		mcp.WithTitleAnnotation("Get Content Calendar"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithString("user_id", mcp.Description("The owner of the calendar."), mcp.Required()),
		mcp.WithString("month", mcp.Description("Month in YYYY-MM format."), mcp.Required()),
	)
}

func (h *PlannerHandler) handleCalendar(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, err := request.RequireString("user_id")
	if err != nil {
		return nil, err
	}
	month, err := request.RequireString("month")
	if err != nil {
		return nil, err
	}
	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("invalid month %q, want YYYY-MM", month)
	}

	result, err := h.calendarService.GetRange(ctx, userID, start, start.AddDate(0, 1, 0))
	if err != nil {
		return nil, err
	}

	fallback := fmt.Sprintf("Calendar for %s holds %d entries", month, len(result.Entries))
	return mcp.NewToolResultStructured(result, fallback), nil
}
