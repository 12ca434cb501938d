package timeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	serverName    = "visa-timeline"
	serverVersion = "1.0.0"
)

// Server exposes the store operations as MCP tools.
type Server struct {
	mcpServer *server.MCPServer
	store     *Store
}

// NewServer creates a timeline MCP server backed by the given store.
func NewServer(store *Store) *Server {
	s := &Server{
		store: store,
	}

	s.mcpServer = server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithToolCapabilities(false),
	)

	s.registerTools()
	return s
}

// MCPServer returns the underlying MCP server for serving.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func dateOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("date_iso", mcp.Description("Single date, YYYY-MM-DD")),
		mcp.WithString("start_date_iso", mcp.Description("Range start, YYYY-MM-DD")),
		mcp.WithString("end_date_iso", mcp.Description("Range end, YYYY-MM-DD")),
	}
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool("upsert_case",
			mcp.WithDescription("Find or create the visa case for a country and visa type"),
			mcp.WithString("country", mcp.Required(), mcp.Description("Destination country")),
			mcp.WithString("visa_type", mcp.Required(), mcp.Description("Visa type, e.g. tourist")),
			mcp.WithString("objective", mcp.Description("Optional trip objective")),
			mcp.WithString("stage", mcp.Description("Optional stage: research, application, appointment, biometrics, submission, waiting, decision, completed, other")),
		),
		s.handleUpsertCase,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("add_event",
			append([]mcp.ToolOption{
				mcp.WithDescription("Add a confirmed event to a case and schedule its reminders"),
				mcp.WithString("case_id", mcp.Required(), mcp.Description("Case ID")),
				mcp.WithString("title", mcp.Required(), mcp.Description("Event title")),
				mcp.WithString("type", mcp.Description("Event type (default: other)")),
				mcp.WithString("notes", mcp.Description("Optional notes")),
			}, dateOptions()...)...,
		),
		s.handleAddEvent,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("add_detection",
			append([]mcp.ToolOption{
				mcp.WithDescription("Queue a detected date for confirmation; nothing is scheduled yet"),
				mcp.WithString("case_id", mcp.Required(), mcp.Description("Case ID")),
				mcp.WithString("title", mcp.Required(), mcp.Description("Detection title")),
				mcp.WithString("type", mcp.Description("Event type (default: other)")),
				mcp.WithString("snippet", mcp.Description("Text around the detected date")),
				mcp.WithString("source_url", mcp.Description("Page the date was found on")),
				mcp.WithNumber("confidence", mcp.Description("Score between 0 and 1")),
			}, dateOptions()...)...,
		),
		s.handleAddDetection,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("list_pending",
			mcp.WithDescription("List detections awaiting save, edit or ignore"),
		),
		s.handleListPending,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("resolve_detection",
			append([]mcp.ToolOption{
				mcp.WithDescription("Resolve a pending detection: save keeps its date, edit overrides it, ignore discards it"),
				mcp.WithString("id", mcp.Required(), mcp.Description("Detection ID")),
				mcp.WithString("action", mcp.Required(), mcp.Description("save, edit or ignore")),
			}, dateOptions()...)...,
		),
		s.handleResolveDetection,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("edit_event_date",
			append([]mcp.ToolOption{
				mcp.WithDescription("Replace an event's dates and rebuild its reminders"),
				mcp.WithString("id", mcp.Required(), mcp.Description("Event ID")),
			}, dateOptions()...)...,
		),
		s.handleEditEventDate,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("complete_event",
			mcp.WithDescription("Mark an event as completed"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Event ID")),
		),
		s.handleCompleteEvent,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("delete_event",
			mcp.WithDescription("Delete an event and cancel its reminders"),
			mcp.WithString("id", mcp.Required(), mcp.Description("Event ID")),
		),
		s.handleDeleteEvent,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("toggle_step",
			mcp.WithDescription("Toggle a procedure step of a case"),
			mcp.WithString("case_id", mcp.Required(), mcp.Description("Case ID")),
			mcp.WithString("step_id", mcp.Required(), mcp.Description("Step ID")),
		),
		s.handleToggleStep,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("set_silent_mode",
			mcp.WithDescription("Turn silent mode on or off"),
			mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("true for toast-only detections")),
		),
		s.handleSetSilentMode,
	)

	s.mcpServer.AddTool(
		mcp.NewTool("get_timeline",
			mcp.WithDescription("Get the whole timeline, or the events of one case sorted by date"),
			mcp.WithString("case_id", mcp.Description("Optional case ID")),
		),
		s.handleGetTimeline,
	)
}

func datesFrom(req mcp.CallToolRequest) DateFields {
	return DateFields{
		DateISO:      req.GetString("date_iso", ""),
		StartDateISO: req.GetString("start_date_iso", ""),
		EndDateISO:   req.GetString("end_date_iso", ""),
	}
}

func typeFrom(req mcp.CallToolRequest) (EventType, error) {
	raw := req.GetString("type", "")
	if raw == "" {
		return EventOther, nil
	}
	return ParseEventType(raw)
}

func jsonResult(v any) *mcp.CallToolResult {
	output, _ := json.MarshalIndent(v, "", "  ")
	return mcp.NewToolResultText(string(output))
}

func (s *Server) handleUpsertCase(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	country := req.GetString("country", "")
	visaType := req.GetString("visa_type", "")
	if country == "" || visaType == "" {
		return mcp.NewToolResultError("country and visa_type are required"), nil
	}

	id, err := s.store.UpsertCase(ctx, country, visaType, req.GetString("objective", ""), Stage(req.GetString("stage", "")))
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to upsert case: %v", err)), nil
	}
	c, _ := s.store.Case(id)
	return jsonResult(c), nil
}

func (s *Server) handleAddEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID := req.GetString("case_id", "")
	title := req.GetString("title", "")
	if caseID == "" || title == "" {
		return mcp.NewToolResultError("case_id and title are required"), nil
	}
	if _, ok := s.store.Case(caseID); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("case %s not found", caseID)), nil
	}
	typ, err := typeFrom(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dates := datesFrom(req)
	if err := dates.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	id, err := s.store.AddManualEvent(ctx, ManualEvent{
		VisaID:     caseID,
		Title:      title,
		Type:       typ,
		DateFields: dates,
		Notes:      req.GetString("notes", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add event: %v", err)), nil
	}
	ev, _ := s.store.Event(id)
	return jsonResult(ev), nil
}

func (s *Server) handleAddDetection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID := req.GetString("case_id", "")
	title := req.GetString("title", "")
	if caseID == "" || title == "" {
		return mcp.NewToolResultError("case_id and title are required"), nil
	}
	if _, ok := s.store.Case(caseID); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("case %s not found", caseID)), nil
	}
	typ, err := typeFrom(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	dates := datesFrom(req)
	if err := dates.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	id, err := s.store.AddPendingDetection(ctx, Detection{
		VisaID:     caseID,
		Type:       typ,
		Title:      title,
		DateFields: dates,
		Snippet:    req.GetString("snippet", ""),
		Confidence: req.GetFloat("confidence", 0),
		SourceURL:  req.GetString("source_url", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add detection: %v", err)), nil
	}
	d, _ := s.store.PendingDetection(id)
	return jsonResult(d), nil
}

func (s *Server) handleListPending(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pending := s.store.Pending()
	if len(pending) == 0 {
		return mcp.NewToolResultText("No pending detections."), nil
	}
	return jsonResult(pending), nil
}

func (s *Server) handleResolveDetection(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	action, err := ParseAction(req.GetString("action", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if _, ok := s.store.PendingDetection(id); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("detection %s not found", id)), nil
	}

	var edited *DateFields
	if action == ActionEdit {
		d := datesFrom(req)
		if err := d.Validate(); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		edited = &d
	}

	if err := s.store.ResolvePendingDetection(ctx, id, action, edited); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to resolve detection: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Detection %s resolved with %s.", id, action)), nil
}

func (s *Server) handleEditEventDate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if id == "" {
		return mcp.NewToolResultError("id is required"), nil
	}
	if _, ok := s.store.Event(id); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("event %s not found", id)), nil
	}
	dates := datesFrom(req)
	if err := dates.Validate(); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if err := s.store.EditEventDate(ctx, id, dates); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to edit event: %v", err)), nil
	}
	ev, _ := s.store.Event(id)
	return jsonResult(ev), nil
}

func (s *Server) handleCompleteEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if _, ok := s.store.Event(id); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("event %s not found", id)), nil
	}
	if err := s.store.MarkEventCompleted(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to complete event: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Event %s marked as completed.", id)), nil
}

func (s *Server) handleDeleteEvent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("id", "")
	if _, ok := s.store.Event(id); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("event %s not found", id)), nil
	}
	if err := s.store.DeleteEvent(ctx, id); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to delete event: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Event %s deleted.", id)), nil
}

func (s *Server) handleToggleStep(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID := req.GetString("case_id", "")
	stepID := req.GetString("step_id", "")
	if caseID == "" || stepID == "" {
		return mcp.NewToolResultError("case_id and step_id are required"), nil
	}
	if _, ok := s.store.Case(caseID); !ok {
		return mcp.NewToolResultError(fmt.Sprintf("case %s not found", caseID)), nil
	}
	if err := s.store.ToggleProcedureStep(ctx, caseID, stepID); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to toggle step: %v", err)), nil
	}
	return jsonResult(s.store.CompletedSteps(caseID)), nil
}

func (s *Server) handleSetSilentMode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	enabled := req.GetBool("enabled", true)
	if err := s.store.SetSilentMode(ctx, enabled); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set silent mode: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Silent mode set to %t.", enabled)), nil
}

func (s *Server) handleGetTimeline(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	caseID := req.GetString("case_id", "")
	if caseID == "" {
		return jsonResult(s.store.State()), nil
	}
	c, ok := s.store.Case(caseID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("case %s not found", caseID)), nil
	}
	return jsonResult(struct {
		Case           VisaCase    `json:"case"`
		Events         []VisaEvent `json:"events"`
		CompletedSteps []string    `json:"completedStepIds"`
	}{c, s.store.EventsForCase(caseID), s.store.CompletedSteps(caseID)}), nil
}
