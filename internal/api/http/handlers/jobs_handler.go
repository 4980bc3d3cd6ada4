package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/repairx/job-service/internal/api/dto"
	"github.com/repairx/job-service/internal/domain"
	"github.com/repairx/job-service/internal/lifecycle"
	"github.com/repairx/job-service/internal/service"
)

// JobsHandler exposes repair job endpoints.
type JobsHandler struct {
	jobs *service.JobService
}

// NewJobsHandler constructs handler.
func NewJobsHandler(jobService *service.JobService) *JobsHandler {
	return &JobsHandler{jobs: jobService}
}

// States handles GET /jobs/states.
func (h *JobsHandler) States(c *fiber.Ctx) error {
	states := lifecycle.States()
	terminal := make([]domain.JobState, 0, 2)
	for _, s := range states {
		if lifecycle.IsTerminal(s) {
			terminal = append(terminal, s)
		}
	}
	return c.JSON(fiber.Map{"data": dto.StateGraphResponse{
		States:      states,
		Terminal:    terminal,
		Transitions: lifecycle.Graph(),
	}})
}

// CreateJob handles POST /jobs.
func (h *JobsHandler) CreateJob(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	job, err := h.jobs.CreateJob(c.UserContext(), principal.Caller(), service.JobCreateInput{
		CustomerID: req.CustomerID,
		Device: domain.Device{
			Type:         req.Device.Type,
			Brand:        req.Device.Brand,
			Model:        req.Device.Model,
			SerialNumber: req.Device.SerialNumber,
		},
		IssueDescription:   req.IssueDescription,
		Priority:           req.Priority,
		EstimatedCostCents: req.EstimatedCostCents,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": jobResponse(job)})
}

// ListJobs handles GET /jobs.
func (h *JobsHandler) ListJobs(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	jobs, err := h.jobs.ListJobs(c.UserContext(), principal.Caller(), parseJobFilter(c))
	if err != nil {
		return err
	}
	items := make([]dto.JobResponse, 0, len(jobs))
	for i := range jobs {
		items = append(items, jobResponse(&jobs[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// GetJob handles GET /jobs/:id.
func (h *JobsHandler) GetJob(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	job, err := h.jobs.GetJob(c.UserContext(), principal.Caller(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": jobResponse(job)})
}

// TransitionJob handles PUT /jobs/:id/state.
func (h *JobsHandler) TransitionJob(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TransitionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := req.Validate(); err != nil {
		return err
	}

	res, err := h.jobs.TransitionJob(c.UserContext(), principal.Caller(), c.Params("id"), service.TransitionInput{
		State:         req.State,
		ExpectedState: req.ExpectedState,
		Reason:        req.Reason,
		Metadata:      req.Metadata,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.TransitionResponse{
		JobID:         res.Job.ID,
		PreviousState: res.PreviousState,
		NewState:      res.Job.Status,
		Transition:    transitionResponse(res.Transition),
	}})
}

// ListHistory handles GET /jobs/:id/history.
func (h *JobsHandler) ListHistory(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	history, err := h.jobs.ListHistory(c.UserContext(), principal.Caller(), c.Params("id"),
		parseInt(c.Query("limit"), 100), parseInt(c.Query("offset"), 0))
	if err != nil {
		return err
	}
	items := make([]dto.TransitionRecordResponse, 0, len(history))
	for _, rec := range history {
		items = append(items, transitionResponse(rec))
	}
	return c.JSON(fiber.Map{"data": items})
}

// AssignTechnician handles PUT /jobs/:id/technician.
func (h *JobsHandler) AssignTechnician(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.AssignTechnicianRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := req.Validate(); err != nil {
		return err
	}
	job, err := h.jobs.AssignTechnician(c.UserContext(), principal.Caller(), c.Params("id"), req.TechnicianID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": jobResponse(job)})
}

func jobResponse(job *domain.Job) dto.JobResponse {
	return dto.JobResponse{
		ID:           job.ID,
		ExternalKey:  job.ExternalKey,
		CustomerID:   job.CustomerID,
		TechnicianID: job.TechnicianID,
		Device: dto.DeviceRequest{
			Type:         job.Device.Type,
			Brand:        job.Device.Brand,
			Model:        job.Device.Model,
			SerialNumber: job.Device.SerialNumber,
		},
		IssueDescription:   job.IssueDescription,
		Priority:           job.Priority,
		State:              job.Status,
		AllowedNextStates:  lifecycle.AllowedTargets(job.Status),
		EstimatedCostCents: job.EstimatedCostCents,
		CreatedAt:          job.CreatedAt,
		UpdatedAt:          job.UpdatedAt,
		ClosedAt:           job.ClosedAt,
	}
}

func transitionResponse(rec domain.JobTransition) dto.TransitionRecordResponse {
	return dto.TransitionRecordResponse{
		ID:              rec.ID,
		JobID:           rec.JobID,
		FromState:       rec.FromState,
		ToState:         rec.ToState,
		Reason:          rec.Reason,
		Metadata:        rec.Metadata,
		PerformedByType: rec.PerformedByType,
		PerformedBy:     rec.PerformedBy,
		Timestamp:       rec.Timestamp,
	}
}

func parseJobFilter(c *fiber.Ctx) service.JobListFilter {
	filter := service.JobListFilter{
		Limit:  parseInt(c.Query("limit"), 20),
		Offset: parseInt(c.Query("offset"), 0),
	}
	if customerID := c.Query("customerId"); customerID != "" {
		filter.CustomerID = &customerID
	}
	if technicianID := c.Query("technicianId"); technicianID != "" {
		filter.TechnicianID = &technicianID
	}
	for _, part := range dto.SplitCSV(c.Query("state")) {
		filter.Statuses = append(filter.Statuses, domain.JobState(part))
	}
	for _, part := range dto.SplitCSV(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, domain.JobPriority(part))
	}
	if search := c.Query("search"); search != "" {
		filter.SearchTerm = &search
	}
	filter.CreatedFrom = parseTime(c.Query("createdFrom"))
	filter.CreatedTo = parseTime(c.Query("createdTo"))
	return filter
}

func parseInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func parseTime(raw string) *time.Time {
	if raw == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil
	}
	return &t
}
