package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
)

// AssessmentHandler handles the exam taker endpoints.
type AssessmentHandler struct {
	assigner    *service.QuestionAssignmentService
	assessments *service.AssessmentService
	log         zerolog.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(
	assigner *service.QuestionAssignmentService,
	assessments *service.AssessmentService,
	log zerolog.Logger,
) *AssessmentHandler {
	return &AssessmentHandler{
		assigner:    assigner,
		assessments: assessments,
		log:         log.With().Str("component", "assessment_handler").Logger(),
	}
}

// ownUser rejects requests naming a user other than the token subject.
func ownUser(c *gin.Context, userID int64) bool {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return false
	}
	if claims.UserID != userID {
		response.Fail(c, http.StatusForbidden, response.ErrForbidden)
		return false
	}
	return true
}

// Start godoc
// POST /api/v1/assignments/start
// Marks the current attempt as started. Repeated calls return the original start time.
func (h *AssessmentHandler) Start(c *gin.Context) {
	var req model.StartAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if !ownUser(c, req.UserID) {
		return
	}

	startedAt, err := h.assessments.Start(c.Request.Context(), service.AttemptRef{
		QuizID:       req.QuizID,
		SessionID:    req.QuizSessionID,
		UserID:       req.UserID,
		AssignmentID: req.AssignmentID,
	})
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"success": true, "user_started_at": startedAt})
}

// AssignQuestions godoc
// POST /api/v1/assignments/:id/assign-questions?userId=&quizSessionId=&assignmentId=
// id is the quiz ID.
// Draws the question set of the current attempt. Idempotent.
func (h *AssessmentHandler) AssignQuestions(c *gin.Context) {
	ref, ok := h.bindRef(c)
	if !ok {
		return
	}

	questions, err := h.assigner.Assign(c.Request.Context(), ref)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// AssignedQuestions godoc
// GET /api/v1/assignments/:id/assigned-questions?userId=&quizSessionId=&assignmentId=
// id is the quiz ID.
// Returns the assigned questions with the answer key withheld; empty before assignment.
func (h *AssessmentHandler) AssignedQuestions(c *gin.Context) {
	ref, ok := h.bindRef(c)
	if !ok {
		return
	}

	questions, err := h.assigner.Fetch(c.Request.Context(), ref)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"questions": questions})
}

// State godoc
// GET /api/v1/assignments/:id/state
// id is the assignment ID.
// Returns the status and server-computed remaining time of the current attempt.
func (h *AssessmentHandler) State(c *gin.Context) {
	assignmentID, ok := paramID(c, "id")
	if !ok {
		return
	}
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	state, err := h.assessments.State(c.Request.Context(), assignmentID, claims.UserID)
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, state)
}

// End godoc
// POST /api/v1/assignments/end
// Grades the submitted answers and closes the current attempt.
func (h *AssessmentHandler) End(c *gin.Context) {
	var req model.EndAssessmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if !ownUser(c, req.UserID) {
		return
	}

	result, err := h.assessments.End(c.Request.Context(), service.EndParams{
		AttemptRef: service.AttemptRef{
			QuizID:       req.QuizID,
			SessionID:    req.QuizSessionID,
			UserID:       req.UserID,
			AssignmentID: req.AssignmentID,
		},
		PassingScore: req.PassingScore,
		Answers:      req.Answers,
		Forced:       req.Forced,
		Reason:       req.Reason,
	})
	if err != nil {
		failService(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"success":           true,
		"score":             result.Score,
		"percentage":        result.Percentage,
		"status":            result.Status,
		"completion_reason": result.CompletionReason,
		"wrongAnswers":      result.WrongAnswers,
		"result":            result,
	})
}

func (h *AssessmentHandler) bindRef(c *gin.Context) (service.AttemptRef, bool) {
	quizID, ok := paramID(c, "id")
	if !ok {
		return service.AttemptRef{}, false
	}
	var q model.AttemptQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return service.AttemptRef{}, false
	}
	if !ownUser(c, q.UserID) {
		return service.AttemptRef{}, false
	}
	return service.AttemptRef{
		QuizID:       quizID,
		SessionID:    q.QuizSessionID,
		UserID:       q.UserID,
		AssignmentID: q.AssignmentID,
	}, true
}
