package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
)

// AdminHandler handles quiz authoring and assignment management.
type AdminHandler struct {
	quizzes     *service.QuizService
	assignments *service.AssignmentService
	log         zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(quizzes *service.QuizService, assignments *service.AssignmentService, log zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		quizzes:     quizzes,
		assignments: assignments,
		log:         log.With().Str("component", "admin_handler").Logger(),
	}
}

// CreateQuiz godoc
// POST /api/v1/admin/quizzes
func (h *AdminHandler) CreateQuiz(c *gin.Context) {
	var req model.CreateQuizRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	quiz, err := h.quizzes.CreateQuiz(c.Request.Context(), req)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, quiz)
}

// AddQuestions godoc
// POST /api/v1/admin/quizzes/:id/questions
func (h *AdminHandler) AddQuestions(c *gin.Context) {
	quizID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req model.AddQuestionsRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	questions, err := h.quizzes.AddQuestions(c.Request.Context(), quizID, req)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"questions": questions})
}

// CreateSession godoc
// POST /api/v1/admin/quizzes/:id/sessions
// A quiz may have at most one session without a schedule.
func (h *AdminHandler) CreateSession(c *gin.Context) {
	quizID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req model.CreateQuizSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	sess, err := h.quizzes.CreateSession(c.Request.Context(), quizID, req)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, sess)
}

// CreateAssignment godoc
// POST /api/v1/admin/assignments
func (h *AdminHandler) CreateAssignment(c *gin.Context) {
	var req model.CreateAssignmentRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	a, err := h.assignments.Create(c.Request.Context(), req)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, a)
}

// Reschedule godoc
// POST /api/v1/admin/assignments/:id/reschedule
// Opens a new attempt cycle; earlier attempts are kept.
func (h *AdminHandler) Reschedule(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	a, err := h.assignments.Reschedule(c.Request.Context(), id)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, a)
}

// Result godoc
// GET /api/v1/admin/assignments/:id/result
func (h *AdminHandler) Result(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}

	res, err := h.assignments.Result(c.Request.Context(), id)
	if err != nil {
		failService(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, res)
}
