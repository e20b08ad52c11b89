package user

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/Quokkas/internal/dto"
	"github.com/lshigami/Quokkas/internal/middleware"
	"github.com/lshigami/Quokkas/internal/service"
	"github.com/rs/zerolog/log"
)

type UserTestController struct {
	userTestService   service.UserTestService
	submissionService service.SubmissionService
}

func NewUserTestController(uts service.UserTestService, ss service.SubmissionService) *UserTestController {
	return &UserTestController{
		userTestService:   uts,
		submissionService: ss,
	}
}

// GetAllTests godoc
// @Summary (User) List all available tests
// @Tags User - Tests & Attempts
// @Produce json
// @Success 200 {array} dto.TestSummaryDTO
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /tests [get]
func (c *UserTestController) GetAllTests(ctx *gin.Context) {
	tests, err := c.userTestService.GetAllTests()
	if err != nil {
		log.Error().Err(err).Msg("User GetAllTests: Service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to retrieve tests", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusOK, tests)
}

// GetTestDetails godoc
// @Summary (User) Get details of a specific test
// @Tags User - Tests & Attempts
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.TestSummaryDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid Test ID format"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/{test_id} [get]
func (c *UserTestController) GetTestDetails(ctx *gin.Context) {
	testID, err := strconv.ParseUint(ctx.Param("test_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Test ID format"})
		return
	}
	testDetails, err := c.userTestService.GetTestDetails(uint(testID))
	if err != nil {
		log.Warn().Err(err).Uint64("testID", testID).Msg("User GetTestDetails: Test not found or service error")
		ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, testDetails)
}

// StartExam godoc
// @Summary (User) Start a test attempt
// @Description Deals the test's deterministically sampled question subset. Re-opening returns the same subset; nothing per-attempt is persisted beyond a start-time placeholder.
// @Tags User - Tests & Attempts
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {object} dto.ExamPaperDTO
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Failure 409 {object} dto.ErrorResponse "Question bank changed since test creation"
// @Router /tests/{test_id}/start [post]
func (c *UserTestController) StartExam(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Unauthorized"})
		return
	}
	testID, err := strconv.ParseUint(ctx.Param("test_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Test ID format"})
		return
	}

	paper, err := c.submissionService.StartExam(ctx.Request.Context(), userID, uint(testID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTestNotFound):
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Test not found"})
		case errors.Is(err, service.ErrBankChanged), errors.Is(err, service.ErrBankTooSmall):
			log.Error().Err(err).Uint64("testID", testID).Msg("User StartExam: Bank unusable for this test")
			ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: "This test is temporarily unavailable, please contact support"})
		default:
			log.Error().Err(err).Uint64("testID", testID).Msg("User StartExam: Service error")
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to start exam, please try again"})
		}
		return
	}
	ctx.JSON(http.StatusOK, paper)
}

// SubmitExam godoc
// @Summary (User) Submit answers for a test attempt
// @Description Duplicate submissions inside the dedupe window resolve to the existing result with is_duplicate=true; they are never an error.
// @Tags User - Tests & Attempts
// @Accept json
// @Produce json
// @Param test_id path int true "Test ID"
// @Param submission_data body dto.ExamSubmitDTO true "Map of question id to selected option"
// @Success 200 {object} dto.SubmitResponseDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid input"
// @Failure 404 {object} dto.ErrorResponse "Test not found"
// @Router /tests/{test_id}/submit [post]
func (c *UserTestController) SubmitExam(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Unauthorized"})
		return
	}
	testID, err := strconv.ParseUint(ctx.Param("test_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Test ID format"})
		return
	}

	var req dto.ExamSubmitDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("User SubmitExam: Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	resp, err := c.submissionService.SubmitExam(ctx.Request.Context(), userID, uint(testID), req.Answers)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTestNotFound):
			ctx.JSON(http.StatusNotFound, dto.ErrorResponse{Message: "Test not found"})
		case errors.Is(err, service.ErrBankChanged), errors.Is(err, service.ErrBankTooSmall):
			log.Error().Err(err).Uint64("testID", testID).Msg("User SubmitExam: Bank unusable for this test")
			ctx.JSON(http.StatusConflict, dto.ErrorResponse{Message: "This test is temporarily unavailable, please contact support"})
		default:
			log.Error().Err(err).Uint64("testID", testID).Uint("userID", userID).Msg("User SubmitExam: Service error")
			ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to submit exam, please try again"})
		}
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetMyResults godoc
// @Summary (User) List the caller's results for a test
// @Tags User - Tests & Attempts
// @Produce json
// @Param test_id path int true "Test ID"
// @Success 200 {array} dto.ExamResultDTO
// @Failure 400 {object} dto.ErrorResponse "Invalid Test ID format"
// @Router /tests/{test_id}/my-results [get]
func (c *UserTestController) GetMyResults(ctx *gin.Context) {
	userID, ok := middleware.UserID(ctx)
	if !ok {
		ctx.JSON(http.StatusUnauthorized, dto.ErrorResponse{Message: "Unauthorized"})
		return
	}
	testID, err := strconv.ParseUint(ctx.Param("test_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Test ID format"})
		return
	}

	results, err := c.submissionService.GetMyResults(ctx.Request.Context(), userID, uint(testID))
	if err != nil {
		log.Error().Err(err).Uint64("testID", testID).Uint("userID", userID).Msg("User GetMyResults: Service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to retrieve results", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusOK, results)
}
