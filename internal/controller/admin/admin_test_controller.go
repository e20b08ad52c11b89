package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lshigami/Quokkas/internal/dto"
	"github.com/lshigami/Quokkas/internal/service"
	"github.com/rs/zerolog/log"
)

type AdminTestController struct {
	adminTestService service.AdminTestService
}

func NewAdminTestController(adminTestService service.AdminTestService) *AdminTestController {
	return &AdminTestController{adminTestService: adminTestService}
}

// CreateCategory godoc
// @Summary (Admin) Create a question bank
// @Tags Admin - Question Banks
// @Accept json
// @Produce json
// @Param category_data body dto.CategoryCreateDTO true "Bank name"
// @Success 201 {object} model.QuestionCategory
// @Failure 400 {object} dto.ErrorResponse "Invalid input data"
// @Router /admin/categories [post]
func (c *AdminTestController) CreateCategory(ctx *gin.Context) {
	var req dto.CategoryCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Admin CreateCategory: Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	category, err := c.adminTestService.CreateCategory(req)
	if err != nil {
		log.Error().Err(err).Msg("Admin CreateCategory: Service error")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Failed to create category", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusCreated, category)
}

// AddQuestion godoc
// @Summary (Admin) Append a question to a bank
// @Description Banks referenced by published tests are append-only; appending invalidates those tests' frozen bank hash.
// @Tags Admin - Question Banks
// @Accept json
// @Produce json
// @Param category_id path int true "Category ID"
// @Param question_data body dto.QuestionCreateDTO true "Question with options and correct answer"
// @Success 201 {object} model.Question
// @Failure 400 {object} dto.ErrorResponse "Invalid input data"
// @Router /admin/categories/{category_id}/questions [post]
func (c *AdminTestController) AddQuestion(ctx *gin.Context) {
	categoryID, err := strconv.ParseUint(ctx.Param("category_id"), 10, 32)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid Category ID format"})
		return
	}

	var req dto.QuestionCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Admin AddQuestion: Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	question, err := c.adminTestService.AddQuestion(uint(categoryID), req)
	if err != nil {
		log.Error().Err(err).Uint64("categoryID", categoryID).Msg("Admin AddQuestion: Service error")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Failed to add question", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusCreated, question)
}

// CreateTest godoc
// @Summary (Admin) Publish a new test over an existing bank
// @Tags Admin - Tests
// @Accept json
// @Produce json
// @Param test_data body dto.TestCreateDTO true "Test metadata: bank, price, duration, sample size"
// @Success 201 {object} dto.TestSummaryDTO "Test created successfully"
// @Failure 400 {object} dto.ErrorResponse "Invalid input data"
// @Router /admin/tests [post]
func (c *AdminTestController) CreateTest(ctx *gin.Context) {
	var req dto.TestCreateDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		log.Warn().Err(err).Msg("Admin CreateTest: Failed to bind JSON")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Invalid request body", Details: []string{err.Error()}})
		return
	}

	testResp, err := c.adminTestService.CreateTest(req)
	if err != nil {
		log.Error().Err(err).Interface("requestPayload", req).Msg("Admin CreateTest: Service error")
		ctx.JSON(http.StatusBadRequest, dto.ErrorResponse{Message: "Failed to create test", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusCreated, testResp)
}

// GetAllResults godoc
// @Summary (Admin) List all exam results
// @Tags Admin - Results
// @Produce json
// @Success 200 {array} dto.ExamResultDTO
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /admin/results [get]
func (c *AdminTestController) GetAllResults(ctx *gin.Context) {
	results, err := c.adminTestService.GetAllResults()
	if err != nil {
		log.Error().Err(err).Msg("Admin GetAllResults: Service error")
		ctx.JSON(http.StatusInternalServerError, dto.ErrorResponse{Message: "Failed to retrieve results", Details: []string{err.Error()}})
		return
	}
	ctx.JSON(http.StatusOK, results)
}
