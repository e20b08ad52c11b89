package dto

// CategoryCreateDTO is for admin to create a question bank.
type CategoryCreateDTO struct {
	Name string `json:"name" binding:"required"`
}

// QuestionCreateDTO is for admin to append a question to a bank. Banks are
// append-only once a test references them.
type QuestionCreateDTO struct {
	Text          string `json:"text" binding:"required"`
	OptionA       string `json:"option_a" binding:"required"`
	OptionB       string `json:"option_b" binding:"required"`
	OptionC       string `json:"option_c" binding:"required"`
	OptionD       string `json:"option_d" binding:"required"`
	CorrectOption string `json:"correct_option" binding:"required,oneof=a b c d"`
}

// TestCreateDTO is for admin to publish a new test over an existing bank.
type TestCreateDTO struct {
	Title           string `json:"title" binding:"required"`
	Description     string `json:"description,omitempty"`
	CategoryID      uint   `json:"category_id" binding:"required"`
	PricePaise      int64  `json:"price_paise" binding:"required,gt=0"`
	Currency        string `json:"currency" binding:"omitempty,len=3"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,gt=0"`
	QuestionCount   int    `json:"question_count" binding:"required,gt=0"`
}
