package api

import (
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
)

// CustomValidator はEcho用のカスタムバリデーター
type CustomValidator struct {
	validator *validator.Validate
}

// phonePattern は国番号付きを含む10〜15桁の電話番号
var phonePattern = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

// NewValidator は新しいバリデーターを作成する
func NewValidator() *CustomValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	// タグ名が固定なので登録に失敗することはない
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phonePattern.MatchString(fl.Field().String())
	})
	return &CustomValidator{validator: v}
}

// Validate はリクエストのバリデーションを実行する
func (cv *CustomValidator) Validate(i any) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
	return nil
}
