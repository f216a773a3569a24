package utils

import (
	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"
)

type PageMeta struct {
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
	Total   int64 `json:"total"`
}

func JSONPage(ctx iris.Context, data interface{}, page, perPage int, total int64) {
	ctx.JSON(iris.Map{
		"data":  data,
		"meta":  PageMeta{Page: page, PerPage: perPage, Total: total},
		"links": iris.Map{},
	})
}

func JSONError(ctx iris.Context, status int, code, message string) {
	ctx.StatusCode(status)
	ctx.JSON(iris.Map{"error": code, "message": message})
}

type validationError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

// HandleValidationErrors writes a 400 with per-field details when the body
// failed validator tags, 400 with a generic message otherwise.
func HandleValidationErrors(err error, ctx iris.Context) {
	if errs, ok := err.(validator.ValidationErrors); ok {
		out := make([]validationError, 0, len(errs))
		for _, e := range errs {
			out = append(out, validationError{Field: e.Field(), Tag: e.Tag(), Value: e.Param()})
		}
		ctx.StatusCode(iris.StatusBadRequest)
		ctx.JSON(iris.Map{"error": "validation", "fields": out})
		return
	}
	JSONError(ctx, iris.StatusBadRequest, "bad_request", err.Error())
}

func CreateNotFound(ctx iris.Context) {
	JSONError(ctx, iris.StatusNotFound, "not_found", "resource not found")
}

func CreateInternalServerError(ctx iris.Context) {
	JSONError(ctx, iris.StatusInternalServerError, "internal", "an internal error occurred")
}
