package echoapi

import (
	"fmt"
	"mime/multipart"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/contractgrading/core"
	"github.com/trezcool/contractgrading/core/gradeimport"
)

const uploadField = "file"

type (
	PreviewRequest struct {
		Data     gradeimport.NormalizedData      `json:"data"`
		Mappings []gradeimport.AssignmentMapping `json:"mappings" validate:"required,min=1,dive"`
	}

	NormalizeResponse struct {
		Data        gradeimport.NormalizedData      `json:"data"`
		Assignments []gradeimport.Assignment        `json:"assignments"`
		Suggestions []gradeimport.AssignmentMapping `json:"suggestions"`
	}
)

func (r PreviewRequest) Validate(validate *validator.Validate) error {
	if err := validate.Struct(r); err != nil {
		return err
	}
	if len(r.Data.Students) == 0 || len(r.Data.AssignmentColumns) == 0 {
		return core.NewFieldValidationError("data", errors.New("upload and normalize a gradebook first"))
	}
	return nil
}

func validateCommit(validate *validator.Validate, c gradeimport.Commit) error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if len(c.GradeChanges)+len(c.AbsenceChanges) == 0 {
		return core.NewFieldValidationError("grade_changes", errors.New("approve at least one change"))
	}
	return nil
}

// bindUpload returns the uploaded gradebook, refusing bodies larger than maxSize.
func bindUpload(ctx echo.Context, maxSize int64) (*multipart.FileHeader, multipart.File, error) {
	req := ctx.Request()
	req.Body = http.MaxBytesReader(ctx.Response(), req.Body, maxSize+(1<<20) /* multipart overhead */)

	fh, err := ctx.FormFile(uploadField)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, core.NewFieldValidationError(uploadField, fmt.Errorf("the file must not exceed %d bytes", maxSize))
		}
		return nil, nil, core.NewFieldValidationError(uploadField, errors.New("a .csv or .xlsx gradebook file is required"))
	}
	if fh.Size > maxSize {
		return nil, nil, core.NewFieldValidationError(uploadField, fmt.Errorf("the file must not exceed %d bytes", maxSize))
	}

	f, err := fh.Open()
	if err != nil {
		return nil, nil, errors.Wrap(err, "opening uploaded file")
	}
	return fh, f, nil
}
