package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/contractgrading/core"
	"github.com/trezcool/contractgrading/core/gradeimport"
)

const classIDParam = "classID"

type importApi struct {
	svc      gradeimport.Service
	validate *validator.Validate
	logger   core.Logger
	conf     *core.Config
}

func registerImportAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := importApi{
		svc:      deps.ImportSvc,
		validate: deps.Validate,
		logger:   deps.Logger,
		conf:     deps.Conf,
	}

	ig := g.Group("/classes/:"+classIDParam+"/import", jwt, instructorMiddleware(RoleAdmin))
	ig.GET("/assignments", api.assignments)
	ig.POST("/normalize", api.normalize)
	ig.POST("/preview", api.preview)
	ig.POST("/commit", api.commit)
}

// Handlers

func (api *importApi) assignments(ctx echo.Context) error {
	assignments, err := api.svc.Assignments(ctx.Request().Context(), ctx.Param(classIDParam))
	if err != nil {
		return errors.Wrap(err, "getting assignments")
	}
	return ctx.JSON(http.StatusOK, assignments)
}

func (api *importApi) normalize(ctx echo.Context) error {
	classID := ctx.Param(classIDParam)
	reqCtx := ctx.Request().Context()

	fh, file, err := bindUpload(ctx, api.conf.Import.MaxUploadSize)
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	data, err := gradeimport.NormalizeFile(fh.Filename, file)
	if err != nil {
		return errors.Wrap(err, "normalizing gradebook")
	}

	assignments, err := api.svc.Assignments(reqCtx, classID)
	if err != nil {
		return errors.Wrap(err, "getting assignments")
	}
	suggestions, err := api.svc.SuggestMappings(reqCtx, classID, data.AssignmentColumns)
	if err != nil {
		return errors.Wrap(err, "suggesting mappings")
	}

	return ctx.JSON(http.StatusOK, NormalizeResponse{
		Data:        data,
		Assignments: assignments,
		Suggestions: suggestions,
	})
}

func (api *importApi) preview(ctx echo.Context) error {
	var data PreviewRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PreviewRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	preview, err := api.svc.GeneratePreview(ctx.Request().Context(), ctx.Param(classIDParam), data.Data, data.Mappings)
	if err != nil {
		return errors.Wrap(err, "generating preview")
	}
	return ctx.JSON(http.StatusOK, preview)
}

func (api *importApi) commit(ctx echo.Context) error {
	var commit gradeimport.Commit
	if err := ctx.Bind(&commit); err != nil {
		return errors.Wrap(err, "binding to Commit")
	}
	if err := validateCommit(api.validate, commit); err != nil {
		return err
	}
	commit.ClassID = ctx.Param(classIDParam)

	result, err := api.svc.ExecuteImport(ctx.Request().Context(), commit)
	if err != nil {
		return errors.Wrap(err, "executing import")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	if err = api.svc.NotifyResult(claims.Address(), result); err != nil {
		// the import itself went through
		api.logger.Error("import: notifying result", err, claims.Person())
	}
	return ctx.JSON(http.StatusOK, result)
}
