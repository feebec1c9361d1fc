package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
)

type (
	attemptApi struct {
		svc    *quiz.Service
		logger core.Logger
	}

	// AttemptResponse is the attempt state along with the questions to answer.
	AttemptResponse struct {
		quiz.AttemptView
		Quiz quiz.PublicQuiz `json:"quiz"`
	}

	// SelectRequest picks an option; a null option clears the answer.
	SelectRequest struct {
		Option null.Int `json:"option"`
	}
)

func registerAttemptAPI(g *echo.Group, jwt, jwtQuery echo.MiddlewareFunc, svc *quiz.Service, logger core.Logger) {
	api := attemptApi{svc: svc, logger: logger}

	g.POST("/quizzes/:id/attempts", api.start, jwt)

	ag := g.Group("/attempts/:id")
	ag.GET("", api.retrieve, jwt)
	ag.PUT("/answers/:index", api.selectAnswer, jwt)
	ag.POST("/submit", api.submit, jwt)
	ag.GET("/ws", api.stream, jwtQuery)
}

// Handlers

func (api *attemptApi) start(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	rctx := ctx.Request().Context()
	view, err := api.svc.StartAttempt(rctx, ctx.Param("id"), claims.Respondent())
	if err != nil {
		return errors.Wrap(err, "starting attempt")
	}
	q, err := api.svc.AttemptQuiz(view.ID, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting attempt quiz")
	}
	return ctx.JSON(http.StatusCreated, AttemptResponse{AttemptView: view, Quiz: q.Public()})
}

func (api *attemptApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	id := ctx.Param("id")
	view, err := api.svc.GetAttempt(id, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting attempt")
	}
	q, err := api.svc.AttemptQuiz(id, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting attempt quiz")
	}
	return ctx.JSON(http.StatusOK, AttemptResponse{AttemptView: view, Quiz: q.Public()})
}

func (api *attemptApi) selectAnswer(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	index, err := strconv.Atoi(ctx.Param("index"))
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "index", Error: "index must be a number"})
	}
	var data SelectRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SelectRequest")
	}

	view, err := api.svc.SelectAnswer(ctx.Param("id"), claims.Subject, index, data.Option)
	if err != nil {
		return errors.Wrap(err, "selecting answer")
	}
	return ctx.JSON(http.StatusOK, view)
}

func (api *attemptApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	gs, err := api.svc.SubmitAttempt(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "submitting attempt")
	}
	return ctx.JSON(http.StatusOK, gs)
}
