package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/autograder/core/quiz"
)

type quizApi struct {
	svc *quiz.Service
}

// SubmitRequest holds the answers of a one-shot submission; null means "no answer".
type SubmitRequest struct {
	Answers quiz.Answers `json:"answers"`
}

func registerQuizAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *quiz.Service) {
	api := quizApi{svc: svc}

	qg := g.Group("/quizzes", jwt)
	qg.POST("", api.create, authorMiddleware)
	qg.GET("", api.query)
	qg.GET("/:id", api.retrieve)
	qg.POST("/:id/submissions", api.submit)
	qg.GET("/:id/submissions", api.results, authorMiddleware)

	g.GET("/submissions/:id", api.retrieveSubmission, jwt)
}

// Handlers

func (api *quizApi) create(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data quiz.NewQuiz
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewQuiz")
	}

	q, err := api.svc.Create(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "creating quiz")
	}
	return ctx.JSON(http.StatusCreated, q)
}

func (api *quizApi) query(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	filter := quiz.QueryFilter{
		AuthorID: ctx.QueryParam("author_id"),
		Search:   ctx.QueryParam("search"),
	}
	quizzes, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying quizzes")
	}

	if claims.CanAuthor() {
		return ctx.JSON(http.StatusOK, quizzes)
	}
	public := make([]quiz.PublicQuiz, 0, len(quizzes))
	for _, q := range quizzes {
		public = append(public, q.Public())
	}
	return ctx.JSON(http.StatusOK, public)
}

func (api *quizApi) retrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	q, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting quiz")
	}
	if claims.CanAuthor() {
		return ctx.JSON(http.StatusOK, q)
	}
	return ctx.JSON(http.StatusOK, q.Public())
}

func (api *quizApi) submit(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var data SubmitRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SubmitRequest")
	}

	gs, err := api.svc.Submit(ctx.Request().Context(), ctx.Param("id"), claims.Respondent(), data.Answers)
	if err != nil {
		return errors.Wrap(err, "submitting answers")
	}
	return ctx.JSON(http.StatusCreated, gs)
}

func (api *quizApi) results(ctx echo.Context) error {
	var ord Ordering
	if err := ord.Bind(ctx, quiz.SubmissionOrderings); err != nil {
		return err
	}

	rctx := ctx.Request().Context()
	q, err := api.svc.Get(rctx, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting quiz")
	}
	results, err := api.svc.Results(rctx, quiz.SubmissionFilter{QuizID: q.ID}, ord.Orderings...)
	if err != nil {
		return errors.Wrap(err, "getting results")
	}
	return ctx.JSON(http.StatusOK, results)
}

// retrieveSubmission is open to the respondent & authors; others get a 404.
func (api *quizApi) retrieveSubmission(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	gs, err := api.svc.GetSubmission(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting submission")
	}
	if gs.RespondentID != claims.Subject && !claims.CanAuthor() {
		return quiz.ErrSubmissionNotFound
	}
	return ctx.JSON(http.StatusOK, gs)
}
