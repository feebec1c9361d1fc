package echoapi

import (
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/autograder/core"
	"github.com/trezcool/autograder/core/quiz"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// stream pushes the countdown of an attempt over a websocket, until it is submitted.
// The first message holds the current remaining time.
func (api *attemptApi) stream(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	id := ctx.Param("id")
	view, err := api.svc.GetAttempt(id, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "getting attempt")
	}
	events, cancel, err := api.svc.SubscribeAttempt(id, claims.Subject)
	if err != nil {
		return errors.Wrap(err, "subscribing to attempt")
	}
	defer cancel()

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return nil // the upgrader replied already
	}
	defer conn.Close()

	// the client only ever sends close frames
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(evt quiz.AttemptEvent) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(evt)
	}
	person := core.Person{ID: claims.Subject, Email: claims.Email}

	if err := send(quiz.AttemptEvent{Type: quiz.EventTick, AttemptID: id, Remaining: view.Remaining}); err != nil {
		api.logger.Debug("writing to websocket", err, person)
		return nil
	}
	for {
		select {
		case evt, ok := <-events:
			if !ok {
				_ = conn.WriteControl(
					websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait),
				)
				return nil
			}
			if err := send(evt); err != nil {
				api.logger.Debug("writing to websocket", err, person)
				return nil
			}
		case <-gone:
			return nil
		}
	}
}
