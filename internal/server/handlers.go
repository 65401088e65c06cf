package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nibzard/mdtasks/internal/cas"
	"github.com/nibzard/mdtasks/internal/persist"
	"github.com/nibzard/mdtasks/internal/service"
	"github.com/nibzard/mdtasks/internal/session"
	"github.com/nibzard/mdtasks/internal/task"
	"github.com/nibzard/mdtasks/internal/utils"
	"github.com/nibzard/mdtasks/internal/webhook"
)

type tasksResponse struct {
	Tasks []task.Task `json:"tasks"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type fieldRequest struct {
	Field string `json:"field"`
}

type valueRequest struct {
	Value string `json:"value"`
}

type sortRequest struct {
	By string `json:"by"`
}

type sessionResponse struct {
	ID string `json:"id"`
}

type webhookResponse struct {
	Delivery string `json:"delivery"`
	webhook.Result
}

// decodeBody reads a JSON body strictly.
func decodeBody(c echo.Context, v any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxBodySize))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
}

// respondError maps service errors onto status codes.
func respondError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	var verr *task.ValidationError
	var verrs *task.ValidationErrors
	var exhausted *cas.ExhaustedError
	switch {
	case errors.Is(err, service.ErrTaskNotFound), errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateName), errors.Is(err, service.ErrTimeConflict), errors.As(err, &exhausted):
		status = http.StatusConflict
	case errors.As(err, &verr), errors.As(err, &verrs),
		errors.Is(err, service.ErrInvalidTags), errors.Is(err, service.ErrUnknownField),
		errors.Is(err, service.ErrNoField), errors.Is(err, service.ErrNeedsDate),
		errors.Is(err, service.ErrNeedsTime), errors.Is(err, persist.ErrNoTimezone):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		c.Logger().Error(err)
	}
	return c.JSON(status, errorResponse{Error: err.Error()})
}

func listTasks(svc *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		all, _ := strconv.ParseBool(c.QueryParam("all"))
		tags := c.QueryParams()["tag"]
		if v := c.QueryParam("tags"); v != "" {
			tags = append(tags, utils.SplitAndTrim(v, ",")...)
		}
		tasks, err := svc.List(c.Request().Context(), service.Filter{All: all, Tags: tags})
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
	}
}

func todayTasks(svc *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		tasks, err := svc.Today(c.Request().Context(), time.Now())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
	}
}

func addTask(svc *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var t task.Task
		if err := decodeBody(c, &t); err != nil {
			return badBody(c)
		}
		added, err := svc.Add(c.Request().Context(), t)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusCreated, added)
	}
}

func completeTask(svc *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req nameRequest
		if err := decodeBody(c, &req); err != nil || req.Name == "" {
			return badBody(c)
		}
		done, err := svc.Complete(c.Request().Context(), req.Name)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, done)
	}
}

func sortTasks(svc *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req sortRequest
		if err := decodeBody(c, &req); err != nil {
			return badBody(c)
		}
		key, err := task.ParseSortKey(req.By)
		if err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		}
		tasks, err := svc.Sort(c.Request().Context(), key)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, tasksResponse{Tasks: tasks})
	}
}

func removeTask(svc *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		removed, err := svc.Remove(c.Request().Context(), c.Param("name"))
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, removed)
	}
}

func newSession(svc *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := svc.NewSession(c.Request().Context())
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusCreated, sessionResponse{ID: id})
	}
}

func beginEdit(svc *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req nameRequest
		if err := decodeBody(c, &req); err != nil || req.Name == "" {
			return badBody(c)
		}
		t, err := svc.BeginEdit(c.Request().Context(), c.Param("id"), req.Name)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func selectField(svc *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req fieldRequest
		if err := decodeBody(c, &req); err != nil {
			return badBody(c)
		}
		if err := svc.SelectField(c.Request().Context(), c.Param("id"), req.Field); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func applyEdit(svc *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req valueRequest
		if err := decodeBody(c, &req); err != nil {
			return badBody(c)
		}
		t, err := svc.ApplyEdit(c.Request().Context(), c.Param("id"), req.Value)
		if err != nil {
			return respondError(c, err)
		}
		return c.JSON(http.StatusOK, t)
	}
}

func cancelEdit(svc *service.Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := svc.CancelEdit(c.Request().Context(), c.Param("id")); err != nil {
			return respondError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

// githubWebhook accepts push events. Other event types are acknowledged
// and ignored. Payload signatures are not checked.
func githubWebhook(hook *webhook.Handler, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		if hook == nil {
			return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "webhook is not configured"})
		}
		delivery := c.Request().Header.Get("X-GitHub-Delivery")
		if delivery == "" {
			delivery = uuid.NewString()
		}
		event := c.Request().Header.Get("X-GitHub-Event")
		if event != "" && event != "push" {
			logger.Debug("ignoring webhook event", "op", "webhook", "event", event, "delivery", delivery)
			return c.JSON(http.StatusAccepted, webhookResponse{Delivery: delivery})
		}

		var ev webhook.PushEvent
		dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, maxWebhookSize))
		if err := dec.Decode(&ev); err != nil {
			return badBody(c)
		}
		res := hook.HandlePush(c.Request().Context(), ev)
		return c.JSON(http.StatusOK, webhookResponse{Delivery: delivery, Result: res})
	}
}
