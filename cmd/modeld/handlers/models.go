package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/opst/modelfab/pkg/api/binderr"
	"github.com/opst/modelfab/pkg/api/types"
	"github.com/opst/modelfab/pkg/domain/changeset"
	"github.com/opst/modelfab/pkg/domain/deploy"
	"github.com/opst/modelfab/pkg/domain/history"
	"github.com/opst/modelfab/pkg/domain/management"
	"github.com/opst/modelfab/pkg/domain/model"
	"github.com/opst/modelfab/pkg/domain/model/selector"
	"github.com/opst/modelfab/pkg/domain/report"
	"github.com/opst/modelfab/pkg/domain/update"
)

// ModelService is what handlers need from *management.Service.
type ModelService interface {
	Models(ctx context.Context) (*model.Models, error)
	Resolve(ctx context.Context, sel string) (*model.Models, selector.Target, error)
	Changes(ctx context.Context, after int64) ([]changeset.Info, error)

	UpdateModel(ctx context.Context, req update.Request) (update.Response, error)
	SubmitUpdate(ctx context.Context, req update.Request) (management.Ticket, error)

	ValidateDeploymentCandidates(ctx context.Context) (*report.Report, error)
	DeployChanges(ctx context.Context, req history.DeploymentRequest) (*report.Report, error)
	SubmitDeployment(ctx context.Context, req history.DeploymentRequest) (management.Ticket, error)
}

var _ ModelService = &management.Service{}

// GetModelsHandler responds the summary of the latest model.
func GetModelsHandler(svc ModelService) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, err := svc.Models(c.Request().Context())
		if err != nil {
			return binderr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, types.ComposeSummary(m))
	}
}

// GetHierarchyHandler responds classes and definitions of the latest model as trees.
func GetHierarchyHandler(svc ModelService) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, err := svc.Models(c.Request().Context())
		if err != nil {
			return binderr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, types.ComposeHierarchy(m))
	}
}

// GetMetaHandler responds attributes legal for each kind of nodes.
func GetMetaHandler(svc ModelService) echo.HandlerFunc {
	return func(c echo.Context) error {
		m, err := svc.Models(c.Request().Context())
		if err != nil {
			return binderr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, types.ComposeMeta(m.Meta()))
	}
}

// GetNodeHandler resolves the selector in the query parameter.
func GetNodeHandler(svc ModelService, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		sel := c.QueryParam(param)
		if sel == "" {
			return binderr.BadRequest("query parameter "+param+" is required", nil)
		}

		m, target, err := svc.Resolve(c.Request().Context(), sel)
		var unsupported *selector.NotSupportedNodeError
		switch {
		case err == nil:
		case errors.Is(err, selector.ErrInvalidSelector), errors.As(err, &unsupported):
			return binderr.BadRequest("check the selector", err)
		case errors.Is(err, selector.ErrNodeNotFound):
			return binderr.NotFound("ids of top-level nodes are listed", "GET /api/models/", err)
		default:
			return binderr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, types.ComposeResolved(m, target))
	}
}

// GetChangesHandler responds changes recorded after the version in the query parameter.
func GetChangesHandler(svc ModelService, param string) echo.HandlerFunc {
	return func(c echo.Context) error {
		var after int64
		if q := c.QueryParam(param); q != "" {
			v, err := strconv.ParseInt(q, 10, 64)
			if err != nil || v < 0 {
				return binderr.BadRequest("query parameter "+param+" should be a model version", err)
			}
			after = v
		}

		ctx := c.Request().Context()
		m, err := svc.Models(ctx)
		if err != nil {
			return binderr.InternalServerError(err)
		}
		changes, err := svc.Changes(ctx, after)
		if err != nil {
			return binderr.InternalServerError(err)
		}

		resp := types.Changes{Version: m.Version(), Changes: changes}
		if resp.Changes == nil {
			resp.Changes = []changeset.Info{}
		}
		for _, ch := range changes {
			resp.Version = max(resp.Version, ch.Version)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// PostChangesHandler takes an update request.
//
// It is queued and responded with a ticket (202), or processed at once when
// the query parameter "sync" is true.
//
// A request with sync=true bypasses the queue even when the service is async,
// so it may be applied before requests queued earlier. Receipt order holds only
// among queued requests. Collisions still reject a stale sync request, since
// each change carries the old value its requester saw.
func PostChangesHandler(svc ModelService) echo.HandlerFunc {
	return func(c echo.Context) error {
		sync, herr := syncParam(c)
		if herr != nil {
			return herr
		}
		req := new(update.Request)
		if herr := decodeJSON(c, req); herr != nil {
			return herr
		}
		if len(req.Changes) == 0 {
			return binderr.BadRequest("changes should not be empty", nil)
		}

		ctx := c.Request().Context()
		if !sync {
			ticket, err := svc.SubmitUpdate(ctx, *req)
			if err != nil {
				return binderr.ServiceUnavailable("retry later", err)
			}
			return c.JSON(http.StatusAccepted, ticket)
		}

		resp, err := svc.UpdateModel(ctx, *req)
		var failed *update.UpdateModelFailedError
		switch {
		case err == nil:
		case errors.As(err, &failed):
			return binderr.UpdateModelFailed(failed.Report, err)
		case errors.Is(err, context.Canceled):
			return binderr.ServiceUnavailable("retry later", err)
		default:
			return binderr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, resp)
	}
}

// GetDeploymentHandler validates deployment candidates.
func GetDeploymentHandler(svc ModelService) echo.HandlerFunc {
	return func(c echo.Context) error {
		r, err := svc.ValidateDeploymentCandidates(c.Request().Context())
		if err != nil {
			return binderr.InternalServerError(err)
		}
		return c.JSON(http.StatusOK, r)
	}
}

// PostDeploymentHandler takes a deployment request.
//
// It is queued and responded with a ticket (202), or processed at once when
// the query parameter "sync" is true. Invalid deployments are 409 with the report.
func PostDeploymentHandler(svc ModelService) echo.HandlerFunc {
	return func(c echo.Context) error {
		sync, herr := syncParam(c)
		if herr != nil {
			return herr
		}
		req := new(history.DeploymentRequest)
		if herr := decodeJSON(c, req); herr != nil {
			return herr
		}
		if req.Version < 0 {
			return binderr.BadRequest("version should not be negative", nil)
		}

		ctx := c.Request().Context()
		if !sync {
			ticket, err := svc.SubmitDeployment(ctx, *req)
			if err != nil {
				return binderr.ServiceUnavailable("retry later", err)
			}
			return c.JSON(http.StatusAccepted, ticket)
		}

		r, err := svc.DeployChanges(ctx, *req)
		var rollbacked *deploy.RollbackedError
		switch {
		case errors.Is(err, history.ErrUnknownVersion):
			return binderr.BadRequest("the version is not recorded yet", err)
		case errors.As(err, &rollbacked):
			return binderr.NewErrorMessage(
				http.StatusInternalServerError, "deployment is rolled back",
				binderr.WithAdvice("check the downstream, and retry"),
				binderr.WithError(err),
			)
		case err != nil:
			return binderr.InternalServerError(err)
		case !r.IsValid():
			return binderr.Conflict("deployment is invalid", binderr.WithReport(r))
		}
		return c.JSON(http.StatusOK, r)
	}
}

func syncParam(c echo.Context) (bool, *echo.HTTPError) {
	q := c.QueryParam("sync")
	if q == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(q)
	if err != nil {
		return false, binderr.BadRequest("query parameter sync should be true or false", err)
	}
	return b, nil
}

func decodeJSON(c echo.Context, dest any) *echo.HTTPError {
	req := c.Request()
	ctype, _, _ := strings.Cut(req.Header.Get("content-type"), ";")
	if strings.ToLower(strings.TrimSpace(ctype)) != "application/json" {
		return binderr.BadRequest("unexpected content type. it shoule be application/json", nil)
	}
	if err := json.NewDecoder(req.Body).Decode(dest); err != nil {
		return binderr.BadRequest("can not understand the requested json", err)
	}
	return nil
}
