package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"gigledger/internal/domain"
	"gigledger/internal/engine"
	"gigledger/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"invalid_budget"`
	Message string         `json:"message" example:"budget must be positive and within the remaining project budget"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the GigLedger API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v0"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.Engine.Repo))
	hcfg := huma.DefaultConfig("GigLedger API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerAdmin(group, cfg.Engine)
	registerRegistry(group, cfg.Engine)
	registerProjects(group, cfg.Engine)
	registerTasks(group, cfg.Engine)
	registerOverviews(group, cfg.Engine)
	registerCollections(group, cfg.Engine)
	registerEvents(group, cfg.Engine)
	registerAPIKeys(group, cfg.Engine)
	registerDevAuth(group, cfg.Auth)
	registerOpenAPI(router, api, basePath)

	startWebhookDispatcher(cfg.Engine)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// statusForCode maps engine error codes to HTTP statuses.
var statusForCode = map[string]int{
	"unauthorized_admin":      http.StatusForbidden,
	"unauthorized_employer":   http.StatusForbidden,
	"unauthorized_freelancer": http.StatusForbidden,
	"not_whitelisted":         http.StatusForbidden,
	"invalid_freelancer":      http.StatusForbidden,

	"project_not_found":    http.StatusNotFound,
	"task_not_found":       http.StatusNotFound,
	"overview_not_found":   http.StatusNotFound,
	"collection_not_found": http.StatusNotFound,

	"admin_already_initialized":    http.StatusConflict,
	"already_whitelisted":          http.StatusConflict,
	"project_already_initialized":  http.StatusConflict,
	"task_already_added":           http.StatusConflict,
	"details_already_added":        http.StatusConflict,
	"project_already_assigned":     http.StatusConflict,
	"task_already_accepted":        http.StatusConflict,
	"already_rated":                http.StatusConflict,
	"overview_already_initialized": http.StatusConflict,
	"collection_exists":            http.StatusConflict,
	"badge_already_minted":         http.StatusConflict,

	"project_not_created":    http.StatusUnprocessableEntity,
	"invalid_project_status": http.StatusUnprocessableEntity,
	"invalid_task_status":    http.StatusUnprocessableEntity,
	"profession_mismatch":    http.StatusUnprocessableEntity,
	"insufficient_funds":     http.StatusUnprocessableEntity,
	"invalid_escrow_amount":  http.StatusUnprocessableEntity,
	"budget_still_remaining": http.StatusUnprocessableEntity,
	"project_not_completed":  http.StatusUnprocessableEntity,
	"tasks_not_completed":    http.StatusUnprocessableEntity,
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var coded *engine.Error
	if errors.As(err, &coded) {
		status, ok := statusForCode[coded.Code]
		if !ok {
			status = http.StatusBadRequest
		}
		return newAPIError(status, coded.Code, coded.Message, nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": err.Error()})
}

func defaultCodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(status), " ", "_"))
	}
}

// requireAdminPrincipal gates read endpoints that the engine does not.
func requireAdminPrincipal(ctx context.Context, e engine.Engine) (string, huma.StatusError) {
	identity, authErr := identityFromContext(ctx)
	if authErr != nil {
		return "", authErr
	}
	if _, err := e.Repo.GetAdmin(ctx, identity); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", newAPIError(http.StatusForbidden, "unauthorized_admin", "caller is not the marketplace admin", nil)
		}
		return "", handleError(err)
	}
	return identity, nil
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			applyAuthSecurity(oas, basePath)
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func applyAuthSecurity(oas *huma.OpenAPI, basePath string) {
	if oas == nil {
		return
	}
	if oas.Components == nil {
		oas.Components = &huma.Components{}
	}
	if oas.Components.SecuritySchemes == nil {
		oas.Components.SecuritySchemes = map[string]*huma.SecurityScheme{}
	}
	oas.Components.SecuritySchemes["bearerAuth"] = &huma.SecurityScheme{
		Type:         "http",
		Scheme:       "bearer",
		BearerFormat: "JWT",
	}
	oas.Components.SecuritySchemes["apiKeyAuth"] = &huma.SecurityScheme{
		Type: "apiKey",
		In:   "header",
		Name: "X-Api-Key",
	}
	security := []map[string][]string{
		{"bearerAuth": {}},
		{"apiKeyAuth": {}},
	}
	oas.Security = security
	open := map[string]bool{
		path.Join(basePath, "health"):         true,
		path.Join(basePath, "auth/dev/login"): true,
	}
	for route, item := range oas.Paths {
		for _, op := range []*huma.Operation{
			item.Get, item.Put, item.Post, item.Delete, item.Options, item.Head, item.Patch, item.Trace,
		} {
			if op == nil {
				continue
			}
			if open[route] {
				op.Security = []map[string][]string{}
				continue
			}
			op.Security = security
		}
	}
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>GigLedger API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerAdmin(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "init-admin",
		Method:        http.MethodPost,
		Path:          "/admin/init",
		Summary:       "Initialize the marketplace admin",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusConflict, http.StatusUnauthorized},
	}, func(ctx context.Context, input *struct {
		Body InitAdminRequest `json:"body"`
	}) (*struct {
		Body domain.Admin `json:"body"`
	}, error) {
		identity := strings.TrimSpace(input.Body.Identity)
		if identity == "" {
			if p, ok := principalFromContext(ctx); ok {
				identity = p.Identity
			}
		}
		if identity == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "identity is required", nil)
		}
		admin, err := e.InitializeAdmin(ctx, identity)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Admin `json:"body"`
		}{Body: admin}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "fund-account",
		Method:      http.MethodPost,
		Path:        "/admin/fund",
		Summary:     "Credit an identity's token balance",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body FundAccountRequest `json:"body"`
	}) (*struct {
		Body BalanceResponse `json:"body"`
	}, error) {
		identity, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.FundAccount(ctx, identity, input.Body.Owner, input.Body.Amount); err != nil {
			return nil, handleError(err)
		}
		bal, err := e.Balance(ctx, input.Body.Owner)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BalanceResponse `json:"body"`
		}{Body: BalanceResponse{Owner: input.Body.Owner, Balance: bal}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-balance",
		Method:      http.MethodGet,
		Path:        "/balances/{owner}",
		Summary:     "Read a token balance",
	}, func(ctx context.Context, input *struct {
		Owner string `path:"owner"`
	}) (*struct {
		Body BalanceResponse `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		bal, err := e.Balance(ctx, input.Owner)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BalanceResponse `json:"body"`
		}{Body: BalanceResponse{Owner: input.Owner, Balance: bal}}, nil
	})
}

func registerRegistry(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "whitelist-employer",
		Method:        http.MethodPost,
		Path:          "/registry/employers",
		Summary:       "Whitelist an employer",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body WhitelistEmployerRequest `json:"body"`
	}) (*struct {
		Body domain.Employer `json:"body"`
	}, error) {
		adminID, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		emp, err := e.WhitelistEmployer(ctx, adminID, input.Body.Identity, input.Body.UserName, input.Body.CompanyName)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Employer `json:"body"`
		}{Body: emp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-employer",
		Method:      http.MethodDelete,
		Path:        "/registry/employers/{identity}",
		Summary:     "Remove an employer from the whitelist",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Identity string `path:"identity"`
	}) (*struct{}, error) {
		adminID, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveEmployer(ctx, adminID, input.Identity); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-employer",
		Method:      http.MethodGet,
		Path:        "/registry/employers/{identity}",
		Summary:     "Look up an employer registry entry",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Identity string `path:"identity"`
	}) (*struct {
		Body domain.Employer `json:"body"`
	}, error) {
		if _, authErr := requireAdminPrincipal(ctx, e); authErr != nil {
			return nil, authErr
		}
		emp, err := e.Repo.GetEmployer(ctx, input.Identity)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Employer `json:"body"`
		}{Body: emp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "contains-employer",
		Method:      http.MethodGet,
		Path:        "/registry/employers/{identity}/contains",
		Summary:     "Check whether an identity is an active employer",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Identity string `path:"identity"`
	}) (*struct {
		Body ContainsResponse `json:"body"`
	}, error) {
		if _, authErr := requireAdminPrincipal(ctx, e); authErr != nil {
			return nil, authErr
		}
		active, err := e.ContainsEmployer(ctx, input.Identity)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ContainsResponse `json:"body"`
		}{Body: ContainsResponse{Identity: input.Identity, Active: active}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "whitelist-freelancer",
		Method:        http.MethodPost,
		Path:          "/registry/freelancers",
		Summary:       "Whitelist a freelancer",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body WhitelistFreelancerRequest `json:"body"`
	}) (*struct {
		Body domain.Freelancer `json:"body"`
	}, error) {
		adminID, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		fl, err := e.WhitelistFreelancer(ctx, adminID, input.Body.Identity, input.Body.UserName, domain.Profession(input.Body.Profession))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Freelancer `json:"body"`
		}{Body: fl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-freelancer",
		Method:      http.MethodDelete,
		Path:        "/registry/freelancers/{identity}",
		Summary:     "Remove a freelancer from the whitelist",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Identity string `path:"identity"`
	}) (*struct{}, error) {
		adminID, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.RemoveFreelancer(ctx, adminID, input.Identity); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-freelancer",
		Method:      http.MethodGet,
		Path:        "/registry/freelancers/{identity}",
		Summary:     "Look up a freelancer registry entry",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Identity string `path:"identity"`
	}) (*struct {
		Body domain.Freelancer `json:"body"`
	}, error) {
		if _, authErr := requireAdminPrincipal(ctx, e); authErr != nil {
			return nil, authErr
		}
		fl, err := e.Repo.GetFreelancer(ctx, input.Identity)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Freelancer `json:"body"`
		}{Body: fl}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "contains-freelancer",
		Method:      http.MethodGet,
		Path:        "/registry/freelancers/{identity}/contains",
		Summary:     "Check whether an identity is an active freelancer",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Identity string `path:"identity"`
	}) (*struct {
		Body ContainsResponse `json:"body"`
	}, error) {
		if _, authErr := requireAdminPrincipal(ctx, e); authErr != nil {
			return nil, authErr
		}
		active, err := e.ContainsFreelancer(ctx, input.Identity)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ContainsResponse `json:"body"`
		}{Body: ContainsResponse{Identity: input.Identity, Active: active}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-badges",
		Method:      http.MethodGet,
		Path:        "/registry/freelancers/{identity}/badges",
		Summary:     "List a freelancer's badges",
	}, func(ctx context.Context, input *struct {
		Identity string `path:"identity"`
	}) (*struct {
		Body []domain.BadgeToken `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		badges, err := e.Badges(ctx, input.Identity)
		if err != nil {
			return nil, handleError(err)
		}
		if badges == nil {
			badges = []domain.BadgeToken{}
		}
		return &struct {
			Body []domain.BadgeToken `json:"body"`
		}{Body: badges}, nil
	})
}

func registerProjects(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Open a project and fund its escrow",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		employerID, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.InitializeProject(ctx, employerID, input.Body.Number, input.Body.Title, input.Body.TotalBudget)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects",
	}, func(ctx context.Context, input *struct {
		Employer string `query:"employer"`
	}) (*struct {
		Body []domain.Project `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		projects, err := e.Projects(ctx, input.Employer)
		if err != nil {
			return nil, handleError(err)
		}
		if projects == nil {
			projects = []domain.Project{}
		}
		return &struct {
			Body []domain.Project `json:"body"`
		}{Body: projects}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{addr}",
		Summary:     "Get a project",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Addr string `path:"addr"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		p, err := e.Project(ctx, input.Addr)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-project-details",
		Method:        http.MethodPost,
		Path:          "/projects/{addr}/details",
		Summary:       "Attach project details",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Addr string                `path:"addr"`
		Body ProjectDetailsRequest `json:"body"`
	}) (*struct {
		Body domain.ProjectDetails `json:"body"`
	}, error) {
		employerID, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.AddProjectDetails(ctx, employerID, input.Addr, input.Body.Description, domain.Profession(input.Body.Requirement), input.Body.Deadline)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProjectDetails `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project-details",
		Method:      http.MethodGet,
		Path:        "/projects/{addr}/details",
		Summary:     "Get project details",
		Errors:      []int{http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Addr string `path:"addr"`
	}) (*struct {
		Body domain.ProjectDetails `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		d, err := e.ProjectDetails(ctx, input.Addr)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProjectDetails `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "accept-project",
		Method:      http.MethodPost,
		Path:        "/projects/{addr}/accept",
		Summary:     "Accept a project as the caller freelancer",
		Errors:      []int{http.StatusForbidden, http.StatusConflict, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Addr string `path:"addr"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		freelancerID, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.AcceptProject(ctx, freelancerID, input.Addr)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-escrow",
		Method:      http.MethodGet,
		Path:        "/projects/{addr}/escrow",
		Summary:     "Get a project's escrow record",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Addr string `path:"addr"`
	}) (*struct {
		Body domain.Escrow `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		esc, err := e.Escrow(ctx, input.Addr)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Escrow `json:"body"`
		}{Body: esc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-task",
		Method:        http.MethodPost,
		Path:          "/projects/{addr}/tasks",
		Summary:       "Add a budgeted task",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Addr string         `path:"addr"`
		Body AddTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		employerID, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		task, err := e.AddTask(ctx, employerID, input.Addr, input.Body.Number, input.Body.Title, input.Body.Description, input.Body.Budget)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: task}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/projects/{addr}/tasks",
		Summary:     "List a project's tasks",
	}, func(ctx context.Context, input *struct {
		Addr string `path:"addr"`
	}) (*struct {
		Body []domain.Task `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		tasks, err := e.Tasks(ctx, input.Addr)
		if err != nil {
			return nil, handleError(err)
		}
		if tasks == nil {
			tasks = []domain.Task{}
		}
		return &struct {
			Body []domain.Task `json:"body"`
		}{Body: tasks}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "rate-freelancer",
		Method:        http.MethodPost,
		Path:          "/projects/{addr}/rating",
		Summary:       "Rate the freelancer who delivered a completed project",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Addr string                `path:"addr"`
		Body RateFreelancerRequest `json:"body"`
	}) (*struct {
		Body domain.Rating `json:"body"`
	}, error) {
		employerID, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		rating, err := e.RateFreelancer(ctx, employerID, input.Addr, input.Body.Stars, input.Body.Feedback)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Rating `json:"body"`
		}{Body: rating}, nil
	})
}

func registerTasks(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{addr}",
		Summary:     "Get a task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Addr string `path:"addr"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		task, err := e.Task(ctx, input.Addr)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: task}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "submit-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{addr}/submit",
		Summary:     "Submit proof of work for a task",
		Errors:      []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Addr string            `path:"addr"`
		Body SubmitTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		freelancerID, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		task, err := e.SubmitTask(ctx, freelancerID, input.Addr, input.Body.Description, domain.PocType(input.Body.PocType), input.Body.Proof)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: task}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "approve-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{addr}/approve",
		Summary:     "Approve an in-review task and release its budget",
		Errors:      []int{http.StatusForbidden, http.StatusConflict, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Addr string             `path:"addr"`
		Body ApproveTaskRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		employerID, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		task, err := e.ApproveTask(ctx, employerID, input.Addr, input.Body.Destination)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: task}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "reject-task",
		Method:      http.MethodPost,
		Path:        "/tasks/{addr}/reject",
		Summary:     "Reject an in-review task",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Addr string `path:"addr"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		employerID, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		task, err := e.RejectTask(ctx, employerID, input.Addr)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: task}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-submissions",
		Method:      http.MethodGet,
		Path:        "/tasks/{addr}/submissions",
		Summary:     "List a task's submissions",
	}, func(ctx context.Context, input *struct {
		Addr string `path:"addr"`
	}) (*struct {
		Body []domain.TaskSubmission `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		subs, err := e.Submissions(ctx, input.Addr)
		if err != nil {
			return nil, handleError(err)
		}
		if subs == nil {
			subs = []domain.TaskSubmission{}
		}
		return &struct {
			Body []domain.TaskSubmission `json:"body"`
		}{Body: subs}, nil
	})
}

func registerOverviews(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "init-overview",
		Method:        http.MethodPost,
		Path:          "/overviews/{freelancer}",
		Summary:       "Initialize a freelancer's reputation overview",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Freelancer string `path:"freelancer"`
	}) (*struct {
		Body domain.Overview `json:"body"`
	}, error) {
		adminID, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := e.InitializeOverview(ctx, adminID, input.Freelancer)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Overview `json:"body"`
		}{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-overview",
		Method:      http.MethodGet,
		Path:        "/overviews/{freelancer}",
		Summary:     "Get a freelancer's reputation overview",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Freelancer string `path:"freelancer"`
	}) (*struct {
		Body domain.Overview `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		o, err := e.Overview(ctx, input.Freelancer)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Overview `json:"body"`
		}{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-ratings",
		Method:      http.MethodGet,
		Path:        "/overviews/{freelancer}/ratings",
		Summary:     "List a freelancer's ratings",
	}, func(ctx context.Context, input *struct {
		Freelancer string `path:"freelancer"`
	}) (*struct {
		Body []domain.Rating `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		ratings, err := e.Ratings(ctx, input.Freelancer)
		if err != nil {
			return nil, handleError(err)
		}
		if ratings == nil {
			ratings = []domain.Rating{}
		}
		return &struct {
			Body []domain.Rating `json:"body"`
		}{Body: ratings}, nil
	})
}

func registerCollections(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-collection",
		Method:        http.MethodPost,
		Path:          "/collections",
		Summary:       "Create a badge collection",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden, http.StatusConflict},
	}, func(ctx context.Context, input *struct {
		Body CreateCollectionRequest `json:"body"`
	}) (*struct {
		Body domain.Collection `json:"body"`
	}, error) {
		adminID, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateCollection(ctx, adminID, input.Body.Name, input.Body.URI)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Collection `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "mint-badge",
		Method:        http.MethodPost,
		Path:          "/collections/{addr}/badges",
		Summary:       "Mint a badge snapshotting the caller's track record",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusForbidden, http.StatusConflict, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Addr string           `path:"addr"`
		Body MintBadgeRequest `json:"body"`
	}) (*struct {
		Body domain.BadgeToken `json:"body"`
	}, error) {
		freelancerID, authErr := identityFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		b, err := e.MintBadge(ctx, freelancerID, input.Addr, input.Body.Name, input.Body.URI)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.BadgeToken `json:"body"`
		}{Body: b}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List events after a cursor",
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if _, authErr := identityFromContext(ctx); authErr != nil {
			return nil, authErr
		}
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		var cursorID int64
		if input.Cursor != "" {
			parsed, err := strconv.ParseInt(input.Cursor, 10, 64)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
			}
			cursorID = parsed
		}
		items, err := e.Repo.EventsAfter(ctx, cursorID, limit+1)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{Items: []EventResponse{}}
		if len(items) > limit {
			resp.NextCursor = fmt.Sprintf("%d", items[limit-1].ID)
			items = items[:limit]
		}
		for _, evt := range items {
			resp.Items = append(resp.Items, eventResponse(evt))
		}
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/apikeys",
		Summary:       "Create an API key for an identity",
		DefaultStatus: http.StatusCreated,
		Errors:        []int{http.StatusBadRequest, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body CreateAPIKeyResponse `json:"body"`
	}, error) {
		if _, authErr := requireAdminPrincipal(ctx, e); authErr != nil {
			return nil, authErr
		}
		identity := strings.TrimSpace(input.Body.Identity)
		if identity == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "identity is required", nil)
		}
		rawKey := "gig_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		key := domain.APIKey{
			ID:        uuid.NewString(),
			ActorID:   identity,
			Name:      input.Body.Name,
			KeyHash:   repo.HashAPIKey(rawKey),
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		if err := e.Repo.InsertAPIKey(ctx, key); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CreateAPIKeyResponse `json:"body"`
		}{Body: CreateAPIKeyResponse{ID: key.ID, Key: rawKey}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/apikeys",
		Summary:     "List API keys",
		Errors:      []int{http.StatusForbidden},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body []domain.APIKey `json:"body"`
	}, error) {
		if _, authErr := requireAdminPrincipal(ctx, e); authErr != nil {
			return nil, authErr
		}
		keys, err := e.Repo.ListAPIKeys(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		if keys == nil {
			keys = []domain.APIKey{}
		}
		return &struct {
			Body []domain.APIKey `json:"body"`
		}{Body: keys}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/apikeys/{id}",
		Summary:     "Delete an API key",
		Errors:      []int{http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		if _, authErr := requireAdminPrincipal(ctx, e); authErr != nil {
			return nil, authErr
		}
		if err := e.Repo.DeleteAPIKey(ctx, input.ID); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerDevAuth(api huma.API, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		identity := strings.TrimSpace(input.Body.Identity)
		if identity == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "identity is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, identity)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}
