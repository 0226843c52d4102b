package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lawdigitaltwin/tourismlevy/internal/api"
	"github.com/lawdigitaltwin/tourismlevy/internal/assessment"
	"github.com/lawdigitaltwin/tourismlevy/internal/domain"
	"github.com/lawdigitaltwin/tourismlevy/internal/levy"
	"github.com/lawdigitaltwin/tourismlevy/internal/refdata"
	"github.com/lawdigitaltwin/tourismlevy/internal/rules"
)

// backend computes levies either in-process or through the HTTP API.
type backend interface {
	Calculate(ctx context.Context, req domain.LevyRequest) (*api.LevyResponse, error)
	Compute(ctx context.Context, req domain.ComputeRequest) (*api.LevyResponse, error)
	MunicipalityClass(ctx context.Context, name string) (domain.MunicipalityClass, error)
	Close() error
}

// newBackend picks the backend from the --server flag.
func newBackend() (backend, error) {
	if serverURL != "" {
		return newRemoteBackend(serverURL), nil
	}
	return newLocalBackend(referenceFile)
}

type localBackend struct {
	svc      *levy.Service
	engine   *rules.Engine
	assessor *assessment.Assessor
}

func newLocalBackend(file string) (*localBackend, error) {
	data, err := refdata.Load(file)
	if err != nil {
		return nil, err
	}
	ref, err := levy.NewReference(data)
	if err != nil {
		return nil, err
	}
	engine, err := rules.NewEngine(4)
	if err != nil {
		return nil, err
	}
	if err := engine.LoadRules(data.Rules); err != nil {
		engine.Close()
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}

	svc := levy.NewService(ref)
	return &localBackend{
		svc:      svc,
		engine:   engine,
		assessor: assessment.NewAssessor(svc, engine),
	}, nil
}

func (b *localBackend) Calculate(ctx context.Context, req domain.LevyRequest) (*api.LevyResponse, error) {
	a, err := b.assessor.Assess(ctx, "", "", req)
	if err != nil {
		return nil, err
	}
	return toResponse(a), nil
}

func (b *localBackend) Compute(ctx context.Context, req domain.ComputeRequest) (*api.LevyResponse, error) {
	a, err := b.assessor.AssessCompute(ctx, "", "", req)
	if err != nil {
		return nil, err
	}
	return toResponse(a), nil
}

func (b *localBackend) MunicipalityClass(ctx context.Context, name string) (domain.MunicipalityClass, error) {
	return b.svc.MunicipalityClass(name)
}

func (b *localBackend) Close() error {
	return b.engine.Close()
}

func toResponse(a *domain.Assessment) *api.LevyResponse {
	resp := &api.LevyResponse{
		AssessmentID: a.ID,
		LevyResult:   *a.Result,
		MinimumLevy:  a.MinimumLevy,
		Notes:        a.Notes(),
	}
	resp.Metadata.TotalMs = a.Metadata.TotalMs
	resp.Metadata.Version = a.Metadata.EngineVersion
	return resp
}

type remoteBackend struct {
	baseURL string
	client  *http.Client
}

func newRemoteBackend(baseURL string) *remoteBackend {
	return &remoteBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// remoteError carries an error response of the server. It unwraps to the
// domain sentinel matching the status so callers classify it like a local
// failure.
type remoteError struct {
	Status  int
	Message string
}

func (e *remoteError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

func (e *remoteError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrNotFound
	case http.StatusBadRequest:
		return domain.ErrInvalidArgument
	default:
		return nil
	}
}

func (b *remoteBackend) Calculate(ctx context.Context, req domain.LevyRequest) (*api.LevyResponse, error) {
	var resp api.LevyResponse
	if err := b.do(ctx, http.MethodPost, "/levy/calculate", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *remoteBackend) Compute(ctx context.Context, req domain.ComputeRequest) (*api.LevyResponse, error) {
	var resp api.LevyResponse
	if err := b.do(ctx, http.MethodPost, "/levy/compute", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (b *remoteBackend) MunicipalityClass(ctx context.Context, name string) (domain.MunicipalityClass, error) {
	var resp struct {
		Municipality      string `json:"municipality"`
		MunicipalityClass string `json:"municipalityClass"`
	}
	if err := b.do(ctx, http.MethodGet, "/municipalities/"+url.PathEscape(name), nil, &resp); err != nil {
		return "", err
	}
	return domain.MunicipalityClass(resp.MunicipalityClass), nil
}

func (b *remoteBackend) Close() error {
	b.client.CloseIdleConnections()
	return nil
}

func (b *remoteBackend) do(ctx context.Context, method, path string, body, out any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, &payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		return &remoteError{Status: resp.StatusCode, Message: e.Error}
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
