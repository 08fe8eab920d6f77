package admin

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/getmockd/sandbox/pkg/config"
	"github.com/getmockd/sandbox/pkg/httputil"
	"github.com/getmockd/sandbox/pkg/specs"
)

func (a *API) handleListSpecs(w http.ResponseWriter, r *http.Request) {
	all, err := a.specs.List(r.Context())
	if err != nil {
		a.writeServiceError(w, err, "list specs")
		return
	}
	out := make([]*specs.Spec, len(all))
	for i, s := range all {
		out[i] = s.Summary()
	}
	httputil.WriteList(w, "specs", out)
}

// handleImportSpec accepts either {"name", "description", "content"} as
// JSON, or the OpenAPI document itself as the body with ?name= and
// ?description= query parameters.
func (a *API) handleImportSpec(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.WriteError(w, http.StatusRequestEntityTooLarge, "body_too_large", "Request body too large")
			return
		}
		httputil.WriteBadRequest(w, "invalid_body", "Failed to read request body")
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		httputil.WriteBadRequest(w, "invalid_spec", specs.ErrEmpty.Error())
		return
	}

	req, err := importRequest(r, body)
	if err != nil {
		httputil.WriteBadRequest(w, "invalid_json", ErrMsgInvalidJSON+": "+err.Error())
		return
	}
	if err := config.Struct(&req); err != nil {
		a.writeServiceError(w, err, "import spec")
		return
	}

	spec, err := a.specs.Import(r.Context(), req)
	if err != nil {
		a.writeServiceError(w, err, "import spec")
		return
	}
	httputil.WriteCreated(w, spec)
}

// importRequest tells a JSON envelope apart from a raw JSON document: an
// envelope has a "content" member and no "openapi" or "swagger" member.
func importRequest(r *http.Request, body []byte) (specs.ImportRequest, error) {
	q := r.URL.Query()
	raw := specs.ImportRequest{
		Name:        q.Get("name"),
		Description: q.Get("description"),
		Content:     string(body),
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "application/json" {
		return raw, nil
	}
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return specs.ImportRequest{}, err
	}
	_, hasContent := envelope["content"]
	_, isOpenAPI := envelope["openapi"]
	_, isSwagger := envelope["swagger"]
	if !hasContent || isOpenAPI || isSwagger {
		return raw, nil
	}

	var req specs.ImportRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return specs.ImportRequest{}, err
	}
	return req, nil
}

func (a *API) handleGetSpec(w http.ResponseWriter, r *http.Request) {
	spec, err := a.specs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err, "get spec", "id", r.PathValue("id"))
		return
	}
	httputil.WriteOK(w, spec)
}

func (a *API) handleUpdateSpec(w http.ResponseWriter, r *http.Request) {
	var req specs.UpdateRequest
	if !a.decodeJSON(w, r, &req, false) {
		return
	}
	if err := config.Struct(&req); err != nil {
		a.writeServiceError(w, err, "update spec")
		return
	}
	spec, err := a.specs.Update(r.Context(), r.PathValue("id"), req)
	if err != nil {
		a.writeServiceError(w, err, "update spec", "id", r.PathValue("id"))
		return
	}
	httputil.WriteOK(w, spec)
}

func (a *API) handleDeleteSpec(w http.ResponseWriter, r *http.Request) {
	if err := a.specs.Delete(r.Context(), r.PathValue("id")); err != nil {
		a.writeServiceError(w, err, "delete spec", "id", r.PathValue("id"))
		return
	}
	httputil.WriteNoContent(w)
}

// handleGetSpecContent returns the document exactly as uploaded.
func (a *API) handleGetSpecContent(w http.ResponseWriter, r *http.Request) {
	spec, err := a.specs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err, "get spec content", "id", r.PathValue("id"))
		return
	}
	contentType := "application/yaml"
	if spec.Format == specs.FormatJSON {
		contentType = "application/json"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, spec.Content)
}

func (a *API) handleGetSpecEndpoints(w http.ResponseWriter, r *http.Request) {
	spec, err := a.specs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		a.writeServiceError(w, err, "get spec endpoints", "id", r.PathValue("id"))
		return
	}
	httputil.WriteList(w, "endpoints", spec.Endpoints)
}
